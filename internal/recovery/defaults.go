package recovery

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/Kargones/errmgr/internal/pkg/apperrors"
	"github.com/Kargones/errmgr/internal/pkg/eventbus"
)

// HTTPClient — интерфейс для HTTP запросов (для тестирования).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Pinger проверяет доступность базы данных.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Defaults — зависимости и параметры стандартного набора действий и стратегий.
type Defaults struct {
	Publisher eventbus.Publisher
	// HTTPClient и ProbeURL используются действием повтора сетевых операций.
	// Пустой ProbeURL — действие всегда неуспешно.
	HTTPClient HTTPClient
	ProbeURL   string
	// DB — проверка соединения для data_recovery; nil — действие неуспешно.
	DB Pinger

	MaxRetries      int
	Delay           time.Duration
	Timeout         time.Duration
	FallbackEnabled bool
}

// RegisterDefaults регистрирует по одному действию на каждый тип и
// стратегии для распространённых кодов категорий database, network и system.
func RegisterDefaults(m *Manager, d Defaults) error {
	if d.Publisher == nil {
		d.Publisher = eventbus.Nop{}
	}
	if d.HTTPClient == nil {
		d.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	}
	if d.MaxRetries <= 0 {
		d.MaxRetries = 3
	}

	for _, a := range defaultActions(d) {
		if err := m.RegisterAction(a); err != nil {
			return err
		}
	}
	for _, s := range defaultStrategies(m, d) {
		if err := m.RegisterStrategy(s); err != nil {
			return err
		}
	}
	return nil
}

func defaultActions(d Defaults) []Action {
	request := func(evt eventbus.Type, action, scope, mode string, result bool) ActionFunc {
		return func(_ context.Context, e *apperrors.ApplicationError) (bool, error) {
			d.Publisher.Publish(eventbus.Event{
				Type:   evt,
				Source: "recovery",
				Payload: eventbus.ActionRequest{
					Action:    action,
					Scope:     scope,
					Mode:      mode,
					Component: e.Context.Component,
					ErrorID:   e.ID,
					Code:      string(e.Code),
					Category:  string(e.Category),
					Reason:    e.Message,
				},
			})
			return result, nil
		}
	}

	return []Action{
		{
			ID:          "network-probe",
			Type:        TypeRetry,
			Description: "Проверка доступности сети запросом к контрольному адресу",
			Priority:    100,
			Categories:  []apperrors.Category{apperrors.CategoryNetwork, apperrors.CategoryIntegration},
			Execute:     probeHTTP(d.HTTPClient, d.ProbeURL),
		},
		{
			ID:          "database-reconnect",
			Type:        TypeDataRecovery,
			Description: "Проверка и восстановление соединения с базой данных",
			Priority:    100,
			Categories:  []apperrors.Category{apperrors.CategoryDatabase},
			Execute: func(ctx context.Context, _ *apperrors.ApplicationError) (bool, error) {
				if d.DB == nil {
					return false, nil
				}
				if err := d.DB.Ping(ctx); err != nil {
					return false, err
				}
				return true, nil
			},
		},
		{
			ID:          "restart-component",
			Type:        TypeRestartComponent,
			Description: "Запрос перезапуска компонента-источника ошибки",
			Priority:    50,
			Categories: []apperrors.Category{
				apperrors.CategorySystem, apperrors.CategoryUserInterface,
				apperrors.CategoryDatabase, apperrors.CategoryNetwork,
			},
			Execute: request(eventbus.RestartRequired, "restart", "component", "", true),
		},
		{
			ID:          "restart-application",
			Type:        TypeRestartApplication,
			Description: "Запрос перезапуска приложения",
			Priority:    10,
			Categories:  []apperrors.Category{apperrors.CategorySystem},
			Execute:     request(eventbus.RestartRequired, "restart", "application", "", true),
		},
		{
			ID:          "fallback-mode",
			Type:        TypeFallbackMode,
			Description: "Переключение на резервный режим работы",
			Priority:    50,
			Categories: []apperrors.Category{
				apperrors.CategoryNetwork, apperrors.CategoryDatabase, apperrors.CategoryIntegration,
			},
			Execute: request(eventbus.SafeModeRequired, "safe_mode", "", "fallback", true),
		},
		{
			ID:          "safe-mode",
			Type:        TypeSafeMode,
			Description: "Освобождение памяти и переход в безопасный режим",
			Priority:    50,
			Categories:  []apperrors.Category{apperrors.CategorySystem},
			Execute: func(ctx context.Context, e *apperrors.ApplicationError) (bool, error) {
				debug.FreeOSMemory()
				return request(eventbus.SafeModeRequired, "safe_mode", "", "safe", true)(ctx, e)
			},
		},
		{
			ID:          "notify-user",
			Type:        TypeUserIntervention,
			Description: "Запрос вмешательства пользователя",
			Priority:    0,
			Execute:     request(eventbus.UserIntervention, "user_intervention", "", "", false),
		},
	}
}

func probeHTTP(client HTTPClient, url string) ActionFunc {
	return func(ctx context.Context, _ *apperrors.ApplicationError) (bool, error) {
		if url == "" {
			return false, nil
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return false, fmt.Errorf("recovery: создание probe запроса: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return false, err
		}
		defer func() { _ = resp.Body.Close() }()
		return resp.StatusCode < http.StatusInternalServerError, nil
	}
}

func defaultStrategies(m *Manager, d Defaults) []Strategy {
	fallback := func(t Type) func(context.Context, *apperrors.ApplicationError) error {
		if !d.FallbackEnabled {
			return nil
		}
		return func(ctx context.Context, e *apperrors.ApplicationError) error {
			_, err := m.ActionsOf(t)(ctx, e)
			return err
		}
	}
	inCategory := func(cats ...apperrors.Category) func(*apperrors.ApplicationError) bool {
		return func(e *apperrors.ApplicationError) bool {
			for _, c := range cats {
				if e.Category == c {
					return true
				}
			}
			return false
		}
	}

	network := inCategory(apperrors.CategoryNetwork, apperrors.CategoryIntegration)
	var out []Strategy
	for _, code := range []apperrors.Code{
		apperrors.CodeNetworkConnectionLost,
		apperrors.CodeNetworkTimeout,
		apperrors.CodeNetworkConnectionRefused,
		apperrors.CodeIntegrationServiceUnavailable,
	} {
		out = append(out, Strategy{
			Code:        code,
			MaxAttempts: d.MaxRetries,
			Delay:       d.Delay,
			Timeout:     d.Timeout,
			Condition:   network,
			Action:      m.ActionsOf(TypeRetry),
			Fallback:    fallback(TypeFallbackMode),
		})
	}
	for _, code := range []apperrors.Code{
		apperrors.CodeDatabaseConnectionFailed,
		apperrors.CodeDatabaseQueryFailed,
	} {
		out = append(out, Strategy{
			Code:        code,
			MaxAttempts: d.MaxRetries,
			Delay:       d.Delay,
			Timeout:     d.Timeout,
			Condition:   inCategory(apperrors.CategoryDatabase),
			Action:      m.ActionsOf(TypeDataRecovery),
			Fallback:    fallback(TypeFallbackMode),
		})
	}
	for _, code := range []apperrors.Code{
		apperrors.CodeSystemResourceExhausted,
		apperrors.CodeSystemOutOfMemory,
	} {
		out = append(out, Strategy{
			Code:        code,
			MaxAttempts: 1,
			Timeout:     d.Timeout,
			Condition:   inCategory(apperrors.CategorySystem),
			Action:      m.ActionsOf(TypeSafeMode),
			Fallback:    fallback(TypeRestartApplication),
		})
	}
	out = append(out, Strategy{
		Code:        apperrors.CodeUIComponentCrashed,
		MaxAttempts: 1,
		Action:      m.ActionsOf(TypeRestartComponent),
	})
	return out
}

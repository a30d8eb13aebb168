package recovery

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Kargones/errmgr/internal/pkg/apperrors"
)

// Type — тип действия восстановления.
type Type string

// Типы действий восстановления.
const (
	TypeRetry              Type = "retry"
	TypeRestartComponent   Type = "restart_component"
	TypeRestartApplication Type = "restart_application"
	TypeFallbackMode       Type = "fallback_mode"
	TypeSafeMode           Type = "safe_mode"
	TypeDataRecovery       Type = "data_recovery"
	TypeUserIntervention   Type = "user_intervention"
)

// AllTypes возвращает все типы действий.
func AllTypes() []Type {
	return []Type{
		TypeRetry, TypeRestartComponent, TypeRestartApplication, TypeFallbackMode,
		TypeSafeMode, TypeDataRecovery, TypeUserIntervention,
	}
}

// Valid проверяет, что тип известен.
func (t Type) Valid() bool {
	for _, known := range AllTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Action — именованное действие восстановления.
type Action struct {
	ID          string
	Type        Type
	Description string
	// Priority — действия одного типа выполняются по убыванию приоритета.
	Priority int
	// Categories — категории ошибок, к которым применимо действие; пусто — ко всем.
	Categories []apperrors.Category
	Execute    ActionFunc
}

// Covers проверяет, применимо ли действие к категории.
func (a *Action) Covers(c apperrors.Category) bool {
	if len(a.Categories) == 0 {
		return true
	}
	for _, cat := range a.Categories {
		if cat == c {
			return true
		}
	}
	return false
}

// RegisterAction добавляет действие; список действий типа пересортировывается.
func (m *Manager) RegisterAction(a Action) error {
	switch {
	case a.ID == "":
		return errors.Join(ErrInvalidAction, errors.New("не задан ID"))
	case !a.Type.Valid():
		return errors.Join(ErrInvalidAction, fmt.Errorf("неизвестный тип %q", a.Type))
	case a.Execute == nil:
		return errors.Join(ErrInvalidAction, errors.New("не задана функция"))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, list := range m.actions {
		for _, existing := range list {
			if existing.ID == a.ID {
				return fmt.Errorf("%w: %s", ErrDuplicateAction, a.ID)
			}
		}
	}
	list := append(m.actions[a.Type], a)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Priority > list[j].Priority })
	m.actions[a.Type] = list
	return nil
}

// UnregisterAction удаляет действие по ID. Возвращает false если его не было.
func (m *Manager) UnregisterAction(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for t, list := range m.actions {
		for i, a := range list {
			if a.ID == id {
				m.actions[t] = append(list[:i:i], list[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Actions возвращает действия типа в порядке убывания приоритета.
func (m *Manager) Actions(t Type) []Action {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Action(nil), m.actions[t]...)
}

// ExecuteActions выполняет действия типа, применимые к категории ошибки,
// в порядке приоритета до первого успешного. Ошибки и panic отдельных
// действий не прерывают перебор.
func (m *Manager) ExecuteActions(ctx context.Context, t Type, e *apperrors.ApplicationError) (bool, error) {
	var candidates []Action
	for _, a := range m.Actions(t) {
		if a.Covers(e.Category) {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		return false, fmt.Errorf("%w: %s/%s", ErrNoActions, t, e.Category)
	}

	var errs []error
	for _, a := range candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		ok, err := safeExecute(ctx, &a, e)
		if err != nil {
			m.log.Warn("действие восстановления завершилось ошибкой",
				"action", a.ID, "type", t, "code", e.Code, "error", err.Error())
			errs = append(errs, err)
			continue
		}
		if ok {
			m.log.Debug("действие восстановления успешно", "action", a.ID, "type", t, "code", e.Code)
			return true, nil
		}
	}
	return false, errors.Join(errs...)
}

func safeExecute(ctx context.Context, a *Action, e *apperrors.ApplicationError) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("recovery: panic в действии %s: %v", a.ID, r)
		}
	}()
	return a.Execute(ctx, e)
}

// ActionsOf возвращает ActionFunc, выполняющую ExecuteActions для типа.
// Отсутствие подходящих действий считается неуспехом без ошибки.
func (m *Manager) ActionsOf(t Type) ActionFunc {
	return func(ctx context.Context, e *apperrors.ApplicationError) (bool, error) {
		ok, err := m.ExecuteActions(ctx, t, e)
		if errors.Is(err, ErrNoActions) {
			return false, nil
		}
		return ok, err
	}
}

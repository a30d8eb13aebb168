// Package di собирает компоненты pipeline обработки ошибок через Wire.
package di

import (
	"context"

	"github.com/Kargones/errmgr/internal/adapter/mssql"
	"github.com/Kargones/errmgr/internal/analytics"
	"github.com/Kargones/errmgr/internal/config"
	"github.com/Kargones/errmgr/internal/crash"
	"github.com/Kargones/errmgr/internal/errorlog"
	"github.com/Kargones/errmgr/internal/errormanager"
	"github.com/Kargones/errmgr/internal/pkg/alerting"
	"github.com/Kargones/errmgr/internal/pkg/eventbus"
	"github.com/Kargones/errmgr/internal/pkg/logging"
	"github.com/Kargones/errmgr/internal/pkg/metrics"
	"github.com/Kargones/errmgr/internal/pkg/output"
	"github.com/Kargones/errmgr/internal/pkg/tracing"
	"github.com/Kargones/errmgr/internal/recovery"
)

// App содержит инициализированные зависимости приложения.
// Создаётся через InitializeApp; ресурсы освобождает cleanup, который
// InitializeApp возвращает вместе с App.
//
// При добавлении новых зависимостей:
// 1. Добавить поле в App struct
// 2. Создать провайдер в providers.go
// 3. Добавить провайдер в ProviderSet в wire.go
// 4. Перегенерировать wire_gen.go: go generate ./internal/di/...
type App struct {
	Config       *config.Config
	Logger       logging.Logger
	OutputWriter output.Writer

	// TraceID — идентификатор запуска для корреляции логов.
	TraceID string

	Bus     *eventbus.Bus
	Metrics metrics.Collector
	Alerter alerting.Alerter

	// TracerShutdown отправляет буферизированные span-ы. Вызывается отдельно
	// от cleanup, так как принимает контекст с таймаутом.
	TracerShutdown tracing.Shutdown

	// DBProbe равен nil, если база данных не настроена.
	DBProbe *mssql.Probe

	ErrorLog  *errorlog.Logger
	Crash     *crash.Reporter
	Recovery  *recovery.Manager
	Analytics *analytics.Analyzer
	Manager   *errormanager.Manager
}

// Start запускает фоновые задачи компонентов: сброс и ротацию журнала,
// очистку отчётов и проверку правил алертинга.
func (a *App) Start(ctx context.Context) {
	a.ErrorLog.Start(ctx)
	a.Crash.Start(ctx)
	a.Analytics.Start(ctx)
}

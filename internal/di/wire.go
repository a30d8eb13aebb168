//go:build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/Kargones/errmgr/internal/config"
)

//go:generate wire

// ProviderSet объединяет все провайдеры приложения.
var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideOutputWriter,
	ProvideTraceID,
	ProvideBus,
	ProvideMetricsCollector,
	ProvideAlerter,
	ProvideTracerProvider,
	ProvideDBProbe,
	ProvideErrorLog,
	ProvideCrashReporter,
	ProvideRecovery,
	ProvideAnalytics,
	ProvideManager,
	wire.Struct(new(App), "*"),
)

// InitializeApp создаёт App из загруженного Config. Cleanup закрывает
// компоненты в порядке, обратном созданию: Error Manager первым.
func InitializeApp(cfg *config.Config) (*App, func(), error) {
	wire.Build(ProviderSet)
	return nil, nil, nil
}

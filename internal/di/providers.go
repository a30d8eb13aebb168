package di

import (
	"log/slog"

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
	"github.com/Kargones/errmgr/internal/pkg/sysinfo"
	"github.com/Kargones/errmgr/internal/pkg/tracing"
	"github.com/Kargones/errmgr/internal/recovery"
)

// ProvideLogger создаёт Logger на основе секции logging.
func ProvideLogger(cfg *config.Config) logging.Logger {
	return logging.NewLogger(cfg.LoggingConfig())
}

// ProvideOutputWriter создаёт OutputWriter на основе EM_OUTPUT_FORMAT.
func ProvideOutputWriter(cfg *config.Config) output.Writer {
	return output.NewWriter(cfg.App.OutputFormat)
}

// ProvideTraceID генерирует trace_id запуска.
func ProvideTraceID() string {
	return tracing.GenerateTraceID()
}

// ProvideBus создаёт шину событий. Cleanup закрывает все подписки.
func ProvideBus() (*eventbus.Bus, func()) {
	bus := eventbus.New()
	return bus, bus.Close
}

// ProvideMetricsCollector создаёт Collector. При выключенных метриках или
// ошибке создания возвращает NopCollector.
func ProvideMetricsCollector(cfg *config.Config, logger logging.Logger) metrics.Collector {
	collector, err := metrics.NewCollector(cfg.MetricsConfig(), logger)
	if err != nil {
		logger.Error("ошибка создания MetricsCollector, используется NopCollector",
			slog.String("error", err.Error()),
		)
		return metrics.NewNopCollector()
	}
	return collector
}

// ProvideAlerter создаёт Alerter для правил analytics. При ошибке
// возвращает NopAlerter.
func ProvideAlerter(cfg *config.Config, logger logging.Logger) alerting.Alerter {
	alerter, err := alerting.NewAlerter(cfg.AlertingConfig(), cfg.AlertingRules(), logger)
	if err != nil {
		logger.Error("ошибка создания Alerter, используется NopAlerter",
			slog.String("error", err.Error()),
		)
		return alerting.NewNopAlerter()
	}
	return alerter
}

// ProvideTracerProvider инициализирует OTel TracerProvider. При ошибке
// трейсинг остаётся no-op.
func ProvideTracerProvider(cfg *config.Config, logger logging.Logger) tracing.Shutdown {
	shutdown, err := tracing.NewTracerProvider(cfg.TracingConfig(), logger)
	if err != nil {
		logger.Error("ошибка инициализации tracing, используется nop provider",
			slog.String("error", err.Error()),
		)
		return tracing.NopShutdown
	}
	return shutdown
}

// ProvideDBProbe создаёт проверку доступности базы данных для действия
// data_recovery. Возвращает nil, если база не настроена.
func ProvideDBProbe(cfg *config.Config, logger logging.Logger) (*mssql.Probe, func()) {
	opts, ok := cfg.ProbeOptions()
	if !ok {
		return nil, func() {}
	}
	probe, err := mssql.New(opts, logger)
	if err != nil {
		logger.Error("ошибка настройки проверки базы данных, data_recovery без проверки",
			slog.String("error", err.Error()),
		)
		return nil, func() {}
	}
	return probe, func() {
		if err := probe.Close(); err != nil {
			logger.Warn("ошибка закрытия пула базы данных", slog.String("error", err.Error()))
		}
	}
}

// ProvideErrorLog открывает журнал ошибок. Cleanup сбрасывает буфер и
// закрывает файл.
func ProvideErrorLog(cfg *config.Config, logger logging.Logger, m metrics.Collector) (*errorlog.Logger, func(), error) {
	elCfg, err := cfg.ErrorLogConfig()
	if err != nil {
		return nil, nil, err
	}
	el, err := errorlog.New(elCfg, logger, m)
	if err != nil {
		return nil, nil, err
	}
	return el, func() {
		if err := el.Close(); err != nil {
			logger.Error("ошибка закрытия журнала ошибок", slog.String("error", err.Error()))
		}
	}, nil
}

// ProvideCrashReporter создаёт Crash Reporter со снимками системы по DataDir.
func ProvideCrashReporter(cfg *config.Config, logger logging.Logger, m metrics.Collector, bus *eventbus.Bus) (*crash.Reporter, func(), error) {
	reporter, err := crash.NewReporter(cfg.CrashConfig(), logger, m, bus, sysinfo.NewSampler(cfg.App.DataDir))
	if err != nil {
		return nil, nil, err
	}
	return reporter, func() {
		if err := reporter.Close(); err != nil {
			logger.Warn("ошибка остановки Crash Reporter", slog.String("error", err.Error()))
		}
	}, nil
}

// ProvideRecovery создаёт Recovery Manager и регистрирует стандартные
// действия и стратегии, если они не отключены.
func ProvideRecovery(cfg *config.Config, logger logging.Logger, m metrics.Collector, bus *eventbus.Bus, probe *mssql.Probe) (*recovery.Manager, error) {
	mgr := recovery.NewManager(cfg.RecoveryConfig(), logger, m)
	if cfg.Recovery.DisableDefaults {
		return mgr, nil
	}
	d := cfg.RecoveryDefaults()
	d.Publisher = bus
	if probe != nil {
		d.DB = probe
	}
	if err := recovery.RegisterDefaults(mgr, d); err != nil {
		return nil, err
	}
	return mgr, nil
}

// ProvideAnalytics создаёт Error Analytics; история дополняется из журнала ошибок.
func ProvideAnalytics(cfg *config.Config, logger logging.Logger, m metrics.Collector, bus *eventbus.Bus, alerter alerting.Alerter, el *errorlog.Logger) (*analytics.Analyzer, func()) {
	an := analytics.New(cfg.AnalyticsConfig(), logger, m, bus, alerter, el)
	return an, func() {
		if err := an.Close(); err != nil {
			logger.Warn("ошибка остановки analytics", slog.String("error", err.Error()))
		}
	}
}

// ProvideManager создаёт Error Manager со всеми коллабораторами. Cleanup
// дожидается обработки очереди.
func ProvideManager(
	cfg *config.Config,
	rec *recovery.Manager,
	el *errorlog.Logger,
	reporter *crash.Reporter,
	an *analytics.Analyzer,
	bus *eventbus.Bus,
	m metrics.Collector,
	logger logging.Logger,
) (*errormanager.Manager, func(), error) {
	mgrCfg, err := cfg.ManagerConfig()
	if err != nil {
		return nil, nil, err
	}
	filter, err := cfg.Filter()
	if err != nil {
		return nil, nil, err
	}
	mgr, err := errormanager.New(mgrCfg, rec, el, reporter, an, bus, m, logger)
	if err != nil {
		return nil, nil, err
	}
	mgr.SetFilter(filter)
	return mgr, func() {
		if err := mgr.Close(); err != nil {
			logger.Warn("ошибка остановки Error Manager", slog.String("error", err.Error()))
		}
	}, nil
}

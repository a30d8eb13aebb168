// Package main содержит точку входа errmgr: сервис обработки ошибок,
// принимающий отчёты об ошибках на stdin, и служебные команды для журнала
// ошибок, аналитики и отчётов об авариях.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Kargones/errmgr/internal/config"
	"github.com/Kargones/errmgr/internal/constants"
	"github.com/Kargones/errmgr/internal/di"
	"github.com/Kargones/errmgr/internal/pkg/output"
	"github.com/Kargones/errmgr/internal/pkg/tracing"
)

// errShutdownRequested возвращается run, если pipeline запросил остановку.
var errShutdownRequested = errors.New("pipeline запросил остановку приложения")

func main() {
	os.Exit(run())
}

// run содержит основную логику и возвращает exit code. os.Exit
// вызывается в main после отработки всех defer.
func run() int {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Не удалось загрузить конфигурацию: %v\n", err)
		return constants.ExitConfig
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Не удалось инициализировать приложение: %v\n", err)
		return constants.ExitFailure
	}
	defer cleanup()

	l := app.Logger.With(slog.String("trace_id", app.TraceID))
	l.Debug("Информация о сборке",
		slog.String("version", constants.Version),
		slog.String("commit", constants.Commit),
	)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.TracerShutdown(shutdownCtx); err != nil {
			l.Error("ошибка завершения tracing", slog.String("error", err.Error()))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = tracing.WithTraceID(ctx, app.TraceID)
	ctx = tracing.ContextWithOTelTraceID(ctx, app.TraceID)

	// Паника основного потока сохраняется как отчёт об аварии.
	defer app.Crash.RecoverPanic(ctx)

	command := cfg.App.Command
	ctx, span := otel.Tracer(constants.AppName).Start(ctx, command,
		trace.WithAttributes(
			attribute.String("command", command),
			attribute.String("trace_id", app.TraceID),
		),
	)
	defer span.End()

	started := time.Now()
	result, exitCode := execute(ctx, app, command, started)
	if result != nil {
		if err := app.OutputWriter.Write(os.Stdout, result); err != nil {
			l.Error("ошибка вывода результата", slog.String("error", err.Error()))
			return constants.ExitFailure
		}
	}
	_ = app.Metrics.Push(ctx)
	return exitCode
}

func execute(ctx context.Context, app *di.App, command string, started time.Time) (*output.Result, int) {
	var (
		data    any
		summary *output.SummaryInfo
		err     error
	)
	switch command {
	case constants.CmdRun:
		data, summary, err = runService(ctx, app, os.Stdin)
	case constants.CmdQuery:
		data, summary, err = queryLog(ctx, app)
	case constants.CmdAnalytics:
		data, summary, err = showAnalytics(ctx, app)
	case constants.CmdCleanup:
		data, summary, err = cleanupReports(app)
	case constants.CmdVersion:
		data = versionInfo()
	default:
		err = fmt.Errorf("неизвестная команда %q", command)
	}

	switch {
	case errors.Is(err, errShutdownRequested):
		res := output.Failure(command, "SHUTDOWN_REQUESTED", err, started, app.TraceID)
		res.Data = data
		res.Summary = summary
		return res, constants.ExitShutdown
	case err != nil:
		app.Logger.Error("Ошибка выполнения команды",
			slog.String("command", command),
			slog.String("error", err.Error()),
		)
		return output.Failure(command, "COMMAND_FAILED", err, started, app.TraceID), constants.ExitFailure
	}
	res := output.Success(command, data, started, app.TraceID)
	res.Summary = summary
	return res, constants.ExitOK
}

package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/Kargones/errmgr/internal/di"
	"github.com/Kargones/errmgr/internal/errormanager"
	"github.com/Kargones/errmgr/internal/pkg/eventbus"
	"github.com/Kargones/errmgr/internal/pkg/logging"
	"github.com/Kargones/errmgr/internal/pkg/output"
)

// maxLineSize — предел длины одной входной записи.
const maxLineSize = 1 << 20

// serviceReport — итог команды run.
type serviceReport struct {
	Received   int                         `json:"received"`
	Actions    int                         `json:"actions"`
	Invalid    int                         `json:"invalid"`
	Recovered  int                         `json:"recovered"`
	NextAction map[errormanager.Action]int `json:"nextAction"`
	Requests   map[eventbus.Type]int       `json:"requests"`
	Stats      errormanager.Stats          `json:"stats"`
	Pending    []errormanager.Dialog       `json:"pendingDialogs,omitempty"`
	Stopped    string                      `json:"stopped"`
}

// runService принимает записи из in, пока поток не закончится, не придёт
// сигнал завершения или pipeline не запросит остановку.
func runService(ctx context.Context, app *di.App, in io.Reader) (any, *output.SummaryInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	app.Start(ctx)

	report := &serviceReport{
		NextAction: make(map[errormanager.Action]int),
		Requests:   make(map[eventbus.Type]int),
	}

	shutdown := make(chan eventbus.ActionRequest, 1)
	stopWatch := watchRequests(app.Bus, app.Logger, report, shutdown)
	defer stopWatch()

	var signals <-chan os.Signal
	if !app.Config.Reporting.DisableSignals {
		signals = app.Crash.WatchSignals(ctx)
	}

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go readLines(ctx, in, lines, readErr)

	var err error
loop:
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				report.Stopped = "eof"
				err = <-readErr
				break loop
			}
			if handleLine(ctx, app, report, line) == errormanager.ActionShutdown {
				report.Stopped = "shutdown: threshold or internal failure"
				err = errShutdownRequested
				break loop
			}
		case req := <-shutdown:
			report.Stopped = "shutdown: " + req.Reason
			err = errShutdownRequested
			break loop
		case sig, ok := <-signals:
			if ok {
				report.Stopped = "signal " + sig.String()
				break loop
			}
			signals = nil
		case <-ctx.Done():
			report.Stopped = "cancelled"
			break loop
		}
	}

	stopWatch()
	report.Stats = app.Manager.Stats()
	report.Pending = app.Manager.PendingDialogs()

	summary := &output.SummaryInfo{}
	summary.AddMetric("received", strconv.Itoa(report.Received), "")
	summary.AddMetric("recovered", strconv.Itoa(report.Recovered), "")
	summary.AddMetric("threshold_hits", strconv.FormatInt(report.Stats.ThresholdHits, 10), "")
	if report.Invalid > 0 {
		summary.AddWarning(strconv.Itoa(report.Invalid) + " записей не разобрано")
	}
	if report.Stats.Failures > 0 {
		summary.AddWarning(strconv.FormatInt(report.Stats.Failures, 10) + " внутренних сбоев обработки")
	}
	return report, summary, err
}

func readLines(ctx context.Context, in io.Reader, out chan<- []byte, errc chan<- error) {
	defer close(out)
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		line := append([]byte(nil), sc.Bytes()...)
		select {
		case out <- line:
		case <-ctx.Done():
			errc <- nil
			return
		}
	}
	errc <- sc.Err()
}

// handleLine обрабатывает одну запись и возвращает следующее действие
// для ошибок; для остальных записей — ActionContinue.
func handleLine(ctx context.Context, app *di.App, report *serviceReport, line []byte) errormanager.Action {
	p, err := parseLine(line)
	switch {
	case errors.Is(err, errEmptyLine):
		return errormanager.ActionContinue
	case err != nil:
		report.Invalid++
		app.Logger.Warn("запись пропущена", slog.String("error", err.Error()))
		return errormanager.ActionContinue
	case p.action != nil:
		report.Actions++
		app.Crash.TrackAction(*p.action)
		return errormanager.ActionContinue
	}

	report.Received++
	res := app.Manager.HandleError(ctx, p.err)
	report.NextAction[res.NextAction]++
	if res.Recovered {
		report.Recovered++
	}
	return res.NextAction
}

// watchRequests журналирует запросы действий к хост-приложению и передаёт
// первый ShutdownRequired в shutdown.
func watchRequests(bus *eventbus.Bus, log logging.Logger, report *serviceReport, shutdown chan<- eventbus.ActionRequest) (stop func()) {
	types := []eventbus.Type{
		eventbus.ShutdownRequired,
		eventbus.RestartRequired,
		eventbus.SafeModeRequired,
		eventbus.UserIntervention,
		eventbus.ThresholdExceeded,
		eventbus.AlertTriggered,
	}
	// report.Requests пишет только горутина доставки; читать его можно после stop.
	cancel := bus.SubscribeFunc(func(evt eventbus.Event) {
		req, _ := evt.Payload.(eventbus.ActionRequest)
		report.Requests[evt.Type]++
		log.Info("запрос действия",
			slog.String("event", string(evt.Type)),
			slog.String("source", evt.Source),
			slog.String("action", req.Action),
			slog.String("error_id", req.ErrorID),
			slog.String("reason", req.Reason),
		)
		if evt.Type == eventbus.ShutdownRequired {
			select {
			case shutdown <- req:
			default:
			}
		}
	}, types...)

	var once sync.Once
	return func() { once.Do(cancel) }
}

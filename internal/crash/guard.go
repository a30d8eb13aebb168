package crash

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/Kargones/errmgr/internal/pkg/apperrors"
	"github.com/Kargones/errmgr/internal/pkg/eventbus"
)

// terminationSignals — сигналы, после которых процесс должен завершиться.
var terminationSignals = []os.Signal{syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP, syscall.SIGQUIT}

func panicError(v any, source string) *apperrors.ApplicationError {
	cause, ok := v.(error)
	if !ok {
		cause = fmt.Errorf("%v", v)
	}
	return apperrors.New(apperrors.CodeSystemProcessCrashed,
		fmt.Sprintf("panic в %s: %v", source, v),
		apperrors.WithCause(apperrors.FromError(cause)),
		apperrors.WithComponent("crash", source),
		apperrors.WithTechnicalDetails(string(debug.Stack())),
	)
}

// RecoverPanic используется через defer в главной горутине: создаёт отчёт
// и повторно возбуждает panic.
//
//	defer reporter.RecoverPanic(ctx)
func (r *Reporter) RecoverPanic(ctx context.Context) {
	v := recover()
	if v == nil {
		return
	}
	if _, err := r.ReportWithDetails(ctx, panicError(v, SourcePanic), Details{Source: SourcePanic}); err != nil {
		r.log.Error("не удалось создать отчёт о panic", "error", err.Error())
	}
	panic(v)
}

// Go запускает fn в отдельной горутине. Panic в fn перехватывается,
// по нему создаётся отчёт, процесс продолжает работу.
func (r *Reporter) Go(ctx context.Context, fn func(ctx context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if v := recover(); v != nil {
				if _, err := r.ReportWithDetails(ctx, panicError(v, SourceAsync), Details{Source: SourceAsync}); err != nil {
					r.log.Error("не удалось создать отчёт о panic", "error", err.Error())
				}
			}
		}()
		fn(ctx)
	}()
}

// WatchProcess ожидает завершения запущенного дочернего процесса. При
// ненулевом коде выхода или завершении сигналом создаётся отчёт.
// Возвращает идентификатор отчёта (пусто при штатном завершении) и
// ошибку cmd.Wait.
func (r *Reporter) WatchProcess(ctx context.Context, cmd *exec.Cmd) (string, error) {
	waitErr := cmd.Wait()
	if waitErr == nil {
		return "", nil
	}

	d := Details{Source: SourceProcess, SkipDump: true}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			d.Signal = ws.Signal().String()
		} else {
			code := exitErr.ExitCode()
			d.ExitCode = &code
		}
	}

	appErr := apperrors.New(apperrors.CodeSystemProcessCrashed,
		fmt.Sprintf("дочерний процесс %s завершился аварийно", cmd.Path),
		apperrors.WithCause(apperrors.FromError(waitErr)),
		apperrors.WithComponent("crash", "WatchProcess"),
	)
	id, err := r.ReportWithDetails(ctx, appErr, d)
	if err != nil {
		return "", errors.Join(waitErr, err)
	}
	return id, waitErr
}

// WatchSignals подписывается на сигналы завершения. Для каждого сигнала
// создаётся отчёт, публикуется ShutdownRequired и сигнал передаётся в
// возвращаемый канал. Подписка снимается при отмене ctx.
func (r *Reporter) WatchSignals(ctx context.Context) <-chan os.Signal {
	in := make(chan os.Signal, 1)
	out := make(chan os.Signal, 1)
	signal.Notify(in, terminationSignals...)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(out)
		defer signal.Stop(in)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-in:
				r.handleSignal(ctx, sig)
				select {
				case out <- sig:
				default:
				}
			}
		}
	}()
	return out
}

func (r *Reporter) handleSignal(ctx context.Context, sig os.Signal) {
	appErr := apperrors.New(apperrors.CodeSystemSignalReceived,
		fmt.Sprintf("получен сигнал %s", sig),
		apperrors.WithComponent("crash", "WatchSignals"),
	)
	if _, err := r.ReportWithDetails(ctx, appErr, Details{Source: SourceSignal, Signal: sig.String(), SkipDump: true}); err != nil {
		r.log.Error("не удалось создать отчёт о сигнале", "error", err.Error())
	}
	r.publisher.Publish(eventbus.Event{
		Type:   eventbus.ShutdownRequired,
		Source: "crash",
		Payload: eventbus.ActionRequest{
			Action:  "shutdown",
			ErrorID: appErr.ID,
			Code:    string(appErr.Code),
			Reason:  "signal " + sig.String(),
		},
	})
}

package errormanager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Kargones/errmgr/internal/errorlog"
	"github.com/Kargones/errmgr/internal/pkg/apperrors"
	"github.com/Kargones/errmgr/internal/pkg/eventbus"
	"github.com/Kargones/errmgr/internal/pkg/logging"
	"github.com/Kargones/errmgr/internal/pkg/metrics"
	"github.com/Kargones/errmgr/internal/pkg/tracing"
)

type job struct {
	ctx  context.Context
	err  *apperrors.ApplicationError
	done chan Result
	// retry — повторная обработка уже учтённой ошибки: счётчики порогов
	// и история аналитики её не видят.
	retry bool
}

type pendingDialog struct {
	dialog Dialog
	err    *apperrors.ApplicationError
}

// Manager — Error Manager. Ошибки обрабатываются по одной в порядке
// поступления единственной worker-горутиной.
type Manager struct {
	cfg       Config
	recoverer Recoverer
	errorLog  ErrorLogger
	reporter  CrashReporter
	analytics AnalyticsRecorder
	publisher eventbus.Publisher
	metrics   metrics.Collector
	log       logging.Logger

	mu          sync.Mutex
	now         func() time.Time
	filter      Filter
	transformer Transformer
	handlers    []Handler
	thresholds  *thresholds
	dialogs     map[string]pendingDialog
	dialogOrder []string
	retries     map[string]int
	stats       Stats

	sendMu sync.RWMutex
	closed bool
	queue  chan job
	done   chan struct{}
}

// New создаёт Manager и запускает worker. Любой из коллабораторов может
// быть nil: соответствующий шаг пропускается.
func New(
	cfg Config,
	recoverer Recoverer,
	errorLog ErrorLogger,
	reporter CrashReporter,
	analytics AnalyticsRecorder,
	pub eventbus.Publisher,
	m metrics.Collector,
	log logging.Logger,
) (*Manager, error) {
	cfg.applyDefaults()
	if log == nil {
		log = logging.NewNopLogger()
	}
	if m == nil {
		m = metrics.NewNopCollector()
	}
	if pub == nil {
		pub = eventbus.Nop{}
	}

	mgr := &Manager{
		cfg:         cfg,
		recoverer:   recoverer,
		errorLog:    errorLog,
		reporter:    reporter,
		analytics:   analytics,
		publisher:   pub,
		metrics:     m,
		log:         log.With("component", "errormanager"),
		now:         time.Now,
		filter:      NewDefaultFilter(),
		transformer: TransformerFunc(defaultTransform),
		thresholds:  newThresholds(),
		dialogs:     make(map[string]pendingDialog),
		retries:     make(map[string]int),
		queue:       make(chan job, cfg.QueueSize),
		done:        make(chan struct{}),
	}
	for _, th := range cfg.Thresholds {
		if err := mgr.AddThreshold(th); err != nil {
			return nil, err
		}
	}
	go mgr.run()
	return mgr, nil
}

func defaultTransform(ctx context.Context, err error) *apperrors.ApplicationError {
	return apperrors.FromError(err, apperrors.WithCorrelationID(tracing.CorrelationID(ctx)))
}

// SetNowFunc устанавливает функцию получения текущего времени (для тестов).
func (m *Manager) SetNowFunc(fn func() time.Time) {
	m.mu.Lock()
	m.now = fn
	m.mu.Unlock()
}

// SetFilter заменяет фильтр шагов обработки.
func (m *Manager) SetFilter(f Filter) {
	m.mu.Lock()
	m.filter = f
	m.mu.Unlock()
}

// SetTransformer заменяет нормализацию сбоев.
func (m *Manager) SetTransformer(t Transformer) {
	m.mu.Lock()
	m.transformer = t
	m.mu.Unlock()
}

// AddHandler регистрирует обработчик. Обработчики упорядочены по убыванию Priority.
func (m *Manager) AddHandler(h Handler) error {
	if h.ID == "" || h.Handle == nil {
		return ErrInvalidHandler
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.handlers {
		if existing.ID == h.ID {
			return fmt.Errorf("%w: дубликат %s", ErrInvalidHandler, h.ID)
		}
	}
	m.handlers = append(m.handlers, h)
	sort.SliceStable(m.handlers, func(i, j int) bool { return m.handlers[i].Priority > m.handlers[j].Priority })
	return nil
}

// RemoveHandler удаляет обработчик. Возвращает false, если его не было.
func (m *Manager) RemoveHandler(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, h := range m.handlers {
		if h.ID == id {
			m.handlers = append(m.handlers[:i], m.handlers[i+1:]...)
			return true
		}
	}
	return false
}

// AddThreshold регистрирует порог.
func (m *Manager) AddThreshold(t Threshold) error {
	if err := t.Validate(); err != nil {
		return err
	}
	action, _ := ParseThresholdAction(string(t.Action))
	t.Action = action
	m.mu.Lock()
	m.thresholds.add(t)
	m.mu.Unlock()
	return nil
}

// Thresholds возвращает зарегистрированные пороги.
func (m *Manager) Thresholds() []Threshold {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Threshold(nil), m.thresholds.list...)
}

// Counters возвращает счётчики вхождений (code, category).
func (m *Manager) Counters() []Counter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.thresholds.snapshot()
}

// HandleError нормализует err и ждёт его обработки в очереди. При отмене
// ctx до завершения обработки возвращается результат без флагов, а сама
// обработка продолжается. HandleError не паникует и не возвращает ошибок.
func (m *Manager) HandleError(ctx context.Context, err error) Result {
	if err == nil {
		return Result{NextAction: ActionContinue}
	}
	e := m.normalize(ctx, err)
	res := Result{ErrorID: e.ID, NextAction: ActionContinue}

	if !m.ask("ShouldProcess", e, func(f Filter) bool { return f.ShouldProcess(e) }) {
		m.mu.Lock()
		m.stats.Skipped++
		m.mu.Unlock()
		return res
	}

	j := job{ctx: context.WithoutCancel(ctx), err: e, done: make(chan Result, 1)}
	if qerr := m.enqueue(ctx, j); qerr != nil {
		m.log.Warn("ошибка не поставлена в очередь", "error_id", e.ID, "error", qerr.Error())
		return res
	}
	select {
	case r := <-j.done:
		return r
	case <-ctx.Done():
		return res
	}
}

// Submit ставит ошибку в очередь без ожидания результата.
func (m *Manager) Submit(err error) error {
	if err == nil {
		return nil
	}
	ctx := context.Background()
	e := m.normalize(ctx, err)
	return m.enqueue(ctx, job{ctx: ctx, err: e})
}

func (m *Manager) normalize(ctx context.Context, err error) (e *apperrors.ApplicationError) {
	m.mu.Lock()
	t := m.transformer
	m.mu.Unlock()

	defer func() {
		if v := recover(); v != nil {
			m.log.Warn("panic в Transformer", "panic", fmt.Sprint(v))
			e = apperrors.FromError(err)
		}
	}()
	if t != nil {
		e = t.Transform(ctx, err)
	}
	if e == nil {
		e = apperrors.FromError(err)
	}
	return e
}

// ask вызывает предикат фильтра. Panic в фильтре считается отказом.
func (m *Manager) ask(name string, e *apperrors.ApplicationError, fn func(Filter) bool) (ok bool) {
	m.mu.Lock()
	f := m.filter
	m.mu.Unlock()
	if f == nil {
		return true
	}
	defer func() {
		if v := recover(); v != nil {
			m.log.Warn("panic в фильтре", "predicate", name, "error_id", e.ID, "panic", fmt.Sprint(v))
			ok = false
		}
	}()
	return fn(f)
}

func (m *Manager) enqueue(ctx context.Context, j job) error {
	m.sendMu.RLock()
	defer m.sendMu.RUnlock()
	if m.closed {
		return ErrQueueClosed
	}
	select {
	case m.queue <- j:
		m.metrics.SetQueueDepth(len(m.queue))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) run() {
	defer close(m.done)
	for j := range m.queue {
		m.metrics.SetQueueDepth(len(m.queue))
		res := m.process(j.ctx, j.err, j.retry)
		if j.done != nil {
			j.done <- res
		}
	}
}

// process проводит одну ошибку через все шаги. Panic на любом шаге
// превращается в NextAction = shutdown.
func (m *Manager) process(ctx context.Context, e *apperrors.ApplicationError, retry bool) (res Result) {
	ctx, span := tracing.StartSpan(ctx, "errormanager", "errormanager.handle",
		attribute.String("error.code", string(e.Code)),
		attribute.String("error.severity", e.Severity.String()),
	)
	defer func() { tracing.EndSpan(span, nil) }()

	res = Result{ErrorID: e.ID, NextAction: ActionContinue}
	defer func() {
		if v := recover(); v != nil {
			m.log.Error("сбой при обработке ошибки", "error_id", e.ID, "error_code", e.Code, "panic", fmt.Sprint(v))
			m.mu.Lock()
			m.stats.Failures++
			m.mu.Unlock()
			res.NextAction = ActionShutdown
			m.dispatch(e, ActionShutdown, "internal failure")
			m.metrics.RecordErrorHandled(string(e.Category), e.Severity.String(), "failed")
		}
	}()

	m.publisher.Publish(eventbus.Event{Type: eventbus.ErrorOccurred, Source: "errormanager", Payload: e})
	next := ActionContinue
	if !retry {
		if m.analytics != nil {
			m.analytics.RecordError(e)
		}
		next = m.evaluateThresholds(e)
	}

	recovered, handlerNext := m.runHandlers(ctx, e)
	next = escalate(next, handlerNext)
	res.Recovered = recovered

	if !res.Recovered && m.recoverer != nil {
		if s, ok := m.recoverer.Applicable(e); ok {
			res.Recovered = m.recoverer.RunSession(ctx, s, e).Recovered
		}
	}
	if res.Recovered && m.analytics != nil {
		m.analytics.RecordRecovery(e.ID)
	}

	if m.errorLog != nil && m.ask("ShouldLog", e, func(f Filter) bool { return f.ShouldLog(e) }) {
		logged, escalation := m.writeLog(e)
		res.Logged = logged
		next = escalate(next, escalation)
	}

	if m.reporter != nil && m.ask("ShouldReport", e, func(f Filter) bool { return f.ShouldReport(e) }) {
		id, err := m.reporter.Report(ctx, e)
		if err != nil {
			m.log.Warn("не удалось создать отчёт об ошибке", "error_id", e.ID, "error", err.Error())
		} else {
			res.Reported, res.ReportID = true, id
		}
	}

	if m.ask("ShouldNotify", e, func(f Filter) bool { return f.ShouldNotify(e) }) {
		d := m.showDialog(e)
		res.UserNotified, res.DialogID = true, d.ID
	}

	if e.Severity.AtLeast(apperrors.SeverityCritical) && !res.Recovered {
		next = escalate(next, ActionUserIntervention)
	}
	res.NextAction = next
	res.Handled = true

	m.dispatch(e, next, "")
	m.record(e, res)
	m.publisher.Publish(eventbus.Event{Type: eventbus.ErrorHandled, Source: "errormanager", Payload: res})
	return res
}

func (m *Manager) evaluateThresholds(e *apperrors.ApplicationError) Action {
	m.mu.Lock()
	hits := m.thresholds.observe(e, m.now())
	m.stats.ThresholdHits += int64(len(hits))
	m.mu.Unlock()

	next := ActionContinue
	for _, hit := range hits {
		m.metrics.RecordThresholdHit(string(hit.Category), string(hit.Threshold.Action))
		m.log.Warn("достигнут порог ошибок",
			"error_code", hit.Code,
			"category", hit.Category,
			"count", hit.Count,
			"window", hit.Threshold.Window.String(),
			"action", hit.Threshold.Action,
		)
		m.publisher.Publish(eventbus.Event{Type: eventbus.ThresholdExceeded, Source: "errormanager", Payload: hit})
		next = escalate(next, hit.Threshold.Action.next())
	}
	return next
}

// runHandlers вызывает обработчики по приоритету до первого, вернувшего Handled.
func (m *Manager) runHandlers(ctx context.Context, e *apperrors.ApplicationError) (recovered bool, next Action) {
	m.mu.Lock()
	handlers := append([]Handler(nil), m.handlers...)
	m.mu.Unlock()

	next = ActionContinue
	for i := range handlers {
		out, err := m.callHandler(ctx, &handlers[i], e)
		if err != nil {
			m.log.Warn("ошибка обработчика", "handler", handlers[i].ID, "error_id", e.ID, "error", err.Error())
			continue
		}
		if out.Handled {
			if out.NextAction != "" {
				next = out.NextAction
			}
			return out.Recovered, next
		}
	}
	return false, next
}

func (m *Manager) callHandler(ctx context.Context, h *Handler, e *apperrors.ApplicationError) (out HandlerOutcome, err error) {
	defer func() {
		if v := recover(); v != nil {
			out, err = HandlerOutcome{}, fmt.Errorf("panic: %v", v)
		}
	}()
	if h.CanHandle != nil && !h.CanHandle(e) {
		return HandlerOutcome{}, nil
	}
	return h.Handle(ctx, e)
}

// writeLog пишет ошибку в журнал. Уровень ниже порога журнала не считается
// сбоем; прочие ошибки записи, кроме закрытого журнала, требуют остановки.
func (m *Manager) writeLog(e *apperrors.ApplicationError) (bool, Action) {
	_, err := m.errorLog.Log(e)
	switch {
	case err == nil:
		return true, ActionContinue
	case errors.Is(err, errorlog.ErrBelowLevel):
		return false, ActionContinue
	case errors.Is(err, errorlog.ErrClosed):
		m.log.Warn("журнал ошибок закрыт", "error_id", e.ID)
		return false, ActionContinue
	default:
		m.log.Error("не удалось записать ошибку в журнал", "error_id", e.ID, "error", err.Error())
		return false, ActionShutdown
	}
}

func (m *Manager) showDialog(e *apperrors.ApplicationError) Dialog {
	d := buildDialog(e, m.cfg)

	m.mu.Lock()
	m.dialogs[d.ID] = pendingDialog{dialog: d, err: e}
	m.dialogOrder = append(m.dialogOrder, d.ID)
	for len(m.dialogOrder) > m.cfg.MaxPendingDialogs {
		delete(m.dialogs, m.dialogOrder[0])
		m.dialogOrder = m.dialogOrder[1:]
	}
	m.mu.Unlock()

	m.publisher.Publish(eventbus.Event{Type: eventbus.DialogShown, Source: "errormanager", Payload: d})
	return d
}

// dispatch публикует событие следующего действия. Сам Manager процесс не
// перезапускает и не останавливает.
func (m *Manager) dispatch(e *apperrors.ApplicationError, next Action, reason string) {
	req := eventbus.ActionRequest{
		Action:    string(next),
		Component: e.Context.Component,
		ErrorID:   e.ID,
		Code:      string(e.Code),
		Category:  string(e.Category),
		Reason:    reason,
	}
	if next != ActionRetry {
		m.mu.Lock()
		delete(m.retries, e.ID)
		m.mu.Unlock()
	}

	switch next {
	case ActionRetry:
		m.scheduleRetry(e, req)
	case ActionRestart:
		req.Scope = "component"
		m.publisher.Publish(eventbus.Event{Type: eventbus.RestartRequired, Source: "errormanager", Payload: req})
	case ActionShutdown:
		m.publisher.Publish(eventbus.Event{Type: eventbus.ShutdownRequired, Source: "errormanager", Payload: req})
	case ActionSafeMode:
		req.Mode = "safe"
		m.publisher.Publish(eventbus.Event{Type: eventbus.SafeModeRequired, Source: "errormanager", Payload: req})
	case ActionUserIntervention:
		m.publisher.Publish(eventbus.Event{Type: eventbus.UserIntervention, Source: "errormanager", Payload: req})
	}
}

func (m *Manager) scheduleRetry(e *apperrors.ApplicationError, req eventbus.ActionRequest) {
	m.mu.Lock()
	if m.retries[e.ID] >= m.cfg.MaxRetries {
		delete(m.retries, e.ID)
		m.mu.Unlock()
		m.log.Warn("исчерпан лимит повторов", "error_id", e.ID, "max_retries", m.cfg.MaxRetries)
		return
	}
	m.retries[e.ID]++
	m.stats.Retries++
	m.mu.Unlock()

	m.publisher.Publish(eventbus.Event{Type: eventbus.RetryScheduled, Source: "errormanager", Payload: req})
	time.AfterFunc(m.cfg.RetryDelay, func() {
		if err := m.enqueue(context.Background(), job{ctx: context.Background(), err: e, retry: true}); err != nil {
			m.log.Debug("повтор не поставлен в очередь", "error_id", e.ID, "error", err.Error())
		}
	})
}

func (m *Manager) record(e *apperrors.ApplicationError, res Result) {
	m.mu.Lock()
	m.stats.Processed++
	if res.Handled {
		m.stats.Handled++
	}
	if res.Recovered {
		m.stats.Recovered++
	}
	if res.Logged {
		m.stats.Logged++
	}
	if res.Reported {
		m.stats.Reported++
	}
	if res.UserNotified {
		m.stats.Notified++
	}
	m.mu.Unlock()

	outcome := string(res.NextAction)
	if res.Recovered {
		outcome = "recovered"
	}
	m.metrics.RecordErrorHandled(string(e.Category), e.Severity.String(), outcome)
	m.log.Debug("ошибка обработана",
		"error_id", e.ID,
		"error_code", e.Code,
		"recovered", res.Recovered,
		"logged", res.Logged,
		"reported", res.Reported,
		"notified", res.UserNotified,
		"next_action", res.NextAction,
	)
}

// ResolveDialog применяет выбор пользователя в диалоге: retry ставит
// ошибку в очередь повторно, restart запрашивает перезапуск, report
// создаёт отчёт об аварии, dismiss закрывает диалог.
func (m *Manager) ResolveDialog(ctx context.Context, dialogID, actionID string) error {
	m.mu.Lock()
	p, ok := m.dialogs[dialogID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDialogNotFound, dialogID)
	}
	if !p.dialog.HasAction(actionID) {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownDialogAction, actionID)
	}
	delete(m.dialogs, dialogID)
	for i, id := range m.dialogOrder {
		if id == dialogID {
			m.dialogOrder = append(m.dialogOrder[:i], m.dialogOrder[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	m.publisher.Publish(eventbus.Event{
		Type:    eventbus.DialogResolved,
		Source:  "errormanager",
		Payload: DialogResolution{DialogID: dialogID, ErrorID: p.err.ID, Action: actionID},
	})

	switch actionID {
	case DialogRetry:
		return m.enqueue(ctx, job{ctx: context.WithoutCancel(ctx), err: p.err, retry: true})
	case DialogRestart:
		m.dispatch(p.err, ActionRestart, "user request")
	case DialogReport:
		if m.reporter == nil {
			return nil
		}
		if _, err := m.reporter.Report(ctx, p.err); err != nil {
			return fmt.Errorf("errormanager: отчёт по запросу пользователя: %w", err)
		}
	}
	return nil
}

// PendingDialogs возвращает неразрешённые диалоги в порядке показа.
func (m *Manager) PendingDialogs() []Dialog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Dialog, 0, len(m.dialogOrder))
	for _, id := range m.dialogOrder {
		out = append(out, m.dialogs[id].dialog)
	}
	return out
}

// Stats возвращает счётчики.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.QueueDepth = len(m.queue)
	s.PendingDialog = len(m.dialogs)
	return s
}

// Close перестаёт принимать ошибки, дожидается обработки очереди и
// останавливает worker.
func (m *Manager) Close() error {
	m.sendMu.Lock()
	if m.closed {
		m.sendMu.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	m.sendMu.Unlock()
	<-m.done
	return nil
}

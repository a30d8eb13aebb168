package recovery

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"

	"github.com/Kargones/errmgr/internal/pkg/apperrors"
	"github.com/Kargones/errmgr/internal/pkg/logging"
	"github.com/Kargones/errmgr/internal/pkg/metrics"
	"github.com/Kargones/errmgr/internal/pkg/tracing"
)

// Значения по умолчанию.
const (
	DefaultMaxConcurrent = 5
	DefaultHistorySize   = 10
)

// Config — настройки Recovery Manager.
type Config struct {
	// MaxConcurrent — лимит одновременных сессий AttemptRecovery.
	MaxConcurrent int
	// HistorySize — сколько завершённых сессий хранить на пару код+категория.
	HistorySize int
}

// Manager — Recovery Manager.
type Manager struct {
	cfg     Config
	log     logging.Logger
	metrics metrics.Collector
	sem     *semaphore.Weighted

	mu         sync.RWMutex
	strategies map[apperrors.Code]Strategy
	actions    map[Type][]Action
	active     map[string]*Context
	history    map[string][]Context
	stats      Stats
}

// NewManager создаёт Recovery Manager без стратегий и действий.
// Стандартный набор регистрирует RegisterDefaults.
func NewManager(cfg Config, log logging.Logger, m metrics.Collector) *Manager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	if m == nil {
		m = metrics.NewNopCollector()
	}
	return &Manager{
		cfg:        cfg,
		log:        log.With("component", "recovery"),
		metrics:    m,
		sem:        semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		strategies: make(map[apperrors.Code]Strategy),
		actions:    make(map[Type][]Action),
		active:     make(map[string]*Context),
		history:    make(map[string][]Context),
	}
}

// RegisterStrategy регистрирует (или заменяет) стратегию для кода.
func (m *Manager) RegisterStrategy(s Strategy) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.strategies[s.Code] = s
	m.mu.Unlock()
	m.log.Debug("стратегия восстановления зарегистрирована", "code", s.Code, "max_attempts", s.MaxAttempts)
	return nil
}

// UnregisterStrategy удаляет стратегию. Возвращает false если её не было.
func (m *Manager) UnregisterStrategy(code apperrors.Code) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.strategies[code]
	delete(m.strategies, code)
	return ok
}

// Strategy возвращает стратегию для кода.
func (m *Manager) Strategy(code apperrors.Code) (Strategy, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.strategies[code]
	return s, ok
}

// Strategies возвращает коды зарегистрированных стратегий в алфавитном порядке.
func (m *Manager) Strategies() []apperrors.Code {
	m.mu.RLock()
	codes := make([]apperrors.Code, 0, len(m.strategies))
	for code := range m.strategies {
		codes = append(codes, code)
	}
	m.mu.RUnlock()
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// Applicable возвращает стратегию для e, если она зарегистрирована и её
// Condition истинно. Panic в Condition считается ложным условием.
func (m *Manager) Applicable(e *apperrors.ApplicationError) (Strategy, bool) {
	if e == nil {
		return Strategy{}, false
	}
	s, ok := m.Strategy(e.Code)
	if !ok || !m.applies(&s, e) {
		return Strategy{}, false
	}
	return s, true
}

// AttemptRecovery ищет стратегию по коду ошибки и выполняет сессию
// восстановления. Возвращает false без попыток, если стратегии нет,
// Condition ложно или достигнут лимит одновременных сессий.
func (m *Manager) AttemptRecovery(ctx context.Context, e *apperrors.ApplicationError) bool {
	s, ok := m.Applicable(e)
	if !ok {
		return false
	}
	if !m.sem.TryAcquire(1) {
		m.mu.Lock()
		m.stats.Rejected++
		m.mu.Unlock()
		m.metrics.RecordRecoveryRejected()
		m.log.Warn("достигнут лимит одновременных сессий восстановления",
			"code", e.Code, "limit", m.cfg.MaxConcurrent)
		return false
	}
	defer m.sem.Release(1)
	return m.RunSession(ctx, s, e).Recovered
}

func (m *Manager) applies(s *Strategy, e *apperrors.ApplicationError) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Warn("panic в условии стратегии", "code", s.Code, "panic", fmt.Sprint(r))
			ok = false
		}
	}()
	return s.Applies(e)
}

// RunSession выполняет цикл попыток стратегии для одной ошибки. Condition
// и лимит одновременных сессий не проверяются: это путь локального
// восстановления Error Manager. Попытки строго последовательны.
func (m *Manager) RunSession(ctx context.Context, s Strategy, e *apperrors.ApplicationError) Result {
	if e == nil || s.Action == nil || s.MaxAttempts <= 0 {
		return Result{}
	}
	ctx, span := tracing.StartSpan(ctx, "recovery", "recovery.session",
		attribute.String("error.code", string(e.Code)),
		attribute.Int("recovery.max_attempts", s.MaxAttempts),
	)

	start := time.Now()
	rc := &Context{
		SessionID:     uuid.NewString(),
		ErrorID:       e.ID,
		Code:          e.Code,
		Category:      e.Category,
		TotalAttempts: s.MaxAttempts,
		StartTime:     start,
		Outcome:       OutcomeRunning,
	}
	m.mu.Lock()
	m.active[rc.SessionID] = rc
	m.stats.Sessions++
	m.mu.Unlock()

	var deadline time.Time
	if s.Timeout > 0 {
		deadline = start.Add(s.Timeout)
	}

	outcome := OutcomeFailed
	for attempt := 1; attempt <= s.MaxAttempts; attempt++ {
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			outcome = OutcomeTimedOut
			break
		}
		if ctx.Err() != nil {
			outcome = OutcomeCancelled
			break
		}

		res := m.runAttempt(ctx, &s, e, attempt, deadline)
		m.mu.Lock()
		rc.AttemptNumber = attempt
		rc.LastAttemptTime = res.Started
		rc.PreviousResults = append(rc.PreviousResults, res)
		m.stats.Attempts++
		m.mu.Unlock()

		if res.Success {
			outcome = OutcomeRecovered
			break
		}
		m.log.Debug("попытка восстановления неудачна",
			"code", e.Code, "attempt", attempt, "max_attempts", s.MaxAttempts, "error", res.Error)

		if attempt < s.MaxAttempts && s.Delay > 0 {
			if !wait(ctx, s.Delay, deadline) {
				outcome = OutcomeCancelled
				break
			}
		}
	}
	if outcome == OutcomeFailed && !deadline.IsZero() && !time.Now().Before(deadline) {
		outcome = OutcomeTimedOut
	}

	recovered := outcome == OutcomeRecovered
	var fallbackErr error
	if !recovered && s.Fallback != nil {
		fallbackErr = m.runFallback(ctx, &s, e)
	}

	m.finish(rc, outcome, s.Fallback != nil && !recovered, fallbackErr)
	duration := time.Since(start)
	m.metrics.RecordRecoverySession(string(e.Code), recovered, duration)
	span.SetAttributes(
		attribute.String("recovery.outcome", string(outcome)),
		attribute.Int("recovery.attempts", rc.AttemptNumber),
	)
	tracing.EndSpan(span, nil)

	m.log.Info("сессия восстановления завершена",
		"code", e.Code,
		"error_id", e.ID,
		"outcome", outcome,
		"attempts", rc.AttemptNumber,
		"duration_ms", duration.Milliseconds(),
	)

	m.mu.RLock()
	snapshot := rc.clone()
	m.mu.RUnlock()
	return Result{Recovered: recovered, Context: snapshot}
}

type attemptOutcome struct {
	ok  bool
	err error
}

// runAttempt вызывает Action с ограничением по оставшемуся времени сессии.
// Panic в действии считается неудачной попыткой.
func (m *Manager) runAttempt(ctx context.Context, s *Strategy, e *apperrors.ApplicationError, attempt int, deadline time.Time) AttemptResult {
	started := time.Now()
	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if !deadline.IsZero() {
		callCtx, cancel = context.WithDeadline(ctx, deadline)
	}
	defer cancel()

	ch := make(chan attemptOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- attemptOutcome{err: fmt.Errorf("recovery: panic в действии: %v", r)}
			}
		}()
		ok, err := s.Action(callCtx, e)
		ch <- attemptOutcome{ok: ok, err: err}
	}()

	var out attemptOutcome
	select {
	case out = <-ch:
	case <-callCtx.Done():
		if ctx.Err() != nil {
			out.err = ctx.Err()
		} else {
			out.err = ErrAttemptTimeout
		}
	}

	res := AttemptResult{
		Attempt:  attempt,
		Success:  out.ok && out.err == nil,
		Started:  started,
		Duration: time.Since(started),
	}
	if out.err != nil {
		res.Error = out.err.Error()
	}
	return res
}

func (m *Manager) runFallback(ctx context.Context, s *Strategy, e *apperrors.ApplicationError) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovery: panic в fallback: %v", r)
		}
		if err != nil {
			m.log.Warn("fallback восстановления завершился ошибкой", "code", s.Code, "error", err.Error())
		}
	}()
	return s.Fallback(context.WithoutCancel(ctx), e)
}

func (m *Manager) finish(rc *Context, outcome Outcome, fallbackRun bool, fallbackErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rc.Outcome = outcome
	rc.EndTime = time.Now()
	rc.FallbackRun = fallbackRun
	if fallbackErr != nil {
		rc.FallbackError = fallbackErr.Error()
	}
	delete(m.active, rc.SessionID)

	key := historyKey(rc.Code, rc.Category)
	h := append(m.history[key], rc.clone())
	if len(h) > m.cfg.HistorySize {
		h = h[len(h)-m.cfg.HistorySize:]
	}
	m.history[key] = h

	switch outcome {
	case OutcomeRecovered:
		m.stats.Recovered++
	case OutcomeTimedOut:
		m.stats.TimedOut++
		m.stats.Failed++
	default:
		m.stats.Failed++
	}
}

// wait ждёт d, но не дольше deadline. false — контекст отменён.
func wait(ctx context.Context, d time.Duration, deadline time.Time) bool {
	if !deadline.IsZero() {
		if remaining := time.Until(deadline); remaining < d {
			d = remaining
		}
	}
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func historyKey(code apperrors.Code, category apperrors.Category) string {
	return string(code) + "|" + string(category)
}

// ActiveSessions возвращает снимок выполняющихся сессий.
func (m *Manager) ActiveSessions() []Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Context, 0, len(m.active))
	for _, rc := range m.active {
		out = append(out, rc.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// History возвращает завершённые сессии для пары код+категория, от старых к новым.
func (m *Manager) History(code apperrors.Code, category apperrors.Category) []Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h := m.history[historyKey(code, category)]
	out := make([]Context, len(h))
	for i := range h {
		out[i] = h[i].clone()
	}
	return out
}

// Stats возвращает счётчики.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.stats
	s.Active = len(m.active)
	s.Strategies = len(m.strategies)
	for _, list := range m.actions {
		s.Actions += len(list)
	}
	return s
}

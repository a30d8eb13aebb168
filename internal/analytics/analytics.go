// Package analytics реализует Error Analytics: ограниченную историю ошибок,
// кешируемые агрегированные метрики и правила алертинга с cooldown.
package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Kargones/errmgr/internal/errorlog"
	"github.com/Kargones/errmgr/internal/pkg/alerting"
	"github.com/Kargones/errmgr/internal/pkg/apperrors"
	"github.com/Kargones/errmgr/internal/pkg/eventbus"
	"github.com/Kargones/errmgr/internal/pkg/logging"
	"github.com/Kargones/errmgr/internal/pkg/metrics"
)

// Значения по умолчанию.
const (
	DefaultHistorySize         = 10000
	DefaultCacheTTL            = 60 * time.Second
	DefaultAlertInterval       = 60 * time.Second
	DefaultEstimatedOperations = 1000
	DefaultTopN                = 10
	DefaultMemoryThreshold     = 512 << 20
	DefaultCPUThreshold        = 80.0
	DefaultSlowOperation       = 5 * time.Second
)

// Config — настройки Error Analytics.
type Config struct {
	// HistorySize — ёмкость кольцевого буфера истории.
	HistorySize int
	// CacheTTL — время жизни вычисленных метрик.
	CacheTTL time.Duration
	// AlertInterval — период проверки правил алертинга.
	AlertInterval time.Duration
	// EstimatedOperations — оценка числа операций компонента для расчёта надёжности.
	EstimatedOperations int
	// TopN — размер списка самых частых кодов.
	TopN int
	// MemoryThreshold — порог heap в байтах для счётчика влияния на производительность.
	MemoryThreshold uint64
	// CPUThreshold — порог загрузки CPU в процентах.
	CPUThreshold float64
	// SlowOperation — длительность операции, после которой она считается медленной.
	SlowOperation time.Duration
	// DisableDefaultRules отключает регистрацию правил по умолчанию.
	DisableDefaultRules bool
}

func (c *Config) applyDefaults() {
	if c.HistorySize <= 0 {
		c.HistorySize = DefaultHistorySize
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.AlertInterval <= 0 {
		c.AlertInterval = DefaultAlertInterval
	}
	if c.EstimatedOperations <= 0 {
		c.EstimatedOperations = DefaultEstimatedOperations
	}
	if c.TopN <= 0 {
		c.TopN = DefaultTopN
	}
	if c.MemoryThreshold == 0 {
		c.MemoryThreshold = DefaultMemoryThreshold
	}
	if c.CPUThreshold <= 0 {
		c.CPUThreshold = DefaultCPUThreshold
	}
	if c.SlowOperation <= 0 {
		c.SlowOperation = DefaultSlowOperation
	}
}

// TimeRange — интервал [From, To]. Нулевая граница не ограничивает интервал.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (r *TimeRange) contains(t time.Time) bool {
	if r == nil {
		return true
	}
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

func (r *TimeRange) key() string {
	if r == nil {
		return "*"
	}
	return fmt.Sprintf("%d-%d", r.From.UnixNano(), r.To.UnixNano())
}

// LogQuerier — источник записей журнала ошибок (*errorlog.Logger).
type LogQuerier interface {
	Query(ctx context.Context, f errorlog.Filter) (errorlog.QueryResult, error)
}

type cached struct {
	key      string
	metrics  *Metrics
	computed time.Time
}

// Analyzer — Error Analytics.
type Analyzer struct {
	cfg       Config
	log       logging.Logger
	metrics   metrics.Collector
	publisher eventbus.Publisher
	alerter   alerting.Alerter
	querier   LogQuerier
	now       func() time.Time

	mu        sync.Mutex
	ring      []*apperrors.ApplicationError
	head      int
	size      int
	recovered map[string]struct{}
	cache     *cached

	rulesMu sync.Mutex
	rules   []*Rule

	wake   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New создаёт Analyzer. querier и alerter могут быть nil.
func New(cfg Config, log logging.Logger, m metrics.Collector, pub eventbus.Publisher, alerter alerting.Alerter, querier LogQuerier) *Analyzer {
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
	if alerter == nil {
		alerter = alerting.NewNopAlerter()
	}
	a := &Analyzer{
		cfg:       cfg,
		log:       log.With("component", "analytics"),
		metrics:   m,
		publisher: pub,
		alerter:   alerter,
		querier:   querier,
		now:       time.Now,
		ring:      make([]*apperrors.ApplicationError, cfg.HistorySize),
		recovered: make(map[string]struct{}),
		wake:      make(chan struct{}, 1),
	}
	if !cfg.DisableDefaultRules {
		for _, r := range DefaultRules() {
			_ = a.AddAlertRule(r)
		}
	}
	return a
}

// SetNowFunc устанавливает функцию получения текущего времени (для тестов).
func (a *Analyzer) SetNowFunc(fn func() time.Time) {
	a.mu.Lock()
	a.now = fn
	a.mu.Unlock()
}

func (a *Analyzer) clock() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.now()
}

// RecordError добавляет ошибку в начало истории, вытесняя самую старую
// при заполнении, и сбрасывает кеш метрик. Проверка правил алертинга
// выполняется асинхронно, если запущен Start.
func (a *Analyzer) RecordError(e *apperrors.ApplicationError) {
	if e == nil {
		return
	}
	a.mu.Lock()
	idx := (a.head + a.size) % len(a.ring)
	if a.size == len(a.ring) {
		if evicted := a.ring[a.head]; evicted != nil {
			delete(a.recovered, evicted.ID)
		}
		idx = a.head
		a.head = (a.head + 1) % len(a.ring)
	} else {
		a.size++
	}
	a.ring[idx] = e
	a.cache = nil
	a.mu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// RecordRecovery отмечает ошибку errorID как восстановленную.
func (a *Analyzer) RecordRecovery(errorID string) {
	a.mu.Lock()
	a.recovered[errorID] = struct{}{}
	a.cache = nil
	a.mu.Unlock()
}

// History возвращает копию истории от новых к старым.
func (a *Analyzer) History() []*apperrors.ApplicationError {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.historyLocked()
}

func (a *Analyzer) historyLocked() []*apperrors.ApplicationError {
	out := make([]*apperrors.ApplicationError, 0, a.size)
	for i := a.size - 1; i >= 0; i-- {
		out = append(out, a.ring[(a.head+i)%len(a.ring)])
	}
	return out
}

// Len возвращает текущий размер истории.
func (a *Analyzer) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.size
}

// GetAnalytics возвращает метрики по истории. Результат кешируется на
// CacheTTL. Если задан tr, к истории добавляются записи журнала ошибок за
// этот интервал (без дублей по ID).
func (a *Analyzer) GetAnalytics(ctx context.Context, tr *TimeRange) (*Metrics, error) {
	key := tr.key()

	a.mu.Lock()
	now := a.now()
	if c := a.cache; c != nil && c.key == key && now.Sub(c.computed) < a.cfg.CacheTTL {
		a.mu.Unlock()
		return c.metrics, nil
	}
	history := a.historyLocked()
	recovered := make(map[string]struct{}, len(a.recovered))
	for id := range a.recovered {
		recovered[id] = struct{}{}
	}
	a.mu.Unlock()

	errs := make([]*apperrors.ApplicationError, 0, len(history))
	seen := make(map[string]struct{}, len(history))
	for _, e := range history {
		if tr.contains(e.Timestamp) {
			errs = append(errs, e)
			seen[e.ID] = struct{}{}
		}
	}

	if tr != nil && a.querier != nil {
		res, err := a.querier.Query(ctx, errorlog.Filter{From: tr.From, To: tr.To})
		if err != nil {
			return nil, fmt.Errorf("analytics: чтение журнала ошибок: %w", err)
		}
		for _, entry := range res.Entries {
			if entry.Error == nil {
				continue
			}
			if _, dup := seen[entry.Error.ID]; dup {
				continue
			}
			seen[entry.Error.ID] = struct{}{}
			errs = append(errs, entry.Error)
		}
	}

	m := aggregate(errs, recovered, tr, now, a.cfg)

	a.mu.Lock()
	a.cache = &cached{key: key, metrics: m, computed: now}
	a.mu.Unlock()
	return m, nil
}

// Start запускает периодическую проверку правил алертинга.
func (a *Analyzer) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.cfg.AlertInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case <-a.wake:
			}
			a.EvaluateAlerts(ctx)
		}
	}()
}

// Close останавливает периодическую проверку.
func (a *Analyzer) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	return nil
}

package crash

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Kargones/errmgr/internal/constants"
	"github.com/Kargones/errmgr/internal/pkg/apperrors"
	"github.com/Kargones/errmgr/internal/pkg/eventbus"
	"github.com/Kargones/errmgr/internal/pkg/logging"
	"github.com/Kargones/errmgr/internal/pkg/metrics"
	"github.com/Kargones/errmgr/internal/pkg/sysinfo"
	"github.com/Kargones/errmgr/internal/pkg/tracing"
	"github.com/Kargones/errmgr/internal/pkg/urlutil"
)

// maxResponseBodySize — максимальный размер тела ответа для диагностики.
const maxResponseBodySize = 1024

// HTTPClient — интерфейс для HTTP запросов (для тестирования).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Details — дополнительные сведения о фатальном событии.
type Details struct {
	Source   string
	ExitCode *int
	Signal   string
	Dump     string
	// SkipDump отключает сбор stack trace горутин текущего процесса.
	SkipDump bool
}

// Источники отчётов.
const (
	SourceReport  = "report"
	SourcePanic   = "panic"
	SourceAsync   = "goroutine"
	SourceSignal  = "signal"
	SourceProcess = "child_process"
)

// Reporter — Crash Reporter.
type Reporter struct {
	cfg       Config
	log       logging.Logger
	metrics   metrics.Collector
	publisher eventbus.Publisher
	sampler   *sysinfo.Sampler
	client    HTTPClient
	started   time.Time
	now       func() time.Time

	mu      sync.Mutex
	actions []apperrors.UserAction
	next    int
	filled  bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewReporter создаёт Reporter и каталог отчётов.
func NewReporter(cfg Config, log logging.Logger, m metrics.Collector, pub eventbus.Publisher, sampler *sysinfo.Sampler) (*Reporter, error) {
	cfg.applyDefaults()
	if cfg.Dir == "" {
		return nil, ErrDirRequired
	}
	if err := os.MkdirAll(cfg.Dir, constants.DirPerm); err != nil {
		return nil, fmt.Errorf("crash: создание каталога %s: %w", cfg.Dir, err)
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	if m == nil {
		m = metrics.NewNopCollector()
	}
	if pub == nil {
		pub = eventbus.Nop{}
	}
	if sampler == nil {
		sampler = sysinfo.NewSampler(cfg.Dir)
	}
	return &Reporter{
		cfg:       cfg,
		log:       log.With("component", "crash"),
		metrics:   m,
		publisher: pub,
		sampler:   sampler,
		client:    &http.Client{Timeout: cfg.Timeout},
		started:   time.Now(),
		now:       time.Now,
		actions:   make([]apperrors.UserAction, cfg.MaxUserActions),
	}, nil
}

// SetHTTPClient устанавливает кастомный HTTPClient (для тестирования).
func (r *Reporter) SetHTTPClient(client HTTPClient) {
	r.client = client
}

// SetNowFunc устанавливает функцию получения текущего времени (для тестов).
func (r *Reporter) SetNowFunc(fn func() time.Time) {
	r.now = fn
}

// TrackAction добавляет действие пользователя в кольцевой буфер.
func (r *Reporter) TrackAction(a apperrors.UserAction) {
	if a.Timestamp.IsZero() {
		a.Timestamp = r.now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[r.next] = a
	r.next = (r.next + 1) % len(r.actions)
	if r.next == 0 {
		r.filled = true
	}
}

// RecentActions возвращает до n последних действий от старых к новым.
// n <= 0 — все сохранённые.
func (r *Reporter) RecentActions(n int) []apperrors.UserAction {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ordered []apperrors.UserAction
	if r.filled {
		ordered = append(ordered, r.actions[r.next:]...)
	}
	ordered = append(ordered, r.actions[:r.next]...)
	if n > 0 && len(ordered) > n {
		ordered = ordered[len(ordered)-n:]
	}
	return ordered
}

// Report создаёт отчёт об аварии для err и возвращает его идентификатор.
func (r *Reporter) Report(ctx context.Context, err error) (string, error) {
	return r.ReportWithDetails(ctx, err, Details{Source: SourceReport})
}

// ReportWithDetails создаёт отчёт: снимок системы, последние действия
// пользователя, dump горутин. Отчёт сохраняется в <id>.json, затем
// сводка отправляется на Endpoint. Ошибка отправки не возвращается.
func (r *Reporter) ReportWithDetails(ctx context.Context, err error, d Details) (id string, retErr error) {
	ctx, span := tracing.StartSpan(ctx, "crash", "crash.report", attribute.String("crash.source", d.Source))
	defer func() { tracing.EndSpan(span, retErr) }()

	appErr := apperrors.FromError(err)
	if appErr == nil {
		appErr = apperrors.New(apperrors.CodeSystemProcessCrashed, "аварийное завершение без ошибки")
	}
	if d.Dump == "" && !d.SkipDump {
		d.Dump = allStacks()
	}
	if d.Source == "" {
		d.Source = SourceReport
	}

	report := &Report{
		ID:          uuid.NewString(),
		Timestamp:   r.now(),
		Process:     processInfo(r.cfg.AppVersion, r.started),
		ExitCode:    d.ExitCode,
		Signal:      d.Signal,
		Source:      d.Source,
		Dump:        d.Dump,
		Error:       appErr,
		UserActions: r.RecentActions(0),
		System:      r.sampler.Snapshot(ctx),
	}

	if err := r.persist(report); err != nil {
		r.log.Error("не удалось сохранить отчёт об аварии", "error", err.Error(), "report_id", report.ID)
		return "", err
	}

	r.publisher.Publish(eventbus.Event{
		Type:    eventbus.CrashDetected,
		Source:  "crash",
		Payload: summarize(report),
	})

	remote := r.send(ctx, report)
	r.metrics.RecordCrashReport(remote)
	r.log.Warn("создан отчёт об аварии",
		"report_id", report.ID,
		"source", report.Source,
		"error_code", appErr.Code,
		"remote", remote,
	)
	return report.ID, nil
}

func (r *Reporter) persist(report *Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("crash: сериализация отчёта: %w", err)
	}
	path := r.reportPath(report.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, constants.FilePerm); err != nil {
		return fmt.Errorf("crash: запись отчёта: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("crash: запись отчёта: %w", err)
	}
	return nil
}

// send отправляет сводку. Возвращает "disabled", "sent" или "failed".
func (r *Reporter) send(ctx context.Context, report *Report) string {
	if r.cfg.Endpoint == "" {
		return "disabled"
	}
	if err := r.post(ctx, newRemoteSummary(report)); err != nil {
		r.log.Warn("не удалось отправить отчёт об аварии",
			"error", err.Error(),
			"url", urlutil.MaskURL(r.cfg.Endpoint),
			"report_id", report.ID,
		)
		return "failed"
	}
	r.log.Info("отчёт об аварии отправлен", "url", urlutil.MaskURL(r.cfg.Endpoint), "report_id", report.ID)
	return "sent"
}

func (r *Reporter) post(ctx context.Context, summary remoteSummary) error {
	body, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", constants.UserAgent())
	if r.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.Token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize)) //nolint:errcheck // best-effort drain
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
}

func summarize(r *Report) Summary {
	return Summary{
		ID:        r.ID,
		Timestamp: r.Timestamp,
		Source:    r.Source,
		Code:      r.Error.Code,
		Severity:  r.Error.Severity,
		Message:   r.Error.Message,
	}
}

func (r *Reporter) reportPath(id string) string {
	return filepath.Join(r.cfg.Dir, id+".json")
}

// LoadReport читает отчёт по идентификатору.
func (r *Reporter) LoadReport(id string) (*Report, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidReportID, id)
	}
	data, err := os.ReadFile(r.reportPath(id))
	if err != nil {
		return nil, fmt.Errorf("crash: чтение отчёта %s: %w", id, err)
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("crash: разбор отчёта %s: %w", id, err)
	}
	return &report, nil
}

// ListReports возвращает сводки сохранённых отчётов от новых к старым.
// Повреждённые файлы пропускаются.
func (r *Reporter) ListReports() ([]Summary, error) {
	ids, err := r.reportIDs()
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		report, err := r.LoadReport(id)
		if err != nil {
			r.log.Debug("пропущен повреждённый отчёт", "report_id", id, "error", err.Error())
			continue
		}
		out = append(out, summarize(report))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (r *Reporter) reportIDs() ([]string, error) {
	entries, err := os.ReadDir(r.cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("crash: список отчётов: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		if _, err := uuid.Parse(id); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Purge удаляет отчёты, изменённые раньше olderThan. Возвращает число удалённых.
func (r *Reporter) Purge(olderThan time.Time) (int, error) {
	ids, err := r.reportIDs()
	if err != nil {
		return 0, err
	}
	removed := 0
	var errs []error
	for _, id := range ids {
		path := r.reportPath(id)
		info, err := os.Stat(path)
		if err != nil || !info.ModTime().Before(olderThan) {
			continue
		}
		if err := os.Remove(path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		r.log.Info("удалены устаревшие отчёты об авариях", "removed", removed)
	}
	return removed, errors.Join(errs...)
}

// Start запускает периодическую очистку отчётов старше Retention.
// Первая очистка выполняется сразу.
func (r *Reporter) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	sweep := func() {
		if _, err := r.Purge(r.now().Add(-r.cfg.Retention)); err != nil {
			r.log.Warn("ошибка очистки отчётов об авариях", "error", err.Error())
		}
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		sweep()
		ticker := time.NewTicker(r.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweep()
			}
		}
	}()
}

// Close останавливает периодическую очистку.
func (r *Reporter) Close() error {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
	return nil
}

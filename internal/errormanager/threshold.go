package errormanager

import (
	"fmt"
	"strings"
	"time"

	"github.com/Kargones/errmgr/internal/pkg/apperrors"
)

// ThresholdAction — действие при достижении порога.
type ThresholdAction string

// Действия порогов.
const (
	ThresholdLogWarning       ThresholdAction = "log_warning"
	ThresholdNotify           ThresholdAction = "notify"
	ThresholdSafeMode         ThresholdAction = "enable_safe_mode"
	ThresholdRestartComponent ThresholdAction = "restart_component"
	ThresholdShutdown         ThresholdAction = "shutdown"
)

// ParseThresholdAction разбирает имя действия. "shutdown_application"
// принимается как синоним "shutdown".
func ParseThresholdAction(s string) (ThresholdAction, error) {
	switch a := ThresholdAction(strings.ToLower(strings.TrimSpace(s))); a {
	case ThresholdLogWarning, ThresholdNotify, ThresholdSafeMode, ThresholdRestartComponent, ThresholdShutdown:
		return a, nil
	case "shutdown_application":
		return ThresholdShutdown, nil
	default:
		return "", fmt.Errorf("%w: неизвестное действие %q", ErrInvalidThreshold, s)
	}
}

// next возвращает следующее действие, которое влечёт порог.
func (a ThresholdAction) next() Action {
	switch a {
	case ThresholdSafeMode:
		return ActionSafeMode
	case ThresholdRestartComponent:
		return ActionRestart
	case ThresholdShutdown:
		return ActionShutdown
	default:
		return ActionContinue
	}
}

// Threshold срабатывает, когда число ошибок одной пары (code, category) в
// скользящем окне Window достигает Count. Category пустая — любая
// категория; ошибки ниже Severity не учитываются.
type Threshold struct {
	Category apperrors.Category `json:"category,omitempty"`
	Severity apperrors.Severity `json:"severity"`
	Count    int                `json:"count"`
	Window   time.Duration      `json:"window"`
	Action   ThresholdAction    `json:"action"`
}

// Validate проверяет порог.
func (t *Threshold) Validate() error {
	if t.Count <= 0 || t.Window <= 0 {
		return fmt.Errorf("%w: count и window должны быть положительными", ErrInvalidThreshold)
	}
	if t.Category != "" && !t.Category.Valid() {
		return fmt.Errorf("%w: неизвестная категория %q", ErrInvalidThreshold, t.Category)
	}
	if _, err := ParseThresholdAction(string(t.Action)); err != nil {
		return err
	}
	return nil
}

func (t *Threshold) matches(e *apperrors.ApplicationError) bool {
	return (t.Category == "" || t.Category == e.Category) && e.Severity.AtLeast(t.Severity)
}

// ThresholdHit — payload события threshold-exceeded.
type ThresholdHit struct {
	Threshold Threshold          `json:"threshold"`
	Code      apperrors.Code     `json:"code"`
	Category  apperrors.Category `json:"category"`
	ErrorID   string             `json:"errorId"`
	Count     int                `json:"count"`
}

// Counter — счётчик вхождений пары (code, category).
type Counter struct {
	Code            apperrors.Code     `json:"code"`
	Category        apperrors.Category `json:"category"`
	Count           int                `json:"count"`
	FirstOccurrence time.Time          `json:"firstOccurrence"`
	LastOccurrence  time.Time          `json:"lastOccurrence"`
}

type counterKey struct {
	code     apperrors.Code
	category apperrors.Category
}

// windowKey — окно одного порога для пары (code, category).
type windowKey struct {
	threshold int
	counterKey
}

// thresholds хранит пороги и счётчики. Используется только worker-горутиной
// и под mu Manager.
type thresholds struct {
	list     []Threshold
	counters map[counterKey]*Counter
	// windows — отметки времени ошибок, подходящих порогу, не больше Count+1.
	windows map[windowKey][]time.Time
}

func newThresholds() *thresholds {
	return &thresholds{
		counters: make(map[counterKey]*Counter),
		windows:  make(map[windowKey][]time.Time),
	}
}

func (t *thresholds) add(th Threshold) {
	t.list = append(t.list, th)
}

// observe учитывает ошибку и возвращает сработавшие пороги.
func (t *thresholds) observe(e *apperrors.ApplicationError, now time.Time) []ThresholdHit {
	key := counterKey{e.Code, e.Category}
	c, ok := t.counters[key]
	if !ok {
		c = &Counter{Code: e.Code, Category: e.Category, FirstOccurrence: now}
		t.counters[key] = c
	}
	c.Count++
	c.LastOccurrence = now

	// Окно порога видит только подходящие ему ошибки. Count+1 отметок
	// достаточно, чтобы отличить "ровно count" от "больше count".
	var hits []ThresholdHit
	for i, th := range t.list {
		if !th.matches(e) {
			continue
		}
		wk := windowKey{threshold: i, counterKey: key}
		ts := trimWindow(append(t.windows[wk], now), now.Add(-th.Window), th.Count+1)
		t.windows[wk] = ts
		if n := len(ts); n == th.Count {
			hits = append(hits, ThresholdHit{
				Threshold: th,
				Code:      e.Code,
				Category:  e.Category,
				ErrorID:   e.ID,
				Count:     n,
			})
		}
	}
	return hits
}

// trimWindow отбрасывает отметки не позже cutoff и оставляет не больше keep
// последних.
func trimWindow(ts []time.Time, cutoff time.Time, keep int) []time.Time {
	drop := 0
	for drop < len(ts) && !ts[drop].After(cutoff) {
		drop++
	}
	if len(ts)-drop > keep {
		drop = len(ts) - keep
	}
	return ts[drop:]
}

func (t *thresholds) snapshot() []Counter {
	out := make([]Counter, 0, len(t.counters))
	for _, c := range t.counters {
		out = append(out, *c)
	}
	return out
}

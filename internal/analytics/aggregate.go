package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/Kargones/errmgr/internal/pkg/apperrors"
)

// CodeStat — статистика по коду ошибки.
type CodeStat struct {
	Code         apperrors.Code `json:"code"`
	Count        int            `json:"count"`
	FirstSeen    time.Time      `json:"firstSeen"`
	LastSeen     time.Time      `json:"lastSeen"`
	MeanInterval time.Duration  `json:"meanInterval"`
}

// TrendBucket — число ошибок за период, начинающийся в Start.
type TrendBucket struct {
	Start time.Time `json:"start"`
	Count int       `json:"count"`
}

// ComponentReliability — оценка надёжности компонента.
type ComponentReliability struct {
	Component   string  `json:"component"`
	Errors      int     `json:"errors"`
	Operations  int     `json:"operations"`
	Reliability float64 `json:"reliability"`
}

// PerformanceImpact — ошибки, связанные с деградацией производительности.
type PerformanceImpact struct {
	MemoryThresholdExceeded int `json:"memoryThresholdExceeded"`
	CPUThresholdExceeded    int `json:"cpuThresholdExceeded"`
	SlowOperations          int `json:"slowOperations"`
}

// Metrics — агрегированные метрики по ошибкам.
type Metrics struct {
	GeneratedAt      time.Time                  `json:"generatedAt"`
	Range            *TimeRange                 `json:"range,omitempty"`
	Total            int                        `json:"total"`
	LastHour         int                        `json:"lastHour"`
	CriticalLastHour int                        `json:"criticalLastHour"`
	ByCategory       map[apperrors.Category]int `json:"byCategory"`
	BySeverity       map[string]int             `json:"bySeverity"`
	ByCode           map[apperrors.Code]int     `json:"byCode"`
	TopCodes         []CodeStat                 `json:"topCodes"`
	Daily            []TrendBucket              `json:"daily"`
	Weekly           []TrendBucket              `json:"weekly"`
	ByHour           [24]int                    `json:"byHour"`
	ByWeekday        [7]int                     `json:"byWeekday"`
	Reliability      []ComponentReliability     `json:"reliability"`
	Recovered        int                        `json:"recovered"`
	RecoveryRate     float64                    `json:"recoveryRate"`
	CrashRate        float64                    `json:"crashRate"`
	AffectedUsers    int                        `json:"affectedUsers"`
	Performance      PerformanceImpact          `json:"performance"`
}

// slowKeywords — признаки медленных операций в тексте ошибки.
var slowKeywords = []string{"timeout", "timed out", "slow", "took too long", "deadline exceeded", "таймаут"}

func aggregate(errs []*apperrors.ApplicationError, recovered map[string]struct{}, tr *TimeRange, now time.Time, cfg Config) *Metrics {
	m := &Metrics{
		GeneratedAt: now,
		Range:       tr,
		Total:       len(errs),
		ByCategory:  make(map[apperrors.Category]int),
		BySeverity:  make(map[string]int),
		ByCode:      make(map[apperrors.Code]int),
	}

	codes := make(map[apperrors.Code]*CodeStat)
	daily := make(map[time.Time]int)
	weekly := make(map[time.Time]int)
	components := make(map[string]int)
	users := make(map[string]struct{})
	hourAgo := now.Add(-time.Hour)
	critical := 0

	for _, e := range errs {
		ts := e.Timestamp.UTC()
		m.ByCategory[e.Category]++
		m.BySeverity[e.Severity.String()]++
		m.ByCode[e.Code]++

		if e.Timestamp.After(hourAgo) && !e.Timestamp.After(now) {
			m.LastHour++
			if e.Severity == apperrors.SeverityCritical {
				m.CriticalLastHour++
			}
		}
		if e.Severity == apperrors.SeverityCritical {
			critical++
		}

		cs, ok := codes[e.Code]
		if !ok {
			cs = &CodeStat{Code: e.Code, FirstSeen: e.Timestamp, LastSeen: e.Timestamp}
			codes[e.Code] = cs
		}
		cs.Count++
		if e.Timestamp.Before(cs.FirstSeen) {
			cs.FirstSeen = e.Timestamp
		}
		if e.Timestamp.After(cs.LastSeen) {
			cs.LastSeen = e.Timestamp
		}

		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		daily[day]++
		weekly[weekStart(day)]++
		m.ByHour[ts.Hour()]++
		m.ByWeekday[ts.Weekday()]++

		component := e.Context.Component
		if component == "" {
			component = "unknown"
		}
		components[component]++

		if e.Context.UserID != "" {
			users[e.Context.UserID] = struct{}{}
		}
		if _, ok := recovered[e.ID]; ok {
			m.Recovered++
		}
		countPerformance(&m.Performance, e, cfg)
	}

	m.TopCodes = topCodes(codes, cfg.TopN)
	m.Daily = buckets(daily)
	m.Weekly = buckets(weekly)
	m.Reliability = reliability(components, cfg.EstimatedOperations)
	m.AffectedUsers = len(users)
	if m.Total > 0 {
		m.RecoveryRate = float64(m.Recovered) / float64(m.Total)
		m.CrashRate = float64(critical) / float64(m.Total)
	}
	return m
}

// weekStart возвращает понедельник недели, к которой относится day.
func weekStart(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func topCodes(codes map[apperrors.Code]*CodeStat, n int) []CodeStat {
	out := make([]CodeStat, 0, len(codes))
	for _, cs := range codes {
		if cs.Count > 1 {
			cs.MeanInterval = cs.LastSeen.Sub(cs.FirstSeen) / time.Duration(cs.Count-1)
		}
		out = append(out, *cs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Code < out[j].Code
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func buckets(counts map[time.Time]int) []TrendBucket {
	out := make([]TrendBucket, 0, len(counts))
	for start, n := range counts {
		out = append(out, TrendBucket{Start: start, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func reliability(components map[string]int, operations int) []ComponentReliability {
	out := make([]ComponentReliability, 0, len(components))
	for name, n := range components {
		r := 1 - float64(n)/float64(operations)
		if r < 0 {
			r = 0
		}
		out = append(out, ComponentReliability{Component: name, Errors: n, Operations: operations, Reliability: r})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Reliability != out[j].Reliability {
			return out[i].Reliability < out[j].Reliability
		}
		return out[i].Component < out[j].Component
	})
	return out
}

func countPerformance(p *PerformanceImpact, e *apperrors.ApplicationError, cfg Config) {
	var (
		memory   uint64
		cpu      float64
		duration time.Duration
	)
	if s := e.Metadata.System; s != nil {
		memory = s.HeapAllocBytes
		cpu = s.CPUPercent
	}
	if perf := e.Metadata.Performance; perf != nil {
		if perf.MemoryBytes > memory {
			memory = perf.MemoryBytes
		}
		if perf.CPUPercent > cpu {
			cpu = perf.CPUPercent
		}
		duration = time.Duration(perf.DurationMs) * time.Millisecond
	}
	if memory > cfg.MemoryThreshold {
		p.MemoryThresholdExceeded++
	}
	if cpu > cfg.CPUThreshold {
		p.CPUThresholdExceeded++
	}
	if duration > cfg.SlowOperation || hasSlowKeyword(e.Message) {
		p.SlowOperations++
	}
}

func hasSlowKeyword(msg string) bool {
	lower := strings.ToLower(msg)
	for _, kw := range slowKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

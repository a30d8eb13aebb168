package errorlog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/Kargones/errmgr/internal/pkg/apperrors"
)

// Поля сортировки.
const (
	SortByTimestamp = "timestamp"
	SortBySeverity  = "severity"
	SortByCode      = "code"
)

// Направления сортировки.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

const maxLineSize = 4 * 1024 * 1024

// Filter — условия выборки Query. Пустые поля не ограничивают выборку.
type Filter struct {
	Severities      []apperrors.Severity
	Categories      []apperrors.Category
	Codes           []apperrors.Code
	From            time.Time
	To              time.Time
	UserID          string
	InvestigationID string
	Component       string

	// SortBy — timestamp (по умолчанию), severity или code.
	SortBy string
	// Order — asc (по умолчанию) или desc.
	Order  string
	Offset int
	// Limit — 0 означает без ограничения.
	Limit int
}

// QueryResult — результат Query.
type QueryResult struct {
	Entries []Entry `json:"entries"`
	// Total — число записей, удовлетворяющих фильтру, до пагинации.
	Total int `json:"total"`
	// Skipped — число строк, которые не удалось разобрать.
	Skipped int `json:"skipped"`
}

func (f *Filter) match(e *Entry) bool {
	ae := e.Error
	if len(f.Severities) > 0 && !contains(f.Severities, ae.Severity) {
		return false
	}
	if len(f.Categories) > 0 && !contains(f.Categories, ae.Category) {
		return false
	}
	if len(f.Codes) > 0 && !contains(f.Codes, ae.Code) {
		return false
	}
	if !f.From.IsZero() && ae.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && ae.Timestamp.After(f.To) {
		return false
	}
	if f.UserID != "" && ae.Context.UserID != f.UserID {
		return false
	}
	if f.InvestigationID != "" && ae.Context.InvestigationID != f.InvestigationID {
		return false
	}
	if f.Component != "" && ae.Context.Component != f.Component {
		return false
	}
	return true
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Query читает все архивы и текущий файл, разбирает строки обратно в
// ApplicationError и применяет фильтр, сортировку и пагинацию.
// Буфер предварительно сбрасывается, поэтому результат включает все
// записанные на момент вызова записи. Неразбираемые строки пропускаются.
func (l *Logger) Query(ctx context.Context, f Filter) (QueryResult, error) {
	if err := l.Flush(); err != nil && !errors.Is(err, ErrClosed) {
		return QueryResult{}, err
	}
	files, err := l.Files()
	if err != nil {
		return QueryResult{}, fmt.Errorf("errorlog: список файлов: %w", err)
	}
	return queryFiles(ctx, files, f)
}

// QueryDir выполняет Query по файлам каталога без открытия журнала на запись.
func QueryDir(ctx context.Context, cfg Config, f Filter) (QueryResult, error) {
	cfg.applyDefaults()
	l := &Logger{cfg: cfg}
	files, err := l.Files()
	if err != nil {
		return QueryResult{}, fmt.Errorf("errorlog: список файлов: %w", err)
	}
	return queryFiles(ctx, files, f)
}

func queryFiles(ctx context.Context, files []string, f Filter) (QueryResult, error) {
	var res QueryResult
	var matched []Entry
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return QueryResult{}, err
		}
		entries, skipped, err := readFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return QueryResult{}, err
		}
		res.Skipped += skipped
		for i := range entries {
			if f.match(&entries[i]) {
				matched = append(matched, entries[i])
			}
		}
	}

	sortEntries(matched, f.SortBy, f.Order)
	res.Total = len(matched)
	res.Entries = paginate(matched, f.Offset, f.Limit)
	return res, nil
}

func readFile(path string) ([]Entry, int, error) {
	file, err := os.Open(path) //nolint:gosec // путь формируется из каталога журнала
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = file.Close() }()

	var entries []Entry
	skipped := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		e, err := decodeLine(scanner.Bytes())
		if err != nil {
			skipped++
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("errorlog: чтение %s: %w", path, err)
	}
	return entries, skipped, nil
}

func sortEntries(entries []Entry, by, order string) {
	less := func(a, b *Entry) bool {
		switch by {
		case SortBySeverity:
			if a.Error.Severity != b.Error.Severity {
				return a.Error.Severity < b.Error.Severity
			}
		case SortByCode:
			if a.Error.Code != b.Error.Code {
				return a.Error.Code < b.Error.Code
			}
		}
		return a.Error.Timestamp.Before(b.Error.Timestamp)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if order == OrderDesc {
			return less(&entries[j], &entries[i])
		}
		return less(&entries[i], &entries[j])
	})
}

func paginate(entries []Entry, offset, limit int) []Entry {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(entries) {
		return []Entry{}
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries
}

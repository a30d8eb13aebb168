// Package errorlog реализует долговременный журнал ошибок: буферизованную
// запись, периодический сброс, ротацию по размеру с ограничением числа
// архивов и запросы с фильтрацией по всем файлам журнала.
package errorlog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Kargones/errmgr/internal/constants"
	"github.com/Kargones/errmgr/internal/pkg/apperrors"
	"github.com/Kargones/errmgr/internal/pkg/logging"
	"github.com/Kargones/errmgr/internal/pkg/metrics"
)

var (
	// ErrClosed возвращается при записи в закрытый журнал.
	ErrClosed = errors.New("errorlog: журнал закрыт")
	// ErrBelowLevel возвращается если severity ошибки ниже настроенного уровня.
	ErrBelowLevel = errors.New("errorlog: severity ниже уровня журнала")
	// ErrNilError возвращается при попытке записать nil.
	ErrNilError = errors.New("errorlog: ошибка не задана")
)

const archiveTimeFormat = "20060102T150405.000000000"

// Stats — счётчики журнала.
type Stats struct {
	EntriesWritten  int64 `json:"entriesWritten"`
	EntriesSkipped  int64 `json:"entriesSkipped"`
	Flushes         int64 `json:"flushes"`
	Rotations       int64 `json:"rotations"`
	WriteErrors     int64 `json:"writeErrors"`
	BufferedEntries int   `json:"bufferedEntries"`
	CurrentFileSize int64 `json:"currentFileSize"`
	Archives        int   `json:"archives"`
}

// Logger — журнал ошибок. Безопасен для конкурентного использования:
// буфер и файл защищены одним мьютексом, поэтому ротация не может
// пересечься со сбросом буфера.
type Logger struct {
	cfg     Config
	log     logging.Logger
	metrics metrics.Collector
	now     func() time.Time

	mu     sync.Mutex
	buf    [][]byte
	file   *os.File
	size   int64
	closed bool
	stats  Stats

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New открывает (или создаёт) текущий файл журнала. Таймеры сброса и
// ротации запускаются через Start.
func New(cfg Config, log logging.Logger, m metrics.Collector) (*Logger, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	if m == nil {
		m = metrics.NewNopCollector()
	}
	if err := os.MkdirAll(cfg.Dir, constants.DirPerm); err != nil {
		return nil, fmt.Errorf("errorlog: создание каталога %s: %w", cfg.Dir, err)
	}

	l := &Logger{
		cfg:     cfg,
		log:     log.With("component", "errorlog"),
		metrics: m,
		now:     time.Now,
	}
	if err := l.openLocked(); err != nil {
		return nil, err
	}
	return l, nil
}

// SetNowFunc устанавливает функцию получения текущего времени (для тестов).
func (l *Logger) SetNowFunc(fn func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = fn
}

// Start запускает таймеры сброса буфера и проверки ротации.
// Таймеры останавливаются при отмене ctx или Close.
func (l *Logger) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	l.cancel = cancel
	l.mu.Unlock()

	l.wg.Add(2)
	go l.every(ctx, l.cfg.FlushInterval, func() {
		if err := l.Flush(); err != nil && !errors.Is(err, ErrClosed) {
			l.log.Warn("не удалось сбросить буфер журнала", "error", err.Error())
		}
	})
	go l.every(ctx, l.cfg.RotationCheckInterval, func() {
		if _, err := l.RotateIfNeeded(); err != nil && !errors.Is(err, ErrClosed) {
			l.log.Warn("не удалось ротировать журнал", "error", err.Error())
		}
	})
}

func (l *Logger) every(ctx context.Context, interval time.Duration, fn func()) {
	defer l.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// Log форматирует ошибку и помещает её в буфер. Ошибки severity critical
// и переполнение буфера приводят к немедленному сбросу на диск.
func (l *Logger) Log(e *apperrors.ApplicationError) (*Entry, error) {
	return l.LogWithMeta(e, nil)
}

// LogWithMeta — Log с дополнительными метаданными сбора.
func (l *Logger) LogWithMeta(e *apperrors.ApplicationError, meta map[string]string) (*Entry, error) {
	if e == nil {
		return nil, ErrNilError
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrClosed
	}
	if !e.Severity.AtLeast(l.cfg.Level) {
		l.stats.EntriesSkipped++
		return nil, ErrBelowLevel
	}

	entry := &Entry{
		Version:   LineVersion,
		ID:        uuid.NewString(),
		Timestamp: l.now(),
		Level:     e.Severity,
		Error:     e,
		Meta:      meta,
	}
	line, err := encodeLine(entry, l.cfg.Format)
	if err != nil {
		return nil, err
	}
	entry.Formatted = string(line)
	l.buf = append(l.buf, line)
	l.stats.EntriesWritten++
	l.metrics.RecordLogEntry(e.Severity.String())

	if e.Severity == apperrors.SeverityCritical || len(l.buf) >= l.cfg.BufferSize {
		if err := l.flushLocked(); err != nil {
			return entry, err
		}
	}
	return entry, nil
}

// Flush сбрасывает буфер в текущий файл.
func (l *Logger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	return l.flushLocked()
}

func (l *Logger) flushLocked() error {
	if len(l.buf) == 0 {
		return nil
	}
	if l.file == nil {
		if err := l.openLocked(); err != nil {
			l.stats.WriteErrors++
			return err
		}
	}

	var data []byte
	for _, line := range l.buf {
		data = append(data, line...)
		data = append(data, '\n')
	}
	n, err := l.file.Write(data)
	l.size += int64(n)
	if err != nil {
		l.stats.WriteErrors++
		return fmt.Errorf("errorlog: запись в %s: %w", l.file.Name(), err)
	}
	l.buf = l.buf[:0]
	l.stats.Flushes++
	return nil
}

// RotateIfNeeded сбрасывает буфер и ротирует текущий файл, если его размер
// превысил MaxFileSize. Возвращает true, если ротация была выполнена.
func (l *Logger) RotateIfNeeded() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false, ErrClosed
	}
	if err := l.flushLocked(); err != nil {
		return false, err
	}
	if l.size <= l.cfg.MaxFileSize {
		return false, nil
	}
	if err := l.rotateLocked(); err != nil {
		return false, err
	}
	return true, nil
}

func (l *Logger) rotateLocked() error {
	if l.file != nil {
		if err := l.file.Close(); err != nil {
			l.log.Warn("ошибка закрытия файла журнала перед ротацией", "error", err.Error())
		}
		l.file = nil
	}

	archive := l.archivePath(l.now())
	if err := os.Rename(l.currentPath(), archive); err != nil {
		if reopenErr := l.openLocked(); reopenErr != nil {
			l.log.Error("не удалось переоткрыть журнал после неудачной ротации", "error", reopenErr.Error())
		}
		return fmt.Errorf("errorlog: архивирование журнала: %w", err)
	}
	if err := l.openLocked(); err != nil {
		return err
	}

	l.stats.Rotations++
	l.metrics.RecordLogRotation()
	l.log.Info("журнал ошибок ротирован", "archive", filepath.Base(archive))

	l.pruneArchivesLocked()
	return nil
}

func (l *Logger) pruneArchivesLocked() {
	archives, err := l.archives()
	if err != nil {
		l.log.Warn("не удалось получить список архивов журнала", "error", err.Error())
		return
	}
	for len(archives) > l.cfg.MaxFiles {
		oldest := archives[0]
		archives = archives[1:]
		if err := os.Remove(oldest); err != nil {
			l.log.Warn("не удалось удалить архив журнала", "file", oldest, "error", err.Error())
			continue
		}
		l.log.Debug("удалён архив журнала", "file", filepath.Base(oldest))
	}
}

func (l *Logger) openLocked() error {
	f, err := os.OpenFile(l.currentPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, constants.FilePerm)
	if err != nil {
		return fmt.Errorf("errorlog: открытие %s: %w", l.currentPath(), err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("errorlog: stat %s: %w", l.currentPath(), err)
	}
	l.file = f
	l.size = info.Size()
	return nil
}

func (l *Logger) currentPath() string {
	return filepath.Join(l.cfg.Dir, l.cfg.FileName)
}

func (l *Logger) archivePrefix() (prefix, ext string) {
	ext = filepath.Ext(l.cfg.FileName)
	return strings.TrimSuffix(l.cfg.FileName, ext) + "-", ext
}

func (l *Logger) archivePath(ts time.Time) string {
	prefix, ext := l.archivePrefix()
	base := filepath.Join(l.cfg.Dir, prefix+ts.UTC().Format(archiveTimeFormat))
	path := base + ext
	for i := 1; fileExists(path); i++ {
		path = fmt.Sprintf("%s.%d%s", base, i, ext)
	}
	return path
}

// archives возвращает архивы от старых к новым.
func (l *Logger) archives() ([]string, error) {
	prefix, ext := l.archivePrefix()
	dirEntries, err := os.ReadDir(l.cfg.Dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		out = append(out, filepath.Join(l.cfg.Dir, name))
	}
	sort.Strings(out)
	return out, nil
}

// Files возвращает все файлы журнала: архивы от старых к новым, затем текущий.
func (l *Logger) Files() ([]string, error) {
	files, err := l.archives()
	if err != nil {
		return nil, err
	}
	if fileExists(l.currentPath()) {
		files = append(files, l.currentPath())
	}
	return files, nil
}

// Cleanup удаляет файлы журнала, время изменения которых раньше olderThan.
// Устаревший текущий файл удаляется и открывается заново.
// Возвращает число удалённых файлов.
func (l *Logger) Cleanup(olderThan time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, ErrClosed
	}
	if err := l.flushLocked(); err != nil {
		return 0, err
	}

	files, err := l.archives()
	if err != nil {
		return 0, fmt.Errorf("errorlog: список архивов: %w", err)
	}
	files = append(files, l.currentPath())

	removed := 0
	var errs []error
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil || !info.ModTime().Before(olderThan) {
			continue
		}
		isCurrent := path == l.currentPath()
		if isCurrent && l.file != nil {
			_ = l.file.Close()
			l.file = nil
		}
		if err := os.Remove(path); err != nil {
			errs = append(errs, err)
		} else {
			removed++
		}
		if isCurrent {
			if err := l.openLocked(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if removed > 0 {
		l.log.Info("очистка журнала ошибок", "removed", removed, "older_than", olderThan.Format(time.RFC3339))
	}
	return removed, errors.Join(errs...)
}

// Stats возвращает текущие счётчики.
func (l *Logger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.stats
	s.BufferedEntries = len(l.buf)
	s.CurrentFileSize = l.size
	if archives, err := l.archives(); err == nil {
		s.Archives = len(archives)
	}
	return s
}

// Close останавливает таймеры, сбрасывает буфер и закрывает файл.
func (l *Logger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	cancel := l.cancel
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	l.wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	flushErr := l.flushLocked()
	l.closed = true
	if l.file == nil {
		return flushErr
	}
	syncErr := l.file.Sync()
	closeErr := l.file.Close()
	l.file = nil
	return errors.Join(flushErr, syncErr, closeErr)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

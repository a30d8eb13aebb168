// Package mssql — проверка доступности Microsoft SQL Server для действия
// восстановления data_recovery: соединение открывается лениво, проверяется
// ping и контрольным запросом, а после сбоя пересоздаётся.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	// драйвер sqlserver
	_ "github.com/denisenkom/go-mssqldb"

	"github.com/Kargones/errmgr/internal/pkg/logging"
	"github.com/Kargones/errmgr/internal/pkg/urlutil"
)

// Значения по умолчанию.
const (
	DefaultPort     = 1433
	DefaultDatabase = "master"
	DefaultTimeout  = 5 * time.Second
	DefaultQuery    = "SELECT 1"
)

var (
	// ErrServerRequired возвращается без адреса сервера.
	ErrServerRequired = errors.New("mssql: не задан server")
	// ErrInvalidPort возвращается для порта вне 1..65535.
	ErrInvalidPort = errors.New("mssql: некорректный port")
	// ErrUnavailable оборачивает любую неудачную проверку.
	ErrUnavailable = errors.New("mssql: база данных недоступна")
)

// Options — параметры подключения.
type Options struct {
	Server   string
	Port     int
	User     string
	Password string
	Database string
	// Timeout ограничивает одну проверку целиком.
	Timeout time.Duration
	// DisableEncrypt отключает TLS (только для локальных стендов).
	DisableEncrypt bool
	// Query — контрольный запрос, должен вернуть одну строку.
	Query string
}

func (o *Options) applyDefaults() error {
	if o.Server == "" {
		return ErrServerRequired
	}
	if o.Port == 0 {
		o.Port = DefaultPort
	}
	if o.Port < 1 || o.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, o.Port)
	}
	if o.Database == "" {
		o.Database = DefaultDatabase
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Query == "" {
		o.Query = DefaultQuery
	}
	return nil
}

// DSN возвращает строку подключения в URL-форме go-mssqldb.
func (o *Options) DSN() string {
	q := url.Values{}
	q.Set("database", o.Database)
	q.Set("connection timeout", strconv.Itoa(int(o.Timeout.Seconds())))
	if o.DisableEncrypt {
		q.Set("encrypt", "disable")
	} else {
		q.Set("encrypt", "true")
	}
	u := url.URL{
		Scheme:   "sqlserver",
		Host:     net.JoinHostPort(o.Server, strconv.Itoa(o.Port)),
		RawQuery: q.Encode(),
	}
	if o.User != "" {
		u.User = url.UserPassword(o.User, o.Password)
	}
	return u.String()
}

type openFunc func(driver, dsn string) (*sql.DB, error)

// Probe проверяет доступность базы. Безопасен для конкурентного использования.
type Probe struct {
	opts Options
	log  logging.Logger
	open openFunc

	mu sync.Mutex
	db *sql.DB
}

// New создаёт Probe. Соединение не открывается до первого Ping.
func New(opts Options, log logging.Logger) (*Probe, error) {
	if err := opts.applyDefaults(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Probe{opts: opts, log: log.With("component", "mssql"), open: sql.Open}, nil
}

// NewWithDB создаёт Probe поверх готового пула (для тестов со sqlmock).
func NewWithDB(db *sql.DB, opts Options, log logging.Logger) *Probe {
	if opts.Server == "" {
		opts.Server = "preopened"
	}
	_ = opts.applyDefaults()
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Probe{opts: opts, log: log, db: db, open: sql.Open}
}

// Ping открывает соединение при необходимости, проверяет ping и
// контрольный запрос. После неудачи пул закрывается, следующий Ping
// подключается заново.
func (p *Probe) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db == nil {
		db, err := p.open("sqlserver", p.opts.DSN())
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		p.db = db
		p.log.Debug("открыто соединение", "dsn", urlutil.RedactDSN(p.opts.DSN()))
	}

	if err := p.check(ctx); err != nil {
		p.log.Warn("проверка базы данных не пройдена", "server", p.opts.Server, "error", err.Error())
		_ = p.db.Close()
		p.db = nil
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

func (p *Probe) check(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return err
	}
	var one int
	if err := p.db.QueryRowContext(ctx, p.opts.Query).Scan(&one); err != nil {
		return fmt.Errorf("контрольный запрос: %w", err)
	}
	return nil
}

// Close закрывает пул соединений.
func (p *Probe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

// Package config загружает единую конфигурацию errmgr. Файл читается
// через yaml.v3, затем cleanenv применяет переменные окружения EM_* и
// заполняет env-default для полей, оставшихся нулевыми. Приоритет:
// окружение, файл, значения по умолчанию.
//
// Нулевое значение в файле неотличимо от отсутствующего, поэтому все
// bool поля имеют значение по умолчанию false.
package config

import (
	"time"

	"github.com/Kargones/errmgr/internal/pkg/alerting"
)

// Config — конфигурация всех компонентов pipeline.
type Config struct {
	App        AppConfig         `yaml:"app"`
	Logging    LoggingConfig     `yaml:"logging"`
	ErrorLog   ErrorLogConfig    `yaml:"errorLog"`
	Reporting  ReportingConfig   `yaml:"reporting"`
	Recovery   RecoveryConfig    `yaml:"recovery"`
	Manager    ManagerConfig     `yaml:"manager"`
	Dialog     DialogConfig      `yaml:"dialog"`
	Analytics  AnalyticsConfig   `yaml:"analytics"`
	Thresholds []ThresholdConfig `yaml:"thresholds"`
	Alerting   AlertingConfig    `yaml:"alerting"`
	Metrics    MetricsConfig     `yaml:"metrics"`
	Tracing    TracingConfig     `yaml:"tracing"`
}

// AppConfig — параметры процесса и CLI.
type AppConfig struct {
	// Command — команда CLI: run, query, analytics, cleanup, version.
	Command     string `yaml:"command" env:"EM_COMMAND" env-default:"run"`
	Environment string `yaml:"environment" env:"EM_ENVIRONMENT" env-default:"production"`
	// DataDir — корневой каталог данных; errorLog.dir и reporting.dir по
	// умолчанию вложены в него.
	DataDir      string `yaml:"dataDir" env:"EM_DATA_DIR" env-default:"/var/lib/errmgr"`
	OutputFormat string `yaml:"outputFormat" env:"EM_OUTPUT_FORMAT" env-default:"text"`

	// Параметры команд query, analytics и cleanup.
	QuerySince    time.Duration `yaml:"querySince" env:"EM_QUERY_SINCE" env-default:"24h"`
	QueryLimit    int           `yaml:"queryLimit" env:"EM_QUERY_LIMIT" env-default:"100"`
	QuerySeverity string        `yaml:"querySeverity" env:"EM_QUERY_SEVERITY"`
	QueryCategory string        `yaml:"queryCategory" env:"EM_QUERY_CATEGORY"`
	QueryCode     string        `yaml:"queryCode" env:"EM_QUERY_CODE"`
	CleanupAge    time.Duration `yaml:"cleanupAge" env:"EM_CLEANUP_AGE" env-default:"720h"`
}

// LoggingConfig — диагностический журнал процесса.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"EM_LOG_LEVEL" env-default:"info"`
	Format     string `yaml:"format" env:"EM_LOG_FORMAT" env-default:"text"`
	Output     string `yaml:"output" env:"EM_LOG_OUTPUT" env-default:"stderr"`
	FilePath   string `yaml:"filePath" env:"EM_LOG_FILE_PATH" env-default:"/var/log/errmgr/errmgr.log"`
	MaxSize    int    `yaml:"maxSize" env:"EM_LOG_MAX_SIZE" env-default:"50"`
	MaxBackups int    `yaml:"maxBackups" env:"EM_LOG_MAX_BACKUPS" env-default:"5"`
	MaxAge     int    `yaml:"maxAge" env:"EM_LOG_MAX_AGE" env-default:"14"`
	Compress   bool   `yaml:"compress" env:"EM_LOG_COMPRESS"`
	AddSource  bool   `yaml:"addSource" env:"EM_LOG_ADD_SOURCE"`
}

// ErrorLogConfig — журнал ошибок приложения.
type ErrorLogConfig struct {
	// Dir — пусто означает <dataDir>/logs.
	Dir      string `yaml:"dir" env:"EM_ERRORLOG_DIR"`
	FileName string `yaml:"fileName" env:"EM_ERRORLOG_FILE" env-default:"errors.log"`
	Format   string `yaml:"format" env:"EM_ERRORLOG_FORMAT" env-default:"json"`
	// Level — минимальная severity: info, low, medium, high, critical.
	Level                 string        `yaml:"level" env:"EM_ERRORLOG_LEVEL" env-default:"low"`
	MaxFileSize           int64         `yaml:"maxFileSize" env:"EM_ERRORLOG_MAX_FILE_SIZE" env-default:"10485760"`
	MaxFiles              int           `yaml:"maxFiles" env:"EM_ERRORLOG_MAX_FILES" env-default:"5"`
	FlushInterval         time.Duration `yaml:"flushInterval" env:"EM_ERRORLOG_FLUSH_INTERVAL" env-default:"5s"`
	RotationCheckInterval time.Duration `yaml:"rotationCheckInterval" env:"EM_ERRORLOG_ROTATION_INTERVAL" env-default:"60s"`
	BufferSize            int           `yaml:"bufferSize" env:"EM_ERRORLOG_BUFFER_SIZE" env-default:"100"`
}

// ReportingConfig — Crash Reporter.
type ReportingConfig struct {
	// Dir — пусто означает <dataDir>/crashes.
	Dir            string        `yaml:"dir" env:"EM_REPORT_DIR"`
	Endpoint       string        `yaml:"endpoint" env:"EM_REPORT_ENDPOINT"`
	Token          string        `yaml:"token" env:"EM_REPORT_TOKEN"`
	Timeout        time.Duration `yaml:"timeout" env:"EM_REPORT_TIMEOUT" env-default:"10s"`
	Retention      time.Duration `yaml:"retention" env:"EM_REPORT_RETENTION" env-default:"720h"`
	SweepInterval  time.Duration `yaml:"sweepInterval" env:"EM_REPORT_SWEEP_INTERVAL" env-default:"24h"`
	MaxUserActions int           `yaml:"maxUserActions" env:"EM_REPORT_MAX_USER_ACTIONS" env-default:"50"`
	// DisableSignals отключает отчёты по SIGTERM, SIGINT, SIGHUP, SIGQUIT.
	DisableSignals bool `yaml:"disableSignals" env:"EM_REPORT_DISABLE_SIGNALS"`
}

// RecoveryConfig — Recovery Manager и стандартные действия.
type RecoveryConfig struct {
	MaxConcurrent   int            `yaml:"maxConcurrent" env:"EM_RECOVERY_MAX_CONCURRENT" env-default:"5"`
	HistorySize     int            `yaml:"historySize" env:"EM_RECOVERY_HISTORY_SIZE" env-default:"10"`
	MaxRetries      int            `yaml:"maxRetries" env:"EM_RECOVERY_MAX_RETRIES" env-default:"3"`
	Delay           time.Duration  `yaml:"delay" env:"EM_RECOVERY_DELAY" env-default:"1s"`
	Timeout         time.Duration  `yaml:"timeout" env:"EM_RECOVERY_TIMEOUT" env-default:"30s"`
	DisableFallback bool           `yaml:"disableFallback" env:"EM_RECOVERY_DISABLE_FALLBACK"`
	DisableDefaults bool           `yaml:"disableDefaults" env:"EM_RECOVERY_DISABLE_DEFAULTS"`
	ProbeURL        string         `yaml:"probeUrl" env:"EM_RECOVERY_PROBE_URL"`
	Database        DatabaseConfig `yaml:"database"`
}

// DatabaseConfig — база данных, доступность которой проверяет data_recovery.
// Пустой Server отключает проверку.
type DatabaseConfig struct {
	Server         string        `yaml:"server" env:"EM_DB_SERVER"`
	Port           int           `yaml:"port" env:"EM_DB_PORT" env-default:"1433"`
	User           string        `yaml:"user" env:"EM_DB_USER"`
	Password       string        `yaml:"password" env:"EM_DB_PASSWORD"`
	Database       string        `yaml:"database" env:"EM_DB_NAME" env-default:"master"`
	Timeout        time.Duration `yaml:"timeout" env:"EM_DB_TIMEOUT" env-default:"5s"`
	DisableEncrypt bool          `yaml:"disableEncrypt" env:"EM_DB_DISABLE_ENCRYPT"`
}

// ManagerConfig — Error Manager и фильтр по умолчанию.
type ManagerConfig struct {
	QueueSize   int           `yaml:"queueSize" env:"EM_QUEUE_SIZE" env-default:"1000"`
	RetryDelay  time.Duration `yaml:"retryDelay" env:"EM_RETRY_DELAY" env-default:"1s"`
	MaxRetries  int           `yaml:"maxRetries" env:"EM_MAX_RETRIES" env-default:"3"`
	LogLevel    string        `yaml:"logLevel" env:"EM_FILTER_LOG_LEVEL" env-default:"low"`
	ReportLevel string        `yaml:"reportLevel" env:"EM_FILTER_REPORT_LEVEL" env-default:"high"`
	NotifyLevel string        `yaml:"notifyLevel" env:"EM_FILTER_NOTIFY_LEVEL" env-default:"medium"`
	IgnoreCodes []string      `yaml:"ignoreCodes" env:"EM_FILTER_IGNORE_CODES" env-separator:","`
}

// DialogConfig — синтез диалогов.
type DialogConfig struct {
	ShowTechnicalDetails bool          `yaml:"showTechnicalDetails" env:"EM_DIALOG_TECHNICAL_DETAILS"`
	AutoClose            time.Duration `yaml:"autoClose" env:"EM_DIALOG_AUTO_CLOSE" env-default:"10s"`
	MaxPending           int           `yaml:"maxPending" env:"EM_DIALOG_MAX_PENDING" env-default:"100"`
}

// AnalyticsConfig — Error Analytics.
type AnalyticsConfig struct {
	HistorySize         int           `yaml:"historySize" env:"EM_ANALYTICS_HISTORY_SIZE" env-default:"10000"`
	CacheTTL            time.Duration `yaml:"cacheTtl" env:"EM_ANALYTICS_CACHE_TTL" env-default:"60s"`
	AlertInterval       time.Duration `yaml:"alertInterval" env:"EM_ANALYTICS_ALERT_INTERVAL" env-default:"60s"`
	EstimatedOperations int           `yaml:"estimatedOperations" env:"EM_ANALYTICS_ESTIMATED_OPERATIONS" env-default:"1000"`
	TopN                int           `yaml:"topN" env:"EM_ANALYTICS_TOP_N" env-default:"10"`
	MemoryThresholdMB   uint64        `yaml:"memoryThresholdMb" env:"EM_ANALYTICS_MEMORY_THRESHOLD_MB" env-default:"512"`
	CPUThreshold        float64       `yaml:"cpuThreshold" env:"EM_ANALYTICS_CPU_THRESHOLD" env-default:"80"`
	SlowOperation       time.Duration `yaml:"slowOperation" env:"EM_ANALYTICS_SLOW_OPERATION" env-default:"5s"`
	DisableDefaultRules bool          `yaml:"disableDefaultRules" env:"EM_ANALYTICS_DISABLE_DEFAULT_RULES"`
}

// ThresholdConfig — порог ошибок. Задаётся только в yaml файле.
type ThresholdConfig struct {
	Category string        `yaml:"category"`
	Severity string        `yaml:"severity"`
	Count    int           `yaml:"count"`
	Window   time.Duration `yaml:"window"`
	// Action: log_warning, notify, enable_safe_mode, restart_component,
	// shutdown (или shutdown_application).
	Action string `yaml:"action"`
}

// AlertingConfig — каналы доставки для действий webhook и email правил analytics.
type AlertingConfig struct {
	Enabled         bool                 `yaml:"enabled" env:"EM_ALERTING_ENABLED"`
	RateLimitWindow time.Duration        `yaml:"rateLimitWindow" env:"EM_ALERTING_RATE_LIMIT_WINDOW" env-default:"5m"`
	Email           EmailChannelConfig   `yaml:"email"`
	Webhook         WebhookChannelConfig `yaml:"webhook"`
	Rules           alerting.RulesConfig `yaml:"rules"`
}

// EmailChannelConfig — SMTP канал.
type EmailChannelConfig struct {
	Enabled         bool          `yaml:"enabled" env:"EM_ALERTING_EMAIL_ENABLED"`
	SMTPHost        string        `yaml:"smtpHost" env:"EM_ALERTING_SMTP_HOST"`
	SMTPPort        int           `yaml:"smtpPort" env:"EM_ALERTING_SMTP_PORT" env-default:"587"`
	SMTPUser        string        `yaml:"smtpUser" env:"EM_ALERTING_SMTP_USER"`
	SMTPPassword    string        `yaml:"smtpPassword" env:"EM_ALERTING_SMTP_PASSWORD"`
	DisableTLS      bool          `yaml:"disableTls" env:"EM_ALERTING_SMTP_DISABLE_TLS"`
	From            string        `yaml:"from" env:"EM_ALERTING_EMAIL_FROM"`
	To              []string      `yaml:"to" env:"EM_ALERTING_EMAIL_TO" env-separator:","`
	SubjectTemplate string        `yaml:"subjectTemplate" env:"EM_ALERTING_EMAIL_SUBJECT"`
	Timeout         time.Duration `yaml:"timeout" env:"EM_ALERTING_SMTP_TIMEOUT" env-default:"30s"`
}

// WebhookChannelConfig — HTTP канал.
type WebhookChannelConfig struct {
	Enabled    bool              `yaml:"enabled" env:"EM_ALERTING_WEBHOOK_ENABLED"`
	URLs       []string          `yaml:"urls" env:"EM_ALERTING_WEBHOOK_URLS" env-separator:","`
	Headers    map[string]string `yaml:"headers"`
	Timeout    time.Duration     `yaml:"timeout" env:"EM_ALERTING_WEBHOOK_TIMEOUT" env-default:"10s"`
	MaxRetries int               `yaml:"maxRetries" env:"EM_ALERTING_WEBHOOK_MAX_RETRIES" env-default:"3"`
}

// MetricsConfig — Prometheus Pushgateway.
type MetricsConfig struct {
	Enabled        bool          `yaml:"enabled" env:"EM_METRICS_ENABLED"`
	PushgatewayURL string        `yaml:"pushgatewayUrl" env:"EM_METRICS_PUSHGATEWAY_URL"`
	JobName        string        `yaml:"jobName" env:"EM_METRICS_JOB_NAME" env-default:"errmgr"`
	Timeout        time.Duration `yaml:"timeout" env:"EM_METRICS_TIMEOUT" env-default:"10s"`
	InstanceLabel  string        `yaml:"instanceLabel" env:"EM_METRICS_INSTANCE"`
}

// TracingConfig — OpenTelemetry OTLP HTTP.
type TracingConfig struct {
	Enabled      bool          `yaml:"enabled" env:"EM_TRACING_ENABLED"`
	Endpoint     string        `yaml:"endpoint" env:"EM_TRACING_ENDPOINT"`
	ServiceName  string        `yaml:"serviceName" env:"EM_TRACING_SERVICE_NAME" env-default:"errmgr"`
	Insecure     bool          `yaml:"insecure" env:"EM_TRACING_INSECURE"`
	Timeout      time.Duration `yaml:"timeout" env:"EM_TRACING_TIMEOUT" env-default:"5s"`
	SamplingRate float64       `yaml:"samplingRate" env:"EM_TRACING_SAMPLING_RATE" env-default:"1.0"`
}

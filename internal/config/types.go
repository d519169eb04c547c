package config

// Config is the full forumpulse configuration, loadable from JSON or YAML.
// All duration fields are Go duration strings (e.g. "500ms", "10s", "5m").
type Config struct {
	Forum        ForumConfig        `json:"forum"`
	Classifier   ClassifierConfig   `json:"classifier"`
	Telegram     TelegramConfig     `json:"telegram"`
	Logging      LoggingConfig      `json:"logging"`
	Storage      StorageConfig      `json:"storage"`
	Orchestrator OrchestratorConfig `json:"orchestrator"`
	Reports      ReportsConfig      `json:"reports"`
}

type ForumConfig struct {
	BaseURL    string `json:"base_url"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
	Timeout    string `json:"timeout,omitempty"`
}

type ClassifierConfig struct {
	URL       string `json:"url"`
	HealthURL string `json:"health_url,omitempty"`
	Timeout   string `json:"timeout,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// ReportChat is the destination chat ID for reports and log fanout.
	ReportChat     int64  `json:"report_chat"`
	ReportThreadID int    `json:"report_thread_id,omitempty"`
	Timeout        string `json:"timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
	Chat    LoggingChat `json:"chat"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingChat struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// OrchestratorConfig controls trigger and failure-handling behavior.
type OrchestratorConfig struct {
	// Timezone for cron evaluation. Default "UTC".
	Timezone string `json:"timezone,omitempty"`

	// MaxFailures is the process-wide failure count that triggers a restart
	// cycle. Default 10.
	MaxFailures int `json:"max_failures,omitempty"`

	// Cooldown between stopping and restarting triggers. Default "5s".
	Cooldown string `json:"cooldown,omitempty"`

	// Heartbeat is the status emission interval. Default "5m".
	Heartbeat string `json:"heartbeat,omitempty"`

	HistorySize int `json:"history_size,omitempty"`

	// IngestSchedule is the cron spec of the fetch-and-classify cycle.
	// Default "*/15 * * * *".
	IngestSchedule string `json:"ingest_schedule,omitempty"`

	// IngestBatch caps how many unclassified threads one cycle processes.
	IngestBatch int `json:"ingest_batch,omitempty"`
}

// ReportsConfig holds cron specs for the report dispatch jobs. Empty fields
// use the built-in defaults; "off" disables a cadence.
type ReportsConfig struct {
	Daily     string `json:"daily,omitempty"`
	Weekly    string `json:"weekly,omitempty"`
	Monthly   string `json:"monthly,omitempty"`
	Quarterly string `json:"quarterly,omitempty"`
	Yearly    string `json:"yearly,omitempty"`
}

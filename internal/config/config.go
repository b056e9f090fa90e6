// Package config loads SmartRecover's layered configuration: environment
// variables first, then a YAML document, then built-in defaults.
package config

import "time"

// Config is the fully resolved runtime configuration.
type Config struct {
	LLM              LLMConfig
	Logging          LoggingConfig
	IncidentConn     IncidentConnectorConfig
	KnowledgeBase    KnowledgeBaseConfig
	Cache            CacheConfig
	Agents           AgentsConfig
	PromptsPath      string
	PromptLogs       PromptLogsConfig
	Tracing          TracingConfig
	HTTPAddr         string
}

// LLMConfig selects and configures the active LLM provider plus per-backend
// settings. All four backends are always configured (empty where unused);
// the admin API can hot-swap Provider at runtime.
type LLMConfig struct {
	Provider    string // "openai" | "google" | "anthropic" | "ollama"
	Temperature float64
	CompleteTimeout time.Duration
	StreamIdleTimeout time.Duration

	OpenAI    OpenAIConfig
	Google    GoogleConfig
	Anthropic AnthropicConfig
	Ollama    OllamaConfig
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type GoogleConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

// LoggingConfig controls the ambient logging stack.
type LoggingConfig struct {
	Level          string // debug | info | warning | error | critical
	EnableTracing  bool   // function entry/exit tracing (distinct from OTel spans)
	File           string
	FileMaxBytes   int64
	FileMaxBackups int
}

// TracingConfig controls optional OpenTelemetry export.
type TracingConfig struct {
	Enabled        bool
	OTLPEndpoint   string
	ServiceName    string
	ServiceVersion string
	Environment    string
}

// IncidentConnectorConfig is a tagged config record for the IncidentConnector factory.
type IncidentConnectorConfig struct {
	Type string // mock | servicenow | jira

	Mock struct {
		IncidentsCSV   string
		TicketsCSV     string
		ChangesCSV     string
		LogsCSV        string
		EventsCSV      string
	}
	ServiceNow struct {
		BaseURL  string
		User     string
		Password string
	}
	Jira struct {
		BaseURL string
		Email   string
		Token   string
	}
}

// KnowledgeBaseConfig is a tagged config record for the KnowledgeBaseConnector factory.
type KnowledgeBaseConfig struct {
	Type string // mock | confluence

	Mock struct {
		DocsCSV   string
		DocsDir   string
	}
	Confluence struct {
		BaseURL string
		Email   string
		Token   string
		Space   string
	}
}

// CacheConfig controls the TTL cache of per-incident AgentData.
type CacheConfig struct {
	TTL time.Duration
}

// AgentsConfig tunes agent behaviors; defaults here match spec defaults and
// MUST NOT change even when exposed as configuration.
type AgentsConfig struct {
	SimilarIncidentsK    int
	SimilarityThreshold  float64
	KnowledgeDocsK       int
	ChangeWindowBefore   time.Duration
	ChangeWindowAfter    time.Duration
	TopSuspectThreshold  float64
	HighCorrelationMin   float64
	MediumCorrelationMin float64
	ContextMaxPerSection int
	QualityMinChars      int
	ConnectorTimeout     time.Duration
}

// PromptLogsConfig bounds the in-memory prompt log ring buffer.
type PromptLogsConfig struct {
	MaxEntries int
}

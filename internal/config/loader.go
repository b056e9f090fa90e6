package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v3"
)

var recognizedTopLevelKeys = map[string]bool{
	"llm":               true,
	"logging":           true,
	"incident_connector": true,
	"knowledge_base":    true,
	"cache":             true,
	"agents":            true,
	"prompts_path":      true,
	"prompt_logs":       true,
}

// Load resolves configuration from environment variables (highest
// precedence), an optional YAML file, then built-in defaults.
func Load() (Config, error) {
	_ = godotenv.Overload()

	cfg := defaults()

	if err := mergeYAML(&cfg, resolveConfigPath()); err != nil {
		return Config{}, err
	}

	applyEnv(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		LLM: LLMConfig{
			Provider:          "openai",
			Temperature:       0.2,
			CompleteTimeout:   60 * time.Second,
			StreamIdleTimeout: 30 * time.Second,
			OpenAI:            OpenAIConfig{Model: "gpt-4o-mini"},
			Google:            GoogleConfig{Model: "gemini-1.5-flash"},
			Anthropic:         AnthropicConfig{Model: "claude-3-5-sonnet-latest"},
			Ollama:            OllamaConfig{BaseURL: "http://localhost:11434/v1", Model: "llama3"},
		},
		Logging: LoggingConfig{
			Level:          "info",
			FileMaxBytes:   10 * 1024 * 1024,
			FileMaxBackups: 3,
		},
		IncidentConn: IncidentConnectorConfig{Type: "mock"},
		KnowledgeBase: KnowledgeBaseConfig{Type: "mock"},
		Cache:        CacheConfig{TTL: 5 * time.Minute},
		Agents: AgentsConfig{
			SimilarIncidentsK:    5,
			SimilarityThreshold:  0.2,
			KnowledgeDocsK:       5,
			ChangeWindowBefore:   7 * 24 * time.Hour,
			ChangeWindowAfter:    1 * time.Hour,
			TopSuspectThreshold:  0.7,
			HighCorrelationMin:   0.5,
			MediumCorrelationMin: 0.3,
			ContextMaxPerSection: 5,
			QualityMinChars:      20,
			ConnectorTimeout:     10 * time.Second,
		},
		PromptsPath: "prompts.json",
		PromptLogs:  PromptLogsConfig{MaxEntries: 500},
		Tracing: TracingConfig{
			ServiceName:    "smartrecoverd",
			ServiceVersion: "dev",
			Environment:    "dev",
		},
		HTTPAddr: ":8080",
	}
}

// mergeYAML reads the YAML document at path, if it exists, rejecting any
// unrecognized top-level key as a config-error. Nested unknown keys are
// permitted by yaml.v3's normal unmarshal behavior but are reported as
// warnings via the not-yet-initialized logger's fallback (stderr), since the
// structured logger depends on this very config.
func mergeYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("config-error: parse %s: %w", path, err)
	}
	for key := range raw {
		if !recognizedTopLevelKeys[key] {
			return fmt.Errorf("config-error: unrecognized top-level config key %q in %s", key, path)
		}
	}

	var doc yamlDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("config-error: parse %s: %w", path, err)
	}
	doc.apply(cfg)

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&yamlDocument{}); err != nil && !errors.Is(err, io.EOF) {
		fmt.Fprintf(os.Stderr, "config warning: %s: %v\n", path, err)
	}
	return nil
}

type yamlDocument struct {
	LLM *struct {
		Provider    string  `yaml:"provider"`
		Temperature float64 `yaml:"temperature"`
		OpenAI      struct {
			APIKey  string `yaml:"api_key"`
			Model   string `yaml:"model"`
			BaseURL string `yaml:"base_url"`
		} `yaml:"openai"`
		Google struct {
			APIKey  string `yaml:"api_key"`
			Model   string `yaml:"model"`
			BaseURL string `yaml:"base_url"`
		} `yaml:"google"`
		Anthropic struct {
			APIKey  string `yaml:"api_key"`
			Model   string `yaml:"model"`
			BaseURL string `yaml:"base_url"`
		} `yaml:"anthropic"`
		Ollama struct {
			BaseURL string `yaml:"base_url"`
			Model   string `yaml:"model"`
		} `yaml:"ollama"`
	} `yaml:"llm"`

	Logging *struct {
		Level          string `yaml:"level"`
		EnableTracing  bool   `yaml:"enable_tracing"`
		File           string `yaml:"file"`
		FileMaxBytes   int64  `yaml:"file_max_bytes"`
		FileMaxBackups int    `yaml:"file_max_backups"`
	} `yaml:"logging"`

	IncidentConnector *struct {
		Type string `yaml:"type"`
		Mock struct {
			IncidentsCSV string `yaml:"incidents_csv"`
			TicketsCSV   string `yaml:"tickets_csv"`
			ChangesCSV   string `yaml:"changes_csv"`
			LogsCSV      string `yaml:"logs_csv"`
			EventsCSV    string `yaml:"events_csv"`
		} `yaml:"mock"`
		ServiceNow struct {
			BaseURL  string `yaml:"base_url"`
			User     string `yaml:"user"`
			Password string `yaml:"password"`
		} `yaml:"servicenow"`
		Jira struct {
			BaseURL string `yaml:"base_url"`
			Email   string `yaml:"email"`
			Token   string `yaml:"token"`
		} `yaml:"jira"`
	} `yaml:"incident_connector"`

	KnowledgeBase *struct {
		Type string `yaml:"type"`
		Mock struct {
			DocsCSV string `yaml:"docs_csv"`
			DocsDir string `yaml:"docs_dir"`
		} `yaml:"mock"`
		Confluence struct {
			BaseURL string `yaml:"base_url"`
			Email   string `yaml:"email"`
			Token   string `yaml:"token"`
			Space   string `yaml:"space"`
		} `yaml:"confluence"`
	} `yaml:"knowledge_base"`

	Cache *struct {
		TTLSeconds int `yaml:"ttl_seconds"`
	} `yaml:"cache"`

	Agents *struct {
		SimilarIncidentsK    int     `yaml:"similar_incidents_k"`
		SimilarityThreshold  float64 `yaml:"similarity_threshold"`
		KnowledgeDocsK       int     `yaml:"knowledge_docs_k"`
		ChangeWindowBeforeH  int     `yaml:"change_window_before_hours"`
		ChangeWindowAfterH   int     `yaml:"change_window_after_hours"`
		TopSuspectThreshold  float64 `yaml:"top_suspect_threshold"`
		HighCorrelationMin   float64 `yaml:"high_correlation_min"`
		MediumCorrelationMin float64 `yaml:"medium_correlation_min"`
		ContextMaxPerSection int     `yaml:"context_max_per_section"`
		QualityMinChars      int     `yaml:"quality_min_chars"`
		ConnectorTimeoutSec  int     `yaml:"connector_timeout_seconds"`
	} `yaml:"agents"`

	PromptsPath string `yaml:"prompts_path"`

	PromptLogs *struct {
		MaxEntries int `yaml:"max_entries"`
	} `yaml:"prompt_logs"`
}

func (d yamlDocument) apply(cfg *Config) {
	if d.LLM != nil {
		if d.LLM.Provider != "" {
			cfg.LLM.Provider = d.LLM.Provider
		}
		if d.LLM.Temperature != 0 {
			cfg.LLM.Temperature = d.LLM.Temperature
		}
		if d.LLM.OpenAI.APIKey != "" {
			cfg.LLM.OpenAI.APIKey = d.LLM.OpenAI.APIKey
		}
		if d.LLM.OpenAI.Model != "" {
			cfg.LLM.OpenAI.Model = d.LLM.OpenAI.Model
		}
		if d.LLM.OpenAI.BaseURL != "" {
			cfg.LLM.OpenAI.BaseURL = d.LLM.OpenAI.BaseURL
		}
		if d.LLM.Google.APIKey != "" {
			cfg.LLM.Google.APIKey = d.LLM.Google.APIKey
		}
		if d.LLM.Google.Model != "" {
			cfg.LLM.Google.Model = d.LLM.Google.Model
		}
		if d.LLM.Google.BaseURL != "" {
			cfg.LLM.Google.BaseURL = d.LLM.Google.BaseURL
		}
		if d.LLM.Anthropic.APIKey != "" {
			cfg.LLM.Anthropic.APIKey = d.LLM.Anthropic.APIKey
		}
		if d.LLM.Anthropic.Model != "" {
			cfg.LLM.Anthropic.Model = d.LLM.Anthropic.Model
		}
		if d.LLM.Anthropic.BaseURL != "" {
			cfg.LLM.Anthropic.BaseURL = d.LLM.Anthropic.BaseURL
		}
		if d.LLM.Ollama.BaseURL != "" {
			cfg.LLM.Ollama.BaseURL = d.LLM.Ollama.BaseURL
		}
		if d.LLM.Ollama.Model != "" {
			cfg.LLM.Ollama.Model = d.LLM.Ollama.Model
		}
	}
	if d.Logging != nil {
		if d.Logging.Level != "" {
			cfg.Logging.Level = d.Logging.Level
		}
		cfg.Logging.EnableTracing = d.Logging.EnableTracing
		if d.Logging.File != "" {
			cfg.Logging.File = d.Logging.File
		}
		if d.Logging.FileMaxBytes != 0 {
			cfg.Logging.FileMaxBytes = d.Logging.FileMaxBytes
		}
		if d.Logging.FileMaxBackups != 0 {
			cfg.Logging.FileMaxBackups = d.Logging.FileMaxBackups
		}
	}
	if d.IncidentConnector != nil {
		if d.IncidentConnector.Type != "" {
			cfg.IncidentConn.Type = d.IncidentConnector.Type
		}
		if d.IncidentConnector.Mock.IncidentsCSV != "" {
			cfg.IncidentConn.Mock.IncidentsCSV = d.IncidentConnector.Mock.IncidentsCSV
		}
		if d.IncidentConnector.Mock.TicketsCSV != "" {
			cfg.IncidentConn.Mock.TicketsCSV = d.IncidentConnector.Mock.TicketsCSV
		}
		if d.IncidentConnector.Mock.ChangesCSV != "" {
			cfg.IncidentConn.Mock.ChangesCSV = d.IncidentConnector.Mock.ChangesCSV
		}
		if d.IncidentConnector.Mock.LogsCSV != "" {
			cfg.IncidentConn.Mock.LogsCSV = d.IncidentConnector.Mock.LogsCSV
		}
		if d.IncidentConnector.Mock.EventsCSV != "" {
			cfg.IncidentConn.Mock.EventsCSV = d.IncidentConnector.Mock.EventsCSV
		}
		if d.IncidentConnector.ServiceNow.BaseURL != "" {
			cfg.IncidentConn.ServiceNow.BaseURL = d.IncidentConnector.ServiceNow.BaseURL
		}
		if d.IncidentConnector.ServiceNow.User != "" {
			cfg.IncidentConn.ServiceNow.User = d.IncidentConnector.ServiceNow.User
		}
		if d.IncidentConnector.ServiceNow.Password != "" {
			cfg.IncidentConn.ServiceNow.Password = d.IncidentConnector.ServiceNow.Password
		}
		if d.IncidentConnector.Jira.BaseURL != "" {
			cfg.IncidentConn.Jira.BaseURL = d.IncidentConnector.Jira.BaseURL
		}
		if d.IncidentConnector.Jira.Email != "" {
			cfg.IncidentConn.Jira.Email = d.IncidentConnector.Jira.Email
		}
		if d.IncidentConnector.Jira.Token != "" {
			cfg.IncidentConn.Jira.Token = d.IncidentConnector.Jira.Token
		}
	}
	if d.KnowledgeBase != nil {
		if d.KnowledgeBase.Type != "" {
			cfg.KnowledgeBase.Type = d.KnowledgeBase.Type
		}
		if d.KnowledgeBase.Mock.DocsCSV != "" {
			cfg.KnowledgeBase.Mock.DocsCSV = d.KnowledgeBase.Mock.DocsCSV
		}
		if d.KnowledgeBase.Mock.DocsDir != "" {
			cfg.KnowledgeBase.Mock.DocsDir = d.KnowledgeBase.Mock.DocsDir
		}
		if d.KnowledgeBase.Confluence.BaseURL != "" {
			cfg.KnowledgeBase.Confluence.BaseURL = d.KnowledgeBase.Confluence.BaseURL
		}
		if d.KnowledgeBase.Confluence.Email != "" {
			cfg.KnowledgeBase.Confluence.Email = d.KnowledgeBase.Confluence.Email
		}
		if d.KnowledgeBase.Confluence.Token != "" {
			cfg.KnowledgeBase.Confluence.Token = d.KnowledgeBase.Confluence.Token
		}
		if d.KnowledgeBase.Confluence.Space != "" {
			cfg.KnowledgeBase.Confluence.Space = d.KnowledgeBase.Confluence.Space
		}
	}
	if d.Cache != nil && d.Cache.TTLSeconds != 0 {
		cfg.Cache.TTL = time.Duration(d.Cache.TTLSeconds) * time.Second
	}
	if d.Agents != nil {
		a := d.Agents
		if a.SimilarIncidentsK != 0 {
			cfg.Agents.SimilarIncidentsK = a.SimilarIncidentsK
		}
		if a.SimilarityThreshold != 0 {
			cfg.Agents.SimilarityThreshold = a.SimilarityThreshold
		}
		if a.KnowledgeDocsK != 0 {
			cfg.Agents.KnowledgeDocsK = a.KnowledgeDocsK
		}
		if a.ChangeWindowBeforeH != 0 {
			cfg.Agents.ChangeWindowBefore = time.Duration(a.ChangeWindowBeforeH) * time.Hour
		}
		if a.ChangeWindowAfterH != 0 {
			cfg.Agents.ChangeWindowAfter = time.Duration(a.ChangeWindowAfterH) * time.Hour
		}
		if a.TopSuspectThreshold != 0 {
			cfg.Agents.TopSuspectThreshold = a.TopSuspectThreshold
		}
		if a.HighCorrelationMin != 0 {
			cfg.Agents.HighCorrelationMin = a.HighCorrelationMin
		}
		if a.MediumCorrelationMin != 0 {
			cfg.Agents.MediumCorrelationMin = a.MediumCorrelationMin
		}
		if a.ContextMaxPerSection != 0 {
			cfg.Agents.ContextMaxPerSection = a.ContextMaxPerSection
		}
		if a.QualityMinChars != 0 {
			cfg.Agents.QualityMinChars = a.QualityMinChars
		}
		if a.ConnectorTimeoutSec != 0 {
			cfg.Agents.ConnectorTimeout = time.Duration(a.ConnectorTimeoutSec) * time.Second
		}
	}
	if d.PromptsPath != "" {
		cfg.PromptsPath = d.PromptsPath
	}
	if d.PromptLogs != nil && d.PromptLogs.MaxEntries != 0 {
		cfg.PromptLogs.MaxEntries = d.PromptLogs.MaxEntries
	}
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("LLM_PROVIDER")); v != "" {
		cfg.LLM.Provider = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		cfg.LLM.OpenAI.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")); v != "" {
		cfg.LLM.Google.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		cfg.LLM.Anthropic.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("OLLAMA_BASE_URL")); v != "" {
		cfg.LLM.Ollama.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("INCIDENT_CONNECTOR_TYPE")); v != "" {
		cfg.IncidentConn.Type = v
	}
	if v := strings.TrimSpace(os.Getenv("SERVICENOW_BASE_URL")); v != "" {
		cfg.IncidentConn.ServiceNow.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("SERVICENOW_USER")); v != "" {
		cfg.IncidentConn.ServiceNow.User = v
	}
	if v := strings.TrimSpace(os.Getenv("SERVICENOW_PASSWORD")); v != "" {
		cfg.IncidentConn.ServiceNow.Password = v
	}
	if v := strings.TrimSpace(os.Getenv("JIRA_BASE_URL")); v != "" {
		cfg.IncidentConn.Jira.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("JIRA_EMAIL")); v != "" {
		cfg.IncidentConn.Jira.Email = v
	}
	if v := strings.TrimSpace(os.Getenv("JIRA_TOKEN")); v != "" {
		cfg.IncidentConn.Jira.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("KNOWLEDGE_BASE_SOURCE")); v != "" {
		cfg.KnowledgeBase.Type = v
	}
	if v := strings.TrimSpace(os.Getenv("KB_CSV_PATH")); v != "" {
		cfg.KnowledgeBase.Mock.DocsCSV = v
	}
	if v := strings.TrimSpace(os.Getenv("KB_DOCS_FOLDER")); v != "" {
		cfg.KnowledgeBase.Mock.DocsDir = v
	}
	if v := strings.TrimSpace(os.Getenv("CONFLUENCE_BASE_URL")); v != "" {
		cfg.KnowledgeBase.Confluence.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("CONFLUENCE_EMAIL")); v != "" {
		cfg.KnowledgeBase.Confluence.Email = v
	}
	if v := strings.TrimSpace(os.Getenv("CONFLUENCE_TOKEN")); v != "" {
		cfg.KnowledgeBase.Confluence.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("CONFLUENCE_SPACE")); v != "" {
		cfg.KnowledgeBase.Confluence.Space = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_FILE")); v != "" {
		cfg.Logging.File = v
	}
	if v := strings.TrimSpace(os.Getenv("ENABLE_TRACING")); v != "" {
		cfg.Logging.EnableTracing = isTruthy(v)
		cfg.Tracing.Enabled = isTruthy(v)
	}
	if v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); v != "" {
		cfg.Tracing.OTLPEndpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
}

func validate(cfg Config) error {
	switch cfg.LLM.Provider {
	case "openai", "google", "anthropic", "ollama":
	default:
		return fmt.Errorf("config-error: llm.provider must be one of openai, google, anthropic, ollama (got %q)", cfg.LLM.Provider)
	}
	switch cfg.IncidentConn.Type {
	case "mock", "servicenow", "jira":
	default:
		return fmt.Errorf("config-error: incident_connector.type must be one of mock, servicenow, jira (got %q)", cfg.IncidentConn.Type)
	}
	switch cfg.KnowledgeBase.Type {
	case "mock", "confluence":
	default:
		return fmt.Errorf("config-error: knowledge_base.type must be one of mock, confluence (got %q)", cfg.KnowledgeBase.Type)
	}
	if cfg.LLM.Provider == "openai" && cfg.LLM.OpenAI.APIKey == "" {
		return errors.New("config-error: OPENAI_API_KEY is required when llm.provider is openai")
	}
	if cfg.LLM.Provider == "google" && cfg.LLM.Google.APIKey == "" {
		return errors.New("config-error: GOOGLE_API_KEY is required when llm.provider is google")
	}
	if cfg.LLM.Provider == "anthropic" && cfg.LLM.Anthropic.APIKey == "" {
		return errors.New("config-error: ANTHROPIC_API_KEY is required when llm.provider is anthropic")
	}
	return nil
}

func isTruthy(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b || strings.EqualFold(v, "yes")
}

// resolveConfigPath honors SMARTRECOVER_CONFIG if set, otherwise looks for
// config.yaml then config.yml in the working directory.
func resolveConfigPath() string {
	if v := strings.TrimSpace(os.Getenv("SMARTRECOVER_CONFIG")); v != "" {
		return v
	}
	for _, candidate := range []string{"config.yaml", "config.yml"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return "config.yaml"
}

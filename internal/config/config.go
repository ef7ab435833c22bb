// File path: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	DefaultOpenAIBaseURL     = "https://api.openai.com/v1"
	DefaultJinaReaderURL     = "https://r.jina.ai/"
)

// Provider holds connection settings for an OpenAI compatible endpoint.
type Provider struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	// FirstProvider pins OpenRouter provider routing; empty disables it.
	FirstProvider string `yaml:"first_provider"`
}

// Prompts carries the secret seed prompts every system prompt is built from.
type Prompts struct {
	PentestGPT string `yaml:"pentestgpt"`
	OpenAI     string `yaml:"openai"`
	RAG        string `yaml:"rag"`
}

type Models struct {
	Default            string `yaml:"default"`
	Pro                string `yaml:"pro"`
	StandaloneQuestion string `yaml:"standalone_question"`
}

type HackerRAG struct {
	Enabled         bool   `yaml:"enabled"`
	Endpoint        string `yaml:"endpoint"`
	GetDataEndpoint string `yaml:"get_data_endpoint"`
	APIKey          string `yaml:"api_key"`
	MinMessageLen   int    `yaml:"min_message_length"`
	MaxMessageLen   int    `yaml:"max_message_length"`
	TopK            int    `yaml:"top_k"`
}

type Browser struct {
	JinaToken     string        `yaml:"jina_token"`
	ReaderURL     string        `yaml:"reader_url"`
	AllowDirect   bool          `yaml:"allow_direct"`
	Timeout       time.Duration `yaml:"timeout"`
	CacheSize     int           `yaml:"cache_size"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	MaxPageLength int           `yaml:"max_page_length"`
}

type CodeInterpreter struct {
	// Mode is "remote", "local" or "disabled".
	Mode      string        `yaml:"mode"`
	Endpoint  string        `yaml:"endpoint"`
	APIKey    string        `yaml:"api_key"`
	PythonBin string        `yaml:"python_bin"`
	Timeout   time.Duration `yaml:"timeout"`
	// Sidecar launches Endpoint's server from SidecarCommand on startup.
	SidecarCommand string `yaml:"sidecar_command"`
}

// Limit caps requests per window for free and pro profiles.
type Limit struct {
	Free int `yaml:"free"`
	Pro  int `yaml:"pro"`
}

type RateLimit struct {
	Window time.Duration    `yaml:"window"`
	Limits map[string]Limit `yaml:"limits"`
}

type Config struct {
	Addr       string `yaml:"addr"`
	SQLitePath string `yaml:"sqlite_path"`

	OpenRouter Provider `yaml:"openrouter"`
	OpenAI     Provider `yaml:"openai"`
	Prompts    Prompts  `yaml:"prompts"`
	Models     Models   `yaml:"models"`

	HackerRAG       HackerRAG       `yaml:"hacker_rag"`
	Browser         Browser         `yaml:"browser"`
	CodeInterpreter CodeInterpreter `yaml:"code_interpreter"`
	RateLimit       RateLimit       `yaml:"rate_limit"`

	MessageSizeLimit int `yaml:"message_size_limit"`
	MessageSizeKeep  int `yaml:"message_size_keep"`
	WorkspaceLimit   int `yaml:"workspace_limit"`
	UploadLimitBytes int `yaml:"upload_limit_bytes"`

	SiteURL string `yaml:"site_url"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Addr:       ":8080",
		SQLitePath: filepath.Join("data", "pentestgpt.db"),
		OpenRouter: Provider{BaseURL: DefaultOpenRouterBaseURL},
		OpenAI:     Provider{BaseURL: DefaultOpenAIBaseURL},
		HackerRAG: HackerRAG{
			MinMessageLen: 25,
			MaxMessageLen: 1000,
			TopK:          3,
		},
		Browser: Browser{
			ReaderURL:     DefaultJinaReaderURL,
			Timeout:       20 * time.Second,
			CacheSize:     128,
			CacheTTL:      10 * time.Minute,
			MaxPageLength: 100000,
		},
		CodeInterpreter: CodeInterpreter{
			Mode:      "disabled",
			PythonBin: "python3",
			Timeout:   60 * time.Second,
		},
		RateLimit: RateLimit{
			Window: 3 * time.Hour,
			Limits: map[string]Limit{
				"pentestgpt":     {Free: 15, Pro: 100},
				"pentestgpt-pro": {Free: 0, Pro: 50},
				"gpt-4":          {Free: 0, Pro: 40},
			},
		},
		MessageSizeLimit: 12000,
		MessageSizeKeep:  2000,
		WorkspaceLimit:   10,
		UploadLimitBytes: 10 << 20,
		SiteURL:          "https://pentestgpt.com",
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// PENTESTGPT_CONFIG_FILE and finally the environment.
func Load() (Config, error) {
	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("PENTESTGPT_CONFIG_FILE")); path != "" {
		fileCfg, err := loadFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = cfg.Merge(fileCfg)
	}
	envCfg, err := loadEnv()
	if err != nil {
		return Config{}, err
	}
	cfg = cfg.Merge(envCfg)
	cfg.applyDefaults()
	return cfg, nil
}

// Merge overlays the non-zero fields of override.
func (c Config) Merge(o Config) Config {
	r := c
	setString(&r.Addr, o.Addr)
	setString(&r.SQLitePath, o.SQLitePath)
	r.OpenRouter = mergeProvider(r.OpenRouter, o.OpenRouter)
	r.OpenAI = mergeProvider(r.OpenAI, o.OpenAI)

	setString(&r.Prompts.PentestGPT, o.Prompts.PentestGPT)
	setString(&r.Prompts.OpenAI, o.Prompts.OpenAI)
	setString(&r.Prompts.RAG, o.Prompts.RAG)
	setString(&r.Models.Default, o.Models.Default)
	setString(&r.Models.Pro, o.Models.Pro)
	setString(&r.Models.StandaloneQuestion, o.Models.StandaloneQuestion)

	if o.HackerRAG.Enabled {
		r.HackerRAG.Enabled = true
	}
	setString(&r.HackerRAG.Endpoint, o.HackerRAG.Endpoint)
	setString(&r.HackerRAG.GetDataEndpoint, o.HackerRAG.GetDataEndpoint)
	setString(&r.HackerRAG.APIKey, o.HackerRAG.APIKey)
	setInt(&r.HackerRAG.MinMessageLen, o.HackerRAG.MinMessageLen)
	setInt(&r.HackerRAG.MaxMessageLen, o.HackerRAG.MaxMessageLen)
	setInt(&r.HackerRAG.TopK, o.HackerRAG.TopK)

	setString(&r.Browser.JinaToken, o.Browser.JinaToken)
	setString(&r.Browser.ReaderURL, o.Browser.ReaderURL)
	if o.Browser.AllowDirect {
		r.Browser.AllowDirect = true
	}
	setDuration(&r.Browser.Timeout, o.Browser.Timeout)
	setInt(&r.Browser.CacheSize, o.Browser.CacheSize)
	setDuration(&r.Browser.CacheTTL, o.Browser.CacheTTL)
	setInt(&r.Browser.MaxPageLength, o.Browser.MaxPageLength)

	setString(&r.CodeInterpreter.Mode, o.CodeInterpreter.Mode)
	setString(&r.CodeInterpreter.Endpoint, o.CodeInterpreter.Endpoint)
	setString(&r.CodeInterpreter.APIKey, o.CodeInterpreter.APIKey)
	setString(&r.CodeInterpreter.PythonBin, o.CodeInterpreter.PythonBin)
	setDuration(&r.CodeInterpreter.Timeout, o.CodeInterpreter.Timeout)
	setString(&r.CodeInterpreter.SidecarCommand, o.CodeInterpreter.SidecarCommand)

	setDuration(&r.RateLimit.Window, o.RateLimit.Window)
	if len(o.RateLimit.Limits) > 0 {
		limits := make(map[string]Limit, len(r.RateLimit.Limits)+len(o.RateLimit.Limits))
		for k, v := range r.RateLimit.Limits {
			limits[k] = v
		}
		for k, v := range o.RateLimit.Limits {
			limits[strings.ToLower(strings.TrimSpace(k))] = v
		}
		r.RateLimit.Limits = limits
	}

	setInt(&r.MessageSizeLimit, o.MessageSizeLimit)
	setInt(&r.MessageSizeKeep, o.MessageSizeKeep)
	setInt(&r.WorkspaceLimit, o.WorkspaceLimit)
	setInt(&r.UploadLimitBytes, o.UploadLimitBytes)
	setString(&r.SiteURL, o.SiteURL)
	return r
}

func mergeProvider(base, o Provider) Provider {
	setString(&base.BaseURL, o.BaseURL)
	setString(&base.APIKey, o.APIKey)
	setString(&base.FirstProvider, o.FirstProvider)
	return base
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.MessageSizeLimit <= 0 {
		c.MessageSizeLimit = d.MessageSizeLimit
	}
	if c.MessageSizeKeep <= 0 {
		c.MessageSizeKeep = d.MessageSizeKeep
	}
	if c.WorkspaceLimit <= 0 {
		c.WorkspaceLimit = d.WorkspaceLimit
	}
	if c.HackerRAG.TopK <= 0 {
		c.HackerRAG.TopK = d.HackerRAG.TopK
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = d.RateLimit.Window
	}
	mode := strings.ToLower(strings.TrimSpace(c.CodeInterpreter.Mode))
	switch mode {
	case "remote", "local", "disabled":
	default:
		mode = "disabled"
	}
	c.CodeInterpreter.Mode = mode
	c.OpenRouter.BaseURL = strings.TrimRight(c.OpenRouter.BaseURL, "/")
	c.OpenAI.BaseURL = strings.TrimRight(c.OpenAI.BaseURL, "/")
}

// RAGReady reports whether hacker RAG can be queried at all.
func (c Config) RAGReady() bool {
	return c.HackerRAG.Enabled && strings.TrimSpace(c.HackerRAG.Endpoint) != "" && strings.TrimSpace(c.HackerRAG.APIKey) != ""
}

func loadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

func loadEnv() (Config, error) {
	var cfg Config
	cfg.Addr = env("PENTESTGPT_ADDR")
	cfg.SQLitePath = env("SQLITE_PATH")

	cfg.OpenRouter = Provider{
		BaseURL:       env("OPENROUTER_BASE_URL"),
		APIKey:        env("OPENROUTER_API_KEY"),
		FirstProvider: env("OPENROUTER_FIRST_PROVIDER"),
	}
	cfg.OpenAI = Provider{
		BaseURL: env("OPENAI_BASE_URL"),
		APIKey:  env("OPENAI_API_KEY"),
	}
	cfg.Prompts = Prompts{
		PentestGPT: env("SECRET_PENTESTGPT_SYSTEM_PROMPT"),
		OpenAI:     env("SECRET_OPENAI_SYSTEM_PROMPT"),
		RAG:        env("RAG_SYSTEM_PROMPT"),
	}
	cfg.Models = Models{
		Default:            firstNonEmpty(env("OPENROUTER_PENTESTGPT_DEFAULT_MODEL"), env("OPENROUTER_PENTESTGPT_DEFUALT_MODEL")),
		Pro:                env("OPENROUTER_PENTESTGPT_PRO_MODEL"),
		StandaloneQuestion: env("OPENROUTER_STANDALONE_QUESTION_MODEL"),
	}

	var err error
	if cfg.HackerRAG.Enabled, err = envBool("HACKER_RAG_ENABLED"); err != nil {
		return Config{}, err
	}
	cfg.HackerRAG.Endpoint = env("HACKER_RAG_ENDPOINT")
	cfg.HackerRAG.GetDataEndpoint = env("HACKER_RAG_GET_DATA_ENDPOINT")
	cfg.HackerRAG.APIKey = env("HACKER_RAG_API_KEY")
	if cfg.HackerRAG.MinMessageLen, err = envInt("MIN_LAST_MESSAGE_LENGTH"); err != nil {
		return Config{}, err
	}
	if cfg.HackerRAG.MaxMessageLen, err = envInt("MAX_LAST_MESSAGE_LENGTH"); err != nil {
		return Config{}, err
	}

	cfg.Browser.JinaToken = env("JINA_API_TOKEN")
	cfg.Browser.ReaderURL = env("JINA_READER_URL")
	if cfg.Browser.AllowDirect, err = envBool("BROWSER_ALLOW_DIRECT"); err != nil {
		return Config{}, err
	}
	if cfg.Browser.CacheTTL, err = envDuration("BROWSER_CACHE_TTL"); err != nil {
		return Config{}, err
	}

	cfg.CodeInterpreter.Mode = env("CODE_INTERPRETER_MODE")
	cfg.CodeInterpreter.Endpoint = env("CODE_INTERPRETER_ENDPOINT")
	cfg.CodeInterpreter.APIKey = env("CODE_INTERPRETER_API_KEY")
	cfg.CodeInterpreter.PythonBin = env("PYTHON_BIN")
	cfg.CodeInterpreter.SidecarCommand = env("CODE_INTERPRETER_SIDECAR")
	if cfg.CodeInterpreter.Timeout, err = envDuration("CODE_INTERPRETER_TIMEOUT"); err != nil {
		return Config{}, err
	}

	if minutes, err := envInt("RATELIMITER_TIME_PERIOD_MINUTES"); err != nil {
		return Config{}, err
	} else if minutes > 0 {
		cfg.RateLimit.Window = time.Duration(minutes) * time.Minute
	}
	limits := map[string]Limit{}
	for _, key := range []string{"pentestgpt", "pentestgpt-pro", "gpt-4"} {
		envKey := strings.ToUpper(strings.NewReplacer("-", "_").Replace(key))
		free, err := envInt("RATELIMITER_LIMIT_" + envKey + "_FREE")
		if err != nil {
			return Config{}, err
		}
		pro, err := envInt("RATELIMITER_LIMIT_" + envKey + "_PREMIUM")
		if err != nil {
			return Config{}, err
		}
		if free > 0 || pro > 0 {
			limits[key] = Limit{Free: free, Pro: pro}
		}
	}
	if len(limits) > 0 {
		cfg.RateLimit.Limits = limits
	}

	if cfg.MessageSizeLimit, err = envInt("MESSAGE_SIZE_LIMIT"); err != nil {
		return Config{}, err
	}
	if cfg.MessageSizeKeep, err = envInt("MESSAGE_SIZE_KEEP"); err != nil {
		return Config{}, err
	}
	if cfg.WorkspaceLimit, err = envInt("NEXT_PUBLIC_RATELIMITER_LIMIT_WORKSPACES"); err != nil {
		return Config{}, err
	}
	cfg.SiteURL = env("PENTESTGPT_SITE_URL")
	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envInt(key string) (int, error) {
	value := env(key)
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func envBool(key string) (bool, error) {
	value := env(key)
	if value == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(strings.ToLower(value))
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}

func envDuration(key string) (time.Duration, error) {
	value := env(key)
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func setString(dst *string, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		*dst = trimmed
	}
}

func setInt(dst *int, value int) {
	if value > 0 {
		*dst = value
	}
}

func setDuration(dst *time.Duration, value time.Duration) {
	if value > 0 {
		*dst = value
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

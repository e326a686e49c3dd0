// Package config loads process configuration from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/codeGROOVE-dev/personamatch/pkg/logging"
	"github.com/codeGROOVE-dev/personamatch/pkg/persona"
	"github.com/codeGROOVE-dev/personamatch/pkg/search"
)

// ConfigurationError reports a missing or invalid setting.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Key, e.Reason)
}

// Unwrap lets errors.Is match persona.ErrConfiguration.
func (*ConfigurationError) Unwrap() error { return persona.ErrConfiguration }

// Config is the full process configuration.
//
//nolint:govet // fieldalignment: grouped by concern
type Config struct {
	LLMProvider      string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIChatModel  string
	OpenAIEmbedModel string
	OllamaHost       string
	OllamaChatModel  string
	OllamaEmbedModel string
	LenientJSON      bool

	EmbedProvider   string
	ONNXLibraryPath string
	TextModelPath   string
	TokenizerPath   string
	ImageBackend    string
	ImageModelPath  string

	SearchProvider       string
	TavilyAPIKey         string
	BraveAPIKey          string
	GoogleSearchAPIKey   string
	GoogleSearchEngineID string

	FusionPolicy         string
	FusionThreshold      float64
	DedupNarrativeTitles bool
	MaxResults           int
	CacheTTL             time.Duration
	NoCache              bool

	Port                     int
	MaxConcurrentResolutions int64
	LogLevel                 string
	LogFormat                string
	LogFile                  string
}

// Default returns the configuration used when no environment is set.
func Default() Config {
	return Config{
		LLMProvider:              "openai",
		OpenAIChatModel:          "gpt-4o-mini",
		OpenAIEmbedModel:         "text-embedding-3-small",
		OllamaChatModel:          "llama3.1",
		OllamaEmbedModel:         "all-minilm",
		EmbedProvider:            "openai",
		ImageBackend:             "hash",
		SearchProvider:           "tavily",
		FusionPolicy:             "epsilon",
		FusionThreshold:          0.1,
		MaxResults:               12,
		CacheTTL:                 7 * 24 * time.Hour,
		Port:                     8080,
		MaxConcurrentResolutions: 2,
		LogLevel:                 "info",
		LogFormat:                "text",
	}
}

// Load reads .env (if present) and then the environment over Default.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using process environment")
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup over Default. Malformed numbers keep the default.
func FromEnv(lookup func(string) (string, bool)) Config {
	c := Default()
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				*dst = b
			}
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}

	str("LLM_PROVIDER", &c.LLMProvider)
	str("OPENAI_API_KEY", &c.OpenAIAPIKey)
	str("OPENAI_BASE_URL", &c.OpenAIBaseURL)
	str("OPENAI_CHAT_MODEL", &c.OpenAIChatModel)
	str("OPENAI_EMBED_MODEL", &c.OpenAIEmbedModel)
	str("OLLAMA_HOST", &c.OllamaHost)
	str("OLLAMA_CHAT_MODEL", &c.OllamaChatModel)
	str("OLLAMA_EMBED_MODEL", &c.OllamaEmbedModel)
	boolean("LENIENT_JSON", &c.LenientJSON)

	str("EMBED_PROVIDER", &c.EmbedProvider)
	str("ONNX_LIBRARY_PATH", &c.ONNXLibraryPath)
	str("TEXT_MODEL_PATH", &c.TextModelPath)
	str("TOKENIZER_PATH", &c.TokenizerPath)
	str("IMAGE_BACKEND", &c.ImageBackend)
	str("IMAGE_MODEL_PATH", &c.ImageModelPath)

	str("SEARCH_PROVIDER", &c.SearchProvider)
	str("TAVILY_API_KEY", &c.TavilyAPIKey)
	str("BRAVE_API_KEY", &c.BraveAPIKey)
	str("GOOGLE_SEARCH_API_KEY", &c.GoogleSearchAPIKey)
	str("GOOGLE_SEARCH_ENGINE_ID", &c.GoogleSearchEngineID)

	str("FUSION_POLICY", &c.FusionPolicy)
	if v, ok := lookup("FUSION_THRESHOLD"); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			c.FusionThreshold = f
		}
	}
	boolean("DEDUP_NARRATIVE_TITLES", &c.DedupNarrativeTitles)
	integer("MAX_RESULTS", &c.MaxResults)
	if v, ok := lookup("CACHE_TTL"); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			c.CacheTTL = d
		}
	}
	boolean("NO_CACHE", &c.NoCache)

	integer("PORT", &c.Port)
	if v, ok := lookup("MAX_CONCURRENT_RESOLUTIONS"); ok {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			c.MaxConcurrentResolutions = n
		}
	}
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("LOG_FILE", &c.LogFile)

	if c.SearchProvider == "brave" && c.BraveAPIKey == "" {
		c.BraveAPIKey = search.LoadBraveAPIKey()
	}
	return c
}

// Validate reports every missing credential or unknown option for the selected
// providers. The returned error joins one *ConfigurationError per problem.
func (c Config) Validate() error {
	var errs []error
	missing := func(key string) {
		errs = append(errs, &ConfigurationError{Key: key, Reason: "required but not set"})
	}
	invalid := func(key, value string) {
		errs = append(errs, &ConfigurationError{Key: key, Reason: fmt.Sprintf("unsupported value %q", value)})
	}

	switch c.LLMProvider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			missing("OPENAI_API_KEY")
		}
	case "ollama":
	default:
		invalid("LLM_PROVIDER", c.LLMProvider)
	}

	switch c.EmbedProvider {
	case "openai":
		if c.OpenAIAPIKey == "" && c.LLMProvider != "openai" {
			missing("OPENAI_API_KEY")
		}
	case "ollama":
	case "onnx":
		if c.TextModelPath == "" {
			missing("TEXT_MODEL_PATH")
		}
		if c.TokenizerPath == "" {
			missing("TOKENIZER_PATH")
		}
	default:
		invalid("EMBED_PROVIDER", c.EmbedProvider)
	}

	switch c.ImageBackend {
	case "hash":
	case "onnx":
		if c.ImageModelPath == "" {
			missing("IMAGE_MODEL_PATH")
		}
	default:
		invalid("IMAGE_BACKEND", c.ImageBackend)
	}

	switch c.SearchProvider {
	case "tavily":
		if c.TavilyAPIKey == "" {
			missing("TAVILY_API_KEY")
		}
	case "brave":
		if c.BraveAPIKey == "" {
			missing("BRAVE_API_KEY")
		}
	default:
		invalid("SEARCH_PROVIDER", c.SearchProvider)
	}

	if c.GoogleSearchAPIKey == "" {
		missing("GOOGLE_SEARCH_API_KEY")
	}
	if c.GoogleSearchEngineID == "" {
		missing("GOOGLE_SEARCH_ENGINE_ID")
	}

	switch c.FusionPolicy {
	case "epsilon", "threshold":
	default:
		invalid("FUSION_POLICY", c.FusionPolicy)
	}
	if c.FusionThreshold < 0 || c.FusionThreshold > 1 {
		invalid("FUSION_THRESHOLD", strconv.FormatFloat(c.FusionThreshold, 'g', -1, 64))
	}
	if c.MaxResults <= 0 {
		invalid("MAX_RESULTS", strconv.Itoa(c.MaxResults))
	}
	if c.MaxConcurrentResolutions <= 0 {
		invalid("MAX_CONCURRENT_RESOLUTIONS", strconv.FormatInt(c.MaxConcurrentResolutions, 10))
	}

	if !logging.ValidLevel(c.LogLevel) {
		invalid("LOG_LEVEL", c.LogLevel)
	}
	if !logging.ValidFormat(c.LogFormat) {
		invalid("LOG_FORMAT", c.LogFormat)
	}

	return errors.Join(errs...)
}

// Logging returns the logger settings. debug forces the debug level.
func (c Config) Logging(debug bool) logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = c.LogLevel
	lc.Format = c.LogFormat
	lc.FilePath = c.LogFile
	if debug {
		lc.Level = "debug"
	}
	return lc
}

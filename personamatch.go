// Package personamatch resolves a seed persona to its most likely public profile URL.
//
// Basic usage:
//
//	cfg := config.Load()
//	p, err := personamatch.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//	result, err := p.Resolve(ctx, personamatch.SeedRecord{Name: "Jane Doe", Intro: "..."})
//
// Or use the pipeline packages directly (pkg/enrich, pkg/discovery, pkg/acquire,
// pkg/score, pkg/resolve) with custom backends.
package personamatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/codeGROOVE-dev/personamatch/pkg/acquire"
	"github.com/codeGROOVE-dev/personamatch/pkg/avatar"
	"github.com/codeGROOVE-dev/personamatch/pkg/config"
	"github.com/codeGROOVE-dev/personamatch/pkg/discovery"
	"github.com/codeGROOVE-dev/personamatch/pkg/embed"
	"github.com/codeGROOVE-dev/personamatch/pkg/enrich"
	"github.com/codeGROOVE-dev/personamatch/pkg/httpcache"
	"github.com/codeGROOVE-dev/personamatch/pkg/llm"
	"github.com/codeGROOVE-dev/personamatch/pkg/persona"
	"github.com/codeGROOVE-dev/personamatch/pkg/resolve"
	"github.com/codeGROOVE-dev/personamatch/pkg/score"
	"github.com/codeGROOVE-dev/personamatch/pkg/search"
)

type (
	// SeedRecord re-exports persona.SeedRecord for convenience.
	SeedRecord = persona.SeedRecord
	// MatchResult re-exports persona.MatchResult for convenience.
	MatchResult = persona.MatchResult
	// CandidateRecord re-exports persona.CandidateRecord for convenience.
	CandidateRecord = persona.CandidateRecord
)

// Re-export common errors.
var (
	ErrExtraction    = persona.ErrExtraction
	ErrConfiguration = persona.ErrConfiguration
	ErrMissingName   = persona.ErrMissingName
)

// Option configures New.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	cache      httpcache.Cacher
	httpClient *http.Client
	savePath   string
	maxResults int
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithHTTPCache sets the cache shared by search, document, image and embedding fetches.
// It overrides the cache selected by the configuration.
func WithHTTPCache(c httpcache.Cacher) Option {
	return func(o *options) { o.cache = c }
}

// WithHTTPClient sets the client used for search, document and image requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithSaveCandidates writes each run's acquired candidates to path as JSON.
func WithSaveCandidates(path string) Option {
	return func(o *options) { o.savePath = path }
}

// WithMaxResults overrides the configured per-strategy discovery cap.
func WithMaxResults(n int) Option {
	return func(o *options) { o.maxResults = n }
}

// Pipeline is a fully wired resolver. It is safe for concurrent use.
type Pipeline struct {
	resolver *resolve.Resolver
	policy   score.FusionPolicy
	closers  []io.Closer
}

// New validates cfg and wires every backend it selects.
func New(cfg config.Config, opts ...Option) (*Pipeline, error) {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.maxResults <= 0 {
		o.maxResults = cfg.MaxResults
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{}
	fail := func(err error) (*Pipeline, error) {
		if cerr := p.Close(); cerr != nil {
			o.logger.Warn("close after failed setup", "error", cerr)
		}
		return nil, err
	}

	if o.cache == nil {
		c, err := newCache(cfg, o.logger)
		if err != nil {
			return fail(err)
		}
		p.closers = append(p.closers, c)
		o.cache = c
	}

	chat, err := newChatter(cfg)
	if err != nil {
		return fail(err)
	}

	searchOpts := []search.Option{search.WithCache(o.cache), search.WithLogger(o.logger)}
	if o.httpClient != nil {
		searchOpts = append(searchOpts, search.WithHTTPClient(o.httpClient))
	}
	webKey := cfg.TavilyAPIKey
	if cfg.SearchProvider == "brave" {
		webKey = cfg.BraveAPIKey
	}
	web, err := search.New(cfg.SearchProvider, webKey, searchOpts...)
	if err != nil {
		return fail(&config.ConfigurationError{Key: "SEARCH_PROVIDER", Reason: err.Error()})
	}
	google := search.NewGoogle(cfg.GoogleSearchAPIKey, cfg.GoogleSearchEngineID, searchOpts...)

	embedder, err := p.newEmbedder(cfg, o.cache)
	if err != nil {
		return fail(err)
	}
	extractor, err := p.newExtractor(cfg)
	if err != nil {
		return fail(err)
	}
	avatarOpts := []avatar.Option{avatar.WithCache(o.cache), avatar.WithLogger(o.logger)}
	if o.httpClient != nil {
		avatarOpts = append(avatarOpts, avatar.WithHTTPClient(o.httpClient))
	}

	policy, err := score.PolicyByName(cfg.FusionPolicy, cfg.FusionThreshold)
	if err != nil {
		return fail(err)
	}
	p.policy = policy
	judge := score.NewLLMJudge(chat, cfg.LenientJSON)

	enricher := enrich.New(chat, web,
		enrich.WithLogger(o.logger),
		enrich.WithDedupTitles(cfg.DedupNarrativeTitles),
		enrich.WithLenientJSON(cfg.LenientJSON))
	discoverer := discovery.New(google, web, discovery.WithLogger(o.logger))

	logger, cache, hc := o.logger, o.cache, o.httpClient
	p.resolver = resolve.New(enricher, discoverer,
		resolve.WithLogger(logger),
		resolve.WithMaxResults(o.maxResults),
		resolve.WithSaveCandidates(o.savePath),
		resolve.WithSessionFactory(func() resolve.Acquirer {
			return acquire.NewSession(
				acquire.WithCache(cache),
				acquire.WithLogger(logger),
				acquire.WithHTTPClient(hc))
		}),
		resolve.WithScorerFactory(func() resolve.Scorer {
			return score.New(
				score.WithImageScorer(avatar.NewComparer(extractor, avatarOpts...)),
				score.WithEmbedder(embedder),
				score.WithJudge(judge),
				score.WithPolicy(policy),
				score.WithLogger(logger))
		}))

	o.logger.Info("pipeline ready",
		"llm", cfg.LLMProvider,
		"embed", cfg.EmbedProvider,
		"image", cfg.ImageBackend,
		"search", cfg.SearchProvider,
		"policy", policy.Name(),
		"max_results", o.maxResults)
	return p, nil
}

// Resolve runs one resolution.
func (p *Pipeline) Resolve(ctx context.Context, seed SeedRecord) (MatchResult, error) {
	return p.resolver.Resolve(ctx, seed)
}

// Policy returns the active fusion policy.
func (p *Pipeline) Policy() score.FusionPolicy { return p.policy }

// Close releases local models and flushes the cache.
func (p *Pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

func newCache(cfg config.Config, logger *slog.Logger) (*httpcache.Cache, error) {
	if cfg.NoCache {
		return httpcache.NewNull(), nil
	}
	c, err := httpcache.New(cfg.CacheTTL)
	if err != nil {
		logger.Warn("failed to initialize cache, continuing without", "error", err)
		return httpcache.NewNull(), nil
	}
	return c, nil
}

func newChatter(cfg config.Config) (llm.Chatter, error) {
	switch cfg.LLMProvider {
	case "ollama":
		c, err := llm.NewOllama(cfg.OllamaChatModel, llm.WithBaseURL(cfg.OllamaHost))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", persona.ErrConfiguration, err)
		}
		return c, nil
	default:
		return llm.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIChatModel, llm.WithBaseURL(cfg.OpenAIBaseURL)), nil
	}
}

func (p *Pipeline) newEmbedder(cfg config.Config, cache httpcache.Cacher) (embed.Embedder, error) {
	var (
		e     embed.Embedder
		model string
	)
	switch cfg.EmbedProvider {
	case "ollama":
		o, err := embed.NewOllama(cfg.OllamaHost, cfg.OllamaEmbedModel)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", persona.ErrConfiguration, err)
		}
		e, model = o, "ollama/"+cfg.OllamaEmbedModel
	case "onnx":
		o, err := embed.NewONNX(embed.ONNXConfig{
			LibraryPath:   cfg.ONNXLibraryPath,
			ModelPath:     cfg.TextModelPath,
			TokenizerPath: cfg.TokenizerPath,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: text model: %w", persona.ErrConfiguration, err)
		}
		p.closers = append(p.closers, o)
		e, model = o, "onnx/"+cfg.TextModelPath
	default:
		e, model = embed.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIEmbedModel), "openai/"+cfg.OpenAIEmbedModel
	}
	return embed.NewCached(e, cache, model), nil
}

func (p *Pipeline) newExtractor(cfg config.Config) (avatar.Extractor, error) {
	if cfg.ImageBackend != "onnx" {
		return avatar.HashExtractor{}, nil
	}
	x, err := avatar.NewONNXExtractor(avatar.ONNXConfig{
		LibraryPath: cfg.ONNXLibraryPath,
		ModelPath:   cfg.ImageModelPath,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: image model: %w", persona.ErrConfiguration, err)
	}
	p.closers = append(p.closers, x)
	return x, nil
}

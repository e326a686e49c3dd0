// Command personamatch resolves a persona to its most likely LinkedIn profile.
//
// Usage:
//
//	personamatch -name "Eric Doty" -intro "Content @ Dock" -image https://example.com/me.jpg
//	personamatch -seeds seeds.yaml -save candidates.json
//
// Credentials and backends are read from the environment or a .env file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/codeGROOVE-dev/personamatch"
	"github.com/codeGROOVE-dev/personamatch/pkg/config"
	"github.com/codeGROOVE-dev/personamatch/pkg/logging"
)

func main() {
	name := flag.String("name", "", "persona name")
	image := flag.String("image", "", "persona profile image URL")
	intro := flag.String("intro", "", "persona introduction or bio")
	timezone := flag.String("timezone", "", "persona timezone, e.g. America/Toronto")
	seedsPath := flag.String("seeds", "", "JSON or YAML file holding a list of personas")
	save := flag.String("save", "", "write acquired candidates to this JSON file")
	debug := flag.Bool("debug", false, "enable debug logging")
	noCache := flag.Bool("no-cache", false, "disable HTTP caching")
	cacheTTL := flag.Duration("cache-ttl", 0, "cache time-to-live (default from CACHE_TTL, 7 days)")
	maxResults := flag.Int("max-results", 0, "candidate URLs per discovery strategy (default from MAX_RESULTS)")
	flag.Parse()

	if *name == "" && *seedsPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: personamatch [options] -name <name> | -seeds <file>")
		fmt.Fprintln(os.Stderr, "\nOptions:")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg := config.Load()
	if *noCache {
		cfg.NoCache = true
	}
	if *cacheTTL > 0 {
		cfg.CacheTTL = *cacheTTL
	}
	if *maxResults > 0 {
		cfg.MaxResults = *maxResults
	}

	logger, logCloser := logging.New(cfg.Logging(*debug))
	if logCloser != nil {
		defer func() { _ = logCloser.Close() }() //nolint:errcheck // best effort on exit
	}
	slog.SetDefault(logger)

	seeds := []personamatch.SeedRecord{{Name: *name, Image: *image, Intro: *intro, Timezone: *timezone}}
	if *seedsPath != "" {
		var err error
		seeds, err = loadSeeds(*seedsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1) //nolint:gocritic // exitAfterDefer is acceptable in main
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcomes := run(ctx, cfg, seeds, *save, logger)
	var out any = outcomes
	if *seedsPath == "" {
		if outcomes[0].Error != "" {
			fmt.Fprintf(os.Stderr, "Error: %s\n", outcomes[0].Error)
			os.Exit(1)
		}
		out = outcomes[0].Result
	}
	if err := outputJSON(os.Stdout, out); err != nil {
		fmt.Fprintf(os.Stderr, "Output error: %v\n", err)
		os.Exit(1)
	}
}

// outcome is one line of batch output.
//
//nolint:govet // fieldalignment: output order
type outcome struct {
	Name   string                    `json:"name"`
	Result *personamatch.MatchResult `json:"result,omitempty"`
	Error  string                    `json:"error,omitempty"`
}

// run resolves seeds in order. Each seed gets its own pipeline so that
// per-seed candidate files do not overwrite each other.
func run(ctx context.Context, cfg config.Config, seeds []personamatch.SeedRecord, save string, logger *slog.Logger) []outcome {
	out := make([]outcome, 0, len(seeds))
	for i, seed := range seeds {
		o := outcome{Name: seed.Name}
		result, err := resolveOne(ctx, cfg, seed, savePath(save, i, len(seeds)), logger)
		if err != nil {
			o.Error = err.Error()
		} else {
			o.Result = &result
		}
		out = append(out, o)
		if ctx.Err() != nil {
			break
		}
	}
	return out
}

func resolveOne(ctx context.Context, cfg config.Config, seed personamatch.SeedRecord, save string, logger *slog.Logger) (personamatch.MatchResult, error) {
	p, err := personamatch.New(cfg, personamatch.WithLogger(logger), personamatch.WithSaveCandidates(save))
	if err != nil {
		return personamatch.MatchResult{}, err
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Warn("failed to close pipeline", "error", err)
		}
	}()

	start := time.Now()
	result, err := p.Resolve(ctx, seed)
	logger.Debug("resolved", "name", seed.Name, "elapsed", time.Since(start).Round(time.Millisecond))
	return result, err
}

// savePath numbers the candidate file per seed in batch mode: out.json → out-1.json.
func savePath(base string, i, n int) string {
	if base == "" || n <= 1 {
		return base
	}
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "-" + strconv.Itoa(i+1) + ext
}

// loadSeeds reads a list of seeds. YAML is a superset of JSON, so both parse here.
func loadSeeds(path string) ([]personamatch.SeedRecord, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("read seeds: %w", err)
	}
	var seeds []personamatch.SeedRecord
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("parse seeds %s: %w", path, err)
	}
	if len(seeds) == 0 {
		return nil, errors.New("seeds file holds no personas")
	}
	for i, s := range seeds {
		if strings.TrimSpace(s.Name) == "" {
			return nil, fmt.Errorf("seed %d: %w", i+1, personamatch.ErrMissingName)
		}
	}
	return seeds, nil
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

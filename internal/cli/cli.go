// Package cli implements the limitless command line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Sternrassler/limitless-client/internal/config"
	"github.com/Sternrassler/limitless-client/pkg/cache"
	"github.com/Sternrassler/limitless-client/pkg/client"
	"github.com/Sternrassler/limitless-client/pkg/fanout"
	"github.com/Sternrassler/limitless-client/pkg/limitless"
	"github.com/Sternrassler/limitless-client/pkg/logging"
	"github.com/Sternrassler/limitless-client/pkg/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	version = "dev" // set via ldflags
	commit  = ""
)

// SetVersion sets the version information displayed by --version.
func SetVersion(v, c string) {
	version = v
	commit = c
}

// CLI holds the state shared by all commands of one invocation.
type CLI struct {
	stderr io.Writer

	// Flags
	verbose     bool
	concurrency int
	timeout     time.Duration
	cacheMode   string
	decode      string
	showMetrics bool

	cfg    config.Config
	runID  string
	logger zerolog.Logger
}

// New creates a CLI that logs to stderr.
func New(stderr io.Writer) *CLI {
	if stderr == nil {
		stderr = os.Stderr
	}
	return &CLI{stderr: stderr}
}

// Execute runs the CLI with os.Args.
func Execute(ctx context.Context) error {
	return New(os.Stderr).RootCommand().ExecuteContext(ctx)
}

// RootCommand builds the command tree.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "limitless",
		Short: "Fetch tournaments and standings from the Limitless API",
		Long: `limitless lists tournaments of a format, fetches the standings of every
tournament in parallel and prints a summary. Responses are cached on disk so
repeated runs avoid redundant requests.

The access key is read from LIMITLESS_API_KEY.`,
		Version:            version,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  c.setup,
		PersistentPostRunE: c.teardown,
	}

	root.SetVersionTemplate(fmt.Sprintf("limitless %s %s\n", version, commit))

	flags := root.PersistentFlags()
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")
	flags.IntVarP(&c.concurrency, "concurrency", "c", 0, "max parallel standings requests, -1 for unbounded (env LIMITLESS_MAX_CONCURRENCY)")
	flags.DurationVar(&c.timeout, "timeout", 0, "per-request timeout (env LIMITLESS_REQUEST_TIMEOUT)")
	flags.StringVar(&c.cacheMode, "cache-mode", "", "cache mode: default, no-store, reload, no-cache, force-cache (env LIMITLESS_CACHE_MODE)")
	flags.StringVar(&c.decode, "decode", "", "tournament list decoding: strict or loose (env LIMITLESS_DECODE)")
	flags.BoolVar(&c.showMetrics, "metrics", false, "print limitless_* metrics to stderr when done")

	root.AddCommand(c.toursCommand())
	root.AddCommand(c.formatsCommand())
	root.AddCommand(c.cacheCommand())

	return root
}

// setup loads the configuration, applies flag overrides and configures
// logging. It never touches the network.
func (c *CLI) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("concurrency") {
		cfg.MaxConcurrency = c.concurrency
	}
	if flags.Changed("timeout") {
		cfg.RequestTimeout = c.timeout
	}
	if flags.Changed("cache-mode") {
		cfg.CacheMode = c.cacheMode
	}
	if flags.Changed("decode") {
		cfg.Decode = c.decode
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg

	c.runID = uuid.NewString()
	logCfg := cfg.Logging()
	logCfg.Output = c.stderr
	if c.verbose {
		logCfg.Level = logging.LevelDebug
	}
	logCfg.Fields = map[string]string{"run_id": c.runID}
	logging.Setup(logCfg)
	c.logger = logging.NewLogger("cli")

	c.logger.Debug().
		Str("command", cmd.CommandPath()).
		Str("cache_backend", cfg.CacheBackend).
		Str("cache_mode", cfg.CacheMode).
		Int("max_concurrency", cfg.MaxConcurrency).
		Msg("Configuration loaded")

	return nil
}

func (c *CLI) teardown(cmd *cobra.Command, args []string) error {
	if !c.showMetrics {
		return nil
	}
	return metrics.WriteText(c.stderr, metrics.Gatherer)
}

// service builds the API stack. The credential is checked before the cache
// store is opened or any request is made.
func (c *CLI) service(ctx context.Context) (*limitless.Service, func(), error) {
	credential, err := c.cfg.Credential()
	if err != nil {
		return nil, nil, err
	}

	store, err := c.cfg.OpenStore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("open cache: %w", err)
	}

	apiClient, err := client.New(c.cfg.Client(credential, cache.NewManager(store)))
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	svc := limitless.NewService(apiClient, fanout.New(c.cfg.Fanout()),
		limitless.WithDecodeMode(limitless.DecodeMode(c.cfg.Decode)))

	closeFn := func() {
		if err := apiClient.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to close cache")
		}
	}
	return svc, closeFn, nil
}

package cli

import (
	"fmt"
	"path/filepath"

	"github.com/Sternrassler/limitless-client/internal/config"
	"github.com/Sternrassler/limitless-client/pkg/cache"
	"github.com/spf13/cobra"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the HTTP response cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand. It needs no
// credential.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached responses from the configured backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := c.cfg.OpenStore(ctx)
			if err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			defer store.Close()

			if err := cache.NewManager(store).Clear(ctx); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s cache\n", store.Name())
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print where responses are cached",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch c.cfg.CacheBackend {
			case config.BackendRedis:
				fmt.Fprintf(out, "redis %s (keys %s*)\n", c.cfg.RedisURL, cache.KeyPrefix)
			case config.BackendMemory:
				fmt.Fprintln(out, "memory (not persisted)")
			default:
				dir := c.cfg.CacheDir
				if dir == "" {
					dir = cache.DefaultDir()
				}
				fmt.Fprintln(out, filepath.Join(dir, cache.DBFileName))
			}
			return nil
		},
	}
}

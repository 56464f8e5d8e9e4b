package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// toursCommand creates the tours command.
func (c *CLI) toursCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "tours [FORMAT]",
		Short: "Fetch all tournaments of a format and their standings",
		Example: `  limitless tours --format STANDARD
  limitless tours SVF --concurrency 20`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if format != "" && format != args[0] {
					return fmt.Errorf("format given twice: %q and %q", format, args[0])
				}
				format = args[0]
			}
			if format == "" {
				return errors.New("format is required (--format or positional argument)")
			}

			ctx := cmd.Context()
			start := time.Now()

			svc, closeFn, err := c.service(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			report, err := svc.Tours(ctx, format)
			if report == nil {
				return err
			}

			for _, f := range report.Standings.Failures {
				c.logger.Debug().Str("ref", f.Ref).Str("kind", string(f.Kind)).Msg("Standings unavailable")
			}

			// Partial counts are still printed when interrupted
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "total_entries=%d\n", len(report.Tournaments))
			fmt.Fprintf(out, "standings_fetched=%d\n", len(report.Standings.Records))
			fmt.Fprintf(out, "standings_failed=%d\n", len(report.Standings.Failures))
			fmt.Fprintf(out, "Time taken=%s\n", time.Since(start))
			return err
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "tournament format, e.g. STANDARD or SVF")

	return cmd
}

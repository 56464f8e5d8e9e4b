package cli

import (
	"fmt"

	"github.com/Sternrassler/limitless-client/pkg/limitless"
	"github.com/spf13/cobra"
)

// formatsCommand creates the formats command.
func (c *CLI) formatsCommand() *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "formats",
		Short: "Print games catalog entries",
		Long: `Fetch the games catalog and pretty-print the entries whose id matches --id.
The catalog endpoint has no filter parameter, so filtering happens locally.
An empty --id prints the whole catalog.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			svc, closeFn, err := c.service(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			formats, err := svc.ListFormats(ctx, id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, f := range formats {
				pretty, err := f.Pretty()
				if err != nil {
					return fmt.Errorf("format %s: %w", f.ID, err)
				}
				fmt.Fprintln(out, pretty)
			}

			c.logger.Debug().Str("id", id).Int("matches", len(formats)).Msg("Formats listed")
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", limitless.DefaultFormatID, "catalog id to print")

	return cmd
}

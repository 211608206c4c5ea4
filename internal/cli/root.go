// Package cli implements storectl, the operator tool for exporting,
// importing, merging and resetting a bookstore.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
	"github.com/ariefcatur/go-bookstore-engine/internal/engine"
)

// Opener builds the engine a command runs against; closeFn releases it.
type Opener func(ctx context.Context) (eng *engine.Engine, closeFn func(), err error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	As     string
	Format string // "json" | "yaml"
}

func NewRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "storectl",
		Short: "Operate a bookstore store",
		Long:  "Export, import, merge and reset the bookstore catalog and its ledger.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := bookstore.ParseFormat(opts.Format); err != nil {
				return fmt.Errorf("invalid format %q: must be json or yaml", opts.Format)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.As, "as", "", "identity to act as (must be admin for most commands)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "", "snapshot format (json|yaml); defaults to the file extension")

	cmd.AddCommand(newExportCommand(opts, open))
	cmd.AddCommand(newImportCommand(opts, open))
	cmd.AddCommand(newMergeCommand(opts, open))
	cmd.AddCommand(newResetCommand(opts, open))
	cmd.AddCommand(newRecoverCommand(opts, open))

	return cmd
}

// format resolves the explicit --format flag, falling back to the path.
func (o *RootOptions) format(path string) bookstore.Format {
	if o.Format != "" {
		f, _ := bookstore.ParseFormat(o.Format)
		return f
	}
	return bookstore.FormatFromPath(path)
}

func (o *RootOptions) caller() bookstore.Identity { return bookstore.Identity(o.As) }

func withEngine(cmd *cobra.Command, open Opener, fn func(ctx context.Context, eng *engine.Engine) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	eng, closeFn, err := open(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeFn()
	return fn(ctx, eng)
}

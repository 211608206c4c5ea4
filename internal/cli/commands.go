package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
	"github.com/ariefcatur/go-bookstore-engine/internal/engine"
)

func newExportCommand(opts *RootOptions, open Opener) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a complete snapshot of the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, open, func(ctx context.Context, eng *engine.Engine) error {
				snap, err := eng.Export(ctx, opts.caller())
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if out != "" {
					f, err := os.Create(out)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				if err := bookstore.EncodeSnapshot(w, snap, opts.format(out)); err != nil {
					return err
				}
				if out != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "exported %d books and %d orders to %s\n", len(snap.Books), len(snap.Orders), out)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (stdout when empty)")
	return cmd
}

func readSnapshot(opts *RootOptions, path string) (bookstore.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return bookstore.Snapshot{}, err
	}
	defer f.Close()
	return bookstore.DecodeSnapshot(f, opts.format(path))
}

func newImportCommand(opts *RootOptions, open Opener) *cobra.Command {
	var merge bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the store with a snapshot",
		Long:  "Replace every collection with the snapshot in <file>. With --merge, incoming records win per key instead.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if merge {
				return runMerge(cmd, opts, open, args[0])
			}
			snap, err := readSnapshot(opts, args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd, open, func(ctx context.Context, eng *engine.Engine) error {
				if err := eng.Import(ctx, opts.caller(), snap); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d books and %d orders\n", len(snap.Books), len(snap.Orders))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&merge, "merge", false, "merge instead of overwrite")
	return cmd
}

func newMergeCommand(opts *RootOptions, open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "merge <file>",
		Short: "Merge a snapshot into the store, incoming records win",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(cmd, opts, open, args[0])
		},
	}
}

func runMerge(cmd *cobra.Command, opts *RootOptions, open Opener, path string) error {
	snap, err := readSnapshot(opts, path)
	if err != nil {
		return err
	}
	return withEngine(cmd, open, func(ctx context.Context, eng *engine.Engine) error {
		if err := eng.Merge(ctx, opts.caller(), snap); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "merged %d books and %d orders\n", len(snap.Books), len(snap.Orders))
		return nil
	})
}

func newResetCommand(opts *RootOptions, open Opener) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear every collection except roles and the designated owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("reset is destructive: pass --yes to confirm")
			}
			return withEngine(cmd, open, func(ctx context.Context, eng *engine.Engine) error {
				if err := eng.ResetStore(ctx, opts.caller()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "store reset")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

func newRecoverCommand(opts *RootOptions, open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Grant admin to the designated owner when no admin exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, open, func(ctx context.Context, eng *engine.Engine) error {
				if err := eng.RecoverAdminAccess(ctx, opts.caller()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now admin\n", opts.As)
				return nil
			})
		},
	}
}

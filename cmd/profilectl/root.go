package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/organized-thot/brodev3-antidetect/internal/domain/model"
)

// newRootCmd assembles the command tree. load is called lazily so commands
// that need no remote access (sanitize) work without configuration.
func newRootCmd(load depsLoader, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "profilectl",
		Short: "Manage browser profile records and their storage directories",
		Long: `profilectl runs one profile operation and exits.

Remote settings come from BASEROW_API_URL, BASEROW_API_TOKEN and
BASEROW_TABLE_ID (a .env file in the working directory is read first).
Profile directories live under $PROFILEHUB_STORAGE_DIR/profiles.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	// with runs fn with freshly loaded deps.
	with := func(fn func(ctx context.Context, d *deps, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			d, cleanup, err := load(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			return fn(cmd.Context(), d, args)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "exists NAME",
			Short: "Print true when a record with exactly NAME exists",
			Args:  cobra.ExactArgs(1),
			RunE: with(func(ctx context.Context, d *deps, args []string) error {
				fmt.Fprintln(out, d.repo.Exists(ctx, args[0]))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "get NAME",
			Short: "Print the record named NAME as JSON",
			Args:  cobra.ExactArgs(1),
			RunE: with(func(ctx context.Context, d *deps, args []string) error {
				row, ok := d.repo.Fetch(ctx, args[0])
				if !ok {
					return fmt.Errorf("profile %q not found", args[0])
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(row.Fields)
			}),
		},
		newSetCmd(with),
		&cobra.Command{
			Use:   "open NAME",
			Short: "Mark a profile as in use",
			Args:  cobra.ExactArgs(1),
			RunE: with(func(ctx context.Context, d *deps, args []string) error {
				return d.svc.OpenProfile(ctx, args[0])
			}),
		},
		&cobra.Command{
			Use:   "close NAME",
			Short: "Clear the in-use marker of a profile",
			Args:  cobra.ExactArgs(1),
			RunE: with(func(ctx context.Context, d *deps, args []string) error {
				return d.svc.CloseProfile(ctx, args[0])
			}),
		},
		&cobra.Command{
			Use:   "rm NAME",
			Short: "Delete the record named NAME (the directory is kept)",
			Args:  cobra.ExactArgs(1),
			RunE: with(func(ctx context.Context, d *deps, args []string) error {
				d.repo.Remove(ctx, args[0])
				return nil
			}),
		},
		&cobra.Command{
			Use:   "ls",
			Short: "List every profile name in table order",
			Args:  cobra.NoArgs,
			RunE: with(func(ctx context.Context, d *deps, _ []string) error {
				printLines(out, d.repo.ListNames(ctx))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "selected",
			Short: "List selected profile names in table order",
			Args:  cobra.NoArgs,
			RunE: with(func(ctx context.Context, d *deps, _ []string) error {
				printLines(out, d.repo.ListSelected(ctx))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "mkdir NAME",
			Short: "Create the storage directory of a profile",
			Args:  cobra.ExactArgs(1),
			RunE: with(func(_ context.Context, d *deps, args []string) error {
				return d.dirs.Create(args[0])
			}),
		},
		&cobra.Command{
			Use:   "rmdir NAME",
			Short: "Recursively remove the storage directory of a profile",
			Args:  cobra.ExactArgs(1),
			RunE: with(func(_ context.Context, d *deps, args []string) error {
				return d.dirs.Delete(args[0])
			}),
		},
		&cobra.Command{
			Use:   "sanitize NAME",
			Short: "Print the directory-safe form of NAME",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				fmt.Fprintln(out, model.SanitizeName(args[0]))
				return nil
			},
		},
		&cobra.Command{
			Use:   "orphans",
			Short: "List local profile directories with no remote record",
			Args:  cobra.NoArgs,
			RunE: with(func(ctx context.Context, d *deps, _ []string) error {
				orphans, err := d.svc.Orphans(ctx)
				if err != nil {
					return err
				}
				printLines(out, orphans)
				return nil
			}),
		},
	)

	return root
}

func newSetCmd(with func(func(context.Context, *deps, []string) error) func(*cobra.Command, []string) error) *cobra.Command {
	var raw string
	cmd := &cobra.Command{
		Use:   "set NAME [FIELD=VALUE...]",
		Short: "Create or update the record named NAME",
		Long: `Create the record when no row is named exactly NAME, otherwise patch it.

Fields are given as FIELD=VALUE pairs (string values) and/or as a JSON object
with --json. Pairs override keys of the JSON object.`,
		Args: cobra.MinimumNArgs(1),
	}
	cmd.Flags().StringVar(&raw, "json", "", "JSON object of field values")

	cmd.RunE = with(func(ctx context.Context, d *deps, args []string) error {
		fields, err := parseFields(raw, args[1:])
		if err != nil {
			return err
		}
		d.repo.Upsert(ctx, args[0], fields)
		return nil
	})
	return cmd
}

// parseFields merges a JSON object with FIELD=VALUE pairs.
func parseFields(raw string, pairs []string) (model.Record, error) {
	fields := model.Record{}
	if raw != "" {
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&fields); err != nil {
			return nil, fmt.Errorf("--json must be a JSON object: %w", err)
		}
		if fields == nil {
			fields = model.Record{}
		}
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("field %q is not FIELD=VALUE", pair)
		}
		fields[key] = value
	}
	return fields, nil
}

func printLines(out io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}

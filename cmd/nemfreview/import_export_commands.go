package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"nemfreview/internal/catalog"
	"nemfreview/internal/config"
	"nemfreview/internal/fileutil"
	"nemfreview/internal/records"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "import <review_data.json>",
		Short: "Import extracted records from a review_data.json document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			defer file.Close()

			return ctx.withStore(func(cfg *config.Config, store *records.Store) error {
				tiers, err := catalog.LocationTiers(cfg)
				if err != nil {
					return fmt.Errorf("load location tiers: %w", err)
				}
				result, err := store.ImportLegacy(commandContextOrBackground(cmd), bufio.NewReader(file), records.ImportOptions{
					Tiers:     tiers,
					Overwrite: overwrite,
				})
				if err != nil {
					return fmt.Errorf("import %s: %w", path, err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Imported %d records (%d skipped, %d link groups)\n", result.Imported, result.Skipped, result.Groups)
				if result.Skipped > 0 && !overwrite {
					fmt.Fprintln(out, "Existing records were kept; use --overwrite to replace them")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace records that already exist")
	return cmd
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every record as a review_data.json document",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *records.Store) error {
				target := strings.TrimSpace(outputPath)
				if target == "" || target == "-" {
					return store.ExportLegacy(commandContextOrBackground(cmd), cmd.OutOrStdout())
				}
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return err
				}
				if err := fileutil.WriteAtomic(expanded, 0o644, func(w io.Writer) error {
					return store.ExportLegacy(commandContextOrBackground(cmd), w)
				}); err != nil {
					return fmt.Errorf("export: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported records to %s\n", expanded)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination file (default stdout)")
	return cmd
}

func commandContextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

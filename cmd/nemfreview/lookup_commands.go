package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"nemfreview/internal/api"
	"nemfreview/internal/catalog"
)

func newLookupCommand(ctx *commandContext) *cobra.Command {
	lookupCmd := &cobra.Command{
		Use:   "lookup",
		Short: "Search the catalog exports",
	}

	lookupCmd.AddCommand(newLookupLocationCommand(ctx))
	lookupCmd.AddCommand(newLookupNameCommand(ctx))
	lookupCmd.AddCommand(newLookupForayCommand(ctx))

	return lookupCmd
}

func newLookupLocationCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "location <query>",
		Short: "Find catalog locations by name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := ctx.loadCatalog()
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			results := api.FromLocations(cat, cat.SearchLocations(query))
			if jsonOut {
				return writeJSON(cmd, api.LookupResponse[api.LocationResult]{Query: query, Results: results})
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), noMatches(query))
				return nil
			}
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				center := ""
				if r.Center != nil {
					center = fmt.Sprintf("%.5f, %.5f", r.Center.Latitude, r.Center.Longitude)
				}
				rows = append(rows, []string{strconv.FormatInt(r.ID, 10), r.Name, center, r.ForayDate})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Location", "Center", "Foray"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newLookupNameCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "name <query>",
		Short: "Find catalog names",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := ctx.loadCatalog()
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			results := api.FromNames(cat.SearchNames(query))
			if jsonOut {
				return writeJSON(cmd, api.LookupResponse[api.NameResult]{Query: query, Results: results})
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), noMatches(query))
				return nil
			}
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{strconv.FormatInt(r.ID, 10), r.Name, r.Author})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Name", "Author"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newLookupForayCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "foray <location>",
		Short: "Show the foray date recorded for a location",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := ctx.loadCatalog()
			if err != nil {
				return err
			}
			location := strings.Join(args, " ")
			date, ok := cat.ForayDate(location)
			if !ok {
				return fmt.Errorf("no foray date for %q", location)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", location, date)
			return nil
		},
	}
}

func noMatches(query string) string {
	if len([]rune(strings.TrimSpace(query))) < catalog.MinQueryLength {
		return fmt.Sprintf("Queries need at least %d characters", catalog.MinQueryLength)
	}
	return fmt.Sprintf("No matches for %q", query)
}

package main

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"nemfreview/internal/api"
	"nemfreview/internal/config"
	"nemfreview/internal/records"
)

func newRecordsCommand(ctx *commandContext) *cobra.Command {
	recordsCmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect and maintain review records",
	}

	recordsCmd.AddCommand(newRecordsListCommand(ctx))
	recordsCmd.AddCommand(newRecordsShowCommand(ctx))
	recordsCmd.AddCommand(newRecordsResetCommand(ctx))

	return recordsCmd
}

func newRecordsListCommand(ctx *commandContext) *cobra.Command {
	var (
		statuses   []string
		unresolved bool
		fieldCode  string
		limit      int
		jsonOut    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records in key order",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := records.ListOptions{
				UnresolvedOnly: unresolved,
				FieldCode:      strings.TrimSpace(fieldCode),
				Limit:          limit,
			}
			for _, value := range statuses {
				status, ok := records.ParseStatus(value)
				if !ok {
					return fmt.Errorf("unknown status %q", value)
				}
				opts.Statuses = append(opts.Statuses, status)
			}
			return ctx.withStore(func(_ *config.Config, store *records.Store) error {
				found, err := store.List(commandContextOrBackground(cmd), opts)
				if err != nil {
					return err
				}
				if jsonOut {
					out := make([]api.Record, 0, len(found))
					for _, record := range found {
						out = append(out, api.FromRecord(record, nil, nil))
					}
					return writeJSON(cmd, out)
				}
				if len(found) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No records match")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderRecordTable(found))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Only records with these statuses")
	cmd.Flags().BoolVar(&unresolved, "unresolved", false, "Only records still needing review")
	cmd.Flags().StringVar(&fieldCode, "field-code", "", "Only records with this extracted or reviewed field code")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of records (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func renderRecordTable(found []*records.Record) string {
	rows := make([][]string, 0, len(found))
	for _, record := range found {
		code := record.Review.FieldCode
		if code == "" {
			code = record.Extracted.FieldCode
		}
		name := record.Review.Name.Name
		if name == "" {
			name = record.Extracted.Name
		}
		observation := ""
		if record.Outcome.Uploaded() {
			observation = strconv.FormatInt(record.Outcome.ObservationID, 10)
		}
		rows = append(rows, []string{
			record.Key,
			string(record.Review.Status),
			code,
			name,
			strconv.Itoa(record.Priority.Class),
			strconv.Itoa(record.Priority.LocationTier),
			observation,
		})
	}
	return renderTable(
		[]string{"Key", "Status", "Field Code", "Name", "Class", "Tier", "Observation"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
	)
}

func newRecordsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <key>",
		Short: "Show one record with its extracted and reviewed values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(args[0])
			return ctx.withStore(func(_ *config.Config, store *records.Store) error {
				c := commandContextOrBackground(cmd)
				record, err := store.Get(c, key)
				if err != nil {
					return err
				}
				if record == nil {
					return fmt.Errorf("record %q not found", key)
				}
				group, err := groupMembers(cmd, store, record)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.FromRecord(record, group, nil))
				}
				printRecord(cmd.OutOrStdout(), record, group)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func groupMembers(cmd *cobra.Command, store *records.Store, record *records.Record) ([]string, error) {
	if record.LinkGroup == "" {
		return nil, nil
	}
	groups, err := store.LinkGroups(commandContextOrBackground(cmd))
	if err != nil {
		return nil, err
	}
	var members []string
	for key, group := range groups {
		if group == record.LinkGroup {
			members = append(members, key)
		}
	}
	slices.Sort(members)
	return members, nil
}

func printRecord(out io.Writer, record *records.Record, group []string) {
	ex := record.Extracted
	rv := record.Review
	line := func(label, value string) {
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(out, "%-16s %s\n", label+":", value)
	}

	line("Key", record.Key)
	line("Status", string(rv.Status))
	line("Priority", fmt.Sprintf("class %d (%s), tier %d", record.Priority.Class, records.ClassDescription(record.Priority.Class), record.Priority.LocationTier))
	if record.Priority.HasIssues() {
		issues := make([]string, 0, len(record.Priority.Issues))
		for _, issue := range record.Priority.Issues {
			issues = append(issues, string(issue))
		}
		line("Issues", strings.Join(issues, ", "))
	}
	if len(group) > 1 {
		line("Linked", strings.Join(group, ", "))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable(
		[]string{"Field", "Extracted", "Reviewed"},
		[][]string{
			{"Field code", ex.FieldCode, rv.FieldCode},
			{"Date", ex.Date, rv.Date},
			{"Location", ex.Location, rv.Location.Name},
			{"Name", ex.Name, rv.Name.Name},
			{"Notes", ex.Notes, rv.Notes},
		},
		nil,
	))

	if rv.ReviewedBy != "" {
		fmt.Fprintln(out)
		line("Reviewed by", rv.ReviewedBy)
		if rv.PropagatedFrom != "" {
			line("Propagated from", rv.PropagatedFrom)
		}
	}
	if record.Outcome.Uploaded() {
		line("Observation", strconv.FormatInt(record.Outcome.ObservationID, 10))
	}
}

func newRecordsResetCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset <key>",
		Short: "Return a record to the review backlog",
		Long: "Clears the review status, reviewer and external outcome of a record so it is\n" +
			"reviewed again. Reviewed field values are kept. Records with an external\n" +
			"observation need --force because the upstream observation is left in place.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(args[0])
			return ctx.withStore(func(_ *config.Config, store *records.Store) error {
				c := commandContextOrBackground(cmd)
				record, err := store.Get(c, key)
				if err != nil {
					return err
				}
				if record == nil {
					return fmt.Errorf("record %q not found", key)
				}
				if record.Outcome.Uploaded() && !force {
					return errors.New("record has external observation " +
						strconv.FormatInt(record.Outcome.ObservationID, 10) + "; rerun with --force to reset anyway")
				}
				if _, err := store.ResetReview(c, key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %s (was %s)\n", key, record.Review.Status)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Reset even when an external observation is recorded")
	return cmd
}

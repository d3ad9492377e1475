package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"nemfreview/internal/api"
	"nemfreview/internal/config"
	"nemfreview/internal/preflight"
	"nemfreview/internal/records"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show coordinator, database, and readiness status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *records.Store) error {
				c := commandContextOrBackground(cmd)
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				var lines []string
				lines = append(lines, renderSectionHeader("Coordinator", colorize)...)
				lines = append(lines, coordinatorLines(c, cfg, colorize)...)

				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Database", colorize)...)
				lines = append(lines, databaseLines(c, store, colorize)...)

				lines = append(lines, "")
				lines = append(lines, renderSectionHeader("Readiness", colorize)...)
				lines = append(lines, preflightLines(preflight.RunAll(c, cfg), colorize)...)

				fmt.Fprintln(out, strings.Join(lines, "\n"))

				summary, err := store.Summary(c)
				if err != nil {
					return fmt.Errorf("record summary: %w", err)
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderSummaryTable(summary))
				return nil
			})
		},
	}
}

func coordinatorLines(ctx context.Context, cfg *config.Config, colorize bool) []string {
	status, err := fetchServiceStatus(ctx, cfg)
	if err != nil {
		return []string{renderStatusLine("API", statusWarn, fmt.Sprintf("not reachable at %s (%v)", cfg.Paths.APIBind, err), colorize)}
	}
	return []string{
		renderStatusLine("API", statusOK, fmt.Sprintf("running (pid %d) at %s", status.PID, cfg.Paths.APIBind), colorize),
		renderStatusLine("Reconciliation policy", statusInfo, status.Policy, colorize),
		renderStatusLine("Active claims", statusInfo, fmt.Sprintf("%d", status.ActiveClaims), colorize),
	}
}

// fetchServiceStatus asks a running coordinator for its status.
func fetchServiceStatus(ctx context.Context, cfg *config.Config) (api.ServiceStatus, error) {
	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, "http://"+cfg.Paths.APIBind+"/api/status", nil)
	if err != nil {
		return api.ServiceStatus{}, err
	}
	if token := strings.TrimSpace(cfg.Paths.APIToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return api.ServiceStatus{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return api.ServiceStatus{}, fmt.Errorf("status %d", resp.StatusCode)
	}
	var status api.ServiceStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return api.ServiceStatus{}, fmt.Errorf("decode status: %w", err)
	}
	return status, nil
}

func databaseLines(ctx context.Context, store *records.Store, colorize bool) []string {
	health, err := store.CheckHealth(ctx)
	if err != nil {
		return []string{renderStatusLine("Record database", statusError, err.Error(), colorize)}
	}
	kind := statusOK
	if !health.IntegrityCheck {
		kind = statusError
	}
	return []string{
		renderStatusLine("Record database", kind, health.DBPath, colorize),
		renderStatusLine("Schema version", statusInfo, fmt.Sprintf("%d", health.SchemaVersion), colorize),
		renderStatusLine("Integrity check", kind, yesNo(health.IntegrityCheck), colorize),
	}
}

func renderSummaryTable(s records.Summary) string {
	rows := [][]string{
		{"Total", fmt.Sprint(s.Total)},
		{"Reviewed", fmt.Sprint(s.Reviewed)},
		{"Approved", fmt.Sprint(s.Approved)},
		{"Corrected", fmt.Sprint(s.Corrected)},
		{"Excluded", fmt.Sprint(s.Excluded)},
		{"Already on Mushroom Observer", fmt.Sprint(s.AlreadyOnExternal)},
		{"Uploaded", fmt.Sprint(s.Uploaded)},
		{"Remaining", fmt.Sprint(s.Remaining)},
	}
	return renderTable([]string{"Records", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
}

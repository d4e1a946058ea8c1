package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"catcherr/internal/domain"
)

func newHistoryCmd(st *rootState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded reconciliation runs",
	}
	cmd.AddCommand(newHistoryListCmd(st))
	cmd.AddCommand(newHistoryShowCmd(st))
	return cmd
}

// historyRepo opens the app and returns its history store, failing when
// history is disabled.
func historyRepo(st *rootState) (domain.RunRepository, func(), error) {
	if !st.cfg.HistoryEnabled() {
		return nil, nil, domain.ErrValidation("run history is disabled (HISTORY_DB_PATH=%s)", st.cfg.HistoryDBPath)
	}
	a, err := st.openApp()
	if err != nil {
		return nil, nil, err
	}
	return a.History, func() { _ = a.Close() }, nil
}

func newHistoryListCmd(st *rootState) *cobra.Command {
	var page domain.PageRequest
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, closeFn, err := historyRepo(st)
			if err != nil {
				return err
			}
			defer closeFn()

			runs, total, err := repo.List(cmd.Context(), page)
			if err != nil {
				return err
			}
			if runs == nil {
				runs = []domain.Run{}
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"runs":            runs,
					"next_page_token": page.NextPageToken(total),
					"total":           total,
				})
			}

			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{
					r.ID, r.Submission, r.Strategy, r.StartedAt.Local().Format(time.DateTime),
					fmt.Sprint(r.Passes), fmt.Sprint(r.Warnings), fmt.Sprint(r.Errors),
				}
			}
			if err := printTable(cmd.OutOrStdout(),
				[]string{"ID", "SUBMISSION", "STRATEGY", "STARTED", "PASS", "WARN", "ERROR"}, rows); err != nil {
				return err
			}
			if next := page.NextPageToken(total); next != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\nNext page: --page-token %s\n", next)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&page.MaxResults, "max-results", domain.DefaultMaxResults, "Maximum number of runs to return")
	cmd.Flags().StringVar(&page.PageToken, "page-token", "", "Pagination token from a previous listing")
	return cmd
}

func newHistoryShowCmd(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run with its findings and minted GUIDs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, closeFn, err := historyRepo(st)
			if err != nil {
				return err
			}
			defer closeFn()

			ctx := cmd.Context()
			run, err := repo.Get(ctx, args[0])
			if err != nil {
				return err
			}
			findings, err := repo.Findings(ctx, run.ID)
			if err != nil {
				return err
			}
			guids, err := repo.GUIDs(ctx, run.ID)
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				if findings == nil {
					findings = []domain.Finding{}
				}
				if guids == nil {
					guids = []domain.GUIDAssignment{}
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"run":      run,
					"findings": findings,
					"guids":    guids,
				})
			}
			return printRunDetail(cmd.OutOrStdout(), run, findings, guids)
		},
	}
}

func printRunDetail(w io.Writer, run *domain.Run, findings []domain.Finding, guids []domain.GUIDAssignment) error {
	if err := printTable(w, []string{"FIELD", "VALUE"}, [][]string{
		{"ID", run.ID},
		{"Submission", run.Submission},
		{"Strategy", run.Strategy},
		{"Started", run.StartedAt.Local().Format(time.DateTime)},
		{"Finished", run.FinishedAt.Local().Format(time.DateTime)},
		{"Passes", fmt.Sprint(run.Passes)},
		{"Warnings", fmt.Sprint(run.Warnings)},
		{"Errors", fmt.Sprint(run.Errors)},
	}); err != nil {
		return err
	}
	if len(findings) > 0 {
		_, _ = fmt.Fprintln(w)
		if err := printTable(w, findingHeaders, findingRows(findings, isTerminal(w))); err != nil {
			return err
		}
	}
	if len(guids) > 0 {
		rows := make([][]string, len(guids))
		for i, g := range guids {
			rows[i] = []string{g.Node, g.FileURL, g.MD5Sum, g.GUID, fmt.Sprint(g.Rows)}
		}
		_, _ = fmt.Fprintln(w)
		return printTable(w, []string{"NODE", "URL", "MD5SUM", "GUID", "ROWS"}, rows)
	}
	return nil
}

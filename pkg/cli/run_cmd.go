package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"catcherr/internal/app"
	"catcherr/internal/domain"
	"catcherr/internal/reconcile"
)

// errRunFailed marks a run whose report carries ERROR findings when
// --fail-on-error is set. Outputs are still written.
var errRunFailed = errors.New("reconciliation reported errors")

type runFlags struct {
	submission  string
	template    string
	out         string
	manifest    string
	inventory   bool
	failOnError bool
	concurrency int
	rps         float64
	retries     int
	timeout     time.Duration
}

// inventoryFlagSet holds the bucket listing overrides. They are applied to
// the configuration only when set on the command line.
func inventoryFlagSet(f *runFlags) *pflag.FlagSet {
	fs := pflag.NewFlagSet("inventory", pflag.ContinueOnError)
	fs.IntVar(&f.concurrency, "inventory-concurrency", 0, "Buckets listed at once (overrides INVENTORY_CONCURRENCY)")
	fs.Float64Var(&f.rps, "inventory-rps", 0, "Listing requests per second (overrides INVENTORY_RPS)")
	fs.IntVar(&f.retries, "inventory-retries", 0, "Attempts per bucket (overrides INVENTORY_RETRIES)")
	fs.DurationVar(&f.timeout, "inventory-timeout", 0, "Timeout per listing attempt (overrides INVENTORY_TIMEOUT)")
	return fs
}

func newRunCmd(st *rootState) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reconcile a submission and write the corrected files and report",
		Long: "Reconcile a submission directory or .xlsx workbook against its template. The corrected node files are written to " +
			"<submission>_CatchERR<YYYYMMDD>/ (one .xlsx per node for a workbook submission) and the report to " +
			"<submission>_CatchERR<YYYYMMDD>.txt.",
		Example: `  catcherr run -f ./submission
  catcherr run -f submission.xlsx -t template.xlsx
  catcherr run -f ./submission -t ./template --inventory
  catcherr run -f ./submission -t vocab.yaml --manifest inventory.csv -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := st.cfg
			fl := cmd.Flags()
			if !fl.Changed("inventory") {
				f.inventory = cfg.Inventory.Enabled
			}
			if fl.Changed("inventory-concurrency") {
				cfg.Inventory.Concurrency = f.concurrency
			}
			if fl.Changed("inventory-rps") {
				cfg.Inventory.RPS = f.rps
			}
			if fl.Changed("inventory-retries") {
				cfg.Inventory.Retries = f.retries
			}
			if fl.Changed("inventory-timeout") {
				cfg.Inventory.Timeout = f.timeout
			}

			a, err := st.openApp()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			out, err := a.Reconcile(cmd.Context(), app.RunOptions{
				SubmissionPath: f.submission,
				TemplatePath:   f.template,
				OutputBase:     f.out,
				Inventory:      f.inventory,
				ManifestPath:   f.manifest,
			})
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				err = printJSON(cmd.OutOrStdout(), newRunJSON(out))
			} else {
				err = printRunTable(cmd.OutOrStdout(), out)
			}
			if err != nil {
				return err
			}
			if f.failOnError && out.Result.Report.HasErrors() {
				return errRunFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&f.submission, "file", "f", "", "Submission directory of node files, or an .xlsx workbook (required)")
	cmd.Flags().StringVarP(&f.template, "template", "t", "", "Template directory, .xlsx workbook or YAML vocabulary (default: the submission)")
	cmd.Flags().StringVar(&f.out, "out", "", "Output path without extension (default: <submission>_CatchERR<YYYYMMDD>)")
	cmd.Flags().StringVar(&f.manifest, "manifest", "", "Serve bucket listings from an exported inventory manifest")
	cmd.Flags().BoolVar(&f.inventory, "inventory", false, "Repair file urls against bucket listings (default from INVENTORY_ENABLED)")
	cmd.Flags().BoolVar(&f.failOnError, "fail-on-error", false, "Exit non-zero when the report contains errors")
	cmd.Flags().AddFlagSet(inventoryFlagSet(f))
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

type runJSON struct {
	RunID      string                  `json:"run_id,omitempty"`
	Strategy   string                  `json:"strategy"`
	OutputDir  string                  `json:"output_dir"`
	ReportPath string                  `json:"report_path"`
	Dropped    []string                `json:"dropped"`
	Counts     reconcile.Counts        `json:"counts"`
	Findings   []domain.Finding        `json:"findings"`
	GUIDs      []domain.GUIDAssignment `json:"guids"`
}

func newRunJSON(out *app.Outcome) runJSON {
	res := out.Result
	v := runJSON{
		RunID:      out.RunID,
		Strategy:   res.Strategy,
		OutputDir:  out.OutputDir,
		ReportPath: out.ReportPath,
		Dropped:    res.Dropped,
		Counts:     res.Report.Counts(),
		Findings:   res.Report.Entries(),
		GUIDs:      res.GUIDs,
	}
	if v.Dropped == nil {
		v.Dropped = []string{}
	}
	if v.Findings == nil {
		v.Findings = []domain.Finding{}
	}
	if v.GUIDs == nil {
		v.GUIDs = []domain.GUIDAssignment{}
	}
	return v
}

func printRunTable(w io.Writer, out *app.Outcome) error {
	res := out.Result
	c := res.Report.Counts()

	summary := [][]string{
		{"Strategy", res.Strategy},
		{"Nodes", fmt.Sprint(len(res.Submission.Nodes))},
		{"Passes", fmt.Sprint(c.Pass)},
		{"Warnings", fmt.Sprint(c.Warning)},
		{"Errors", fmt.Sprint(c.Error)},
		{"GUIDs minted", fmt.Sprint(len(res.GUIDs))},
		{"Output", out.OutputDir},
		{"Report", out.ReportPath},
	}
	if len(res.Dropped) > 0 {
		summary = append(summary, []string{"Dropped nodes", fmt.Sprint(res.Dropped)})
	}
	if out.RunID != "" {
		summary = append(summary, []string{"Run ID", out.RunID})
	}
	if err := printTable(w, []string{"FIELD", "VALUE"}, summary); err != nil {
		return err
	}

	var issues []domain.Finding
	for _, f := range res.Report.Entries() {
		if f.Severity != domain.SeverityPass {
			issues = append(issues, f)
		}
	}
	if len(issues) == 0 {
		return nil
	}
	_, _ = fmt.Fprintln(w)
	return printTable(w, findingHeaders, findingRows(issues, isTerminal(w)))
}

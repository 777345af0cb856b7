package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"goodsam/domain/pattern"
	"goodsam/internal/analysis"
	"goodsam/internal/config"
	"goodsam/internal/container"
	"goodsam/internal/report"
)

// dataFlags override the data files named in the environment
type dataFlags struct {
	dir         string
	mainFile    string
	patternFile string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var data dataFlags

	rootCmd := &cobra.Command{
		Use:           "goodsam-cli",
		Short:         "Treatment effect analysis of Good Samaritan laws from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&data.dir, "data-dir", "", "Data directory (default DATA_DIR)")
	rootCmd.PersistentFlags().StringVar(&data.mainFile, "main-file", "", "Main dataset file (default MAIN_FILE)")
	rootCmd.PersistentFlags().StringVar(&data.patternFile, "pattern-file", "", "Pattern catalogue file (default PATTERN_FILE)")

	rootCmd.AddCommand(
		newPatternsCmd(&data),
		newAnalyzeCmd(&data),
		newCrossValCmd(&data),
		newHistogramCmd(&data),
		newReportCmd(&data),
	)
	return rootCmd
}

// load builds the container and loads the configured tables
func load(ctx context.Context, data *dataFlags) (*container.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if data.dir != "" {
		cfg.Data.Dir = data.dir
	}
	if data.mainFile != "" {
		cfg.Data.MainFile = data.mainFile
	}
	if data.patternFile != "" {
		cfg.Data.PatternFile = data.patternFile
	}
	c, err := container.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// requestFlags describe an ad-hoc constraint request
type requestFlags struct {
	constraints string
	law         string
	active      []float64
	inactive    []float64
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.constraints, "constraints", "{}", `Constraints as JSON, e.g. '{"Population": {"lb": 1000, "ub": inf}}'`)
	cmd.Flags().StringVar(&f.law, "law", "", "Law column (default DEFAULT_LAW)")
	cmd.Flags().Float64SliceVar(&f.active, "active", nil, "Active range lo,hi of the law column (default 1,1)")
	cmd.Flags().Float64SliceVar(&f.inactive, "inactive", nil, "Inactive range lo,hi of the law column (default 0,0)")
}

func (f *requestFlags) request() (analysis.Request, error) {
	var cs pattern.ConstraintSet
	if err := json.Unmarshal([]byte(f.constraints), &cs); err != nil {
		return analysis.Request{}, fmt.Errorf("invalid --constraints: %w", err)
	}
	return analysis.Request{
		Constraints:   cs,
		Law:           f.law,
		ActiveRange:   f.active,
		InactiveRange: f.inactive,
	}, nil
}

func newPatternsCmd(data *dataFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "patterns",
		Short: "List the pattern catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := load(cmd.Context(), data)
			if err != nil {
				return err
			}
			defer c.Shutdown(cmd.Context())

			patterns, err := c.Service.Patterns()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tLAW\tROWS\tCONDITIONS")
			for _, p := range patterns {
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", p.ID, p.Law, p.Rows, strings.Join(p.Conditions, " & "))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			failures, err := c.Service.PatternFailures()
			if err != nil {
				return err
			}
			ids := make([]int, 0, len(failures))
			for id := range failures {
				ids = append(ids, id)
			}
			sort.Ints(ids)
			for _, id := range ids {
				fmt.Fprintf(cmd.ErrOrStderr(), "pattern %d skipped: %v\n", id, failures[id])
			}
			return nil
		},
	}
}

func newAnalyzeCmd(data *dataFlags) *cobra.Command {
	var id int
	var req requestFlags

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Estimate the effect of a law for a pattern or ad-hoc constraints",
		Long: `Estimate the treatment effect of a law column and print a markdown report.

With --pattern the catalogued pattern is analysed; otherwise the --constraints
filter is applied and the law column is binarised with --active and --inactive.

Example: goodsam-cli analyze --constraints '{"Population": {"lb": 10000, "ub": inf}}' --law goodsam-cs_Prosecution`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := load(cmd.Context(), data)
			if err != nil {
				return err
			}
			defer c.Shutdown(cmd.Context())

			var res *analysis.Result
			title := fmt.Sprintf("Pattern %d", id)
			if cmd.Flags().Changed("pattern") {
				res, err = c.Service.AnalyzePattern(cmd.Context(), id)
			} else {
				var r analysis.Request
				if r, err = req.request(); err != nil {
					return err
				}
				var cr *analysis.ConstraintResult
				if cr, err = c.Service.AnalyzeConstraints(cmd.Context(), r); err == nil {
					res, title = &cr.Result, "Constraint analysis"
					fmt.Fprintf(cmd.ErrOrStderr(), "%d counties: %d active, %d inactive\n",
						len(cr.Counties), len(cr.Active), len(cr.Inactive))
				}
			}
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), toReport(title, res).Markdown())
			return err
		},
	}
	cmd.Flags().IntVar(&id, "pattern", 0, "Catalogued pattern ID")
	req.register(cmd)
	return cmd
}

func newCrossValCmd(data *dataFlags) *cobra.Command {
	var req requestFlags

	cmd := &cobra.Command{
		Use:   "crossval",
		Short: "K-fold NRMSE of the causal model on a constraint selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := req.request()
			if err != nil {
				return err
			}
			c, err := load(cmd.Context(), data)
			if err != nil {
				return err
			}
			defer c.Shutdown(cmd.Context())

			res, err := c.Service.CrossValidate(cmd.Context(), r)
			if err != nil {
				return err
			}
			for i, s := range res.Scores {
				fmt.Fprintf(cmd.OutOrStdout(), "fold %d\t%.6g\n", i, s)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mean\t%.6g\n", res.Mean)
			return nil
		},
	}
	req.register(cmd)
	return cmd
}

func newHistogramCmd(data *dataFlags) *cobra.Command {
	var id int

	cmd := &cobra.Command{
		Use:   "histogram",
		Short: "Print filtered and full column histograms of a pattern",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := load(cmd.Context(), data)
			if err != nil {
				return err
			}
			defer c.Shutdown(cmd.Context())

			if !cmd.Flags().Changed("pattern") {
				id = c.Service.DefaultPattern()
			}
			res, err := c.Service.AnalyzePattern(cmd.Context(), id)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(res.Effect.Histograms))
			for name := range res.Effect.Histograms {
				names = append(names, name)
			}
			sort.Strings(names)

			out := cmd.OutOrStdout()
			for _, name := range names {
				h := res.Effect.Histograms[name]
				fmt.Fprintf(out, "%s\n", name)
				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "  BIN\tFILTERED\tFULL")
				for i := range h.FilteredCounts {
					fmt.Fprintf(w, "  [%.4g, %.4g)\t%d\t%d\n", h.BinEdges[i], h.BinEdges[i+1], h.FilteredCounts[i], h.FullCounts[i])
				}
				if err := w.Flush(); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&id, "pattern", 0, "Catalogued pattern ID (default the configured pattern)")
	return cmd
}

func newReportCmd(data *dataFlags) *cobra.Command {
	var id int
	var out string
	var markdown bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the effect report of a pattern as HTML",
		Long: `Render the effect report of a catalogued pattern as a standalone HTML page.

Example: goodsam-cli report --pattern 29 --out pattern29.html`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := load(cmd.Context(), data)
			if err != nil {
				return err
			}
			defer c.Shutdown(cmd.Context())

			if !cmd.Flags().Changed("pattern") {
				id = c.Service.DefaultPattern()
			}
			res, err := c.Service.AnalyzePattern(cmd.Context(), id)
			if err != nil {
				return err
			}
			r := toReport(fmt.Sprintf("Pattern %d", id), res)
			body := r.Page()
			if markdown {
				body = []byte(r.Markdown())
			}
			if out == "" {
				_, err = cmd.OutOrStdout().Write(body)
				return err
			}
			if err := os.WriteFile(out, body, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().IntVar(&id, "pattern", 0, "Catalogued pattern ID (default the configured pattern)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "Write markdown instead of HTML")
	return cmd
}

func toReport(title string, res *analysis.Result) report.Report {
	return report.Report{
		Title:      title,
		Column:     res.Column,
		Conditions: res.Conditions,
		Effect:     res.Effect,
	}
}

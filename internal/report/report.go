// Package report renders effect estimates as markdown and HTML.
package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"goodsam/internal/effect"
)

// Report is one rendered analysis
type Report struct {
	Title      string
	Column     string
	Conditions []string
	Effect     *effect.EffectResult
}

// Markdown renders the report
func (r Report) Markdown() string {
	var b strings.Builder
	title := r.Title
	if title == "" {
		title = "Effect report"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "Treatment column: `%s`\n\n", r.Column)

	b.WriteString("## Selection\n\n")
	if len(r.Conditions) == 0 {
		b.WriteString("No filters; every row is used.\n\n")
	}
	for _, c := range r.Conditions {
		fmt.Fprintf(&b, "- `%s`\n", c)
	}
	if len(r.Conditions) > 0 {
		b.WriteString("\n")
	}

	e := r.Effect
	if e == nil {
		return b.String()
	}

	b.WriteString("## Effect\n\n")
	b.WriteString("| Measure | Value |\n|---|---|\n")
	row(&b, "Mean outcome, treated", e.TreatedMean)
	row(&b, "Mean outcome, control", e.ControlMean)
	row(&b, "Mean ITE", e.MeanITE)
	row(&b, "Std ITE", e.StdITE)
	row(&b, "Cohen's d", e.CohensD)
	row(&b, "Imbalance ratio", e.Imbalance)
	fmt.Fprintf(&b, "| Alternative | %s |\n\n", e.Alternative)

	b.WriteString("## Tests\n\n")
	b.WriteString("| Test | Statistic | p-value |\n|---|---|---|\n")
	test(&b, "Mann-Whitney U", e.MannWhitney.Statistic, e.MannWhitney.PValue)
	test(&b, "Permutation", e.Permutation.Statistic, e.Permutation.PValue)
	test(&b, "Paired t", e.TTest.Statistic, e.TTest.PValue)
	b.WriteString("\n")

	d := e.Diagnostics
	b.WriteString("## Response surface fit\n\n")
	fmt.Fprintf(&b, "Held-out rows: %d (trained on %d).\n\n", d.TestRows, d.TrainRows)
	b.WriteString("| Measure | Value |\n|---|---|\n")
	row(&b, "RMSE", d.RMSE)
	row(&b, "Baseline RMSE", d.BaselineRMSE)
	row(&b, "R²", d.RSquared)
	row(&b, "NRMSE (range)", d.NRMSE)
	row(&b, "Interval coverage", d.Coverage)
	fmt.Fprintf(&b, "| Outcome 5%%-95%% | %s to %s |\n\n", num(d.Q05), num(d.Q95))

	if len(e.Importance) > 0 {
		b.WriteString("## Feature importance\n\n")
		b.WriteString("| Rank | Feature | Importance |\n|---|---|---|\n")
		for i, f := range e.Importance {
			fmt.Fprintf(&b, "| %d | %s | %s |\n", i+1, f.Feature, num(f.Score))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// HTML renders the report as an HTML fragment
func (r Report) HTML() []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return markdown.ToHTML([]byte(r.Markdown()), p, renderer)
}

// Page renders the report as a standalone HTML document
func (r Report) Page() []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	title := r.Title
	if title == "" {
		title = "Effect report"
	}
	renderer := html.NewRenderer(html.RendererOptions{
		Title: title,
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.ToHTML([]byte(r.Markdown()), p, renderer)
}

func row(b *strings.Builder, name string, v float64) {
	fmt.Fprintf(b, "| %s | %s |\n", name, num(v))
}

func test(b *strings.Builder, name string, stat, p float64) {
	fmt.Fprintf(b, "| %s | %s | %s |\n", name, num(stat), num(p))
}

func num(v float64) string {
	switch {
	case math.IsNaN(v):
		return "n/a"
	case math.IsInf(v, 1):
		return "∞"
	case math.IsInf(v, -1):
		return "-∞"
	}
	return fmt.Sprintf("%.4g", v)
}

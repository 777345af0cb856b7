package report

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"goodsam/internal/effect"
	"goodsam/internal/hypothesis"
	"goodsam/ports"
)

func sample() Report {
	return Report{
		Title:      "Pattern 29",
		Column:     "law",
		Conditions: []string{"['col0']>=0", "['col0']<=10"},
		Effect: &effect.EffectResult{
			TreatedMean: 3.5,
			ControlMean: 2,
			MeanITE:     1.5,
			CohensD:     math.Inf(1),
			Alternative: hypothesis.Greater,
			TTest:       hypothesis.Result{Statistic: math.Inf(1), PValue: 0},
			MannWhitney: hypothesis.Result{Statistic: 121, PValue: 1e-5},
			Permutation: hypothesis.Result{Statistic: 1.5, PValue: 0.001},
			Diagnostics: effect.Diagnostics{RMSE: math.NaN(), TrainRows: 8, TestRows: 3},
			Importance: []ports.FeatureScore{
				{Feature: "col1", Score: 0.7},
				{Feature: "col2", Score: 0.3},
			},
		},
	}
}

func TestMarkdown(t *testing.T) {
	md := sample().Markdown()

	assert.True(t, strings.HasPrefix(md, "# Pattern 29\n"))
	assert.Contains(t, md, "- `['col0']>=0`")
	assert.Contains(t, md, "| Mean ITE | 1.5 |")
	assert.Contains(t, md, "| Cohen's d | ∞ |")
	assert.Contains(t, md, "| RMSE | n/a |")
	assert.Contains(t, md, "| Paired t | ∞ | 0 |")
	assert.Contains(t, md, "| 1 | col1 | 0.7 |")
	assert.Contains(t, md, "Held-out rows: 3 (trained on 8).")
}

func TestMarkdown_WithoutEffect(t *testing.T) {
	md := Report{Column: "law"}.Markdown()
	assert.Contains(t, md, "# Effect report")
	assert.Contains(t, md, "No filters; every row is used.")
	assert.NotContains(t, md, "## Tests")
}

func TestHTML(t *testing.T) {
	out := string(sample().HTML())
	assert.Contains(t, out, "<h1")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<td>col1</td>")

	page := string(sample().Page())
	assert.Contains(t, page, "<title>Pattern 29</title>")
}

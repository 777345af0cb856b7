package ui

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"goodsam/internal/analysis"
	"goodsam/internal/effect"
	"goodsam/internal/errors"
	"goodsam/internal/histogram"
)

// Number encodes non-finite values as null
type Number float64

func (n Number) MarshalJSON() ([]byte, error) {
	v := float64(n)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(v, 'g', -1, 64)), nil
}

func numbers(values []float64) []Number {
	out := make([]Number, len(values))
	for i, v := range values {
		out[i] = Number(v)
	}
	return out
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps an application error code to an HTTP status
func statusFor(code string) int {
	switch code {
	case errors.CodeInvalidInput, errors.CodeValidationError, errors.CodeMalformedPattern,
		errors.CodeUnknownColumn, errors.CodeEmptyFilterResult, errors.CodeEmptySplit,
		errors.CodeNonNumericColumn, errors.CodeInvalidFoldCount:
		return http.StatusBadRequest
	case errors.CodeNotFound, errors.CodePatternNotFound:
		return http.StatusNotFound
	case errors.CodeTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// respondError writes {"error": {"code", "message"}}
func (s *Server) respondError(c *gin.Context, err error) {
	appErr := errors.Classify(err)
	status := statusFor(appErr.Code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("[API] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	} else {
		s.logger.Debug("[API] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": errorBody{Code: appErr.Code, Message: appErr.Message}})
}

// bindError classifies a request body that failed to decode
func bindError(err error) error {
	if errors.Classify(err).Code == errors.CodeMalformedPattern {
		return err
	}
	return &errors.AppError{Code: errors.CodeInvalidInput, Message: "request body is not valid JSON", Cause: err}
}

type featureImportance struct {
	Features   []string `json:"features"`
	Importance []Number `json:"importance"`
}

type columnInfo struct {
	ColumnName string   `json:"column_name"`
	Threshold  *float64 `json:"threshold"`
	Inverse    bool     `json:"inverse"`
}

type histogramJSON struct {
	Counts   []int     `json:"counts"`
	BinEdges []float64 `json:"bin_edges"`
}

type diagnosticsJSON struct {
	RMSE         Number   `json:"rmse"`
	BaselineRMSE Number   `json:"baseline_rmse"`
	RSquared     Number   `json:"r_square"`
	NRMSE        Number   `json:"nrmse"`
	Coverage     Number   `json:"coverage_rate"`
	Quantiles    []Number `json:"quantiles"`
	TrainRows    int      `json:"train_rows"`
	TestRows     int      `json:"test_rows"`
}

// histData is the dashboard payload of one effect estimation.
// histogram_data is [Z0, Z1, mean0, mean1]; test_scores is
// [mann-whitney p, permutation p, paired t p, imbalance ratio, cohen's d];
// ite_scores is [mean ITE, std ITE].
type histData struct {
	HistogramData        []interface{}            `json:"histogram_data"`
	TestScores           []Number                 `json:"test_scores"`
	ITEScores            []Number                 `json:"ite_scores"`
	Alternative          string                   `json:"alternative"`
	CleanedConds         []string                 `json:"cleaned_conds"`
	FeatureImportance    featureImportance        `json:"feature_importance"`
	ColumnInfo           columnInfo               `json:"column_info"`
	ColumnHistograms     map[string]histogramJSON `json:"column_histograms"`
	FullColumnHistograms map[string]histogramJSON `json:"full_column_histograms"`
	Diagnostics          diagnosticsJSON          `json:"diagnostics"`
}

func newHistData(res *analysis.Result) histData {
	e := res.Effect
	out := histData{
		HistogramData: []interface{}{
			numbers(e.Control),
			numbers(e.Treated),
			Number(e.ControlMean),
			Number(e.TreatedMean),
		},
		TestScores: []Number{
			Number(e.MannWhitney.PValue),
			Number(e.Permutation.PValue),
			Number(e.TTest.PValue),
			Number(e.Imbalance),
			Number(e.CohensD),
		},
		ITEScores:    []Number{Number(e.MeanITE), Number(e.StdITE)},
		Alternative:  string(e.Alternative),
		CleanedConds: append([]string{}, res.Conditions...),
		FeatureImportance: featureImportance{
			Features:   make([]string, len(e.Importance)),
			Importance: make([]Number, len(e.Importance)),
		},
		ColumnInfo:           columnInfo{ColumnName: res.Column},
		ColumnHistograms:     make(map[string]histogramJSON, len(e.Histograms)),
		FullColumnHistograms: make(map[string]histogramJSON, len(e.Histograms)),
		Diagnostics:          newDiagnostics(e.Diagnostics),
	}
	for i, f := range e.Importance {
		out.FeatureImportance.Features[i] = f.Feature
		out.FeatureImportance.Importance[i] = Number(f.Score)
	}
	for name, h := range e.Histograms {
		out.ColumnHistograms[name], out.FullColumnHistograms[name] = splitHistogram(h)
	}
	return out
}

func splitHistogram(h histogram.Comparison) (filtered, full histogramJSON) {
	return histogramJSON{Counts: h.FilteredCounts, BinEdges: h.BinEdges},
		histogramJSON{Counts: h.FullCounts, BinEdges: h.BinEdges}
}

func newDiagnostics(d effect.Diagnostics) diagnosticsJSON {
	return diagnosticsJSON{
		RMSE:         Number(d.RMSE),
		BaselineRMSE: Number(d.BaselineRMSE),
		RSquared:     Number(d.RSquared),
		NRMSE:        Number(d.NRMSE),
		Coverage:     Number(d.Coverage),
		Quantiles:    []Number{Number(d.Q05), Number(d.Q95)},
		TrainRows:    d.TrainRows,
		TestRows:     d.TestRows,
	}
}

type userPatternResponse struct {
	analysis.Selection
	HistData    histData `json:"histData"`
	CountyNames []string `json:"countyNames"`
	StateNames  []string `json:"stateNames"`
}

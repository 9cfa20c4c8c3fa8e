package gateway

import (
	"math"
	"sort"
)

// Analysis types supported by the analyze_data tool.
const (
	AnalysisStatistics = "statistics"
	AnalysisTrend      = "trend"
	AnalysisAnomaly    = "anomaly"
	AnalysisSummary    = "summary"
	AnalysisComparison = "comparison"
)

// anomalyStdDevs is the threshold distance above the mean.
const anomalyStdDevs = 2.0

// analyzeRows computes an in-process analysis over rows that already passed
// the mediator, so every value it sees is within the granted field set.
// Unknown analysis types and missing inputs yield an error payload rather
// than a failure: the result is conversational output for the agent.
func analyzeRows(rows []map[string]any, analysisType, groupBy, metric string) map[string]any {
	if len(rows) == 0 {
		return map[string]any{"error": "no data available for analysis"}
	}

	switch analysisType {
	case AnalysisStatistics:
		return analyzeStatistics(rows, metric)
	case AnalysisTrend:
		return analyzeTrend(rows, metric)
	case AnalysisAnomaly:
		return analyzeAnomalies(rows, metric)
	case AnalysisSummary:
		return analyzeSummary(rows)
	case AnalysisComparison:
		return analyzeComparison(rows, groupBy, metric)
	default:
		return map[string]any{"error": "unknown analysis type"}
	}
}

func analyzeStatistics(rows []map[string]any, metric string) map[string]any {
	field := metricField(metric)
	values := numericValues(rows, field)
	if len(values) == 0 {
		return map[string]any{"error": "no numeric data found for statistics"}
	}

	sum := 0.0
	min := values[0]
	max := values[0]
	for _, v := range values {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	return map[string]any{
		"type":    AnalysisStatistics,
		"metric":  field,
		"count":   len(values),
		"sum":     sum,
		"average": sum / float64(len(values)),
		"min":     min,
		"max":     max,
		"range":   max - min,
	}
}

func analyzeTrend(rows []map[string]any, metric string) map[string]any {
	field := metricField(metric)

	// Bucket rows by YYYY-MM of their most plausible date field.
	buckets := make(map[string][]map[string]any)
	for _, row := range rows {
		date := rowDate(row)
		if len(date) < 7 {
			continue
		}
		key := date[:7]
		buckets[key] = append(buckets[key], row)
	}
	if len(buckets) == 0 {
		return map[string]any{"error": "no dated rows found for trend analysis"}
	}

	periods := make([]string, 0, len(buckets))
	for p := range buckets {
		periods = append(periods, p)
	}
	sort.Strings(periods)

	type periodTotal struct {
		Period string  `json:"period"`
		Count  int     `json:"count"`
		Total  float64 `json:"total"`
	}
	totals := make([]periodTotal, 0, len(periods))
	for _, p := range periods {
		total := 0.0
		for _, row := range buckets[p] {
			if v, ok := numeric(row[field]); ok {
				total += v
			}
		}
		totals = append(totals, periodTotal{Period: p, Count: len(buckets[p]), Total: total})
	}

	direction := "insufficient_data"
	if len(totals) >= 2 {
		if totals[len(totals)-1].Total > totals[0].Total {
			direction = "increasing"
		} else {
			direction = "decreasing"
		}
	}

	return map[string]any{
		"type":      AnalysisTrend,
		"periods":   totals,
		"direction": direction,
	}
}

func analyzeAnomalies(rows []map[string]any, metric string) map[string]any {
	field := metricField(metric)
	values := numericValues(rows, field)
	if len(values) == 0 {
		return map[string]any{"error": "no numeric data found for anomaly detection"}
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(values)))
	threshold := mean + anomalyStdDevs*stdDev

	anomalies := make([]map[string]any, 0)
	for _, row := range rows {
		v, ok := numeric(row[field])
		if !ok || v <= threshold {
			continue
		}
		a := map[string]any{"value": v}
		if id, ok := row["id"]; ok {
			a["id"] = id
		}
		if desc, ok := row["description"]; ok {
			a["description"] = desc
		}
		if name, ok := row["name"]; ok {
			a["name"] = name
		}
		anomalies = append(anomalies, a)
	}

	return map[string]any{
		"type":               AnalysisAnomaly,
		"threshold":          threshold,
		"average":            mean,
		"standard_deviation": stdDev,
		"anomalies":          anomalies,
	}
}

func analyzeSummary(rows []map[string]any) map[string]any {
	sampleSize := 5
	if len(rows) < sampleSize {
		sampleSize = len(rows)
	}

	fields := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	return map[string]any{
		"type":          AnalysisSummary,
		"total_records": len(rows),
		"sample":        rows[:sampleSize],
		"fields":        fields,
	}
}

func analyzeComparison(rows []map[string]any, groupBy, metric string) map[string]any {
	if groupBy == "" {
		return map[string]any{"error": "group_by field required for comparison analysis"}
	}
	field := metricField(metric)

	groups := make(map[string][]map[string]any)
	for _, row := range rows {
		key := "unknown"
		if v, ok := row[groupBy].(string); ok && v != "" {
			key = v
		}
		groups[key] = append(groups[key], row)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	type groupTotal struct {
		Group   string  `json:"group"`
		Count   int     `json:"count"`
		Total   float64 `json:"total"`
		Average float64 `json:"average"`
	}
	comparison := make([]groupTotal, 0, len(names))
	for _, name := range names {
		total := 0.0
		for _, row := range groups[name] {
			if v, ok := numeric(row[field]); ok {
				total += v
			}
		}
		comparison = append(comparison, groupTotal{
			Group:   name,
			Count:   len(groups[name]),
			Total:   total,
			Average: total / float64(len(groups[name])),
		})
	}

	return map[string]any{
		"type":     AnalysisComparison,
		"group_by": groupBy,
		"groups":   comparison,
	}
}

// metricField picks the value field for numeric analyses.
func metricField(metric string) string {
	if metric != "" {
		return metric
	}
	return "amount"
}

// rowDate returns the first plausible date string on a row.
func rowDate(row map[string]any) string {
	for _, field := range []string{"date", "expected_close_date", "hire_date", "created_at"} {
		if v, ok := row[field].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func numericValues(rows []map[string]any, field string) []float64 {
	values := make([]float64, 0, len(rows))
	for _, row := range rows {
		if v, ok := numeric(row[field]); ok {
			values = append(values, v)
		}
	}
	return values
}

// numeric coerces the value types a document store hands back for numbers.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

package iperf3

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeNumberKeepsInt32Range(t *testing.T) {
	assert.Equal(t, int64(0), normalizeNumber(json.Number("0")))
	assert.Equal(t, int64(2147483647), normalizeNumber(json.Number("2147483647")))
	assert.Equal(t, int64(-2147483647), normalizeNumber(json.Number("-2147483647")))
}

func TestNormalizeNumberWidensLargeInts(t *testing.T) {
	assert.Equal(t, float64(2147483648), normalizeNumber(json.Number("2147483648")))
	assert.Equal(t, float64(-2147483648), normalizeNumber(json.Number("-2147483648")))
	assert.Equal(t, 5e9, normalizeNumber(json.Number("5000000000")))
}

func TestNormalizeNumberLeavesFloats(t *testing.T) {
	assert.Equal(t, 1.5, normalizeNumber(json.Number("1.5")))
	assert.Equal(t, 92214509257.57492, normalizeNumber(json.Number("92214509257.57492")))
}

func TestNormalizeTreeWalksNestedContainers(t *testing.T) {
	report, err := decodeReport([]byte(`{
		"end": {
			"sum_sent": {"bytes": 11527782400, "seconds": 1.000084},
			"streams": [{"sender": {"bytes": 11527782400, "socket": 5}}]
		},
		"version": "iperf 3.7"
	}`))
	require.NoError(t, err)

	end := report["end"].(map[string]any)
	sumSent := end["sum_sent"].(map[string]any)
	assert.Equal(t, 11527782400.0, sumSent["bytes"])
	assert.Equal(t, 1.000084, sumSent["seconds"])

	sender := end["streams"].([]any)[0].(map[string]any)["sender"].(map[string]any)
	assert.Equal(t, 11527782400.0, sender["bytes"])
	assert.Equal(t, int64(5), sender["socket"])
	assert.Equal(t, "iperf 3.7", report["version"])
}

func TestNormalizeTreeIsIdempotent(t *testing.T) {
	report, err := decodeReport([]byte(`{"a": 5000000000, "b": [7, 2147483648], "c": "x"}`))
	require.NoError(t, err)
	again := normalizeTree(report)
	assert.Equal(t, report, again)
}

func TestNormalizeTreePreservesStructure(t *testing.T) {
	report, err := decodeReport([]byte(`{"a": {"b": [1, 2, 3]}, "d": null, "e": true}`))
	require.NoError(t, err)
	assert.Len(t, report, 3)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, report["a"].(map[string]any)["b"])
	assert.Nil(t, report["d"])
	assert.Equal(t, true, report["e"])
}

func TestDecodeReportsSplitsConcatenatedDocuments(t *testing.T) {
	stats, err := decodeReports([]byte("{\"start\": {\"n\": 1}}\n{\"start\": {\"n\": 2}}\n"))
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, int64(1), stats[0]["start"].(map[string]any)["n"])
	assert.Equal(t, int64(2), stats[1]["start"].(map[string]any)["n"])
}

func TestDecodeReportsEmptyOutput(t *testing.T) {
	stats, err := decodeReports(nil)
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestDecodeReportsMalformedDocument(t *testing.T) {
	stats, err := decodeReports([]byte("{\"ok\": 1}\n{broken"))
	assert.Error(t, err)
	assert.Len(t, stats, 1)
}

package iperf3

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

const int32Bound = 1 << 31

// decodeReport parses a single iperf3 JSON report and normalizes its
// numeric leaves.
func decodeReport(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse iperf3 report: %w", err)
	}
	return normalizeTree(doc).(map[string]any), nil
}

// decodeReports parses one or more JSON documents concatenated on a single
// stream, as emitted by an iperf3 server (one report per connected client,
// no separators beyond adjacent object boundaries).
func decodeReports(data []byte) ([]map[string]any, error) {
	reports := []map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	for {
		var doc map[string]any
		if err := dec.Decode(&doc); err != nil {
			if err == io.EOF {
				return reports, nil
			}
			return reports, fmt.Errorf("parse iperf3 server report: %w", err)
		}
		reports = append(reports, normalizeTree(doc).(map[string]any))
	}
}

// normalizeTree walks a decoded report and rewrites numeric leaves so that
// every integer fits a signed 32-bit range; wider integers become floats of
// equal value. XML-RPC-era automation transports cannot carry 64-bit
// integers, and applying the conversion unconditionally keeps local and
// remote results identical. Container structure is left untouched.
func normalizeTree(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for key, value := range t {
			t[key] = normalizeTree(value)
		}
		return t
	case []any:
		for i, value := range t {
			t[i] = normalizeTree(value)
		}
		return t
	case json.Number:
		return normalizeNumber(t)
	default:
		return v
	}
}

func normalizeNumber(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		if -int32Bound < i && i < int32Bound {
			return i
		}
		return float64(i)
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	// Not representable as int64 or float64; keep the literal.
	return n
}

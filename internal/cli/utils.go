// Package cli formats command output for recall.
package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/hyperjump/recall/internal/errs"
	"github.com/hyperjump/recall/internal/models"
	"github.com/hyperjump/recall/internal/storage"
	"github.com/hyperjump/recall/internal/worker"
	"github.com/hyperjump/recall/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one result per line.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputCompact, OutputJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

// ParseVector parses a query vector given as a JSON array. The brackets may be omitted.
func ParseVector(data []byte) ([]float32, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty vector")
	}
	if trimmed[0] != '[' {
		trimmed = append(append([]byte{'['}, trimmed...), ']')
	}
	var vec []float32
	if err := json.Unmarshal(trimmed, &vec); err != nil {
		return nil, fmt.Errorf("parse vector: %w", err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("empty vector")
	}
	return vec, nil
}

// Record is the content record shape written by the diary indexer. Other shapes are
// printed as raw JSON.
type Record struct {
	SourceFile string `json:"sourceFile"`
	Text       string `json:"text"`
}

func decodeRecord(raw json.RawMessage) (Record, bool) {
	var r Record
	if err := json.Unmarshal(raw, &r); err != nil || r.Text == "" {
		return Record{}, false
	}
	return r, true
}

// collectionOutput is the JSON shape of one collection's outcome.
type collectionOutput struct {
	Collection string             `json:"collection"`
	Status     string             `json:"status"`
	Results    *[]json.RawMessage `json:"results,omitempty"`
	Error      string             `json:"error,omitempty"`
	Kind       string             `json:"kind,omitempty"`
}

// WriteSearchResults writes per-collection results to w in the given format.
func WriteSearchResults(w io.Writer, results []worker.CollectionResult, format OutputFormat) error {
	switch format {
	case OutputJSON:
		out := make([]collectionOutput, 0, len(results))
		for _, r := range results {
			if r.Err != nil {
				out = append(out, collectionOutput{
					Collection: r.Collection,
					Status:     models.StatusError,
					Error:      r.Err.Error(),
					Kind:       string(errs.KindOf(r.Err)),
				})
				continue
			}
			records := r.Results
			if records == nil {
				records = []json.RawMessage{}
			}
			out = append(out, collectionOutput{Collection: r.Collection, Status: models.StatusSuccess, Results: &records})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case OutputCompact:
		writeSearchResultsCompact(w, results)
		return nil
	default:
		writeSearchResultsText(w, results)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, results []worker.CollectionResult) {
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "--- %s: %s ---\n%v\n\n", r.Collection, errs.KindOf(r.Err), r.Err)
			continue
		}
		fmt.Fprintf(w, "--- %s (%d results) ---\n", r.Collection, len(r.Results))
		for _, raw := range r.Results {
			rec, ok := decodeRecord(raw)
			if !ok {
				fmt.Fprintf(w, "* %s\n", raw)
				continue
			}
			fmt.Fprintf(w, "* %s\n", rec.Text)
			if rec.SourceFile != "" {
				fmt.Fprintf(w, "  (%s)\n", rec.SourceFile)
			}
		}
		fmt.Fprintln(w)
	}
}

func writeSearchResultsCompact(w io.Writer, results []worker.CollectionResult) {
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "%s\terror\t%s\n", r.Collection, errs.KindOf(r.Err))
			continue
		}
		for i, raw := range r.Results {
			line := string(raw)
			if rec, ok := decodeRecord(raw); ok {
				line = rec.Text
			}
			fmt.Fprintf(w, "%s\t%d\t%s\n", r.Collection, i+1, oneLine(line, 120))
		}
	}
}

func oneLine(s string, maxLen int) string {
	return utils.Truncate(strings.Join(strings.Fields(s), " "), maxLen)
}

// collectionInfoOutput is the JSON shape of one listed collection.
type collectionInfoOutput struct {
	Name   string `json:"name"`
	Key    string `json:"key"`
	Kind   string `json:"kind,omitempty"`
	Dims   int    `json:"dims"`
	Count  int    `json:"count"`
	Labels int    `json:"labels"`
	Bytes  int64  `json:"bytes"`
	Error  string `json:"error,omitempty"`
}

// WriteCollections writes a store listing to w. Compact and text share the table layout.
func WriteCollections(w io.Writer, infos []storage.Info, format OutputFormat) error {
	if format == OutputJSON {
		out := make([]collectionInfoOutput, 0, len(infos))
		for _, in := range infos {
			o := collectionInfoOutput{
				Name: in.Name, Key: in.Key, Dims: in.Dims, Count: in.Count, Labels: in.Labels, Bytes: in.Bytes,
			}
			if in.Kind != 0 {
				o.Kind = in.Kind.String()
			}
			if in.Err != nil {
				o.Error = in.Err.Error()
			}
			out = append(out, o)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(infos) == 0 {
		fmt.Fprintln(w, "No collections found.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tDIMS\tVECTORS\tLABELS\tBYTES\tSTATUS")
	for _, in := range infos {
		status := "ok"
		if in.Err != nil {
			status = in.Err.Error()
		}
		kind := "-"
		if in.Kind != 0 {
			kind = in.Kind.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n", in.Name, kind, in.Dims, in.Count, in.Labels, in.Bytes, status)
	}
	return tw.Flush()
}

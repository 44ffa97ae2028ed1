package exports

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"qualitrack/core/nc"

	"gopkg.in/yaml.v3"
)

const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatYAML = "yaml"
)

func ParseFormat(raw string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(raw)); f {
	case FormatJSON, FormatCSV, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	case "":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

func ContentType(format string) string {
	switch format {
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	default:
		return "text/csv; charset=utf-8"
	}
}

var csvHeader = []string{
	"reg_no", "title", "status", "severity", "classification", "type", "area", "identified_by",
	"occurred_at", "root_cause", "analysis_responsible", "actions_total", "actions_completed",
	"completion_percent", "next_due", "verified_at", "resolved", "final_status", "updated_at",
}

// Encode writes details in the given format. CSV flattens each NC into one
// row; JSON and YAML keep the full detail shape.
func Encode(w io.Writer, format string, details []nc.NCDetail) error {
	if details == nil {
		details = []nc.NCDetail{}
	}
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"items": details})
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(map[string]any{"items": details}); err != nil {
			return err
		}
		return enc.Close()
	case FormatCSV:
		return encodeCSV(w, details)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

func encodeCSV(w io.Writer, details []nc.NCDetail) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, d := range details {
		if err := cw.Write(csvRow(d)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(d nc.NCDetail) []string {
	var rootCause, analyst string
	if d.Analysis != nil {
		rootCause = d.Analysis.RootCause()
		analyst = d.Analysis.Responsible
	}
	var nextDue string
	for _, a := range d.Actions {
		if a.Status != nc.ActionCompleted {
			nextDue = formatDate(a.DueDate)
			break
		}
	}
	var verifiedAt, resolved, final string
	if d.Verification != nil {
		verifiedAt = formatDate(d.Verification.VerifiedAt)
		resolved = strconv.FormatBool(d.Verification.Resolved)
		final = d.Verification.FinalStatus
	}
	return []string{
		d.NC.RegNo, d.NC.Title, d.NC.Status, d.NC.Severity, d.NC.Classification, d.NC.Type,
		d.NC.Area, d.NC.IdentifiedBy, formatDate(d.NC.OccurredAt), rootCause, analyst,
		strconv.Itoa(d.Completion.Total), strconv.Itoa(d.Completion.Completed),
		strconv.Itoa(d.Completion.Percent), nextDue, verifiedAt, resolved, final,
		d.NC.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

// Package cli formats command output for mcqgen.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/mcqgen/internal/ingest"
	"github.com/hyperjump/mcqgen/internal/models"
	"github.com/hyperjump/mcqgen/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json"; anything else is an error.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (use text or json)", s)
}

const separator = "─────────────────────────────────────────────────────────"

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WritePassages writes retrieval results to w in the given format.
func WritePassages(w io.Writer, response *models.RetrieveResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d passages in %dms\n\n", len(response.Passages), response.QueryTime)
	for _, p := range response.Passages {
		fmt.Fprintln(w, separator)
		fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", p.Rank, p.Score)
		if src := models.SourceOf(p.Metadata); src != "" {
			fmt.Fprintf(w, "Source: %s", src)
			if page, ok := p.Metadata[models.MetaPage]; ok {
				fmt.Fprintf(w, " (page %v)", page)
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(p.Content, 300))
	}
	return nil
}

// WriteQuestions writes a question set as a numbered quiz, or as JSON.
func WriteQuestions(w io.Writer, questions []models.Question, format OutputFormat) error {
	if format == OutputJSON {
		if questions == nil {
			questions = []models.Question{}
		}
		return writeJSON(w, questions)
	}
	for i, q := range questions {
		fmt.Fprintf(w, "Q%d. %s\n", i+1, q.Question)
		for _, l := range models.OptionLetters {
			fmt.Fprintf(w, "   %s) %s\n", l, q.Options.Get(l))
		}
		fmt.Fprintf(w, "   Answer: %s\n", q.CorrectAnswer)
		if q.Explanation != "" {
			fmt.Fprintf(w, "   Explanation: %s\n", q.Explanation)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// WriteGenerationResult writes the questions, or the raw model output of a failed parse.
func WriteGenerationResult(w io.Writer, res models.GenerationResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	if res.IsOK() {
		return WriteQuestions(w, res.Questions, format)
	}
	fmt.Fprintf(w, "Could not parse the model output: %s\n\nRaw output:\n%s\n", res.Error, res.Raw)
	return nil
}

// WriteIngestReport summarizes an ingestion.
func WriteIngestReport(w io.Writer, report *models.IngestReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "Session:   %s\n", report.SessionID)
	fmt.Fprintf(w, "Index:     %s (%s)\n", report.IndexDir, report.State)
	fmt.Fprintf(w, "Files:     %d\n", len(report.Files))
	for _, s := range report.Skipped {
		fmt.Fprintf(w, "Skipped:   %s\n", s)
	}
	fmt.Fprintf(w, "Documents: %d\n", report.Documents)
	fmt.Fprintf(w, "Chunks:    %d (%d new)\n", report.Chunks, report.Added)
	return nil
}

// WriteSessions lists sessions.
func WriteSessions(w io.Writer, sessions []*models.Session, format OutputFormat) error {
	if format == OutputJSON {
		if sessions == nil {
			sessions = []*models.Session{}
		}
		return writeJSON(w, sessions)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions.")
		return nil
	}
	for _, s := range sessions {
		updated := "-"
		if !s.UpdatedAt.IsZero() {
			updated = s.UpdatedAt.Local().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%-36s  %s  ingestions=%d chunks=%d generations=%d\n",
			s.ID, updated, s.Ingestions, s.Chunks, s.Generations)
	}
	return nil
}

// WriteStatus describes one session's index.
func WriteStatus(w io.Writer, st *ingest.SessionStatus, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Session:    %s\n", st.ID)
	fmt.Fprintf(w, "State:      %s\n", st.State)
	if st.IndexType != "" {
		fmt.Fprintf(w, "Index type: %s\n", st.IndexType)
	}
	fmt.Fprintf(w, "Vectors:    %d\n", st.Vectors)
	fmt.Fprintf(w, "Ledger:     %d\n", st.Ledger)
	fmt.Fprintf(w, "Index dir:  %s\n", st.IndexDir)
	fmt.Fprintf(w, "Data dir:   %s\n", st.DataDir)
	fmt.Fprintf(w, "Disk usage: %s\n", FormatBytes(st.DiskBytes))
	return nil
}

// FormatBytes renders n with a binary unit.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Package cli formats command output for the astrabot binary.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/astrabot/internal/app"
	"github.com/hyperjump/astrabot/internal/models"
	"github.com/hyperjump/astrabot/pkg/utils"
)

// OutputFormat is the format of command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat returns the format named s.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PassageResult is the output of a direct capability query.
type PassageResult struct {
	Collection string            `json:"collection"`
	Query      string            `json:"query"`
	Passages   []*models.Passage `json:"passages"`
}

// WritePassages writes the passages a capability returned for a query.
func WritePassages(w io.Writer, result PassageResult, format OutputFormat) error {
	if format == OutputJSON {
		if result.Passages == nil {
			result.Passages = []*models.Passage{}
		}
		return writeJSON(w, result)
	}
	fmt.Fprintf(w, "\n%d passage(s) from %s for %q\n\n", len(result.Passages), result.Collection, result.Query)
	for _, p := range result.Passages {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f (Keyword: %.4f, Semantic: %.4f)\n",
			p.Rank, p.Score, p.KeywordScore, p.SemanticScore)
		if p.Unit != nil {
			fmt.Fprintf(w, "ID: %s\n", p.Unit.ID)
			if p.Unit.Title != "" {
				fmt.Fprintf(w, "Source: %s\n", p.Unit.Title)
			}
		}
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(strings.TrimSpace(p.Text()), 400))
	}
	return nil
}

// WriteStatus writes the state of every configured collection.
func WriteStatus(w io.Writer, statuses []app.CollectionStatus, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]any{"collections": statuses})
	}
	for i, st := range statuses {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "# %s\n", st.Collection)
		fmt.Fprintf(w, "dir:               %s\n", st.Dir)
		fmt.Fprintf(w, "present:           %t\n", st.Present)
		if m := st.Manifest; m != nil {
			fmt.Fprintf(w, "units:             %d\n", m.UnitCount)
			fmt.Fprintf(w, "embedder:          %s (%d dims)\n", m.EmbedderModel, m.Dimensions)
			fmt.Fprintf(w, "fingerprint:       %s\n", utils.Truncate(m.Fingerprint, 16))
			fmt.Fprintf(w, "created_at:        %s\n", m.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintf(w, "disk_usage_bytes:  %d\n", st.DiskBytes)
		if st.Stale {
			fmt.Fprintf(w, "stale:             true   # sources changed; run 'astrabot index'\n")
		}
		if st.Error != "" {
			fmt.Fprintf(w, "error:             %s\n", st.Error)
		}
		if st.LoadError != "" {
			fmt.Fprintf(w, "load_error:        %s\n", st.LoadError)
		}
	}
	return nil
}

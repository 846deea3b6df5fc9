// Package cli formats pdfchat API responses for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/pdfchat/internal/models"
	"github.com/hyperjump/pdfchat/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
	// OutputCompact prints one line per item.
	OutputCompact OutputFormat = "compact"
)

const snippetLength = 200

// ParseOutputFormat maps a --output flag value onto an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON, OutputCompact:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteKeywordHits writes keyword search hits to w in the given format.
func WriteKeywordHits(w io.Writer, response *models.KeywordSearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		for _, hit := range response.Hits {
			fmt.Fprintf(w, "%.4f\t%s#%d\t%s\n", hit.Score, hit.DocumentID, hit.ChunkIndex, TruncateWords(oneLine(hit.Snippet), 12))
		}
		return nil
	}
	fmt.Fprintf(w, "\nFound %d results in %dms\n\n", response.Total, response.QueryTime)
	for i, hit := range response.Hits {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", i+1, hit.Score)
		fmt.Fprintf(w, "Document: %s | Chunk: %d\n", hit.DocumentID, hit.ChunkIndex)
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(hit.Snippet, snippetLength))
	}
	return nil
}

// WriteRetrieve writes ranked chunks to w in the given format.
func WriteRetrieve(w io.Writer, response *models.RetrieveResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		for _, r := range response.Results {
			fmt.Fprintf(w, "%.4f\t%d\t%s\n", r.Score, r.Index, TruncateWords(oneLine(r.Text), 12))
		}
		return nil
	}
	fmt.Fprintf(w, "\n%d chunks from %s\n\n", len(response.Results), response.DocumentID)
	for i, r := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f | Chunk: %d (offset %d)\n", i+1, r.Score, r.Index, r.SourceOffset)
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(r.Text, snippetLength))
	}
	return nil
}

// WriteDocuments writes the document catalog to w in the given format.
func WriteDocuments(w io.Writer, docs []*models.DocumentInfo, format OutputFormat) error {
	switch format {
	case OutputJSON:
		if docs == nil {
			docs = []*models.DocumentInfo{}
		}
		return writeJSON(w, map[string]interface{}{"documents": docs})
	case OutputCompact:
		for _, d := range docs {
			fmt.Fprintf(w, "%s\t%d\t%s\n", d.ID, d.ChunksCount, d.Filename)
		}
		return nil
	}
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents indexed.")
		return nil
	}
	for _, d := range docs {
		fmt.Fprintf(w, "%s  %-30s  %4d chunks  (size %d, overlap %d)  %s\n",
			d.ID, d.Filename, d.ChunksCount, d.ChunkSize, d.ChunkOverlap, d.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

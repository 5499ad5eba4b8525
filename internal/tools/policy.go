package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mkrause/deskd/internal/citation"
	"github.com/mkrause/deskd/internal/knowledge"
)

// PolicyInput is the input schema for the search_policies tool.
type PolicyInput struct {
	Query string `json:"query" jsonschema_description:"The policy question to search for"`
}

// PolicySearcher is the slice of the knowledge store the policy tool needs.
type PolicySearcher interface {
	Search(ctx context.Context, query string, topK int) ([]knowledge.Result, error)
}

// Policy handles semantic retrieval over indexed policy documents.
type Policy struct {
	searcher PolicySearcher
	topK     int
	logger   *slog.Logger
}

// NewPolicy creates the policy search handler. topK <= 0 falls back to 4.
func NewPolicy(searcher PolicySearcher, topK int, logger *slog.Logger) (*Policy, error) {
	if searcher == nil {
		return nil, fmt.Errorf("policy searcher is required")
	}
	if topK <= 0 {
		topK = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{searcher: searcher, topK: topK, logger: logger}, nil
}

// Search retrieves the closest policy chunks for the query and formats them
// as numbered excerpts followed by the source marker line. Retrieval errors
// go back to the model as text so the loop can continue.
func (p *Policy) Search(ctx context.Context, input PolicyInput) (string, error) {
	results, err := p.searcher.Search(ctx, input.Query, p.topK)
	if err != nil {
		return fmt.Sprintf("Error querying policies: %v", err), nil
	}

	p.logger.Debug("policy search", "query", input.Query, "results", len(results))

	if len(results) == 0 {
		return fmt.Sprintf(
			"No relevant policy information found in indexed documents about %q.",
			input.Query), nil
	}

	var b strings.Builder
	sources := make([]citation.Source, 0, len(results))
	b.WriteString("Context:\n")
	for i, res := range results {
		content := strings.ReplaceAll(res.Chunk.Text, "\n", " ")
		fmt.Fprintf(&b, "Source %d: %s (Page %d)\nContent: %s\n\n",
			i+1, res.Chunk.Filename, res.Chunk.Page, content)
		sources = append(sources, citation.Source{
			Filename: res.Chunk.Filename,
			Page:     res.Chunk.Page,
		})
	}

	b.WriteString(citation.Encode(sources))
	fmt.Fprintf(&b, "\n%s query=%q retrieved=%d top_source=%s",
		citation.DebugMarker, input.Query, len(results), results[0].Chunk.Filename)
	return b.String(), nil
}

package markov

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/goccy/go-json"
)

// ErrInvalidExport is returned by ImportCounts when the decoded document is
// not a consistent set of counts.
var ErrInvalidExport = errors.New("markov: invalid exported counts")

// ExportedCounts is the serializable representation of a trained table,
// used for JSON-based import and export.
type ExportedCounts struct {
	Name  string         `json:"name,omitempty"`
	Order int            `json:"order"`
	Links []ExportedLink `json:"links"`
}

// ExportedLink is the serializable representation of a single transition.
type ExportedLink struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Frequency int    `json:"frequency"`
}

// Export writes the counts as indented JSON. Links are sorted so that the
// same counts always produce the same document.
func (c *Counts) Export(w io.Writer, name string) error {
	links := c.Links()
	exported := ExportedCounts{
		Name:  name,
		Order: c.order,
		Links: make([]ExportedLink, 0, len(links)),
	}
	for _, link := range links {
		exported.Links = append(exported.Links, ExportedLink{From: link.From, To: link.To, Frequency: link.Frequency})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exported)
}

// ImportCounts decodes a document written by Export. It returns the counts
// and the model name recorded in the document, which may be empty.
func ImportCounts(r io.Reader) (*Counts, string, error) {
	var imported ExportedCounts
	if err := json.NewDecoder(r).Decode(&imported); err != nil {
		return nil, "", fmt.Errorf("failed to decode json counts: %w", err)
	}

	counts, err := NewCounts(imported.Order)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidExport, err)
	}
	for _, link := range imported.Links {
		if err := validateLink(link, imported.Order); err != nil {
			return nil, "", err
		}
		counts.Add(link.From, link.To, link.Frequency)
	}
	return counts, imported.Name, nil
}

func validateLink(link ExportedLink, order int) error {
	if link.Frequency <= 0 {
		return fmt.Errorf("%w: link %q -> %q has frequency %d", ErrInvalidExport, link.From, link.To, link.Frequency)
	}
	if len(link.To) != order {
		return fmt.Errorf("%w: successor %q is not %d characters long", ErrInvalidExport, link.To, order)
	}
	if link.From != StartGram && len(link.From) != order {
		return fmt.Errorf("%w: source %q is not %d characters long", ErrInvalidExport, link.From, order)
	}
	return nil
}

// ExportModel loads the stored counts of model and writes them to w. This is
// useful for backups or for moving a model between databases.
func (s *Store) ExportModel(ctx context.Context, model ModelInfo, w io.Writer) error {
	counts, err := s.LoadCounts(ctx, model)
	if err != nil {
		return fmt.Errorf("could not load counts for export: %w", err)
	}
	if err = counts.Export(w, model.Name); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Model exported",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.Id),
		slog.Int("source_grams_exported", counts.Len()),
	)
	return nil
}

// ImportModel reads an exported document from r and merges it into the
// stored model called name. If name is empty the name recorded in the
// document is used. The model is created if it does not exist; if it does,
// frequencies are added to the existing ones.
func (s *Store) ImportModel(ctx context.Context, name string, r io.Reader) (ModelInfo, error) {
	counts, exportedName, err := ImportCounts(r)
	if err != nil {
		return ModelInfo{}, err
	}
	if name == "" {
		name = exportedName
	}
	if name == "" {
		return ModelInfo{}, fmt.Errorf("%w: no model name given", ErrInvalidExport)
	}

	model, err := s.EnsureModel(ctx, name, counts.Order())
	if err != nil {
		return ModelInfo{}, err
	}
	if err = s.SaveCounts(ctx, model, counts); err != nil {
		return ModelInfo{}, fmt.Errorf("failed to merge imported counts: %w", err)
	}

	s.logger.InfoContext(ctx, "Model imported successfully",
		slog.String("model_name", model.Name),
		slog.Int("target_model_id", model.Id),
		slog.Int("source_grams_merged", counts.Len()),
	)
	return model, nil
}

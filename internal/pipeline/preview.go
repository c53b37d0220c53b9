package pipeline

import (
	"context"

	"github.com/pipi20xx/emby-auto-tags/internal/rules"
	"github.com/pipi20xx/emby-auto-tags/internal/tagging"
)

// PreviewItem is the would-be outcome for one library item.
type PreviewItem struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	OriginalTags []string `json:"originalTags"`
	FinalTags    []string `json:"finalTags"`
	WouldChange  bool     `json:"wouldChange"`
}

// Preview is a dry run of the pipeline for one provider id: the
// resolved metadata, the generated tag set, and the diff against every
// matching library item. Nothing is written.
type Preview struct {
	ProviderID    string        `json:"providerId"`
	Title         string        `json:"title"`
	Kind          rules.Kind    `json:"kind"`
	Mode          tagging.Mode  `json:"mode"`
	Countries     []string      `json:"countries"`
	GenreIDs      []int         `json:"genreIds"`
	Year          *int          `json:"year"`
	GeneratedTags []string      `json:"generatedTags"`
	Items         []PreviewItem `json:"items"`
}

// PreviewByProvider computes the tag set for a provider id and the
// resulting diff for every library item carrying that id.
func (p *Processor) PreviewByProvider(ctx context.Context, providerID string, kind rules.Kind, mode tagging.Mode) (*Preview, error) {
	tags, details, err := p.GenerateTags(ctx, providerID, kind)
	if err != nil {
		return nil, err
	}

	preview := &Preview{
		ProviderID:    providerID,
		Title:         details.Title,
		Kind:          kind,
		Mode:          mode,
		Countries:     details.Countries,
		GenreIDs:      details.GenreIDs,
		Year:          details.Year,
		GeneratedTags: tags,
		Items:         []PreviewItem{},
	}

	items, err := p.server.FindByProviderID(ctx, providerID)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		original := item.CurrentTags()
		diff := tagging.Compute(original, tags, mode)
		preview.Items = append(preview.Items, PreviewItem{
			ID:           item.ID,
			Name:         item.Name,
			OriginalTags: original,
			FinalTags:    diff.Final,
			WouldChange:  diff.Changed(),
		})
	}

	return preview, nil
}

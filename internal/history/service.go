// Package history persists the log of applied tag writes.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Service provides history tracking operations.
type Service struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewService creates a new history service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "history").Logger(),
	}
}

// Record inserts a history entry for an applied tag write.
func (s *Service) Record(ctx context.Context, input CreateInput) (*Entry, error) {
	added, err := marshalTags(input.TagsAdded)
	if err != nil {
		return nil, err
	}
	removed, err := marshalTags(input.TagsRemoved)
	if err != nil {
		return nil, err
	}
	final, err := marshalTags(input.TagsFinal)
	if err != nil {
		return nil, err
	}

	createdAt := time.Now().UTC().Format(time.RFC3339)

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO tag_history (created_at, item_id, item_name, item_kind, provider_id, mode, source, tags_added, tags_removed, tags_final)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		createdAt, input.ItemID, input.ItemName, input.ItemKind, input.ProviderID,
		input.Mode, string(input.Source), added, removed, final,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to record history entry: %w", err)
	}

	s.logger.Debug().
		Int64("id", id).
		Str("item_id", input.ItemID).
		Str("source", string(input.Source)).
		Msg("history entry recorded")

	return &Entry{
		ID:          id,
		CreatedAt:   createdAt,
		ItemID:      input.ItemID,
		ItemName:    input.ItemName,
		ItemKind:    input.ItemKind,
		ProviderID:  input.ProviderID,
		Mode:        input.Mode,
		Source:      input.Source,
		TagsAdded:   emptyIfNil(input.TagsAdded),
		TagsRemoved: emptyIfNil(input.TagsRemoved),
		TagsFinal:   emptyIfNil(input.TagsFinal),
	}, nil
}

// List returns paginated history entries, newest first.
func (s *Service) List(ctx context.Context, opts ListOptions) (*ListResponse, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 50
	}

	where := "1=1"
	args := []any{}
	if opts.Source != "" {
		where += " AND source = ?"
		args = append(args, opts.Source)
	}
	if opts.ItemID != "" {
		where += " AND item_id = ?"
		args = append(args, opts.ItemID)
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM tag_history WHERE " + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count history entries: %w", err)
	}

	listQuery := `
		SELECT id, created_at, item_id, item_name, item_kind, provider_id, mode, source, tags_added, tags_removed, tags_final
		FROM tag_history WHERE ` + where + `
		ORDER BY id DESC LIMIT ? OFFSET ?`
	listArgs := append(args, opts.PageSize, (opts.Page-1)*opts.PageSize)

	rows, err := s.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history entries: %w", err)
	}
	defer rows.Close()

	items := []*Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history rows: %w", err)
	}

	totalPages := int((total + int64(opts.PageSize) - 1) / int64(opts.PageSize))

	return &ListResponse{
		Items:      items,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalCount: total,
		TotalPages: totalPages,
	}, nil
}

// DeleteAll removes all history entries.
func (s *Service) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM tag_history"); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	s.logger.Info().Msg("history cleared")
	return nil
}

// PruneOlderThan deletes entries older than the given number of days and
// returns the number of deleted rows. A non-positive retention disables
// pruning.
func (s *Service) PruneOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, "DELETE FROM tag_history WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.Info().Int64("deleted", deleted).Int("retention_days", days).Msg("pruned old history entries")
	}
	return deleted, nil
}

func scanEntry(rows *sql.Rows) (*Entry, error) {
	var entry Entry
	var source, added, removed, final string
	err := rows.Scan(&entry.ID, &entry.CreatedAt, &entry.ItemID, &entry.ItemName,
		&entry.ItemKind, &entry.ProviderID, &entry.Mode, &source, &added, &removed, &final)
	if err != nil {
		return nil, fmt.Errorf("failed to scan history row: %w", err)
	}
	entry.Source = Source(source)

	if err := json.Unmarshal([]byte(added), &entry.TagsAdded); err != nil {
		entry.TagsAdded = []string{}
	}
	if err := json.Unmarshal([]byte(removed), &entry.TagsRemoved); err != nil {
		entry.TagsRemoved = []string{}
	}
	if err := json.Unmarshal([]byte(final), &entry.TagsFinal); err != nil {
		entry.TagsFinal = []string{}
	}
	return &entry, nil
}

func marshalTags(tags []string) (string, error) {
	data, err := json.Marshal(emptyIfNil(tags))
	if err != nil {
		return "", fmt.Errorf("failed to encode tags: %w", err)
	}
	return string(data), nil
}

func emptyIfNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

package store

import (
	"context"
	"fmt"
	"sort"
)

// SetAgentTags replaces the full tag set for an agent in a single transaction
// (spec.md §8: "an observer never sees a partial replace").
func (s *Store) SetAgentTags(ctx context.Context, agentID string, tags []string) error {
	return s.replaceTags(ctx, EntityAgent, agentID, tags)
}

// SetIntegrationTags replaces the full tag set for an integration.
func (s *Store) SetIntegrationTags(ctx context.Context, integrationID string, tags []string) error {
	return s.replaceTags(ctx, EntityIntegration, integrationID, tags)
}

func (s *Store) replaceTags(ctx context.Context, kind EntityKind, entityID string, tags []string) error {
	dedup := dedupeSorted(tags)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE entity_kind = ? AND entity_id = ?`,
		string(kind), entityID); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO tags (entity_kind, entity_id, tag) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare tag insert: %w", err)
	}
	defer stmt.Close()

	for _, tag := range dedup {
		if _, err := stmt.ExecContext(ctx, string(kind), entityID, tag); err != nil {
			return fmt.Errorf("insert tag %q: %w", tag, err)
		}
	}

	return tx.Commit()
}

// AddAgentTags merges tags into the agent's existing set (idempotent on
// duplicates, per spec.md §8).
func (s *Store) AddAgentTags(ctx context.Context, agentIDs []string, tags []string) error {
	for _, id := range agentIDs {
		if err := s.addTags(ctx, EntityAgent, id, tags); err != nil {
			return err
		}
	}
	return nil
}

// AddIntegrationTags merges tags into the integration's existing set.
func (s *Store) AddIntegrationTags(ctx context.Context, integrationIDs []string, tags []string) error {
	for _, id := range integrationIDs {
		if err := s.addTags(ctx, EntityIntegration, id, tags); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) addTags(ctx context.Context, kind EntityKind, entityID string, tags []string) error {
	stmt, err := s.db.PrepareContext(ctx,
		`INSERT OR IGNORE INTO tags (entity_kind, entity_id, tag) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare tag upsert: %w", err)
	}
	defer stmt.Close()

	for _, tag := range dedupeSorted(tags) {
		if _, err := stmt.ExecContext(ctx, string(kind), entityID, tag); err != nil {
			return fmt.Errorf("insert tag %q: %w", tag, err)
		}
	}
	return nil
}

// RemoveTags deletes specific tags from an entity. Removing an absent tag is
// a no-op (spec.md §8).
func (s *Store) RemoveTags(ctx context.Context, kind EntityKind, entityID string, tags []string) error {
	stmt, err := s.db.PrepareContext(ctx,
		`DELETE FROM tags WHERE entity_kind = ? AND entity_id = ? AND tag = ?`)
	if err != nil {
		return fmt.Errorf("prepare tag delete: %w", err)
	}
	defer stmt.Close()

	for _, tag := range tags {
		if _, err := stmt.ExecContext(ctx, string(kind), entityID, tag); err != nil {
			return fmt.Errorf("delete tag %q: %w", tag, err)
		}
	}
	return nil
}

// GetTags returns the sorted, deduplicated tag set for an entity.
func (s *Store) GetTags(ctx context.Context, kind EntityKind, entityID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tag FROM tags WHERE entity_kind = ? AND entity_id = ? ORDER BY tag ASC`,
		string(kind), entityID)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// RenameTag renames tag `from` to `to` across every entity that carries it.
// Merge-safe: if an entity already has `to`, the duplicate insert is ignored
// so the post-condition set union is preserved (spec.md §8).
func (s *Store) RenameTag(ctx context.Context, from, to string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO tags (entity_kind, entity_id, tag)
		 SELECT entity_kind, entity_id, ? FROM tags WHERE tag = ?`, to, from); err != nil {
		return fmt.Errorf("copy renamed tag: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE tag = ?`, from); err != nil {
		return fmt.Errorf("delete old tag: %w", err)
	}
	return tx.Commit()
}

func dedupeSorted(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

package store

import (
	"context"
	"fmt"

	"github.com/roach88/holopos/internal/ir"
)

// LinkEntries appends a link from l.Base to l.Target under l.Tag and returns
// its id. Both ends must already be committed, otherwise the error wraps
// ErrNotFound.
//
// Links are never deduplicated on base, tag and target: the id includes seq,
// so linking the same pair twice at different seqs yields two links.
func (s *Store) LinkEntries(ctx context.Context, l ir.Link) (string, error) {
	id := ir.LinkID(l.Base, l.Tag, l.Target, l.Seq)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("link entries: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, addr := range []string{l.Base, l.Target} {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE address = ?`, addr).Scan(&n); err != nil {
			return "", fmt.Errorf("link entries: %w", err)
		}
		if n == 0 {
			return "", fmt.Errorf("link entries: entry %s: %w", addr, ErrNotFound)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO links (id, base, tag, target, author, seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, l.Base, l.Tag, l.Target, l.Author, l.Seq)
	if err != nil {
		return "", fmt.Errorf("link entries: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("link entries: commit: %w", err)
	}
	return id, nil
}

// GetLinks returns the links from base under tag in the order they were
// added. Returns an empty slice (not nil) when there are none.
func (s *Store) GetLinks(ctx context.Context, base, tag string) ([]ir.Link, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, base, tag, target, author, seq
		FROM links
		WHERE base = ? AND tag = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, base, tag)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	links := []ir.Link{}
	for rows.Next() {
		var l ir.Link
		if err := rows.Scan(&l.ID, &l.Base, &l.Tag, &l.Target, &l.Author, &l.Seq); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate links: %w", err)
	}
	return links, nil
}

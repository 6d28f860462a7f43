package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/holopos/internal/ir"
)

// CommitEntry stores an entry and returns its content address.
//
// The address is always recomputed from Type and Content; e.Address is
// ignored. Committing content that already exists is a no-op that returns the
// same address, and the row keeps the author and seq of its first commit.
func (s *Store) CommitEntry(ctx context.Context, e ir.Entry) (string, error) {
	addr, err := ir.EntryAddress(e.Type, e.Content)
	if err != nil {
		return "", fmt.Errorf("commit entry: %w", err)
	}

	contentJSON, err := marshalValue(e.Content)
	if err != nil {
		return "", fmt.Errorf("commit entry: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entries (address, entry_type, content, author, seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(address) DO NOTHING
	`, addr, e.Type, contentJSON, e.Author, e.Seq)
	if err != nil {
		return "", fmt.Errorf("commit entry: %w", err)
	}

	return addr, nil
}

// GetEntry returns the entry at address, or ErrNotFound.
func (s *Store) GetEntry(ctx context.Context, address string) (ir.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT address, entry_type, content, author, seq
		FROM entries
		WHERE address = ?
	`, address)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Entry{}, fmt.Errorf("entry %s: %w", address, ErrNotFound)
	}
	return e, err
}

// HasEntry reports whether an entry exists at address.
func (s *Store) HasEntry(ctx context.Context, address string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE address = ?`, address).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("has entry: %w", err)
	}
	return n > 0, nil
}

// QueryEntries returns all entries of a type in commit order.
// Returns an empty slice (not nil) when there are none.
func (s *Store) QueryEntries(ctx context.Context, entryType string) ([]ir.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, entry_type, content, author, seq
		FROM entries
		WHERE entry_type = ?
		ORDER BY seq ASC, address COLLATE BINARY ASC
	`, entryType)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []ir.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (ir.Entry, error) {
	var (
		e           ir.Entry
		contentJSON string
	)
	if err := row.Scan(&e.Address, &e.Type, &contentJSON, &e.Author, &e.Seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ir.Entry{}, err
		}
		return ir.Entry{}, fmt.Errorf("scan entry: %w", err)
	}

	content, err := unmarshalObject(contentJSON)
	if err != nil {
		return ir.Entry{}, fmt.Errorf("entry %s: %w", e.Address, err)
	}
	e.Content = content
	return e, nil
}

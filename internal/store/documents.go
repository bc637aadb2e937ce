package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dwizi/trapper/internal/persist"
)

func (s *Store) ReadDocument(ctx context.Context, name string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE name = ?`, strings.TrimSpace(name)).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", name, persist.ErrDocumentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", name, err)
	}
	return body, nil
}

// WriteDocument replaces the document in a single upsert statement.
func (s *Store) WriteDocument(ctx context.Context, name string, data []byte) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("document name is required")
	}
	if data == nil {
		data = []byte{}
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO documents (name, body, updated_at_unix) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at_unix = excluded.updated_at_unix`,
		name,
		data,
		time.Now().UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("write document %s: %w", name, err)
	}
	return nil
}

func (s *Store) ListDocuments(ctx context.Context) ([]persist.DocumentInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, length(body), updated_at_unix FROM documents ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var documents []persist.DocumentInfo
	for rows.Next() {
		var (
			info      persist.DocumentInfo
			updatedAt int64
		)
		if err := rows.Scan(&info.Name, &info.Size, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		info.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		documents = append(documents, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return documents, nil
}

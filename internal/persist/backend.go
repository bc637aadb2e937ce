// Package persist flattens the chat registry into independent JSON documents
// and rebuilds it from them.
package persist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var ErrDocumentNotFound = errors.New("document not found")

// Backend stores named documents. Each write replaces the whole document.
type Backend interface {
	ReadDocument(ctx context.Context, name string) ([]byte, error)
	WriteDocument(ctx context.Context, name string, data []byte) error
}

// Store is a Backend that holds resources: a database handle or a directory.
type Store interface {
	Backend
	Ping(ctx context.Context) error
	Close() error
}

// DocumentInfo describes one stored document. UpdatedAt is zero when the
// backend does not track it.
type DocumentInfo struct {
	Name      string    `json:"name"`
	Size      int       `json:"size"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Lister is implemented by stores that can enumerate their documents.
type Lister interface {
	ListDocuments(ctx context.Context) ([]DocumentInfo, error)
}

// DirBackend keeps one <name>.json file per document under Root.
type DirBackend struct {
	Root string
}

func NewDirBackend(root string) (*DirBackend, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("snapshot directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &DirBackend{Root: root}, nil
}

func (b *DirBackend) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid document name %q", name)
	}
	return filepath.Join(b.Root, name+".json"), nil
}

func (b *DirBackend) ReadDocument(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := b.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrDocumentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// WriteDocument writes to a temp file in the same directory and renames it
// over the old document, so readers see either the old or the new content.
func (b *DirBackend) WriteDocument(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := b.path(name)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(b.Root, "."+name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

// Ping checks that Root is still a directory.
func (b *DirBackend) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(b.Root)
	if err != nil {
		return fmt.Errorf("stat snapshot directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("snapshot path %s is not a directory", b.Root)
	}
	return nil
}

func (b *DirBackend) Close() error {
	return nil
}

// ListDocuments reports every <name>.json file under Root, skipping temp files
// left by interrupted writes.
func (b *DirBackend) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(b.Root)
	if err != nil {
		return nil, fmt.Errorf("list snapshot directory: %w", err)
	}
	var documents []DocumentInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
		documents = append(documents, DocumentInfo{
			Name:      strings.TrimSuffix(name, ".json"),
			Size:      int(info.Size()),
			UpdatedAt: info.ModTime().UTC(),
		})
	}
	sort.Slice(documents, func(i, j int) bool { return documents[i].Name < documents[j].Name })
	return documents, nil
}

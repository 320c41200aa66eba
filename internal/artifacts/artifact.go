// Package artifacts manages the short-lived files produced for a single delivery:
// rendered charts and exported CSV buckets.
package artifacts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Kind selects how an artifact is uploaded.
type Kind string

const (
	KindPhoto    Kind = "photo"
	KindDocument Kind = "document"
)

// Artifact is a generated file waiting to be delivered.
// Path is unique per request; FileName is what the user sees.
type Artifact struct {
	Kind     Kind
	Path     string
	FileName string
	Caption  string
}

// Remove deletes the backing file. A file that is already gone is not an error.
func (a Artifact) Remove() error {
	if a.Path == "" {
		return nil
	}

	if err := os.Remove(a.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove artifact %s: %w", a.Path, err)
	}

	return nil
}

// RemoveAll deletes every artifact file and returns the first error.
func RemoveAll(items []Artifact) error {
	var firstErr error
	for _, item := range items {
		if err := item.Remove(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

const defaultDirName = "stockbot-artifacts"

// Workspace is the directory every artifact is created in.
type Workspace struct {
	dir string
}

// NewWorkspace prepares dir for artifact files. An empty dir selects a folder under the system temp dir.
func NewWorkspace(dir string) (*Workspace, error) {
	if strings.TrimSpace(dir) == "" {
		dir = filepath.Join(os.TempDir(), defaultDirName)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create artifacts dir %s: %w", dir, err)
	}

	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// Create opens a new file named <prefix>-<uuid><ext>. The file is created exclusively,
// so concurrent requests never share a path.
func (w *Workspace) Create(prefix, ext string) (*os.File, error) {
	prefix = sanitize(prefix)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	name := fmt.Sprintf("%s-%s%s", prefix, uuid.NewString(), ext)
	f, err := os.OpenFile(filepath.Join(w.dir, name), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create artifact file: %w", err)
	}

	return f, nil
}

func sanitize(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "artifact"
	}

	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, prefix)
}

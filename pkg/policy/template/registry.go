package template

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"
)

// MaxTemplateSize bounds a single template file.
const MaxTemplateSize = 1 << 20 // 1 MiB

// Registry holds the loaded templates for a directory and supports
// atomic reloads. Safe for concurrent use.
type Registry struct {
	dir    string
	logger *slog.Logger

	mu        sync.RWMutex
	templates map[string]*Template
}

// NewRegistry creates a registry over a template directory and loads
// it. An empty or missing directory yields an empty registry only if
// dir itself exists.
func NewRegistry(dir string) (*Registry, error) {
	r := &Registry{
		dir:       dir,
		logger:    slog.Default().With("component", "template_registry"),
		templates: make(map[string]*Template),
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Get returns the named template.
func (r *Registry) Get(name string) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.templates[name]
	if !ok {
		return nil, &NotFoundError{Template: name}
	}
	return t, nil
}

// List returns all templates ordered by name.
func (r *Registry) List() []*Template {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Template, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of loaded templates.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.templates)
}

// Reload re-reads the template directory. The swap is atomic: on any
// load error the previous template set stays in place.
func (r *Registry) Reload() error {
	loaded := make(map[string]*Template)

	err := filepath.WalkDir(r.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		base := filepath.Base(path)
		if strings.HasPrefix(base, ".") && path != r.dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !isTemplateFile(path) {
			return nil
		}

		t, err := loadFile(path)
		if err != nil {
			return err
		}
		if prev, dup := loaded[t.Name]; dup {
			return &LoadError{Path: path,
				Message: fmt.Sprintf("duplicate template name %q (already defined elsewhere as %q)", t.Name, prev.Name)}
		}
		loaded[t.Name] = t
		return nil
	})
	if err != nil {
		return fmt.Errorf("loading template directory %s: %w", r.dir, err)
	}

	r.mu.Lock()
	r.templates = loaded
	r.mu.Unlock()

	r.logger.Info("templates loaded", "dir", r.dir, "count", len(loaded))
	return nil
}

// loadFile reads and parses one template file.
func loadFile(path string) (*Template, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: "failed to access file", Cause: err}
	}
	if !info.Mode().IsRegular() {
		return nil, &LoadError{Path: path, Message: "not a regular file"}
	}
	if info.Size() > MaxTemplateSize {
		return nil, &LoadError{Path: path,
			Message: fmt.Sprintf("file size %d bytes exceeds maximum %d bytes", info.Size(), MaxTemplateSize)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: "failed to read file", Cause: err}
	}
	if !utf8.Valid(data) {
		return nil, &LoadError{Path: path, Message: "file contains invalid UTF-8 encoding"}
	}

	t, err := Parse(data)
	if err != nil {
		return nil, &LoadError{Path: path, Message: "failed to parse template", Cause: err}
	}
	return t, nil
}

func isTemplateFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

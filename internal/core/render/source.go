package render

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const fileExt = ".html"

// Source resolves template names to template text. Inline templates
// registered by name take precedence over files under root.
type Source struct {
	mu     sync.RWMutex
	inline map[string]string
	root   string
}

// NewSource creates a Source. An empty root disables file lookup.
func NewSource(root string) *Source {
	return &Source{inline: make(map[string]string), root: root}
}

// Register stores an inline template under name, replacing any previous one.
func (s *Source) Register(name, text string) {
	s.mu.Lock()
	s.inline[name] = text
	s.mu.Unlock()
}

// Lookup returns the template text for name.
func (s *Source) Lookup(name string) (string, error) {
	s.mu.RLock()
	text, ok := s.inline[name]
	s.mu.RUnlock()
	if ok {
		return text, nil
	}
	if s.root == "" {
		return "", fmt.Errorf("%w: %s", ErrNoTemplate, name)
	}

	p := name
	if !strings.HasSuffix(p, fileExt) {
		p += fileExt
	}
	p = filepath.Join(s.root, filepath.Clean("/"+p))
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNoTemplate, name)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

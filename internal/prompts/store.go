package prompts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/esche888/appcollab-sub000/internal/models"
	"github.com/esche888/appcollab-sub000/internal/utils"
)

// ErrUnknownPromptType is returned for prompt types outside the closed set.
var ErrUnknownPromptType = errors.New("unknown prompt type")

// Source tells where a template's text came from
type Source string

const (
	SourceFile    Source = "file"
	SourceDefault Source = "default"
)

// Template is raw prompt text with {name} placeholders.
type Template struct {
	Type   models.PromptType
	Text   string
	Source Source
}

// Render interpolates vars into the template text.
func (t Template) Render(vars map[string]string) string {
	return Interpolate(t.Text, vars)
}

// Store returns prompt templates by type.
type Store interface {
	Load(pt models.PromptType) (Template, error)
}

// FileStore reads <dir>/<prompt-type>.txt on every Load, so edits take
// effect on the next request without a restart.
type FileStore struct {
	dir    string
	logger *utils.Logger
}

// NewFileStore creates a store rooted at dir
func NewFileStore(dir string) *FileStore {
	return &FileStore{
		dir:    dir,
		logger: utils.NewLogger("prompts"),
	}
}

// Dir returns the directory templates are read from
func (s *FileStore) Dir() string {
	return s.dir
}

// Load returns the current template for pt. When the file cannot be read
// the built-in default is returned instead and the failure is logged.
func (s *FileStore) Load(pt models.PromptType) (Template, error) {
	fallback, ok := DefaultTemplate(pt)
	if !ok {
		return Template{}, fmt.Errorf("%w: %q", ErrUnknownPromptType, pt)
	}

	path := filepath.Join(s.dir, pt.ResourceName())
	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("Prompt template unreadable, using built-in default",
			"prompt_type", pt, "path", path, "error", err)
		return Template{Type: pt, Text: fallback, Source: SourceDefault}, nil
	}

	return Template{Type: pt, Text: string(data), Source: SourceFile}, nil
}

// DefaultStore serves only the built-in templates.
type DefaultStore struct{}

// Load returns the built-in template for pt
func (DefaultStore) Load(pt models.PromptType) (Template, error) {
	text, ok := DefaultTemplate(pt)
	if !ok {
		return Template{}, fmt.Errorf("%w: %q", ErrUnknownPromptType, pt)
	}
	return Template{Type: pt, Text: text, Source: SourceDefault}, nil
}

package markdown

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	fence        = "---\n"
	closingFence = "\n---\n"
)

var ErrUnterminatedFrontmatter = errors.New("frontmatter is not terminated")

// Note is a markdown document with an optional YAML frontmatter header.
type Note struct {
	Meta map[string]any
	Body string
}

// Parse splits content into its frontmatter and body. Content without a
// leading fence is all body.
func Parse(content string) (Note, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(content, fence) {
		return Note{Meta: map[string]any{}, Body: content}, nil
	}
	rest := content[len(fence):]
	idx := strings.Index(rest, closingFence)
	if idx < 0 {
		return Note{}, ErrUnterminatedFrontmatter
	}
	meta := map[string]any{}
	if err := yaml.Unmarshal([]byte(rest[:idx]), &meta); err != nil {
		return Note{}, fmt.Errorf("decode frontmatter: %w", err)
	}
	return Note{Meta: meta, Body: strings.TrimPrefix(rest[idx+len(closingFence):], "\n")}, nil
}

// Render writes the note back out. A note without metadata has no header.
func (n Note) Render() (string, error) {
	if len(n.Meta) == 0 {
		return n.Body, nil
	}
	raw, err := yaml.Marshal(n.Meta)
	if err != nil {
		return "", fmt.Errorf("encode frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(fence)
	buf.Write(raw)
	buf.WriteString(fence)
	buf.WriteString("\n")
	buf.WriteString(n.Body)
	return buf.String(), nil
}

// String returns the meta value for key when it is a string.
func (n Note) String(key string) string {
	v, _ := n.Meta[key].(string)
	return v
}

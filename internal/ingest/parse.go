// Package ingest imports Markdown files as data items. Each file's YAML
// frontmatter supplies the title, type, description and tags; the body
// becomes the item's content.
package ingest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/datalib/internal/models"
)

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

// reserved frontmatter keys map to item columns; the rest go to metadata.
var reserved = map[string]bool{"title": true, "type": true, "description": true, "tags": true}

// Document is a parsed Markdown file.
type Document struct {
	Title       string
	Type        models.DataType
	Description string
	Tags        []string
	Content     string
	// Extra holds the frontmatter keys that have no column of their own.
	Extra map[string]any
}

// Parse splits data into frontmatter and body. The title falls back to the
// first H1 heading and the type to context. Invalid YAML is treated as
// part of the body.
func Parse(data []byte) (*Document, error) {
	fm, body := splitFrontmatter(data)

	doc := &Document{
		Title:   stringField(fm, "title"),
		Type:    models.TypeContext,
		Content: body,
		Extra:   map[string]any{},
	}
	if doc.Title == "" {
		doc.Title = firstHeading(body)
	}
	if raw := stringField(fm, "type"); raw != "" {
		t, err := models.ParseDataType(strings.ToLower(raw))
		if err != nil {
			return nil, fmt.Errorf("ingest: %w", err)
		}
		doc.Type = t
	}
	doc.Description = stringField(fm, "description")
	doc.Tags = collectTags(body, fm)
	for k, v := range fm {
		if !reserved[k] {
			doc.Extra[k] = v
		}
	}
	return doc, nil
}

// splitFrontmatter separates YAML frontmatter (between leading ---
// delimiters) from the body. Without valid frontmatter the whole input is
// body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}
	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}
	block := rest[:idx]
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return nil, string(data)
	}
	return fm, body
}

func stringField(fm map[string]any, key string) string {
	if s, ok := fm[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// collectTags merges frontmatter tags (list or comma-separated string)
// with inline #tags, keeping first-seen order.
func collectTags(body string, fm map[string]any) []string {
	seen := make(map[string]struct{})
	out := []string{}
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	switch v := fm["tags"].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			add(s)
		}
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

// Checksum returns the hex-encoded SHA-256 digest of data.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

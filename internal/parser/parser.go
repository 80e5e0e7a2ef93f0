// Package parser reads the Markdown documentation attached to dataframes,
// charts and notes.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	mdLinkRe = regexp.MustCompile(`\[[^\]]*\]\(([^)\s]+)(?:\s+"[^"]*")?\)`)
	tagRe    = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
)

// Doc is a parsed documentation page.
type Doc struct {
	Frontmatter map[string]interface{}
	Body        string
	Title       string
	// Summary is the first paragraph of prose after any headings.
	Summary string
	// Links are relative link targets, e.g. other docs pages.
	Links []string
	Tags  []string
}

// Parse splits YAML front matter from the body and extracts the title,
// summary, relative links and tags.
func Parse(data []byte) (*Doc, error) {
	fm, body := splitFrontmatter(data)
	return &Doc{
		Frontmatter: fm,
		Body:        body,
		Title:       deriveTitle(fm, body),
		Summary:     firstParagraph(body),
		Links:       extractLinks(body),
		Tags:        extractTags(body, fm),
	}, nil
}

// splitFrontmatter separates YAML front matter (between leading ---
// delimiters) from the body. Missing or invalid front matter leaves the
// whole content as body.
func splitFrontmatter(data []byte) (map[string]interface{}, string) {
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

	var fm map[string]interface{}
	if err := yaml.Unmarshal(rest[:idx], &fm); err != nil {
		return nil, string(data)
	}
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")
	return fm, body
}

// extractLinks returns deduplicated relative link targets. Absolute URLs and
// in-page anchors are skipped; fragments are dropped.
func extractLinks(body string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range mdLinkRe.FindAllStringSubmatch(body, -1) {
		target := m[1]
		if strings.Contains(target, "://") || strings.HasPrefix(target, "mailto:") || strings.HasPrefix(target, "#") {
			continue
		}
		if i := strings.IndexByte(target, '#'); i >= 0 {
			target = target[:i]
		}
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// extractTags collects tags from the front matter ("tags" or "topic_tags")
// followed by inline #tags.
func extractTags(body string, fm map[string]interface{}) []string {
	seen := make(map[string]struct{})
	var out []string
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

	for _, key := range []string{"tags", "topic_tags"} {
		switch v := fm[key].(type) {
		case []interface{}:
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
	}

	inFence := false
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if inFence || isHeading(line) {
			continue
		}
		for _, m := range tagRe.FindAllStringSubmatch(line, -1) {
			add(m[1])
		}
	}
	return out
}

// deriveTitle returns the front matter title, otherwise the first H1.
func deriveTitle(fm map[string]interface{}, body string) string {
	if s, ok := fm["title"].(string); ok && s != "" {
		return s
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

func firstParagraph(body string) string {
	var para []string
	inFence := false
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		switch {
		case inFence:
		case trimmed == "":
			if len(para) > 0 {
				return strings.Join(para, " ")
			}
		case isHeading(trimmed):
			if len(para) > 0 {
				return strings.Join(para, " ")
			}
		default:
			para = append(para, trimmed)
		}
	}
	return strings.Join(para, " ")
}

func isHeading(line string) bool {
	trimmed := strings.TrimLeft(line, " ")
	n := 0
	for n < len(trimmed) && trimmed[n] == '#' {
		n++
	}
	return n > 0 && n <= 6 && (n == len(trimmed) || trimmed[n] == ' ')
}

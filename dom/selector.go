package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// QuerySelectorAll returns the elements under root matching selector, in
// document order. Supported:
//   - tag: "article", "h1"
//   - .class: ".doc-contents"
//   - #id: "#install"
//   - [attr], [attr=val], [attr="quoted val"]
//   - compounds such as "input[name=__preview]" or "div.doc"
//   - descendant combinator (whitespace): `article [id="install"]`
//
// The root itself is never matched; matching starts at its descendants.
func QuerySelectorAll(root *html.Node, selector string) []*html.Node {
	parts := splitSelector(selector)
	if len(parts) == 0 || root == nil {
		return nil
	}

	scopes := []*html.Node{root}
	for _, part := range parts {
		sel := parseSimpleSelector(part)
		seen := make(map[*html.Node]bool)
		var next []*html.Node
		for _, scope := range scopes {
			for _, n := range matchDescendants(scope, sel) {
				if !seen[n] {
					seen[n] = true
					next = append(next, n)
				}
			}
		}
		scopes = next
	}
	return scopes
}

// QuerySelector returns the first match, or nil.
func QuerySelector(root *html.Node, selector string) *html.Node {
	if all := QuerySelectorAll(root, selector); len(all) > 0 {
		return all[0]
	}
	return nil
}

// Matches reports whether n matches a single compound selector.
func Matches(n *html.Node, selector string) bool {
	return matchesSelector(n, parseSimpleSelector(selector))
}

// splitSelector splits on whitespace outside of brackets and quotes.
func splitSelector(sel string) []string {
	var parts []string
	var cur strings.Builder
	var quote byte
	depth := 0

	flush := func() {
		if cur.Len() > 0 {
			parts = append(parts, cur.String())
			cur.Reset()
		}
	}

	for i := 0; i < len(sel); i++ {
		ch := sel[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == '[':
			depth++
		case ch == ']':
			if depth > 0 {
				depth--
			}
		case depth == 0 && (ch == ' ' || ch == '\t' || ch == '\n'):
			flush()
			continue
		}
		cur.WriteByte(ch)
	}
	flush()
	return parts
}

func matchDescendants(root *html.Node, s simpleSelector) []*html.Node {
	var results []*html.Node
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		Walk(c, func(n *html.Node) bool {
			if matchesSelector(n, s) {
				results = append(results, n)
			}
			return true
		})
	}
	return results
}

type simpleSelector struct {
	tag     string
	id      string
	class   string
	attrKey string
	attrVal string
	hasVal  bool
}

// parseSimpleSelector parses "tag.class", "#id", "tag[attr=val]", etc.
func parseSimpleSelector(sel string) simpleSelector {
	var s simpleSelector

	if idx := strings.IndexByte(sel, '['); idx >= 0 {
		attrPart := strings.TrimSuffix(sel[idx+1:], "]")
		sel = sel[:idx]
		if eq := strings.IndexByte(attrPart, '='); eq >= 0 {
			s.attrKey = attrPart[:eq]
			s.attrVal = unquote(attrPart[eq+1:])
			s.hasVal = true
		} else {
			s.attrKey = attrPart
		}
	}

	if idx := strings.IndexByte(sel, '#'); idx >= 0 {
		s.id = sel[idx+1:]
		sel = sel[:idx]
	}

	if idx := strings.IndexByte(sel, '.'); idx >= 0 {
		s.class = sel[idx+1:]
		sel = sel[:idx]
	}

	s.tag = strings.ToLower(sel)
	return s
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

func matchesSelector(n *html.Node, s simpleSelector) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if s.tag != "" && n.Data != s.tag {
		return false
	}
	if s.id != "" && GetAttr(n, "id") != s.id {
		return false
	}
	if s.class != "" && !HasClass(n, s.class) {
		return false
	}
	if s.attrKey != "" {
		val, ok := Attr(n, s.attrKey)
		if !ok {
			return false
		}
		if s.hasVal && val != s.attrVal {
			return false
		}
	}
	return true
}

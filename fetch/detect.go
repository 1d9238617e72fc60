package fetch

import (
	"bytes"
	"io"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// spaShells are markers of a page whose content only exists after its
// scripts run.
var spaShells = []string{
	`<div id="root"></div>`,
	`<div id="app"></div>`,
	`<div id="__next"></div>`,
	"<noscript>you need to enable javascript",
	"<noscript>enable javascript",
}

// IsSufficient reports whether body carries enough visible text that a
// browser render is not needed: at least 256 bytes, at least 200
// non-space text characters, at least 10% text, no SPA shell marker.
func IsSufficient(body []byte) bool {
	if len(body) < 256 {
		return false
	}

	text, markup := textMarkupRatio(body)
	if text+markup == 0 {
		return false
	}
	if float64(text)/float64(text+markup) < 0.10 || text < 200 {
		return false
	}

	lower := bytes.ToLower(body)
	for _, marker := range spaShells {
		if bytes.Contains(lower, []byte(marker)) {
			return false
		}
	}
	return true
}

// textMarkupRatio counts non-space text bytes outside script and style,
// and every other byte as markup.
func textMarkupRatio(body []byte) (text, markup int) {
	z := html.NewTokenizer(bytes.NewReader(body))
	skip := 0
	for {
		tt := z.Next()
		raw := len(z.Raw())
		switch tt {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return text, markup
			}
			return text, markup + raw
		case html.StartTagToken:
			if name, _ := z.TagName(); isRawText(name) {
				skip++
			}
			markup += raw
		case html.EndTagToken:
			if name, _ := z.TagName(); isRawText(name) && skip > 0 {
				skip--
			}
			markup += raw
		case html.TextToken:
			if skip > 0 {
				markup += raw
				continue
			}
			text += len(strings.Map(dropSpace, string(z.Text())))
		default:
			markup += raw
		}
	}
}

func isRawText(name []byte) bool {
	s := string(name)
	return s == "script" || s == "style"
}

func dropSpace(r rune) rune {
	if unicode.IsSpace(r) {
		return -1
	}
	return r
}

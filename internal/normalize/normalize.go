// Package normalize converts rich-text lesson content into plain text
// suitable for chunking and embedding.
package normalize

import (
	"strings"

	"golang.org/x/net/html"
)

// Text strips markup from raw lesson content and returns plain text with
// entities decoded, whitespace runs collapsed to single spaces, and
// leading/trailing whitespace trimmed.
//
// The input is parsed with a real HTML tokenizer rather than a tag-stripping
// regex, so malformed markup degrades to whatever text the tokenizer can
// recover instead of leaking tag fragments. Text inside <script> and <style>
// elements is discarded. The function is deterministic and never fails;
// non-HTML input passes through as-is (modulo whitespace collapsing).
func Text(raw string) string {
	if raw == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(raw))

	z := html.NewTokenizer(strings.NewReader(raw))
	skipDepth := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or malformed input; either way we keep what we have.
			return collapse(b.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			if isSkipped(string(name)) {
				skipDepth++
			}
			// Block-level boundaries become whitespace so adjacent
			// paragraphs do not fuse into one word.
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := z.TagName()
			if isSkipped(string(name)) && skipDepth > 0 {
				skipDepth--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(z.Text())
			}
		}
	}
}

// isSkipped reports whether an element's text content should be discarded.
func isSkipped(tag string) bool {
	return tag == "script" || tag == "style"
}

// collapse normalizes whitespace. Entity decoding is already handled by the
// tokenizer's text tokens.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

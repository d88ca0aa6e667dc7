package probe

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/lcalzada-xor/cgiscope/pkg/models"
)

// DetectContext tokenizes body and reports where the first occurrence of
// marker sits: inside a script, a stylesheet, a comment, an attribute value,
// a tag name, an RCDATA element (title, textarea) or plain HTML text.
func DetectContext(body, marker string) models.ReflectionContext {
	if !strings.Contains(body, marker) {
		return models.ContextUnknown
	}

	z := html.NewTokenizer(strings.NewReader(body))
	var raw string // name of the enclosing raw text element, if any
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// The marker exists but the tokenizer could not place it, which
			// happens when it breaks the markup itself.
			return models.ContextTagName

		case html.CommentToken:
			if strings.Contains(string(z.Text()), marker) {
				return models.ContextComment
			}

		case html.TextToken:
			if !strings.Contains(string(z.Text()), marker) {
				continue
			}
			switch raw {
			case "script":
				return models.ContextJavaScript
			case "style":
				return models.ContextCSS
			case "title", "textarea":
				return models.ContextRCDATA
			}
			return models.ContextHTML

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if strings.Contains(tok.Data, marker) {
				return models.ContextTagName
			}
			for _, a := range tok.Attr {
				if strings.Contains(a.Key, marker) {
					return models.ContextTagName
				}
				if strings.Contains(a.Val, marker) {
					if strings.HasPrefix(strings.ToLower(a.Key), "on") {
						return models.ContextJavaScript
					}
					return models.ContextAttribute
				}
			}
			if tt == html.StartTagToken {
				switch tok.Data {
				case "script", "style", "title", "textarea":
					raw = tok.Data
				}
			}

		case html.EndTagToken:
			raw = ""
		}
	}
}

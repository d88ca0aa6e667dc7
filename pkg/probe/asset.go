package probe

import (
	"fmt"
	"path"
	"strings"

	"github.com/dop251/goja/parser"
	"golang.org/x/net/html"
)

// AssetKind classifies a static asset by its path.
type AssetKind string

const (
	AssetHTML       AssetKind = "html"
	AssetJavaScript AssetKind = "javascript"
	AssetOther      AssetKind = "other"
)

// KindOf guesses the kind of an asset from its URL path. Directory paths are
// served as their index page.
func KindOf(p string) AssetKind {
	if p == "" || strings.HasSuffix(p, "/") {
		return AssetHTML
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".html", ".htm":
		return AssetHTML
	case ".js", ".mjs":
		return AssetJavaScript
	}
	return AssetOther
}

// ParseJavaScript checks that src is syntactically valid JavaScript.
func ParseJavaScript(name, src string) error {
	if _, err := parser.ParseFile(nil, name, src, 0); err != nil {
		return fmt.Errorf("javascript syntax: %w", err)
	}
	return nil
}

// CheckHTMLDocument requires an explicit <html> element or doctype. html.Parse
// alone accepts anything, so the token stream is inspected instead.
func CheckHTMLDocument(src string) error {
	z := html.NewTokenizer(strings.NewReader(src))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return fmt.Errorf("no <html> root element")
		case html.DoctypeToken:
			return nil
		case html.StartTagToken:
			name, _ := z.TagName()
			if string(name) == "html" {
				return nil
			}
		}
	}
}

// CheckAsset returns the integrity problems of a fetched static asset.
func CheckAsset(p string, contentType string, body []byte) []string {
	var problems []string
	if len(body) == 0 {
		return []string{"empty body"}
	}
	if contentType == "" {
		problems = append(problems, "missing Content-Type")
	}

	switch KindOf(p) {
	case AssetJavaScript:
		if err := ParseJavaScript(p, string(body)); err != nil {
			problems = append(problems, err.Error())
		}
	case AssetHTML:
		if err := CheckHTMLDocument(string(body)); err != nil {
			problems = append(problems, err.Error())
		}
		if contentType != "" && !IsHTML(contentType) {
			problems = append(problems, fmt.Sprintf("unexpected Content-Type %q for an HTML page", contentType))
		}
	}
	return problems
}

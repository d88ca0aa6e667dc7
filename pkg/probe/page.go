package probe

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// RequiredSections are the element ids every introspection page carries.
var RequiredSections = []string{"runtime", "request", "environment", "dynamic"}

var serverTime = regexp.MustCompile(`Server Time:\s*(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})`)

// PageInfo is what the prober reads back from a rendered page.
type PageInfo struct {
	Sections     map[string]bool
	ServerTime   string
	RandomNumber int
	Timestamp    int64
	Variables    int
	Scripts      int
	EventHandler []string // on* attributes found, as "tag.attr"
	HomeLink     bool
}

// ParsePage walks the document tree of an introspection page.
func ParsePage(body string) (PageInfo, error) {
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return PageInfo{}, fmt.Errorf("parse page: %w", err)
	}

	info := PageInfo{Sections: make(map[string]bool)}
	byID := make(map[string]*html.Node)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.Data == "script" {
				info.Scripts++
			}
			for _, a := range n.Attr {
				switch {
				case a.Key == "id":
					byID[a.Val] = n
				case strings.HasPrefix(a.Key, "on"):
					info.EventHandler = append(info.EventHandler, n.Data+"."+a.Key)
				case n.Data == "a" && a.Key == "href" && a.Val == "/":
					info.HomeLink = true
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	for _, id := range RequiredSections {
		info.Sections[id] = byID[id] != nil
	}
	if n := byID["runtime"]; n != nil {
		if m := serverTime.FindStringSubmatch(textContent(n)); m != nil {
			info.ServerTime = m[1]
		}
	}
	if n := byID["random-number"]; n != nil {
		info.RandomNumber, _ = strconv.Atoi(strings.TrimSpace(textContent(n)))
	}
	if n := byID["timestamp"]; n != nil {
		info.Timestamp, _ = strconv.ParseInt(strings.TrimSpace(textContent(n)), 10, 64)
	}
	if n := byID["environment"]; n != nil {
		info.Variables = countClass(n, "cgi-var")
	}
	return info, nil
}

// CheckPage returns the structural problems of an introspection page.
func CheckPage(body string) (PageInfo, []string) {
	info, err := ParsePage(body)
	if err != nil {
		return info, []string{err.Error()}
	}

	var problems []string
	for _, id := range RequiredSections {
		if !info.Sections[id] {
			problems = append(problems, fmt.Sprintf("missing section #%s", id))
		}
	}
	if info.RandomNumber < 1 || info.RandomNumber > 1000 {
		problems = append(problems, fmt.Sprintf("random number %d outside [1, 1000]", info.RandomNumber))
	}
	if info.Timestamp <= 0 {
		problems = append(problems, "missing epoch timestamp")
	}
	if info.ServerTime == "" {
		problems = append(problems, "server time not formatted YYYY-MM-DD HH:MM:SS")
	}
	if !info.HomeLink {
		problems = append(problems, "missing link back to /")
	}
	if info.Scripts > 0 {
		problems = append(problems, fmt.Sprintf("%d script element(s) in page", info.Scripts))
	}
	for _, h := range info.EventHandler {
		problems = append(problems, fmt.Sprintf("event handler attribute %s in page", h))
	}
	return info, problems
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func countClass(n *html.Node, class string) int {
	count := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		for _, a := range c.Attr {
			if a.Key == "class" && hasClass(a.Val, class) {
				count++
			}
		}
		count += countClass(c, class)
	}
	return count
}

func hasClass(attr, class string) bool {
	for _, c := range strings.Fields(attr) {
		if c == class {
			return true
		}
	}
	return false
}

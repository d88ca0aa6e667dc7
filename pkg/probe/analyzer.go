package probe

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
)

// SpecialChars is the set of characters injected between the markers.
var SpecialChars = []string{
	"\"", "'", "<", ">", "$", "|", "(", ")", "`", ":", ";", "{", "}",
	"&", "#", "=", "/", " ", "\t", "%", "\\", ".", "[", "]", "+", "-", "*",
}

// DangerousChars are the characters that must never come back unescaped in
// HTML text: any of them lets a value open a tag or leave an attribute.
var DangerousChars = []string{"<", ">", "\"", "'"}

// entityRef matches a character reference as produced by an HTML escaper.
var entityRef = regexp.MustCompile(`&(#[0-9]+|#[xX][0-9a-fA-F]+|[a-zA-Z][a-zA-Z0-9]*);`)

// Markers delimit one injected payload. Start and End differ so a segment
// between the end of one reflection and the start of the next is never
// mistaken for reflected content.
type Markers struct {
	Start string
	End   string
}

// NewMarkers returns markers made of letters and digits only, so they survive
// URL encoding and HTML escaping unchanged.
func NewMarkers() Markers {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		b = []byte{0xc6, 0x15, 0xc0, 0xbe}
	}
	tag := hex.EncodeToString(b)
	return Markers{Start: "cgs" + tag + "x", End: "cge" + tag + "x"}
}

// Wrap surrounds chars with the markers.
func (m Markers) Wrap(chars string) string {
	return m.Start + chars + m.End
}

// Payload is the full header payload: every special character between the markers.
func (m Markers) Payload() string {
	return m.Wrap(strings.Join(SpecialChars, ""))
}

// QueryPayload leaves out the characters that cannot travel raw in a request
// target: whitespace, '#' (fragment) and '%' (escape).
func (m Markers) QueryPayload() string {
	var sb strings.Builder
	for _, c := range SpecialChars {
		switch c {
		case " ", "\t", "#", "%":
			continue
		}
		sb.WriteString(c)
	}
	return m.Wrap(sb.String())
}

// Segments returns the reflected content of every Start...End pair in body.
func (m Markers) Segments(body string) []string {
	var segments []string
	rest := body
	for {
		i := strings.Index(rest, m.Start)
		if i == -1 {
			return segments
		}
		rest = rest[i+len(m.Start):]

		j := strings.Index(rest, m.End)
		if j == -1 {
			return segments
		}
		segment := rest[:j]
		// A second Start before End means the first reflection lost its end marker.
		if k := strings.LastIndex(segment, m.Start); k != -1 {
			segment = segment[k+len(m.Start):]
		}
		segments = append(segments, segment)
		rest = rest[j+len(m.End):]
	}
}

// AnalyzeResponse reports which special characters appear literally between
// the markers. Character references are removed first, so an escaped '<'
// (&lt;) counts as filtered while its '&' and ';' do not count as reflected.
func AnalyzeResponse(body string, m Markers) (reflected bool, unfiltered []string) {
	segments := m.Segments(body)
	if len(segments) == 0 {
		return false, nil
	}

	seen := make(map[string]bool)
	for _, segment := range segments {
		// Bound the work on pathological bodies.
		if len(segment) > 1000 {
			continue
		}
		stripped := entityRef.ReplaceAllString(segment, "")
		for _, char := range SpecialChars {
			if strings.Contains(stripped, char) {
				seen[char] = true
			}
		}
	}

	// Keep SpecialChars order so output is stable.
	for _, char := range SpecialChars {
		if seen[char] {
			unfiltered = append(unfiltered, char)
		}
	}
	return true, unfiltered
}

// Dangerous filters unfiltered down to DangerousChars.
func Dangerous(unfiltered []string) []string {
	var out []string
	for _, c := range unfiltered {
		for _, d := range DangerousChars {
			if c == d {
				out = append(out, c)
			}
		}
	}
	return out
}

package actions

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

var (
	schemePattern = regexp.MustCompile(`(?i)^(https?://|mailto:)`)
	lineSplit     = regexp.MustCompile(`\r?\n`)
)

// NormalizeURL trims raw and prefixes https:// unless it already carries an
// http, https or mailto scheme.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" || schemePattern.MatchString(u) {
		return u
	}
	return "https://" + u
}

// ParseFontSize parses a point size typed by a user. It must be a finite
// number greater than zero.
func ParseFontSize(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, invalid("size", "font size is required")
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, invalid("size", "%q is not a number", raw)
	}
	if err := checkFontSize(n); err != nil {
		return 0, err
	}
	return n, nil
}

func checkFontSize(n float64) error {
	if math.IsNaN(n) || math.IsInf(n, 0) || n <= 0 {
		return invalid("size", "font size must be greater than 0")
	}
	return nil
}

// ListItems splits a block of text into trimmed, non-empty lines.
func ListItems(raw string) []string {
	var items []string
	for _, line := range lineSplit.Split(raw, -1) {
		if line = strings.TrimSpace(line); line != "" {
			items = append(items, line)
		}
	}
	return items
}

// listHTML renders items as an escaped <ul> or <ol> fragment.
func listHTML(items []string, numbered bool) string {
	var sb strings.Builder
	tag := "ul"
	if numbered {
		tag = "ol"
	}
	sb.WriteString("<" + tag + ">")
	for _, item := range items {
		sb.WriteString("<li>")
		sb.WriteString(html.EscapeString(item))
		sb.WriteString("</li>")
	}
	sb.WriteString("</" + tag + ">")
	return sb.String()
}

// anchorHTML renders an escaped <a> element.
func anchorHTML(url, text string) string {
	return fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(url), html.EscapeString(text))
}

func checkTable(values [][]string) error {
	if len(values) == 0 {
		return invalid("values", "table needs at least one row")
	}
	cols := len(values[0])
	if cols == 0 {
		return invalid("values", "table needs at least one column")
	}
	for i, row := range values {
		if len(row) != cols {
			return invalid("values", "row %d has %d cells, want %d", i, len(row), cols)
		}
	}
	return nil
}

// Package render holds the text helpers shared by the tool handlers:
// response truncation, date and size formatting and markdown tables.
package render

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// CharacterLimit is the maximum length of a tool response.
const CharacterLimit = 50000

// Truncate cuts text to limit characters and appends a notice when it
// does. limit <= 0 uses CharacterLimit.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		limit = CharacterLimit
	}
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + fmt.Sprintf("\n\n... [Response truncated at %d characters]", limit)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// FormatDate renders a CKAN timestamp as d/m/yyyy, hh:mm:ss. Input that
// does not parse is returned unchanged.
func FormatDate(s string) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2/1/2006, 15:04:05")
		}
	}
	return s
}

var byteUnits = []string{"B", "KB", "MB", "GB"}

// FormatBytes renders a size with binary units and at most two decimals.
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	const k = 1024.0
	i := int(math.Floor(math.Log(float64(n)) / math.Log(k)))
	if i >= len(byteUnits) {
		i = len(byteUnits) - 1
	}
	v := math.Round(float64(n)/math.Pow(k, float64(i))*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + byteUnits[i]
}

// Cell prepares a value for a markdown table cell: newlines flattened,
// pipes escaped and the text cut to maxLen characters with "..." when
// longer. maxLen <= 0 disables cutting.
func Cell(s string, maxLen int) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "|", `\|`).Replace(s)
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	cut := maxLen - 3
	if cut < 0 {
		cut = 0
	}
	return string(runes[:cut]) + "..."
}

// Value converts a raw JSON value to display text: strings unquoted, null
// empty, everything else as compact JSON.
func Value(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" || trimmed == "" {
		return ""
	}
	return trimmed
}

// Table renders an aligned markdown table. Column widths follow display
// width, so wide runes line up. Rows shorter than headers are padded.
func Table(headers []string, rows [][]string) string {
	cols := len(headers)
	widths := make([]int, cols)
	for i, h := range headers {
		widths[i] = max(3, runewidth.StringWidth(h))
	}
	for _, row := range rows {
		for i := 0; i < cols && i < len(row); i++ {
			widths[i] = max(widths[i], runewidth.StringWidth(row[i]))
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		sb.WriteString("|")
		for i := 0; i < cols; i++ {
			content := ""
			if i < len(cells) {
				content = cells[i]
			}
			sb.WriteString(" ")
			sb.WriteString(runewidth.FillRight(content, widths[i]))
			sb.WriteString(" |")
		}
		sb.WriteString("\n")
	}

	writeRow(headers)
	sb.WriteString("|")
	for _, w := range widths {
		sb.WriteString(" " + strings.Repeat("-", w) + " |")
	}
	sb.WriteString("\n")
	for _, row := range rows {
		writeRow(row)
	}
	return sb.String()
}

// Check renders an availability mark.
func Check(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

// ABOUTME: Labeled field blocks of a composed log body and their per-format locators
// ABOUTME: Finds, replaces and appends field values in plain text, HTML and Markdown bodies
package compose

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/harperreed/callbridge/models"
)

// ErrUnsupportedFormat is returned when a body is composed for a log format
// that has no renderer.
var ErrUnsupportedFormat = errors.New("unsupported log format")

const endSentinel = "--- END"

type fieldKind int

const (
	// lineField values live on the label line.
	lineField fieldKind = iota
	// flowField values may span lines and run until the next field label.
	flowField
	// blockField values start below the label and are closed by endSentinel.
	blockField
)

type field struct {
	kind   fieldKind
	labels []string // labels[0] is rendered, the rest are accepted when matching
	starts map[string]*regexp.Regexp
}

var formats = []string{models.FormatPlainText, models.FormatHTML, models.FormatMarkdown}

func newField(kind fieldKind, labels ...string) *field {
	f := &field{kind: kind, labels: labels, starts: make(map[string]*regexp.Regexp, len(formats))}
	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = regexp.QuoteMeta(l)
	}
	alt := "(?:" + strings.Join(quoted, "|") + ")"

	if kind == blockField {
		f.starts[models.FormatPlainText] = regexp.MustCompile(`(?m)^- ` + alt + `:\n`)
		f.starts[models.FormatMarkdown] = regexp.MustCompile(`(?m)^\*\*` + alt + `\*\*:\n`)
		f.starts[models.FormatHTML] = regexp.MustCompile(`<div><b>` + alt + `</b><br>`)
	} else {
		f.starts[models.FormatPlainText] = regexp.MustCompile(`(?m)^- ` + alt + `: ?`)
		f.starts[models.FormatMarkdown] = regexp.MustCompile(`(?m)^\*\*` + alt + `\*\*: ?`)
		f.starts[models.FormatHTML] = regexp.MustCompile(`<li><b>` + alt + `</b>: ?`)
	}
	return f
}

var (
	fieldNote                     = newField(flowField, "Note", "Agent notes")
	fieldSessionID                = newField(lineField, "Session Id")
	fieldRingCentralUserName      = newField(lineField, "RingCentral user name")
	fieldRingCentralNumber        = newField(lineField, "RingCentral number")
	fieldSubject                  = newField(lineField, "Subject")
	fieldContactNumber            = newField(lineField, "Contact Number")
	fieldDateTime                 = newField(lineField, "Date/Time")
	fieldDuration                 = newField(lineField, "Duration")
	fieldResult                   = newField(lineField, "Result")
	fieldRecording                = newField(lineField, "Call recording link")
	fieldAINote                   = newField(blockField, "AI Note")
	fieldTranscript               = newField(blockField, "Transcript")
	fieldRingSenseTranscript      = newField(blockField, "RingSense transcript")
	fieldRingSenseSummary         = newField(blockField, "RingSense summary")
	fieldRingSenseAIScore         = newField(lineField, "Call score")
	fieldRingSenseBulletedSummary = newField(blockField, "RingSense bulleted summary")
	fieldRingSenseLink            = newField(lineField, "RingSense recording link")
	fieldCallLegs                 = newField(flowField, "Call journey")

	allFields = []*field{
		fieldNote, fieldSessionID, fieldRingCentralUserName, fieldRingCentralNumber, fieldSubject,
		fieldContactNumber, fieldDateTime, fieldDuration, fieldResult, fieldRecording, fieldAINote,
		fieldTranscript, fieldRingSenseTranscript, fieldRingSenseSummary, fieldRingSenseAIScore,
		fieldRingSenseBulletedSummary, fieldRingSenseLink, fieldCallLegs,
	}
)

// span locates a field inside a body. Value is body[valueStart:valueEnd]; the
// whole block including its label and closing sentinel is body[start:end].
type span struct {
	start, valueStart, valueEnd, end int
}

func checkFormat(format string) error {
	switch format {
	case models.FormatPlainText, models.FormatHTML, models.FormatMarkdown:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// locate returns the first occurrence of f that is not nested inside the
// block of another field.
func (f *field) locate(body, format string) (span, bool) {
	var nested [][2]int
	for _, other := range allFields {
		if other == f || other.kind != blockField {
			continue
		}
		for _, loc := range other.starts[format].FindAllStringIndex(body, -1) {
			if s, ok := other.spanAt(body, format, loc); ok {
				nested = append(nested, [2]int{s.start, s.end})
			}
		}
	}

	for _, loc := range f.starts[format].FindAllStringIndex(body, -1) {
		inside := false
		for _, n := range nested {
			if loc[0] > n[0] && loc[0] < n[1] {
				inside = true
				break
			}
		}
		if inside {
			continue
		}
		if s, ok := f.spanAt(body, format, loc); ok {
			return s, true
		}
	}
	return span{}, false
}

func (f *field) spanAt(body, format string, loc []int) (span, bool) {
	s := span{start: loc[0], valueStart: loc[1]}
	rest := body[s.valueStart:]

	switch {
	case format == models.FormatHTML && f.kind == blockField:
		closing := "<br>" + endSentinel + "</div>"
		idx := strings.Index(rest, closing)
		if idx < 0 {
			return span{}, false
		}
		s.valueEnd = s.valueStart + idx
		s.end = s.valueEnd + len(closing)
	case format == models.FormatHTML:
		idx := strings.Index(rest, "</li>")
		if idx < 0 {
			return span{}, false
		}
		s.valueEnd = s.valueStart + idx
		s.end = s.valueEnd + len("</li>")
	case f.kind == blockField:
		idx := sentinelIndex(rest)
		if idx < 0 {
			// Unterminated block: not a field we can replace in place.
			return span{}, false
		}
		s.valueEnd = s.valueStart + idx
		s.end = s.valueEnd + len(endSentinel)
		if s.valueEnd > s.valueStart && body[s.valueEnd-1] == '\n' {
			s.valueEnd--
		}
	case f.kind == lineField:
		idx := strings.IndexByte(rest, '\n')
		if idx < 0 {
			idx = len(rest)
		}
		s.valueEnd = s.valueStart + idx
		s.end = s.valueEnd
	default:
		s.valueEnd = nextFieldEnd(body, s.valueStart, format)
		s.end = s.valueEnd
	}
	return s, true
}

// sentinelIndex finds the closing sentinel at the start of a line.
func sentinelIndex(s string) int {
	off := 0
	for {
		idx := strings.Index(s[off:], endSentinel)
		if idx < 0 {
			return -1
		}
		pos := off + idx
		if pos == 0 || s[pos-1] == '\n' {
			return pos
		}
		off = pos + len(endSentinel)
	}
}

// nextFieldEnd returns where a flow value starting at from ends: right before
// the newline that precedes the next field label, or at the end of body
// without its trailing newlines.
func nextFieldEnd(body string, from int, format string) int {
	end := len(body)
	for _, f := range allFields {
		for _, loc := range f.starts[format].FindAllStringIndex(body, -1) {
			if loc[0] > from && loc[0] < end {
				end = loc[0]
				break
			}
		}
	}
	for end > from && body[end-1] == '\n' {
		end--
	}
	return end
}

// render formats a complete block for f holding value.
func (f *field) render(value, format string) string {
	label := f.labels[0]
	switch format {
	case models.FormatHTML:
		value = strings.ReplaceAll(value, "\n", "<br>")
		if f.kind == blockField {
			return "<div><b>" + label + "</b><br>" + value + "<br>" + endSentinel + "</div>"
		}
		return "<li><b>" + label + "</b>: " + value + "</li>"
	case models.FormatMarkdown:
		if f.kind == blockField {
			return "**" + label + "**:\n" + value + "\n" + endSentinel + "\n"
		}
		return "**" + label + "**: " + f.inline(value) + "\n"
	default:
		if f.kind == blockField {
			return "- " + label + ":\n" + value + "\n" + endSentinel + "\n"
		}
		return "- " + label + ": " + f.inline(value) + "\n"
	}
}

func (f *field) inline(value string) string {
	if f.kind == lineField {
		return strings.Join(strings.Fields(value), " ")
	}
	return value
}

// upsert replaces the field value in body or appends a new block. keep, when
// not nil, decides whether an existing value may be overwritten.
func (f *field) upsert(body, value, format string, keep func(existing string) bool) (string, error) {
	if err := checkFormat(format); err != nil {
		return body, err
	}
	value = strings.TrimRight(value, "\n")
	if strings.TrimSpace(value) == "" {
		return body, nil
	}

	if s, ok := f.locate(body, format); ok {
		if keep != nil && keep(body[s.valueStart:s.valueEnd]) {
			return body, nil
		}
		if f.kind == blockField {
			rendered := strings.TrimSuffix(f.render(value, format), "\n")
			return body[:s.start] + rendered + body[s.end:], nil
		}
		rendered := f.render(value, format)
		return body[:s.valueStart] + f.valueOf(rendered, format) + body[s.valueEnd:], nil
	}

	if format != models.FormatHTML && body != "" && !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return body + f.render(value, format), nil
}

// valueOf extracts the value portion of a freshly rendered line or flow block.
func (f *field) valueOf(rendered, format string) string {
	loc := f.starts[format].FindStringIndex(rendered)
	s, _ := f.spanAt(rendered, format, loc)
	return rendered[s.valueStart:s.valueEnd]
}

// value returns the current value of f in body.
func (f *field) value(body, format string) (string, bool) {
	s, ok := f.locate(body, format)
	if !ok {
		return "", false
	}
	return body[s.valueStart:s.valueEnd], true
}

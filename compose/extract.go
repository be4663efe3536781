// ABOUTME: Read helpers over composed log bodies
// ABOUTME: Extracts the note of an existing body and converts HTML bodies to Markdown
package compose

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/harperreed/callbridge/models"
)

// ExtractNote returns the note written into body, or "" when there is none.
func ExtractNote(body, format string) (string, error) {
	if err := checkFormat(format); err != nil {
		return "", err
	}
	note, ok := fieldNote.value(body, format)
	if !ok {
		return "", nil
	}
	if format == models.FormatHTML {
		note = strings.ReplaceAll(note, "<br>", "\n")
	}
	return strings.TrimSpace(note), nil
}

var converter = md.NewConverter("", true, nil)

// HTMLToMarkdown renders an HTML log body as Markdown for previews.
func HTMLToMarkdown(body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", nil
	}
	out, err := converter.ConvertString(body)
	if err != nil {
		return "", fmt.Errorf("failed to convert html body: %w", err)
	}
	return out, nil
}

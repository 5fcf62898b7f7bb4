package catalog

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
)

// RenderDescription converts a Markdown description into the HTML
// that the catalog UI displays. An empty input yields an empty output.
func RenderDescription(input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(input), &buf); err != nil {
		return "", fmt.Errorf("failed to process markdown: %v", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

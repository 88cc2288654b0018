package convert

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// sectionJoiner separates documents in the combined markdown output.
const sectionJoiner = "\n\n---\n\n"

// WriteCombined writes the successful results as one markdown document,
// each section titled with its source file name. Failures are left out;
// they live in the result log. Returns how many sections were written.
func WriteCombined(w io.Writer, results []Result) (int, error) {
	var sections []string
	for _, res := range results {
		if !res.Succeeded() {
			continue
		}
		title := strings.TrimSuffix(filepath.Base(res.InputPath), filepath.Ext(res.InputPath))
		sections = append(sections, fmt.Sprintf("# %s\n\n%s", title, res.Markdown))
	}
	if len(sections) == 0 {
		return 0, nil
	}
	if _, err := io.WriteString(w, strings.Join(sections, sectionJoiner)+"\n"); err != nil {
		return 0, fmt.Errorf("write combined markdown: %w", err)
	}
	return len(sections), nil
}

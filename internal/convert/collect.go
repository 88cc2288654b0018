package convert

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// CollectInputs expands glob patterns into the list of documents to
// convert. With no patterns it takes every PDF under defaultDir. Files
// that are not PDFs are skipped with a log line; only an empty final list
// is an error.
func CollectInputs(patterns []string, defaultDir string) ([]string, error) {
	if len(patterns) == 0 {
		if _, err := os.Stat(defaultDir); err != nil {
			return nil, fmt.Errorf("input directory %s does not exist, pass explicit paths or create it", defaultDir)
		}
		patterns = []string{filepath.Join(defaultDir, "*.pdf")}
	}

	seen := make(map[string]struct{})
	var inputs []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			// A literal path that matched nothing is worth a complaint;
			// a wildcard quietly matching nothing is normal.
			if !strings.ContainsAny(pattern, "*?[") {
				log.Warn().Str("path", pattern).Msg("input file not found")
			}
			continue
		}
		for _, match := range matches {
			if strings.ToLower(filepath.Ext(match)) != ".pdf" {
				log.Warn().Str("file", match).Msg("skipping non-PDF input")
				continue
			}
			info, err := os.Stat(match)
			if err != nil || info.IsDir() {
				log.Warn().Str("file", match).Msg("skipping unreadable input")
				continue
			}
			if _, dup := seen[match]; dup {
				continue
			}
			seen[match] = struct{}{}
			inputs = append(inputs, match)
		}
	}

	if len(inputs) == 0 {
		return nil, fmt.Errorf("no PDF files found (looked at %s)", strings.Join(patterns, ", "))
	}
	sort.Strings(inputs)
	return inputs, nil
}

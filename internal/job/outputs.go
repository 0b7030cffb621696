package job

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// collectOutputs lists scratch-dir entries with the expected extension,
// sorted by their leading `<index>.` prefix. Entries without a numeric prefix
// sort last; ties break lexicographically on the full filename.
func collectOutputs(dirPath, ext string) ([]string, error) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("read scratch dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ext) {
			names = append(names, entry.Name())
		}
	}
	sortByIndex(names)
	return names, nil
}

func sortByIndex(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		a, aOK := leadingIndex(names[i])
		b, bOK := leadingIndex(names[j])
		if aOK != bOK {
			return aOK
		}
		if aOK && a != b {
			return a < b
		}
		return names[i] < names[j]
	})
}

// leadingIndex parses the numeric prefix before the first dot, as produced by
// the downloader's output template. "NA.title.mp3" has no index.
func leadingIndex(name string) (int, bool) {
	head, _, found := strings.Cut(name, ".")
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(head)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

package media

import (
	"fmt"
	"os"
	"strings"
)

// EscapeConcatPath quotes a path for the transcoder's concat list syntax:
// a single quote inside a quoted string becomes the sequence '\''.
func EscapeConcatPath(path string) string {
	return strings.ReplaceAll(path, "'", `'\''`)
}

// WriteConcatList writes a concat-demuxer list file: one `file '<path>'` line
// per input, in order.
func WriteConcatList(listPath string, inputs []string) error {
	var b strings.Builder
	for _, input := range inputs {
		fmt.Fprintf(&b, "file '%s'\n", EscapeConcatPath(input))
	}
	if err := os.WriteFile(listPath, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	return nil
}

// ConcatArgs builds the transcoder argv that concatenates the listed inputs
// into outPath via stream copy.
func ConcatArgs(listPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outPath,
	}
}

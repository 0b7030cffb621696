package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

const archiveDirPerm os.FileMode = 0o750

// Entry names a local file to place into the archive under Name.
type Entry struct {
	Path string
	Name string
}

// BuildArchive writes the entries into a zip at destZipPath, preserving the
// given order. Audio payloads are already compressed, so entries are stored
// rather than deflated.
func BuildArchive(destZipPath string, entries []Entry) error {
	if len(entries) == 0 {
		return errors.New("no entries provided")
	}

	zipFile, err := createFile(destZipPath)
	if err != nil {
		return err
	}
	defer func() { _ = zipFile.Close() }()

	zipWriter := zip.NewWriter(zipFile)
	defer func() { _ = zipWriter.Close() }()

	for _, entry := range entries {
		if err := addEntry(zipWriter, entry); err != nil {
			log.Warn().Str("path", entry.Path).Err(err).Msg("archive entry failed")
			return err
		}
	}

	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("close zip writer: %w", err)
	}
	if err := zipFile.Close(); err != nil {
		return fmt.Errorf("close zip file: %w", err)
	}
	return nil
}

func addEntry(zipWriter *zip.Writer, entry Entry) error {
	sourceFile, err := os.Open(entry.Path) //nolint:gosec // paths originate in the job's scratch dir
	if err != nil {
		return fmt.Errorf("open entry: %w", err)
	}
	defer func() { _ = sourceFile.Close() }()

	name := entry.Name
	if name == "" {
		name = filepath.Base(entry.Path)
	}
	entryWriter, err := zipWriter.CreateHeader(&zip.FileHeader{
		Name:   name,
		Method: zip.Store,
	})
	if err != nil {
		return fmt.Errorf("create zip entry: %w", err)
	}
	if _, err := io.Copy(entryWriter, sourceFile); err != nil {
		return fmt.Errorf("copy into zip: %w", err)
	}
	return nil
}

// createFile creates or truncates the destination file, ensuring its parent dir exists.
func createFile(destinationPath string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(destinationPath), archiveDirPerm); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	outputFile, err := os.Create(destinationPath) //nolint:gosec // path is constructed by the application
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	return outputFile, nil
}

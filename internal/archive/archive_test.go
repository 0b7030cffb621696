package archive

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestBuildArchivePreservesOrderAndContent(t *testing.T) {
	srcDir := t.TempDir()
	entries := []Entry{
		{Path: writeFixture(t, srcDir, "1.a.mp3", "alpha"), Name: "1.a.mp3"},
		{Path: writeFixture(t, srcDir, "2.b.mp3", "beta"), Name: "2.b.mp3"},
		{Path: writeFixture(t, srcDir, "3.c.mp3", "gamma"), Name: "3.c.mp3"},
	}
	dest := filepath.Join(t.TempDir(), "playlist.zip")

	if err := BuildArchive(dest, entries); err != nil {
		t.Fatalf("build archive: %v", err)
	}

	reader, err := zip.OpenReader(dest)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer func() { _ = reader.Close() }()

	if len(reader.File) != 3 {
		t.Fatalf("entry count = %d, want 3", len(reader.File))
	}
	wantNames := []string{"1.a.mp3", "2.b.mp3", "3.c.mp3"}
	wantContent := []string{"alpha", "beta", "gamma"}
	for i, f := range reader.File {
		if f.Name != wantNames[i] {
			t.Fatalf("entry %d name = %q, want %q", i, f.Name, wantNames[i])
		}
		if f.Method != zip.Store {
			t.Fatalf("entry %d not stored", i)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry: %v", err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil || string(data) != wantContent[i] {
			t.Fatalf("entry %d content = %q err=%v", i, data, err)
		}
	}
}

func TestBuildArchiveDefaultsNameToBasename(t *testing.T) {
	srcDir := t.TempDir()
	entry := Entry{Path: writeFixture(t, srcDir, "solo.mp3", "x")}
	dest := filepath.Join(t.TempDir(), "out.zip")

	if err := BuildArchive(dest, []Entry{entry}); err != nil {
		t.Fatalf("build archive: %v", err)
	}
	reader, err := zip.OpenReader(dest)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer func() { _ = reader.Close() }()
	if len(reader.File) != 1 || reader.File[0].Name != "solo.mp3" {
		t.Fatalf("unexpected entries: %v", reader.File)
	}
}

func TestBuildArchiveNoEntries(t *testing.T) {
	if err := BuildArchive(filepath.Join(t.TempDir(), "x.zip"), nil); err == nil {
		t.Fatalf("expected error for empty entries")
	}
}

func TestBuildArchiveMissingSource(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "x.zip")
	err := BuildArchive(dest, []Entry{{Path: filepath.Join(t.TempDir(), "missing.mp3")}})
	if err == nil {
		t.Fatalf("expected error for missing source file")
	}
}

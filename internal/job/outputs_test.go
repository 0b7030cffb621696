package job

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSortByIndex(t *testing.T) {
	names := []string{
		"10.last.mp3",
		"2.second.mp3",
		"NA.no-index.mp3",
		"1.first.mp3",
		"other.mp3",
	}
	sortByIndex(names)
	want := []string{
		"1.first.mp3",
		"2.second.mp3",
		"10.last.mp3",
		"NA.no-index.mp3",
		"other.mp3",
	}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("got %v, want %v", names, want)
	}
}

func TestSortByIndexTieBreaksLexicographically(t *testing.T) {
	names := []string{"3.zz.mp3", "3.aa.mp3"}
	sortByIndex(names)
	if names[0] != "3.aa.mp3" {
		t.Fatalf("tie break failed: %v", names)
	}
}

func TestLeadingIndex(t *testing.T) {
	cases := []struct {
		name string
		idx  int
		ok   bool
	}{
		{"1.song.mp3", 1, true},
		{"42.song.mp3", 42, true},
		{"NA.song.mp3", 0, false},
		{"song.mp3", 0, false},
		{"noext", 0, false},
		{"-1.song.mp3", 0, false},
	}
	for _, c := range cases {
		idx, ok := leadingIndex(c.name)
		if idx != c.idx || ok != c.ok {
			t.Fatalf("leadingIndex(%q) = (%d,%v), want (%d,%v)", c.name, idx, ok, c.idx, c.ok)
		}
	}
}

func TestCollectOutputsFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"2.b.mp3", "1.a.mp3", "concat.txt", "3.c.MP3", "cookies.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.mp3"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := collectOutputs(dir, ".mp3")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	want := []string{"1.a.mp3", "2.b.mp3", "3.c.MP3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

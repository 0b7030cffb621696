package progress

import "testing"

func TestFeedItemToken(t *testing.T) {
	p := NewParser()
	ev, ok := p.Feed("[2/5] Some Title")
	if !ok || ev.Kind != KindItemStart {
		t.Fatalf("expected ItemStart, got %+v ok=%v", ev, ok)
	}
	if ev.Index != 2 || ev.Total != 5 || ev.Title != "Some Title" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if i, n := p.Position(); i != 2 || n != 5 {
		t.Fatalf("position = (%d,%d), want (2,5)", i, n)
	}

	// repeated token for the same item is not a new start
	if _, ok := p.Feed("[2/5] Some Title"); ok {
		t.Fatalf("repeated token should not emit an event")
	}
}

func TestFeedDownloadingItemOf(t *testing.T) {
	p := NewParser()
	ev, ok := p.Feed("[download] Downloading item 3 of 12")
	if !ok || ev.Kind != KindItemStart || ev.Index != 3 || ev.Total != 12 {
		t.Fatalf("unexpected event: %+v ok=%v", ev, ok)
	}

	p2 := NewParser()
	ev, ok = p2.Feed("[download] Downloading video 1 of 3")
	if !ok || ev.Kind != KindItemStart || ev.Index != 1 || ev.Total != 3 {
		t.Fatalf("unexpected event: %+v ok=%v", ev, ok)
	}
}

func TestFeedItemProgress(t *testing.T) {
	p := NewParser()
	ev, ok := p.Feed("[download]  47.1% of 4.00MiB at 1.21MiB/s ETA 00:03")
	if !ok || ev.Kind != KindItemProgress {
		t.Fatalf("expected ItemProgress, got %+v ok=%v", ev, ok)
	}
	if ev.Percent != 47.1 {
		t.Fatalf("percent = %v, want 47.1", ev.Percent)
	}
	if ev.BytesTotal != 4*1024*1024 {
		t.Fatalf("bytes total = %d, want %d", ev.BytesTotal, 4*1024*1024)
	}
	if ev.BytesDone <= 0 || ev.BytesDone >= ev.BytesTotal {
		t.Fatalf("bytes done out of range: %d", ev.BytesDone)
	}
	if ev.Speed != "1.21MiB/s" || ev.ETA != "00:03" {
		t.Fatalf("speed/eta: %q %q", ev.Speed, ev.ETA)
	}
}

func TestFeedProgressWithEstimatedSize(t *testing.T) {
	p := NewParser()
	ev, ok := p.Feed("[download]   5.0% of ~ 120.00KiB at  512.00KiB/s ETA 00:10")
	if !ok || ev.Kind != KindItemProgress {
		t.Fatalf("expected ItemProgress, got %+v ok=%v", ev, ok)
	}
	if ev.BytesTotal != 120*1024 {
		t.Fatalf("bytes total = %d", ev.BytesTotal)
	}
}

func TestFeedStages(t *testing.T) {
	cases := []struct {
		line string
		want Stage
	}{
		{"[ExtractAudio] converting audio", StageExtracting},
		{"[Merger] Merging formats into output.mkv", StageMerging},
		{"[ffmpeg] Correcting container", StagePostprocessing},
		{"[Metadata] Adding metadata", StagePostprocessing},
		{"[download] Downloading webpage", StageDownloading},
	}
	for _, c := range cases {
		p := NewParser()
		ev, ok := p.Feed(c.line)
		if !ok || ev.Kind != KindStage || ev.Stage != c.want {
			t.Fatalf("Feed(%q) = %+v ok=%v, want stage %s", c.line, ev, ok, c.want)
		}
	}
}

func TestFeedItemComplete(t *testing.T) {
	p := NewParser()
	ev, ok := p.Feed("[ExtractAudio] Destination: /tmp/job-x/1.song.mp3")
	if !ok || ev.Kind != KindItemComplete {
		t.Fatalf("expected ItemComplete, got %+v ok=%v", ev, ok)
	}
	if ev.OutputPath != "/tmp/job-x/1.song.mp3" {
		t.Fatalf("output path = %q", ev.OutputPath)
	}
}

func TestFeedError(t *testing.T) {
	p := NewParser()
	ev, ok := p.Feed("ERROR: video unavailable")
	if !ok || ev.Kind != KindError || ev.Detail != "video unavailable" {
		t.Fatalf("unexpected event: %+v ok=%v", ev, ok)
	}
}

func TestFeedIgnoresUnknownLines(t *testing.T) {
	p := NewParser()
	for _, line := range []string{
		"",
		"   ",
		"random noise",
		"[youtube] Extracting URL",
		"[0/3] impossible index",
		"[4/3] index beyond total",
	} {
		if ev, ok := p.Feed(line); ok {
			t.Fatalf("Feed(%q) unexpectedly produced %+v", line, ev)
		}
	}
}

func TestPositionDefaultsToSingleItem(t *testing.T) {
	p := NewParser()
	if i, n := p.Position(); i != 1 || n != 1 {
		t.Fatalf("position = (%d,%d), want (1,1)", i, n)
	}
}

func TestParseSize(t *testing.T) {
	cases := []struct {
		value, unit string
		want        int64
	}{
		{"1.00", "KiB", 1024},
		{"2", "MiB", 2 * 1024 * 1024},
		{"3", "GB", 3_000_000_000},
		{"10", "B", 10},
		{"1", "XB", 0},
	}
	for _, c := range cases {
		if got := parseSize(c.value, c.unit); got != c.want {
			t.Fatalf("parseSize(%s %s) = %d, want %d", c.value, c.unit, got, c.want)
		}
	}
}

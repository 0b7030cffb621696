// Package progress translates the downloader's textual output into structured
// events. Lines that do not match any known shape are skipped, never errors.
package progress

import (
	"regexp"
	"strconv"
	"strings"
)

type EventKind int

const (
	KindItemStart EventKind = iota
	KindItemProgress
	KindStage
	KindItemComplete
	KindError
)

type Stage string

const (
	StageDownloading    Stage = "downloading"
	StageExtracting     Stage = "extracting"
	StagePostprocessing Stage = "postprocessing"
	StageMerging        Stage = "merging"
)

// Event is a single parsed observation from one output line.
type Event struct {
	Kind EventKind

	// KindItemStart
	Index int
	Total int
	Title string

	// KindItemProgress
	Percent    float64
	BytesDone  int64
	BytesTotal int64
	Speed      string
	ETA        string

	// KindStage
	Stage Stage

	// KindItemComplete
	OutputPath string

	// KindError
	Detail string
}

var (
	reItemToken = regexp.MustCompile(`^\[(\d+)/(\d+)\]\s*(.*)$`)
	reItemOf    = regexp.MustCompile(`\[download\] Downloading (?:video|item) (\d+) of (\d+)`)
	rePercent   = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)%`)
	reOfSize    = regexp.MustCompile(`\bof\s+~?\s*([0-9]+(?:\.[0-9]+)?)((?:[KMGT]i?)?B)\b`)
	reSpeed     = regexp.MustCompile(`\bat\s+(\S+)`)
	reETA       = regexp.MustCompile(`\bETA\s+([0-9:]+)`)
	reDest      = regexp.MustCompile(`Destination:\s+(.+)$`)
)

// Parser tracks the per-job item state machine. Absence of any [i/N] token
// means a single-item job and Position reports (1, 1).
type Parser struct {
	index int
	total int
}

func NewParser() *Parser {
	return &Parser{}
}

// Position reports the current (index, total) pair, defaulting to (1, 1)
// before any item token has been seen.
func (p *Parser) Position() (int, int) {
	if p.total == 0 {
		return 1, 1
	}
	return p.index, p.total
}

// Feed parses one output line. The boolean is false when the line carries no
// recognizable progress information.
func (p *Parser) Feed(rawLine string) (Event, bool) {
	line := strings.TrimSpace(rawLine)
	if line == "" {
		return Event{}, false
	}

	if m := reItemToken.FindStringSubmatch(line); m != nil {
		return p.itemStart(m[1], m[2], m[3])
	}
	if m := reItemOf.FindStringSubmatch(line); m != nil {
		return p.itemStart(m[1], m[2], "")
	}

	if detail, ok := strings.CutPrefix(line, "ERROR:"); ok {
		return Event{Kind: KindError, Detail: strings.TrimSpace(detail)}, true
	}

	switch {
	case strings.HasPrefix(line, "[ExtractAudio]"):
		if m := reDest.FindStringSubmatch(line); m != nil {
			return Event{Kind: KindItemComplete, OutputPath: strings.TrimSpace(m[1])}, true
		}
		return Event{Kind: KindStage, Stage: StageExtracting}, true
	case strings.HasPrefix(line, "[Merger]"):
		return Event{Kind: KindStage, Stage: StageMerging}, true
	case strings.HasPrefix(line, "[ffmpeg]"),
		strings.HasPrefix(line, "[Metadata]"),
		strings.HasPrefix(line, "[EmbedThumbnail]"),
		strings.HasPrefix(line, "[FixupM4a]"):
		return Event{Kind: KindStage, Stage: StagePostprocessing}, true
	}

	if strings.HasPrefix(line, "[download]") {
		if m := rePercent.FindStringSubmatch(line); m != nil {
			return p.itemProgress(line, m[1])
		}
		return Event{Kind: KindStage, Stage: StageDownloading}, true
	}

	return Event{}, false
}

func (p *Parser) itemStart(rawIndex, rawTotal, title string) (Event, bool) {
	index, errI := strconv.Atoi(rawIndex)
	total, errT := strconv.Atoi(rawTotal)
	if errI != nil || errT != nil || index < 1 || total < 1 || index > total {
		return Event{}, false
	}
	if index == p.index && total == p.total {
		// repeated token for the item already in flight
		return Event{}, false
	}
	p.index = index
	p.total = total
	return Event{Kind: KindItemStart, Index: index, Total: total, Title: strings.TrimSpace(title)}, true
}

func (p *Parser) itemProgress(line, rawPercent string) (Event, bool) {
	percent, err := strconv.ParseFloat(rawPercent, 64)
	if err != nil || percent < 0 || percent > 100 {
		return Event{}, false
	}
	ev := Event{Kind: KindItemProgress, Percent: percent}
	if m := reOfSize.FindStringSubmatch(line); m != nil {
		if total := parseSize(m[1], m[2]); total > 0 {
			ev.BytesTotal = total
			ev.BytesDone = int64(percent / 100 * float64(total))
		}
	}
	if m := reSpeed.FindStringSubmatch(line); m != nil {
		ev.Speed = m[1]
	}
	if m := reETA.FindStringSubmatch(line); m != nil {
		ev.ETA = m[1]
	}
	return ev, true
}

// parseSize converts a value with a yt-dlp size unit (B, KiB, MB, ...) to bytes.
func parseSize(value, unit string) int64 {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || v < 0 {
		return 0
	}
	var mult float64
	switch strings.ToLower(unit) {
	case "b":
		mult = 1
	case "kib":
		mult = 1 << 10
	case "mib":
		mult = 1 << 20
	case "gib":
		mult = 1 << 30
	case "tib":
		mult = 1 << 40
	case "kb":
		mult = 1e3
	case "mb":
		mult = 1e6
	case "gb":
		mult = 1e9
	case "tb":
		mult = 1e12
	default:
		return 0
	}
	return int64(v * mult)
}

// Package media builds argv vectors for the external downloader and
// transcoder. It never spawns anything itself; the runner does.
package media

import "strings"

// OutputTemplate names downloaded items <index>.<title>.<ext>. The playlist
// index placeholder degenerates to "NA" for single items.
const OutputTemplate = "%(playlist_index)s.%(title)s.%(ext)s"

// DownloadOptions parameterizes a downloader invocation. Paths are absolute;
// the process working directory supplies the output location.
type DownloadOptions struct {
	URL            string
	AudioFormat    string // e.g. "mp3"
	Format         string // optional stream selector
	CookiesPath    string // optional cookies file inside the scratch dir
	FFmpegLocation string // optional transcoder directory for the downloader
	Playlist       bool
}

// DownloadArgs builds the audio-extraction argv for the downloader.
func DownloadArgs(opts DownloadOptions) []string {
	args := []string{
		"--extract-audio",
		"--audio-format", opts.AudioFormat,
		"--newline",
		"--no-warnings",
	}
	if opts.Playlist {
		args = append(args, "--yes-playlist")
	} else {
		args = append(args, "--no-playlist")
	}
	if strings.TrimSpace(opts.Format) != "" {
		args = append(args, "-f", opts.Format)
	}
	if strings.TrimSpace(opts.CookiesPath) != "" {
		args = append(args, "--cookies", opts.CookiesPath)
	}
	if strings.TrimSpace(opts.FFmpegLocation) != "" {
		args = append(args, "--ffmpeg-location", opts.FFmpegLocation)
	}
	args = append(args, "-o", OutputTemplate, opts.URL)
	return args
}

// FormatsArgs builds the metadata-mode argv that dumps available formats as JSON.
func FormatsArgs(url, cookiesPath string) []string {
	args := []string{"-J", "--no-playlist", "--no-warnings"}
	if strings.TrimSpace(cookiesPath) != "" {
		args = append(args, "--cookies", cookiesPath)
	}
	return append(args, url)
}

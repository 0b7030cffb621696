package media

import (
	"encoding/json"
	"fmt"
)

// Format is one selectable stream reported by the downloader's metadata mode.
type Format struct {
	FormatID   string `json:"format_id"`
	Resolution string `json:"resolution"`
	Note       string `json:"note"`
}

type formatsDump struct {
	Formats []struct {
		FormatID   string `json:"format_id"`
		Resolution string `json:"resolution"`
		FormatNote string `json:"format_note"`
	} `json:"formats"`
}

// ParseFormats extracts the format list from the downloader's -J output.
func ParseFormats(jsonData []byte) ([]Format, error) {
	var dump formatsDump
	if err := json.Unmarshal(jsonData, &dump); err != nil {
		return nil, fmt.Errorf("parse formats json: %w", err)
	}
	formats := make([]Format, 0, len(dump.Formats))
	for _, f := range dump.Formats {
		if f.FormatID == "" {
			continue
		}
		formats = append(formats, Format{
			FormatID:   f.FormatID,
			Resolution: f.Resolution,
			Note:       f.FormatNote,
		})
	}
	return formats, nil
}

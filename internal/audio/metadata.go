// SPDX-License-Identifier: MIT
package audio

import (
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"
)

// TrackInfo describes a file being played.
type TrackInfo struct {
	Title    string
	Artist   string
	Album    string
	Duration float64 // seconds
}

// ReadTrackInfo reads ID3v2 tags, falling back to the file name for the title.
func ReadTrackInfo(path string) TrackInfo {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err == nil {
		defer tag.Close()
		info := TrackInfo{
			Title:  strings.TrimSpace(tag.Title()),
			Artist: strings.TrimSpace(tag.Artist()),
			Album:  strings.TrimSpace(tag.Album()),
		}
		if info.Title != "" {
			return info
		}
	}

	base := filepath.Base(path)
	return TrackInfo{Title: strings.TrimSuffix(base, filepath.Ext(base))}
}

func (t TrackInfo) String() string {
	if t.Artist == "" {
		return t.Title
	}
	return t.Artist + " - " + t.Title
}

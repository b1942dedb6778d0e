package domain

import (
	"sort"
	"strings"
)

// DefaultFormatID is the engine selector used when a download request
// does not name a format.
const DefaultFormatID = "best"

// Defaults applied when the engine omits a field.
const (
	UnknownTitle    = "Unknown"
	UnknownUploader = "Unknown"
	DefaultExt      = "mp4"
)

// DownloadRequest is the input of a download job.
type DownloadRequest struct {
	URL      string `json:"url"`
	FormatID string `json:"format_id,omitempty"`
}

// Normalize trims the URL and fills in the default format selector.
func (r DownloadRequest) Normalize() DownloadRequest {
	r.URL = strings.TrimSpace(r.URL)
	r.FormatID = strings.TrimSpace(r.FormatID)
	if r.FormatID == "" {
		r.FormatID = DefaultFormatID
	}
	return r
}

// Validate reports ErrInvalidRequest when the URL is empty.
func (r DownloadRequest) Validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return ErrInvalidRequest
	}
	return nil
}

// VideoInfo is the result of a metadata query.
type VideoInfo struct {
	Title     string        `json:"title"`
	Duration  int           `json:"duration"`
	Thumbnail string        `json:"thumbnail"`
	Uploader  string        `json:"uploader"`
	ViewCount int64         `json:"view_count"`
	Formats   []FormatEntry `json:"formats"`
}

// FormatEntry describes one downloadable vertical resolution.
type FormatEntry struct {
	FormatID string `json:"format_id"`
	Ext      string `json:"ext"`
	Quality  int    `json:"quality"`
	Filesize int64  `json:"filesize"`
}

// RawFormat is one entry of the engine's format list. Pointer fields are
// nil when the engine did not report them.
type RawFormat struct {
	FormatID string
	Ext      string
	VCodec   *string
	Height   *int
	Filesize *int64
}

// HasVideo reports whether the format carries a video stream with a known
// height. A missing vcodec counts as present.
func (f RawFormat) HasVideo() bool {
	if f.VCodec != nil && *f.VCodec == "none" {
		return false
	}
	return f.Height != nil && *f.Height > 0
}

// BuildFormats keeps video formats with a known height, one per height
// (first seen wins), ordered by height descending.
func BuildFormats(raw []RawFormat) []FormatEntry {
	seen := make(map[int]struct{}, len(raw))
	formats := make([]FormatEntry, 0, len(raw))

	for _, f := range raw {
		if !f.HasVideo() {
			continue
		}
		height := *f.Height
		if _, dup := seen[height]; dup {
			continue
		}
		seen[height] = struct{}{}

		entry := FormatEntry{
			FormatID: f.FormatID,
			Ext:      f.Ext,
			Quality:  height,
		}
		if entry.Ext == "" {
			entry.Ext = DefaultExt
		}
		if f.Filesize != nil && *f.Filesize > 0 {
			entry.Filesize = *f.Filesize
		}
		formats = append(formats, entry)
	}

	sort.SliceStable(formats, func(i, j int) bool {
		return formats[i].Quality > formats[j].Quality
	})
	return formats
}

// DownloadResult describes a completed download job.
type DownloadResult struct {
	JobID    JobID  `json:"job_id"`
	Filename string `json:"filename"`
	Title    string `json:"title"`
	Size     int64  `json:"file_size"`
}

package extractor

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/iconidentify/vidgrab/internal/domain"
)

// ytDlpJSON mirrors the parts of the engine's JSON document that are used.
// Pointer fields distinguish "absent" from zero.
type ytDlpJSON struct {
	ID        string   `json:"id"`
	Title     *string  `json:"title"`
	Uploader  *string  `json:"uploader"`
	Duration  *float64 `json:"duration"`
	Thumbnail *string  `json:"thumbnail"`
	ViewCount *int64   `json:"view_count"`
	Ext       string   `json:"ext"`
	Filename  string   `json:"filename"`
	LegacyFN  string   `json:"_filename"`
	Formats   []struct {
		FormatID       string   `json:"format_id"`
		Ext            string   `json:"ext"`
		Height         *float64 `json:"height"`
		VCodec         *string  `json:"vcodec"`
		Filesize       *float64 `json:"filesize"`
		FilesizeApprox *float64 `json:"filesize_approx"`
	} `json:"formats"`
}

// Metadata is the engine's description of one video.
type Metadata struct {
	ID        string
	Title     string
	Uploader  string
	Duration  float64
	Thumbnail string
	ViewCount int64
	Ext       string
	Filename  string
	Formats   []domain.RawFormat

	// EngineError is the engine's error message when it exited non-zero
	// after printing this document.
	EngineError string
}

var errNoDocument = errors.New("engine produced no metadata")

// parseMetadata decodes the last JSON object line in out. The engine may
// print progress or warnings before it.
func parseMetadata(out []byte) (*Metadata, error) {
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var raw ytDlpJSON
		if err := json.Unmarshal(line, &raw); err != nil {
			return nil, err
		}
		return raw.toMetadata(), nil
	}
	return nil, errNoDocument
}

func (r *ytDlpJSON) toMetadata() *Metadata {
	m := &Metadata{
		ID:       r.ID,
		Ext:      r.Ext,
		Filename: r.Filename,
	}
	if m.Filename == "" {
		m.Filename = r.LegacyFN
	}
	if r.Title != nil {
		m.Title = *r.Title
	}
	if r.Uploader != nil {
		m.Uploader = *r.Uploader
	}
	if r.Duration != nil && *r.Duration > 0 {
		m.Duration = *r.Duration
	}
	if r.Thumbnail != nil {
		m.Thumbnail = *r.Thumbnail
	}
	if r.ViewCount != nil && *r.ViewCount > 0 {
		m.ViewCount = *r.ViewCount
	}

	m.Formats = make([]domain.RawFormat, 0, len(r.Formats))
	for _, f := range r.Formats {
		rf := domain.RawFormat{
			FormatID: f.FormatID,
			Ext:      f.Ext,
			VCodec:   f.VCodec,
		}
		if f.Height != nil {
			h := int(*f.Height)
			rf.Height = &h
		}
		size := f.Filesize
		if size == nil {
			size = f.FilesizeApprox
		}
		if size != nil {
			s := int64(*size)
			rf.Filesize = &s
		}
		m.Formats = append(m.Formats, rf)
	}
	return m
}

// VideoInfo builds the client-facing description, applying defaults for
// fields the engine left out.
func (m *Metadata) VideoInfo() domain.VideoInfo {
	info := domain.VideoInfo{
		Title:     m.Title,
		Duration:  int(m.Duration),
		Thumbnail: m.Thumbnail,
		Uploader:  m.Uploader,
		ViewCount: m.ViewCount,
		Formats:   domain.BuildFormats(m.Formats),
	}
	if strings.TrimSpace(info.Title) == "" {
		info.Title = domain.UnknownTitle
	}
	if strings.TrimSpace(info.Uploader) == "" {
		info.Uploader = domain.UnknownUploader
	}
	return info
}

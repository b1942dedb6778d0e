package domain

import (
	"strings"
	"time"
)

// Artifact is a downloaded media file in the artifact store.
type Artifact struct {
	JobID     JobID     `json:"job_id"`
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	Title     string    `json:"title,omitempty"`
	SourceURL string    `json:"source_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Ext returns the artifact's extension without the leading dot.
func (a Artifact) Ext() string {
	i := strings.LastIndexByte(a.Filename, '.')
	if i < 0 {
		return ""
	}
	return a.Filename[i+1:]
}

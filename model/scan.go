// Package model - Scan defines the struct for archived scan uploads
package model

import "time"

// Scan represents one archived scanner CSV upload. The raw bytes are
// kept so an archived scan can be reloaded and re-normalized later;
// ContentSha deduplicates identical uploads.
type Scan struct {
	Key        string    `json:"_key,omitempty"`
	FileName   string    `json:"file_name"`
	ContentSha string    `json:"contentsha"`
	RowCount   int       `json:"row_count"`
	Columns    []string  `json:"columns"`
	Content    []byte    `json:"content,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
	ObjType    string    `json:"objtype,omitempty"`
}

// NewScan creates a new Scan instance with default values
func NewScan() *Scan {
	return &Scan{
		ObjType:    "Scan",
		UploadedAt: time.Now(),
	}
}

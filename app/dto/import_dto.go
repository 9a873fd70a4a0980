package dto

import "io"

// ImportUsersRequest carries the uploaded user file into the import flow
type ImportUsersRequest struct {
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	FileSize    int64     `json:"file_size"`
	File        io.Reader `json:"-"`
}

// ImportUsersResponse reports per-row accept/skip counts for one upload
type ImportUsersResponse struct {
	ProcessedRecords int `json:"processed_records"`
	SkippedRecords   int `json:"skipped_records"`
}

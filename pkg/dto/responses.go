package dto

import "time"

type CommandResponse struct {
	Command string `json:"command"`
	Status  string `json:"status"`
}

type RecordingResponse struct {
	FileName string `json:"fileName"`
}

type PhotoResponse struct {
	FileName  string    `json:"fileName"`
	Timestamp time.Time `json:"timestamp"`
}

type MediaItem struct {
	ID        string    `json:"id"`
	FileName  string    `json:"file_name"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

type MediaListResponse struct {
	Items []MediaItem `json:"items"`
	Total int         `json:"total"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

package internal

import "time"

// VideoRecord is the canonical metadata result for one source video. The same
// record is cached under both the original URL and the videoId so either key
// resolves it.
type VideoRecord struct {
	Platform        Platform  `json:"platform"`
	VideoID         string    `json:"videoId"`
	OriginalURL     string    `json:"originalUrl"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	ThumbnailURL    string    `json:"thumbnailUrl"`
	DurationSeconds float64   `json:"durationSeconds"`
	Resolution      string    `json:"resolution"`
	SizeBytes       *int64    `json:"sizeBytes,omitempty"`
	ContainerFormat string    `json:"containerFormat"`
	DirectMediaURL  string    `json:"-"`
	FetchedAt       time.Time `json:"-"`
}

// ArtifactFile is a generated preview clip on disk, keyed by videoId.
type ArtifactFile struct {
	VideoID   string    `json:"videoId"`
	Path      string    `json:"path"`
	SizeBytes int64     `json:"sizeBytes"`
	CreatedAt time.Time `json:"createdAt"`
}

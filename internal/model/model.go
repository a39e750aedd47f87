package model

import (
	"encoding/json"
	"time"
)

// JobStatus is the lifecycle state of a Job. Transitions only move
// pending -> processing -> {completed, failed}; the last two are terminal.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions are permitted.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// TransformKind names one unit of work against a source video.
type TransformKind string

const (
	KindProbe     TransformKind = "probe"
	KindTrim      TransformKind = "trim"
	KindOverlay   TransformKind = "overlay"
	KindWatermark TransformKind = "watermark"
	KindQuality   TransformKind = "quality"
)

// Video is a source upload. Rows are immutable after creation except for
// the metadata fields, which the probe job backfills exactly once.
type Video struct {
	ID               string    `gorm:"type:uuid;primaryKey" json:"id"`
	Filename         string    `gorm:"type:varchar(255);not null" json:"filename"`
	OriginalFilename string    `gorm:"type:varchar(255);not null" json:"original_filename"`
	FilePath         string    `gorm:"type:varchar(500);not null" json:"file_path"`
	FileSize         int64     `gorm:"not null" json:"file_size"`
	Duration         *float64  `json:"duration,omitempty"`
	Width            *int      `json:"width,omitempty"`
	Height           *int      `json:"height,omitempty"`
	Format           *string   `gorm:"type:varchar(100)" json:"format,omitempty"`
	MimeType         string    `gorm:"type:varchar(100);not null" json:"mime_type"`
	UploadTime       time.Time `json:"upload_time"`
}

// ProcessedVideo is a derived artifact: the output of exactly one transform
// applied to exactly one source video. The source reference never changes.
type ProcessedVideo struct {
	ID               string          `gorm:"type:uuid;primaryKey" json:"id"`
	OriginalVideoID  string          `gorm:"type:uuid;not null;index" json:"original_video_id"`
	Filename         string          `gorm:"type:varchar(255);not null" json:"filename"`
	FilePath         string          `gorm:"type:varchar(500);not null" json:"file_path"`
	FileSize         int64           `gorm:"not null" json:"file_size"`
	ProcessingType   TransformKind   `gorm:"type:varchar(50);not null" json:"processing_type"`
	ProcessingConfig json.RawMessage `gorm:"type:jsonb" json:"processing_config,omitempty"`
	Quality          *string         `gorm:"type:varchar(20)" json:"quality,omitempty"`
	Duration         *float64        `json:"duration,omitempty"`
	Width            *int            `json:"width,omitempty"`
	Height           *int            `json:"height,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Overlay describes a decorative element attached to one artifact. It owns
// no file beyond an optional asset reference in Content.
type Overlay struct {
	ID               string    `gorm:"type:uuid;primaryKey" json:"id"`
	ProcessedVideoID string    `gorm:"type:uuid;not null;index" json:"processed_video_id"`
	OverlayType      string    `gorm:"type:varchar(20);not null" json:"overlay_type"`
	Content          string    `gorm:"type:text" json:"content"`
	PositionX        int       `json:"position_x"`
	PositionY        int       `json:"position_y"`
	StartTime        float64   `json:"start_time"`
	EndTime          *float64  `json:"end_time,omitempty"`
	FontSize         *int      `json:"font_size,omitempty"`
	FontColor        string    `gorm:"type:varchar(50)" json:"font_color,omitempty"`
	Language         string    `gorm:"type:varchar(10)" json:"language,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Job is the ledger entry for one submitted transform. Its ID doubles as
// the queue task ID so pollers can correlate the two.
type Job struct {
	ID             string          `gorm:"type:uuid;primaryKey" json:"job_id"`
	VideoID        string          `gorm:"type:uuid;not null;index" json:"video_id"`
	JobType        TransformKind   `gorm:"type:varchar(50);not null" json:"job_type"`
	Status         JobStatus       `gorm:"type:varchar(20);not null" json:"status"`
	Progress       int             `json:"progress"`
	ResultFilePath string          `gorm:"type:varchar(500)" json:"result_file_path,omitempty"`
	ErrorMessage   string          `gorm:"type:text" json:"error_message,omitempty"`
	Config         json.RawMessage `gorm:"type:jsonb" json:"config,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

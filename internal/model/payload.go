package model

// Per-kind transform payloads. One typed struct per kind instead of a
// loose key/value bag; the raw JSON is still persisted verbatim on the
// Job row for auditing. Field names match the public request schema.

type TrimConfig struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

type OverlayConfig struct {
	OverlayType string   `json:"overlay_type"`
	Content     string   `json:"content"`
	PositionX   int      `json:"position_x"`
	PositionY   int      `json:"position_y"`
	StartTime   float64  `json:"start_time"`
	EndTime     *float64 `json:"end_time,omitempty"`
	FontSize    int      `json:"font_size,omitempty"`
	FontColor   string   `json:"font_color,omitempty"`
	Language    string   `json:"language,omitempty"`
}

type WatermarkConfig struct {
	WatermarkPath string  `json:"watermark_path"`
	Position      string  `json:"position,omitempty"`
	Opacity       float64 `json:"opacity,omitempty"`
}

type QualityConfig struct {
	Qualities []string `json:"qualities"`
}

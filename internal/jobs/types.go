package jobs

import "time"

type Status string

const (
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

type EnqueueRequest struct {
	ID      string
	Payload Payload
}

type Payload struct {
	DocumentPath string `json:"document_path"`
	OriginalName string `json:"original_name"`
	WorkDir      string `json:"work_dir"`
}

// SegmentOutcome is the per-segment result recorded against a job.
type SegmentOutcome struct {
	Segment      string `json:"segment"`
	VideoID      string `json:"video_id,omitempty"`
	Error        string `json:"error,omitempty"`
	SkippedLines int    `json:"skipped_lines,omitempty"`
}

func (o SegmentOutcome) Succeeded() bool {
	return o.VideoID != "" && o.Error == ""
}

type Job struct {
	ID             string           `json:"id"`
	Status         Status           `json:"status"`
	Videos         []string         `json:"videos"`
	Segments       []SegmentOutcome `json:"segments,omitempty"`
	PartialFailure bool             `json:"partial_failure"`
	Error          string           `json:"error,omitempty"`
	Payload        Payload          `json:"payload"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Package status renders operation records into the payloads returned to
// pollers. Projection is read-only and works on registry snapshots.
package status

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"longvideo/internal/domain"
	"longvideo/internal/segment"
)

const promptPreviewRunes = 50

// Payload is the status view of one operation.
type Payload struct {
	OperationID    string        `json:"operation_id"`
	Kind           domain.Kind   `json:"kind"`
	Status         domain.Status `json:"status"`
	Message        string        `json:"message"`
	ElapsedSeconds float64       `json:"elapsed_seconds"`
	VideoURL       *string       `json:"video_url"`
	Error          string        `json:"error,omitempty"`
	*Progress
}

// Progress holds the segment fields present only for multi-segment operations.
type Progress struct {
	ProgressPercentage   int      `json:"progress_percentage"`
	Plan                 []int    `json:"plan"`
	CompletedSegments    []int    `json:"completed_segments"`
	CurrentSegment       int      `json:"current_segment"`
	TotalDuration        int      `json:"total_duration"`
	EstimatedTimeMinutes int      `json:"estimated_time_minutes"`
	SegmentURLs          []string `json:"segment_urls"`
}

// Summary is the diagnostic listing entry of one operation.
type Summary struct {
	OperationID    string        `json:"operation_id"`
	Kind           domain.Kind   `json:"kind"`
	Status         domain.Status `json:"status"`
	Prompt         string        `json:"prompt"`
	CreatedAt      time.Time     `json:"created_at"`
	ElapsedSeconds float64       `json:"elapsed_seconds"`
}

// Projector turns operations into payloads. URLPrefix is prepended to the
// artifact base name to build video URLs.
type Projector struct {
	URLPrefix       string
	SegmentEstimate time.Duration
}

// Project builds the status payload of op as seen at now.
func (p Projector) Project(op domain.Operation, now time.Time) Payload {
	out := Payload{
		OperationID:    op.ID,
		Kind:           op.Kind,
		Status:         op.Status,
		Message:        message(op),
		ElapsedSeconds: elapsed(op, now),
	}
	if op.Status == domain.StatusCompleted && op.ArtifactPath != "" {
		u := p.URL(op.ArtifactPath)
		out.VideoURL = &u
	}
	if op.Status == domain.StatusError {
		out.Error = op.ErrorDetail
	}
	if op.Kind == domain.KindMulti && op.Long != nil {
		urls := make([]string, 0, len(op.Long.Artifacts))
		for _, path := range op.Long.Artifacts {
			urls = append(urls, p.URL(path))
		}
		out.Progress = &Progress{
			ProgressPercentage:   op.Long.Progress,
			Plan:                 append([]int{}, op.Long.Plan...),
			CompletedSegments:    append([]int{}, op.Long.CompletedSegments...),
			CurrentSegment:       op.Long.CurrentSegment,
			TotalDuration:        segment.Total(op.Long.Plan),
			EstimatedTimeMinutes: segment.EstimateMinutes(op.Long.Plan, p.SegmentEstimate),
			SegmentURLs:          urls,
		}
	}
	return out
}

// Summarize builds the listing entry of op as seen at now.
func (p Projector) Summarize(op domain.Operation, now time.Time) Summary {
	return Summary{
		OperationID:    op.ID,
		Kind:           op.Kind,
		Status:         op.Status,
		Prompt:         Truncate(op.Prompt, promptPreviewRunes),
		CreatedAt:      op.CreatedAt,
		ElapsedSeconds: elapsed(op, now),
	}
}

// URL derives the public URL of an artifact from its base name.
func (p Projector) URL(path string) string {
	return strings.TrimRight(p.URLPrefix, "/") + "/" + filepath.Base(path)
}

// Truncate shortens s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func elapsed(op domain.Operation, now time.Time) float64 {
	end := now
	if op.Status.IsTerminal() && op.CompletedAt != nil {
		end = *op.CompletedAt
	}
	d := end.Sub(op.CreatedAt)
	if d < 0 {
		d = 0
	}
	return math.Round(d.Seconds()*10) / 10
}

func message(op domain.Operation) string {
	switch op.Status {
	case domain.StatusCompleted:
		return "Video generation completed"
	case domain.StatusError:
		return "Video generation failed: " + op.ErrorDetail
	case domain.StatusPending:
		return "Video generation queued"
	}
	if op.Kind == domain.KindMulti && op.Long != nil && len(op.Long.Plan) > 0 {
		return fmt.Sprintf("Generating segment %d of %d", op.Long.CurrentSegment+1, len(op.Long.Plan))
	}
	return "Video generation in progress"
}

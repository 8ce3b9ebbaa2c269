package domain

import "time"

// Kind distinguishes a plain one-shot generation from a chained long video.
type Kind string

const (
	KindSingle Kind = "single"
	KindMulti  Kind = "multi"
)

// Status enumerates the lifecycle states of an Operation.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// IsTerminal reports whether no further transitions can happen.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// SingleVideo carries the fields relevant only to KindSingle.
type SingleVideo struct {
	DurationSeconds int
}

// LongVideo carries the segment bookkeeping of a KindMulti operation.
type LongVideo struct {
	Plan              []int
	SegmentPrompts    []string
	CurrentSegment    int
	CompletedSegments []int
	Artifacts         []string
	Progress          int
}

// Operation is the orchestration record of one generation request. Exactly
// one of Single and Long is set, matching Kind.
type Operation struct {
	ID           string
	Kind         Kind
	Status       Status
	Prompt       string
	Config       GenerationConfig
	ArtifactPath string
	Single       *SingleVideo
	Long         *LongVideo
	CreatedAt    time.Time
	CompletedAt  *time.Time
	ErrorDetail  string
}

// NewSingleOperation builds a processing record for a one-shot generation.
func NewSingleOperation(prompt string, cfg GenerationConfig, durationSeconds int) Operation {
	return Operation{
		Kind:   KindSingle,
		Status: StatusProcessing,
		Prompt: prompt,
		Config: cfg,
		Single: &SingleVideo{DurationSeconds: durationSeconds},
	}
}

// NewLongOperation builds a processing record for a chained multi-segment
// generation following plan.
func NewLongOperation(prompt string, cfg GenerationConfig, plan []int, segmentPrompts []string) Operation {
	return Operation{
		Kind:   KindMulti,
		Status: StatusProcessing,
		Prompt: prompt,
		Config: cfg,
		Long: &LongVideo{
			Plan:              append([]int(nil), plan...),
			SegmentPrompts:    append([]string(nil), segmentPrompts...),
			CompletedSegments: []int{},
		},
	}
}

// Segments returns the segment durations the orchestrator has to produce.
// A single operation is a plan of length one.
func (o Operation) Segments() []int {
	switch {
	case o.Long != nil:
		return append([]int(nil), o.Long.Plan...)
	case o.Single != nil:
		return []int{o.Single.DurationSeconds}
	default:
		return nil
	}
}

// ArtifactPaths lists every file on disk backing this operation.
func (o Operation) ArtifactPaths() []string {
	if o.Long != nil {
		return append([]string(nil), o.Long.Artifacts...)
	}
	if o.ArtifactPath != "" {
		return []string{o.ArtifactPath}
	}
	return nil
}

// Clone returns a deep copy so readers never share slices with the writer.
func (o Operation) Clone() Operation {
	out := o
	if o.Single != nil {
		s := *o.Single
		out.Single = &s
	}
	if o.Long != nil {
		l := *o.Long
		l.Plan = append([]int(nil), o.Long.Plan...)
		l.SegmentPrompts = append([]string(nil), o.Long.SegmentPrompts...)
		l.CompletedSegments = append([]int{}, o.Long.CompletedSegments...)
		l.Artifacts = append([]string(nil), o.Long.Artifacts...)
		out.Long = &l
	}
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

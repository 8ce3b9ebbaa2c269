package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"longvideo/internal/domain"
	"longvideo/internal/segment"
)

const (
	maxBodyBytes    = 1 << 20
	maxPromptRunes  = 4000
	maxSingleLength = segment.BaseSeconds
)

type generateRequest struct {
	Prompt          string `json:"prompt"`
	AspectRatio     string `json:"aspect_ratio"`
	Resolution      string `json:"resolution"`
	NegativePrompt  string `json:"negative_prompt"`
	DurationSeconds *int   `json:"duration_seconds"`
}

type generateLongRequest struct {
	generateRequest
	PerSegmentPrompts []string `json:"per_segment_prompts"`
}

type statusRequest struct {
	OperationID string `json:"operation_id"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return fmt.Errorf("%w: request body is empty", domain.ErrInvalidRequest)
		}
		return fmt.Errorf("%w: invalid payload", domain.ErrInvalidRequest)
	}
	return nil
}

// normalizePrompt trims and NFC-normalizes text so visually identical
// prompts reach the gateway byte-identical.
func normalizePrompt(raw string) string {
	return norm.NFC.String(strings.TrimSpace(raw))
}

func validatePrompt(field, prompt string) error {
	if prompt == "" {
		return fmt.Errorf("%w: %s is required", domain.ErrInvalidRequest, field)
	}
	if utf8.RuneCountInString(prompt) > maxPromptRunes {
		return fmt.Errorf("%w: %s exceeds %d characters", domain.ErrInvalidRequest, field, maxPromptRunes)
	}
	return nil
}

// single validates a one-shot request.
func (req generateRequest) single() (domain.Operation, error) {
	prompt := normalizePrompt(req.Prompt)
	if err := validatePrompt("prompt", prompt); err != nil {
		return domain.Operation{}, err
	}
	duration := maxSingleLength
	if req.DurationSeconds != nil {
		duration = *req.DurationSeconds
	}
	if duration < 1 || duration > maxSingleLength {
		return domain.Operation{}, fmt.Errorf("%w: duration_seconds must be between 1 and %d", domain.ErrInvalidRequest, maxSingleLength)
	}
	cfg, err := domain.NewGenerationConfig(req.AspectRatio, req.Resolution, normalizePrompt(req.NegativePrompt))
	if err != nil {
		return domain.Operation{}, err
	}
	return domain.NewSingleOperation(prompt, cfg, duration), nil
}

// long validates a multi-segment request against maxDuration.
func (req generateLongRequest) long(maxDuration int) (domain.Operation, error) {
	prompt := normalizePrompt(req.Prompt)
	if err := validatePrompt("prompt", prompt); err != nil {
		return domain.Operation{}, err
	}
	if req.DurationSeconds == nil {
		return domain.Operation{}, fmt.Errorf("%w: duration_seconds is required", domain.ErrInvalidRequest)
	}
	duration := *req.DurationSeconds
	if duration < 1 || duration > maxDuration {
		return domain.Operation{}, fmt.Errorf("%w: duration_seconds must be between 1 and %d", domain.ErrInvalidRequest, maxDuration)
	}
	cfg, err := domain.NewGenerationConfig(req.AspectRatio, req.Resolution, normalizePrompt(req.NegativePrompt))
	if err != nil {
		return domain.Operation{}, err
	}

	plan := segment.Plan(duration)
	if extensions := len(plan) - 1; len(req.PerSegmentPrompts) > extensions {
		return domain.Operation{}, fmt.Errorf("%w: per_segment_prompts has %d entries but the plan has %d extensions", domain.ErrInvalidRequest, len(req.PerSegmentPrompts), extensions)
	}
	overrides := make([]string, len(req.PerSegmentPrompts))
	for i, p := range req.PerSegmentPrompts {
		overrides[i] = normalizePrompt(p)
		if utf8.RuneCountInString(overrides[i]) > maxPromptRunes {
			return domain.Operation{}, fmt.Errorf("%w: per_segment_prompts[%d] exceeds %d characters", domain.ErrInvalidRequest, i, maxPromptRunes)
		}
	}
	return domain.NewLongOperation(prompt, cfg, plan, overrides), nil
}

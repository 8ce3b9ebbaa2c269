package domain

import (
	"fmt"
	"strings"
)

// AspectRatio enumerates the frame shapes accepted by the generation service.
type AspectRatio string

const (
	AspectLandscape AspectRatio = "16:9"
	AspectPortrait  AspectRatio = "9:16"
)

// Resolution enumerates supported output resolutions.
type Resolution string

const (
	Resolution720p  Resolution = "720p"
	Resolution1080p Resolution = "1080p"
)

// GenerationConfig is validated once at request time and never changes
// afterwards.
type GenerationConfig struct {
	AspectRatio    AspectRatio `json:"aspect_ratio"`
	Resolution     Resolution  `json:"resolution"`
	NegativePrompt string      `json:"negative_prompt,omitempty"`
}

// NewGenerationConfig validates raw request values. Empty aspect ratio and
// resolution fall back to 16:9 and 720p.
func NewGenerationConfig(aspect, resolution, negative string) (GenerationConfig, error) {
	cfg := GenerationConfig{
		AspectRatio:    AspectRatio(strings.TrimSpace(aspect)),
		Resolution:     Resolution(strings.ToLower(strings.TrimSpace(resolution))),
		NegativePrompt: strings.TrimSpace(negative),
	}
	if cfg.AspectRatio == "" {
		cfg.AspectRatio = AspectLandscape
	}
	if cfg.Resolution == "" {
		cfg.Resolution = Resolution720p
	}
	switch cfg.AspectRatio {
	case AspectLandscape, AspectPortrait:
	default:
		return GenerationConfig{}, fmt.Errorf("%w: aspect_ratio must be 16:9 or 9:16", ErrInvalidRequest)
	}
	switch cfg.Resolution {
	case Resolution720p, Resolution1080p:
	default:
		return GenerationConfig{}, fmt.Errorf("%w: resolution must be 720p or 1080p", ErrInvalidRequest)
	}
	return cfg, nil
}

package segment

import (
	"strings"
	"testing"
)

func TestExtendPromptFirstSegmentUnchanged(t *testing.T) {
	for _, total := range []int{1, 3, 20} {
		if got := ExtendPrompt("a fox in the snow", 0, total); got != "a fox in the snow" {
			t.Fatalf("ExtendPrompt(_, 0, %d) = %q", total, got)
		}
	}
}

func TestExtendPromptRotation(t *testing.T) {
	base := "a fox in the snow"
	seen := map[string]bool{}
	for i := 1; i <= len(continuationPhrases); i++ {
		got := ExtendPrompt(base, i, 30)
		if !strings.HasSuffix(got, base) {
			t.Fatalf("segment %d prompt %q does not end with base", i, got)
		}
		prefix := strings.TrimSuffix(got, base)
		if strings.TrimSpace(prefix) == "" {
			t.Fatalf("segment %d has empty continuation prefix", i)
		}
		if seen[prefix] {
			t.Fatalf("segment %d repeats prefix %q before rotation is exhausted", i, prefix)
		}
		seen[prefix] = true
	}

	last := ExtendPrompt(base, len(continuationPhrases), 30)
	for i := len(continuationPhrases) + 1; i < 30; i++ {
		if got := ExtendPrompt(base, i, 30); got != last {
			t.Fatalf("segment %d = %q, want last phrase reused %q", i, got, last)
		}
	}
}

func TestPromptFor(t *testing.T) {
	base := "city at night"
	overrides := []string{"zoom into a window", "  "}

	tests := []struct {
		name  string
		index int
		want  string
	}{
		{name: "first segment ignores overrides", index: 0, want: base},
		{name: "override wins", index: 1, want: "zoom into a window"},
		{name: "blank override falls back", index: 2, want: ExtendPrompt(base, 2, 4)},
		{name: "beyond overrides falls back", index: 3, want: ExtendPrompt(base, 3, 4)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := PromptFor(base, overrides, tc.index, 4); got != tc.want {
				t.Fatalf("PromptFor(%d) = %q, want %q", tc.index, got, tc.want)
			}
		})
	}
}

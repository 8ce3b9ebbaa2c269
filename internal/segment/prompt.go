package segment

import "strings"

var continuationPhrases = []string{
	"Continuing seamlessly from the previous shot, ",
	"The scene carries on with the same motion and lighting: ",
	"As the camera keeps rolling without a cut, ",
	"Building naturally on the moment before, ",
	"Still in one continuous take, ",
}

// ExtendPrompt returns the prompt for segment index of a plan with total
// segments. Segment 0 uses base unchanged; extensions are prefixed with a
// continuation phrase taken in order, and the last phrase repeats once the
// rotation runs out.
func ExtendPrompt(base string, index, total int) string {
	if index <= 0 {
		return base
	}
	phrase := continuationPhrases[min(index-1, len(continuationPhrases)-1)]
	return phrase + base
}

// PromptFor resolves the effective prompt for a segment. overrides holds
// explicit prompts for the extensions, overrides[0] being segment 1. A blank
// or missing override falls back to ExtendPrompt.
func PromptFor(base string, overrides []string, index, total int) string {
	if index >= 1 && index-1 < len(overrides) {
		if o := strings.TrimSpace(overrides[index-1]); o != "" {
			return o
		}
	}
	return ExtendPrompt(base, index, total)
}

package providers

import (
	"strings"

	"github.com/nextlevelbuilder/forgecode/internal/tokencount"
)

// tiktokenEstimator backs the informational refinement EstimateUsage
// attaches alongside the contractual whitespace count; shared across
// calls since it lazily loads its encoding once.
var tiktokenEstimator = tokencount.NewEstimator()

// EstimateUsage implements the fallback token accounting rule from
// spec.md §3: output = whitespace word count of emitted text, input =
// output / 3. This estimator is the contractual one — the invariant
// total ≥ input + output depends on it — and it is never silently
// replaced by the tiktoken refinement alongside it.
func EstimateUsage(emittedText string) Usage {
	words := len(strings.Fields(emittedText))
	input := words / 3
	return Usage{
		InputTokens:                   input,
		OutputTokens:                  words,
		TotalTokens:                   input + words,
		TokensEstimated:               true,
		EstimatedTiktokenOutputTokens: tiktokenEstimator.Count(emittedText),
	}
}

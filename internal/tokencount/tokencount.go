// Package tokencount wraps github.com/pkoukk/tiktoken-go to produce an
// informational, more precise token count alongside the contractual
// whitespace estimator in internal/providers. It never participates in
// the invariant the whitespace estimator guarantees (total ≥ input +
// output) — it is purely an additional metadata field, per
// SPEC_FULL.md §4.2.
//
// Grounded on kadirpekel-hector's use of tiktoken-go for prompt token
// budgeting, adopted here as a refinement rather than the primary
// accounting mechanism the spec's invariant depends on.
package tokencount

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Estimator lazily loads a cl100k_base encoding once and reuses it
// across calls; tiktoken.GetEncoding does its own internal caching but
// this avoids repeating the lookup/error-handling dance at every call
// site.
type Estimator struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

// NewEstimator returns an Estimator backed by the cl100k_base encoding,
// the encoding shared by the Claude/GPT-family models this build talks
// to.
func NewEstimator() *Estimator {
	return &Estimator{}
}

func (e *Estimator) encoding() (*tiktoken.Tiktoken, error) {
	e.once.Do(func() {
		e.enc, e.err = tiktoken.GetEncoding("cl100k_base")
	})
	return e.enc, e.err
}

// Count returns the tiktoken token count for text, or 0 if the
// encoding failed to load (never fatal — this is informational only).
func (e *Estimator) Count(text string) int {
	enc, err := e.encoding()
	if err != nil || enc == nil {
		return 0
	}
	return len(enc.Encode(text, nil, nil))
}

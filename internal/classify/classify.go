// Package classify assigns section labels to normalized text units.
// Classification drives the aggregator downstream: headers open variant
// groups, bodies join them, pricing tables stay out.
package classify

import (
	"context"
	"fmt"

	"github.com/siwzmap/siwzmap/internal/document"
)

// Classifier assigns a label to every unit. Implementations must return
// exactly one classification per input unit, in input order.
type Classifier interface {
	Classify(ctx context.Context, units []document.Unit) ([]document.Classification, error)
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// contextWindow caps how much surrounding text is included in a prompt.
const contextWindow = 300

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// prevNext returns the neighbouring unit texts for prompt context.
func prevNext(units []document.Unit, i int) (prev, next string) {
	if i > 0 {
		prev = clip(units[i-1].Text, contextWindow)
	}
	if i < len(units)-1 {
		next = clip(units[i+1].Text, contextWindow)
	}
	return prev, next
}

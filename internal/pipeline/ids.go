package pipeline

import "github.com/google/uuid"

// newID returns a unique id for jobs and documents.
func newID() string {
	return uuid.NewString()
}

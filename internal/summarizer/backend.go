package summarizer

import "context"

const serviceName = "summarization"

// Profile selects a model and target length for one call.
type Profile struct {
	Model     string
	MaxLength int
	MinLength int
}

// Backend is one call to the external summarization service.
// A 4xx answer must be returned as *apperr.ServiceRejectedError so it is not retried.
type Backend interface {
	Summarize(ctx context.Context, text string, profile Profile) (string, error)
}

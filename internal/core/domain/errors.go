package domain

import "errors"

// Domain errors represent pipeline-level failures. Stage-local errors
// (backend unavailable, schema invalid) are absorbed into a fallback report
// by the analysis service and never surfaced to callers as hard failures.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrBackendUnavailable indicates the model backend could not be reached
	// after retry exhaustion (network failure, timeout, or rate limiting).
	// Recovered via the deterministic fallback path.
	ErrBackendUnavailable = errors.New("model backend unavailable")

	// ErrSchemaInvalid indicates model output could not be parsed into the
	// required response schema. Recovered via the deterministic fallback path.
	ErrSchemaInvalid = errors.New("model response does not match schema")

	// ErrBudgetExceeded indicates the cost ceiling for the current period has
	// been reached. Subsequent runs take the fallback path until it resets.
	ErrBudgetExceeded = errors.New("cost budget exceeded")

	// ErrSignatureInvalid indicates an inbound webhook failed authentication.
	// The request is rejected at the boundary and never reaches the pipeline.
	ErrSignatureInvalid = errors.New("webhook signature invalid")

	// ErrAIDisabled indicates the AI kill switch is set in configuration.
	ErrAIDisabled = errors.New("AI analysis disabled by configuration")

	// ErrLLMUnavailable indicates no LLM service is configured at all.
	ErrLLMUnavailable = errors.New("LLM service unavailable")
)

// internal/outreach/classify.go
package outreach

import (
	"context"
	"errors"

	"github.com/xkilldash9x/courier-cli/api/schemas"
)

// classify maps a raw attempt error onto the terminal status and reason for
// the outcome record. All error-to-outcome policy lives here so the machine
// stages stay mechanical.
//
// Precedence: a rate-limit signal outranks everything because it is a control
// signal, not a defect. Cancellation of the batch context outranks the defect
// taxonomy so an aborted attempt is never counted against the session's
// failure streak. SubmissionError is checked before ElementNotFoundError: a
// resolver exhaustion inside the connect dialog is a submission failure, the
// element detail stays available through Unwrap.
func classify(ctx context.Context, err error) (schemas.OutcomeStatus, schemas.OutcomeReason) {
	var (
		submission *schemas.SubmissionError
		notFound   *schemas.ElementNotFoundError
		content    *schemas.ContentError
		integrity  *schemas.DataIntegrityError
	)
	switch {
	case schemas.IsRateLimit(err):
		return schemas.StatusSkipped, schemas.SkipRateLimited
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return schemas.StatusSkipped, schemas.SkipCancelled
	case errors.As(err, &submission):
		return schemas.StatusFailed, schemas.FailedSubmission
	case errors.As(err, &notFound):
		return schemas.StatusFailed, schemas.FailedElement
	case errors.As(err, &content):
		return schemas.StatusFailed, schemas.FailedContent
	case errors.As(err, &integrity):
		return schemas.StatusFailed, schemas.FailedData
	default:
		return schemas.StatusFailed, ""
	}
}

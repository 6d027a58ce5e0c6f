package signing

import (
	"errors"
	"fmt"

	"github.com/LavonTMCQ/misterbot/internal/domain"
)

// FlowError wraps a failure with the signing stage it occurred in, so
// callers can present stage-specific remediation (re-approve signing,
// wait and retry, contact support) instead of one generic message.
type FlowError struct {
	Stage domain.SigningStage
	Err   error
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("signing: %s stage: %v", e.Stage, e.Err)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

// StageOf returns the stage recorded in err's FlowError, or StageValidate
// when err carries no stage information.
func StageOf(err error) domain.SigningStage {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Stage
	}
	return domain.StageValidate
}

package protocol

import (
	"encoding/json"
	"fmt"
)

// Outcome is the tag of an ActionResult.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// ActionResult is Success(message?) or Failure(message?). It serializes as
// {"success":{"message":"…"}} or {"failure":{"message":"…"}}; an empty
// message is omitted.
type ActionResult struct {
	Outcome Outcome
	Message string
}

// Success builds a successful result. message may be empty.
func Success(message string) ActionResult {
	return ActionResult{Outcome: OutcomeSuccess, Message: message}
}

// Failure builds a business failure. message may be empty.
func Failure(message string) ActionResult {
	return ActionResult{Outcome: OutcomeFailure, Message: message}
}

func (r ActionResult) Succeeded() bool {
	return r.Outcome == OutcomeSuccess
}

func (r ActionResult) String() string {
	if r.Message == "" {
		return string(r.Outcome)
	}
	return fmt.Sprintf("%s: %s", r.Outcome, r.Message)
}

type resultBody struct {
	Message string `json:"message,omitempty"`
}

func (r ActionResult) MarshalJSON() ([]byte, error) {
	switch r.Outcome {
	case OutcomeSuccess, OutcomeFailure:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOutcome, r.Outcome)
	}
	return json.Marshal(map[Outcome]resultBody{r.Outcome: {Message: r.Message}})
}

func (r *ActionResult) UnmarshalJSON(data []byte) error {
	var raw map[Outcome]*resultBody
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("%w: want exactly one outcome, got %d", ErrInvalidMessage, len(raw))
	}
	for outcome, body := range raw {
		if outcome != OutcomeSuccess && outcome != OutcomeFailure {
			return fmt.Errorf("%w: %q", ErrUnknownOutcome, outcome)
		}
		r.Outcome = outcome
		r.Message = ""
		if body != nil {
			r.Message = body.Message
		}
	}
	return nil
}

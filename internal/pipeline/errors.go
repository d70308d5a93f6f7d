package pipeline

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why an ingestion run stopped.
type ErrorKind string

const (
	// KindClientInput is a problem with the uploaded document itself.
	KindClientInput ErrorKind = "client_input"
	// KindExtraction means no text could be read from the document.
	KindExtraction ErrorKind = "extraction"
	// KindModelCall is a failed text-generation call. Runs degrade to zero
	// transactions instead of failing, so it only shows up in logs and metrics.
	KindModelCall ErrorKind = "model_call"
	// KindStore is a failed record-store call. Earlier writes stay committed.
	KindStore ErrorKind = "store"
)

var (
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrNoText                 = errors.New("no text extracted from document")
	ErrEmptyApplicantID       = errors.New("record store returned an empty applicant id")
)

// RunError is returned by Ingest when a run ends in the failed state.
// Stage is the last stage the run reached before failing.
type RunError struct {
	Kind  ErrorKind
	Stage Stage
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s error after stage %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func runError(kind ErrorKind, stage Stage, err error) error {
	return &RunError{Kind: kind, Stage: stage, Err: err}
}

// KindOf returns the kind of a *RunError in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var re *RunError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

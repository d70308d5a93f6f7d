package domain

import "errors"

// ErrApplicantNotFound is returned by record stores when an applicant id is unknown.
var ErrApplicantNotFound = errors.New("applicant not found")

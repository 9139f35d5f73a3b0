// Package store holds the persistence contracts of the matching pipeline and an in-process
// implementation of them.
package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by every NotFoundError.
var ErrNotFound = errors.New("not found")

// NotFoundError reports a missing job, candidate or match record.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func JobNotFound(id string) error { return &NotFoundError{Entity: "job", ID: id} }

func CandidateNotFound(id string) error { return &NotFoundError{Entity: "candidate", ID: id} }

func MatchNotFound(jobID, candidateID string) error {
	return &NotFoundError{Entity: "match", ID: jobID + "/" + candidateID}
}

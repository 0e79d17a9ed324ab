package firestore

import "fmt"

// repoError covers failures the Firestore client does not surface as gRPC
// status errors, such as an empty query result standing in for a missing row.
type repoError struct {
	op       string
	message  string
	notFound bool
	conflict bool
}

func (e *repoError) Error() string {
	if e == nil {
		return ""
	}
	if e.op != "" {
		return fmt.Sprintf("%s: %s", e.op, e.message)
	}
	return e.message
}

func (e *repoError) IsNotFound() bool    { return e != nil && e.notFound }
func (e *repoError) IsConflict() bool    { return e != nil && e.conflict }
func (e *repoError) IsUnavailable() bool { return false }

func notFoundError(op, message string) error {
	return &repoError{op: op, message: message, notFound: true}
}

func conflictError(op, message string) error {
	return &repoError{op: op, message: message, conflict: true}
}

package module

import (
	"errors"
	"fmt"
)

// ErrorKind the failure taxonomy reported in job outcomes
type ErrorKind string

const (
	InvalidInput      ErrorKind = "InvalidInput"
	ArtifactNotFound  ErrorKind = "ArtifactNotFound"
	ArtifactCorrupt   ErrorKind = "ArtifactCorrupt"
	ModelLoadFailed   ErrorKind = "ModelLoadFailed"
	InvalidParameters ErrorKind = "InvalidParameters"
	InferenceTimeout  ErrorKind = "InferenceTimeout"
	InferenceError    ErrorKind = "InferenceError"
	DeliveryError     ErrorKind = "DeliveryError"
	Cancelled         ErrorKind = "Cancelled"
)

// VCError error with a kind, forwarded verbatim into the job outcome
type VCError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *VCError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NewVCError(kind ErrorKind, format string, args ...interface{}) *VCError {
	return &VCError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// KindOf the kind carried by err, fallback for errors raised outside the taxonomy
func KindOf(err error, fallback ErrorKind) ErrorKind {
	var vcErr *VCError
	if errors.As(err, &vcErr) {
		return vcErr.Kind
	}
	return fallback
}

// MessageOf the message carried by err without the kind prefix
func MessageOf(err error) string {
	var vcErr *VCError
	if errors.As(err, &vcErr) {
		return vcErr.Message
	}
	return err.Error()
}

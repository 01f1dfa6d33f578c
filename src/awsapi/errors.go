package awsapi

import (
	"errors"

	"github.com/aws/smithy-go"
)

// NotFoundError reports a lookup for a resource that does not exist.
type NotFoundError struct{ Resource, Name string }

func (e *NotFoundError) Error() string { return e.Resource + " not found: " + e.Name }

// ConflictError reports a create for a resource that already exists.
type ConflictError struct{ Resource, Name string }

func (e *ConflictError) Error() string { return e.Resource + " already exists: " + e.Name }

// IsNotFound reports whether err is a NotFoundError, either our own typed
// error or a provider API error with a not-found code.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return true
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "ResourceNotFoundException", "NoSuchEntity", "NoSuchEntityException", "NotFoundException", "FileSystemNotFound":
			return true
		}
	}
	return false
}

// IsConflict reports whether err indicates the resource already exists.
func IsConflict(err error) bool {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return true
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "EntityAlreadyExists", "EntityAlreadyExistsException", "ResourceInUseException", "AlreadyExistsException":
			return true
		}
	}
	return false
}

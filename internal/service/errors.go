package service

import "errors"

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	// Unknown emails and wrong passwords both map to it.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserAlreadyExists is returned when attempting to register with an existing email.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrUserNotFound is returned when an identity lookup matches nothing.
	ErrUserNotFound = errors.New("user not found")
	// ErrStoreUnavailable wraps persistence failures of the credential store.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrUnsupportedType rejects uploads whose extension is not an accepted image type.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrUnreadableArtifact is returned when the uploaded bytes cannot be decoded as an image.
	ErrUnreadableArtifact = errors.New("unreadable image")
	// ErrUnknownFilter is returned for unrecognized filters when strict filters are enabled.
	ErrUnknownFilter = errors.New("unknown filter")
	// ErrProcessing covers failures after the image was decoded.
	ErrProcessing = errors.New("processing failed")
	// ErrStore covers artifact and history storage failures in the pipeline.
	ErrStore = errors.New("storage failed")
)

// ValidationError reports client-correctable input.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func newValidationError(err error) error {
	return &ValidationError{Err: err}
}

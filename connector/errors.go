// ABOUTME: Error values returned by the registry and by connector dispatch
// ABOUTME: RemoteError carries the HTTP status of a failed CRM call for classification
package connector

import (
	"errors"
	"fmt"
)

var (
	ErrConnectorNotFound = errors.New("connector not found")
	ErrManifestNotFound  = errors.New("manifest not found")
	ErrInvalidConnector  = errors.New("connector must implement createCallLog and updateCallLog")
	ErrNotCallable       = errors.New("interface override is not callable")
	ErrNotImplemented    = errors.New("capability not implemented")
)

// RemoteError is returned by connectors when the CRM answered with a non-2xx status.
type RemoteError struct {
	Platform   string
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s responded with status %d", e.Platform, e.StatusCode)
	}
	return fmt.Sprintf("%s responded with status %d: %v", e.Platform, e.StatusCode, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// NewRemoteError wraps err with the status code returned by the CRM.
func NewRemoteError(platform string, statusCode int, err error) error {
	return &RemoteError{Platform: platform, StatusCode: statusCode, Err: err}
}

// StatusCode extracts the CRM status code from err, or 0 when err is not a RemoteError.
func StatusCode(err error) int {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.StatusCode
	}
	return 0
}

func notImplemented(platform, name string) error {
	return fmt.Errorf("%w: %s.%s", ErrNotImplemented, platform, name)
}

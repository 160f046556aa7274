package offline

import (
	"errors"
	"fmt"
)

var (
	// ErrInstallFailed marks a failed install; the controller is redundant.
	ErrInstallFailed = errors.New("offline: install failed")

	// ErrNotActive is returned when an operation needs an active controller.
	ErrNotActive = errors.New("offline: controller is not active")
)

// InstallError reports which manifest resource could not be pre-cached.
type InstallError struct {
	URL    string
	Status int
	Err    error
}

func (e *InstallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("offline: install: fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("offline: install: fetch %s: unexpected status %d", e.URL, e.Status)
}

func (e *InstallError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInstallFailed, e.Err}
	}
	return []error{ErrInstallFailed}
}

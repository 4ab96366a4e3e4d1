package session

import (
	"errors"
	"fmt"
	"strings"
)

// Every failure below is recovered locally: the controller returns to
// Idle and stays responsive to the next hotkey event.
var (
	ErrPermissionDenied  = errors.New("permission denied; check microphone and accessibility grants")
	ErrDeviceUnavailable = errors.New("microphone unavailable")
	ErrEmptyTranscript   = errors.New("no speech recognized; check microphone input or mute state")
	ErrInjectionFailed   = errors.New("could not type into the focused application")
)

var permissionHints = []string{"permission", "not authorized", "access denied", "unauthorized"}

// captureError classifies a capture failure. macOS reports a missing
// microphone grant through the device error text, so permission
// wording maps to ErrPermissionDenied and the rest to
// ErrDeviceUnavailable.
func captureError(err error) error {
	msg := strings.ToLower(err.Error())
	for _, hint := range permissionHints {
		if strings.Contains(msg, hint) {
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
}

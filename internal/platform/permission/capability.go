// Package permission abstracts the device health platform's OS-level read
// permission for health data categories.
package permission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Platform names.
const (
	PlatformHealthKit    = "healthkit"
	PlatformCommonHealth = "commonhealth"
	PlatformNone         = "none"
)

// ErrUnavailable is returned when no health platform exists on the device.
var ErrUnavailable = errors.New("health platform unavailable")

// Capability is the explicit handle to the device health platform. Calls
// block until the platform answers or ctx is done.
type Capability interface {
	Platform() string
	CheckGranted(ctx context.Context) (bool, error)
	RequestGrant(ctx context.Context, dataTypes []string) (bool, error)
}

// Error reports a failed permission check or request. It is never fatal to
// the caller's flow.
type Error struct {
	Platform string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Platform, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Options tunes the simulated platforms.
type Options struct {
	// Latency delays every call, mimicking the OS permission sheet.
	Latency time.Duration
	// Deny makes requests return false.
	Deny bool
}

// New resolves the capability for a configured platform name: "ios" and
// "healthkit" select HealthKit, "android" and "commonhealth" select
// CommonHealth, anything else yields the unavailable platform.
func New(platform string, opts Options, logger zerolog.Logger) Capability {
	switch platform {
	case "ios", PlatformHealthKit:
		return newSimulated(PlatformHealthKit, opts, logger)
	case "android", PlatformCommonHealth:
		return newSimulated(PlatformCommonHealth, opts, logger)
	default:
		return None{}
	}
}

// None is the capability of a device without a health platform.
type None struct{}

func (None) Platform() string { return PlatformNone }

func (None) CheckGranted(context.Context) (bool, error) {
	return false, &Error{Platform: PlatformNone, Op: "check", Err: ErrUnavailable}
}

func (None) RequestGrant(context.Context, []string) (bool, error) {
	return false, &Error{Platform: PlatformNone, Op: "request", Err: ErrUnavailable}
}

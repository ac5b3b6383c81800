package device

import "errors"

// Sentinel errors. Returned errors wrap them with detail; match with errors.Is.
var (
	// ErrDeviceNotFound: no device is registered under the id.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists: Registry.Register was given an id already in use.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDevice: New rejected the options.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidDeviceType: not one of input, output or duplex.
	ErrInvalidDeviceType = errors.New("device: invalid type")

	// ErrQueryFailed: the property source failed. Its error is wrapped too.
	ErrQueryFailed = errors.New("device: property query failed")
)

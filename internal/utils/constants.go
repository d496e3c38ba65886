package utils

// Application Constants
const (
	AppName    = "RideDispatch"
	AppVersion = "1.0.0"

	// Pagination
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// HTTP Status Messages
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error Messages
const (
	ErrInvalidInput     = "invalid input"
	ErrInternalServer   = "internal server error"
	ErrUnauthorized     = "unauthorized"
	ErrForbidden        = "forbidden"
	ErrValidationFailed = "validation failed"
)

// Geographic Constants
const (
	EarthRadiusKM = 6371.0
)

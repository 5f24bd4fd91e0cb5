package tenancy

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTenantIdentifier is returned for blank or malformed identifiers,
	// before any pool is touched.
	ErrInvalidTenantIdentifier = errors.New("invalid tenant identifier")
	// ErrTenantNotResolved means the caller is not associated with any tenant.
	ErrTenantNotResolved = errors.New("not authorized for any tenant")
	// ErrIdentityMissing means no identity was available to resolve a tenant from.
	ErrIdentityMissing = errors.New("caller identity missing")
	// ErrRegistryClosed is returned by a Registry after Close.
	ErrRegistryClosed = errors.New("tenant registry closed")
	// ErrSessionTenantMismatch is returned when a session opened for one tenant
	// is used while another tenant is active.
	ErrSessionTenantMismatch = errors.New("session belongs to a different tenant")
	// ErrPoolEvicted is returned to callers of a pool construction that was
	// abandoned by Remove or Close before it finished.
	ErrPoolEvicted = errors.New("tenant pool evicted while opening")
)

// ConnectionError reports a failure to build or reach a tenant's pool.
// The tenant id is for server-side logs only.
type ConnectionError struct {
	TenantID string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("tenant %q: connection unavailable: %v", e.TenantID, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsConnectionError reports whether err is or wraps a *ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

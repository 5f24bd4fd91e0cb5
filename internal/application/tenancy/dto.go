package tenancy

import (
	"fmt"
	"time"
)

// Stage names the provisioning step that failed.
type Stage string

const (
	StageValidate       Stage = "validate"
	StageCreateDatabase Stage = "create_database"
	StageRegisterPool   Stage = "register_pool"
	StageMigrateSchema  Stage = "migrate_schema"
)

// ProvisioningError reports a failed provisioning or schema update step.
// TenantID is for server-side logs.
type ProvisioningError struct {
	TenantID string
	Stage    Stage
	Err      error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provision tenant %q: %s: %v", e.TenantID, e.Stage, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// ProvisionResult is the outcome of ProvisionTenant.
type ProvisionResult struct {
	TenantID        string        `json:"tenant_id"`
	DatabaseCreated bool          `json:"database_created"`
	Elapsed         time.Duration `json:"-"`
	Message         string        `json:"message"`
}

// SchemaUpdateResult is the outcome of UpdateSchemaForTenant.
type SchemaUpdateResult struct {
	TenantID string        `json:"tenant_id"`
	Elapsed  time.Duration `json:"-"`
	Message  string        `json:"message"`
}

// SchemaUpdateSummary is the outcome of UpdateSchemaForAllTenants. Which
// tenants failed is only in the logs.
type SchemaUpdateSummary struct {
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Completed bool          `json:"completed"`
	Elapsed   time.Duration `json:"-"`
	Message   string        `json:"message"`
}

func (s *SchemaUpdateSummary) describe() string {
	switch {
	case !s.Completed:
		return fmt.Sprintf("Schema update interrupted after %d of %d tenants (%d failed) in %d ms",
			s.Succeeded+s.Failed, s.Total, s.Failed, s.Elapsed.Milliseconds())
	case s.Failed > 0:
		return fmt.Sprintf("Schema update finished for %d tenants with %d failures in %d ms; see server logs",
			s.Total, s.Failed, s.Elapsed.Milliseconds())
	default:
		return fmt.Sprintf("Schema update finished for %d tenants in %d ms", s.Total, s.Elapsed.Milliseconds())
	}
}

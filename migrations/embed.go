// Package migrations embeds the SQL migrations. master/ holds the schema of
// the master database, tenant/ the schema applied to every tenant database.
package migrations

import "embed"

// Directory names inside FS.
const (
	MasterDir = "master"
	TenantDir = "tenant"
)

// FS holds both migration sets.
//
//go:embed master/*.sql tenant/*.sql
var FS embed.FS

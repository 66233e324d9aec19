package types

import (
	"time"
)

// WorkspaceResource is one identity in the fixed workspace pool (a VPN/RDP
// slot). The roster is configured at startup and synced to the store.
type WorkspaceResource struct {
	ID            string
	Host          string
	Username      string
	CredentialRef string
}

// ConnectionInfo is what a lease holder needs to connect. CredentialRef
// points at the secret; the secret itself never transits this service.
type ConnectionInfo struct {
	ResourceID    string
	Host          string
	Username      string
	CredentialRef string
}

// WorkspaceLease binds a workspace resource to a developer for the lifetime
// of one assignment. A resource has at most one lease with ReleasedAt unset.
type WorkspaceLease struct {
	ID           string
	ResourceID   string
	DeveloperID  string
	AssignmentID string
	LeasedAt     time.Time
	ReleasedAt   *time.Time
}

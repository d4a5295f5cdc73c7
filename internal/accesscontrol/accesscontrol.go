package accesscontrol

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flightbase/fbo-management/internal"
)

// ErrNotFound is returned by stores for missing users, permissions or
// groups. The resolver turns it into a negative result; it never reaches
// callers of IsAuthorized.
var ErrNotFound = errors.New("access control: not found")

// NormalizeName is the single place permission names are case-folded.
// Historical data may contain legacy upper-case names; stores must apply
// this before any lookup or comparison.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

type Permission struct {
	ID                      int64
	Name                    string
	ResourceType            *string
	Action                  string
	Scope                   string
	Description             string
	RequiresResourceContext bool
	IsSystemPermission      bool
	IsActive                bool
}

type PermissionGroup struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	ParentGroupID *int64 `json:"parent_group_id,omitempty"`
	SortOrder     int    `json:"sort_order"`
	IsSystemGroup bool   `json:"is_system_group"`
	IsActive      bool   `json:"is_active"`
}

// GrantState is the derived lifecycle state of a direct grant.
// REVOKED is terminal: no transition leads out of it.
type GrantState string

const (
	GrantStateActive   GrantState = "ACTIVE"
	GrantStateInactive GrantState = "INACTIVE"
	GrantStateExpired  GrantState = "EXPIRED"
	GrantStateRevoked  GrantState = "REVOKED"
)

// DirectGrant is a user's direct permission grant, joined with the
// permission name so the resolver can match without extra lookups.
type DirectGrant struct {
	ID               int64
	UserID           int64
	PermissionID     int64
	PermissionName   string
	ResourceType     *string
	ResourceID       *string
	GrantedBy        *int64
	GrantedAt        time.Time
	ExpiresAt        *time.Time
	IsActive         bool
	RevokedAt        *time.Time
	RevokedBy        *int64
	RevocationReason *string
}

// StateAt derives the grant state at the given instant. Revocation wins
// over everything else, so reactivating is_active on a revoked grant
// never restores access.
func (g DirectGrant) StateAt(now time.Time) GrantState {
	if g.RevokedAt != nil {
		return GrantStateRevoked
	}
	if !g.IsActive {
		return GrantStateInactive
	}
	if g.ExpiresAt != nil && !g.ExpiresAt.After(now) {
		return GrantStateExpired
	}
	return GrantStateActive
}

func (g DirectGrant) EffectiveAt(now time.Time) bool {
	return g.StateAt(now) == GrantStateActive
}

// AppliesTo reports whether the grant's resource scope covers the given
// context. An unscoped grant applies universally; a scoped grant applies
// only to its exact resource.
func (g DirectGrant) AppliesTo(rc *ResourceContext) bool {
	if g.ResourceType == nil || *g.ResourceType == "" {
		return true
	}
	if rc == nil {
		return false
	}
	if *g.ResourceType != rc.ResourceType {
		return false
	}
	return g.ResourceID == nil || *g.ResourceID == rc.ResourceID
}

type GroupMembership struct {
	ID         int64
	UserID     int64
	GroupID    int64
	AssignedBy *int64
	AssignedAt time.Time
	ExpiresAt  *time.Time
	IsActive   bool
}

func (m GroupMembership) EffectiveAt(now time.Time) bool {
	if !m.IsActive {
		return false
	}
	return m.ExpiresAt == nil || m.ExpiresAt.After(now)
}

type RoleAssignment struct {
	ID         int64
	UserID     int64
	RoleID     int64
	RoleName   string
	AssignedBy *int64
	AssignedAt time.Time
	IsActive   bool
}

type RoleGroupLink struct {
	ID       int64
	RoleID   int64
	GroupID  int64
	IsActive bool
}

// ResourceContext describes the target resource of an authorization
// check. OwnershipCheck requires either a concrete resource id or the
// name of a URL parameter the transport layer resolves one from.
type ResourceContext struct {
	ResourceType   string `json:"resource_type"`
	ResourceID     string `json:"resource_id,omitempty"`
	OwnershipCheck bool   `json:"ownership_check,omitempty"`
	IDParam        string `json:"id_param,omitempty"`
}

func NewResourceContext(resourceType, resourceID string, ownershipCheck bool) (*ResourceContext, error) {
	rc := &ResourceContext{
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		OwnershipCheck: ownershipCheck,
	}
	if err := rc.validate(); err != nil {
		return nil, err
	}
	return rc, nil
}

// NewResourceContextFromParam builds a context whose resource id is
// resolved later from a URL parameter by the transport layer.
func NewResourceContextFromParam(resourceType, idParam string, ownershipCheck bool) (*ResourceContext, error) {
	rc := &ResourceContext{
		ResourceType:   resourceType,
		IDParam:        idParam,
		OwnershipCheck: ownershipCheck,
	}
	if err := rc.validate(); err != nil {
		return nil, err
	}
	return rc, nil
}

func (rc *ResourceContext) validate() error {
	if rc.ResourceType == "" {
		return internal.NewValidationError("resource_type is required", internal.ErrCodeInvalidResourceContext)
	}
	if rc.OwnershipCheck && rc.ResourceID == "" && rc.IDParam == "" {
		return internal.NewValidationError(
			"ownership_check requires a resource_id or an id_param to resolve one",
			internal.ErrCodeInvalidResourceContext)
	}
	return nil
}

// WithResolvedID returns a copy with the resource id filled in, used once
// the transport layer has resolved IDParam.
func (rc *ResourceContext) WithResolvedID(resourceID string) *ResourceContext {
	out := *rc
	out.ResourceID = resourceID
	out.IDParam = ""
	return &out
}

// Fingerprint is the context's contribution to cache keys. A nil context
// fingerprints as the empty string.
func (rc *ResourceContext) Fingerprint() string {
	if rc == nil {
		return ""
	}
	return fmt.Sprintf("%s:%s:o=%t", rc.ResourceType, rc.ResourceID, rc.OwnershipCheck)
}

// GrantStore is the read side of the four grant sources plus permission
// and group lookups. Each call is an independent read-committed query;
// implementations must not hold a transaction across calls.
type GrantStore interface {
	PermissionByName(ctx context.Context, name string) (*Permission, error)
	DirectGrantsForUser(ctx context.Context, userID int64) ([]DirectGrant, error)
	GroupMembershipsForUser(ctx context.Context, userID int64) ([]GroupMembership, error)
	RoleAssignmentsForUser(ctx context.Context, userID int64) ([]RoleAssignment, error)
	GroupLinksForRole(ctx context.Context, roleID int64) ([]RoleGroupLink, error)
	PermissionsForGroup(ctx context.Context, groupID int64) ([]Permission, error)
	GroupByID(ctx context.Context, groupID int64) (*PermissionGroup, error)
	AllGroups(ctx context.Context, includeInactive bool) ([]PermissionGroup, error)
}

// AdminStore is the write side used by the admin service. Reads stay on
// GrantStore; mutations here must be followed by cache invalidation,
// which the service owns.
type AdminStore interface {
	CreateDirectGrant(ctx context.Context, grant *DirectGrant) error
	DirectGrantByID(ctx context.Context, grantID int64) (*DirectGrant, error)
	SetDirectGrantActive(ctx context.Context, grantID int64, active bool) error
	RevokeDirectGrant(ctx context.Context, grantID, revokedBy int64, reason string) error
	AddGroupMembership(ctx context.Context, membership *GroupMembership) error
	RemoveGroupMembership(ctx context.Context, userID, groupID int64) error
	AssignRole(ctx context.Context, assignment *RoleAssignment) error
	RemoveRole(ctx context.Context, userID, roleID int64) error
	SetRoleGroupLink(ctx context.Context, roleID, groupID int64, active bool, assignedBy *int64) error
}

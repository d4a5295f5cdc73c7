package accesscontrol

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"
)

// Resolver decides whether a user may exercise a permission, combining
// direct grants, group memberships and role-derived groups with expiry
// and revocation semantics. Decisions are cached; callers that mutate
// grants own the matching invalidation.
type Resolver struct {
	store     GrantStore
	cache     *Cache
	catalog   *GroupCatalog
	ownership *OwnershipRegistry
	logger    *slog.Logger

	now                func() time.Time
	expandParentGroups bool
}

type ResolverOption func(*Resolver)

// WithClock substitutes the time source, used by tests to move past
// grant expiry without sleeping.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) { r.now = now }
}

// WithParentGroupExpansion turns on transitive parent-group expansion
// during authorization. Off by default: parent links are organizational
// hierarchy, not permission inheritance.
func WithParentGroupExpansion(enabled bool) ResolverOption {
	return func(r *Resolver) { r.expandParentGroups = enabled }
}

func NewResolver(store GrantStore, cache *Cache, ownership *OwnershipRegistry, logger *slog.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:     store,
		cache:     cache,
		catalog:   NewGroupCatalog(store, logger),
		ownership: ownership,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ownership exposes the registry so hosting modules can register their
// per-resource-type delegates.
func (r *Resolver) Ownership() *OwnershipRegistry {
	return r.ownership
}

// Catalog exposes group catalog queries for administrative handlers.
func (r *Resolver) Catalog() *GroupCatalog {
	return r.catalog
}

// IsAuthorized reports whether the user may exercise the permission in
// the given resource context. Unknown users and unknown permissions are
// ordinary "no access" answers, never errors; store failures propagate
// so an outage is never mistaken for a denial.
func (r *Resolver) IsAuthorized(ctx context.Context, userID int64, permissionName string, rc *ResourceContext) (bool, error) {
	name := NormalizeName(permissionName)
	key := DecisionKey(userID, name, rc.Fingerprint())

	if d, ok := r.cache.Get(key); ok {
		return d.Allowed, nil
	}

	perm, err := r.store.PermissionByName(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			r.cache.Put(userID, key, Decision{Allowed: false})
			return false, nil
		}
		return false, err
	}

	if !perm.IsActive {
		r.cache.Put(userID, key, Decision{Allowed: false})
		return false, nil
	}

	if perm.RequiresResourceContext && rc == nil {
		r.logger.Debug("permission requires resource context, none given",
			"user_id", userID, "permission", name)
		r.cache.Put(userID, key, Decision{Allowed: false})
		return false, nil
	}

	granted, err := r.hasGrant(ctx, userID, name, rc)
	if err != nil {
		return false, err
	}

	if granted && rc != nil && rc.OwnershipCheck {
		owns, err := r.ownership.IsOwner(ctx, rc.ResourceType, rc.ResourceID, userID)
		if err != nil {
			return false, err
		}
		granted = owns
	}

	r.cache.Put(userID, key, Decision{Allowed: granted})
	return granted, nil
}

// hasGrant evaluates the three grant sources in fixed order and returns
// true on the first match. The union semantics make the short-circuit
// behavior-equivalent to evaluating all sources.
func (r *Resolver) hasGrant(ctx context.Context, userID int64, name string, rc *ResourceContext) (bool, error) {
	now := r.now()

	// 1. Direct grants, honoring resource scope.
	direct, err := r.store.DirectGrantsForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, g := range direct {
		if g.PermissionName == name && g.EffectiveAt(now) && g.AppliesTo(rc) {
			return true, nil
		}
	}

	// 2. Permission group memberships.
	groupIDs, err := r.membershipGroupIDs(ctx, userID, now)
	if err != nil {
		return false, err
	}
	if ok, err := r.catalog.ContainsPermission(ctx, groupIDs, name); err != nil || ok {
		return ok, err
	}

	// 3. Roles, through their linked groups.
	roleGroupIDs, err := r.roleGroupIDs(ctx, userID)
	if err != nil {
		return false, err
	}
	return r.catalog.ContainsPermission(ctx, roleGroupIDs, name)
}

// GetUserPermissions enumerates the user's effective permission names as
// a sorted union of all sources. Unknown users yield an empty set.
func (r *Resolver) GetUserPermissions(ctx context.Context, userID int64, includeGroups bool) ([]string, error) {
	key := EnumerationKey(userID, includeGroups)
	if d, ok := r.cache.Get(key); ok {
		return d.Permissions, nil
	}

	now := r.now()
	seen := make(map[string]struct{})

	direct, err := r.store.DirectGrantsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, g := range direct {
		if g.EffectiveAt(now) {
			seen[g.PermissionName] = struct{}{}
		}
	}

	if includeGroups {
		groupIDs, err := r.membershipGroupIDs(ctx, userID, now)
		if err != nil {
			return nil, err
		}
		roleGroupIDs, err := r.roleGroupIDs(ctx, userID)
		if err != nil {
			return nil, err
		}
		names, err := r.catalog.PermissionNames(ctx, append(groupIDs, roleGroupIDs...))
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			seen[n] = struct{}{}
		}
	}

	permissions := make([]string, 0, len(seen))
	for n := range seen {
		permissions = append(permissions, n)
	}
	sort.Strings(permissions)

	r.cache.Put(userID, key, Decision{Permissions: permissions})
	return permissions, nil
}

// GetUserPermissionGroups lists the user's effective groups, directly
// assigned and role-derived, deduplicated and in display order.
func (r *Resolver) GetUserPermissionGroups(ctx context.Context, userID int64) ([]PermissionGroup, error) {
	now := r.now()

	groupIDs, err := r.membershipGroupIDs(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	roleGroupIDs, err := r.roleGroupIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{})
	groups := make([]PermissionGroup, 0, len(groupIDs)+len(roleGroupIDs))
	for _, id := range append(groupIDs, roleGroupIDs...) {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		group, err := r.store.GroupByID(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		if group.IsActive {
			groups = append(groups, *group)
		}
	}

	SortGroups(groups)
	return groups, nil
}

// GetPermissionGroups returns all groups keyed by name for
// administrative display.
func (r *Resolver) GetPermissionGroups(ctx context.Context, includeInactive bool) (map[string]PermissionGroup, error) {
	return r.catalog.Groups(ctx, includeInactive)
}

// PermissionSummary reports which source grants each of a user's
// permissions, for administrative inspection.
type PermissionSummary struct {
	UserID            int64               `json:"user_id"`
	TotalPermissions  int                 `json:"total_permissions"`
	PermissionSources map[string][]string `json:"permission_sources"`
	Groups            []PermissionGroup   `json:"groups"`
}

const (
	SourceDirect = "direct"
	SourceGroup  = "group"
	SourceRole   = "role"
)

func (r *Resolver) GetUserPermissionSummary(ctx context.Context, userID int64) (*PermissionSummary, error) {
	now := r.now()
	sources := make(map[string][]string)

	// Source evaluation order mirrors IsAuthorized for reproducible
	// reporting: direct, group, role.
	direct, err := r.store.DirectGrantsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, g := range direct {
		if g.EffectiveAt(now) {
			sources[g.PermissionName] = appendSource(sources[g.PermissionName], SourceDirect)
		}
	}

	groupIDs, err := r.membershipGroupIDs(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	groupNames, err := r.catalog.PermissionNames(ctx, groupIDs)
	if err != nil {
		return nil, err
	}
	for _, n := range groupNames {
		sources[n] = appendSource(sources[n], SourceGroup)
	}

	roleGroupIDs, err := r.roleGroupIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	roleNames, err := r.catalog.PermissionNames(ctx, roleGroupIDs)
	if err != nil {
		return nil, err
	}
	for _, n := range roleNames {
		sources[n] = appendSource(sources[n], SourceRole)
	}

	groups, err := r.GetUserPermissionGroups(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &PermissionSummary{
		UserID:            userID,
		TotalPermissions:  len(sources),
		PermissionSources: sources,
		Groups:            groups,
	}, nil
}

// InvalidateUserCache drops every cached decision for the user. Callers
// performing grant mutations must invoke this (or InvalidateCache); the
// resolver never notices external writes on its own.
func (r *Resolver) InvalidateUserCache(userID int64) {
	r.cache.InvalidateUser(userID)
}

// InvalidateCache invalidates by user, by permission, by both, or
// everything when neither is given.
func (r *Resolver) InvalidateCache(userID *int64, permissionName string) {
	name := NormalizeName(permissionName)
	switch {
	case userID != nil && name != "":
		r.cache.InvalidateUserPermission(*userID, name)
	case userID != nil:
		r.cache.InvalidateUser(*userID)
	case name != "":
		r.cache.InvalidatePermission(name)
	default:
		r.cache.InvalidateAll()
	}
}

func (r *Resolver) CacheStats() CacheStats {
	return r.cache.Stats()
}

func (r *Resolver) membershipGroupIDs(ctx context.Context, userID int64, now time.Time) ([]int64, error) {
	memberships, err := r.store.GroupMembershipsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(memberships))
	for _, m := range memberships {
		if m.EffectiveAt(now) {
			ids = append(ids, m.GroupID)
		}
	}

	if r.expandParentGroups {
		return r.catalog.ExpandParents(ctx, ids)
	}
	return ids, nil
}

func (r *Resolver) roleGroupIDs(ctx context.Context, userID int64) ([]int64, error) {
	assignments, err := r.store.RoleAssignmentsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var ids []int64
	for _, a := range assignments {
		if !a.IsActive {
			continue
		}
		links, err := r.store.GroupLinksForRole(ctx, a.RoleID)
		if err != nil {
			return nil, err
		}
		for _, l := range links {
			if l.IsActive {
				ids = append(ids, l.GroupID)
			}
		}
	}

	if r.expandParentGroups {
		return r.catalog.ExpandParents(ctx, ids)
	}
	return ids, nil
}

func appendSource(sources []string, source string) []string {
	for _, s := range sources {
		if s == source {
			return sources
		}
	}
	return append(sources, source)
}

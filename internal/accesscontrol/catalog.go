package accesscontrol

import (
	"context"
	"log/slog"
	"sort"
)

// GroupCatalog answers group-shaped questions over the GrantStore: group
// lookups for administrative display and expansion of group sets into
// permission names. Parent/child links are an organizational hierarchy;
// a group grants only its directly-linked permissions unless parent
// expansion is explicitly enabled on the resolver.
type GroupCatalog struct {
	store  GrantStore
	logger *slog.Logger
}

func NewGroupCatalog(store GrantStore, logger *slog.Logger) *GroupCatalog {
	return &GroupCatalog{store: store, logger: logger}
}

// ExpandParents walks parent_group_id chains upward from the given group
// ids and returns the union including the starting set. The schema does
// not enforce acyclicity, so the walk carries a visited set; a detected
// cycle is a data integrity warning and the walk stops there.
func (c *GroupCatalog) ExpandParents(ctx context.Context, groupIDs []int64) ([]int64, error) {
	visited := make(map[int64]struct{}, len(groupIDs))
	out := make([]int64, 0, len(groupIDs))

	for _, id := range groupIDs {
		current := id
		for {
			if _, seen := visited[current]; seen {
				if current != id {
					c.logger.Warn("cycle detected in permission group hierarchy, stopping expansion",
						"group_id", current)
				}
				break
			}
			visited[current] = struct{}{}
			out = append(out, current)

			group, err := c.store.GroupByID(ctx, current)
			if err != nil {
				if err == ErrNotFound {
					break
				}
				return nil, err
			}
			if !group.IsActive || group.ParentGroupID == nil {
				break
			}
			current = *group.ParentGroupID
		}
	}

	return out, nil
}

// PermissionNames returns the sorted union of permission names directly
// linked to the given groups.
func (c *GroupCatalog) PermissionNames(ctx context.Context, groupIDs []int64) ([]string, error) {
	seen := make(map[string]struct{})
	for _, id := range groupIDs {
		perms, err := c.store.PermissionsForGroup(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, p := range perms {
			if p.IsActive {
				seen[p.Name] = struct{}{}
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ContainsPermission reports whether any of the groups directly links the
// permission, checking group by group so callers can short-circuit.
func (c *GroupCatalog) ContainsPermission(ctx context.Context, groupIDs []int64, permissionName string) (bool, error) {
	for _, id := range groupIDs {
		perms, err := c.store.PermissionsForGroup(ctx, id)
		if err != nil {
			return false, err
		}
		for _, p := range perms {
			if p.IsActive && p.Name == permissionName {
				return true, nil
			}
		}
	}
	return false, nil
}

// Groups returns groups keyed by name for administrative display.
func (c *GroupCatalog) Groups(ctx context.Context, includeInactive bool) (map[string]PermissionGroup, error) {
	groups, err := c.store.AllGroups(ctx, includeInactive)
	if err != nil {
		return nil, err
	}
	out := make(map[string]PermissionGroup, len(groups))
	for _, g := range groups {
		out[g.Name] = g
	}
	return out, nil
}

// SortGroups orders groups by sort_order then name, the display order
// used by every group listing.
func SortGroups(groups []PermissionGroup) {
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].SortOrder != groups[j].SortOrder {
			return groups[i].SortOrder < groups[j].SortOrder
		}
		return groups[i].Name < groups[j].Name
	})
}

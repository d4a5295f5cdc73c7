package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/flightbase/fbo-management/internal"
	"github.com/flightbase/fbo-management/internal/accesscontrol"
	datamodel "github.com/flightbase/fbo-management/internal/core/datamodel/accesscontrol"
	"gorm.io/gorm"
)

// Repository implements accesscontrol.GrantStore and
// accesscontrol.AdminStore over the relational schema. Permission names
// are case-folded here and nowhere else; lookups go through LOWER(name)
// so legacy upper-case rows keep resolving.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) PermissionByName(ctx context.Context, name string) (*accesscontrol.Permission, error) {
	name = accesscontrol.NormalizeName(name)

	var row datamodel.Permission
	err := r.db.WithContext(ctx).
		Raw(`SELECT * FROM permissions WHERE LOWER(name) = ? LIMIT 1`, name).
		Scan(&row).Error
	if err != nil {
		return nil, internal.NewStoreError("failed to look up permission", err)
	}
	if row.ID == 0 {
		return nil, accesscontrol.ErrNotFound
	}

	p := toPermission(row)
	return &p, nil
}

func (r *Repository) DirectGrantsForUser(ctx context.Context, userID int64) ([]accesscontrol.DirectGrant, error) {
	var grants []accesscontrol.DirectGrant
	err := r.db.WithContext(ctx).
		Raw(`SELECT up.id, up.user_id, up.permission_id, LOWER(p.name) AS permission_name,
		            up.resource_type, up.resource_id, up.granted_by, up.granted_at,
		            up.expires_at, up.is_active, up.revoked_at, up.revoked_by, up.revocation_reason
		     FROM user_permissions up
		     JOIN permissions p ON p.id = up.permission_id
		     WHERE up.user_id = ?`, userID).
		Scan(&grants).Error
	if err != nil {
		return nil, internal.NewStoreError("failed to fetch direct grants", err)
	}
	return grants, nil
}

func (r *Repository) GroupMembershipsForUser(ctx context.Context, userID int64) ([]accesscontrol.GroupMembership, error) {
	var memberships []accesscontrol.GroupMembership
	err := r.db.WithContext(ctx).
		Raw(`SELECT upg.id, upg.user_id, upg.group_id, upg.assigned_by, upg.assigned_at,
		            upg.expires_at, upg.is_active
		     FROM user_permission_groups upg
		     JOIN permission_groups pg ON pg.id = upg.group_id
		     WHERE upg.user_id = ? AND pg.is_active = true`, userID).
		Scan(&memberships).Error
	if err != nil {
		return nil, internal.NewStoreError("failed to fetch group memberships", err)
	}
	return memberships, nil
}

func (r *Repository) RoleAssignmentsForUser(ctx context.Context, userID int64) ([]accesscontrol.RoleAssignment, error) {
	var assignments []accesscontrol.RoleAssignment
	err := r.db.WithContext(ctx).
		Raw(`SELECT ur.id, ur.user_id, ur.role_id, r.name AS role_name, ur.assigned_by,
		            ur.assigned_at, ur.is_active
		     FROM user_roles ur
		     JOIN roles r ON r.id = ur.role_id
		     WHERE ur.user_id = ? AND r.is_active = true`, userID).
		Scan(&assignments).Error
	if err != nil {
		return nil, internal.NewStoreError("failed to fetch role assignments", err)
	}
	return assignments, nil
}

func (r *Repository) GroupLinksForRole(ctx context.Context, roleID int64) ([]accesscontrol.RoleGroupLink, error) {
	var links []accesscontrol.RoleGroupLink
	err := r.db.WithContext(ctx).
		Raw(`SELECT rpg.id, rpg.role_id, rpg.group_id, rpg.is_active
		     FROM role_permission_groups rpg
		     JOIN permission_groups pg ON pg.id = rpg.group_id
		     WHERE rpg.role_id = ? AND pg.is_active = true`, roleID).
		Scan(&links).Error
	if err != nil {
		return nil, internal.NewStoreError("failed to fetch role group links", err)
	}
	return links, nil
}

func (r *Repository) PermissionsForGroup(ctx context.Context, groupID int64) ([]accesscontrol.Permission, error) {
	var rows []datamodel.Permission
	err := r.db.WithContext(ctx).
		Raw(`SELECT p.* FROM permissions p
		     JOIN permission_group_permissions pgp ON pgp.permission_id = p.id
		     WHERE pgp.group_id = ?`, groupID).
		Scan(&rows).Error
	if err != nil {
		return nil, internal.NewStoreError("failed to fetch group permissions", err)
	}

	permissions := make([]accesscontrol.Permission, 0, len(rows))
	for _, row := range rows {
		permissions = append(permissions, toPermission(row))
	}
	return permissions, nil
}

func (r *Repository) GroupByID(ctx context.Context, groupID int64) (*accesscontrol.PermissionGroup, error) {
	var row datamodel.PermissionGroup
	err := r.db.WithContext(ctx).
		Raw(`SELECT * FROM permission_groups WHERE id = ? LIMIT 1`, groupID).
		Scan(&row).Error
	if err != nil {
		return nil, internal.NewStoreError("failed to look up permission group", err)
	}
	if row.ID == 0 {
		return nil, accesscontrol.ErrNotFound
	}

	g := toGroup(row)
	return &g, nil
}

func (r *Repository) AllGroups(ctx context.Context, includeInactive bool) ([]accesscontrol.PermissionGroup, error) {
	query := `SELECT * FROM permission_groups`
	if !includeInactive {
		query += ` WHERE is_active = true`
	}
	query += ` ORDER BY sort_order, name`

	var rows []datamodel.PermissionGroup
	if err := r.db.WithContext(ctx).Raw(query).Scan(&rows).Error; err != nil {
		return nil, internal.NewStoreError("failed to list permission groups", err)
	}

	groups := make([]accesscontrol.PermissionGroup, 0, len(rows))
	for _, row := range rows {
		groups = append(groups, toGroup(row))
	}
	return groups, nil
}

// ---- AdminStore ----

func (r *Repository) CreateDirectGrant(ctx context.Context, grant *accesscontrol.DirectGrant) error {
	row := datamodel.UserPermission{
		UserID:       grant.UserID,
		PermissionID: grant.PermissionID,
		ResourceType: grant.ResourceType,
		ResourceID:   grant.ResourceID,
		GrantedBy:    grant.GrantedBy,
		GrantedAt:    grant.GrantedAt,
		ExpiresAt:    grant.ExpiresAt,
		IsActive:     grant.IsActive,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return internal.NewStoreError("failed to create direct grant", err)
	}
	grant.ID = row.ID
	return nil
}

func (r *Repository) DirectGrantByID(ctx context.Context, grantID int64) (*accesscontrol.DirectGrant, error) {
	var grant accesscontrol.DirectGrant
	err := r.db.WithContext(ctx).
		Raw(`SELECT up.id, up.user_id, up.permission_id, LOWER(p.name) AS permission_name,
		            up.resource_type, up.resource_id, up.granted_by, up.granted_at,
		            up.expires_at, up.is_active, up.revoked_at, up.revoked_by, up.revocation_reason
		     FROM user_permissions up
		     JOIN permissions p ON p.id = up.permission_id
		     WHERE up.id = ? LIMIT 1`, grantID).
		Scan(&grant).Error
	if err != nil {
		return nil, internal.NewStoreError("failed to look up grant", err)
	}
	if grant.ID == 0 {
		return nil, accesscontrol.ErrNotFound
	}
	return &grant, nil
}

func (r *Repository) SetDirectGrantActive(ctx context.Context, grantID int64, active bool) error {
	result := r.db.WithContext(ctx).
		Exec(`UPDATE user_permissions SET is_active = ? WHERE id = ?`, active, grantID)
	if result.Error != nil {
		return internal.NewStoreError("failed to update grant", result.Error)
	}
	if result.RowsAffected == 0 {
		return accesscontrol.ErrNotFound
	}
	return nil
}

func (r *Repository) RevokeDirectGrant(ctx context.Context, grantID, revokedBy int64, reason string) error {
	result := r.db.WithContext(ctx).
		Exec(`UPDATE user_permissions
		      SET is_active = false, revoked_at = ?, revoked_by = ?, revocation_reason = ?
		      WHERE id = ? AND revoked_at IS NULL`, time.Now(), revokedBy, reason, grantID)
	if result.Error != nil {
		return internal.NewStoreError("failed to revoke grant", result.Error)
	}
	if result.RowsAffected == 0 {
		return accesscontrol.ErrNotFound
	}
	return nil
}

func (r *Repository) AddGroupMembership(ctx context.Context, membership *accesscontrol.GroupMembership) error {
	var existing datamodel.UserPermissionGroup
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND group_id = ?", membership.UserID, membership.GroupID).
		First(&existing).Error

	switch {
	case err == nil:
		// re-adding reactivates the membership with fresh metadata
		result := r.db.WithContext(ctx).
			Exec(`UPDATE user_permission_groups
			      SET is_active = true, assigned_by = ?, assigned_at = ?, expires_at = ?
			      WHERE id = ?`, membership.AssignedBy, membership.AssignedAt, membership.ExpiresAt, existing.ID)
		if result.Error != nil {
			return internal.NewStoreError("failed to update group membership", result.Error)
		}
		membership.ID = existing.ID
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		row := datamodel.UserPermissionGroup{
			UserID:     membership.UserID,
			GroupID:    membership.GroupID,
			AssignedBy: membership.AssignedBy,
			AssignedAt: membership.AssignedAt,
			ExpiresAt:  membership.ExpiresAt,
			IsActive:   membership.IsActive,
		}
		if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
			return internal.NewStoreError("failed to create group membership", err)
		}
		membership.ID = row.ID
		return nil
	default:
		return internal.NewStoreError("failed to check group membership", err)
	}
}

func (r *Repository) RemoveGroupMembership(ctx context.Context, userID, groupID int64) error {
	result := r.db.WithContext(ctx).
		Exec(`UPDATE user_permission_groups SET is_active = false
		      WHERE user_id = ? AND group_id = ? AND is_active = true`, userID, groupID)
	if result.Error != nil {
		return internal.NewStoreError("failed to remove group membership", result.Error)
	}
	if result.RowsAffected == 0 {
		return accesscontrol.ErrNotFound
	}
	return nil
}

func (r *Repository) AssignRole(ctx context.Context, assignment *accesscontrol.RoleAssignment) error {
	var existing datamodel.UserRole
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND role_id = ?", assignment.UserID, assignment.RoleID).
		First(&existing).Error

	switch {
	case err == nil:
		result := r.db.WithContext(ctx).
			Exec(`UPDATE user_roles SET is_active = true, assigned_by = ?, assigned_at = ?
			      WHERE id = ?`, assignment.AssignedBy, assignment.AssignedAt, existing.ID)
		if result.Error != nil {
			return internal.NewStoreError("failed to update role assignment", result.Error)
		}
		assignment.ID = existing.ID
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		row := datamodel.UserRole{
			UserID:     assignment.UserID,
			RoleID:     assignment.RoleID,
			AssignedBy: assignment.AssignedBy,
			AssignedAt: assignment.AssignedAt,
			IsActive:   assignment.IsActive,
		}
		if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
			return internal.NewStoreError("failed to create role assignment", err)
		}
		assignment.ID = row.ID
		return nil
	default:
		return internal.NewStoreError("failed to check role assignment", err)
	}
}

func (r *Repository) RemoveRole(ctx context.Context, userID, roleID int64) error {
	result := r.db.WithContext(ctx).
		Exec(`UPDATE user_roles SET is_active = false
		      WHERE user_id = ? AND role_id = ? AND is_active = true`, userID, roleID)
	if result.Error != nil {
		return internal.NewStoreError("failed to remove role assignment", result.Error)
	}
	if result.RowsAffected == 0 {
		return accesscontrol.ErrNotFound
	}
	return nil
}

func (r *Repository) SetRoleGroupLink(ctx context.Context, roleID, groupID int64, active bool, assignedBy *int64) error {
	var existing datamodel.RolePermissionGroup
	err := r.db.WithContext(ctx).
		Where("role_id = ? AND group_id = ?", roleID, groupID).
		First(&existing).Error

	switch {
	case err == nil:
		result := r.db.WithContext(ctx).
			Exec(`UPDATE role_permission_groups SET is_active = ? WHERE id = ?`, active, existing.ID)
		if result.Error != nil {
			return internal.NewStoreError("failed to update role group link", result.Error)
		}
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		row := datamodel.RolePermissionGroup{
			RoleID:     roleID,
			GroupID:    groupID,
			AssignedBy: assignedBy,
			AssignedAt: time.Now(),
			IsActive:   active,
		}
		if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
			return internal.NewStoreError("failed to create role group link", err)
		}
		return nil
	default:
		return internal.NewStoreError("failed to check role group link", err)
	}
}

func toPermission(row datamodel.Permission) accesscontrol.Permission {
	return accesscontrol.Permission{
		ID:                      row.ID,
		Name:                    accesscontrol.NormalizeName(row.Name),
		ResourceType:            row.ResourceType,
		Action:                  row.Action,
		Scope:                   row.Scope,
		Description:             row.Description,
		RequiresResourceContext: row.RequiresResourceContext,
		IsSystemPermission:      row.IsSystemPermission,
		IsActive:                row.IsActive,
	}
}

func toGroup(row datamodel.PermissionGroup) accesscontrol.PermissionGroup {
	return accesscontrol.PermissionGroup{
		ID:            row.ID,
		Name:          row.Name,
		Description:   row.Description,
		Category:      row.Category,
		ParentGroupID: row.ParentGroupID,
		SortOrder:     row.SortOrder,
		IsSystemGroup: row.IsSystemGroup,
		IsActive:      row.IsActive,
	}
}

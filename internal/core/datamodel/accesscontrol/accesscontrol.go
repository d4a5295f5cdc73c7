package accesscontrol

import "time"

type Permission struct {
	ID                      int64     `gorm:"primaryKey"`
	Name                    string    `gorm:"column:name;uniqueIndex;not null"`
	ResourceType            *string   `gorm:"column:resource_type"`
	Action                  string    `gorm:"column:action;not null"`
	Scope                   string    `gorm:"column:scope"`
	Description             string    `gorm:"column:description"`
	RequiresResourceContext bool      `gorm:"column:requires_resource_context;default:false"`
	IsSystemPermission      bool      `gorm:"column:is_system_permission;default:false"`
	IsActive                bool      `gorm:"column:is_active;default:true"`
	CreatedAt               time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt               time.Time `gorm:"column:updated_at;default:now()"`
}

type PermissionGroup struct {
	ID            int64     `gorm:"primaryKey"`
	Name          string    `gorm:"column:name;uniqueIndex;not null"`
	Description   string    `gorm:"column:description"`
	Category      string    `gorm:"column:category"`
	ParentGroupID *int64    `gorm:"column:parent_group_id"`
	SortOrder     int       `gorm:"column:sort_order;default:0"`
	IsSystemGroup bool      `gorm:"column:is_system_group;default:false"`
	IsActive      bool      `gorm:"column:is_active;default:true"`
	CreatedAt     time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt     time.Time `gorm:"column:updated_at;default:now()"`
}

type PermissionGroupPermission struct {
	ID           int64     `gorm:"primaryKey"`
	GroupID      int64     `gorm:"column:group_id;not null;index:idx_group_permission,unique"`
	PermissionID int64     `gorm:"column:permission_id;not null;index:idx_group_permission,unique"`
	CreatedAt    time.Time `gorm:"column:created_at;default:now()"`
}

type Role struct {
	ID          int64     `gorm:"primaryKey"`
	Name        string    `gorm:"column:name;uniqueIndex;not null"`
	Description string    `gorm:"column:description"`
	IsActive    bool      `gorm:"column:is_active;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt   time.Time `gorm:"column:updated_at;default:now()"`
}

type UserRole struct {
	ID         int64     `gorm:"primaryKey"`
	UserID     int64     `gorm:"column:user_id;not null;index:idx_user_role,unique"`
	RoleID     int64     `gorm:"column:role_id;not null;index:idx_user_role,unique"`
	AssignedBy *int64    `gorm:"column:assigned_by"`
	AssignedAt time.Time `gorm:"column:assigned_at;default:now()"`
	IsActive   bool      `gorm:"column:is_active;default:true"`
}

type RolePermissionGroup struct {
	ID         int64     `gorm:"primaryKey"`
	RoleID     int64     `gorm:"column:role_id;not null;index:idx_role_group,unique"`
	GroupID    int64     `gorm:"column:group_id;not null;index:idx_role_group,unique"`
	AssignedBy *int64    `gorm:"column:assigned_by"`
	AssignedAt time.Time `gorm:"column:assigned_at;default:now()"`
	IsActive   bool      `gorm:"column:is_active;default:true"`
}

// UserPermissionGroup is a user's membership in a permission group.
// Effective only while active and unexpired.
type UserPermissionGroup struct {
	ID         int64      `gorm:"primaryKey"`
	UserID     int64      `gorm:"column:user_id;not null;index:idx_user_group,unique"`
	GroupID    int64      `gorm:"column:group_id;not null;index:idx_user_group,unique"`
	AssignedBy *int64     `gorm:"column:assigned_by"`
	AssignedAt time.Time  `gorm:"column:assigned_at;default:now()"`
	ExpiresAt  *time.Time `gorm:"column:expires_at"`
	IsActive   bool       `gorm:"column:is_active;default:true"`
}

// UserPermission is a direct grant, optionally scoped to one resource
// instance. Revocation is terminal: a non-null revoked_at makes the grant
// permanently ineffective regardless of is_active.
type UserPermission struct {
	ID               int64      `gorm:"primaryKey"`
	UserID           int64      `gorm:"column:user_id;not null;index"`
	PermissionID     int64      `gorm:"column:permission_id;not null;index"`
	ResourceType     *string    `gorm:"column:resource_type"`
	ResourceID       *string    `gorm:"column:resource_id"`
	GrantedBy        *int64     `gorm:"column:granted_by"`
	GrantedAt        time.Time  `gorm:"column:granted_at;default:now()"`
	ExpiresAt        *time.Time `gorm:"column:expires_at"`
	IsActive         bool       `gorm:"column:is_active;default:true"`
	RevokedAt        *time.Time `gorm:"column:revoked_at"`
	RevokedBy        *int64     `gorm:"column:revoked_by"`
	RevocationReason *string    `gorm:"column:revocation_reason"`
}

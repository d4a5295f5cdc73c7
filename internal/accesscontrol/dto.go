package accesscontrol

import (
	"time"

	"github.com/flightbase/fbo-management/internal"
)

type CheckRequestDTO struct {
	UserID     int64               `json:"user_id"`
	Permission string              `json:"permission"`
	Context    *ResourceContextDTO `json:"context,omitempty"`
}

type ResourceContextDTO struct {
	ResourceType   string `json:"resource_type"`
	ResourceID     string `json:"resource_id,omitempty"`
	OwnershipCheck bool   `json:"ownership_check,omitempty"`
}

func (d *CheckRequestDTO) Validate() error {
	if d.UserID <= 0 {
		return internal.NewValidationFieldError("user_id", "user_id is required", internal.ErrCodeValidationFailed)
	}
	if d.Permission == "" {
		return internal.NewValidationFieldError("permission", "permission is required", internal.ErrCodeValidationFailed)
	}
	return nil
}

// ResourceContext converts the wire shape into the validated value
// object; the construction invariant on ownership_check is enforced
// there, not here.
func (d *CheckRequestDTO) ResourceContext() (*ResourceContext, error) {
	if d.Context == nil {
		return nil, nil
	}
	return NewResourceContext(d.Context.ResourceType, d.Context.ResourceID, d.Context.OwnershipCheck)
}

type CheckResponseDTO struct {
	UserID     int64  `json:"user_id"`
	Permission string `json:"permission"`
	Allowed    bool   `json:"allowed"`
}

type GrantPermissionDTO struct {
	UserID         int64      `json:"user_id"`
	PermissionName string     `json:"permission"`
	ResourceType   *string    `json:"resource_type,omitempty"`
	ResourceID     *string    `json:"resource_id,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	GrantedBy      int64      `json:"granted_by"`
}

func (d *GrantPermissionDTO) Validate() error {
	if d.UserID <= 0 {
		return internal.NewValidationFieldError("user_id", "user_id is required", internal.ErrCodeValidationFailed)
	}
	if d.PermissionName == "" {
		return internal.NewValidationFieldError("permission", "permission is required", internal.ErrCodeValidationFailed)
	}
	if d.ResourceID != nil && (d.ResourceType == nil || *d.ResourceType == "") {
		return internal.NewValidationFieldError("resource_type", "resource_type is required when resource_id is set", internal.ErrCodeValidationFailed)
	}
	if d.ExpiresAt != nil && !d.ExpiresAt.After(time.Now()) {
		return internal.NewValidationFieldError("expires_at", "expires_at must be in the future", internal.ErrCodeInvalidDate)
	}
	return nil
}

type RevokePermissionDTO struct {
	RevokedBy int64  `json:"revoked_by"`
	Reason    string `json:"reason"`
}

func (d *RevokePermissionDTO) Validate() error {
	if d.RevokedBy <= 0 {
		return internal.NewValidationFieldError("revoked_by", "revoked_by is required", internal.ErrCodeValidationFailed)
	}
	if d.Reason == "" {
		return internal.NewValidationFieldError("reason", "a revocation reason is required", internal.ErrCodeValidationFailed)
	}
	return nil
}

type GroupMembershipDTO struct {
	GroupID    int64      `json:"group_id"`
	AssignedBy int64      `json:"assigned_by"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

func (d *GroupMembershipDTO) Validate() error {
	if d.GroupID <= 0 {
		return internal.NewValidationFieldError("group_id", "group_id is required", internal.ErrCodeValidationFailed)
	}
	return nil
}

type RoleAssignmentDTO struct {
	RoleID     int64 `json:"role_id"`
	AssignedBy int64 `json:"assigned_by"`
}

func (d *RoleAssignmentDTO) Validate() error {
	if d.RoleID <= 0 {
		return internal.NewValidationFieldError("role_id", "role_id is required", internal.ErrCodeValidationFailed)
	}
	return nil
}

type InvalidateCacheDTO struct {
	UserID     *int64 `json:"user_id,omitempty"`
	Permission string `json:"permission,omitempty"`
}

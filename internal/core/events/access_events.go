package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePermissionGranted     = "access.permission_granted"
	EventTypePermissionRevoked     = "access.permission_revoked"
	EventTypePermissionDeactivated = "access.permission_deactivated"
	EventTypeGroupMembershipChange = "access.group_membership_changed"
	EventTypeRoleAssignmentChange  = "access.role_assignment_changed"
	EventTypeRoleGroupLinkChange   = "access.role_group_link_changed"
)

type PermissionGrantedEvent struct {
	BaseEvent
	UserID         int64   `json:"user_id"`
	PermissionName string  `json:"permission_name"`
	ResourceType   *string `json:"resource_type,omitempty"`
	ResourceID     *string `json:"resource_id,omitempty"`
	GrantedBy      int64   `json:"granted_by"`
}

func NewPermissionGrantedEvent(userID int64, permissionName string, resourceType, resourceID *string, grantedBy int64) *PermissionGrantedEvent {
	return &PermissionGrantedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePermissionGranted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id":         userID,
				"permission_name": permissionName,
				"granted_by":      grantedBy,
			},
		},
		UserID:         userID,
		PermissionName: permissionName,
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		GrantedBy:      grantedBy,
	}
}

type PermissionRevokedEvent struct {
	BaseEvent
	UserID         int64  `json:"user_id"`
	PermissionName string `json:"permission_name"`
	RevokedBy      int64  `json:"revoked_by"`
	Reason         string `json:"reason"`
}

func NewPermissionRevokedEvent(userID int64, permissionName string, revokedBy int64, reason string) *PermissionRevokedEvent {
	return &PermissionRevokedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePermissionRevoked,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id":         userID,
				"permission_name": permissionName,
				"revoked_by":      revokedBy,
				"reason":          reason,
			},
		},
		UserID:         userID,
		PermissionName: permissionName,
		RevokedBy:      revokedBy,
		Reason:         reason,
	}
}

type PermissionDeactivatedEvent struct {
	BaseEvent
	UserID         int64  `json:"user_id"`
	PermissionName string `json:"permission_name"`
}

func NewPermissionDeactivatedEvent(userID int64, permissionName string) *PermissionDeactivatedEvent {
	return &PermissionDeactivatedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePermissionDeactivated,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id":         userID,
				"permission_name": permissionName,
			},
		},
		UserID:         userID,
		PermissionName: permissionName,
	}
}

type GroupMembershipChangedEvent struct {
	BaseEvent
	UserID  int64  `json:"user_id"`
	GroupID int64  `json:"group_id"`
	Change  string `json:"change"` // "added" or "removed"
}

func NewGroupMembershipChangedEvent(userID, groupID int64, change string) *GroupMembershipChangedEvent {
	return &GroupMembershipChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeGroupMembershipChange,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id":  userID,
				"group_id": groupID,
				"change":   change,
			},
		},
		UserID:  userID,
		GroupID: groupID,
		Change:  change,
	}
}

type RoleAssignmentChangedEvent struct {
	BaseEvent
	UserID int64  `json:"user_id"`
	RoleID int64  `json:"role_id"`
	Change string `json:"change"` // "assigned" or "removed"
}

func NewRoleAssignmentChangedEvent(userID, roleID int64, change string) *RoleAssignmentChangedEvent {
	return &RoleAssignmentChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeRoleAssignmentChange,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id": userID,
				"role_id": roleID,
				"change":  change,
			},
		},
		UserID: userID,
		RoleID: roleID,
		Change: change,
	}
}

// RoleGroupLinkChangedEvent affects every user holding the role, so it
// carries no user id; subscribers flush the whole decision cache.
type RoleGroupLinkChangedEvent struct {
	BaseEvent
	RoleID  int64  `json:"role_id"`
	GroupID int64  `json:"group_id"`
	Change  string `json:"change"` // "linked", "unlinked" or "deactivated"
}

func NewRoleGroupLinkChangedEvent(roleID, groupID int64, change string) *RoleGroupLinkChangedEvent {
	return &RoleGroupLinkChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeRoleGroupLinkChange,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"role_id":  roleID,
				"group_id": groupID,
				"change":   change,
			},
		},
		RoleID:  roleID,
		GroupID: groupID,
		Change:  change,
	}
}

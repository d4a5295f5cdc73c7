package accesscontrol

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/flightbase/fbo-management/internal"
	"github.com/flightbase/fbo-management/internal/core/events"
)

// Service owns grant mutations. Every write publishes a typed event and
// the service subscribes its own invalidation handler, so the resolver
// cache is always flushed for the affected user before a mutation call
// returns. The resolver itself never auto-invalidates on writes.
type Service struct {
	store    AdminStore
	reads    GrantStore
	resolver *Resolver
	bus      *events.EventBus
	logger   *slog.Logger
}

func NewService(store AdminStore, reads GrantStore, resolver *Resolver, bus *events.EventBus, logger *slog.Logger) *Service {
	s := &Service{
		store:    store,
		reads:    reads,
		resolver: resolver,
		bus:      bus,
		logger:   logger,
	}
	s.subscribeInvalidation()
	return s
}

func (s *Service) subscribeInvalidation() {
	perUser := func(ctx context.Context, event events.Event) error {
		if payload, ok := event.Payload().(map[string]interface{}); ok {
			if userID, ok := payload["user_id"].(int64); ok {
				s.resolver.InvalidateUserCache(userID)
			}
		}
		return nil
	}

	s.bus.Subscribe(events.EventTypePermissionGranted, perUser)
	s.bus.Subscribe(events.EventTypePermissionRevoked, perUser)
	s.bus.Subscribe(events.EventTypePermissionDeactivated, perUser)
	s.bus.Subscribe(events.EventTypeGroupMembershipChange, perUser)
	s.bus.Subscribe(events.EventTypeRoleAssignmentChange, perUser)

	// A role↔group link change affects every holder of the role; the
	// membership is not enumerable from the event, so flush everything.
	s.bus.Subscribe(events.EventTypeRoleGroupLinkChange, func(ctx context.Context, event events.Event) error {
		s.resolver.InvalidateCache(nil, "")
		return nil
	})
}

// GrantPermission creates a direct grant, optionally scoped to one
// resource instance and optionally expiring.
func (s *Service) GrantPermission(ctx context.Context, dto GrantPermissionDTO) (*DirectGrant, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	name := NormalizeName(dto.PermissionName)
	perm, err := s.reads.PermissionByName(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, internal.NewNotFoundError("Permission not found", internal.ErrCodePermissionNotFound)
		}
		return nil, err
	}

	grantedBy := dto.GrantedBy
	grant := &DirectGrant{
		UserID:         dto.UserID,
		PermissionID:   perm.ID,
		PermissionName: perm.Name,
		ResourceType:   dto.ResourceType,
		ResourceID:     dto.ResourceID,
		GrantedBy:      &grantedBy,
		GrantedAt:      time.Now(),
		ExpiresAt:      dto.ExpiresAt,
		IsActive:       true,
	}

	if err := s.store.CreateDirectGrant(ctx, grant); err != nil {
		s.logger.Error("failed to create direct grant", "error", err, "user_id", dto.UserID, "permission", name)
		return nil, err
	}

	s.logger.Info("permission granted",
		"user_id", dto.UserID,
		"permission", name,
		"granted_by", dto.GrantedBy)

	s.publish(ctx, events.NewPermissionGrantedEvent(dto.UserID, name, dto.ResourceType, dto.ResourceID, dto.GrantedBy))
	return grant, nil
}

// RevokePermission is terminal: it records who revoked the grant and
// why, and no later reactivation restores access.
func (s *Service) RevokePermission(ctx context.Context, grantID int64, dto RevokePermissionDTO) error {
	if err := dto.Validate(); err != nil {
		return err
	}

	grant, err := s.store.DirectGrantByID(ctx, grantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return internal.ErrGrantNotFound
		}
		return err
	}
	if grant.RevokedAt != nil {
		return internal.ErrGrantRevoked
	}

	if err := s.store.RevokeDirectGrant(ctx, grantID, dto.RevokedBy, dto.Reason); err != nil {
		s.logger.Error("failed to revoke grant", "error", err, "grant_id", grantID)
		return err
	}

	s.logger.Info("permission revoked",
		"grant_id", grantID,
		"user_id", grant.UserID,
		"permission", grant.PermissionName,
		"revoked_by", dto.RevokedBy,
		"reason", dto.Reason)

	s.publish(ctx, events.NewPermissionRevokedEvent(grant.UserID, grant.PermissionName, dto.RevokedBy, dto.Reason))
	return nil
}

// DeactivatePermission soft-disables a grant; unlike revocation it is
// reversible via ReactivatePermission.
func (s *Service) DeactivatePermission(ctx context.Context, grantID int64) error {
	grant, err := s.store.DirectGrantByID(ctx, grantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return internal.ErrGrantNotFound
		}
		return err
	}

	if err := s.store.SetDirectGrantActive(ctx, grantID, false); err != nil {
		return err
	}

	s.logger.Info("permission deactivated", "grant_id", grantID, "user_id", grant.UserID, "permission", grant.PermissionName)
	s.publish(ctx, events.NewPermissionDeactivatedEvent(grant.UserID, grant.PermissionName))
	return nil
}

// ReactivatePermission refuses revoked grants: revocation is a one-way
// terminal state.
func (s *Service) ReactivatePermission(ctx context.Context, grantID int64) error {
	grant, err := s.store.DirectGrantByID(ctx, grantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return internal.ErrGrantNotFound
		}
		return err
	}
	if grant.RevokedAt != nil {
		return internal.ErrGrantRevoked
	}

	if err := s.store.SetDirectGrantActive(ctx, grantID, true); err != nil {
		return err
	}

	s.logger.Info("permission reactivated", "grant_id", grantID, "user_id", grant.UserID, "permission", grant.PermissionName)
	s.publish(ctx, events.NewPermissionGrantedEvent(grant.UserID, grant.PermissionName, grant.ResourceType, grant.ResourceID, grant.UserID))
	return nil
}

func (s *Service) AddGroupMembership(ctx context.Context, userID int64, dto GroupMembershipDTO) error {
	if err := dto.Validate(); err != nil {
		return err
	}

	assignedBy := dto.AssignedBy
	membership := &GroupMembership{
		UserID:     userID,
		GroupID:    dto.GroupID,
		AssignedBy: &assignedBy,
		AssignedAt: time.Now(),
		ExpiresAt:  dto.ExpiresAt,
		IsActive:   true,
	}

	if err := s.store.AddGroupMembership(ctx, membership); err != nil {
		s.logger.Error("failed to add group membership", "error", err, "user_id", userID, "group_id", dto.GroupID)
		return err
	}

	s.logger.Info("group membership added", "user_id", userID, "group_id", dto.GroupID, "assigned_by", dto.AssignedBy)
	s.publish(ctx, events.NewGroupMembershipChangedEvent(userID, dto.GroupID, "added"))
	return nil
}

func (s *Service) RemoveGroupMembership(ctx context.Context, userID, groupID int64) error {
	if err := s.store.RemoveGroupMembership(ctx, userID, groupID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return internal.ErrGrantNotFound
		}
		return err
	}

	s.logger.Info("group membership removed", "user_id", userID, "group_id", groupID)
	s.publish(ctx, events.NewGroupMembershipChangedEvent(userID, groupID, "removed"))
	return nil
}

func (s *Service) AssignRole(ctx context.Context, userID int64, dto RoleAssignmentDTO) error {
	if err := dto.Validate(); err != nil {
		return err
	}

	assignedBy := dto.AssignedBy
	assignment := &RoleAssignment{
		UserID:     userID,
		RoleID:     dto.RoleID,
		AssignedBy: &assignedBy,
		AssignedAt: time.Now(),
		IsActive:   true,
	}

	if err := s.store.AssignRole(ctx, assignment); err != nil {
		s.logger.Error("failed to assign role", "error", err, "user_id", userID, "role_id", dto.RoleID)
		return err
	}

	s.logger.Info("role assigned", "user_id", userID, "role_id", dto.RoleID, "assigned_by", dto.AssignedBy)
	s.publish(ctx, events.NewRoleAssignmentChangedEvent(userID, dto.RoleID, "assigned"))
	return nil
}

func (s *Service) RemoveRole(ctx context.Context, userID, roleID int64) error {
	if err := s.store.RemoveRole(ctx, userID, roleID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return internal.ErrGrantNotFound
		}
		return err
	}

	s.logger.Info("role removed", "user_id", userID, "role_id", roleID)
	s.publish(ctx, events.NewRoleAssignmentChangedEvent(userID, roleID, "removed"))
	return nil
}

func (s *Service) SetRoleGroupLink(ctx context.Context, roleID, groupID int64, active bool, assignedBy *int64) error {
	if err := s.store.SetRoleGroupLink(ctx, roleID, groupID, active, assignedBy); err != nil {
		return err
	}

	change := "linked"
	if !active {
		change = "deactivated"
	}
	s.logger.Info("role group link updated", "role_id", roleID, "group_id", groupID, "change", change)
	s.publish(ctx, events.NewRoleGroupLinkChangedEvent(roleID, groupID, change))
	return nil
}

// publish delivers synchronously so the cache is invalidated before the
// mutation call returns; a handler failure is logged but does not undo
// the committed write.
func (s *Service) publish(ctx context.Context, event events.Event) {
	if err := s.bus.PublishSync(ctx, event); err != nil {
		s.logger.Error("failed to publish access event", "event_type", event.EventType(), "error", err)
	}
}

package accesscontrol_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/flightbase/fbo-management/internal"
	"github.com/flightbase/fbo-management/internal/accesscontrol"
	"github.com/flightbase/fbo-management/internal/core/events"
)

// Mock admin store layered over the shared grant store mock so service
// writes become visible to the resolver.
type mockAdminStore struct {
	reads  *mockGrantStore
	grants map[int64]*accesscontrol.DirectGrant
	nextID int64

	createErr error
	revokeErr error
}

func newMockAdminStore(reads *mockGrantStore) *mockAdminStore {
	return &mockAdminStore{
		reads:  reads,
		grants: make(map[int64]*accesscontrol.DirectGrant),
		nextID: 1,
	}
}

func (m *mockAdminStore) CreateDirectGrant(ctx context.Context, grant *accesscontrol.DirectGrant) error {
	if m.createErr != nil {
		return m.createErr
	}
	grant.ID = m.nextID
	m.nextID++
	m.grants[grant.ID] = grant
	m.reads.direct[grant.UserID] = append(m.reads.direct[grant.UserID], *grant)
	return nil
}

func (m *mockAdminStore) DirectGrantByID(ctx context.Context, grantID int64) (*accesscontrol.DirectGrant, error) {
	g, ok := m.grants[grantID]
	if !ok {
		return nil, accesscontrol.ErrNotFound
	}
	copied := *g
	return &copied, nil
}

func (m *mockAdminStore) SetDirectGrantActive(ctx context.Context, grantID int64, active bool) error {
	g, ok := m.grants[grantID]
	if !ok {
		return accesscontrol.ErrNotFound
	}
	g.IsActive = active
	m.syncReads(g)
	return nil
}

func (m *mockAdminStore) RevokeDirectGrant(ctx context.Context, grantID, revokedBy int64, reason string) error {
	if m.revokeErr != nil {
		return m.revokeErr
	}
	g, ok := m.grants[grantID]
	if !ok {
		return accesscontrol.ErrNotFound
	}
	now := time.Now()
	g.RevokedAt = &now
	g.RevokedBy = &revokedBy
	g.RevocationReason = &reason
	m.syncReads(g)
	return nil
}

func (m *mockAdminStore) AddGroupMembership(ctx context.Context, membership *accesscontrol.GroupMembership) error {
	m.reads.memberships[membership.UserID] = append(m.reads.memberships[membership.UserID], *membership)
	return nil
}

func (m *mockAdminStore) RemoveGroupMembership(ctx context.Context, userID, groupID int64) error {
	kept := m.reads.memberships[userID][:0]
	found := false
	for _, ms := range m.reads.memberships[userID] {
		if ms.GroupID == groupID {
			found = true
			continue
		}
		kept = append(kept, ms)
	}
	if !found {
		return accesscontrol.ErrNotFound
	}
	m.reads.memberships[userID] = kept
	return nil
}

func (m *mockAdminStore) AssignRole(ctx context.Context, assignment *accesscontrol.RoleAssignment) error {
	m.reads.roles[assignment.UserID] = append(m.reads.roles[assignment.UserID], *assignment)
	return nil
}

func (m *mockAdminStore) RemoveRole(ctx context.Context, userID, roleID int64) error {
	kept := m.reads.roles[userID][:0]
	found := false
	for _, a := range m.reads.roles[userID] {
		if a.RoleID == roleID {
			found = true
			continue
		}
		kept = append(kept, a)
	}
	if !found {
		return accesscontrol.ErrNotFound
	}
	m.reads.roles[userID] = kept
	return nil
}

func (m *mockAdminStore) SetRoleGroupLink(ctx context.Context, roleID, groupID int64, active bool, assignedBy *int64) error {
	for i, l := range m.reads.roleLinks[roleID] {
		if l.GroupID == groupID {
			m.reads.roleLinks[roleID][i].IsActive = active
			return nil
		}
	}
	m.reads.roleLinks[roleID] = append(m.reads.roleLinks[roleID], accesscontrol.RoleGroupLink{
		RoleID: roleID, GroupID: groupID, IsActive: active,
	})
	return nil
}

func (m *mockAdminStore) syncReads(g *accesscontrol.DirectGrant) {
	for i, existing := range m.reads.direct[g.UserID] {
		if existing.ID == g.ID {
			m.reads.direct[g.UserID][i] = *g
		}
	}
}

var _ = Describe("AccessService", func() {
	var (
		reads    *mockGrantStore
		admin    *mockAdminStore
		resolver *accesscontrol.Resolver
		service  *accesscontrol.Service
		ctx      context.Context
	)

	BeforeEach(func() {
		reads = newMockGrantStore()
		admin = newMockAdminStore(reads)
		logger := testLogger()
		resolver = accesscontrol.NewResolver(reads, accesscontrol.NewCache(100, time.Minute),
			accesscontrol.NewOwnershipRegistry(logger), logger)
		service = accesscontrol.NewService(admin, reads, resolver, events.NewEventBus(logger), logger)
		ctx = context.Background()

		reads.addPermission(1, "view_fuel_order")
	})

	Describe("GrantPermission", func() {
		It("should create an active grant for an existing permission", func() {
			grant, err := service.GrantPermission(ctx, accesscontrol.GrantPermissionDTO{
				UserID:         42,
				PermissionName: "view_fuel_order",
				GrantedBy:      1,
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(grant.ID).To(BeNumerically(">", 0))
			Expect(grant.IsActive).To(BeTrue())
			Expect(grant.PermissionID).To(Equal(int64(1)))
		})

		It("should normalize the permission name before lookup", func() {
			grant, err := service.GrantPermission(ctx, accesscontrol.GrantPermissionDTO{
				UserID:         42,
				PermissionName: " View_Fuel_Order ",
				GrantedBy:      1,
			})

			Expect(err).ToNot(HaveOccurred())
			Expect(grant.PermissionName).To(Equal("view_fuel_order"))
		})

		It("should reject an unknown permission", func() {
			_, err := service.GrantPermission(ctx, accesscontrol.GrantPermissionDTO{
				UserID:         42,
				PermissionName: "no_such_permission",
				GrantedBy:      1,
			})

			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("Permission not found"))
		})

		It("should reject a resource id without a resource type", func() {
			_, err := service.GrantPermission(ctx, accesscontrol.GrantPermissionDTO{
				UserID:         42,
				PermissionName: "view_fuel_order",
				ResourceID:     strPtr("17"),
				GrantedBy:      1,
			})

			Expect(err).To(HaveOccurred())
		})

		It("should reject an expiry in the past", func() {
			past := time.Now().Add(-time.Hour)
			_, err := service.GrantPermission(ctx, accesscontrol.GrantPermissionDTO{
				UserID:         42,
				PermissionName: "view_fuel_order",
				ExpiresAt:      &past,
				GrantedBy:      1,
			})

			Expect(err).To(HaveOccurred())
		})

		It("should invalidate the user's cached decisions before returning", func() {
			denied, err := resolver.IsAuthorized(ctx, 42, "view_fuel_order", nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(denied).To(BeFalse())

			_, err = service.GrantPermission(ctx, accesscontrol.GrantPermissionDTO{
				UserID:         42,
				PermissionName: "view_fuel_order",
				GrantedBy:      1,
			})
			Expect(err).ToNot(HaveOccurred())

			allowed, err := resolver.IsAuthorized(ctx, 42, "view_fuel_order", nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(allowed).To(BeTrue())
		})
	})

	Describe("RevokePermission", func() {
		var grantID int64

		BeforeEach(func() {
			grant, err := service.GrantPermission(ctx, accesscontrol.GrantPermissionDTO{
				UserID:         42,
				PermissionName: "view_fuel_order",
				GrantedBy:      1,
			})
			Expect(err).ToNot(HaveOccurred())
			grantID = grant.ID
		})

		It("should revoke and record who and why", func() {
			err := service.RevokePermission(ctx, grantID, accesscontrol.RevokePermissionDTO{
				RevokedBy: 1,
				Reason:    "contract ended",
			})

			Expect(err).ToNot(HaveOccurred())

			revoked, err := admin.DirectGrantByID(ctx, grantID)
			Expect(err).ToNot(HaveOccurred())
			Expect(revoked.RevokedAt).ToNot(BeNil())
			Expect(*revoked.RevocationReason).To(Equal("contract ended"))
		})

		It("should require a reason", func() {
			err := service.RevokePermission(ctx, grantID, accesscontrol.RevokePermissionDTO{RevokedBy: 1})

			Expect(err).To(HaveOccurred())
		})

		It("should refuse to revoke twice", func() {
			err := service.RevokePermission(ctx, grantID, accesscontrol.RevokePermissionDTO{RevokedBy: 1, Reason: "first"})
			Expect(err).ToNot(HaveOccurred())

			err = service.RevokePermission(ctx, grantID, accesscontrol.RevokePermissionDTO{RevokedBy: 1, Reason: "second"})
			Expect(err).To(MatchError(internal.ErrGrantRevoked))
		})

		It("should return not found for an unknown grant", func() {
			err := service.RevokePermission(ctx, 999, accesscontrol.RevokePermissionDTO{RevokedBy: 1, Reason: "cleanup"})

			Expect(err).To(MatchError(internal.ErrGrantNotFound))
		})

		It("should take effect on the very next authorization check", func() {
			allowed, err := resolver.IsAuthorized(ctx, 42, "view_fuel_order", nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(allowed).To(BeTrue())

			err = service.RevokePermission(ctx, grantID, accesscontrol.RevokePermissionDTO{RevokedBy: 1, Reason: "incident"})
			Expect(err).ToNot(HaveOccurred())

			allowed, err = resolver.IsAuthorized(ctx, 42, "view_fuel_order", nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(allowed).To(BeFalse())
		})
	})

	Describe("deactivate and reactivate", func() {
		var grantID int64

		BeforeEach(func() {
			grant, err := service.GrantPermission(ctx, accesscontrol.GrantPermissionDTO{
				UserID:         42,
				PermissionName: "view_fuel_order",
				GrantedBy:      1,
			})
			Expect(err).ToNot(HaveOccurred())
			grantID = grant.ID
		})

		It("should round-trip deactivate then reactivate", func() {
			Expect(service.DeactivatePermission(ctx, grantID)).To(Succeed())

			allowed, err := resolver.IsAuthorized(ctx, 42, "view_fuel_order", nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(allowed).To(BeFalse())

			Expect(service.ReactivatePermission(ctx, grantID)).To(Succeed())

			allowed, err = resolver.IsAuthorized(ctx, 42, "view_fuel_order", nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(allowed).To(BeTrue())
		})

		It("should refuse to reactivate a revoked grant", func() {
			err := service.RevokePermission(ctx, grantID, accesscontrol.RevokePermissionDTO{RevokedBy: 1, Reason: "incident"})
			Expect(err).ToNot(HaveOccurred())

			err = service.ReactivatePermission(ctx, grantID)
			Expect(err).To(MatchError(internal.ErrGrantRevoked))

			allowed, err := resolver.IsAuthorized(ctx, 42, "view_fuel_order", nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(allowed).To(BeFalse())
		})
	})

	Describe("group memberships", func() {
		BeforeEach(func() {
			reads.groups[10] = &accesscontrol.PermissionGroup{ID: 10, Name: "fuel_desk", IsActive: true}
			reads.groupPerms[10] = []accesscontrol.Permission{
				{ID: 1, Name: "view_fuel_order", IsActive: true},
			}
		})

		It("should grant through the group and invalidate on add", func() {
			denied, err := resolver.IsAuthorized(ctx, 42, "view_fuel_order", nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(denied).To(BeFalse())

			err = service.AddGroupMembership(ctx, 42, accesscontrol.GroupMembershipDTO{GroupID: 10, AssignedBy: 1})
			Expect(err).ToNot(HaveOccurred())

			allowed, err := resolver.IsAuthorized(ctx, 42, "view_fuel_order", nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(allowed).To(BeTrue())
		})

		It("should drop access and invalidate on remove", func() {
			err := service.AddGroupMembership(ctx, 42, accesscontrol.GroupMembershipDTO{GroupID: 10, AssignedBy: 1})
			Expect(err).ToNot(HaveOccurred())

			allowed, err := resolver.IsAuthorized(ctx, 42, "view_fuel_order", nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(allowed).To(BeTrue())

			Expect(service.RemoveGroupMembership(ctx, 42, 10)).To(Succeed())

			allowed, err = resolver.IsAuthorized(ctx, 42, "view_fuel_order", nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(allowed).To(BeFalse())
		})

		It("should return not found when removing a missing membership", func() {
			err := service.RemoveGroupMembership(ctx, 42, 10)

			Expect(err).To(MatchError(internal.ErrGrantNotFound))
		})
	})

	Describe("roles and role-group links", func() {
		BeforeEach(func() {
			reads.groups[20] = &accesscontrol.PermissionGroup{ID: 20, Name: "access_admin", IsActive: true}
			reads.groupPerms[20] = []accesscontrol.Permission{
				{ID: 1, Name: "view_fuel_order", IsActive: true},
			}
		})

		It("should grant through an assigned role's linked group", func() {
			Expect(service.SetRoleGroupLink(ctx, 5, 20, true, nil)).To(Succeed())
			Expect(service.AssignRole(ctx, 42, accesscontrol.RoleAssignmentDTO{RoleID: 5, AssignedBy: 1})).To(Succeed())

			allowed, err := resolver.IsAuthorized(ctx, 42, "view_fuel_order", nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(allowed).To(BeTrue())
		})

		It("should flush all cached decisions when a link is deactivated", func() {
			Expect(service.SetRoleGroupLink(ctx, 5, 20, true, nil)).To(Succeed())
			Expect(service.AssignRole(ctx, 42, accesscontrol.RoleAssignmentDTO{RoleID: 5, AssignedBy: 1})).To(Succeed())

			allowed, err := resolver.IsAuthorized(ctx, 42, "view_fuel_order", nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(allowed).To(BeTrue())

			// The link change carries no user id, so the whole cache goes.
			Expect(service.SetRoleGroupLink(ctx, 5, 20, false, nil)).To(Succeed())

			allowed, err = resolver.IsAuthorized(ctx, 42, "view_fuel_order", nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(allowed).To(BeFalse())
		})

		It("should drop role-derived access when the role is removed", func() {
			Expect(service.SetRoleGroupLink(ctx, 5, 20, true, nil)).To(Succeed())
			Expect(service.AssignRole(ctx, 42, accesscontrol.RoleAssignmentDTO{RoleID: 5, AssignedBy: 1})).To(Succeed())

			allowed, err := resolver.IsAuthorized(ctx, 42, "view_fuel_order", nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(allowed).To(BeTrue())

			Expect(service.RemoveRole(ctx, 42, 5)).To(Succeed())

			allowed, err = resolver.IsAuthorized(ctx, 42, "view_fuel_order", nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(allowed).To(BeFalse())
		})
	})
})

package postgres_test

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/flightbase/fbo-management/internal/accesscontrol"
	accessPostgres "github.com/flightbase/fbo-management/internal/accesscontrol/postgres"
)

func TestAccessControlPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "AccessControl Postgres Suite")
}

// SQLite-compatible models for testing; the production defaults use
// now(), which SQLite does not accept in DDL.

type SQLitePermission struct {
	ID                      int64   `gorm:"primaryKey"`
	Name                    string  `gorm:"column:name;uniqueIndex;not null"`
	ResourceType            *string `gorm:"column:resource_type"`
	Action                  string  `gorm:"column:action"`
	Scope                   string  `gorm:"column:scope"`
	Description             string  `gorm:"column:description"`
	RequiresResourceContext bool    `gorm:"column:requires_resource_context"`
	IsSystemPermission      bool    `gorm:"column:is_system_permission"`
	IsActive                bool    `gorm:"column:is_active"`
}

func (SQLitePermission) TableName() string { return "permissions" }

type SQLitePermissionGroup struct {
	ID            int64  `gorm:"primaryKey"`
	Name          string `gorm:"column:name;uniqueIndex;not null"`
	Description   string `gorm:"column:description"`
	Category      string `gorm:"column:category"`
	ParentGroupID *int64 `gorm:"column:parent_group_id"`
	SortOrder     int    `gorm:"column:sort_order"`
	IsSystemGroup bool   `gorm:"column:is_system_group"`
	IsActive      bool   `gorm:"column:is_active"`
}

func (SQLitePermissionGroup) TableName() string { return "permission_groups" }

type SQLiteGroupPermission struct {
	ID           int64 `gorm:"primaryKey"`
	GroupID      int64 `gorm:"column:group_id;not null"`
	PermissionID int64 `gorm:"column:permission_id;not null"`
}

func (SQLiteGroupPermission) TableName() string { return "permission_group_permissions" }

type SQLiteRole struct {
	ID       int64  `gorm:"primaryKey"`
	Name     string `gorm:"column:name;uniqueIndex;not null"`
	IsActive bool   `gorm:"column:is_active"`
}

func (SQLiteRole) TableName() string { return "roles" }

type SQLiteUserRole struct {
	ID         int64     `gorm:"primaryKey"`
	UserID     int64     `gorm:"column:user_id;not null"`
	RoleID     int64     `gorm:"column:role_id;not null"`
	AssignedBy *int64    `gorm:"column:assigned_by"`
	AssignedAt time.Time `gorm:"column:assigned_at"`
	IsActive   bool      `gorm:"column:is_active"`
}

func (SQLiteUserRole) TableName() string { return "user_roles" }

type SQLiteRoleGroup struct {
	ID         int64     `gorm:"primaryKey"`
	RoleID     int64     `gorm:"column:role_id;not null"`
	GroupID    int64     `gorm:"column:group_id;not null"`
	AssignedBy *int64    `gorm:"column:assigned_by"`
	AssignedAt time.Time `gorm:"column:assigned_at"`
	IsActive   bool      `gorm:"column:is_active"`
}

func (SQLiteRoleGroup) TableName() string { return "role_permission_groups" }

type SQLiteUserGroup struct {
	ID         int64      `gorm:"primaryKey"`
	UserID     int64      `gorm:"column:user_id;not null"`
	GroupID    int64      `gorm:"column:group_id;not null"`
	AssignedBy *int64     `gorm:"column:assigned_by"`
	AssignedAt time.Time  `gorm:"column:assigned_at"`
	ExpiresAt  *time.Time `gorm:"column:expires_at"`
	IsActive   bool       `gorm:"column:is_active"`
}

func (SQLiteUserGroup) TableName() string { return "user_permission_groups" }

type SQLiteUserPermission struct {
	ID               int64      `gorm:"primaryKey"`
	UserID           int64      `gorm:"column:user_id;not null"`
	PermissionID     int64      `gorm:"column:permission_id;not null"`
	ResourceType     *string    `gorm:"column:resource_type"`
	ResourceID       *string    `gorm:"column:resource_id"`
	GrantedBy        *int64     `gorm:"column:granted_by"`
	GrantedAt        time.Time  `gorm:"column:granted_at"`
	ExpiresAt        *time.Time `gorm:"column:expires_at"`
	IsActive         bool       `gorm:"column:is_active"`
	RevokedAt        *time.Time `gorm:"column:revoked_at"`
	RevokedBy        *int64     `gorm:"column:revoked_by"`
	RevocationReason *string    `gorm:"column:revocation_reason"`
}

func (SQLiteUserPermission) TableName() string { return "user_permissions" }

var _ = Describe("AccessControl Repository", func() {
	var (
		db   *gorm.DB
		repo *accessPostgres.Repository
		ctx  context.Context
	)

	strPtr := func(s string) *string { return &s }

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(
			&SQLitePermission{},
			&SQLitePermissionGroup{},
			&SQLiteGroupPermission{},
			&SQLiteRole{},
			&SQLiteUserRole{},
			&SQLiteRoleGroup{},
			&SQLiteUserGroup{},
			&SQLiteUserPermission{},
		)
		Expect(err).NotTo(HaveOccurred())

		repo = accessPostgres.NewRepository(db)
		ctx = context.Background()
	})

	seedPermission := func(name string) SQLitePermission {
		p := SQLitePermission{Name: name, IsActive: true}
		Expect(db.Create(&p).Error).NotTo(HaveOccurred())
		return p
	}

	Describe("PermissionByName", func() {
		It("should find a permission regardless of stored casing", func() {
			seedPermission("View_Fuel_Order")

			p, err := repo.PermissionByName(ctx, "view_fuel_order")

			Expect(err).NotTo(HaveOccurred())
			Expect(p.Name).To(Equal("view_fuel_order"))
		})

		It("should normalize the lookup name too", func() {
			seedPermission("view_fuel_order")

			p, err := repo.PermissionByName(ctx, "  VIEW_FUEL_ORDER ")

			Expect(err).NotTo(HaveOccurred())
			Expect(p.Name).To(Equal("view_fuel_order"))
		})

		It("should return ErrNotFound for an unknown name", func() {
			_, err := repo.PermissionByName(ctx, "missing")

			Expect(err).To(MatchError(accesscontrol.ErrNotFound))
		})
	})

	Describe("DirectGrantsForUser", func() {
		It("should join the lowercased permission name", func() {
			p := seedPermission("View_Fuel_Order")
			grant := SQLiteUserPermission{
				UserID: 42, PermissionID: p.ID, IsActive: true, GrantedAt: time.Now(),
				ResourceType: strPtr("fuel_order"), ResourceID: strPtr("17"),
			}
			Expect(db.Create(&grant).Error).NotTo(HaveOccurred())

			grants, err := repo.DirectGrantsForUser(ctx, 42)

			Expect(err).NotTo(HaveOccurred())
			Expect(grants).To(HaveLen(1))
			Expect(grants[0].PermissionName).To(Equal("view_fuel_order"))
			Expect(*grants[0].ResourceType).To(Equal("fuel_order"))
			Expect(*grants[0].ResourceID).To(Equal("17"))
		})

		It("should return an empty slice for a user without grants", func() {
			grants, err := repo.DirectGrantsForUser(ctx, 99)

			Expect(err).NotTo(HaveOccurred())
			Expect(grants).To(BeEmpty())
		})
	})

	Describe("GroupMembershipsForUser", func() {
		It("should omit memberships of inactive groups", func() {
			active := SQLitePermissionGroup{Name: "fuel_desk", IsActive: true}
			retired := SQLitePermissionGroup{Name: "retired_desk", IsActive: false}
			Expect(db.Create(&active).Error).NotTo(HaveOccurred())
			Expect(db.Create(&retired).Error).NotTo(HaveOccurred())

			for _, groupID := range []int64{active.ID, retired.ID} {
				m := SQLiteUserGroup{UserID: 42, GroupID: groupID, IsActive: true, AssignedAt: time.Now()}
				Expect(db.Create(&m).Error).NotTo(HaveOccurred())
			}

			memberships, err := repo.GroupMembershipsForUser(ctx, 42)

			Expect(err).NotTo(HaveOccurred())
			Expect(memberships).To(HaveLen(1))
			Expect(memberships[0].GroupID).To(Equal(active.ID))
		})

		It("should still return inactive memberships of active groups", func() {
			group := SQLitePermissionGroup{Name: "fuel_desk", IsActive: true}
			Expect(db.Create(&group).Error).NotTo(HaveOccurred())
			m := SQLiteUserGroup{UserID: 42, GroupID: group.ID, IsActive: false, AssignedAt: time.Now()}
			Expect(db.Create(&m).Error).NotTo(HaveOccurred())

			memberships, err := repo.GroupMembershipsForUser(ctx, 42)

			Expect(err).NotTo(HaveOccurred())
			Expect(memberships).To(HaveLen(1))
			Expect(memberships[0].IsActive).To(BeFalse())
		})
	})

	Describe("RoleAssignmentsForUser", func() {
		It("should join the role name and omit inactive roles", func() {
			admin := SQLiteRole{Name: "administrator", IsActive: true}
			legacy := SQLiteRole{Name: "legacy_role", IsActive: false}
			Expect(db.Create(&admin).Error).NotTo(HaveOccurred())
			Expect(db.Create(&legacy).Error).NotTo(HaveOccurred())

			for _, roleID := range []int64{admin.ID, legacy.ID} {
				a := SQLiteUserRole{UserID: 42, RoleID: roleID, IsActive: true, AssignedAt: time.Now()}
				Expect(db.Create(&a).Error).NotTo(HaveOccurred())
			}

			assignments, err := repo.RoleAssignmentsForUser(ctx, 42)

			Expect(err).NotTo(HaveOccurred())
			Expect(assignments).To(HaveLen(1))
			Expect(assignments[0].RoleName).To(Equal("administrator"))
		})
	})

	Describe("GroupLinksForRole", func() {
		It("should omit links to inactive groups", func() {
			active := SQLitePermissionGroup{Name: "fuel_desk", IsActive: true}
			retired := SQLitePermissionGroup{Name: "retired_desk", IsActive: false}
			Expect(db.Create(&active).Error).NotTo(HaveOccurred())
			Expect(db.Create(&retired).Error).NotTo(HaveOccurred())

			for _, groupID := range []int64{active.ID, retired.ID} {
				l := SQLiteRoleGroup{RoleID: 5, GroupID: groupID, IsActive: true, AssignedAt: time.Now()}
				Expect(db.Create(&l).Error).NotTo(HaveOccurred())
			}

			links, err := repo.GroupLinksForRole(ctx, 5)

			Expect(err).NotTo(HaveOccurred())
			Expect(links).To(HaveLen(1))
			Expect(links[0].GroupID).To(Equal(active.ID))
		})
	})

	Describe("PermissionsForGroup", func() {
		It("should return the group's linked permissions", func() {
			group := SQLitePermissionGroup{Name: "fuel_desk", IsActive: true}
			Expect(db.Create(&group).Error).NotTo(HaveOccurred())
			p1 := seedPermission("create_fuel_order")
			p2 := seedPermission("view_receipts")
			for _, pid := range []int64{p1.ID, p2.ID} {
				link := SQLiteGroupPermission{GroupID: group.ID, PermissionID: pid}
				Expect(db.Create(&link).Error).NotTo(HaveOccurred())
			}

			perms, err := repo.PermissionsForGroup(ctx, group.ID)

			Expect(err).NotTo(HaveOccurred())
			Expect(perms).To(HaveLen(2))
		})
	})

	Describe("GroupByID and AllGroups", func() {
		BeforeEach(func() {
			groups := []SQLitePermissionGroup{
				{Name: "fuel_desk", SortOrder: 2, IsActive: true},
				{Name: "access_admin", SortOrder: 1, IsActive: true},
				{Name: "retired_desk", SortOrder: 3, IsActive: false},
			}
			for i := range groups {
				Expect(db.Create(&groups[i]).Error).NotTo(HaveOccurred())
			}
		})

		It("should look up a group by id", func() {
			g, err := repo.GroupByID(ctx, 1)

			Expect(err).NotTo(HaveOccurred())
			Expect(g.Name).To(Equal("fuel_desk"))
		})

		It("should return ErrNotFound for a missing group", func() {
			_, err := repo.GroupByID(ctx, 999)

			Expect(err).To(MatchError(accesscontrol.ErrNotFound))
		})

		It("should list active groups in display order", func() {
			groups, err := repo.AllGroups(ctx, false)

			Expect(err).NotTo(HaveOccurred())
			Expect(groups).To(HaveLen(2))
			Expect(groups[0].Name).To(Equal("access_admin"))
			Expect(groups[1].Name).To(Equal("fuel_desk"))
		})

		It("should include inactive groups on request", func() {
			groups, err := repo.AllGroups(ctx, true)

			Expect(err).NotTo(HaveOccurred())
			Expect(groups).To(HaveLen(3))
		})
	})

	Describe("CreateDirectGrant", func() {
		It("should persist and backfill the id", func() {
			p := seedPermission("view_fuel_order")
			grant := &accesscontrol.DirectGrant{
				UserID:       42,
				PermissionID: p.ID,
				GrantedAt:    time.Now(),
				IsActive:     true,
			}

			err := repo.CreateDirectGrant(ctx, grant)

			Expect(err).NotTo(HaveOccurred())
			Expect(grant.ID).To(BeNumerically(">", 0))

			stored, err := repo.DirectGrantByID(ctx, grant.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.UserID).To(Equal(int64(42)))
			Expect(stored.PermissionName).To(Equal("view_fuel_order"))
		})
	})

	Describe("SetDirectGrantActive", func() {
		It("should toggle the active flag", func() {
			p := seedPermission("view_fuel_order")
			grant := &accesscontrol.DirectGrant{UserID: 42, PermissionID: p.ID, GrantedAt: time.Now(), IsActive: true}
			Expect(repo.CreateDirectGrant(ctx, grant)).To(Succeed())

			Expect(repo.SetDirectGrantActive(ctx, grant.ID, false)).To(Succeed())

			stored, err := repo.DirectGrantByID(ctx, grant.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.IsActive).To(BeFalse())
		})

		It("should return ErrNotFound for a missing grant", func() {
			err := repo.SetDirectGrantActive(ctx, 999, false)

			Expect(err).To(MatchError(accesscontrol.ErrNotFound))
		})
	})

	Describe("RevokeDirectGrant", func() {
		var grant *accesscontrol.DirectGrant

		BeforeEach(func() {
			p := seedPermission("view_fuel_order")
			grant = &accesscontrol.DirectGrant{UserID: 42, PermissionID: p.ID, GrantedAt: time.Now(), IsActive: true}
			Expect(repo.CreateDirectGrant(ctx, grant)).To(Succeed())
		})

		It("should record revocation metadata and deactivate", func() {
			err := repo.RevokeDirectGrant(ctx, grant.ID, 1, "contract ended")

			Expect(err).NotTo(HaveOccurred())

			stored, err := repo.DirectGrantByID(ctx, grant.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.RevokedAt).NotTo(BeNil())
			Expect(*stored.RevokedBy).To(Equal(int64(1)))
			Expect(*stored.RevocationReason).To(Equal("contract ended"))
			Expect(stored.IsActive).To(BeFalse())
		})

		It("should not touch an already revoked grant", func() {
			Expect(repo.RevokeDirectGrant(ctx, grant.ID, 1, "first")).To(Succeed())

			err := repo.RevokeDirectGrant(ctx, grant.ID, 2, "second")

			Expect(err).To(MatchError(accesscontrol.ErrNotFound))

			stored, err := repo.DirectGrantByID(ctx, grant.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(*stored.RevocationReason).To(Equal("first"))
		})
	})

	Describe("AddGroupMembership", func() {
		var group SQLitePermissionGroup

		BeforeEach(func() {
			group = SQLitePermissionGroup{Name: "fuel_desk", IsActive: true}
			Expect(db.Create(&group).Error).NotTo(HaveOccurred())
		})

		It("should create a new membership", func() {
			m := &accesscontrol.GroupMembership{
				UserID: 42, GroupID: group.ID, AssignedAt: time.Now(), IsActive: true,
			}

			err := repo.AddGroupMembership(ctx, m)

			Expect(err).NotTo(HaveOccurred())
			Expect(m.ID).To(BeNumerically(">", 0))
		})

		It("should reactivate an existing membership instead of duplicating", func() {
			m := &accesscontrol.GroupMembership{UserID: 42, GroupID: group.ID, AssignedAt: time.Now(), IsActive: true}
			Expect(repo.AddGroupMembership(ctx, m)).To(Succeed())
			Expect(repo.RemoveGroupMembership(ctx, 42, group.ID)).To(Succeed())

			again := &accesscontrol.GroupMembership{UserID: 42, GroupID: group.ID, AssignedAt: time.Now(), IsActive: true}
			Expect(repo.AddGroupMembership(ctx, again)).To(Succeed())

			Expect(again.ID).To(Equal(m.ID))

			memberships, err := repo.GroupMembershipsForUser(ctx, 42)
			Expect(err).NotTo(HaveOccurred())
			Expect(memberships).To(HaveLen(1))
			Expect(memberships[0].IsActive).To(BeTrue())
		})
	})

	Describe("RemoveGroupMembership", func() {
		It("should return ErrNotFound when no active membership exists", func() {
			err := repo.RemoveGroupMembership(ctx, 42, 10)

			Expect(err).To(MatchError(accesscontrol.ErrNotFound))
		})
	})

	Describe("AssignRole and RemoveRole", func() {
		var role SQLiteRole

		BeforeEach(func() {
			role = SQLiteRole{Name: "administrator", IsActive: true}
			Expect(db.Create(&role).Error).NotTo(HaveOccurred())
		})

		It("should assign, deactivate and reassign without duplicating", func() {
			a := &accesscontrol.RoleAssignment{UserID: 42, RoleID: role.ID, AssignedAt: time.Now(), IsActive: true}
			Expect(repo.AssignRole(ctx, a)).To(Succeed())
			Expect(repo.RemoveRole(ctx, 42, role.ID)).To(Succeed())

			again := &accesscontrol.RoleAssignment{UserID: 42, RoleID: role.ID, AssignedAt: time.Now(), IsActive: true}
			Expect(repo.AssignRole(ctx, again)).To(Succeed())
			Expect(again.ID).To(Equal(a.ID))

			assignments, err := repo.RoleAssignmentsForUser(ctx, 42)
			Expect(err).NotTo(HaveOccurred())
			Expect(assignments).To(HaveLen(1))
			Expect(assignments[0].IsActive).To(BeTrue())
		})

		It("should return ErrNotFound when removing a missing assignment", func() {
			err := repo.RemoveRole(ctx, 42, role.ID)

			Expect(err).To(MatchError(accesscontrol.ErrNotFound))
		})
	})

	Describe("SetRoleGroupLink", func() {
		var group SQLitePermissionGroup

		BeforeEach(func() {
			group = SQLitePermissionGroup{Name: "fuel_desk", IsActive: true}
			Expect(db.Create(&group).Error).NotTo(HaveOccurred())
		})

		It("should create a link and later deactivate it in place", func() {
			Expect(repo.SetRoleGroupLink(ctx, 5, group.ID, true, nil)).To(Succeed())

			links, err := repo.GroupLinksForRole(ctx, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(links).To(HaveLen(1))
			Expect(links[0].IsActive).To(BeTrue())

			Expect(repo.SetRoleGroupLink(ctx, 5, group.ID, false, nil)).To(Succeed())

			links, err = repo.GroupLinksForRole(ctx, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(links).To(HaveLen(1))
			Expect(links[0].IsActive).To(BeFalse())
		})
	})
})

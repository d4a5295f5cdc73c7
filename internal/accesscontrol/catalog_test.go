package accesscontrol_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/flightbase/fbo-management/internal/accesscontrol"
)

var _ = Describe("GroupCatalog", func() {
	var (
		store   *mockGrantStore
		catalog *accesscontrol.GroupCatalog
		ctx     context.Context
	)

	group := func(id int64, name string, parent *int64) *accesscontrol.PermissionGroup {
		return &accesscontrol.PermissionGroup{ID: id, Name: name, ParentGroupID: parent, IsActive: true}
	}

	BeforeEach(func() {
		store = newMockGrantStore()
		catalog = accesscontrol.NewGroupCatalog(store, testLogger())
		ctx = context.Background()
	})

	Describe("ExpandParents", func() {
		It("should include the starting groups and their ancestors", func() {
			rootID, midID := int64(1), int64(2)
			store.groups[1] = group(1, "operations", nil)
			store.groups[2] = group(2, "fuel_desk", &rootID)
			store.groups[3] = group(3, "fuel_desk_jr", &midID)

			ids, err := catalog.ExpandParents(ctx, []int64{3})

			Expect(err).ToNot(HaveOccurred())
			Expect(ids).To(ConsistOf(int64(3), int64(2), int64(1)))
		})

		It("should stop at an inactive parent", func() {
			rootID := int64(1)
			store.groups[1] = group(1, "operations", nil)
			store.groups[1].IsActive = false
			store.groups[2] = group(2, "fuel_desk", &rootID)

			ids, err := catalog.ExpandParents(ctx, []int64{2})

			Expect(err).ToNot(HaveOccurred())
			// The inactive parent is reached but its own parents are not walked.
			Expect(ids).To(ConsistOf(int64(2), int64(1)))
		})

		It("should survive a cycle in the hierarchy", func() {
			aID, bID := int64(1), int64(2)
			store.groups[1] = group(1, "a", &bID)
			store.groups[2] = group(2, "b", &aID)

			ids, err := catalog.ExpandParents(ctx, []int64{1})

			Expect(err).ToNot(HaveOccurred())
			Expect(ids).To(ConsistOf(int64(1), int64(2)))
		})

		It("should deduplicate shared ancestors", func() {
			rootID := int64(1)
			store.groups[1] = group(1, "operations", nil)
			store.groups[2] = group(2, "fuel_desk", &rootID)
			store.groups[3] = group(3, "line_crew", &rootID)

			ids, err := catalog.ExpandParents(ctx, []int64{2, 3})

			Expect(err).ToNot(HaveOccurred())
			Expect(ids).To(ConsistOf(int64(2), int64(3), int64(1)))
		})

		It("should tolerate a dangling parent reference", func() {
			missing := int64(99)
			store.groups[2] = group(2, "fuel_desk", &missing)

			ids, err := catalog.ExpandParents(ctx, []int64{2})

			Expect(err).ToNot(HaveOccurred())
			Expect(ids).To(ConsistOf(int64(2), int64(99)))
		})
	})

	Describe("PermissionNames", func() {
		It("should return the sorted union over the groups", func() {
			store.groupPerms[1] = []accesscontrol.Permission{
				{ID: 1, Name: "view_receipts", IsActive: true},
				{ID: 2, Name: "create_fuel_order", IsActive: true},
			}
			store.groupPerms[2] = []accesscontrol.Permission{
				{ID: 2, Name: "create_fuel_order", IsActive: true},
				{ID: 3, Name: "manage_fuel_orders", IsActive: true},
			}

			names, err := catalog.PermissionNames(ctx, []int64{1, 2})

			Expect(err).ToNot(HaveOccurred())
			Expect(names).To(Equal([]string{"create_fuel_order", "manage_fuel_orders", "view_receipts"}))
		})

		It("should skip inactive permissions", func() {
			store.groupPerms[1] = []accesscontrol.Permission{
				{ID: 1, Name: "view_receipts", IsActive: false},
				{ID: 2, Name: "create_fuel_order", IsActive: true},
			}

			names, err := catalog.PermissionNames(ctx, []int64{1})

			Expect(err).ToNot(HaveOccurred())
			Expect(names).To(Equal([]string{"create_fuel_order"}))
		})
	})

	Describe("ContainsPermission", func() {
		BeforeEach(func() {
			store.groupPerms[1] = []accesscontrol.Permission{
				{ID: 1, Name: "view_receipts", IsActive: true},
			}
		})

		It("should find a directly linked permission", func() {
			found, err := catalog.ContainsPermission(ctx, []int64{1}, "view_receipts")

			Expect(err).ToNot(HaveOccurred())
			Expect(found).To(BeTrue())
		})

		It("should not find an unlinked permission", func() {
			found, err := catalog.ContainsPermission(ctx, []int64{1}, "manage_permissions")

			Expect(err).ToNot(HaveOccurred())
			Expect(found).To(BeFalse())
		})

		It("should not match an inactive permission", func() {
			store.groupPerms[1][0].IsActive = false

			found, err := catalog.ContainsPermission(ctx, []int64{1}, "view_receipts")

			Expect(err).ToNot(HaveOccurred())
			Expect(found).To(BeFalse())
		})
	})

	Describe("Groups", func() {
		BeforeEach(func() {
			store.groups[1] = group(1, "fuel_desk", nil)
			store.groups[2] = group(2, "retired_desk", nil)
			store.groups[2].IsActive = false
		})

		It("should key active groups by name", func() {
			groups, err := catalog.Groups(ctx, false)

			Expect(err).ToNot(HaveOccurred())
			Expect(groups).To(HaveKey("fuel_desk"))
			Expect(groups).ToNot(HaveKey("retired_desk"))
		})

		It("should include inactive groups on request", func() {
			groups, err := catalog.Groups(ctx, true)

			Expect(err).ToNot(HaveOccurred())
			Expect(groups).To(HaveLen(2))
		})
	})

	Describe("SortGroups", func() {
		It("should order by sort_order then name", func() {
			groups := []accesscontrol.PermissionGroup{
				{Name: "zulu", SortOrder: 1},
				{Name: "alpha", SortOrder: 2},
				{Name: "bravo", SortOrder: 1},
			}

			accesscontrol.SortGroups(groups)

			Expect(groups[0].Name).To(Equal("bravo"))
			Expect(groups[1].Name).To(Equal("zulu"))
			Expect(groups[2].Name).To(Equal("alpha"))
		})
	})
})

package accesscontrol_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/flightbase/fbo-management/internal/accesscontrol"
)

var _ = Describe("Cache", func() {
	var cache *accesscontrol.Cache

	BeforeEach(func() {
		cache = accesscontrol.NewCache(100, time.Minute)
	})

	Describe("key construction", func() {
		It("should namespace decision keys", func() {
			key := accesscontrol.DecisionKey(42, "view_fuel_order", "fuel_order:17:o=true")

			Expect(key).To(Equal("authz:42:view_fuel_order:fuel_order:17:o=true"))
		})

		It("should namespace enumeration keys separately", func() {
			key := accesscontrol.EnumerationKey(42, true)

			Expect(key).To(Equal("perms:42:groups=true"))
		})
	})

	Describe("Get and Put", func() {
		It("should return a stored decision", func() {
			key := accesscontrol.DecisionKey(42, "view_fuel_order", "")
			cache.Put(42, key, accesscontrol.Decision{Allowed: true})

			d, ok := cache.Get(key)

			Expect(ok).To(BeTrue())
			Expect(d.Allowed).To(BeTrue())
		})

		It("should miss on an absent key", func() {
			_, ok := cache.Get(accesscontrol.DecisionKey(42, "view_fuel_order", ""))

			Expect(ok).To(BeFalse())
		})

		It("should expire entries after the TTL", func() {
			short := accesscontrol.NewCache(100, 20*time.Millisecond)
			key := accesscontrol.DecisionKey(42, "view_fuel_order", "")
			short.Put(42, key, accesscontrol.Decision{Allowed: true})

			_, ok := short.Get(key)
			Expect(ok).To(BeTrue())

			Eventually(func() bool {
				_, ok := short.Get(key)
				return ok
			}, "500ms", "10ms").Should(BeFalse())
		})

		It("should evict the least recently used entry at capacity", func() {
			tiny := accesscontrol.NewCache(2, time.Minute)
			tiny.Put(1, "authz:1:a:", accesscontrol.Decision{Allowed: true})
			tiny.Put(2, "authz:2:b:", accesscontrol.Decision{Allowed: true})
			tiny.Put(3, "authz:3:c:", accesscontrol.Decision{Allowed: true})

			_, ok := tiny.Get("authz:1:a:")
			Expect(ok).To(BeFalse())

			_, ok = tiny.Get("authz:3:c:")
			Expect(ok).To(BeTrue())
		})
	})

	Describe("Stats", func() {
		It("should count hits, misses and size", func() {
			key := accesscontrol.DecisionKey(42, "view_fuel_order", "")
			cache.Put(42, key, accesscontrol.Decision{Allowed: true})

			cache.Get(key)
			cache.Get(key)
			cache.Get("authz:42:absent:")

			stats := cache.Stats()
			Expect(stats.Hits).To(Equal(int64(2)))
			Expect(stats.Misses).To(Equal(int64(1)))
			Expect(stats.Size).To(Equal(1))
		})
	})

	Describe("invalidation", func() {
		var (
			aliceDecision    string
			aliceOther       string
			aliceEnumeration string
			bobDecision      string
		)

		BeforeEach(func() {
			aliceDecision = accesscontrol.DecisionKey(1, "view_fuel_order", "")
			aliceOther = accesscontrol.DecisionKey(1, "manage_permissions", "")
			aliceEnumeration = accesscontrol.EnumerationKey(1, true)
			bobDecision = accesscontrol.DecisionKey(2, "view_fuel_order", "")

			cache.Put(1, aliceDecision, accesscontrol.Decision{Allowed: true})
			cache.Put(1, aliceOther, accesscontrol.Decision{Allowed: true})
			cache.Put(1, aliceEnumeration, accesscontrol.Decision{Permissions: []string{"view_fuel_order"}})
			cache.Put(2, bobDecision, accesscontrol.Decision{Allowed: true})
		})

		It("should drop a single key", func() {
			cache.Invalidate(aliceDecision)

			_, ok := cache.Get(aliceDecision)
			Expect(ok).To(BeFalse())
			_, ok = cache.Get(aliceOther)
			Expect(ok).To(BeTrue())
		})

		It("should drop every entry for one user, leaving others cached", func() {
			cache.InvalidateUser(1)

			_, ok := cache.Get(aliceDecision)
			Expect(ok).To(BeFalse())
			_, ok = cache.Get(aliceEnumeration)
			Expect(ok).To(BeFalse())
			_, ok = cache.Get(bobDecision)
			Expect(ok).To(BeTrue())
		})

		It("should drop one permission across all users plus all enumerations", func() {
			cache.InvalidatePermission("view_fuel_order")

			_, ok := cache.Get(aliceDecision)
			Expect(ok).To(BeFalse())
			_, ok = cache.Get(bobDecision)
			Expect(ok).To(BeFalse())
			_, ok = cache.Get(aliceEnumeration)
			Expect(ok).To(BeFalse())
			_, ok = cache.Get(aliceOther)
			Expect(ok).To(BeTrue())
		})

		It("should drop one user-permission pair, keeping the user's other decisions", func() {
			cache.InvalidateUserPermission(1, "view_fuel_order")

			_, ok := cache.Get(aliceDecision)
			Expect(ok).To(BeFalse())
			_, ok = cache.Get(aliceEnumeration)
			Expect(ok).To(BeFalse())
			_, ok = cache.Get(aliceOther)
			Expect(ok).To(BeTrue())
			_, ok = cache.Get(bobDecision)
			Expect(ok).To(BeTrue())
		})

		It("should drop everything on InvalidateAll", func() {
			cache.InvalidateAll()

			Expect(cache.Stats().Size).To(Equal(0))
		})
	})
})

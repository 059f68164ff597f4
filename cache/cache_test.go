package cache_test

import (
	"errors"
	"math/rand/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachesim/cache"
)

func mustCache(total, block, ways int, policy cache.Policy, opts ...cache.Option) *cache.Cache {
	config, err := cache.NewConfig(total, block, ways, policy)
	Expect(err).NotTo(HaveOccurred())

	c, err := cache.New(config, opts...)
	Expect(err).NotTo(HaveOccurred())

	return c
}

var _ = Describe("Cache", func() {
	Describe("Direct-mapped cache", func() {
		var c *cache.Cache

		BeforeEach(func() {
			// 16B, 4B lines, 1-way = 4 sets
			c = mustCache(16, 4, 1, cache.PLRU)
		})

		It("should miss on cold cache", func() {
			result := c.Access(0x0)
			Expect(result.Hit).To(BeFalse())
			Expect(result.Evicted).To(BeFalse())

			stats := c.Stats()
			Expect(stats.Accesses).To(Equal(uint64(1)))
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.Hits).To(Equal(uint64(0)))
		})

		It("should hit only when the first block is revisited", func() {
			for _, addr := range []uint64{0x0, 0x4, 0x8, 0xC, 0x0} {
				c.Access(addr)
			}

			stats := c.Stats()
			Expect(stats.Accesses).To(Equal(uint64(5)))
			Expect(stats.Hits).To(Equal(uint64(1)))
			Expect(stats.Misses).To(Equal(uint64(4)))
			Expect(stats.Evictions).To(Equal(uint64(0)))
		})

		It("should hit on different offsets in the same line", func() {
			c.Access(0x10)

			result := c.Access(0x13)
			Expect(result.Hit).To(BeTrue())
			Expect(result.Index).To(Equal(uint64(0)))
			Expect(result.Tag).To(Equal(uint64(1)))
		})

		It("should evict on a conflicting tag", func() {
			c.Access(0x0)

			result := c.Access(0x10)
			Expect(result.Hit).To(BeFalse())
			Expect(result.Evicted).To(BeTrue())
			Expect(result.EvictedTag).To(Equal(uint64(0)))

			Expect(c.Access(0x0).Hit).To(BeFalse())
		})
	})

	Describe("FIFO with one set", func() {
		It("should lose the first block to the third", func() {
			// 8B, 4B lines, 2-way = 1 set
			c := mustCache(8, 4, 2, cache.FIFO)

			results := []cache.AccessResult{}
			for _, addr := range []uint64{0x0, 0x4, 0x8, 0x0} {
				results = append(results, c.Access(addr))
			}

			for _, r := range results {
				Expect(r.Hit).To(BeFalse())
			}
			Expect(results[2].Way).To(Equal(0))
			Expect(results[2].EvictedTag).To(Equal(uint64(0)))
			Expect(results[3].Way).To(Equal(1))

			stats := c.Stats()
			Expect(stats.Accesses).To(Equal(uint64(4)))
			Expect(stats.Hits).To(Equal(uint64(0)))
			Expect(stats.Evictions).To(Equal(uint64(2)))
		})

		It("should not move the pointer on hits", func() {
			c := mustCache(16, 4, 4, cache.FIFO)

			ways := []int{}
			for i := uint64(0); i < 8; i++ {
				ways = append(ways, c.Access(i*4).Way)
				Expect(c.Access(i * 4).Hit).To(BeTrue())
			}

			Expect(ways).To(Equal([]int{0, 1, 2, 3, 0, 1, 2, 3}))
		})
	})

	Describe("PLRU", func() {
		It("should protect recently hit lines", func() {
			// 4-way, 1 set
			c := mustCache(16, 4, 4, cache.PLRU)

			for _, addr := range []uint64{0x0, 0x4, 0x8, 0xC} {
				c.Access(addr)
			}
			Expect(c.Access(0x0).Hit).To(BeTrue())

			result := c.Access(0x10)
			Expect(result.Hit).To(BeFalse())
			Expect(result.EvictedTag).NotTo(Equal(uint64(0)))
			Expect(c.Access(0x0).Hit).To(BeTrue())
		})

		It("should install cold misses in tree order", func() {
			c := mustCache(16, 4, 4, cache.PLRU)

			ways := []int{}
			for _, addr := range []uint64{0x0, 0x4, 0x8, 0xC} {
				ways = append(ways, c.Access(addr).Way)
			}
			Expect(ways).To(Equal([]int{0, 2, 1, 3}))
		})
	})

	Describe("Random", func() {
		It("should give identical results for identical seeds", func() {
			a := mustCache(256, 4, 8, cache.Random, cache.WithSeed(99))
			b := mustCache(256, 4, 8, cache.Random, cache.WithSeed(99))

			rng := rand.New(rand.NewPCG(3, 4))
			for i := 0; i < 5000; i++ {
				addr := rng.Uint64N(4096)
				Expect(a.Access(addr)).To(Equal(b.Access(addr)))
			}
			Expect(a.Stats()).To(Equal(b.Stats()))
			Expect(a.Seed()).To(Equal(uint64(99)))
		})

		It("should accept an injected generator", func() {
			c := mustCache(64, 4, 4, cache.Random, cache.WithRand(cache.NewRand(5)))
			for i := uint64(0); i < 100; i++ {
				c.Access(i * 4)
			}
			Expect(c.Stats().Accesses).To(Equal(uint64(100)))
		})
	})

	Describe("Statistics", func() {
		It("should never count more hits than accesses", func() {
			for _, policy := range cache.Policies {
				c := mustCache(1024, 16, 4, policy, cache.WithSeed(1))

				rng := rand.New(rand.NewPCG(10, 20))
				for i := 0; i < 10000; i++ {
					c.Access(rng.Uint64N(1 << 14))

					stats := c.Stats()
					Expect(stats.Hits).To(BeNumerically("<=", stats.Accesses))
					Expect(stats.Hits + stats.Misses).To(Equal(stats.Accesses))
					Expect(stats.Evictions).To(BeNumerically("<=", stats.Misses))
				}
			}
		})

		It("should not hit when every access goes to a new set", func() {
			c := mustCache(1024, 4, 1, cache.PLRU)
			for i := uint64(0); i < 256; i++ {
				c.Access(i * 4)
			}
			Expect(c.Stats().Hits).To(BeZero())
		})

		It("should report no hit rate without accesses", func() {
			c := mustCache(16, 4, 1, cache.PLRU)
			_, ok := c.Stats().HitRate()
			Expect(ok).To(BeFalse())
		})

		It("should compute the hit rate", func() {
			stats := cache.Statistics{Accesses: 8, Hits: 2, Misses: 6}
			rate, ok := stats.HitRate()
			Expect(ok).To(BeTrue())
			Expect(rate).To(Equal(0.25))
		})
	})

	Describe("Reset", func() {
		It("should invalidate every line and clear statistics", func() {
			c := mustCache(64, 4, 2, cache.FIFO)
			for i := uint64(0); i < 16; i++ {
				c.Access(i * 4)
			}
			Expect(c.Store().ValidLines()).To(Equal(16))

			c.Reset()
			Expect(c.Store().ValidLines()).To(BeZero())
			Expect(c.Stats()).To(Equal(cache.Statistics{}))
			Expect(c.Store().Set(0).FIFOPointer).To(BeZero())
			Expect(c.Access(0x0).Hit).To(BeFalse())
		})

		It("should keep contents when only statistics are reset", func() {
			c := mustCache(64, 4, 2, cache.PLRU)
			c.Access(0x0)
			c.ResetStats()

			Expect(c.Stats().Accesses).To(BeZero())
			Expect(c.Access(0x0).Hit).To(BeTrue())
		})
	})

	Describe("Store", func() {
		It("should lay out one set per index", func() {
			c := mustCache(32768, 64, 8, cache.PLRU)
			Expect(c.Store().NumSets()).To(Equal(64))
			Expect(c.Store().Ways()).To(Equal(8))
			Expect(c.Store().Set(63).Lines).To(HaveLen(8))
		})

		It("should refuse geometries that cannot be allocated", func() {
			_, err := cache.NewStore(cache.Config{SetNum: 1 << 24, Associativity: 64})
			Expect(err).To(MatchError(cache.ErrAllocation))

			var allocErr *cache.AllocationError
			Expect(errors.As(err, &allocErr)).To(BeTrue())
			Expect(allocErr.Sets).To(Equal(1 << 24))
		})
	})
})

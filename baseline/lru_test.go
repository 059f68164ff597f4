package baseline_test

import (
	"math/rand/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachesim/baseline"
	"github.com/sarchlab/cachesim/cache"
)

func geometry(total, block, ways int) cache.Config {
	config, err := cache.NewConfig(total, block, ways, cache.PLRU)
	Expect(err).NotTo(HaveOccurred())

	return config
}

var _ = Describe("LRU", func() {
	It("should miss on a cold cache and hit on reuse", func() {
		l := baseline.NewLRU(geometry(256, 16, 4))

		Expect(l.Access(0x100).Hit).To(BeFalse())

		result := l.Access(0x10c)
		Expect(result.Hit).To(BeTrue())
		Expect(result.Tag).To(Equal(uint64(0x100 >> 6)))

		Expect(l.Stats()).To(Equal(cache.Statistics{Accesses: 2, Hits: 1, Misses: 1}))
	})

	It("should evict the least recently used block", func() {
		// one set, 4 ways
		l := baseline.NewLRU(geometry(16, 4, 4))

		for _, addr := range []uint64{0x0, 0x4, 0x8, 0xC} {
			l.Access(addr)
		}
		Expect(l.Access(0x0).Hit).To(BeTrue())

		result := l.Access(0x10)
		Expect(result.Evicted).To(BeTrue())
		Expect(result.EvictedTag).To(Equal(uint64(1)))

		Expect(l.Access(0x0).Hit).To(BeTrue())
		Expect(l.Access(0x4).Hit).To(BeFalse())
	})

	It("should forget everything on reset", func() {
		l := baseline.NewLRU(geometry(64, 4, 2))
		l.Access(0x0)
		l.Reset()

		Expect(l.Stats()).To(Equal(cache.Statistics{}))
		Expect(l.Access(0x0).Hit).To(BeFalse())
	})

	It("should keep contents when only statistics are reset", func() {
		l := baseline.NewLRU(geometry(64, 4, 2))
		l.Access(0x0)
		l.ResetStats()

		Expect(l.Access(0x0).Hit).To(BeTrue())
		Expect(l.Stats().Accesses).To(Equal(uint64(1)))
	})

	for _, ways := range []int{1, 2} {
		ways := ways

		It("should agree with tree PLRU when PLRU is exact", func() {
			config := geometry(256, 8, ways)
			l := baseline.NewLRU(config)
			c, err := cache.New(config, cache.WithSeed(1))
			Expect(err).NotTo(HaveOccurred())

			rng := rand.New(rand.NewPCG(5, 6))
			for i := 0; i < 20000; i++ {
				addr := rng.Uint64N(2048)
				Expect(l.Access(addr).Hit).To(Equal(c.Access(addr).Hit))
			}
			Expect(l.Stats()).To(Equal(c.Stats()))
		})
	}

	It("should never do worse than no caching", func() {
		l := baseline.NewLRU(geometry(1024, 16, 8))
		rng := rand.New(rand.NewPCG(1, 2))
		for i := 0; i < 5000; i++ {
			l.Access(rng.Uint64N(1 << 16))
		}

		stats := l.Stats()
		Expect(stats.Hits + stats.Misses).To(Equal(stats.Accesses))
		Expect(stats.Evictions).To(BeNumerically("<=", stats.Misses))
	})
})

package cache_test

import (
	"math/rand/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachesim/cache"
)

var _ = Describe("Decode", func() {
	var config cache.Config

	BeforeEach(func() {
		var err error
		config, err = cache.NewConfig(16, 4, 1, cache.PLRU)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should split an address at the field boundaries", func() {
		offset, index, tag := config.Decode(0x12345678)
		Expect(offset).To(Equal(uint64(0)))
		Expect(index).To(Equal(uint64(2)))
		Expect(tag).To(Equal(uint64(0x1234567)))
	})

	It("should put boundary bits in exactly one field", func() {
		offset, index, tag := config.Decode(0b11_11_11)
		Expect(offset).To(Equal(uint64(0b11)))
		Expect(index).To(Equal(uint64(0b11)))
		Expect(tag).To(Equal(uint64(0b11)))
	})

	It("should map consecutive blocks to consecutive sets", func() {
		for i := uint64(0); i < 8; i++ {
			_, index, _ := config.Decode(i * 4)
			Expect(index).To(Equal(i % 4))
		}
	})

	It("should ignore bits above the address width", func() {
		if cache.AddressWidth == 64 {
			Skip("no bits above a 64-bit address")
		}

		offset, index, tag := config.Decode(1<<40 | 0x4)
		Expect(offset).To(Equal(uint64(0)))
		Expect(index).To(Equal(uint64(1)))
		Expect(tag).To(Equal(uint64(0)))
	})

	It("should round trip through Compose", func() {
		rng := rand.New(rand.NewPCG(1, 2))
		widthMask := ^uint64(0) >> (64 - cache.AddressWidth)
		geometries := [][3]int{{16, 4, 1}, {8, 4, 2}, {32768, 64, 8}, {1 << 20, 1, 64}, {64, 64, 1}}

		for _, g := range geometries {
			c, err := cache.NewConfig(g[0], g[1], g[2], cache.PLRU)
			Expect(err).NotTo(HaveOccurred())

			for i := 0; i < 1000; i++ {
				addr := rng.Uint64()
				offset, index, tag := c.Decode(addr)

				Expect(index).To(BeNumerically("<", c.SetNum))
				Expect(c.Compose(offset, index, tag)).To(Equal(addr & widthMask))
			}
		}
	})

	It("should clear the offset for the block address", func() {
		Expect(config.BlockAddress(0x1237)).To(Equal(uint64(0x1234)))
	})
})

package cache

// bitMask returns a mask with the low n bits set. n may be 64.
func bitMask(n int) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}

	return (uint64(1) << uint(n)) - 1
}

// Decode splits addr into its offset, index and tag fields. Bits above
// AddressWidth are ignored.
func (c Config) Decode(addr uint64) (offset, index, tag uint64) {
	addr &= bitMask(AddressWidth)

	offset = addr & bitMask(c.OffsetBits)
	index = (addr >> uint(c.OffsetBits)) & bitMask(c.IndexBits)
	tag = addr >> uint(c.OffsetBits+c.IndexBits)

	return offset, index, tag
}

// Compose is the inverse of Decode.
func (c Config) Compose(offset, index, tag uint64) uint64 {
	addr := tag<<uint(c.OffsetBits+c.IndexBits) |
		(index&bitMask(c.IndexBits))<<uint(c.OffsetBits) |
		offset&bitMask(c.OffsetBits)

	return addr & bitMask(AddressWidth)
}

// BlockAddress clears the offset bits of addr.
func (c Config) BlockAddress(addr uint64) uint64 {
	return addr & bitMask(AddressWidth) &^ bitMask(c.OffsetBits)
}

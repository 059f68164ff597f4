//go:build addr64

package cache

// AddressWidth is the number of address bits the simulator models.
const AddressWidth = 64

//go:build !addr64

package cache

// AddressWidth is the number of address bits the simulator models. Build with
// -tags addr64 for 64-bit traces.
const AddressWidth = 32

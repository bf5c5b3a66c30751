package permission

import "math/bits"

// Mask64 is a capability set. Bit i is set when Capability(i) is granted.
type Mask64 uint64

func (m Mask64) Has(c Capability) bool {
	if c < 0 || c >= 64 {
		return false
	}
	return m&(1<<uint(c)) != 0
}

func (m *Mask64) Set(c Capability) {
	if c < 0 || c >= 64 {
		return
	}
	*m |= 1 << uint(c)
}

func (m *Mask64) Clear(c Capability) {
	if c < 0 || c >= 64 {
		return
	}
	*m &^= 1 << uint(c)
}

func (m Mask64) Raw() uint64 {
	return uint64(m)
}

func (m Mask64) Empty() bool {
	return m == 0
}

// Len returns the number of granted capabilities.
func (m Mask64) Len() int {
	return bits.OnesCount64(uint64(m))
}

package stm32

// bsrrCache mirrors the last BSRR command issued for one pin: either the
// pin's bit (set) or the bit shifted into the upper half (clear).
type bsrrCache struct {
	cachedBSRR uint32
}

// load seeds the entry from the live ODR so that a warm restart keeps the
// level the pin already has.
func (c *bsrrCache) load(odr, bit uint32) {
	c.cachedBSRR = odr & bit
	if c.cachedBSRR == 0 {
		c.cachedBSRR = bit << 16
	}
}

// set records the command that drives the pin to val and returns it.
func (c *bsrrCache) set(bit uint32, val bool) uint32 {
	if val {
		c.cachedBSRR = bit
	} else {
		c.cachedBSRR = bit << 16
	}
	return c.cachedBSRR
}

// swap exchanges the set and clear halves, turning the last command into
// its inverse, and returns it.
func (c *bsrrCache) swap() uint32 {
	c.cachedBSRR = c.cachedBSRR<<16 | c.cachedBSRR>>16
	return c.cachedBSRR
}

// high reports the level implied by the last command.
func (c *bsrrCache) high() bool {
	return c.cachedBSRR&0xffff != 0
}

package fpsensor

// templateStore holds the plaintext templates of the current user. Slots
// are filled in order; only the whole store can be cleared.
type templateStore struct {
	slots [][]byte
	valid int
	dirty uint32
}

func newTemplateStore(maxFingers, templateSize int) templateStore {
	slots := make([][]byte, maxFingers)
	for i := range slots {
		slots[i] = make([]byte, templateSize)
	}
	return templateStore{slots: slots}
}

func (t *templateStore) capacity() int {
	return len(t.slots)
}

func (t *templateStore) full() bool {
	return t.valid >= len(t.slots)
}

// next returns the index of the first free slot.
func (t *templateStore) next() int {
	return t.valid
}

func (t *templateStore) slot(idx int) []byte {
	return t.slots[idx]
}

// commit marks the first free slot as holding a complete template.
func (t *templateStore) commit() {
	t.valid++
}

func (t *templateStore) clearSlot(idx int) {
	clear(t.slots[idx])
}

func (t *templateStore) validSlots() [][]byte {
	return t.slots[:t.valid]
}

func (t *templateStore) validMask() uint32 {
	return uint32(1)<<t.valid - 1
}

func (t *templateStore) markDirty(mask uint32) {
	t.dirty |= mask
}

func (t *templateStore) clearDirty(idx int) {
	t.dirty &^= 1 << idx
}

func (t *templateStore) reset() {
	t.valid = 0
	t.dirty = 0
	for i := range t.slots {
		t.clearSlot(i)
	}
}

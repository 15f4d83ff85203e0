package wavm

import (
	"github.com/gowavm/wavm/object"
	"github.com/gowavm/wavm/quota"
	"github.com/gowavm/wavm/wasm"
)

// CreateMemory creates a standalone Memory Object of the declared type,
// reserving its sandbox address range against q.
func CreateMemory(c *object.Compartment, t wasm.MemoryType, q *quota.ResourceQuota) (*object.Object, error) {
	return c.NewMemory(t, q)
}

// GetMemoryBaseAddress returns memObj's entire reserved address range,
// committed and uncommitted alike. Reading or writing past the
// committed-page boundary is a host programming error, not a checked
// operation — use GetValidatedMemoryOffsetRange for a bounds-checked view.
func GetMemoryBaseAddress(memObj *object.Object) []byte {
	return object.MemoryData(memObj).Mem.Base()
}

// GetMemoryNumPages returns memObj's current committed size, in pages.
func GetMemoryNumPages(memObj *object.Object) uint64 {
	return object.MemoryData(memObj).Mem.NumPages()
}

// GrowMemory commits delta additional pages to memObj, returning its
// committed size before the grow, or an error if the grow would exceed
// the declared maximum or the owning quota.
func GrowMemory(memObj *object.Object, delta uint64) (previous uint64, err error) {
	return object.MemoryData(memObj).Mem.Grow(delta)
}

// UnmapMemoryPages decommits the page range [startPage, startPage+nPages)
// without shrinking memObj's reported size.
func UnmapMemoryPages(memObj *object.Object, startPage, nPages uint64) error {
	return object.MemoryData(memObj).Mem.UnmapPages(startPage, nPages)
}

// GetReservedMemoryOffsetRange returns the byte range [offset, offset+length)
// within memObj's reserved (not necessarily committed) address space,
// without any bounds check against the committed-page count.
func GetReservedMemoryOffsetRange(memObj *object.Object, offset, length uint64) ([]byte, error) {
	return object.MemoryData(memObj).Mem.ReservedRange(offset, length)
}

// GetValidatedMemoryOffsetRange returns the byte range [offset, offset+length)
// after checking it lies entirely within memObj's committed pages,
// failing rather than returning a range that would fault on access.
func GetValidatedMemoryOffsetRange(memObj *object.Object, offset, length uint64) ([]byte, error) {
	return object.MemoryData(memObj).Mem.ValidatedRange(offset, length)
}

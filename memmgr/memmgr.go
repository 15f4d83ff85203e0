// Package memmgr implements the runtime memory manager:
// each Memory reserves a fixed, power-of-two virtual address range sized
// so that a 32-bit Wasm offset, zero-extended then masked, can never land
// outside it. Pages are committed/decommitted within that reservation as
// the guest grows or unmaps memory.
//
// Grounded on mosn-mosn's pkg/shm reserve-and-mmap pattern, lifted from
// syscall to golang.org/x/sys/unix because the sandbox needs a
// reserve-with-PROT_NONE-then-mprotect-to-commit two-step that the
// stdlib syscall package does not expose portably.
package memmgr

import (
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/gowavm/wavm/errors"
	"github.com/gowavm/wavm/quota"
	"github.com/gowavm/wavm/wasm"
)

// PageSize is the Wasm linear-memory page granularity.
const PageSize = 64 * 1024

// SandboxBytes is the fixed reservation every Memory gets, independent of
// its declared max. It must be a power of two large enough to hold the
// full 32-bit Wasm address space plus guard room; 8 GiB comfortably
// covers the 4 GiB address space with headroom for unaligned accesses
// near the top. SandboxMask is the compile-time AND mask the emitter uses
// to lower every load/store address.
const SandboxBytes = 8 << 30 // 8 GiB
const SandboxMask = uint64(SandboxBytes - 1)

// Memory owns one reserved virtual address range and tracks how much of
// it is currently committed. The zero value is not usable; construct
// with Create.
type Memory struct {
	Type  wasm.MemoryType
	quota *quota.ResourceQuota

	region []byte // the full SandboxBytes mmap, PROT_NONE beyond committed

	committedPages atomic.Uint64 // published with release/acquire semantics
}

// Create reserves SandboxBytes of address space and commits
// initial*PageSize zero-filled bytes at offset 0.
func Create(t wasm.MemoryType, q *quota.ResourceQuota) (*Memory, error) {
	initial := t.Limits.Min
	if err := q.ReserveMemoryPages(initial); err != nil {
		return nil, err
	}

	region, err := unix.Mmap(-1, 0, SandboxBytes, unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		q.ReleaseMemoryPages(initial)
		return nil, errors.OutOfMemory("reserve sandbox address space: " + err.Error())
	}

	m := &Memory{Type: t, quota: q, region: region}
	if initial > 0 {
		if err := unix.Mprotect(region[:initial*PageSize], unix.PROT_READ|unix.PROT_WRITE); err != nil {
			unix.Munmap(region)
			q.ReleaseMemoryPages(initial)
			return nil, errors.OutOfMemory("commit initial pages: " + err.Error())
		}
	}
	m.committedPages.Store(initial)
	return m, nil
}

// Clone reserves a fresh, independent sandbox address range of the same
// size and copies m's committed bytes into it, so the two Memory values
// share no mmap'd pages and neither observes the other's later
// Grow/UnmapPages/writes. The clone draws its own reservation from m's
// quota for the pages it copies, released independently on its own
// Close.
func (m *Memory) Clone() (*Memory, error) {
	pages := m.committedPages.Load()
	if err := m.quota.ReserveMemoryPages(pages); err != nil {
		return nil, err
	}

	region, err := unix.Mmap(-1, 0, SandboxBytes, unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		m.quota.ReleaseMemoryPages(pages)
		return nil, errors.OutOfMemory("reserve sandbox address space: " + err.Error())
	}

	if pages > 0 {
		byteLen := pages * PageSize
		if err := unix.Mprotect(region[:byteLen], unix.PROT_READ|unix.PROT_WRITE); err != nil {
			unix.Munmap(region)
			m.quota.ReleaseMemoryPages(pages)
			return nil, errors.OutOfMemory("commit cloned pages: " + err.Error())
		}
		copy(region[:byteLen], m.region[:byteLen])
	}

	dup := &Memory{Type: m.Type, quota: m.quota, region: region}
	dup.committedPages.Store(pages)
	return dup, nil
}

// Close releases the reservation. The Memory must not be used afterward.
func (m *Memory) Close() error {
	pages := m.committedPages.Swap(0)
	m.quota.ReleaseMemoryPages(pages)
	if m.region == nil {
		return nil
	}
	err := unix.Munmap(m.region)
	m.region = nil
	return err
}

// NumPages returns the committed page count, observed with acquire
// semantics so a concurrent reader always sees either the old size or the
// fully-published new one.
func (m *Memory) NumPages() uint64 { return m.committedPages.Load() }

// maxPages resolves the Memory's effective page cap: the declared max, if
// any, clamped to the quota's remaining headroom is enforced at grow time
// via ReserveMemoryPages rather than precomputed here.
func (m *Memory) maxPages() uint64 {
	if m.Type.Limits.Max != nil {
		return *m.Type.Limits.Max
	}
	return SandboxBytes / PageSize
}

// Grow commits n additional pages, zero-filled, returning the previous
// page count on success. Fails with QuotaExceeded or
// PageLimit (surfaced as errors.KindOutOfMemory) without changing state.
func (m *Memory) Grow(n uint64) (previous uint64, err error) {
	cur := m.committedPages.Load()
	next := cur + n
	if next < cur || next > m.maxPages() {
		return 0, errors.OutOfMemory("grow would exceed declared memory max")
	}
	if err := m.quota.ReserveMemoryPages(n); err != nil {
		return 0, err
	}

	if n > 0 {
		byteLen := next * PageSize
		if err := unix.Mprotect(m.region[:byteLen], unix.PROT_READ|unix.PROT_WRITE); err != nil {
			m.quota.ReleaseMemoryPages(n)
			return 0, errors.OutOfMemory("commit grown pages: " + err.Error())
		}
		// newly committed range starts zero-filled by the kernel for an
		// anonymous mapping; nothing further to do.
	}

	m.committedPages.Store(next)
	return cur, nil
}

// UnmapPages decommits [startPage, startPage+nPages): the range stays
// readable but observes zero on next read, rather than
// faulting — so it is implemented with madvise(MADV_DONTNEED), which
// drops the backing physical pages of an anonymous mapping and re-zeros
// them on next touch, not mprotect(PROT_NONE) (which would fault instead
// of reading zero).
func (m *Memory) UnmapPages(startPage, nPages uint64) error {
	cur := m.committedPages.Load()
	if startPage+nPages > cur {
		return errors.New(errors.PhaseMemory, errors.KindInvalidState).
			Detail("unmap range exceeds committed pages").Build()
	}
	start := startPage * PageSize
	length := nPages * PageSize
	if length == 0 {
		return nil
	}
	return unix.Madvise(m.region[start:start+length], unix.MADV_DONTNEED)
}

// ReservedRange returns the host byte slice for [offset, offset+length)
// within the reservation, without checking it is committed.
// Reading or writing outside the committed prefix faults; callers that
// want a bounds check should use ValidatedRange instead.
func (m *Memory) ReservedRange(offset, length uint64) ([]byte, error) {
	if offset+length > SandboxBytes || offset+length < offset {
		return nil, errors.New(errors.PhaseMemory, errors.KindInvalidState).
			Detail("range falls outside the reserved address space").Build()
	}
	return m.region[offset : offset+length], nil
}

// ValidatedRange is ReservedRange plus an explicit bounds check against
// the committed byte count, failing with OutOfBoundsMemory otherwise.
// This is the path the linker uses for data-segment initialization,
// which must never fault.
func (m *Memory) ValidatedRange(offset, length uint64) ([]byte, error) {
	committed := m.committedPages.Load() * PageSize
	if offset+length > committed || offset+length < offset {
		return nil, errOutOfBounds(offset, length)
	}
	return m.region[offset : offset+length], nil
}

// Base returns the host base address's backing slice, for the emitter's
// address-masking lowering: base[x & SandboxMask].
func (m *Memory) Base() []byte { return m.region }

func errOutOfBounds(offset, length uint64) error {
	return errors.New(errors.PhaseMemory, errors.KindOutOfBoundsMemory).
		Detail("access [%d, %d) exceeds committed memory", offset, offset+length).Build()
}

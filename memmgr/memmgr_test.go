package memmgr

import (
	"testing"

	"github.com/gowavm/wavm/quota"
	"github.com/gowavm/wavm/wasm"
)

func newTestMemory(t *testing.T, min uint64, max *uint64) *Memory {
	t.Helper()
	m, err := Create(wasm.MemoryType{Limits: wasm.Limits{Min: min, Max: max}}, quota.NewUnlimited())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestCreateZeroFillsInitialPages(t *testing.T) {
	m := newTestMemory(t, 1, nil)

	if got := m.NumPages(); got != 1 {
		t.Fatalf("NumPages() = %d, want 1", got)
	}

	data, err := m.ValidatedRange(0, PageSize)
	if err != nil {
		t.Fatalf("ValidatedRange: %v", err)
	}
	for i, b := range data {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0", i, b)
		}
	}
}

func TestValidatedRangeRejectsOutOfBounds(t *testing.T) {
	m := newTestMemory(t, 1, nil)

	if _, err := m.ValidatedRange(0, PageSize); err != nil {
		t.Fatalf("in-bounds range should succeed: %v", err)
	}
	if _, err := m.ValidatedRange(PageSize, 1); err == nil {
		t.Fatal("one byte past committed memory should fail")
	}
	if _, err := m.ValidatedRange(65536*2, 1); err == nil {
		t.Fatal("access at 65536*2 should fail with only one committed page")
	}
}

func TestGrowIncreasesCommittedPagesAndZeroFills(t *testing.T) {
	m := newTestMemory(t, 1, nil)

	prev, err := m.Grow(1)
	if err != nil {
		t.Fatalf("Grow: %v", err)
	}
	if prev != 1 {
		t.Fatalf("Grow returned previous=%d, want 1", prev)
	}
	if m.NumPages() != 2 {
		t.Fatalf("NumPages() = %d, want 2", m.NumPages())
	}

	data, err := m.ValidatedRange(PageSize, PageSize)
	if err != nil {
		t.Fatalf("ValidatedRange on newly grown page: %v", err)
	}
	for _, b := range data {
		if b != 0 {
			t.Fatal("newly committed page should be zero-filled")
		}
	}
}

func TestGrowRespectsDeclaredMax(t *testing.T) {
	max := uint64(1)
	m := newTestMemory(t, 1, &max)

	if _, err := m.Grow(1); err == nil {
		t.Fatal("growing past the declared max should fail")
	}
}

func TestUnmapPagesZerosOnNextRead(t *testing.T) {
	m := newTestMemory(t, 1, nil)

	data, _ := m.ValidatedRange(0, 4)
	copy(data, []byte{1, 2, 3, 4})

	if err := m.UnmapPages(0, 1); err != nil {
		t.Fatalf("UnmapPages: %v", err)
	}

	// UnmapPages does not change the committed page count, only the
	// content: the range stays readable and observes zero.
	if m.NumPages() != 1 {
		t.Fatalf("NumPages() = %d, want 1 (unmap does not shrink the count)", m.NumPages())
	}
	data, err := m.ValidatedRange(0, 4)
	if err != nil {
		t.Fatalf("ValidatedRange after unmap: %v", err)
	}
	for i, b := range data {
		if b != 0 {
			t.Fatalf("byte %d = %d after unmap, want 0", i, b)
		}
	}
}

func TestCloneCopiesCommittedBytesIntoAnIndependentReservation(t *testing.T) {
	m := newTestMemory(t, 1, nil)

	data, err := m.ValidatedRange(0, 4)
	if err != nil {
		t.Fatalf("ValidatedRange: %v", err)
	}
	copy(data, []byte{1, 2, 3, 4})

	clone, err := m.Clone()
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	t.Cleanup(func() { clone.Close() })

	if clone.NumPages() != m.NumPages() {
		t.Fatalf("clone NumPages() = %d, want %d", clone.NumPages(), m.NumPages())
	}
	cloneData, err := clone.ValidatedRange(0, 4)
	if err != nil {
		t.Fatalf("ValidatedRange on clone: %v", err)
	}
	if cloneData[0] != 1 || cloneData[3] != 4 {
		t.Fatalf("clone should start with the source's committed bytes, got %v", cloneData)
	}

	data[0] = 42
	if cloneData[0] == 42 {
		t.Fatal("writing to the source affected the clone's reservation")
	}
	if _, err := clone.Grow(1); err != nil {
		t.Fatalf("Grow on clone: %v", err)
	}
	if m.NumPages() != 1 {
		t.Fatalf("growing the clone affected the source's page count: %d", m.NumPages())
	}
}

func TestReservedRangeStaysWithinSandbox(t *testing.T) {
	m := newTestMemory(t, 1, nil)

	if _, err := m.ReservedRange(0, SandboxBytes); err != nil {
		t.Fatalf("full reservation should be addressable: %v", err)
	}
	if _, err := m.ReservedRange(SandboxBytes, 1); err == nil {
		t.Fatal("one byte past the reservation should fail")
	}
}

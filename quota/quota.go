// Package quota implements ResourceQuota: a
// shared-by-reference budget for table elements and memory pages, whose
// counters are updated under a per-quota mutex so growth from multiple
// threads against Tables/Memories sharing a quota stays consistent.
package quota

import (
	"sync"

	"github.com/gowavm/wavm/errors"
)

// Unlimited is used when the host does not want to cap a resource.
const Unlimited = ^uint64(0)

// ResourceQuota holds the current-vs-max counters for table elements and
// memory pages. Zero value is not usable; construct with New or
// NewUnlimited.
type ResourceQuota struct {
	mu sync.Mutex

	maxTableElements uint64
	curTableElements uint64

	maxMemoryPages uint64
	curMemoryPages uint64

	refs int
}

// New creates a quota with explicit caps. Pass Unlimited for a resource
// with no cap.
func New(maxTableElements, maxMemoryPages uint64) *ResourceQuota {
	return &ResourceQuota{
		maxTableElements: maxTableElements,
		maxMemoryPages:   maxMemoryPages,
		refs:             1,
	}
}

// NewUnlimited creates a quota with no caps on either resource.
func NewUnlimited() *ResourceQuota {
	return New(Unlimited, Unlimited)
}

// AddRef/Release implement a shared-by-reference lifecycle: the quota is
// destroyed once its last holder releases it. Release is a no-op once
// the quota reaches zero holders; a *ResourceQuota with no live holders
// should not be reserved against again.
func (q *ResourceQuota) AddRef() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.refs++
}

func (q *ResourceQuota) Release() (last bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.refs <= 0 {
		return true
	}
	q.refs--
	return q.refs <= 0
}

// ReserveTableElements attempts to raise current table-element usage by
// delta, failing with QuotaExceeded if that would exceed the cap.
func (q *ResourceQuota) ReserveTableElements(delta uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.maxTableElements != Unlimited && q.curTableElements+delta > q.maxTableElements {
		return errors.QuotaExceeded("table element")
	}
	q.curTableElements += delta
	return nil
}

// ReleaseTableElements gives back previously reserved table-element
// usage (used when a table shrinks internally).
func (q *ResourceQuota) ReleaseTableElements(delta uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if delta > q.curTableElements {
		delta = q.curTableElements
	}
	q.curTableElements -= delta
}

// ReserveMemoryPages / ReleaseMemoryPages mirror the table-element pair
// for linear-memory page counts.
func (q *ResourceQuota) ReserveMemoryPages(delta uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.maxMemoryPages != Unlimited && q.curMemoryPages+delta > q.maxMemoryPages {
		return errors.QuotaExceeded("memory page")
	}
	q.curMemoryPages += delta
	return nil
}

func (q *ResourceQuota) ReleaseMemoryPages(delta uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if delta > q.curMemoryPages {
		delta = q.curMemoryPages
	}
	q.curMemoryPages -= delta
}

// MaxTableElements / MaxMemoryPages report the configured caps.
func (q *ResourceQuota) MaxTableElements() uint64 { return q.maxTableElements }
func (q *ResourceQuota) MaxMemoryPages() uint64   { return q.maxMemoryPages }

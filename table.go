package wavm

import (
	"github.com/gowavm/wavm/object"
	"github.com/gowavm/wavm/quota"
	"github.com/gowavm/wavm/wasm"
)

// CreateTable creates a standalone Table Object of the declared type,
// reserved against q. A module's own tables are normally
// created by InstantiateModule; this is for a host that wants to build a
// Table to hand in as an import.
func CreateTable(c *object.Compartment, t wasm.TableType, q *quota.ResourceQuota) (*object.Object, error) {
	return c.NewTable(t, q)
}

// GetTableElement returns the Handle stored at index in tblObj's
// elements, or false if index is out of range.
func GetTableElement(tblObj *object.Object, index uint32) (object.Handle, bool) {
	return object.TableData(tblObj).Get(index)
}

// SetTableElement overwrites the Handle stored at index, returning false
// if index is out of range.
func SetTableElement(tblObj *object.Object, index uint32, h object.Handle) bool {
	return object.TableData(tblObj).Set(index, h)
}

// GetTableNumElements returns tblObj's current length.
func GetTableNumElements(tblObj *object.Object) uint32 {
	return object.TableData(tblObj).Len()
}

// GrowTable appends n null elements to tblObj, returning its length
// before the grow.
func GrowTable(tblObj *object.Object, n uint32) (previous uint32, err error) {
	return object.TableData(tblObj).Grow(n)
}

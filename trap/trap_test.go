package trap

import (
	"testing"

	"github.com/gowavm/wavm/object"
)

func TestNewSharesExceptionTypePerCompartment(t *testing.T) {
	c := object.NewCompartment()

	e1 := trapObj(t, c, OutOfBoundsMemoryAccess, []uint64{1, 65536})
	e2 := trapObj(t, c, OutOfBoundsMemoryAccess, []uint64{2, 0})

	et1 := object.ExceptionData(e1).ExceptionType
	et2 := object.ExceptionData(e2).ExceptionType
	if et1 != et2 {
		t.Fatalf("two traps of the same Kind got different ExceptionTypes: %v vs %v", et1, et2)
	}
}

func TestNewGivesDistinctTypesForDistinctKinds(t *testing.T) {
	c := object.NewCompartment()

	e1 := trapObj(t, c, StackOverflow, nil)
	e2 := trapObj(t, c, ReachedUnreachable, nil)

	et1 := object.ExceptionData(e1).ExceptionType
	et2 := object.ExceptionData(e2).ExceptionType
	if et1 == et2 {
		t.Fatal("distinct Kinds should not share an ExceptionType")
	}
}

func TestKindOfRoundTrips(t *testing.T) {
	c := object.NewCompartment()
	e := trapObj(t, c, IntegerDivideByZeroOrOverflow, nil)

	k, ok := KindOf(c, e)
	if !ok {
		t.Fatal("KindOf should recognize an intrinsic exception")
	}
	if k != IntegerDivideByZeroOrOverflow {
		t.Fatalf("KindOf = %v, want %v", k, IntegerDivideByZeroOrOverflow)
	}
}

func TestKindStringCoversAllRows(t *testing.T) {
	for k := Kind(0); k < numKinds; k++ {
		if k.String() == "unknown" {
			t.Fatalf("Kind %d has no name", k)
		}
	}
}

func trapObj(t *testing.T, c *object.Compartment, kind Kind, args []uint64) *object.Object {
	t.Helper()
	o := New(c, kind, args, nil)
	if o == nil {
		t.Fatal("New returned nil")
	}
	return o
}

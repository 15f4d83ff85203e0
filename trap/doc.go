// Package trap names the sixteen intrinsic exception kinds compiled code
// and the instantiator can raise, and constructs the object.Exception
// values that represent them. It supplies the taxonomy only; deciding
// when to raise which Kind (bounds checks, signature checks, signal
// translation) is the job of package emit for compile-time-provable
// conditions and package runtime for everything caught at call time.
package trap

// Package memmgr owns linear-memory address space. Each Memory reserves
// SandboxBytes of virtual address space up front — a
// power of two large enough that the emitter's address mask
// (base[x & SandboxMask]) can never resolve outside the reservation, no
// matter what 32-bit offset a compiled load/store computes. Growing a
// Memory only ever commits more of that already-reserved range; it never
// moves the base pointer, which is what lets compiled code cache a
// Memory's base address across a grow.
//
// This is the security boundary the rest of the engine leans on: as long
// as the emitter always masks before indexing (package emit) and never
// sign-extends a 32-bit address, an out-of-bounds-but-in-reservation access can only ever read or
// write memory this package reserved for that Memory, and will fault if
// the target page isn't committed.
package memmgr

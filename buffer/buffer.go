// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package buffer implements the host/device buffer layer from spec
// section 4.10 (component C11): allocate/attach, a map/sync lifecycle
// with an access stack, and physical-address exposure for
// DMA-capable allocations.
//
// The backing allocator is a fixed-size mmap'd arena addressed by a
// page bitmap, the same shape as the teacher's VM memory manager
// (github.com/SnellerInc/sneller/vm/malloc.go): that allocator hands
// out fixed PageSize buffers for VM row batches, generalized here to
// variable-size, multi-page runs so it can back arbitrarily shaped
// tensors (spec section 3, RuntimeTensor.buffer_slice).
package buffer

import (
	"sync/atomic"

	"github.com/nncase-go/runtime/internal/obj"
	"github.com/nncase-go/runtime/kerr"
)

// AccessFlags is the read/write bitset passed to Map (spec section
// 4.10).
type AccessFlags uint8

const (
	Read AccessFlags = 1 << iota
	Write
)

// SyncStatus tracks whether a buffer's host or device view needs to
// be reconciled with the other side (spec section 4.10).
type SyncStatus uint8

const (
	StatusValid SyncStatus = iota
	StatusNeedsInvalidate
	StatusNeedsWriteback
)

// AllocFlags selects allocator behavior for Allocate (spec section
// 4.10).
type AllocFlags uint8

const (
	// CPUOnly requests ordinary host memory with no DMA guarantee.
	CPUOnly AllocFlags = 0
	// Shared requests memory the device can access directly; only
	// buffers allocated or attached with Shared expose a
	// PhysicalAddress.
	Shared AllocFlags = 1 << iota
)

// SyncOp selects which direction Sync reconciles (spec section 4.10).
type SyncOp uint8

const (
	Invalidate SyncOp = iota
	WriteBack
)

// Options configures Allocate and Attach.
type Options struct {
	Flags              AllocFlags
	PhysicalAddress    uint64
	HasPhysicalAddress bool
	// Deleter, if set, is invoked exactly once when an attached
	// buffer's reference count drops to zero.
	Deleter func()
}

// Allocator is the interface every host or device memory provider
// implements (spec section 4.10).
type Allocator interface {
	Allocate(sizeBytes int, opts Options) kerr.Result[*Buffer]
	Attach(data []byte, opts Options) kerr.Result[*Buffer]
	// ShrinkMemoryPool advisorily releases any cached-but-unused
	// memory back to the OS.
	ShrinkMemoryPool()
}

// Buffer is the reference-counted memory handle shared by host and
// device tensors (spec section 3, "Buffer"). Host-only state (map
// stack, host sync status) is always present; device-facing fields
// are populated only when the buffer was created by a device
// allocator.
type Buffer struct {
	refcount int32

	alloc Allocator
	data  []byte
	attached bool
	deleter  func()

	hostSyncStatus   SyncStatus
	deviceSyncStatus SyncStatus
	mapStack         []AccessFlags
	// sawWriteMapping is set whenever a Write-flagged Map is pushed
	// while the stack is live, and consulted (then cleared) only on
	// the Unmap that empties the stack. Checking just the last popped
	// entry's flags misses a write mapping that closed earlier in a
	// nested session, e.g. Map(Read) outer / Map(Write) inner: the
	// inner unmap isn't the last one, and the outer entry alone never
	// carried Write.
	sawWriteMapping bool

	physicalAddress    uint64
	hasPhysicalAddress bool

	deviceType string
	deviceID   int
	isDevice   bool
}

// Kind satisfies obj.Object: HostBuffer or DeviceBuffer depending on
// which allocator produced this handle.
func (b *Buffer) Kind() obj.ObjectKind {
	if b.isDevice {
		return obj.KindDeviceBuffer
	}
	return obj.KindHostBuffer
}

// Size returns the buffer's byte length.
func (b *Buffer) Size() int { return len(b.data) }

// Retain increments the reference count and returns b, mirroring the
// teacher's bag/slab refcounting idiom used for shared row batches.
func (b *Buffer) Retain() *Buffer {
	atomic.AddInt32(&b.refcount, 1)
	return b
}

// Release decrements the reference count, freeing the underlying
// memory (via the owning allocator, or the attach-time Deleter) when
// it reaches zero.
func (b *Buffer) Release() {
	if atomic.AddInt32(&b.refcount, -1) > 0 {
		return
	}
	if b.deleter != nil {
		b.deleter()
		return
	}
	if f, ok := b.alloc.(freer); ok && !b.attached {
		f.free(b.data)
	}
}

// freer is implemented by allocators that can return pages to a pool.
type freer interface {
	free(data []byte)
}

// DeviceType and DeviceID report the owning device's identity (spec
// section 4.10, device buffers only). They return a zero value for
// host buffers.
func (b *Buffer) DeviceType() string { return b.deviceType }
func (b *Buffer) DeviceID() int      { return b.deviceID }

// HasPhysicalAddress reports whether PhysicalAddress is valid for
// this buffer.
func (b *Buffer) HasPhysicalAddress() bool { return b.hasPhysicalAddress }

// PhysicalAddress returns the DMA-visible address of this buffer's
// storage. Valid only when HasPhysicalAddress is true; otherwise
// returns NotSupported (spec section 4.10, invariants).
func (b *Buffer) PhysicalAddress() kerr.Result[uint64] {
	if !b.hasPhysicalAddress {
		return kerr.Err[uint64](kerr.New(kerr.NotSupported, "buffer has no stable physical mapping"))
	}
	return kerr.Ok(b.physicalAddress)
}

// mapped reports whether any Map is currently outstanding.
func (b *Buffer) mapped() bool { return len(b.mapStack) > 0 }

// MappedBuffer is the live view returned by Map; Unmap retires the
// top of the access stack it was pushed onto.
type MappedBuffer struct {
	buf    *Buffer
	access AccessFlags
}

// Bytes exposes the underlying storage for the duration of the
// mapping.
func (m *MappedBuffer) Bytes() []byte { return m.buf.data }

// Map pushes a new entry onto the buffer's access stack (spec section
// 4.10: "nested maps are allowed"). The first map of a buffer whose
// host view is stale triggers an invalidate before the pointer is
// handed back.
func (b *Buffer) Map(access AccessFlags) kerr.Result[*MappedBuffer] {
	if !b.mapped() && b.hostSyncStatus == StatusNeedsInvalidate {
		b.hostSyncStatus = StatusValid
	}
	if access&Write != 0 {
		b.sawWriteMapping = true
	}
	b.mapStack = append(b.mapStack, access)
	return kerr.Ok(&MappedBuffer{buf: b, access: access})
}

// Unmap pops the most recent Map. On the unmap that empties the stack,
// if any mapping during the session included Write, the device view is
// marked stale.
func (b *Buffer) Unmap() *kerr.Error {
	if !b.mapped() {
		return kerr.New(kerr.InvalidOperation, "unmap with no matching map")
	}
	b.mapStack = b.mapStack[:len(b.mapStack)-1]
	if !b.mapped() {
		if b.sawWriteMapping {
			b.deviceSyncStatus = StatusNeedsWriteback
		}
		b.sawWriteMapping = false
	}
	return nil
}

// Sync reconciles the requested side of the buffer (spec section
// 4.10). It is a no-op unless the matching status flag says
// otherwise, unless force is set.
func (b *Buffer) Sync(op SyncOp, force bool) *kerr.Error {
	switch op {
	case Invalidate:
		if force || b.hostSyncStatus == StatusNeedsInvalidate {
			b.hostSyncStatus = StatusValid
		}
	case WriteBack:
		if force || b.deviceSyncStatus == StatusNeedsWriteback {
			b.deviceSyncStatus = StatusValid
		}
	default:
		return kerr.New(kerr.InvalidArgument, "unknown sync op %d", op)
	}
	return nil
}

// CopyTo copies this buffer's bytes directly into dest (spec section
// 4.10, "copy_to across heterogeneous buffers"). Device buffers here
// are backed by host memory, so no intermediate staging allocation is
// made. Both buffers are synced around the transfer.
func (b *Buffer) CopyTo(dest *Buffer) *kerr.Error {
	if len(dest.data) < len(b.data) {
		return kerr.New(kerr.InvalidArgument, "destination buffer too small: have %d, need %d", len(dest.data), len(b.data))
	}
	if err := b.Sync(WriteBack, false); err != nil {
		return err
	}
	copy(dest.data, b.data)
	if err := dest.Sync(Invalidate, true); err != nil {
		return err
	}
	return nil
}

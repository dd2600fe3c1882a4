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

package buffer

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/nncase-go/runtime/internal/trace"
	"github.com/nncase-go/runtime/kerr"
)

// arena layout constants, mirroring vm/malloc.go's page-bitmap scheme
// but sized for tensor buffers rather than fixed VM row-batch pages.
const (
	arenaPageBits = 16 // 64KiB pages: small tensors don't need 1MiB granularity
	arenaPageSize = 1 << arenaPageBits
	arenaWords    = arenaPages / 64
)

// HostAllocator manages one fixed-size mmap'd arena, carving it into
// contiguous page runs on request. It is the CPUOnly/Shared allocator
// named in spec section 4.10. One process-wide instance (DefaultHost)
// is created lazily; tests may construct additional instances with
// NewHostAllocator for isolation.
type HostAllocator struct {
	mu       sync.Mutex
	arena    []byte
	bits     []uint64
	pages    int
	capacity int

	// reserved records that the arena's mmap region has been
	// reserved: every allocation from this arena is backed by that
	// one region, so Shared allocations simply report the arena's own
	// address as stable.
	reserved bool
}

// arenaPages is the default arena size in pages (256MiB), small
// enough to mmap eagerly in a test process, generous enough to back
// realistic intermediate tensors.
const arenaPages = (256 << 20) >> arenaPageBits

// NewHostAllocator reserves a fresh mmap'd arena of byteCapacity
// rounded up to a whole number of pages.
func NewHostAllocator(byteCapacity int) (*HostAllocator, error) {
	pages := (byteCapacity + arenaPageSize - 1) / arenaPageSize
	if pages <= 0 {
		pages = 1
	}
	size := pages * arenaPageSize
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("buffer: mmap %d bytes: %w", size, err)
	}
	words := (pages + 63) / 64
	return &HostAllocator{
		arena:    mem,
		bits:     make([]uint64, words),
		pages:    pages,
		capacity: size,
		reserved: true,
	}, nil
}

var (
	defaultHostOnce sync.Once
	defaultHost     *HostAllocator
)

// DefaultHost returns the process-wide host allocator, constructing it
// on first use.
func DefaultHost() *HostAllocator {
	defaultHostOnce.Do(func() {
		h, err := NewHostAllocator(arenaPages * arenaPageSize)
		if err != nil {
			panic("buffer: could not reserve default host arena: " + err.Error())
		}
		defaultHost = h
	})
	return defaultHost
}

// findRun locates the first contiguous run of n free pages, returning
// its starting page index, or -1 if the arena has no such run.
func (h *HostAllocator) findRun(n int) int {
	run := 0
	start := -1
	for p := 0; p < h.pages; p++ {
		word, bit := p/64, uint(p%64)
		free := h.bits[word]&(uint64(1)<<bit) == 0
		if free {
			if run == 0 {
				start = p
			}
			run++
			if run == n {
				return start
			}
		} else {
			run = 0
			start = -1
		}
	}
	return -1
}

func (h *HostAllocator) markRun(start, n int, used bool) {
	for p := start; p < start+n; p++ {
		word, bit := p/64, uint(p%64)
		if used {
			h.bits[word] |= uint64(1) << bit
		} else {
			h.bits[word] &^= uint64(1) << bit
		}
	}
}

// Allocate reserves sizeBytes from the arena, rounded up to a whole
// number of pages (spec section 4.10, allocate(size_bytes, options)).
func (h *HostAllocator) Allocate(sizeBytes int, opts Options) kerr.Result[*Buffer] {
	if sizeBytes < 0 {
		return kerr.Err[*Buffer](kerr.New(kerr.InvalidArgument, "negative size %d", sizeBytes))
	}
	n := (sizeBytes + arenaPageSize - 1) / arenaPageSize
	if n == 0 {
		n = 1
	}
	h.mu.Lock()
	start := h.findRun(n)
	if start < 0 {
		h.mu.Unlock()
		return kerr.Err[*Buffer](kerr.New(kerr.OutOfMemory, "no contiguous run of %d pages available", n))
	}
	h.markRun(start, n, true)
	h.mu.Unlock()

	base := start * arenaPageSize
	data := h.arena[base : base+sizeBytes : base+n*arenaPageSize]

	b := &Buffer{
		alloc: h,
		data:  data,
	}
	if opts.Flags&Shared != 0 {
		b.hasPhysicalAddress = true
		b.physicalAddress = uint64(uintptr(unsafe.Pointer(&h.arena[base])))
	}
	trace.Logf(trace.Buffer, "buffer: allocated %d bytes (%d pages at %d)", sizeBytes, n, start)
	return kerr.Ok(b)
}

// free returns the pages backing data to the free pool. It panics on
// a pointer that did not originate from this arena, matching the
// teacher's vm.Free contract.
func (h *HostAllocator) free(data []byte) {
	if len(data) == 0 {
		return
	}
	base := uintptr(unsafe.Pointer(&data[0])) - uintptr(unsafe.Pointer(&h.arena[0]))
	if base >= uintptr(len(h.arena)) {
		panic("buffer: free of memory not owned by this arena")
	}
	start := int(base) >> arenaPageBits
	n := (len(data) + arenaPageSize - 1) / arenaPageSize
	if n == 0 {
		n = 1
	}
	h.mu.Lock()
	h.markRun(start, n, false)
	h.mu.Unlock()
}

// Attach wraps an externally owned byte range as a Buffer without
// copying (spec section 4.10, attach(data, options)).
func (h *HostAllocator) Attach(data []byte, opts Options) kerr.Result[*Buffer] {
	b := &Buffer{
		alloc:              h,
		data:               data,
		attached:           true,
		deleter:            opts.Deleter,
		hasPhysicalAddress: opts.HasPhysicalAddress,
		physicalAddress:    opts.PhysicalAddress,
	}
	return kerr.Ok(b)
}

// ShrinkMemoryPool madvises every currently-free page run back to the
// kernel (spec section 4.10), mirroring vm.Free's MADV_FREE call on
// fully-vacated 64-page groups but applied opportunistically to any
// free run here since tensor allocations are not page-group aligned.
func (h *HostAllocator) ShrinkMemoryPool() {
	h.mu.Lock()
	defer h.mu.Unlock()
	run := 0
	start := 0
	flush := func(s, n int) {
		if n == 0 {
			return
		}
		base := s * arenaPageSize
		size := n * arenaPageSize
		unix.Madvise(h.arena[base:base+size], unix.MADV_FREE)
	}
	for p := 0; p < h.pages; p++ {
		word, bit := p/64, uint(p%64)
		free := h.bits[word]&(uint64(1)<<bit) == 0
		if free {
			if run == 0 {
				start = p
			}
			run++
		} else {
			flush(start, run)
			run = 0
		}
	}
	flush(start, run)
}

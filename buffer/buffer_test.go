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
	"testing"

	"github.com/nncase-go/runtime/kerr"
)

func newTestHost(t *testing.T) *HostAllocator {
	t.Helper()
	h, err := NewHostAllocator(4 << 20)
	if err != nil {
		t.Fatalf("NewHostAllocator: %v", err)
	}
	return h
}

func TestAllocateWritableAndReleasable(t *testing.T) {
	h := newTestHost(t)
	r := h.Allocate(128, Options{})
	if r.IsErr() {
		t.Fatalf("Allocate: %v", r.UnwrapErr())
	}
	b := r.Unwrap()
	if b.Size() != 128 {
		t.Fatalf("Size() = %d, want 128", b.Size())
	}

	mr := b.Map(Read | Write)
	if mr.IsErr() {
		t.Fatalf("Map: %v", mr.UnwrapErr())
	}
	mb := mr.Unwrap()
	mb.Bytes()[0] = 0xAB
	if err := b.Unmap(); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	b.Release()
}

func TestUnmapWithoutMapIsInvalidOperation(t *testing.T) {
	h := newTestHost(t)
	b := h.Allocate(64, Options{}).Unwrap()
	err := b.Unmap()
	if err == nil || err.Kind != kerr.InvalidOperation {
		t.Fatalf("Unmap() = %v, want InvalidOperation", err)
	}
}

func TestPhysicalAddressRequiresShared(t *testing.T) {
	h := newTestHost(t)
	plain := h.Allocate(64, Options{}).Unwrap()
	if _, err := plain.PhysicalAddress().Get(); err == nil {
		t.Fatalf("expected NotSupported for CPUOnly buffer")
	}

	shared := h.Allocate(64, Options{Flags: Shared}).Unwrap()
	addr, err := shared.PhysicalAddress().Get()
	if err != nil {
		t.Fatalf("PhysicalAddress: %v", err)
	}
	if addr == 0 {
		t.Fatalf("PhysicalAddress returned 0")
	}
}

func TestWriteMarksDeviceSyncNeedsWriteback(t *testing.T) {
	h := newTestHost(t)
	b := h.Allocate(64, Options{}).Unwrap()
	b.Map(Write)
	b.Unmap()
	if b.deviceSyncStatus != StatusNeedsWriteback {
		t.Fatalf("deviceSyncStatus = %v, want StatusNeedsWriteback", b.deviceSyncStatus)
	}
	if err := b.Sync(WriteBack, false); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if b.deviceSyncStatus != StatusValid {
		t.Fatalf("deviceSyncStatus after sync = %v, want StatusValid", b.deviceSyncStatus)
	}
}

func TestAllocateReusesFreedPages(t *testing.T) {
	h := newTestHost(t)
	first := h.Allocate(arenaPageSize*2, Options{}).Unwrap()
	firstAddr := &first.data[0]
	first.Release()

	second := h.Allocate(arenaPageSize*2, Options{}).Unwrap()
	if second.Size() != arenaPageSize*2 {
		t.Fatalf("Size() = %d, want %d", second.Size(), arenaPageSize*2)
	}
	if &second.data[0] != firstAddr {
		t.Fatalf("second allocation did not reuse the freed pages")
	}
}

func TestAttachReleaseInvokesDeleter(t *testing.T) {
	h := newTestHost(t)
	external := make([]byte, 32)
	deleted := false
	b := h.Attach(external, Options{Deleter: func() { deleted = true }}).Unwrap()
	b.Release()
	if !deleted {
		t.Fatalf("attach deleter was not invoked on release")
	}
}

func TestCopyHostToDevice(t *testing.T) {
	dev, err := NewDeviceAllocator("test-accel", 0, 4<<20)
	if err != nil {
		t.Fatalf("NewDeviceAllocator: %v", err)
	}
	host := newTestHost(t)

	src := host.Allocate(16, Options{}).Unwrap()
	mb := src.Map(Write).Unwrap()
	copy(mb.Bytes(), []byte("0123456789abcdef"))
	src.Unmap()

	dst := dev.Allocate(16, Options{}).Unwrap()
	if dst.DeviceType() != "test-accel" {
		t.Fatalf("DeviceType() = %q", dst.DeviceType())
	}
	if err := CopyHostToDevice(src, dst); err != nil {
		t.Fatalf("CopyHostToDevice: %v", err)
	}
	dmb := dst.Map(Read).Unwrap()
	if string(dmb.Bytes()) != "0123456789abcdef" {
		t.Fatalf("copied bytes = %q", dmb.Bytes())
	}
	dst.Unmap()
}

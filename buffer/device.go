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
	"github.com/nncase-go/runtime/kerr"
)

// DeviceAllocator backs buffers that a named accelerator can access.
// There is no real accelerator here: allocations are ordinary host
// memory tagged with a device identity, which is sufficient to
// exercise the device_type()/device_id()/physical_address() contract
// (spec section 4.10) and host<->device copy_to without depending on a
// specific vendor SDK.
type DeviceAllocator struct {
	deviceType string
	deviceID   int
	host       *HostAllocator
}

// NewDeviceAllocator creates an allocator for one named device
// instance, backed by host memory from a dedicated arena.
func NewDeviceAllocator(deviceType string, deviceID int, arenaBytes int) (*DeviceAllocator, error) {
	h, err := NewHostAllocator(arenaBytes)
	if err != nil {
		return nil, err
	}
	return &DeviceAllocator{deviceType: deviceType, deviceID: deviceID, host: h}, nil
}

func (d *DeviceAllocator) Allocate(sizeBytes int, opts Options) kerr.Result[*Buffer] {
	r := d.host.Allocate(sizeBytes, opts)
	if r.IsErr() {
		return r
	}
	b := r.Unwrap()
	b.isDevice = true
	b.deviceType = d.deviceType
	b.deviceID = d.deviceID
	b.alloc = d
	return kerr.Ok(b)
}

func (d *DeviceAllocator) Attach(data []byte, opts Options) kerr.Result[*Buffer] {
	r := d.host.Attach(data, opts)
	if r.IsErr() {
		return r
	}
	b := r.Unwrap()
	b.isDevice = true
	b.deviceType = d.deviceType
	b.deviceID = d.deviceID
	b.alloc = d
	return kerr.Ok(b)
}

func (d *DeviceAllocator) ShrinkMemoryPool() {
	d.host.ShrinkMemoryPool()
}

func (d *DeviceAllocator) free(data []byte) {
	d.host.free(data)
}

// CopyHostToDevice copies a host buffer into a device buffer. It
// checks that dst is a device buffer and then delegates to
// src.CopyTo(dst), which copies directly without a staging allocation.
func CopyHostToDevice(src *Buffer, dst *Buffer) *kerr.Error {
	if !dst.isDevice {
		return kerr.New(kerr.InvalidArgument, "CopyHostToDevice destination is not a device buffer")
	}
	return src.CopyTo(dst)
}

package gpu

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrOutOfDeviceMemory = errors.New("gstore: gpu memory allocation failed")
	ErrBadDevice         = errors.New("gstore: unknown gpu device index")
	ErrBadIpcHandle      = errors.New("gstore: unknown gpu ipc memory handle")
)

// IpcMemHandle is the opaque token by which peer processes map the same
// device allocation.
type IpcMemHandle uuid.UUID

// InvalidIpcHandle is the zero handle.
var InvalidIpcHandle IpcMemHandle

func (h IpcMemHandle) IsValid() bool {
	return h != InvalidIpcHandle
}

func (h IpcMemHandle) String() string {
	return uuid.UUID(h).String()
}

// Buffer is one device memory allocation. The emulated device keeps it in
// host memory so tests can inspect staged images.
type Buffer struct {
	device int
	data   []byte
}

func (b *Buffer) Bytes() []byte { return b.data }
func (b *Buffer) Length() int64 { return int64(len(b.data)) }
func (b *Buffer) Device() int   { return b.device }

type device struct {
	sync.Mutex
	index     int
	limit     int64
	used      int64
	preserved map[IpcMemHandle]*Buffer
}

func (d *device) alloc(length int64) (*Buffer, error) {
	d.Lock()
	defer d.Unlock()
	if d.limit > 0 && d.used+length > d.limit {
		return nil, ErrOutOfDeviceMemory
	}
	d.used += length
	return &Buffer{device: d.index, data: make([]byte, length)}, nil
}

func (d *device) free(buf *Buffer) {
	d.Lock()
	defer d.Unlock()
	d.used -= int64(len(buf.data))
	buf.data = nil
}

// Manager models the set of GPU devices visible to the process group.
type Manager struct {
	devices []*device
}

// NewManager creates count emulated devices, each bounded to memPerDevice
// bytes (0 = unbounded).
func NewManager(count int, memPerDevice int64) *Manager {
	mgr := &Manager{}
	for i := 0; i < count; i++ {
		mgr.devices = append(mgr.devices, &device{
			index:     i,
			limit:     memPerDevice,
			preserved: make(map[IpcMemHandle]*Buffer),
		})
	}
	return mgr
}

func (mgr *Manager) DeviceCount() int {
	return len(mgr.devices)
}

func (mgr *Manager) deviceAt(dindex int) (*device, error) {
	if dindex < 0 || dindex >= len(mgr.devices) {
		return nil, ErrBadDevice
	}
	return mgr.devices[dindex], nil
}

// AllocPreserved allocates device memory that survives contexts and is
// addressable by IPC handle until FreePreserved.
func (mgr *Manager) AllocPreserved(dindex int, length int64) (IpcMemHandle, error) {
	dev, err := mgr.deviceAt(dindex)
	if err != nil {
		return InvalidIpcHandle, err
	}
	buf, err := dev.alloc(length)
	if err != nil {
		return InvalidIpcHandle, err
	}
	handle := IpcMemHandle(uuid.New())
	dev.Lock()
	dev.preserved[handle] = buf
	dev.Unlock()
	return handle, nil
}

// FreePreserved releases a preserved allocation.
func (mgr *Manager) FreePreserved(dindex int, handle IpcMemHandle) error {
	dev, err := mgr.deviceAt(dindex)
	if err != nil {
		return err
	}
	dev.Lock()
	buf, ok := dev.preserved[handle]
	if ok {
		delete(dev.preserved, handle)
	}
	dev.Unlock()
	if !ok {
		return ErrBadIpcHandle
	}
	dev.free(buf)
	logrus.Debugf("gpu: freed preserved allocation %s on device %d", handle, dindex)
	return nil
}

// NewContext activates a context on the given device. Managed allocations
// made through the context are released by Close.
type Context struct {
	mgr     *Manager
	dev     *device
	mu      sync.Mutex
	managed []*Buffer
}

func (mgr *Manager) NewContext(dindex int) (*Context, error) {
	dev, err := mgr.deviceAt(dindex)
	if err != nil {
		return nil, err
	}
	return &Context{mgr: mgr, dev: dev}, nil
}

func (ctx *Context) DeviceIndex() int {
	return ctx.dev.index
}

// OpenIpcHandle maps a preserved allocation into this context.
func (ctx *Context) OpenIpcHandle(handle IpcMemHandle) (*Buffer, error) {
	ctx.dev.Lock()
	defer ctx.dev.Unlock()
	buf, ok := ctx.dev.preserved[handle]
	if !ok {
		return nil, ErrBadIpcHandle
	}
	return buf, nil
}

// AllocManaged allocates context-lifetime managed memory, readable from
// both host and device.
func (ctx *Context) AllocManaged(length int64) (*Buffer, error) {
	buf, err := ctx.dev.alloc(length)
	if err != nil {
		return nil, err
	}
	ctx.mu.Lock()
	ctx.managed = append(ctx.managed, buf)
	ctx.mu.Unlock()
	return buf, nil
}

// MemcpyHtoD copies host bytes into a device buffer.
func (ctx *Context) MemcpyHtoD(dst *Buffer, src []byte) error {
	if int64(len(src)) > dst.Length() {
		return ErrOutOfDeviceMemory
	}
	copy(dst.data, src)
	return nil
}

// Close releases the context's managed allocations. Preserved allocations
// are untouched.
func (ctx *Context) Close() error {
	ctx.mu.Lock()
	managed := ctx.managed
	ctx.managed = nil
	ctx.mu.Unlock()
	for _, buf := range managed {
		ctx.dev.free(buf)
	}
	return nil
}

package shmem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateAttachDetach(t *testing.T) {
	mgr := NewManager(0)
	seg, err := mgr.Create(4096)
	assert.Nil(t, err)
	assert.NotEqual(t, InvalidHandle, seg.Handle())
	assert.Equal(t, 4096, seg.Size())

	copy(seg.Bytes(), []byte("hello"))

	other, err := mgr.Attach(seg.Handle())
	assert.Nil(t, err)
	assert.Equal(t, []byte("hello"), other.Bytes()[:5])

	seg.Detach()
	assert.Equal(t, 1, mgr.Count())
	other.Detach()
	assert.Equal(t, 0, mgr.Count())
	assert.Equal(t, int64(0), mgr.Used())

	_, err = mgr.Attach(seg.Handle())
	assert.ErrorIs(t, err, ErrBadHandle)
}

func TestPinOutlivesAttaches(t *testing.T) {
	mgr := NewManager(0)
	seg, err := mgr.Create(4096)
	assert.Nil(t, err)
	handle := seg.Handle()
	assert.Nil(t, mgr.Pin(handle))
	seg.Detach()
	assert.Equal(t, 1, mgr.Count())

	again, err := mgr.Attach(handle)
	assert.Nil(t, err)
	again.Detach()
	assert.Equal(t, 1, mgr.Count())

	assert.Nil(t, mgr.Unpin(handle))
	assert.Equal(t, 0, mgr.Count())
	assert.ErrorIs(t, mgr.Unpin(handle), ErrBadHandle)
}

func TestBudget(t *testing.T) {
	mgr := NewManager(8192)
	a, err := mgr.Create(4096)
	assert.Nil(t, err)
	b, err := mgr.Create(4096)
	assert.Nil(t, err)
	_, err = mgr.Create(1)
	assert.ErrorIs(t, err, ErrOutOfSegments)

	a.Detach()
	b.Detach()
	c, err := mgr.Create(8192)
	assert.Nil(t, err)
	c.Detach()
}

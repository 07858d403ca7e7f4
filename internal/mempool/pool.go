// Package mempool keeps size-classed sync.Pools of scratch buffers for the
// image filters, which allocate several page-sized planes per detector pass.
package mempool

import (
	"sync"
)

// sizeClass rounds n up to the next multiple of 1024 to reduce churn.
func sizeClass(n int) int {
	if n <= 1024 {
		return 1024
	}
	const step = 1024
	r := (n + step - 1) / step
	return r * step
}

// sizedPool is a family of sync.Pools keyed by size class.
type sizedPool[T any] struct {
	pools sync.Map // key: size class (int), value: *sync.Pool
}

func (sp *sizedPool[T]) pool(cls int) *sync.Pool {
	pAny, _ := sp.pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]T, cls) }})
	p, _ := pAny.(*sync.Pool)
	return p
}

// get returns a zeroed slice of length n.
func (sp *sizedPool[T]) get(n int) []T {
	cls := sizeClass(n)
	p := sp.pool(cls)
	buf, ok := p.Get().([]T)
	if !ok || cap(buf) < cls {
		buf = make([]T, cls)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}

func (sp *sizedPool[T]) put(buf []T) {
	if buf == nil {
		return
	}
	// Capacity is always a size class when the buffer came from get.
	cls := cap(buf)
	if sizeClass(cls) != cls {
		return
	}
	sp.pool(cls).Put(buf[:cls]) //nolint:staticcheck
}

var (
	uint8Pool   sizedPool[uint8]
	float32Pool sizedPool[float32]
	boolPool    sizedPool[bool]
	int32Pool   sizedPool[int32]
)

// GetUint8 retrieves a zeroed []uint8 of length n. Return it with PutUint8.
func GetUint8(n int) []uint8 { return uint8Pool.get(n) }

// PutUint8 returns a buffer to the pool. It is safe to pass a nil slice.
func PutUint8(buf []uint8) { uint8Pool.put(buf) }

// GetFloat32 retrieves a zeroed []float32 of length n. Return it with PutFloat32.
func GetFloat32(n int) []float32 { return float32Pool.get(n) }

// PutFloat32 returns a buffer to the pool. It is safe to pass a nil slice.
func PutFloat32(buf []float32) { float32Pool.put(buf) }

// GetBool retrieves a zeroed []bool of length n. Return it with PutBool.
func GetBool(n int) []bool { return boolPool.get(n) }

// PutBool returns a buffer to the pool. It is safe to pass a nil slice.
func PutBool(buf []bool) { boolPool.put(buf) }

// GetInt32 retrieves a zeroed []int32 of length n. Return it with PutInt32.
func GetInt32(n int) []int32 { return int32Pool.get(n) }

// PutInt32 returns a buffer to the pool. It is safe to pass a nil slice.
func PutInt32(buf []int32) { int32Pool.put(buf) }

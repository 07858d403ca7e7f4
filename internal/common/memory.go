package common

import (
	"fmt"
	"runtime"
)

// MemoryStats is a compact heap snapshot attached to page reports.
type MemoryStats struct {
	HeapAllocKB  uint64 `json:"heap_alloc_kb"`
	HeapInuseKB  uint64 `json:"heap_inuse_kb"`
	TotalAllocKB uint64 `json:"total_alloc_kb"`
	NumGC        uint32 `json:"num_gc"`
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{
		HeapAllocKB:  m.HeapAlloc / 1024,
		HeapInuseKB:  m.HeapInuse / 1024,
		TotalAllocKB: m.TotalAlloc / 1024,
		NumGC:        m.NumGC,
	}
}

// String returns a formatted string representation of memory stats.
func (m MemoryStats) String() string {
	return fmt.Sprintf("heap: %d KB, in use: %d KB, total: %d KB, GC: %d",
		m.HeapAllocKB, m.HeapInuseKB, m.TotalAllocKB, m.NumGC)
}

package models

import "time"

// Telemetry is a timestamped snapshot of one partition's readings. Fields
// whose driver query failed are left at zero rather than failing the whole
// collection.
type Telemetry struct {
	Timestamp         time.Time         `json:"timestamp"`
	GPUUtilization    uint32            `json:"gpu_utilization"`    // percent
	MemoryUtilization uint32            `json:"memory_utilization"` // percent
	MemoryUsed        uint64            `json:"memory_used"`        // bytes
	MemoryFree        uint64            `json:"memory_free"`
	MemoryTotal       uint64            `json:"memory_total"`
	PowerUsage        uint32            `json:"power_usage"` // milliwatts
	Temperature       uint32            `json:"temperature"` // celsius
	ProcessMemoryMB   map[string]uint64 `json:"process_memory_mb"`
}

// Utilization carries the paired compute/memory utilization readings of a
// single driver query.
type Utilization struct {
	GPU    uint32 `json:"gpu"`
	Memory uint32 `json:"memory"`
}

// MemoryInfo carries the used/free/total readings of a single driver query.
type MemoryInfo struct {
	Used  uint64 `json:"used"`
	Free  uint64 `json:"free"`
	Total uint64 `json:"total"`
}

// Process is one compute process running against a partition or device.
type Process struct {
	PID        uint32 `json:"pid"`
	Name       string `json:"name"`
	UsedMemory uint64 `json:"used_memory"` // bytes
}

package models

// Device is the immutable identity of one physical accelerator, captured
// when the inventory is built at startup.
type Device struct {
	Index       int    `json:"index"`
	UUID        string `json:"uuid"`
	Name        string `json:"name"`
	TotalMemory uint64 `json:"total_memory"` // bytes
}

// SystemInfo describes the driver stack the manager is talking to.
type SystemInfo struct {
	DriverVersion  string `json:"driver_version"`
	LibraryVersion string `json:"library_version"`
	CUDAVersion    string `json:"cuda_version"`
}

// ProcessAccounting is the accounting record of one process, as reported by
// the driver's accounting facility.
type ProcessAccounting struct {
	PID            uint32 `json:"pid"`
	Name           string `json:"name"`
	GPUUtilization uint32 `json:"gpu_utilization"` // percent
	MaxMemoryUsage uint64 `json:"max_memory_usage"`
	TimeMs         uint64 `json:"time_ms"`
	StartTime      uint64 `json:"start_time"` // microseconds since epoch
	IsRunning      bool   `json:"is_running"`
}

package models

// Partition describes one isolated slice of an accelerator, keyed across the
// registry by its UUID. Descriptors are value types: the registry replaces
// them wholesale on every refresh pass and never mutates them in place.
type Partition struct {
	UUID                    string   `json:"uuid"`
	ParentDeviceIndex       int      `json:"parent_device_index"`
	InstanceID              uint32   `json:"instance_id"`
	ProfileID               uint32   `json:"profile_id"`
	MemorySize              uint64   `json:"memory_size"` // bytes
	MultiprocessorCount     uint32   `json:"multiprocessor_count"`
	MaxComputeInstances     uint32   `json:"max_compute_instances"`
	CurrentComputeInstances uint32   `json:"current_compute_instances"`
	ComputeInstanceIDs      []uint32 `json:"compute_instance_ids"`
}

// Profile is a fixed-size template from which partitions are instantiated.
// Profiles are queried from the driver on demand and not cached long-term.
type Profile struct {
	ID                  uint32 `json:"id"`
	MemorySizeMB        uint64 `json:"memory_size_mb"`
	MultiprocessorCount uint32 `json:"multiprocessor_count"`
	MaxComputeInstances uint32 `json:"max_compute_instances"`
	Name                string `json:"name"`
}

package models

// Layout is a serializable desired partition configuration for the fleet.
// Applying a layout that matches the current state must not issue any
// mutating driver calls.
type Layout struct {
	Devices []DeviceLayout `toml:"device" json:"devices"`
}

// DeviceLayout is the desired configuration of one device.
type DeviceLayout struct {
	Index               int              `toml:"index" json:"index"`
	PartitioningEnabled bool             `toml:"partitioning_enabled" json:"partitioning_enabled"`
	Instances           []InstanceLayout `toml:"instance" json:"instances"`
}

// InstanceLayout is one desired partition, identified by the profile it
// should be instantiated from.
type InstanceLayout struct {
	ProfileID uint32 `toml:"profile_id" json:"profile_id"`
}

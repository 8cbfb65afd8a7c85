// Package layout saves and applies fleet partition layouts. A layout file is
// the desired configuration of every device; applying it reconciles the
// hardware towards that configuration with the fewest driver calls.
package layout

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"migfleet/pkg/defaults"
	"migfleet/pkg/errors"
	"migfleet/pkg/log"
	"migfleet/pkg/models"
)

// Fleet is the slice of the manager the layout service drives.
type Fleet interface {
	DeviceCount() int
	IsPartitioningEnabled(index int) bool
	PartitionsForDevice(index int) []models.Partition
	EnablePartitioning(ctx context.Context, index int) error
	DisablePartitioning(ctx context.Context, index int) error
	CreatePartition(ctx context.Context, index int, profileID uint32) (uint32, error)
	DestroyPartition(ctx context.Context, index int, instanceID uint32) error
}

// Service reads and writes layout files and reconciles devices against them.
type Service struct {
	fs    afero.Fs
	fleet Fleet
}

// NewService creates a layout service over the given filesystem and fleet.
func NewService(fs afero.Fs, fleet Fleet) *Service {
	return &Service{
		fs:    fs,
		fleet: fleet,
	}
}

// Snapshot captures the current configuration of every device.
func (s *Service) Snapshot() models.Layout {
	layout := models.Layout{}

	for index := 0; index < s.fleet.DeviceCount(); index++ {
		// Instances starts allocated so an empty device encodes as an empty
		// array and a saved layout loads back equal to its snapshot.
		dev := models.DeviceLayout{
			Index:               index,
			PartitioningEnabled: s.fleet.IsPartitioningEnabled(index),
			Instances:           []models.InstanceLayout{},
		}

		for _, part := range s.fleet.PartitionsForDevice(index) {
			dev.Instances = append(dev.Instances, models.InstanceLayout{
				ProfileID: part.ProfileID,
			})
		}

		layout.Devices = append(layout.Devices, dev)
	}

	return layout
}

// Save writes the current fleet configuration to the given path.
func (s *Service) Save(ctx context.Context, path string) error {
	if path == "" {
		return errors.ErrLayoutPathNeeded
	}

	data, err := toml.Marshal(s.Snapshot())
	if err != nil {
		return fmt.Errorf("encoding layout: %w", err)
	}

	dir := filepath.Dir(path)
	if err := s.fs.MkdirAll(dir, defaults.DataDirPerm); err != nil {
		return fmt.Errorf("creating layout directory %s: %w", dir, err)
	}

	if err := afero.WriteFile(s.fs, path, data, defaults.DataFilePerm); err != nil {
		return fmt.Errorf("writing layout file %s: %w", path, err)
	}

	log.GetLogger(ctx).Infof("saved layout for %d devices to %s", s.fleet.DeviceCount(), path)

	return nil
}

// Load parses the layout file at the given path.
func (s *Service) Load(path string) (models.Layout, error) {
	if path == "" {
		return models.Layout{}, errors.ErrLayoutPathNeeded
	}

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return models.Layout{}, fmt.Errorf("reading layout file %s: %w", path, err)
	}

	layout := models.Layout{}
	if err := toml.Unmarshal(data, &layout); err != nil {
		return models.Layout{}, fmt.Errorf("parsing layout file %s: %w", path, err)
	}

	return layout, nil
}

// Apply reconciles every device towards the layout in the given file. A
// device that already matches its desired configuration is left untouched,
// so re-applying a just-saved layout issues no mutating driver calls.
func (s *Service) Apply(ctx context.Context, path string) error {
	layout, err := s.Load(path)
	if err != nil {
		return err
	}

	logger := log.GetLogger(ctx)

	for _, desired := range layout.Devices {
		if desired.Index < 0 || desired.Index >= s.fleet.DeviceCount() {
			return errors.NewInvalidDeviceIndex(desired.Index, s.fleet.DeviceCount())
		}

		if err := s.applyDevice(ctx, desired); err != nil {
			return fmt.Errorf("applying layout to device %d: %w", desired.Index, err)
		}

		logger.Debugf("device %d reconciled against layout", desired.Index)
	}

	logger.Infof("applied layout from %s to %d devices", path, len(layout.Devices))

	return nil
}

func (s *Service) applyDevice(ctx context.Context, desired models.DeviceLayout) error {
	enabled := s.fleet.IsPartitioningEnabled(desired.Index)

	if !desired.PartitioningEnabled {
		if enabled {
			// Disabling tears down any remaining instances with it.
			return s.fleet.DisablePartitioning(ctx, desired.Index)
		}

		return nil
	}

	if !enabled {
		if err := s.fleet.EnablePartitioning(ctx, desired.Index); err != nil {
			return err
		}
	}

	return s.reconcileInstances(ctx, desired)
}

// reconcileInstances diffs desired against current instances by profile id.
// Instances whose profile is still wanted stay; surplus ones are destroyed
// and missing ones created.
func (s *Service) reconcileInstances(ctx context.Context, desired models.DeviceLayout) error {
	wanted := map[uint32]int{}
	for _, inst := range desired.Instances {
		wanted[inst.ProfileID]++
	}

	for _, part := range s.fleet.PartitionsForDevice(desired.Index) {
		if wanted[part.ProfileID] > 0 {
			wanted[part.ProfileID]--

			continue
		}

		if err := s.fleet.DestroyPartition(ctx, desired.Index, part.InstanceID); err != nil {
			return err
		}
	}

	for _, inst := range desired.Instances {
		if wanted[inst.ProfileID] == 0 {
			continue
		}

		wanted[inst.ProfileID]--

		if _, err := s.fleet.CreatePartition(ctx, desired.Index, inst.ProfileID); err != nil {
			return err
		}
	}

	return nil
}

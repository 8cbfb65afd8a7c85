package accounting

import (
	"context"
	"fmt"

	"migfleet/pkg/log"
	"migfleet/pkg/models"
	"migfleet/pkg/partition"
)

// Service exposes the driver's per-process accounting facility for the
// managed fleet. Accounting is a device-level toggle; stats describe the
// processes the driver has accounted since it was enabled.
type Service struct {
	inventory *partition.Inventory
}

// NewService returns an accounting service over the given inventory.
func NewService(inventory *partition.Inventory) *Service {
	return &Service{inventory: inventory}
}

// Enable turns accounting mode on for one device.
func (s *Service) Enable(ctx context.Context, index int) error {
	dev, err := s.inventory.ByIndex(index)
	if err != nil {
		return err
	}

	if err := dev.Handle.SetAccountingMode(true); err != nil {
		return fmt.Errorf("enabling accounting on device %d: %w", index, err)
	}

	log.GetLogger(ctx).Infof("accounting enabled on device %d", index)

	return nil
}

// Disable turns accounting mode off for one device.
func (s *Service) Disable(ctx context.Context, index int) error {
	dev, err := s.inventory.ByIndex(index)
	if err != nil {
		return err
	}

	if err := dev.Handle.SetAccountingMode(false); err != nil {
		return fmt.Errorf("disabling accounting on device %d: %w", index, err)
	}

	log.GetLogger(ctx).Infof("accounting disabled on device %d", index)

	return nil
}

// IsEnabled reports whether accounting mode is on. A driver error reads as
// not enabled.
func (s *Service) IsEnabled(index int) bool {
	dev, err := s.inventory.ByIndex(index)
	if err != nil {
		return false
	}

	enabled, err := dev.Handle.AccountingMode()

	return err == nil && enabled
}

// RunningProcessStats returns the accounting records for one device. An
// empty slice, not an error, is returned when accounting is off.
func (s *Service) RunningProcessStats(ctx context.Context, index int) ([]models.ProcessAccounting, error) {
	dev, err := s.inventory.ByIndex(index)
	if err != nil {
		return nil, err
	}

	if !s.IsEnabled(index) {
		return nil, nil
	}

	stats, err := dev.Handle.AccountingStats()
	if err != nil {
		return nil, fmt.Errorf("reading accounting stats on device %d: %w", index, err)
	}

	log.GetLogger(ctx).Debugf("device %d: %d accounted processes", index, len(stats))

	return stats, nil
}

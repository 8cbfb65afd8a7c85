package manager

import (
	"context"
	"fmt"
	"time"
)

// Every mutating operation has a synchronous form, which blocks on the
// driver call and the follow-up registry refresh, and an asynchronous form,
// which enqueues a command on the worker and returns immediately with the
// outcome delivered through the OnComplete handler. An out-of-range device
// index fails either form before anything reaches the driver or the queue.

// EnablePartitioning turns partitioning mode on for one device.
func (m *Manager) EnablePartitioning(ctx context.Context, index int) error {
	dev, err := m.device(index)
	if err != nil {
		return err
	}

	if err := dev.Handle.SetPartitionMode(true); err != nil {
		return fmt.Errorf("enabling partitioning on device %d: %w", index, err)
	}

	m.registry.Refresh(ctx)

	return nil
}

// EnablePartitioningAsync enqueues the enable command.
func (m *Manager) EnablePartitioningAsync(index int, done OnComplete) error {
	dev, err := m.device(index)
	if err != nil {
		return err
	}

	return m.worker.submit(command{
		name: fmt.Sprintf("enable partitioning on device %d", index),
		op:   func() error { return dev.Handle.SetPartitionMode(true) },
		done: done,
	})
}

// DisablePartitioning turns partitioning mode off for one device.
func (m *Manager) DisablePartitioning(ctx context.Context, index int) error {
	dev, err := m.device(index)
	if err != nil {
		return err
	}

	if err := dev.Handle.SetPartitionMode(false); err != nil {
		return fmt.Errorf("disabling partitioning on device %d: %w", index, err)
	}

	m.registry.Refresh(ctx)

	return nil
}

// DisablePartitioningAsync enqueues the disable command.
func (m *Manager) DisablePartitioningAsync(index int, done OnComplete) error {
	dev, err := m.device(index)
	if err != nil {
		return err
	}

	return m.worker.submit(command{
		name: fmt.Sprintf("disable partitioning on device %d", index),
		op:   func() error { return dev.Handle.SetPartitionMode(false) },
		done: done,
	})
}

// CreatePartition instantiates a partition from the given profile and
// returns the new instance id.
func (m *Manager) CreatePartition(ctx context.Context, index int, profileID uint32) (uint32, error) {
	dev, err := m.device(index)
	if err != nil {
		return 0, err
	}

	instanceID, err := dev.Handle.CreatePartition(profileID)
	if err != nil {
		return 0, fmt.Errorf("creating partition on device %d: %w", index, err)
	}

	m.registry.Refresh(ctx)

	return instanceID, nil
}

// CreatePartitionAsync enqueues the create command. The new instance id is
// visible through the registry once the completion handler reports success.
func (m *Manager) CreatePartitionAsync(index int, profileID uint32, done OnComplete) error {
	dev, err := m.device(index)
	if err != nil {
		return err
	}

	return m.worker.submit(command{
		name: fmt.Sprintf("create partition from profile %d on device %d", profileID, index),
		op: func() error {
			_, err := dev.Handle.CreatePartition(profileID)

			return err
		},
		done: done,
	})
}

// DestroyPartition destroys the partition with the given instance id.
func (m *Manager) DestroyPartition(ctx context.Context, index int, instanceID uint32) error {
	dev, err := m.device(index)
	if err != nil {
		return err
	}

	if err := dev.Handle.DestroyPartition(instanceID); err != nil {
		return fmt.Errorf("destroying partition %d on device %d: %w", instanceID, index, err)
	}

	m.registry.Refresh(ctx)

	return nil
}

// DestroyPartitionAsync enqueues the destroy command.
func (m *Manager) DestroyPartitionAsync(index int, instanceID uint32, done OnComplete) error {
	dev, err := m.device(index)
	if err != nil {
		return err
	}

	return m.worker.submit(command{
		name: fmt.Sprintf("destroy partition %d on device %d", instanceID, index),
		op:   func() error { return dev.Handle.DestroyPartition(instanceID) },
		done: done,
	})
}

// CreateComputeInstance subdivides a partition instance and returns the new
// compute instance id.
func (m *Manager) CreateComputeInstance(ctx context.Context, index int, instanceID, profileID uint32) (uint32, error) {
	dev, err := m.device(index)
	if err != nil {
		return 0, err
	}

	ciID, err := dev.Handle.CreateComputeInstance(instanceID, profileID)
	if err != nil {
		return 0, fmt.Errorf("creating compute instance in partition %d on device %d: %w", instanceID, index, err)
	}

	m.registry.Refresh(ctx)

	return ciID, nil
}

// Flush blocks until every command queued before the call has completed. It
// returns a timeout error when the backlog does not drain within the given
// duration; a zero or negative timeout waits indefinitely.
func (m *Manager) Flush(timeout time.Duration) error {
	if err := m.ready(); err != nil {
		return err
	}

	return m.worker.flush(timeout)
}

// CreateComputeInstanceAsync enqueues the compute-instance create command.
func (m *Manager) CreateComputeInstanceAsync(index int, instanceID, profileID uint32, done OnComplete) error {
	dev, err := m.device(index)
	if err != nil {
		return err
	}

	return m.worker.submit(command{
		name: fmt.Sprintf("create compute instance in partition %d on device %d", instanceID, index),
		op: func() error {
			_, err := dev.Handle.CreateComputeInstance(instanceID, profileID)

			return err
		},
		done: done,
	})
}

package telemetry

import "fmt"

// pidName is the fallback key for a process whose name the driver could not
// resolve.
func pidName(pid uint32) string {
	return fmt.Sprintf("pid_%d", pid)
}

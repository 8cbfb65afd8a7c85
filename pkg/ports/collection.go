package ports

import (
	"time"

	"github.com/spf13/afero"
)

// Collection bundles the external collaborators the manager and its
// supporting services are wired with.
type Collection struct {
	Driver     Driver
	FileSystem afero.Fs
	Clock      func() time.Time
}

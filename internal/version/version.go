package version

var (
	// PackageName is the name of this package, set at build time.
	PackageName = "migfleet"

	// Version is the version of this package, set at build time.
	Version = "undefined"

	// CommitHash is the git hash this package was built from, set at build time.
	CommitHash = "undefined"

	// BuildDate is the date this package was built, set at build time.
	BuildDate = "undefined"
)

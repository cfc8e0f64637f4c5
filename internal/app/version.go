package app

// Build-time variables set via -ldflags. For example:
//
//	go build -ldflags "-X github.com/large-farva/iss-tracker/internal/app.Version=v1.0.0 -X github.com/large-farva/iss-tracker/internal/app.Commit=$(git rev-parse --short HEAD)"
//
// GoVersion falls back to the running toolchain when left unset.
var (
	Version   = "dev"
	Commit    = "none"
	GoVersion = "unknown"
	BuiltAt   = "unknown"
)

package version

// Version is the current version of the videocall CLI.
// It can be overridden at build time using:
//   go build -ldflags="-X 'github.com/pintr/p2p-videocall/internal/version.Version=v1.0.0'"
var Version = "dev"

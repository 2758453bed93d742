package version

import "fmt"

// values are set via ldflags on release builds
var (
	Version   = "dev"
	GitCommit = ""
	BuildDate = ""
)

var FullVersion = func() string {
	if GitCommit == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s) %s", Version, GitCommit, BuildDate)
}()

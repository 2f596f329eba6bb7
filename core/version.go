package core

import (
	"fmt"

	"go.uber.org/zap"
)

// Version identifies the running engine build. Precedence: the -ldflags
// build flag, then the version flag/env of Conf, then the placeholder.
var Version string

const NoVersion = "no_version_info"

func SetVersion(c *Conf, versionByBuildFlag string) {
	switch {
	case versionByBuildFlag != "":
		Version = versionByBuildFlag
	case c.Version != "":
		Version = c.Version
	default:
		Version = NoVersion
	}
	zap.L().Info(fmt.Sprintf("Engine version is %s", Version))
}

package version

import "runtime/debug"

// Version is set at build time with
// -ldflags "-X github.com/bnema/gasmorph/internal/version.Version=v1.2.3".
var Version = "dev"

func String() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

package buildconfig

import (
	"context"
	"fmt"

	"github.com/sofmeright/ue4-docker/src/docker"
	"github.com/sofmeright/ue4-docker/src/errs"
	"github.com/sofmeright/ue4-docker/src/probe"
)

// HostChecks is the part of the host probe consulted before a build.
type HostChecks interface {
	IsSupportedHost() bool
	IsBlacklistedHost(ctx context.Context) (bool, error)
	IsEOLHost() bool
}

// Preflight verifies that the host can run the configured build. It returns
// an EnvironmentError for hosts that cannot, and warnings for hosts that
// merely should not.
func Preflight(ctx context.Context, cfg *Configuration, host HostChecks, facts probe.Facts, requiredSizeGB float64) ([]string, error) {
	var warnings []string

	if !host.IsSupportedHost() {
		return nil, errs.Environment("the host OS version is older than the minimum supported version", nil)
	}

	if cfg.Platform != Windows {
		return warnings, nil
	}

	blacklisted, err := host.IsBlacklistedHost(ctx)
	if err != nil {
		return nil, err
	}
	if blacklisted {
		if !cfg.IgnoreBlacklist {
			return nil, errs.Environment(fmt.Sprintf("Windows release %s has known bugs that prevent building container images with this version of Docker; upgrade Docker or pass --ignore-blacklist", facts.HostRelease), nil)
		}
		warnings = append(warnings, fmt.Sprintf("ignoring known bugs in host Windows release %s as requested", facts.HostRelease))
	}

	if host.IsEOLHost() {
		warnings = append(warnings, fmt.Sprintf("host Windows release %s has reached End Of Life and is unsupported", facts.HostRelease))
	}

	// Layout and dry runs never touch the daemon's storage.
	if cfg.Mode == ModeBuild && facts.MaxSizeGB != docker.Unbounded && facts.MaxSizeGB < requiredSizeGB {
		return nil, errs.Environment(fmt.Sprintf(
			"SETUP REQUIRED: the max image size for Windows containers must be set to at least %.0fGB (currently %.0fGB); run `ue4-docker setup` or see https://docs.microsoft.com/en-us/visualstudio/install/build-tools-container#step-4-expand-maximum-container-disk-size",
			requiredSizeGB, facts.MaxSizeGB), nil)
	}
	return warnings, nil
}

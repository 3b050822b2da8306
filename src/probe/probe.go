// Package probe answers questions about the host and its container engine.
//
// Every query is independent and performs no retries; callers decide how to
// react to a failed probe. Gather collects the facts the configuration
// resolver needs in one pass.
package probe

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sync/errgroup"

	"github.com/sofmeright/ue4-docker/src/compat"
	"github.com/sofmeright/ue4-docker/src/docker"
	"github.com/sofmeright/ue4-docker/src/hostos"
)

// UnknownBaseTag is reported when the host release has no known Server Core
// base tag.
const UnknownBaseTag = "unknown"

// Probe queries the host OS and container engine.
type Probe struct {
	GOOS         string // defaults to runtime.GOOS
	Host         hostos.Source
	Engine       docker.Engine
	Tables       compat.Tables
	DaemonConfig string // Windows daemon.json path; defaults to docker.DaemonConfigPath()
}

// New returns a Probe for the running host.
func New(engine docker.Engine, tables compat.Tables) *Probe {
	return &Probe{
		GOOS:   runtime.GOOS,
		Host:   hostos.Default(),
		Engine: engine,
		Tables: tables,
	}
}

func (p *Probe) goos() string {
	if p.GOOS == "" {
		return runtime.GOOS
	}
	return p.GOOS
}

// IsWindows reports whether the host runs Windows.
func (p *Probe) IsWindows() bool {
	return p.goos() == "windows"
}

// DaemonVersion returns the container engine version.
func (p *Probe) DaemonVersion(ctx context.Context) (*semver.Version, error) {
	return p.Engine.Version(ctx)
}

// MaxLayerSize returns the image size limit in GB, or docker.Unbounded when
// the platform imposes none.
func (p *Probe) MaxLayerSize() (float64, error) {
	if !p.IsWindows() {
		return docker.Unbounded, nil
	}
	path := p.DaemonConfig
	if path == "" {
		path = docker.DaemonConfigPath()
	}
	return docker.MaxSize(path, p.Tables.Windows.DefaultSizeLimitGB)
}

// HostRelease returns the Windows release identifier (1809, 20H2, ...).
func (p *Probe) HostRelease() (string, bool) {
	if !p.IsWindows() {
		return "", false
	}
	for _, key := range []string{hostos.KeyDisplayVersion, hostos.KeyReleaseID} {
		if v, err := p.Host.Value(key); err == nil && v != "" {
			return v, true
		}
	}
	return "", false
}

// HostBuild returns the Windows build number.
func (p *Probe) HostBuild() (int, bool) {
	v, err := p.Host.Value(hostos.KeyBuildNumber)
	if err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

// IsInsiderPreview reports whether the host build is newer than any known
// general availability release.
func (p *Probe) IsInsiderPreview() bool {
	build, ok := p.HostBuild()
	return ok && build > p.Tables.Windows.LatestReleaseBuild
}

// IsWindowsServer reports whether the host is a Windows Server edition.
func (p *Probe) IsWindowsServer() bool {
	name, err := p.Host.Value(hostos.KeyProductName)
	return err == nil && strings.Contains(name, "Windows Server")
}

// HostBaseTag maps the host release to a Server Core base tag, returning
// UnknownBaseTag when the release is not in the lookup table.
func (p *Probe) HostBaseTag() string {
	if !p.IsWindows() {
		return UnknownBaseTag
	}
	if p.IsInsiderPreview() {
		return p.Tables.LatestBaseTag()
	}
	release, ok := p.HostRelease()
	if !ok {
		return UnknownBaseTag
	}
	if tag, ok := p.Tables.BaseTagForRelease(release); ok {
		return tag
	}
	return UnknownBaseTag
}

// IsBlacklistedHost reports whether the host release has known container
// bugs that the installed engine version does not work around.
func (p *Probe) IsBlacklistedHost(ctx context.Context) (bool, error) {
	release, ok := p.HostRelease()
	if !ok || !p.Tables.IsBlacklistedRelease(release) {
		return false, nil
	}
	v, err := p.DaemonVersion(ctx)
	if err != nil {
		return false, err
	}
	return v.LessThan(semver.MustParse(p.Tables.Windows.BlacklistDockerFloor)), nil
}

// IsEOLHost reports whether the host release has reached end of life.
func (p *Probe) IsEOLHost() bool {
	release, ok := p.HostRelease()
	return ok && p.Tables.IsEOLRelease(release)
}

// SupportsProcessIsolation reports whether Windows containers can share the
// host kernel. Windows Server always can; client editions need build 17763.
func (p *Probe) SupportsProcessIsolation() bool {
	if !p.IsWindows() {
		return false
	}
	if p.IsWindowsServer() {
		return true
	}
	build, ok := p.HostBuild()
	return ok && build >= p.Tables.Windows.ProcessIsolationClientBuild
}

// HostVersion returns the host OS version, when one can be determined.
func (p *Probe) HostVersion() (*semver.Version, bool) {
	var raw string
	switch p.goos() {
	case "windows":
		major, err1 := p.Host.Value(hostos.KeyMajorVersion)
		minor, err2 := p.Host.Value(hostos.KeyMinorVersion)
		build, err3 := p.Host.Value(hostos.KeyBuildNumber)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, false
		}
		raw = fmt.Sprintf("%s.%s.%s", major, minor, build)
	case "darwin":
		v, err := p.Host.Value(hostos.KeyDarwinProductVersion)
		if err != nil {
			return nil, false
		}
		raw = v
	default:
		return nil, false
	}
	v, err := semver.NewVersion(strings.TrimSpace(raw))
	if err != nil {
		return nil, false
	}
	return v, true
}

// IsSupportedHost reports whether the host meets the minimum OS version.
// Hosts whose version cannot be read are given the benefit of the doubt.
func (p *Probe) IsSupportedHost() bool {
	var floor string
	switch p.goos() {
	case "windows":
		floor = p.Tables.Windows.MinimumHostVersion
	case "darwin":
		floor = p.Tables.Darwin.MinimumHostVersion
	default:
		return true
	}
	v, ok := p.HostVersion()
	if !ok {
		return true
	}
	return !v.LessThan(semver.MustParse(floor))
}

// SystemString returns a short human-readable description of the host.
func (p *Probe) SystemString() string {
	switch p.goos() {
	case "windows":
		edition := "10"
		if p.IsWindowsServer() {
			edition = "Server"
		}
		release, _ := p.HostRelease()
		return fmt.Sprintf("Windows %s version %s", edition, release)
	case "darwin":
		v, _ := p.Host.Value(hostos.KeyDarwinProductVersion)
		return "macOS " + v
	default:
		return strings.ToUpper(p.goos()[:1]) + p.goos()[1:]
	}
}

// Facts is a snapshot of probe results.
type Facts struct {
	GOOS          string
	DaemonVersion *semver.Version
	Daemon        docker.Info
	HostRelease   string
	HostBaseTag   string
	Insider       bool
	MaxSizeGB     float64
}

// IsWindows reports whether the facts describe a Windows host.
func (f Facts) IsWindows() bool {
	return f.GOOS == "windows"
}

// Gather queries the daemon version and info concurrently, then reads the
// host facts.
func (p *Probe) Gather(ctx context.Context) (Facts, error) {
	f := Facts{GOOS: p.goos()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := p.DaemonVersion(gctx)
		f.DaemonVersion = v
		return err
	})
	g.Go(func() error {
		info, err := p.Engine.Info(gctx)
		f.Daemon = info
		return err
	})
	if err := g.Wait(); err != nil {
		return Facts{}, err
	}

	f.HostRelease, _ = p.HostRelease()
	f.HostBaseTag = p.HostBaseTag()
	f.Insider = p.IsInsiderPreview()

	size, err := p.MaxLayerSize()
	if err != nil {
		return Facts{}, fmt.Errorf("reading image size limit: %w", err)
	}
	f.MaxSizeGB = size
	return f, nil
}

// Package compat holds the static compatibility tables that drive release,
// host and toolchain decisions.
//
// The tables are embedded as YAML and decoded into a fresh Tables value on
// every call to Load, so callers own their copy and nothing in the process
// mutates shared lookup data.
package compat

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

//go:embed tables.yml
var tablesYAML []byte

// Tables is the decoded compatibility data.
type Tables struct {
	DefaultRepository  string               `yaml:"default_repository"`
	SupportedMajors    []uint64             `yaml:"supported_majors"`
	ReleaseChangelists map[string]int       `yaml:"release_changelists"`
	Toolchains         map[string]Toolchain `yaml:"toolchains"`
	DefaultToolchain   string               `yaml:"default_toolchain"`
	Windows            WindowsTables        `yaml:"windows"`
	Linux              LinuxTables          `yaml:"linux"`
	Darwin             DarwinTables         `yaml:"darwin"`
	ExcludedComponents map[string]string    `yaml:"excluded_components"`
}

// Toolchain describes a Visual Studio release usable for Windows builds.
type Toolchain struct {
	BuildNumber string `yaml:"build_number"`
	MinEngine   string `yaml:"min_engine"`
}

// WindowsTables holds Windows host and base image data.
type WindowsTables struct {
	BaseTags                    []string          `yaml:"base_tags"`
	ReleaseBaseTags             map[string]string `yaml:"release_base_tags"`
	LatestReleaseBuild          int               `yaml:"latest_release_build"`
	BlacklistedReleases         []string          `yaml:"blacklisted_releases"`
	BlacklistDockerFloor        string            `yaml:"blacklist_docker_floor"`
	EOLReleases                 []string          `yaml:"eol_releases"`
	MinimumHostVersion          string            `yaml:"minimum_host_version"`
	ProcessIsolationClientBuild int               `yaml:"process_isolation_client_build"`
	ProcessIsolationDockerFloor string            `yaml:"process_isolation_docker_floor"`
	RequiredSizeLimitGB         float64           `yaml:"required_size_limit_gb"`
	DefaultSizeLimitGB          float64           `yaml:"default_size_limit_gb"`
	BaseImage                   string            `yaml:"base_image"`
	DefaultMemoryLimitGB        float64           `yaml:"default_memory_limit_gb"`
	RandomMemorySpreadGB        float64           `yaml:"random_memory_spread_gb"`
}

// LinuxTables holds Linux base image data. Image and tag templates use the
// {ubuntu} and {cuda} placeholders.
type LinuxTables struct {
	DefaultBaseTag         string            `yaml:"default_base_tag"`
	DefaultCUDA            string            `yaml:"default_cuda"`
	BaseImages             map[string]string `yaml:"base_images"`
	PrereqsTags            map[string]string `yaml:"prereqs_tags"`
	ReservedSuffixPrefixes []string          `yaml:"reserved_suffix_prefixes"`
}

// DarwinTables holds macOS host data.
type DarwinTables struct {
	MinimumHostVersion string `yaml:"minimum_host_version"`
}

// Load decodes the embedded tables.
func Load() (Tables, error) {
	return Parse(tablesYAML)
}

// MustLoad is Load for package initialisation paths; the embedded data is
// covered by tests so a failure here is a build defect.
func MustLoad() Tables {
	t, err := Load()
	if err != nil {
		panic(err)
	}
	return t
}

// Parse decodes tables from YAML and checks that every version string in
// them is valid semver.
func Parse(data []byte) (Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tables{}, fmt.Errorf("decoding compatibility tables: %w", err)
	}

	var errs []string
	for name, tc := range t.Toolchains {
		if tc.MinEngine == "" {
			continue
		}
		if _, err := semver.StrictNewVersion(tc.MinEngine); err != nil {
			errs = append(errs, fmt.Sprintf("toolchains.%s.min_engine: %v", name, err))
		}
	}
	for field, v := range map[string]string{
		"windows.blacklist_docker_floor":         t.Windows.BlacklistDockerFloor,
		"windows.process_isolation_docker_floor": t.Windows.ProcessIsolationDockerFloor,
		"windows.minimum_host_version":           t.Windows.MinimumHostVersion,
		"darwin.minimum_host_version":            t.Darwin.MinimumHostVersion,
	} {
		if v == "" {
			continue
		}
		if _, err := semver.NewVersion(v); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", field, err))
		}
	}
	if _, ok := t.Toolchains[t.DefaultToolchain]; !ok {
		errs = append(errs, fmt.Sprintf("default_toolchain %q is not a known toolchain", t.DefaultToolchain))
	}
	if len(errs) > 0 {
		slices.Sort(errs)
		return Tables{}, fmt.Errorf("compatibility tables: %s", strings.Join(errs, "; "))
	}
	return t, nil
}

// IsSupportedMajor reports whether major is an engine major version the
// tool knows how to build.
func (t Tables) IsSupportedMajor(major uint64) bool {
	return slices.Contains(t.SupportedMajors, major)
}

// Changelist returns the official changelist for an exact release.
func (t Tables) Changelist(release string) (int, bool) {
	cl, ok := t.ReleaseChangelists[release]
	return cl, ok
}

// ToolchainNames returns the known Visual Studio releases in ascending order.
func (t Tables) ToolchainNames() []string {
	names := make([]string, 0, len(t.Toolchains))
	for name := range t.Toolchains {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ToolchainMinEngine returns the oldest engine release buildable with the
// named toolchain, or nil when the toolchain has no floor.
func (t Tables) ToolchainMinEngine(name string) *semver.Version {
	tc, ok := t.Toolchains[name]
	if !ok || tc.MinEngine == "" {
		return nil
	}
	return semver.MustParse(tc.MinEngine)
}

// BaseTagForRelease maps a Windows release identifier (1809, 20H2, ...) to
// a Server Core base tag.
func (t Tables) BaseTagForRelease(release string) (string, bool) {
	tag, ok := t.Windows.ReleaseBaseTags[release]
	return tag, ok
}

// LatestBaseTag returns the newest known Server Core base tag.
func (t Tables) LatestBaseTag() string {
	tags := t.Windows.BaseTags
	if len(tags) == 0 {
		return ""
	}
	return tags[len(tags)-1]
}

// IsValidBaseTag reports whether tag is a known Server Core base tag.
func (t Tables) IsValidBaseTag(tag string) bool {
	return slices.Contains(t.Windows.BaseTags, tag)
}

// IsNewerBaseTag reports whether newer was released after older. Unknown
// tags are never newer.
func (t Tables) IsNewerBaseTag(older, newer string) bool {
	i := slices.Index(t.Windows.BaseTags, older)
	j := slices.Index(t.Windows.BaseTags, newer)
	if i < 0 || j < 0 {
		return false
	}
	return j > i
}

// IsBlacklistedRelease reports whether a Windows release has known
// container bugs.
func (t Tables) IsBlacklistedRelease(release string) bool {
	return slices.Contains(t.Windows.BlacklistedReleases, release)
}

// IsEOLRelease reports whether a Windows release has reached end of life.
func (t Tables) IsEOLRelease(release string) bool {
	return slices.Contains(t.Windows.EOLReleases, release)
}

// LinuxBaseImage expands the base image template for the given flavour
// ("opengl" or "cudagl").
func (t Tables) LinuxBaseImage(flavour, ubuntu, cuda string) string {
	return expand(t.Linux.BaseImages[flavour], ubuntu, cuda)
}

// LinuxPrereqsTag expands the prerequisites tag template for the given
// flavour.
func (t Tables) LinuxPrereqsTag(flavour, ubuntu, cuda string) string {
	return expand(t.Linux.PrereqsTags[flavour], ubuntu, cuda)
}

// IsReservedSuffix reports whether a tag suffix collides with the base tag
// vocabulary.
func (t Tables) IsReservedSuffix(suffix string) bool {
	for _, p := range t.Linux.ReservedSuffixPrefixes {
		if strings.HasPrefix(suffix, p) {
			return true
		}
	}
	return false
}

// ComponentNames returns the excludable component identifiers, sorted.
func (t Tables) ComponentNames() []string {
	names := make([]string, 0, len(t.ExcludedComponents))
	for name := range t.ExcludedComponents {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DescribeComponent returns the human-readable name of an excludable
// component.
func (t Tables) DescribeComponent(name string) string {
	if d, ok := t.ExcludedComponents[name]; ok {
		return d
	}
	return "[Unknown component]"
}

func expand(tmpl, ubuntu, cuda string) string {
	return strings.NewReplacer("{ubuntu}", ubuntu, "{cuda}", cuda).Replace(tmpl)
}

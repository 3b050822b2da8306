package buildconfig

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/docker/go-units"

	"github.com/sofmeright/ue4-docker/src/compat"
	"github.com/sofmeright/ue4-docker/src/errs"
	"github.com/sofmeright/ue4-docker/src/probe"
	"github.com/sofmeright/ue4-docker/src/release"
	"github.com/sofmeright/ue4-docker/src/targets"
)

// Rand supplies the randomness for --random-memory. *math/rand/v2.Rand
// satisfies it; a nil Rand uses the global source.
type Rand interface {
	Float64() float64
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// Input is the parsed command line of the build command.
type Input struct {
	Release release.Request
	Targets []string
	Legacy  targets.Legacy

	Linux           bool
	Rebuild         bool
	DryRun          bool
	NoCache         bool
	RandomMemory    bool
	Combine         bool
	IgnoreBlacklist bool
	Verbose         bool

	Isolation string
	BaseTag   string
	Suffix    string
	Memory    string
	Layout    string
	Toolchain string
	CUDA      *string // nil when --cuda was not given; "" selects the default version

	Exclude []string
	Opts    []string

	UE4CLI            string
	ConanUE4CLI       string
	PrereqsDockerfile string
}

// FromInput resolves the target set and release from in, then the full
// configuration.
func FromInput(in Input, facts probe.Facts, tables compat.Tables, rng Rand) (*Configuration, error) {
	set, err := targets.Resolve(in.Targets, in.Legacy)
	if err != nil {
		return nil, err
	}
	rel, err := release.Resolve(in.Release, set.Has(targets.Source), tables)
	if err != nil {
		return nil, err
	}
	return Resolve(in, rel, set, facts, tables, rng)
}

// Resolve builds the configuration for an already resolved release and
// target set.
func Resolve(in Input, rel release.Descriptor, set targets.Set, facts probe.Facts, tables compat.Tables, rng Rand) (*Configuration, error) {
	c := &Configuration{
		Platform:          Linux,
		Mode:              ModeBuild,
		Rebuild:           in.Rebuild,
		Verbose:           in.Verbose,
		Release:           rel,
		Targets:           set,
		LayoutDir:         in.Layout,
		Combine:           in.Combine,
		Changelist:        rel.Changelist,
		UE4CLI:            packageVersion("ue4cli", in.UE4CLI),
		ConanUE4CLI:       packageVersion("conan-ue4cli", in.ConanUE4CLI),
		PrereqsDockerfile: in.PrereqsDockerfile,
		IgnoreBlacklist:   in.IgnoreBlacklist,
		opts:              map[string]Value{},
	}
	if facts.IsWindows() && !in.Linux {
		c.Platform = Windows
	}

	if in.Legacy.Used() {
		c.warn("Using deprecated `--no-*` target specifiers; recommend changing to `--target`")
	}

	switch {
	case in.DryRun && in.Layout != "":
		return nil, errs.Configf("`--dry-run` and `-layout` cannot be combined")
	case in.DryRun:
		c.Mode = ModeDryRun
	case in.Layout != "":
		c.Mode = ModeLayout
		// Every stage is written out when generating Dockerfiles.
		c.Rebuild = true
	}

	if in.NoCache {
		c.platformArgs = append(c.platformArgs, "--no-cache")
	}

	if err := c.parseOptions(in.Opts); err != nil {
		return nil, err
	}
	if c.Mode == ModeLayout && in.Combine {
		c.opts["combine"] = Bool(true)
	}

	if err := c.resolveModes(in); err != nil {
		return nil, err
	}
	if err := c.resolveExclusions(in.Exclude, tables); err != nil {
		return nil, err
	}

	if c.Platform == Windows {
		c.warnWindowsCopyBug()
		if err := c.resolveWindows(in, facts, tables, rng); err != nil {
			return nil, err
		}
	} else {
		if err := c.resolveLinux(in, tables); err != nil {
			return nil, err
		}
	}

	if in.Suffix != "" {
		c.suffix = "-" + in.Suffix
	}
	return c, nil
}

func (c *Configuration) warn(format string, args ...any) {
	c.warnings = append(c.warnings, fmt.Sprintf(format, args...))
}

func (c *Configuration) parseOptions(entries []string) error {
	for _, entry := range entries {
		key, v, ok := ParseOption(entry)
		if key == "" {
			return errs.Configf("invalid option %q, expected key=value", entry)
		}
		if !ok {
			c.warn("could not parse option value %q as JSON, treating value as a string", v.String())
		}
		c.opts[key] = v
	}
	return nil
}

func (c *Configuration) optString(key, fallback string) (string, bool) {
	v, present := c.opts[key]
	if !present {
		return fallback, true
	}
	s, ok := v.Str()
	return s, ok
}

func (c *Configuration) resolveModes(in Input) error {
	source, ok := c.optString("source_mode", SourceGit)
	if in.Layout == "" && (!ok || source != SourceGit) {
		return errs.Configf("the `-layout` flag must be used when specifying a non-default value for the `source_mode` option")
	}
	if in.Layout == "" && in.Combine {
		return errs.Configf("the `-layout` flag must be used when specifying the `--combine` flag")
	}
	c.SourceMode = source

	credential, credOK := c.optString("credential_mode", CredentialEndpoint)
	c.CredentialMode = credential

	// Modes only matter when engine source is cloned.
	if !c.Builds(targets.Source) {
		return nil
	}

	valid := []string{SourceGit, SourceCopy}
	if !ok || !slices.Contains(valid, source) {
		return errs.Configf("invalid value specified for the `source_mode` option, valid values are %v", valid)
	}

	valid = []string{CredentialEndpoint}
	if c.Platform == Linux {
		valid = append(valid, CredentialSecrets)
	}
	if !credOK || !slices.Contains(valid, credential) {
		return errs.Configf("invalid value specified for the `credential_mode` option, valid values are %v when building %s containers",
			valid, titleCase(string(c.Platform)))
	}
	return nil
}

func (c *Configuration) resolveExclusions(exclude []string, tables compat.Tables) error {
	names := tables.ComponentNames()
	c.excluded = make(map[string]bool, len(names))
	for _, name := range names {
		c.excluded[name] = false
	}
	for _, ex := range exclude {
		if !slices.Contains(names, ex) {
			return errs.Configf("invalid component %q for `--exclude`, valid values are %s", ex, strings.Join(names, ", "))
		}
		c.excluded[ex] = true
	}

	m := make(map[string]Value, len(c.excluded))
	for name, ex := range c.excluded {
		m[name] = Bool(ex)
	}
	c.opts["excluded_components"] = Map(m)
	return nil
}

// warnWindowsCopyBug flags builds likely to hit the Windows 20GiB COPY bug.
func (c *Configuration) warnWindowsCopyBug() {
	hit := false
	if !c.excluded["debug"] {
		c.warn("You didn't pass --exclude debug")
		hit = true
	}
	if c.Release.AtLeast(5, 0) {
		c.warn("You're building Unreal Engine 5")
		hit = true
	}
	if hit {
		c.warn("You might hit the Docker 20GiB COPY bug, see https://github.com/adamrehn/ue4-docker/issues/99#issuecomment-1079702817 for details and workarounds")
	}
}

func (c *Configuration) resolveWindows(in Input, facts probe.Facts, tables compat.Tables, rng Rand) error {
	c.Toolchain = in.Toolchain
	if c.Toolchain == "" {
		c.Toolchain = tables.DefaultToolchain
	}
	tc, ok := tables.Toolchains[c.Toolchain]
	if !ok {
		return errs.Configf("invalid Visual Studio version %q, valid values are %s", c.Toolchain, strings.Join(tables.ToolchainNames(), ", "))
	}
	if c.Release.Version != nil {
		if floor := tables.ToolchainMinEngine(c.Toolchain); floor != nil && c.Release.Version.LessThan(floor) {
			return errs.Configf("specified version of Unreal Engine cannot be built with Visual Studio %s, oldest supported is %s", c.Toolchain, floor)
		}
	}
	if c.Toolchain != tables.DefaultToolchain {
		prev, _ := c.optString("buildgraph_args", "")
		c.opts["buildgraph_args"] = String(prev + fmt.Sprintf(" -set:VS%s=true", c.Toolchain))
	}
	c.opts["visual_studio_build_number"] = String(tc.BuildNumber)

	c.HostBaseTag = facts.HostBaseTag
	c.BaseTag = in.BaseTag
	if c.BaseTag == "" {
		c.BaseTag = facts.HostBaseTag
	}
	if c.BaseTag == "" || c.BaseTag == probe.UnknownBaseTag {
		return errs.Configf("unable to determine Windows Server Core base image tag from host system. Specify it explicitly using -basetag command-line flag")
	}
	if tables.IsNewerBaseTag(c.HostBaseTag, c.BaseTag) {
		return errs.Configf("cannot build container images with a newer kernel version (%s) than that of the host OS (%s)", c.BaseTag, c.HostBaseTag)
	}

	c.BaseImage = tables.Windows.BaseImage + ":" + c.BaseTag
	c.prereqsTag = c.BaseTag + "-vs" + c.Toolchain

	switch in.Isolation {
	case IsolationProcess, IsolationHyperV:
		c.Isolation = in.Isolation
	case "":
		differentKernels := facts.Insider || c.BaseTag != c.HostBaseTag
		floor := semver.MustParse(tables.Windows.ProcessIsolationDockerFloor)
		engineSupports := facts.DaemonVersion != nil && !facts.DaemonVersion.LessThan(floor)
		if !differentKernels && engineSupports {
			c.Isolation = IsolationProcess
		} else {
			c.Isolation = IsolationHyperV
		}
	default:
		return errs.Configf("invalid isolation mode %q, valid values are %s and %s", in.Isolation, IsolationProcess, IsolationHyperV)
	}
	c.platformArgs = append(c.platformArgs, "--isolation="+c.Isolation)

	switch {
	case in.Memory != "":
		bytes, err := units.FromHumanSize(in.Memory)
		if err != nil {
			return errs.Configf("invalid memory limit %q", in.Memory)
		}
		c.memoryLimitGB, c.hasMemoryLimit = float64(bytes)/1e9, true
	case c.Isolation == IsolationHyperV:
		// Process isolation imposes no default ceiling; Hyper-V defaults to 1GB.
		limit := tables.Windows.DefaultMemoryLimitGB
		if in.RandomMemory {
			if rng == nil {
				rng = globalRand{}
			}
			limit += rng.Float64() * tables.Windows.RandomMemorySpreadGB
		}
		c.memoryLimitGB, c.hasMemoryLimit = limit, true
	}
	if c.hasMemoryLimit {
		c.platformArgs = append(c.platformArgs, "-m", fmt.Sprintf("%.2fGB", c.memoryLimitGB))
	}
	return nil
}

func (c *Configuration) resolveLinux(in Input, tables compat.Tables) error {
	if tables.IsReservedSuffix(in.Suffix) {
		return errs.Configf("tag suffix cannot begin with %s", quoteJoin(tables.Linux.ReservedSuffixPrefixes))
	}
	if in.Isolation != "" {
		c.warn("-isolation only applies to Windows containers and will be ignored")
	}

	c.BaseTag = in.BaseTag
	if c.BaseTag == "" {
		c.BaseTag = tables.Linux.DefaultBaseTag
	}

	flavour := "opengl"
	if in.CUDA != nil {
		flavour = "cudagl"
		c.CUDA = *in.CUDA
		if c.CUDA == "" {
			c.CUDA = tables.Linux.DefaultCUDA
		}
	}
	c.BaseImage = tables.LinuxBaseImage(flavour, c.BaseTag, c.CUDA)
	c.prereqsTag = tables.LinuxPrereqsTag(flavour, c.BaseTag, c.CUDA)
	return nil
}

// packageVersion normalises a pip requirement for a package: a bare version
// becomes "pkg==X", a specifier becomes "pkg<specifier>", and fully qualified
// requirements or URLs are left alone.
func packageVersion(pkg, version string) string {
	if version == "" || strings.Contains(version, "/") || strings.HasPrefix(strings.ToLower(version), pkg) {
		return version
	}
	if strings.Contains(version, "=") {
		return pkg + version
	}
	return pkg + "==" + version
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func quoteJoin(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(quoted, " or ")
}

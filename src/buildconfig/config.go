// Package buildconfig resolves command line input, the requested release,
// the closed target set and host facts into one immutable build
// configuration.
//
// Every validation happens here, before any container engine call, so an
// invalid request never leaves a partially started build behind.
package buildconfig

import (
	"maps"
	"slices"
	"strconv"

	"github.com/sofmeright/ue4-docker/src/release"
	"github.com/sofmeright/ue4-docker/src/targets"
)

// Platform is the container platform images are built for.
type Platform string

const (
	Windows Platform = "windows"
	Linux   Platform = "linux"
)

// Mode is the execution mode of a run. Exactly one is active.
type Mode string

const (
	ModeBuild  Mode = "build"
	ModeDryRun Mode = "dry-run"
	ModeLayout Mode = "layout"
)

// Isolation modes for Windows containers.
const (
	IsolationProcess = "process"
	IsolationHyperV  = "hyperv"
)

// Credential delivery modes.
const (
	CredentialEndpoint = "endpoint"
	CredentialSecrets  = "secrets"
)

// Source delivery modes.
const (
	SourceGit  = "git"
	SourceCopy = "copy"
)

// Configuration is the resolved build configuration. It is never mutated
// after Resolve returns; accessors hand out copies of its collections.
type Configuration struct {
	Platform Platform
	Mode     Mode
	Rebuild  bool
	Verbose  bool

	Release release.Descriptor
	Targets targets.Set

	BaseImage   string
	BaseTag     string // Server Core tag on Windows, Ubuntu tag on Linux
	HostBaseTag string
	Isolation   string
	Toolchain   string
	CUDA        string // empty when CUDA support is off

	prereqsTag string
	suffix     string

	memoryLimitGB  float64
	hasMemoryLimit bool

	CredentialMode string
	SourceMode     string
	LayoutDir      string
	Combine        bool
	Changelist     *int

	UE4CLI            string
	ConanUE4CLI       string
	PrereqsDockerfile string
	IgnoreBlacklist   bool

	excluded     map[string]bool
	opts         map[string]Value
	platformArgs []string
	warnings     []string
}

// Suffix returns the tag suffix including its leading dash, or "".
func (c *Configuration) Suffix() string {
	return c.suffix
}

// PrerequisitesTag returns the tag of the build-prerequisites image.
func (c *Configuration) PrerequisitesTag() string {
	return c.prereqsTag + c.suffix
}

// MainTag returns the tag shared by the source, engine, minimal and full
// images.
func (c *Configuration) MainTag() string {
	return c.Release.Name + c.suffix
}

// StageTag returns the tag a stage's image is built with.
func (c *Configuration) StageTag(st targets.Stage) string {
	if st == targets.Prerequisites {
		return c.PrerequisitesTag()
	}
	return c.MainTag()
}

// MemoryLimitGB returns the Windows container memory limit, if one applies.
func (c *Configuration) MemoryLimitGB() (float64, bool) {
	return c.memoryLimitGB, c.hasMemoryLimit
}

// PlatformArgs returns the docker build flags shared by every stage.
func (c *Configuration) PlatformArgs() []string {
	return slices.Clone(c.platformArgs)
}

// IsExcluded reports whether a component was excluded.
func (c *Configuration) IsExcluded(component string) bool {
	return c.excluded[component]
}

// Excluded returns the excluded component names, sorted.
func (c *Configuration) Excluded() []string {
	var out []string
	for name, ex := range c.excluded {
		if ex {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// Option returns a single advanced option.
func (c *Configuration) Option(key string) (Value, bool) {
	v, ok := c.opts[key]
	return v, ok
}

// Options returns a copy of the advanced options.
func (c *Configuration) Options() map[string]Value {
	return maps.Clone(c.opts)
}

// Warnings returns the non-fatal issues found during resolution.
func (c *Configuration) Warnings() []string {
	return slices.Clone(c.warnings)
}

// Builds reports whether stage st is part of this run.
func (c *Configuration) Builds(st targets.Stage) bool {
	return c.Targets.Has(st)
}

// NeedsCredentials reports whether the run clones engine source and so
// must deliver git credentials to the build.
func (c *Configuration) NeedsCredentials() bool {
	return c.Mode == ModeBuild && c.Builds(targets.Source) && c.SourceMode == SourceGit
}

// TemplateContext returns the values exposed to Dockerfile templates.
func (c *Configuration) TemplateContext() map[string]any {
	ctx := make(map[string]any, len(c.opts)+4)
	for k, v := range c.opts {
		ctx[k] = v.Interface()
	}
	ctx["platform"] = string(c.Platform)
	ctx["credential_mode"] = c.CredentialMode
	ctx["source_mode"] = c.SourceMode
	if c.Changelist != nil {
		ctx["changelist"] = strconv.Itoa(*c.Changelist)
	}
	return ctx
}

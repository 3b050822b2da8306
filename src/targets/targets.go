// Package targets resolves requested build stages into a set closed over
// the stage dependency graph.
package targets

import (
	"slices"
	"strings"

	"github.com/sofmeright/ue4-docker/src/errs"
)

// Stage names one image in the build pipeline.
type Stage string

const (
	Prerequisites Stage = "build-prerequisites"
	Source        Stage = "source"
	Engine        Stage = "engine"
	Minimal       Stage = "minimal"
	Full          Stage = "full"
)

// All is the pseudo-target selecting every stage.
const All = "all"

// order is the execution order; every stage appears after its dependencies.
var order = []Stage{Prerequisites, Source, Engine, Minimal, Full}

// needs maps each stage to its direct dependency.
var needs = map[Stage]Stage{
	Source:  Prerequisites,
	Engine:  Source,
	Minimal: Source,
	Full:    Minimal,
}

// Stages returns every stage in execution order.
func Stages() []Stage {
	return slices.Clone(order)
}

// ImageName returns the repository name of the image a stage produces.
func (s Stage) ImageName() string {
	return "ue4-" + string(s)
}

// Legacy carries the deprecated --no-* stage switches.
type Legacy struct {
	NoEngine  bool
	NoMinimal bool
	NoFull    bool
}

// Used reports whether any legacy switch was given.
func (l Legacy) Used() bool {
	return l.NoEngine || l.NoMinimal || l.NoFull
}

// Requested converts the legacy switches into target names. Disabling
// source and prerequisites was never supported.
func (l Legacy) Requested() []string {
	noFull := l.NoFull || l.NoMinimal
	var out []string
	if !noFull {
		out = append(out, string(Full))
	}
	if !l.NoMinimal {
		out = append(out, string(Minimal))
	}
	if !l.NoEngine {
		out = append(out, string(Engine))
	}
	return append(out, string(Source), string(Prerequisites))
}

// Set is an immutable set of stages closed under the dependency relation.
type Set struct {
	members map[Stage]bool
}

// Has reports whether the set contains s.
func (s Set) Has(st Stage) bool {
	return s.members[st]
}

// Len returns the number of stages in the set.
func (s Set) Len() int {
	return len(s.members)
}

// Ordered returns the members in execution order.
func (s Set) Ordered() []Stage {
	out := make([]Stage, 0, len(s.members))
	for _, st := range order {
		if s.members[st] {
			out = append(out, st)
		}
	}
	return out
}

// String renders the set in execution order.
func (s Set) String() string {
	names := make([]string, 0, len(s.members))
	for _, st := range s.Ordered() {
		names = append(names, string(st))
	}
	return strings.Join(names, ", ")
}

// Resolve closes the requested stages over their dependencies. Entries may
// be comma-delimited. With neither requested stages nor legacy switches every
// stage is selected.
func Resolve(requested []string, legacy Legacy) (Set, error) {
	var names []string
	switch {
	case legacy.Used() && len(requested) > 0:
		return Set{}, errs.Configf("specified both `--target` and the old `--no-*` options; please use only `--target`")
	case legacy.Used():
		names = legacy.Requested()
	case len(requested) == 0:
		names = []string{All}
	default:
		for _, r := range requested {
			for _, part := range strings.Split(r, ",") {
				if part = strings.TrimSpace(part); part != "" {
					names = append(names, part)
				}
			}
		}
	}
	return Close(names)
}

// Close validates names and returns their downward closure. An empty list
// closes to the prerequisites stage alone.
func Close(names []string) (Set, error) {
	members := map[Stage]bool{}
	for _, name := range names {
		if name == All {
			for _, st := range order {
				members[st] = true
			}
			continue
		}
		st := Stage(name)
		if !isStage(st) {
			return Set{}, errs.Configf("unknown build target '%s', valid options are: %s", name, validOptions())
		}
		members[st] = true
	}

	// Walk from the leaves down so one pass reaches every dependency.
	for i := len(order) - 1; i >= 0; i-- {
		st := order[i]
		if dep, ok := needs[st]; ok && members[st] {
			members[dep] = true
		}
	}
	if len(members) == 0 {
		members[Prerequisites] = true
	}

	if !members[Prerequisites] {
		return Set{}, errs.Configf("we're not building anything; the target set has no build-prerequisites stage")
	}
	return Set{members: members}, nil
}

func isStage(st Stage) bool {
	return slices.Contains(order, st)
}

func validOptions() string {
	names := make([]string, 0, len(order))
	for _, st := range order {
		names = append(names, string(st))
	}
	slices.Sort(names)
	return All + " " + strings.Join(names, " ")
}

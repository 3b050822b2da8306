package build

import (
	"fmt"
	"maps"
	"strconv"

	"github.com/sofmeright/ue4-docker/src/buildconfig"
	"github.com/sofmeright/ue4-docker/src/targets"
)

// Build argument names understood by the Dockerfile templates.
const (
	ArgBaseImage   = "BASEIMAGE"
	ArgNamespace   = "NAMESPACE"
	ArgPrereqsTag  = "PREREQS_TAG"
	ArgTag         = "TAG"
	ArgGitRepo     = "GIT_REPO"
	ArgGitBranch   = "GIT_BRANCH"
	ArgChangelist  = "CHANGELIST"
	ArgUE4CLI      = "UE4CLI_VERSION"
	ArgConanUE4CLI = "CONAN_UE4CLI_VERSION"
)

// stageArgs returns the build arguments for st. Tags of earlier stages are
// taken from their recorded results rather than recomputed, so a stage
// always consumes exactly what its dependency produced.
func stageArgs(cfg *buildconfig.Configuration, namespace string, st targets.Stage, res *Result, extra map[string]string) (map[string]string, error) {
	args := map[string]string{}

	recorded := func(dep targets.Stage) (string, error) {
		sr, ok := res.Lookup(dep)
		if !ok || !sr.Succeeded() || len(sr.Tags) == 0 {
			return "", fmt.Errorf("%s requires a completed %s stage", st, dep)
		}
		return sr.Tags[0], nil
	}

	if st != targets.Prerequisites {
		args[ArgNamespace] = namespace
	}

	switch st {
	case targets.Prerequisites:
		args[ArgBaseImage] = cfg.BaseImage

	case targets.Source:
		prereqs, err := recorded(targets.Prerequisites)
		if err != nil {
			return nil, err
		}
		args[ArgPrereqsTag] = prereqs
		args[ArgGitRepo] = cfg.Release.Repository
		args[ArgGitBranch] = cfg.Release.BranchOrTag

	case targets.Engine, targets.Full:
		tag, err := recorded(targets.Source)
		if err != nil {
			return nil, err
		}
		args[ArgTag] = tag
		if st == targets.Full {
			if cfg.UE4CLI != "" {
				args[ArgUE4CLI] = cfg.UE4CLI
			}
			if cfg.ConanUE4CLI != "" {
				args[ArgConanUE4CLI] = cfg.ConanUE4CLI
			}
		}

	case targets.Minimal:
		tag, err := recorded(targets.Source)
		if err != nil {
			return nil, err
		}
		prereqs, err := recorded(targets.Prerequisites)
		if err != nil {
			return nil, err
		}
		args[ArgTag] = tag
		args[ArgPrereqsTag] = prereqs
		if cfg.Changelist != nil {
			args[ArgChangelist] = strconv.Itoa(*cfg.Changelist)
		}
	}

	maps.Copy(args, extra)
	return args, nil
}

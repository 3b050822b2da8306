package build

import (
	"time"

	"github.com/sofmeright/ue4-docker/src/targets"
)

// Status is the terminal state of a stage.
type Status string

const (
	StatusBuilt   Status = "built"
	StatusSkipped Status = "skipped"
	StatusDryRun  Status = "dry-run"
	StatusLayout  Status = "layout"
	StatusFailed  Status = "failed"
)

// StageResult records one stage attempt.
type StageResult struct {
	Stage    targets.Stage
	Image    string   // qualified reference of the first tag
	Tags     []string // bare tags, used to feed later stages
	Built    bool
	Skipped  bool
	Status   Status
	Duration time.Duration
	Err      error
}

// Succeeded reports whether downstream stages may consume this stage.
func (r StageResult) Succeeded() bool {
	return r.Status != StatusFailed
}

// Result captures the outcome of a whole run.
type Result struct {
	Stages   []StageResult
	Duration time.Duration
}

// Lookup returns the recorded result for a stage.
func (r *Result) Lookup(st targets.Stage) (StageResult, bool) {
	for _, sr := range r.Stages {
		if sr.Stage == st {
			return sr, true
		}
	}
	return StageResult{}, false
}

// Count returns how many stages ended in status s.
func (r *Result) Count(s Status) int {
	n := 0
	for _, sr := range r.Stages {
		if sr.Status == s {
			n++
		}
	}
	return n
}

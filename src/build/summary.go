package build

import (
	"fmt"
	"io"

	"github.com/sofmeright/ue4-docker/src/output"
)

// PrintSummary renders the per-stage outcome of a run. A failed stage is
// followed by its error text.
func PrintSummary(w io.Writer, res *Result, color bool) {
	if res == nil || len(res.Stages) == 0 {
		return
	}

	sec := output.NewSection(w, "Build", res.Duration, color)
	overall := output.StatusOK
	for _, sr := range res.Stages {
		status := entryStatus(sr.Status)
		if status == output.StatusFailed {
			overall = output.StatusFailed
		}
		detail := fmt.Sprintf("%-8s %s", sr.Status, sr.Image)
		if sr.Duration > 0 && sr.Status == StatusBuilt {
			detail += "  " + output.Dimmed(formatDuration(sr.Duration), color)
		}
		sec.Entry(sr.Stage.ImageName(), status, detail)
		if sr.Status == StatusFailed && sr.Err != nil {
			sec.Row("  %s", output.Dimmed(sr.Err.Error(), color))
		}
	}
	sec.Total(res.Duration, overall)
	sec.Close()
}

func entryStatus(s Status) output.Status {
	switch s {
	case StatusBuilt:
		return output.StatusOK
	case StatusFailed:
		return output.StatusFailed
	case StatusDryRun, StatusLayout:
		return output.StatusPlanned
	default:
		return output.StatusSkipped
	}
}

// Cases converts stage results for a JUnit report.
func (r *Result) Cases() []output.Case {
	cases := make([]output.Case, 0, len(r.Stages))
	for _, sr := range r.Stages {
		c := output.Case{Name: sr.Image, Duration: sr.Duration}
		switch sr.Status {
		case StatusFailed:
			c.Failure = "stage failed"
			if sr.Err != nil {
				c.Failure = sr.Err.Error()
			}
		case StatusSkipped:
			c.Skipped = "image exists and rebuild not requested"
		}
		cases = append(cases, c)
	}
	return cases
}

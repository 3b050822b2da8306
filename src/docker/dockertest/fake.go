// Package dockertest provides an in-memory docker.Engine for tests.
package dockertest

import (
	"context"
	"errors"
	"path"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/sofmeright/ue4-docker/src/docker"
)

// ErrUnreachable is returned by a Fake with Down set.
var ErrUnreachable = errors.New("cannot connect to the Docker daemon")

// Fake records engine calls and serves canned answers.
type Fake struct {
	mu sync.Mutex

	Down       bool
	ServerVer  string
	DaemonInfo docker.Info
	Images     map[string]bool
	// FailBuild makes Build return an error for commands whose first tag
	// matches a key.
	FailBuild map[string]error
	// OnBuild is called for every build before it is recorded.
	OnBuild func(docker.Command)

	Builds  []docker.Command
	Pulls   []string
	Removed []string
	Listed  []docker.Image
	Pruned  int
}

// New returns a reachable Fake reporting the given daemon version.
func New(version string) *Fake {
	return &Fake{
		ServerVer: version,
		Images:    map[string]bool{},
		FailBuild: map[string]error{},
	}
}

func (f *Fake) Exists(_ context.Context, ref string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Down {
		return false, ErrUnreachable
	}
	return f.Images[ref], nil
}

func (f *Fake) Build(_ context.Context, cmd docker.Command) error {
	if f.OnBuild != nil {
		f.OnBuild(cmd)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Builds = append(f.Builds, cmd)
	if len(cmd.Tags) > 0 {
		if err := f.FailBuild[cmd.Tags[0]]; err != nil {
			return err
		}
		for _, tag := range cmd.Tags {
			f.Images[tag] = true
		}
	}
	return nil
}

func (f *Fake) Pull(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pulls = append(f.Pulls, ref)
	f.Images[ref] = true
	return nil
}

func (f *Fake) Info(_ context.Context) (docker.Info, error) {
	if f.Down {
		return docker.Info{}, ErrUnreachable
	}
	info := f.DaemonInfo
	info.ServerVersion = f.ServerVer
	return info, nil
}

func (f *Fake) Version(_ context.Context) (*semver.Version, error) {
	if f.Down {
		return nil, ErrUnreachable
	}
	return docker.ParseVersion(f.ServerVer)
}

// ListImages filters Listed by reference glob and danglingness. Labels are
// not modelled, so a label filter matches every image.
func (f *Fake) ListImages(_ context.Context, filter docker.ImageFilter) ([]docker.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []docker.Image
	for _, img := range f.Listed {
		if filter.Dangling && len(img.RepoTags) > 0 {
			continue
		}
		if filter.Reference != "" && !matchesAny(filter.Reference, img.RepoTags) {
			continue
		}
		out = append(out, img)
	}
	return out, nil
}

func matchesAny(pattern string, tags []string) bool {
	for _, t := range tags {
		if ok, _ := path.Match(pattern, t); ok {
			return true
		}
	}
	return false
}

func (f *Fake) Remove(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Removed = append(f.Removed, ref)
	delete(f.Images, ref)
	return nil
}

func (f *Fake) Prune(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pruned++
	return nil
}

// BuiltTags returns the first tag of every recorded build, in order.
func (f *Fake) BuiltTags() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.Builds))
	for _, b := range f.Builds {
		if len(b.Tags) > 0 {
			out = append(out, b.Tags[0])
		}
	}
	return out
}

var (
	_ docker.Engine = (*Fake)(nil)
	_ docker.Store  = (*Fake)(nil)
)

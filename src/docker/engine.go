// Package docker is the container engine boundary: image queries go through
// the Docker SDK, while build, pull and prune shell out to the docker CLI so
// their progress streams straight to the terminal.
package docker

import (
	"context"

	"github.com/Masterminds/semver/v3"
)

// Engine is the set of container engine operations the build pipeline uses.
type Engine interface {
	// Exists reports whether ref is present in the local image store.
	Exists(ctx context.Context, ref string) (bool, error)
	// Build runs an image build and returns an error for a nonzero exit.
	Build(ctx context.Context, cmd Command) error
	// Pull fetches ref from its registry.
	Pull(ctx context.Context, ref string) error
	// Info returns daemon facts.
	Info(ctx context.Context) (Info, error)
	// Version returns the daemon version.
	Version(ctx context.Context) (*semver.Version, error)
}

// Store lists and removes local images, used by the clean command.
type Store interface {
	ListImages(ctx context.Context, filter ImageFilter) ([]Image, error)
	Remove(ctx context.Context, ref string) error
	Prune(ctx context.Context) error
}

// Info is the subset of daemon information the tool consumes.
type Info struct {
	OSType          string // "windows" or "linux"
	OperatingSystem string
	Isolation       string
	RootDir         string
	ServerVersion   string
	Runtimes        []string
	MemTotal        int64
	NCPU            int
}

// HasRuntime reports whether the daemon has a named OCI runtime configured.
func (i Info) HasRuntime(name string) bool {
	for _, r := range i.Runtimes {
		if r == name {
			return true
		}
	}
	return false
}

// Image is a local image summary.
type Image struct {
	ID       string
	RepoTags []string
}

// ImageFilter narrows ListImages.
type ImageFilter struct {
	Reference string // repository[:tag] glob
	Label     string
	Dangling  bool
}

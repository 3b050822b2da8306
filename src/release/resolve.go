// Package release resolves a requested engine release into a descriptor
// naming the repository and ref to clone.
package release

import (
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/sofmeright/ue4-docker/src/compat"
	"github.com/sofmeright/ue4-docker/src/errs"
)

// CustomName is the release name used for custom builds without an
// explicit label.
const CustomName = "custom"

// Descriptor identifies the engine source a build will clone.
type Descriptor struct {
	IsCustom    bool
	Name        string // canonical "M.m.p" or the custom label
	Repository  string
	BranchOrTag string
	Version     *semver.Version // nil for custom releases
	Changelist  *int            // explicit override or the official .0 changelist
}

// IsZero reports whether no release was resolved, which is the case when
// the source stage is not part of the build.
func (d Descriptor) IsZero() bool {
	return d.Name == ""
}

// Request is the raw user input for a release.
type Request struct {
	Release    string // positional release argument
	UEVersion  string // --ue-version
	Repository string // -repo
	Branch     string // -branch
	Changelist *int   // -changelist
}

// Resolve validates req against the compatibility tables. When needed is
// false the release is optional and an empty Descriptor is returned.
func Resolve(req Request, needed bool, tables compat.Tables) (Descriptor, error) {
	if req.Release != "" && req.UEVersion != "" {
		return Descriptor{}, errs.Configf("specified both `--ue-version` and the positional release; please use only `--ue-version`")
	}
	raw := req.Release
	if req.UEVersion != "" {
		raw = req.UEVersion
	}

	if !needed {
		return Descriptor{}, nil
	}
	if raw == "" {
		return Descriptor{}, errs.Configf("missing `--ue-version` when building source")
	}

	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == CustomName || strings.HasPrefix(raw, CustomName+":") {
		return resolveCustom(raw, req)
	}
	return resolveOfficial(raw, req, tables)
}

func resolveCustom(raw string, req Request) (Descriptor, error) {
	if req.Repository == "" || req.Branch == "" {
		return Descriptor{}, errs.Configf("both a repository and branch/tag must be specified when building a custom version of the Engine")
	}

	name := CustomName
	if _, label, ok := strings.Cut(raw, ":"); ok {
		if label = strings.TrimSpace(label); label != "" {
			name = label
		}
	}

	return Descriptor{
		IsCustom:    true,
		Name:        name,
		Repository:  req.Repository,
		BranchOrTag: req.Branch,
		Changelist:  req.Changelist,
	}, nil
}

func resolveOfficial(raw string, req Request, tables compat.Tables) (Descriptor, error) {
	v, err := semver.StrictNewVersion(raw)
	if err != nil || v.Prerelease() != "" || v.Metadata() != "" || !tables.IsSupportedMajor(v.Major()) {
		return Descriptor{}, errs.Configf("invalid Unreal Engine release number %q, full semver format required (e.g. \"4.20.0\")", raw)
	}

	name := v.String()
	d := Descriptor{
		Name:        name,
		Repository:  tables.DefaultRepository,
		BranchOrTag: name + "-release",
		Version:     v,
		Changelist:  req.Changelist,
	}

	// .0 releases lack a CompatibleChangelist in Build.version.
	if d.Changelist == nil {
		if cl, ok := tables.Changelist(name); ok {
			d.Changelist = &cl
		}
	}
	return d, nil
}

// AtLeast reports whether the descriptor names an official release at or
// above major.minor. Custom releases never satisfy version gates.
func (d Descriptor) AtLeast(major, minor uint64) bool {
	if d.Version == nil {
		return false
	}
	return !d.Version.LessThan(semver.New(major, minor, 0, "", ""))
}

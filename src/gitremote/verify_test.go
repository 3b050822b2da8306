package gitremote

import (
	"context"
	"errors"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/sofmeright/ue4-docker/src/errs"
)

type fakeLister struct {
	refs []*plumbing.Reference
	err  error
	opts *git.ListOptions
}

func (f *fakeLister) ListContext(_ context.Context, o *git.ListOptions) ([]*plumbing.Reference, error) {
	f.opts = o
	return f.refs, f.err
}

func refs() []*plumbing.Reference {
	h := plumbing.NewHash("5b1c6e9e3a5d1f0a2c4b8e7d6f9a0b1c2d3e4f5a")
	return []*plumbing.Reference{
		plumbing.NewHashReference(plumbing.NewBranchReferenceName("4.27.2-release"), h),
		plumbing.NewHashReference(plumbing.NewTagReferenceName("4.27.2-release-tag"), h),
		plumbing.NewHashReference(plumbing.HEAD, h),
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		ref  string
		want bool
	}{
		{"4.27.2-release", true},
		{"4.27.2-release-tag", true},
		{"refs/heads/4.27.2-release", true},
		{"5b1c6e9", true},
		{"5b1c6", false},
		{"5.0.0-release", false},
	}
	for _, tt := range tests {
		err := verify(context.Background(), &fakeLister{refs: refs()}, "https://example.com/ue.git", tt.ref, nil)
		if tt.want && err != nil {
			t.Errorf("verify(%q) = %v", tt.ref, err)
		}
		if !tt.want && !errs.IsConfig(err) {
			t.Errorf("verify(%q) = %v, want configuration error", tt.ref, err)
		}
	}
}

func TestVerifyListFailure(t *testing.T) {
	err := verify(context.Background(), &fakeLister{err: errors.New("authentication required")}, "https://example.com/ue.git", "main", nil)
	if !errs.IsEnvironment(err) {
		t.Fatalf("err = %v", err)
	}
}

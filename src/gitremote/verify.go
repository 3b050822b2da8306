// Package gitremote checks engine source references against a remote
// repository before any image is built.
package gitremote

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/sofmeright/ue4-docker/src/errs"
)

// lister lists the references advertised by a remote.
type lister interface {
	ListContext(ctx context.Context, o *git.ListOptions) ([]*plumbing.Reference, error)
}

// VerifyRef checks that ref names a branch or tag of the repository at url.
// Username and password are used for HTTP basic auth when set.
func VerifyRef(ctx context.Context, url, ref, username, password string) error {
	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: "origin",
		URLs: []string{url},
	})

	var auth transport.AuthMethod
	if username != "" || password != "" {
		auth = &githttp.BasicAuth{Username: username, Password: password}
	}
	return verify(ctx, remote, url, ref, auth)
}

func verify(ctx context.Context, l lister, url, ref string, auth transport.AuthMethod) error {
	refs, err := l.ListContext(ctx, &git.ListOptions{Auth: auth})
	if err != nil {
		return errs.Environment(fmt.Sprintf("listing references of %s", url), err)
	}
	if !matchRef(refs, ref) {
		return errs.Configf("branch or tag %q does not exist in %s", ref, url)
	}
	return nil
}

func matchRef(refs []*plumbing.Reference, ref string) bool {
	want := []plumbing.ReferenceName{
		plumbing.ReferenceName(ref),
		plumbing.NewBranchReferenceName(ref),
		plumbing.NewTagReferenceName(ref),
	}
	for _, r := range refs {
		for _, name := range want {
			if r.Name() == name {
				return true
			}
		}
		// A full or abbreviated commit hash is accepted as well.
		if len(ref) >= 7 && strings.HasPrefix(r.Hash().String(), strings.ToLower(ref)) {
			return true
		}
	}
	return false
}

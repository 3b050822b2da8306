package docker

import (
	"fmt"
	"sort"
	"strings"
)

// Command describes one image build invocation.
type Command struct {
	Tags      []string
	Context   string
	Args      []string          // platform args passed through verbatim
	BuildArgs map[string]string // rendered as --build-arg K=V in key order
	Secrets   map[string]string // secret id -> source file; requires buildx
}

// UsesBuildx reports whether the command needs docker buildx.
func (c Command) UsesBuildx() bool {
	return len(c.Secrets) > 0
}

// Argv constructs the docker argument list, without the leading "docker".
func (c Command) Argv() []string {
	var args []string
	if c.UsesBuildx() {
		args = []string{"buildx", "build", "--progress=plain", "--load"}
	} else {
		args = []string{"build"}
	}

	for _, tag := range c.Tags {
		args = append(args, "-t", tag)
	}

	args = append(args, c.Args...)

	for _, k := range sortedKeys(c.BuildArgs) {
		args = append(args, "--build-arg", fmt.Sprintf("%s=%s", k, c.BuildArgs[k]))
	}
	for _, id := range sortedKeys(c.Secrets) {
		args = append(args, "--secret", fmt.Sprintf("id=%s,src=%s", id, c.Secrets[id]))
	}

	context := c.Context
	if context == "" {
		context = "."
	}
	return append(args, context)
}

// String renders the full command line for dry runs and verbose logging.
func (c Command) String() string {
	return "docker " + strings.Join(c.Argv(), " ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

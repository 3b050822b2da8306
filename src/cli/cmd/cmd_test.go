package cmd

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/pflag"

	"github.com/sofmeright/ue4-docker/src/config"
	"github.com/sofmeright/ue4-docker/src/docker"
	"github.com/sofmeright/ue4-docker/src/docker/dockertest"
	"github.com/sofmeright/ue4-docker/src/probe"
)

func TestNormalizeArgs(t *testing.T) {
	in := []string{"build", "4.27.2", "-basetag", "ltsc2019", "-suffix=dev", "-m", "8GB", "-v", "--", "-repo"}
	want := []string{"build", "4.27.2", "--basetag", "ltsc2019", "--suffix=dev", "-m", "8GB", "-v", "--", "-repo"}
	if got := normalizeArgs(in); !slices.Equal(got, want) {
		t.Errorf("normalizeArgs = %q, want %q", got, want)
	}
}

func TestCommandsRegistered(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"build", "clean", "info", "setup", "version"} {
		if !slices.Contains(names, want) {
			t.Errorf("command %q not registered (have %v)", want, names)
		}
	}
	for _, flag := range []string{"target", "cuda", "opt", "exclude", "layout", "combine", "basetag", "changelist", "verify-ref", "monitor", "interval"} {
		if buildCmd.Flags().Lookup(flag) == nil {
			t.Errorf("build flag --%s missing", flag)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetOut(nil) })

	if err := rootCmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "ue4-docker ") {
		t.Errorf("output = %q", buf.String())
	}
}

func parseBuildFlags(t *testing.T, o *buildOptions, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("build", pflag.ContinueOnError)
	fs.IntVar(&o.changelist, "changelist", 0, "")
	fs.StringVar(&o.cuda, "cuda", "", "")
	fs.Lookup("cuda").NoOptDefVal = cudaDefault
	fs.StringVar(&o.basetag, "basetag", "", "")
	fs.StringArrayVar(&o.exclude, "exclude", nil, "")
	if err := fs.Parse(args); err != nil {
		t.Fatal(err)
	}
	return fs
}

func TestBuildInputLinux(t *testing.T) {
	c := &config.Config{
		Exclude: []string{"ddc"},
		Options: []string{"buildgraph_args=-set:X=1"},
		Linux:   config.LinuxConfig{BaseTag: "ubuntu20.04", CUDA: "11.4"},
		Windows: config.WindowsConfig{Isolation: "hyperv"},
	}
	var o buildOptions
	o.opts = []string{"source_mode=copy"}
	fs := parseBuildFlags(t, &o, "--changelist", "123", "--cuda", "--exclude", "debug")

	in := o.input([]string{"4.27.0"}, fs, c, false)
	if in.Release.Release != "4.27.0" {
		t.Errorf("release = %q", in.Release.Release)
	}
	if in.Release.Changelist == nil || *in.Release.Changelist != 123 {
		t.Errorf("changelist = %v", in.Release.Changelist)
	}
	if in.CUDA == nil || *in.CUDA != "11.4" {
		t.Errorf("cuda = %v, want config default 11.4", in.CUDA)
	}
	if in.BaseTag != "ubuntu20.04" {
		t.Errorf("basetag = %q", in.BaseTag)
	}
	if in.Isolation != "" {
		t.Errorf("isolation = %q, windows defaults must not apply to linux builds", in.Isolation)
	}
	if !slices.Equal(in.Exclude, []string{"ddc", "debug"}) {
		t.Errorf("exclude = %v", in.Exclude)
	}
	if !slices.Equal(in.Opts, []string{"buildgraph_args=-set:X=1", "source_mode=copy"}) {
		t.Errorf("opts = %v", in.Opts)
	}
}

func TestBuildInputWindowsFlagsWin(t *testing.T) {
	c := &config.Config{
		Linux:   config.LinuxConfig{BaseTag: "ubuntu20.04"},
		Windows: config.WindowsConfig{Isolation: "hyperv", Memory: "16GB", VisualStudio: "2019"},
	}
	o := buildOptions{isolation: "process"}
	fs := parseBuildFlags(t, &o, "--basetag", "ltsc2019")

	in := o.input(nil, fs, c, true)
	if in.Isolation != "process" || in.Memory != "16GB" || in.Toolchain != "2019" {
		t.Errorf("windows input = %+v", in)
	}
	if in.BaseTag != "ltsc2019" {
		t.Errorf("basetag = %q", in.BaseTag)
	}
	if in.CUDA != nil || in.Release.Changelist != nil {
		t.Errorf("unset flags leaked: cuda=%v changelist=%v", in.CUDA, in.Release.Changelist)
	}
}

func TestCleanFilters(t *testing.T) {
	tests := []struct {
		name string
		opts cleanOptions
		want []string
	}{
		{"default", cleanOptions{}, nil},
		{"source", cleanOptions{source: true}, []string{"adamrehn/ue4-source:*"}},
		{"source and engine tagged", cleanOptions{source: true, engine: true, tag: "4.27.2"},
			[]string{"adamrehn/ue4-source:4.27.2", "adamrehn/ue4-engine:4.27.2"}},
		{"all", cleanOptions{all: true, source: true}, []string{
			"adamrehn/ue4-build-prerequisites:*", "adamrehn/ue4-source:*", "adamrehn/ue4-engine:*",
			"adamrehn/ue4-minimal:*", "adamrehn/ue4-full:*"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filters := tt.opts.filters("adamrehn")
			if len(filters) == 0 || !filters[0].Dangling {
				t.Fatalf("first filter must select dangling images, got %+v", filters)
			}
			var refs []string
			for _, f := range filters[1:] {
				refs = append(refs, f.Reference)
			}
			if !slices.Equal(refs, tt.want) {
				t.Errorf("references = %v, want %v", refs, tt.want)
			}
		})
	}
}

func TestCleanImages(t *testing.T) {
	fake := dockertest.New("24.0.0")
	fake.Listed = []docker.Image{
		{ID: "sha256:aaa"},
		{ID: "sha256:bbb", RepoTags: []string{"adamrehn/ue4-source:4.27.2", "adamrehn/ue4-source:latest"}},
		{ID: "sha256:ccc", RepoTags: []string{"adamrehn/ue4-minimal:4.27.2"}},
	}
	filters := cleanOptions{source: true, tag: "4.27.2"}.filters("adamrehn")

	removed, err := cleanImages(context.Background(), fake, filters, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(fake.Removed) != 0 {
		t.Fatalf("dry run removed %v", fake.Removed)
	}
	var refs []string
	for _, r := range removed {
		refs = append(refs, r.ref)
	}
	want := []string{"sha256:aaa", "adamrehn/ue4-source:4.27.2"}
	if !slices.Equal(refs, want) {
		t.Fatalf("planned %v, want %v", refs, want)
	}

	if _, err := cleanImages(context.Background(), fake, filters, false); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(fake.Removed, want) {
		t.Errorf("removed %v, want %v", fake.Removed, want)
	}
}

func TestInfoReport(t *testing.T) {
	facts := probe.Facts{
		DaemonVersion: semver.MustParse("24.0.7"),
		Daemon:        docker.Info{OSType: "linux", Runtimes: []string{"runc", "nvidia"}, MemTotal: 8e9, NCPU: 4},
		MaxSizeGB:     docker.Unbounded,
	}
	kv := infoReport(facts, "Linux", hostResources{MemTotal: 16e9, CPUs: 8})

	got := map[string]string{}
	for _, p := range kv {
		got[p.Key] = p.Value
	}
	checks := map[string]string{
		"Operating system":        "Linux",
		"Docker daemon version":   "24.0.7",
		"NVIDIA Docker supported": "Yes",
		"Maximum image size":      "N/A",
		"Available disk space":    "Unknown",
	}
	for k, want := range checks {
		if got[k] != want {
			t.Errorf("%s = %q, want %q", k, got[k], want)
		}
	}
	if !strings.HasPrefix(got["Number of processors"], "8 logical, 4 ") {
		t.Errorf("processors = %q", got["Number of processors"])
	}
}

func TestPlanSetup(t *testing.T) {
	p := planSetup("windows", true, 20, 400, 9876)
	if p.RaiseSizeTo != 400 {
		t.Errorf("RaiseSizeTo = %v, want 400", p.RaiseSizeTo)
	}

	p = planSetup("windows", true, 500, 400, 9876)
	if p.RaiseSizeTo != 0 {
		t.Errorf("RaiseSizeTo = %v, want no change", p.RaiseSizeTo)
	}

	p = planSetup("linux", false, docker.Unbounded, 400, 9876)
	if p.RaiseSizeTo != 0 || len(p.Messages) != 1 || !strings.Contains(p.Messages[0], "9876") {
		t.Errorf("linux plan = %+v", p)
	}
}

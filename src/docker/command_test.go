package docker

import (
	"slices"
	"testing"
)

func TestCommandArgv(t *testing.T) {
	cmd := Command{
		Tags:      []string{"adamrehn/ue4-source:4.27.0"},
		Context:   "/tmp/ctx/ue4-source",
		Args:      []string{"--isolation=process"},
		BuildArgs: map[string]string{"PREREQS_TAG": "ltsc2019-vs2017", "GIT_BRANCH": "4.27.0-release"},
	}

	want := []string{
		"build",
		"-t", "adamrehn/ue4-source:4.27.0",
		"--isolation=process",
		"--build-arg", "GIT_BRANCH=4.27.0-release",
		"--build-arg", "PREREQS_TAG=ltsc2019-vs2017",
		"/tmp/ctx/ue4-source",
	}
	if got := cmd.Argv(); !slices.Equal(got, want) {
		t.Errorf("Argv() =\n  %v\nwant\n  %v", got, want)
	}
	if cmd.UsesBuildx() {
		t.Error("plain build should not use buildx")
	}
}

func TestCommandArgvSecrets(t *testing.T) {
	cmd := Command{
		Tags:    []string{"a:b"},
		Secrets: map[string]string{"username": "/s/username", "password": "/s/password"},
	}

	got := cmd.Argv()
	want := []string{
		"buildx", "build", "--progress=plain", "--load",
		"-t", "a:b",
		"--secret", "id=password,src=/s/password",
		"--secret", "id=username,src=/s/username",
		".",
	}
	if !slices.Equal(got, want) {
		t.Errorf("Argv() =\n  %v\nwant\n  %v", got, want)
	}
	if cmd.String() != "docker buildx build --progress=plain --load -t a:b --secret id=password,src=/s/password --secret id=username,src=/s/username ." {
		t.Errorf("String() = %q", cmd.String())
	}
}

func TestParseVersion(t *testing.T) {
	for _, raw := range []string{"20.10.7", "19.03.6-ce", " 18.09.0\n", "24.0"} {
		if _, err := ParseVersion(raw); err != nil {
			t.Errorf("ParseVersion(%q): %v", raw, err)
		}
	}
	if _, err := ParseVersion("dev"); err == nil {
		t.Error("expected error for non-version")
	}
}

func TestInfoHasRuntime(t *testing.T) {
	info := Info{Runtimes: []string{"nvidia", "runc"}}
	if !info.HasRuntime("nvidia") || info.HasRuntime("kata") {
		t.Error("HasRuntime mismatch")
	}
}

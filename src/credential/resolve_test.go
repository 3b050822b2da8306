package credential

import (
	"errors"
	"os"
	"testing"
)

type fakePrompter struct {
	answers map[string]string
	asked   []string
	err     error
}

func (f *fakePrompter) Prompt(label string, _ bool) (string, error) {
	f.asked = append(f.asked, label)
	if f.err != nil {
		return "", f.err
	}
	return f.answers[label], nil
}

func TestResolvePrecedence(t *testing.T) {
	environ := []string{"UE4DOCKER_USERNAME=env-user", "UE4DOCKER_PASSWORD=env-pass", "PATH=/bin"}

	c, err := Resolve(Credentials{Username: "flag-user"}, environ, nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.Username != "flag-user" || c.Password != "env-pass" {
		t.Errorf("got %+v", c)
	}
}

func TestResolvePromptsForMissing(t *testing.T) {
	p := &fakePrompter{answers: map[string]string{"Password: ": "typed"}}

	c, err := Resolve(Credentials{}, []string{"UE4DOCKER_USERNAME=env-user"}, p)
	if err != nil {
		t.Fatal(err)
	}
	if c.Username != "env-user" || c.Password != "typed" {
		t.Errorf("got %+v", c)
	}
	if len(p.asked) != 1 || p.asked[0] != "Password: " {
		t.Errorf("asked %v", p.asked)
	}
}

func TestResolvePromptError(t *testing.T) {
	p := &fakePrompter{err: errors.New("eof")}
	if _, err := Resolve(Credentials{}, nil, p); err == nil {
		t.Fatal("expected error")
	}
}

func TestResolveNoPrompter(t *testing.T) {
	c, err := Resolve(Credentials{}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if c.Username != "" || c.Password != "" {
		t.Errorf("got %+v", c)
	}
}

func TestWriteSecrets(t *testing.T) {
	s, err := WriteSecrets(Credentials{Username: "u", Password: "p"})
	if err != nil {
		t.Fatal(err)
	}
	flags := s.Flags()
	data, err := os.ReadFile(flags[SecretPassword])
	if err != nil || string(data) != "p" {
		t.Errorf("password file = %q, %v", data, err)
	}
	info, err := os.Stat(flags[SecretUsername])
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o077 != 0 && os.PathSeparator == '/' {
		t.Errorf("secret file mode %v is readable by others", info.Mode().Perm())
	}

	if err := s.Remove(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(flags[SecretUsername]); !os.IsNotExist(err) {
		t.Errorf("secret file survived Remove: %v", err)
	}
}

package credential

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"golang.org/x/term"
)

// Credentials are the git credentials used to clone engine source.
type Credentials struct {
	Username string
	Password string
}

// Env is the environment override for credentials.
type Env struct {
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
}

// Prompter asks the operator for credentials.
type Prompter interface {
	Prompt(label string, secret bool) (string, error)
}

// Resolve picks credentials from flags first, then UE4DOCKER_USERNAME and
// UE4DOCKER_PASSWORD in environ, then the prompter for whatever is still
// missing. A nil prompter leaves missing values empty.
func Resolve(flags Credentials, environ []string, p Prompter) (Credentials, error) {
	var fromEnv Env
	if err := env.ParseWithOptions(&fromEnv, env.Options{
		Prefix:      "UE4DOCKER_",
		Environment: env.ToMap(environ),
	}); err != nil {
		return Credentials{}, fmt.Errorf("parsing credential environment: %w", err)
	}

	c := flags
	if c.Username == "" {
		c.Username = fromEnv.Username
	}
	if c.Password == "" {
		c.Password = fromEnv.Password
	}
	if p == nil {
		return c, nil
	}

	var err error
	if c.Username == "" {
		if c.Username, err = p.Prompt("Username: ", false); err != nil {
			return Credentials{}, err
		}
	}
	if c.Password == "" {
		if c.Password, err = p.Prompt("Password: ", true); err != nil {
			return Credentials{}, err
		}
	}
	return c, nil
}

// TerminalPrompter prompts on a terminal, hiding secret input.
type TerminalPrompter struct {
	In  *os.File
	Out io.Writer

	reader *bufio.Reader
}

// NewTerminalPrompter returns a prompter on stdin/stderr, or nil when stdin
// is not a terminal.
func NewTerminalPrompter() Prompter {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	return &TerminalPrompter{In: os.Stdin, Out: os.Stderr}
}

// Prompt implements Prompter.
func (t *TerminalPrompter) Prompt(label string, secret bool) (string, error) {
	fmt.Fprint(t.Out, label)
	if secret {
		b, err := term.ReadPassword(int(t.In.Fd()))
		fmt.Fprintln(t.Out)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}
	if t.reader == nil {
		t.reader = bufio.NewReader(t.In)
	}
	line, err := t.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Package credential delivers git credentials to image builds without
// persisting them in image layers.
//
// The endpoint mode serves the username and password over a short-lived
// token-gated HTTP listener on the host; the secrets mode writes them to
// files passed to docker buildx as build secrets.
package credential

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sofmeright/ue4-docker/src/errs"
)

const (
	// DefaultAddr is the listen address of the endpoint.
	DefaultAddr = "0.0.0.0:9876"

	// InvalidToken is the response body for requests with a wrong token.
	InvalidToken = "Invalid security token"

	// Build argument names understood by the Dockerfile templates.
	HostAddressArg = "HOST_ADDRESS_ARG"
	HostPortArg    = "HOST_PORT_ARG"
	HostTokenArg   = "HOST_TOKEN_ARG"

	startTimeout = 2 * time.Second
)

// Endpoint serves a username or password to a build container, depending
// on the git prompt it is asked to answer.
type Endpoint struct {
	username string
	password string
	token    string

	addr     string
	hostAddr string
	logger   *slog.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	served   chan error
	stopOnce sync.Once
	stopErr  error
}

// Option configures an Endpoint.
type Option func(*Endpoint)

// WithAddr overrides the listen address.
func WithAddr(addr string) Option {
	return func(e *Endpoint) { e.addr = addr }
}

// WithHostAddress overrides the address advertised to containers.
func WithHostAddress(addr string) Option {
	return func(e *Endpoint) { e.hostAddr = addr }
}

// WithLogger sets the logger for server errors.
func WithLogger(l *slog.Logger) Option {
	return func(e *Endpoint) { e.logger = l }
}

// NewEndpoint creates an endpoint for the given credentials with a fresh
// random token. Blank credentials are replaced by a single space so git
// never waits on an empty answer.
func NewEndpoint(username, password string, opts ...Option) (*Endpoint, error) {
	token, err := newToken()
	if err != nil {
		return nil, &errs.ResourceError{Resource: "credential endpoint token", Err: err}
	}
	e := &Endpoint{
		username: placeholder(username),
		password: placeholder(password),
		token:    token,
		addr:     DefaultAddr,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.hostAddr == "" {
		e.hostAddr = HostAddress()
	}
	return e, nil
}

func placeholder(s string) string {
	if s == "" {
		return " "
	}
	return s
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Token returns the per-run security token.
func (e *Endpoint) Token() string {
	return e.token
}

// Args returns the build arguments that point a container at the endpoint.
// The port is the bound listener port once started, else the configured one.
func (e *Endpoint) Args() map[string]string {
	return map[string]string{
		HostAddressArg: url.QueryEscape(e.hostAddr),
		HostPortArg:    e.Port(),
		HostTokenArg:   url.QueryEscape(e.token),
	}
}

// Port returns the port containers must connect to.
func (e *Endpoint) Port() string {
	addr := e.Addr()
	if addr == "" {
		addr = e.addr
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return ""
	}
	return port
}

// Handler returns the HTTP handler serving credentials.
func (e *Endpoint) Handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/", e.serveCredential)
	return r
}

func (e *Endpoint) serveCredential(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	token := r.URL.Query().Get("token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(e.token)) != 1 {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, InvalidToken)
		return
	}

	prompt, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil {
		http.Error(w, "reading prompt", http.StatusBadRequest)
		return
	}
	if strings.Contains(string(prompt), "Password for") {
		io.WriteString(w, e.password)
		return
	}
	io.WriteString(w, e.username)
}

// Start binds the listener and waits until the endpoint answers. Failing to
// become ready within the start timeout is a ResourceError.
func (e *Endpoint) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.server != nil {
		return errors.New("credential endpoint already started")
	}

	ln, err := net.Listen("tcp", e.addr)
	if err != nil {
		return &errs.ResourceError{Resource: "credential endpoint", Err: err}
	}

	e.listener = ln
	e.server = &http.Server{
		Handler:           e.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(e.logger.Handler(), slog.LevelError),
	}
	e.served = make(chan error, 1)
	go func() {
		e.served <- e.server.Serve(ln)
	}()

	if err := e.waitReady(ctx); err != nil {
		e.server.Close()
		e.server = nil
		return &errs.ResourceError{Resource: "credential endpoint", Err: err}
	}
	e.logger.Debug("credential endpoint listening", "addr", ln.Addr().String())
	return nil
}

func (e *Endpoint) waitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()

	_, port, err := net.SplitHostPort(e.listener.Addr().String())
	if err != nil {
		return err
	}
	probe := fmt.Sprintf("http://127.0.0.1:%s/?token=%s", port, url.QueryEscape(e.token))
	client := &http.Client{Timeout: 500 * time.Millisecond}

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, probe, strings.NewReader("Username for readiness"))
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("endpoint not ready after %s: %w", startTimeout, ctx.Err())
		case err := <-e.served:
			return fmt.Errorf("endpoint exited during startup: %w", err)
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// Addr returns the bound listener address, or "" before Start.
func (e *Endpoint) Addr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listener == nil {
		return ""
	}
	return e.listener.Addr().String()
}

// Stop shuts the endpoint down. It is safe to call more than once and
// before Start.
func (e *Endpoint) Stop() error {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.server == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.server.Shutdown(ctx); err != nil {
			e.stopErr = fmt.Errorf("stopping credential endpoint: %w", err)
			return
		}
		if err := <-e.served; err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.stopErr = fmt.Errorf("credential endpoint: %w", err)
		}
	})
	return e.stopErr
}

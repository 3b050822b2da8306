package credential

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/sofmeright/ue4-docker/src/errs"
)

func post(t *testing.T, base, token, body string) (int, string) {
	t.Helper()

	resp, err := http.Post(base+"/?token="+url.QueryEscape(token), "text/plain", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(data)
}

func TestEndpointHandler(t *testing.T) {
	e, err := NewEndpoint("builder", "hunter2", WithHostAddress("10.0.0.5"))
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	tests := []struct {
		name       string
		token      string
		prompt     string
		wantStatus int
		wantBody   string
	}{
		{"username", e.Token(), "Username for 'https://github.com': ", http.StatusOK, "builder"},
		{"password", e.Token(), "Password for 'https://builder@github.com': ", http.StatusOK, "hunter2"},
		{"empty prompt", e.Token(), "", http.StatusOK, "builder"},
		{"bad token", "nope", "Password for x", http.StatusForbidden, InvalidToken},
		{"no token", "", "Password for x", http.StatusForbidden, InvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := post(t, srv.URL, tt.token, tt.prompt)
			if status != tt.wantStatus || body != tt.wantBody {
				t.Errorf("got %d %q, want %d %q", status, body, tt.wantStatus, tt.wantBody)
			}
		})
	}

	resp, err := http.Get(srv.URL + "/?token=" + e.Token())
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d", resp.StatusCode)
	}
}

func TestEndpointBlankCredentials(t *testing.T) {
	e, err := NewEndpoint("", "", WithHostAddress("127.0.0.1"))
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	if _, body := post(t, srv.URL, e.Token(), "Username for x"); body != " " {
		t.Errorf("username = %q", body)
	}
	if _, body := post(t, srv.URL, e.Token(), "Password for x"); body != " " {
		t.Errorf("password = %q", body)
	}
}

func TestTokenIsRandomHex(t *testing.T) {
	a, _ := NewEndpoint("u", "p", WithHostAddress("h"))
	b, _ := NewEndpoint("u", "p", WithHostAddress("h"))
	if len(a.Token()) != 32 || strings.Trim(a.Token(), "0123456789abcdef") != "" {
		t.Errorf("token %q is not 16 hex-encoded bytes", a.Token())
	}
	if a.Token() == b.Token() {
		t.Error("tokens repeat")
	}
}

func TestArgs(t *testing.T) {
	e, _ := NewEndpoint("u", "p", WithHostAddress("fe80::1%eth0"))
	args := e.Args()
	if args[HostAddressArg] != "fe80%3A%3A1%25eth0" {
		t.Errorf("%s = %q", HostAddressArg, args[HostAddressArg])
	}
	if args[HostTokenArg] != e.Token() {
		t.Errorf("%s = %q", HostTokenArg, args[HostTokenArg])
	}
	if args[HostPortArg] != "9876" {
		t.Errorf("%s = %q, want default port", HostPortArg, args[HostPortArg])
	}
}

func TestArgsCarryConfiguredPort(t *testing.T) {
	e, _ := NewEndpoint("u", "p", WithAddr("0.0.0.0:9900"), WithHostAddress("10.0.0.5"))
	if got := e.Args()[HostPortArg]; got != "9900" {
		t.Errorf("%s = %q, want 9900", HostPortArg, got)
	}
}

func TestStartStop(t *testing.T) {
	e, err := NewEndpoint("builder", "hunter2", WithAddr("127.0.0.1:0"), WithHostAddress("127.0.0.1"))
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, body := post(t, "http://"+e.Addr(), e.Token(), "Password for x")
	if body != "hunter2" {
		t.Errorf("password = %q", body)
	}
	_, bound, _ := net.SplitHostPort(e.Addr())
	if got := e.Args()[HostPortArg]; got != bound || got == "0" {
		t.Errorf("%s = %q, want bound port %q", HostPortArg, got, bound)
	}

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := e.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if _, err := http.Post("http://"+e.Addr()+"/", "text/plain", nil); err == nil {
		t.Error("endpoint still serving after Stop")
	}
}

func TestStopBeforeStart(t *testing.T) {
	e, _ := NewEndpoint("u", "p", WithHostAddress("h"))
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestStartPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	e, _ := NewEndpoint("u", "p", WithAddr(ln.Addr().String()), WithHostAddress("h"))
	err = e.Start(context.Background())
	if !errs.IsResource(err) {
		t.Fatalf("expected ResourceError, got %v", err)
	}
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop after failed Start: %v", err)
	}
}

func TestHostAddress(t *testing.T) {
	if ip := net.ParseIP(HostAddress()); ip == nil {
		t.Errorf("HostAddress() = %q is not an IP", HostAddress())
	}
}

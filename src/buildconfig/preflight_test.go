package buildconfig

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sofmeright/ue4-docker/src/errs"
	"github.com/sofmeright/ue4-docker/src/release"
)

type fakeHost struct {
	supported   bool
	blacklisted bool
	eol         bool
	err         error
}

func (h fakeHost) IsSupportedHost() bool { return h.supported }
func (h fakeHost) IsEOLHost() bool       { return h.eol }
func (h fakeHost) IsBlacklistedHost(context.Context) (bool, error) {
	return h.blacklisted, h.err
}

func TestPreflight(t *testing.T) {
	ctx := context.Background()
	facts := windowsFacts("ltsc2019", "20.10.7")
	win := resolve(t, Input{Release: release.Request{Release: "4.27.0"}}, facts)
	winIgnore := resolve(t, Input{Release: release.Request{Release: "4.27.0"}, IgnoreBlacklist: true}, facts)
	winDry := resolve(t, Input{Release: release.Request{Release: "4.27.0"}, DryRun: true}, facts)
	lin := resolve(t, Input{Release: release.Request{Release: "4.27.0"}}, linuxFacts())

	small := facts
	small.MaxSizeGB = 20

	tests := []struct {
		name     string
		cfg      *Configuration
		host     fakeHost
		sizeGB   float64
		wantErr  bool
		wantWarn string
	}{
		{name: "unsupported host", cfg: lin, host: fakeHost{}, wantErr: true},
		{name: "linux skips windows checks", cfg: lin, host: fakeHost{supported: true, blacklisted: true, eol: true}},
		{name: "blacklisted", cfg: win, host: fakeHost{supported: true, blacklisted: true}, wantErr: true},
		{name: "blacklist ignored", cfg: winIgnore, host: fakeHost{supported: true, blacklisted: true}, wantWarn: "ignoring known bugs"},
		{name: "end of life", cfg: win, host: fakeHost{supported: true, eol: true}, wantWarn: "End Of Life"},
		{name: "image size too small", cfg: win, host: fakeHost{supported: true}, sizeGB: 20, wantErr: true},
		{name: "dry run ignores image size", cfg: winDry, host: fakeHost{supported: true}, sizeGB: 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := facts
			if tt.sizeGB != 0 {
				f = small
			}
			warnings, err := Preflight(ctx, tt.cfg, tt.host, f, 400)
			if tt.wantErr {
				if !errs.IsEnvironment(err) {
					t.Fatalf("err = %v, want environment error", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			joined := strings.Join(warnings, "\n")
			if tt.wantWarn == "" && len(warnings) > 0 {
				t.Errorf("unexpected warnings: %v", warnings)
			}
			if tt.wantWarn != "" && !strings.Contains(joined, tt.wantWarn) {
				t.Errorf("warnings %v missing %q", warnings, tt.wantWarn)
			}
		})
	}
}

func TestPreflightProbeError(t *testing.T) {
	win := resolve(t, Input{Release: release.Request{Release: "4.27.0"}}, windowsFacts("ltsc2019", "20.10.7"))
	boom := errors.New("daemon unreachable")
	_, err := Preflight(context.Background(), win, fakeHost{supported: true, err: boom}, windowsFacts("ltsc2019", "20.10.7"), 400)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

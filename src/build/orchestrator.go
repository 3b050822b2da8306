// Package build runs the image stages of a resolved build configuration in
// dependency order against a container engine.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/sofmeright/ue4-docker/src/buildconfig"
	"github.com/sofmeright/ue4-docker/src/credential"
	"github.com/sofmeright/ue4-docker/src/docker"
	"github.com/sofmeright/ue4-docker/src/errs"
	"github.com/sofmeright/ue4-docker/src/targets"
)

// Endpoint is the credential side-channel the source stage clones through.
type Endpoint interface {
	Start(ctx context.Context) error
	Stop() error
	Args() map[string]string
}

// Orchestrator builds the stages of Config. Stages run strictly in order
// and the first failure aborts the rest.
type Orchestrator struct {
	Engine docker.Engine
	Config *buildconfig.Configuration

	// Contexts holds <image>/<platform>/ build contexts. Defaults to the
	// embedded contexts.
	Contexts fs.FS
	// Namespace qualifies image names. Defaults to DefaultNamespace.
	Namespace string
	// WorkDir receives rendered contexts. A temporary directory is used and
	// removed afterwards when empty.
	WorkDir string

	// Endpoint is started around the run when the source stage clones with
	// credential_mode=endpoint.
	Endpoint Endpoint
	// Credentials are written as build secrets when
	// credential_mode=secrets.
	Credentials credential.Credentials
	// Scanner, when set, checks every rendered context before use.
	Scanner *Scanner

	Logger *slog.Logger
	Stdout io.Writer
}

func (o *Orchestrator) log() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o *Orchestrator) stdout() io.Writer {
	if o.Stdout != nil {
		return o.Stdout
	}
	return os.Stdout
}

func (o *Orchestrator) namespace() string {
	if o.Namespace != "" {
		return o.Namespace
	}
	return DefaultNamespace
}

func (o *Orchestrator) usesEndpoint() bool {
	return o.Config.NeedsCredentials() && o.Config.CredentialMode == buildconfig.CredentialEndpoint
}

func (o *Orchestrator) usesSecrets() bool {
	return o.Config.NeedsCredentials() && o.Config.CredentialMode == buildconfig.CredentialSecrets
}

// Run executes every stage of the target set. The returned Result lists
// each attempted stage, including the failed one, even when err is set.
func (o *Orchestrator) Run(ctx context.Context) (res *Result, err error) {
	start := time.Now()
	res = &Result{}
	defer func() { res.Duration = time.Since(start) }()

	if o.Config == nil || o.Engine == nil {
		return res, errors.New("build: orchestrator needs an engine and a configuration")
	}

	workDir := o.WorkDir
	if workDir == "" {
		tmp, tmpErr := os.MkdirTemp("", "ue4-docker-contexts-")
		if tmpErr != nil {
			return res, &errs.ResourceError{Resource: "context directory", Err: tmpErr}
		}
		defer os.RemoveAll(tmp)
		workDir = tmp
	}

	if o.usesEndpoint() {
		if o.Endpoint == nil {
			return res, &errs.ResourceError{Resource: "credential endpoint", Err: errors.New("not configured")}
		}
		if startErr := o.Endpoint.Start(ctx); startErr != nil {
			return res, errs.Environment("credential endpoint failed to start", startErr)
		}
		defer func() {
			if stopErr := o.Endpoint.Stop(); stopErr != nil {
				err = multierror.Append(err, fmt.Errorf("stopping credential endpoint: %w", stopErr)).ErrorOrNil()
			}
		}()
	}

	for _, st := range o.Config.Targets.Ordered() {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		sr, stageErr := o.runStage(ctx, st, res, workDir)
		res.Stages = append(res.Stages, sr)
		if stageErr != nil {
			return res, stageErr
		}
	}
	return res, nil
}

func (o *Orchestrator) runStage(ctx context.Context, st targets.Stage, res *Result, workDir string) (StageResult, error) {
	cfg := o.Config
	start := time.Now()
	tag := cfg.StageTag(st)
	sr := StageResult{Stage: st, Tags: []string{tag}}

	fail := func(err error) (StageResult, error) {
		sr.Status = StatusFailed
		sr.Duration = time.Since(start)
		sr.Err = err
		var se *errs.StageFailure
		if !errors.As(err, &se) && !errs.IsConfig(err) && !errs.IsEnvironment(err) && !errs.IsResource(err) {
			err = &errs.StageFailure{Stage: string(st), Image: sr.Image, Err: err}
		}
		return sr, err
	}

	ref, err := ImageRef(o.namespace(), st.ImageName(), tag)
	if err != nil {
		sr.Image = st.ImageName() + ":" + tag
		return fail(err)
	}
	sr.Image = ref

	if !cfg.Rebuild {
		exists, err := o.Engine.Exists(ctx, ref)
		if err != nil {
			return fail(errs.Environment("checking for image "+ref, err))
		}
		if exists {
			o.log().Info(fmt.Sprintf("Image %q exists and rebuild not requested, skipping build.", ref))
			sr.Skipped = true
			sr.Status = StatusSkipped
			sr.Duration = time.Since(start)
			return sr, nil
		}
	}

	extra := map[string]string{}
	if st == targets.Source && o.usesEndpoint() {
		maps.Copy(extra, o.Endpoint.Args())
	}
	args, err := stageArgs(cfg, o.namespace(), st, res, extra)
	if err != nil {
		return fail(err)
	}

	contexts := o.Contexts
	if contexts == nil {
		contexts = DefaultContexts()
	}
	var override string
	if st == targets.Prerequisites && cfg.PrereqsDockerfile != "" {
		data, err := os.ReadFile(cfg.PrereqsDockerfile)
		if err != nil {
			return fail(errs.Configf("reading prerequisites Dockerfile: %v", err))
		}
		override = string(data)
	}
	contextDir := filepath.Join(workDir, st.ImageName())
	if err := renderContext(contexts, st.ImageName(), cfg.Platform, contextDir, cfg.TemplateContext(), override); err != nil {
		return fail(err)
	}

	cmd := docker.Command{
		Tags:      []string{ref},
		Context:   contextDir,
		Args:      cfg.PlatformArgs(),
		BuildArgs: args,
	}

	o.log().Info(fmt.Sprintf("Building image %q...", ref))

	switch cfg.Mode {
	case buildconfig.ModeDryRun:
		if st == targets.Prerequisites {
			pull, err := o.needsPull(ctx)
			if err != nil {
				return fail(err)
			}
			if pull {
				fmt.Fprintf(o.stdout(), "docker pull %s\n", cfg.BaseImage)
			}
		}
		fmt.Fprintln(o.stdout(), cmd.String())
		o.log().Info(fmt.Sprintf("Completed dry run for image %q.", ref))
		sr.Status = StatusDryRun

	case buildconfig.ModeLayout:
		if err := o.scan(contextDir); err != nil {
			return fail(err)
		}
		var dest string
		if cfg.Combine {
			dest, err = mergeLayout(contextDir, cfg.LayoutDir)
		} else {
			dest, err = copyLayout(contextDir, cfg.LayoutDir, st.ImageName())
		}
		if err != nil {
			return fail(err)
		}
		o.log().Info(fmt.Sprintf("Wrote Dockerfile for image %q.", ref), "dir", dest)
		sr.Status = StatusLayout

	default:
		if err := o.scan(contextDir); err != nil {
			return fail(err)
		}
		if st == targets.Prerequisites {
			if err := o.pullBaseImage(ctx); err != nil {
				return fail(err)
			}
		}
		if st == targets.Source && o.usesSecrets() {
			secrets, err := credential.WriteSecrets(o.Credentials)
			if err != nil {
				return fail(&errs.ResourceError{Resource: "build secrets", Err: err})
			}
			defer secrets.Remove()
			cmd.Secrets = secrets.Flags()
		}
		if cfg.Verbose {
			o.log().Debug("exec", "cmd", cmd.String())
		}
		if err := o.Engine.Build(ctx, cmd); err != nil {
			return fail(err)
		}
		sr.Built = true
		sr.Status = StatusBuilt
		o.log().Info(fmt.Sprintf("Built image %q in %s", ref, formatDuration(time.Since(start))))
	}

	sr.Duration = time.Since(start)
	return sr, nil
}

// pullBaseImage fetches the base image when it is absent locally or a
// rebuild was requested.
func (o *Orchestrator) pullBaseImage(ctx context.Context) error {
	pull, err := o.needsPull(ctx)
	if err != nil || !pull {
		return err
	}
	base := o.Config.BaseImage
	o.log().Info(fmt.Sprintf("Pulling image %q...", base))
	if err := o.Engine.Pull(ctx, base); err != nil {
		return &errs.StageFailure{Stage: string(targets.Prerequisites), Image: base, Err: err}
	}
	return nil
}

func (o *Orchestrator) needsPull(ctx context.Context) (bool, error) {
	base := o.Config.BaseImage
	if base == "" {
		return false, nil
	}
	exists, err := o.Engine.Exists(ctx, base)
	if err != nil {
		return false, errs.Environment("checking for image "+base, err)
	}
	if exists && !o.Config.Rebuild {
		o.log().Info(fmt.Sprintf("Image %q exists, skipping pull.", base))
		return false, nil
	}
	return true, nil
}

func (o *Orchestrator) scan(dir string) error {
	if o.Scanner == nil {
		return nil
	}
	leaks, err := o.Scanner.ScanDir(dir)
	if err != nil {
		return fmt.Errorf("scanning build context: %w", err)
	}
	if len(leaks) == 0 {
		return nil
	}
	found := make([]string, len(leaks))
	for i, l := range leaks {
		found[i] = l.String()
	}
	return fmt.Errorf("rendered build context contains secrets: %s", strings.Join(found, ", "))
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Second).String()
}

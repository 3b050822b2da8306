package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sofmeright/ue4-docker/src/build"
	"github.com/sofmeright/ue4-docker/src/buildconfig"
	"github.com/sofmeright/ue4-docker/src/compat"
	"github.com/sofmeright/ue4-docker/src/config"
	"github.com/sofmeright/ue4-docker/src/credential"
	"github.com/sofmeright/ue4-docker/src/docker"
	"github.com/sofmeright/ue4-docker/src/gitremote"
	"github.com/sofmeright/ue4-docker/src/monitor"
	"github.com/sofmeright/ue4-docker/src/output"
	"github.com/sofmeright/ue4-docker/src/probe"
	"github.com/sofmeright/ue4-docker/src/release"
	"github.com/sofmeright/ue4-docker/src/targets"
)

// cudaDefault is the value of a bare --cuda flag.
const cudaDefault = "default"

type buildOptions struct {
	ueVersion string
	targets   []string
	noEngine  bool
	noMinimal bool
	noFull    bool

	linux           bool
	rebuild         bool
	dryRun          bool
	noCache         bool
	randomMemory    bool
	combine         bool
	ignoreBlacklist bool
	monitor         bool
	verifyRef       bool

	exclude []string
	opts    []string

	cuda              string
	visualStudio      string
	username          string
	password          string
	repo              string
	branch            string
	isolation         string
	basetag           string
	suffix            string
	memory            string
	ue4cli            string
	conanUE4CLI       string
	layout            string
	prereqsDockerfile string
	contextDir        string
	junitDir          string
	changelist        int
	interval          time.Duration
}

var bOpts buildOptions

var buildCmd = &cobra.Command{
	Use:   "build [release]",
	Short: "Build Unreal Engine container images",
	Long: `Build the ue4-build-prerequisites, ue4-source, ue4-engine, ue4-minimal and
ue4-full images for an Unreal Engine release, or for a custom repository and
branch when the release is "custom" or "custom:<name>".

Images that already exist are skipped unless --rebuild is set.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	f := buildCmd.Flags()
	f.StringVar(&bOpts.ueVersion, "ue-version", "", "Unreal Engine release to build (alternative to the positional argument)")
	f.StringSliceVar(&bOpts.targets, "target", nil, "images to build, repeatable or comma-separated (default: all)")
	f.BoolVar(&bOpts.noEngine, "no-engine", false, "don't build the ue4-engine image (deprecated, use --target)")
	f.BoolVar(&bOpts.noMinimal, "no-minimal", false, "don't build the ue4-minimal image (deprecated, use --target)")
	f.BoolVar(&bOpts.noFull, "no-full", false, "don't build the ue4-full image (deprecated, use --target)")

	f.BoolVar(&bOpts.linux, "linux", false, "build Linux container images under Windows")
	f.BoolVar(&bOpts.rebuild, "rebuild", false, "rebuild images even if they already exist")
	f.BoolVar(&bOpts.dryRun, "dry-run", false, "print docker commands instead of running them")
	f.BoolVar(&bOpts.noCache, "no-cache", false, "disable the docker build cache")
	f.BoolVar(&bOpts.randomMemory, "random-memory", false, "use a random memory limit for Windows containers")
	f.BoolVar(&bOpts.combine, "combine", false, "combine generated Dockerfiles into a single multi-stage Dockerfile")
	f.BoolVar(&bOpts.ignoreBlacklist, "ignore-blacklist", false, "run builds even on blacklisted versions of Windows (advanced use only)")
	f.BoolVar(&bOpts.monitor, "monitor", false, "log host resource usage during the build")
	f.BoolVar(&bOpts.verifyRef, "verify-ref", false, "check that the branch or tag exists in the repository before building")

	f.StringArrayVar(&bOpts.exclude, "exclude", nil, "exclude an engine component from the ue4-minimal and ue4-full images (repeatable)")
	f.StringArrayVar(&bOpts.opts, "opt", nil, "set an advanced option as key=value (repeatable)")

	f.StringVar(&bOpts.cuda, "cuda", "", "add CUDA support as well as OpenGL support when building Linux containers")
	f.Lookup("cuda").NoOptDefVal = cudaDefault
	f.StringVar(&bOpts.visualStudio, "visual-studio", "", "Visual Studio version to use for Windows containers")
	f.StringVar(&bOpts.username, "username", "", "username for the git repository")
	f.StringVar(&bOpts.password, "password", "", "password or access token for the git repository")
	f.StringVar(&bOpts.repo, "repo", "", "git repository to clone for custom builds")
	f.StringVar(&bOpts.branch, "branch", "", "git branch or tag to clone for custom builds")
	f.StringVar(&bOpts.isolation, "isolation", "", "isolation mode for Windows containers: process or hyperv")
	f.StringVar(&bOpts.basetag, "basetag", "", "base image tag (Windows Server Core or Ubuntu)")
	f.StringVar(&bOpts.suffix, "suffix", "", "suffix appended to image tags")
	f.StringVarP(&bOpts.memory, "memory", "m", "", "memory limit for Windows containers")
	f.StringVar(&bOpts.ue4cli, "ue4cli", "", "override the version of ue4cli installed in the ue4-full image")
	f.StringVar(&bOpts.conanUE4CLI, "conan-ue4cli", "", "override the version of conan-ue4cli installed in the ue4-full image")
	f.StringVar(&bOpts.layout, "layout", "", "write the generated Dockerfiles to this directory instead of building")
	f.StringVar(&bOpts.prereqsDockerfile, "prerequisites-dockerfile", "", "use this Dockerfile for the ue4-build-prerequisites image")
	f.StringVar(&bOpts.contextDir, "context", "", "directory of build contexts to use instead of the built-in ones")
	f.StringVar(&bOpts.junitDir, "junit-report", "", "write a JUnit report of the stage results to this directory")
	f.IntVar(&bOpts.changelist, "changelist", 0, "override the changelist number baked into the engine")
	f.DurationVar(&bOpts.interval, "interval", 0, "sampling interval for --monitor (default from config, 20s)")

	rootCmd.AddCommand(buildCmd)
}

// input maps parsed flags and config defaults onto the resolver input.
// Flags always win over config values.
func (o *buildOptions) input(args []string, flags *pflag.FlagSet, c *config.Config, windowsTarget bool) buildconfig.Input {
	in := buildconfig.Input{
		Release: release.Request{
			UEVersion:  o.ueVersion,
			Repository: o.repo,
			Branch:     o.branch,
		},
		Targets: o.targets,
		Legacy: targets.Legacy{
			NoEngine:  o.noEngine,
			NoMinimal: o.noMinimal,
			NoFull:    o.noFull,
		},
		Linux:             o.linux,
		Rebuild:           o.rebuild,
		DryRun:            o.dryRun,
		NoCache:           o.noCache,
		RandomMemory:      o.randomMemory,
		Combine:           o.combine,
		IgnoreBlacklist:   o.ignoreBlacklist,
		Verbose:           verbose,
		Isolation:         o.isolation,
		BaseTag:           o.basetag,
		Suffix:            o.suffix,
		Memory:            o.memory,
		Layout:            o.layout,
		Toolchain:         o.visualStudio,
		Exclude:           append(slices.Clone(c.Exclude), o.exclude...),
		Opts:              append(slices.Clone(c.Options), o.opts...),
		UE4CLI:            o.ue4cli,
		ConanUE4CLI:       o.conanUE4CLI,
		PrereqsDockerfile: o.prereqsDockerfile,
	}
	if len(args) > 0 {
		in.Release.Release = args[0]
	}
	if flags.Changed("changelist") {
		cl := o.changelist
		in.Release.Changelist = &cl
	}
	if flags.Changed("cuda") {
		v := o.cuda
		if v == cudaDefault {
			v = c.Linux.CUDA
		}
		in.CUDA = &v
	}

	if windowsTarget {
		in.Isolation = firstNonEmpty(in.Isolation, c.Windows.Isolation)
		in.Memory = firstNonEmpty(in.Memory, c.Windows.Memory)
		in.Toolchain = firstNonEmpty(in.Toolchain, c.Windows.VisualStudio)
	} else {
		in.BaseTag = firstNonEmpty(in.BaseTag, c.Linux.BaseTag)
	}
	return in
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	start := time.Now()

	tables, err := compat.Load()
	if err != nil {
		return err
	}
	client, err := docker.NewClient(verbose)
	if err != nil {
		return err
	}
	defer client.Close()

	host := probe.New(client, tables)
	facts, err := host.Gather(ctx)
	if err != nil {
		return err
	}

	in := bOpts.input(args, cmd.Flags(), cfg, facts.IsWindows() && !bOpts.linux)
	bc, err := buildconfig.FromInput(in, facts, tables, nil)
	if err != nil {
		return err
	}
	for _, w := range bc.Warnings() {
		logger.Warn(w)
	}
	warnings, err := buildconfig.Preflight(ctx, bc, host, facts, tables.Windows.RequiredSizeLimitGB)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		logger.Warn(w)
	}
	namespace := firstNonEmpty(cfg.Namespace, build.Namespace(os.Getenv))
	out := cmd.OutOrStdout()
	output.CIHeader(out)
	output.ContextBlock(out, planSummary(bc, namespace))
	logPlan(bc, host)

	creds, err := resolveCredentials(bc)
	if err != nil {
		return err
	}
	if bOpts.verifyRef && bc.Release.IsCustom && bc.Builds(targets.Source) {
		logger.Info("verifying repository reference", "repo", bc.Release.Repository, "ref", bc.Release.BranchOrTag)
		if err := gitremote.VerifyRef(ctx, bc.Release.Repository, bc.Release.BranchOrTag, creds.Username, creds.Password); err != nil {
			return err
		}
	}

	orch := &build.Orchestrator{
		Engine:      client,
		Config:      bc,
		Namespace:   namespace,
		Credentials: creds,
		Logger:      logger,
		Stdout:      out,
	}
	if bOpts.contextDir != "" {
		orch.Contexts = os.DirFS(bOpts.contextDir)
	}
	if bc.Mode != buildconfig.ModeDryRun {
		if orch.Scanner, err = build.NewScanner(creds.Password); err != nil {
			return fmt.Errorf("loading leak detection rules: %w", err)
		}
	}
	if bc.NeedsCredentials() && bc.CredentialMode == buildconfig.CredentialEndpoint {
		ep, err := credential.NewEndpoint(creds.Username, creds.Password,
			credential.WithAddr(fmt.Sprintf("0.0.0.0:%d", cfg.Credentials.Port)),
			credential.WithLogger(logger))
		if err != nil {
			return err
		}
		orch.Endpoint = ep
	}

	if (bOpts.monitor || cfg.Monitor.Enabled) && bc.Mode == buildconfig.ModeBuild {
		interval := bOpts.interval
		if interval <= 0 {
			interval = cfg.MonitorInterval()
		}
		if interval <= 0 {
			interval = monitor.DefaultInterval
		}
		mon := monitor.New(monitor.HostSampler{RootDir: facts.Daemon.RootDir}, interval, logger)
		mon.Start(ctx)
		defer mon.Stop()
	}

	output.SectionStart(out, "ue4_docker_build", "Build images")
	res, runErr := orch.Run(ctx)
	output.SectionEnd(out, "ue4_docker_build")
	if res != nil {
		build.PrintSummary(out, res, output.UseColor())
		if bOpts.junitDir != "" {
			if jerr := output.WriteJUnit(bOpts.junitDir, "build", res.Cases(), res.Duration); jerr != nil {
				runErr = multierror.Append(runErr, fmt.Errorf("writing JUnit report: %w", jerr)).ErrorOrNil()
			}
		}
	}
	if runErr != nil {
		return runErr
	}

	switch bc.Mode {
	case buildconfig.ModeLayout:
		logger.Info("Generated Dockerfiles written", "dir", bc.LayoutDir)
	default:
		logger.Info("Build complete!")
	}
	logger.Info(fmt.Sprintf("Total execution time: %s", time.Since(start).Round(time.Second)))
	return nil
}

// resolveCredentials asks for git credentials only when the run actually
// clones engine source.
func resolveCredentials(bc *buildconfig.Configuration) (credential.Credentials, error) {
	flags := credential.Credentials{Username: bOpts.username, Password: bOpts.password}
	if !bc.NeedsCredentials() {
		return flags, nil
	}
	logger.Info("Retrieving git credentials...")
	return credential.Resolve(flags, os.Environ(), credential.NewTerminalPrompter())
}

func planSummary(bc *buildconfig.Configuration, namespace string) []output.KV {
	rel := bc.Release.Name
	if rel == "" {
		rel = "(none)"
	}
	return []output.KV{
		{Key: "release", Value: rel},
		{Key: "platform", Value: string(bc.Platform)},
		{Key: "mode", Value: string(bc.Mode)},
		{Key: "namespace", Value: namespace},
		{Key: "targets", Value: bc.Targets.String()},
	}
}

func logPlan(bc *buildconfig.Configuration, host *probe.Probe) {
	logger.Info("Running on " + host.SystemString())
	if !bc.Release.IsZero() {
		logger.Info("Building images", "release", bc.Release.Name, "platform", string(bc.Platform), "targets", bc.Targets.String())
	} else {
		logger.Info("Building images", "platform", string(bc.Platform), "targets", bc.Targets.String())
	}
	logger.Debug("build configuration",
		"mode", string(bc.Mode),
		"base_image", bc.BaseImage,
		"prerequisites_tag", bc.PrerequisitesTag(),
		"excluded", bc.Excluded())

	if bc.Platform == buildconfig.Windows {
		logger.Info("Windows container settings",
			"basetag", bc.BaseTag,
			"host_basetag", bc.HostBaseTag,
			"isolation", bc.Isolation,
			"visual_studio", bc.Toolchain)
		if gb, ok := bc.MemoryLimitGB(); ok {
			logger.Info(fmt.Sprintf("Memory limit: %.2fGB", gb))
		} else {
			logger.Info("Memory limit: no limit")
		}
		return
	}
	if bc.CUDA != "" {
		logger.Info("Linux container settings", "basetag", bc.BaseTag, "cuda", bc.CUDA)
	} else {
		logger.Info("Linux container settings", "basetag", bc.BaseTag, "gpu", "OpenGL")
	}
}

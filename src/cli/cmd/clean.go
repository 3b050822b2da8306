package cmd

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/sofmeright/ue4-docker/src/build"
	"github.com/sofmeright/ue4-docker/src/docker"
	"github.com/sofmeright/ue4-docker/src/output"
	"github.com/sofmeright/ue4-docker/src/targets"
)

type cleanOptions struct {
	source bool
	engine bool
	all    bool
	prune  bool
	dryRun bool
	tag    string
}

var cOpts cleanOptions

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove images built by ue4-docker",
	Long: `Remove dangling intermediate images left behind by ue4-docker builds.

--source and --engine also remove the ue4-source and ue4-engine images,
--all removes every image built by ue4-docker.`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

func init() {
	f := cleanCmd.Flags()
	f.BoolVar(&cOpts.source, "source", false, "remove ue4-source images")
	f.BoolVar(&cOpts.engine, "engine", false, "remove ue4-engine images")
	f.BoolVar(&cOpts.all, "all", false, "remove all ue4-docker images")
	f.BoolVar(&cOpts.prune, "prune", false, "run `docker system prune` after cleaning")
	f.BoolVar(&cOpts.dryRun, "dry-run", false, "print the images that would be removed without removing them")
	f.StringVar(&cOpts.tag, "tag", "", "only remove images with this tag")

	rootCmd.AddCommand(cleanCmd)
}

// filters returns the image queries for the selected images. Dangling
// intermediate images are always included.
func (o cleanOptions) filters(namespace string) []docker.ImageFilter {
	out := []docker.ImageFilter{{Label: build.SentinelLabel, Dangling: true}}

	var stages []targets.Stage
	switch {
	case o.all:
		stages = targets.Stages()
	default:
		if o.source {
			stages = append(stages, targets.Source)
		}
		if o.engine {
			stages = append(stages, targets.Engine)
		}
	}

	tag := o.tag
	if tag == "" {
		tag = "*"
	}
	for _, st := range stages {
		out = append(out, docker.ImageFilter{Reference: build.Repository(namespace, st.ImageName()) + ":" + tag})
	}
	return out
}

type removal struct {
	ref    string
	filter string
	err    error
}

// cleanImages removes every image matched by filters. Tagged images are
// removed tag by tag, dangling images by ID. Failures are collected and
// the remaining images are still processed.
func cleanImages(ctx context.Context, store docker.Store, filters []docker.ImageFilter, dryRun bool) ([]removal, error) {
	var (
		done   []removal
		result *multierror.Error
		seen   = map[string]bool{}
	)
	for _, f := range filters {
		images, err := store.ListImages(ctx, f)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		for _, img := range images {
			for _, ref := range refsFor(img, f) {
				if seen[ref] {
					continue
				}
				seen[ref] = true
				r := removal{ref: ref, filter: describeFilter(f)}
				if !dryRun {
					r.err = store.Remove(ctx, ref)
					if r.err != nil {
						result = multierror.Append(result, r.err)
					}
				}
				done = append(done, r)
			}
		}
	}
	return done, result.ErrorOrNil()
}

func refsFor(img docker.Image, f docker.ImageFilter) []string {
	if f.Reference == "" || len(img.RepoTags) == 0 {
		return []string{img.ID}
	}
	var refs []string
	for _, t := range img.RepoTags {
		if ok, _ := path.Match(f.Reference, t); ok {
			refs = append(refs, t)
		}
	}
	return refs
}

func describeFilter(f docker.ImageFilter) string {
	if f.Dangling {
		return "dangling"
	}
	return f.Reference
}

func runClean(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := docker.NewClient(verbose)
	if err != nil {
		return err
	}
	defer client.Close()

	namespace := firstNonEmpty(cfg.Namespace, build.Namespace(nil))
	removed, err := cleanImages(ctx, client, cOpts.filters(namespace), cOpts.dryRun)
	printRemovals(cmd.OutOrStdout(), removed, cOpts.dryRun)
	if err != nil {
		return err
	}

	if cOpts.prune {
		if cOpts.dryRun {
			fmt.Fprintln(cmd.OutOrStdout(), "docker system prune -f")
			return nil
		}
		logger.Info("Running `docker system prune`...")
		return client.Prune(ctx)
	}
	return nil
}

func printRemovals(w io.Writer, removed []removal, dryRun bool) {
	if len(removed) == 0 {
		fmt.Fprintln(w, "No images to remove.")
		return
	}
	action := "removed"
	if dryRun {
		action = "would remove"
	}
	color := output.UseColor()
	rows := make([][]string, 0, len(removed))
	for _, r := range removed {
		status := action
		if r.err != nil {
			status = "failed: " + r.err.Error()
		}
		rows = append(rows, []string{r.ref, r.filter, status})
	}
	output.Table(w, []string{"Image", "Match", "Status"}, rows, color)
}

package cmd

import (
	"fmt"
	"os"

	"github.com/docker/go-units"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sofmeright/ue4-docker/src/compat"
	"github.com/sofmeright/ue4-docker/src/docker"
	"github.com/sofmeright/ue4-docker/src/output"
	"github.com/sofmeright/ue4-docker/src/probe"
	"github.com/sofmeright/ue4-docker/src/version"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display information about the host system and Docker daemon",
	Args:  cobra.NoArgs,
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

// hostResources are the host totals reported next to the daemon facts.
type hostResources struct {
	MemTotal  uint64
	CPUs      int
	DiskFree  uint64
	DiskKnown bool
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
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

	var (
		facts probe.Facts
		res   hostResources
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		facts, err = host.Gather(gctx)
		return err
	})
	g.Go(func() error {
		vm, err := mem.VirtualMemoryWithContext(gctx)
		if err != nil {
			return fmt.Errorf("reading system memory: %w", err)
		}
		res.MemTotal = vm.Total
		res.CPUs, err = cpu.CountsWithContext(gctx, true)
		if err != nil {
			return fmt.Errorf("counting processors: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	// A daemon inside a VM reports a root dir the host cannot see.
	if root := facts.Daemon.RootDir; root != "" {
		if _, err := os.Stat(root); err == nil {
			if usage, err := disk.UsageWithContext(ctx, root); err == nil {
				res.DiskFree, res.DiskKnown = usage.Free, true
			}
		}
	}

	output.KeyValues(cmd.OutOrStdout(), infoReport(facts, host.SystemString(), res), output.UseColor())
	return nil
}

func infoReport(facts probe.Facts, system string, res hostResources) []output.KV {
	daemonVersion := facts.Daemon.ServerVersion
	if facts.DaemonVersion != nil {
		daemonVersion = facts.DaemonVersion.String()
	}

	kv := []output.KV{
		{Key: "ue4-docker version", Value: version.Version},
		{Key: "Operating system", Value: system},
		{Key: "Docker daemon version", Value: daemonVersion},
	}
	if facts.Daemon.OSType == "linux" {
		nvidia := "No"
		if facts.Daemon.HasRuntime("nvidia") {
			nvidia = "Yes"
		}
		kv = append(kv, output.KV{Key: "NVIDIA Docker supported", Value: nvidia})
	}

	maxSize := "N/A"
	if facts.MaxSizeGB != docker.Unbounded {
		maxSize = fmt.Sprintf("%.0fGB", facts.MaxSizeGB)
	}
	kv = append(kv, output.KV{Key: "Maximum image size", Value: maxSize})

	diskFree := "Unknown"
	if res.DiskKnown {
		diskFree = units.BytesSize(float64(res.DiskFree))
	}
	kv = append(kv,
		output.KV{Key: "Available disk space", Value: diskFree},
		output.KV{Key: "Total system memory", Value: fmt.Sprintf("%s physical, %s available to Docker",
			units.BytesSize(float64(res.MemTotal)), units.BytesSize(float64(facts.Daemon.MemTotal)))},
		output.KV{Key: "Number of processors", Value: fmt.Sprintf("%d logical, %d available to Docker", res.CPUs, facts.Daemon.NCPU)},
	)
	return kv
}

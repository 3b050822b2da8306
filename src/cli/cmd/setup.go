package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/sofmeright/ue4-docker/src/compat"
	"github.com/sofmeright/ue4-docker/src/docker"
	"github.com/sofmeright/ue4-docker/src/hostos"
	"github.com/sofmeright/ue4-docker/src/probe"
)

var setupDryRun bool

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Automatically configure the host system where possible",
	Args:  cobra.NoArgs,
	RunE:  runSetup,
}

func init() {
	setupCmd.Flags().BoolVar(&setupDryRun, "dry-run", false, "report the required changes without applying them")
	rootCmd.AddCommand(setupCmd)
}

// setupPlan describes what setup should do on a host.
type setupPlan struct {
	// RaiseSizeTo is the image size limit to write, or 0 for no change.
	RaiseSizeTo float64
	Messages    []string
}

func planSetup(goos string, windowsServer bool, currentGB, requiredGB float64, port int) setupPlan {
	var p setupPlan
	switch {
	case goos == "windows" && windowsServer:
		if currentGB >= requiredGB {
			p.Messages = append(p.Messages, fmt.Sprintf("Maximum image size is already %.0fGB, no change required.", currentGB))
		} else {
			p.RaiseSizeTo = requiredGB
			p.Messages = append(p.Messages,
				fmt.Sprintf("Raising the maximum image size from %.0fGB to %.0fGB.", currentGB, requiredGB),
				"Restart the Docker service for the change to take effect: Restart-Service docker")
		}
		p.Messages = append(p.Messages, fmt.Sprintf(
			"Ensure Windows Firewall allows inbound TCP connections on port %d from containers, e.g.: netsh advfirewall firewall add rule name=ue4-docker dir=in action=allow protocol=TCP localport=%d",
			port, port))
	case goos == "windows":
		p.Messages = append(p.Messages,
			"Windows 10 and 11 hosts use the image size limit configured in Docker Desktop, no automatic setup is required.")
	case goos == "linux":
		p.Messages = append(p.Messages, fmt.Sprintf(
			"Ensure containers can reach the credential endpoint on TCP port %d, e.g.: iptables -I INPUT -p tcp --dport %d -j ACCEPT",
			port, port))
	default:
		p.Messages = append(p.Messages, "No automatic setup is available for this host, no changes required.")
	}
	return p
}

func runSetup(cmd *cobra.Command, args []string) error {
	tables, err := compat.Load()
	if err != nil {
		return err
	}
	host := &probe.Probe{GOOS: runtime.GOOS, Host: hostos.Default(), Tables: tables}

	current := docker.Unbounded
	path := docker.DaemonConfigPath()
	if host.IsWindows() {
		if current, err = docker.MaxSize(path, tables.Windows.DefaultSizeLimitGB); err != nil {
			return err
		}
	}

	plan := planSetup(runtime.GOOS, host.IsWindowsServer(), current, tables.Windows.RequiredSizeLimitGB, cfg.Credentials.Port)
	if plan.RaiseSizeTo > 0 && !setupDryRun {
		if err := docker.SetMaxSize(path, plan.RaiseSizeTo); err != nil {
			return err
		}
		logger.Info("Updated daemon configuration", "path", path)
	}
	for _, m := range plan.Messages {
		logger.Info(m)
	}
	return nil
}

package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/objmapper/objmapper/internal/cli/output"
	"github.com/objmapper/objmapper/pkg/apiclient"
	"github.com/spf13/cobra"
)

var (
	statusOutput  string
	statusPidFile string
	statusAPIAddr string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server status",
	Long: `Display the current status of the objmapperd server.

This command checks the PID file and calls the admin API's status
endpoint to report backend and object counts.

Examples:
  # Check status (uses default settings)
  objmapperd status

  # Check status against a custom admin API address
  objmapperd status --api-addr http://localhost:9080

  # Output as JSON
  objmapperd status --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/objmapperd/objmapperd.pid)")
	statusCmd.Flags().StringVar(&statusAPIAddr, "api-addr", "http://localhost:8080", "Admin API base URL")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// ServerStatus represents the server status information.
type ServerStatus struct {
	Running      bool   `json:"running" yaml:"running"`
	PID          int    `json:"pid,omitempty" yaml:"pid,omitempty"`
	Message      string `json:"message" yaml:"message"`
	BackendCount int    `json:"backend_count,omitempty" yaml:"backend_count,omitempty"`
	ObjectCount  int    `json:"object_count,omitempty" yaml:"object_count,omitempty"`
	CacheRunning bool   `json:"cache_running" yaml:"cache_running"`
	Healthy      bool   `json:"healthy" yaml:"healthy"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	status := ServerStatus{
		Running: false,
		Healthy: false,
		Message: "Server is not running",
	}

	pidPath := statusPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	pidData, err := os.ReadFile(pidPath)
	if err == nil {
		pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
		if err == nil {
			process, err := os.FindProcess(pid)
			if err == nil {
				if err := process.Signal(syscall.Signal(0)); err == nil {
					status.Running = true
					status.PID = pid
				}
			}
		}
	}

	client := apiclient.New(statusAPIAddr)
	apiStatus, err := client.Status()
	if err == nil {
		status.Running = true
		status.Healthy = true
		status.BackendCount = apiStatus.BackendCount
		status.ObjectCount = apiStatus.ObjectCount
		status.CacheRunning = apiStatus.CacheRunning
		status.Message = "Server is running and healthy"
	} else if status.Running {
		status.Message = "Server process exists but the admin API is unreachable"
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, status)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, status)
	default:
		printStatusTable(status)
	}

	return nil
}

func printStatusTable(status ServerStatus) {
	fmt.Println()
	fmt.Println("objmapperd Server Status")
	fmt.Println("========================")
	fmt.Println()

	if status.Running {
		if status.Healthy {
			fmt.Printf("  Status:     \033[32m● Running\033[0m\n")
		} else {
			fmt.Printf("  Status:     \033[33m● Running (unhealthy)\033[0m\n")
		}
		if status.PID != 0 {
			fmt.Printf("  PID:        %d\n", status.PID)
		}
		if status.Healthy {
			fmt.Printf("  Backends:   %d\n", status.BackendCount)
			fmt.Printf("  Objects:    %d\n", status.ObjectCount)
			fmt.Printf("  Caching:    %t\n", status.CacheRunning)
		}
	} else {
		fmt.Printf("  Status:     \033[31m○ Stopped\033[0m\n")
	}

	fmt.Println()
	fmt.Printf("  %s\n", status.Message)
	fmt.Println()
}

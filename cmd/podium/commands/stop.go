package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/podium-chat/podium/internal/cli/prompt"
)

var (
	stopPidFile string
	stopYes     bool
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the Podium server",
	Long: `Stop a Podium server started in background mode.

Sends SIGTERM to the process recorded in the PID file and waits for it
to exit. The server releases a held writer lock on the way down.

Examples:
  # Stop the server
  podium stop

  # Stop a server using a custom PID file
  podium stop --pid-file /run/podium.pid

  # Stop without the confirmation prompt
  podium stop --yes`,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().StringVar(&stopPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/podium/podium.pid)")
	stopCmd.Flags().BoolVarP(&stopYes, "yes", "y", false, "Skip the confirmation prompt")
}

func runStop(cmd *cobra.Command, args []string) error {
	pidPath := stopPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	pidData, err := os.ReadFile(pidPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("Podium does not appear to be running (no PID file at %s)", pidPath)
		}
		return fmt.Errorf("failed to read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
	if err != nil {
		return fmt.Errorf("invalid PID file %s: %w", pidPath, err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}

	if err := process.Signal(syscall.Signal(0)); err != nil {
		// Stale PID file
		_ = os.Remove(pidPath)
		return fmt.Errorf("Podium is not running (stale PID file removed)")
	}

	confirmed, err := prompt.ConfirmWithForce(fmt.Sprintf("Stop Podium (PID %d)?", pid), stopYes)
	if err != nil {
		return err
	}
	if !confirmed {
		fmt.Println("Cancelled")
		return nil
	}

	fmt.Printf("Stopping Podium (PID %d)...\n", pid)
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal process %d: %w", pid, err)
	}

	// Wait for the process to exit, bounded
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		if err := process.Signal(syscall.Signal(0)); err != nil {
			fmt.Println("Podium stopped")
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}

	return fmt.Errorf("Podium (PID %d) did not stop within 30s; it may still be shutting down", pid)
}

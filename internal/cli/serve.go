package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/guiyumin/chnl/internal/core/config"
	"github.com/guiyumin/chnl/internal/core/extractor"
	"github.com/guiyumin/chnl/internal/core/log"
	"github.com/guiyumin/chnl/internal/core/viewers"
	"github.com/guiyumin/chnl/internal/server"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var (
	servePort   int
	serveDaemon bool
)

var serveCmd = &cobra.Command{
	Use:   "serve [stop|status]",
	Short: "Start the HTTP API",
	Long: `Start an HTTP server that resolves streams and viewer counts on request.

Examples:
  chnl serve              # Start server on port 8080
  chnl serve -p 9000      # Start server on port 9000
  chnl serve -d           # Start server as background daemon
  chnl serve status       # Is the daemon running?
  chnl serve stop         # Stop the daemon

API Endpoints:
  GET /api/health             # Health check
  GET /api/channels           # Channel labels on the site
  GET /api/stream/:name       # Stream URLs for a channel (?legacy=1)
  GET /api/viewers            # Viewer counts (?status=online|offline)
  GET /api/viewers/:slug      # One channel's viewer count`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"stop", "status"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			switch args[0] {
			case "stop":
				return stopDaemon(cmd)
			case "status":
				return daemonStatus(cmd)
			default:
				return fmt.Errorf("unknown action %q (use stop or status)", args[0])
			}
		}

		if servePort > 0 {
			cfg.Server.Port = servePort
		}
		if serveDaemon {
			return startDaemon(cmd, cfg.ServerPort())
		}
		return runServer(cmd.Context(), cfg)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP listen port (default: 8080)")
	serveCmd.Flags().BoolVarP(&serveDaemon, "daemon", "d", false, "run as background daemon")

	rootCmd.AddCommand(serveCmd)
}

// runServer serves until ctx is done, then shuts down gracefully
func runServer(ctx context.Context, cfg *config.Config) error {
	srv := server.NewServer(
		cfg,
		extractor.BrowserOpener(extractor.BrowserOptionsFromConfig(cfg)),
		viewers.New(cfg.ViewerAPI, viewers.WithUserAgent(cfg.UserAgent)),
	)

	go func() {
		<-ctx.Done()
		log.Infof("shutting down server...")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Stop(sctx); err != nil {
			log.Errorf("shutdown: %v", err)
		}
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func startDaemon(cmd *cobra.Command, port int) error {
	if pid := getDaemonPID(); pid > 0 {
		if processExists(pid) {
			return fmt.Errorf("daemon already running (PID %d)", pid)
		}
		// stale PID file
		os.Remove(getPIDFilePath())
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	args := []string{"serve", "-p", strconv.Itoa(port)}
	if configFile != "" {
		args = append(args, "--config", configFile)
	}

	logFile, err := os.OpenFile(getLogFilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	child := exec.Command(executable, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	child.Stdin = nil
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := child.Start(); err != nil {
		logFile.Close()
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	if err := savePID(child.Process.Pid); err != nil {
		child.Process.Kill()
		logFile.Close()
		return fmt.Errorf("failed to save PID: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "chnl server started as daemon (PID %d)\n", child.Process.Pid)
	fmt.Fprintf(w, "  Port: %d\n", port)
	fmt.Fprintf(w, "  Log:  %s\n", getLogFilePath())
	fmt.Fprintf(w, "\nUse 'chnl serve stop' to stop the daemon\n")
	return nil
}

func stopDaemon(cmd *cobra.Command) error {
	pid := getDaemonPID()
	if pid <= 0 {
		return fmt.Errorf("daemon is not running")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		os.Remove(getPIDFilePath())
		return fmt.Errorf("daemon process not found")
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		os.Remove(getPIDFilePath())
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	for i := 0; i < 30; i++ {
		if !processExists(pid) {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	os.Remove(getPIDFilePath())
	fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopped")
	return nil
}

func daemonStatus(cmd *cobra.Command) error {
	w := cmd.OutOrStdout()
	pid := getDaemonPID()
	if pid <= 0 {
		fmt.Fprintln(w, "Daemon is not running")
		return nil
	}

	if !processExists(pid) {
		os.Remove(getPIDFilePath())
		fmt.Fprintln(w, "Daemon is not running (stale PID file removed)")
		return nil
	}

	fmt.Fprintf(w, "Daemon is running (PID %d)\n", pid)
	fmt.Fprintf(w, "Log file: %s\n", getLogFilePath())
	return nil
}

// PID file management

func getPIDFilePath() string {
	configDir, err := config.ConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "chnl-serve.pid")
	}
	return filepath.Join(configDir, "serve.pid")
}

func getLogFilePath() string {
	configDir, err := config.ConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "chnl-serve.log")
	}
	return filepath.Join(configDir, "serve.log")
}

func savePID(pid int) error {
	pidFile := getPIDFilePath()
	if err := os.MkdirAll(filepath.Dir(pidFile), 0755); err != nil {
		return err
	}
	return os.WriteFile(pidFile, []byte(strconv.Itoa(pid)), 0644)
}

func getDaemonPID() int {
	data, err := os.ReadFile(getPIDFilePath())
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return 0
	}
	return pid
}

func processExists(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// FindProcess always succeeds on Unix; signal 0 checks the pid
	return process.Signal(syscall.Signal(0)) == nil
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/jobdash/internal/api"
	"github.com/joescharf/jobdash/internal/app"
	"github.com/joescharf/jobdash/internal/daemon"
	webui "github.com/joescharf/jobdash/internal/ui"
)

const serveStopGrace = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard UI and local JSON API",
	Long: `Start an HTTP server with the embedded dashboard UI at / and the JSON
API under /api/v1/. By default it listens on port 8080. Use --port to change it.

The session is started on launch and ended on shutdown. Use
'jobdash serve start' to run in the background.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun(cmd.Context())
	},
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

func init() {
	serveCmd.PersistentFlags().IntP("port", "p", 8080, "port to listen on")
	_ = viper.BindPFlag("serve.port", serveCmd.PersistentFlags().Lookup("port"))

	serveCmd.AddCommand(serveStartCmd)
	serveCmd.AddCommand(serveStopCmd)
	serveCmd.AddCommand(serveStatusCmd)
	rootCmd.AddCommand(serveCmd)
}

func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(viper.GetString("state_dir"), "jobdash-serve.pid"))
}

func serveLogPath() string {
	return filepath.Join(viper.GetString("state_dir"), "jobdash-serve.log")
}

func serveAddr() string {
	return net.JoinHostPort("", strconv.Itoa(viper.GetInt("serve.port")))
}

// newServeHandler mounts the API under /api/ and the UI everywhere else.
func newServeHandler(apiSrv *api.Server) (http.Handler, error) {
	uiHandler, err := webui.Handler()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize UI handler: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/api/", apiSrv.Router())
	mux.Handle("/", uiHandler)
	return mux, nil
}

// startServeSession activates the local session whether or not the backend
// is reachable.
func startServeSession(ctx context.Context, a *app.App, logger *slog.Logger) {
	sess, err := a.Sessions().StartOrResume(ctx)
	if err != nil {
		logger.Warn("session start failed", "error", err)
		return
	}
	logger.Info("session active", "session_id", sess.ID, "resumed", sess.Resumed, "connected", a.Connected())
}

func serveRun(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	logger := newLogger()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}

	startServeSession(ctx, a, logger)

	w, err := resolveWindow()
	if err != nil {
		return err
	}
	apiSrv := api.NewServer(a, newLLMClient(),
		api.WithCacheTTL(viper.GetDuration("serve.cache_ttl")),
		api.WithLogger(logger),
		api.WithDefaultWindow(w),
	)
	handler, err := newServeHandler(apiSrv)
	if err != nil {
		return err
	}

	poll := a.Poller().Start(ctx)
	defer poll.Stop()

	srv := &http.Server{
		Addr:              serveAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	ui.Info("Serving dashboard at http://localhost%s", srv.Addr)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			_ = a.Shutdown(context.Background())
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if err := a.Shutdown(shutdownCtx); err != nil {
		logger.Warn("session end", "error", err)
	}

	// Only the process recorded in the PID file cleans it up.
	pf := pidFile()
	if pid, err := pf.Read(); err == nil && pid == os.Getpid() {
		_ = pf.Remove()
	}
	ui.Info("Server stopped")
	return nil
}

func serveStartRun() error {
	pf := pidFile()
	if pid, ok := pf.IsRunning(); ok {
		return fmt.Errorf("server %w (PID %d)", daemon.ErrAlreadyRunning, pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	args := []string{"serve", "--port", strconv.Itoa(viper.GetInt("serve.port"))}
	if cfg := viper.ConfigFileUsed(); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if u := viper.GetString("api.base_url"); u != "" {
		args = append(args, "--api-url", u)
	}

	if dryRun {
		ui.DryRunMsg("Would run %s %v in the background", exe, args)
		return nil
	}

	logPath := serveLogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)
	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	if err := pf.Acquire(child.Process.Pid); err != nil {
		_ = child.Process.Kill()
		return err
	}
	_ = child.Process.Release()

	ui.Success("Server started (PID %d) at http://localhost%s", child.Process.Pid, serveAddr())
	ui.Info("Logs: %s", logPath)
	return nil
}

func serveStopRun() error {
	pf := pidFile()
	if dryRun {
		if pid, ok := pf.IsRunning(); ok {
			ui.DryRunMsg("Would stop server (PID %d)", pid)
			return nil
		}
	}
	pid, err := pf.Stop(serveStopGrace)
	if errors.Is(err, daemon.ErrNotRunning) {
		return fmt.Errorf("server is %w", err)
	}
	if err != nil {
		return err
	}
	ui.Success("Server stopped (PID %d)", pid)
	return nil
}

func serveStatusRun() error {
	pid, ok := pidFile().IsRunning()
	if !ok {
		ui.Info("Server is not running")
		return nil
	}
	ui.Success("Server is running (PID %d) at http://localhost%s", pid, serveAddr())
	ui.Info("Logs: %s", serveLogPath())
	return nil
}


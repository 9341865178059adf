package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	fyneapp "fyne.io/fyne/v2/app"
	"github.com/tartampluch/go-friendcare/internal/app"
	"github.com/tartampluch/go-friendcare/internal/backend"
	"github.com/tartampluch/go-friendcare/internal/config"
	"github.com/tartampluch/go-friendcare/internal/server"
	"github.com/tartampluch/go-friendcare/internal/store"
	"github.com/tartampluch/go-friendcare/internal/tokenstore"
)

// main is the application entry point.
// It delegates execution to runMain so that deferred calls (closing the log file,
// flushing the offline store) run before the process terminates.
// os.Exit() does not run defers, so we must return an integer code first.
func main() {
	os.Exit(runMain())
}

// runMain manages the application lifecycle, argument parsing, and exit codes.
// Returns config.ExitCodeSuccess on success, config.ExitCodeError on failure.
func runMain() int {
	// -------------------------------------------------------------------------
	// 1. CLI Argument Parsing
	// -------------------------------------------------------------------------
	showVersion := flag.Bool(config.FlagVersion, false, config.FlagDescVersion)
	debugMode := flag.Bool(config.FlagDebug, false, config.FlagDescDebug)
	importPath := flag.String(config.FlagImport, "", config.FlagDescImport)
	flag.Parse()

	if *showVersion {
		printVersion()
		return config.ExitCodeSuccess
	}

	// -------------------------------------------------------------------------
	// 2. Logging Initialization
	// -------------------------------------------------------------------------
	// Structured logging comes first so keyring and store failures are captured.
	logCloser := setupLogging(*debugMode)
	if logCloser != nil {
		defer func() {
			_ = logCloser.Close() // Best effort close
		}()
	}

	// -------------------------------------------------------------------------
	// 3. Context & Signal Handling
	// -------------------------------------------------------------------------
	// The root context cancels on SIGINT (Ctrl+C) or SIGTERM and stops every worker.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logStartupInfo()

	// -------------------------------------------------------------------------
	// 4. Application Logic
	// -------------------------------------------------------------------------
	if err := run(ctx, *importPath); err != nil {
		slog.Error(config.ErrAppFailed,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyError, err,
		)
		return config.ExitCodeError
	}

	slog.Info(config.MsgAppStop, config.LogKeyComponent, config.CompMain)
	return config.ExitCodeSuccess
}

// run opens the offline store, wires the session core and blocks in the tray loop.
func run(ctx context.Context, importPath string) error {
	// Initialize Fyne App. Its preferences hold every runtime setting.
	a := fyneapp.NewWithID(config.AppID)
	prefs := a.Preferences()

	// Record the version for migration logic in future updates.
	prefs.SetString(config.PrefLastRun, config.Version)

	// The offline store is required: without it friends and reminders
	// would not survive a restart, so failing to open it is fatal.
	dir, err := appDir()
	if err != nil {
		return err
	}
	st, err := store.Open(filepath.Join(dir, config.StoreFileName))
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error(config.ErrStoreSave, config.LogKeyComponent, config.CompMain, config.LogKeyError, err)
		}
	}()

	// Dependency Injection.
	srv := server.NewFeedServer(prefs.StringWithFallback(config.PrefServerPort, config.DefaultPort))
	client := backend.NewHTTPClient(prefs.StringWithFallback(config.PrefBackendURL, config.DefaultBackendURL))
	tokens := tokenstore.New(config.KeyringService)

	host := app.NewFriendCareApp(a, ctx, st, srv, client, tokens)
	host.ImportPath = importPath

	// Lifecycle Bridge:
	// Watch for context cancellation to quit the tray loop gracefully.
	go func() {
		<-ctx.Done()
		slog.Info(config.MsgCtxCancel, config.LogKeyComponent, config.CompMain)
		a.Quit()
	}()

	// Blocks until the user quits from the tray or the context is cancelled.
	host.Run()
	return nil
}

// printVersion outputs the build information to stdout.
func printVersion() {
	fmt.Printf(config.MsgVersionOutput,
		config.AppName,
		config.Version,
		runtime.GOOS,
		runtime.GOARCH,
	)
}

// logStartupInfo logs environment details useful for debugging.
func logStartupInfo() {
	slog.Info(config.MsgAppStarting,
		config.LogKeyComponent, config.CompMain,
		slog.Group(config.LogKeyBuild,
			slog.String(config.LogKeyApp, config.AppName),
			slog.String(config.LogKeyVersion, config.Version),
			slog.String(config.LogKeyGoVer, runtime.Version()),
		),
		slog.Group(config.LogKeyEnv,
			slog.String(config.LogKeyOS, runtime.GOOS),
			slog.String(config.LogKeyArch, runtime.GOARCH),
			slog.Int(config.LogKeyPID, os.Getpid()),
		),
	)
}

// setupLogging configures the default slog logger: JSON to stdout and,
// when possible, to a file next to the offline store.
func setupLogging(debugMode bool) io.Closer {
	// 1. Always write to Stdout.
	writers := []io.Writer{os.Stdout}
	var logFile *os.File

	// 2. Attempt to set up a file writer in the user's cache directory.
	if dir, err := appDir(); err == nil {
		logPath := filepath.Join(dir, config.LogFileName)
		// O_TRUNC resets logs on restart to prevent indefinite growth.
		f, err := os.OpenFile(logPath, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, config.FilePermUserRW)
		if err == nil {
			writers = append(writers, f)
			logFile = f
		} else {
			fmt.Fprintf(os.Stderr, config.MsgLogWarning, config.ErrLogFile, logPath, err)
		}
	}

	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: debugMode,
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(io.MultiWriter(writers...), opts)))

	if logFile == nil {
		return nil
	}
	return logFile
}

// appDir returns the per-user cache directory holding logs and the offline store.
func appDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCacheDir, err)
	}

	dir := filepath.Join(cacheDir, config.AppID)

	// Ensure the directory exists with restricted permissions (700):
	// it holds the friend list of the signed-in user.
	if err := os.MkdirAll(dir, config.DirPermUserRWX); err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCreateDir, err)
	}
	return dir, nil
}

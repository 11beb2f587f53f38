package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"prism/internal/api"
	"prism/internal/config"
	"prism/internal/fsutil"
	"prism/internal/logging"
	"prism/internal/notify"
	"prism/internal/syncer"
	"prism/internal/theme"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags, rest, err := parseFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	settings, err := resolveSettings(flags)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	switch resolveCommand(rest) {
	case commandSet:
		return runSet(settings, rest[1:], stderr)
	case commandGet:
		return runGet(settings, stdout, stderr)
	case commandThemes:
		return runThemes(settings, stdout)
	case commandRun:
		return runDaemon(settings, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", rest[0])
		return 1
	}
}

type commandKind int

const (
	commandRun commandKind = iota
	commandSet
	commandGet
	commandThemes
	commandUnknown
)

func resolveCommand(args []string) commandKind {
	if len(args) == 0 {
		return commandRun
	}
	switch args[0] {
	case "set":
		return commandSet
	case "get":
		return commandGet
	case "themes":
		return commandThemes
	case "run":
		return commandRun
	default:
		return commandUnknown
	}
}

type cliFlags struct {
	configPath   string
	dataDir      string
	filename     string
	debounceMS   int
	logLevel     string
	statusAddr   string
	hook         string
	defaultTheme string
	noAutoLoad   bool
	set          map[string]bool
}

func parseFlags(args []string) (cliFlags, []string, error) {
	flags := cliFlags{set: map[string]bool{}}
	flagSet := flag.NewFlagSet("prism", flag.ContinueOnError)
	flagSet.StringVar(&flags.configPath, "config", "", "settings file path")
	flagSet.StringVar(&flags.dataDir, "data-dir", "", "directory holding the shared state file")
	flagSet.StringVar(&flags.filename, "filename", "", "state file basename")
	flagSet.IntVar(&flags.debounceMS, "debounce-ms", 0, "debounce delay in milliseconds")
	flagSet.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn, or error")
	flagSet.StringVar(&flags.statusAddr, "status-addr", "", "listen address for the status feed")
	flagSet.StringVar(&flags.hook, "hook", "", "command to run when a theme is applied")
	flagSet.StringVar(&flags.defaultTheme, "default-theme", "", "theme used when no state is persisted")
	flagSet.BoolVar(&flags.noAutoLoad, "no-auto-load", false, "disable reloading on external state changes")
	if err := flagSet.Parse(args); err != nil {
		return cliFlags{}, nil, err
	}
	flagSet.Visit(func(f *flag.Flag) {
		flags.set[f.Name] = true
	})
	return flags, flagSet.Args(), nil
}

func resolveSettings(flags cliFlags) (config.Settings, error) {
	configPath := flags.configPath
	if configPath == "" {
		configPath = os.Getenv("PRISM_CONFIG")
	}
	if configPath == "" {
		configPath = config.DefaultSettingsPath()
	}

	settings, err := config.Load(configPath)
	if err != nil {
		return config.Settings{}, err
	}
	settings = applyEnvOverrides(settings)

	if flags.set["data-dir"] {
		settings.DataDir = flags.dataDir
	}
	if flags.set["filename"] {
		settings.Filename = flags.filename
	}
	if flags.set["debounce-ms"] {
		settings.DebounceMS = flags.debounceMS
		if settings.DebounceMS < config.MinDebounceMS {
			settings.DebounceMS = config.MinDebounceMS
		}
	}
	if flags.set["log-level"] {
		level, ok := logging.ParseLevel(flags.logLevel)
		if !ok {
			return config.Settings{}, fmt.Errorf("invalid --log-level %q", flags.logLevel)
		}
		settings.LogLevel = level
	}
	if flags.set["status-addr"] {
		settings.StatusAddr = flags.statusAddr
	}
	if flags.set["hook"] {
		settings.Hook = flags.hook
	}
	if flags.set["default-theme"] {
		settings.DefaultTheme = flags.defaultTheme
	}
	if flags.noAutoLoad {
		settings.AutoLoad = false
	}
	return settings, nil
}

func applyEnvOverrides(settings config.Settings) config.Settings {
	if dataDir := os.Getenv("PRISM_DATA_DIR"); dataDir != "" {
		settings.DataDir = dataDir
	}
	if rawLevel := os.Getenv("PRISM_LOG_LEVEL"); rawLevel != "" {
		if level, ok := logging.ParseLevel(rawLevel); ok {
			settings.LogLevel = level
		}
	}
	if rawDebounce := os.Getenv("PRISM_DEBOUNCE_MS"); rawDebounce != "" {
		if parsed, err := strconv.Atoi(rawDebounce); err == nil && parsed >= config.MinDebounceMS {
			settings.DebounceMS = parsed
		}
	}
	if statusAddr := os.Getenv("PRISM_STATUS_ADDR"); statusAddr != "" {
		settings.StatusAddr = statusAddr
	}
	return settings
}

func buildSynchronizer(settings config.Settings, logger *logging.Logger) (*syncer.Synchronizer, error) {
	registry := theme.NewRegistry(settings.Themes...)
	registry.Add(settings.DefaultTheme)

	var applier theme.Applier = theme.NopApplier{}
	if settings.Hook != "" {
		applier = &theme.HookApplier{Command: settings.Hook}
	}

	return syncer.New(syncer.Options{
		Path:         settings.StatePath(),
		DefaultTheme: settings.DefaultTheme,
		Debounce:     settings.Debounce(),
		AutoLoad:     settings.AutoLoad,
		Registry:     registry,
		Applier:      applier,
		Logger:       logger,
		Sink:         notify.NewLoggerSink(logger),
	})
}

func runDaemon(settings config.Settings, stderr io.Writer) int {
	logger := logging.NewLogger(logging.NewLogBuffer(logging.DefaultBufferSize), settings.LogLevel)

	synchronizer, err := buildSynchronizer(settings, logger)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if err := synchronizer.Start(); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer synchronizer.Stop()

	logger.Info("prism started", map[string]string{
		"state_path":  settings.StatePath(),
		"auto_load":   strconv.FormatBool(settings.AutoLoad),
		"debounce_ms": strconv.Itoa(settings.DebounceMS),
	})

	var server *http.Server
	if settings.StatusAddr != "" {
		mux := http.NewServeMux()
		api.RegisterRoutes(mux, synchronizer.Updates(), logger)
		server = &http.Server{Addr: settings.StatusAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status feed failed", map[string]string{
					"addr":  settings.StatusAddr,
					"error": err.Error(),
				})
			}
		}()
		logger.Info("status feed listening", map[string]string{
			"addr": settings.StatusAddr,
		})
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals

	logger.Info("shutting down", nil)
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
	return 0
}

func runSet(settings config.Settings, args []string, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "usage: prism set <theme>")
		return 1
	}
	logger := logging.NewLoggerWithOutput(nil, settings.LogLevel, stderr)

	synchronizer, err := buildSynchronizer(settings, logger)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer synchronizer.Stop()

	if err := synchronizer.SaveNow(args[0]); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func runGet(settings config.Settings, stdout, stderr io.Writer) int {
	token, err := fsutil.ReadToken(settings.StatePath())
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if token == "" {
		token = settings.DefaultTheme
	}
	fmt.Fprintln(stdout, token)
	return 0
}

func runThemes(settings config.Settings, stdout io.Writer) int {
	registry := theme.NewRegistry(settings.Themes...)
	registry.Add(settings.DefaultTheme)
	for _, name := range registry.Names() {
		fmt.Fprintln(stdout, name)
	}
	return 0
}

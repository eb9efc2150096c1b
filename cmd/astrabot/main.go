// Package main is the AstraBot CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/hyperjump/astrabot/internal/app"
	"github.com/hyperjump/astrabot/internal/cli"
	"github.com/hyperjump/astrabot/internal/config"
	"github.com/hyperjump/astrabot/internal/server"
	"github.com/hyperjump/astrabot/internal/tui"
	"github.com/hyperjump/astrabot/pkg/utils"
)

var version = "dev"

// loadConfig loads config from path. An empty path uses config.yaml in the current directory
// when it exists and the built-in defaults otherwise. It returns the config and the path that
// was loaded, or "" for defaults.
func loadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, "", err
		}
		fallback := filepath.Join(cwd, "config.yaml")
		if _, statErr := os.Stat(fallback); statErr != nil {
			return config.Default(cwd), "", nil
		}
		path = fallback
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	config.LoadDotEnv()

	command, args := "chat", os.Args[1:]
	if len(args) > 0 && (!strings.HasPrefix(args[0], "-") || isMetaFlag(args[0])) {
		command, args = args[0], args[1:]
	}
	var err error
	switch command {
	case "chat":
		err = runChat(args)
	case "server":
		err = runServer(args)
	case "index":
		err = runIndex(args)
	case "query":
		err = runQuery(args)
	case "status":
		err = runStatus(args)
	case "version", "--version", "-v":
		fmt.Printf("astrabot version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func isMetaFlag(arg string) bool {
	switch arg {
	case "-h", "--help", "-v", "--version":
		return true
	}
	return false
}

type commonFlags struct {
	configPath string
	debug      bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "config file path (default: ./config.yaml if present)")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging")
}

// setup loads the config and builds a logger. With toFile set the logs go to the configured
// log file instead of stderr.
func (c *commonFlags) setup(toFile bool) (*config.Config, *zap.Logger, error) {
	cfg, resolved, err := loadConfig(c.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	debug := cfg.Debug || c.debug
	logFile := ""
	if toFile {
		logFile = cfg.Storage.LogFile
	}
	logger, err := utils.NewLogger(debug, logFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Info("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debug))
	return cfg, logger, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runChat(args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	noDelay := fs.Bool("no-delay", false, "print replies without pacing")
	_ = fs.Parse(args)

	cfg, logger, err := common.setup(true)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()
	fmt.Fprintln(os.Stderr, "Lade Wissensbasis ...")
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.StartWatcher(ctx); err != nil {
		logger.Warn("watcher unavailable", zap.Error(err))
	}

	delay := cfg.Stream.Delay
	if *noDelay {
		delay = 0
	}
	p := tea.NewProgram(tui.New(a.Controller, a.Sessions.Create(), delay), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func runServer(args []string) error {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	_ = fs.Parse(args)

	cfg, logger, err := common.setup(false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.StartWatcher(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	srv := server.NewServer(a.Controller, a, a.Sessions, cfg, logger)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Stop(shutdownCtx)
}

// collectionList is a repeatable, comma-separated flag value.
type collectionList []string

func (c *collectionList) String() string { return strings.Join(*c, ",") }

func (c *collectionList) Set(v string) error {
	for _, name := range strings.Split(v, ",") {
		if name = strings.TrimSpace(name); name != "" {
			*c = append(*c, name)
		}
	}
	return nil
}

func checkCollections(cfg *config.Config, names []string) error {
	for _, name := range names {
		if _, ok := cfg.Collection(name); !ok {
			return fmt.Errorf("unknown collection %q", name)
		}
	}
	return nil
}

func runIndex(args []string) error {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	force := fs.Bool("force", false, "discard persisted indexes and rebuild")
	var only collectionList
	fs.Var(&only, "collection", "collection to index (repeatable; default: all)")
	_ = fs.Parse(args)

	cfg, logger, err := common.setup(false)
	if err != nil {
		return err
	}
	defer logger.Sync()
	if err := checkCollections(cfg, only); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	catalog, err := app.OpenCatalog(ctx, cfg, logger, app.OpenOptions{Only: only, Force: *force})
	if err != nil {
		return err
	}
	defer catalog.Close()

	for _, st := range catalog.Status() {
		units := 0
		if st.Manifest != nil {
			units = st.Manifest.UnitCount
		}
		switch {
		case st.Built:
			fmt.Printf("%-10s built   %d units\n", st.Collection, units)
		case st.Available:
			fmt.Printf("%-10s loaded  %d units\n", st.Collection, units)
		case st.LoadError != "":
			fmt.Printf("%-10s failed  %s\n", st.Collection, st.LoadError)
		}
	}
	return nil
}

// argsReorder moves flags that follow positional arguments to the front so flag.Parse sees
// them: "astrabot query Dosis --collection lynparza".
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			return append(reordered, args[:i]...)
		}
	}
	return args
}

// buildQuery joins positional args so quoting is optional.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runQuery(args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	collection := fs.String("collection", "", "collection to query (required)")
	format := fs.String("format", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(args))

	text := buildQuery(fs.Args())
	if *collection == "" || text == "" {
		return errors.New("usage: astrabot query --collection <name> [--format text|json] <text>")
	}
	outFormat, err := cli.ParseFormat(*format)
	if err != nil {
		return err
	}
	cfg, logger, err := common.setup(false)
	if err != nil {
		return err
	}
	defer logger.Sync()
	if err := checkCollections(cfg, []string{*collection}); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	catalog, err := app.OpenCatalog(ctx, cfg, logger, app.OpenOptions{Only: []string{*collection}})
	if err != nil {
		return err
	}
	defer catalog.Close()

	capab, _ := catalog.Capability(*collection)
	passages, err := capab.Query(ctx, text)
	if err != nil {
		return err
	}
	return cli.WritePassages(os.Stdout, cli.PassageResult{Collection: *collection, Query: text, Passages: passages}, outFormat)
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	var common commonFlags
	common.register(fs)
	serverURL := fs.String("server", "", "read status from a running server, e.g. http://localhost:8080")
	format := fs.String("format", "text", "output format: text or json")
	_ = fs.Parse(args)

	outFormat, err := cli.ParseFormat(*format)
	if err != nil {
		return err
	}
	var statuses []app.CollectionStatus
	if *serverURL != "" {
		if statuses, err = statusViaHTTP(*serverURL); err != nil {
			return err
		}
	} else {
		cfg, _, err := loadConfig(common.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		statuses = app.InspectStores(cfg)
	}
	return cli.WriteStatus(os.Stdout, statuses, outFormat)
}

func statusViaHTTP(serverURL string) ([]app.CollectionStatus, error) {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out struct {
		Collections []app.CollectionStatus `json:"collections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Collections, nil
}

func printUsage() {
	fmt.Println(`astrabot - medical information chatbot over local document collections

Usage:
  astrabot [chat] [flags]                       Chat in the terminal (default)
  astrabot server [flags]                       Start the HTTP API
  astrabot index [--force] [--collection name]  Build or load the collection indexes
  astrabot query --collection name <text>       Query one collection directly
  astrabot status [flags]                       Show the persisted index of each collection
  astrabot version                              Show version
  astrabot help                                 Show this help

Common Flags:
  --config string    Config file path (default: ./config.yaml if present, else built-in defaults)
  --debug            Enable debug logging

Chat Flags:
  --no-delay         Print replies without word pacing

Query Flags:
  --format string    Output format: text or json (default: text)

Status Flags:
  --server string    Read status (including stale flags) from a running server
  --format string    Output format: text or json (default: text)

API keys are read from the environment or a .env file:
  OPENAI_API_KEY, ANTHROPIC_API_KEY, GEMINI_API_KEY

Examples:
  astrabot
  astrabot index --force --collection kfe
  astrabot query --collection lynparza Nebenwirkungen
  astrabot server --config ./config.yaml
  astrabot status --server http://localhost:8080 --format json`)
}

// Package main is the vidgrep CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/vidgrep/internal/cli"
	"github.com/hyperjump/vidgrep/internal/config"
	"github.com/hyperjump/vidgrep/internal/ident"
	"github.com/hyperjump/vidgrep/internal/ingest"
	"github.com/hyperjump/vidgrep/internal/models"
	"github.com/hyperjump/vidgrep/internal/server"
	"github.com/hyperjump/vidgrep/internal/watcher"
	"github.com/hyperjump/vidgrep/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/vidgrep/config.yaml"

// reportedError marks a failure whose details were already written; only the exit code remains.
type reportedError struct{ error }

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins (for development), then the default path; when neither exists the
// built-in defaults are used. Returns the config and the path that was loaded, or "" for
// defaults.
func loadConfig(path string) (*config.Config, string, error) {
	if path == "" || path == defaultConfigPath {
		candidates := []string{defaultConfigPath}
		if cwd, err := os.Getwd(); err == nil {
			candidates = append([]string{filepath.Join(cwd, "config.yaml")}, candidates...)
		}
		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				cfg, err := config.Load(c)
				if err != nil {
					return nil, "", err
				}
				return cfg, c, nil
			}
		}
		cfg, err := config.Default()
		if err != nil {
			return nil, "", err
		}
		return cfg, "", nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches a subcommand and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}
	command, rest := args[0], args[1:]
	var err error
	switch command {
	case "server":
		err = runServer(rest, stderr)
	case "search":
		err = runSearch(rest, stdout, stderr)
	case "ingest":
		err = runIngest(rest, stdout, stderr)
	case "delete":
		err = runDelete(rest, stdout, stderr)
	case "status":
		err = runStatus(rest, stdout, stderr)
	case "videos":
		err = runVideos(rest, stdout, stderr)
	case "watch":
		err = runWatch(rest, stdout, stderr)
	case "snapshot":
		err = runSnapshot(rest, stdout, stderr)
	case "version", "--version", "-v":
		fmt.Fprintf(stdout, "vidgrep version %s\n", version)
	case "help", "--help", "-h":
		printUsage(stdout)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		printUsage(stderr)
		return 1
	}
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return 0
	}
	var reported reportedError
	if !errors.As(err, &reported) {
		format, _ := cli.ParseFormat(flagValueFromArgs(rest, "output", ""))
		if format == cli.OutputJSON {
			cli.WriteError(stdout, err, format)
		} else {
			cli.WriteError(stderr, err, format)
		}
	}
	return 1
}

// flagValueFromArgs returns the value of -name/--name from args if present, else def.
func flagValueFromArgs(args []string, name, def string) string {
	for i, a := range args {
		if a == "-"+name || a == "--"+name {
			if i+1 < len(args) {
				return args[i+1]
			}
			return def
		}
		for _, prefix := range []string{"-" + name + "=", "--" + name + "="} {
			if v, ok := strings.CutPrefix(a, prefix); ok {
				return v
			}
		}
	}
	return def
}

// signalContext is cancelled on SIGINT or SIGTERM so running ffmpeg children are stopped.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// setup loads config, builds a CLI logger and initializes components.
func setup(configPath string) (*config.Config, *zap.Logger, *Components, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewCLILogger(cfg.Debug)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, nil, err
	}
	return cfg, logger, components, nil
}

func runServer(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (watch events, ingest progress, queries)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		return err
	}
	defer components.Close()

	driver := components.Driver
	watchOpts := []watcher.Option{}
	if debugMode {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	watchSvc := watcher.New(watcher.Config{
		Roots:      cfg.Watch.Directories,
		Extensions: cfg.Ingest.Extensions,
		Recursive:  cfg.Watch.RecursiveOrDefault(),
	}, watcher.HandlerFuncs{
		OnChange: func(path string) {
			if _, err := driver.IngestPaths(context.Background(), []string{path}); err != nil {
				logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
			}
		},
		OnRemove: func(path string) {
			if _, err := driver.DeleteVideo(context.Background(), ident.VideoID(path)); err != nil {
				logger.Warn("watch delete failed", zap.String("path", path), zap.Error(err))
			}
		},
	}, watchOpts...)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	go watchSvc.SyncExistingFiles()

	srv := server.NewServer(server.Deps{
		Search:  components.Pipeline,
		Ingest:  driver,
		Index:   components.Store,
		Catalog: components.Catalog,
		Watch:   watchSvc,
	}, cfg, resolvedConfigPath, logger)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("Shutting down...")
	watchSvc.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(ctx)
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: vidgrep search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Frames from the same video closer than --window seconds to a better match are dropped.

Examples:
  vidgrep search dog running on a beach
  vidgrep search "red car at night" --top-k 50 --limit 5
  vidgrep search --no-render --output json sunset
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// parseInterspersed parses flags that may appear anywhere among the positional args and
// returns the positional args in their original order. Go's flag package stops at the
// first non-flag argument, so "vidgrep search red car --top-k 5 at night" needs several
// passes. Everything after "--" is positional.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if consumed := len(args) - len(rest); consumed > 0 && args[consumed-1] == "--" {
			return append(positional, rest...), nil
		}
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

func runSearch(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = search the local index directly)")
	topK := fs.Int("top-k", 0, "raw candidates retrieved before deduplication (default from config)")
	limit := fs.Int("limit", 0, "maximum results after deduplication (default from config)")
	window := fs.Float64("window", 0, "deduplication window in seconds (default from config)")
	noRender := fs.Bool("no-render", false, "skip clip and thumbnail rendering")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printSearchUsage(fs) }
	words, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		return err
	}
	queryStr := buildSearchQuery(words)
	if queryStr == "" {
		printSearchUsage(fs)
		return models.ErrEmptyQuery
	}

	query := &models.SearchQuery{Query: queryStr, TopK: *topK, Limit: *limit, Window: *window}
	if *noRender {
		render := false
		query.Render = &render
	}

	if *serverURL != "" {
		response, err := searchViaHTTP(*serverURL, query)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		return cli.WriteSearchResults(stdout, response, format)
	}

	_, logger, components, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer components.Close()

	ctx, cancel := signalContext()
	defer cancel()
	response, err := components.Pipeline.Search(ctx, query)
	if err != nil {
		return err
	}
	return cli.WriteSearchResults(stdout, response, format)
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runIngest(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	dir := fs.String("dir", "", "directory to scan recursively for videos")
	outputFormat := fs.String("output", "text", "output format: text or json")
	if err := fs.Parse(args); err != nil {
		return err
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		return err
	}
	if fs.NArg() == 0 && *dir == "" {
		fmt.Fprintln(stderr, "Usage: vidgrep ingest [flags] <video...> | --dir <path>")
		return errors.New("no videos given")
	}

	cfg, logger, components, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer components.Close()

	paths := fs.Args()
	if *dir != "" {
		found, err := ingest.DiscoverVideos(*dir, cfg.Ingest.Extensions)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return fmt.Errorf("no videos with extensions %v under %s", cfg.Ingest.Extensions, *dir)
		}
		paths = append(paths, found...)
	}

	ctx, cancel := signalContext()
	defer cancel()
	sum, err := components.Driver.IngestPaths(ctx, paths)
	if err != nil {
		return err
	}
	if err := cli.WriteIngestSummary(stdout, sum, format); err != nil {
		return err
	}
	if len(sum.Errors) > 0 {
		return reportedError{fmt.Errorf("%d of %d videos failed", len(sum.Errors), len(paths))}
	}
	return nil
}

func runDelete(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	if err := fs.Parse(args); err != nil {
		return err
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(stderr, "Usage: vidgrep delete [flags] <video-id>")
		return errors.New("video id is required")
	}
	videoID := fs.Arg(0)

	_, logger, components, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer components.Close()

	removed, err := components.Driver.DeleteVideo(context.Background(), videoID)
	if err != nil {
		return err
	}
	return cli.WriteDeleteResult(stdout, videoID, cli.DeleteResult{
		OK:        true,
		Removed:   removed,
		Remaining: components.Store.Len(),
	}, format)
}

func runStatus(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = read the local index directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	if err := fs.Parse(args); err != nil {
		return err
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		return err
	}

	if *serverURL != "" {
		status, err := statusViaHTTP(*serverURL)
		if err != nil {
			return fmt.Errorf("status failed: %w", err)
		}
		return cli.WriteStatus(stdout, *status, format)
	}

	cfg, logger, components, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer components.Close()
	status, err := components.status(context.Background(), cfg)
	if err != nil {
		return err
	}
	return cli.WriteStatus(stdout, status, format)
}

func statusViaHTTP(serverURL string) (*cli.Status, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s cli.Status
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func runVideos(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("videos", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	if err := fs.Parse(args); err != nil {
		return err
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		return err
	}
	_, logger, components, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer components.Close()
	videos, err := components.Catalog.List(context.Background())
	if err != nil {
		return err
	}
	return cli.WriteVideos(stdout, videos, format)
}

func runWatch(args []string, stdout, stderr io.Writer) error {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "Usage: vidgrep watch <add|remove|list> [path]")
		fmt.Fprintln(stderr, "  vidgrep watch add <path>     Add directory to watch")
		fmt.Fprintln(stderr, "  vidgrep watch remove <path>  Remove directory from watch")
		fmt.Fprintln(stderr, "  vidgrep watch list           List watched directories")
		return errors.New("watch subcommand is required")
	}
	sub := args[0]
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	switch sub {
	case "add":
		if fs.NArg() < 1 {
			return errors.New("usage: vidgrep watch add <path>")
		}
		path, err := filepath.Abs(fs.Arg(0))
		if err != nil {
			return err
		}
		body, _ := json.Marshal(map[string]interface{}{"path": path, "sync": true})
		resp, err := http.Post(*serverURL+"/api/v1/watch/directories", "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			b, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("add failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
		fmt.Fprintf(stdout, "Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			return errors.New("usage: vidgrep watch remove <path>")
		}
		path, err := filepath.Abs(fs.Arg(0))
		if err != nil {
			return err
		}
		req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/watch/directories?path="+url.QueryEscape(path), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("remove failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
		fmt.Fprintf(stdout, "Removed: %s\n", path)
	case "list":
		resp, err := http.Get(*serverURL + "/api/v1/watch/directories")
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("list failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("parse failed: %w", err)
		}
		for _, d := range out.Directories {
			fmt.Fprintln(stdout, d)
		}
	default:
		return fmt.Errorf("unknown watch subcommand: %s", sub)
	}
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `vidgrep - Search your videos with text

Usage:
  vidgrep search [flags] <query>           Find frames matching a text description
  vidgrep ingest [flags] <video...>        Sample, embed and index videos
  vidgrep ingest --dir <path>              Ingest every video under a directory
  vidgrep delete [flags] <video-id>        Remove all frames of a video
  vidgrep status [flags]                   Show index, catalog and disk usage
  vidgrep videos [flags]                   List ingested videos
  vidgrep server [flags]                   Start the HTTP server and directory watcher
  vidgrep watch <add|remove|list>          Manage the server's watched directories
  vidgrep snapshot <export|restore|upload|download|list>
                                           Back up or restore the index
  vidgrep version                          Show version
  vidgrep help                             Show this help

Common Flags:
  --config string    Config file path (default: ./config.yaml, then /usr/local/etc/vidgrep/config.yaml)
  --output string    Output format: text or json (default: text)

Search Flags:
  --server string    Query a running server instead of the local index
  --top-k int        Raw candidates before deduplication (default from config, 10)
  --limit int        Maximum results (default from config, 10)
  --window float     Deduplication window in seconds (default from config, 10)
  --no-render        Skip clip and thumbnail rendering

Server Flags:
  --debug            Enable debug logging

Examples:
  vidgrep ingest ~/Movies/holiday.mp4
  vidgrep ingest --dir ~/Movies
  vidgrep search "dog catching a frisbee"
  vidgrep search --output json sunset over water
  vidgrep delete holiday
  vidgrep snapshot export
  vidgrep watch add ~/Movies`)
}

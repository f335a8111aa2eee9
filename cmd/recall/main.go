// Package main is the recall CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/hyperjump/recall/internal/cli"
	"github.com/hyperjump/recall/internal/config"
	"github.com/hyperjump/recall/internal/metrics"
	"github.com/hyperjump/recall/internal/search"
	"github.com/hyperjump/recall/internal/storage"
	"github.com/hyperjump/recall/internal/vector"
	"github.com/hyperjump/recall/internal/worker"
	"github.com/hyperjump/recall/pkg/utils"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/recall/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development), and falls back to built-in
// defaults when neither file exists. RECALL_* environment variables are applied last.
// Returns the config and the path that was actually loaded ("" for built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	cfg, resolved, err := readConfig(path)
	if err != nil {
		return nil, "", err
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config: %w", err)
	}
	return cfg, resolved, nil
}

func readConfig(path string) (*config.Config, string, error) {
	if path != defaultConfigPath {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}
	if cwd, cwdErr := os.Getwd(); cwdErr == nil {
		fallback := filepath.Join(cwd, "config.yaml")
		if _, statErr := os.Stat(fallback); statErr == nil {
			cfg, loadErr := config.Load(fallback)
			if loadErr != nil {
				return nil, "", loadErr
			}
			return cfg, fallback, nil
		}
	}
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), "", nil
	}
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// A missing .env is normal.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "search":
		runSearch()
	case "worker":
		runWorker()
	case "collections":
		runCollections()
	case "init":
		runInit()
	case "version", "--version", "-v":
		fmt.Printf("recall version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// runWorker is the child side of process isolation: one request on stdin, one response on
// stdout, logs on stderr.
func runWorker() {
	fs := flag.NewFlagSet("worker", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		// Still answer: the parent is waiting for exactly one message.
		fmt.Fprintf(os.Stderr, "Failed to load config, using defaults: %v\n", err)
		cfg = config.Default()
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		logger = zap.NewNop()
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := search.NewEngine(search.WithLogger(logger), search.WithDefaultEfSearch(cfg.Search.DefaultEfSearch))
	if err := worker.Serve(ctx, os.Stdin, os.Stdout, engine, logger); err != nil {
		logger.Error("Worker failed to respond", zap.Error(err))
		stop()
		os.Exit(1)
	}
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: recall search [flags] <collection>[,<collection>...]\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
The query vector is a JSON array given with --vector, or read from --vector-file ("-" for stdin).
Several collections may be listed, separated by commas or spaces; each is searched independently.

Examples:
  recall search --vector '[0.12, -0.4, 0.9]' diary
  recall search --vector-file query.json --k 5 diary,travel
  embed "where did I go hiking" | recall search --vector-file - --output json diary
`)
}

// searchArgsReorder moves any flags (and their values) that appear after the collections
// to the front of the slice so that flag.Parse() sees them. Go's flag package stops at the
// first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// splitCollections flattens comma- and space-separated collection arguments, dropping
// blanks and duplicates while keeping order.
func splitCollections(args []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range args {
		for _, name := range strings.Split(a, ",") {
			name = strings.TrimSpace(name)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// readVector returns the query vector from the inline flag or the file flag.
func readVector(inline, file string, stdin io.Reader) ([]float32, error) {
	switch {
	case inline != "" && file != "":
		return nil, fmt.Errorf("use either --vector or --vector-file, not both")
	case inline != "":
		return cli.ParseVector([]byte(inline))
	case file == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return cli.ParseVector(data)
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read vector file: %w", err)
		}
		return cli.ParseVector(data)
	default:
		return nil, fmt.Errorf("a query vector is required (--vector or --vector-file)")
	}
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	vectorFlag := fs.String("vector", "", "query vector as a JSON array")
	vectorFile := fs.String("vector-file", "", `file holding the query vector as a JSON array ("-" for stdin)`)
	k := fs.Int("k", 0, "number of results per collection (default from config, 3)")
	ef := fs.Int("ef", 0, "HNSW efSearch (default from config, 150)")
	storePath := fs.String("store", "", "index store directory (default from config)")
	timeout := fs.Duration("timeout", 0, "per-query timeout (default from config)")
	isolation := fs.String("isolation", "", "execution unit: process or goroutine (default from config)")
	normalize := fs.Bool("normalize", false, "L2-normalize the query vector before searching")
	outputFormat := fs.String("output", "text", "output format: text (human-readable), compact (one result per line), or json (parseable)")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	collections := splitCollections(fs.Args())
	if len(collections) == 0 {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	queryVector, err := readVector(*vectorFlag, *vectorFile, os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid query vector: %v\n", err)
		os.Exit(1)
	}
	if *normalize {
		utils.NormalizeL2(queryVector)
	}

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *storePath != "" {
		cfg.Store.Path = *storePath
	}
	if *timeout > 0 {
		cfg.Worker.Timeout = *timeout
	}
	if *isolation != "" {
		cfg.Worker.Isolation = *isolation
	}
	if *ef > 0 {
		cfg.Search.DefaultEfSearch = *ef
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid settings: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	client, err := initializeClient(cfg, resolvedConfigPath, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results := client.SearchMany(ctx, collections, queryVector, *k)
	writeMetrics(cfg, logger)
	if err := cli.WriteSearchResults(os.Stdout, results, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if allFailed(results) {
		stop()
		os.Exit(1)
	}
}

func allFailed(results []worker.CollectionResult) bool {
	for _, r := range results {
		if r.Err == nil {
			return false
		}
	}
	return len(results) > 0
}

func writeMetrics(cfg *config.Config, logger *zap.Logger) {
	if cfg.Metrics.TextfilePath == "" {
		return
	}
	if err := metrics.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
		logger.Warn("Failed to write metrics textfile", zap.String("path", cfg.Metrics.TextfilePath), zap.Error(err))
	}
}

func runCollections() {
	fs := flag.NewFlagSet("collections", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	storePath := fs.String("store", "", "index store directory (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	kind := fs.String("kind", "", "only list collections of this index kind: hnsw or flat")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	root := *storePath
	if root == "" {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		root = cfg.Store.Path
	}

	infos, err := storage.List(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list collections: %v\n", err)
		os.Exit(1)
	}
	if infos, err = filterByKind(infos, *kind); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cli.WriteCollections(os.Stdout, infos, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// filterByKind keeps collections whose artifact is of the named kind. An empty name keeps all.
func filterByKind(infos []storage.Info, name string) ([]storage.Info, error) {
	if name == "" {
		return infos, nil
	}
	kind, err := vector.ParseKind(name)
	if err != nil {
		return nil, err
	}
	out := make([]storage.Info, 0, len(infos))
	for _, info := range infos {
		if info.Err == nil && info.Kind == kind {
			out = append(out, info)
		}
	}
	return out, nil
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "where to write the config file")
	storePath := fs.String("store", "", "index store directory to record (default: built-in)")
	force := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(os.Args[2:])

	if err := writeDefaultConfig(*configPath, *storePath, *force); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *configPath)
}

// writeDefaultConfig saves the built-in defaults to path, creating its directory.
// An existing file is left alone unless force is set.
func writeDefaultConfig(path, storePath string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	cfg := config.Default()
	if storePath != "" {
		cfg.Store.Path = storePath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return config.Save(path, cfg)
}

// newRunner picks the execution unit from cfg.Worker.Isolation. The child process is told
// which config file the parent resolved so both sides agree on defaults.
func newRunner(cfg *config.Config, configPath string, logger *zap.Logger) (worker.Runner, error) {
	switch cfg.Worker.Isolation {
	case config.IsolationGoroutine:
		engine := search.NewEngine(search.WithLogger(logger), search.WithDefaultEfSearch(cfg.Search.DefaultEfSearch))
		return worker.NewLocalRunner(engine, logger), nil
	case config.IsolationProcess:
		if cfg.Worker.Command != "" {
			return &worker.ProcessRunner{Command: cfg.Worker.Command, Args: cfg.Worker.Args, Logger: logger}, nil
		}
		var args []string
		if configPath != "" {
			args = append(args, "--config", configPath)
		}
		return worker.NewProcessRunner(logger, args...)
	default:
		return nil, fmt.Errorf("unknown isolation mode %q", cfg.Worker.Isolation)
	}
}

func initializeClient(cfg *config.Config, configPath string, logger *zap.Logger) (*worker.Client, error) {
	runner, err := newRunner(cfg, configPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize worker: %w", err)
	}
	logger.Debug("Client initialized",
		zap.String("store", cfg.Store.Path),
		zap.String("isolation", cfg.Worker.Isolation),
		zap.Duration("timeout", cfg.Worker.Timeout),
		zap.Int("max_concurrent", cfg.Worker.MaxConcurrent))
	return worker.NewClient(runner,
		worker.WithStorePath(cfg.Store.Path),
		worker.WithTimeout(cfg.Worker.Timeout),
		worker.WithMaxConcurrent(cfg.Worker.MaxConcurrent),
		worker.WithDefaults(cfg.Search.DefaultK, cfg.Search.MaxK, cfg.Search.DefaultEfSearch),
		worker.WithClientLogger(logger),
	), nil
}

func printUsage() {
	fmt.Println(`recall - Isolated nearest-neighbor retrieval over per-collection vector indexes

Usage:
  recall search [flags] <collection>[,...]   Search one or more collections
  recall collections [flags]                 List collections in the store
  recall init [flags]                        Write a default config file
  recall worker [flags]                      Serve one request from stdin (used internally)
  recall version                             Show version
  recall help                                Show this help

Search Flags:
  --config string       Config file path (default: /usr/local/etc/recall/config.yaml)
  --vector string       Query vector as a JSON array
  --vector-file string  File with the query vector ("-" for stdin)
  --k int               Results per collection (default from config, 3)
  --ef int              HNSW efSearch (default from config, 150)
  --store string        Index store directory (default from config)
  --timeout duration    Per-query timeout (default from config, 10s)
  --isolation string    process or goroutine (default from config, process)
  --normalize           L2-normalize the query vector
  --output string       Output format: text, compact, or json (default: text)

Collections Flags:
  --config string    Config file path
  --store string     Index store directory (default from config)
  --output string    Output format: text or json (default: text)
  --kind string      Only list hnsw or flat collections

Init Flags:
  --config string    Where to write the config (default: /usr/local/etc/recall/config.yaml)
  --store string     Index store directory to record
  --force            Overwrite an existing file

Environment:
  RECALL_STORE_PATH, RECALL_WORKER_TIMEOUT, RECALL_WORKER_ISOLATION,
  RECALL_WORKER_MAX_CONCURRENT, RECALL_DEBUG, RECALL_METRICS_TEXTFILE
  A .env file in the current directory is loaded first.

Examples:
  recall search --vector '[0.1, 0.2, 0.3]' diary
  recall search --vector-file q.json --k 5 --output json diary,travel
  recall collections --store ~/vectors`)
}

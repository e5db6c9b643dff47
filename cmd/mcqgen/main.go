// Package main is the mcqgen CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/mcqgen/internal/cli"
	"github.com/hyperjump/mcqgen/internal/config"
	"github.com/hyperjump/mcqgen/internal/embedding"
	"github.com/hyperjump/mcqgen/internal/generator"
	"github.com/hyperjump/mcqgen/internal/ingest"
	"github.com/hyperjump/mcqgen/internal/models"
	"github.com/hyperjump/mcqgen/internal/server"
	"github.com/hyperjump/mcqgen/internal/storage"
	"github.com/hyperjump/mcqgen/internal/watcher"
	"github.com/hyperjump/mcqgen/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/mcqgen/config.yaml"

// mockReply is what the mock chat model answers when llm.provider is "mock".
const mockReply = `[{"question":"Which process turns light into chemical energy?","options":{"A":"Photosynthesis","B":"Respiration","C":"Fermentation","D":"Transpiration"},"correct_answer":"A","explanation":"Photosynthesis stores light energy as glucose."}]`

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if it exists, so running from a project dir uses the project's config.
// A missing default config yields the built-in defaults relative to the current directory.
// Returns the config and the path that was actually loaded ("" for built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, "", err
		}
		fallback := filepath.Join(cwd, "config.yaml")
		if _, statErr := os.Stat(fallback); statErr == nil {
			cfg, loadErr := config.Load(fallback)
			if loadErr != nil {
				return nil, "", loadErr
			}
			return cfg, fallback, nil
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			return config.Default(cwd), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "ingest":
		runIngest()
	case "retrieve":
		runRetrieve()
	case "generate":
		runGenerate()
	case "serve", "server":
		runServe()
	case "watch":
		runWatch()
	case "sessions":
		runSessions()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("mcqgen version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// commonFlags are shared by every command that touches the index.
type commonFlags struct {
	configPath *string
	debug      *bool
	output     *string
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		configPath: fs.String("config", defaultConfigPath, "config file path"),
		debug:      fs.Bool("debug", false, "enable debug logging"),
		output:     fs.String("output", "text", "output format: text or json"),
	}
}

// setup loads the config, creates the logger and initializes components. It exits on failure.
func setup(flags commonFlags) (*config.Config, string, *zap.Logger, *Components, cli.OutputFormat) {
	format, err := cli.ParseOutputFormat(*flags.output)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	cfg, resolved, err := loadConfig(*flags.configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *flags.debug
	logger, err := utils.NewLogger(debugMode, cfg.LogDir)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, resolved, logger, components, format
}

// argsReorder moves any flags (and their values) that appear after the positional
// arguments to the front so that flag.Parse() sees them. Go's flag package stops at the
// first non-flag argument, so "mcqgen retrieve \"query\" -k 3" would otherwise leave -k unparsed.
func argsReorder(args []string) []string {
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

// buildQuery joins all positional args with spaces so multi-word queries work the same
// with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// expandInputs resolves files and directories to absolute file paths. Directories are
// walked for files with one of exts. Duplicates are dropped, order is kept.
func expandInputs(args []string, exts []string, recursive bool) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(abs)
			continue
		}
		found, err := ingest.CollectFiles(abs, exts, recursive)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			add(f)
		}
	}
	return files, nil
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	flags := addCommonFlags(fs)
	sessionID := fs.String("session", "", "session id (default: new session)")
	recursive := fs.Bool("recursive", true, "walk directories recursively")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: mcqgen ingest [flags] <file|dir>...")
		os.Exit(1)
	}
	cfg, _, logger, components, format := setup(flags)
	defer logger.Sync()
	defer components.Close()

	files, err := expandInputs(fs.Args(), cfg.Watch.Extensions, *recursive)
	if err != nil {
		fmt.Printf("Invalid input: %v\n", err)
		os.Exit(1)
	}
	report, err := components.Sessions.IngestFiles(context.Background(), *sessionID, files)
	if err != nil {
		fmt.Printf("Ingestion failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteIngestReport(os.Stdout, report, format); err != nil {
		fmt.Printf("Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runRetrieve() {
	fs := flag.NewFlagSet("retrieve", flag.ExitOnError)
	flags := addCommonFlags(fs)
	sessionID := fs.String("session", "", "session id")
	k := fs.Int("k", 0, "number of passages (default from config)")
	searchType := fs.String("search-type", "", "similarity or mmr (default from config)")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	query := buildQuery(fs.Args())
	if query == "" {
		fmt.Println("Usage: mcqgen retrieve [flags] <query>")
		os.Exit(1)
	}
	cfg, _, logger, components, format := setup(flags)
	defer logger.Sync()
	defer components.Close()

	id := *sessionID
	if id == "" && !cfg.Storage.SessionDirsOrDefault() {
		id = ingest.DefaultSessionID
	}
	if id == "" {
		fmt.Println("A -session is required when session directories are enabled")
		os.Exit(1)
	}
	req := models.RetrieveRequest{Query: query, K: *k}
	if err := req.Validate(cfg.Retriever.MaxK); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	opts := components.Sessions.RetrieverOptions().WithK(req.K)
	if *searchType != "" {
		opts.SearchType = *searchType
	}

	ctx := context.Background()
	start := time.Now()
	retriever, err := components.Sessions.Retriever(ctx, id, &opts)
	if err != nil {
		fmt.Printf("Retriever unavailable: %v\n", err)
		os.Exit(1)
	}
	passages, err := retriever.Retrieve(ctx, req.Query)
	if err != nil {
		fmt.Printf("Retrieval failed: %v\n", err)
		os.Exit(1)
	}
	resp := &models.RetrieveResponse{
		SessionID: id,
		Query:     req.Query,
		Passages:  passages,
		QueryTime: time.Since(start).Milliseconds(),
	}
	if err := cli.WritePassages(os.Stdout, resp, format); err != nil {
		fmt.Printf("Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runGenerate() {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	flags := addCommonFlags(fs)
	sessionID := fs.String("session", "", "session id (default: new session)")
	topic := fs.String("topic", "", "topic to focus on (default: core concepts)")
	count := fs.Int("count", 0, "number of questions (default from config)")
	outPath := fs.String("out", "", "questions file (default from config)")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 && *sessionID == "" {
		fmt.Println("Usage: mcqgen generate [flags] <file|dir>...")
		fmt.Println("       mcqgen generate -session <id> [flags]")
		os.Exit(1)
	}
	cfg, _, logger, components, format := setup(flags)
	defer logger.Sync()
	defer components.Close()
	if components.Model == nil {
		fmt.Println("Generation is not configured (llm.provider)")
		os.Exit(1)
	}

	ctx := context.Background()
	id := *sessionID
	if fs.NArg() > 0 {
		files, err := expandInputs(fs.Args(), cfg.Watch.Extensions, true)
		if err != nil {
			fmt.Printf("Invalid input: %v\n", err)
			os.Exit(1)
		}
		report, err := components.Sessions.IngestFiles(ctx, id, files)
		if err != nil {
			fmt.Printf("Ingestion failed: %v\n", err)
			os.Exit(1)
		}
		id = report.SessionID
		logger.Info("documents ingested",
			zap.String("session_id", id),
			zap.Int("chunks", report.Chunks),
			zap.Int("added", report.Added))
	}

	retriever, err := components.Sessions.Retriever(ctx, id, nil)
	if err != nil {
		fmt.Printf("Retriever unavailable: %v\n", err)
		os.Exit(1)
	}
	n := *count
	if n <= 0 {
		n = cfg.Generation.QuestionCount
	}
	gen, err := generator.New(retriever, components.Model, generator.WithCount(n), generator.WithLogger(logger))
	if err != nil {
		fmt.Printf("Generator unavailable: %v\n", err)
		os.Exit(1)
	}
	res, err := gen.Generate(ctx, *topic)
	if err != nil {
		fmt.Printf("Generation failed: %v\n", err)
		os.Exit(1)
	}
	components.Sessions.RecordGeneration(ctx, id, *topic, res)
	if err := cli.WriteGenerationResult(os.Stdout, res, format); err != nil {
		fmt.Printf("Output failed: %v\n", err)
		os.Exit(1)
	}
	if !res.IsOK() {
		os.Exit(1)
	}

	path := *outPath
	if path == "" {
		path = cfg.Generation.OutputFile
	}
	if err := generator.WriteQuestions(path, res.Questions); err != nil {
		fmt.Printf("Failed to write questions: %v\n", err)
		os.Exit(1)
	}
	if format == cli.OutputText {
		fmt.Printf("\nSession: %s\nSaved %d questions to %s\n", id, len(res.Questions), path)
	}
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	flags := addCommonFlags(fs)
	watchSession := fs.String("watch-session", "", "session that watched directories ingest into")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger, components, _ := setup(flags)
	defer logger.Sync()
	defer components.Close()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("index_type", cfg.Index.Type),
		zap.String("embedding_provider", cfg.Embedding.Provider))

	opts := []server.Option{}
	var watchSvc *watcher.Watcher
	if len(cfg.Watch.Directories) > 0 || *watchSession != "" {
		id, err := watchTarget(context.Background(), components.Sessions, *watchSession)
		if err != nil {
			logger.Fatal("Failed to resolve watch session", zap.Error(err))
		}
		watchSvc = newSessionWatcher(cfg, cfg.Watch.Directories, components.Sessions, id, logger)
		if err := watchSvc.Start(context.Background()); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
		watchSvc.SyncExistingFiles()
		opts = append(opts, server.WithWatch(watchSvc, resolvedConfigPath))
		logger.Info("watching directories", zap.String("session_id", id), zap.Strings("directories", watchSvc.Directories()))
	}

	srv := server.NewServer(components.Sessions, components.Model, cfg, logger, opts...)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	waitForSignal()

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	flags := addCommonFlags(fs)
	sessionID := fs.String("session", "", "session to ingest into (default: new session)")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	cfg, _, logger, components, _ := setup(flags)
	defer logger.Sync()
	defer components.Close()

	dirs := cfg.Watch.Directories
	if fs.NArg() > 0 {
		dirs = nil
		for _, d := range fs.Args() {
			abs, err := filepath.Abs(d)
			if err != nil {
				fmt.Printf("Invalid directory %s: %v\n", d, err)
				os.Exit(1)
			}
			dirs = append(dirs, abs)
		}
	}
	if len(dirs) == 0 {
		fmt.Println("Usage: mcqgen watch [flags] <dir>...  (or set watch.directories in config)")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	id, err := watchTarget(ctx, components.Sessions, *sessionID)
	if err != nil {
		fmt.Printf("Failed to resolve session: %v\n", err)
		os.Exit(1)
	}
	w := newSessionWatcher(cfg, dirs, components.Sessions, id, logger)
	if err := w.Start(ctx); err != nil {
		fmt.Printf("Failed to start watcher: %v\n", err)
		os.Exit(1)
	}
	defer w.Stop()
	w.SyncExistingFiles()
	fmt.Printf("Watching %s into session %s (Ctrl+C to stop)\n", strings.Join(w.Directories(), ", "), id)

	waitForSignal()
}

// watchTarget returns id, or a new session when id is empty.
func watchTarget(ctx context.Context, sessions *ingest.Service, id string) (string, error) {
	if id != "" {
		return id, nil
	}
	sess, err := sessions.CreateSession(ctx)
	if err != nil {
		return "", err
	}
	return sess.ID, nil
}

// newSessionWatcher returns a watcher whose batches are ingested into session id.
func newSessionWatcher(cfg *config.Config, dirs []string, sessions *ingest.Service, id string, logger *zap.Logger) *watcher.Watcher {
	onFiles := func(paths []string) {
		report, err := sessions.IngestFiles(context.Background(), id, paths)
		if err != nil {
			logger.Warn("watch ingest failed", zap.String("session_id", id), zap.Strings("paths", paths), zap.Error(err))
			return
		}
		logger.Info("watch ingest",
			zap.String("session_id", id),
			zap.Int("files", len(report.Files)),
			zap.Int("added", report.Added))
	}
	return watcher.NewWatcher(dirs, cfg.Watch.Extensions, cfg.Watch.RecursiveOrDefault(), onFiles,
		watcher.WithLogger(logger),
		watcher.WithDebounce(cfg.Watch.Debounce))
}

func runSessions() {
	fs := flag.NewFlagSet("sessions", flag.ExitOnError)
	flags := addCommonFlags(fs)
	offset := fs.Int("offset", 0, "skip this many sessions")
	limit := fs.Int("limit", 20, "maximum sessions to list")
	_ = fs.Parse(os.Args[2:])

	_, _, logger, components, format := setup(flags)
	defer logger.Sync()
	defer components.Close()

	list, err := components.Sessions.Sessions(context.Background(), *offset, *limit)
	if err != nil {
		fmt.Printf("Listing sessions failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSessions(os.Stdout, list, format); err != nil {
		fmt.Printf("Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	flags := addCommonFlags(fs)
	sessionID := fs.String("session", "", "session id")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	cfg, _, logger, components, format := setup(flags)
	defer logger.Sync()
	defer components.Close()

	id := *sessionID
	if id == "" && fs.NArg() > 0 {
		id = fs.Arg(0)
	}
	if id == "" && !cfg.Storage.SessionDirsOrDefault() {
		id = ingest.DefaultSessionID
	}
	if id == "" {
		fmt.Println("Usage: mcqgen status [flags] <session-id>")
		os.Exit(1)
	}
	st, err := components.Sessions.Status(context.Background(), id)
	if err != nil {
		fmt.Printf("Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStatus(os.Stdout, st, format); err != nil {
		fmt.Printf("Output failed: %v\n", err)
		os.Exit(1)
	}
}

func waitForSignal() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
}

// Components holds initialized services.
type Components struct {
	Embedder embedding.Embedder
	Catalog  *storage.SQLiteCatalog
	Sessions *ingest.Service
	Model    generator.ChatModel
}

func (c *Components) Close() {
	if c.Sessions != nil {
		_ = c.Sessions.Close()
	}
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	if err := config.LoadEnv(); err != nil {
		logger.Warn("failed to load .env", zap.Error(err))
	}

	emb, err := newEmbedder(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c := &Components{Embedder: emb}

	model, err := newChatModel(cfg)
	if err != nil {
		// Retrieval still works without a chat model.
		logger.Warn("chat model unavailable, generation disabled", zap.Error(err))
	} else {
		c.Model = model
	}

	opts := []ingest.Option{ingest.WithLogger(logger)}
	if cfg.Storage.CatalogPath != "" {
		catalog, err := storage.NewSQLiteCatalog(cfg.Storage.CatalogPath)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize catalog: %w", err)
		}
		c.Catalog = catalog
		opts = append(opts, ingest.WithCatalog(catalog))
	}

	sessions, err := ingest.NewService(ingest.ConfigFrom(cfg), emb, opts...)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize sessions: %w", err)
	}
	c.Sessions = sessions
	return c, nil
}

func newEmbedder(cfg *config.Config, logger *zap.Logger) (embedding.Embedder, error) {
	var apiKey string
	if cfg.Embedding.Provider == config.ProviderMistral {
		key, err := config.ResolveAPIKey(cfg.Embedding.APIKeyEnv)
		if err != nil {
			return nil, err
		}
		apiKey = key
	}
	return embedding.New(embedding.Config{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		BaseURL:    cfg.Embedding.BaseURL,
		APIKey:     apiKey,
		Dimensions: cfg.Embedding.Dimensions,
		BatchSize:  cfg.Embedding.BatchSize,
		MaxRetries: cfg.Embedding.MaxRetries,
		Timeout:    cfg.Embedding.Timeout,
		ModelPath:  cfg.Embedding.ModelPath,
		MaxTokens:  cfg.Embedding.MaxTokens,
		CacheSize:  cfg.Embedding.CacheSize,

		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
	}, logger)
}

func newChatModel(cfg *config.Config) (generator.ChatModel, error) {
	switch cfg.LLM.Provider {
	case config.ProviderMock:
		return &generator.MockChatModel{Reply: mockReply}, nil
	case config.ProviderMistral:
		key, err := config.ResolveAPIKey(cfg.LLM.APIKeyEnv)
		if err != nil {
			return nil, err
		}
		return generator.NewMistralChat(generator.MistralConfig{
			APIKey:      key,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			MaxRetries:  cfg.LLM.MaxRetries,
			Timeout:     cfg.LLM.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

func printUsage() {
	fmt.Println(`mcqgen - Multiple-choice question generator over your documents

Usage:
  mcqgen ingest [flags] <file|dir>...    Ingest documents into a session index
  mcqgen retrieve [flags] <query>        Retrieve passages from a session
  mcqgen generate [flags] <file|dir>...  Ingest documents and generate questions
  mcqgen serve [flags]                   Start the HTTP server
  mcqgen watch [flags] <dir>...          Ingest new and changed files as they appear
  mcqgen sessions [flags]                List sessions
  mcqgen status [flags] <session-id>     Show a session's index status
  mcqgen version                         Show version
  mcqgen help                            Show this help

Common Flags:
  --config string    Config file path (default: ./config.yaml, then /usr/local/etc/mcqgen/config.yaml)
  --debug            Enable debug logging
  --output string    Output format: text or json (default: text)

Ingest Flags:
  --session string   Session id (default: new session)
  --recursive        Walk directories recursively (default: true)

Retrieve Flags:
  --session string      Session id
  --k int               Number of passages (default from config)
  --search-type string  similarity or mmr (default from config)

Generate Flags:
  --session string   Session id (default: new session)
  --topic string     Topic to focus on (default: core concepts)
  --count int        Number of questions (default from config)
  --out string       Questions file (default: ./mcqs.json)

Serve Flags:
  --watch-session string   Session that watched directories ingest into

Watch Flags:
  --session string   Session to ingest into (default: new session)

Sessions Flags:
  --offset int   Skip this many sessions
  --limit int    Maximum sessions to list (default: 20)

Examples:
  mcqgen generate --topic photosynthesis notes.pdf slides.docx
  mcqgen ingest ./lectures
  mcqgen retrieve --session session_20250101_120000_ab12cd34 -k 3 "light reactions"
  mcqgen generate --session session_20250101_120000_ab12cd34 --count 5
  mcqgen watch --session course ./inbox
  mcqgen serve
  mcqgen sessions --output json`)
}

package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"golang.org/x/sync/errgroup"

	"github.com/zombor/cardscan/internal/capture"
	"github.com/zombor/cardscan/internal/recording"
	"github.com/zombor/cardscan/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("cardscan")
	var (
		port           = fs.IntLong("port", 8080, "HTTP server port")
		dbPath         = fs.StringLong("db", "cardscan.db", "Database file path")
		storagePath    = fs.StringLong("storage", "./captures", "Card image directory")
		recognizerType = fs.StringLong("recognizer", "gemini", "Recognizer type: 'gemini' or 'ollama'")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl)")
		scanInterval   = fs.DurationLong("scan-interval", scanning.DefaultRemoteOptions().Interval, "Minimum time between recognizer calls")
		minFocus       = fs.Float64Long("min-focus", scanning.MinFocusScore, "Focus score below which frames trigger a refocus")
		recordingPath  = fs.StringLong("recording", "", "Replay a recorded scan archive (zip) through the scanner")
		replayTimeout  = fs.DurationLong("replay-timeout", time.Minute, "Give up on a recording after this long")
		detectOnly     = fs.BoolLong("detect-only", "Report a card as soon as its edges are found")
		noExpiry       = fs.BoolLong("no-expiry", "Do not read the expiry date")
		authUser       = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass       = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("CARDSCAN"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	slog.Info("Initializing database...")
	db, err := capture.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	slog.Info("Initializing storage...")
	store, err := capture.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	service := capture.NewService(db, store)
	server := capture.NewServer(service, capture.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	})
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(ctx, fmt.Sprintf(":%d", *port))
	})

	if *recordingPath != "" {
		opts := scanning.DefaultRemoteOptions()
		opts.Interval = *scanInterval
		opts.MinFocusScore = *minFocus

		recognizer, err := newRecognizer(*recognizerType, *geminiKey, *geminiModel, *ollamaURL, *ollamaModel, opts)
		if err != nil {
			slog.Error("Failed to initialize recognizer", "type", *recognizerType, "error", err)
			os.Exit(1)
		}
		defer recognizer.Close()

		cfg := scanning.DefaultConfig()
		cfg.MinFocusScore = *minFocus
		cfg.DetectOnly = *detectOnly
		cfg.ScanExpiry = !*noExpiry

		g.Go(func() error {
			return replay(ctx, *recordingPath, *replayTimeout, recognizer, service, cfg)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Exiting", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutting down...")
}

func newRecognizer(kind, geminiKey, geminiModel, ollamaURL, ollamaModel string, opts scanning.RemoteOptions) (scanning.Recognizer, error) {
	switch kind {
	case "gemini":
		apiKey := geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini recognizer...", "model", geminiModel)
		return scanning.NewGemini(apiKey, geminiModel, opts)
	case "ollama":
		slog.Info("Initializing Ollama recognizer...", "url", ollamaURL, "model", ollamaModel)
		return scanning.NewOllama(ollamaURL, ollamaModel, opts)
	}
	return nil, fmt.Errorf("invalid recognizer type %q: want gemini or ollama", kind)
}

// replay plays every recording in the archive through a scan session and
// records what each one detects
func replay(ctx context.Context, path string, timeout time.Duration, recognizer scanning.Recognizer, service *capture.Service, cfg scanning.Config) error {
	recordings, err := recording.Open(path)
	if err != nil {
		return err
	}

	for _, rec := range recordings {
		playback, err := recording.NewPlayback(ctx, rec)
		if err != nil {
			return err
		}
		width, height := playback.Size()
		cfg.PreviewWidth, cfg.PreviewHeight = width, height

		recorder := capture.NewRecorder(service)
		session := scanning.NewSession(cfg, playback.Opener(), recognizer, recorder)
		recorder.Attach(session)

		slog.Info("Replaying recording", "dir", rec.Dir, "frames", rec.Len(), "width", width, "height", height)
		if err := session.Start(ctx); err != nil {
			return fmt.Errorf("starting session for %s: %w", rec.Dir, err)
		}

		select {
		case record := <-recorder.Records():
			slog.Info("Recording scanned",
				"dir", rec.Dir,
				"capture", record.ID,
				"type", record.CardType,
				"last_four", record.LastFour)
		case <-time.After(timeout):
			slog.Warn("No card found in recording", "dir", rec.Dir, "analytics", session.Analytics())
		case <-ctx.Done():
			session.End()
			return ctx.Err()
		}
		session.End()

		delivered, dropped := playback.Stats()
		slog.Info("Playback finished", "dir", rec.Dir, "delivered", delivered, "dropped", dropped)
	}
	return nil
}

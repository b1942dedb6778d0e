package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/iconidentify/vidgrab/internal/config"
	"github.com/iconidentify/vidgrab/internal/credentials"
	"github.com/iconidentify/vidgrab/internal/domain"
	"github.com/iconidentify/vidgrab/internal/extractor"
	"github.com/iconidentify/vidgrab/internal/pacing"
	"github.com/iconidentify/vidgrab/internal/repository"
	"github.com/iconidentify/vidgrab/internal/service"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

const usage = `Usage: vidgrab [-config path] <command> [args]

Commands:
  info <url>                 print video metadata and formats as JSON
  fetch [-o dir] [-f id] <url>  download a video and copy it to dir
  auth [-status|-clear]      store the bearer credential for privileged hosts
  sweep                      run one retention pass over the download directory
`

func main() {
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("vidgrab %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nCancelled")
		cancel()
	}()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "info":
		err = runInfo(ctx, cfg, logger, args)
	case "fetch":
		err = runFetch(ctx, cfg, logger, args)
	case "auth":
		err = runAuth(cfg, logger, args)
	case "sweep":
		err = runSweep(ctx, cfg, logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		if ctx.Err() != nil {
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the collaborators shared by the commands.
type app struct {
	store *repository.ArtifactStore
	index repository.ArtifactIndex
	creds *credentials.Store
	video *service.VideoService
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	store, err := repository.NewArtifactStore(cfg.Storage.DownloadDir)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureDirectory(); err != nil {
		return nil, err
	}

	index, err := repository.OpenArtifactIndex(ctx, cfg.Index)
	if err != nil {
		return nil, fmt.Errorf("open artifact index: %w", err)
	}

	creds := credentials.NewStore(cfg.Credentials, nil, logger)
	engine := extractor.NewClient(cfg.Extractor, logger,
		extractor.WithRequestPacer(pacing.NewRandom(cfg.Extractor.RequestSleepMin, cfg.Extractor.RequestSleepMax)),
		extractor.WithCredentials(creds, cfg.Credentials.PrivilegedHosts),
	)

	// Interactive use skips the pre-download pause.
	video := service.NewVideoService(service.VideoServiceConfig{
		Engine: engine,
		Store:  store,
		Index:  index,
	}, logger)

	return &app{store: store, index: index, creds: creds, video: video}, nil
}

func (a *app) Close() error {
	return a.index.Close()
}

func runInfo(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: vidgrab info <url>")
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	info, err := a.video.GetInfo(ctx, args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

func runFetch(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	outDir := fs.String("o", ".", "Directory to copy the downloaded file into")
	formatID := fs.String("f", "", "Format ID to download (default: best)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: vidgrab fetch [-o dir] [-f format_id] <url>")
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintln(os.Stderr, "Downloading...")
	result, err := a.video.Download(ctx, domain.DownloadRequest{URL: fs.Arg(0), FormatID: *formatID})
	if err != nil {
		return err
	}

	dest := filepath.Join(*outDir, result.Filename)
	if err := copyWithProgress(a.video, result.Filename, dest); err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Title: %s\n", result.Title)
	fmt.Printf("File: %s\n", dest)
	fmt.Printf("Size: %.2f MB\n", float64(result.Size)/(1024*1024))
	return nil
}

func copyWithProgress(video *service.VideoService, filename, dest string) error {
	src, info, err := video.OpenArtifact(filename)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}

	bar := progressbar.DefaultBytes(info.Size(), "copying")
	if _, err := io.Copy(io.MultiWriter(out, bar), src); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", filename, err)
	}
	return out.Close()
}

func runAuth(cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("auth", flag.ContinueOnError)
	status := fs.Bool("status", false, "Show whether a credential is stored")
	clearCred := fs.Bool("clear", false, "Remove the stored credential")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store := credentials.NewStore(cfg.Credentials, nil, logger)

	switch {
	case *status:
		st := store.Status(context.Background())
		if !st.Authenticated {
			fmt.Println("Not authenticated")
			return nil
		}
		fmt.Printf("Authenticated (updated %s)\n", st.UpdatedAt.Format("2006-01-02 15:04:05"))
		return nil
	case *clearCred:
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Println("Credential removed")
		return nil
	}

	token, err := promptSecret("Bearer token: ")
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	if token == "" {
		return errors.New("token must not be empty")
	}
	if err := store.Save(token); err != nil {
		return err
	}
	fmt.Printf("Credential saved to %s\n", cfg.Credentials.Path)
	return nil
}

// promptSecret prompts for a value without echoing
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return "", err
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(string(secret)), nil
	}

	// Fallback for non-terminal input
	reader := bufio.NewReader(os.Stdin)
	secret, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(secret), nil
}

func runSweep(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := service.NewRetentionService(cfg.Retention, a.store, a.index, nil, logger).Sweep(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Scanned: %d\n", report.Scanned)
	fmt.Printf("Deleted: %d (%.2f MB freed)\n", len(report.Deleted), float64(report.FreedBytes)/(1024*1024))
	for _, name := range report.Deleted {
		fmt.Printf("  - %s\n", name)
	}
	fmt.Printf("Index entries reconciled: %d\n", report.Reconciled)
	fmt.Printf("Remaining: %d (%.2f MB)\n", report.Remaining, float64(report.RemainingBytes)/(1024*1024))
	return nil
}

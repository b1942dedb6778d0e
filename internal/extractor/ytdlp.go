// Package extractor wraps the yt-dlp executable behind a fixed invocation
// profile and converts its failures into domain errors.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/iconidentify/vidgrab/internal/config"
	"github.com/iconidentify/vidgrab/internal/domain"
	"github.com/iconidentify/vidgrab/internal/pacing"
)

// Headers sent with every engine request, alongside the user agent.
var defaultHeaders = [][2]string{
	{"Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
	{"Accept-Language", "en-us,en;q=0.5"},
	{"Accept-Encoding", "gzip,deflate"},
	{"Accept-Charset", "ISO-8859-1,utf-8;q=0.7,*;q=0.7"},
	{"Keep-Alive", "300"},
	{"Connection", "keep-alive"},
}

// CredentialSource supplies a bearer token for privileged hosts.
// It returns domain.ErrNotAuthenticated when no token is available.
type CredentialSource interface {
	Token(ctx context.Context) (string, error)
}

// Client runs yt-dlp.
type Client struct {
	cfg          config.ExtractorConfig
	runner       CommandRunner
	requestPacer pacing.Pacer
	creds        CredentialSource
	privileged   []string
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRunner replaces the command runner.
func WithRunner(r CommandRunner) Option {
	return func(c *Client) { c.runner = r }
}

// WithRequestPacer replaces the strategy that picks the per-request sleep.
func WithRequestPacer(p pacing.Pacer) Option {
	return func(c *Client) { c.requestPacer = p }
}

// WithCredentials attaches a credential source used for the given hosts.
func WithCredentials(src CredentialSource, hosts []string) Option {
	return func(c *Client) {
		c.creds = src
		c.privileged = hosts
	}
}

// NewClient creates a yt-dlp client.
func NewClient(cfg config.ExtractorConfig, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		cfg:          cfg,
		runner:       ExecRunner{},
		requestPacer: pacing.NewRandom(cfg.RequestSleepMin, cfg.RequestSleepMax),
		logger:       logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchInfo queries metadata without downloading media.
func (c *Client) FetchInfo(ctx context.Context, videoURL string) (*Metadata, error) {
	cmd := c.command().
		DumpSingleJSON().
		SkipDownload()

	return c.run(ctx, "info", cmd, videoURL)
}

// Download fetches formatID (or "best") of videoURL into outputTemplate and
// returns the engine's metadata for the downloaded item.
func (c *Client) Download(ctx context.Context, videoURL, formatID, outputTemplate string) (*Metadata, error) {
	if formatID == "" {
		formatID = domain.DefaultFormatID
	}
	cmd := c.command().
		Format(formatID).
		Output(outputTemplate).
		PrintJSON().
		NoSimulate().
		NoProgress()

	return c.run(ctx, "download", cmd, videoURL)
}

func (c *Client) run(ctx context.Context, op string, cmd *ytdlp.Command, videoURL string) (*Metadata, error) {
	start := time.Now()

	var args []string
	if c.cfg.GeoBypassCountry != "" {
		args = append(args, "--geo-bypass-country", c.cfg.GeoBypassCountry)
	}
	args = append(args, "--", videoURL)

	execCmd := cmd.BuildCommand(ctx, args...)
	if conf := c.secretConfig(ctx, videoURL); conf != "" {
		execCmd.Args = insertBefore(execCmd.Args, "--", "--config-locations", "-")
		execCmd.Stdin = strings.NewReader(conf)
	}

	stdout, stderr, runErr := c.runner.Run(execCmd)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%s: %w", op, ctxErr)
	}

	meta, parseErr := parseMetadata(stdout)
	if parseErr != nil {
		output := string(stderr)
		if strings.TrimSpace(output) == "" && runErr != nil {
			output = runErr.Error()
		}
		if strings.TrimSpace(output) == "" {
			output = parseErr.Error()
		}
		err := Classify(output)
		c.logger.Warn("extraction engine failed",
			"op", op,
			"kind", domain.KindOf(err),
			"error", err,
			"duration", time.Since(start),
		)
		return nil, err
	}

	if runErr != nil {
		// --ignore-errors lets the engine exit non-zero after producing a result.
		meta.EngineError = engineMessage(string(stderr))
		c.logger.Warn("extraction engine reported errors",
			"op", op,
			"error", runErr,
			"stderr", meta.EngineError,
		)
	}

	c.logger.Debug("extraction engine finished", "op", op, "duration", time.Since(start))
	return meta, nil
}

// command builds the invocation profile shared by every operation.
func (c *Client) command() *ytdlp.Command {
	cmd := ytdlp.New().
		SetExecutable(c.cfg.BinaryPath).
		NoPlaylist().
		IgnoreErrors().
		NoWarnings().
		NoMtime().
		Retries(strconv.Itoa(c.cfg.Retries)).
		FragmentRetries(strconv.Itoa(c.cfg.FragmentRetries)).
		ExtractorRetries(strconv.Itoa(c.cfg.ExtractorRetries))

	if c.cfg.SleepMax > 0 {
		cmd = cmd.
			SleepInterval(c.cfg.SleepMin.Seconds()).
			MaxSleepInterval(c.cfg.SleepMax.Seconds())
	}
	if c.requestPacer != nil {
		if d := c.requestPacer.Delay(); d > 0 {
			cmd = cmd.SleepRequests(d.Seconds())
		}
	}
	if c.cfg.UserAgent != "" {
		cmd = cmd.AddHeaders("User-Agent:" + c.cfg.UserAgent)
	}
	for _, h := range defaultHeaders {
		cmd = cmd.AddHeaders(h[0] + ":" + h[1])
	}
	return cmd
}

// secretConfig returns engine options that must stay off the command line,
// in the engine's config file syntax. They are fed on stdin.
func (c *Client) secretConfig(ctx context.Context, videoURL string) string {
	token := c.tokenFor(ctx, videoURL)
	if token == "" {
		return ""
	}
	if strings.ContainsAny(token, "'\r\n") {
		c.logger.Warn("stored credential contains characters the engine config cannot carry, proceeding anonymously")
		return ""
	}
	return "--add-headers 'Authorization:Bearer " + token + "'\n"
}

func insertBefore(args []string, marker string, extra ...string) []string {
	for i, a := range args {
		if a == marker {
			out := make([]string, 0, len(args)+len(extra))
			out = append(out, args[:i]...)
			out = append(out, extra...)
			return append(out, args[i:]...)
		}
	}
	return append(args, extra...)
}

// tokenFor returns the bearer token when videoURL targets a privileged host
// and a credential is available.
func (c *Client) tokenFor(ctx context.Context, videoURL string) string {
	if c.creds == nil || !c.isPrivileged(videoURL) {
		return ""
	}
	token, err := c.creds.Token(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotAuthenticated) {
			c.logger.Warn("credential lookup failed", "error", err)
		}
		return ""
	}
	return token
}

func (c *Client) isPrivileged(videoURL string) bool {
	u, err := url.Parse(videoURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, h := range c.privileged {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

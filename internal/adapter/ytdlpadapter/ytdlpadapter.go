package ytdlpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/jgivc/lumy/internal/common"
	"github.com/jgivc/lumy/internal/config"
	"github.com/jgivc/lumy/internal/entity"
)

const (
	defaultExt       = "mp4"
	codecNone        = "none"
	maxStderrLen     = 1024
	processWaitDelay = 5 * time.Second
)

// Runner starts an external process, writes its stdout into stdout and waits.
type Runner interface {
	Run(ctx context.Context, name string, args []string, stdout io.Writer) error
}

// ExecError is a failed process run with its captured stderr.
type ExecError struct {
	Err    error
	Stderr string
}

func (e *ExecError) Error() string {
	if e.Stderr == "" {
		return e.Err.Error()
	}

	// A killed run leaves partial stderr that does not say why it stopped.
	if errors.Is(e.Err, context.DeadlineExceeded) || errors.Is(e.Err, context.Canceled) {
		return e.Stderr + ": " + e.Err.Error()
	}

	return e.Stderr
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

type execRunner struct{}

func NewExecRunner() Runner {
	return execRunner{}
}

// Run kills the process when ctx is done, which covers both the deadline and a
// client that went away.
func (execRunner) Run(ctx context.Context, name string, args []string, stdout io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = processWaitDelay
	cmd.Stdout = stdout

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}

		return &ExecError{Err: err, Stderr: tail(strings.TrimSpace(stderr.String()), maxStderrLen)}
	}

	return nil
}

type ytdlpFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	FormatNote     string  `json:"format_note"`
	Height         float64 `json:"height"`
	Filesize       float64 `json:"filesize"`
	FilesizeApprox float64 `json:"filesize_approx"`
	MIMEType       string  `json:"mime_type"`
}

type ytdlpThumbnail struct {
	URL string `json:"url"`
}

type ytdlpInfo struct {
	Type       string           `json:"_type"`
	Title      string           `json:"title"`
	Thumbnail  string           `json:"thumbnail"`
	Thumbnails []ytdlpThumbnail `json:"thumbnails"`
	Duration   float64          `json:"duration"`
	Formats    []ytdlpFormat    `json:"formats"`
}

type ytdlpAdapter struct {
	runner Runner
	cfg    *config.DownloadConfig
	log    *slog.Logger
}

func NewYtdlpAdapter(runner Runner, cfg *config.DownloadConfig, log *slog.Logger) *ytdlpAdapter {
	return &ytdlpAdapter{
		runner: runner,
		cfg:    cfg,
		log:    log.With(slog.String("item", "YtdlpAdapter")),
	}
}

// Probe fetches metadata and the raw format list without downloading media.
func (a *ytdlpAdapter) Probe(ctx context.Context, bin *entity.BinarySet, url string, cred *entity.ResolvedCredential) (*entity.MediaProbe, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.ProbeTimeout)
	defer cancel()

	args := []string{"-J", "--no-warnings", "--skip-download"}
	args = append(args, a.cfg.ExtractorArgs...)
	args = append(args, cred.Args...)
	args = append(args, url)

	var stdout bytes.Buffer
	if err := a.runner.Run(ctx, bin.ExtractorPath, args, &stdout); err != nil {
		a.log.Error("Cannot probe url", slog.String("url", url), slog.Any("error", err))

		return nil, probeError(err)
	}

	var info ytdlpInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, common.NewError(common.KindUpstream, "Cannot parse extractor output.", err)
	}

	return toMediaProbe(&info), nil
}

// Stream writes exactly the selected format to w.
func (a *ytdlpAdapter) Stream(ctx context.Context, bin *entity.BinarySet, url, formatID string, cred *entity.ResolvedCredential, w io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.DownloadTimeout)
	defer cancel()

	args := []string{"-f", formatID, "-o", "-", "--no-part", "--no-warnings", "--quiet"}

	return a.runner.Run(ctx, bin.ExtractorPath, a.commonArgs(args, bin, url, cred), w)
}

// Execute runs the extractor with raw arguments, e.g. a merge into a file.
func (a *ytdlpAdapter) Execute(ctx context.Context, bin *entity.BinarySet, url string, cred *entity.ResolvedCredential, rawArgs []string) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.DownloadTimeout)
	defer cancel()

	args := append([]string{"--no-warnings", "--quiet"}, rawArgs...)

	return a.runner.Run(ctx, bin.ExtractorPath, a.commonArgs(args, bin, url, cred), io.Discard)
}

func (a *ytdlpAdapter) commonArgs(args []string, bin *entity.BinarySet, url string, cred *entity.ResolvedCredential) []string {
	if bin.HasTranscoder() {
		args = append(args, "--ffmpeg-location", bin.TranscoderPath)
	}

	args = append(args, a.cfg.ExtractorArgs...)
	args = append(args, cred.Args...)

	return append(args, url)
}

func probeError(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "Unsupported URL") || strings.Contains(msg, "Invalid URL") {
		return common.NewError(common.KindBadRequest, msg, err)
	}

	return common.NewError(common.KindUpstream, msg, err)
}

func toMediaProbe(info *ytdlpInfo) *entity.MediaProbe {
	probe := &entity.MediaProbe{
		Title:           info.Title,
		ThumbnailURL:    info.Thumbnail,
		DurationSeconds: info.Duration,
		IsPlaylist:      info.Type == "playlist" || info.Type == "multi_video",
	}

	if probe.ThumbnailURL == "" && len(info.Thumbnails) > 0 {
		probe.ThumbnailURL = info.Thumbnails[0].URL
	}

	seen := make(map[string]struct{}, len(info.Formats))
	for _, f := range info.Formats {
		if f.FormatID == "" {
			continue
		}

		if _, exists := seen[f.FormatID]; exists {
			continue
		}
		seen[f.FormatID] = struct{}{}

		probe.Formats = append(probe.Formats, toStreamFormat(&f))
	}

	return probe
}

func toStreamFormat(f *ytdlpFormat) *entity.StreamFormat {
	sf := &entity.StreamFormat{
		ID:           f.FormatID,
		Ext:          f.Ext,
		MIMEType:     f.MIMEType,
		QualityLabel: f.FormatNote,
		HasVideo:     hasCodec(f.VCodec),
		HasAudio:     hasCodec(f.ACodec),
	}

	if sf.Ext == "" {
		sf.Ext = defaultExt
	}

	if sf.QualityLabel == "" && f.Height > 0 {
		sf.QualityLabel = fmt.Sprintf("%dp", int(f.Height))
	}

	sf.ApproxSizeBytes = int64(f.Filesize)
	if sf.ApproxSizeBytes == 0 {
		sf.ApproxSizeBytes = int64(f.FilesizeApprox)
	}

	return sf
}

func hasCodec(codec string) bool {
	return codec != "" && codec != codecNone
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[len(s)-n:]
}

package download

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jgivc/lumy/internal/common"
	"github.com/jgivc/lumy/internal/entity"
	"github.com/jgivc/lumy/internal/util"
	"github.com/jgivc/lumy/internal/validator"
	"github.com/spf13/afero"
)

const (
	serviceName = "download"

	mergeDirPrefix = "lumy-merge-"
	mergeExt       = "mp4"
	mergeMIMEType  = "video/mp4"
)

type Stage int

const (
	StageValidating Stage = iota
	StageResolvingCredential
	StageEnsuringBinary
	StageProbing
	StageSelectingFormat
	StageStreaming
	StageMerging
)

func (s Stage) String() string {
	return [...]string{"Validating", "ResolvingCredential", "EnsuringBinary", "Probing", "SelectingFormat", "Streaming", "Merging"}[s]
}

type CredentialResolver interface {
	Resolve(ctx context.Context, in entity.CredentialInput) (*entity.ResolvedCredential, error)
}

type BinaryProvisioner interface {
	Ensure(ctx context.Context) (*entity.BinarySet, error)
}

type Extractor interface {
	Probe(ctx context.Context, bin *entity.BinarySet, url string, cred *entity.ResolvedCredential) (*entity.MediaProbe, error)
	Stream(ctx context.Context, bin *entity.BinarySet, url, formatID string, cred *entity.ResolvedCredential, w io.Writer) error
	Execute(ctx context.Context, bin *entity.BinarySet, url string, cred *entity.ResolvedCredential, rawArgs []string) error
}

type downloadService struct {
	fs        afero.Fs
	creds     CredentialResolver
	bins      BinaryProvisioner
	extractor Extractor
	tempDir   string
	log       *slog.Logger
}

func NewDownloadService(creds CredentialResolver, bins BinaryProvisioner, extractor Extractor, tempDir string, log *slog.Logger) *downloadService {
	return NewDownloadServiceWithFS(afero.NewOsFs(), creds, bins, extractor, tempDir, log)
}

func NewDownloadServiceWithFS(fs afero.Fs, creds CredentialResolver, bins BinaryProvisioner, extractor Extractor, tempDir string, log *slog.Logger) *downloadService {
	return &downloadService{
		fs:        fs,
		creds:     creds,
		bins:      bins,
		extractor: extractor,
		tempDir:   tempDir,
		log:       log.With(slog.String("service", serviceName)),
	}
}

// Download runs one request through the pipeline and returns the fully
// buffered media. The resolved credential is released on every exit path.
func (d *downloadService) Download(ctx context.Context, req *entity.DownloadRequest) (*entity.DownloadResult, error) {
	log := d.log.With(slog.String("format_id", req.FormatID))
	stage := StageValidating

	fail := func(err error) (*entity.DownloadResult, error) {
		log.Error("Cannot download", slog.String("stage", stage.String()), slog.Any("error", err))

		return nil, err
	}

	url, platform, err := validator.ParseURL(req.URL)
	if err != nil {
		return fail(err)
	}

	if err := validator.ValidateFormatID(req.FormatID); err != nil {
		return fail(err)
	}

	log = log.With(slog.String("url", url))

	stage = StageResolvingCredential
	log.Debug("Enter stage", slog.String("stage", stage.String()))

	cred, err := d.creds.Resolve(ctx, entity.CredentialInput{
		Cookies:            req.Cookies,
		CookiesFromBrowser: req.CookiesFromBrowser,
	})
	if err != nil {
		return fail(common.WithKind(common.KindBadRequest, err))
	}
	defer cred.Release()

	stage = StageEnsuringBinary
	log.Debug("Enter stage", slog.String("stage", stage.String()))

	bin, err := d.bins.Ensure(ctx)
	if err != nil {
		return fail(common.WithKind(common.KindServiceUnavailable, err))
	}

	stage = StageProbing
	log.Debug("Enter stage", slog.String("stage", stage.String()))

	// Extraction failures here are always upstream errors, including the
	// unsupported URL case that /info reports as a bad request.
	probe, err := d.extractor.Probe(ctx, bin, url, cred)
	if err != nil {
		return fail(common.NewError(common.KindUpstream, common.Message(err), err))
	}

	if probe.IsPlaylist {
		return fail(common.Wrap(common.KindBadRequest, common.ErrPlaylist))
	}

	stage = StageSelectingFormat
	log.Debug("Enter stage", slog.String("stage", stage.String()))

	target, ok := probe.FindFormat(req.FormatID)
	if !ok {
		return fail(common.Wrap(common.KindNotFound, common.ErrFormatUnavailable))
	}

	var res *entity.DownloadResult
	if target.HasAudio {
		stage = StageStreaming
		log.Debug("Enter stage", slog.String("stage", stage.String()))

		res, err = d.stream(ctx, bin, url, cred, target)
	} else {
		stage = StageMerging
		log.Debug("Enter stage", slog.String("stage", stage.String()))

		res, err = d.merge(ctx, bin, url, cred, target)
	}

	if err != nil {
		return fail(err)
	}

	res.Platform = platform
	res.Filename = util.FileName(probe.Title, platform, target.ID, fileExt(res, target))

	log.Info("Downloaded", slog.String("mode", string(res.Mode)), slog.Int("size", res.ContentLength()))

	return res, nil
}

func (d *downloadService) stream(ctx context.Context, bin *entity.BinarySet, url string, cred *entity.ResolvedCredential,
	target *entity.StreamFormat) (*entity.DownloadResult, error) {
	var buf bytes.Buffer
	if err := d.extractor.Stream(ctx, bin, url, target.ID, cred, &buf); err != nil {
		return nil, common.NewError(common.KindUpstream, fmt.Sprintf("Failed to download media: %s", err), err)
	}

	return &entity.DownloadResult{
		MIMEType: util.MIMEType(target),
		Data:     buf.Bytes(),
		Mode:     entity.DownloadModeStream,
	}, nil
}

// merge muxes the video only target with the best audio into a private temp
// directory that is removed before returning.
func (d *downloadService) merge(ctx context.Context, bin *entity.BinarySet, url string, cred *entity.ResolvedCredential,
	target *entity.StreamFormat) (*entity.DownloadResult, error) {
	if !bin.HasTranscoder() {
		return nil, common.Wrap(common.KindServiceUnavailable, common.ErrTranscoderMissing)
	}

	dir, err := afero.TempDir(d.fs, d.tempDir, mergeDirPrefix)
	if err != nil {
		return nil, common.NewError(common.KindInternal, "Cannot create merge directory.", err)
	}
	defer d.removeAll(dir)

	outPath := filepath.Join(dir, fmt.Sprintf("%s-%s.%s", uuid.NewString(), target.ID, mergeExt))
	args := []string{
		"-f", target.ID + "+bestaudio/best",
		"--merge-output-format", mergeExt,
		"-o", outPath,
	}

	if err := d.extractor.Execute(ctx, bin, url, cred, args); err != nil {
		return nil, common.NewError(common.KindUpstream, fmt.Sprintf("Failed to merge audio/video: %s", err), err)
	}

	data, err := afero.ReadFile(d.fs, outPath)
	if err != nil {
		return nil, common.NewError(common.KindUpstream, fmt.Sprintf("Failed to merge audio/video: %s", err), err)
	}

	return &entity.DownloadResult{
		MIMEType: mergeMIMEType,
		Data:     data,
		Mode:     entity.DownloadModeMerge,
	}, nil
}

func (d *downloadService) removeAll(dir string) {
	if err := d.fs.RemoveAll(dir); err != nil {
		d.log.Warn("Cannot remove merge directory", slog.String("dir", dir), slog.Any("error", err))
	}
}

func fileExt(res *entity.DownloadResult, target *entity.StreamFormat) string {
	if res.Mode == entity.DownloadModeMerge {
		return mergeExt
	}

	return target.Ext
}

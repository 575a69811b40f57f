package info

import (
	"context"
	"log/slog"

	"github.com/jgivc/lumy/internal/common"
	"github.com/jgivc/lumy/internal/entity"
	"github.com/jgivc/lumy/internal/service/format"
	"github.com/jgivc/lumy/internal/validator"
)

const (
	serviceName  = "info"
	defaultTitle = "Unknown title"
)

type CredentialResolver interface {
	Resolve(ctx context.Context, in entity.CredentialInput) (*entity.ResolvedCredential, error)
}

type BinaryProvisioner interface {
	Ensure(ctx context.Context) (*entity.BinarySet, error)
}

type Prober interface {
	Probe(ctx context.Context, bin *entity.BinarySet, url string, cred *entity.ResolvedCredential) (*entity.MediaProbe, error)
}

type infoService struct {
	creds  CredentialResolver
	bins   BinaryProvisioner
	prober Prober
	log    *slog.Logger
}

func NewInfoService(creds CredentialResolver, bins BinaryProvisioner, prober Prober, log *slog.Logger) *infoService {
	return &infoService{
		creds:  creds,
		bins:   bins,
		prober: prober,
		log:    log.With(slog.String("service", serviceName)),
	}
}

// Info probes rawURL and returns the ranked format catalog. Only the
// environment credential channels are used.
func (s *infoService) Info(ctx context.Context, rawURL string) (*entity.VideoInfo, error) {
	url, platform, err := validator.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	log := s.log.With(slog.String("url", url))

	cred, err := s.creds.Resolve(ctx, entity.CredentialInput{})
	if err != nil {
		log.Error("Cannot resolve credentials", slog.Any("error", err))

		return nil, err
	}
	defer cred.Release()

	bin, err := s.bins.Ensure(ctx)
	if err != nil {
		log.Error("Cannot ensure binaries", slog.Any("error", err))

		return nil, err
	}

	probe, err := s.prober.Probe(ctx, bin, url, cred)
	if err != nil {
		return nil, err
	}

	if probe.IsPlaylist {
		return nil, common.Wrap(common.KindBadRequest, common.ErrPlaylist)
	}

	sel := format.Select(probe.Formats)

	res := &entity.VideoInfo{
		Title:        probe.Title,
		Thumbnail:    probe.ThumbnailURL,
		Duration:     probe.DurationSeconds,
		VideoFormats: toOptions(sel.VideoFormats),
		AudioFormats: toOptions(sel.BestAudio()),
		Platform:     platform,
		URL:          url,
	}

	if res.Title == "" {
		res.Title = defaultTitle
	}

	log.Info("Probed", slog.Int("video_formats", len(res.VideoFormats)), slog.Int("audio_formats", len(sel.AudioFormats)))

	return res, nil
}

func toOptions(formats []*entity.StreamFormat) []*entity.FormatOption {
	res := make([]*entity.FormatOption, 0, len(formats))
	for _, f := range formats {
		res = append(res, entity.NewFormatOption(f))
	}

	return res
}

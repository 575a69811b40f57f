package counter

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jgivc/lumy/internal/common"
	"github.com/jgivc/lumy/internal/entity"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

const (
	serviceName = "counter"
	dumpMode    = 0644
)

type CounterRepository interface {
	IncDownloadCounter(ctx context.Context, platform entity.Platform, mode entity.DownloadMode) (int64, error)
	GetDownloadCounters(ctx context.Context) (map[string]int64, error)
}

type counterService struct {
	fs   afero.Fs
	repo CounterRepository
	log  *slog.Logger
}

// NewCounterService returns a service backed by repo. A nil repo disables
// statistics: increments are dropped and reads fail with ErrStatsDisabled.
func NewCounterService(repo CounterRepository, log *slog.Logger) *counterService {
	return NewCounterServiceWithFS(afero.NewOsFs(), repo, log)
}

func NewCounterServiceWithFS(fs afero.Fs, repo CounterRepository, log *slog.Logger) *counterService {
	return &counterService{
		fs:   fs,
		repo: repo,
		log:  log.With(slog.String("service", serviceName)),
	}
}

func (c *counterService) Enabled() bool {
	return c.repo != nil
}

func (c *counterService) Inc(ctx context.Context, platform entity.Platform, mode entity.DownloadMode) error {
	if !c.Enabled() {
		return nil
	}

	counter, err := c.repo.IncDownloadCounter(ctx, platform, mode)
	if err != nil {
		c.log.Error("Cannot increment download counter", slog.String("platform", string(platform)),
			slog.String("mode", string(mode)), slog.Any("error", err))

		return fmt.Errorf("cannot increment download counter: %w", err)
	}

	c.log.Debug("Download counted", slog.String("platform", string(platform)),
		slog.String("mode", string(mode)), slog.Int64("counter", counter))

	return nil
}

func (c *counterService) GetDownloadCounters(ctx context.Context) (map[string]int64, error) {
	if !c.Enabled() {
		return nil, common.ErrStatsDisabled
	}

	counters, err := c.repo.GetDownloadCounters(ctx)
	if err != nil {
		c.log.Error("Cannot get download counters", slog.Any("error", err))

		return nil, fmt.Errorf("cannot get download counters: %w", err)
	}

	return counters, nil
}

// DumpCounters writes the counters to fileName as a YAML list ordered by key.
func (c *counterService) DumpCounters(ctx context.Context, fileName string) error {
	counters, err := c.GetDownloadCounters(ctx)
	if err != nil {
		return err
	}

	rows := make([]*entity.DownloadCounter, 0, len(counters))
	for key, counter := range counters {
		rows = append(rows, &entity.DownloadCounter{Key: key, Counter: counter})
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Key < rows[j].Key
	})

	data, err := yaml.Marshal(rows)
	if err != nil {
		return fmt.Errorf("cannot marshal counters: %w", err)
	}

	if err := afero.WriteFile(c.fs, fileName, data, dumpMode); err != nil {
		c.log.Error("Cannot write counters dump", slog.String("file", fileName), slog.Any("error", err))

		return fmt.Errorf("cannot write counters dump: %w", err)
	}

	c.log.Info("Counters dumped", slog.String("file", fileName), slog.Int("count", len(rows)))

	return nil
}

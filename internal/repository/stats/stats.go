package stats

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jgivc/lumy/internal/entity"
	"github.com/redis/go-redis/v9"
)

const (
	KeyDownloadStats = "st" // HASH. <platform>:<mode> -> counter. HINCRBY st youtube:merge 1
	KeySeparator     = ":"
)

type statsRepository struct {
	cl  *redis.Client
	log *slog.Logger
}

func NewStatsRepository(cl *redis.Client, log *slog.Logger) *statsRepository {
	return &statsRepository{
		cl:  cl,
		log: log.With(slog.String("item", "StatsRepository")),
	}
}

func (r *statsRepository) IncDownloadCounter(ctx context.Context, platform entity.Platform, mode entity.DownloadMode) (int64, error) {
	key := CounterKey(platform, mode)

	counter, err := r.cl.HIncrBy(ctx, KeyDownloadStats, key, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("cannot increment %s counter: %w", key, err)
	}

	return counter, nil
}

func (r *statsRepository) GetDownloadCounters(ctx context.Context) (map[string]int64, error) {
	values, err := r.cl.HGetAll(ctx, KeyDownloadStats).Result()
	if err != nil {
		return nil, fmt.Errorf("cannot get download counters: %w", err)
	}

	counters := make(map[string]int64, len(values))
	for key, val := range values {
		c, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			r.log.Error("Cannot convert counter value", slog.String("key", key), slog.Any("error", err))

			continue
		}

		counters[key] = c
	}

	return counters, nil
}

func CounterKey(platform entity.Platform, mode entity.DownloadMode) string {
	return strings.Join([]string{string(platform), string(mode)}, KeySeparator)
}

package app

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jgivc/lumy/internal/adapter/binadapter"
	"github.com/jgivc/lumy/internal/adapter/credadapter"
	"github.com/jgivc/lumy/internal/adapter/mdadapter"
	"github.com/jgivc/lumy/internal/adapter/ytdlpadapter"
	"github.com/jgivc/lumy/internal/config"
	"github.com/jgivc/lumy/internal/entity"
	httphandler "github.com/jgivc/lumy/internal/handler/http"
	"github.com/jgivc/lumy/internal/repository/stats"
	"github.com/jgivc/lumy/internal/service/counter"
	"github.com/jgivc/lumy/internal/service/download"
	"github.com/jgivc/lumy/internal/service/info"
	"github.com/jgivc/lumy/internal/service/page"
	"github.com/jgivc/lumy/internal/validator"
	"github.com/redis/go-redis/v9"
)

const (
	provisionTimeout  = 5 * time.Minute
	dumpTimeout       = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

type BinaryProvisioner interface {
	Ensure(ctx context.Context) (*entity.BinarySet, error)
}

type CounterDumper interface {
	DumpCounters(ctx context.Context, fileName string) error
}

type App struct {
	cfgPath string
	cfg     *config.Config
	srv     *http.Server
	rdb     *redis.Client
	bins    BinaryProvisioner
	counter CounterDumper
	log     *slog.Logger
}

func New(cfgPath string) *App {
	return &App{
		cfgPath: cfgPath,
	}
}

func (a *App) Start() {
	a.cfg = config.MustLoad(a.cfgPath)

	lo := &slog.HandlerOptions{}
	switch a.cfg.LogLevel {
	case config.LogLevelInfo:
		lo.Level = slog.LevelInfo
	case config.LogLevelWarn:
		lo.Level = slog.LevelWarn
	case config.LogLevelError:
		lo.Level = slog.LevelError
	case config.LogLevelDebug:
		lo.Level = slog.LevelDebug
	default:
		panic("unknown log level")
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, lo))
	a.log = log

	var repo counter.CounterRepository
	if a.cfg.RedisURL != "" {
		opt, err := redis.ParseURL(a.cfg.RedisURL)
		if err != nil {
			panic(err)
		}

		a.rdb = redis.NewClient(opt)
		if _, err := a.rdb.Ping(context.Background()).Result(); err != nil {
			panic(err)
		}

		repo = stats.NewStatsRepository(a.rdb, log)
	} else {
		log.Info("Redis is not configured, statistics are disabled")
	}

	creds := credadapter.NewCredAdapter(&a.cfg.Credentials, a.cfg.Download.TempDir, log)
	bins := binadapter.NewBinAdapter(a.cfg.BinaryConfig(), log)
	a.bins = bins
	extractor := ytdlpadapter.NewYtdlpAdapter(ytdlpadapter.NewExecRunner(), a.cfg.DownloadConfig(), log)

	md, err := mdadapter.NewMDAdapter(a.cfg.PageFileName, validator.SupportedHosts, log)
	if err != nil {
		panic(err)
	}

	cSrv := counter.NewCounterService(repo, log)
	a.counter = cSrv
	iSrv := info.NewInfoService(creds, bins, extractor, log)
	dSrv := download.NewDownloadService(creds, bins, extractor, a.cfg.Download.TempDir, log)
	pSrv := page.NewPageService(md, log)

	maxBody := a.cfg.Download.MaxBodyBytes

	mux := http.NewServeMux()
	mux.Handle("POST /info", httphandler.NewInfoHandler(maxBody, iSrv, log))
	mux.Handle("POST /download", httphandler.NewDownloadHandler(maxBody, dSrv, cSrv, log))
	mux.Handle("GET /stat/{$}", httphandler.NewCounterHandler(cSrv, log))
	mux.Handle("GET /{$}", httphandler.NewPageHandler(pSrv, log))

	a.srv = &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info("Start listen", slog.String("addr", a.cfg.Listen))

		if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Could not serve", slog.String("listen_addr", a.cfg.Listen), slog.Any("error", err))
			os.Exit(2)
		}
	}()
}

// Provision downloads the extractor ahead of the first request.
func (a *App) Provision() {
	ctx, cancel := context.WithTimeout(context.Background(), provisionTimeout)
	defer cancel()

	bs, err := a.bins.Ensure(ctx)
	if err != nil {
		a.log.Error("Cannot provision binaries", slog.Any("error", err))

		return
	}

	a.log.Info("Binaries ready", slog.String("extractor", bs.ExtractorPath),
		slog.String("transcoder", bs.TranscoderPath), slog.String("platform", bs.PlatformTag))
}

func (a *App) Dump() {
	ctx, cancel := context.WithTimeout(context.Background(), dumpTimeout)
	defer cancel()

	if err := a.counter.DumpCounters(ctx, a.cfg.DumpFileName); err != nil {
		a.log.Error("Cannot dump counters", slog.Any("error", err))
	}
}

func (a *App) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.srv.Shutdown(ctx); err != nil {
		a.log.Error("Cannot shutdown server", slog.Any("error", err))
	}

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Error("Cannot close redis client", slog.Any("error", err))
		}
	}
}

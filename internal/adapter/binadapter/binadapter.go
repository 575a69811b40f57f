package binadapter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/jgivc/lumy/internal/common"
	"github.com/jgivc/lumy/internal/config"
	"github.com/jgivc/lumy/internal/entity"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultReleaseURL = "https://github.com/yt-dlp/yt-dlp/releases/latest/download"

	PlatformLinux   = "linux"
	PlatformDarwin  = "darwin"
	PlatformWindows = "windows"

	transcoderName = "ffmpeg"
	flightKey      = "binaries"
	binaryMode     = 0755

	DefaultProvisionTimeout = 5 * time.Minute
)

// asset is the release file for a platform and the name it is cached under.
type asset struct {
	remote string
	local  string
}

var assets = map[string]asset{
	PlatformLinux:   {remote: "yt-dlp_linux", local: "yt-dlp"},
	PlatformDarwin:  {remote: "yt-dlp_macos", local: "yt-dlp_macos"},
	PlatformWindows: {remote: "yt-dlp.exe", local: "yt-dlp.exe"},
}

type binAdapter struct {
	fs       afero.Fs
	cfg      *config.BinaryConfig
	client   *http.Client
	goos     string
	lookPath func(file string) (string, error)

	mu     sync.RWMutex
	cached *entity.BinarySet
	group  singleflight.Group

	log *slog.Logger
}

func NewBinAdapter(cfg *config.BinaryConfig, log *slog.Logger) *binAdapter {
	return NewBinAdapterWithFS(afero.NewOsFs(), http.DefaultClient, cfg, log)
}

func NewBinAdapterWithFS(fs afero.Fs, client *http.Client, cfg *config.BinaryConfig, log *slog.Logger) *binAdapter {
	return &binAdapter{
		fs:       fs,
		cfg:      cfg,
		client:   client,
		goos:     runtime.GOOS,
		lookPath: exec.LookPath,
		log:      log.With(slog.String("item", "BinAdapter")),
	}
}

// Ensure returns the process wide BinarySet, provisioning it on first use.
// Concurrent first callers share one provisioning run. A failed run is not
// cached and the next call starts over.
func (a *binAdapter) Ensure(ctx context.Context) (*entity.BinarySet, error) {
	if bs := a.get(); bs != nil {
		return bs, nil
	}

	ch := a.group.DoChan(flightKey, func() (any, error) {
		if bs := a.get(); bs != nil {
			return bs, nil
		}

		// Detached from the first caller so its cancellation does not fail the
		// other waiters. The deadline keeps a stalled download from holding the
		// flight forever.
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.provisionTimeout())
		defer cancel()

		bs, err := a.provision(pctx)
		if err != nil {
			return nil, err
		}

		a.mu.Lock()
		a.cached = bs
		a.mu.Unlock()

		return bs, nil
	})

	select {
	case <-ctx.Done():
		return nil, common.NewError(common.KindServiceUnavailable, "Extraction tool is not ready yet.", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}

		return res.Val.(*entity.BinarySet), nil
	}
}

func (a *binAdapter) get() *entity.BinarySet {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.cached
}

func (a *binAdapter) provision(ctx context.Context) (*entity.BinarySet, error) {
	as, ok := assets[a.goos]
	if !ok {
		return nil, common.NewError(common.KindServiceUnavailable,
			fmt.Sprintf("Extraction tool is not available for %s.", a.goos), common.ErrUnsupportedPlatform)
	}

	if err := a.fs.MkdirAll(a.cfg.CacheDir, binaryMode); err != nil {
		return nil, common.NewError(common.KindServiceUnavailable, "Cannot create binary cache directory.", err)
	}

	binPath := filepath.Join(a.cfg.CacheDir, as.local)
	log := a.log.With(slog.String("platform", a.goos), slog.String("path", binPath))

	if stat, err := a.fs.Stat(binPath); err == nil && stat.Size() > 0 {
		log.Info("Use cached extractor")
	} else {
		srcURL := a.releaseURL() + "/" + as.remote
		log.Info("Download extractor", slog.String("url", srcURL))

		if err := a.download(ctx, srcURL, binPath); err != nil {
			log.Error("Cannot download extractor", slog.Any("error", err))

			return nil, common.NewError(common.KindServiceUnavailable,
				fmt.Sprintf("Failed to download extraction tool: %s", err), err)
		}
	}

	return &entity.BinarySet{
		ExtractorPath:  binPath,
		TranscoderPath: a.transcoderPath(),
		PlatformTag:    a.goos,
	}, nil
}

// download writes the body into a temp file next to dst and renames it so a
// partially written binary is never visible at dst.
func (a *binAdapter) download(ctx context.Context, srcURL, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return fmt.Errorf("cannot create request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("cannot fetch binary: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected response: %s", resp.Status)
	}

	tmp, err := afero.TempFile(a.fs, filepath.Dir(dst), filepath.Base(dst)+".*.part")
	if err != nil {
		return fmt.Errorf("cannot create temp file: %w", err)
	}

	tmpName := tmp.Name()
	defer a.fs.Remove(tmpName)

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		return fmt.Errorf("cannot write binary: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("empty binary")
	}

	if a.goos != PlatformWindows {
		if err := a.fs.Chmod(tmpName, binaryMode); err != nil {
			return fmt.Errorf("cannot set executable permission: %w", err)
		}
	}

	if err := a.fs.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("cannot move binary in place: %w", err)
	}

	return nil
}

func (a *binAdapter) provisionTimeout() time.Duration {
	if a.cfg.ProvisionTimeout > 0 {
		return a.cfg.ProvisionTimeout
	}

	return DefaultProvisionTimeout
}

func (a *binAdapter) releaseURL() string {
	if a.cfg.ExtractorURL != "" {
		return a.cfg.ExtractorURL
	}

	return DefaultReleaseURL
}

func (a *binAdapter) transcoderPath() string {
	if a.cfg.TranscoderPath != "" {
		return a.cfg.TranscoderPath
	}

	path, err := a.lookPath(transcoderName)
	if err != nil {
		a.log.Warn("Transcoder not found, merging is disabled", slog.Any("error", err))

		return ""
	}

	return path
}

package credadapter

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jgivc/lumy/internal/common"
	"github.com/jgivc/lumy/internal/config"
	"github.com/jgivc/lumy/internal/entity"
	"github.com/spf13/afero"
)

const (
	NetscapeCookieHeader = "# Netscape HTTP Cookie File"

	cookiesFileName  = "cookies.txt"
	cookiesDirPrefix = "lumy-cookies-"

	flagCookies            = "--cookies"
	flagCookiesFromBrowser = "--cookies-from-browser"
)

var (
	errInvalidConfig = fmt.Errorf("Cookie configuration is invalid. Provide %s, %s, or %s with Netscape cookie rows.",
		config.EnvCookiesFile, config.EnvCookies, config.EnvCookiesB64)
	errNoCookieRows = fmt.Errorf("Cookie file has only header comments and no cookie rows. Re-export youtube.com cookies and paste full content.")
	errInvalidB64   = fmt.Errorf("Invalid %s value. Provide valid base64-encoded Netscape cookies content.", config.EnvCookiesB64)
)

type credAdapter struct {
	fs      afero.Fs
	cfg     *config.CredentialsConfig
	tempDir string
	log     *slog.Logger
}

func NewCredAdapter(cfg *config.CredentialsConfig, tempDir string, log *slog.Logger) *credAdapter {
	return NewCredAdapterWithFS(afero.NewOsFs(), cfg, tempDir, log)
}

func NewCredAdapterWithFS(fs afero.Fs, cfg *config.CredentialsConfig, tempDir string, log *slog.Logger) *credAdapter {
	return &credAdapter{
		fs:      fs,
		cfg:     cfg,
		tempDir: tempDir,
		log:     log.With(slog.String("item", "CredAdapter")),
	}
}

// Resolve turns the request input and the configured environment channels into
// a cookie file and/or a browser selector. The returned Release is idempotent
// and never fails; on error nothing is left on disk.
func (a *credAdapter) Resolve(ctx context.Context, in entity.CredentialInput) (*entity.ResolvedCredential, error) {
	browser := firstNonEmpty(in.CookiesFromBrowser, a.cfg.CookiesFromBrowser)

	decoded, err := decodeBase64Cookies(normalize(a.cfg.CookiesB64))
	if err != nil {
		return nil, common.Wrap(common.KindBadRequest, err)
	}

	rel := &releaser{fs: a.fs, log: a.log}

	var cookiesFile string
	if value := firstNonEmpty(in.Cookies, a.cfg.Cookies, decoded); value != "" {
		cookiesFile, err = a.resolveCookiesPath(value, rel)
	} else if value := normalize(a.cfg.CookiesFile); value != "" {
		cookiesFile, err = a.resolveCookiesPath(value, rel)
	}

	if err != nil {
		rel.Release()

		return nil, err
	}

	var args []string
	if cookiesFile != "" {
		args = append(args, flagCookies, cookiesFile)
	}

	if browser != "" {
		args = append(args, flagCookiesFromBrowser, browser)
	}

	return &entity.ResolvedCredential{
		CookiesFile:        cookiesFile,
		CookiesFromBrowser: browser,
		Args:               args,
		Release:            rel.Release,
	}, nil
}

func (a *credAdapter) resolveCookiesPath(value string, rel *releaser) (string, error) {
	if a.fileExists(value) {
		return value, nil
	}

	if !looksLikeCookieContent(value) {
		return "", common.Wrap(common.KindBadRequest, errInvalidConfig)
	}

	if !hasCookieRows(value) {
		return "", common.Wrap(common.KindBadRequest, errNoCookieRows)
	}

	// Local I/O failures are server side faults, not bad input.
	dir, err := afero.TempDir(a.fs, a.tempDir, cookiesDirPrefix)
	if err != nil {
		return "", common.NewError(common.KindInternal, "cannot create cookies directory", err)
	}
	rel.addDir(dir)

	cookiePath := filepath.Join(dir, cookiesFileName)
	rel.addFile(cookiePath)

	if err := afero.WriteFile(a.fs, cookiePath, []byte(EnsureCookieHeader(value)), 0600); err != nil {
		return "", common.NewError(common.KindInternal, "cannot write cookies file", err)
	}

	a.log.Debug("Materialized cookies", slog.String("path", cookiePath))

	return cookiePath, nil
}

func (a *credAdapter) fileExists(path string) bool {
	stat, err := a.fs.Stat(path)

	return err == nil && !stat.IsDir()
}

// EnsureCookieHeader returns content with exactly one leading Netscape header
// and a trailing newline.
func EnsureCookieHeader(content string) string {
	trimmed := strings.TrimSpace(content)
	for strings.HasPrefix(trimmed, NetscapeCookieHeader) {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, NetscapeCookieHeader))
	}

	return NetscapeCookieHeader + "\n" + trimmed + "\n"
}

func looksLikeCookieContent(value string) bool {
	return strings.Contains(value, "\n") || strings.Contains(value, "\t") || strings.Contains(value, NetscapeCookieHeader)
}

func hasCookieRows(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			return true
		}
	}

	return false
}

func decodeBase64Cookies(value string) (string, error) {
	if value == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		// Exports copied from some tools drop the padding.
		if data, err = base64.RawStdEncoding.DecodeString(value); err != nil {
			return "", errInvalidB64
		}
	}

	return strings.TrimSpace(string(data)), nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = normalize(v); v != "" {
			return v
		}
	}

	return ""
}

// releaser removes every materialized resource once. Each removal is
// attempted independently and failures are only logged.
type releaser struct {
	once  sync.Once
	fs    afero.Fs
	files []string
	dirs  []string
	log   *slog.Logger
}

func (r *releaser) addFile(path string) {
	r.files = append(r.files, path)
}

func (r *releaser) addDir(path string) {
	r.dirs = append(r.dirs, path)
}

func (r *releaser) Release() {
	r.once.Do(func() {
		for _, file := range r.files {
			if err := r.fs.Remove(file); err != nil && !isNotExist(err) {
				r.log.Warn("Cannot remove cookies file", slog.String("path", file), slog.Any("error", err))
			}
		}

		for _, dir := range r.dirs {
			if err := r.fs.RemoveAll(dir); err != nil {
				r.log.Warn("Cannot remove cookies dir", slog.String("path", dir), slog.Any("error", err))
			}
		}
	})
}

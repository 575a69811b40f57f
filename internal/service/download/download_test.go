package download

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jgivc/lumy/internal/common"
	"github.com/jgivc/lumy/internal/entity"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const tempDir = "/tmp"

type fakeCreds struct {
	err      error
	inputs   []entity.CredentialInput
	released int
}

func (c *fakeCreds) Resolve(_ context.Context, in entity.CredentialInput) (*entity.ResolvedCredential, error) {
	c.inputs = append(c.inputs, in)
	if c.err != nil {
		return nil, c.err
	}

	return &entity.ResolvedCredential{Release: func() { c.released++ }}, nil
}

type fakeBins struct {
	bin *entity.BinarySet
	err error
}

func (b *fakeBins) Ensure(context.Context) (*entity.BinarySet, error) {
	return b.bin, b.err
}

type fakeExtractor struct {
	fs        afero.Fs
	probe     *entity.MediaProbe
	probeErr  error
	streamErr error
	execErr   error
	noOutput  bool

	streamed []string
	execArgs [][]string
	mergeDir string
}

func (e *fakeExtractor) Probe(context.Context, *entity.BinarySet, string, *entity.ResolvedCredential) (*entity.MediaProbe, error) {
	return e.probe, e.probeErr
}

func (e *fakeExtractor) Stream(_ context.Context, _ *entity.BinarySet, _ string, formatID string, _ *entity.ResolvedCredential, w io.Writer) error {
	e.streamed = append(e.streamed, formatID)
	if e.streamErr != nil {
		return e.streamErr
	}

	_, err := w.Write([]byte("stream:" + formatID))

	return err
}

func (e *fakeExtractor) Execute(_ context.Context, _ *entity.BinarySet, _ string, _ *entity.ResolvedCredential, rawArgs []string) error {
	e.execArgs = append(e.execArgs, rawArgs)

	out := rawArgs[len(rawArgs)-1]
	e.mergeDir = filepath.Dir(out)

	if exists, _ := afero.DirExists(e.fs, e.mergeDir); !exists {
		return errors.New("merge dir does not exist")
	}

	if e.execErr != nil {
		// A failed run can leave partial files behind.
		_ = afero.WriteFile(e.fs, out+".part", []byte("partial"), 0644)

		return e.execErr
	}

	if e.noOutput {
		return nil
	}

	return afero.WriteFile(e.fs, out, []byte("merged:"+rawArgs[1]), 0644)
}

func testProbe() *entity.MediaProbe {
	return &entity.MediaProbe{
		Title: "Clip: the \"best\" one",
		Formats: []*entity.StreamFormat{
			{ID: "18", Ext: "mp4", QualityLabel: "360p", HasVideo: true, HasAudio: true},
			{ID: "137", Ext: "mp4", QualityLabel: "1080p", HasVideo: true},
			{ID: "140", Ext: "m4a", QualityLabel: "medium", HasAudio: true},
			{ID: "251", Ext: "mp3", QualityLabel: "low", HasAudio: true},
		},
	}
}

type testEnv struct {
	fs        afero.Fs
	creds     *fakeCreds
	bins      *fakeBins
	extractor *fakeExtractor
	srv       *downloadService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(tempDir, 0755))

	env := &testEnv{
		fs:        fs,
		creds:     &fakeCreds{},
		bins:      &fakeBins{bin: &entity.BinarySet{ExtractorPath: "/cache/yt-dlp", TranscoderPath: "/usr/bin/ffmpeg"}},
		extractor: &fakeExtractor{fs: fs, probe: testProbe()},
	}

	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	env.srv = NewDownloadServiceWithFS(fs, env.creds, env.bins, env.extractor, tempDir, log)

	return env
}

func (e *testEnv) requireNoMergeDirs(t *testing.T) {
	t.Helper()

	entries, err := afero.ReadDir(e.fs, tempDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestDownloadStreamMuxed(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.srv.Download(context.Background(), &entity.DownloadRequest{URL: "https://youtu.be/abc", FormatID: "18"})
	require.NoError(t, err)

	require.Equal(t, []string{"18"}, env.extractor.streamed)
	require.Empty(t, env.extractor.execArgs)
	env.requireNoMergeDirs(t)

	require.Equal(t, "video/mp4", res.MIMEType)
	require.Equal(t, "Clip the best one-18.mp4", res.Filename)
	require.Equal(t, []byte("stream:18"), res.Data)
	require.Equal(t, len("stream:18"), res.ContentLength())
	require.Equal(t, entity.PlatformYouTube, res.Platform)
	require.Equal(t, entity.DownloadModeStream, res.Mode)
	require.Equal(t, 1, env.creds.released)
}

func TestDownloadStreamAudio(t *testing.T) {
	testCases := []struct {
		formatID string
		mime     string
		filename string
	}{
		{"140", "audio/m4a", "Clip the best one-140.m4a"},
		{"251", "audio/mpeg", "Clip the best one-251.mp3"},
	}

	for _, tc := range testCases {
		t.Run(tc.formatID, func(t *testing.T) {
			env := newTestEnv(t)

			res, err := env.srv.Download(context.Background(), &entity.DownloadRequest{URL: "https://youtu.be/abc", FormatID: tc.formatID})
			require.NoError(t, err)
			require.Equal(t, tc.mime, res.MIMEType)
			require.Equal(t, tc.filename, res.Filename)
			require.Empty(t, env.extractor.execArgs)
			env.requireNoMergeDirs(t)
		})
	}
}

func TestDownloadMergeVideoOnly(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.srv.Download(context.Background(), &entity.DownloadRequest{URL: "https://youtu.be/abc", FormatID: "137"})
	require.NoError(t, err)

	require.Empty(t, env.extractor.streamed)
	require.Len(t, env.extractor.execArgs, 1)

	args := env.extractor.execArgs[0]
	require.Equal(t, []string{"-f", "137+bestaudio/best", "--merge-output-format", "mp4", "-o"}, args[:5])
	require.True(t, strings.HasPrefix(filepath.Base(env.extractor.mergeDir), mergeDirPrefix))
	require.True(t, strings.HasSuffix(args[5], "-137.mp4"))

	exists, err := afero.Exists(env.fs, env.extractor.mergeDir)
	require.NoError(t, err)
	require.False(t, exists, "merge dir must be removed after success")
	env.requireNoMergeDirs(t)

	require.Equal(t, "video/mp4", res.MIMEType)
	require.Equal(t, "Clip the best one-137.mp4", res.Filename)
	require.Equal(t, []byte("merged:137+bestaudio/best"), res.Data)
	require.Equal(t, entity.DownloadModeMerge, res.Mode)
	require.Equal(t, 1, env.creds.released)
}

func TestDownloadMergeFailureCleansUp(t *testing.T) {
	env := newTestEnv(t)
	env.extractor.execErr = errors.New("ERROR: ffmpeg exited with code 1")

	_, err := env.srv.Download(context.Background(), &entity.DownloadRequest{URL: "https://youtu.be/abc", FormatID: "137"})
	require.Error(t, err)
	require.Equal(t, common.KindUpstream, common.KindOf(err))
	require.Equal(t, "Failed to merge audio/video: ERROR: ffmpeg exited with code 1", common.Message(err))

	env.requireNoMergeDirs(t)
	require.Equal(t, 1, env.creds.released)
}

func TestDownloadMergeMissingOutput(t *testing.T) {
	env := newTestEnv(t)
	env.extractor.noOutput = true

	_, err := env.srv.Download(context.Background(), &entity.DownloadRequest{URL: "https://youtu.be/abc", FormatID: "137"})
	require.Error(t, err)
	require.Equal(t, common.KindUpstream, common.KindOf(err))
	env.requireNoMergeDirs(t)
}

func TestDownloadMergeWithoutTranscoder(t *testing.T) {
	env := newTestEnv(t)
	env.bins.bin.TranscoderPath = ""

	_, err := env.srv.Download(context.Background(), &entity.DownloadRequest{URL: "https://youtu.be/abc", FormatID: "137"})
	require.ErrorIs(t, err, common.ErrTranscoderMissing)
	require.Equal(t, common.KindServiceUnavailable, common.KindOf(err))
	require.Empty(t, env.extractor.execArgs)
	env.requireNoMergeDirs(t)
}

func TestDownloadFormatNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.srv.Download(context.Background(), &entity.DownloadRequest{URL: "https://youtu.be/abc", FormatID: "999"})
	require.ErrorIs(t, err, common.ErrFormatUnavailable)
	require.Equal(t, common.KindNotFound, common.KindOf(err))
	require.Equal(t, "Selected format is unavailable.", common.Message(err))
	require.Equal(t, 1, env.creds.released)
}

func TestDownloadCredentialInput(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.srv.Download(context.Background(), &entity.DownloadRequest{
		URL:                "https://www.instagram.com/reel/xyz/",
		FormatID:           "18",
		Cookies:            "name\tvalue",
		CookiesFromBrowser: "firefox",
	})
	require.NoError(t, err)
	require.Equal(t, []entity.CredentialInput{{Cookies: "name\tvalue", CookiesFromBrowser: "firefox"}}, env.creds.inputs)
}

func TestDownloadErrors(t *testing.T) {
	testCases := []struct {
		name        string
		req         entity.DownloadRequest
		setup       func(env *testEnv)
		kind        common.Kind
		expectError error
		message     string
		resolved    bool
	}{
		{
			name:        "invalid url",
			req:         entity.DownloadRequest{URL: "ftp://youtu.be/abc", FormatID: "18"},
			kind:        common.KindBadRequest,
			expectError: common.ErrInvalidURL,
		},
		{
			name:        "unsupported url",
			req:         entity.DownloadRequest{URL: "https://example.com/v", FormatID: "18"},
			kind:        common.KindBadRequest,
			expectError: common.ErrUnsupportedURL,
		},
		{
			name:        "missing format id",
			req:         entity.DownloadRequest{URL: "https://youtu.be/abc"},
			kind:        common.KindBadRequest,
			expectError: common.ErrMissingFormatID,
		},
		{
			name:        "selector injection",
			req:         entity.DownloadRequest{URL: "https://youtu.be/abc", FormatID: "18+bestaudio"},
			kind:        common.KindBadRequest,
			expectError: common.ErrMissingFormatID,
		},
		{
			name: "credential failure",
			req:  entity.DownloadRequest{URL: "https://youtu.be/abc", FormatID: "18", Cookies: "junk"},
			setup: func(env *testEnv) {
				env.creds.err = errors.New("Invalid cookies configuration.")
			},
			kind: common.KindBadRequest,
		},
		{
			name: "credential write failure",
			req:  entity.DownloadRequest{URL: "https://youtu.be/abc", FormatID: "18", Cookies: "junk"},
			setup: func(env *testEnv) {
				env.creds.err = common.NewError(common.KindInternal, "cannot write cookies file", errors.New("read-only file system"))
			},
			kind: common.KindInternal,
		},
		{
			name: "provisioning failure",
			req:  entity.DownloadRequest{URL: "https://youtu.be/abc", FormatID: "18"},
			setup: func(env *testEnv) {
				env.bins.err = errors.New("unexpected response: 404 Not Found")
			},
			kind:     common.KindServiceUnavailable,
			resolved: true,
		},
		{
			name: "probe failure",
			req:  entity.DownloadRequest{URL: "https://youtu.be/abc", FormatID: "18"},
			setup: func(env *testEnv) {
				env.extractor.probeErr = common.NewError(common.KindUpstream, "ERROR: private video", nil)
			},
			kind:     common.KindUpstream,
			resolved: true,
		},
		{
			name: "unsupported url reported by extractor",
			req:  entity.DownloadRequest{URL: "https://youtu.be/abc", FormatID: "18"},
			setup: func(env *testEnv) {
				env.extractor.probeErr = common.NewError(common.KindBadRequest, "ERROR: Unsupported URL: https://youtu.be/abc", nil)
			},
			kind:     common.KindUpstream,
			message:  "ERROR: Unsupported URL: https://youtu.be/abc",
			resolved: true,
		},
		{
			name: "playlist",
			req:  entity.DownloadRequest{URL: "https://www.youtube.com/playlist?list=PL1", FormatID: "18"},
			setup: func(env *testEnv) {
				env.extractor.probe = &entity.MediaProbe{IsPlaylist: true}
			},
			kind:        common.KindBadRequest,
			expectError: common.ErrPlaylist,
			resolved:    true,
		},
		{
			name: "stream failure",
			req:  entity.DownloadRequest{URL: "https://youtu.be/abc", FormatID: "18"},
			setup: func(env *testEnv) {
				env.extractor.streamErr = errors.New("ERROR: HTTP Error 403")
			},
			kind:     common.KindUpstream,
			resolved: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tc.setup != nil {
				tc.setup(env)
			}

			res, err := env.srv.Download(context.Background(), &tc.req)
			require.Error(t, err)
			require.Nil(t, res)
			require.Equal(t, tc.kind, common.KindOf(err))

			if tc.expectError != nil {
				require.ErrorIs(t, err, tc.expectError)
			}

			if tc.message != "" {
				require.Equal(t, tc.message, common.Message(err))
			}

			released := 0
			if tc.resolved {
				released = 1
			}
			require.Equal(t, released, env.creds.released)
			env.requireNoMergeDirs(t)
		})
	}
}

func TestStageString(t *testing.T) {
	require.Equal(t, "Validating", StageValidating.String())
	require.Equal(t, "Merging", StageMerging.String())
}

package page

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/jgivc/lumy/internal/entity"
	"github.com/stretchr/testify/require"
)

type fakeRenderer struct {
	calls int
	err   error
}

func (r *fakeRenderer) Render() (*entity.Page, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}

	return &entity.Page{Title: "lumy", Content: "<html>usage</html>"}, nil
}

func TestGetPageRendersOnce(t *testing.T) {
	r := &fakeRenderer{}
	s := NewPageService(r, slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})))

	for i := 0; i < 3; i++ {
		content, err := s.GetPage(context.Background())
		require.NoError(t, err)
		require.Equal(t, "<html>usage</html>", content)
	}

	require.Equal(t, 1, r.calls)
}

func TestGetPageRetriesAfterFailure(t *testing.T) {
	r := &fakeRenderer{err: errors.New("bad markdown")}
	s := NewPageService(r, slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})))

	_, err := s.GetPage(context.Background())
	require.Error(t, err)

	r.err = nil
	content, err := s.GetPage(context.Background())
	require.NoError(t, err)
	require.Equal(t, "<html>usage</html>", content)
	require.Equal(t, 2, r.calls)
}

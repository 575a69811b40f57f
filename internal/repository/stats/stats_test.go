package stats

import (
	"testing"

	"github.com/jgivc/lumy/internal/entity"
	"github.com/stretchr/testify/require"
)

func TestCounterKey(t *testing.T) {
	require.Equal(t, "youtube:stream", CounterKey(entity.PlatformYouTube, entity.DownloadModeStream))
	require.Equal(t, "facebook:merge", CounterKey(entity.PlatformFacebook, entity.DownloadModeMerge))
}

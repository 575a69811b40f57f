package format

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jgivc/lumy/internal/entity"
)

var nonDigitRegexp = regexp.MustCompile(`\D`)

// Selection is the classified and ranked format list of a probe.
type Selection struct {
	VideoFormats []*entity.StreamFormat // Video only and muxed, best resolution first
	AudioFormats []*entity.StreamFormat // Audio only, best label first
}

// Select classifies formats into video and audio groups and ranks them.
// Formats with neither capability are dropped.
func Select(formats []*entity.StreamFormat) *Selection {
	s := &Selection{}

	for _, f := range formats {
		switch {
		case f.HasVideo:
			s.VideoFormats = append(s.VideoFormats, f)
		case f.HasAudio:
			s.AudioFormats = append(s.AudioFormats, f)
		}
	}

	sort.SliceStable(s.AudioFormats, func(i, j int) bool {
		return strings.Compare(s.AudioFormats[i].QualityLabel, s.AudioFormats[j].QualityLabel) > 0
	})

	sort.SliceStable(s.VideoFormats, func(i, j int) bool {
		return Resolution(s.VideoFormats[i].QualityLabel) > Resolution(s.VideoFormats[j].QualityLabel)
	})

	return s
}

// BestAudio returns the top ranked audio format as a zero or one element slice.
func (s *Selection) BestAudio() []*entity.StreamFormat {
	if len(s.AudioFormats) == 0 {
		return []*entity.StreamFormat{}
	}

	return s.AudioFormats[:1]
}

// Resolution extracts the digits of a quality label, "1080p60" gives 108060.
// Labels without digits rank as zero.
func Resolution(label string) int {
	digits := nonDigitRegexp.ReplaceAllString(label, "")
	if digits == "" {
		return 0
	}

	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}

	return n
}

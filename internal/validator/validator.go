package validator

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/jgivc/lumy/internal/common"
	"github.com/jgivc/lumy/internal/entity"
)

var (
	formatIDRegexp = regexp.MustCompile(`^[A-Za-z0-9_.=-]{1,64}$`)

	// Exact host names. DetectPlatform and ParseURL both read this table.
	supportedHosts = map[string]entity.Platform{
		"youtube.com":       entity.PlatformYouTube,
		"www.youtube.com":   entity.PlatformYouTube,
		"m.youtube.com":     entity.PlatformYouTube,
		"youtu.be":          entity.PlatformYouTube,
		"instagram.com":     entity.PlatformInstagram,
		"www.instagram.com": entity.PlatformInstagram,
		"facebook.com":      entity.PlatformFacebook,
		"www.facebook.com":  entity.PlatformFacebook,
		"fb.watch":          entity.PlatformFacebook,
	}
)

// ParseURL validates raw and returns the normalized URL and its platform.
func ParseURL(raw string) (string, entity.Platform, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", common.Wrap(common.KindBadRequest, common.ErrInvalidURL)
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", "", common.Wrap(common.KindBadRequest, common.ErrInvalidURL)
	}

	platform, ok := DetectPlatform(u.String())
	if !ok {
		return "", "", common.Wrap(common.KindBadRequest, common.ErrUnsupportedURL)
	}

	return u.String(), platform, nil
}

// IsSupportedURL reports whether raw is an absolute URL on a supported host.
func IsSupportedURL(raw string) bool {
	_, _, err := ParseURL(raw)

	return err == nil
}

// DetectPlatform maps the URL host to its platform family.
func DetectPlatform(raw string) (entity.Platform, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	platform, ok := supportedHosts[strings.ToLower(u.Hostname())]

	return platform, ok
}

// SupportedHosts lists the host names accepted for platform in lexical order.
func SupportedHosts(platform entity.Platform) []string {
	var res []string
	for host, p := range supportedHosts {
		if p == platform {
			res = append(res, host)
		}
	}

	sort.Strings(res)

	return res
}

// ValidateFormatID rejects empty ids and anything that could alter the
// extractor format selector.
func ValidateFormatID(id string) error {
	if !formatIDRegexp.MatchString(id) {
		return common.Wrap(common.KindBadRequest, common.ErrMissingFormatID)
	}

	return nil
}

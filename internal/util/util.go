package util

import (
	"fmt"
	"strings"

	"github.com/jgivc/lumy/internal/entity"
	"golang.org/x/text/unicode/norm"
)

const (
	DefaultFileName    = "lumy"
	maxFileNameLength  = 80
	illegalFileNameSet = `\/:*?"<>|`
)

// SanitizeFileName makes name safe for a Content-Disposition header and for
// common filesystems.
func SanitizeFileName(name string) string {
	var b strings.Builder

	for _, r := range norm.NFKD.String(name) {
		if r < 0x20 || r > 0x7e {
			continue
		}

		if strings.ContainsRune(illegalFileNameSet, r) {
			continue
		}

		b.WriteRune(r)
	}

	res := strings.TrimSpace(b.String())
	if len(res) > maxFileNameLength {
		res = strings.TrimSpace(res[:maxFileNameLength])
	}

	if res == "" {
		return DefaultFileName
	}

	return res
}

// FileName builds "<title>-<formatID>.<ext>", using the platform name when the
// title is empty.
func FileName(title string, platform entity.Platform, formatID, ext string) string {
	base := string(platform)
	if title != "" {
		base = title
	}

	return fmt.Sprintf("%s-%s.%s", SanitizeFileName(base), formatID, ext)
}

// MIMEType prefers the extractor supplied mime type and derives one from the
// format capabilities otherwise.
func MIMEType(f *entity.StreamFormat) string {
	if f.MIMEType != "" {
		return f.MIMEType
	}

	if f.HasVideo {
		return "video/" + f.Ext
	}

	if f.Ext == "mp3" {
		return "audio/mpeg"
	}

	return "audio/" + f.Ext
}

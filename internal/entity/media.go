package entity

// Platform is a supported video platform family.
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
)

// StreamFormat is one entry of the format list returned by a probe.
type StreamFormat struct {
	ID              string // Unique within one probe
	Ext             string // Container extension, "mp4" when the extractor reports none
	MIMEType        string
	QualityLabel    string
	ApproxSizeBytes int64
	HasVideo        bool
	HasAudio        bool
}

// MediaProbe is the metadata of a single media item.
type MediaProbe struct {
	Title           string
	ThumbnailURL    string
	DurationSeconds float64
	Formats         []*StreamFormat
	IsPlaylist      bool // Extractor returned a playlist or multi video result
}

// FindFormat looks up a format by id in the raw format list.
func (p *MediaProbe) FindFormat(id string) (*StreamFormat, bool) {
	for _, f := range p.Formats {
		if f.ID == id {
			return f, true
		}
	}

	return nil, false
}

// FormatOption is the presentation form of a StreamFormat.
type FormatOption struct {
	ID           string `json:"id"`
	QualityLabel string `json:"qualityLabel,omitempty"`
	Ext          string `json:"ext"`
	MIMEType     string `json:"mimeType,omitempty"`
	ApproxSize   int64  `json:"approxSize,omitempty"`
	IsAudio      bool   `json:"isAudio"`
	HasVideo     bool   `json:"hasVideo"`
	HasAudio     bool   `json:"hasAudio"`
}

func NewFormatOption(f *StreamFormat) *FormatOption {
	return &FormatOption{
		ID:           f.ID,
		QualityLabel: f.QualityLabel,
		Ext:          f.Ext,
		MIMEType:     f.MIMEType,
		ApproxSize:   f.ApproxSizeBytes,
		IsAudio:      f.HasAudio && !f.HasVideo,
		HasVideo:     f.HasVideo,
		HasAudio:     f.HasAudio,
	}
}

// VideoInfo is the /info response payload.
type VideoInfo struct {
	Title        string          `json:"title"`
	Thumbnail    string          `json:"thumbnail,omitempty"`
	Duration     float64         `json:"duration,omitempty"`
	VideoFormats []*FormatOption `json:"videoFormats"`
	AudioFormats []*FormatOption `json:"audioFormats"`
	Platform     Platform        `json:"platform"`
	URL          string          `json:"url"`
}

// InfoRequest is the /info request body.
type InfoRequest struct {
	URL string `json:"url"`
}

// DownloadRequest is the /download request body.
type DownloadRequest struct {
	URL                string `json:"url"`
	FormatID           string `json:"formatId"`
	Cookies            string `json:"cookies,omitempty"`
	CookiesFromBrowser string `json:"cookiesFromBrowser,omitempty"`
}

// DownloadMode tells which branch produced a DownloadResult.
type DownloadMode string

const (
	DownloadModeStream DownloadMode = "stream"
	DownloadModeMerge  DownloadMode = "merge"
)

// DownloadResult is a fully buffered media payload.
type DownloadResult struct {
	MIMEType string
	Filename string
	Data     []byte
	Platform Platform
	Mode     DownloadMode
}

func (r *DownloadResult) ContentLength() int {
	return len(r.Data)
}

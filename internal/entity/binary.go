package entity

// BinarySet holds the resolved external tools. It is immutable once resolved.
type BinarySet struct {
	ExtractorPath  string
	TranscoderPath string // Empty when no transcoder is available
	PlatformTag    string
}

func (b *BinarySet) HasTranscoder() bool {
	return b.TranscoderPath != ""
}

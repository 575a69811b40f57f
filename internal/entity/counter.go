package entity

// DownloadCounter is one statistics row, used for dumps.
type DownloadCounter struct {
	Key     string `yaml:"key"`
	Counter int64  `yaml:"counter"`
}

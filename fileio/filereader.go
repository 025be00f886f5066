package fileio

// ChunkSource hands out file chunks one at a time. A zero-length chunk marks the end of the file.
type ChunkSource interface {
	Poll() ([]byte, error)
	Acknowledge()
	Close() error
}

package fileio

import (
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
)

// Checksum is a running CRC32 over bytes as they leave the client
type Checksum struct {
	crc32Hash uint32
	total     int64
}

// Update adds data to the checksum
func (c *Checksum) Update(data []byte) {
	c.crc32Hash = progressiveChecksumCRC32(c.crc32Hash, data)
	c.total += int64(len(data))
}

// Sum returns the big endian CRC32 of everything seen so far
func (c *Checksum) Sum() []byte {
	return binary.BigEndian.AppendUint32(make([]byte, 0, 4), c.crc32Hash)
}

// Total returns the number of bytes seen
func (c *Checksum) Total() int64 {
	return c.total
}

// GetFileChecksumCRC32 returns CRC32 checksum of given file
func GetFileChecksumCRC32(file string) ([]byte, error) {
	handle, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	hash := crc32.New(crc32.IEEETable)
	if _, err := io.CopyBuffer(hash, handle, make([]byte, 64*1024)); err != nil {
		return nil, err
	}

	return hash.Sum(nil), nil
}

// progressiveChecksumCRC32 incrementally calculates CRC32 checksum
func progressiveChecksumCRC32(hash uint32, data []byte) uint32 {
	return crc32.Update(hash, crc32.IEEETable, data)
}

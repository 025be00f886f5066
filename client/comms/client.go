package comms

import (
	"bytes"
	"fmt"
	"net"
	"time"

	"file_dump/networking"

	"golang.org/x/net/ipv4"
)

// Options control how a connection is opened
type Options struct {
	Timeout     time.Duration // Read timeout for server replies
	DialTimeout time.Duration
	TOS         int // IP TOS byte, 0 leaves marking alone
	BlockSize   int // Largest frame payload
}

// Conn is a single transfer connection to the ingestion service
type Conn struct {
	socket  net.Conn
	frames  *networking.FrameWriter
	timeout time.Duration
}

// Connect opens TCP connection to target host address
func Connect(address string, opts Options) (*Conn, error) {
	if _, err := net.ResolveTCPAddr("tcp", address); err != nil {
		return nil, err
	}
	dial := &net.Dialer{Timeout: opts.DialTimeout}
	// Connect to host.
	conn, err := dial.Dial("tcp", address)
	if err != nil {
		return nil, err
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		// Set TCP_NODELAY to always immediately send.
		tcp.SetNoDelay(true)
	}
	if opts.TOS > 0 {
		// Priority marking. NOTE: On Windows by default it will not apply the value.
		ipv4.NewConn(conn).SetTOS(opts.TOS)
	}
	return newConn(conn, opts), nil
}

func newConn(conn net.Conn, opts Options) *Conn {
	return &Conn{
		socket:  conn,
		frames:  networking.NewFrameWriter(conn, opts.BlockSize),
		timeout: opts.Timeout,
	}
}

// Handshake sends file name and size and reports whether the server accepted the file
func (c *Conn) Handshake(name string, size int64) (bool, error) {
	// File info goes out in a single write.
	hello := new(bytes.Buffer)
	if err := networking.WriteUTF(hello, name); err != nil {
		return false, err
	}
	networking.WriteInt64(hello, size)
	if _, err := c.socket.Write(hello.Bytes()); err != nil {
		return false, fmt.Errorf("send file info: %w", err)
	}
	accepted, err := c.readBool()
	if err != nil {
		return false, fmt.Errorf("read accept: %w", err)
	}
	return accepted, nil
}

// WriteChunk sends chunk as frames, flushing each one
func (c *Conn) WriteChunk(chunk []byte) error {
	return c.frames.WriteChunk(chunk)
}

// Finalize sends the EOF marker and waits for the server verdict
func (c *Conn) Finalize() (bool, error) {
	if err := c.frames.WriteEOF(); err != nil {
		return false, fmt.Errorf("send eof: %w", err)
	}
	success, err := c.readBool()
	if err != nil {
		return false, fmt.Errorf("read success: %w", err)
	}
	return success, nil
}

// Frames returns the number of data frames sent so far
func (c *Conn) Frames() int64 {
	return c.frames.Frames()
}

// RemoteAddr returns the server address
func (c *Conn) RemoteAddr() string {
	return c.socket.RemoteAddr().String()
}

// Close closes socket
func (c *Conn) Close() error {
	return c.socket.Close()
}

// readBool reads one reply byte within the read timeout
func (c *Conn) readBool() (bool, error) {
	if c.timeout > 0 {
		if err := c.socket.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return false, err
		}
		defer c.socket.SetReadDeadline(time.Time{})
	}
	return networking.ReadBool(c.socket)
}

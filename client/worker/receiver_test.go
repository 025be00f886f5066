package worker

import (
	"encoding/binary"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// receiver is the server half of the protocol, recording what it sees
type receiver struct {
	accept      bool
	success     bool
	silent      bool // never answer the handshake
	dropAfter   int  // close after this many frames when > 0
	silentOnEOF bool // never answer the EOF marker

	mu       sync.Mutex
	conns    int
	name     string
	size     int64
	frames   []int32
	payload  []byte
	eofs     int
	trailing int // bytes received after the EOF marker
	done     chan struct{}
	release  chan struct{}
}

func newReceiver(accept, success bool) *receiver {
	return &receiver{
		accept:  accept,
		success: success,
		done:    make(chan struct{}),
		release: make(chan struct{}),
	}
}

// start listens on loopback and serves a single connection
func (r *receiver) start(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() {
		close(r.release)
		l.Close()
	})

	go func() {
		defer close(r.done)
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r.mu.Lock()
		r.conns++
		r.mu.Unlock()
		r.handle(conn)
	}()
	return l.Addr().String()
}

func (r *receiver) handle(conn net.Conn) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return
	}
	name := make([]byte, binary.BigEndian.Uint16(lenBuf[:]))
	if _, err := io.ReadFull(conn, name); err != nil {
		return
	}
	var sizeBuf [8]byte
	if _, err := io.ReadFull(conn, sizeBuf[:]); err != nil {
		return
	}
	r.mu.Lock()
	r.name = string(name)
	r.size = int64(binary.BigEndian.Uint64(sizeBuf[:]))
	r.mu.Unlock()

	if r.silent {
		<-r.release
		return
	}
	if !r.accept {
		conn.Write([]byte{0})
		return
	}
	conn.Write([]byte{1})

	for {
		var hdr [4]byte
		if _, err := io.ReadFull(conn, hdr[:]); err != nil {
			return
		}
		length := int32(binary.BigEndian.Uint32(hdr[:]))
		if length == -1 {
			r.mu.Lock()
			r.eofs++
			r.mu.Unlock()
			break
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(conn, data); err != nil {
			return
		}
		r.mu.Lock()
		r.frames = append(r.frames, length)
		r.payload = append(r.payload, data...)
		count := len(r.frames)
		r.mu.Unlock()
		if r.dropAfter > 0 && count >= r.dropAfter {
			return
		}
	}

	if r.silentOnEOF {
		<-r.release
		return
	}
	if r.success {
		conn.Write([]byte{1})
	} else {
		conn.Write([]byte{0})
	}

	// Anything after the EOF marker is a protocol violation.
	rest, _ := io.Copy(io.Discard, conn)
	r.mu.Lock()
	r.trailing = int(rest)
	r.mu.Unlock()
}

// wait blocks until the served connection has been fully handled
func (r *receiver) wait(t *testing.T) {
	t.Helper()
	<-r.done
}

package constants

import "time"

const (
	Title = "Pushes files to a remote ingestion service"

	DEFAULT_FILE_CHUNK_SIZE = 1024 // 1MB disk reads
	MIN_CLIENT_CHUNK_SIZE   = 64   // Client minimum chunk size
	MAX_CLIENT_CHUNK_SIZE   = 8192 // Client max chunk size
	DEFAULT_BLOCK_SIZE      = 64   // 64K frames on the wire
	MIN_BLOCK_SIZE          = 1    // Smallest frame payload in KB
	DEFAULT_RING_SLOTS      = 3    // Chunks buffered ahead of the network
	MIN_RING_SLOTS          = 2
	MAX_RING_SLOTS          = 4
	DEFAULT_PORT            = 9988
	DEFAULT_TOS             = 0x18 // Traffic class 24: low delay + high throughput
	DEFAULT_TIMEOUT         = 120  // Read timeout in seconds
	DEFAULT_RETRY_INTERVAL  = 30   // Seconds between attempts for a rejected file
	DEFAULT_PARALLEL        = 4    // Files in flight at once
	DEFAULT_PROGRESS        = 10   // Seconds between progress events
	MAX_UTF_LENGTH          = 65535
	EOF_MARKER              = -1
	DIAL_TIMEOUT            = 10 * time.Second
)

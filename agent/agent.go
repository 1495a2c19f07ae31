// Package agent defines the low-level remote-namespace primitives that the
// node layer consumes, plus a 9P2000-backed implementation of them.
//
// The node layer (package nsfs) never parses protocol frames; everything it
// needs from the server goes through the Agent interface. Tests substitute
// the in-memory implementation from package mockagent.
package agent

import (
	"context"
	"errors"
	"io"
	"time"
)

// Metadata describes a single entry in the remote namespace.
type Metadata struct {
	// Name is the entry's own name, without any directory prefix.
	Name string
	// Size is the length reported by the server, in bytes. Synthetic
	// control files commonly report zero regardless of content.
	Size int64
	// Mode holds the server's raw permission/type bits.
	Mode uint32
	// IsDir classifies the entry as directory or file.
	IsDir bool
	// ModTime is the server-reported modification time.
	ModTime time.Time
}

// Mode selects how Open accesses a remote file.
type Mode int

const (
	// ModeRead opens for reading only.
	ModeRead Mode = iota
	// ModeWrite opens for writing and truncates existing content.
	ModeWrite
	// ModeReadWrite opens for both reading and writing.
	ModeReadWrite
)

// PermDir marks a created entry as a directory. This is the 9P DMDIR bit;
// it is combined with ordinary permission bits in calls to Create.
const PermDir uint32 = 1 << 31

// Handle is an open file on the remote server. Read returns whatever chunk
// the server hands back next; a zero-length read marks end of stream and is
// reported as io.EOF. Handles are not safe for concurrent use.
type Handle interface {
	io.Reader
	io.Writer
	io.Closer
}

// Agent is the protocol client the node layer delegates every remote
// operation to. Implementations must be safe for concurrent use; a single
// agent is shared by all nodes of a tree.
type Agent interface {
	// Stat fetches metadata for the entry at path.
	Stat(ctx context.Context, path string) (Metadata, error)

	// Entries lists the names contained in the directory at path.
	Entries(ctx context.Context, path string) ([]string, error)

	// Open opens the file at path for streaming I/O.
	Open(ctx context.Context, path string, mode Mode) (Handle, error)

	// Read returns the full content of the file at path.
	Read(ctx context.Context, path string) ([]byte, error)

	// Write replaces the content of the file at path.
	Write(ctx context.Context, path string, data []byte) error

	// Create makes a new entry at path with the given permission bits.
	// Combine perm with PermDir to create a directory.
	Create(ctx context.Context, path string, perm uint32) error

	// Remove deletes the entry at path.
	Remove(ctx context.Context, path string) error

	// Close tears down the underlying connection. Operations after Close
	// fail with ErrClosed.
	Close() error
}

// ErrClosed is returned for operations on a closed agent or handle.
var ErrClosed = errors.New("agent: connection closed")

// Verify that NinePAgent implements Agent at compile time.
var _ Agent = (*NinePAgent)(nil)

package agent

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"path"
	"strings"
	"sync"

	p9p "github.com/docker/go-p9p"
)

// chunkSize bounds single read/write payloads. Kept well under the usual
// negotiated msize so transfers work against servers with small IO units.
const chunkSize = 8 * 1024

// maxWalkNames is the 9P2000 limit on names in a single walk request.
const maxWalkNames = 16

// NinePAgent speaks 9P2000 over a single established connection. All
// operations walk a fresh fid from the attach root, so concurrent calls
// never share per-file protocol state; the session itself multiplexes
// requests by tag.
type NinePAgent struct {
	conn    net.Conn
	session p9p.Session
	codec   p9p.Codec
	root    p9p.Fid

	mu      sync.Mutex
	nextFid p9p.Fid
	closed  bool
}

// Dial connects to a 9P server at addr over the given network ("unix" or
// "tcp") and attaches to its root as user.
func Dial(ctx context.Context, network, addr, user string) (*NinePAgent, error) {
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s!%s: %w", network, addr, err)
	}

	session, err := p9p.NewSession(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("establish 9p session with %s: %w", addr, err)
	}

	a := &NinePAgent{
		conn:    conn,
		session: session,
		codec:   p9p.NewCodec(),
		root:    0,
		nextFid: 1,
	}

	if _, err := session.Attach(ctx, a.root, p9p.NOFID, user, ""); err != nil {
		conn.Close()
		return nil, fmt.Errorf("attach to %s as %q: %w", addr, user, err)
	}

	return a, nil
}

func (a *NinePAgent) allocFid() (p9p.Fid, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return 0, ErrClosed
	}
	fid := a.nextFid
	a.nextFid++
	return fid, nil
}

func (a *NinePAgent) clunk(ctx context.Context, fid p9p.Fid) {
	_ = a.session.Clunk(ctx, fid)
}

// walk clones the attach root and steps the clone to path. 9P caps a
// single walk at 16 names, so deep paths take multiple hops. The caller
// owns the returned fid and must clunk it.
func (a *NinePAgent) walk(ctx context.Context, p string) (p9p.Fid, error) {
	fid, err := a.allocFid()
	if err != nil {
		return 0, err
	}

	names := splitPath(p)
	from := a.root
	for {
		n := min(len(names), maxWalkNames)
		qids, err := a.session.Walk(ctx, from, fid, names[:n]...)
		if err != nil {
			if from == fid {
				a.clunk(ctx, fid)
			}
			return 0, fmt.Errorf("walk %q: %w", p, err)
		}
		if len(qids) < n {
			// Partial walk: the fid was not moved, but the clone from
			// an earlier hop still needs to be released.
			if from == fid {
				a.clunk(ctx, fid)
			}
			return 0, fmt.Errorf("walk %q: %q does not exist", p, names[len(qids)])
		}
		names = names[n:]
		if len(names) == 0 {
			return fid, nil
		}
		from = fid
	}
}

// splitPath breaks a slash-separated path into its non-empty segments.
func splitPath(p string) []string {
	var names []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			names = append(names, seg)
		}
	}
	return names
}

func metadataFromDir(d p9p.Dir) Metadata {
	return Metadata{
		Name:    d.Name,
		Size:    int64(d.Length),
		Mode:    d.Mode,
		IsDir:   d.Mode&p9p.DMDIR != 0,
		ModTime: d.ModTime,
	}
}

// Stat fetches metadata for the entry at path.
func (a *NinePAgent) Stat(ctx context.Context, path string) (Metadata, error) {
	fid, err := a.walk(ctx, path)
	if err != nil {
		return Metadata{}, err
	}
	defer a.clunk(ctx, fid)

	d, err := a.session.Stat(ctx, fid)
	if err != nil {
		return Metadata{}, fmt.Errorf("stat %q: %w", path, err)
	}
	return metadataFromDir(d), nil
}

// Entries lists the names contained in the directory at path. Reading a
// directory fid yields a stream of marshaled stat records; each read
// returns a whole number of records.
func (a *NinePAgent) Entries(ctx context.Context, path string) ([]string, error) {
	fid, err := a.walk(ctx, path)
	if err != nil {
		return nil, err
	}
	defer a.clunk(ctx, fid)

	if _, _, err := a.session.Open(ctx, fid, p9p.OREAD); err != nil {
		return nil, fmt.Errorf("open %q for listing: %w", path, err)
	}

	names := []string{}
	buf := make([]byte, chunkSize)
	var offset int64
	for {
		n, err := a.session.Read(ctx, fid, buf, offset)
		if n > 0 {
			rd := bytes.NewReader(buf[:n])
			for rd.Len() > 0 {
				var d p9p.Dir
				if err := p9p.DecodeDir(a.codec, rd, &d); err != nil {
					return nil, fmt.Errorf("decode directory entry in %q: %w", path, err)
				}
				names = append(names, d.Name)
			}
			offset += int64(n)
		}
		if err == io.EOF || n == 0 {
			return names, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read directory %q: %w", path, err)
		}
	}
}

// Open opens the file at path for streaming I/O.
func (a *NinePAgent) Open(ctx context.Context, path string, mode Mode) (Handle, error) {
	fid, err := a.walk(ctx, path)
	if err != nil {
		return nil, err
	}

	var flag p9p.Flag
	switch mode {
	case ModeWrite:
		flag = p9p.OWRITE | p9p.OTRUNC
	case ModeReadWrite:
		flag = p9p.ORDWR
	default:
		flag = p9p.OREAD
	}

	if _, _, err := a.session.Open(ctx, fid, flag); err != nil {
		a.clunk(ctx, fid)
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	return &ninePHandle{agent: a, ctx: ctx, fid: fid}, nil
}

// Read returns the full content of the file at path.
func (a *NinePAgent) Read(ctx context.Context, path string) ([]byte, error) {
	h, err := a.Open(ctx, path, ModeRead)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	data, err := io.ReadAll(h)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	return data, nil
}

// Write replaces the content of the file at path.
func (a *NinePAgent) Write(ctx context.Context, path string, data []byte) error {
	fid, err := a.walk(ctx, path)
	if err != nil {
		return err
	}
	defer a.clunk(ctx, fid)

	if _, _, err := a.session.Open(ctx, fid, p9p.OWRITE|p9p.OTRUNC); err != nil {
		return fmt.Errorf("open %q for writing: %w", path, err)
	}

	var offset int64
	for len(data) > 0 {
		n := min(len(data), chunkSize)
		wrote, err := a.session.Write(ctx, fid, data[:n], offset)
		if err != nil {
			return fmt.Errorf("write %q at offset %d: %w", path, offset, err)
		}
		if wrote <= 0 {
			return fmt.Errorf("write %q: server accepted no data at offset %d", path, offset)
		}
		offset += int64(wrote)
		data = data[wrote:]
	}
	return nil
}

// Create makes a new entry under path's directory. Combine perm with
// PermDir to create a directory.
func (a *NinePAgent) Create(ctx context.Context, p string, perm uint32) error {
	dir, name := path.Dir(p), path.Base(p)
	if name == "" || name == "/" || name == "." {
		return fmt.Errorf("create %q: no entry name", p)
	}

	fid, err := a.walk(ctx, dir)
	if err != nil {
		return err
	}
	defer a.clunk(ctx, fid)

	if _, _, err := a.session.Create(ctx, fid, name, perm, p9p.OREAD); err != nil {
		return fmt.Errorf("create %q: %w", p, err)
	}
	return nil
}

// Remove deletes the entry at path. The server clunks the fid whether or
// not the removal succeeds.
func (a *NinePAgent) Remove(ctx context.Context, path string) error {
	fid, err := a.walk(ctx, path)
	if err != nil {
		return err
	}
	if err := a.session.Remove(ctx, fid); err != nil {
		return fmt.Errorf("remove %q: %w", path, err)
	}
	return nil
}

// Close tears down the connection. The attach root is clunked on a best
// effort basis; the server releases all fids when the connection drops.
func (a *NinePAgent) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	a.clunk(context.Background(), a.root)
	return a.conn.Close()
}

// ninePHandle is an open fid with sequential read and write offsets. The
// context of the Open call is pinned for the follow-up chunk transfers,
// since io.Reader has nowhere to thread one through.
type ninePHandle struct {
	agent *NinePAgent
	ctx   context.Context
	fid   p9p.Fid

	mu     sync.Mutex
	roff   int64
	woff   int64
	closed bool
}

func (h *ninePHandle) Read(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, ErrClosed
	}
	if len(p) > chunkSize {
		p = p[:chunkSize]
	}

	n, err := h.agent.session.Read(h.ctx, h.fid, p, h.roff)
	if n > 0 {
		h.roff += int64(n)
	}
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (h *ninePHandle) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, ErrClosed
	}

	var total int
	for len(p) > 0 {
		n := min(len(p), chunkSize)
		wrote, err := h.agent.session.Write(h.ctx, h.fid, p[:n], h.woff)
		if wrote > 0 {
			h.woff += int64(wrote)
			total += wrote
			p = p[wrote:]
		}
		if err != nil {
			return total, err
		}
		if wrote == 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}

func (h *ninePHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	h.agent.clunk(h.ctx, h.fid)
	return nil
}

package nsfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"ninefs/agent"
)

// ErrNoCallback is returned when EachLine is called without a callback.
var ErrNoCallback = errors.New("nsfs: each-line callback is nil")

// lineBufSize is the per-pull read size for EachLine. Servers are free
// to return less per chunk.
const lineBufSize = 8 * 1024

// EachLine opens the node for reading and calls fn once per line, in
// order, until the stream ends. A line spanning a chunk boundary is
// reassembled before fn sees it, and trailing data after the last
// newline is delivered as a final line. Open failures propagate.
func (n *Node) EachLine(ctx context.Context, fn func(line string)) error {
	if fn == nil {
		return ErrNoCallback
	}

	h, err := n.Open(ctx, agent.ModeRead)
	if err != nil {
		return err
	}
	defer h.Close()

	var carry string
	buf := make([]byte, lineBufSize)
	for {
		nr, rerr := h.Read(buf)
		if nr > 0 {
			chunk := carry + string(buf[:nr])
			lines := strings.Split(chunk, "\n")
			carry = lines[len(lines)-1]
			for _, line := range lines[:len(lines)-1] {
				fn(line)
			}
		}
		if rerr == io.EOF || (rerr == nil && nr == 0) {
			break
		}
		if rerr != nil {
			return fmt.Errorf("read %q: %w", n.path, rerr)
		}
	}
	if carry != "" {
		fn(carry)
	}
	return nil
}

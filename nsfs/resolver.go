package nsfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"ninefs/agent"
)

// Environment variables consulted when resolving the server endpoint.
const (
	// EnvAddress holds a pre-formatted dial string such as
	// "unix!/tmp/ns.user.:0/wmii" or "tcp!host!564". When set it wins
	// over the constructed fallback.
	EnvAddress = "NINEP_ADDRESS"

	// EnvUser and EnvDisplay feed the fallback socket path when
	// EnvAddress is unset.
	EnvUser    = "USER"
	EnvDisplay = "DISPLAY"

	// EnvService overrides the service name in the fallback socket path.
	EnvService = "NINEP_SERVICE"
)

const (
	defaultDisplay = ":0.0"
	defaultService = "wmii"
)

// Address is a resolved dial target.
type Address struct {
	Network string // "unix" or "tcp"
	Addr    string
}

// String renders the address in dial-string form.
func (a Address) String() string {
	return a.Network + "!" + a.Addr
}

// ResolveAddress derives the server endpoint from the environment. A set
// EnvAddress is split at its "!" scheme separator; the Plan 9 style
// "tcp!host!port" form is accepted too. Otherwise a conventional local
// socket path is constructed from EnvUser and the leading ":<digits>"
// portion of EnvDisplay (default ":0.0").
func ResolveAddress() Address {
	if v := os.Getenv(EnvAddress); v != "" {
		if i := strings.IndexByte(v, '!'); i >= 0 {
			scheme, rest := v[:i], v[i+1:]
			if scheme == "" {
				scheme = "unix"
			}
			if scheme == "tcp" {
				if j := strings.IndexByte(rest, '!'); j >= 0 {
					rest = rest[:j] + ":" + rest[j+1:]
				}
			}
			return Address{Network: scheme, Addr: rest}
		}
		return Address{Network: "unix", Addr: v}
	}

	service := os.Getenv(EnvService)
	if service == "" {
		service = defaultService
	}
	dir := fmt.Sprintf("ns.%s.%s", os.Getenv(EnvUser), displayNumber(os.Getenv(EnvDisplay)))
	return Address{
		Network: "unix",
		Addr:    filepath.Join(os.TempDir(), dir, service),
	}
}

// displayNumber reduces a DISPLAY value such as ":0.0" to its leading
// ":<digits>" portion.
func displayNumber(display string) string {
	if display == "" {
		display = defaultDisplay
	}
	i := strings.IndexByte(display, ':')
	if i < 0 {
		return display
	}
	j := i + 1
	for j < len(display) && display[j] >= '0' && display[j] <= '9' {
		j++
	}
	return display[i:j]
}

// The process-wide tree backing the package-level functions. Dialed on
// first use and kept until Disconnect or process exit.
var (
	defaultMu   sync.Mutex
	defaultTree *Tree
	dialGroup   singleflight.Group
)

// Connect returns the shared process-wide tree, dialing the resolved
// address on first use. Concurrent first callers share a single dial.
// Connection failures are the one hard failure in this package: they
// always propagate, annotated with the environment preconditions to
// check, because no fallback namespace exists without a connection.
func Connect(ctx context.Context) (*Tree, error) {
	defaultMu.Lock()
	t := defaultTree
	defaultMu.Unlock()
	if t != nil {
		return t, nil
	}

	v, err, _ := dialGroup.Do("connect", func() (interface{}, error) {
		defaultMu.Lock()
		t := defaultTree
		defaultMu.Unlock()
		if t != nil {
			return t, nil
		}

		addr := ResolveAddress()
		a, err := agent.Dial(ctx, addr.Network, addr.Addr, os.Getenv(EnvUser))
		if err != nil {
			return nil, fmt.Errorf(
				"connect to %s: %w (check that %s holds the server's dial string, or that %s and %s name a live namespace socket)",
				addr, err, EnvAddress, EnvUser, EnvDisplay)
		}

		t = New(a, WithAddress(addr.String()))
		defaultMu.Lock()
		defaultTree = t
		defaultMu.Unlock()
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Tree), nil
}

// SetDefault installs tree as the process-wide tree used by the
// package-level functions, replacing any existing one without closing
// it. Pass nil to clear. Intended for tests and embedders that manage
// their own connection.
func SetDefault(tree *Tree) {
	defaultMu.Lock()
	defaultTree = tree
	defaultMu.Unlock()
}

// Disconnect closes the shared tree, if any, and forgets it. The next
// package-level call dials again.
func Disconnect() error {
	defaultMu.Lock()
	t := defaultTree
	defaultTree = nil
	defaultMu.Unlock()
	if t == nil {
		return nil
	}
	return t.Close()
}

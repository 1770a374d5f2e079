// Package libvirt talks to the management daemon over its local RPC socket using
// the pure-Go go-libvirt client.
package libvirt

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/aretw0/vmtune/pkg/document"
	"github.com/aretw0/vmtune/pkg/domain"
	golibvirt "github.com/digitalocean/go-libvirt"
)

// DefaultSocket is the system daemon socket.
const DefaultSocket = "/var/run/libvirt/libvirt-sock"

// Target implements ports.Target for one domain. Every call opens its own
// connection, so a Target is safe for concurrent use and holds no resources.
type Target struct {
	domain      string
	socket      string
	dialTimeout time.Duration
}

// Option configures the Target.
type Option func(*Target)

// WithSocket sets the daemon socket path.
func WithSocket(path string) Option {
	return func(t *Target) {
		if path != "" {
			t.socket = path
		}
	}
}

// WithDialTimeout bounds connection setup when the context has no deadline.
func WithDialTimeout(d time.Duration) Option {
	return func(t *Target) {
		t.dialTimeout = d
	}
}

// New creates a target for the named domain.
func New(domainName string, opts ...Option) *Target {
	t := &Target{
		domain:      domainName,
		socket:      DefaultSocket,
		dialTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Target) Name() string           { return t.domain }
func (t *Target) DocKind() document.Kind { return document.KindTree }
func (t *Target) AssignmentKey() string  { return "" }

// Export returns the inactive (persistent) definition.
func (t *Target) Export(ctx context.Context) (string, error) {
	var raw string
	err := t.with(ctx, func(l *golibvirt.Libvirt) error {
		dom, err := l.DomainLookupByName(t.domain)
		if err != nil {
			if golibvirt.IsNotFound(err) {
				return fmt.Errorf("%w: %s", domain.ErrTargetNotFound, t.domain)
			}
			return fmt.Errorf("lookup %s: %w", t.domain, err)
		}
		raw, err = l.DomainGetXMLDesc(dom, golibvirt.DomainXMLInactive)
		if err != nil {
			return fmt.Errorf("dump %s: %w", t.domain, err)
		}
		return nil
	})
	return raw, err
}

// Define submits raw as the persistent definition. Errors reported by the daemon
// reject the candidate; transport failures do not.
func (t *Target) Define(ctx context.Context, raw string) error {
	return t.with(ctx, func(l *golibvirt.Libvirt) error {
		if _, err := l.DomainDefineXML(raw); err != nil {
			var lerr golibvirt.Error
			if errors.As(err, &lerr) {
				return fmt.Errorf("%w: %w", domain.ErrRejected, err)
			}
			return fmt.Errorf("define %s: %w", t.domain, err)
		}
		return nil
	})
}

// with dials the socket, performs the connect handshake and runs fn. The context
// deadline becomes the connection deadline, since RPCs take no context.
func (t *Target) with(ctx context.Context, fn func(*golibvirt.Libvirt) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// 1. Dial
	dialCtx := ctx
	if _, ok := ctx.Deadline(); !ok && t.dialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, t.dialTimeout)
		defer cancel()
	}
	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "unix", t.socket)
	if err != nil {
		return fmt.Errorf("dial libvirt socket %q: %w", t.socket, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	// 2. Abort in-flight RPCs on cancellation
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	// 3. Handshake
	l := golibvirt.New(conn)
	if err := l.Connect(); err != nil {
		_ = conn.Close()
		return fmt.Errorf("libvirt connect: %w", err)
	}
	defer func() {
		_ = l.Disconnect()
	}()

	if err := fn(l); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ctxErr, err)
		}
		return err
	}
	return nil
}

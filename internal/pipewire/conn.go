package pipewire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Default connection settings.
const (
	// DefaultRemote is the socket name used when neither the config nor
	// PIPEWIRE_REMOTE names one.
	DefaultRemote = "pipewire-0"

	// DefaultClientName is announced as application.name.
	DefaultClientName = "graylogic-audio"

	// defaultConnectTimeout bounds dial plus handshake.
	defaultConnectTimeout = 10 * time.Second

	// defaultWriteTimeout bounds a single request write.
	defaultWriteTimeout = 5 * time.Second

	// readChunkSize is the socket read size.
	readChunkSize = 64 * 1024

	// oobSize leaves room for a control message carrying up to 28 fds.
	oobSize = 28 * 4 * 2
)

// Config holds connection settings for a session.
type Config struct {
	// Remote is the server socket. Accepted forms:
	//   - "" (PIPEWIRE_REMOTE, else "pipewire-0")
	//   - "pipewire-0" (name resolved in the runtime directory)
	//   - "/run/user/1000/pipewire-0" (absolute path)
	//   - "unix:///run/user/1000/pipewire-0"
	Remote string

	// ClientName is announced to the server as application.name.
	// Default: "graylogic-audio".
	ClientName string

	// Properties are extra client properties sent after Hello.
	Properties map[string]string

	// ConnectTimeout bounds dial and handshake.
	// Default: 10 seconds.
	ConnectTimeout time.Duration

	// SyncTimeout bounds one sync barrier wait. Zero waits indefinitely.
	SyncTimeout time.Duration
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// dispatcher receives the events addressed to one proxy.
type dispatcher interface {
	dispatch(msg *message) error
}

// Conn is a client connection to the PipeWire server.
//
// Conn is not safe for concurrent use. It is owned by the goroutine driving
// the session's MainLoop.
type Conn struct {
	conn net.Conn
	unix *net.UnixConn

	rbuf  []byte
	chunk []byte
	oob   []byte

	seq    uint32
	nextID uint32

	objects map[uint32]dispatcher

	closeOnce sync.Once
	closeErr  error
	closed    bool

	logger Logger
}

// resolveRemote turns a remote setting into a socket path.
func resolveRemote(remote string) (string, error) {
	if remote == "" {
		remote = os.Getenv("PIPEWIRE_REMOTE")
	}
	if remote == "" {
		remote = DefaultRemote
	}

	if strings.Contains(remote, "://") {
		u, err := url.Parse(remote)
		if err != nil {
			return "", fmt.Errorf("invalid URL: %w", err)
		}
		if u.Scheme != "unix" {
			return "", fmt.Errorf("unsupported scheme %q (use unix)", u.Scheme)
		}
		if u.Path == "" {
			return "", errors.New("unix URL has no path")
		}
		return u.Path, nil
	}

	if filepath.IsAbs(remote) {
		return remote, nil
	}

	for _, env := range []string{"PIPEWIRE_RUNTIME_DIR", "XDG_RUNTIME_DIR", "USERPROFILE"} {
		if dir := os.Getenv(env); dir != "" {
			return filepath.Join(dir, remote), nil
		}
	}
	return "", fmt.Errorf("cannot resolve %q: no runtime directory set", remote)
}

// dial connects to the server and performs the client handshake: Hello on
// the core followed by the client properties.
func dial(ctx context.Context, cfg Config, logger Logger) (*Conn, error) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.ClientName == "" {
		cfg.ClientName = DefaultClientName
	}

	path, err := resolveRemote(cfg.Remote)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	var dialer net.Dialer
	nc, err := dialer.DialContext(connectCtx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrConnectionFailed, path, err)
	}

	c := newConn(nc, logger)

	if err := c.hello(cfg); err != nil {
		c.Close()
		return nil, fmt.Errorf("%w: handshake failed: %w", ErrConnectionFailed, err)
	}

	return c, nil
}

func newConn(nc net.Conn, logger Logger) *Conn {
	c := &Conn{
		conn:    nc,
		chunk:   make([]byte, readChunkSize),
		oob:     make([]byte, oobSize),
		nextID:  firstDynamicID,
		objects: make(map[uint32]dispatcher),
		logger:  logger,
	}
	if uc, ok := nc.(*net.UnixConn); ok {
		c.unix = uc
	}
	return c
}

// hello sends Core.Hello and Client.UpdateProperties.
func (c *Conn) hello(cfg Config) error {
	var b podBuilder
	b.Struct(func(b *podBuilder) {
		b.Int(protocolVersion)
	})
	if _, err := c.send(CoreID, coreMethodHello, b.bytes()); err != nil {
		return fmt.Errorf("hello: %w", err)
	}

	props := PropertiesFromMap(cfg.Properties)
	props.Set(KeyApplicationName, cfg.ClientName)

	b = podBuilder{}
	b.Struct(func(b *podBuilder) {
		b.Struct(func(b *podBuilder) {
			b.Dict(props)
		})
	})
	if _, err := c.send(ClientID, clientMethodUpdateProperties, b.bytes()); err != nil {
		return fmt.Errorf("update properties: %w", err)
	}
	return nil
}

// send frames and writes one method call and returns its sequence number.
func (c *Conn) send(id uint32, opcode uint8, body []byte) (uint32, error) {
	if c.closed {
		return 0, ErrClosed
	}
	seq := c.seq
	msg, err := encodeMessage(id, opcode, seq, body)
	if err != nil {
		return 0, err
	}
	c.seq++

	if err := c.conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout)); err != nil {
		return 0, fmt.Errorf("set write deadline: %w", err)
	}
	if _, err := c.conn.Write(msg); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, fmt.Errorf("%w: write: %w", ErrTimeout, err)
		}
		return 0, fmt.Errorf("%w: write: %w", ErrDisconnected, err)
	}
	return seq, nil
}

// allocID reserves a client-side object id.
func (c *Conn) allocID() uint32 {
	id := c.nextID
	c.nextID++
	return id
}

// bind routes events for id to d.
func (c *Conn) bind(id uint32, d dispatcher) {
	c.objects[id] = d
}

// readMessage blocks until one full message is buffered and returns it.
// An oversized frame returns ErrProtocolDesync, which is fatal.
func (c *Conn) readMessage() (*message, error) {
	if c.closed {
		return nil, ErrClosed
	}

	if err := c.fill(headerSize); err != nil {
		return nil, err
	}
	msg, size, err := parseHeader(c.rbuf[:headerSize])
	if err != nil {
		return nil, err
	}
	if size > maxBufferedPayload {
		c.logError("oversized message, closing connection to prevent desync",
			fmt.Errorf("size %d exceeds limit %d", size, maxBufferedPayload))
		return nil, ErrProtocolDesync
	}

	total := headerSize + size
	if err := c.fill(total); err != nil {
		return nil, err
	}
	msg.body = make([]byte, size)
	copy(msg.body, c.rbuf[headerSize:total])
	c.rbuf = c.rbuf[:copy(c.rbuf, c.rbuf[total:])]
	return msg, nil
}

// fill reads from the socket until at least n bytes are buffered.
func (c *Conn) fill(n int) error {
	for len(c.rbuf) < n {
		var (
			read, oobn int
			err        error
		)
		if c.unix != nil {
			read, oobn, _, _, err = c.unix.ReadMsgUnix(c.chunk, c.oob)
		} else {
			read, err = c.conn.Read(c.chunk)
		}
		if oobn > 0 {
			c.releaseFds(c.oob[:oobn])
		}
		// A failed recvmsg reports read as -1.
		if read > 0 {
			c.rbuf = append(c.rbuf, c.chunk[:read]...)
		}
		// recvmsg signals an orderly shutdown with a zero-length read.
		if err == nil && read <= 0 && oobn == 0 {
			err = io.EOF
		}
		if err != nil {
			if len(c.rbuf) >= n {
				return nil
			}
			if errors.Is(err, io.EOF) || errors.Is(err, unix.ECONNRESET) {
				return fmt.Errorf("%w: %w", ErrDisconnected, err)
			}
			return err
		}
	}
	return nil
}

// releaseFds closes file descriptors passed with SCM_RIGHTS.
// Memory and event fds are never used by a metadata client.
func (c *Conn) releaseFds(oob []byte) {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		c.logError("parse control message failed", err)
		return
	}
	for i := range msgs {
		fds, err := unix.ParseUnixRights(&msgs[i])
		if err != nil {
			continue
		}
		for _, fd := range fds {
			unix.Close(fd) //nolint:errcheck // best effort
		}
		if c.logger != nil && len(fds) > 0 {
			c.logger.Debug("released passed file descriptors", "count", len(fds))
		}
	}
}

// setReadDeadline applies t to subsequent reads.
func (c *Conn) setReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// Close closes the socket. Safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed = true
		c.objects = make(map[uint32]dispatcher)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *Conn) logError(msg string, err error) {
	if c.logger != nil {
		c.logger.Error(msg, "error", err)
	}
}

// Package mount drives telescope mounts over a serial line.
//
// SerialMount owns the port lifecycle and the command exchange shared by
// every serial mount. Concrete mounts such as IoptronMount embed it and add
// their position and model queries.
package mount

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.bug.st/serial"

	scopeerrors "github.com/chazuruo/scopectl/internal/errors"
)

// DefaultReadTimeout bounds each read while waiting for a reply.
const DefaultReadTimeout = 2 * time.Second

// Mount is a telescope mount that can be connected and reports where it is.
type Mount interface {
	Position() Location
	Connected() bool
	Connect(ctx context.Context) error
	Close() error
	PolarAligned() bool
	SetPolarAligned(aligned bool)
}

// Port is the subset of a serial port the driver needs.
// go.bug.st/serial.Port satisfies it.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// Opener opens the named device with the given settings.
type Opener func(name string, mode *serial.Mode) (Port, error)

// OpenSerial is the default Opener, backed by go.bug.st/serial.
func OpenSerial(name string, mode *serial.Mode) (Port, error) {
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Option configures a SerialMount.
type Option func(*SerialMount)

// WithPort hands the mount an already-open port. Config validation is
// skipped and the mount starts connected.
func WithPort(p Port) Option {
	return func(m *SerialMount) { m.port = p }
}

// WithOpener replaces the function used to open the device.
func WithOpener(o Opener) Option {
	return func(m *SerialMount) { m.opener = o }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *SerialMount) { m.logger = l }
}

// WithSite sets the observing site reported by mounts that do not
// measure their own position.
func WithSite(site Location) Option {
	return func(m *SerialMount) { m.site = site }
}

// WithReadTimeout sets the per-read timeout applied after opening.
// Non-positive values keep DefaultReadTimeout; reads are never unbounded.
func WithReadTimeout(d time.Duration) Option {
	return func(m *SerialMount) {
		if d > 0 {
			m.readTimeout = d
		}
	}
}

// SerialMount holds the serial connection shared by all serial mounts.
// It is safe for concurrent use.
type SerialMount struct {
	cfg         SerialConfig
	site        Location
	opener      Opener
	logger      *slog.Logger
	readTimeout time.Duration

	mu           sync.Mutex
	port         Port
	session      string
	polarAligned bool
}

// NewSerialMount validates cfg and returns a disconnected mount. When WithPort
// supplies an open port, cfg is not validated.
func NewSerialMount(cfg SerialConfig, opts ...Option) (*SerialMount, error) {
	m := &SerialMount{
		cfg:         cfg,
		opener:      OpenSerial,
		logger:      slog.Default(),
		readTimeout: DefaultReadTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.port != nil {
		m.session = uuid.NewString()
		return m, nil
	}

	if ok, problems := ValidateConfig(cfg.Raw()); !ok {
		for _, p := range problems {
			m.logger.Warn("invalid mount serial config", "problem", p)
		}
		return nil, &scopeerrors.ConfigError{Err: &scopeerrors.ValidationError{Problems: problems}}
	}

	return m, nil
}

// Config returns the serial settings the mount was built with.
func (m *SerialMount) Config() SerialConfig {
	return m.cfg
}

// Connected reports whether the mount holds an open port.
func (m *SerialMount) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.port != nil
}

// Connect opens the serial port. It is a no-op when already connected.
func (m *SerialMount) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.port != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return &scopeerrors.SerialError{Op: "open", Port: m.cfg.Port, Err: fmt.Errorf("%w: %w", scopeerrors.ErrCanceled, err)}
	}

	mode, err := m.cfg.Mode()
	if err != nil {
		return &scopeerrors.SerialError{Op: "open", Port: m.cfg.Port, Err: err}
	}

	p, err := m.opener(m.cfg.Port, mode)
	if err != nil {
		return &scopeerrors.SerialError{Op: "open", Port: m.cfg.Port, Err: fmt.Errorf("%w: %w", scopeerrors.ErrIO, err)}
	}

	if err := p.SetReadTimeout(m.readTimeout); err != nil {
		_ = p.Close()
		return &scopeerrors.SerialError{Op: "configure", Port: m.cfg.Port, Err: fmt.Errorf("%w: %w", scopeerrors.ErrIO, err)}
	}

	m.port = p
	m.session = uuid.NewString()
	m.logger.Info("mount connected",
		"port", m.cfg.Port,
		"baud_rate", m.cfg.BaudRate,
		"session", m.session)

	return nil
}

// Close releases the port. Closing a disconnected mount does nothing.
func (m *SerialMount) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.port == nil {
		return nil
	}

	err := m.port.Close()
	m.logger.Info("mount disconnected", "port", m.cfg.Port, "session", m.session)
	m.port = nil
	m.session = ""

	if err != nil {
		return &scopeerrors.SerialError{Op: "close", Port: m.cfg.Port, Err: fmt.Errorf("%w: %w", scopeerrors.ErrIO, err)}
	}
	return nil
}

// PolarAligned reports whether the mount has been marked polar aligned.
func (m *SerialMount) PolarAligned() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.polarAligned
}

// SetPolarAligned records the polar alignment state.
func (m *SerialMount) SetPolarAligned(aligned bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polarAligned = aligned
}

// Site returns the configured observing site.
func (m *SerialMount) Site() Location {
	return m.site
}

// Query writes cmd and reads a reply of exactly n bytes. Bytes arriving
// after the first n are an error, since they belong to no command.
func (m *SerialMount) Query(ctx context.Context, cmd string, n int) (string, error) {
	reply, err := m.exchange(ctx, cmd, func(buf []byte) bool { return len(buf) >= n })
	if err != nil {
		return "", err
	}
	if len(reply) > n {
		return "", &scopeerrors.SerialError{Op: "read", Port: m.cfg.Port,
			Err: fmt.Errorf("%w: reply to %q is %d bytes, want %d", scopeerrors.ErrInvalid, cmd, len(reply), n)}
	}
	return reply, nil
}

// QueryTerminated writes cmd and reads until term is seen. The terminator
// is stripped from the returned reply.
func (m *SerialMount) QueryTerminated(ctx context.Context, cmd string, term byte) (string, error) {
	reply, err := m.exchange(ctx, cmd, func(buf []byte) bool { return bytes.IndexByte(buf, term) >= 0 })
	if err != nil {
		return "", err
	}
	if i := bytes.IndexByte([]byte(reply), term); i >= 0 {
		reply = reply[:i]
	}
	return reply, nil
}

// inputResetter is implemented by ports that can discard unread input.
// go.bug.st/serial.Port does.
type inputResetter interface {
	ResetInputBuffer() error
}

// exchange holds the port lock for the whole round trip so concurrent
// commands never interleave on the wire. Cancelling ctx closes the port,
// which unblocks a pending Read and leaves the mount disconnected.
func (m *SerialMount) exchange(ctx context.Context, cmd string, done func([]byte) bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.port == nil {
		return "", &scopeerrors.SerialError{Op: "write", Port: m.cfg.Port, Err: scopeerrors.ErrNotConnected}
	}
	if err := ctx.Err(); err != nil {
		return "", m.canceled(err)
	}

	// A late reply to an earlier, timed out command must not be read as
	// the reply to this one.
	if r, ok := m.port.(inputResetter); ok {
		if err := r.ResetInputBuffer(); err != nil {
			return "", &scopeerrors.SerialError{Op: "flush", Port: m.cfg.Port, Err: fmt.Errorf("%w: %w", scopeerrors.ErrIO, err)}
		}
	}

	port := m.port
	stop := context.AfterFunc(ctx, func() { _ = port.Close() })
	reply, err := m.roundTrip(ctx, cmd, done)
	if !stop() {
		// The port was closed under us; it cannot be reused.
		m.dropPort()
		return "", m.canceled(ctx.Err())
	}
	if err != nil {
		return "", err
	}

	m.logger.Debug("mount reply received", "cmd", cmd, "reply", reply, "session", m.session)
	return reply, nil
}

func (m *SerialMount) roundTrip(ctx context.Context, cmd string, done func([]byte) bool) (string, error) {
	if _, err := io.WriteString(m.port, cmd); err != nil {
		return "", &scopeerrors.SerialError{Op: "write", Port: m.cfg.Port, Err: fmt.Errorf("%w: %w", scopeerrors.ErrIO, err)}
	}
	m.logger.Debug("mount command sent", "cmd", cmd, "session", m.session)

	var reply []byte
	chunk := make([]byte, 64)
	for !done(reply) {
		if err := ctx.Err(); err != nil {
			return "", m.canceled(err)
		}

		n, err := m.port.Read(chunk)
		if err != nil {
			return "", &scopeerrors.SerialError{Op: "read", Port: m.cfg.Port, Err: fmt.Errorf("%w: %w", scopeerrors.ErrIO, err)}
		}
		// go.bug.st/serial signals a read timeout with (0, nil).
		if n == 0 {
			return "", &scopeerrors.SerialError{Op: "read", Port: m.cfg.Port, Err: fmt.Errorf("%w: timed out waiting for reply to %q", scopeerrors.ErrIO, cmd)}
		}
		reply = append(reply, chunk[:n]...)
	}
	return string(reply), nil
}

// dropPort forgets a port that has already been closed. m.mu must be held.
func (m *SerialMount) dropPort() {
	m.logger.Warn("mount disconnected by cancellation", "port", m.cfg.Port, "session", m.session)
	m.port = nil
	m.session = ""
}

func (m *SerialMount) canceled(err error) error {
	return &scopeerrors.SerialError{Op: "read", Port: m.cfg.Port, Err: fmt.Errorf("%w: %w", scopeerrors.ErrCanceled, err)}
}

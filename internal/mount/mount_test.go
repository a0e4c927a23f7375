package mount

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	scopeerrors "github.com/chazuruo/scopectl/internal/errors"
)

// fakePort is an in-memory Port. Each Read returns the next queued chunk;
// an empty queue behaves like a serial read timeout.
type fakePort struct {
	mu       sync.Mutex
	written  bytes.Buffer
	replies  [][]byte
	closed   bool
	timeout  time.Duration
	readErr  error
	closeErr error
	resets   int
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readErr != nil {
		return 0, p.readErr
	}
	if len(p.replies) == 0 {
		return 0, nil
	}
	n := copy(b, p.replies[0])
	if n < len(p.replies[0]) {
		p.replies[0] = p.replies[0][n:]
	} else {
		p.replies = p.replies[1:]
	}
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, io.ErrClosedPipe
	}
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return p.closeErr
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = t
	return nil
}

func (p *fakePort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resets++
	return nil
}

func (p *fakePort) queue(replies ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range replies {
		p.replies = append(p.replies, []byte(r))
	}
}

// silentPort never answers: Read blocks until the port is closed, like a
// serial port opened without a read timeout.
type silentPort struct {
	once   sync.Once
	closed chan struct{}
}

func newSilentPort() *silentPort {
	return &silentPort{closed: make(chan struct{})}
}

func (p *silentPort) Read([]byte) (int, error) {
	<-p.closed
	return 0, io.ErrClosedPipe
}

func (p *silentPort) Write(b []byte) (int, error) { return len(b), nil }

func (p *silentPort) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *silentPort) SetReadTimeout(time.Duration) error { return nil }

// fakeOpener records the settings it was asked to open with.
type fakeOpener struct {
	port  *fakePort
	err   error
	calls int
	name  string
	mode  *serial.Mode
}

func (o *fakeOpener) open(name string, mode *serial.Mode) (Port, error) {
	o.calls++
	o.name = name
	o.mode = mode
	if o.err != nil {
		return nil, o.err
	}
	return o.port, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validSerialConfig() SerialConfig {
	return SerialConfig{
		Port:     hostPort(),
		BaudRate: 115200,
		DataBits: 8,
		StopBits: 1,
		Parity:   "none",
	}
}

func TestNewSerialMount_NotConnectedAfterInit(t *testing.T) {
	m, err := NewSerialMount(validSerialConfig(), WithLogger(quietLogger()))
	require.NoError(t, err)

	assert.False(t, m.Connected())
	assert.False(t, m.PolarAligned())
}

func TestNewSerialMount_InvalidConfig(t *testing.T) {
	cfg := validSerialConfig()
	cfg.BaudRate = 42
	cfg.Parity = "sometimes"

	m, err := NewSerialMount(cfg, WithLogger(quietLogger()))
	require.Error(t, err)
	assert.Nil(t, m)

	assert.True(t, scopeerrors.IsInvalid(err))
	ve, ok := scopeerrors.AsValidationError(err)
	require.True(t, ok)
	assert.Len(t, ve.Problems, 2)
}

func TestNewSerialMount_InjectedPortSkipsValidation(t *testing.T) {
	port := &fakePort{}

	m, err := NewSerialMount(SerialConfig{}, WithPort(port), WithLogger(quietLogger()))
	require.NoError(t, err)

	require.NoError(t, m.Connect(context.Background()))
	assert.True(t, m.Connected())
}

func TestSerialMount_Connect(t *testing.T) {
	port := &fakePort{}
	opener := &fakeOpener{port: port}

	m, err := NewSerialMount(validSerialConfig(),
		WithOpener(opener.open),
		WithReadTimeout(500*time.Millisecond),
		WithLogger(quietLogger()))
	require.NoError(t, err)

	require.NoError(t, m.Connect(context.Background()))

	assert.True(t, m.Connected())
	assert.Equal(t, hostPort(), opener.name)
	require.NotNil(t, opener.mode)
	assert.Equal(t, 115200, opener.mode.BaudRate)
	assert.Equal(t, 8, opener.mode.DataBits)
	assert.Equal(t, serial.NoParity, opener.mode.Parity)
	assert.Equal(t, serial.OneStopBit, opener.mode.StopBits)
	assert.Equal(t, 500*time.Millisecond, port.timeout)

	t.Run("second connect is a no-op", func(t *testing.T) {
		require.NoError(t, m.Connect(context.Background()))
		assert.Equal(t, 1, opener.calls)
	})
}

func TestSerialMount_ConnectOpenFailure(t *testing.T) {
	opener := &fakeOpener{err: errors.New("no such device")}

	m, err := NewSerialMount(validSerialConfig(), WithOpener(opener.open), WithLogger(quietLogger()))
	require.NoError(t, err)

	err = m.Connect(context.Background())
	require.Error(t, err)

	assert.True(t, scopeerrors.IsIO(err))
	se, ok := scopeerrors.AsSerialError(err)
	require.True(t, ok)
	assert.Equal(t, "open", se.Op)
	assert.Contains(t, err.Error(), "no such device")
	assert.False(t, m.Connected())
}

func TestSerialMount_ConnectCanceled(t *testing.T) {
	opener := &fakeOpener{port: &fakePort{}}
	m, err := NewSerialMount(validSerialConfig(), WithOpener(opener.open), WithLogger(quietLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = m.Connect(ctx)
	assert.True(t, scopeerrors.IsCanceled(err))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, opener.calls)
}

func TestSerialMount_Close(t *testing.T) {
	port := &fakePort{}
	opener := &fakeOpener{port: port}
	m, err := NewSerialMount(validSerialConfig(), WithOpener(opener.open), WithLogger(quietLogger()))
	require.NoError(t, err)

	require.NoError(t, m.Close(), "closing a disconnected mount is a no-op")

	require.NoError(t, m.Connect(context.Background()))
	require.NoError(t, m.Close())

	assert.True(t, port.closed)
	assert.False(t, m.Connected())
}

func TestSerialMount_PolarAligned(t *testing.T) {
	m, err := NewSerialMount(validSerialConfig(), WithLogger(quietLogger()))
	require.NoError(t, err)

	m.SetPolarAligned(true)
	assert.True(t, m.PolarAligned())

	m.SetPolarAligned(false)
	assert.False(t, m.PolarAligned())
}

func TestSerialMount_Query(t *testing.T) {
	t.Run("fixed length reply across reads", func(t *testing.T) {
		port := &fakePort{}
		port.queue("00", "30")
		m, err := NewSerialMount(SerialConfig{}, WithPort(port), WithLogger(quietLogger()))
		require.NoError(t, err)

		reply, err := m.Query(context.Background(), ":MountInfo#", 4)
		require.NoError(t, err)

		assert.Equal(t, "0030", reply)
		assert.Equal(t, ":MountInfo#", port.written.String())
	})

	t.Run("terminated reply", func(t *testing.T) {
		port := &fakePort{}
		port.queue("2101", "01210101#")
		m, err := NewSerialMount(SerialConfig{}, WithPort(port), WithLogger(quietLogger()))
		require.NoError(t, err)

		reply, err := m.QueryTerminated(context.Background(), ":FW1#", '#')
		require.NoError(t, err)
		assert.Equal(t, "210101210101", reply)
	})

	t.Run("timeout", func(t *testing.T) {
		m, err := NewSerialMount(SerialConfig{}, WithPort(&fakePort{}), WithLogger(quietLogger()))
		require.NoError(t, err)

		_, err = m.Query(context.Background(), ":MountInfo#", 4)
		require.Error(t, err)
		assert.True(t, scopeerrors.IsIO(err))
		assert.Contains(t, err.Error(), "timed out")
	})

	t.Run("flushes stale input before each command", func(t *testing.T) {
		port := &fakePort{}
		port.queue("0040", "0040")
		m, err := NewSerialMount(SerialConfig{}, WithPort(port), WithLogger(quietLogger()))
		require.NoError(t, err)

		_, err = m.Query(context.Background(), ":MountInfo#", 4)
		require.NoError(t, err)
		_, err = m.Query(context.Background(), ":MountInfo#", 4)
		require.NoError(t, err)

		assert.Equal(t, 2, port.resets)
	})

	t.Run("overlong reply", func(t *testing.T) {
		port := &fakePort{}
		port.queue("004099")
		m, err := NewSerialMount(SerialConfig{}, WithPort(port), WithLogger(quietLogger()))
		require.NoError(t, err)

		_, err = m.Query(context.Background(), ":MountInfo#", 4)
		require.Error(t, err)
		assert.True(t, scopeerrors.IsInvalid(err))
		assert.Contains(t, err.Error(), "6 bytes, want 4")
	})

	t.Run("read error", func(t *testing.T) {
		port := &fakePort{readErr: errors.New("line dropped")}
		m, err := NewSerialMount(SerialConfig{}, WithPort(port), WithLogger(quietLogger()))
		require.NoError(t, err)

		_, err = m.Query(context.Background(), ":MountInfo#", 4)
		assert.True(t, scopeerrors.IsIO(err))
	})

	t.Run("not connected", func(t *testing.T) {
		m, err := NewSerialMount(validSerialConfig(), WithLogger(quietLogger()))
		require.NoError(t, err)

		_, err = m.Query(context.Background(), ":MountInfo#", 4)
		assert.True(t, scopeerrors.IsNotConnected(err))
	})
}

func TestSerialMount_QueryCanceledWhileReading(t *testing.T) {
	port := newSilentPort()
	m, err := NewSerialMount(SerialConfig{}, WithPort(port), WithLogger(quietLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		_, err := m.Query(ctx, ":MountInfo#", 4)
		errc <- err
	}()

	select {
	case err := <-errc:
		require.Error(t, err)
		assert.True(t, scopeerrors.IsCanceled(err))
	case <-time.After(2 * time.Second):
		t.Fatal("Query did not return after the context deadline")
	}

	// The closed port is released and the lock is free again.
	assert.False(t, m.Connected())
	assert.NoError(t, m.Close())
}

func TestSerialMount_ReadTimeoutAlwaysBounded(t *testing.T) {
	port := &fakePort{}
	opener := &fakeOpener{port: port}
	m, err := NewSerialMount(validSerialConfig(),
		WithOpener(opener.open),
		WithReadTimeout(0),
		WithLogger(quietLogger()))
	require.NoError(t, err)

	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, DefaultReadTimeout, port.timeout)
}

func TestLocation(t *testing.T) {
	loc := NewLocation(51.4769, -0.0005, 46)

	assert.InDelta(t, 51.4769, loc.Latitude(), 1e-9)
	assert.InDelta(t, -0.0005, loc.Longitude(), 1e-9)
	assert.InDelta(t, 0.0005, loc.Coord.Lon.Deg(), 1e-9, "meeus longitude is west-positive")
	assert.Equal(t, 46.0, loc.Height)
	assert.Contains(t, loc.String(), "lat 51.476900")

	var zero Location
	assert.Zero(t, zero.Latitude())
	assert.Zero(t, zero.Height)
}

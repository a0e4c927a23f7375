package cli

import (
	"bytes"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"go.bug.st/serial"

	"github.com/chazuruo/scopectl/internal/config"
	"github.com/chazuruo/scopectl/internal/mount"
)

// scriptedPort answers each command written to it from a fixed script.
type scriptedPort struct {
	mu      sync.Mutex
	script  map[string]string
	pending bytes.Buffer
	sent    []string
	closed  bool
}

func (p *scriptedPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cmd := string(b)
	p.sent = append(p.sent, cmd)
	p.pending.WriteString(p.script[cmd])
	return len(b), nil
}

func (p *scriptedPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending.Len() == 0 {
		return 0, nil
	}
	return p.pending.Read(b)
}

func (p *scriptedPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *scriptedPort) SetReadTimeout(time.Duration) error { return nil }

// useOpener swaps the package opener for the duration of the test.
func useOpener(t *testing.T, o mount.Opener) {
	t.Helper()
	prev := openPort
	openPort = o
	t.Cleanup(func() { openPort = prev })
}

// writeTestConfig writes a valid config for the host OS and returns its path.
func writeTestConfig(t *testing.T, mutate func(*config.Config)) string {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Serial.Port = config.DefaultPort(runtime.GOOS)
	cfg.Site = config.SiteConfig{Latitude: 45.5, Longitude: -73.5, Height: 30}
	if mutate != nil {
		mutate(cfg)
	}
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.Write(path, cfg); err != nil {
		t.Fatalf("config.Write() error = %v", err)
	}
	return path
}

func ioptronOpener(port *scriptedPort, gotName *string) mount.Opener {
	return func(name string, mode *serial.Mode) (mount.Port, error) {
		if gotName != nil {
			*gotName = name
		}
		return port, nil
	}
}

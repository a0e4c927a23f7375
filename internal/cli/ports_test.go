package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazuruo/scopectl/internal/config"
)

func useLister(t *testing.T, names []string, err error) {
	t.Helper()
	prev := listPorts
	listPorts = func() ([]string, error) { return names, err }
	t.Cleanup(func() { listPorts = prev })
}

func TestRunPorts_Table(t *testing.T) {
	good := config.DefaultPort(runtime.GOOS)
	useLister(t, []string{"zz-not-a-device", good}, nil)
	var out bytes.Buffer

	require.NoError(t, runPorts(&out, &PortsOptions{}))

	assert.Contains(t, out.String(), "PORT")
	assert.Contains(t, out.String(), good)
	assert.Contains(t, out.String(), "Total: 2 port(s)")
}

func TestRunPorts_JSON(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" && runtime.GOOS != "windows" {
		t.Skip("no port format rules on " + runtime.GOOS)
	}
	good := config.DefaultPort(runtime.GOOS)
	useLister(t, []string{good, "zz-not-a-device"}, nil)
	var out bytes.Buffer

	require.NoError(t, runPorts(&out, &PortsOptions{JSON: true}))

	var ports []PortInfo
	require.NoError(t, json.Unmarshal(out.Bytes(), &ports))
	require.Len(t, ports, 2)
	assert.Equal(t, PortInfo{Name: good, FormatValid: true}, ports[0])
	assert.Equal(t, PortInfo{Name: "zz-not-a-device", FormatValid: false}, ports[1])
}

func TestRunPorts_Empty(t *testing.T) {
	useLister(t, nil, nil)
	var out bytes.Buffer

	require.NoError(t, runPorts(&out, &PortsOptions{}))
	assert.Contains(t, out.String(), "No serial ports found.")
}

func TestRunPorts_ListError(t *testing.T) {
	useLister(t, nil, errors.New("enumeration unsupported"))

	err := runPorts(&bytes.Buffer{}, &PortsOptions{})
	assert.ErrorContains(t, err, "enumeration unsupported")
}

package mount

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"

	"go.bug.st/serial"

	scopeerrors "github.com/chazuruo/scopectl/internal/errors"
)

// Baud rate bounds accepted by ValidateConfig, inclusive.
const (
	MinBaudRate = 9600
	MaxBaudRate = 230400
)

// RequiredSerialKeys lists the keys every [serial] section must carry, in
// the order ValidateConfig reports them.
var RequiredSerialKeys = []string{"port", "baud_rate", "data_bits", "stop_bits", "parity"}

var (
	unixPortRe    = regexp.MustCompile(`^/dev/[a-zA-Z0-9\-]+`)
	windowsPortRe = regexp.MustCompile(`^COM[1-9]`)
)

type parityName struct {
	name   string
	parity serial.Parity
}

// parityNames is ordered so error messages list the accepted spellings
// deterministically.
var parityNames = []parityName{
	{"e", serial.EvenParity},
	{"E", serial.EvenParity},
	{"even", serial.EvenParity},
	{"Even", serial.EvenParity},
	{"n", serial.NoParity},
	{"N", serial.NoParity},
	{"none", serial.NoParity},
	{"None", serial.NoParity},
	{"o", serial.OddParity},
	{"O", serial.OddParity},
	{"odd", serial.OddParity},
	{"Odd", serial.OddParity},
}

type stopBitsValue struct {
	value    float64
	label    string
	stopBits serial.StopBits
}

var stopBitsValues = []stopBitsValue{
	{1, "1", serial.OneStopBit},
	{1.5, "1.5", serial.OnePointFiveStopBits},
	{2, "2", serial.TwoStopBits},
}

var validDataBits = []int{5, 6, 7, 8}

// ParityNames returns every accepted parity spelling.
func ParityNames() []string {
	names := make([]string, len(parityNames))
	for i, p := range parityNames {
		names[i] = p.name
	}
	return names
}

// SerialConfig is the typed form of a [serial] config section.
type SerialConfig struct {
	// Port is the device name, "/dev/..." on unix-like systems or "COM<n>" on windows.
	Port string `toml:"port" yaml:"port"`

	// BaudRate is the line speed in bits per second.
	BaudRate int `toml:"baud_rate" yaml:"baud_rate"`

	// DataBits is the character size, 5 through 8.
	DataBits int `toml:"data_bits" yaml:"data_bits"`

	// StopBits is 1, 1.5 or 2.
	StopBits float64 `toml:"stop_bits" yaml:"stop_bits"`

	// Parity is one of the spellings returned by ParityNames.
	Parity string `toml:"parity" yaml:"parity"`
}

// Raw returns c in the loosely typed shape ValidateConfig consumes.
func (c SerialConfig) Raw() map[string]any {
	return map[string]any{
		"serial": map[string]any{
			"port":      c.Port,
			"baud_rate": c.BaudRate,
			"data_bits": c.DataBits,
			"stop_bits": c.StopBits,
			"parity":    c.Parity,
		},
	}
}

// Mode converts c into the port settings used to open the device.
func (c SerialConfig) Mode() (*serial.Mode, error) {
	parity, ok := lookupParity(c.Parity)
	if !ok {
		return nil, fmt.Errorf("%w: parity %q", scopeerrors.ErrInvalid, c.Parity)
	}
	stopBits, ok := lookupStopBits(c.StopBits)
	if !ok {
		return nil, fmt.Errorf("%w: stop_bits %v", scopeerrors.ErrInvalid, c.StopBits)
	}
	if !containsInt(validDataBits, c.DataBits) {
		return nil, fmt.Errorf("%w: data_bits %d", scopeerrors.ErrInvalid, c.DataBits)
	}

	return &serial.Mode{
		BaudRate: c.BaudRate,
		DataBits: c.DataBits,
		Parity:   parity,
		StopBits: stopBits,
	}, nil
}

// ValidateConfig checks the [serial] section of a decoded config against the
// rules for the running operating system. It returns whether the config is
// valid and every problem found, in RequiredSerialKeys order.
func ValidateConfig(raw map[string]any) (bool, []string) {
	return ValidateConfigFor(runtime.GOOS, raw)
}

// ValidateConfigFor is ValidateConfig with the port format rules of goos.
func ValidateConfigFor(goos string, raw map[string]any) (bool, []string) {
	var problems []string

	section, ok := raw["serial"].(map[string]any)
	if !ok {
		return false, []string{"mount serial config section missing"}
	}

	for _, key := range RequiredSerialKeys {
		value, present := section[key]
		if !present {
			problems = append(problems, fmt.Sprintf("Key: %s missing from mount serial config", key))
			continue
		}

		switch key {
		case "port":
			if msg := checkPort(goos, value); msg != "" {
				problems = append(problems, msg)
			}
		case "baud_rate":
			n, isInt := asInt(value)
			if !isInt || n < MinBaudRate || n > MaxBaudRate {
				problems = append(problems, fmt.Sprintf(
					"mount serial baud_rate must be an int between %d and %d inclusive", MinBaudRate, MaxBaudRate))
			}
		case "data_bits":
			n, isInt := asInt(value)
			if !isInt || !containsInt(validDataBits, n) {
				problems = append(problems, "mount serial data_bits must be an int between 5 and 8 inclusive")
			}
		case "parity":
			s, isString := value.(string)
			if _, known := lookupParity(s); !isString || !known {
				problems = append(problems, fmt.Sprintf(
					"mount serial parity must be one of [%s] but was '%v'", strings.Join(ParityNames(), ","), value))
			}
		case "stop_bits":
			f, isNumber := asFloat(value)
			if _, known := lookupStopBits(f); !isNumber || !known {
				problems = append(problems, fmt.Sprintf(
					"mount serial stop_bits must be one of [%s] but was '%v'", stopBitsLabels(), value))
			}
		}
	}

	return len(problems) == 0, problems
}

// DecodeSerialConfig validates raw and converts its [serial] section into a
// SerialConfig. Validation failures are returned as a *errors.ValidationError.
func DecodeSerialConfig(raw map[string]any) (SerialConfig, error) {
	if ok, problems := ValidateConfig(raw); !ok {
		return SerialConfig{}, &scopeerrors.ValidationError{Problems: problems}
	}
	section, _ := raw["serial"].(map[string]any)
	port, _ := section["port"].(string)
	parity, _ := section["parity"].(string)

	baud, _ := asInt(section["baud_rate"])
	dataBits, _ := asInt(section["data_bits"])
	stopBits, _ := asFloat(section["stop_bits"])

	return SerialConfig{
		Port:     port,
		BaudRate: baud,
		DataBits: dataBits,
		StopBits: stopBits,
		Parity:   parity,
	}, nil
}

// PortNameValid reports whether name has the device format expected on goos.
func PortNameValid(goos, name string) bool {
	return checkPort(goos, name) == ""
}

func checkPort(goos string, value any) string {
	s, ok := value.(string)
	switch goos {
	case "linux", "darwin":
		if !unixPortRe.MatchString(s) {
			return fmt.Sprintf("mount serial port wrong format, expected '/dev/XXX' but was '%v'", value)
		}
	case "windows":
		if !windowsPortRe.MatchString(s) {
			return fmt.Sprintf("mount serial port wrong format, expected 'COM<n>' but was '%v'", value)
		}
	default:
		if !ok {
			return fmt.Sprintf("mount serial port must be a string but was '%v'", value)
		}
	}
	return ""
}

func lookupParity(name string) (serial.Parity, bool) {
	for _, p := range parityNames {
		if p.name == name {
			return p.parity, true
		}
	}
	return serial.NoParity, false
}

func lookupStopBits(v float64) (serial.StopBits, bool) {
	for _, s := range stopBitsValues {
		if s.value == v {
			return s.stopBits, true
		}
	}
	return serial.OneStopBit, false
}

func stopBitsLabels() string {
	labels := make([]string, len(stopBitsValues))
	for i, s := range stopBitsValues {
		labels[i] = s.label
	}
	return strings.Join(labels, ",")
}

// asInt accepts Go integer kinds only. Floats and bools are rejected even
// when they hold a whole number.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	}
	return 0, false
}

// asFloat accepts any integer or float kind. Bools are rejected.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	if i, ok := asInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

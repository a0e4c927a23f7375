package mount

import (
	"context"
	"fmt"
	"strings"

	scopeerrors "github.com/chazuruo/scopectl/internal/errors"
)

// iOptron command set, protocol v3.
const (
	cmdMountInfo = ":MountInfo#"
	cmdFirmware  = ":FW1#"
)

// ioptronModels maps the four-digit :MountInfo# reply to a model name.
var ioptronModels = map[string]string{
	"0010": "Cube II EQ",
	"0011": "SmartEQ Pro+",
	"0025": "CEM25P",
	"0026": "CEM25-EC",
	"0030": "iEQ30 Pro",
	"0040": "CEM40",
	"0041": "CEM40-EC",
	"0043": "GEM45",
	"0044": "GEM45-EC",
	"0045": "iEQ45 Pro EQ",
	"0046": "iEQ45 Pro AA",
	"0060": "CEM60",
	"0061": "CEM60-EC",
	"0070": "CEM70",
	"0071": "CEM70-EC",
	"0120": "CEM120",
	"0121": "CEM120-EC",
	"0122": "CEM120-EC2",
}

// IoptronInfo identifies an iOptron mount.
type IoptronInfo struct {
	Code  string `json:"code"`
	Model string `json:"model"`
}

// IoptronFirmware holds the firmware build dates reported by :FW1#.
type IoptronFirmware struct {
	Mainboard      string `json:"mainboard"`
	HandController string `json:"hand_controller"`
}

// IoptronMount is a SerialMount speaking the iOptron command set.
type IoptronMount struct {
	*SerialMount
}

var _ Mount = (*IoptronMount)(nil)

// NewIoptronMount returns a disconnected iOptron mount.
func NewIoptronMount(cfg SerialConfig, opts ...Option) (*IoptronMount, error) {
	sm, err := NewSerialMount(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &IoptronMount{SerialMount: sm}, nil
}

// Position returns the configured observing site.
func (m *IoptronMount) Position() Location {
	return m.Site()
}

// Info asks the mount for its model code.
func (m *IoptronMount) Info(ctx context.Context) (IoptronInfo, error) {
	code, err := m.Query(ctx, cmdMountInfo, 4)
	if err != nil {
		return IoptronInfo{}, err
	}
	return IoptronInfo{Code: code, Model: IoptronModel(code)}, nil
}

// Firmware asks the mount for its firmware dates.
func (m *IoptronMount) Firmware(ctx context.Context) (IoptronFirmware, error) {
	reply, err := m.QueryTerminated(ctx, cmdFirmware, '#')
	if err != nil {
		return IoptronFirmware{}, err
	}
	reply = strings.TrimSpace(reply)
	if len(reply) < 12 {
		return IoptronFirmware{}, fmt.Errorf("%w: firmware reply %q is shorter than 12 characters", scopeerrors.ErrInvalid, reply)
	}
	return IoptronFirmware{Mainboard: reply[:6], HandController: reply[6:12]}, nil
}

// IoptronModel returns the model name for a :MountInfo# code, or "unknown".
func IoptronModel(code string) string {
	if model, ok := ioptronModels[code]; ok {
		return model
	}
	return "unknown"
}

// KindIoptron names the iOptron driver in the [mount] type setting.
const KindIoptron = "ioptron"

// Kinds lists the mount drivers New accepts.
func Kinds() []string {
	return []string{KindIoptron}
}

// New builds the mount driver named by kind.
func New(kind string, cfg SerialConfig, opts ...Option) (Mount, error) {
	switch kind {
	case KindIoptron:
		m, err := NewIoptronMount(cfg, opts...)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, fmt.Errorf("%w: unknown mount type %q", scopeerrors.ErrInvalid, kind)
}

// Package config loads the declarative device/area/toggle tables that
// describe one deployment: which areas exist, which devices poll
// which channels into which areas, and which areas drive a toggle
// forward-group. The loading convention (embedded JSON looked up by a
// key, parsed with tinyjson, hand-walked into typed values) follows
// the teacher's services/config package.
package config

import (
	"fmt"
	"time"

	"github.com/andreyvit/tinyjson"

	"fieldctl/buffer"
	"fieldctl/device"
	"fieldctl/transform"
)

// EmbeddedConfigLookup allows overriding how a deployment's raw config
// is resolved; tests substitute their own table.
var EmbeddedConfigLookup = func(deployment string) ([]byte, bool) {
	b, ok := embeddedConfigs[deployment]
	return b, ok
}

// AreaSpec is one declared area in the table.
type AreaSpec struct {
	Area          int
	AreaToWrite   int
	WriteToPanel  bool
	ReadFromPanel bool
	Reverse       bool
	Name          string
}

// ChannelSpec mirrors device.Channel with string-keyed Type/Hw so it
// can round-trip through JSON.
type ChannelSpec struct {
	Type         string // "AI", "AO", "DI", "DO"
	Hw           string // "coil", "input", "hold", "discrete"
	StartAddr    int
	Items        int
	ItemsPerCall int
}

// DeviceSpec is one declared field device.
type DeviceSpec struct {
	Name        string
	IP          string
	UnitID      int
	Priority    string // "low", "normal", "medium", "high"
	Channels    []ChannelSpec
	IOAreas     []int
	ErrStrikes  int
	ErrWindowMs int
}

// ToggleSpec declares one toggle-latch entry (transform.Table.AddToggle).
type ToggleSpec struct {
	AreaRead int
	Forwards []int
}

// Table is the fully parsed, typed configuration for one deployment.
type Table struct {
	Areas   []AreaSpec
	Devices []DeviceSpec
	Toggles []ToggleSpec
}

// Load resolves and parses the embedded config for deployment,
// returning its typed Table.
func Load(deployment string) (Table, error) {
	raw, ok := EmbeddedConfigLookup(deployment)
	if !ok || len(raw) == 0 {
		return Table{}, fmt.Errorf("config: no embedded config for deployment %q", deployment)
	}

	r := tinyjson.Raw(raw)
	val := r.Value()
	if err := r.EnsureEOF(); err != nil {
		return Table{}, fmt.Errorf("config: malformed JSON for %q: %w", deployment, err)
	}

	root, ok := val.(map[string]any)
	if !ok {
		return Table{}, fmt.Errorf("config: %q is not a JSON object", deployment)
	}

	var out Table
	var err error
	if out.Areas, err = parseAreas(root["areas"]); err != nil {
		return Table{}, err
	}
	if out.Devices, err = parseDevices(root["devices"]); err != nil {
		return Table{}, err
	}
	if out.Toggles, err = parseToggles(root["toggles"]); err != nil {
		return Table{}, err
	}
	return out, nil
}

func parseAreas(v any) ([]AreaSpec, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, nil
	}
	out := make([]AreaSpec, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("config: area entry is not an object")
		}
		out = append(out, AreaSpec{
			Area:          intOf(m["area"]),
			AreaToWrite:   intOf(m["areaToWrite"]),
			WriteToPanel:  boolOf(m["writeToPanel"]),
			ReadFromPanel: boolOf(m["readFromPanel"]),
			Reverse:       boolOf(m["reverse"]),
			Name:          stringOf(m["name"]),
		})
	}
	return out, nil
}

func parseDevices(v any) ([]DeviceSpec, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, nil
	}
	out := make([]DeviceSpec, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("config: device entry is not an object")
		}

		var channels []ChannelSpec
		if rawCh, ok := m["channels"].([]any); ok {
			for _, c := range rawCh {
				cm, ok := c.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("config: channel entry is not an object")
				}
				channels = append(channels, ChannelSpec{
					Type:         stringOf(cm["type"]),
					Hw:           stringOf(cm["hw"]),
					StartAddr:    intOf(cm["startAddr"]),
					Items:        intOf(cm["items"]),
					ItemsPerCall: intOf(cm["itemsPerCall"]),
				})
			}
		}

		out = append(out, DeviceSpec{
			Name:        stringOf(m["name"]),
			IP:          stringOf(m["ip"]),
			UnitID:      intOf(m["unitId"]),
			Priority:    stringOf(m["priority"]),
			Channels:    channels,
			IOAreas:     intsOf(m["ioAreas"]),
			ErrStrikes:  intOf(m["errStrikes"]),
			ErrWindowMs: intOf(m["errWindowMs"]),
		})
	}
	return out, nil
}

func parseToggles(v any) ([]ToggleSpec, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, nil
	}
	out := make([]ToggleSpec, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("config: toggle entry is not an object")
		}
		out = append(out, ToggleSpec{
			AreaRead: intOf(m["areaRead"]),
			Forwards: intsOf(m["forwards"]),
		})
	}
	return out, nil
}

func intOf(v any) int {
	f, _ := v.(float64)
	return int(f)
}

func boolOf(v any) bool {
	b, _ := v.(bool)
	return b
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

func intsOf(v any) []int {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]int, 0, len(items))
	for _, it := range items {
		out = append(out, intOf(it))
	}
	return out
}

func channelType(s string) device.Kind {
	switch s {
	case "AO":
		return device.AO
	case "DI":
		return device.DI
	case "DO":
		return device.DO
	default:
		return device.AI
	}
}

func channelHw(s string) device.HwKind {
	switch s {
	case "input":
		return device.Input
	case "hold":
		return device.Hold
	case "coil":
		return device.Coil
	default:
		return device.Discrete
	}
}

func devicePriority(s string) device.Priority {
	switch s {
	case "low":
		return device.Low
	case "medium":
		return device.Medium
	case "high":
		return device.High
	default:
		return device.Normal
	}
}

// BuildAreas applies every AreaSpec onto store via Define, then calls
// Init. Call once at startup after Load.
func BuildAreas(store *buffer.Store, specs []AreaSpec) {
	for _, s := range specs {
		store.Define(s.Area, s.AreaToWrite, s.WriteToPanel, s.ReadFromPanel, s.Reverse, s.Name)
	}
	store.Init()
}

// BuildDevices converts every DeviceSpec into a live *device.Device.
func BuildDevices(specs []DeviceSpec) []*device.Device {
	out := make([]*device.Device, 0, len(specs))
	for _, s := range specs {
		channels := make([]device.Channel, 0, len(s.Channels))
		for _, c := range s.Channels {
			channels = append(channels, device.Channel{
				Type:         channelType(c.Type),
				Hw:           channelHw(c.Hw),
				StartAddr:    uint16(c.StartAddr),
				Items:        c.Items,
				ItemsPerCall: c.ItemsPerCall,
			})
		}
		strikes := s.ErrStrikes
		if strikes <= 0 {
			strikes = 3
		}
		window := time.Duration(s.ErrWindowMs) * time.Millisecond
		if window <= 0 {
			window = time.Second
		}
		out = append(out, device.New(s.Name, s.IP, byte(s.UnitID), channels, s.IOAreas, devicePriority(s.Priority), strikes, window))
	}
	return out
}

// BuildToggles registers every ToggleSpec onto a fresh transform.Table.
func BuildToggles(specs []ToggleSpec) *transform.Table {
	tbl := transform.NewTable()
	for _, s := range specs {
		tbl.AddToggle(s.AreaRead, s.Forwards...)
	}
	return tbl
}

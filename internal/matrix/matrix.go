// Package matrix defines the browser and device targets the suite runs
// every flow against.
package matrix

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind separates desktop browsers from emulated mobile devices.
type Kind string

const (
	Desktop Kind = "desktop"
	Mobile  Kind = "mobile"
)

// Browser names accepted in targets.
const (
	Chrome  = "chrome"
	Firefox = "firefox"
	Safari  = "safari"
	Edge    = "edge"
)

// Engine names a rendering engine used for device emulation.
const (
	EngineChromium = "chromium"
	EngineWebKit   = "webkit"
)

// Device describes an emulated handset.
type Device struct {
	Name              string  `yaml:"name" json:"name"`
	Engine            string  `yaml:"engine" json:"engine"`
	Width             int     `yaml:"width" json:"width"`
	Height            int     `yaml:"height" json:"height"`
	DeviceScaleFactor float64 `yaml:"scale" json:"scale"`
	UserAgent         string  `yaml:"user_agent" json:"user_agent"`
	IsMobile          bool    `yaml:"mobile" json:"mobile"`
	HasTouch          bool    `yaml:"touch" json:"touch"`
}

// Target is one browser or device configuration a flow runs on.
type Target struct {
	Name    string  `yaml:"name" json:"name"`
	Browser string  `yaml:"browser" json:"browser"`
	OS      string  `yaml:"os" json:"os"`
	Kind    Kind    `yaml:"kind" json:"kind"`
	Device  *Device `yaml:"device,omitempty" json:"device,omitempty"`
}

func (t Target) String() string {
	if t.Name != "" {
		return t.Name
	}
	if t.Device != nil {
		return t.Device.Name + "-" + t.OS
	}
	return t.Browser + "-" + t.OS
}

// SkipReason returns why the target cannot run, or "" when it can.
// Desktop Safari only runs on macOS; emulated iOS devices use WebKit anywhere.
func (t Target) SkipReason() string {
	switch t.Browser {
	case Chrome, Firefox, Edge:
	case Safari:
		if t.Kind != Mobile && !strings.EqualFold(t.OS, "macOS") {
			return "Skipping Safari test on " + t.OS
		}
	default:
		return fmt.Sprintf("Browser %s not supported", t.Browser)
	}
	if t.Kind == Mobile && t.Device == nil {
		return "Mobile target " + t.String() + " has no device profile"
	}
	return ""
}

const (
	iPhoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	galaxyUA  = "Mozilla/5.0 (Linux; Android 14; SM-S911B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"
	iPhone15  = "iPhone 15"
	galaxyS23 = "Samsung Galaxy S23"
)

// DefaultBrowsers is the desktop matrix.
func DefaultBrowsers() []Target {
	return []Target{
		{Browser: Chrome, OS: "Windows", Kind: Desktop},
		{Browser: Firefox, OS: "Windows", Kind: Desktop},
		{Browser: Safari, OS: "macOS", Kind: Desktop},
		{Browser: Edge, OS: "Windows", Kind: Desktop},
	}
}

// DefaultDevices is the mobile matrix.
func DefaultDevices() []Target {
	return []Target{
		{
			Browser: Safari, OS: "iOS", Kind: Mobile,
			Device: &Device{
				Name: iPhone15, Engine: EngineWebKit,
				Width: 393, Height: 659, DeviceScaleFactor: 3,
				UserAgent: iPhoneUA, IsMobile: true, HasTouch: true,
			},
		},
		{
			Browser: Chrome, OS: "Android", Kind: Mobile,
			Device: &Device{
				Name: galaxyS23, Engine: EngineChromium,
				Width: 360, Height: 780, DeviceScaleFactor: 3,
				UserAgent: galaxyUA, IsMobile: true, HasTouch: true,
			},
		},
	}
}

// Set is an ordered collection of targets.
type Set []Target

// Default returns the desktop browsers followed by the mobile devices.
func Default() Set {
	return append(Set(DefaultBrowsers()), DefaultDevices()...)
}

type fileFormat struct {
	Browsers []Target `yaml:"browsers"`
	Devices  []Target `yaml:"devices"`
}

// LoadFile reads a YAML matrix of the form {browsers: [...], devices: [...]}.
// Entries under devices are marked Mobile; entries under browsers Desktop.
func LoadFile(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read targets file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML matrix.
func Parse(data []byte) (Set, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse targets: %w", err)
	}
	out := make(Set, 0, len(f.Browsers)+len(f.Devices))
	for _, t := range f.Browsers {
		t.Browser = strings.ToLower(strings.TrimSpace(t.Browser))
		t.Kind = Desktop
		out = append(out, t)
	}
	for i, t := range f.Devices {
		if t.Device == nil || t.Device.Name == "" {
			return nil, fmt.Errorf("parse targets: device entry %d has no device.name", i)
		}
		t.Browser = strings.ToLower(strings.TrimSpace(t.Browser))
		t.Kind = Mobile
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("parse targets: no browsers or devices defined")
	}
	return out, nil
}

// Filter keeps desktop targets whose browser is in browsers and mobile
// targets whose device is in devices. An empty list keeps that kind
// untouched. Names compare case-insensitively.
func (s Set) Filter(browsers, devices []string) Set {
	norm := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, v := range in {
			out = append(out, strings.ToLower(strings.TrimSpace(v)))
		}
		return out
	}
	bs, ds := norm(browsers), norm(devices)

	var out Set
	for _, t := range s {
		switch t.Kind {
		case Mobile:
			if len(ds) > 0 && (t.Device == nil || !slices.Contains(ds, strings.ToLower(t.Device.Name))) {
				continue
			}
		default:
			if len(bs) > 0 && !slices.Contains(bs, t.Browser) {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

// Desktop returns only desktop targets.
func (s Set) Desktop() Set { return s.kind(Desktop) }

// Mobile returns only device targets.
func (s Set) Mobile() Set { return s.kind(Mobile) }

func (s Set) kind(k Kind) Set {
	var out Set
	for _, t := range s {
		if t.Kind == k {
			out = append(out, t)
		}
	}
	return out
}

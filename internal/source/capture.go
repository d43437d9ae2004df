package source

import (
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
)

// CaptureConfig describes how to capture raw 48 kHz stereo s16le from an
// input device with the platform's command-line tools. Nothing in the chain
// applies gain control, echo cancellation or noise suppression.
type CaptureConfig struct {
	// Command is the executable name ("arecord", "ffmpeg").
	Command string

	// DefaultDevice is used when no device is given. Empty means the first
	// listed device.
	DefaultDevice string

	// BuildArgs returns the capture arguments for a device.
	BuildArgs func(device string) []string

	// Devices lists input devices for the picker.
	Devices DeviceListConfig
}

// Device is an audio input device.
type Device struct {
	ID   string
	Name string
}

// DeviceListConfig defines how to list audio devices for a platform.
type DeviceListConfig struct {
	// Command and args to list devices.
	Command []string

	// AudioStartMarker starts the audio section of the output. Empty means
	// every line is considered.
	AudioStartMarker string

	// AudioStopMarker ends the audio section (optional).
	AudioStopMarker string

	// DevicePattern extracts device info from a line.
	DevicePattern *regexp.Regexp

	// ParseDevice converts regex matches to a Device.
	ParseDevice func(matches []string) *Device

	// FallbackDevices are returned if detection fails.
	FallbackDevices []Device
}

// BuildCaptureCommand returns the command and arguments to capture from
// device. An empty device selects the platform default or the first listed
// device.
func BuildCaptureCommand(device string) (cmd string, args []string, err error) {
	cfg := platformCapture()
	if cfg.Command == "" {
		return "", nil, ErrNoAudioDevice
	}

	if device == "" {
		device = cfg.DefaultDevice
	}
	if device == "" {
		devices := ListDevices()
		if len(devices) == 0 {
			return "", nil, ErrNoAudioDevice
		}
		device = devices[0].ID
	}

	return cfg.Command, cfg.BuildArgs(device), nil
}

// ListDevices returns the audio input devices of the current platform.
func ListDevices() []Device {
	cfg := platformCapture().Devices
	if len(cfg.Command) == 0 {
		return cfg.FallbackDevices
	}

	output, err := exec.Command(cfg.Command[0], cfg.Command[1:]...).CombinedOutput()
	if err != nil && len(output) == 0 {
		slog.Debug("listing audio devices failed", "error", err)
		return cfg.FallbackDevices
	}
	return parseDeviceList(&cfg, string(output))
}

func parseDeviceList(cfg *DeviceListConfig, output string) []Device {
	var devices []Device
	inAudio := cfg.AudioStartMarker == ""

	for line := range strings.SplitSeq(output, "\n") {
		if cfg.AudioStartMarker != "" && strings.Contains(line, cfg.AudioStartMarker) {
			inAudio = true
			continue
		}
		if cfg.AudioStopMarker != "" && strings.Contains(line, cfg.AudioStopMarker) {
			inAudio = false
			continue
		}
		if !inAudio || cfg.DevicePattern == nil || cfg.ParseDevice == nil {
			continue
		}
		// DirectShow prints an alternative name under every device.
		if strings.Contains(line, "Alternative name") {
			continue
		}

		if m := cfg.DevicePattern.FindStringSubmatch(line); m != nil {
			if dev := cfg.ParseDevice(m); dev != nil {
				devices = append(devices, *dev)
			}
		}
	}

	if len(devices) == 0 {
		return cfg.FallbackDevices
	}
	return devices
}

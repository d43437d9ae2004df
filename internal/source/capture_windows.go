//go:build windows

package source

import (
	"regexp"
	"strings"
)

func platformCapture() CaptureConfig {
	return CaptureConfig{
		Command: "ffmpeg",
		// No safe default on Windows; the first listed device is used.
		DefaultDevice: "",
		BuildArgs: func(device string) []string {
			if !strings.HasPrefix(device, "audio=") {
				device = "audio=" + device
			}
			return ffmpegCaptureArgs("dshow", device)
		},
		Devices: DeviceListConfig{
			Command:          []string{"ffmpeg", "-f", "dshow", "-list_devices", "true", "-i", "dummy"},
			AudioStartMarker: "DirectShow audio devices",
			AudioStopMarker:  "DirectShow video devices",
			DevicePattern:    regexp.MustCompile(`\[dshow[^\]]*\]\s*"([^"]+)"`),
			ParseDevice: func(m []string) *Device {
				if len(m) < 2 {
					return nil
				}
				name := strings.TrimSpace(m[1])
				return &Device{ID: "audio=" + name, Name: name}
			},
		},
	}
}

//go:build darwin

package source

import (
	"regexp"
	"strings"
)

func platformCapture() CaptureConfig {
	return CaptureConfig{
		Command:       "ffmpeg",
		DefaultDevice: ":0",
		BuildArgs: func(device string) []string {
			if !strings.HasPrefix(device, ":") {
				device = ":" + device
			}
			return ffmpegCaptureArgs("avfoundation", device)
		},
		Devices: DeviceListConfig{
			Command:          []string{"ffmpeg", "-f", "avfoundation", "-list_devices", "true", "-i", ""},
			AudioStartMarker: "AVFoundation audio devices:",
			AudioStopMarker:  "AVFoundation video devices:",
			DevicePattern:    regexp.MustCompile(`\[AVFoundation[^\]]*\]\s*\[(\d+)\]\s*(.+)`),
			ParseDevice: func(m []string) *Device {
				if len(m) < 3 {
					return nil
				}
				return &Device{ID: ":" + m[1], Name: m[2]}
			},
		},
	}
}

//go:build linux

package source

import "regexp"

func platformCapture() CaptureConfig {
	return CaptureConfig{
		Command:       "arecord",
		DefaultDevice: "default",
		BuildArgs: func(device string) []string {
			return []string{
				"-D", device,
				"-f", "S16_LE",
				"-r", "48000",
				"-c", "2",
				"-t", "raw",
				"-q",
				"-",
			}
		},
		Devices: DeviceListConfig{
			Command:       []string{"arecord", "-l"},
			DevicePattern: regexp.MustCompile(`card\s+(\d+):\s+(\w+)\s+\[([^\]]+)\]`),
			ParseDevice: func(m []string) *Device {
				if len(m) < 4 {
					return nil
				}
				return &Device{ID: "default:CARD=" + m[2], Name: m[3]}
			},
			FallbackDevices: []Device{{ID: "default", Name: "Default input"}},
		},
	}
}

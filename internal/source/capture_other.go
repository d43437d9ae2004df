//go:build !linux && !darwin && !windows

package source

func platformCapture() CaptureConfig {
	return CaptureConfig{}
}

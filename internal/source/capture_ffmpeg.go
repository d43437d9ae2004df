package source

// ffmpegCaptureArgs captures from an ffmpeg input device to raw s16le on
// stdout. No audio filters are applied.
func ffmpegCaptureArgs(format, device string) []string {
	return []string{
		"-f", format,
		"-i", device,
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-vn",
		"-f", "s16le",
		"-ac", "2",
		"-ar", "48000",
		"pipe:1",
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"github.com/olivier-w/climp-vu/internal/config"
	"github.com/olivier-w/climp-vu/internal/server"
	"github.com/olivier-w/climp-vu/internal/session"
	"github.com/olivier-w/climp-vu/internal/source"
	"github.com/olivier-w/climp-vu/internal/ui"
)

var version = "dev"

// CLI defines the command-line interface.
type CLI struct {
	File string `arg:"" optional:"" type:"existingfile" help:"Audio file to meter (.mp3, .wav, .flac, .ogg)."`

	Mic    bool   `help:"Meter the microphone." env:"CLIMP_VU_MIC"`
	Device string `help:"Capture device for --mic and the m key." env:"CLIMP_VU_DEVICE"`

	Calibration float64       `default:"-18" help:"dBFS level that reads 0 VU. Negative values need the = form: --calibration=-12." env:"CLIMP_VU_CALIBRATION"`
	Ballistics  string        `default:"vu" enum:"vu,ppm,slow" help:"Integration preset: vu, ppm or slow." env:"CLIMP_VU_BALLISTICS"`
	Tau         time.Duration `help:"Override the preset with a symmetric integration time constant." env:"CLIMP_VU_TAU"`
	BlockSize   int           `default:"128" help:"Frames per audio block." env:"CLIMP_VU_BLOCK_SIZE"`
	Throttle    int           `default:"6" help:"Blocks per level update." env:"CLIMP_VU_THROTTLE"`

	Damping    float64       `default:"0.28" help:"Needle damping factor per frame." env:"CLIMP_VU_DAMPING"`
	Needle     string        `default:"exponential" enum:"exponential,spring" help:"Needle motion: exponential or spring." env:"CLIMP_VU_NEEDLE"`
	Angle      float64       `default:"90" help:"Needle half swing in degrees." env:"CLIMP_VU_ANGLE"`
	FPS        int           `name:"fps" default:"60" help:"Display refresh rate." env:"CLIMP_VU_FPS"`
	PeakHold   time.Duration `help:"Peak marker hold time, defaults to the preset's." env:"CLIMP_VU_PEAK_HOLD"`
	NoPeakHold bool          `help:"Hide the peak marker." env:"CLIMP_VU_NO_PEAK_HOLD"`

	Plain   bool   `help:"Print levels as text instead of the meter screen."`
	Listen  string `placeholder:"ADDR" help:"Serve a browser needle and websocket feed on this address." env:"CLIMP_VU_LISTEN"`
	LogFile string `type:"path" help:"Write logs to this file." env:"CLIMP_VU_LOG_FILE"`
	Verbose bool   `short:"v" help:"Log debug messages."`

	Version kong.VersionFlag `help:"Show version information."`
}

func (c *CLI) config() config.Config {
	return config.Config{
		CalibrationDBFS: c.Calibration,
		Ballistics:      c.Ballistics,
		Tau:             c.Tau,
		BlockSize:       c.BlockSize,
		ThrottleBlocks:  c.Throttle,
		Damping:         c.Damping,
		Needle:          c.Needle,
		Angle:           c.Angle,
		FPS:             c.FPS,
		PeakHold:        c.PeakHold,
		NoPeakHold:      c.NoPeakHold,
	}
}

// request returns the source named on the command line, if any.
func (c *CLI) request() (*session.Request, error) {
	switch {
	case c.File != "" && c.Mic:
		return nil, errors.New("choose either a file or --mic")
	case c.Mic:
		return &session.Request{Kind: source.Microphone, Device: c.Device}, nil
	case c.File != "":
		if !source.IsSupportedExt(filepath.Ext(c.File)) {
			return nil, fmt.Errorf("unsupported file type %q (supported: %s)", filepath.Ext(c.File), source.SupportedExtsList())
		}
		return &session.Request{Kind: source.File, Path: c.File}, nil
	}
	return nil, nil
}

func parserOptions() []kong.Option {
	return []kong.Option{
		kong.Name("climp-vu"),
		kong.Description("Analog VU meter for a microphone or an audio file."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	}
}

func main() {
	cli := &CLI{}
	kong.Parse(cli, parserOptions()...)

	if err := run(cli); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cli *CLI) error {
	cfg := cli.config()
	if err := cfg.Validate(); err != nil {
		return err
	}
	req, err := cli.request()
	if err != nil {
		return err
	}
	if cli.Plain && req == nil {
		return errors.New("--plain needs a file or --mic")
	}

	logger, closeLog, err := newLogger(cli)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := session.New(cfg.Calibration(), nil, logger)
	defer sess.Stop()

	if cli.Listen != "" {
		srv := server.New(sess, cfg.Damper(), cfg.Frame(), logger)
		go func() {
			if err := srv.Run(ctx, cli.Listen); err != nil {
				logger.Error("meter server stopped", "error", err)
			}
		}()
	}

	if cli.Plain {
		if err := sess.Start(ctx, *req); err != nil {
			return err
		}
		return ui.RunPlain(ctx, sess, cfg, os.Stdout)
	}

	p := tea.NewProgram(ui.New(ctx, sess, cfg, cli.Device, req), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// newLogger logs to --log-file when given. Otherwise plain mode logs to
// stderr and the meter screen, which owns the terminal, discards logs.
func newLogger(cli *CLI) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}

	var w io.Writer
	closeFn := func() {}
	color := false
	switch {
	case cli.LogFile != "":
		f, err := os.OpenFile(cli.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		w = f
		closeFn = func() { f.Close() }
	case cli.Plain:
		w = os.Stderr
		color = isatty.IsTerminal(os.Stderr.Fd()) && os.Getenv("NO_COLOR") == ""
	default:
		return slog.New(slog.DiscardHandler), closeFn, nil
	}

	handler := tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    !color,
	})
	return slog.New(handler), closeFn, nil
}

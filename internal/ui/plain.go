package ui

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/olivier-w/climp-vu/internal/config"
	"github.com/olivier-w/climp-vu/internal/meter"
	"github.com/olivier-w/climp-vu/internal/session"
)

// printEvery is how often the plain printer writes a line.
const printEvery = 100 * time.Millisecond

// RunPlain drives a damper at the configured frame rate and writes one
// line of readings every 100 ms until ctx is done or the session goes idle.
func RunPlain(ctx context.Context, sess *session.Session, cfg config.Config, w io.Writer) error {
	damper := meter.NewDamper(cfg.Damper())
	ticker := time.NewTicker(cfg.Frame())
	defer ticker.Stop()

	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			damper.Follow(sess.Cell())
			damper.Tick()
			if now.Sub(last) < printEvery {
				continue
			}
			last = now
			if err := printLevels(w, damper); err != nil {
				return err
			}
			if sess.State() == session.Idle {
				return nil
			}
		}
	}
}

func printLevels(w io.Writer, d *meter.Damper) error {
	pos := d.Positions()
	la, ra := d.Angles()
	_, err := fmt.Fprintf(w, "L %6.1f VU %6.1f°  R %6.1f VU %6.1f°\n", pos.Left, la, pos.Right, ra)
	return err
}

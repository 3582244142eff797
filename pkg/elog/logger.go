/**
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package elog provides the logging and progress-reporting interfaces
// threaded through the conversion core, plus a CLI implementation backed
// by logrus, fatih/color and vbauerster/mpb.
package elog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/vbauerster/mpb/v5"
	"github.com/vbauerster/mpb/v5/decor"
)

// Logger hides debug/info output behind explicit verbosity switches rather
// than a single global level, so a library caller can opt into exactly the
// chatter it wants.
type Logger interface {
	Debugf(format string, x ...interface{})
	Errorf(format string, x ...interface{})
	Infof(format string, x ...interface{})
	Printf(format string, x ...interface{})
	Warnf(format string, x ...interface{})
	IsInfoEnabled() bool
	IsDebugEnabled() bool
}

// Progress reports incremental completion of a long-running operation —
// grain-by-grain writes, sector-by-sector reads — to a terminal or
// elsewhere.
type Progress interface {
	Finish(success bool)
	Increment(n int64)
	Write(p []byte) (n int, err error)
	Seek(offset int64, whence int) (int64, error)
}

// ProgressReporter creates Progress trackers.
type ProgressReporter interface {
	NewProgress(label string, units string, total int64) Progress
}

// View bundles a Logger and a ProgressReporter: the one thing the
// conversion core needs from its caller to report what it's doing.
type View interface {
	Logger
	ProgressReporter
}

// OrNop returns log, or a no-op View if log is nil, so callers of package
// vmdk never need to nil-check before logging.
func OrNop(log View) View {
	if log == nil {
		return Nop
	}
	return log
}

// Nop is a View that discards everything.
var Nop View = nopView{}

type nopView struct{}

func (nopView) Debugf(string, ...interface{})         {}
func (nopView) Errorf(string, ...interface{})         {}
func (nopView) Infof(string, ...interface{})          {}
func (nopView) Printf(string, ...interface{})         {}
func (nopView) Warnf(string, ...interface{})          {}
func (nopView) IsInfoEnabled() bool                   { return false }
func (nopView) IsDebugEnabled() bool                  { return false }
func (nopView) NewProgress(string, string, int64) Progress {
	return &nopProgress{}
}

type nopProgress struct{ cursor int64 }

func (p *nopProgress) Finish(bool)          {}
func (p *nopProgress) Increment(n int64)    { p.cursor += n }
func (p *nopProgress) Write(b []byte) (int, error) {
	p.cursor += int64(len(b))
	return len(b), nil
}
func (p *nopProgress) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekCurrent:
		p.cursor += offset
	case io.SeekStart:
		p.cursor = offset
	default:
		return 0, errors.New("elog: unsupported whence")
	}
	return p.cursor, nil
}

// CLI is a View backed by logrus for text and mpb for progress bars,
// suitable for a terminal-attached command-line invocation.
type CLI struct {
	DisableColors bool
	DisableTTY    bool
	IsDebug       bool
	IsVerbose     bool

	lock               sync.Mutex
	isTrackingProgress bool
	bars               map[*mpb.Bar]bool
	buffer             *bytes.Buffer
	progressContainer  *mpb.Progress
}

// Debugf logs at trace level, gated on IsDebug.
func (log *CLI) Debugf(format string, x ...interface{}) {
	if log.IsDebug {
		logrus.Tracef(format, x...)
	}
}

// Errorf logs at error level.
func (log *CLI) Errorf(format string, x ...interface{}) {
	logrus.Errorf(format, x...)
}

// Infof logs at debug level, gated on IsVerbose.
func (log *CLI) Infof(format string, x ...interface{}) {
	if log.IsVerbose {
		logrus.Debugf(format, x...)
	}
}

// Printf logs unconditionally.
func (log *CLI) Printf(format string, x ...interface{}) {
	logrus.Printf(format, x...)
}

// Warnf logs at warn level.
func (log *CLI) Warnf(format string, x ...interface{}) {
	logrus.Warnf(format, x...)
}

// IsInfoEnabled reports whether info-level logging is enabled.
func (log *CLI) IsInfoEnabled() bool {
	return logrus.IsLevelEnabled(logrus.InfoLevel)
}

// IsDebugEnabled reports whether debug-level logging is enabled.
func (log *CLI) IsDebugEnabled() bool {
	return logrus.IsLevelEnabled(logrus.DebugLevel)
}

// NewProgress creates a progress bar (or spinner, when total is 0) and
// redirects logrus output to a buffer for the duration so log lines don't
// tear the bar.
func (log *CLI) NewProgress(label string, units string, total int64) Progress {
	if log.DisableTTY {
		return &nopProgress{}
	}

	log.lock.Lock()
	defer log.lock.Unlock()

	if !log.isTrackingProgress {
		log.isTrackingProgress = true
		log.buffer = new(bytes.Buffer)
		logrus.SetOutput(log.buffer)
		log.progressContainer = mpb.New(mpb.WithWidth(80))
		log.bars = make(map[*mpb.Bar]bool)
	}

	var decorators []decor.Decorator
	switch units {
	case "KiB":
		decorators = append(decorators, decor.Counters(decor.UnitKiB, "% .1f / % .1f"))
	default:
		decorators = append(decorators, decor.Percentage())
	}

	var p *mpb.Bar
	if total == 0 {
		p = log.progressContainer.AddSpinner(0, mpb.SpinnerOnLeft,
			mpb.PrependDecorators(decor.Name(label, decor.WC{W: len(label) + 1, C: decor.DidentRight})),
		)
	} else {
		p = log.progressContainer.AddBar(total,
			mpb.PrependDecorators(
				decor.Name(label, decor.WC{W: len(label) + 1, C: decor.DidentRight}),
				decor.OnComplete(decor.AverageETA(decor.ET_STYLE_GO, decor.WC{W: 4}), "done"),
			),
			mpb.AppendDecorators(decorators...),
		)
	}

	log.bars[p] = true

	pb := &bar{
		log:      log,
		p:        p,
		total:    total,
		interval: 100 * time.Millisecond,
	}
	pb.nextUpdate = time.Now().Add(pb.interval)
	return pb
}

// Format renders a logrus entry with level-appropriate coloring, matching
// the convention the rest of the CLI's output follows.
func (log *CLI) Format(entry *logrus.Entry) ([]byte, error) {
	faint := color.New(color.Faint).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	blue := color.New(color.FgBlue).SprintFunc()

	x := entry.Message
	if !log.DisableColors {
		switch entry.Level {
		case logrus.TraceLevel:
			x = fmt.Sprintf("%s\n", faint(x))
		case logrus.DebugLevel:
			x = fmt.Sprintf("%s\n", blue(x))
		case logrus.WarnLevel:
			x = fmt.Sprintf("%s\n", yellow(x))
		case logrus.ErrorLevel:
			x = fmt.Sprintf("%s\n", red(x))
		default:
			x = fmt.Sprintf("%s\n", x)
		}
	} else {
		x = fmt.Sprintf("%s\n", x)
	}

	return []byte(x), nil
}

type bar struct {
	log    *CLI
	p      *mpb.Bar
	closed bool
	total  int64
	cursor int64
	done   int64

	buffered   int64
	interval   time.Duration
	nextUpdate time.Time
}

func (b *bar) Increment(n int64) {
	b.buffered += n
	b.done += n
	if !time.Now().Before(b.nextUpdate) {
		b.flush()
	}
}

func (b *bar) flush() {
	b.nextUpdate = time.Now().Add(b.interval)
	b.p.IncrInt64(b.buffered)
	b.buffered = 0
}

func (b *bar) Finish(success bool) {
	if b.closed {
		return
	}
	b.flush()
	b.closed = true
	if b.done != b.total || b.total == 0 || !success {
		b.p.Abort(false)
	}

	b.log.lock.Lock()
	defer b.log.lock.Unlock()
	delete(b.log.bars, b.p)

	if len(b.log.bars) == 0 {
		b.log.bars = nil
		b.log.isTrackingProgress = false
		b.log.progressContainer.Wait()
		b.log.progressContainer = nil
		logrus.SetOutput(os.Stdout)
		_, _ = b.log.buffer.WriteTo(os.Stdout)
		b.log.buffer = nil
	}
}

func (b *bar) Write(p []byte) (n int, err error) {
	n = len(p)
	b.cursor += int64(n)
	if b.done < b.cursor {
		b.Increment(b.cursor - b.done)
	}
	return
}

func (b *bar) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekCurrent:
		abs = b.cursor + offset
	case io.SeekStart:
		abs = offset
	case io.SeekEnd:
		abs = b.total + offset
	default:
		return 0, errors.New("elog: invalid whence")
	}

	b.cursor = abs
	if b.done < b.cursor {
		b.Increment(b.cursor - b.done)
	}
	return abs, nil
}

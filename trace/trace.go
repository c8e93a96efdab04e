// Package trace turns pipeline events into log records.
package trace

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sarchlab/y86sim/config"
	"github.com/sarchlab/y86sim/insts"
	"github.com/sarchlab/y86sim/timing/pipeline"
)

// LoggerName is the name attached to every trace record.
const LoggerName = "y86sim"

// Sink logs pipeline events through an hclog.Logger.
//
// Retirements, halts and faults are logged at info (faults at error),
// per-stage activity at debug, and the cycle-by-cycle latch dump at
// trace.
type Sink struct {
	log    hclog.Logger
	closer io.Closer
}

// NewSink returns a Sink writing to log.
func NewSink(log hclog.Logger) *Sink {
	return &Sink{log: log}
}

// Open builds a Sink from cfg. Records go to cfg.File, rotated by size,
// or to stderr when no file is set.
func Open(cfg config.TraceConfig, stderr io.Writer) (*Sink, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var (
		out    = stderr
		closer io.Closer
	)
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		out, closer = rotator, rotator
	}

	if level == hclog.NoLevel {
		return &Sink{log: hclog.NewNullLogger(), closer: closer}, nil
	}

	log := hclog.New(&hclog.LoggerOptions{
		Name:       LoggerName,
		Level:      level,
		Output:     out,
		JSONFormat: useJSON(cfg.Format, out),
	})

	return &Sink{log: log, closer: closer}, nil
}

// ParseLevel maps a trace level name to an hclog level. "off" maps to
// hclog.NoLevel.
func ParseLevel(s string) (hclog.Level, error) {
	switch strings.ToLower(s) {
	case "off", "":
		return hclog.NoLevel, nil
	case "info":
		return hclog.Info, nil
	case "debug":
		return hclog.Debug, nil
	case "trace":
		return hclog.Trace, nil
	}
	return hclog.NoLevel, fmt.Errorf("unknown trace level %q", s)
}

func useJSON(format string, out io.Writer) bool {
	switch format {
	case "json":
		return true
	case "text":
		return false
	}
	f, ok := out.(*os.File)
	return !ok || !term.IsTerminal(int(f.Fd()))
}

// Logger returns the underlying logger.
func (s *Sink) Logger() hclog.Logger {
	return s.log
}

// Close closes the trace file, if any.
func (s *Sink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Handle logs ev.
func (s *Sink) Handle(ev pipeline.Event) {
	switch ev.Kind {
	case pipeline.EventCycle:
		if !s.log.IsTrace() {
			return
		}
		s.log.Trace("cycle", "cycle", ev.Cycle, "latches", strings.Join(ev.Latches, " | "))
	case pipeline.EventFetch:
		s.log.Debug("fetch", "cycle", ev.Cycle, "pc", hex(ev.PC), "inst", ev.Inst)
	case pipeline.EventStall:
		s.log.Debug("stall", "cycle", ev.Cycle, "pc", hex(ev.PC), "inst", ev.Inst)
	case pipeline.EventReturnWait:
		s.log.Debug("return wait", "cycle", ev.Cycle)
	case pipeline.EventSquash:
		s.log.Debug("squash", "cycle", ev.Cycle, "pc", hex(ev.PC), "target", hex(ev.Addr))
	case pipeline.EventRegWrite:
		s.log.Debug("register write", "cycle", ev.Cycle,
			"reg", insts.RegName(ev.Reg), "value", hex(ev.Value))
	case pipeline.EventMemWrite:
		s.log.Debug("memory write", "cycle", ev.Cycle,
			"addr", hex(ev.Addr), "value", hex(ev.Value))
	case pipeline.EventRetire:
		s.log.Info("retire", "cycle", ev.Cycle, "pc", hex(ev.PC), "inst", ev.Inst)
	case pipeline.EventHalt:
		s.log.Info("halt", "cycle", ev.Cycle, "pc", hex(ev.PC))
	case pipeline.EventFault:
		s.log.Error("fault", "cycle", ev.Cycle, "stage", ev.Stage.String(),
			"pc", hex(ev.PC), "status", ev.Status.String(), "code", ev.Status.Code())
	}
}

func hex(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}

// Multi fans events out to every non-nil sink, in order.
func Multi(sinks ...pipeline.EventSink) pipeline.EventSink {
	var live []pipeline.EventSink
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	return pipeline.EventSinkFunc(func(ev pipeline.Event) {
		for _, s := range live {
			s.Handle(ev)
		}
	})
}

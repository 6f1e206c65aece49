// Package logsink serializes diagnostic output from both peers onto a
// single goroutine, so console lines, a file transcript, and a PlantUML
// sequence diagram all stay consistent with each other even though the
// client and server run concurrently.
package logsink

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/gridmerge/gbtsim/gbt"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgHiYellow, color.Bold).SprintFunc()
)

type entryKind int

const (
	entryDeliver entryKind = iota
	entryDrop
	entryLine
)

type entry struct {
	kind entryKind
	from string
	to   string
	apdu gbt.APDU
	line string
}

// Sink fans diagnostic events in from both peers and serializes them to
// a console writer (via logrus), an optional transcript file, and an
// optional PlantUML sequence file.
type Sink struct {
	log     *logrus.Logger
	entries chan entry
	done    chan struct{}

	transcript io.Writer
	plantuml   io.Writer
}

// New builds a Sink. transcript and plantuml may be nil to skip that output.
func New(transcript, plantuml io.Writer) *Sink {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	s := &Sink{
		log:        log,
		entries:    make(chan entry, 64),
		done:       make(chan struct{}),
		transcript: transcript,
		plantuml:   plantuml,
	}
	if s.plantuml != nil {
		fmt.Fprintln(s.plantuml, "@startuml")
		fmt.Fprintln(s.plantuml, "skin rose")
		fmt.Fprintln(s.plantuml, "participant CLT")
		fmt.Fprintln(s.plantuml, "participant SVR")
	}
	go s.run()
	return s
}

func (s *Sink) run() {
	for e := range s.entries {
		switch e.kind {
		case entryDeliver:
			s.logDeliver(e)
		case entryDrop:
			s.logDrop(e)
		case entryLine:
			s.log.Debug(e.line)
		}
	}
	if s.plantuml != nil {
		fmt.Fprintln(s.plantuml, "@enduml")
	}
	close(s.done)
}

// runawayThreshold mirrors gbt.Config.RunawayThreshold's simulator default
// (spec section 7); logsink has no engine reference of its own, so the
// console highlight uses the same constant rather than a wired value.
const runawayThreshold = 40

func (s *Sink) logDeliver(e entry) {
	consoleTag := green("->")
	if e.apdu.BN > runawayThreshold {
		consoleTag = yellow("RUNAWAY")
	}
	s.log.Info(fmt.Sprintf("%s %s %s %s", e.from, consoleTag, e.to, e.apdu))
	s.dumpBD(e.from, e.to, e.apdu)

	if s.transcript != nil {
		fmt.Fprintln(s.transcript, plainLine(e.from, "->", e.to, e.apdu))
	}
	if s.plantuml != nil {
		fmt.Fprintf(s.plantuml, "%s -> %s : %s\n", e.from, e.to, e.apdu)
	}
}

func (s *Sink) logDrop(e entry) {
	s.log.Warn(fmt.Sprintf("%s %s %s %s (dropped)", e.from, red("-x"), e.to, e.apdu))
	s.dumpBD(e.from, e.to, e.apdu)

	if s.transcript != nil {
		fmt.Fprintln(s.transcript, plainLine(e.from, "-x", e.to, e.apdu)+" (dropped)")
	}
	if s.plantuml != nil {
		fmt.Fprintf(s.plantuml, "%s -->x %s : %s\n", e.from, e.to, e.apdu)
	}
}

// plainLine renders the uncolored "<DIR>: <ts_ns> LB=.. STR=.. W=.. BN=..
// BNA=.. BD=.." form spec section 6 specifies, for the plain-text
// transcript — never the ANSI-colorized console line, which would leave
// escape codes in the file.
func plainLine(from, arrow, to string, apdu gbt.APDU) string {
	return fmt.Sprintf("%s %s %s: %d %s", from, arrow, to, time.Now().UnixNano(), apdu)
}

// dumpBD logs a block's payload as a hex/ASCII dump at debug level,
// supplementing the original's PrintData (SPEC_FULL.md section 4.10).
// Ack-only blocks (BD absent) have nothing to dump.
func (s *Sink) dumpBD(from, to string, apdu gbt.APDU) {
	if apdu.BD == nil {
		return
	}
	s.log.Debugf("%s -> %s BN=%d BD dump:\n%s", from, to, apdu.BN, HexDump(apdu.BD))
}

// Deliver records a successfully delivered APDU from "from" to "to".
func (s *Sink) Deliver(from, to string, apdu gbt.APDU) {
	s.entries <- entry{kind: entryDeliver, from: from, to: to, apdu: apdu}
}

// Drop records an APDU the drop filter discarded before it reached the engine.
func (s *Sink) Drop(from, to string, apdu gbt.APDU) {
	s.entries <- entry{kind: entryDrop, from: from, to: to, apdu: apdu}
}

// Logf records a free-form diagnostic line, timestamped by the time it
// was enqueued rather than the time it is printed.
func (s *Sink) Logf(format string, args ...interface{}) {
	s.entries <- entry{kind: entryLine, line: fmt.Sprintf("[%s] %s", time.Now().Format(time.RFC3339Nano), fmt.Sprintf(format, args...))}
}

// Close drains remaining entries and writes the PlantUML @enduml trailer
// (when a PlantUML writer was given), blocking until the sink's goroutine
// has exited. The transcript and PlantUML writers themselves are left open.
func (s *Sink) Close() {
	close(s.entries)
	<-s.done
}

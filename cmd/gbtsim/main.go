package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gridmerge/gbtsim/logsink"
	"github.com/gridmerge/gbtsim/sim"
	"github.com/gridmerge/gbtsim/simcfg"
)

func main() {
	payloadHex := flag.String("payload", "", "hex-encoded payload for the client's ACCESS.request")
	dropClient := flag.String("drop-client", "", "comma-separated inbound message indices the client should drop")
	dropServer := flag.String("drop-server", "", "comma-separated inbound message indices the server should drop")
	timeoutClient := flag.Duration("timeout-client", 10*time.Second, "client timer duration")
	timeoutServer := flag.Duration("timeout-server", 5*time.Second, "server timer duration")
	maxPayload := flag.Int("max-payload", 10, "maximum bytes per GBT block")
	transcriptPath := flag.String("transcript", "", "optional path for a plain-text transcript")
	plantumlPath := flag.String("plantuml", "", "optional path for a PlantUML sequence diagram")
	configPath := flag.String("config", "", "optional path to load/save run parameters as INI")
	direction := flag.String("direction", "client", "which side invokes the transfer: client or server")
	flag.Parse()

	cfg := simcfg.Config{}
	if *configPath != "" {
		loaded, err := simcfg.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "gbtsim: loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	payload := cfg.Payload
	if *payloadHex != "" {
		decoded, err := hex.DecodeString(*payloadHex)
		if err != nil {
			fmt.Fprintf(os.Stderr, "gbtsim: invalid -payload hex: %v\n", err)
			os.Exit(1)
		}
		payload = decoded
	}

	dc := mergeInts(cfg.DropClient, parseCSVInts(*dropClient))
	ds := mergeInts(cfg.DropServer, parseCSVInts(*dropServer))

	var transcriptFile, plantumlFile *os.File
	if *transcriptPath != "" {
		f, err := os.Create(*transcriptPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "gbtsim: creating transcript: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		transcriptFile = f
	}
	if *plantumlPath != "" {
		f, err := os.Create(*plantumlPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "gbtsim: creating plantuml file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		plantumlFile = f
	}

	sink := logsink.New(writerOrNil(transcriptFile), writerOrNil(plantumlFile))
	defer sink.Close()

	s := sim.New(sim.Options{
		DropClient:    dc,
		DropServer:    ds,
		ClientTimeout: *timeoutClient,
		ServerTimeout: *timeoutServer,
		MaxPayload:    *maxPayload,
		Sink:          sink,
	})
	s.Start()
	defer s.Stop()

	switch *direction {
	case "client":
		s.InvokeClientRequest(payload)
		if !s.WaitServerReceived(30 * time.Second) {
			fmt.Fprintln(os.Stderr, "gbtsim: server never finished receiving the stream")
			os.Exit(1)
		}
	case "server":
		s.InvokeServerResponse(payload)
		if !s.WaitClientReceived(30 * time.Second) {
			fmt.Fprintln(os.Stderr, "gbtsim: client never finished receiving the stream")
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "gbtsim: unknown -direction %q, want client or server\n", *direction)
		os.Exit(1)
	}

	if *configPath != "" {
		out := simcfg.Config{
			Payload:       payload,
			DropClient:    dc,
			DropServer:    ds,
			ClientTimeout: *timeoutClient,
			ServerTimeout: *timeoutServer,
			Transcript:    *transcriptPath,
		}
		if err := simcfg.Save(*configPath, out); err != nil {
			fmt.Fprintf(os.Stderr, "gbtsim: saving config: %v\n", err)
			os.Exit(1)
		}
	}
}

// writerOrNil returns an untyped nil io.Writer for a nil *os.File, rather
// than an interface value wrapping a typed nil pointer, which logsink
// would otherwise mistake for a real writer.
func writerOrNil(f *os.File) io.Writer {
	if f == nil {
		return nil
	}
	return f
}

func parseCSVInts(s string) []int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out []int
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

func mergeInts(a, b []int) []int {
	if len(b) == 0 {
		return a
	}
	return append(append([]int{}, a...), b...)
}

// Command rorserver runs the relay: it loads configuration, wires the
// authorization store, the optional script bridge and master-listing
// client to the sequencer core, then accepts connections until it
// receives SIGINT/SIGTERM, mirroring the project's existing
// multiserver.go/signal.go/end.go startup and shutdown sequence.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rigsofrods/relay-sequencer/internal/authstore"
	"github.com/rigsofrods/relay-sequencer/internal/config"
	"github.com/rigsofrods/relay-sequencer/internal/console"
	"github.com/rigsofrods/relay-sequencer/internal/listing"
	"github.com/rigsofrods/relay-sequencer/internal/logging"
	"github.com/rigsofrods/relay-sequencer/internal/script"
	"github.com/rigsofrods/relay-sequencer/internal/sequencer"
	"github.com/rigsofrods/relay-sequencer/internal/wire"
)

// handshakeTimeout bounds how long a newly accepted socket has to send
// its fixed-width {nickname, token} handshake before the listener gives
// up on it, the way admission's own FULL/BANNED rejection path is
// time-bounded.
const handshakeTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config/server.yml", "path to server.yml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	logs, err := logging.NewWriter("log")
	if err != nil {
		log.Fatal(err)
	}
	mainLog := logging.New(logs, "main")
	seqLog := logging.New(logs, "sequencer")
	scriptLog := logging.New(logs, "script")
	listingLog := logging.New(logs, "listing")
	consoleLog := logging.New(logs, "console")

	// stopFuncs runs in reverse order at shutdown, mirroring end.go's explicit
	// teardown of each component before os.Exit (which skips defers).
	var stopFuncs []func()

	var auth sequencer.AuthCollaborator
	var bans sequencer.BanStore
	if cfg.ServerMode == config.ModeINET {
		store, err := authstore.Open(cfg.AuthDBPath)
		if err != nil {
			log.Fatal(err)
		}
		stopFuncs = append(stopFuncs, func() { store.Close() })
		adapter := &authAdapter{store}
		auth, bans = adapter, adapter
	}

	seq := sequencer.New(sequencer.Options{
		MaxClients:      cfg.MaxClients,
		FrameMaxPayload: uint32(cfg.FrameMaxPayload),
		MOTDPath:        cfg.MOTDPath,
		PrintStats:      cfg.PrintStats,
	}, auth, bans, nil, seqLog)

	if cfg.EnableScripting {
		bridge, err := script.Open(cfg.ScriptPath, seq, scriptLog)
		if err != nil {
			mainLog.Printf("loading script %s: %v", cfg.ScriptPath, err)
		} else {
			stopFuncs = append(stopFuncs, bridge.Close)
			seq.SetScript(bridge)
		}
	}

	challenge := randomChallenge()
	if cfg.ServerMode == config.ModeINET && cfg.ServerListURL != "" {
		listingClient := listing.New(listing.Config{
			Enabled:     true,
			URL:         cfg.ServerListURL,
			Name:        cfg.ServerListName,
			Description: cfg.ServerListDesc,
			MaxClients:  cfg.MaxClients,
			Challenge:   challenge,
		}, seq, listingLog)
		listingClient.Start()
		stopFuncs = append(stopFuncs, listingClient.Stop)

		go serveHeartbeat(cfg.ListenPort+1, challenge, seq, mainLog)
	}

	if cfg.EnableConsole {
		cons := console.New(os.Stdin, seq, consoleLog)
		go cons.Run()
		go func() {
			<-cons.Quit()
			mainLog.Print("console requested shutdown")
			shutdownAndExit(seq, stopFuncs, mainLog)
		}()
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalChan
		mainLog.Print("caught SIGINT or SIGTERM, shutting down")
		shutdownAndExit(seq, stopFuncs, mainLog)
	}()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.ListenPort))
	if err != nil {
		log.Fatal(err)
	}

	mainLog.Printf("listening on :%d", cfg.ListenPort)

	for {
		conn, err := ln.Accept()
		if err != nil {
			mainLog.Printf("accept: %v", err)
			continue
		}
		go acceptClient(seq, conn, mainLog)
	}
}

// acceptClient runs the fixed-width handshake the listener owns before
// handing the connection to Admit, per §4.2's "invoked by an external
// listener after the client's handshake provided {username,
// uniqueIDToken}" framing: the sequencer core never reads raw sockets
// itself before admission.
func acceptClient(seq *sequencer.Sequencer, conn net.Conn, logger *log.Logger) {
	nickname, token, err := readHandshake(conn)
	if err != nil {
		logger.Printf("handshake with %s: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}

	if err := seq.Admit(conn, nickname, token); err != nil {
		logger.Printf("admitting %s: %v", nickname, err)
	}
}

// readHandshake reads the fixed {nickname(20), token(60)} NUL-padded
// fields the client sends immediately after connecting, before any
// framed protocol message.
func readHandshake(conn net.Conn) (nickname, token string, err error) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	buf := make([]byte, wire.NicknameFieldSize+wire.TokenFieldSize)
	if _, err := readFull(conn, buf); err != nil {
		return "", "", fmt.Errorf("reading handshake: %w", err)
	}

	nickname = wire.FixedString(buf[:wire.NicknameFieldSize])
	token = wire.FixedString(buf[wire.NicknameFieldSize:])
	return nickname, token, nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func randomChallenge() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "challenge"
	}
	return hex.EncodeToString(b)
}

// serveHeartbeat exposes the occupancy snapshot (§4.9) over plain HTTP
// so a master-list server can poll it back, the way the original
// heartbeat notifier thread did.
func serveHeartbeat(port int, challenge string, seq *sequencer.Sequencer, logger *log.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listing.Snapshot(challenge, seq))
	})

	addr := fmt.Sprintf(":%d", port)
	logger.Printf("serving heartbeat snapshot on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Printf("heartbeat server: %v", err)
	}
}

func shutdownAndExit(seq *sequencer.Sequencer, stopFuncs []func(), logger *log.Logger) {
	seq.Shutdown()
	time.Sleep(time.Second)
	for i := len(stopFuncs) - 1; i >= 0; i-- {
		stopFuncs[i]()
	}
	logger.Print("shutdown complete")
	os.Exit(0)
}

// authAdapter bridges *authstore.Store's own method signatures to the
// sequencer.AuthCollaborator/BanStore interfaces. Resolve and RemoveBan
// already match exactly and are promoted by embedding; SendUserEvent and
// the BanRecord-typed methods need a thin conversion since authstore
// defines its own named types for both so it never has to import the
// sequencer package.
type authAdapter struct {
	*authstore.Store
}

func (a *authAdapter) SendUserEvent(token, kind, nickname, extra string, sink func(string)) {
	a.Store.SendUserEvent(token, authstore.UserEventKind(kind), nickname, extra, sink)
}

func (a *authAdapter) AddBan(r sequencer.BanRecord) error {
	return a.Store.AddBan(authstore.BanRecord(r))
}

func (a *authAdapter) Bans() ([]sequencer.BanRecord, error) {
	records, err := a.Store.Bans()
	if err != nil {
		return nil, err
	}
	out := make([]sequencer.BanRecord, len(records))
	for i, r := range records {
		out[i] = sequencer.BanRecord(r)
	}
	return out, nil
}

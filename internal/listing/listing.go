// Package listing produces the heartbeat occupancy snapshot and, when
// configured, periodically announces the server to a master list, in
// the style of the project's existing serverlist.go ticker and
// multipart announcer.
package listing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"
)

const (
	announceStart  = "start"
	announceUpdate = "update"
	announceDelete = "delete"

	announceInterval = 5 * time.Minute
)

// ClientSnapshot is one row of the heartbeat occupancy document.
type ClientSnapshot struct {
	Slot        int
	Vehicle     string
	Nickname    string
	X, Y, Z     float32
	IP          string
	Token       string
	AuthLetters string
}

// Source is the narrow surface the listing client pulls occupancy data
// through. It is implemented by *sequencer.Sequencer.
type Source interface {
	NumClients() int
	ClientSnapshots() []ClientSnapshot
	Nicknames() []string
}

// Config is the subset of the process config the listing client needs.
type Config struct {
	Enabled     bool
	URL         string
	Name        string
	Description string
	MaxClients  int
	Challenge   string
}

// Client periodically announces to a master server list. The heartbeat
// snapshot document is rendered separately, by the package-level
// Snapshot function.
type Client struct {
	cfg    Config
	source Source
	logger *log.Logger

	stop chan struct{}
	done chan struct{}
}

// New constructs a listing client. Start must be called to begin the
// announce ticker; Snapshot can be called at any time.
func New(cfg Config, source Source, logger *log.Logger) *Client {
	return &Client{
		cfg:    cfg,
		source: source,
		logger: logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start posts AnnounceStart (if configured) and launches the 5-minute
// announce ticker. It returns immediately; the ticker runs on its own
// goroutine.
func (c *Client) Start() {
	if !c.cfg.Enabled || c.cfg.URL == "" {
		close(c.done)
		return
	}

	if err := c.announce(announceStart); err != nil {
		c.logger.Printf("announce start: %v", err)
	}

	go func() {
		defer close(c.done)

		ticker := time.NewTicker(announceInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := c.announce(announceUpdate); err != nil {
					c.logger.Printf("announce update: %v", err)
				}
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop posts AnnounceDelete and halts the ticker. It blocks until the
// ticker goroutine has exited.
func (c *Client) Stop() {
	if !c.cfg.Enabled || c.cfg.URL == "" {
		return
	}

	close(c.stop)
	<-c.done

	if err := c.announce(announceDelete); err != nil {
		c.logger.Printf("announce delete: %v", err)
	}
}

func (c *Client) announce(action string) error {
	c.logger.Printf("updating master list announcement (%s)", action)

	data := map[string]interface{}{
		"action": action,
	}

	if action != announceDelete {
		data["name"] = c.cfg.Name
		data["description"] = c.cfg.Description
		data["clients"] = c.source.NumClients()
		data["clients_max"] = c.cfg.MaxClients
		data["clients_list"] = c.source.Nicknames()
		data["challenge"] = c.cfg.Challenge
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("listing: encoding announce payload: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="json"`)

	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("listing: creating multipart body: %w", err)
	}
	if _, err := part.Write(payload); err != nil {
		return fmt.Errorf("listing: writing multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("listing: closing multipart body: %w", err)
	}

	resp, err := http.Post(c.cfg.URL+"/announce", "multipart/form-data; boundary="+writer.Boundary(), body)
	if err != nil {
		return fmt.Errorf("listing: posting to %s: %w", c.cfg.URL, err)
	}
	defer resp.Body.Close()

	return nil
}

// Snapshot renders the heartbeat occupancy document described in the
// wire format: a challenge line, a version marker, the client count,
// then one semicolon-delimited row per connected client.
func Snapshot(challenge string, source Source) string {
	rows := source.ClientSnapshots()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s\nversion4\n%d\n", challenge, len(rows))
	for _, r := range rows {
		fmt.Fprintf(&buf, "%d;%s;%s;%g,%g,%g;%s;%s;%s\n",
			r.Slot, r.Vehicle, r.Nickname, r.X, r.Y, r.Z, r.IP, r.Token, r.AuthLetters)
	}
	return buf.String()
}

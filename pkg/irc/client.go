// Copyright 2024-2026 Aiku AI

package irc

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiku/matrix-irc-relay/pkg/relay"
)

// DefaultSilenceTimeout is how long the wire may stay silent before the
// watchdog abandons the connection.
const DefaultSilenceTimeout = 200 * time.Second

// Config holds the IRC engine's settings.
type Config struct {
	Addr             string
	TLS              bool
	Nickname         string
	RealName         string
	Channel          string
	NickServPassword string
	SilenceTimeout   time.Duration
}

// Client is the IRC protocol engine: a connection supervisor that runs
// the registration handshake and receive loop, plus the send loop that
// relays queued text into the channel. The supervisor and the send loop
// run as two independent tasks joined only by the readiness signal, the
// current transport handle, and the watchdog.
type Client struct {
	cfg       Config
	log       zerolog.Logger
	toGroup   *relay.Queue
	fromGroup *relay.Queue
	ready     *Readiness
	wd        *Watchdog

	mu    sync.Mutex
	conn  *Conn
	abort context.CancelFunc
}

// NewClient creates the engine. toGroup receives formatted channel
// messages for the Matrix side; fromGroup is popped and sent into the
// channel.
func NewClient(cfg Config, log zerolog.Logger, toGroup, fromGroup *relay.Queue) *Client {
	if cfg.SilenceTimeout <= 0 {
		cfg.SilenceTimeout = DefaultSilenceTimeout
	}
	return &Client{
		cfg:       cfg,
		log:       log,
		toGroup:   toGroup,
		fromGroup: fromGroup,
		ready:     NewReadiness(),
		wd:        &Watchdog{},
	}
}

// Readiness exposes the connected signal as a read-only view.
func (c *Client) Readiness() *Readiness {
	return c.ready
}

// Run supervises the connection until ctx is done: open a transport, run
// the protocol to completion, tear down on any failure, reconnect with
// capped backoff. A session that reached readiness resets the backoff.
func (c *Client) Run(ctx context.Context) error {
	attempt := 0
	for {
		attempt++
		wasReady, err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if wasReady {
			attempt = 1
		}
		delay := nextBackoffDelay(attempt)
		c.log.Warn().Err(err).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg("Connection lost, reconnecting")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// runOnce performs one full connection attempt. No protocol state is
// carried across attempts; registration always restarts from scratch.
func (c *Client) runOnce(ctx context.Context) (reachedReady bool, err error) {
	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, err := Dial(attemptCtx, c.cfg.Addr, c.cfg.TLS)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", c.cfg.Addr, err)
	}
	// Cancellation of the attempt (watchdog expiry or shutdown) closes
	// the transport, which unblocks any in-flight read.
	stopClose := context.AfterFunc(attemptCtx, func() { conn.Close() })
	defer stopClose()
	defer conn.Close()

	c.setConn(conn, cancel)
	defer c.clearConn()
	defer c.wd.Cancel()
	defer c.ready.Clear()

	c.log.Info().Str("addr", c.cfg.Addr).Bool("tls", c.cfg.TLS).Msg("Connected, registering")
	c.resetWatchdog()
	if err := c.handshake(conn); err != nil {
		c.quit(conn)
		return false, fmt.Errorf("handshake: %w", err)
	}
	c.log.Info().Str("channel", c.cfg.Channel).Msg("Joined channel")
	c.ready.Set()

	err = c.receiveLoop(conn)
	c.quit(conn)
	return true, err
}

// handshake runs the registration sequence: wait for the server to speak
// first, send NICK and USER, wait for the end of the MOTD, identify to
// NickServ if configured, then join the channel. Every successful read
// or write resets the watchdog.
func (c *Client) handshake(conn *Conn) error {
	if _, _, err := conn.ReadLine(); err != nil {
		return fmt.Errorf("awaiting greeting: %w", err)
	}
	c.resetWatchdog()
	if err := conn.WriteCommand("NICK", c.cfg.Nickname); err != nil {
		return err
	}
	c.resetWatchdog()
	if err := conn.WriteCommand("USER", c.cfg.Nickname, "0", "*", c.cfg.RealName); err != nil {
		return err
	}
	c.resetWatchdog()
	if err := c.awaitMotdEnd(conn); err != nil {
		return err
	}
	if c.cfg.NickServPassword != "" {
		if err := conn.WriteCommand("PRIVMSG", "NickServ", "IDENTIFY "+c.cfg.NickServPassword); err != nil {
			return err
		}
		c.resetWatchdog()
	}
	if err := conn.WriteCommand("JOIN", c.cfg.Channel); err != nil {
		return err
	}
	c.resetWatchdog()
	return nil
}

// awaitMotdEnd reads lines until the end-of-MOTD reply (376) or the
// no-MOTD error (422), either of which completes registration.
func (c *Client) awaitMotdEnd(conn *Conn) error {
	for {
		line, _, err := conn.ReadLine()
		if err != nil {
			return fmt.Errorf("awaiting end of MOTD: %w", err)
		}
		c.resetWatchdog()
		if code := replyCode(line); code == "376" || code == "422" {
			return nil
		}
	}
}

// replyCode extracts the command or numeric from a prefixed server line.
func replyCode(line string) string {
	rest, ok := strings.CutPrefix(line, ":")
	if !ok {
		return ""
	}
	_, rest, ok = strings.Cut(rest, " ")
	if !ok {
		return ""
	}
	code, _, _ := strings.Cut(rest, " ")
	return code
}

// receiveLoop is the steady state: read a line, reset the watchdog,
// answer pings, and relay channel messages toward the Matrix side.
// Unrecognized lines are ignored. Any transport error unwinds to the
// supervisor; nothing is retried here.
func (c *Client) receiveLoop(conn *Conn) error {
	for {
		line, degraded, err := conn.ReadLine()
		if err != nil {
			return err
		}
		c.resetWatchdog()
		ev, ok := ParseChatLine(line, c.cfg.Channel)
		if !ok {
			continue
		}
		switch ev.Kind {
		case EventPing:
			if err := conn.WriteCommand("PONG", c.cfg.Nickname); err != nil {
				return err
			}
			c.resetWatchdog()
		case EventChat:
			text := ev.Text
			if degraded {
				text = DegradedMarker + text
			}
			c.log.Debug().Str("sender", ev.Sender).Msg("Relaying channel message")
			c.toGroup.Push(relay.ChatMessage{
				Sender: ev.Sender,
				Text:   text,
				Origin: relay.OriginChannel,
			}.Format())
		}
	}
}

// quit sends a best-effort QUIT notice. Shutdown-time write errors are
// logged and swallowed so they never block the reconnect loop.
func (c *Client) quit(conn *Conn) {
	if err := conn.WriteCommand("QUIT", "relay shutting down"); err != nil {
		c.log.Debug().Err(err).Msg("Failed to send QUIT")
	}
}

func (c *Client) setConn(conn *Conn, abort context.CancelFunc) {
	c.mu.Lock()
	c.conn, c.abort = conn, abort
	c.mu.Unlock()
}

func (c *Client) clearConn() {
	c.mu.Lock()
	c.conn, c.abort = nil, nil
	c.mu.Unlock()
}

func (c *Client) currentConn() *Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// resetWatchdog re-arms the silence deadline for the current attempt.
// Expiry cancels the attempt, which closes the transport.
func (c *Client) resetWatchdog() {
	c.mu.Lock()
	abort := c.abort
	c.mu.Unlock()
	if abort == nil {
		return
	}
	c.wd.Arm(c.cfg.SilenceTimeout, func() {
		c.log.Warn().
			Dur("silence", c.cfg.SilenceTimeout).
			Msg("Watchdog expired, abandoning connection")
		abort()
	})
}

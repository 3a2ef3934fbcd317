// Copyright 2024-2026 Aiku AI

package irc

import (
	"context"
	"strings"
)

// SendLoop relays text popped from the Matrix-side queue into the
// channel, strictly in arrival order. Each queued string waits for
// connection readiness, is split on its own line breaks and then into
// length-limited fragments, and goes out as one PRIVMSG per fragment
// with a watchdog reset after each successful write. There is no
// send-path timeout; a wedged transport is abandoned by the watchdog.
func (c *Client) SendLoop(ctx context.Context) error {
	limit := MaxPayload(c.cfg.Channel)
	for {
		msg, err := c.fromGroup.Pop(ctx)
		if err != nil {
			return err
		}
		c.deliver(ctx, msg, limit)
	}
}

// deliver sends one queued message once the connection is ready. A
// mid-message write failure drops the remainder of that message rather
// than re-sending after reconnect, so nothing popped from the queue is
// ever sent twice.
func (c *Client) deliver(ctx context.Context, msg string, limit int) {
	for {
		if err := c.ready.Wait(ctx); err != nil {
			return
		}
		conn := c.currentConn()
		if conn == nil {
			// Teardown raced the readiness check; wait for the next
			// session.
			continue
		}
		if err := c.writeMessage(conn, msg, limit); err != nil {
			c.log.Warn().Err(err).Msg("Dropping message after send failure")
		}
		return
	}
}

func (c *Client) writeMessage(conn *Conn, msg string, limit int) error {
	for _, line := range strings.Split(msg, "\n") {
		for frag := range SplitForTransmission(line, limit) {
			if err := conn.WriteCommand("PRIVMSG", c.cfg.Channel, frag); err != nil {
				return err
			}
			c.resetWatchdog()
		}
	}
	return nil
}

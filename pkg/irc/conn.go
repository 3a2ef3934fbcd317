// Copyright 2024-2026 Aiku AI

package irc

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"
	"strings"
	"sync"
)

// Conn wraps one transport connection with line-oriented reads and
// serialized line writes. Reads decode with the charset fallback chain;
// writes assemble protocol lines. The write mutex keeps the receive
// loop's pong replies from interleaving with relay sends.
type Conn struct {
	nc  net.Conn
	r   *bufio.Reader
	wmu sync.Mutex
}

// Dial opens a plain or TLS transport to addr.
func Dial(ctx context.Context, addr string, useTLS bool) (*Conn, error) {
	var (
		nc  net.Conn
		err error
	)
	if useTLS {
		dialer := &tls.Dialer{NetDialer: &net.Dialer{}}
		nc, err = dialer.DialContext(ctx, "tcp", addr)
	} else {
		dialer := &net.Dialer{}
		nc, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, err
	}
	return NewConn(nc), nil
}

// NewConn wraps an established transport.
func NewConn(nc net.Conn) *Conn {
	return &Conn{nc: nc, r: bufio.NewReader(nc)}
}

// ReadLine blocks for the next CRLF-terminated line and returns its
// decoded text plus a degraded flag. Cancellation is cooperative: the
// supervisor closes the transport, which unblocks the read with an
// error.
func (c *Conn) ReadLine() (string, bool, error) {
	raw, err := c.r.ReadString('\n')
	if err != nil {
		return "", false, err
	}
	raw = strings.TrimRight(raw, "\r\n")
	text, degraded := DecodeLine([]byte(raw))
	return text, degraded, nil
}

// WriteCommand assembles and writes one protocol line.
func (c *Conn) WriteCommand(command string, params ...string) error {
	line := EncodeLine(command, params...)
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err := c.nc.Write([]byte(line))
	return err
}

// Close closes the underlying transport. Safe to call more than once.
func (c *Conn) Close() error {
	return c.nc.Close()
}

// Copyright 2024-2026 Aiku AI

// Package matrix implements the group side of the relay on top of the
// mautrix client library. It syncs the configured room, pushes other
// users' messages toward the IRC side, and sends queued channel text
// into the room. The library owns the connection lifecycle; this engine
// only drives login, the sync loop, and the two relay directions.
package matrix

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/aiku/matrix-irc-relay/pkg/relay"
)

// directReply is the fixed answer to messages the relay does not handle,
// such as direct messages to the bot.
const directReply = "This is a relay bridging an IRC channel with this Matrix server. It only forwards messages in its configured room."

// textSender issues room sends. *mautrix.Client satisfies it; tests
// inject a mock.
type textSender interface {
	SendText(ctx context.Context, roomID id.RoomID, text string) (*mautrix.RespSendEvent, error)
}

// Config holds the Matrix engine's settings. AccessToken wins over
// Password when both are set.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
	Password    string
	RoomID      string
}

// Client is the Matrix protocol engine.
type Client struct {
	cfg         Config
	log         zerolog.Logger
	toChannel   *relay.Queue
	fromChannel *relay.Queue

	mc        *mautrix.Client
	sender    textSender
	userID    id.UserID
	roomID    id.RoomID
	startTime int64
}

// NewClient creates the engine and its underlying mautrix client.
// toChannel receives formatted room messages for the IRC side;
// fromChannel is popped and sent into the room.
func NewClient(cfg Config, log zerolog.Logger, toChannel, fromChannel *relay.Queue) (*Client, error) {
	mc, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("create matrix client: %w", err)
	}
	mc.Log = log
	mc.Store = mautrix.NewMemorySyncStore()
	return &Client{
		cfg:         cfg,
		log:         log,
		toChannel:   toChannel,
		fromChannel: fromChannel,
		mc:          mc,
		sender:      mc,
		userID:      id.UserID(cfg.UserID),
		roomID:      id.RoomID(cfg.RoomID),
		startTime:   time.Now().UnixMilli(),
	}, nil
}

// Run logs in if needed and syncs until ctx is done, reconnecting on
// sync errors.
func (c *Client) Run(ctx context.Context) error {
	if c.cfg.AccessToken == "" {
		if err := c.loginWithRetry(ctx); err != nil {
			return err
		}
	}

	syncer := c.mc.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, c.onMessage)
	syncer.OnEventType(event.StateMember, c.onMemberEvent)

	c.log.Info().Str("room", string(c.roomID)).Msg("Matrix engine ready, starting sync")
	for {
		err := c.mc.SyncWithContext(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			c.log.Warn().Err(err).Msg("Sync failed, reconnecting in 15s")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(15 * time.Second):
			}
		}
	}
}

// loginWithRetry performs password login with capped exponential
// backoff. Credential errors are not retried.
func (c *Client) loginWithRetry(ctx context.Context) error {
	localpart, _, err := c.userID.Parse()
	if err != nil {
		return fmt.Errorf("parse matrix user id: %w", err)
	}

	backoff := 2 * time.Second
	const maxBackoff = 2 * time.Minute
	const maxAttempts = 10
	for attempt := 1; ; attempt++ {
		resp, err := c.mc.Login(ctx, &mautrix.ReqLogin{
			Type: mautrix.AuthTypePassword,
			Identifier: mautrix.UserIdentifier{
				Type: mautrix.IdentifierTypeUser,
				User: localpart,
			},
			Password:         c.cfg.Password,
			StoreCredentials: true,
		})
		if err == nil {
			c.log.Info().Str("user", string(resp.UserID)).Str("device", string(resp.DeviceID)).Msg("Logged into Matrix")
			return nil
		}
		if isPermanentLoginError(err) {
			return fmt.Errorf("matrix login: %w", err)
		}
		if attempt == maxAttempts {
			return fmt.Errorf("matrix login after %d attempts: %w", maxAttempts, err)
		}
		c.log.Warn().Err(err).Int("attempt", attempt).Dur("backoff", backoff).Msg("Matrix login failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func isPermanentLoginError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "M_FORBIDDEN") ||
		strings.Contains(msg, "M_UNKNOWN_TOKEN") ||
		strings.Contains(msg, "M_INVALID_PARAM")
}

// SendLoop relays text popped from the IRC-side queue into the room, in
// arrival order. Send failures are logged, never fatal.
func (c *Client) SendLoop(ctx context.Context) error {
	for {
		msg, err := c.fromChannel.Pop(ctx)
		if err != nil {
			return err
		}
		if _, err := c.sender.SendText(ctx, c.roomID, msg); err != nil {
			c.log.Warn().Err(err).Msg("Failed to send to room, dropping message")
		}
	}
}

// onMessage handles one synced message event. Own messages and events
// from before startup are skipped so the relay never echoes its own
// output back around the loop.
func (c *Client) onMessage(ctx context.Context, evt *event.Event) {
	if evt.Sender == c.userID {
		return
	}
	if evt.Timestamp < c.startTime {
		return
	}
	content := evt.Content.AsMessage()
	if content == nil || content.Body == "" {
		return
	}
	if evt.RoomID != c.roomID {
		c.log.Warn().
			Str("room", string(evt.RoomID)).
			Str("sender", string(evt.Sender)).
			Msg("Message outside the relayed room, sending info reply")
		if _, err := c.sender.SendText(ctx, evt.RoomID, directReply); err != nil {
			c.log.Warn().Err(err).Msg("Failed to send info reply")
		}
		return
	}

	var text string
	switch content.MsgType {
	case event.MsgText:
		text = content.Body
	case event.MsgEmote:
		text = "* " + content.Body
	default:
		// Notices come from bots; media has no textual body worth
		// relaying verbatim.
		return
	}

	c.log.Debug().Str("sender", string(evt.Sender)).Msg("Relaying room message")
	c.toChannel.Push(relay.ChatMessage{
		Sender: senderName(evt.Sender),
		Text:   text,
		Origin: relay.OriginGroup,
	}.Format())
}

// onMemberEvent auto-joins invites, but only into the configured room.
func (c *Client) onMemberEvent(ctx context.Context, evt *event.Event) {
	if evt.GetStateKey() != string(c.userID) {
		return
	}
	content := evt.Content.AsMember()
	if content == nil || content.Membership != event.MembershipInvite {
		return
	}
	if evt.RoomID != c.roomID {
		c.log.Warn().Str("room", string(evt.RoomID)).Str("sender", string(evt.Sender)).Msg("Rejecting invite to unconfigured room")
		return
	}
	c.log.Info().Str("room", string(evt.RoomID)).Msg("Accepting room invite")
	if _, err := c.mc.JoinRoomByID(ctx, evt.RoomID); err != nil {
		c.log.Error().Err(err).Str("room", string(evt.RoomID)).Msg("Failed to join room")
	}
}

// senderName reduces a Matrix user ID to its localpart for display.
func senderName(uid id.UserID) string {
	if localpart, _, err := uid.Parse(); err == nil && localpart != "" {
		return localpart
	}
	return string(uid)
}

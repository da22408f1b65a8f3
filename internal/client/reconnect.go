package client

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/pintr/p2p-videocall/internal/protocol"
)

// Session is one live relay connection handed to the caller by the
// Reconnector.
type Session struct {
	Client  *Client
	Handler *Handler
}

// Reconnector keeps a room binding alive across transport loss. Each time
// the connection drops it redials with exponential backoff and re-emits join
// with the same stable user identity and room, always asking for fresh
// connectivity-server config since credentials may have rotated while the
// transport was down.
type Reconnector struct {
	serverURL string
	join      protocol.JoinPayload
	log       zerolog.Logger

	// OnSession is invoked after every successful connect, once the join
	// has been queued. It must return when the session's handler channels
	// close.
	OnSession func(ctx context.Context, s *Session)
}

// NewReconnector creates a reconnector for the given relay URL and join
// identity.
func NewReconnector(serverURL string, join protocol.JoinPayload, log zerolog.Logger) *Reconnector {
	return &Reconnector{
		serverURL: serverURL,
		join:      join,
		log:       log,
	}
}

// Run connects, joins and hands the session to OnSession, repeating after
// every transport loss until the context is cancelled. The first connect
// failure is returned instead of retried so a bad URL fails fast.
func (r *Reconnector) Run(ctx context.Context) error {
	first := true
	for {
		c := NewClient(r.serverURL)
		if err := r.connect(ctx, c, first); err != nil {
			return err
		}
		first = false

		h := NewHandler(c.Incoming(), r.log)
		go h.Run()

		join := r.join
		join.WantsConfig = true
		msg, err := protocol.NewMessage(protocol.TypeJoin, join)
		if err != nil {
			c.Close()
			return err
		}
		c.SendMessage(msg)

		if r.OnSession != nil {
			r.OnSession(ctx, &Session{Client: c, Handler: h})
		}
		c.Close()

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		r.log.Info().Msg("signaling transport lost, reconnecting")
	}
}

func (r *Reconnector) connect(ctx context.Context, c *Client, first bool) error {
	if first {
		return c.Connect()
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0 // retry until cancelled

	return backoff.Retry(func() error {
		err := c.Connect()
		if err != nil {
			r.log.Warn().Err(err).Msg("reconnect attempt failed")
		}
		return err
	}, backoff.WithContext(bo, ctx))
}

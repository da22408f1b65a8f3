package main

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/pintr/p2p-videocall/internal/call"
	"github.com/pintr/p2p-videocall/internal/client"
	"github.com/pintr/p2p-videocall/internal/protocol"
)

func TestPumpSignalsJoinedOnce(t *testing.T) {
	in := make(chan *protocol.Message, 4)
	h := client.NewHandler(in, zerolog.Nop())
	go h.Run()
	s := &client.Session{Handler: h}

	coord := call.New(&relaySignaler{}, call.Config{Logger: zerolog.Nop()})
	defer coord.Close()

	joined, err := protocol.NewMessage(protocol.TypeJoined, protocol.JoinedPayload{
		User: protocol.UserInfo{ID: "u1"},
		Room: protocol.RoomInfo{ID: "r1", UserCount: 2, MaxUsers: 2},
	})
	require.NoError(t, err)
	in <- joined

	joinedSeen := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- pump(context.Background(), s, coord, func() {
			joinedSeen <- struct{}{}
		}, zerolog.Nop())
	}()

	select {
	case <-joinedSeen:
	case <-time.After(time.Second):
		t.Fatal("joined confirmation never surfaced")
	}

	close(in)
	require.NoError(t, <-done)
}

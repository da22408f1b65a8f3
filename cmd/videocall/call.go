package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pintr/p2p-videocall/internal/call"
	"github.com/pintr/p2p-videocall/internal/client"
	"github.com/pintr/p2p-videocall/internal/config"
	"github.com/pintr/p2p-videocall/internal/protocol"
	"github.com/pintr/p2p-videocall/internal/ui"
)

var (
	flagServerURL string
	flagName      string
	flagSTUN      string
)

var callCmd = &cobra.Command{
	Use:     "call [room-id]",
	Aliases: []string{"c"},
	Short:   "Start or join a two-party call",
	Long: `Start or join a call. Without a room id a new one is generated; share it
with the other participant so they can join.

Examples:
  videocall call
  videocall call brave-curious-skink
  videocall call brave-curious-skink --name Alice`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID := ""
		if len(args) == 1 {
			roomID = args[0]
		}
		return runCall(roomID)
	},
}

func init() {
	callCmd.Flags().StringVar(&flagServerURL, "server", "", "signaling relay URL")
	callCmd.Flags().StringVar(&flagName, "name", "", "display name shown to the peer")
	callCmd.Flags().StringVar(&flagSTUN, "stun", "", "fallback STUN server")
	rootCmd.AddCommand(callCmd)
}

// relaySignaler forwards coordinator messages to whichever relay connection
// is currently alive; the reconnector swaps the target on every redial.
type relaySignaler struct {
	mu sync.Mutex
	c  *client.Client
}

func (r *relaySignaler) set(c *client.Client) {
	r.mu.Lock()
	r.c = c
	r.mu.Unlock()
}

func (r *relaySignaler) SendMessage(msg *protocol.Message) {
	r.mu.Lock()
	c := r.c
	r.mu.Unlock()
	if c != nil {
		c.SendMessage(msg)
	}
}

func runCall(roomID string) error {
	log := newLogger()

	cfg, err := config.LoadClient(config.ClientOptions{
		ServerURL:   flagServerURL,
		DisplayName: flagName,
		STUNServer:  flagSTUN,
	})
	if err != nil {
		return err
	}

	if roomID == "" {
		roomID = petname.Generate(3, "-")
		ui.PrintTitle("Share this room id with the other participant:")
		ui.PrintRoomID(roomID)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	signaler := &relaySignaler{}

	var fatalMu sync.Mutex
	var fatal error
	setFatal := func(err error) {
		fatalMu.Lock()
		if fatal == nil {
			fatal = err
		}
		fatalMu.Unlock()
		cancel()
	}

	coord := call.New(signaler, call.Config{
		ICEServers: []protocol.ICEServer{{URLs: []string{cfg.STUNServer}}},
		OnRemoteTrack: func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
			ui.PrintSuccess(fmt.Sprintf("receiving remote %s track (%s)", track.Kind(), track.Codec().MimeType))
		},
		OnStateChange: func(state call.State) {
			switch state {
			case call.StateConnected:
				ui.PrintSuccess("call connected")
			case call.StateRecovering:
				ui.PrintWarning("connection degraded, recovering")
			}
		},
		OnCallEnded: func(reason string) {
			setFatal(errors.New(reason))
		},
		Logger: log,
	})
	defer coord.Close()

	join := protocol.JoinPayload{
		RoomID:      roomID,
		UserID:      uuid.NewString(),
		DisplayName: cfg.DisplayName,
		WantsConfig: true,
	}

	stopSpinner := ui.RunConnectionSpinner("Connecting to relay...")

	recon := client.NewReconnector(cfg.ServerURL, join, log)
	recon.OnSession = func(ctx context.Context, s *client.Session) {
		signaler.set(s.Client)
		if err := pump(ctx, s, coord, stopSpinner, log); err != nil {
			setFatal(err)
		}
	}

	err = recon.Run(ctx)
	stopSpinner()

	fatalMu.Lock()
	failure := fatal
	fatalMu.Unlock()
	if failure != nil {
		return failure
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	ui.PrintMuted("call finished")
	return nil
}

// pump feeds one relay session's events into the coordinator. onJoined fires
// once room membership is confirmed, so the caller can drop its connecting
// indicator. pump returns nil when the transport drops (the reconnector takes
// over) and an error when the call cannot continue.
func pump(ctx context.Context, s *client.Session, coord *call.Coordinator, onJoined func(), log zerolog.Logger) error {
	h := s.Handler

	var waiting *ui.Spinner
	stopWaiting := func() {
		if waiting != nil {
			waiting.Stop()
			waiting = nil
		}
	}
	defer stopWaiting()

	for {
		select {
		case <-ctx.Done():
			return nil

		case p, ok := <-h.Joined:
			if !ok {
				return nil
			}
			if err := coord.HandleJoined(p); err != nil {
				log.Warn().Err(err).Msg("joined rejected")
				continue
			}
			onJoined()
			if p.Room.UserCount < p.Room.MaxUsers {
				waiting = ui.NewWaitingSpinner("Waiting for the other participant")
				waiting.Start()
			}

		case _, ok := <-h.Ready:
			if !ok {
				return nil
			}
			stopWaiting()
			if err := coord.HandleReady(); err != nil {
				return err
			}

		case sdp, ok := <-h.Offer:
			if !ok {
				return nil
			}
			stopWaiting()
			if err := coord.HandleOffer(sdp.SDP); err != nil {
				log.Warn().Err(err).Str("from", sdp.From).Msg("offer rejected")
			}

		case sdp, ok := <-h.Answer:
			if !ok {
				return nil
			}
			if err := coord.HandleAnswer(sdp.SDP); err != nil {
				log.Warn().Err(err).Str("from", sdp.From).Msg("answer rejected")
			}

		case candidate, ok := <-h.Candidate:
			if !ok {
				return nil
			}
			coord.HandleCandidate(candidate)

		case userID, ok := <-h.PeerLeft:
			if !ok {
				return nil
			}
			ui.PrintWarning(fmt.Sprintf("peer %s left the call", userID))
			coord.HandlePeerLeft()
			stopWaiting()
			waiting = ui.NewWaitingSpinner("Waiting for the other participant")
			waiting.Start()

		case _, ok := <-h.Full:
			if !ok {
				return nil
			}
			return errors.New("room is full")

		case errText, ok := <-h.Errors:
			if !ok {
				return nil
			}
			ui.PrintError(errText)
		}
	}
}

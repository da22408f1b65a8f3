package call

// State is the negotiation state of a Coordinator.
type State int

const (
	// StateIdle is the initial state, before a join has been confirmed.
	StateIdle State = iota

	// StateAwaitingReady means the room is joined and the coordinator
	// waits to learn its role: a ready makes it the offerer, an offer
	// makes it the answerer.
	StateAwaitingReady

	// StateOffering means a local offer is out and an answer is awaited.
	StateOffering

	// StateAnswering means a remote offer was answered and connectivity
	// checks are running.
	StateAnswering

	// StateConnected means the peer connection is established.
	StateConnected

	// StateRecovering means connectivity degraded; the offering side is
	// attempting an ICE restart, the answering side waits for a new offer.
	StateRecovering

	// StateClosed is terminal: the call was hung up or recovery gave up.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingReady:
		return "awaiting-ready"
	case StateOffering:
		return "offering"
	case StateAnswering:
		return "answering"
	case StateConnected:
		return "connected"
	case StateRecovering:
		return "recovering"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

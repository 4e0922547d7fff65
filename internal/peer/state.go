package peer

// Role decides which side creates the data channel and the offer.
type Role int

const (
	Offerer Role = iota
	Answerer
)

func (r Role) String() string {
	if r == Answerer {
		return "answerer"
	}
	return "offerer"
}

// State is the handshake state of a Session.
type State int

const (
	StateIdle State = iota
	StateLocalOfferCreated
	StateRemoteOfferReceived
	StateLocalAnswerCreated
	StateConnected
	StateClosed
)

var stateNames = [...]string{
	StateIdle:                "idle",
	StateLocalOfferCreated:   "local-offer-created",
	StateRemoteOfferReceived: "remote-offer-received",
	StateLocalAnswerCreated:  "local-answer-created",
	StateConnected:           "connected",
	StateClosed:              "closed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Status is the transport connection status, independent of the handshake.
type Status int

const (
	StatusConnecting Status = iota
	StatusConnected
	StatusDisconnected
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	case StatusFailed:
		return "failed"
	default:
		return "connecting"
	}
}

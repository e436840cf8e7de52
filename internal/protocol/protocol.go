package protocol

import (
	"errors"
	"fmt"

	"sastrust/internal/domain"
)

// InitialStateID is the state of an instance that does not exist yet.
const InitialStateID domain.StateID = 0

var (
	// ErrDrop makes the engine roll back and ignore the message.
	ErrDrop = errors.New("protocol: message dropped")
	// ErrUnknownProtocol is returned for messages of unregistered protocols.
	ErrUnknownProtocol = errors.New("protocol: unknown protocol")
	// ErrNoTransition reports that no step exists for (state, message, channel).
	ErrNoTransition = errors.New("protocol: no transition")
	// ErrMalformed wraps decoding failures of messages and states.
	ErrMalformed = errors.New("protocol: malformed")
	// ErrAborted is the cause of instances cancelled with Engine.Abort.
	ErrAborted = errors.New("protocol: aborted by user")
	// ErrWrongSender reports a message from an unexpected identity or device.
	ErrWrongSender = errors.New("protocol: unexpected sender")
)

// State is one persisted state of a protocol instance.
type State interface {
	StateID() domain.StateID
}

// Message is one protocol message.
type Message interface {
	MessageID() domain.MessageID
}

// Canceller is implemented by terminal failure states.
type Canceller interface {
	State
	CancelCause() error
}

// PeerBound is implemented by states that know the remote identity. The
// engine drops contact-channel messages from anyone else.
type PeerBound interface {
	Peer() domain.CryptoIdentity
}

// DialogBound is implemented by states that own a dialog. The dialog is
// deleted when the instance is cancelled.
type DialogBound interface {
	Dialog() domain.DialogID
}

// Initial is the state of an instance before its first step.
type Initial struct{}

// StateID implements State.
func (Initial) StateID() domain.StateID { return InitialStateID }

// StepFunc executes one step. It returns the next state, ErrDrop to ignore the
// message, or another error to cancel the instance.
type StepFunc func(sc *StepContext, from State, msg Message) (State, error)

// Transition declares that Run handles message Message received over Channel
// while in state From.
type Transition struct {
	Name    string
	From    domain.StateID
	Message domain.MessageID
	Channel domain.ChannelKind
	Run     StepFunc
}

// Definition describes a concrete protocol.
type Definition struct {
	ID          domain.ProtocolID
	Name        string
	Transitions []Transition

	// NewState and NewMessage return pointers to zero values for decoding.
	NewState   func(domain.StateID) (State, error)
	NewMessage func(domain.MessageID) (Message, error)
	// Terminal reports whether an instance in the state is finished.
	Terminal func(domain.StateID) bool
}

// Validate checks that every (state, message) pair has at most one step.
func (d *Definition) Validate() error {
	if d.NewState == nil || d.NewMessage == nil || d.Terminal == nil {
		return fmt.Errorf("protocol %s: incomplete definition", d.Name)
	}
	seen := make(map[[2]uint8]string, len(d.Transitions))
	for _, t := range d.Transitions {
		k := [2]uint8{uint8(t.From), uint8(t.Message)}
		if prev, ok := seen[k]; ok {
			return fmt.Errorf("protocol %s: steps %s and %s share state %d message %d",
				d.Name, prev, t.Name, t.From, t.Message)
		}
		if t.Run == nil {
			return fmt.Errorf("protocol %s: step %s has no body", d.Name, t.Name)
		}
		if d.Terminal(t.From) {
			return fmt.Errorf("protocol %s: step %s starts from a terminal state", d.Name, t.Name)
		}
		seen[k] = t.Name
	}
	return nil
}

// Lookup returns the transition for a message received over channel while in
// state from. A transition declared for another channel does not match.
func Lookup(d *Definition, from domain.StateID, msg domain.MessageID, channel domain.ChannelKind) (*Transition, bool) {
	for i := range d.Transitions {
		t := &d.Transitions[i]
		if t.From != from || t.Message != msg {
			continue
		}
		if t.Channel != channel {
			return nil, false
		}
		return t, true
	}
	return nil, false
}

// Accepts reports whether some state of d takes msg over channel. Remote
// messages that no state takes are never worth parking.
func Accepts(d *Definition, msg domain.MessageID, channel domain.ChannelKind) bool {
	for _, t := range d.Transitions {
		if t.Message == msg && t.Channel == channel {
			return true
		}
	}
	return false
}

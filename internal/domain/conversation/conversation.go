// Package conversation models the state of one ordering conversation.
//
// The flow is Start -> CollectingItems -> ConfirmingItems ->
// CollectingDelivery -> CollectingPayment -> Done. State is a plain value
// owned by the caller; nothing here is shared between conversations.
package conversation

import (
	"slices"

	"github.com/xenking/sazon-bot/internal/domain/order"
)

// Phase is the step of the ordering flow a conversation is in.
type Phase string

const (
	PhaseStart              Phase = "start"
	PhaseCollectingItems    Phase = "collecting_items"
	PhaseConfirmingItems    Phase = "confirming_items"
	PhaseCollectingDelivery Phase = "collecting_delivery"
	PhaseCollectingPayment  Phase = "collecting_payment"
	PhaseDone               Phase = "done"
)

// Role tags an utterance in the turn history.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged utterance.
type Message struct {
	Role    Role
	Content string
}

// State is the full state of one conversation.
type State struct {
	Phase Phase
	// Draft is nil only in PhaseStart.
	Draft *order.Draft
	// Confirmed is the order emitted by the last Done transition.
	Confirmed *order.ConfirmedOrder
	History   []Message
}

// New returns a conversation in PhaseStart seeded with the given history.
func New(history ...Message) State {
	return State{Phase: PhaseStart, History: slices.Clone(history)}
}

// Clone returns a deep copy of s. The confirmed order is shared because it
// is never mutated.
func (s State) Clone() State {
	c := s
	c.Draft = s.Draft.Clone()
	c.History = slices.Clone(s.History)
	return c
}

// Begin moves a conversation in Start or Done into CollectingItems with an
// empty draft, forgetting the previously confirmed order. Other phases are
// returned unchanged.
func (s State) Begin() State {
	if s.Phase != PhaseStart && s.Phase != PhaseDone {
		return s
	}
	s.Phase = PhaseCollectingItems
	s.Draft = &order.Draft{}
	s.Confirmed = nil
	return s
}

// Decline discards the draft and goes back to collecting items.
func (s State) Decline() State {
	s.Phase = PhaseCollectingItems
	s.Draft = &order.Draft{}
	return s
}

// Reset discards everything but the given seed history.
func (s State) Reset(history ...Message) State {
	return New(history...)
}

// Append records utterances in the history.
func (s State) Append(msgs ...Message) State {
	s.History = append(slices.Clone(s.History), msgs...)
	return s
}

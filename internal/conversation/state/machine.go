// Package state implements the conversation lifecycle state machine.
// Transitions happen only through the table below; any (state, event) pair
// absent from the table is rejected.
package state

import (
	"fmt"
	"sort"
	"strings"
)

// State is a conversation lifecycle state.
type State string

const (
	StateInbound       State = "INBOUND"
	StateCaptureMin    State = "CAPTURE_MIN"
	StateQuoteReady    State = "QUOTE_READY"
	StateQuoteSent     State = "QUOTE_SENT"
	StateWaitingReply  State = "WAITING_REPLY"
	StateHumanApproval State = "HUMAN_APPROVAL"
	StateWon           State = "WON"
	StateLost          State = "LOST"
)

// Event drives a state transition.
type Event string

const (
	EventFirstMessageReceived Event = "first_message_received"
	EventMinimalDataReceived  Event = "minimal_data_received"
	EventApprovalRequired     Event = "approval_required"
	EventQuoteApproved        Event = "quote_approved"
	EventQuoteAutoOK          Event = "quote_auto_ok"
	EventUserReplied          Event = "user_replied"
	EventWindowExpired        Event = "window_expired"
	EventScheduleConfirmed    Event = "schedule_confirmed"
	EventUserDeclined         Event = "user_declined"
	EventAdminApproved        Event = "admin_approved"
	EventAdminRejected        Event = "admin_rejected"
)

type transitionKey struct {
	from  State
	event Event
}

var transitions = map[transitionKey]State{
	{StateInbound, EventFirstMessageReceived}:    StateCaptureMin,
	{StateCaptureMin, EventMinimalDataReceived}:  StateQuoteReady,
	{StateQuoteReady, EventApprovalRequired}:     StateHumanApproval,
	{StateQuoteReady, EventQuoteApproved}:        StateQuoteSent,
	{StateQuoteReady, EventQuoteAutoOK}:          StateQuoteSent,
	{StateQuoteSent, EventUserReplied}:           StateWaitingReply,
	{StateQuoteSent, EventWindowExpired}:         StateLost,
	{StateWaitingReply, EventScheduleConfirmed}:  StateWon,
	{StateWaitingReply, EventUserDeclined}:       StateLost,
	{StateWaitingReply, EventWindowExpired}:      StateLost,
	{StateHumanApproval, EventAdminApproved}:     StateQuoteSent,
	{StateHumanApproval, EventAdminRejected}:     StateLost,
}

// InvalidTransitionError reports a (state, event) pair absent from the
// transition table, with the set of valid events for diagnostics.
type InvalidTransitionError struct {
	From  State
	Event Event
	Valid []Event
}

func (e *InvalidTransitionError) Error() string {
	valid := make([]string, len(e.Valid))
	for i, event := range e.Valid {
		valid[i] = string(event)
	}
	return fmt.Sprintf("invalid transition: event %q not allowed in state %q (valid: %s)",
		e.Event, e.From, strings.Join(valid, ", "))
}

// Next returns the state reached by applying event in the given state, or an
// *InvalidTransitionError. It never returns the same state for an unknown pair.
func Next(from State, event Event) (State, error) {
	next, ok := transitions[transitionKey{from, event}]
	if !ok {
		return "", &InvalidTransitionError{
			From:  from,
			Event: event,
			Valid: ValidEvents(from),
		}
	}
	return next, nil
}

// Hook runs after a successful transition, before it is considered committed.
type Hook func(next State) error

// Transition applies event and then runs the optional hook. A hook error is
// returned as-is so the caller can abort persisting the transition.
func Transition(from State, event Event, hook Hook) (State, error) {
	next, err := Next(from, event)
	if err != nil {
		return "", err
	}
	if hook != nil {
		if err := hook(next); err != nil {
			return "", err
		}
	}
	return next, nil
}

// ValidEvents returns the events accepted in the given state, sorted.
func ValidEvents(from State) []Event {
	events := make([]Event, 0, 3)
	for key := range transitions {
		if key.from == from {
			events = append(events, key.event)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i] < events[j] })
	return events
}

// CanTransition reports whether event is accepted in the given state.
func CanTransition(from State, event Event) bool {
	_, ok := transitions[transitionKey{from, event}]
	return ok
}

// IsTerminal reports whether no event is accepted in the given state.
func IsTerminal(s State) bool {
	return len(ValidEvents(s)) == 0
}

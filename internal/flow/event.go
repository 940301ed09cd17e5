package flow

import (
	"strconv"

	"github.com/m3rciful/shiftbot/core/telegram/state"
	"github.com/m3rciful/shiftbot/internal/production"
)

// Operator flow states.
const (
	StateContactConfirm state.State = "contact_confirm"
	StateChooseLine     state.State = "choose_line"
	StateChooseOperator state.State = "choose_operator"
	StateChooseAction   state.State = "choose_action"
	StateChooseOrder    state.State = "choose_order"
	StateChooseBundle   state.State = "choose_bundle"
	StateChooseProduct  state.State = "choose_product"
	StateEnterResult    state.State = "enter_result"
	StateInputCount     state.State = "input_count"
	StateIdle           state.State = "idle"
	StateIdleOption     state.State = "idle_option"
	StateIdleNow        state.State = "idle_now"
)

// Admin flow states.
const (
	StateAdminMain    state.State = "admin_main"
	StateAddOperator  state.State = "add_operator"
	StateOperatorRate state.State = "operator_rate"
	StateOperatorLine state.State = "operator_line"
	StateAddAccount   state.State = "add_account"
)

// Scratch data keys.
const (
	KeyLine         = "line_id"
	KeyOperator     = "operator_id"
	KeyOrder        = "order_id"
	KeyBundle       = "bundle_id"
	KeyProduct      = "product_id"
	KeyPage         = "page"
	KeyIdleReturn   = "idle_return"
	KeyIdleType     = "idle_type"
	KeyOperatorName = "operator_name"
	KeyOperatorRate = "operator_rate"
	// KeyMessageID is owned by the transport: the id of the last prompt.
	KeyMessageID = "message_id"
)

// Action tags carried by buttons.
const (
	TagLine          = "line"
	TagOperator      = "operator"
	TagPage          = "page"
	TagStartShift    = "start_shift"
	TagOrder         = "order"
	TagBundle        = "bundle"
	TagProduct       = "product"
	TagBatch         = "batch"
	TagInputCount    = "input_count"
	TagFinishProduct = "finish_product"
	TagFinishBundle  = "finish_bundle"
	TagFinishShift   = "finish_shift"
	TagIdle          = "idle"
	TagIdleType      = "idle_type"
	TagIdleReason    = "idle_reason"
	TagFinishIdle    = "finish_idle"
	TagReturn        = "return"
	TagAddOperator   = "add_operator"
	TagAddAccount    = "add_account"
)

// Tags lists every action tag the engine understands.
func Tags() []string {
	return []string{
		TagLine, TagOperator, TagPage, TagStartShift, TagOrder, TagBundle, TagProduct,
		TagBatch, TagInputCount, TagFinishProduct, TagFinishBundle, TagFinishShift,
		TagIdle, TagIdleType, TagIdleReason, TagFinishIdle, TagReturn,
		TagAddOperator, TagAddAccount,
	}
}

// Action is a button press: a tag plus the typed field that tag needs.
type Action struct {
	Tag      string
	ID       string
	Page     int
	Quantity float64
	IdleType production.IdleType
	Reason   production.IdleReason
}

// ReasonSep separates idle type and reason in an idle_reason payload.
const ReasonSep = ":"

// Payload renders the typed field of the action for the transport.
func (a Action) Payload() string {
	switch a.Tag {
	case TagPage:
		return strconv.Itoa(a.Page)
	case TagBatch:
		return strconv.FormatFloat(a.Quantity, 'f', -1, 64)
	case TagIdleType:
		return string(a.IdleType)
	case TagIdleReason:
		return string(a.IdleType) + ReasonSep + string(a.Reason)
	default:
		return a.ID
	}
}

// Event is one inbound user action: TextEvent, ActionEvent or ContactEvent.
type Event interface {
	isEvent()
}

// TextEvent is free text typed by the user.
type TextEvent struct {
	Text string
}

// ActionEvent is a button press.
type ActionEvent struct {
	Action Action
}

// ContactEvent is a shared phone contact. UserID is the contact's owner.
type ContactEvent struct {
	Phone  string
	UserID int64
}

func (TextEvent) isEvent()    {}
func (ActionEvent) isEvent()  {}
func (ContactEvent) isEvent() {}

// Button is a labelled action.
type Button struct {
	Label  string
	Action Action
}

// Message is rendered text plus optional buttons.
type Message struct {
	Text    string
	Buttons [][]Button
	// RequestContact, when set, is the label of a share-contact reply button.
	RequestContact string
	RemoveKeyboard bool
}

// Request is the input of one engine step.
type Request struct {
	UserID  int64
	Lang    string
	Session state.Session
	Event   Event
}

// Response is the outcome of one engine step. The last message is the prompt
// of the new state. Handled is false when the event did not match the
// current state and was ignored.
type Response struct {
	Session  state.Session
	Notices  []string
	Messages []Message
	Handled  bool
}

// Prompt returns the message the user answers next.
func (r Response) Prompt() (Message, bool) {
	if len(r.Messages) == 0 {
		return Message{}, false
	}
	return r.Messages[len(r.Messages)-1], true
}

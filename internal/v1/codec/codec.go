// Package codec parses and formats the line-oriented signaling protocol.
// Every frame is a single text line of the form "VERB[ PAYLOAD]". Parsing
// and formatting are pure; nothing here touches connections or rooms.
package codec

import (
	"errors"
	"strings"

	"github.com/duocall/signaling/internal/v1/types"
)

// Verb is the tag of a wire message.
type Verb string

const (
	VerbWaitingForConnectionCode Verb = "WAITING_FOR_CONNECTION_CODE"
	VerbState                    Verb = "STATE"
	VerbConnection               Verb = "CONNECTION"
	VerbConnectionResponse       Verb = "CONNECTION_RESPONSE"
	VerbStartCall                Verb = "START_CALL"
	VerbOffer                    Verb = "OFFER"
	VerbAnswer                   Verb = "ANSWER"
	VerbICE                      Verb = "ICE"
)

// ErrMalformed is returned for lines whose first token is not a known verb.
var ErrMalformed = errors.New("malformed signaling message")

// Message is one parsed inbound frame. Raw preserves the line exactly as
// received so OFFER/ANSWER/ICE can be relayed verbatim.
type Message struct {
	Verb    Verb
	Payload string
	Raw     string
}

// knownVerbs are the verbs accepted from the wire.
var knownVerbs = map[Verb]struct{}{
	VerbWaitingForConnectionCode: {},
	VerbState:                    {},
	VerbConnection:               {},
	VerbConnectionResponse:       {},
	VerbStartCall:                {},
	VerbOffer:                    {},
	VerbAnswer:                   {},
	VerbICE:                      {},
}

// Parse splits the first whitespace-delimited token of line, compares it
// upper-cased against the verb set, and returns the remainder (leading
// whitespace stripped) as the payload. Unknown verbs and empty lines yield
// ErrMalformed; the payload is otherwise untouched.
func Parse(line string) (Message, error) {
	trimmed := strings.TrimLeft(line, " \t")
	if trimmed == "" {
		return Message{Raw: line}, ErrMalformed
	}

	token := trimmed
	payload := ""
	if i := strings.IndexAny(trimmed, " \t"); i >= 0 {
		token = trimmed[:i]
		payload = strings.TrimLeft(trimmed[i:], " \t")
	}

	verb := Verb(strings.ToUpper(token))
	if _, ok := knownVerbs[verb]; !ok {
		return Message{Raw: line}, ErrMalformed
	}

	return Message{Verb: verb, Payload: payload, Raw: line}, nil
}

// Format renders an outbound message as "VERB PAYLOAD". Verbs with an empty
// payload are rendered without a trailing space; parsers accept both forms.
func Format(verb Verb, payload string) string {
	if payload == "" {
		return string(verb)
	}
	return string(verb) + " " + payload
}

// FormatState renders a state broadcast line.
func FormatState(state types.RoomState) string {
	return Format(VerbState, string(state))
}

// --- CONNECTION_RESPONSE variants ---

// ConnectionResponseKind tags the join-result variants.
type ConnectionResponseKind int

const (
	// ConnectionAccepted carries the code of the room the peer joined.
	ConnectionAccepted ConnectionResponseKind = iota
	// ConnectionRoomFull rejects the join; the room already has two members.
	ConnectionRoomFull
)

// ConnectionResponse is the in-process representation of the join result.
// The wire format stays string-based; only call sites see the tagged form.
type ConnectionResponse struct {
	Kind ConnectionResponseKind
	Code types.RoomCodeType
}

// Connected builds the accepted variant for the given room code.
func Connected(code types.RoomCodeType) ConnectionResponse {
	return ConnectionResponse{Kind: ConnectionAccepted, Code: code}
}

// RoomFull builds the rejection variant.
func RoomFull() ConnectionResponse {
	return ConnectionResponse{Kind: ConnectionRoomFull}
}

// Line renders the response as a wire line.
func (r ConnectionResponse) Line() string {
	switch r.Kind {
	case ConnectionAccepted:
		return Format(VerbConnectionResponse, "CONNECTED "+string(r.Code))
	default:
		return Format(VerbConnectionResponse, "ROOM_FULL")
	}
}

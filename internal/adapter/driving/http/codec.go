package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Wyydra/rendezvous/internal/core/domain"
)

var (
	errUnknownEvent = errors.New("unknown event")
	errMissingRoom  = errors.New("missing roomId")
	errNotAnObject  = errors.New("data must be a JSON object")
)

// inboundEnvelope is one client frame. ID is an optional correlation value
// echoed back on the ack; it is kept raw so numbers and strings both work.
type inboundEnvelope struct {
	Event string          `json:"event"`
	ID    json.RawMessage `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outboundEnvelope struct {
	Event string          `json:"event"`
	ID    json.RawMessage `json:"id,omitempty"`
	Data  any             `json:"data,omitempty"`
}

// decodeInbound turns a frame into one of the domain's request variants.
func decodeInbound(frame []byte) (domain.InboundEvent, json.RawMessage, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Event {
	case domain.EventCreateRoom:
		return domain.CreateRoomRequest{}, env.ID, nil

	case domain.EventJoinRoom, domain.EventLeaveRoom, domain.EventEndSession:
		roomID, err := decodeRoomID(env.Data)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", env.Event, err)
		}
		switch env.Event {
		case domain.EventJoinRoom:
			return domain.JoinRoomRequest{RoomID: roomID}, env.ID, nil
		case domain.EventLeaveRoom:
			return domain.LeaveRoomRequest{RoomID: roomID}, env.ID, nil
		default:
			return domain.EndSessionRequest{RoomID: roomID}, env.ID, nil
		}

	case domain.EventOffer, domain.EventAnswer, domain.EventICECandidate:
		req, err := decodeSignal(domain.SignalKind(env.Event), env.Data)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", env.Event, err)
		}
		return req, env.ID, nil

	default:
		return nil, nil, fmt.Errorf("%w %q", errUnknownEvent, env.Event)
	}
}

func decodeRoomID(data json.RawMessage) (string, error) {
	if !isObject(data) {
		return "", errNotAnObject
	}
	var body struct {
		RoomID *string `json:"roomId"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return "", err
	}
	if body.RoomID == nil || *body.RoomID == "" {
		return "", errMissingRoom
	}
	return *body.RoomID, nil
}

func decodeSignal(kind domain.SignalKind, data json.RawMessage) (domain.SignalRequest, error) {
	if !isObject(data) {
		return domain.SignalRequest{}, errNotAnObject
	}
	var body struct {
		Target *string `json:"target"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return domain.SignalRequest{}, fmt.Errorf("target: %w", err)
	}

	req := domain.SignalRequest{Kind: kind, Data: append(json.RawMessage(nil), data...)}
	if body.Target != nil {
		req.Target = domain.ConnectionID(*body.Target)
	}
	return req, nil
}

func isObject(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// encodeOutbound renders a notification. Relayed signals keep the sender's
// object and gain a "from" field.
func encodeOutbound(event domain.OutboundEvent) ([]byte, error) {
	if sig, ok := event.(domain.RelayedSignal); ok {
		data, err := withFrom(sig.Data, sig.From)
		if err != nil {
			return nil, err
		}
		return json.Marshal(outboundEnvelope{Event: sig.EventName(), Data: data})
	}
	return json.Marshal(outboundEnvelope{Event: event.EventName(), Data: event})
}

func withFrom(data json.RawMessage, from domain.ConnectionID) (json.RawMessage, error) {
	fields := make(map[string]json.RawMessage)
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("relay payload: %w", err)
		}
	}
	sender, err := json.Marshal(from)
	if err != nil {
		return nil, err
	}
	fields["from"] = sender
	return json.Marshal(fields)
}

func encodeReply(id json.RawMessage, reply domain.Reply) ([]byte, error) {
	return json.Marshal(outboundEnvelope{Event: domain.EventAck, ID: id, Data: reply})
}

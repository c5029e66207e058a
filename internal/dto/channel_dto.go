package dto

import (
	"github.com/goccy/go-json"

	"github.com/studio-parallax/maquette-api/internal/override"
)

// Message types understood on the display channel. Clients send set-model,
// clear-model and get-model; the server answers with model-update and error.
const (
	MessageSetModel    = "set-model"
	MessageClearModel  = "clear-model"
	MessageGetModel    = "get-model"
	MessageModelUpdate = "model-update"
	MessageError       = "error"
)

// ChannelMessage is the envelope for every frame on the display channel.
// Payload stays raw so inbound set-model bodies are normalized after type
// dispatch and outbound updates can serialize an explicit null.
type ChannelMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Message string          `json:"message,omitempty"`
}

// NewModelUpdate builds the frame that carries the current override state.
// A nil override serializes as "payload": null rather than omitting the key.
func NewModelUpdate(value *override.Override) (ChannelMessage, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return ChannelMessage{}, err
	}
	return ChannelMessage{Type: MessageModelUpdate, Payload: payload}, nil
}

// NewChannelError builds the frame sent back to a client whose message could
// not be handled.
func NewChannelError(message string) ChannelMessage {
	return ChannelMessage{Type: MessageError, Message: message}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/studio-parallax/maquette-api/internal/dto"
	"github.com/studio-parallax/maquette-api/internal/observability"
	"github.com/studio-parallax/maquette-api/internal/override"
)

// ErrEmptyUpdate rejects normalized updates that carry no fields and are not
// a clear request.
var ErrEmptyUpdate = errors.New("update carries no fields")

// OverrideService owns the shared override record and keeps every display
// in sync with it. Both transports funnel into Update and Clear; accepted
// changes fan out to all open display connections.
type OverrideService interface {
	Current() *override.Override
	Update(ctx context.Context, raw map[string]any) (*override.Override, error)
	Clear(ctx context.Context) *override.Override
	ServeConnection(conn ChannelConn)
	CloseConnections()
	ClientCount() int
}

type overrideService struct {
	// mu spans the state transition and the hub enqueue so displays observe
	// broadcasts in exactly the order updates were accepted.
	mu     sync.RWMutex
	state  *override.State
	hub    *displayHub
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewOverrideService creates the service with an unset override.
func NewOverrideService(logger zerolog.Logger) OverrideService {
	return &overrideService{
		state:  override.NewState(),
		hub:    newDisplayHub(logger),
		logger: logger.With().Str("component", "override_service").Logger(),
		tracer: otel.Tracer("github.com/studio-parallax/maquette-api/internal/service/override"),
	}
}

// Current returns the override as the displays currently see it.
func (s *overrideService) Current() *override.Override {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Current()
}

// Update normalizes raw fields, applies them to the state machine and
// broadcasts the result. A clear shorthand inside the payload behaves like
// Clear, including the no-broadcast rule when already cleared.
func (s *overrideService) Update(ctx context.Context, raw map[string]any) (*override.Override, error) {
	fields, err := dto.NormalizeOverride(raw)
	if err != nil {
		return nil, err
	}

	if fields.Empty() {
		return nil, ErrEmptyUpdate
	}

	action := "update"
	if fields.IsClearRequest() {
		action = "clear"
	}

	_, span := s.tracer.Start(ctx, "override.update",
		trace.WithAttributes(attribute.String("override.action", action)))
	defer span.End()

	s.mu.Lock()
	value, changed := s.state.Apply(fields)
	if changed {
		s.broadcastLocked(value)
	}
	s.mu.Unlock()

	if changed {
		observability.OverrideTransitions().WithLabelValues(action).Inc()
		s.logger.Info().Str("action", action).Msg("override updated")
	}

	return value, nil
}

// Clear resets the override. Clearing twice is idempotent: the second call
// returns the canonical shape without a broadcast.
func (s *overrideService) Clear(ctx context.Context) *override.Override {
	_, span := s.tracer.Start(ctx, "override.clear")
	defer span.End()

	s.mu.Lock()
	value, changed := s.state.Clear()
	if changed {
		s.broadcastLocked(value)
	}
	s.mu.Unlock()

	if changed {
		observability.OverrideTransitions().WithLabelValues("clear").Inc()
		s.logger.Info().Msg("override cleared")
	}

	return value
}

// ServeConnection registers the connection, pushes the current state and
// blocks reading frames until the peer goes away. The initial push happens
// under the state lock so the client cannot miss an update racing its
// registration.
func (s *overrideService) ServeConnection(conn ChannelConn) {
	client := &displayClient{
		id:      uuid.NewString(),
		conn:    conn,
		send:    make(chan []byte, channelSendBufferSize),
		service: s,
		closed:  make(chan struct{}),
	}

	s.mu.Lock()
	s.hub.register(client)
	if frame, err := encodeModelUpdate(s.state.Current()); err == nil {
		client.enqueue(frame, s.logger)
	} else {
		s.logger.Error().Err(err).Str("client_id", client.id).Msg("failed to encode initial state")
	}
	s.mu.Unlock()

	go client.writer()
	client.reader()
}

// CloseConnections force-closes every display connection; used during
// shutdown after the listener stopped accepting new ones.
func (s *overrideService) CloseConnections() {
	s.hub.closeAll()
}

// ClientCount reports the number of registered display connections.
func (s *overrideService) ClientCount() int {
	return s.hub.clientCount()
}

// broadcastLocked encodes the state once and fans the same bytes out to all
// clients. Callers hold s.mu.
func (s *overrideService) broadcastLocked(value *override.Override) {
	frame, err := encodeModelUpdate(value)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode model update")
		return
	}

	s.hub.broadcast(frame)
	observability.ChannelBroadcasts().Inc()
}

// handleFrame dispatches one inbound channel message. Failures answer the
// sending connection only and never tear it down.
func (s *overrideService) handleFrame(client *displayClient, data []byte) {
	var msg dto.ChannelMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(client, "invalid message: expected a JSON object with a type field")
		return
	}

	switch msg.Type {
	case dto.MessageSetModel:
		s.handleSetModel(client, msg.Payload)
	case dto.MessageClearModel:
		s.Clear(context.Background())
	case dto.MessageGetModel:
		s.sendCurrent(client)
	default:
		s.sendError(client, fmt.Sprintf("unknown message type %q", msg.Type))
	}
}

func (s *overrideService) handleSetModel(client *displayClient, payload json.RawMessage) {
	raw := map[string]any{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &raw); err != nil {
			s.sendError(client, "invalid payload: expected an object of override fields")
			return
		}
	}

	if _, err := s.Update(context.Background(), raw); err != nil {
		s.sendError(client, err.Error())
	}
}

// sendCurrent answers a get-model request, scoped to the requester only.
func (s *overrideService) sendCurrent(client *displayClient) {
	s.mu.RLock()
	frame, err := encodeModelUpdate(s.state.Current())
	s.mu.RUnlock()

	if err != nil {
		s.logger.Error().Err(err).Str("client_id", client.id).Msg("failed to encode current state")
		return
	}

	client.enqueue(frame, s.logger)
}

func (s *overrideService) sendError(client *displayClient, message string) {
	frame, err := json.Marshal(dto.NewChannelError(message))
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode channel error")
		return
	}

	s.logger.Warn().Str("client_id", client.id).Str("reason", message).Msg("rejected channel message")
	client.enqueue(frame, s.logger)
}

func encodeModelUpdate(value *override.Override) ([]byte, error) {
	msg, err := dto.NewModelUpdate(value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/studio-parallax/maquette-api/internal/dto"
)

func TestServeConnectionPushesCurrentState(t *testing.T) {
	svc := NewOverrideService(testLogger())

	conn := newFakeConn()
	initial := startDisplay(t, svc, conn)
	require.Equal(t, dto.MessageModelUpdate, initial.Type)
	require.Equal(t, "null", string(initial.Payload))

	_, err := svc.Update(context.Background(), map[string]any{"modelPath": "models/atrium.glb"})
	require.NoError(t, err)
	nextMessage(t, conn)

	late := newFakeConn()
	msg := startDisplay(t, svc, late)
	value := decodeModelPayload(t, msg)
	require.Equal(t, "models/atrium.glb", *value.ModelPath)
	require.True(t, *value.Visible)
}

func TestUpdateFansOutIdenticalFrames(t *testing.T) {
	svc := NewOverrideService(testLogger())
	conns := []*fakeConn{newFakeConn(), newFakeConn(), newFakeConn()}
	for _, conn := range conns {
		startDisplay(t, svc, conn)
	}

	_, err := svc.Update(context.Background(), map[string]any{"modelPath": "models/tower.glb", "scale": 1.5})
	require.NoError(t, err)

	first := nextRawFrame(t, conns[0])
	for _, conn := range conns[1:] {
		require.Equal(t, first, nextRawFrame(t, conn))
	}

	var msg dto.ChannelMessage
	require.NoError(t, json.Unmarshal(first, &msg))
	value := decodeModelPayload(t, msg)
	require.Equal(t, "models/tower.glb", *value.ModelPath)
	require.Equal(t, 1.5, *value.Scale)
	require.True(t, *value.Visible)
}

func TestBroadcastsArriveInUpdateOrder(t *testing.T) {
	svc := NewOverrideService(testLogger())
	conn := newFakeConn()
	startDisplay(t, svc, conn)

	for i := 1; i <= 5; i++ {
		_, err := svc.Update(context.Background(), map[string]any{"scale": float64(i)})
		require.NoError(t, err)
	}

	for i := 1; i <= 5; i++ {
		value := decodeModelPayload(t, nextMessage(t, conn))
		require.Equal(t, float64(i), *value.Scale)
	}
}

func TestGetModelAnswersRequesterOnly(t *testing.T) {
	svc := NewOverrideService(testLogger())
	asker := newFakeConn()
	other := newFakeConn()
	startDisplay(t, svc, asker)
	startDisplay(t, svc, other)

	asker.push(t, `{"type":"get-model"}`)

	msg := nextMessage(t, asker)
	require.Equal(t, dto.MessageModelUpdate, msg.Type)
	require.Equal(t, "null", string(msg.Payload))
	requireNoFrame(t, other)
}

func TestSetModelFrameBroadcasts(t *testing.T) {
	svc := NewOverrideService(testLogger())
	sender := newFakeConn()
	viewer := newFakeConn()
	startDisplay(t, svc, sender)
	startDisplay(t, svc, viewer)

	sender.push(t, `{"type":"set-model","payload":{"modelPath":"models/pavilion.glb","rotation":90}}`)

	for _, conn := range []*fakeConn{sender, viewer} {
		value := decodeModelPayload(t, nextMessage(t, conn))
		require.Equal(t, "models/pavilion.glb", *value.ModelPath)
		require.Equal(t, float64(90), *value.Rotation)
		require.True(t, *value.Visible)
	}

	require.Equal(t, "models/pavilion.glb", *svc.Current().ModelPath)
}

func TestClearModelFrameResetsState(t *testing.T) {
	svc := NewOverrideService(testLogger())
	conn := newFakeConn()
	startDisplay(t, svc, conn)

	_, err := svc.Update(context.Background(), map[string]any{"modelPath": "models/pavilion.glb"})
	require.NoError(t, err)
	nextMessage(t, conn)

	conn.push(t, `{"type":"clear-model"}`)
	value := decodeModelPayload(t, nextMessage(t, conn))
	require.True(t, value.IsCleared())
	require.Nil(t, value.ModelPath)
	require.True(t, svc.Current().IsCleared())
}

func TestClearBroadcastsOnce(t *testing.T) {
	svc := NewOverrideService(testLogger())
	conn := newFakeConn()
	startDisplay(t, svc, conn)

	_, err := svc.Update(context.Background(), map[string]any{"modelPath": "models/atrium.glb"})
	require.NoError(t, err)
	nextMessage(t, conn)

	value := svc.Clear(context.Background())
	require.True(t, value.IsCleared())
	require.False(t, *value.Visible)

	cleared := decodeModelPayload(t, nextMessage(t, conn))
	require.True(t, cleared.IsCleared())
	require.Nil(t, cleared.ModelPath)

	svc.Clear(context.Background())
	requireNoFrame(t, conn)
}

func TestUpdateRequiresFields(t *testing.T) {
	svc := NewOverrideService(testLogger())

	_, err := svc.Update(context.Background(), map[string]any{})
	require.ErrorIs(t, err, ErrEmptyUpdate)

	_, err = svc.Update(context.Background(), map[string]any{"cleared": false})
	require.ErrorIs(t, err, ErrEmptyUpdate)

	_, err = svc.Update(context.Background(), map[string]any{"scale": "huge"})
	require.ErrorIs(t, err, dto.ErrInvalidPayload)
}

func TestChannelRejectsMalformedFrames(t *testing.T) {
	svc := NewOverrideService(testLogger())
	conn := newFakeConn()
	startDisplay(t, svc, conn)

	conn.push(t, `not json`)
	msg := nextMessage(t, conn)
	require.Equal(t, dto.MessageError, msg.Type)
	require.Contains(t, msg.Message, "invalid message")

	conn.push(t, `{"type":"resize"}`)
	msg = nextMessage(t, conn)
	require.Equal(t, dto.MessageError, msg.Type)
	require.Contains(t, msg.Message, "resize")

	conn.push(t, `{"type":"set-model","payload":"nope"}`)
	msg = nextMessage(t, conn)
	require.Equal(t, dto.MessageError, msg.Type)
	require.Contains(t, msg.Message, "invalid payload")

	conn.push(t, `{"type":"set-model","payload":{"scale":0}}`)
	msg = nextMessage(t, conn)
	require.Equal(t, dto.MessageError, msg.Type)
	require.Contains(t, msg.Message, "scale")
}

func TestBroadcastSurvivesDeadConnection(t *testing.T) {
	svc := NewOverrideService(testLogger())
	healthy := newFakeConn()
	flaky := newFakeConn()
	startDisplay(t, svc, healthy)
	startDisplay(t, svc, flaky)

	flaky.failWrites.Store(true)

	_, err := svc.Update(context.Background(), map[string]any{"modelPath": "models/tower.glb"})
	require.NoError(t, err)

	value := decodeModelPayload(t, nextMessage(t, healthy))
	require.Equal(t, "models/tower.glb", *value.ModelPath)

	require.Eventually(t, func() bool { return svc.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestCloseConnectionsDropsAllClients(t *testing.T) {
	svc := NewOverrideService(testLogger())
	first := newFakeConn()
	second := newFakeConn()
	startDisplay(t, svc, first)
	startDisplay(t, svc, second)
	require.Equal(t, 2, svc.ClientCount())

	svc.CloseConnections()

	require.Equal(t, 0, svc.ClientCount())
	require.True(t, first.isClosed())
	require.True(t, second.isClosed())
}

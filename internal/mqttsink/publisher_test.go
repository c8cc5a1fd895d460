package mqttsink

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/natya/internal/engine"
	"github.com/ayusman/natya/internal/features"
	"github.com/ayusman/natya/internal/gesture"
	"github.com/ayusman/natya/internal/testutil"
)

func newPublisher(t *testing.T, fake *testutil.FakeMQTTClient) *Publisher {
	t.Helper()
	p, err := New(Options{
		Broker:    "tcp://broker:1883",
		Topic:     "natya/predictions",
		ClientID:  "natya-test",
		NewClient: func(*mqtt.ClientOptions) mqtt.Client { return fake },
	})
	require.NoError(t, err)
	return p
}

func TestPublisher_PublishesJSON(t *testing.T) {
	fake := testutil.NewFakeMQTTClient()
	p := newPublisher(t, fake)

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p.Publish(engine.Output{Kind: engine.KindPrediction, Label: "jump", At: at})
	p.Publish(engine.Output{Kind: engine.KindRecorded, Label: "jump", Vector: features.Vector{1}, At: at})
	p.Publish(engine.Output{Kind: engine.KindCondition, Err: gesture.ErrModelNotReady, At: at})
	p.Close()

	msgs := fake.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "natya/predictions", msgs[0].Topic)
	assert.False(t, msgs[0].Retained)

	var first map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &first))
	assert.Equal(t, "prediction", first["kind"])
	assert.Equal(t, "jump", first["label"])

	var second map[string]any
	require.NoError(t, json.Unmarshal(msgs[1].Payload, &second))
	assert.Equal(t, "condition", second["kind"])
	assert.Equal(t, "ModelNotReady", second["condition"])

	assert.False(t, fake.IsConnected())
	assert.Zero(t, p.Dropped())
}

func TestPublisher_ConnectFailure(t *testing.T) {
	fake := testutil.NewFakeMQTTClient()
	fake.FailConnect(errors.New("refused"))

	_, err := New(Options{
		Broker:    "tcp://broker:1883",
		Topic:     "natya/predictions",
		NewClient: func(*mqtt.ClientOptions) mqtt.Client { return fake },
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
}

func TestPublisher_RequiresTopic(t *testing.T) {
	_, err := New(Options{Broker: "tcp://broker:1883"})
	require.Error(t, err)
}

func TestPublisher_CloseIsIdempotent(t *testing.T) {
	p := newPublisher(t, testutil.NewFakeMQTTClient())
	p.Close()
	p.Close()
}

func TestPublisher_AsEngineSink(t *testing.T) {
	fake := testutil.NewFakeMQTTClient()
	p := newPublisher(t, fake)

	e := engine.New(engine.Options{Sink: p})
	require.NoError(t, e.AddLabel("jump"))
	require.NoError(t, e.AddLabel("run"))
	require.NoError(t, e.SetMode(engine.Training))

	for _, tc := range []struct {
		label string
		v     features.Vector
	}{
		{"jump", features.Vector{0, 0, 0}},
		{"run", features.Vector{0, 0.25, 0}},
	} {
		require.NoError(t, e.SelectLabel(tc.label))
		require.NoError(t, e.SetRecording(true))
		for i := 0; i < 3; i++ {
			e.Ingest(tc.v)
		}
	}
	require.NoError(t, e.SetRecording(false))
	e.Flush()
	e.Close()
	p.Close()

	msgs := fake.Messages()
	require.NotEmpty(t, msgs)
	var last map[string]any
	require.NoError(t, json.Unmarshal(msgs[len(msgs)-1].Payload, &last))
	assert.Equal(t, "refit", last["kind"])
}

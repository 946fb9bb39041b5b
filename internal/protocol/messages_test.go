package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClientReveal(t *testing.T) {
	frame := []byte(`{"type":"REVEAL","match_id":"demo-a-b","turn":3,"move_":"R","nonce":"n3"}`)

	msg, err := ParseClient(frame)
	require.NoError(t, err)

	reveal, ok := msg.(*Reveal)
	require.True(t, ok)
	assert.Equal(t, "demo-a-b", reveal.MatchID)
	assert.Equal(t, 3, reveal.Turn)
	assert.Equal(t, "R", reveal.Move)
	assert.Equal(t, "n3", reveal.Nonce)
}

func TestParseClientHeartbeat(t *testing.T) {
	msg, err := ParseClient([]byte(`{"type":"HEARTBEAT"}`))
	require.NoError(t, err)
	_, ok := msg.(*Heartbeat)
	assert.True(t, ok)
}

func TestParseClientRejectsUnknownType(t *testing.T) {
	_, err := ParseClient([]byte(`{"type":"TELEPORT","match_id":"m"}`))
	assert.Error(t, err)
}

func TestParseClientRejectsMalformedJSON(t *testing.T) {
	_, err := ParseClient([]byte(`{"type":`))
	assert.Error(t, err)
}

func TestServerFramesCarryTypeTag(t *testing.T) {
	raw := MustMarshal(TurnStart{
		Type:            TypeTurnStart,
		MatchID:         "demo-a-b",
		Turn:            1,
		DeadlineMsEpoch: 1000,
		NowMsEpoch:      900,
	})

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "TURN_START", decoded["type"])
	assert.Equal(t, float64(1), decoded["turn"])
	assert.Contains(t, decoded, "deadline_ms_epoch")
	assert.Contains(t, decoded, "now_ms_epoch")
}

func TestErrorFrameShape(t *testing.T) {
	raw := MustMarshal(NewError(CodeOK, "pong"))

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "ERROR", decoded["type"])
	assert.Equal(t, "OK", decoded["code"])
	assert.Equal(t, "pong", decoded["msg"])
}

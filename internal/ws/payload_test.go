package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayloadObject(t *testing.T) {
	var p conversationPayload
	err := decodePayload(json.RawMessage(`{"conversationId":"c1"}`), &p, "conversationId")
	require.NoError(t, err)
	assert.Equal(t, "c1", p.ConversationID)
}

func TestDecodePayloadJSONEncodedString(t *testing.T) {
	// A client double-encoding the object: the data field is a JSON string
	// whose contents are the object.
	raw, err := json.Marshal(`{"conversationId":"c1"}`)
	require.NoError(t, err)

	var p conversationPayload
	require.NoError(t, decodePayload(raw, &p, "conversationId"))
	assert.Equal(t, "c1", p.ConversationID)
}

func TestDecodePayloadBareStringFallback(t *testing.T) {
	var p conversationPayload
	err := decodePayload(json.RawMessage(`"c1"`), &p, "conversationId")
	require.NoError(t, err)
	assert.Equal(t, "c1", p.ConversationID)
}

func TestDecodePayloadBareStringWithoutFallbackRejected(t *testing.T) {
	var p sendMessagePayload
	err := decodePayload(json.RawMessage(`"hello"`), &p, "")
	require.ErrorIs(t, err, errInvalidPayload)
}

func TestDecodePayloadGarbageRejected(t *testing.T) {
	var p conversationPayload
	err := decodePayload(json.RawMessage(`12{`), &p, "conversationId")
	require.ErrorIs(t, err, errInvalidPayload)

	err = decodePayload(nil, &p, "conversationId")
	require.ErrorIs(t, err, errInvalidPayload)
}

func TestDecodePayloadGroupFields(t *testing.T) {
	var p createGroupPayload
	err := decodePayload(json.RawMessage(`{"recipientIds":["b","c"],"name":"squad"}`), &p, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, p.RecipientIDs)
	assert.Equal(t, "squad", p.Name)
}

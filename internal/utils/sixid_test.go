package utils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestSixID_StringRoundTrip(t *testing.T) {
	id := SixID{1, 2, 3, 4, 5, 6}
	s := id.String()
	assert.Len(t, s, 10)

	parsed, err := ParseSixID(s)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	lower, err := ParseSixID(string([]byte{s[0] | 0x20, s[1], s[2], s[3], s[4], s[5], s[6], s[7], s[8], s[9]}))
	require.NoError(t, err)
	assert.Equal(t, id, lower)
}

func TestParseSixID_Invalid(t *testing.T) {
	_, err := ParseSixID("short")
	assert.Error(t, err)

	_, err = ParseSixID("UUUUUUUUUU")
	assert.Error(t, err)

	empty, err := ParseSixID("")
	require.NoError(t, err)
	assert.True(t, empty.IsZero())
}

func TestSixID_BSONDocument(t *testing.T) {
	type doc struct {
		ID    SixID  `bson:"_id"`
		Other *SixID `bson:"other"`
	}
	in := doc{ID: SixID{9, 8, 7, 6, 5, 4}}

	raw, err := bson.Marshal(in)
	require.NoError(t, err)

	binVal := bson.Raw(raw).Lookup("_id")
	subtype, data, ok := binVal.BinaryOK()
	require.True(t, ok)
	assert.Equal(t, byte(0x80), subtype)
	assert.Equal(t, in.ID[:], data)

	var out doc
	require.NoError(t, bson.Unmarshal(raw, &out))
	assert.Equal(t, in.ID, out.ID)
	assert.Nil(t, out.Other)
}

func TestSixID_JSON(t *testing.T) {
	id := NewSixID()
	b, err := json.Marshal(id)
	require.NoError(t, err)

	var back SixID
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, id, back)
}

func TestNewSixID_Hook(t *testing.T) {
	orig := NewSixIDHook
	defer func() { NewSixIDHook = orig }()

	want := SixID{0, 0, 0, 0, 0, 7}
	NewSixIDHook = func() (SixID, bool) { return want, true }
	assert.Equal(t, want, NewSixID())
	assert.Equal(t, want.String(), NewConfirmationCode())
}

package policyrpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestEncodeDecode(t *testing.T) {
	type payload struct {
		ProjectID string  `json:"project_id"`
		Amount    string  `json:"amount"`
		Max       *string `json:"max"`
		Flag      bool    `json:"flag"`
	}

	s, err := Encode(payload{ProjectID: "p1", Amount: "1000.50", Flag: true})
	require.NoError(t, err)
	assert.Equal(t, "p1", s.Fields["project_id"].GetStringValue())
	_, isNull := s.Fields["max"].GetKind().(*structpb.Value_NullValue)
	assert.True(t, isNull)

	var out payload
	require.NoError(t, Decode(s, &out))
	assert.Equal(t, payload{ProjectID: "p1", Amount: "1000.50", Flag: true}, out)
}

func TestEncodeRejectsNonObjects(t *testing.T) {
	_, err := Encode([]string{"a"})
	assert.Error(t, err)
}

func TestDecodeNil(t *testing.T) {
	var out map[string]any
	require.NoError(t, Decode(nil, &out))
	assert.Empty(t, out)
}

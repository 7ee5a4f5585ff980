package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayload(t *testing.T) {
	payload := []byte(`{"Date":"2024/05/01","Time":"10:05 AM","Temperature_C":18.5,"Wind":"NE","UV":2,"Gust_kmh":null}`)

	row, err := DecodePayload(7, payload)
	require.NoError(t, err)

	assert.Equal(t, 7, row.Line)
	assert.Equal(t, "2024/05/01", row.Columns[ColDate])
	assert.Equal(t, "18.5", row.Columns[ColTemperature])
	assert.Equal(t, "2", row.Columns[ColUV])
	assert.Equal(t, "NE", row.Columns[ColWindDirection])
	_, ok := row.Columns[ColWindGust]
	assert.False(t, ok)
}

func TestDecodePayload_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: `not json`},
		{name: "array", payload: `[1,2,3]`},
		{name: "nested object", payload: `{"Date":{"y":2024}}`},
		{name: "boolean", payload: `{"UV":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePayload(1, []byte(tt.payload))
			require.Error(t, err)
		})
	}
}

package utils_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jrsteele09/go-rag-client/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestTimestampUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"rfc3339", `"2024-05-01T12:30:00Z"`, time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)},
		{"python isoformat", `"2024-05-01T12:30:00.250000"`, time.Date(2024, 5, 1, 12, 30, 0, 250000000, time.UTC)},
		{"date only", `"2024-05-01"`, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"null", `null`, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts utils.Timestamp
			require.NoError(t, json.Unmarshal([]byte(tt.in), &ts))
			require.True(t, tt.want.Equal(ts.Time), "got %v", ts.Time)
		})
	}

	var ts utils.Timestamp
	require.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
	require.Error(t, json.Unmarshal([]byte(`12`), &ts))
}

func TestTimestampMarshal(t *testing.T) {
	raw, err := json.Marshal(utils.NewTimestamp(time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)))
	require.NoError(t, err)
	require.Equal(t, `"2024-05-01T12:30:00Z"`, string(raw))

	raw, err = json.Marshal(utils.Timestamp{})
	require.NoError(t, err)
	require.Equal(t, `null`, string(raw))
}

func TestPointerHelpers(t *testing.T) {
	require.Equal(t, 0, utils.Value[int](nil))
	require.Equal(t, 5, utils.Value(utils.Ptr(5)))
}

package feeds

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mub05-dev/monitor-electoral/internal/domain"
	"github.com/mub05-dev/monitor-electoral/internal/ports"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestFileSource_FetchDistrict(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "6010.json", `{
  "districtId": "6010",
  "validVotes": 400,
  "records": [
    {"id": "1", "name": "Ana", "party": "PS", "pact": "A", "gender": "M", "votes": 300},
    {"id": "2", "name": "Beto", "party": "RN", "pact": "B", "gender": "H", "votes": 100}
  ]
}`)
	writeFile(t, dir, "6001.json", `{"records": [{"id": "1", "pact": "A", "votes": 5}]}`)
	writeFile(t, dir, "6002.json", `{not json`)
	writeFile(t, dir, "6003.json", `{"districtId": "6004", "records": []}`)
	writeFile(t, dir, "6005.json", `{"records": [{"id": "1", "pact": "A", "votes": -5}]}`)

	src := NewFileSource(dir, testNormalizer())
	assert.Equal(t, FileSourceName, src.Name())

	t.Run("reads and normalizes a district by number", func(t *testing.T) {
		got, err := src.FetchDistrict(context.Background(), "10")
		require.NoError(t, err)
		assert.Equal(t, "6010", got.DistrictID)
		assert.Equal(t, 8, got.Seats)
		assert.Len(t, got.Candidates, 2)
		assert.Equal(t, 75.0, got.Candidates[0].Percentage)
	})

	t.Run("district id defaults to the file name", func(t *testing.T) {
		got, err := src.FetchDistrict(context.Background(), "6001")
		require.NoError(t, err)
		assert.Equal(t, "6001", got.DistrictID)
	})

	tests := []struct {
		name     string
		district string
		want     error
	}{
		{name: "missing file", district: "6020", want: ports.ErrNotFound},
		{name: "malformed json", district: "6002", want: ports.ErrInvalidResponse},
		{name: "district mismatch", district: "6003", want: ports.ErrInvalidResponse},
		{name: "invalid records", district: "6005", want: domain.ErrInvalidDistrictResult},
		{name: "unknown district", district: "abc", want: domain.ErrUnknownDistrict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := src.FetchDistrict(context.Background(), tt.district)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var serr *ports.SourceError
			require.True(t, errors.As(err, &serr))
			assert.Equal(t, FileSourceName, serr.Source)
			assert.False(t, ports.IsRetryable(err))
		})
	}

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := src.FetchDistrict(ctx, "10")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

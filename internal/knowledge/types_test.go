package knowledge

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusActive.Valid())
	assert.True(t, StatusInactive.Valid())
	assert.False(t, Status("deleted").Valid())
	assert.False(t, Status("").Valid())
}

func TestNewCollectionID(t *testing.T) {
	id := NewCollectionID()

	uuidPart, millisPart, ok := strings.Cut(id, "_")
	require.True(t, ok, "id %q must contain an underscore", id)

	_, err := uuid.Parse(uuidPart)
	require.NoError(t, err, "prefix of %q must be a UUID", id)

	millis, err := strconv.ParseInt(millisPart, 10, 64)
	require.NoError(t, err)
	now := time.Now().UnixMilli()
	assert.InDelta(t, now, millis, 5000, "suffix must be a recent unix-millis timestamp")
}

func TestNewCollectionIDUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for range 100 {
		id := NewCollectionID()
		_, dup := seen[id]
		require.False(t, dup, "duplicate collection id %q", id)
		seen[id] = struct{}{}
	}
}

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "lowercases", input: "Hello World", want: "hello world"},
		{name: "strips newlines", input: "line one\nline two", want: "line oneline two"},
		{name: "strips carriage returns", input: "a\r\nb", want: "ab"},
		{name: "empty", input: "", want: ""},
		{name: "combined", input: "SELECT\nThe Best Match\r\n", want: "selectthe best match"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeQuery(tt.input))
		})
	}
}

package autogen_test

import (
	"errors"
	"testing"
	"time"

	"github.com/acksell/keyforge/dynamodb/autogen"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUID(t *testing.T) {
	v, err := autogen.UUID("id").Generate()
	require.NoError(t, err)
	id, err := uuid.Parse(v.(string))
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), id.Version())
}

func TestNow(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	d := autogen.Now("createdAt", clock)

	v, err := d.Generate()
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02T03:04:05Z", v)

	clock.Advance(time.Second)
	v, err = d.Generate()
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02T03:04:06Z", v)
}

func TestFromKind(t *testing.T) {
	clock := clockwork.NewFakeClock()
	for _, kind := range []string{autogen.KindUUID, autogen.KindNow, autogen.KindConst} {
		d, err := autogen.FromKind("attr", kind, "x", clock)
		require.NoError(t, err, kind)
		assert.Equal(t, "attr", d.Name)
	}

	d, err := autogen.FromKind("type", autogen.KindConst, "User", clock)
	require.NoError(t, err)
	v, err := d.Generate()
	require.NoError(t, err)
	assert.Equal(t, "User", v)

	_, err = autogen.FromKind("attr", "sequence", "", clock)
	require.Error(t, err)
	_, err = autogen.FromKind("", autogen.KindUUID, "", clock)
	require.Error(t, err)
}

func TestApply(t *testing.T) {
	in := map[string]any{"id": "42", "type": "old"}
	out, err := autogen.Apply(in, []autogen.Descriptor{autogen.Const("type", "User")})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "42", "type": "User"}, out)
	assert.Equal(t, "old", in["type"], "input must not be modified")

	boom := errors.New("boom")
	_, err = autogen.Apply(in, []autogen.Descriptor{{Name: "x", Generate: func() (any, error) { return nil, boom }}})
	require.ErrorIs(t, err, boom)
}

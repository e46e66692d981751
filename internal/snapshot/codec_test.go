package snapshot

import (
	"bytes"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/kartracer/kartsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestRoundTrip(t *testing.T) {
	in := core.Snapshot{
		Position:    mgl64.Vec3{12.5, 1.0000001, -340.25},
		Orientation: mgl64.QuatRotate(0.7, mgl64.Vec3{0, 1, 0}),
		TurnRate:    -1.445,
		Drift:       true,
	}

	data, err := Marshal(in)
	require.NoError(t, err)

	out, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestWireOrder(t *testing.T) {
	in := core.Snapshot{
		Orientation: mgl64.Quat{W: 4, V: mgl64.Vec3{1, 2, 3}},
		Position:    mgl64.Vec3{5, 6, 7},
		TurnRate:    8,
		Drift:       true,
	}
	data, err := Marshal(in)
	require.NoError(t, err)

	var raw []any
	require.NoError(t, msgpack.Unmarshal(data, &raw))
	assert.Equal(t, []any{1.0, 2.0, 3.0, 4.0, 5.0, 6.0, 7.0, 8.0, true}, raw)
}

func TestReadStream(t *testing.T) {
	var buf bytes.Buffer
	a := core.Snapshot{Position: mgl64.Vec3{1, 2, 3}, Orientation: mgl64.QuatIdent()}
	b := core.Snapshot{Position: mgl64.Vec3{4, 5, 6}, Orientation: mgl64.QuatIdent(), Drift: true}
	require.NoError(t, Write(&buf, a))
	require.NoError(t, Write(&buf, b))

	dec := bytes.NewReader(buf.Bytes())
	gotA, err := Read(dec)
	require.NoError(t, err)
	assert.Equal(t, a, gotA)
}

func TestUnmarshal_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data func(t *testing.T) []byte
	}{
		{name: "empty", data: func(*testing.T) []byte { return nil }},
		{name: "wrong length", data: func(t *testing.T) []byte {
			b, err := msgpack.Marshal([]float64{1, 2, 3})
			require.NoError(t, err)
			return b
		}},
		{name: "wrong type", data: func(t *testing.T) []byte {
			b, err := msgpack.Marshal([]any{"x", 2.0, 3.0, 4.0, 5.0, 6.0, 7.0, 8.0, true})
			require.NoError(t, err)
			return b
		}},
		{name: "truncated", data: func(t *testing.T) []byte {
			b, err := Marshal(core.Snapshot{Orientation: mgl64.QuatIdent()})
			require.NoError(t, err)
			return b[:len(b)-3]
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(tt.data(t))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

// Package snapshot is the wire contract for authoritative snapshots. Both
// directions go through one field walk so the order cannot drift apart:
// orientation (x, y, z, w), position (x, y, z), turn rate, drift flag.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/kartracer/kartsim/pkg/core"
	"github.com/vmihailenco/msgpack/v5"
)

// fieldCount is the number of values on the wire.
const fieldCount = 9

var ErrMalformed = errors.New("malformed snapshot")

type stream interface {
	float(v *float64) error
	boolean(v *bool) error
}

// serialize walks every field in wire order. Writers read through the
// pointers, readers fill them.
func serialize(s stream, snap *core.Snapshot) error {
	fields := []*float64{
		&snap.Orientation.V[0],
		&snap.Orientation.V[1],
		&snap.Orientation.V[2],
		&snap.Orientation.W,
		&snap.Position[0],
		&snap.Position[1],
		&snap.Position[2],
		&snap.TurnRate,
	}
	for i, f := range fields {
		if err := s.float(f); err != nil {
			return fmt.Errorf("field %d: %w", i, err)
		}
	}
	if err := s.boolean(&snap.Drift); err != nil {
		return fmt.Errorf("drift flag: %w", err)
	}
	return nil
}

type writer struct{ enc *msgpack.Encoder }

func (w writer) float(v *float64) error { return w.enc.EncodeFloat64(*v) }
func (w writer) boolean(v *bool) error  { return w.enc.EncodeBool(*v) }

type reader struct{ dec *msgpack.Decoder }

func (r reader) float(v *float64) error {
	f, err := r.dec.DecodeFloat64()
	if err != nil {
		return err
	}
	*v = f
	return nil
}

func (r reader) boolean(v *bool) error {
	b, err := r.dec.DecodeBool()
	if err != nil {
		return err
	}
	*v = b
	return nil
}

// Write encodes snap to w as a msgpack array.
func Write(w io.Writer, snap core.Snapshot) error {
	enc := msgpack.NewEncoder(w)
	if err := enc.EncodeArrayLen(fieldCount); err != nil {
		return fmt.Errorf("encoding snapshot header: %w", err)
	}
	if err := serialize(writer{enc}, &snap); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return nil
}

// Read decodes one snapshot from r.
func Read(r io.Reader) (core.Snapshot, error) {
	var snap core.Snapshot
	dec := msgpack.NewDecoder(r)
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return snap, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if n != fieldCount {
		return snap, fmt.Errorf("%w: %d fields, want %d", ErrMalformed, n, fieldCount)
	}
	if err := serialize(reader{dec}, &snap); err != nil {
		return core.Snapshot{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return snap, nil
}

// Marshal encodes snap into a new byte slice.
func Marshal(snap core.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a snapshot produced by Marshal.
func Unmarshal(data []byte) (core.Snapshot, error) {
	return Read(bytes.NewReader(data))
}

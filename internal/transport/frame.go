// Package transport carries authoritative snapshots to observers over
// websockets and carries remote input commands back.
package transport

import (
	"bytes"
	"fmt"

	"github.com/kartracer/kartsim/internal/snapshot"
	"github.com/kartracer/kartsim/pkg/core"
	"github.com/vmihailenco/msgpack/v5"
)

// Frame is one snapshot addressed to a vehicle, stamped with the authority
// tick it was taken on. On the wire it is the msgpack array
// [vehicleID, tick, snapshotBytes].
type Frame struct {
	VehicleID uint16
	Tick      uint64
	Snapshot  core.Snapshot
}

var (
	_ msgpack.CustomEncoder = (*Frame)(nil)
	_ msgpack.CustomDecoder = (*Frame)(nil)
)

func (f *Frame) EncodeMsgpack(enc *msgpack.Encoder) error {
	body, err := snapshot.Marshal(f.Snapshot)
	if err != nil {
		return err
	}
	if err := enc.EncodeArrayLen(3); err != nil {
		return err
	}
	if err := enc.EncodeUint16(f.VehicleID); err != nil {
		return err
	}
	if err := enc.EncodeUint64(f.Tick); err != nil {
		return err
	}
	return enc.EncodeBytes(body)
}

func (f *Frame) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	if n != 3 {
		return fmt.Errorf("frame has %d fields, want 3", n)
	}
	if f.VehicleID, err = dec.DecodeUint16(); err != nil {
		return fmt.Errorf("decoding vehicle id: %w", err)
	}
	if f.Tick, err = dec.DecodeUint64(); err != nil {
		return fmt.Errorf("decoding tick: %w", err)
	}
	body, err := dec.DecodeBytes()
	if err != nil {
		return fmt.Errorf("decoding snapshot: %w", err)
	}
	f.Snapshot, err = snapshot.Unmarshal(body)
	return err
}

// FrameFor builds the frame for a published snapshot.
func FrameFor(vs core.VehicleSnapshot) Frame {
	return Frame{VehicleID: vs.VehicleID, Tick: vs.Tick, Snapshot: vs.Snapshot}
}

// EncodeFrame returns the wire bytes of f.
func EncodeFrame(f Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := msgpack.NewEncoder(&buf).Encode(&f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeFrame parses wire bytes into a frame.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("malformed frame: %w", err)
	}
	return f, nil
}

// Package msgs defines the serialized forms of readings published by sinks.
package msgs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/robotserial/pkg/imu"
)

// Reading is the wire form of imu.Reading.
type Reading struct {
	Sensor string `protobuf:"bytes,1,opt,name=sensor,proto3" json:"sensor"`
	Seq    uint64 `protobuf:"varint,2,opt,name=seq,proto3" json:"seq"`
	// Timestamp is in nanoseconds since epoch.
	Timestamp int64     `protobuf:"varint,3,opt,name=timestamp,proto3" json:"timestamp"`
	Values    []float32 `protobuf:"fixed32,4,rep,packed,name=values,proto3" json:"values"`
	Device    string    `protobuf:"bytes,5,opt,name=device,proto3" json:"device,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Reading) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Reading) Reset() { *m = Reading{} }

// String implements proto.Message.
func (m *Reading) String() string { return proto.CompactTextString(m) }

// FromReading converts a reading taken on device.
func FromReading(r imu.Reading, device string) *Reading {
	m := &Reading{
		Sensor: r.Sensor.String(),
		Seq:    r.Seq,
		Values: append([]float32(nil), r.Values...),
		Device: device,
	}
	if !r.Time.IsZero() {
		m.Timestamp = r.Time.UnixNano()
	}
	return m
}

// ToReading converts back to imu.Reading.
func (m *Reading) ToReading() (imu.Reading, error) {
	sensor, err := imu.ParseSensor(m.Sensor)
	if err != nil {
		return imu.Reading{}, err
	}
	r := imu.Reading{
		Sensor: sensor,
		Seq:    m.Seq,
		Values: append([]float32(nil), m.Values...),
	}
	if m.Timestamp != 0 {
		r.Time = time.Unix(0, m.Timestamp)
	}
	return r, nil
}

// Encoding selects the serialization.
type Encoding string

// Encodings
const (
	EncodingJSON  Encoding = "json"
	EncodingProto Encoding = "proto"
)

// ParseEncoding validates an encoding name, empty means JSON.
func ParseEncoding(name string) (Encoding, error) {
	switch Encoding(name) {
	case "", EncodingJSON:
		return EncodingJSON, nil
	case EncodingProto:
		return EncodingProto, nil
	}
	return "", fmt.Errorf("unknown encoding %q", name)
}

// Marshal serializes the message.
func (e Encoding) Marshal(m *Reading) ([]byte, error) {
	switch e {
	case "", EncodingJSON:
		return json.Marshal(m)
	case EncodingProto:
		return proto.Marshal(m)
	}
	return nil, fmt.Errorf("unknown encoding %q", string(e))
}

// Unmarshal deserializes a message.
func (e Encoding) Unmarshal(data []byte) (*Reading, error) {
	m := &Reading{}
	var err error
	switch e {
	case "", EncodingJSON:
		err = json.Unmarshal(data, m)
	case EncodingProto:
		err = proto.Unmarshal(data, m)
	default:
		err = fmt.Errorf("unknown encoding %q", string(e))
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Encode converts and serializes a reading.
func (e Encoding) Encode(r imu.Reading, device string) ([]byte, error) {
	return e.Marshal(FromReading(r, device))
}

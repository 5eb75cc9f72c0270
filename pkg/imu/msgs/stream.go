package msgs

import (
	"encoding/binary"
	"io"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/robotserial/pkg/imu"
)

// MaxRecordSize bounds a single record read back from a stream.
const MaxRecordSize = 1 << 16

// Recorder writes readings into a stream. Each record is prefixed by
// 4 bytes (little-endian) indicating the length.
type Recorder struct {
	Writer   io.Writer
	Encoding Encoding
	Device   string

	lock sync.Mutex
	err  error
}

// NewRecorder creates a Recorder.
func NewRecorder(w io.Writer, enc Encoding) *Recorder {
	return &Recorder{Writer: w, Encoding: enc}
}

// Record writes one reading.
func (r *Recorder) Record(reading imu.Reading) error {
	data, err := r.Encoding.Encode(reading, r.Device)
	if err != nil {
		return err
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if err = binary.Write(r.Writer, binary.LittleEndian, uint32(len(data))); err == nil {
		_, err = r.Writer.Write(data)
	}
	if err != nil && r.err == nil {
		glog.Errorf("record %s: %v", reading, err)
		r.err = err
	}
	return err
}

// HandleReading implements imu.ReadingHandler.
// The first error is logged and kept for Err.
func (r *Recorder) HandleReading(reading imu.Reading) {
	r.Record(reading)
}

// Err returns the first write error.
func (r *Recorder) Err() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.err
}

// Replayer reads readings written by a Recorder.
type Replayer struct {
	Reader   io.Reader
	Encoding Encoding
}

// NewReplayer creates a Replayer.
func NewReplayer(rd io.Reader, enc Encoding) *Replayer {
	return &Replayer{Reader: rd, Encoding: enc}
}

// Next reads the next record, io.EOF at the end of the stream.
func (r *Replayer) Next() (*Reading, error) {
	var size uint32
	if err := binary.Read(r.Reader, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	if size > MaxRecordSize {
		return nil, io.ErrShortBuffer
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r.Reader, data); err != nil {
		return nil, err
	}
	return r.Encoding.Unmarshal(data)
}

package mqtt

import (
	"context"
	"strings"

	"github.com/golang/glog"

	"github.com/robotalks/robotserial/pkg/imu"
	"github.com/robotalks/robotserial/pkg/imu/msgs"
)

// Topic layout under the queue prefix:
//
//	DEVICE/accelerometer
//	DEVICE/gyroscope
//	DEVICE/magnetometer
//	DEVICE/state          retained link state
const (
	StateTopic   = "state"
	StateOffline = "offline"
)

// ReadingTopic returns the topic readings of sensor on device are published to.
func ReadingTopic(device string, sensor imu.Sensor) string {
	return device + "/" + sensor.String()
}

// Publisher publishes readings and link states of one device.
// It implements imu.ReadingHandler and imu.StateNotifier.
type Publisher struct {
	Queue    *Queue
	Device   string
	Encoding msgs.Encoding
	QoS      byte
}

// NewPublisher creates a Publisher.
func NewPublisher(q *Queue, device string, enc msgs.Encoding) *Publisher {
	return &Publisher{Queue: q, Device: device, Encoding: enc}
}

// HandleReading implements imu.ReadingHandler.
func (p *Publisher) HandleReading(r imu.Reading) {
	data, err := p.Encoding.Encode(r, p.Device)
	if err != nil {
		glog.Warningf("encode %s: %v", r, err)
		return
	}
	p.Queue.PubWith(ReadingTopic(p.Device, r.Sensor), data, p.QoS, false)
}

// StateChanged implements imu.StateNotifier.
func (p *Publisher) StateChanged(ctx context.Context, state imu.LinkState, err error) {
	p.Queue.PubWith(p.Device+"/"+StateTopic, []byte(state.String()), 1, true)
}

// Attach publishes all readings of the machine.
func (p *Publisher) Attach(m *imu.Machine) {
	for _, sensor := range imu.Sensors {
		m.Channel(sensor).SetHandler(p)
	}
}

// ReadingHandler is called with readings received from a Queue.
type ReadingHandler func(device string, r *msgs.Reading)

// SubReadings subscribes readings of devices matching pattern ("+" for all).
func SubReadings(q *Queue, device string, enc msgs.Encoding, handler ReadingHandler) *Subscription {
	return q.Sub(device+"/+", func(topic string, payload []byte) {
		if strings.HasSuffix(topic, "/"+StateTopic) {
			return
		}
		m, err := enc.Unmarshal(payload)
		if err != nil {
			glog.Warningf("%s: bad reading: %v", topic, err)
			return
		}
		handler(topic[:strings.LastIndex(topic, "/")], m)
	})
}

package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/robotserial/pkg/env"
	fx "github.com/robotalks/robotserial/pkg/framework"
	"github.com/robotalks/robotserial/pkg/imu"
	"github.com/robotalks/robotserial/pkg/imu/msgs"
	"github.com/robotalks/robotserial/pkg/mqtt"
	"github.com/robotalks/robotserial/pkg/websocket"
)

var (
	recordFile    string
	printReadings bool
	retryInterval = 5 * time.Second
)

func init() {
	env.SetupFlags()
	flag.StringVar(&recordFile, "record", recordFile, "Append readings to a file.")
	flag.BoolVar(&printReadings, "print", printReadings, "Log every reading.")
	flag.DurationVar(&retryInterval, "retry", retryInterval, "Wait before trying the ports again, 0 to exit instead.")
}

// linkRunner recreates the Link whenever it gives up on all candidates.
// It cancels the shared context when it returns.
type linkRunner struct {
	conf     *env.Config
	handler  imu.ReadingHandler
	notifier imu.StateNotifier
	cancel   func()
}

func (r *linkRunner) Name() string {
	return "link"
}

func (r *linkRunner) Run(ctx context.Context) error {
	defer r.cancel()
	for {
		link, err := r.conf.NewLink()
		if err != nil {
			return err
		}
		link.Notifier = r.notifier
		link.Setup = func(m *imu.Machine) {
			for _, sensor := range imu.Sensors {
				m.Channel(sensor).SetHandler(r.handler)
			}
		}
		err = link.Run(ctx)
		if ctx.Err() != nil || retryInterval <= 0 {
			return err
		}
		glog.Warningf("no device: %v, retry in %s", err, retryInterval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

func main() {
	env.Parse()
	conf := env.Default()
	if err := conf.Validate(); err != nil {
		log.Fatalln(err)
	}

	runner := fx.NewRunner().HandleSignals()
	ctx, cancel := context.WithCancel(runner.Context)
	runner.Context = ctx
	lr := &linkRunner{conf: conf, cancel: cancel}
	var handlers imu.ReadingHandlers
	var notifiers imu.StateNotifiers
	var rec *msgs.Recorder

	if conf.MQTTBrokerURL != "" {
		q := conf.MustNewQueue("imud")
		pub := conf.NewPublisher(q)
		var state int32
		q.OnConnect = func(*mqtt.Queue) {
			pub.StateChanged(ctx, imu.LinkState(atomic.LoadInt32(&state)), nil)
		}
		notifiers = append(notifiers, imu.StateChangedFunc(func(_ context.Context, s imu.LinkState, _ error) {
			atomic.StoreInt32(&state, int32(s))
		}), pub)
		if token := q.Connect(); token.Wait() && token.Error() != nil {
			log.Fatalln(token.Error())
		}
		defer q.Close()
		handlers = append(handlers, pub)
	}
	if conf.WebsocketAddr != "" {
		hub := websocket.NewHub(conf.DeviceID, conf.Encoding)
		handlers = append(handlers, hub)
		runner.Go(&websocket.Server{Addr: conf.WebsocketAddr, Hub: hub})
	}
	if recordFile != "" {
		f, err := os.OpenFile(recordFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Fatalln(err)
		}
		defer f.Close()
		rec = msgs.NewRecorder(f, conf.Encoding)
		rec.Device = conf.DeviceID
		handlers = append(handlers, rec)
	}
	if printReadings {
		handlers = append(handlers, imu.HandleReadingFunc(func(r imu.Reading) {
			glog.Info(r)
		}))
	}

	lr.handler, lr.notifier = handlers, notifiers
	runner.Go(lr)
	err := runner.Wait()
	if rec != nil && rec.Err() != nil {
		glog.Errorf("recording %s incomplete: %v", recordFile, rec.Err())
	}
	if err != nil {
		glog.Error(err)
		glog.Flush()
		os.Exit(1)
	}
}

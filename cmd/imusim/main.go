package main

import (
	"context"
	"flag"
	"log"
	"math"
	"net"
	"os"
	"time"

	fx "github.com/robotalks/robotserial/pkg/framework"
	"github.com/robotalks/robotserial/pkg/imu/msgs"
	"github.com/robotalks/robotserial/pkg/imu/sim"
)

var (
	listenAddr = ":5760"
	turnRate   = 30.0
	tilt       = 0.0
	noise      = 0.0
	period     = sim.DefaultPeriod
	replayFile string
	encoding   = string(msgs.EncodingJSON)
)

func init() {
	flag.StringVar(&listenAddr, "listen", listenAddr, "TCP listen address, connect with tcp://HOST:PORT.")
	flag.Float64Var(&turnRate, "rate", turnRate, "Turn rate in degrees/s.")
	flag.Float64Var(&tilt, "tilt", tilt, "Tilt in degrees.")
	flag.Float64Var(&noise, "noise", noise, "Standard deviation of the noise.")
	flag.DurationVar(&period, "period", period, "Interval between frames.")
	flag.StringVar(&replayFile, "replay", replayFile, "Replay a file recorded by imud -record, in a loop.")
	flag.StringVar(&encoding, "encoding", encoding, "Encoding of the replayed file: json, proto.")
}

func replaySource() func() sim.Source {
	enc, err := msgs.ParseEncoding(encoding)
	if err != nil {
		log.Fatalln(err)
	}
	f, err := os.Open(replayFile)
	if err != nil {
		log.Fatalln(err)
	}
	defer f.Close()
	p, err := sim.LoadPlayback(f, enc)
	if err != nil {
		log.Fatalf("%s: %v", replayFile, err)
	}
	p.Period, p.Loop = period, true
	log.Printf("replaying %d readings from %s", len(p.Readings), replayFile)
	return func() sim.Source { return p.Copy() }
}

func main() {
	flag.Parse()

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		log.Fatalln(err)
	}
	log.Printf("simulated device on %s", ln.Addr())
	newSource := func() sim.Source {
		d := sim.NewDevice(turnRate*math.Pi/180).
			WithNoise(noise, time.Now().UnixNano())
		d.Tilt = sim.AngleFromDegrees(tilt)
		d.Period = period
		return d
	}
	if replayFile != "" {
		newSource = replaySource()
	}
	runner := fx.NewRunner().HandleSignals()
	runner.Go(fx.NamedRun("sim", fx.RunnableFunc(func(ctx context.Context) error {
		return sim.Serve(ctx, ln, newSource)
	})))
	if err := runner.Wait(); err != nil {
		log.Fatalln(err)
	}
}

package main

import (
	"flag"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/robotalks/robotserial/pkg/imu/msgs"
	"github.com/robotalks/robotserial/pkg/mqtt"
)

var (
	mqttURL  = "mqtt://localhost:1883/robo/"
	device   = "+"
	encoding = string(msgs.EncodingJSON)
)

func init() {
	if val := os.Getenv("ROBOSERIAL_MQTT_URL"); val != "" {
		mqttURL = val
	}
	if val := os.Getenv("ROBOSERIAL_ENCODING"); val != "" {
		encoding = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&device, "id", device, "Device ID, + for all.")
	flag.StringVar(&encoding, "encoding", encoding, "Reading encoding: json, proto.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	enc, err := msgs.ParseEncoding(encoding)
	if err != nil {
		log.Fatalln(err)
	}
	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}
	defer q.Close()

	q.Sub(device+"/"+mqtt.StateTopic, func(topic string, payload []byte) {
		log.Printf("%s: %s", topic, string(payload))
	})
	mqtt.SubReadings(q, device, enc, func(device string, r *msgs.Reading) {
		values := make([]string, len(r.Values))
		for n, v := range r.Values {
			values[n] = strconv.FormatFloat(float64(v), 'f', 3, 32)
		}
		log.Printf("%s: %s #%d [%s]", device, r.Sensor, r.Seq, strings.Join(values, " "))
	})
	<-(chan struct{})(nil)
}

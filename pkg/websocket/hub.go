// Package websocket streams readings to websocket clients.
package websocket

import (
	"context"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	fx "github.com/robotalks/robotserial/pkg/framework"
	"github.com/robotalks/robotserial/pkg/imu"
	"github.com/robotalks/robotserial/pkg/imu/msgs"
)

// DefaultBuffer is the number of readings queued per client before
// readings are dropped for it.
const DefaultBuffer = 64

// Hub fans readings out to connected clients. It implements
// imu.ReadingHandler. A client may select sensors with ?sensor=NAME,
// repeated.
type Hub struct {
	Device   string
	Encoding msgs.Encoding
	Buffer   int

	lock    sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	ch      chan []byte
	sensors map[imu.Sensor]bool
	dropped int
}

// NewHub creates a Hub.
func NewHub(device string, enc msgs.Encoding) *Hub {
	return &Hub{Device: device, Encoding: enc, Buffer: DefaultBuffer}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.clients)
}

// HandleReading implements imu.ReadingHandler.
func (h *Hub) HandleReading(r imu.Reading) {
	h.lock.RLock()
	defer h.lock.RUnlock()
	if len(h.clients) == 0 {
		return
	}
	data, err := h.Encoding.Encode(r, h.Device)
	if err != nil {
		glog.Warningf("encode %s: %v", r, err)
		return
	}
	for c := range h.clients {
		if len(c.sensors) > 0 && !c.sensors[r.Sensor] {
			continue
		}
		select {
		case c.ch <- data:
		default:
			c.dropped++
		}
	}
}

// Handler returns the websocket handler.
func (h *Hub) Handler() http.Handler {
	return websocket.Handler(h.serve)
}

func (h *Hub) register(c *client) {
	h.lock.Lock()
	if h.clients == nil {
		h.clients = make(map[*client]struct{})
	}
	h.clients[c] = struct{}{}
	h.lock.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.lock.Lock()
	delete(h.clients, c)
	dropped := c.dropped
	h.lock.Unlock()
	if dropped > 0 {
		glog.Warningf("websocket client dropped %d readings", dropped)
	}
}

func (h *Hub) serve(ws *websocket.Conn) {
	defer ws.Close()
	size := h.Buffer
	if size <= 0 {
		size = DefaultBuffer
	}
	c := &client{ch: make(chan []byte, size), sensors: make(map[imu.Sensor]bool)}
	for _, name := range ws.Request().URL.Query()["sensor"] {
		sensor, err := imu.ParseSensor(name)
		if err != nil {
			websocket.Message.Send(ws, err.Error())
			return
		}
		c.sensors[sensor] = true
	}
	h.register(c)
	defer h.unregister(c)
	glog.V(2).Infof("websocket client %s", ws.Request().RemoteAddr)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		var msg []byte
		for websocket.Message.Receive(ws, &msg) == nil {
		}
	}()
	for {
		select {
		case data := <-c.ch:
			var err error
			if h.Encoding == msgs.EncodingProto {
				err = websocket.Message.Send(ws, data)
			} else {
				err = websocket.Message.Send(ws, string(data))
			}
			if err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

// Server serves a Hub on Addr at /readings.
type Server struct {
	Addr string
	Hub  *Hub
}

// Run implements framework.Runnable.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/readings", s.Hub.Handler())
	srv := &http.Server{Addr: s.Addr, Handler: mux}
	glog.Infof("websocket on %s/readings", s.Addr)
	return fx.RunWithContextCancel(ctx, func() { srv.Close() }, srv.ListenAndServe)
}

// Name implements framework.Named.
func (s *Server) Name() string {
	return "websocket"
}

package main

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// consoleHub fans device output lines out to websocket clients. Lines
// arrive from the transport's reader goroutine; slow clients drop
// lines rather than stall the rig.
type consoleHub struct {
	log zerolog.Logger

	mx      sync.Mutex
	clients map[*websocket.Conn]chan string
}

func newConsoleHub(logger zerolog.Logger) *consoleHub {
	return &consoleHub{
		log:     logger,
		clients: make(map[*websocket.Conn]chan string),
	}
}

// Broadcast queues a line for every connected client.
func (h *consoleHub) Broadcast(line string) {
	h.mx.Lock()
	defer h.mx.Unlock()
	for _, ch := range h.clients {
		select {
		case ch <- line:
		default:
		}
	}
}

// Serve upgrades the request and streams console lines until the
// client goes away.
func (h *consoleHub) Serve(w http.ResponseWriter, req *http.Request) {
	ws, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("console upgrade")
		return
	}

	ch := make(chan string, 256)
	h.mx.Lock()
	h.clients[ws] = ch
	h.mx.Unlock()

	defer func() {
		h.mx.Lock()
		delete(h.clients, ws)
		h.mx.Unlock()
		ws.Close()
	}()

	// Discard client frames so pings and close frames are handled.
	done := make(chan struct{})
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				close(done)
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case line := <-ch:
			if err := ws.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				return
			}
		}
	}
}

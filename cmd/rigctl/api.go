package main

import (
	"encoding/json"
	"io"
	"io/ioutil"
	"log"
	"net/http"

	sse "github.com/alexandrevicenzi/go-sse"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"rigctl/rig"
	"rigctl/script"
	"rigctl/sim"
)

// api is the boundary the core exposes to the excluded GUI
// collaborators: script checking, the gated send pipeline, session
// control, an SSE session feed, and a websocket console stream.
type api struct {
	http.Handler
	sess *session
	sse  *sse.Server
	hub  *consoleHub
	log  zerolog.Logger
}

func newAPI(sess *session, logger zerolog.Logger) *api {
	r := mux.NewRouter()

	a := &api{
		Handler: r,
		sess:    sess,
		hub:     newConsoleHub(logger),
		log:     logger,
		sse: sse.NewServer(&sse.Options{
			Logger: log.New(ioutil.Discard, "", 0),
		}),
	}
	sess.AddSink(a.hub.Broadcast)

	r.HandleFunc("/api/check", a.check).Methods("POST")
	r.HandleFunc("/api/send", a.send).Methods("POST")
	r.HandleFunc("/api/stop", a.stop).Methods("POST")
	r.HandleFunc("/api/connect", a.connect).Methods("POST")
	r.HandleFunc("/api/disconnect", a.disconnect).Methods("POST")
	r.HandleFunc("/api/report", a.report).Methods("POST")
	r.HandleFunc("/api/state", a.state).Methods("GET")
	r.HandleFunc("/api/status", a.status).Methods("GET")
	r.HandleFunc("/console", a.hub.Serve)
	r.PathPrefix("/events/").Handler(a.sse)

	go func() {
		for state := range sess.Events() {
			data, err := json.Marshal(state)
			if err != nil {
				logger.Error().Err(err).Msg("marshal session state")
				continue
			}
			a.sse.SendMessage("/events/session", sse.SimpleMessage(string(data)))
		}
	}()

	return a
}

func (a *api) readScript(w http.ResponseWriter, req *http.Request) (string, bool) {
	data, err := io.ReadAll(req.Body)
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return "", false
	}
	return string(data), true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (a *api) check(w http.ResponseWriter, req *http.Request) {
	text, ok := a.readScript(w, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a.sess.Check(text))
}

type sendResult struct {
	OK       bool          `json:"ok"`
	Commands int           `json:"commands"`
	Errors   script.Errors `json:"errors,omitempty"`
	Message  string        `json:"message,omitempty"`
}

func (a *api) send(w http.ResponseWriter, req *http.Request) {
	text, ok := a.readScript(w, req)
	if !ok {
		return
	}
	n, err := a.sess.Send(text)
	switch e := err.(type) {
	case nil:
		writeJSON(w, http.StatusOK, sendResult{OK: true, Commands: n})
	case script.Errors:
		writeJSON(w, http.StatusUnprocessableEntity, sendResult{Errors: e, Message: e.Summary()})
	case *sim.LimitError:
		writeJSON(w, http.StatusConflict, sendResult{Message: e.Error()})
	default:
		status := http.StatusBadGateway
		if err == rig.ErrNotConnected {
			status = http.StatusPreconditionFailed
		}
		writeJSON(w, status, sendResult{Commands: n, Message: err.Error()})
	}
}

func (a *api) stop(w http.ResponseWriter, req *http.Request) {
	if err := a.sess.Stop(); err != nil {
		writeJSON(w, http.StatusBadGateway, sendResult{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sendResult{OK: true})
}

func (a *api) connect(w http.ResponseWriter, req *http.Request) {
	port, err := a.sess.Connect()
	if err != nil {
		writeJSON(w, http.StatusBadGateway, sendResult{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"port": port})
}

func (a *api) disconnect(w http.ResponseWriter, req *http.Request) {
	if err := a.sess.Disconnect(); err != nil {
		writeJSON(w, http.StatusBadGateway, sendResult{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sendResult{OK: true})
}

func (a *api) report(w http.ResponseWriter, req *http.Request) {
	if err := a.sess.ReportZ(); err != nil {
		writeJSON(w, http.StatusBadGateway, sendResult{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, sendResult{OK: true})
}

func (a *api) state(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, a.sess.Snapshot())
}

func (a *api) status(w http.ResponseWriter, req *http.Request) {
	st, err := a.sess.Status()
	if err != nil {
		writeJSON(w, http.StatusBadGateway, sendResult{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": st})
}

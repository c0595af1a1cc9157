package main

import (
	"encoding/json"
	"net"
	"os"
	"time"

	"github.com/mues-io/muesd/engine"
)

// controlRequest is the single-line JSON request the stop and status
// subcommands send over the local control socket.
type controlRequest struct {
	Action string `json:"action"`
}

// controlResponse is the matching reply. Status fields are only populated
// when Action was "status".
type controlResponse struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
	State    string `json:"state,omitempty"`
	Tick     int64  `json:"tick,omitempty"`
	Uptime   string `json:"uptime,omitempty"`
	Sessions int    `json:"sessions,omitempty"`
	Queued   int    `json:"queued,omitempty"`
	Workers  int    `json:"workers,omitempty"`
}

// runControlServer listens on a unix socket at sockPath and answers status
// and stop requests against eng until stopped is closed. It runs on its own
// goroutine, alongside start's signal loop, and only calls the Engine's
// thread-safe Snapshot and Stop.
func runControlServer(sockPath string, eng *engine.Engine, stopped <-chan struct{}) error {
	_ = os.Remove(sockPath)
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		return err
	}
	go func() {
		<-stopped
		ln.Close()
		os.Remove(sockPath)
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			return nil
		}
		go handleControlConn(conn, eng)
	}
}

func handleControlConn(conn net.Conn, eng *engine.Engine) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	var req controlRequest
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		json.NewEncoder(conn).Encode(controlResponse{OK: false, Error: err.Error()})
		return
	}

	switch req.Action {
	case "status":
		snap := eng.Snapshot()
		json.NewEncoder(conn).Encode(controlResponse{
			OK:       true,
			State:    snap.State.String(),
			Tick:     snap.Tick,
			Uptime:   snap.Uptime.String(),
			Sessions: snap.Sessions,
			Queued:   snap.QueueStats.Pending,
			Workers:  snap.QueueStats.Workers,
		})
	case "stop":
		clean := eng.Stop(10 * time.Second)
		json.NewEncoder(conn).Encode(controlResponse{OK: clean})
	default:
		json.NewEncoder(conn).Encode(controlResponse{OK: false, Error: "unknown action"})
	}
}

// dialControl sends req to the control socket at sockPath and decodes its
// response.
func dialControl(sockPath string, req controlRequest) (controlResponse, error) {
	conn, err := net.DialTimeout("unix", sockPath, 3*time.Second)
	if err != nil {
		return controlResponse{}, err
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return controlResponse{}, err
	}
	var resp controlResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return controlResponse{}, err
	}
	return resp, nil
}

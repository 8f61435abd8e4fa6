package main

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/SophHealth/soph-mvp/engine/health"
	"github.com/SophHealth/soph-mvp/engine/stream"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleDashboard returns the whole snapshot in one response, the same
// payload the WebSocket pushes on every update.
func handleDashboard(src *stream.Source) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, src.Snapshot())
	}
}

func handlePosts(src *stream.Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := src.Snapshot()
		if r.URL.Query().Get("dengue") == "true" {
			writeJSON(w, snap.DenguePosts)
			return
		}
		writeJSON(w, snap.Posts)
	}
}

func handleHotspots(src *stream.Source) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, src.Snapshot().Hotspots)
	}
}

func handleMisinfo(src *stream.Source) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, src.Snapshot().Misinfo)
	}
}

func handleTimeline(src *stream.Source) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, src.Snapshot().Timeline)
	}
}

func handleSignal(src *stream.Source) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, src.Snapshot().SelangorSignal)
	}
}

func handleStats(sim *health.Simulator) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, sim.Stats())
	}
}

// StreamState is the response for the stream control endpoints.
type StreamState struct {
	Running bool `json:"running"`
}

func handleStreamStart(ctx context.Context, src *stream.Source) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		src.Start(ctx)
		writeJSON(w, StreamState{Running: src.Running()})
	}
}

func handleStreamStop(src *stream.Source) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		src.Stop()
		writeJSON(w, StreamState{Running: src.Running()})
	}
}

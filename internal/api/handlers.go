package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"replay-vision/internal/overlay"
	"replay-vision/internal/record"
	"replay-vision/internal/replay"
	"replay-vision/internal/vision"
)

// maxBodyBytes bounds request bodies; a 256x256 frame with thousands of units fits comfortably.
const maxBodyBytes = 8 << 20

type estimateRequest struct {
	Width        int             `json:"width"`
	Height       int             `json:"height"`
	Owner        replay.PlayerID `json:"owner"`
	TileSize     int             `json:"tileSize"`
	Units        []replay.Unit   `json:"units"`
	IncludeCells bool            `json:"includeCells"`
}

type estimateResponse struct {
	Owner        vision.OwnerID `json:"owner"`
	Width        int            `json:"width"`
	Height       int            `json:"height"`
	MaxSight     int            `json:"maxSight"`
	VisibleTiles int            `json:"visibleTiles"`
	Cells        []vision.Cell  `json:"cells,omitempty"`
}

func (h *routerHandlers) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	tileSize := req.TileSize
	if tileSize <= 0 {
		tileSize = h.sampler.Config().TileSize
	}

	obs := make([]vision.Observation, 0, len(req.Units))
	for i := range req.Units {
		obs = append(obs, req.Units[i].Observation(tileSize))
	}

	est, err := vision.EstimateVision(req.Width, req.Height, req.Owner.OwnerID(), obs)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	resp := estimateResponse{
		Owner:        est.Owner,
		Width:        est.Width,
		Height:       est.Height,
		MaxSight:     est.MaxSight,
		VisibleTiles: est.VisibleTiles,
	}
	if req.IncludeCells {
		resp.Cells = vision.PositiveCells(est.Grid)
	}
	writeJSON(w, resp)
}

func (h *routerHandlers) handleIngestFrame(w http.ResponseWriter, r *http.Request) {
	var f replay.Frame
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&f); err != nil {
		writeError(w, "Invalid frame", http.StatusBadRequest)
		return
	}

	samples, err := h.sampler.Process(r.Context(), &f)
	if err != nil {
		log.Printf("❌ Frame %d rejected: %v", f.Number, err)
		writeError(w, err.Error(), statusFor(err))
		return
	}

	out := make([]map[string]interface{}, 0, len(samples))
	for i := range samples {
		out = append(out, samples[i].ToJSON())
	}
	writeJSON(w, map[string]interface{}{
		"frame":   f.Number,
		"sampled": len(samples) > 0,
		"samples": out,
	})
}

func (h *routerHandlers) handleListOwners(w http.ResponseWriter, r *http.Request) {
	latest := h.sampler.LatestAll()
	out := make([]map[string]interface{}, 0, len(latest))
	for i := range latest {
		out = append(out, latest[i].ToJSON())
	}
	writeJSON(w, out)
}

func (h *routerHandlers) handleGetOwner(w http.ResponseWriter, r *http.Request) {
	s, ok := h.latest(w, r)
	if !ok {
		return
	}
	resp := s.ToJSON()
	if r.URL.Query().Get("cells") == "true" && s.Estimate.Grid != nil {
		resp["cells"] = vision.PositiveCells(s.Estimate.Grid)
	}
	writeJSON(w, resp)
}

func (h *routerHandlers) handleOwnerOverlay(w http.ResponseWriter, r *http.Request) {
	s, ok := h.latest(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	opts := overlay.Options{
		TilePixels: h.overlay.TilePixels,
		TileSize:   h.sampler.Config().TileSize,
		ShowValues: q.Get("values") == "true",
	}

	if q.Has("x") || q.Has("y") {
		vp := overlay.Viewport{
			X:      queryInt(q.Get("x"), 0),
			Y:      queryInt(q.Get("y"), 0),
			Width:  queryInt(q.Get("w"), h.overlay.ViewportWidth),
			Height: queryInt(q.Get("h"), h.overlay.ViewportHeight),
		}
		opts.Viewport = &vp
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := overlay.WritePNG(w, s.Estimate, opts); err != nil {
		log.Printf("❌ Overlay render failed for owner %s: %v", s.Owner, err)
	}
}

func (h *routerHandlers) handleOwnerHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, "History store not configured", http.StatusNotImplemented)
		return
	}

	owner := chi.URLParam(r, "owner")
	replayName := r.URL.Query().Get("replay")
	if replayName == "" {
		replayName = h.sampler.Stats().Replay
	}

	samples, err := h.history.ListVision(replayName, owner)
	if err != nil {
		log.Printf("❌ History query failed: %v", err)
		writeError(w, "History query failed", http.StatusInternalServerError)
		return
	}
	if samples == nil {
		samples = []*record.VisionSample{}
	}
	writeJSON(w, map[string]interface{}{
		"replay":  replayName,
		"owner":   owner,
		"samples": samples,
	})
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, buildStats(h.sampler, h.records))
}

// statsResponse is shared by /api/stats and the websocket stats event.
type statsResponse struct {
	Sampler replay.Stats     `json:"sampler"`
	Records *record.LogStats `json:"records,omitempty"`
}

func buildStats(sampler SamplerInterface, records RecordLogInterface) statsResponse {
	resp := statsResponse{Sampler: sampler.Stats()}
	if records != nil {
		st := records.Stats()
		resp.Records = &st
	}
	return resp
}

// latest resolves the {owner} parameter, writing 404 when no sample exists.
func (h *routerHandlers) latest(w http.ResponseWriter, r *http.Request) (replay.Sample, bool) {
	owner := vision.OwnerID(chi.URLParam(r, "owner"))
	s, ok := h.sampler.Latest(owner)
	if !ok {
		writeError(w, "No sample for owner", http.StatusNotFound)
		return replay.Sample{}, false
	}
	return s, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, vision.ErrMapTooLarge), errors.Is(err, vision.ErrInvalidDimensions):
		return http.StatusBadRequest
	case errors.Is(err, record.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func queryInt(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"

	"lane-clash/internal/game"
	"lane-clash/internal/render"
)

// Handler methods for routerHandlers
// These are used by both the standalone router (for testing) and the full Server.

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.GetSnapshot())
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.GetSnapshot()
	writeJSON(w, map[string]interface{}{
		"tick":          snap.TickNumber,
		"simTimeNs":     snap.SimTime,
		"minionCount":   len(snap.Minions),
		"pendingSpawns": snap.Pending,
		"goldTotal":     snap.GoldTotal,
		"heroHealth":    snap.HeroHealth,
		"teams":         snap.Teams,
		"over":          snap.Over,
		"winner":        snap.Winner,
	})
}

func (h *routerHandlers) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	n := 100
	if q := r.URL.Query().Get("n"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v <= 0 {
			writeError(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		n = min(v, game.EventBufferSize)
	}
	writeJSON(w, h.engine.RecentEvents(n))
}

func (h *routerHandlers) handleGetEventStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.GetEventLogStats())
}

func (h *routerHandlers) handleMatchReset(w http.ResponseWriter, r *http.Request) {
	log.Println("🔄 Match reset requested via API")
	h.engine.Reset()
	snap := h.engine.GetSnapshot()
	writeJSON(w, map[string]interface{}{
		"success": true,
		"tick":    snap.TickNumber,
	})
}

func (h *routerHandlers) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	fr := h.frames.get()
	defer h.frames.put(fr)

	data, err := fr.EncodePNG(h.engine.GetSnapshot())
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	RecordRender(fr.LastRenderTime())

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

// framePool hands out renderers; a gg context is not safe for concurrent use.
type framePool struct {
	pool sync.Pool
}

func newFramePool(width, height int) *framePool {
	return &framePool{pool: sync.Pool{
		New: func() interface{} { return render.NewFrameRenderer(width, height) },
	}}
}

func (p *framePool) get() *render.FrameRenderer  { return p.pool.Get().(*render.FrameRenderer) }
func (p *framePool) put(r *render.FrameRenderer) { p.pool.Put(r) }

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

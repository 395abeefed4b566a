// Command nettopo-api serves a read-only HTTP query API over persisted
// mapper run results, ported from the teacher's cmd/ns-api's
// mux.NewRouter() + graceful-shutdown shape.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"nettopo/internal/config"
	"nettopo/internal/store"
)

func main() {
	configPath := "configs/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("nettopo-api: %v", err)
	}

	st, err := store.Open(cfg.Store, "")
	if err != nil {
		log.Fatalf("nettopo-api: failed to open store: %v", err)
	}
	defer st.Close()

	h := &apiHandler{store: st}

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/subnets", h.listSubnets).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/routers", h.listRouters).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/runs/{runID}/stats", h.runStats).Methods(http.MethodGet)

	addr := cfg.API.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		log.Printf("nettopo-api: listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("nettopo-api: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Println("nettopo-api: shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("nettopo-api: forced shutdown: %v", err)
	}
	log.Println("nettopo-api: exited")
}

type apiHandler struct {
	store *store.Store
}

func (h *apiHandler) listSubnets(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run_id")
	rows, err := h.store.QuerySubnets(r.Context(), runID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, rows)
}

func (h *apiHandler) listRouters(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run_id")
	rows, err := h.store.QueryRouters(r.Context(), runID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, rows)
}

func (h *apiHandler) runStats(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["runID"]
	row, err := h.store.QueryRunStats(r.Context(), runID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, row)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

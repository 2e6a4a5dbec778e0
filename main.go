package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"unsafe"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type createGameRequest struct {
	Size     int        `json:"size"`
	HalfKomi int        `json:"half_komi"`
	White    PlayerType `json:"white"`
	Black    PlayerType `json:"black"`
}

type moveRequest struct {
	Move MoveDTO `json:"move"`
}

// moveResponse carries the post-move snapshot. EngineError is set when the
// human move stood but the engine reply failed, so the client can resync
// instead of treating the whole turn as rejected.
type moveResponse struct {
	GameStateDTO
	EngineError string `json:"engine_error,omitempty"`
}

type analyzeRequest struct {
	Position     PositionDTO `json:"position"`
	MaxDepth     int         `json:"max_depth,omitempty"`
	TimeBudgetMs int         `json:"time_budget_ms,omitempty"`
}

type ttCacheStatusResponse struct {
	Count      int     `json:"count"`
	Capacity   int     `json:"capacity"`
	Usage      float64 `json:"usage"`
	EntryBytes uint64  `json:"entry_bytes"`
	UsedBytes  uint64  `json:"used_bytes"`
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.StampMilli})

	config := GetConfig()
	controller := NewGameController()
	hub := NewHub()
	analysisHub := NewAnalysisHub()
	queue, err := NewAnalysisQueue(config)
	if err != nil {
		log.Fatal().Err(err).Msg("analysis queue init failed")
	}
	queue.SetHub(analysisHub)

	// Ad-hoc analysis shares one table so repeated requests build on each
	// other.
	analysisTT := NewTranspositionTable(uint64(config.AiTtSize), config.AiTtBuckets)
	analysisEval, err := NewEvaluator(config)
	if err != nil {
		log.Fatal().Err(err).Msg("evaluator init failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx.Done())
	go analysisHub.Run(ctx.Done())
	queue.StartWorkers(ctx)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/api/ping", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	r.Get("/api/config", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, GetConfig())
	})

	r.Put("/api/config", func(w http.ResponseWriter, r *http.Request) {
		var newConfig Config
		if err := json.NewDecoder(r.Body).Decode(&newConfig); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := configStore.Update(newConfig); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, GetConfig())
	})

	r.Post("/api/games", func(w http.ResponseWriter, r *http.Request) {
		req := createGameRequest{
			Size:     GetConfig().BoardSize,
			HalfKomi: GetConfig().HalfKomi,
			White:    PlayerHuman,
			Black:    PlayerEngine,
		}
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
		}
		game, err := controller.CreateGame(req.Size, req.HalfKomi, req.White, req.Black)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		queue.RequestStop()
		snapshot, _ := controller.Snapshot(game.ID)
		writeJSON(w, http.StatusCreated, snapshot)
	})

	r.Get("/api/games/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		snapshot, ok := controller.Snapshot(id)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown game"})
			return
		}
		writeJSON(w, http.StatusOK, snapshot)
	})

	r.Delete("/api/games/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": controller.DeleteGame(id)})
	})

	r.Post("/api/games/{id}/moves", func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		var req moveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		move, err := moveFromDTO(req.Move)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		applied, submitErr := controller.SubmitMove(r.Context(), id, move)
		if submitErr != nil && len(applied) == 0 {
			writeError(w, http.StatusBadRequest, submitErr)
			return
		}
		snapshot, _ := controller.Snapshot(id)
		hub.Publish(snapshot)
		resp := moveResponse{GameStateDTO: snapshot}
		if submitErr != nil {
			resp.EngineError = submitErr.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Post("/api/games/{id}/engine-move", func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		_, moved, err := controller.AdvanceEngine(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		snapshot, _ := controller.Snapshot(id)
		if moved {
			hub.Publish(snapshot)
		}
		writeJSON(w, http.StatusOK, snapshot)
	})

	r.Post("/api/analyze", func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		pos, err := positionFromDTO(req.Position)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		settings := SettingsFromConfig(GetConfig())
		settings.TT = analysisTT
		settings.Evaluator = analysisEval
		if req.MaxDepth > 0 {
			settings.MaxDepth = req.MaxDepth
		}
		if req.TimeBudgetMs > 0 {
			settings.TimeBudget = time.Duration(req.TimeBudgetMs) * time.Millisecond
		}
		result, err := Search(r.Context(), pos, settings)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, searchResultToDTO(result, pos.Size()))
	})

	r.Post("/api/analyze/queue", func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		pos, err := positionFromDTO(req.Position)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		queue.Enqueue(pos)
		writeJSON(w, http.StatusAccepted, map[string]any{
			"id":     hashToBoardID(pos.Hash()),
			"queued": queue.Len(),
		})
	})

	r.Get("/api/queue", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, queue.Snapshot())
	})

	r.Get("/api/queue/{id}", func(w http.ResponseWriter, r *http.Request) {
		hash, ok := boardIDToHash(chi.URLParam(r, "id"))
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed board id"})
			return
		}
		result, ok := queue.Result(hash)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no analysis for board"})
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	r.Get("/api/cache/tt", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, ttCacheStatus(analysisTT))
	})

	r.Delete("/api/cache/tt", func(w http.ResponseWriter, r *http.Request) {
		analysisTT.Clear()
		writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
	})

	r.Get("/ws/games", func(w http.ResponseWriter, r *http.Request) {
		serveGameWS(hub, controller, w, r)
	})
	r.Get("/ws/analysis", func(w http.ResponseWriter, r *http.Request) {
		serveAnalysisWS(analysisHub, queue, w, r)
	})

	server := &http.Server{Addr: config.ListenAddr, Handler: r}
	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
		close(serverErrCh)
	}()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	log.Info().Str("addr", config.ListenAddr).Msg("server listening")
	select {
	case <-sigCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err, ok := <-serverErrCh:
		if ok {
			log.Error().Err(err).Msg("server error")
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("graceful shutdown failed")
		_ = server.Close()
	}
	queue.RequestStop()
	cancel()
}

func serveGameWS(hub *Hub, controller *GameController, w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &Client{hub: hub, gameID: r.URL.Query().Get("game"), send: make(chan []byte, 16)}
	hub.Register(client)

	if client.gameID != "" {
		if id, err := uuid.Parse(client.gameID); err == nil {
			if snapshot, ok := controller.Snapshot(id); ok {
				client.sendJSON(wsMessage{Type: "game", Payload: mustMarshal(snapshot)})
			}
		}
	}

	go func() {
		defer conn.Close()
		if err := writeWSWithHeartbeat(conn, client.send); err != nil {
			return
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			hub.Unregister(client)
			return
		}
	}
}

func ttCacheStatus(tt *TranspositionTable) ttCacheStatusResponse {
	count := tt.Count()
	capacity := tt.Capacity()
	entryBytes := uint64(unsafe.Sizeof(TTEntry{}))
	usage := 0.0
	if capacity > 0 {
		usage = float64(count) / float64(capacity)
	}
	return ttCacheStatusResponse{
		Count:      count,
		Capacity:   capacity,
		Usage:      usage,
		EntryBytes: entryBytes,
		UsedBytes:  uint64(count) * entryBytes,
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

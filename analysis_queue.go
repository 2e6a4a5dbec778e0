package main

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// AnalysisQueue deepens submitted positions in the background. Results
// accumulate in a shared transposition table, so a queued position that
// later shows up in a live game is already partly solved.
type AnalysisQueue struct {
	mu         sync.Mutex
	queue      []analysisTask
	present    map[uint64]struct{}
	hits       map[uint64]int
	processing map[uint64]bool
	results    map[uint64]SearchResultDTO

	hub  *AnalysisHub
	tt   *TranspositionTable
	eval *Evaluator
	stop atomic.Bool
}

type analysisTask struct {
	position    *Position
	created     time.Time
	targetDepth int
}

type analysisQueueEntryDTO struct {
	ID           string `json:"id"`
	Size         int    `json:"size"`
	Ply          int    `json:"ply"`
	Hits         int    `json:"hits"`
	TargetDepth  int    `json:"target_depth"`
	CurrentDepth int    `json:"current_depth"`
	Analyzing    bool   `json:"analyzing"`
}

type analysisPayload struct {
	Event        string           `json:"event"`
	ID           string           `json:"id,omitempty"`
	Result       *SearchResultDTO `json:"result,omitempty"`
	TotalInQueue int              `json:"total_in_queue"`
	UpdatedAt    int64            `json:"updated_at_ms"`
}

func NewAnalysisQueue(config Config) (*AnalysisQueue, error) {
	eval, err := NewEvaluator(config)
	if err != nil {
		return nil, err
	}
	return &AnalysisQueue{
		present:    make(map[uint64]struct{}),
		hits:       make(map[uint64]int),
		processing: make(map[uint64]bool),
		results:    make(map[uint64]SearchResultDTO),
		tt:         NewTranspositionTable(uint64(config.AiTtSize), config.AiTtBuckets),
		eval:       eval,
	}, nil
}

func (q *AnalysisQueue) SetHub(hub *AnalysisHub) {
	q.mu.Lock()
	q.hub = hub
	q.mu.Unlock()
}

// Enqueue adds a position unless it is already queued; repeated submissions
// raise its priority instead.
func (q *AnalysisQueue) Enqueue(pos *Position) {
	config := GetConfig()
	if !config.QueueEnabled {
		return
	}
	hash := pos.Hash()
	q.mu.Lock()
	q.hits[hash]++
	if _, ok := q.present[hash]; ok {
		q.mu.Unlock()
		q.publish("board_hit", hash, nil)
		return
	}
	if config.QueueLimit > 0 && len(q.queue) >= config.QueueLimit {
		q.mu.Unlock()
		log.Warn().Int("limit", config.QueueLimit).Msg("analysis queue full, dropping submission")
		return
	}
	q.queue = append(q.queue, analysisTask{
		position:    pos.Clone(),
		created:     time.Now(),
		targetDepth: config.QueueTargetDepth,
	})
	q.present[hash] = struct{}{}
	q.mu.Unlock()
	q.publish("board_added", hash, nil)
}

func (q *AnalysisQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// Result returns the deepest finished analysis for a position hash.
func (q *AnalysisQueue) Result(hash uint64) (SearchResultDTO, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	result, ok := q.results[hash]
	return result, ok
}

func (q *AnalysisQueue) Snapshot() []analysisQueueEntryDTO {
	q.mu.Lock()
	defer q.mu.Unlock()
	entries := make([]analysisQueueEntryDTO, 0, len(q.queue))
	for _, task := range q.queue {
		hash := task.position.Hash()
		current := 0
		if result, ok := q.results[hash]; ok {
			current = result.Depth
		}
		entries = append(entries, analysisQueueEntryDTO{
			ID:           hashToBoardID(hash),
			Size:         task.position.Size(),
			Ply:          task.position.Ply(),
			Hits:         q.hits[hash],
			TargetDepth:  task.targetDepth,
			CurrentDepth: current,
			Analyzing:    q.processing[hash],
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Hits > entries[j].Hits
	})
	return entries
}

// RequestStop interrupts the running analysis, for example when a live game
// needs the CPU.
func (q *AnalysisQueue) RequestStop() {
	q.stop.Store(true)
}

func (q *AnalysisQueue) ResetStop() {
	q.stop.Store(false)
}

func (q *AnalysisQueue) shouldStop() bool {
	return q.stop.Load()
}

// StartWorkers launches the background workers; they exit when ctx ends.
func (q *AnalysisQueue) StartWorkers(ctx context.Context) {
	config := GetConfig()
	if !config.QueueEnabled {
		return
	}
	workers := config.QueueWorkers
	if workers < 1 {
		workers = 1
	}
	log.Info().Int("workers", workers).Msg("starting analysis queue")
	for i := 0; i < workers; i++ {
		go q.worker(ctx)
	}
}

func (q *AnalysisQueue) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		task, hash, ok := q.pick()
		if !ok {
			time.Sleep(150 * time.Millisecond)
			continue
		}
		q.publish("board_started", hash, nil)
		q.ResetStop()
		done := q.process(ctx, task, hash)
		q.finish(hash, done)
	}
}

func (q *AnalysisQueue) pick() (analysisTask, uint64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	bestIdx := -1
	var bestHash uint64
	for i, task := range q.queue {
		hash := task.position.Hash()
		if q.processing[hash] {
			continue
		}
		if bestIdx == -1 || q.hits[hash] > q.hits[bestHash] {
			bestIdx = i
			bestHash = hash
		}
	}
	if bestIdx == -1 {
		return analysisTask{}, 0, false
	}
	q.processing[bestHash] = true
	return q.queue[bestIdx], bestHash, true
}

func (q *AnalysisQueue) process(ctx context.Context, task analysisTask, hash uint64) bool {
	settings := SettingsFromConfig(GetConfig())
	settings.TimeBudget = 0
	settings.MaxDepth = task.targetDepth
	settings.TT = q.tt
	settings.Evaluator = q.eval
	settings.ShouldStop = q.shouldStop
	settings.OnDepthComplete = func(result SearchResult) {
		dto := searchResultToDTO(result, task.position.Size())
		q.mu.Lock()
		if prev, ok := q.results[hash]; !ok || dto.Depth > prev.Depth {
			q.results[hash] = dto
		}
		q.mu.Unlock()
		q.publish("depth_hit", hash, &dto)
	}
	result, err := Search(ctx, task.position, settings)
	if err != nil {
		log.Error().Err(err).Str("board", hashToBoardID(hash)).Msg("queued analysis failed")
		return true
	}
	done := result.Depth >= task.targetDepth && !q.shouldStop()
	log.Info().
		Str("board", hashToBoardID(hash)).
		Int("depth", result.Depth).
		Int("target", task.targetDepth).
		Int64("nodes", result.Nodes).
		Bool("done", done).
		Msg("queued analysis pass")
	return done
}

func (q *AnalysisQueue) finish(hash uint64, remove bool) {
	q.mu.Lock()
	delete(q.processing, hash)
	event := "board_paused"
	if remove {
		for i, task := range q.queue {
			if task.position.Hash() == hash {
				q.queue = append(q.queue[:i], q.queue[i+1:]...)
				break
			}
		}
		delete(q.present, hash)
		delete(q.hits, hash)
		event = "board_done"
	}
	q.mu.Unlock()
	q.publish(event, hash, nil)
}

func (q *AnalysisQueue) publish(event string, hash uint64, result *SearchResultDTO) {
	q.mu.Lock()
	hub := q.hub
	total := len(q.present)
	q.mu.Unlock()
	if hub == nil {
		return
	}
	hub.Publish(analysisPayload{
		Event:        event,
		ID:           hashToBoardID(hash),
		Result:       result,
		TotalInQueue: total,
		UpdatedAt:    time.Now().UnixMilli(),
	})
}

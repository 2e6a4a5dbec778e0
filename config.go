package main

import (
	"errors"
	"fmt"
	"sync"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	ListenAddr string `json:"listen_addr"`

	BoardSize int `json:"board_size"`
	HalfKomi  int `json:"half_komi"`

	AiMaxDepth            int  `json:"ai_max_depth"`
	AiTimeBudgetMs        int  `json:"ai_time_budget_ms"`
	AiWorkers             int  `json:"ai_workers"`
	AiTtSize              int  `json:"ai_tt_size"`
	AiTtBuckets           int  `json:"ai_tt_buckets"`
	AiRepetitionThreshold int  `json:"ai_repetition_threshold"`
	AiEnableKillerMoves   bool `json:"ai_enable_killer_moves"`
	AiEnableHistoryMoves  bool `json:"ai_enable_history_moves"`
	AiKillerBoost         int  `json:"ai_killer_boost"`
	AiHistoryBoost        int  `json:"ai_history_boost"`
	AiLogSearchStats      bool `json:"ai_log_search_stats"`
	AiStopCheckNodes      int  `json:"ai_stop_check_nodes"`

	AiUseModel   bool    `json:"ai_use_model"`
	AiModelPath  string  `json:"ai_model_path"`
	AiModelBlend float64 `json:"ai_model_blend"`

	QueueEnabled     bool `json:"queue_enabled"`
	QueueWorkers     int  `json:"queue_workers"`
	QueueTargetDepth int  `json:"queue_target_depth"`
	QueueLimit       int  `json:"queue_limit"`

	Weights EvalWeights `json:"weights"`
}

// EvalWeights are the tuning parameters of the heuristic evaluator. They are
// configuration, not constants: relative ordering matters more than the
// exact values.
type EvalWeights struct {
	FlatCount        float64 `json:"flat_count"`
	Reserve          float64 `json:"reserve"`
	CapturedFlat     float64 `json:"captured_flat"`
	CapturedBlocking float64 `json:"captured_blocking"`
	FriendlyFlat     float64 `json:"friendly_flat"`
	FriendlyBlocking float64 `json:"friendly_blocking"`
	RoadGroup        float64 `json:"road_group"`
	LineOccupied     float64 `json:"line_occupied"`
	Center           float64 `json:"center"`
	BlockerContact   float64 `json:"blocker_contact"`
	Mobility         float64 `json:"mobility"`
	PlacementThreat  float64 `json:"placement_threat"`
}

type ConfigStore struct {
	mu     sync.RWMutex
	config Config
}

func DefaultConfig() Config {
	return Config{
		ListenAddr: ":8080",

		BoardSize: 5,
		HalfKomi:  0,

		// Time budget mode: deepen until the budget runs out.
		AiMaxDepth:            12,
		AiTimeBudgetMs:        2000,
		AiWorkers:             1,
		AiTtSize:              1 << 20,
		AiTtBuckets:           4,
		AiRepetitionThreshold: 3,

		// Move ordering helpers. Boosts are modest; huge boosts wreck
		// ordering.
		AiEnableKillerMoves:  true,
		AiEnableHistoryMoves: true,
		AiKillerBoost:        8000,
		AiHistoryBoost:       16,

		AiLogSearchStats: false,
		AiStopCheckNodes: 1024,

		AiUseModel:   false,
		AiModelPath:  "",
		AiModelBlend: 0.5,

		QueueEnabled:     true,
		QueueWorkers:     1,
		QueueTargetDepth: 8,
		QueueLimit:       64,

		Weights: EvalWeights{
			FlatCount:        400.0,
			Reserve:          -6.0,
			CapturedFlat:     40.0,
			CapturedBlocking: 60.0,
			FriendlyFlat:     30.0,
			FriendlyBlocking: 20.0,
			RoadGroup:        -30.0,
			LineOccupied:     50.0,
			Center:           12.0,
			BlockerContact:   15.0,
			Mobility:         4.0,
			PlacementThreat:  150.0,
		},
	}
}

// Validate rejects configurations the engine cannot search under. It runs
// before any search starts; nothing fails mid-search because of config.
func (c Config) Validate() error {
	if _, ok := startingReserves[c.BoardSize]; !ok {
		return fmt.Errorf("%w: board size %d", ErrInvalidConfig, c.BoardSize)
	}
	if c.AiMaxDepth < 1 && c.AiTimeBudgetMs <= 0 {
		return fmt.Errorf("%w: zero depth and no time budget", ErrInvalidConfig)
	}
	if c.AiTtSize < 0 || c.AiTtBuckets < 0 {
		return fmt.Errorf("%w: negative transposition table size", ErrInvalidConfig)
	}
	if c.AiRepetitionThreshold < 2 {
		return fmt.Errorf("%w: repetition threshold %d below 2", ErrInvalidConfig, c.AiRepetitionThreshold)
	}
	if c.AiWorkers < 0 {
		return fmt.Errorf("%w: negative worker count", ErrInvalidConfig)
	}
	if c.AiModelBlend < 0 || c.AiModelBlend > 1 {
		return fmt.Errorf("%w: model blend %f outside [0,1]", ErrInvalidConfig, c.AiModelBlend)
	}
	if c.AiUseModel && c.AiModelPath == "" {
		return fmt.Errorf("%w: model enabled without a model path", ErrInvalidConfig)
	}
	return nil
}

var configStore = &ConfigStore{config: DefaultConfig()}

func GetConfig() Config {
	return configStore.Get()
}

func (c *ConfigStore) Get() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}

func (c *ConfigStore) Update(newConfig Config) error {
	if err := newConfig.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.config = newConfig
	c.mu.Unlock()
	return nil
}

package heatmap

import (
	"sync"
	"time"
)

// Pipeline stage names reported by ScanContext.
const (
	StageCacheLookup = "cache_lookup"
	StageGrid        = "grid_generation"
	StageScoring     = "scoring"
	StageDetection   = "hotspot_detection"
	StagePersist     = "persist"
	StageServe       = "serve_cached"
	StageDone        = "done"
)

// StageTiming records how long one pipeline stage took.
type StageTiming struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// ScanContext tracks one scan request through the pipeline stages.  Every
// request owns its own context, so concurrent scans never observe each
// other's progress; collapsed waiters share the leader's context and may read
// it while the leader is still working.
type ScanContext struct {
	mu        sync.Mutex
	startedAt time.Time
	stageAt   time.Time
	current   string
	stages    []StageTiming
}

func newScanContext() *ScanContext {
	now := time.Now()
	return &ScanContext{startedAt: now, stageAt: now}
}

// enter closes the current stage and opens the next one.
func (c *ScanContext) enter(stage string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeStage()
	c.current = stage
	c.stageAt = time.Now()
}

// finish closes the current stage and marks the pipeline done.
func (c *ScanContext) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeStage()
	c.current = StageDone
}

func (c *ScanContext) closeStage() {
	if c.current == "" || c.current == StageDone {
		return
	}
	c.stages = append(c.stages, StageTiming{Name: c.current, Duration: time.Since(c.stageAt)})
}

// Stage returns the stage currently executing, or StageDone.
func (c *ScanContext) Stage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Stages returns the completed stage timings in execution order.
func (c *ScanContext) Stages() []StageTiming {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]StageTiming, len(c.stages))
	copy(out, c.stages)
	return out
}

// Elapsed is the total time since the request entered the pipeline.
func (c *ScanContext) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.startedAt)
}

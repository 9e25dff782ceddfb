package scopedmem

import (
	"path/filepath"
	"sync"
	"time"
)

// Episode is one completed task's record (§3).
type Episode struct {
	TaskID        string         `json:"task_id"`
	UserIntent    string         `json:"user_intent"`
	Result        string         `json:"result"`
	QualityScore  *float64       `json:"quality_score,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// Episodic is the per-user episodic store: an ordered list of episode
// records persisted to episodic.json (§3, §4.7, §6).
type Episodic struct {
	mu        sync.RWMutex
	file      *jsonFile
	episodes  []Episode
	initialized bool
}

func NewEpisodic(userRoot string) *Episodic {
	return &Episodic{file: newJSONFile(filepath.Join(userRoot, "episodic.json"))}
}

// Initialize loads existing episodes from disk; must be called before first read (§4.7).
func (e *Episodic) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialized {
		return nil
	}
	if err := e.file.load(&e.episodes); err != nil {
		return err
	}
	e.initialized = true
	return nil
}

// Append adds one episode and persists.
func (e *Episodic) Append(ep Episode) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.episodes = append(e.episodes, ep)
	return e.file.save(e.episodes)
}

// List returns up to limit most-recent episodes (0 = all).
func (e *Episodic) List(limit int) []Episode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Episode, len(e.episodes))
	copy(out, e.episodes)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Clear truncates both the in-memory list and the file (§4.7).
func (e *Episodic) Clear() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.episodes = nil
	return e.file.clear()
}

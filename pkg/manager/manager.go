// Package manager implements the Memory Manager (C9): a façade bound to one
// user_id and a storage root that lazily constructs the per-user scoped
// stores, hands out the skill registry and cache supplied in its Config
// (it does not construct those two itself), and owns exactly one Working
// Memory for the active session (§4.9).
package manager

import (
	"context"
	"sync"
	"time"

	"github.com/liliang-cn/agentmem/pkg/logging"
	"github.com/liliang-cn/agentmem/pkg/pool"
	"github.com/liliang-cn/agentmem/pkg/scopedmem"
	"github.com/liliang-cn/agentmem/pkg/systemmem"
	"github.com/liliang-cn/agentmem/pkg/updatedecider"
	"github.com/liliang-cn/agentmem/pkg/workingmem"
)

// DeciderFn classifies one new fact against existing memories — the same
// shape the Pool's ingestion pipeline uses, reused here so the explicit
// memory-card API (§4.9) can call the Update Decider directly against a
// smaller top-5 candidate set rather than the full Add pipeline.
type DeciderFn func(ctx context.Context, newFact string, existing []updatedecider.ExistingMemory) (updatedecider.Decision, error)

// Config wires a Manager's shared, process-wide collaborators.
type Config struct {
	StorageRoot string
	Pool        *pool.Pool
	Decider     DeciderFn
	Logger      logging.Logger

	// Skills and Cache are process-wide singletons (§5 "Shared-resource
	// policy"); share one instance across every Manager in the process.
	Skills *systemmem.SkillRegistry
	Cache  *systemmem.Cache
}

// Manager is bound to exactly one user_id. Per-user state is not shared
// between Manager instances (§5).
type Manager struct {
	cfg    Config
	userID string
	log    logging.Logger

	mu         sync.Mutex
	episodic   *scopedmem.Episodic
	preference *scopedmem.Preference
	plan       *scopedmem.Plan
	working    *workingmem.Memory
	taskID     string
	userIntent string
}

// New binds a Manager to userID; no lazy store is constructed yet.
func New(cfg Config, userID string) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	return &Manager{cfg: cfg, userID: userID, log: cfg.Logger, working: workingmem.New()}
}

// SwitchUser clears every lazy handle; the next access reconstructs them for
// newUserID (§4.9 "User switch").
func (m *Manager) SwitchUser(newUserID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userID = newUserID
	m.episodic = nil
	m.preference = nil
	m.plan = nil
	m.working = workingmem.New()
	m.taskID = ""
	m.userIntent = ""
}

func (m *Manager) userRoot() string {
	return scopedmem.UserRoot(m.cfg.StorageRoot, m.userID)
}

func (m *Manager) ensureEpisodic() (*scopedmem.Episodic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.episodic == nil {
		m.episodic = scopedmem.NewEpisodic(m.userRoot())
	}
	if err := m.episodic.Initialize(); err != nil {
		return nil, err
	}
	return m.episodic, nil
}

func (m *Manager) ensurePreference() (*scopedmem.Preference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.preference == nil {
		m.preference = scopedmem.NewPreference(m.userRoot())
	}
	if err := m.preference.Initialize(); err != nil {
		return nil, err
	}
	return m.preference, nil
}

func (m *Manager) ensurePlan() *scopedmem.Plan {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.plan == nil {
		m.plan = scopedmem.NewPlan(m.userRoot())
	}
	return m.plan
}

// Episodic exposes the per-user episodic store (lazily initialized).
func (m *Manager) Episodic() (*scopedmem.Episodic, error) { return m.ensureEpisodic() }

// Preference exposes the per-user preference store (lazily initialized).
func (m *Manager) Preference() (*scopedmem.Preference, error) { return m.ensurePreference() }

// Plan exposes the per-user plan store (lazily initialized).
func (m *Manager) Plan() *scopedmem.Plan { return m.ensurePlan() }

// Working exposes the single session-scoped Working Memory.
func (m *Manager) Working() *workingmem.Memory { return m.working }

// Skills exposes the process-wide skill registry (§5 "Shared-resource policy").
func (m *Manager) Skills() *systemmem.SkillRegistry { return m.cfg.Skills }

// Cache exposes the process-wide TTL+LRU cache (§5).
func (m *Manager) Cache() *systemmem.Cache { return m.cfg.Cache }

// StartTask clears working memory and stamps the active task (§4.9).
func (m *Manager) StartTask(taskID, userIntent string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.working.Clear()
	m.working.UpdateMetadata("task_id", taskID)
	m.working.UpdateMetadata("user_intent", userIntent)
	m.taskID = taskID
	m.userIntent = userIntent
}

// EndTask optionally appends the task's outcome to the episodic store
// (§4.9). metadata, if non-nil, is attached to the episode record.
func (m *Manager) EndTask(ctx context.Context, result string, saveToEpisodic bool, metadata map[string]any) error {
	if !saveToEpisodic {
		return nil
	}
	ep, err := m.ensureEpisodic()
	if err != nil {
		return err
	}
	m.mu.Lock()
	taskID, intent := m.taskID, m.userIntent
	m.mu.Unlock()
	return ep.Append(scopedmem.Episode{
		TaskID:     taskID,
		UserIntent: intent,
		Result:     result,
		Metadata:   metadata,
		Timestamp:  time.Now(),
	})
}

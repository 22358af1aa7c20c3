package kbstore

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/WessleyAI/minesafe/engine/domain"
	"github.com/WessleyAI/minesafe/engine/prompt"
)

// StaticStore is an in-memory Store. Saved templates live for the process only.
type StaticStore struct {
	mu  sync.RWMutex
	kbs map[string]domain.KnowledgeBase
	now func() time.Time
}

// NewStaticStore creates a StaticStore holding kbs.
func NewStaticStore(kbs []domain.KnowledgeBase) *StaticStore {
	m := make(map[string]domain.KnowledgeBase, len(kbs))
	for _, kb := range kbs {
		m[kb.ID] = kb
	}
	return &StaticStore{kbs: m, now: time.Now}
}

// List implements Store.
func (s *StaticStore) List(_ context.Context) ([]domain.KnowledgeBase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.KnowledgeBase, 0, len(s.kbs))
	for _, kb := range s.kbs {
		out = append(out, kb)
	}
	slices.SortFunc(out, func(a, b domain.KnowledgeBase) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// Get implements Store.
func (s *StaticStore) Get(_ context.Context, id string) (domain.KnowledgeBase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kb, ok := s.kbs[id]
	if !ok {
		return domain.KnowledgeBase{}, fmt.Errorf("kbstore: get %s: %w", id, domain.ErrNotFound)
	}
	return kb, nil
}

// SavePromptTemplate implements Store.
func (s *StaticStore) SavePromptTemplate(_ context.Context, id, template string) (domain.KnowledgeBase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kb, ok := s.kbs[id]
	if !ok {
		return domain.KnowledgeBase{}, fmt.Errorf("kbstore: save prompt %s: %w", id, domain.ErrNotFound)
	}
	kb.PromptTemplate = template
	kb.UpdatedAt = s.now().UTC()
	s.kbs[id] = kb
	return kb, nil
}

// Defaults returns the built-in mining knowledge bases.
func Defaults() []domain.KnowledgeBase {
	return []domain.KnowledgeBase{
		{
			ID:             "unsafe-act-condition",
			Name:           "Unsafe Act / Unsafe Condition",
			Color:          "#ef4444",
			Description:    "Classifies a hazard as an unsafe act (TTA) or an unsafe condition (KTA).",
			PromptTemplate: prompt.DefaultTemplate,
			Content: `Unsafe Act (Tindakan Tidak Aman): a behaviour or action by a person that departs from a safe work procedure and could lead to an incident. Examples include operating equipment without authorization, bypassing guards, not wearing required PPE, and entering a restricted area without permission.

Unsafe Condition (Kondisi Tidak Aman): a physical state of the workplace, equipment, or environment that could cause an incident regardless of who is present. Examples include damaged berms, missing guarding, poor lighting, slippery walkways, and loose rock on a highwall.

When a hazard involves both a person's action and a physical deficiency, classify by the immediate cause that would release the energy. A worker standing under an unscaled highwall is an unsafe act; the unscaled highwall itself is an unsafe condition.

Near Miss: an event that did not result in injury or damage but had the potential to. Report near misses with the unsafe act or condition that caused them.`,
		},
		{
			ID:             "golden-rules",
			Name:           "Mine Golden Rules",
			Color:          "#f59e0b",
			Description:    "Maps a hazard to the fatal-risk golden rule it breaches.",
			PromptTemplate: prompt.DefaultTemplate,
			Content: `Golden Rule 1, Isolation: energy sources must be isolated, locked, and tagged before work on plant or equipment. Try-out must confirm zero energy before hands go inside the danger zone.

Golden Rule 2, Working at Height: any work above 1.8 metres requires fall protection, an approved anchor point, and a rescue plan. Ladders are for access, not as a work platform.

Golden Rule 3, Vehicle Interaction: light vehicles must have positive communication with haul truck operators before entering their operating zone and must keep a minimum 50 metre following distance.

Golden Rule 4, Ground Control: no person may enter an area below an unscaled face or an area with visible cracking until a geotechnical inspection has cleared it.

Golden Rule 5, Confined Space: entry requires a permit, atmospheric testing, a standby person, and a rescue plan in place before the first person enters.`,
		},
		{
			ID:             "risk-matrix",
			Name:           "Risk Matrix",
			Color:          "#3b82f6",
			Description:    "Rates a hazard by likelihood and consequence.",
			PromptTemplate: prompt.DefaultTemplate,
			Content: `Extreme risk: a credible fatality or multiple serious injuries is likely or almost certain. Stop the work immediately and escalate to the mine manager before any restart.

High risk: a serious injury or major equipment damage is possible. Controls must be improved before the task continues, and the supervisor must approve the interim controls.

Medium risk: a medical treatment injury or moderate damage is possible. Existing controls must be verified and improvement actions assigned with a due date.

Low risk: at most a first aid injury or minor damage is expected. Manage through routine procedures and record the hazard in the register.`,
		},
	}
}

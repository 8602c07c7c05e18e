// Package billing stands in for the subscription system: it answers which plan a user is on.
package billing

import (
	"context"
	"sync"

	"drive-service/internal/domain/quota"

	"github.com/google/uuid"
)

// StaticPlans gives every user the default plan unless an assignment says otherwise.
type StaticPlans struct {
	mu          sync.RWMutex
	defaultPlan quota.Plan
	assigned    map[uuid.UUID]quota.Plan
}

// NewStaticPlans creates a plan provider whose fallback is defaultPlan
func NewStaticPlans(defaultPlan quota.Plan) *StaticPlans {
	return &StaticPlans{
		defaultPlan: defaultPlan,
		assigned:    make(map[uuid.UUID]quota.Plan),
	}
}

// PlanFor returns the plan assigned to userID or the default plan.
func (p *StaticPlans) PlanFor(ctx context.Context, userID uuid.UUID) (quota.Plan, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if plan, ok := p.assigned[userID]; ok {
		return plan, nil
	}
	return p.defaultPlan, nil
}

// Assign records plan for userID. It affects ledgers created afterwards; existing ledgers change
// through quota.Ledger.ApplyPlanChange.
func (p *StaticPlans) Assign(userID uuid.UUID, plan quota.Plan) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assigned[userID] = plan
}

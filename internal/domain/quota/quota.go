package quota

import (
	"time"

	"github.com/google/uuid"
)

const (
	nearLimitNumerator   = 9
	nearLimitDenominator = 10
)

// Usage is one user's ledger row.
type Usage struct {
	UserID     uuid.UUID
	PlanID     string
	UsedBytes  int64
	QuotaBytes int64
	UpdatedAt  time.Time
}

// IsNearLimit reports usedBytes >= 0.9 * quotaBytes.
func (u *Usage) IsNearLimit() bool {
	return u.UsedBytes*nearLimitDenominator >= u.QuotaBytes*nearLimitNumerator
}

func (u *Usage) Available() int64 {
	if u.UsedBytes >= u.QuotaBytes {
		return 0
	}
	return u.QuotaBytes - u.UsedBytes
}

// Plan is the billing collaborator's view of a user's entitlement.
type Plan struct {
	ID         string
	QuotaBytes int64
}

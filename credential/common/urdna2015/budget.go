package urdna2015

import (
	"context"
	"time"

	"github.com/pilacorp/go-vc-issuer/credential/common/vcerr"
)

const (
	// DefaultMaxWork caps N-degree hash invocations plus evaluated permutations.
	DefaultMaxWork = 100000
	// DefaultTimeout caps wall time of one canonicalization.
	DefaultTimeout = 5 * time.Second
)

// checkInterval is how many work units pass between clock and context checks.
const checkInterval = 64

// Budget bounds the tie-breaking search. Zero fields take the defaults.
type Budget struct {
	MaxWork int           `koanf:"maxwork"`
	Timeout time.Duration `koanf:"timeout"`
}

// DefaultBudget returns the budget used when none is configured.
func DefaultBudget() Budget {
	return Budget{MaxWork: DefaultMaxWork, Timeout: DefaultTimeout}
}

func (b Budget) normalized() Budget {
	if b.MaxWork <= 0 {
		b.MaxWork = DefaultMaxWork
	}
	if b.Timeout <= 0 {
		b.Timeout = DefaultTimeout
	}
	return b
}

// meter tracks spent work against a Budget.
type meter struct {
	ctx      context.Context
	deadline time.Time
	maxWork  int
	work     int
}

func newMeter(ctx context.Context, budget Budget) *meter {
	budget = budget.normalized()
	return &meter{
		ctx:      ctx,
		deadline: time.Now().Add(budget.Timeout),
		maxWork:  budget.MaxWork,
	}
}

// spend records one unit of work and fails once the budget is exhausted.
func (m *meter) spend() error {
	m.work++
	if m.work > m.maxWork {
		return vcerr.Newf(vcerr.CanonicalizationTimeout, "blank node labelling exceeded %d steps", m.maxWork)
	}
	if m.work%checkInterval != 0 {
		return nil
	}
	if err := m.ctx.Err(); err != nil {
		return vcerr.Wrap(vcerr.CanonicalizationTimeout, err, "canonicalization cancelled")
	}
	if time.Now().After(m.deadline) {
		return vcerr.New(vcerr.CanonicalizationTimeout, "canonicalization exceeded its time budget")
	}
	return nil
}

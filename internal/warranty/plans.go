package warranty

import (
	"context"
	"strings"
)

// Plans answers whether a user is on the paid tier
type Plans interface {
	IsPaid(ctx context.Context, userID string) (bool, error)
}

// StaticPlans is a fixed set of premium users
type StaticPlans struct {
	premium map[string]bool
}

// NewStaticPlans creates a StaticPlans from a list of user IDs
func NewStaticPlans(premium []string) *StaticPlans {
	p := &StaticPlans{premium: make(map[string]bool, len(premium))}
	for _, u := range premium {
		if u = strings.TrimSpace(u); u != "" {
			p.premium[u] = true
		}
	}
	return p
}

func (p *StaticPlans) IsPaid(ctx context.Context, userID string) (bool, error) {
	return p.premium[userID], nil
}

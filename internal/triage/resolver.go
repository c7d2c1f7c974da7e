package triage

import (
	"context"
	"strings"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/repository"
)

// roleMappings maps role-hint keywords to canonical roster roles, in
// priority order.
var roleMappings = []struct {
	keyword   string
	canonical string
}{
	{"sre", "SRE Lead"},
	{"infra", "SRE Lead"},
	{"backend", "Backend Lead"},
	{"api", "Backend Lead"},
	{"support", "Support Manager"},
	{"customer", "Support Manager"},
	{"qa", "QA Lead"},
	{"test", "QA Lead"},
	{"tech", "Tech Lead"},
	{"engineering", "Tech Lead"},
}

// fallbackRoleQuery is the unconditional last-resort lookup. "Support"
// matches both the Support Manager role and the Customer Support
// department.
const fallbackRoleQuery = "Support"

// Resolver maps a free-text role hint to a concrete active handler.
type Resolver struct {
	handlers repository.HandlerRepository
}

// NewResolver creates the resolver.
func NewResolver(handlers repository.HandlerRepository) *Resolver {
	return &Resolver{handlers: handlers}
}

// Resolve returns the handler for a role hint. Keyword-table matches are
// tried in order, then a direct substring lookup of the raw hint, then the
// Support Manager fallback. Returns nil only when no active handler
// matches at any level.
func (r *Resolver) Resolve(ctx context.Context, roleHint string) (*domain.Handler, error) {
	hint := strings.TrimSpace(roleHint)
	if hint != "" {
		lower := strings.ToLower(hint)
		for _, mapping := range roleMappings {
			if !strings.Contains(lower, mapping.keyword) {
				continue
			}
			handler, err := r.handlers.FindActiveByRoleSubstring(ctx, mapping.canonical)
			if err != nil {
				return nil, err
			}
			if handler != nil {
				return handler, nil
			}
		}

		handler, err := r.handlers.FindActiveByRoleSubstring(ctx, hint)
		if err != nil {
			return nil, err
		}
		if handler != nil {
			return handler, nil
		}
	}

	return r.handlers.FindActiveByRoleSubstring(ctx, fallbackRoleQuery)
}

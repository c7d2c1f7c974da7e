package triage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/triage-service/internal/domain"
)

type fakeHandlerRepo struct {
	handlers []domain.Handler
	queries  []string
	failWith error
}

func (f *fakeHandlerRepo) FindActiveByRoleSubstring(ctx context.Context, query string) (*domain.Handler, error) {
	f.queries = append(f.queries, query)
	if f.failWith != nil {
		return nil, f.failWith
	}
	needle := strings.ToLower(query)
	for i := range f.handlers {
		h := &f.handlers[i]
		if !h.Active {
			continue
		}
		haystack := strings.ToLower(h.Role + " " + h.Department + " " + h.Expertise)
		if strings.Contains(haystack, needle) {
			return h, nil
		}
	}
	return nil, nil
}

func (f *fakeHandlerRepo) ListActive(ctx context.Context) ([]domain.Handler, error) {
	return f.handlers, nil
}

func (f *fakeHandlerRepo) GetByID(ctx context.Context, id string) (*domain.Handler, error) {
	for i := range f.handlers {
		if f.handlers[i].ID == id {
			return &f.handlers[i], nil
		}
	}
	return nil, errors.New("not found")
}

func seededRoster() []domain.Handler {
	now := time.Now()
	return []domain.Handler{
		{ID: "h1", Name: "Rajesh Kumar", Email: "rajesh@example.com", Role: "SRE Lead", Department: "Infrastructure", Expertise: "kubernetes,cdn,monitoring", Active: true, CreatedAt: now},
		{ID: "h2", Name: "Priya Sharma", Email: "priya@example.com", Role: "Backend Lead", Department: "Engineering", Expertise: "api,database,payments", Active: true, CreatedAt: now},
		{ID: "h3", Name: "Amit Patel", Email: "amit@example.com", Role: "Support Manager", Department: "Customer Support", Expertise: "escalations,communication", Active: true, CreatedAt: now},
		{ID: "h4", Name: "Anjali Singh", Email: "anjali@example.com", Role: "QA Lead", Department: "Quality", Expertise: "test automation,regression", Active: true, CreatedAt: now},
		{ID: "h5", Name: "Vikram Reddy", Email: "vikram@example.com", Role: "Tech Lead", Department: "Engineering", Expertise: "architecture,performance", Active: true, CreatedAt: now},
	}
}

func TestResolveKeywordMatch(t *testing.T) {
	repo := &fakeHandlerRepo{handlers: seededRoster()}
	resolver := NewResolver(repo)

	handler, err := resolver.Resolve(context.Background(), "Backend Lead should own this")

	require.NoError(t, err)
	require.NotNil(t, handler)
	assert.Equal(t, "priya@example.com", handler.Email)
}

func TestResolveKeywordTable(t *testing.T) {
	repo := &fakeHandlerRepo{handlers: seededRoster()}
	resolver := NewResolver(repo)

	cases := map[string]string{
		"infra saturation":            "rajesh@example.com",
		"sre on call":                 "rajesh@example.com",
		"api regression":              "priya@example.com",
		"customer communication":      "amit@example.com",
		"test coverage gap":           "anjali@example.com",
		"engineering execution owner": "vikram@example.com",
	}
	for hint, email := range cases {
		handler, err := resolver.Resolve(context.Background(), hint)
		require.NoError(t, err, hint)
		require.NotNil(t, handler, hint)
		assert.Equal(t, email, handler.Email, hint)
	}
}

func TestResolveDirectSubstringLookup(t *testing.T) {
	repo := &fakeHandlerRepo{handlers: seededRoster()}
	resolver := NewResolver(repo)

	// No keyword matches "monitoring"; the raw hint still matches the SRE
	// Lead's expertise directly.
	handler, err := resolver.Resolve(context.Background(), "monitoring")

	require.NoError(t, err)
	require.NotNil(t, handler)
	assert.Equal(t, "rajesh@example.com", handler.Email)
}

func TestResolveFallsBackToSupport(t *testing.T) {
	repo := &fakeHandlerRepo{handlers: seededRoster()}
	resolver := NewResolver(repo)

	handler, err := resolver.Resolve(context.Background(), "")

	require.NoError(t, err)
	require.NotNil(t, handler)
	assert.Equal(t, "amit@example.com", handler.Email)
	assert.Equal(t, []string{"Support"}, repo.queries)
}

func TestResolveUnmatchedHintFallsBackToSupport(t *testing.T) {
	repo := &fakeHandlerRepo{handlers: seededRoster()}
	resolver := NewResolver(repo)

	handler, err := resolver.Resolve(context.Background(), "gibberish")

	require.NoError(t, err)
	require.NotNil(t, handler)
	assert.Equal(t, "amit@example.com", handler.Email)
}

func TestResolveEmptyRosterReturnsNil(t *testing.T) {
	repo := &fakeHandlerRepo{}
	resolver := NewResolver(repo)

	handler, err := resolver.Resolve(context.Background(), "Backend Lead")

	require.NoError(t, err)
	assert.Nil(t, handler)
}

func TestResolveSkipsInactiveHandlers(t *testing.T) {
	roster := seededRoster()
	roster[1].Active = false // Backend Lead out
	roster[2].Active = false // Support Manager out
	repo := &fakeHandlerRepo{handlers: roster}
	resolver := NewResolver(repo)

	handler, err := resolver.Resolve(context.Background(), "backend ownership")

	require.NoError(t, err)
	assert.Nil(t, handler)
}

func TestResolvePropagatesLookupError(t *testing.T) {
	repo := &fakeHandlerRepo{failWith: errors.New("roster unavailable")}
	resolver := NewResolver(repo)

	_, err := resolver.Resolve(context.Background(), "backend")

	assert.Error(t, err)
}

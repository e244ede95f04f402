package domain

import (
	"context"
	"time"
)

// AgencyLevel is the trust tier an authenticated agency is classified into.
type AgencyLevel string

const (
	LevelAdmin   AgencyLevel = "ADMIN"
	LevelService AgencyLevel = "SERVICE"
	LevelPartner AgencyLevel = "PARTNER"
	LevelGuest   AgencyLevel = "GUEST"
)

type Agency struct {
	Code  string      `json:"code"`
	Name  string      `json:"name"`
	Level AgencyLevel `json:"level"`
}

// Permissions are derived from an agency level and never set independently.
type Permissions struct {
	Settlement     bool `json:"settlement"`
	MockSettlement bool `json:"mockSettlement"`
	RouteSearch    bool `json:"routeSearch"`
	Administration bool `json:"administration"`
}

// Feature names a permission-gated area of the console.
type Feature string

const (
	FeatureSettlement     Feature = "settlement"
	FeatureMockSettlement Feature = "mockSettlement"
	FeatureRouteSearch    Feature = "routeSearch"
	FeatureAdministration Feature = "administration"
)

func (f Feature) Valid() bool {
	switch f {
	case FeatureSettlement, FeatureMockSettlement, FeatureRouteSearch, FeatureAdministration:
		return true
	default:
		return false
	}
}

// Allows reports whether p grants f. Unknown features are never granted.
func (p Permissions) Allows(f Feature) bool {
	switch f {
	case FeatureSettlement:
		return p.Settlement
	case FeatureMockSettlement:
		return p.MockSettlement
	case FeatureRouteSearch:
		return p.RouteSearch
	case FeatureAdministration:
		return p.Administration
	default:
		return false
	}
}

// SessionRecord is the in-memory view of the authority-issued session.
type SessionRecord struct {
	SessionID    string       `json:"sessionId,omitempty"`
	AgencyCode   string       `json:"agencyCode,omitempty"`
	Agency       *Agency      `json:"agency"`
	Permissions  *Permissions `json:"permissions"`
	IsActive     bool         `json:"isActive"`
	LastActivity time.Time    `json:"lastActivity"`
}

// ActivitySignal is a user-interaction signal that counts as session activity.
type ActivitySignal string

const (
	SignalPointer ActivitySignal = "pointer"
	SignalKey     ActivitySignal = "key"
	SignalScroll  ActivitySignal = "scroll"
	SignalTouch   ActivitySignal = "touch"
)

func (s ActivitySignal) Valid() bool {
	switch s {
	case SignalPointer, SignalKey, SignalScroll, SignalTouch:
		return true
	default:
		return false
	}
}

type CreateResult struct {
	SessionID  string
	AgencyCode string // empty when the authority's companion lookup failed
}

type FetchResult struct {
	AgencyCode string
}

// SessionAuthority issues, validates and clears session handles. Implementations
// never retry; retry policy belongs to the caller.
type SessionAuthority interface {
	Create(ctx context.Context) Outcome[CreateResult]
	Fetch(ctx context.Context, sessionID string) Outcome[FetchResult]
	Clear(ctx context.Context, sessionID string) Outcome[struct{}]
}

// SessionSource exposes the currently held session handle to proxied calls.
type SessionSource interface {
	SessionID() string
}

// Reloader tears down the whole console runtime and builds a fresh one.
type Reloader interface {
	Reload(reason string)
}

type ReloaderFunc func(reason string)

func (f ReloaderFunc) Reload(reason string) { f(reason) }

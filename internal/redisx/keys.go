package redisx

import (
	"strings"
	"time"
)

// Prefix is a registered key namespace. Every cached key in the module is
// built from one of these so invalidation stays in sync with writers.
type Prefix string

const (
	// products:<sha256 of normalized filters> | products:all
	Products Prefix = "products"
	// services:<sha256 of normalized filters> | services:all
	Services Prefix = "services"
	// shops:list:<city>:<state>:<excludeOwnerId>
	ShopsList Prefix = "shops:list"
	// dashboard_stats:<shopId>
	DashboardStats Prefix = "dashboard_stats"
	// reviews:service:<serviceId>
	ServiceReviews Prefix = "reviews:service"
	// sess:<sid>
	Sessions Prefix = "sess"
)

var (
	TTLShopsList      = 5 * time.Minute
	TTLDashboardStats = 5 * time.Minute
	TTLServiceReviews = 10 * time.Minute
)

func (p Prefix) Key(parts ...string) string {
	if len(parts) == 0 {
		return string(p)
	}
	return string(p) + ":" + strings.Join(parts, ":")
}

// All matches every key in the namespace.
func (p Prefix) All() Pattern { return Pattern{prefix: string(p) + ":"} }

// Exact matches the single key built from parts.
func (p Prefix) Exact(parts ...string) Pattern { return Pattern{prefix: p.Key(parts...), exact: true} }

// Pattern selects keys for invalidation.
type Pattern struct {
	prefix string
	exact  bool
}

// Matches applies the pattern to a local key.
func (m Pattern) Matches(key string) bool {
	if m.exact {
		return key == m.prefix
	}
	return strings.HasPrefix(key, m.prefix)
}

// Glob renders the pattern for SCAN MATCH.
func (m Pattern) Glob() string {
	g := escapeGlob(m.prefix)
	if m.exact {
		return g
	}
	return g + "*"
}

func (m Pattern) String() string { return m.Glob() }

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string { return globEscaper.Replace(s) }

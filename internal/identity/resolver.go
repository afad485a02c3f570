package identity

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Request carries every identity source available to a call.
type Request struct {
	PrincipalID    string
	PrincipalEmail string
	QueryEmail     string
}

// Filter is the OR of the identity facets a caller resolved to.
type Filter struct {
	facets []Identity
}

func (f Filter) Empty() bool { return len(f.facets) == 0 }

func (f Filter) Facets() []Identity {
	out := make([]Identity, len(f.facets))
	copy(out, f.facets)
	return out
}

// OwnerID returns the verified facet, if any.
func (f Filter) OwnerID() (snowflake.ID, bool) {
	for _, facet := range f.facets {
		if id, ok := facet.OwnerID(); ok {
			return id, true
		}
	}
	return 0, false
}

func (f Filter) Emails() []string {
	var out []string
	for _, facet := range f.facets {
		if email, ok := facet.Email(); ok {
			out = append(out, email)
		}
	}
	return out
}

// Matches reports whether a stored owner belongs to the filter.
func (f Filter) Matches(ownerID *snowflake.ID, ownerEmail *string) bool {
	for _, facet := range f.facets {
		if id, ok := facet.OwnerID(); ok && ownerID != nil && *ownerID == id {
			return true
		}
		if email, ok := facet.Email(); ok && ownerEmail != nil && strings.EqualFold(*ownerEmail, email) {
			return true
		}
	}
	return false
}

// Scope renders the filter as a gorm condition on owner_id/owner_email.
// An empty filter matches no rows.
func (f Filter) Scope() func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		conds := make([]string, 0, 2)
		args := make([]any, 0, 2)
		if id, ok := f.OwnerID(); ok {
			conds = append(conds, "owner_id = ?")
			args = append(args, int64(id))
		}
		if emails := f.Emails(); len(emails) > 0 {
			conds = append(conds, "owner_email IN ?")
			args = append(args, emails)
		}
		if len(conds) == 0 {
			return db.Where("1 = 0")
		}
		return db.Where("("+strings.Join(conds, " OR ")+")", args...)
	}
}

// Owner is the attribution stamped on a new record.
type Owner struct {
	ID    *snowflake.ID
	Email *string
}

// Resolver turns request identity sources into filters and owners.
type Resolver struct{}

func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve collects every resolvable facet; an unparsable principal id is ignored.
func (r *Resolver) Resolve(req Request) Filter {
	var facets []Identity
	if id, ok := ParseOwnerID(req.PrincipalID); ok {
		facets = append(facets, Verified(id))
	}

	seen := map[string]struct{}{}
	for _, raw := range []string{req.PrincipalEmail, req.QueryEmail} {
		email, ok := NormalizeEmail(raw)
		if !ok {
			continue
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		facets = append(facets, EmailHint(email))
	}
	return Filter{facets: facets}
}

// Owner picks the attribution for a new record: the verified id and the
// principal's email when present, else the email hint.
func (r *Resolver) Owner(req Request) (Owner, bool) {
	var owner Owner
	if id, ok := ParseOwnerID(req.PrincipalID); ok {
		owner.ID = &id
	}
	email, ok := NormalizeEmail(req.PrincipalEmail)
	if !ok {
		email, ok = NormalizeEmail(req.QueryEmail)
	}
	if ok {
		owner.Email = &email
	}
	return owner, owner.ID != nil || owner.Email != nil
}

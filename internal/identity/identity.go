package identity

import (
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// Kind tells which facet an Identity carries.
type Kind int

const (
	KindVerified Kind = iota + 1
	KindEmailHint
)

func (k Kind) String() string {
	switch k {
	case KindVerified:
		return "verified"
	case KindEmailHint:
		return "email"
	default:
		return "unknown"
	}
}

// Identity is either a verified owner id or an email address.
// Email facets may come from the authenticated principal or from an
// unauthenticated hint; both are stored the same way.
type Identity struct {
	kind    Kind
	ownerID snowflake.ID
	email   string
}

func Verified(id snowflake.ID) Identity {
	return Identity{kind: KindVerified, ownerID: id}
}

func EmailHint(addr string) Identity {
	return Identity{kind: KindEmailHint, email: addr}
}

func (i Identity) Kind() Kind { return i.kind }

func (i Identity) OwnerID() (snowflake.ID, bool) {
	return i.ownerID, i.kind == KindVerified
}

func (i Identity) Email() (string, bool) {
	return i.email, i.kind == KindEmailHint
}

// ParseOwnerID accepts a positive snowflake id in its decimal form.
func ParseOwnerID(raw string) (snowflake.ID, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// NormalizeEmail trims and lower-cases addr, rejecting anything that is not a bare address.
func NormalizeEmail(addr string) (string, bool) {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if addr == "" {
		return "", false
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr || parsed.Name != "" {
		return "", false
	}
	at := strings.LastIndex(addr, "@")
	if at <= 0 || at == len(addr)-1 {
		return "", false
	}
	return addr, true
}

package models

// Pagination bounds.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// NormalizePage clamps page to >= 1 and limit to 1..MaxPageLimit, defaulting an unset limit.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

package repository

// SearchMode selects how training obtains hyperparameters.
type SearchMode string

const (
	SearchFresh SearchMode = "fresh"
	SearchReuse SearchMode = "reuse"
)

// IsValidSearchMode returns true if m is a supported mode.
func IsValidSearchMode(m SearchMode) bool {
	switch m {
	case SearchFresh, SearchReuse:
		return true
	default:
		return false
	}
}

// DefaultSearchMode returns the default mode.
func DefaultSearchMode() SearchMode { return SearchFresh }

// NormalizeSearchMode converts a raw string to a valid mode (or default).
func NormalizeSearchMode(s string) SearchMode {
	if s == "" {
		return DefaultSearchMode()
	}
	m := SearchMode(s)
	if IsValidSearchMode(m) {
		return m
	}
	return DefaultSearchMode()
}

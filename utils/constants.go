package utils

// Pagination constants
const (
	// DefaultPageSize is the page size used when none is requested
	DefaultPageSize = 20

	// MaxPageSize is the upper bound for a single listing page
	MaxPageSize = 100
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

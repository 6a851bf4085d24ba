package wipo

import "time"

const (
	PatentscopeBaseURL = "https://patentscope.wipo.int"

	DefaultMaxRetries  = 3
	DefaultLoadTimeout = 60 * time.Second

	// Settle delays compensate for client-side rendering: the detail page
	// keeps painting after network idle, and the national-phase tab loads
	// its table asynchronously after the click.
	pageSettleDelay = 2 * time.Second
	tabSettleDelay  = 3 * time.Second

	maxInventors     = 10
	maxClassCodes    = 100
	maxAbstractRunes = 500
)

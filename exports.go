package patron

import "github.com/xraph/patron/types"

// Re-export common types for convenience so users don't have to import types package.

// Money is re-exported from types package.
type Money = types.Money

// Rate is re-exported from types package.
type Rate = types.Rate

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Money constructors
var (
	USD        = types.USD
	EUR        = types.EUR
	GBP        = types.GBP
	Zero       = types.Zero
	Sum        = types.Sum
	ParseMoney = types.ParseMoney
)

// Re-export Rate constructors
var (
	BasisPoints = types.BasisPoints
	Percent     = types.Percent
)

// Re-export Entity constructor
var NewEntity = types.NewEntity

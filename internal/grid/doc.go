// Package grid holds the pure parts of the reconciliation engine: target grid
// generation, trend-adjusted spread, observed-state collection, diffing and
// stale-order selection. Nothing here places or cancels orders.
package grid

// Package storage provides append-only sinks for engine byproducts.
package storage

import "ammLedger/internal/model"

// SkippedSink receives events the engine declined to apply, so they can be
// inspected or backfilled offline.
type SkippedSink interface {
	Append(event model.SkippedEvent) error
}

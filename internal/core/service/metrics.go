package service

import (
	"time"

	"github.com/rl1809/asset-ledger/internal/core/domain"
)

// MetricsRecorder receives ledger outcomes.
type MetricsRecorder interface {
	MovementCommitted(kind domain.MovementKind, elapsed time.Duration)
	MovementRejected(kind domain.MovementKind, reason string)
	MovementReplayed(kind domain.MovementKind)
	CommitRetried(kind domain.MovementKind)
}

type noopRecorder struct{}

func (noopRecorder) MovementCommitted(domain.MovementKind, time.Duration) {}
func (noopRecorder) MovementRejected(domain.MovementKind, string)         {}
func (noopRecorder) MovementReplayed(domain.MovementKind)                 {}
func (noopRecorder) CommitRetried(domain.MovementKind)                    {}

package repository

import (
	"context"
	"fmt"
	"time"

	"TargetSentinel/internal/model"
)

// Store is the append-only signal repository. Signals are immutable once
// appended; writes for a given company are serialized, reads are not.
type Store interface {
	// Append validates and stores a signal, assigning its ID. Malformed
	// records are rejected whole with model.ErrValidation.
	Append(ctx context.Context, sig model.Signal) (model.Signal, error)

	// Query returns signals with asOf-window <= timestamp <= asOf,
	// ordered by timestamp ascending.
	Query(ctx context.Context, companyID string, asOf time.Time, window time.Duration) ([]model.Signal, error)

	// Companies lists every company with at least one stored signal.
	Companies(ctx context.Context) ([]string, error)

	Close() error
}

// validate enforces the ingestion contract at the repository boundary.
// The engine never silently auto-corrects malformed records.
func validate(sig model.Signal) error {
	if sig.CompanyID == "" {
		return fmt.Errorf("%w: empty company_id", model.ErrValidation)
	}
	if !sig.Type.Valid() {
		return fmt.Errorf("%w: unknown signal_type %q", model.ErrValidation, sig.Type)
	}
	if !sig.Factor.Valid() {
		return fmt.Errorf("%w: unknown factor_category %q", model.ErrValidation, sig.Factor)
	}
	if sig.RawValue < 0 || sig.RawValue > 100 {
		return fmt.Errorf("%w: raw_value %.2f outside [0,100]", model.ErrValidation, sig.RawValue)
	}
	if sig.Confidence < 0 || sig.Confidence > 1 {
		return fmt.Errorf("%w: confidence %.3f outside [0,1]", model.ErrValidation, sig.Confidence)
	}
	if sig.SourceReliability < 0 || sig.SourceReliability > 1 {
		return fmt.Errorf("%w: source_reliability %.3f outside [0,1]", model.ErrValidation, sig.SourceReliability)
	}
	if sig.Timestamp.IsZero() {
		return fmt.Errorf("%w: zero timestamp", model.ErrValidation)
	}
	return nil
}

package services

import (
	"context"

	"github.com/nimasrn/poultry-ledger/internal/model"
	"github.com/nimasrn/poultry-ledger/pkg/logger"
)

type TypeBackfiller interface {
	BackfillType(ctx context.Context) (*model.BackfillResult, error)
}

type MigrationService struct {
	repo TypeBackfiller
}

func NewMigrationService(repo TypeBackfiller) *MigrationService {
	return &MigrationService{repo: repo}
}

// BackfillType gives every untyped transaction a type inferred from its
// status. Running it again matches nothing.
func (s *MigrationService) BackfillType(ctx context.Context) (*model.BackfillResult, error) {
	res, err := s.repo.BackfillType(ctx)
	if err != nil {
		return nil, Internal("migrations.backfill_type", "Server error during migration", err)
	}

	logger.Info("transaction type backfill finished", "matched", res.Matched, "modified", res.Modified)
	return res, nil
}

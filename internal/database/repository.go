package database

import (
	"github.com/uptrace/bun"
	"github.com/veilguard/doppel/internal/database/models"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	member   *models.MemberModel
	analysis *models.AnalysisModel
	cache    *models.CacheModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		member:   models.NewMember(db, logger),
		analysis: models.NewAnalysis(db, logger),
		cache:    models.NewCache(db, logger),
	}
}

// Member returns the member model repository.
func (r *Repository) Member() *models.MemberModel {
	return r.member
}

// Analysis returns the analysis result model repository.
func (r *Repository) Analysis() *models.AnalysisModel {
	return r.analysis
}

// Cache returns the pattern cache model repository.
func (r *Repository) Cache() *models.CacheModel {
	return r.cache
}

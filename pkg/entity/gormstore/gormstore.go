// Package gormstore persists entity alias rows and match edges through
// GORM. Open picks the PostgreSQL or SQLite driver from the DSN; New wraps
// an already-open handle.
package gormstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/filigree-ai/go-filigree/pkg/entity"
)

// MatchModel is the database schema for one match edge.
type MatchModel struct {
	gorm.Model
	EntityID        string `gorm:"uniqueIndex:idx_entity_match"`
	MatchedEntityID string `gorm:"uniqueIndex:idx_entity_match"`
	Confidence      float64
	MatchType       string
	Fields          []byte `gorm:"type:json"`
	SourceEntities  []byte `gorm:"type:json"`
	MatchedAt       time.Time
}

// TableName overrides the table name.
func (MatchModel) TableName() string {
	return "entity_matches"
}

// AliasModel is the database schema for one alias row.
type AliasModel struct {
	gorm.Model
	EntityID  string `gorm:"uniqueIndex:idx_entity_alias"`
	Alias     string `gorm:"uniqueIndex:idx_entity_alias"`
	AliasType string `gorm:"uniqueIndex:idx_entity_alias"`
	Source    string
}

// TableName overrides the table name.
func (AliasModel) TableName() string {
	return "entity_aliases"
}

// Store implements entity.Store on a GORM handle.
type Store struct {
	db *gorm.DB
}

var _ entity.Store = (*Store)(nil)

// New wraps an open GORM handle and migrates the entity tables.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db handle is required")
	}
	if err := db.AutoMigrate(&MatchModel{}, &AliasModel{}); err != nil {
		return nil, fmt.Errorf("migrate entity tables: %w", err)
	}
	return &Store{db: db}, nil
}

// Open opens a database by DSN and returns a migrated store. A
// postgres:// or postgresql:// scheme selects the PostgreSQL driver;
// anything else is treated as a SQLite path.
func Open(dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open entity store: %w", err)
	}
	return New(db)
}

// SaveAliases upserts alias rows keyed by (entity, alias, alias type).
func (s *Store) SaveAliases(ctx context.Context, aliases []entity.AliasRecord) error {
	if len(aliases) == 0 {
		return nil
	}
	models := make([]AliasModel, len(aliases))
	for i, a := range aliases {
		models[i] = AliasModel{
			EntityID:  a.EntityID,
			Alias:     a.Alias,
			AliasType: a.AliasType,
			Source:    a.Source,
		}
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entity_id"}, {Name: "alias"}, {Name: "alias_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"source", "updated_at"}),
	}).Create(&models).Error
}

// SaveMatches upserts match edges keyed by (entity, matched entity).
func (s *Store) SaveMatches(ctx context.Context, matches []entity.MatchRecord) error {
	if len(matches) == 0 {
		return nil
	}
	models := make([]MatchModel, len(matches))
	for i, m := range matches {
		fields, err := json.Marshal(m.Fields)
		if err != nil {
			return fmt.Errorf("marshal match fields: %w", err)
		}
		var sources []byte
		if len(m.SourceEntities) > 0 {
			sources, err = json.Marshal(m.SourceEntities)
			if err != nil {
				return fmt.Errorf("marshal source entities: %w", err)
			}
		}
		matchedAt := m.MatchedAt
		if matchedAt.IsZero() {
			matchedAt = time.Now().UTC()
		}
		models[i] = MatchModel{
			EntityID:        m.EntityID,
			MatchedEntityID: m.MatchedEntityID,
			Confidence:      m.Confidence,
			MatchType:       string(m.MatchType),
			Fields:          fields,
			SourceEntities:  sources,
			MatchedAt:       matchedAt,
		}
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entity_id"}, {Name: "matched_entity_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"confidence", "match_type", "fields", "source_entities", "matched_at", "updated_at"}),
	}).Create(&models).Error
}

// Aliases returns all alias rows for an entity in alias order.
func (s *Store) Aliases(ctx context.Context, entityID string) ([]entity.AliasRecord, error) {
	var models []AliasModel
	if err := s.db.WithContext(ctx).
		Where("entity_id = ?", entityID).
		Order("alias asc, alias_type asc").
		Find(&models).Error; err != nil {
		return nil, err
	}
	records := make([]entity.AliasRecord, len(models))
	for i, m := range models {
		records[i] = entity.AliasRecord{
			EntityID:  m.EntityID,
			Alias:     m.Alias,
			AliasType: m.AliasType,
			Source:    m.Source,
			CreatedAt: m.CreatedAt,
		}
	}
	return records, nil
}

// Matches returns all match edges for an entity, highest confidence first.
func (s *Store) Matches(ctx context.Context, entityID string) ([]entity.MatchRecord, error) {
	var models []MatchModel
	if err := s.db.WithContext(ctx).
		Where("entity_id = ?", entityID).
		Order("confidence desc, matched_entity_id asc").
		Find(&models).Error; err != nil {
		return nil, err
	}
	records := make([]entity.MatchRecord, len(models))
	for i, m := range models {
		rec := entity.MatchRecord{
			EntityID:        m.EntityID,
			MatchedEntityID: m.MatchedEntityID,
			Confidence:      m.Confidence,
			MatchType:       entity.MatchType(m.MatchType),
			MatchedAt:       m.MatchedAt,
		}
		if len(m.Fields) > 0 {
			if err := json.Unmarshal(m.Fields, &rec.Fields); err != nil {
				return nil, fmt.Errorf("unmarshal fields for match %d: %w", m.ID, err)
			}
		}
		if len(m.SourceEntities) > 0 {
			if err := json.Unmarshal(m.SourceEntities, &rec.SourceEntities); err != nil {
				return nil, fmt.Errorf("unmarshal source entities for match %d: %w", m.ID, err)
			}
		}
		records[i] = rec
	}
	return records, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

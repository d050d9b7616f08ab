package activation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/TableCraftLab/tablecraft/backend/internal/audit"
	"github.com/TableCraftLab/tablecraft/backend/internal/geometry"
	"github.com/TableCraftLab/tablecraft/backend/internal/layout"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

// WorkflowError wraps a workflow failure with a dotted operation.reason code.
type WorkflowError struct {
	code string
	err  error
}

func (e *WorkflowError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *WorkflowError) Unwrap() error {
	return e.err
}

// Code returns the dotted error code.
func (e *WorkflowError) Code() string {
	return e.code
}

const (
	opServiceNew = "activation.service.new"
	opSaveDraft  = "activation.save_draft"
	opGetDraft   = "activation.get_draft"
	opGetActive  = "activation.get_active"
	opActivate   = "activation.activate"
)

func newWorkflowError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &WorkflowError{code: code, err: cause}
}

// IDProvider issues identifiers for archive rows.
type IDProvider interface {
	NewID() (string, error)
}

// StatusSeeder initializes or refreshes per-table status rows inside the
// activation transaction.
type StatusSeeder interface {
	Seed(tx *gorm.DB, floorID string, tables []layout.Table, now time.Time) (int, error)
}

// ServiceConfig describes the dependencies of the activation service.
type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider IDProvider
	Registry   StatusSeeder
	AuditSink  audit.Sink
	TenantID   string
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service owns draft persistence and the activation workflow for all floors.
type Service struct {
	db         *gorm.DB
	idProvider IDProvider
	registry   StatusSeeder
	auditSink  audit.Sink
	tenantID   string
	clock      func() time.Time
	logger     *zap.Logger
}

// NewService constructs the activation service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newWorkflowError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newWorkflowError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	tenantID := strings.TrimSpace(cfg.TenantID)
	if tenantID == "" {
		tenantID = "default"
	}

	return &Service{
		db:         cfg.Database,
		idProvider: cfg.IDProvider,
		registry:   cfg.Registry,
		auditSink:  cfg.AuditSink,
		tenantID:   tenantID,
		clock:      clock,
		logger:     logger,
	}, nil
}

// GetDraft loads the floor's saved draft and its version.
func (s *Service) GetDraft(ctx context.Context, floorID layout.FloorID) (layout.Document, int64, error) {
	var row FloorLayoutRow
	err := s.db.WithContext(ctx).Where("floor_id = ?", floorID.String()).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return layout.Document{}, 0, ErrLayoutNotFound
	}
	if err != nil {
		return layout.Document{}, 0, newWorkflowError(opGetDraft, "query_failed", err)
	}
	if row.DraftJSON == "" {
		return layout.Document{}, 0, ErrNoDraft
	}

	var doc layout.Document
	if err := json.Unmarshal([]byte(row.DraftJSON), &doc); err != nil {
		return layout.Document{}, 0, newWorkflowError(opGetDraft, "decode_failed", err)
	}
	return doc, row.Version, nil
}

// GetActive loads the floor's active layout and its version.
func (s *Service) GetActive(ctx context.Context, floorID layout.FloorID) (layout.Document, int64, error) {
	var row FloorLayoutRow
	err := s.db.WithContext(ctx).Where("floor_id = ?", floorID.String()).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && row.ActiveJSON == "") {
		return layout.Document{}, 0, ErrLayoutNotFound
	}
	if err != nil {
		return layout.Document{}, 0, newWorkflowError(opGetActive, "query_failed", err)
	}

	var doc layout.Document
	if err := json.Unmarshal([]byte(row.ActiveJSON), &doc); err != nil {
		return layout.Document{}, 0, newWorkflowError(opGetActive, "decode_failed", err)
	}
	return doc, row.Version, nil
}

// SaveDraft stores doc as the floor's draft and bumps the version. The
// caller's last-known version must match the persisted one; a mismatch is a
// stale editor and is rejected without mutating state. The first save for a
// floor creates the row at version 1.
func (s *Service) SaveDraft(ctx context.Context, floorID layout.FloorID, doc layout.Document, expectVersion int64) (int64, error) {
	draftJSON, err := json.Marshal(doc)
	if err != nil {
		return 0, newWorkflowError(opSaveDraft, "encode_failed", err)
	}

	var newVersion int64
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row FloorLayoutRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("floor_id = ?", floorID.String()).
			Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row = FloorLayoutRow{FloorID: floorID.String()}
		} else if err != nil {
			return newWorkflowError(opSaveDraft, "query_failed", err)
		} else if row.Version != expectVersion {
			return &StaleVersionError{CurrentVersion: row.Version}
		}

		row.DraftJSON = string(draftJSON)
		row.Version++
		row.UpdatedAtSeconds = s.clock().UTC().Unix()
		newVersion = row.Version
		if err := tx.Save(&row).Error; err != nil {
			return newWorkflowError(opSaveDraft, "save_failed", err)
		}
		return nil
	})
	if txErr != nil {
		return 0, txErr
	}

	s.logger.Info("draft saved",
		zap.String("floor_id", floorID.String()),
		zap.Int64("version", newVersion))
	return newVersion, nil
}

// Activate promotes the floor's draft to the active layout. The whole
// promotion runs in one transaction: archive the prior active layout, write
// the draft as active, clear the draft, bump the version, and seed the
// table-status registry. A crash mid-way leaves the prior active layout
// intact. The audit event is emitted after commit, best effort.
func (s *Service) Activate(ctx context.Context, floorID layout.FloorID, expectVersion int64) (layout.ActivationResult, error) {
	now := s.clock().UTC()
	var (
		result layout.ActivationResult
		doc    layout.Document
	)

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row FloorLayoutRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("floor_id = ?", floorID.String()).
			Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrLayoutNotFound
		}
		if err != nil {
			return newWorkflowError(opActivate, "query_failed", err)
		}
		if row.Version != expectVersion {
			return &StaleVersionError{CurrentVersion: row.Version}
		}
		if row.DraftJSON == "" {
			return ErrNoDraft
		}
		if err := json.Unmarshal([]byte(row.DraftJSON), &doc); err != nil {
			return newWorkflowError(opActivate, "decode_failed", err)
		}

		// Never trust the client's last validation.
		if problems := revalidate(doc); len(problems) > 0 {
			return &InvalidLayoutError{Problems: problems}
		}

		if row.ActiveJSON != "" {
			archiveID, err := s.idProvider.NewID()
			if err != nil {
				return newWorkflowError(opActivate, "id_generation_failed", err)
			}
			archive := LayoutArchive{
				ArchiveID:         archiveID,
				FloorID:           row.FloorID,
				Version:           row.Version,
				LayoutJSON:        row.ActiveJSON,
				ArchivedAtSeconds: now.Unix(),
			}
			if err := tx.Create(&archive).Error; err != nil {
				return newWorkflowError(opActivate, "archive_failed", err)
			}
		}

		row.ActiveJSON = row.DraftJSON
		row.DraftJSON = ""
		row.Version++
		row.UpdatedAtSeconds = now.Unix()
		row.ActivatedAtSeconds = now.Unix()
		if err := tx.Save(&row).Error; err != nil {
			return newWorkflowError(opActivate, "save_failed", err)
		}

		initialized := 0
		if s.registry != nil {
			initialized, err = s.registry.Seed(tx, row.FloorID, doc.Tables, now)
			if err != nil {
				return newWorkflowError(opActivate, "status_seed_failed", err)
			}
		}

		result = layout.ActivationResult{
			Version:     row.Version,
			ActivatedAt: now,
			Summary: layout.ActivationSummary{
				TableCount:        len(doc.Tables),
				ZoneCount:         len(doc.Zones),
				TablesInitialized: initialized,
			},
		}
		return nil
	})
	if txErr != nil {
		return layout.ActivationResult{}, txErr
	}

	s.logger.Info("layout activated",
		zap.String("floor_id", floorID.String()),
		zap.Int64("version", result.Version),
		zap.Int("tables", result.Summary.TableCount))

	if s.auditSink != nil {
		entry := audit.Entry{
			TenantID:   s.tenantID,
			Action:     "layout.activated",
			EntityType: "floor_layout",
			EntityID:   floorID.String(),
			Metadata: map[string]any{
				"version":    result.Version,
				"tableCount": result.Summary.TableCount,
				"zoneCount":  result.Summary.ZoneCount,
			},
			Timestamp: now,
		}
		if err := s.auditSink.Record(ctx, entry); err != nil {
			s.logger.Warn("audit event emission failed",
				zap.String("floor_id", floorID.String()), zap.Error(err))
		}
	}

	return result, nil
}

// revalidate re-runs the authoritative checks over a draft: the pairwise
// overlap scan and a capacity floor on every table. Returned problems name
// the offending table ids.
func revalidate(doc layout.Document) []string {
	var problems []string

	for _, table := range doc.Tables {
		if table.Capacity < 1 {
			problems = append(problems, fmt.Sprintf("table %s has invalid capacity %d", table.ID, table.Capacity))
		}
	}

	flagged := map[string]struct{}{}
	for i := 0; i < len(doc.Tables); i++ {
		for j := i + 1; j < len(doc.Tables); j++ {
			if geometry.Overlaps(doc.Tables[i].Rect(), doc.Tables[j].Rect()) {
				flagged[doc.Tables[i].ID] = struct{}{}
				flagged[doc.Tables[j].ID] = struct{}{}
			}
		}
		for _, fixture := range doc.Fixtures {
			if geometry.Overlaps(doc.Tables[i].Rect(), fixture.Rect()) {
				flagged[doc.Tables[i].ID] = struct{}{}
			}
		}
	}
	if len(flagged) > 0 {
		ids := make([]string, 0, len(flagged))
		for id := range flagged {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		problems = append(problems, fmt.Sprintf("overlapping tables: %s", strings.Join(ids, ", ")))
	}

	return problems
}

package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/storeops/internal/catalog"
	"github.com/odyssey-erp/storeops/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetDocument(ctx context.Context, id int64) (Document, error)
}

// CatalogPort checks that referenced stores and products exist.
type CatalogPort interface {
	Exists(ctx context.Context, kind catalog.Kind, id int64) (bool, error)
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	AllowNegativeStock bool
}

// Service coordinates stock document operations.
type Service struct {
	repo     RepositoryPort
	catalog  CatalogPort
	onCommit CommitHandler
	logger   *slog.Logger
	validate *validator.Validate
	allowNeg bool
	now      func() time.Time
}

// NewService builds Service. catalog and onCommit may be nil.
func NewService(repo RepositoryPort, catalog CatalogPort, onCommit CommitHandler, cfg ServiceConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &Service{
		repo:     repo,
		catalog:  catalog,
		onCommit: onCommit,
		logger:   logger,
		validate: v,
		allowNeg: cfg.AllowNegativeStock,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Get returns a document with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Document, error) {
	return s.repo.GetDocument(ctx, id)
}

// Create stores a new draft document and its lines atomically.
func (s *Service) Create(ctx context.Context, input CreateInput) (Document, error) {
	ve := shared.NewValidationError()
	s.structErrors(input, ve)
	lines := s.lines(input.Kind, input.Lines, ve)
	if !ve.Has("store_id") {
		if err := s.checkRef(ctx, catalog.KindStore, "store_id", input.StoreID, ve); err != nil {
			return Document{}, err
		}
	}
	if err := s.checkProducts(ctx, lines, ve); err != nil {
		return Document{}, err
	}
	if err := ve.Err(); err != nil {
		return Document{}, err
	}

	doc := Document{
		Code:    newCode(input.Kind),
		Kind:    input.Kind,
		StoreID: input.StoreID,
		Stage:   shared.StageDraft,
		Note:    strings.TrimSpace(input.Note),
		Lines:   lines,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		doc, err = tx.InsertDocument(ctx, doc)
		return err
	})
	if err != nil {
		return Document{}, err
	}
	s.logger.Info("stock document created", slog.String("code", doc.Code), slog.String("kind", string(doc.Kind)), slog.Int64("store_id", doc.StoreID))
	return doc, nil
}

// UpdateDraft replaces the note and lines of a draft. Concurrent edits are
// not locked against each other; the last write wins.
func (s *Service) UpdateDraft(ctx context.Context, id int64, input UpdateInput) (Document, error) {
	ve := shared.NewValidationError()
	s.structErrors(input, ve)

	var doc Document
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		doc, err = tx.GetDocument(ctx, id)
		if err != nil {
			return err
		}
		if !doc.Stage.Editable() {
			return ErrNotEditable
		}
		lines := s.lines(doc.Kind, input.Lines, ve)
		if err := s.checkProducts(ctx, lines, ve); err != nil {
			return err
		}
		if err := ve.Err(); err != nil {
			return err
		}
		doc.Note = strings.TrimSpace(input.Note)
		doc.Lines = lines
		if doc.UpdatedAt, err = tx.UpdateNote(ctx, id, doc.Note); err != nil {
			return err
		}
		return tx.ReplaceLines(ctx, id, lines)
	})
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Delete removes a draft document.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		doc, err := tx.GetDocument(ctx, id)
		if err != nil {
			return err
		}
		if !doc.Stage.Editable() {
			return ErrNotEditable
		}
		return tx.DeleteDocument(ctx, id)
	})
}

// Commit approves a draft or checked document and applies its lines to
// stock balances in the same transaction. Adjustments add their delta;
// physical counts replace the balance with the counted quantity. Lines
// that change a balance append one product transaction each; the others
// touch nothing. The document and balance rows stay locked until the
// transaction ends.
func (s *Service) Commit(ctx context.Context, id int64) (Document, error) {
	var doc Document
	committedAt := s.now()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		doc, err = tx.GetDocument(ctx, id)
		if err != nil {
			return err
		}
		next, err := doc.Stage.Approve()
		if err != nil {
			return err
		}
		totals := DocumentTotals{QtyIn: decimal.Zero, QtyOut: decimal.Zero}
		doc.Movements = make([]Movement, 0, len(doc.Lines))
		for _, line := range doc.Lines {
			before, err := tx.LockBalance(ctx, doc.StoreID, line.ProductID)
			if err != nil {
				return err
			}
			m := applyLine(doc.Kind, before, line)
			if m.Delta.IsZero() {
				doc.Movements = append(doc.Movements, m)
				continue
			}
			if m.After.IsNegative() && !s.allowNeg {
				return fmt.Errorf("%w: product %d would drop to %s", ErrNegativeStock, line.ProductID, m.After)
			}
			stored, err := tx.ApplyDelta(ctx, doc.StoreID, line.ProductID, m.Delta)
			if err != nil {
				return err
			}
			if !stored.Equal(m.After) {
				return fmt.Errorf("%w: balance of product %d changed during commit", shared.ErrConflict, line.ProductID)
			}
			if err := tx.InsertMovement(ctx, doc, m, committedAt); err != nil {
				return err
			}
			if m.Delta.IsPositive() {
				totals.QtyIn = totals.QtyIn.Add(m.Delta)
			} else {
				totals.QtyOut = totals.QtyOut.Sub(m.Delta)
			}
			doc.Movements = append(doc.Movements, m)
		}
		if err := tx.MarkCommitted(ctx, id, next, committedAt); err != nil {
			return err
		}
		doc.Stage = next
		doc.CommittedAt = &committedAt
		doc.UpdatedAt = committedAt
		doc.Totals = &totals
		return nil
	})
	if err != nil {
		return Document{}, err
	}
	s.logger.Info("stock document committed", slog.String("code", doc.Code), slog.Int("lines", len(doc.Lines)))

	if s.onCommit != nil {
		evt := DocumentCommittedEvent{
			DocumentID:  doc.ID,
			Code:        doc.Code,
			Kind:        doc.Kind,
			StoreID:     doc.StoreID,
			Movements:   doc.Movements,
			CommittedAt: committedAt,
		}
		if err := s.onCommit.HandleDocumentCommitted(ctx, evt); err != nil {
			s.logger.Warn("commit handler failed", slog.String("code", doc.Code), slog.Any("error", err))
		}
	}
	return doc, nil
}

// applyLine computes the balance change of one committed line.
func applyLine(kind Kind, before decimal.Decimal, line Line) Movement {
	m := Movement{ProductID: line.ProductID, Before: before}
	if kind == KindPhysicalCount {
		m.After = line.Quantity
		m.Delta = line.Quantity.Sub(before)
		return m
	}
	m.Delta = line.Quantity
	m.After = before.Add(line.Quantity)
	return m
}

func newCode(kind Kind) string {
	return kind.codePrefix() + "-" + strings.ToUpper(uuid.NewString()[:8])
}

// lines validates line quantities for kind and converts the inputs.
func (s *Service) lines(kind Kind, in []LineInput, ve *shared.ValidationError) []Line {
	seen := make(map[int64]bool, len(in))
	out := make([]Line, 0, len(in))
	for i, l := range in {
		field := "lines[" + strconv.Itoa(i) + "]"
		switch {
		case kind == KindAdjustment && l.Quantity.IsZero():
			ve.Add(field+".quantity", "must not be zero")
		case kind == KindPhysicalCount && l.Quantity.IsNegative():
			ve.Add(field+".quantity", "must not be negative")
		}
		if l.ProductID > 0 && seen[l.ProductID] {
			ve.Add(field+".product_id", "product appears more than once")
		}
		seen[l.ProductID] = true
		out = append(out, Line{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return out
}

func (s *Service) checkProducts(ctx context.Context, lines []Line, ve *shared.ValidationError) error {
	for i, l := range lines {
		if l.ProductID <= 0 {
			continue
		}
		field := "lines[" + strconv.Itoa(i) + "].product_id"
		if err := s.checkRef(ctx, catalog.KindProduct, field, l.ProductID, ve); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) checkRef(ctx context.Context, kind catalog.Kind, field string, id int64, ve *shared.ValidationError) error {
	if s.catalog == nil || id <= 0 {
		return nil
	}
	ok, err := s.catalog.Exists(ctx, kind, id)
	if err != nil {
		return fmt.Errorf("inventory: check %s: %w", kind, err)
	}
	if !ok {
		ve.Add(field, "selected "+string(kind)+" does not exist")
	}
	return nil
}

func (s *Service) structErrors(in any, ve *shared.ValidationError) {
	err := s.validate.Struct(in)
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		ve.Add("general", err.Error())
		return
	}
	for _, fe := range fieldErrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		ve.Add(field, fieldMessage(fe))
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be at least " + fe.Param()
	case "min":
		return "must have at least " + fe.Param() + " entries"
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must have at most " + fe.Param() + " entries"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	}
	return "is invalid"
}

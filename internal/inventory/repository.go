package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/storeops/internal/catalog"
	"github.com/odyssey-erp/storeops/internal/platform/db"
	"github.com/odyssey-erp/storeops/internal/shared"
)

// Repository persists stock documents in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	InsertDocument(ctx context.Context, doc Document) (Document, error)
	// GetDocument loads the document and locks it until the transaction ends.
	GetDocument(ctx context.Context, id int64) (Document, error)
	UpdateNote(ctx context.Context, id int64, note string) (time.Time, error)
	ReplaceLines(ctx context.Context, id int64, lines []Line) error
	DeleteDocument(ctx context.Context, id int64) error
	// MarkCommitted fails with shared.ErrInvalidTransition when the document
	// is no longer draft or checked.
	MarkCommitted(ctx context.Context, id int64, stage shared.Stage, at time.Time) error
	// LockBalance returns the on-hand quantity (zero without a row) and
	// locks an existing row until the transaction ends.
	LockBalance(ctx context.Context, storeID, productID int64) (decimal.Decimal, error)
	// ApplyDelta adds delta to the balance and returns the stored result.
	ApplyDelta(ctx context.Context, storeID, productID int64, delta decimal.Decimal) (decimal.Decimal, error)
	InsertMovement(ctx context.Context, doc Document, m Movement, at time.Time) error
}

type txRepository struct {
	tx db.DBTX
}

// WithTx executes the callback inside a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// GetDocument loads a document and its lines outside a transaction.
func (r *Repository) GetDocument(ctx context.Context, id int64) (Document, error) {
	if r == nil || r.pool == nil {
		return Document{}, errors.New("inventory repository not initialised")
	}
	return getDocument(ctx, r.pool, getDocumentSQL, id)
}

func getDocument(ctx context.Context, conn db.DBTX, query string, id int64) (Document, error) {
	var doc Document
	err := conn.QueryRow(ctx, query, id).Scan(
		&doc.ID, &doc.Code, &doc.Kind, &doc.StoreID, &doc.Stage, &doc.Note,
		&doc.CreatedAt, &doc.UpdatedAt, &doc.CommittedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrDocumentNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("inventory: get document: %w", err)
	}
	rows, err := conn.Query(ctx, listLinesSQL, id)
	if err != nil {
		return Document{}, fmt.Errorf("inventory: list lines: %w", err)
	}
	doc.Lines, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Line, error) {
		var l Line
		err := row.Scan(&l.ProductID, &l.Quantity)
		return l, err
	})
	if err != nil {
		return Document{}, fmt.Errorf("inventory: scan lines: %w", err)
	}
	return doc, nil
}

func (r *txRepository) InsertDocument(ctx context.Context, doc Document) (Document, error) {
	err := r.tx.QueryRow(ctx, insertDocumentSQL, doc.Code, doc.Kind, doc.StoreID, doc.Stage, doc.Note).
		Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return Document{}, translate(err)
	}
	if err := r.ReplaceLines(ctx, doc.ID, doc.Lines); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (r *txRepository) GetDocument(ctx context.Context, id int64) (Document, error) {
	return getDocument(ctx, r.tx, lockDocumentSQL, id)
}

func (r *txRepository) UpdateNote(ctx context.Context, id int64, note string) (time.Time, error) {
	var updated time.Time
	err := r.tx.QueryRow(ctx, updateDocumentSQL, id, note).Scan(&updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, ErrDocumentNotFound
	}
	return updated, err
}

func (r *txRepository) ReplaceLines(ctx context.Context, id int64, lines []Line) error {
	if _, err := r.tx.Exec(ctx, deleteLinesSQL, id); err != nil {
		return fmt.Errorf("inventory: clear lines: %w", err)
	}
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, insertLineSQL, id, line.ProductID, line.Quantity); err != nil {
			return translate(err)
		}
	}
	return nil
}

func (r *txRepository) DeleteDocument(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, deleteDocumentSQL, id)
	if err != nil {
		return fmt.Errorf("inventory: delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (r *txRepository) MarkCommitted(ctx context.Context, id int64, stage shared.Stage, at time.Time) error {
	tag, err := r.tx.Exec(ctx, markCommittedSQL, id, stage, at)
	if err != nil {
		return fmt.Errorf("inventory: mark committed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: document %d is no longer open", shared.ErrInvalidTransition, id)
	}
	return nil
}

func (r *txRepository) LockBalance(ctx context.Context, storeID, productID int64) (decimal.Decimal, error) {
	var qty decimal.Decimal
	err := r.tx.QueryRow(ctx, lockBalanceSQL, storeID, productID).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	return qty, err
}

func (r *txRepository) ApplyDelta(ctx context.Context, storeID, productID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	var qty decimal.Decimal
	if err := r.tx.QueryRow(ctx, applyDeltaSQL, storeID, productID, delta).Scan(&qty); err != nil {
		return decimal.Zero, translate(err)
	}
	return qty, nil
}

func (r *txRepository) InsertMovement(ctx context.Context, doc Document, m Movement, at time.Time) error {
	t := ledgerEntry(doc, m, at)
	_, err := r.tx.Exec(ctx, insertMovementSQL, t.StoreID, t.ProductID, t.Type, t.QtyIn, t.QtyOut, t.RefCode, t.OccurredAt)
	return err
}

// ledgerEntry is the product transaction a committed movement appends.
func ledgerEntry(doc Document, m Movement, at time.Time) catalog.ProductTransaction {
	t := catalog.ProductTransaction{
		StoreID:    doc.StoreID,
		ProductID:  m.ProductID,
		Type:       doc.Kind.MovementType(),
		QtyIn:      decimal.Zero,
		QtyOut:     decimal.Zero,
		RefCode:    doc.Code,
		OccurredAt: at,
	}
	if m.Delta.IsPositive() {
		t.QtyIn = m.Delta
	} else {
		t.QtyOut = m.Delta.Neg()
	}
	return t
}

// translate maps constraint violations to client errors.
func translate(err error) error {
	switch {
	case db.IsForeignKeyViolation(err):
		return shared.FieldError("lines", "references an unknown store or product")
	case db.IsUniqueViolation(err):
		return fmt.Errorf("inventory: duplicate document code: %w", shared.ErrConflict)
	}
	return err
}

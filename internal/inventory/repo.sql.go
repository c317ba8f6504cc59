package inventory

const insertDocumentSQL = `INSERT INTO stock_documents (code, kind, store_id, stage, note)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at, updated_at`

const getDocumentSQL = `SELECT id, code, kind, store_id, stage, note, created_at, updated_at, committed_at
FROM stock_documents
WHERE id = $1`

// lockDocumentSQL holds the document row until the transaction ends so two
// commits of the same document serialize.
const lockDocumentSQL = getDocumentSQL + `
FOR UPDATE`

const listLinesSQL = `SELECT product_id, quantity
FROM stock_document_lines
WHERE document_id = $1
ORDER BY id`

const updateDocumentSQL = `UPDATE stock_documents
SET note = $2, updated_at = NOW()
WHERE id = $1
RETURNING updated_at`

const deleteLinesSQL = `DELETE FROM stock_document_lines WHERE document_id = $1`

const insertLineSQL = `INSERT INTO stock_document_lines (document_id, product_id, quantity)
VALUES ($1, $2, $3)`

const deleteDocumentSQL = `DELETE FROM stock_documents WHERE id = $1`

const markCommittedSQL = `UPDATE stock_documents
SET stage = $2, committed_at = $3, updated_at = $3
WHERE id = $1 AND stage IN ('draft', 'checked')`

const lockBalanceSQL = `SELECT quantity FROM stock_balances
WHERE store_id = $1 AND product_id = $2
FOR UPDATE`

// applyDeltaSQL adds to the stored quantity rather than overwriting it, so
// a writer that raced past the row lock (the row did not exist yet) is
// still counted.
const applyDeltaSQL = `INSERT INTO stock_balances (store_id, product_id, quantity, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (store_id, product_id)
DO UPDATE SET quantity = stock_balances.quantity + EXCLUDED.quantity, updated_at = EXCLUDED.updated_at
RETURNING quantity`

const insertMovementSQL = `INSERT INTO product_transactions (store_id, product_id, type, qty_in, qty_out, ref_code, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

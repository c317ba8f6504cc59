package reportquery

// PurchaseFilter narrows purchase history.
type PurchaseFilter struct {
	Range      Range
	SupplierID *int64
	StoreID    *int64
	Stages     []string
}

// CollectionFilter narrows collection summaries.
type CollectionFilter struct {
	Range   Range
	StoreID *int64
}

func applyPurchaseFilter(b *Builder, f PurchaseFilter) {
	if !f.Range.From.IsZero() {
		b.Where("pu.ordered_at >= " + b.Bind(f.Range.From))
	}
	if !f.Range.To.IsZero() {
		b.Where("pu.ordered_at < " + b.Bind(f.Range.To))
	}
	if f.SupplierID != nil {
		b.Where("pu.supplier_id = " + b.Bind(*f.SupplierID))
	}
	if f.StoreID != nil {
		b.Where("pu.store_id = " + b.Bind(*f.StoreID))
	}
	if len(f.Stages) > 0 {
		b.Where("pu.stage = ANY(" + b.Bind(f.Stages) + ")")
	}
}

// Purchases pages through purchase orders, newest first, with their line
// counts.
func Purchases(f PurchaseFilter, limit, offset int) Statement {
	b := newBuilder("purchases pu JOIN suppliers sp ON sp.id = pu.supplier_id"+
		" JOIN stores st ON st.id = pu.store_id"+
		" LEFT JOIN purchase_items pi ON pi.purchase_id = pu.id", nil)
	b.Select(
		"pu.id",
		"pu.code",
		"pu.ordered_at",
		"sp.id",
		"sp.name",
		"st.id",
		"st.name",
		"pu.stage",
		"pu.total",
		"COUNT(pi.id) AS item_count",
	)
	applyPurchaseFilter(b, f)
	b.GroupBy("pu.id", "sp.id", "sp.name", "st.id", "st.name")
	b.OrderBy("pu.ordered_at DESC", "pu.id DESC")
	b.Page(limit, offset)
	return b.Statement("id", "code", "ordered_at", "supplier_id", "supplier_name", "store_id", "store_name", "stage", "total", "item_count")
}

// PurchaseCount counts the rows Purchases pages through.
func PurchaseCount(f PurchaseFilter) Statement {
	b := newBuilder("purchases pu", nil)
	b.Select("COUNT(*)")
	applyPurchaseFilter(b, f)
	return b.Statement("count")
}

func collectionWhere(b *Builder, f CollectionFilter) string {
	where := "col.collected_at >= " + b.Bind(f.Range.From) + " AND col.collected_at < " + b.Bind(f.Range.To)
	if f.StoreID != nil {
		where += " AND col.store_id = " + b.Bind(*f.StoreID)
	}
	return where
}

// Collections totals collection lines per payment type. Active payment
// types are listed even without collections in the range.
func Collections(f CollectionFilter) Statement {
	b := newBuilder("", nil)
	b.From("payment_types pt LEFT JOIN (SELECT cl.payment_type_id, SUM(cl.amount) AS amount, COUNT(DISTINCT col.id) AS receipts" +
		" FROM collection_lines cl JOIN collections col ON col.id = cl.collection_id WHERE " + collectionWhere(b, f) +
		" GROUP BY cl.payment_type_id) x ON x.payment_type_id = pt.id")
	b.Select("pt.id", "pt.name", "COALESCE(x.amount, 0) AS amount", "COALESCE(x.receipts, 0) AS receipts")
	b.Where("(pt.active OR x.payment_type_id IS NOT NULL)")
	b.OrderBy("pt.id ASC")
	return b.Statement("payment_type_id", "payment_type_name", "amount", "receipts")
}

// CollectionReceipts counts distinct receipts in the range.
func CollectionReceipts(f CollectionFilter) Statement {
	b := newBuilder("collections col", nil)
	b.Select("COUNT(*)")
	b.Where(collectionWhere(b, f))
	return b.Statement("count")
}

package bills

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/gastrodesk/gastrodesk/internal/catalog"
	"github.com/gastrodesk/gastrodesk/internal/disputes"
	"github.com/gastrodesk/gastrodesk/internal/dlc"
	"github.com/gastrodesk/gastrodesk/internal/extraction"
	"github.com/gastrodesk/gastrodesk/internal/ledger"
	"github.com/gastrodesk/gastrodesk/internal/units"
)

var errInjected = errors.New("injected failure")

type memoryRepo struct {
	bills       map[int64]Bill
	lineItems   map[int64][]LineItem
	stock       map[int64]catalog.Product
	movements   []ledger.StockMovement
	dlcEntries  []dlc.Entry
	disputes    []disputes.Dispute
	nextID      int64
	invalidated int
	failDLC     bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		bills:     make(map[int64]Bill),
		lineItems: make(map[int64][]LineItem),
		stock:     make(map[int64]catalog.Product),
	}
}

func (r *memoryRepo) addProduct(name string, unit units.Unit, qty decimal.Decimal) catalog.Product {
	r.nextID++
	p := catalog.Product{ID: r.nextID, Name: name, Unit: unit, Quantity: qty, Trackable: true}
	r.stock[p.ID] = p
	return p
}

func (r *memoryRepo) snapshot() *memoryRepo {
	copied := newMemoryRepo()
	copied.nextID = r.nextID
	copied.invalidated = r.invalidated
	copied.failDLC = r.failDLC
	for k, v := range r.bills {
		copied.bills[k] = v
	}
	for k, v := range r.lineItems {
		copied.lineItems[k] = append([]LineItem(nil), v...)
	}
	for k, v := range r.stock {
		copied.stock[k] = v
	}
	copied.movements = append([]ledger.StockMovement(nil), r.movements...)
	copied.dlcEntries = append([]dlc.Entry(nil), r.dlcEntries...)
	copied.disputes = append([]disputes.Dispute(nil), r.disputes...)
	return copied
}

// WithTx restores the snapshot on failure so tests observe the same
// all-or-nothing behaviour as the SQL transaction.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	saved := r.snapshot()
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		*r = *saved
		return err
	}
	return nil
}

func (r *memoryRepo) Insert(ctx context.Context, bill *Bill, items []LineItem) error {
	r.nextID++
	bill.ID = r.nextID
	bill.CreatedAt = time.Now().UTC()
	r.bills[bill.ID] = *bill
	for i := range items {
		r.nextID++
		items[i].ID = r.nextID
		items[i].BillID = bill.ID
	}
	r.lineItems[bill.ID] = append([]LineItem(nil), items...)
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Bill, []LineItem, error) {
	b, ok := r.bills[id]
	if !ok {
		return Bill{}, nil, ErrBillNotFound
	}
	return b, r.lineItems[id], nil
}

func (r *memoryRepo) List(ctx context.Context, limit int) ([]Bill, error) {
	var out []Bill
	for _, b := range r.bills {
		out = append(out, b)
	}
	return out, nil
}

// memoryMatcher serves the ProductMatcher port from the same stock map.
type memoryMatcher struct {
	repo *memoryRepo
}

func (m *memoryMatcher) Match(ctx context.Context, name string) (*catalog.Candidate, error) {
	candidates := make([]catalog.Candidate, 0, len(m.repo.stock))
	for _, p := range m.repo.stock {
		candidates = append(candidates, catalog.Candidate{ID: p.ID, Name: p.Name, Unit: p.Unit, Quantity: p.Quantity})
	}
	return catalog.BestMatch(name, candidates, catalog.DefaultMatchThreshold), nil
}

func (m *memoryMatcher) Get(ctx context.Context, id int64) (catalog.Product, error) {
	p, ok := m.repo.stock[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

func (m *memoryMatcher) InvalidateSearches(ctx context.Context) {
	m.repo.invalidated++
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, &memoryMatcher{repo: repo}, nil)
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) GetBillForUpdate(ctx context.Context, id int64) (Bill, error) {
	b, ok := tx.repo.bills[id]
	if !ok {
		return Bill{}, ErrBillNotFound
	}
	return b, nil
}

func (tx *memoryTx) FinalizeBill(ctx context.Context, bill *Bill) error {
	bill.UpdatedAt = time.Now().UTC()
	tx.repo.bills[bill.ID] = *bill
	return nil
}

func (tx *memoryTx) ReplaceLineItems(ctx context.Context, billID int64, items []LineItem) error {
	for i := range items {
		tx.repo.nextID++
		items[i].ID = tx.repo.nextID
		items[i].BillID = billID
	}
	tx.repo.lineItems[billID] = append([]LineItem(nil), items...)
	return nil
}

func (tx *memoryTx) EnsureProduct(ctx context.Context, draft catalog.Draft) (catalog.Product, bool, error) {
	folded := catalog.Fold(draft.Name)
	for _, p := range tx.repo.stock {
		if catalog.Fold(p.Name) == folded {
			return p, false, nil
		}
	}
	tx.repo.nextID++
	p := catalog.Product{
		ID:        tx.repo.nextID,
		Name:      draft.Name,
		Unit:      draft.Unit,
		UnitPrice: draft.UnitPrice,
		Trackable: true,
	}
	tx.repo.stock[p.ID] = p
	return p, true, nil
}

func (tx *memoryTx) GetProductForUpdate(ctx context.Context, id int64) (catalog.Product, error) {
	p, ok := tx.repo.stock[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

func (tx *memoryTx) UpdateProductQuantity(ctx context.Context, id int64, quantity, totalValue decimal.Decimal) error {
	p := tx.repo.stock[id]
	p.Quantity = quantity
	p.TotalValue = totalValue
	tx.repo.stock[id] = p
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, movement *ledger.StockMovement) error {
	movement.ID = int64(len(tx.repo.movements) + 1)
	tx.repo.movements = append(tx.repo.movements, *movement)
	return nil
}

func (tx *memoryTx) InsertDLCEntry(ctx context.Context, entry *dlc.Entry) error {
	if tx.repo.failDLC {
		return errInjected
	}
	entry.ID = int64(len(tx.repo.dlcEntries) + 1)
	tx.repo.dlcEntries = append(tx.repo.dlcEntries, *entry)
	return nil
}

func (tx *memoryTx) InsertDispute(ctx context.Context, input disputes.CreateInput) (disputes.Dispute, error) {
	tx.repo.nextID++
	d := disputes.Dispute{
		ID:     tx.repo.nextID,
		BillID: input.BillID,
		Type:   input.Type,
		Status: disputes.StatusOpen,
		Amount: input.Amount,
		Reason: input.Reason,
	}
	tx.repo.disputes = append(tx.repo.disputes, d)
	return d, nil
}

func pendingBill(t *testing.T, repo *memoryRepo, svc *Service, lines []extraction.ExtractedLine) Bill {
	t.Helper()
	bill, _, err := svc.CreateFromExtraction(context.Background(), "bill.pdf", extraction.ExtractedBill{Lines: lines})
	require.NoError(t, err)
	require.Equal(t, StatusPending, repo.bills[bill.ID].Status)
	return bill
}

func strPtr(s string) *string { return &s }

func TestCreateFromExtractionNoContent(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, _, err := svc.CreateFromExtraction(context.Background(), "blank.pdf", extraction.ExtractedBill{})
	require.ErrorIs(t, err, extraction.ErrNoContent)
	require.Empty(t, repo.bills)
}

func TestCreateFromExtractionBadQuantity(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, _, err := svc.CreateFromExtraction(context.Background(), "bill.pdf", extraction.ExtractedBill{
		Lines: []extraction.ExtractedLine{{Name: "Tomates", Quantity: "two", Unit: "kg"}},
	})
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Contains(t, verrs, "lines[0].quantity")
	require.Empty(t, repo.bills)
}

func TestSuggestMatchesExistingProduct(t *testing.T) {
	repo := newMemoryRepo()
	milk := repo.addProduct("Lait entier", units.UnitLitre, decimal.NewFromInt(5))
	svc := newTestService(repo)
	bill := pendingBill(t, repo, svc, []extraction.ExtractedLine{
		{Name: "lait entier", Quantity: "500", Unit: "ml"},
		{Name: "Confiture d'abricot", Quantity: "3", Unit: "pc"},
	})

	suggestions, err := svc.Suggest(context.Background(), bill.ID)
	require.NoError(t, err)
	require.Len(t, suggestions, 2)

	attach := suggestions[0].Decision
	require.Equal(t, ActionAttach, attach.Action)
	require.Equal(t, milk.ID, *attach.ProductID)
	require.True(t, attach.ConvertedQuantity.Equal(decimal.RequireFromString("0.5")))
	require.Equal(t, units.UnitLitre, attach.CanonicalUnit)

	create := suggestions[1].Decision
	require.Equal(t, ActionCreate, create.Action)
	require.NotNil(t, create.Draft)
}

func TestConfirmCreatesProduct(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	bill := pendingBill(t, repo, svc, []extraction.ExtractedLine{
		{Name: "Tomatoes", Quantity: "2", Unit: "g", UnitPrice: strPtr("3")},
	})

	price := decimal.NewFromInt(3)
	confirmed, err := svc.Confirm(context.Background(), bill.ID, ConfirmInput{
		Supplier:    "Primeur Sud",
		BillDate:    time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		TotalAmount: decimal.NewFromInt(6),
		Lines: []ConfirmLine{
			{Name: "Tomatoes", Quantity: decimal.NewFromInt(2), Unit: units.UnitGram, UnitPrice: &price},
		},
	})
	require.NoError(t, err)
	require.Equal(t, StatusProcessed, confirmed.Status)

	var product catalog.Product
	for _, p := range repo.stock {
		product = p
	}
	require.Equal(t, "Tomatoes", product.Name)
	require.Equal(t, units.UnitGram, product.Unit)
	require.True(t, product.Quantity.Equal(decimal.NewFromInt(2)))

	require.Len(t, repo.movements, 1)
	movement := repo.movements[0]
	require.Equal(t, ledger.DirectionIn, movement.Direction)
	require.True(t, movement.Quantity.Equal(decimal.NewFromInt(2)))
	require.True(t, movement.BalanceAfter.Equal(decimal.NewFromInt(2)))
	require.Equal(t, 1, repo.invalidated)

	items := repo.lineItems[bill.ID]
	require.Len(t, items, 1)
	require.NotNil(t, items[0].ProductID)
	require.Equal(t, product.ID, *items[0].ProductID)
}

func TestConfirmConvertsIntoProductUnit(t *testing.T) {
	repo := newMemoryRepo()
	milk := repo.addProduct("Lait entier", units.UnitLitre, decimal.NewFromInt(5))
	svc := newTestService(repo)
	bill := pendingBill(t, repo, svc, []extraction.ExtractedLine{
		{Name: "lait entier", Quantity: "500", Unit: "ml"},
	})

	_, err := svc.Confirm(context.Background(), bill.ID, ConfirmInput{
		Supplier:    "Laiterie du Nord",
		BillDate:    time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		TotalAmount: decimal.NewFromInt(1),
		Lines: []ConfirmLine{
			{ProductID: &milk.ID, Quantity: decimal.NewFromInt(500), Unit: units.UnitMillilitre},
		},
	})
	require.NoError(t, err)
	require.True(t, repo.stock[milk.ID].Quantity.Equal(decimal.RequireFromString("5.5")))

	require.Len(t, repo.movements, 1)
	movement := repo.movements[0]
	require.True(t, movement.Quantity.Equal(decimal.RequireFromString("0.5")))
	require.True(t, movement.BalanceAfter.Equal(decimal.RequireFromString("5.5")))
}

func TestConfirmValidatesBeforeTransaction(t *testing.T) {
	repo := newMemoryRepo()
	milk := repo.addProduct("Lait entier", units.UnitLitre, decimal.NewFromInt(5))
	svc := newTestService(repo)
	bill := pendingBill(t, repo, svc, []extraction.ExtractedLine{
		{Name: "lait entier", Quantity: "500", Unit: "ml"},
	})

	_, err := svc.Confirm(context.Background(), bill.ID, ConfirmInput{
		Lines: []ConfirmLine{
			{ProductID: &milk.ID, Quantity: decimal.NewFromInt(-1), Unit: units.Unit("barrel")},
			{ProductID: &milk.ID, Quantity: decimal.NewFromInt(2), Unit: units.UnitPiece},
		},
	})
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Contains(t, verrs, "supplier")
	require.Contains(t, verrs, "billDate")
	require.Contains(t, verrs, "lines[0].quantity")
	require.Contains(t, verrs, "lines[0].unit")
	require.Contains(t, verrs, "lines[1].unit")

	require.True(t, repo.stock[milk.ID].Quantity.Equal(decimal.NewFromInt(5)))
	require.Empty(t, repo.movements)
	require.Equal(t, StatusPending, repo.bills[bill.ID].Status)
}

func TestConfirmOnlyOnce(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	bill := pendingBill(t, repo, svc, []extraction.ExtractedLine{
		{Name: "Tomatoes", Quantity: "2", Unit: "g"},
	})

	input := ConfirmInput{
		Supplier:    "Primeur Sud",
		BillDate:    time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		TotalAmount: decimal.NewFromInt(6),
		Lines: []ConfirmLine{
			{Name: "Tomatoes", Quantity: decimal.NewFromInt(2), Unit: units.UnitGram},
		},
	}
	_, err := svc.Confirm(context.Background(), bill.ID, input)
	require.NoError(t, err)

	_, err = svc.Confirm(context.Background(), bill.ID, input)
	require.ErrorIs(t, err, ErrAlreadyProcessed)
	require.Len(t, repo.movements, 1)
}

func TestConfirmRollsBackOnFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.failDLC = true
	milk := repo.addProduct("Lait entier", units.UnitLitre, decimal.NewFromInt(5))
	svc := newTestService(repo)
	bill := pendingBill(t, repo, svc, []extraction.ExtractedLine{
		{Name: "lait entier", Quantity: "2", Unit: "l"},
	})

	_, err := svc.Confirm(context.Background(), bill.ID, ConfirmInput{
		Supplier:    "Laiterie du Nord",
		BillDate:    time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		TotalAmount: decimal.NewFromInt(3),
		Lines: []ConfirmLine{
			{ProductID: &milk.ID, Quantity: decimal.NewFromInt(2), Unit: units.UnitLitre,
				DLC: &dlc.Draft{ExpirationDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), Quantity: decimal.NewFromInt(2)}},
		},
	})
	require.ErrorIs(t, err, errInjected)
	require.True(t, repo.stock[milk.ID].Quantity.Equal(decimal.NewFromInt(5)))
	require.Empty(t, repo.movements)
	require.Empty(t, repo.dlcEntries)
	require.Equal(t, StatusPending, repo.bills[bill.ID].Status)
}

func TestConfirmWithDLCAndDispute(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	bill := pendingBill(t, repo, svc, []extraction.ExtractedLine{
		{Name: "Lait entier", Quantity: "6", Unit: "l"},
	})

	confirmed, err := svc.Confirm(context.Background(), bill.ID, ConfirmInput{
		Supplier:    "Laiterie du Nord",
		BillDate:    time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		TotalAmount: decimal.NewFromInt(9),
		Lines: []ConfirmLine{
			{Name: "Lait entier", Quantity: decimal.NewFromInt(6), Unit: units.UnitLitre,
				DLC: &dlc.Draft{ExpirationDate: time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), Quantity: decimal.NewFromInt(6)}},
		},
		Dispute: &DisputeDraft{
			Type:   disputes.TypeReturn,
			Reason: "two bottles arrived damaged",
			Products: []DisputeProductDraft{
				{LineIndex: 0, Reason: "damaged", Quantity: decimal.NewFromInt(2)},
			},
		},
	})
	require.NoError(t, err)
	require.Equal(t, StatusDisputed, confirmed.Status)

	require.Len(t, repo.dlcEntries, 1)
	require.Equal(t, dlc.StatusActive, repo.dlcEntries[0].Status)
	require.Equal(t, bill.ID, *repo.dlcEntries[0].BillID)

	require.Len(t, repo.disputes, 1)
	require.Equal(t, disputes.TypeReturn, repo.disputes[0].Type)
	require.Equal(t, bill.ID, repo.disputes[0].BillID)
}

func TestConfirmDisputeLineIndexOutOfRange(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	bill := pendingBill(t, repo, svc, []extraction.ExtractedLine{
		{Name: "Tomatoes", Quantity: "2", Unit: "g"},
	})

	_, err := svc.Confirm(context.Background(), bill.ID, ConfirmInput{
		Supplier:    "Primeur Sud",
		BillDate:    time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		TotalAmount: decimal.NewFromInt(6),
		Lines: []ConfirmLine{
			{Name: "Tomatoes", Quantity: decimal.NewFromInt(2), Unit: units.UnitGram},
		},
		Dispute: &DisputeDraft{
			Type:   disputes.TypeReturn,
			Reason: "missing item",
			Products: []DisputeProductDraft{
				{LineIndex: 4, Quantity: decimal.NewFromInt(1)},
			},
		},
	})
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Contains(t, verrs, "dispute.products[0].lineIndex")
	require.Empty(t, repo.movements)
}

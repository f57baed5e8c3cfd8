package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cutmarket/backend/internal/events"
	"github.com/cutmarket/backend/internal/models"
)

// ---------------------------------------------------------------------------
// In-memory mocks for the repository interfaces. Every conditional update is
// applied under the mock's mutex, which gives the same compare-and-swap
// semantics the SQL statements have.
// ---------------------------------------------------------------------------

// noopTx satisfies pgx.Tx for test use; only Commit/Rollback are called.
type noopTx struct{}

func (noopTx) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(context.Context) error          { return nil }
func (noopTx) Rollback(context.Context) error        { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (noopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Conn() *pgx.Conn { return nil }

type mockPool struct{}

func (mockPool) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }

// --- QuotationRepo ---

type mockQuotations struct {
	mu sync.Mutex
	qs map[uuid.UUID]*models.Quotation
}

func newMockQuotations(qs ...*models.Quotation) *mockQuotations {
	m := &mockQuotations{qs: make(map[uuid.UUID]*models.Quotation)}
	for _, q := range qs {
		cp := *q
		m.qs[q.ID] = &cp
	}
	return m
}

func (m *mockQuotations) get(id uuid.UUID) *models.Quotation {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.qs[id]
	if !ok {
		return nil
	}
	cp := *q
	return &cp
}

func (m *mockQuotations) Create(_ context.Context, q *models.Quotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *q
	m.qs[q.ID] = &cp
	return nil
}

func (m *mockQuotations) GetByID(_ context.Context, id uuid.UUID) (*models.Quotation, error) {
	if q := m.get(id); q != nil {
		return q, nil
	}
	return nil, fmt.Errorf("%w: quotation %s", models.ErrNotFound, id)
}

func (m *mockQuotations) DeletePublished(_ context.Context, _ pgx.Tx, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.qs[id]
	if !ok || q.Status != models.QuotationStatusPublished {
		return false, nil
	}
	delete(m.qs, id)
	return true, nil
}

func (m *mockQuotations) MarkAccepted(_ context.Context, _ pgx.Tx, id, editorID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.qs[id]
	if !ok || q.Status != models.QuotationStatusPublished {
		return false, nil
	}
	q.Status = models.QuotationStatusAccepted
	q.EditorID = &editorID
	return true, nil
}

func (m *mockQuotations) Reopen(_ context.Context, _ pgx.Tx, id, editorID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.qs[id]
	if !ok || q.Status != models.QuotationStatusAccepted || q.EditorID == nil || *q.EditorID != editorID || paying(q) {
		return false, nil
	}
	q.Status = models.QuotationStatusPublished
	q.EditorID = nil
	q.ReopenCount++
	return true, nil
}

func (m *mockQuotations) MarkCompleted(_ context.Context, _ pgx.Tx, id, worksID uuid.UUID, penaltyCents int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.qs[id]
	if !ok || q.Status != models.QuotationStatusAccepted {
		return false, nil
	}
	q.Status = models.QuotationStatusCompleted
	q.WorksID = &worksID
	q.PenaltyCents = penaltyCents
	return true, nil
}

func (m *mockQuotations) TransitionStatus(_ context.Context, _ pgx.Tx, id uuid.UUID, from, to string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.qs[id]
	if !ok || q.Status != from || paying(q) {
		return false, nil
	}
	q.Status = to
	if to == models.QuotationStatusExpired || to == models.QuotationStatusCancelled {
		q.EditorID = nil
	}
	return true, nil
}

func paying(q *models.Quotation) bool {
	return q.IsFullyPaid || q.IsPaymentInProgress
}

func (m *mockQuotations) ListOverdue(_ context.Context, status string, dueBefore time.Time) ([]*models.Quotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Quotation
	for _, q := range m.qs {
		if q.Status == status && q.DueDate.Before(dueBefore) {
			cp := *q
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockQuotations) MarkAdvancePaid(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.qs[id]
	if !ok || q.IsAdvancePaid {
		return false, nil
	}
	q.IsAdvancePaid = true
	return true, nil
}

func (m *mockQuotations) ClaimPayment(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.qs[id]
	if !ok || q.Status != models.QuotationStatusCompleted || paying(q) {
		return false, nil
	}
	q.IsPaymentInProgress = true
	q.PaymentClaimedAt = &now
	return true, nil
}

func (m *mockQuotations) CompletePayment(_ context.Context, _ pgx.Tx, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.qs[id]
	if !ok {
		return models.ErrNotFound
	}
	q.IsFullyPaid = true
	q.IsPaymentInProgress = false
	q.PaymentClaimedAt = nil
	return nil
}

func (m *mockQuotations) ReleasePaymentClaim(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.qs[id]; ok {
		q.IsPaymentInProgress = false
		q.PaymentClaimedAt = nil
	}
	return nil
}

func (m *mockQuotations) ListStalePaymentClaims(_ context.Context, claimedBefore time.Time) ([]*models.Quotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Quotation
	for _, q := range m.qs {
		if q.IsPaymentInProgress && q.PaymentClaimedAt != nil && q.PaymentClaimedAt.Before(claimedBefore) {
			cp := *q
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- BidRepo ---

type mockBids struct {
	mu   sync.Mutex
	bids map[uuid.UUID]*models.Bid
}

func newMockBids(bs ...*models.Bid) *mockBids {
	m := &mockBids{bids: make(map[uuid.UUID]*models.Bid)}
	for _, b := range bs {
		cp := *b
		m.bids[b.ID] = &cp
	}
	return m
}

func isActiveBid(status string) bool {
	return status == models.BidStatusPending || status == models.BidStatusAccepted
}

func (m *mockBids) get(id uuid.UUID) *models.Bid {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bids[id]
	if !ok {
		return nil
	}
	cp := *b
	return &cp
}

func (m *mockBids) Create(_ context.Context, b *models.Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.bids {
		if o.QuotationID == b.QuotationID && o.EditorID == b.EditorID && isActiveBid(o.Status) {
			return fmt.Errorf("%w: duplicate active bid", models.ErrConflict)
		}
	}
	cp := *b
	m.bids[b.ID] = &cp
	return nil
}

func (m *mockBids) GetByID(_ context.Context, id uuid.UUID) (*models.Bid, error) {
	if b := m.get(id); b != nil {
		return b, nil
	}
	return nil, fmt.Errorf("%w: bid %s", models.ErrNotFound, id)
}

func (m *mockBids) HasActiveBid(_ context.Context, quotationID, editorID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bids {
		if b.QuotationID == quotationID && b.EditorID == editorID && isActiveBid(b.Status) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockBids) UpdateTerms(_ context.Context, id, editorID uuid.UUID, amountCents int64, notes string) (*models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bids[id]
	if !ok || b.EditorID != editorID || b.Status != models.BidStatusPending {
		return nil, nil
	}
	b.BidAmountCents = amountCents
	b.Notes = notes
	cp := *b
	return &cp, nil
}

func (m *mockBids) DeletePending(_ context.Context, id, editorID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bids[id]
	if !ok || b.EditorID != editorID || b.Status != models.BidStatusPending {
		return false, nil
	}
	delete(m.bids, id)
	return true, nil
}

func (m *mockBids) TransitionStatus(_ context.Context, _ pgx.Tx, id uuid.UUID, from, to string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bids[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	return true, nil
}

func (m *mockBids) TransitionForQuotation(_ context.Context, _ pgx.Tx, quotationID, exceptID uuid.UUID, from, to string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, b := range m.bids {
		if b.QuotationID == quotationID && b.ID != exceptID && b.Status == from {
			b.Status = to
			n++
		}
	}
	return n, nil
}

func (m *mockBids) ListByQuotation(_ context.Context, quotationID uuid.UUID, order string) ([]*models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Bid
	for _, b := range m.bids {
		if b.QuotationID == quotationID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		switch order {
		case models.BidSortAmountDesc:
			return out[i].BidAmountCents > out[j].BidAmountCents
		case models.BidSortNewest:
			return out[i].CreatedAt.After(out[j].CreatedAt)
		default:
			return out[i].BidAmountCents < out[j].BidAmountCents
		}
	})
	return out, nil
}

func (m *mockBids) countByStatus(quotationID uuid.UUID) map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int)
	for _, b := range m.bids {
		if b.QuotationID == quotationID {
			out[b.Status]++
		}
	}
	return out
}

// --- EditorRepo ---

type mockEditors struct {
	mu      sync.Mutex
	editors map[uuid.UUID]*models.Editor
}

func newMockEditors(es ...*models.Editor) *mockEditors {
	m := &mockEditors{editors: make(map[uuid.UUID]*models.Editor)}
	for _, e := range es {
		cp := *e
		m.editors[e.UserID] = &cp
	}
	return m
}

func (m *mockEditors) get(id uuid.UUID) *models.Editor {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.editors[id]
	if !ok {
		return nil
	}
	cp := *e
	return &cp
}

func (m *mockEditors) Upsert(_ context.Context, userID uuid.UUID, category string) (*models.Editor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.editors[userID]
	if !ok {
		e = &models.Editor{UserID: userID}
		m.editors[userID] = e
	}
	e.Category = category
	cp := *e
	return &cp, nil
}

func (m *mockEditors) GetByID(_ context.Context, id uuid.UUID) (*models.Editor, error) {
	if e := m.get(id); e != nil {
		return e, nil
	}
	return nil, fmt.Errorf("%w: editor %s", models.ErrNotFound, id)
}

func (m *mockEditors) ClearLapsedSuspension(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.editors[id]
	if !ok || !e.SuspensionLapsed(now) {
		return false, nil
	}
	e.IsSuspended = false
	e.SuspendedUntil = nil
	return true, nil
}

func (m *mockEditors) SetSuspension(_ context.Context, id uuid.UUID, suspended bool, until *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.editors[id]
	if !ok {
		return models.ErrNotFound
	}
	e.IsSuspended = suspended
	e.SuspendedUntil = until
	return nil
}

func (m *mockEditors) StampWithdrawal(_ context.Context, _ pgx.Tx, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.editors[id]
	if !ok {
		return models.ErrNotFound
	}
	e.LastWithdrawnDate = &at
	return nil
}

func (m *mockEditors) UpdateScore(_ context.Context, id uuid.UUID, prevScore, prevStreak, score, streak int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.editors[id]
	if !ok || e.Score != prevScore || e.Streak != prevStreak {
		return false, nil
	}
	e.Score = score
	e.Streak = streak
	return true, nil
}

// --- WorkRepo ---

type mockWorks struct {
	mu    sync.Mutex
	works []*models.Work
}

func (m *mockWorks) Create(_ context.Context, _ pgx.Tx, w *models.Work) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.works {
		if o.QuotationID == w.QuotationID {
			return fmt.Errorf("%w: work for quotation exists", models.ErrConflict)
		}
	}
	cp := *w
	m.works = append(m.works, &cp)
	return nil
}

func (m *mockWorks) LatestByEditor(_ context.Context, editorID uuid.UUID, limit int) ([]*models.Work, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Work
	for _, w := range m.works {
		if w.EditorID == editorID {
			cp := *w
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockWorks) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.works)
}

// --- WalletRepo ---

type mockWallets struct {
	mu      sync.Mutex
	wallets map[uuid.UUID]*models.Wallet
	txs     []*models.WalletTransaction
}

func newMockWallets() *mockWallets {
	return &mockWallets{wallets: make(map[uuid.UUID]*models.Wallet)}
}

func (m *mockWallets) open(userID uuid.UUID) (*models.Wallet, bool) {
	if w, ok := m.wallets[userID]; ok {
		return w, false
	}
	w := &models.Wallet{ID: uuid.New(), UserID: userID, Currency: models.DefaultCurrency}
	m.wallets[userID] = w
	return w, true
}

func (m *mockWallets) GetOrCreate(_ context.Context, userID uuid.UUID) (*models.Wallet, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, created := m.open(userID)
	cp := *w
	return &cp, created, nil
}

func (m *mockWallets) Credit(_ context.Context, _ pgx.Tx, userID uuid.UUID, amountCents int64) (*models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, _ := m.open(userID)
	w.BalanceCents += amountCents
	cp := *w
	return &cp, nil
}

func (m *mockWallets) Debit(_ context.Context, _ pgx.Tx, userID uuid.UUID, amountCents int64) (*models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[userID]
	if !ok {
		return nil, fmt.Errorf("%w: wallet for user %s", models.ErrNotFound, userID)
	}
	if w.BalanceCents < amountCents {
		return nil, models.ErrInsufficientFunds
	}
	w.BalanceCents -= amountCents
	cp := *w
	return &cp, nil
}

func (m *mockWallets) CreateTx(_ context.Context, _ pgx.Tx, t *models.WalletTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.Type == models.WalletTxCreditFromWork && t.QuotationID != nil {
		for _, o := range m.txs {
			if o.Type == models.WalletTxCreditFromWork && o.QuotationID != nil && *o.QuotationID == *t.QuotationID {
				return fmt.Errorf("%w: work already credited", models.ErrConflict)
			}
		}
	}
	cp := *t
	m.txs = append(m.txs, &cp)
	return nil
}

func (m *mockWallets) ListTransactions(_ context.Context, userID uuid.UUID, limit, offset int) ([]*models.WalletTransaction, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*models.WalletTransaction
	for i := len(m.txs) - 1; i >= 0; i-- {
		if m.txs[i].UserID == userID {
			all = append(all, m.txs[i])
		}
	}
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := min(offset+limit, total)
	return all[offset:end], total, nil
}

func (m *mockWallets) HasWorkCredit(_ context.Context, quotationID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.txs {
		if t.Type == models.WalletTxCreditFromWork && t.QuotationID != nil && *t.QuotationID == quotationID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockWallets) balance(userID uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.wallets[userID]; ok {
		return w.BalanceCents
	}
	return 0
}

// signedSum returns the sum of the user's transaction lines signed by type.
func (m *mockWallets) signedSum(userID uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, t := range m.txs {
		if t.UserID == userID {
			sum += t.SignedAmount()
		}
	}
	return sum
}

// --- LedgerWriter ---

type mockLedger struct {
	mu     sync.Mutex
	lines  []*models.AdminTransaction
	failOn string
}

var errLedgerDown = errors.New("ledger unavailable")

func (m *mockLedger) Append(_ context.Context, _ pgx.Tx, t *models.AdminTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == t.TransactionType {
		return errLedgerDown
	}
	for _, o := range m.lines {
		if o.TransactionType != t.TransactionType {
			continue
		}
		switch t.TransactionType {
		case models.AdminTxUserPayment, models.AdminTxEditorPayout:
			if *o.QuotationID == *t.QuotationID {
				return fmt.Errorf("%w: duplicate %s line", models.ErrConflict, t.TransactionType)
			}
		case models.AdminTxWelcomeBonus:
			if *o.UserID == *t.UserID {
				return fmt.Errorf("%w: duplicate welcome bonus", models.ErrConflict)
			}
		}
	}
	cp := *t
	m.lines = append(m.lines, &cp)
	return nil
}

func (m *mockLedger) HasLine(_ context.Context, quotationID uuid.UUID, transactionType string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.lines {
		if l.TransactionType == transactionType && l.QuotationID != nil && *l.QuotationID == quotationID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockLedger) HasWelcomeBonus(_ context.Context, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.lines {
		if l.TransactionType == models.AdminTxWelcomeBonus && l.UserID != nil && *l.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockLedger) UnpairedPayments(_ context.Context) ([]*models.AdminTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	paid := make(map[uuid.UUID]bool)
	for _, l := range m.lines {
		if l.TransactionType == models.AdminTxEditorPayout {
			paid[*l.QuotationID] = true
		}
	}
	var out []*models.AdminTransaction
	for _, l := range m.lines {
		if l.TransactionType == models.AdminTxUserPayment && !paid[*l.QuotationID] {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockLedger) byType(transactionType string) []*models.AdminTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AdminTransaction
	for _, l := range m.lines {
		if l.TransactionType == transactionType {
			out = append(out, l)
		}
	}
	return out
}

// net returns credit flow minus debit flow over all lines.
func (m *mockLedger) net() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, l := range m.lines {
		if l.Flow == models.FlowCredit {
			n += l.AmountCents
		} else {
			n -= l.AmountCents
		}
	}
	return n
}

// --- Publisher ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) kinds() []events.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Kind, len(p.events))
	for i, e := range p.events {
		out[i] = e.Kind
	}
	return out
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func publishedQuotation(owner uuid.UUID, budgetCents int64) *models.Quotation {
	advance, balance := models.SplitBudget(budgetCents)
	return &models.Quotation{
		ID:                   uuid.New(),
		UserID:               owner,
		Title:                "Wedding highlight reel",
		EstimatedBudgetCents: budgetCents,
		AdvanceAmountCents:   advance,
		BalanceAmountCents:   balance,
		DueDate:              testNow.Add(48 * time.Hour),
		OutputType:           models.OutputTypeVideo,
		Status:               models.QuotationStatusPublished,
		CreatedAt:            testNow.Add(-time.Hour),
	}
}

func pendingBid(quotationID, editorID uuid.UUID, amountCents int64) *models.Bid {
	return &models.Bid{
		ID:             uuid.New(),
		QuotationID:    quotationID,
		EditorID:       editorID,
		BidAmountCents: amountCents,
		Status:         models.BidStatusPending,
		CreatedAt:      testNow.Add(-30 * time.Minute),
	}
}

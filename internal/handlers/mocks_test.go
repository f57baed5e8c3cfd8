package handlers_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/cutmarket/backend/internal/handlers"
	"github.com/cutmarket/backend/internal/ledger"
	"github.com/cutmarket/backend/internal/models"
	"github.com/cutmarket/backend/internal/services"
)

func newValidator(t *testing.T) *services.Validator {
	t.Helper()
	v, err := services.NewValidator()
	require.NoError(t, err)
	return v
}

type MockQuotations struct {
	CreateFunc func(ctx context.Context, clientID uuid.UUID, in services.CreateQuotationInput) (*models.Quotation, error)
	GetFunc    func(ctx context.Context, id uuid.UUID) (*models.Quotation, error)
	DeleteFunc func(ctx context.Context, id, clientID uuid.UUID) error
	CancelFunc func(ctx context.Context, id, clientID uuid.UUID) (*models.Quotation, error)
	SubmitFunc func(ctx context.Context, editorID, quotationID uuid.UUID, files []string, comments string) (*models.Work, error)
}

func (m *MockQuotations) Create(ctx context.Context, clientID uuid.UUID, in services.CreateQuotationInput) (*models.Quotation, error) {
	return m.CreateFunc(ctx, clientID, in)
}

func (m *MockQuotations) Get(ctx context.Context, id uuid.UUID) (*models.Quotation, error) {
	return m.GetFunc(ctx, id)
}

func (m *MockQuotations) Delete(ctx context.Context, id, clientID uuid.UUID) error {
	return m.DeleteFunc(ctx, id, clientID)
}

func (m *MockQuotations) Cancel(ctx context.Context, id, clientID uuid.UUID) (*models.Quotation, error) {
	return m.CancelFunc(ctx, id, clientID)
}

func (m *MockQuotations) SubmitWork(ctx context.Context, editorID, quotationID uuid.UUID, files []string, comments string) (*models.Work, error) {
	return m.SubmitFunc(ctx, editorID, quotationID, files, comments)
}

type MockBids struct {
	CreateFunc   func(ctx context.Context, editorID, quotationID uuid.UUID, amount int64, notes string) (*models.Bid, error)
	UpdateFunc   func(ctx context.Context, bidID, editorID uuid.UUID, amount int64, notes string) (*models.Bid, error)
	DeleteFunc   func(ctx context.Context, bidID, editorID uuid.UUID) error
	WithdrawFunc func(ctx context.Context, bidID, editorID uuid.UUID) (*models.Bid, error)
	ListFunc     func(ctx context.Context, quotationID, clientID uuid.UUID, sort string) ([]*models.Bid, error)
	AcceptFunc   func(ctx context.Context, bidID, clientID uuid.UUID) (*models.Bid, error)
}

func (m *MockBids) CreateBid(ctx context.Context, editorID, quotationID uuid.UUID, amount int64, notes string) (*models.Bid, error) {
	return m.CreateFunc(ctx, editorID, quotationID, amount, notes)
}

func (m *MockBids) UpdateBid(ctx context.Context, bidID, editorID uuid.UUID, amount int64, notes string) (*models.Bid, error) {
	return m.UpdateFunc(ctx, bidID, editorID, amount, notes)
}

func (m *MockBids) DeleteBid(ctx context.Context, bidID, editorID uuid.UUID) error {
	return m.DeleteFunc(ctx, bidID, editorID)
}

func (m *MockBids) WithdrawFromWork(ctx context.Context, bidID, editorID uuid.UUID) (*models.Bid, error) {
	return m.WithdrawFunc(ctx, bidID, editorID)
}

func (m *MockBids) ListBids(ctx context.Context, quotationID, clientID uuid.UUID, sort string) ([]*models.Bid, error) {
	return m.ListFunc(ctx, quotationID, clientID, sort)
}

func (m *MockBids) AcceptBid(ctx context.Context, bidID, clientID uuid.UUID) (*models.Bid, error) {
	return m.AcceptFunc(ctx, bidID, clientID)
}

type MockWallets struct {
	AddFunc          func(ctx context.Context, userID uuid.UUID, amount int64) (*models.Wallet, error)
	WithdrawFunc     func(ctx context.Context, userID uuid.UUID, amount int64) (*models.Wallet, error)
	TransactionsFunc func(ctx context.Context, userID uuid.UUID, page, limit int) ([]*models.WalletTransaction, int, error)
	OpenFunc         func(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
}

func (m *MockWallets) AddMoney(ctx context.Context, userID uuid.UUID, amount int64) (*models.Wallet, error) {
	return m.AddFunc(ctx, userID, amount)
}

func (m *MockWallets) WithdrawMoney(ctx context.Context, userID uuid.UUID, amount int64) (*models.Wallet, error) {
	return m.WithdrawFunc(ctx, userID, amount)
}

func (m *MockWallets) Transactions(ctx context.Context, userID uuid.UUID, page, limit int) ([]*models.WalletTransaction, int, error) {
	return m.TransactionsFunc(ctx, userID, page, limit)
}

func (m *MockWallets) OpenWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	return m.OpenFunc(ctx, userID)
}

type MockEditors struct {
	RegisterFunc  func(ctx context.Context, userID uuid.UUID, category string) (*models.Editor, error)
	GetFunc       func(ctx context.Context, userID uuid.UUID) (*models.Editor, error)
	SuspendFunc   func(ctx context.Context, editorID uuid.UUID, until *time.Time) error
	UnsuspendFunc func(ctx context.Context, editorID uuid.UUID) error
}

func (m *MockEditors) Register(ctx context.Context, userID uuid.UUID, category string) (*models.Editor, error) {
	return m.RegisterFunc(ctx, userID, category)
}

func (m *MockEditors) Get(ctx context.Context, userID uuid.UUID) (*models.Editor, error) {
	return m.GetFunc(ctx, userID)
}

func (m *MockEditors) Suspend(ctx context.Context, editorID uuid.UUID, until *time.Time) error {
	return m.SuspendFunc(ctx, editorID, until)
}

func (m *MockEditors) Unsuspend(ctx context.Context, editorID uuid.UUID) error {
	return m.UnsuspendFunc(ctx, editorID)
}

type MockLedger struct {
	GetLedgerFunc func(ctx context.Context, page, limit int) (*ledger.Page, error)
	SummaryFunc   func(ctx context.Context) (*models.FinancialSummary, error)
	ReconcileFunc func(ctx context.Context) (*services.ReconcileReport, error)
}

func (m *MockLedger) GetLedger(ctx context.Context, page, limit int) (*ledger.Page, error) {
	return m.GetLedgerFunc(ctx, page, limit)
}

func (m *MockLedger) GetFinancialSummary(ctx context.Context) (*models.FinancialSummary, error) {
	return m.SummaryFunc(ctx)
}

func (m *MockLedger) Reconcile(ctx context.Context) (*services.ReconcileReport, error) {
	return m.ReconcileFunc(ctx)
}

type MockQueue struct {
	EnqueueFunc func(ctx context.Context, req handlers.SettlementRequest) error
}

func (m *MockQueue) EnqueueSettlement(ctx context.Context, req handlers.SettlementRequest) error {
	return m.EnqueueFunc(ctx, req)
}

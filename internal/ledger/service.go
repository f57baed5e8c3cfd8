package ledger

import (
	"context"
	"log/slog"

	"github.com/cutmarket/backend/internal/models"
)

// Store is the read side of the ledger the service needs.
type Store interface {
	List(ctx context.Context, limit, offset int) ([]*models.AdminTransaction, int, error)
	Summary(ctx context.Context) (*models.FinancialSummary, error)
}

// BalanceSource reports the platform's cash balance as held by the payment gateway.
type BalanceSource interface {
	GetAccountBalance(ctx context.Context) (int64, error)
}

// Page is one page of the ledger feed. PlatformBalanceCents comes from the gateway account, not
// from the ledger lines, so the two can be cross-checked; it is nil when the gateway is down.
type Page struct {
	Transactions         []*models.AdminTransaction `json:"transactions"`
	Page                 int                        `json:"page"`
	Limit                int                        `json:"limit"`
	Total                int                        `json:"total"`
	PlatformBalanceCents *int64                     `json:"platform_balance_cents"`
}

type Service interface {
	GetLedger(ctx context.Context, page, limit int) (*Page, error)
	GetFinancialSummary(ctx context.Context) (*models.FinancialSummary, error)
}

type service struct {
	store   Store
	balance BalanceSource
	log     *slog.Logger
}

func NewService(store Store, balance BalanceSource, log *slog.Logger) Service {
	if log == nil {
		log = slog.Default()
	}
	return &service{store: store, balance: balance, log: log}
}

var _ Service = (*service)(nil)

func (s *service) GetLedger(ctx context.Context, page, limit int) (*Page, error) {
	page, limit = models.NormalizePage(page, limit)
	txs, total, err := s.store.List(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []*models.AdminTransaction{}
	}
	out := &Page{Transactions: txs, Page: page, Limit: limit, Total: total}
	if s.balance != nil {
		bal, err := s.balance.GetAccountBalance(ctx)
		if err != nil {
			s.log.Warn("platform balance unavailable", "error", err)
		} else {
			out.PlatformBalanceCents = &bal
		}
	}
	return out, nil
}

func (s *service) GetFinancialSummary(ctx context.Context) (*models.FinancialSummary, error) {
	return s.store.Summary(ctx)
}

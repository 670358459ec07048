package expense

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coopcarga/backend-carga/internal/common"
)

// Expense is an office-scoped operating cost record.
type Expense struct {
	ID          string          `json:"id"`
	OfficeID    string          `json:"officeId"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	IncurredAt  time.Time       `json:"incurredAt"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Store defines the persistence operations required by the expense service.
type Store interface {
	CreateExpense(ctx context.Context, e *Expense) error
	ListExpenses(ctx context.Context) ([]Expense, error)
}

// Service records and lists office expenses.
type Service struct {
	Store Store
}

// Create validates and records an expense for an office.
func (s *Service) Create(ctx context.Context, officeID, description string, amount decimal.Decimal, incurredAt time.Time) (Expense, error) {
	if strings.TrimSpace(officeID) == "" {
		return Expense{}, common.NewAppError("VALIDATION_ERROR", "office id is required", http.StatusBadRequest, nil)
	}
	if strings.TrimSpace(description) == "" {
		return Expense{}, common.NewAppError("VALIDATION_ERROR", "description is required", http.StatusBadRequest, nil)
	}
	if !amount.IsPositive() {
		return Expense{}, common.NewAppError("VALIDATION_ERROR", "amount must be positive", http.StatusBadRequest, nil)
	}
	if incurredAt.IsZero() {
		incurredAt = time.Now().UTC()
	}
	e := Expense{
		OfficeID:    officeID,
		Description: strings.TrimSpace(description),
		Amount:      amount,
		IncurredAt:  incurredAt,
	}
	if err := s.Store.CreateExpense(ctx, &e); err != nil {
		return Expense{}, err
	}
	return e, nil
}

// List returns every expense; callers apply the visibility filter.
func (s *Service) List(ctx context.Context) ([]Expense, error) {
	return s.Store.ListExpenses(ctx)
}

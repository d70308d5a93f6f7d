// Package inmemory is a process-local record store used by tests and dry runs.
package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dvloznov/statement-kfi/internal/domain"
	"github.com/dvloznov/statement-kfi/internal/pipeline"
)

// Store is an in-memory implementation of pipeline.ApplicantStore.
// It is safe for concurrent use. Data is lost when the process exits.
type Store struct {
	mu         sync.RWMutex
	applicants map[string]*domain.Applicant
	order      []string
}

// NewStore creates a new in-memory applicant store.
func NewStore() *Store {
	return &Store{
		applicants: make(map[string]*domain.Applicant),
	}
}

// CreateApplicant implements pipeline.ApplicantStore.
func (s *Store) CreateApplicant(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("applicant name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.applicants[id] = &domain.Applicant{ID: id, Name: name}
	s.order = append(s.order, id)
	return id, nil
}

// GetApplicant implements pipeline.ApplicantStore. The copy it returns embeds
// the applicant's transactions and indicators.
func (s *Store) GetApplicant(ctx context.Context, id string) (*domain.Applicant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.applicants[id]
	if !exists {
		return nil, fmt.Errorf("applicant %s: %w", id, domain.ErrApplicantNotFound)
	}
	return copyApplicant(a), nil
}

// UpdateApplicant implements pipeline.ApplicantStore. Only the scalar fields
// are replaced; associations are kept.
func (s *Store) UpdateApplicant(ctx context.Context, id string, applicant *domain.Applicant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.applicants[id]
	if !exists {
		return fmt.Errorf("applicant %s: %w", id, domain.ErrApplicantNotFound)
	}

	if applicant.Name != "" {
		a.Name = applicant.Name
	}
	a.BankStatementPDFPath = applicant.BankStatementPDFPath
	a.RawBankStatementTxt = applicant.RawBankStatementTxt
	return nil
}

// CreateTransactions implements pipeline.ApplicantStore.
func (s *Store) CreateTransactions(ctx context.Context, applicantID string, txs []domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.applicants[applicantID]
	if !exists {
		return fmt.Errorf("applicant %s: %w", applicantID, domain.ErrApplicantNotFound)
	}

	a.Transactions = append(a.Transactions, txs...)
	return nil
}

// CreateIndicators implements pipeline.ApplicantStore.
func (s *Store) CreateIndicators(ctx context.Context, applicantID string, kfi domain.KeyFinancialIndicator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.applicants[applicantID]
	if !exists {
		return fmt.Errorf("applicant %s: %w", applicantID, domain.ErrApplicantNotFound)
	}

	k := kfi
	a.KeyFinancialIndicators = &k
	return nil
}

// ListApplicants returns copies of all applicants in creation order.
func (s *Store) ListApplicants(ctx context.Context) []*domain.Applicant {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Applicant, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, copyApplicant(s.applicants[id]))
	}
	return result
}

// Len returns the number of stored applicants.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.applicants)
}

func copyApplicant(a *domain.Applicant) *domain.Applicant {
	c := *a
	if a.Transactions != nil {
		c.Transactions = append([]domain.Transaction(nil), a.Transactions...)
	}
	if a.KeyFinancialIndicators != nil {
		k := *a.KeyFinancialIndicators
		c.KeyFinancialIndicators = &k
	}
	return &c
}

// Ensure Store implements pipeline.ApplicantStore.
var _ pipeline.ApplicantStore = (*Store)(nil)

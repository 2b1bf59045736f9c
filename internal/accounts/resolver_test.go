package accounts

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/releasehub-billing/pkg/db/models"
	"github.com/angelmondragon/releasehub-billing/pkg/enums"
	pkgerrors "github.com/angelmondragon/releasehub-billing/pkg/errors"
)

type stubRepo struct {
	byCustomer map[string]*models.Account
	byEmail    map[string]*models.Account
	err        error
	calls      []string
}

func (s *stubRepo) WithTx(*gorm.DB) Repository { return s }

func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	s.calls = append(s.calls, "FindByID")
	return nil, s.err
}

func (s *stubRepo) FindByCustomerID(ctx context.Context, customerID string) (*models.Account, error) {
	s.calls = append(s.calls, "FindByCustomerID")
	if s.err != nil {
		return nil, s.err
	}
	return s.byCustomer[customerID], nil
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	s.calls = append(s.calls, "FindByEmail")
	if s.err != nil {
		return nil, s.err
	}
	return s.byEmail[email], nil
}

func (s *stubRepo) Update(ctx context.Context, id uuid.UUID, patch *Patch, expectedVersion int64) error {
	return errors.New("not used")
}

func (s *stubRepo) AppendPaymentRecord(ctx context.Context, record *models.PaymentRecord) (bool, error) {
	return false, errors.New("not used")
}

func (s *stubRepo) ListPaymentRecords(ctx context.Context, accountID uuid.UUID) ([]models.PaymentRecord, error) {
	return nil, errors.New("not used")
}

type stubEmails struct {
	email string
	err   error
	calls int
}

func (s *stubEmails) CustomerEmail(ctx context.Context, customerID string) (string, error) {
	s.calls++
	return s.email, s.err
}

func TestResolvePrefersCustomerID(t *testing.T) {
	linked := &models.Account{ID: uuid.New(), Email: "linked@example.com", Role: enums.AccountRoleArtist}
	other := &models.Account{ID: uuid.New(), Email: "other@example.com"}
	repo := &stubRepo{
		byCustomer: map[string]*models.Account{"cus_1": linked},
		byEmail:    map[string]*models.Account{"other@example.com": other},
	}

	res, err := NewResolver(repo, nil, nil).Resolve(context.Background(), "cus_1", "other@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Account.ID != linked.ID || res.MatchedBy != MatchCustomerID {
		t.Fatalf("expected customer id match, got %+v", res)
	}
	if len(repo.calls) != 1 {
		t.Fatalf("email lookup should be skipped, calls=%v", repo.calls)
	}
}

func TestResolveFallsBackToEmail(t *testing.T) {
	acct := &models.Account{ID: uuid.New(), Email: "Case@Example.com"}
	repo := &stubRepo{byEmail: map[string]*models.Account{"Case@Example.com": acct}}

	res, err := NewResolver(repo, nil, nil).Resolve(context.Background(), "cus_new", "Case@Example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.MatchedBy != MatchEmail {
		t.Fatalf("expected email match, got %s", res.MatchedBy)
	}
	if !res.NeedsCustomerLink("cus_new") {
		t.Fatal("unlinked account found by email should need linking")
	}

	if _, err := NewResolver(repo, nil, nil).Resolve(context.Background(), "cus_new", "case@example.com"); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected case-sensitive miss, got %v", err)
	}
}

func TestResolveFetchesEmailWhenMissing(t *testing.T) {
	acct := &models.Account{ID: uuid.New(), Email: "fetched@example.com"}
	repo := &stubRepo{byEmail: map[string]*models.Account{"fetched@example.com": acct}}
	emails := &stubEmails{email: "fetched@example.com"}

	res, err := NewResolver(repo, emails, nil).Resolve(context.Background(), "cus_2", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Account.ID != acct.ID || emails.calls != 1 {
		t.Fatalf("expected fetched email to resolve, calls=%d", emails.calls)
	}

	failing := &stubEmails{err: errors.New("stripe down")}
	if _, err := NewResolver(repo, failing, nil).Resolve(context.Background(), "cus_2", ""); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("lookup failure should degrade to not found, got %v", err)
	}
}

func TestResolveNotFound(t *testing.T) {
	_, err := NewResolver(&stubRepo{}, nil, nil).Resolve(context.Background(), "cus_x", "nobody@example.com")
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResolveStoreErrorIsDependency(t *testing.T) {
	_, err := NewResolver(&stubRepo{err: errors.New("connection refused")}, nil, nil).Resolve(context.Background(), "cus_x", "")
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

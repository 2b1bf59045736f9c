package accounts

import (
	"context"
	"strings"

	"github.com/angelmondragon/releasehub-billing/pkg/db/models"
	pkgerrors "github.com/angelmondragon/releasehub-billing/pkg/errors"
	"github.com/angelmondragon/releasehub-billing/pkg/logger"
)

// MatchKind records which key located the account.
type MatchKind string

const (
	MatchCustomerID MatchKind = "customer_id"
	MatchEmail      MatchKind = "email"
)

// EmailLookup fetches the email the payment processor holds for a customer.
type EmailLookup interface {
	CustomerEmail(ctx context.Context, customerID string) (string, error)
}

// Resolution is a located account together with how it was found.
type Resolution struct {
	Account   *models.Account
	MatchedBy MatchKind
}

// NeedsCustomerLink reports whether the account was found by email and should be linked to customerID.
func (r *Resolution) NeedsCustomerLink(customerID string) bool {
	if r == nil || r.Account == nil || customerID == "" {
		return false
	}
	return r.Account.StripeCustomerID == nil || *r.Account.StripeCustomerID == ""
}

// Resolver maps a processor customer to the local account. It never creates accounts.
type Resolver struct {
	repo   Repository
	emails EmailLookup
	logg   *logger.Logger
}

// NewResolver builds a resolver. emails may be nil, in which case only payload emails are used.
func NewResolver(repo Repository, emails EmailLookup, logg *logger.Logger) *Resolver {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Resolver{repo: repo, emails: emails, logg: logg}
}

// WithRepository returns a resolver reading through repo, typically a transaction-bound one.
func (r *Resolver) WithRepository(repo Repository) *Resolver {
	return &Resolver{repo: repo, emails: r.emails, logg: r.logg}
}

// Resolve matches on customerID first, then on email compared case-sensitively.
// When email is empty and a lookup is configured, the processor is asked for it.
func (r *Resolver) Resolve(ctx context.Context, customerID, email string) (*Resolution, error) {
	customerID = strings.TrimSpace(customerID)

	if customerID != "" {
		account, err := r.repo.FindByCustomerID(ctx, customerID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find account by customer id")
		}
		if account != nil {
			return &Resolution{Account: account, MatchedBy: MatchCustomerID}, nil
		}
	}

	if email == "" && customerID != "" && r.emails != nil {
		fetched, err := r.emails.CustomerEmail(ctx, customerID)
		if err != nil {
			r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
				"customer_id": customerID,
				"error":       err.Error(),
			}), "customer email lookup failed")
		} else {
			email = fetched
		}
	}

	if email != "" {
		account, err := r.repo.FindByEmail(ctx, email)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find account by email")
		}
		if account != nil {
			return &Resolution{Account: account, MatchedBy: MatchEmail}, nil
		}
	}

	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no account linked to customer").WithDetails(map[string]any{
		"customer_id": customerID,
		"email_tried": email != "",
	})
}

package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ariefcatur/go-bookstore-engine/internal/bookstore"
)

// SubmitProof records the outcome of an external identity verification.
// A valid proof can be consumed by one checkout until it expires; binding
// happens only when that checkout commits.
func (e *Engine) SubmitProof(ctx context.Context, caller bookstore.Identity, identifier string, proofValid bool) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if err := bookstore.ValidateKycIdentifier(identifier); err != nil {
		return "", err
	}
	now := e.now()
	var next bookstore.KycState
	err := e.store.InTx(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		if err := requireUser(ctx, tx, caller); err != nil {
			return err
		}
		rec, err := loadKyc(ctx, tx, identifier)
		if err != nil {
			return err
		}
		if rec.Blacklisted() {
			return bookstore.Newf(bookstore.CodeBlacklisted, "kyc identifier %s is blacklisted", identifier)
		}
		// a pending proof belongs to its submitter until it expires or is used
		if rec.ClaimedBy != caller && !rec.Bound() && rec.ProofUsable(now) {
			return bookstore.Newf(bookstore.CodeConflict, "kyc identifier %s has a pending proof from another account", identifier)
		}
		next = bookstore.KycRejected
		if proofValid {
			next = bookstore.KycValidatedProof
			rec.ValidUntil = now.Add(e.proofTTL)
		}
		if !bookstore.CanTransition(rec.State, next) {
			return bookstore.Newf(bookstore.CodeConflict, "kyc identifier %s cannot move from %s to %s", identifier, rec.State, next)
		}
		rec.State = next
		rec.ClaimedBy = caller
		rec.UpdatedAt = now
		return translate(tx.PutKyc(ctx, rec), "store kyc proof")
	})
	if err != nil {
		e.metrics.ObserveKycProof(string(bookstore.CodeOf(err)))
		return "", err
	}
	e.metrics.ObserveKycProof(string(next))
	e.logger.InfoContext(ctx, "kyc proof submitted", "identity", caller, "state", next)
	if next == bookstore.KycRejected {
		return "", bookstore.New(bookstore.CodeKycRequired, "kyc verification failed: proof is not valid")
	}
	return "KYC proof accepted", nil
}

// loadKyc returns the stored record or a fresh unknown one.
func loadKyc(ctx context.Context, tx bookstore.Tx, identifier string) (bookstore.KycRecord, error) {
	rec, err := tx.Kyc(ctx, identifier)
	if errors.Is(err, bookstore.ErrNotFound) {
		return bookstore.KycRecord{Identifier: identifier, State: bookstore.KycUnknown}, nil
	}
	if err != nil {
		return bookstore.KycRecord{}, translate(err, "load kyc")
	}
	if rec.State == "" {
		rec.State = bookstore.KycUnknown
	}
	return rec, nil
}

func (e *Engine) KycState(ctx context.Context, identifier string) (bookstore.KycState, error) {
	var st bookstore.KycState
	err := e.store.View(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		rec, err := loadKyc(ctx, tx, strings.TrimSpace(identifier))
		st = rec.Effective(e.now())
		return err
	})
	return st, err
}

// Blacklist permanently bars identifier from restricted purchases.
func (e *Engine) Blacklist(ctx context.Context, caller bookstore.Identity, identifier string) (bookstore.KycState, error) {
	return e.adminKycTransition(ctx, caller, identifier, bookstore.KycPermanentlyBlacklisted)
}

// RejectProof withdraws a submitted proof. It never lifts a blacklist.
func (e *Engine) RejectProof(ctx context.Context, caller bookstore.Identity, identifier string) (bookstore.KycState, error) {
	return e.adminKycTransition(ctx, caller, identifier, bookstore.KycRejected)
}

func (e *Engine) adminKycTransition(ctx context.Context, caller bookstore.Identity, identifier string, to bookstore.KycState) (bookstore.KycState, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", bookstore.New(bookstore.CodeInvalidInput, "kyc identifier is required")
	}
	now := e.now()
	var st bookstore.KycState
	err := e.store.InTx(ctx, func(ctx context.Context, tx bookstore.Tx) error {
		if err := requireAdmin(ctx, tx, caller); err != nil {
			return err
		}
		rec, err := loadKyc(ctx, tx, identifier)
		if err != nil {
			return err
		}
		if bookstore.CanTransition(rec.State, to) {
			rec.State = to
			rec.UpdatedAt = now
			if err := tx.PutKyc(ctx, rec); err != nil {
				return translate(err, "store kyc")
			}
		}
		st = rec.Effective(now)
		return nil
	})
	if err == nil {
		e.logger.InfoContext(ctx, "kyc state changed by admin", "by", caller, "requested", to, "state", st)
	}
	return st, err
}

// checkRestrictedPurchase validates the KYC preconditions of a checkout
// without mutating anything.
func checkRestrictedPurchase(ctx context.Context, tx bookstore.Tx, req CheckoutRequest, now time.Time) error {
	identifier := strings.TrimSpace(req.KycIdentifier)
	if !req.KycProofValid || identifier == "" {
		return bookstore.New(bookstore.CodeKycRequired, "kyc verification is required for restricted books")
	}
	rec, err := tx.Kyc(ctx, identifier)
	if errors.Is(err, bookstore.ErrNotFound) {
		return bookstore.New(bookstore.CodeKycRequired, "no kyc proof submitted for this identifier")
	}
	if err != nil {
		return translate(err, "load kyc")
	}
	if rec.Blacklisted() {
		return bookstore.Newf(bookstore.CodeBlacklisted, "kyc identifier %s is blacklisted", identifier)
	}
	if rec.Bound() {
		return bookstore.New(bookstore.CodeKycAlreadyUsed, "this verified identity has already purchased a kyc-restricted book")
	}
	prior, err := tx.KycBoundTo(ctx, req.Identity)
	switch {
	case err == nil:
		return bookstore.Newf(bookstore.CodeKycAlreadyUsed, "account already purchased a kyc-restricted book with identity %s", prior.Identifier)
	case !errors.Is(err, bookstore.ErrNotFound):
		return translate(err, "load kyc binding")
	}
	if rec.State != bookstore.KycValidatedProof || rec.ClaimedBy != req.Identity {
		return bookstore.New(bookstore.CodeKycRequired, "no valid kyc proof submitted by this account")
	}
	if !rec.ProofUsable(now) {
		return bookstore.New(bookstore.CodeKycExpired, "kyc proof expired, submit a new one")
	}
	return nil
}

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package declaration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/election-tally/auth"
	"github.com/danielhkuo/election-tally/cliparse"
	"github.com/danielhkuo/election-tally/metrics"
	"github.com/danielhkuo/election-tally/models"
	"github.com/danielhkuo/election-tally/notify"
	"github.com/danielhkuo/election-tally/store"
)

// Authority runs the two-principal challenge that ends in a capability token.
// All progress lives in the database; expiry is checked when a step is
// attempted, never by timers.
type Authority struct {
	db       *sql.DB
	cfg      cliparse.Config
	notifier notify.Notifier
	now      func() time.Time
}

func NewAuthority(db *sql.DB, cfg cliparse.Config, notifier notify.Notifier) *Authority {
	return &Authority{
		db:       db,
		cfg:      cfg,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// principalStep describes where a principal's code goes and which states
// bracket its verification
type principalStep struct {
	purpose  string
	phone    string
	sent     string
	verified string
}

func (a *Authority) step(principal int) (principalStep, error) {
	switch principal {
	case 1:
		return principalStep{"principal1", a.cfg.Principal1Phone, models.StateCode1Sent, models.StateCode1Verified}, nil
	case 2:
		return principalStep{"principal2", a.cfg.Principal2Phone, models.StateCode2Sent, models.StateCode2Verified}, nil
	}
	return principalStep{}, fmt.Errorf("principal must be 1 or 2, got %d: %w", principal, models.ErrInvalidArgument)
}

type challengeRow struct {
	id        string
	state     string
	expiresAt time.Time
}

// expired reports whether the challenge can no longer make progress.
// Once a token is issued the token's own lifetime applies instead.
func (c challengeRow) expired(now time.Time) bool {
	if c.state == models.StateExpired {
		return true
	}
	return c.state != models.StateTokenIssued && now.After(c.expiresAt)
}

func (c challengeRow) model() models.Challenge {
	return models.Challenge{ID: c.id, State: c.state, ExpiresAt: c.expiresAt}
}

func loadChallenge(ctx context.Context, q store.Querier, id string) (challengeRow, error) {
	c := challengeRow{id: id}
	err := q.QueryRowContext(ctx, `
		SELECT state, expires_at FROM declaration_challenge WHERE id = $1
	`, id).Scan(&c.state, &c.expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return challengeRow{}, fmt.Errorf("challenge %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return challengeRow{}, fmt.Errorf("failed to query challenge: %w", err)
	}
	return c, nil
}

// transition moves a challenge from one state to another, failing with
// ErrConflict if another request moved it first
func transition(ctx context.Context, q store.Querier, id, from, to string, now time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE declaration_challenge SET state = $1, updated_at = $2
		WHERE id = $3 AND state = $4
	`, to, now, id, from)
	if err != nil {
		return fmt.Errorf("failed to update challenge state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("challenge %s left state %s: %w", id, from, models.ErrConflict)
	}
	if from != to {
		metrics.ChallengeTransitions.WithLabelValues(to).Inc()
	}
	return nil
}

func expire(ctx context.Context, q store.Querier, id string, now time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE declaration_challenge SET state = $1, updated_at = $2
		WHERE id = $3 AND state NOT IN ($4, $1)
	`, models.StateExpired, now, id, models.StateTokenIssued)
	if err != nil {
		return fmt.Errorf("failed to expire challenge: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		metrics.ChallengeTransitions.WithLabelValues(models.StateExpired).Inc()
		slog.Info("declaration challenge expired", "challenge_id", id)
	}
	return nil
}

// StartChallenge checks the shared secret, opens a challenge and sends the
// first principal's code. If delivery fails the challenge stays in
// PASSWORD_OK with DeliveryFailed set; ResendCode retries it.
func (a *Authority) StartChallenge(ctx context.Context, secret string) (models.Challenge, error) {
	if !auth.EqualSecret(secret, a.cfg.DeclarationSecret) {
		slog.Warn("declaration challenge rejected: wrong secret")
		return models.Challenge{}, fmt.Errorf("wrong declaration secret: %w", models.ErrUnauthenticated)
	}

	now := a.now()
	ch := models.Challenge{
		ID:        uuid.NewString(),
		State:     models.StatePasswordOK,
		ExpiresAt: now.Add(a.cfg.ChallengeTTL),
	}

	if err := a.unlock(ctx, ch, now); err != nil {
		return models.Challenge{}, err
	}
	slog.Info("declaration challenge started", "challenge_id", ch.ID)

	if err := a.dispatch(ctx, ch.ID, 1, models.StatePasswordOK); err != nil {
		slog.Error("failed to send first code", "challenge_id", ch.ID, "error", err)
		ch.DeliveryFailed = true
		return ch, nil
	}

	ch.State = models.StateCode1Sent
	return ch, nil
}

// unlock creates the challenge in LOCKED and moves it to PASSWORD_OK in one
// transaction, so no caller ever observes a LOCKED row.
func (a *Authority) unlock(ctx context.Context, ch models.Challenge, now time.Time) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO declaration_challenge (id, state, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $3, $4)
	`, ch.ID, models.StateLocked, now, ch.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to create challenge: %w", err)
	}

	if err := transition(ctx, tx, ch.ID, models.StateLocked, models.StatePasswordOK, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit challenge: %w", err)
	}
	return nil
}

// dispatch issues a fresh code for principal, replacing any earlier one,
// and moves the challenge from `from` to the principal's SENT state. The
// code is committed before delivery; no transaction is open across the
// notifier call. If delivery fails the challenge is moved back
// to `from`; the undelivered code stays stored but unknown to anyone, and
// ResendCode replaces it.
func (a *Authority) dispatch(ctx context.Context, challengeID string, principal int, from string) error {
	st, err := a.step(principal)
	if err != nil {
		return err
	}

	code, err := auth.GenerateOneTimeCode()
	if err != nil {
		return err
	}
	if err := a.storeCode(ctx, challengeID, st, from, code); err != nil {
		return err
	}

	err = a.notifier.SendCode(ctx, notify.Delivery{
		ChallengeID: challengeID,
		Purpose:     st.purpose,
		Phone:       st.phone,
		Code:        code,
	})
	if err != nil {
		if from != st.sent {
			a.undoSent(challengeID, st.sent, from)
		}
		return fmt.Errorf("code delivery failed: %v: %w", err, models.ErrUnavailable)
	}

	slog.Info("one-time code sent", "challenge_id", challengeID, "purpose", st.purpose)
	return nil
}

func (a *Authority) storeCode(ctx context.Context, challengeID string, st principalStep, from, code string) error {
	now := a.now()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := transition(ctx, tx, challengeID, from, st.sent, now); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM one_time_code WHERE challenge_id = $1 AND purpose = $2
	`, challengeID, st.purpose)
	if err != nil {
		return fmt.Errorf("failed to clear previous code: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO one_time_code (challenge_id, purpose, code_hash, expires_at, attempts)
		VALUES ($1, $2, $3, $4, 0)
	`, challengeID, st.purpose, a.hashCode(challengeID, st.purpose, code), now.Add(a.cfg.CodeTTL))
	if err != nil {
		return fmt.Errorf("failed to store code: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit code: %w", err)
	}
	return nil
}

// undoSent returns a challenge whose code never left to the state it was
// in before dispatch, on its own context. A failure leaves the challenge in *_SENT,
// which ResendCode also accepts.
func (a *Authority) undoSent(challengeID, sent, from string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := transition(ctx, a.db, challengeID, sent, from, a.now()); err != nil {
		slog.Error("failed to roll back challenge after delivery failure",
			"challenge_id", challengeID,
			"state", sent,
			"error", err,
		)
	}
}

func (a *Authority) hashCode(challengeID, purpose, code string) string {
	return auth.HashSecret(a.cfg.AdminKeySalt, challengeID, purpose, code)
}

// SubmitCode checks a principal's code. Wrong, used and expired codes are
// reported in the result, not as errors, so the caller can re-prompt.
// Submitting for a principal whose code has not been sent is an
// ErrInvalidArgument. Verifying principal 1 sends principal 2's code.
func (a *Authority) SubmitCode(ctx context.Context, challengeID string, principal int, code string) (models.CodeResult, error) {
	st, err := a.step(principal)
	if err != nil {
		return models.CodeResult{}, err
	}

	result, err := a.verify(ctx, challengeID, st, code)
	if err != nil {
		return models.CodeResult{}, err
	}
	metrics.CodeSubmissions.WithLabelValues(strconv.Itoa(principal), result.Outcome).Inc()

	if principal == 1 && result.Outcome == models.OutcomeVerified {
		if err := a.dispatch(ctx, challengeID, 2, models.StateCode1Verified); err != nil {
			slog.Error("failed to send second code", "challenge_id", challengeID, "error", err)
			result.DeliveryFailed = true
		} else {
			result.State = models.StateCode2Sent
		}
	}

	return result, nil
}

func (a *Authority) verify(ctx context.Context, challengeID string, st principalStep, code string) (models.CodeResult, error) {
	now := a.now()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return models.CodeResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ch, err := loadChallenge(ctx, tx, challengeID)
	if err != nil {
		return models.CodeResult{}, err
	}

	expired := models.CodeResult{State: models.StateExpired, Outcome: models.OutcomeExpired}
	if ch.expired(now) {
		if err := expire(ctx, tx, challengeID, now); err != nil {
			return models.CodeResult{}, err
		}
		return expired, tx.Commit()
	}

	if ch.state != st.sent {
		return models.CodeResult{}, fmt.Errorf("challenge is %s, not awaiting a %s code: %w", ch.state, st.purpose, models.ErrInvalidArgument)
	}
	if !auth.ValidCodeFormat(code) {
		return models.CodeResult{}, fmt.Errorf("code must be %d digits: %w", auth.CodeLength, models.ErrInvalidArgument)
	}

	invalid := models.CodeResult{State: ch.state, Outcome: models.OutcomeInvalidCode}

	var hash string
	var expiresAt time.Time
	var usedAt sql.NullTime
	var attempts int
	err = tx.QueryRowContext(ctx, `
		SELECT code_hash, expires_at, used_at, attempts
		FROM one_time_code
		WHERE challenge_id = $1 AND purpose = $2
	`, challengeID, st.purpose).Scan(&hash, &expiresAt, &usedAt, &attempts)
	if errors.Is(err, sql.ErrNoRows) {
		// Only the sweeper removes a sent code, and only once it lapsed
		if err := expire(ctx, tx, challengeID, now); err != nil {
			return models.CodeResult{}, err
		}
		return expired, tx.Commit()
	}
	if err != nil {
		return models.CodeResult{}, fmt.Errorf("failed to query code: %w", err)
	}

	if usedAt.Valid || attempts >= a.cfg.MaxCodeAttempts {
		return invalid, nil
	}

	if now.After(expiresAt) {
		// An expired code ends the challenge; the admins start over
		if err := expire(ctx, tx, challengeID, now); err != nil {
			return models.CodeResult{}, err
		}
		return expired, tx.Commit()
	}

	if !auth.EqualHash(a.hashCode(challengeID, st.purpose, code), hash) {
		_, err = tx.ExecContext(ctx, `
			UPDATE one_time_code SET attempts = attempts + 1
			WHERE challenge_id = $1 AND purpose = $2
		`, challengeID, st.purpose)
		if err != nil {
			return models.CodeResult{}, fmt.Errorf("failed to count attempt: %w", err)
		}
		slog.Warn("one-time code mismatch", "challenge_id", challengeID, "purpose", st.purpose, "attempt", attempts+1)
		return invalid, tx.Commit()
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE one_time_code SET used_at = $1
		WHERE challenge_id = $2 AND purpose = $3 AND used_at IS NULL
	`, now, challengeID, st.purpose)
	if err != nil {
		return models.CodeResult{}, fmt.Errorf("failed to consume code: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return invalid, nil
	}

	if err := transition(ctx, tx, challengeID, st.sent, st.verified, now); err != nil {
		return models.CodeResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.CodeResult{}, fmt.Errorf("failed to commit verification: %w", err)
	}

	slog.Info("one-time code verified", "challenge_id", challengeID, "purpose", st.purpose)
	return models.CodeResult{State: st.verified, Outcome: models.OutcomeVerified}, nil
}

// GetChallenge reports a challenge's current state. A challenge past its
// lifetime reads as EXPIRED even before a step has recorded it.
func (a *Authority) GetChallenge(ctx context.Context, challengeID string) (models.Challenge, error) {
	ch, err := loadChallenge(ctx, a.db, challengeID)
	if err != nil {
		return models.Challenge{}, err
	}
	out := ch.model()
	if ch.expired(a.now()) {
		out.State = models.StateExpired
	}
	return out, nil
}

// ResendCode issues a fresh code to whichever principal the challenge is
// waiting on. A *_SENT state is left unchanged; PASSWORD_OK and
// CODE1_VERIFIED (left behind by a failed delivery) advance to *_SENT.
func (a *Authority) ResendCode(ctx context.Context, challengeID string) (models.Challenge, error) {
	now := a.now()

	ch, err := loadChallenge(ctx, a.db, challengeID)
	if err != nil {
		return models.Challenge{}, err
	}
	if ch.expired(now) {
		if err := expire(ctx, a.db, challengeID, now); err != nil {
			return models.Challenge{}, err
		}
		return models.Challenge{}, fmt.Errorf("challenge %s: %w", challengeID, models.ErrExpired)
	}

	var principal int
	switch ch.state {
	case models.StatePasswordOK, models.StateCode1Sent:
		principal = 1
	case models.StateCode1Verified, models.StateCode2Sent:
		principal = 2
	default:
		return models.Challenge{}, fmt.Errorf("challenge is %s, no code to resend: %w", ch.state, models.ErrInvalidArgument)
	}

	if err := a.dispatch(ctx, challengeID, principal, ch.state); err != nil {
		return models.Challenge{}, err
	}

	out := ch.model()
	if principal == 1 {
		out.State = models.StateCode1Sent
	} else {
		out.State = models.StateCode2Sent
	}
	return out, nil
}

// IssueToken mints the capability token for a challenge both principals
// approved. The token is returned once; only its HMAC under the shared
// secret is stored, so rotating the secret revokes outstanding tokens.
func (a *Authority) IssueToken(ctx context.Context, challengeID string) (models.CapabilityToken, error) {
	now := a.now()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return models.CapabilityToken{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ch, err := loadChallenge(ctx, tx, challengeID)
	if err != nil {
		return models.CapabilityToken{}, err
	}

	switch {
	case ch.state == models.StateTokenIssued:
		return models.CapabilityToken{}, fmt.Errorf("token already issued for challenge %s: %w", challengeID, models.ErrConflict)
	case ch.expired(now):
		if err := expire(ctx, tx, challengeID, now); err != nil {
			return models.CapabilityToken{}, err
		}
		if err := tx.Commit(); err != nil {
			return models.CapabilityToken{}, fmt.Errorf("failed to commit expiry: %w", err)
		}
		return models.CapabilityToken{}, fmt.Errorf("challenge %s: %w", challengeID, models.ErrExpired)
	case ch.state != models.StateCode2Verified:
		return models.CapabilityToken{}, fmt.Errorf("challenge is %s, both codes must be verified: %w", ch.state, models.ErrInvalidArgument)
	}

	secret, err := auth.GenerateSecretToken()
	if err != nil {
		return models.CapabilityToken{}, err
	}
	token := models.CapabilityToken{
		Token:     challengeID + "." + secret,
		ExpiresAt: now.Add(a.cfg.TokenTTL),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO capability_token (challenge_id, token_hash, issued_at, expires_at)
		VALUES ($1, $2, $3, $4)
	`, challengeID, auth.HashSecret(a.cfg.DeclarationSecret, token.Token), now, token.ExpiresAt)
	if err != nil {
		return models.CapabilityToken{}, fmt.Errorf("failed to store token: %w", err)
	}

	if err := transition(ctx, tx, challengeID, models.StateCode2Verified, models.StateTokenIssued, now); err != nil {
		return models.CapabilityToken{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.CapabilityToken{}, fmt.Errorf("failed to commit token: %w", err)
	}

	slog.Info("capability token issued", "challenge_id", challengeID, "expires_at", token.ExpiresAt)
	return token, nil
}

package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrRateLimited is returned when an email exceeds its signup attempt
// budget. Checked before any state mutation.
var ErrRateLimited = errors.New("too many subscription attempts for this email")

// Subscribe creates a subscription for the email, or reactivates the
// existing one. The attempt budget (maxPerDay over a trailing 24h) is
// enforced first; a rejected attempt leaves no trace.
func (db *DB) Subscribe(email string, countries []string, maxPerDay int) (*Subscription, SubscribeOutcome, error) {
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, 0, fmt.Errorf("invalid email address")
	}

	if maxPerDay > 0 {
		attempts, err := db.countRecentAttempts(email)
		if err != nil {
			return nil, 0, err
		}
		if attempts >= maxPerDay {
			return nil, 0, ErrRateLimited
		}
	}

	if _, err := db.conn.Exec(
		`INSERT INTO subscription_attempts (email) VALUES (?)`, email,
	); err != nil {
		return nil, 0, fmt.Errorf("recording attempt: %w", err)
	}

	existing, err := db.GetSubscriptionByEmail(email)
	if err != nil {
		return nil, 0, err
	}

	if existing != nil {
		outcome := SubscribeUnchanged
		if !existing.IsActive {
			if _, err := db.conn.Exec(
				`UPDATE subscriptions SET is_active = 1, countries = ? WHERE id = ?`,
				countriesJSON(countries), existing.ID,
			); err != nil {
				return nil, 0, fmt.Errorf("reactivating subscription: %w", err)
			}
			existing.IsActive = true
			existing.Countries = countries
			outcome = SubscribeReactivated
		}
		return existing, outcome, nil
	}

	sub := &Subscription{
		ID:               uuid.NewString(),
		Email:            email,
		Countries:        countries,
		IsActive:         true,
		UnsubscribeToken: uuid.NewString(),
	}
	if _, err := db.conn.Exec(
		`INSERT INTO subscriptions (id, email, countries, is_active, unsubscribe_token) VALUES (?, ?, ?, 1, ?)`,
		sub.ID, sub.Email, countriesJSON(countries), sub.UnsubscribeToken,
	); err != nil {
		return nil, 0, fmt.Errorf("creating subscription: %w", err)
	}
	return sub, SubscribeCreated, nil
}

// Unsubscribe deactivates the subscription matching the opaque token.
// Idempotent: already-inactive is a distinct outcome, not an error.
func (db *DB) Unsubscribe(token string) (UnsubscribeOutcome, error) {
	row := db.conn.QueryRow(
		`SELECT id, email, countries, is_active, unsubscribe_token, created_at
		 FROM subscriptions WHERE unsubscribe_token = ?`, token,
	)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return UnsubscribeNotFound, nil
	}
	if err != nil {
		return 0, err
	}
	if !sub.IsActive {
		return UnsubscribeAlreadyInactive, nil
	}

	if _, err := db.conn.Exec(
		`UPDATE subscriptions SET is_active = 0 WHERE id = ?`, sub.ID,
	); err != nil {
		return 0, fmt.Errorf("deactivating subscription: %w", err)
	}
	return UnsubscribeDone, nil
}

// GetActiveSubscriptions returns all active subscriptions.
func (db *DB) GetActiveSubscriptions() ([]Subscription, error) {
	return db.querySubscriptions(
		`SELECT id, email, countries, is_active, unsubscribe_token, created_at
		 FROM subscriptions WHERE is_active = 1 ORDER BY created_at`,
	)
}

// GetAllSubscriptions returns every subscription, active or not.
func (db *DB) GetAllSubscriptions() ([]Subscription, error) {
	return db.querySubscriptions(
		`SELECT id, email, countries, is_active, unsubscribe_token, created_at
		 FROM subscriptions ORDER BY created_at`,
	)
}

// GetSubscriptionByEmail returns the subscription for a normalized email,
// or nil if none exists.
func (db *DB) GetSubscriptionByEmail(email string) (*Subscription, error) {
	row := db.conn.QueryRow(
		`SELECT id, email, countries, is_active, unsubscribe_token, created_at
		 FROM subscriptions WHERE email = ?`, NormalizeEmail(email),
	)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// ResetAll deletes all subscriptions, attempt records, and the
// notification watermark unconditionally. Test-environment reset only;
// there is no soft version of this.
func (db *DB) ResetAll() error {
	if _, err := db.conn.Exec(`DELETE FROM subscriptions`); err != nil {
		return fmt.Errorf("deleting subscriptions: %w", err)
	}
	if _, err := db.conn.Exec(`DELETE FROM subscription_attempts`); err != nil {
		return fmt.Errorf("deleting attempts: %w", err)
	}
	if _, err := db.conn.Exec(`DELETE FROM notify_state`); err != nil {
		return fmt.Errorf("deleting notify state: %w", err)
	}
	return nil
}

// GetStats returns aggregate store statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM subscriptions`).Scan(&s.TotalSubscriptions); err != nil {
		return nil, err
	}
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM subscriptions WHERE is_active = 1`).Scan(&s.ActiveSubscriptions); err != nil {
		return nil, err
	}
	if err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM subscription_attempts WHERE attempted_at > datetime('now', '-1 day')`,
	).Scan(&s.AttemptsLast24h); err != nil {
		return nil, err
	}
	return s, nil
}

// NormalizeEmail lower-cases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (db *DB) countRecentAttempts(email string) (int, error) {
	var n int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM subscription_attempts
		 WHERE email = ? AND attempted_at > datetime('now', '-1 day')`, email,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting attempts: %w", err)
	}
	return n, nil
}

func countriesJSON(countries []string) *string {
	if countries == nil {
		return nil
	}
	data, err := json.Marshal(countries)
	if err != nil {
		return nil
	}
	s := string(data)
	return &s
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSubscription(row scannable) (*Subscription, error) {
	var sub Subscription
	var countries *string
	var active int
	if err := row.Scan(&sub.ID, &sub.Email, &countries, &active, &sub.UnsubscribeToken, &sub.CreatedAt); err != nil {
		return nil, err
	}
	sub.IsActive = active != 0
	if countries != nil {
		if err := json.Unmarshal([]byte(*countries), &sub.Countries); err != nil {
			sub.Countries = nil
		}
	}
	return &sub, nil
}

func (db *DB) querySubscriptions(query string, args ...any) ([]Subscription, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/huddle/internal/model"
)

// DefaultLoginCodeTTL is how long an emailed code stays valid.
const DefaultLoginCodeTTL = 15 * time.Minute

type LoginCodeStore struct {
	db   *sql.DB
	ttl  time.Duration
	cost int
	now  func() time.Time
}

func NewLoginCodeStore(db *sql.DB, ttl time.Duration) *LoginCodeStore {
	return &LoginCodeStore{db: db, ttl: ttl, cost: bcrypt.DefaultCost, now: time.Now}
}

func scanLoginCode(scanner interface{ Scan(...any) error }) (*model.LoginCode, error) {
	var lc model.LoginCode
	var expiresAt int64
	var usedAt sql.NullInt64

	err := scanner.Scan(&lc.ID, &lc.Email, &lc.CodeHash, &expiresAt, &usedAt, &lc.Attempts, &lc.CreatedAt)
	if err != nil {
		return nil, err
	}

	lc.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	if usedAt.Valid {
		t := time.Unix(usedAt.Int64, 0).UTC()
		lc.UsedAt = &t
	}
	return &lc, nil
}

const loginCodeCols = `id, email, code_hash, expires_at, used_at, attempts, created_at`

// generateCode returns a 6-digit numeric code (100000 to 999999).
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Create issues a new code for email and returns it in clear text; only the
// hash is persisted. Pending codes for the same email are invalidated first.
func (s *LoginCodeStore) Create(ctx context.Context, email string) (string, *model.LoginCode, error) {
	email = normalizeEmail(email)
	now := s.now().UTC()

	_, err := s.db.ExecContext(ctx,
		`UPDATE login_codes SET used_at = ? WHERE email = ? AND used_at IS NULL`,
		now.Unix(), email,
	)
	if err != nil {
		return "", nil, fmt.Errorf("invalidate previous codes: %w", err)
	}

	code, err := generateCode()
	if err != nil {
		return "", nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cost)
	if err != nil {
		return "", nil, fmt.Errorf("hash code: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO login_codes (email, code_hash, expires_at) VALUES (?, ?, ?)`,
		email, string(hash), now.Add(s.ttl).Unix(),
	)
	if err != nil {
		return "", nil, fmt.Errorf("insert login code: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return "", nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+loginCodeCols+` FROM login_codes WHERE id = ?`, id)
	lc, err := scanLoginCode(row)
	if err != nil {
		return "", nil, fmt.Errorf("get login code: %w", err)
	}
	return code, lc, nil
}

// GetLatestByEmail returns the newest unexpired, unused code for email, or
// nil if there is none.
func (s *LoginCodeStore) GetLatestByEmail(ctx context.Context, email string) (*model.LoginCode, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+loginCodeCols+` FROM login_codes
		 WHERE email = ? AND used_at IS NULL AND expires_at > ?
		 ORDER BY id DESC LIMIT 1`,
		normalizeEmail(email), s.now().UTC().Unix(),
	)
	lc, err := scanLoginCode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest login code: %w", err)
	}
	return lc, nil
}

// Matches reports whether code is the clear text behind lc.
func (s *LoginCodeStore) Matches(lc *model.LoginCode, code string) bool {
	return bcrypt.CompareHashAndPassword([]byte(lc.CodeHash), []byte(code)) == nil
}

// IncrementAttempts increments the attempt count and returns the new value.
func (s *LoginCodeStore) IncrementAttempts(ctx context.Context, id int64) (int, error) {
	var attempts int
	err := s.db.QueryRowContext(ctx,
		`UPDATE login_codes SET attempts = attempts + 1 WHERE id = ? RETURNING attempts`,
		id,
	).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	return attempts, nil
}

// MarkUsed consumes the code. It reports false when the code was already
// used, so two concurrent redemptions cannot both succeed.
func (s *LoginCodeStore) MarkUsed(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE login_codes SET used_at = ? WHERE id = ? AND used_at IS NULL`,
		s.now().UTC().Unix(), id,
	)
	if err != nil {
		return false, fmt.Errorf("mark login code used: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// DeleteExpired removes codes past their expiry and returns how many went.
func (s *LoginCodeStore) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM login_codes WHERE expires_at <= ?`, s.now().UTC().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired login codes: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"

	"buildInPublicAPI/internal/apperr"
)

// Querier is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is a Querier that can open transactions.
type DB interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Clock returns the current instant. Services take one so tests can pin "now".
type Clock func() time.Time

const uniqueViolation = "23505"

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || strings.Contains(pgErr.ConstraintName, constraint)
}

// dbError logs the cause and wraps it as a DATABASE_ERROR for the envelope.
func dbError(op string, err error) error {
	log.WithError(err).WithField("op", op).Error("database operation failed")
	return apperr.Database(fmt.Sprintf("failed to %s", op), err)
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// slugify lowercases s and collapses every run of non-alphanumerics into a dash.
func slugify(s string) string {
	slug := slugInvalid.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(slug, "-")
}

var usernameInvalid = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// usernameBase derives a username candidate from an email local part or a name.
func usernameBase(candidates ...string) string {
	for _, c := range candidates {
		if i := strings.Index(c, "@"); i >= 0 {
			c = c[:i]
		}
		base := strings.ToLower(usernameInvalid.ReplaceAllString(c, ""))
		if len(base) > 24 {
			base = base[:24]
		}
		if len(base) >= 3 {
			return base
		}
	}
	return "builder"
}

// uniqueUsername appends a numeric suffix to base until no user holds it.
func uniqueUsername(ctx context.Context, q Querier, base string) (string, error) {
	candidate := base
	for i := 1; i <= 50; i++ {
		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(username) = LOWER($1))`, candidate).Scan(&exists); err != nil {
			return "", fmt.Errorf("failed to check username: %w", err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i+1)
	}
	return "", fmt.Errorf("could not find a free username for %q", base)
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// requireID rejects ids that are not UUIDs before they reach a uuid column.
func requireID(id, what string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.NotFound(what + " not found")
	}
	return nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"buildInPublicAPI/internal/apperr"
	"buildInPublicAPI/internal/types/startup"
	"buildInPublicAPI/internal/types/streak"
	"buildInPublicAPI/internal/types/user"
)

const (
	defaultCurrency = "USD"
	revenueWindow   = 30
)

const startupColumns = `s.id, s.owner_id, s.name, s.slug, s.tagline, s.description, s.website_url, s.logo_url, s.stage, s.created_at, s.updated_at`

// startupSelect joins the owner card onto every startup row.
const startupSelect = `SELECT ` + startupColumns + `, ` + summaryColumns + `
	FROM startups s
	JOIN users u ON u.id = s.owner_id`

func scanStartup(row pgx.Row) (*startup.Startup, error) {
	st := &startup.Startup{Owner: &user.Summary{}}
	err := row.Scan(
		&st.ID,
		&st.OwnerID,
		&st.Name,
		&st.Slug,
		&st.Tagline,
		&st.Description,
		&st.WebsiteURL,
		&st.LogoURL,
		&st.Stage,
		&st.CreatedAt,
		&st.UpdatedAt,
		&st.Owner.ID,
		&st.Owner.Username,
		&st.Owner.FirstName,
		&st.Owner.LastName,
		&st.Owner.ImageURL,
		&st.Owner.CurrentStreak,
	)
	return st, err
}

var maxCents = decimal.NewFromInt(math.MaxInt64)

// ParseAmountCents converts a major-unit decimal string ("123.45") into
// minor units. More than two decimal places or a value that does not fit
// in int64 minor units is rejected.
func ParseAmountCents(amount string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, apperr.Validation("Invalid amount", map[string]string{"amount": "must be a decimal number"})
	}
	if d.IsNegative() {
		return 0, apperr.Validation("Invalid amount", map[string]string{"amount": "must not be negative"})
	}
	cents := d.Shift(2)
	if !cents.IsInteger() {
		return 0, apperr.Validation("Invalid amount", map[string]string{"amount": "must have at most 2 decimal places"})
	}
	if cents.GreaterThan(maxCents) {
		return 0, apperr.Validation("Invalid amount", map[string]string{"amount": "is too large"})
	}
	return cents.IntPart(), nil
}

// FormatCents renders minor units as a fixed two-decimal amount.
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

type StartupService struct {
	db           DB
	activity     ActivitySink
	achievements AchievementTrigger
	loc          *time.Location
	now          Clock
}

func NewStartupService(db DB, activity ActivitySink, achievements AchievementTrigger, loc *time.Location, now Clock) *StartupService {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &StartupService{db: db, activity: activity, achievements: achievements, loc: loc, now: now}
}

// uniqueSlug appends -2, -3... to base until no startup holds it.
func uniqueSlug(ctx context.Context, q Querier, base string) (string, error) {
	candidate := base
	for i := 1; i <= 50; i++ {
		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM startups WHERE slug = $1)`, candidate).Scan(&exists); err != nil {
			return "", fmt.Errorf("failed to check slug: %w", err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i+1)
	}
	return "", fmt.Errorf("could not find a free slug for %q", base)
}

// requireOwner loads the startup's owner and checks it is userID.
func (s *StartupService) requireOwner(ctx context.Context, q Querier, userID, startupID string) error {
	if err := requireID(startupID, "Startup"); err != nil {
		return err
	}

	var ownerID string
	err := q.QueryRow(ctx, `SELECT owner_id FROM startups WHERE id = $1`, startupID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("Startup not found")
		}
		return dbError("load startup", err)
	}
	if ownerID != userID {
		return apperr.Forbidden("Only the owner can change this startup")
	}
	return nil
}

func (s *StartupService) CreateStartup(ctx context.Context, ownerID string, req *startup.CreateStartupRequest) (*startup.Startup, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := apperr.ValidateStruct(req); err != nil {
		return nil, err
	}
	base := slugify(req.Name)
	if base == "" {
		return nil, apperr.Validation("Invalid startup name", map[string]string{"name": "must contain letters or digits"})
	}
	if req.Stage == "" {
		req.Stage = startup.StageIdea
	}

	slug, err := uniqueSlug(ctx, s.db, base)
	if err != nil {
		return nil, dbError("pick startup slug", err)
	}

	st := &startup.Startup{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Name:        req.Name,
		Slug:        slug,
		Tagline:     req.Tagline,
		Description: req.Description,
		WebsiteURL:  req.WebsiteURL,
		LogoURL:     req.LogoURL,
		Stage:       req.Stage,
	}
	err = s.db.QueryRow(ctx, `
		INSERT INTO startups (id, owner_id, name, slug, tagline, description, website_url, logo_url, stage)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, st.ID, ownerID, st.Name, slug, st.Tagline, st.Description, st.WebsiteURL, st.LogoURL, string(st.Stage)).Scan(&st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "slug") {
			return nil, apperr.Conflict("A startup with this name already exists")
		}
		return nil, dbError("create startup", err)
	}

	log.WithFields(log.Fields{"owner_id": ownerID, "slug": slug}).Info("startups: created")
	return st, nil
}

// UpdateStartup keeps the slug stable so existing links keep working.
func (s *StartupService) UpdateStartup(ctx context.Context, userID, startupID string, req *startup.UpdateStartupRequest) (*startup.Startup, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := apperr.ValidateStruct(req); err != nil {
		return nil, err
	}
	if err := s.requireOwner(ctx, s.db, userID, startupID); err != nil {
		return nil, err
	}

	st := &startup.Startup{}
	err := s.db.QueryRow(ctx, `
		UPDATE startups s SET
			name        = COALESCE(NULLIF($2, ''), s.name),
			tagline     = COALESCE(NULLIF($3, ''), s.tagline),
			description = COALESCE(NULLIF($4, ''), s.description),
			website_url = COALESCE(NULLIF($5, ''), s.website_url),
			logo_url    = COALESCE(NULLIF($6, ''), s.logo_url),
			stage       = COALESCE(NULLIF($7, ''), s.stage),
			updated_at  = NOW()
		WHERE s.id = $1
		RETURNING `+startupColumns,
		startupID, req.Name, req.Tagline, req.Description, req.WebsiteURL, req.LogoURL, string(req.Stage),
	).Scan(&st.ID, &st.OwnerID, &st.Name, &st.Slug, &st.Tagline, &st.Description, &st.WebsiteURL, &st.LogoURL, &st.Stage, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Startup not found")
		}
		return nil, dbError("update startup", err)
	}
	return st, nil
}

// GetStartup returns the startup with its milestones and revenue summary.
func (s *StartupService) GetStartup(ctx context.Context, slug string) (*startup.Detail, error) {
	st, err := scanStartup(s.db.QueryRow(ctx, startupSelect+` WHERE s.slug = $1`, strings.ToLower(slug)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Startup not found")
		}
		return nil, dbError("get startup", err)
	}

	milestones, err := s.listMilestones(ctx, st.ID)
	if err != nil {
		return nil, err
	}

	summary, err := s.revenueSummary(ctx, st.ID)
	if err != nil {
		return nil, err
	}

	return &startup.Detail{Startup: st, Milestones: milestones, Revenue: *summary}, nil
}

// ListStartups lists every startup, or only ownerUsername's when given.
func (s *StartupService) ListStartups(ctx context.Context, ownerUsername string, limit int) ([]*startup.Startup, error) {
	limit = clampLimit(limit, 50, 200)

	rows, err := s.db.Query(ctx, startupSelect+`
		WHERE $1 = '' OR LOWER(u.username) = LOWER($1)
		ORDER BY s.created_at DESC
		LIMIT $2
	`, ownerUsername, limit)
	if err != nil {
		return nil, dbError("list startups", err)
	}
	defer rows.Close()

	out := []*startup.Startup{}
	for rows.Next() {
		st, err := scanStartup(rows)
		if err != nil {
			return nil, dbError("scan startup", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate startups", err)
	}
	return out, nil
}

func (s *StartupService) listMilestones(ctx context.Context, startupID string) ([]*startup.Milestone, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, startup_id, title, description, achieved_at, created_at
		FROM startup_milestones
		WHERE startup_id = $1
		ORDER BY achieved_at DESC
	`, startupID)
	if err != nil {
		return nil, dbError("list milestones", err)
	}
	defer rows.Close()

	out := []*startup.Milestone{}
	for rows.Next() {
		m := &startup.Milestone{}
		if err := rows.Scan(&m.ID, &m.StartupID, &m.Title, &m.Description, &m.AchievedAt, &m.CreatedAt); err != nil {
			return nil, dbError("scan milestone", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate milestones", err)
	}
	return out, nil
}

// AddMilestone records a milestone and queues an achievement evaluation.
func (s *StartupService) AddMilestone(ctx context.Context, userID, startupID string, req *startup.CreateMilestoneRequest) (*startup.Milestone, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := apperr.ValidateStruct(req); err != nil {
		return nil, err
	}
	if err := s.requireOwner(ctx, s.db, userID, startupID); err != nil {
		return nil, err
	}

	m := &startup.Milestone{
		ID:          uuid.New().String(),
		StartupID:   startupID,
		Title:       req.Title,
		Description: req.Description,
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO startup_milestones (id, startup_id, title, description, achieved_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))
		RETURNING achieved_at, created_at
	`, m.ID, startupID, m.Title, m.Description, req.AchievedAt).Scan(&m.AchievedAt, &m.CreatedAt)
	if err != nil {
		return nil, dbError("add milestone", err)
	}

	if s.achievements != nil {
		s.achievements.Reevaluate(userID)
	}
	return m, nil
}

func (s *StartupService) DeleteMilestone(ctx context.Context, userID, startupID, milestoneID string) error {
	if err := s.requireOwner(ctx, s.db, userID, startupID); err != nil {
		return err
	}
	if err := requireID(milestoneID, "Milestone"); err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM startup_milestones WHERE id = $1 AND startup_id = $2`, milestoneID, startupID)
	if err != nil {
		return dbError("delete milestone", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Milestone not found")
	}
	return nil
}

// AddRevenueEntry records revenue for an owned startup. A startup's entries
// share one currency so its summary can be summed.
func (s *StartupService) AddRevenueEntry(ctx context.Context, userID, startupID string, req *startup.CreateRevenueRequest) (*startup.RevenueEntry, error) {
	if err := apperr.ValidateStruct(req); err != nil {
		return nil, err
	}
	cents, err := ParseAmountCents(req.Amount)
	if err != nil {
		return nil, err
	}

	recordedOn := streak.Day(s.now(), s.loc)
	if req.RecordedOn != "" {
		recordedOn, err = time.ParseInLocation(time.DateOnly, req.RecordedOn, s.loc)
		if err != nil {
			return nil, apperr.Validation("Invalid date", map[string]string{"recordedOn": "must be a date in YYYY-MM-DD format"})
		}
	}

	if err := s.requireOwner(ctx, s.db, userID, startupID); err != nil {
		return nil, err
	}

	currency := strings.ToUpper(req.Currency)
	var existing string
	err = s.db.QueryRow(ctx, `SELECT currency FROM revenue_entries WHERE startup_id = $1 LIMIT 1`, startupID).Scan(&existing)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if currency == "" {
			currency = defaultCurrency
		}
	case err != nil:
		return nil, dbError("load revenue currency", err)
	case currency == "":
		currency = existing
	case currency != existing:
		return nil, apperr.Validation("Currency mismatch", map[string]string{"currency": "must be " + existing + " for this startup"})
	}

	entry := &startup.RevenueEntry{
		ID:          uuid.New().String(),
		StartupID:   startupID,
		UserID:      userID,
		AmountCents: cents,
		Amount:      FormatCents(cents),
		Currency:    currency,
		Note:        strings.TrimSpace(req.Note),
		RecordedOn:  recordedOn,
	}
	err = s.db.QueryRow(ctx, `
		INSERT INTO revenue_entries (id, startup_id, user_id, amount_cents, currency, note, recorded_on)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, entry.ID, startupID, userID, cents, currency, entry.Note, recordedOn).Scan(&entry.CreatedAt)
	if err != nil {
		return nil, dbError("add revenue entry", err)
	}

	log.WithFields(log.Fields{"startup_id": startupID, "amount_cents": cents, "currency": currency}).Info("startups: revenue recorded")

	if s.activity != nil {
		s.activity.Dispatch(userID, streak.ActivityRevenue)
	}
	return entry, nil
}

// ListRevenue is visible to the owner only.
func (s *StartupService) ListRevenue(ctx context.Context, userID, startupID string, limit int) ([]*startup.RevenueEntry, error) {
	if err := s.requireOwner(ctx, s.db, userID, startupID); err != nil {
		return nil, err
	}
	limit = clampLimit(limit, 100, 500)

	rows, err := s.db.Query(ctx, `
		SELECT id, startup_id, user_id, amount_cents, currency, note, recorded_on, created_at
		FROM revenue_entries
		WHERE startup_id = $1
		ORDER BY recorded_on DESC, created_at DESC
		LIMIT $2
	`, startupID, limit)
	if err != nil {
		return nil, dbError("list revenue", err)
	}
	defer rows.Close()

	out := []*startup.RevenueEntry{}
	for rows.Next() {
		e := &startup.RevenueEntry{}
		if err := rows.Scan(&e.ID, &e.StartupID, &e.UserID, &e.AmountCents, &e.Currency, &e.Note, &e.RecordedOn, &e.CreatedAt); err != nil {
			return nil, dbError("scan revenue entry", err)
		}
		e.Amount = FormatCents(e.AmountCents)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate revenue", err)
	}
	return out, nil
}

func (s *StartupService) revenueSummary(ctx context.Context, startupID string) (*startup.RevenueSummary, error) {
	since := streak.Day(s.now(), s.loc).AddDate(0, 0, -(revenueWindow - 1))

	sum := &startup.RevenueSummary{}
	err := s.db.QueryRow(ctx, `
		SELECT
			COALESCE(MAX(currency), ''),
			COALESCE(SUM(amount_cents), 0),
			COALESCE(SUM(amount_cents) FILTER (WHERE recorded_on >= $2), 0),
			COUNT(*)
		FROM revenue_entries
		WHERE startup_id = $1
	`, startupID, since).Scan(&sum.Currency, &sum.TotalCents, &sum.Last30DaysCents, &sum.Entries)
	if err != nil {
		return nil, dbError("summarize revenue", err)
	}
	if sum.Currency == "" {
		sum.Currency = defaultCurrency
	}
	sum.Total = FormatCents(sum.TotalCents)
	sum.Last30Days = FormatCents(sum.Last30DaysCents)
	return sum, nil
}

package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"

	"buildInPublicAPI/internal/apperr"
	"buildInPublicAPI/internal/types/streak"
)

const foreignKeyViolation = "23503"

// StreakService maintains one daily_streaks row per user and calendar day and
// the streak counters on the user row. Calendar days are taken in loc.
type StreakService struct {
	db  DB
	loc *time.Location
	now Clock
}

func NewStreakService(db DB, loc *time.Location, now Clock) *StreakService {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &StreakService{db: db, loc: loc, now: now}
}

func (s *StreakService) Today() time.Time {
	return streak.Day(s.now(), s.loc)
}

// RecordActivity marks kind on today's record and, when that makes the day
// active for the first time, recomputes the user's streak from the most
// recent active days. Everything runs in one transaction.
func (s *StreakService) RecordActivity(ctx context.Context, userID string, kind streak.ActivityKind) (*streak.ActivityResult, error) {
	if !kind.Valid() {
		return nil, apperr.Validation("Invalid activity kind", map[string]string{"kind": "must be one of post, commit, revenue, achievement"})
	}

	now := s.now()
	today := streak.Day(now, s.loc)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, dbError("begin streak transaction", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO daily_streaks (id, user_id, date)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, date) DO NOTHING
	`, uuid.New().String(), userID, today)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return nil, apperr.NotFound("User not found")
		}
		return nil, dbError("upsert daily streak record", err)
	}

	rec := streak.DailyStreakRecord{UserID: userID, Date: today}
	err = tx.QueryRow(ctx, `
		SELECT id, has_posted, has_committed, has_revenue, has_achievement, is_active_day
		FROM daily_streaks
		WHERE user_id = $1 AND date = $2
		FOR UPDATE
	`, userID, today).Scan(
		&rec.ID,
		&rec.HasPosted,
		&rec.HasCommitted,
		&rec.HasRevenue,
		&rec.HasAchievement,
		&rec.IsActiveDay,
	)
	if err != nil {
		return nil, dbError("load daily streak record", err)
	}

	becameActive := rec.Mark(kind)

	_, err = tx.Exec(ctx, `
		UPDATE daily_streaks
		SET has_posted = $2, has_committed = $3, has_revenue = $4, has_achievement = $5,
		    is_active_day = $6, updated_at = NOW()
		WHERE id = $1
	`, rec.ID, rec.HasPosted, rec.HasCommitted, rec.HasRevenue, rec.HasAchievement, rec.IsActiveDay)
	if err != nil {
		return nil, dbError("update daily streak record", err)
	}

	result := &streak.ActivityResult{Record: rec, BecameActive: becameActive}

	if becameActive {
		st, err := s.recompute(ctx, tx, userID, today, now)
		if err != nil {
			return nil, err
		}
		result.Streak = st
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, dbError("commit streak transaction", err)
	}

	log.WithFields(log.Fields{
		"user_id":       userID,
		"kind":          kind,
		"became_active": becameActive,
	}).Debug("streak: activity recorded")

	return result, nil
}

func (s *StreakService) recompute(ctx context.Context, q Querier, userID string, today, now time.Time) (*streak.Streak, error) {
	rows, err := q.Query(ctx, `
		SELECT date
		FROM daily_streaks
		WHERE user_id = $1 AND is_active_day = TRUE
		ORDER BY date DESC
		LIMIT $2
	`, userID, streak.MaxRecomputeDays)
	if err != nil {
		return nil, dbError("load active days", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, dbError("scan active day", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate active days", err)
	}

	current := streak.CurrentStreak(today, dates)

	st := &streak.Streak{UserID: userID, LastActivityDate: &now}
	err = q.QueryRow(ctx, `
		UPDATE users
		SET current_streak = $2,
		    longest_streak = GREATEST(longest_streak, $2),
		    last_activity_date = $3,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING current_streak, longest_streak
	`, userID, current, now).Scan(&st.CurrentStreak, &st.LongestStreak)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, dbError("update user streak", err)
	}

	return st, nil
}

// GetStreak returns the stored counters. A streak whose last active day is
// before yesterday is reported as broken (zero) without writing.
func (s *StreakService) GetStreak(ctx context.Context, userID string) (*streak.Streak, error) {
	st := &streak.Streak{UserID: userID}
	err := s.db.QueryRow(ctx, `
		SELECT current_streak, longest_streak, last_activity_date
		FROM users
		WHERE id = $1
	`, userID).Scan(&st.CurrentStreak, &st.LongestStreak, &st.LastActivityDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, dbError("get streak", err)
	}

	yesterday := s.Today().AddDate(0, 0, -1)
	if st.LastActivityDate == nil || streak.Day(*st.LastActivityDate, s.loc).Before(yesterday) {
		st.CurrentStreak = 0
	}

	return st, nil
}

// GetActivityCalendar returns one entry per day for the last days days,
// oldest first, including inactive days.
func (s *StreakService) GetActivityCalendar(ctx context.Context, userID string, days int) ([]streak.CalendarDay, error) {
	days = clampLimit(days, 30, streak.MaxRecomputeDays)
	today := s.Today()
	from := today.AddDate(0, 0, -(days - 1))

	rows, err := s.db.Query(ctx, `
		SELECT date, has_posted, has_committed, has_revenue, has_achievement, is_active_day
		FROM daily_streaks
		WHERE user_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date
	`, userID, from, today)
	if err != nil {
		return nil, dbError("load activity calendar", err)
	}
	defer rows.Close()

	byDate := make(map[string]streak.CalendarDay)
	for rows.Next() {
		var (
			d   time.Time
			day streak.CalendarDay
		)
		if err := rows.Scan(&d, &day.Posted, &day.Committed, &day.Revenue, &day.Achievement, &day.Active); err != nil {
			return nil, dbError("scan activity calendar", err)
		}
		day.Date = d.Format("2006-01-02")
		byDate[day.Date] = day
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("iterate activity calendar", err)
	}

	calendar := make([]streak.CalendarDay, 0, days)
	for i := 0; i < days; i++ {
		key := from.AddDate(0, 0, i).Format("2006-01-02")
		day, ok := byDate[key]
		if !ok {
			day = streak.CalendarDay{Date: key}
		}
		calendar = append(calendar, day)
	}

	return calendar, nil
}

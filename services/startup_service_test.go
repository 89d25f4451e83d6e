package services

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildInPublicAPI/internal/apperr"
	"buildInPublicAPI/internal/types/startup"
	"buildInPublicAPI/internal/types/streak"
)

func TestParseAmountCents(t *testing.T) {
	cases := map[string]int64{
		"123.45": 12345,
		"0.5":    50,
		"19":     1900,
		" 7.00 ": 700,
		"0":      0,
	}
	for in, want := range cases {
		got, err := ParseAmountCents(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	maxAmount, err := ParseAmountCents("92233720368547758.07")
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), maxAmount)

	for _, bad := range []string{"", "abc", "-1", "1.234", "92233720368547758.08", "184467440737095516.17"} {
		_, err := ParseAmountCents(bad)
		assert.True(t, apperr.Is(err, apperr.CodeValidation), bad)
	}

	assert.Equal(t, "123.45", FormatCents(12345))
	assert.Equal(t, "0.05", FormatCents(5))
	assert.Equal(t, "1900.00", FormatCents(190000))
}

func TestCreateStartup_PicksFreeSlug(t *testing.T) {
	mock := newMock(t)
	svc := NewStartupService(mock, nil, nil, time.UTC, fixedClock)

	mock.ExpectQuery("SELECT EXISTS").WithArgs("ship-it").WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("ship-it-2").WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO startups").
		WithArgs(pgxmock.AnyArg(), "u1", "Ship It!", "ship-it-2", "", "", "", "", "idea").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(fixedNow, fixedNow))

	st, err := svc.CreateStartup(context.Background(), "u1", &startup.CreateStartupRequest{Name: " Ship It! "})
	require.NoError(t, err)
	assert.Equal(t, "ship-it-2", st.Slug)
	assert.Equal(t, startup.StageIdea, st.Stage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStartup_OwnerOnly(t *testing.T) {
	mock := newMock(t)
	svc := NewStartupService(mock, nil, nil, time.UTC, fixedClock)

	mock.ExpectQuery("SELECT owner_id FROM startups").WithArgs(startupX).
		WillReturnRows(pgxmock.NewRows([]string{"owner_id"}).AddRow("u1"))

	_, err := svc.UpdateStartup(context.Background(), "u2", startupX, &startup.UpdateStartupRequest{Tagline: "new"})
	assert.True(t, apperr.Is(err, apperr.CodeForbidden))

	mock.ExpectQuery("SELECT owner_id FROM startups").WithArgs(startupX).WillReturnError(pgx.ErrNoRows)
	_, err = svc.UpdateStartup(context.Background(), "u2", startupX, &startup.UpdateStartupRequest{})
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddMilestone_TriggersEvaluation(t *testing.T) {
	mock := newMock(t)
	trigger := &fakeTrigger{}
	svc := NewStartupService(mock, nil, trigger, time.UTC, fixedClock)

	mock.ExpectQuery("SELECT owner_id FROM startups").WithArgs(startupX).
		WillReturnRows(pgxmock.NewRows([]string{"owner_id"}).AddRow("u1"))
	mock.ExpectQuery("INSERT INTO startup_milestones").
		WithArgs(pgxmock.AnyArg(), startupX, "Launched on HN", "", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"achieved_at", "created_at"}).AddRow(fixedNow, fixedNow))

	m, err := svc.AddMilestone(context.Background(), "u1", startupX, &startup.CreateMilestoneRequest{Title: "Launched on HN"})
	require.NoError(t, err)
	assert.Equal(t, fixedNow, m.AchievedAt)
	assert.Equal(t, []string{"u1"}, trigger.Users())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddRevenueEntry(t *testing.T) {
	mock := newMock(t)
	sink := &fakeSink{}
	svc := NewStartupService(mock, sink, nil, time.UTC, fixedClock)
	today := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT owner_id FROM startups").WithArgs(startupX).
		WillReturnRows(pgxmock.NewRows([]string{"owner_id"}).AddRow("u1"))
	mock.ExpectQuery("SELECT currency FROM revenue_entries").WithArgs(startupX).WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("INSERT INTO revenue_entries").
		WithArgs(pgxmock.AnyArg(), startupX, "u1", int64(12345), "USD", "first customer", today).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(fixedNow))

	entry, err := svc.AddRevenueEntry(context.Background(), "u1", startupX, &startup.CreateRevenueRequest{Amount: "123.45", Note: "first customer"})
	require.NoError(t, err)
	assert.Equal(t, "123.45", entry.Amount)
	assert.Equal(t, today, entry.RecordedOn)
	assert.Equal(t, []dispatched{{"u1", streak.ActivityRevenue}}, sink.Calls())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddRevenueEntry_CurrencyMismatch(t *testing.T) {
	mock := newMock(t)
	sink := &fakeSink{}
	svc := NewStartupService(mock, sink, nil, time.UTC, fixedClock)

	mock.ExpectQuery("SELECT owner_id FROM startups").WithArgs(startupX).
		WillReturnRows(pgxmock.NewRows([]string{"owner_id"}).AddRow("u1"))
	mock.ExpectQuery("SELECT currency FROM revenue_entries").WithArgs(startupX).
		WillReturnRows(pgxmock.NewRows([]string{"currency"}).AddRow("USD"))

	_, err := svc.AddRevenueEntry(context.Background(), "u1", startupX, &startup.CreateRevenueRequest{Amount: "10", Currency: "eur"})
	assert.Equal(t, "must be USD for this startup", apperr.From(err).Fields["currency"])
	assert.Empty(t, sink.Calls())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddRevenueEntry_RecordedOn(t *testing.T) {
	mock := newMock(t)
	svc := NewStartupService(mock, &fakeSink{}, nil, time.UTC, fixedClock)
	day := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT owner_id FROM startups").WithArgs(startupX).
		WillReturnRows(pgxmock.NewRows([]string{"owner_id"}).AddRow("u1"))
	mock.ExpectQuery("SELECT currency FROM revenue_entries").WithArgs(startupX).WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("INSERT INTO revenue_entries").
		WithArgs(pgxmock.AnyArg(), startupX, "u1", int64(500), "USD", "", day).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(fixedNow))

	entry, err := svc.AddRevenueEntry(context.Background(), "u1", startupX, &startup.CreateRevenueRequest{Amount: "5", RecordedOn: "2026-10-01"})
	require.NoError(t, err)
	assert.Equal(t, day, entry.RecordedOn)

	_, err = svc.AddRevenueEntry(context.Background(), "u1", startupX, &startup.CreateRevenueRequest{Amount: "5", RecordedOn: "2026-13-01"})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
	assert.Contains(t, apperr.From(err).Fields, "recordedOn")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStartup_Detail(t *testing.T) {
	mock := newMock(t)
	svc := NewStartupService(mock, nil, nil, time.UTC, fixedClock)

	mock.ExpectQuery("WHERE s.slug = ").WithArgs("ship-it").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "owner_id", "name", "slug", "tagline", "description", "website_url", "logo_url", "stage", "created_at", "updated_at",
			"uid", "username", "first_name", "last_name", "image_url", "current_streak",
		}).AddRow(startupX, "u1", "Ship It", "ship-it", "", "", "", "", "launched", fixedNow, fixedNow,
			"u1", "ada", "Ada", "Lovelace", "", 5))
	mock.ExpectQuery("FROM startup_milestones").WithArgs(startupX).
		WillReturnRows(pgxmock.NewRows([]string{"id", "startup_id", "title", "description", "achieved_at", "created_at"}).
			AddRow("m1", startupX, "Beta", "", fixedNow, fixedNow))
	mock.ExpectQuery("FROM revenue_entries").
		WithArgs(startupX, time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)).
		WillReturnRows(pgxmock.NewRows([]string{"currency", "total", "recent", "count"}).AddRow("USD", int64(250050), int64(5000), 3))

	detail, err := svc.GetStartup(context.Background(), "Ship-It")
	require.NoError(t, err)
	assert.Equal(t, startup.StageLaunched, detail.Startup.Stage)
	assert.Equal(t, "ada", detail.Startup.Owner.Username)
	require.Len(t, detail.Milestones, 1)
	assert.Equal(t, "2500.50", detail.Revenue.Total)
	assert.Equal(t, "50.00", detail.Revenue.Last30Days)
	assert.Equal(t, 3, detail.Revenue.Entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMilestone_Missing(t *testing.T) {
	mock := newMock(t)
	svc := NewStartupService(mock, nil, nil, time.UTC, fixedClock)

	mock.ExpectQuery("SELECT owner_id FROM startups").WithArgs(startupX).
		WillReturnRows(pgxmock.NewRows([]string{"owner_id"}).AddRow("u1"))
	mock.ExpectExec("DELETE FROM startup_milestones").WithArgs(postA, startupX).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := svc.DeleteMilestone(context.Background(), "u1", startupX, postA)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

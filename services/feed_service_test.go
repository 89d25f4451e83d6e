package services

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildInPublicAPI/internal/apperr"
)

func TestCursorRoundTrip(t *testing.T) {
	c := Cursor{CreatedAt: time.Date(2026, 10, 14, 9, 30, 0, 123456000, time.UTC), ID: postA}

	decoded, err := DecodeCursor(EncodeCursor(c))
	require.NoError(t, err)
	assert.True(t, c.CreatedAt.Equal(decoded.CreatedAt))
	assert.Equal(t, c.ID, decoded.ID)

	empty, err := DecodeCursor("")
	assert.NoError(t, err)
	assert.Nil(t, empty)

	for _, bad := range []string{"%%%", "bm9waXBl", EncodeCursor(Cursor{ID: ""}), EncodeCursor(Cursor{CreatedAt: fixedNow, ID: "not-a-uuid"})} {
		_, err := DecodeCursor(bad)
		assert.True(t, apperr.Is(err, apperr.CodeValidation), bad)
	}
}

func TestGetFeed_KeysetPagination(t *testing.T) {
	mock := newMock(t)
	svc := NewFeedService(mock, fixedClock)

	t1 := fixedNow.Add(-time.Hour)
	t2 := fixedNow.Add(-2 * time.Hour)
	t3 := fixedNow.Add(-3 * time.Hour)

	mock.ExpectQuery("FROM follows WHERE follower_id").
		WithArgs("u1", pgxmock.AnyArg(), pgxmock.AnyArg(), 3).
		WillReturnRows(pgxmock.NewRows(postCols).
			AddRow(postRowValues(postA, "u1", t1)...).
			AddRow(postRowValues(postB, "u2", t2)...).
			AddRow(postRowValues(postC, "u2", t3)...))
	mock.ExpectQuery("FROM post_tags pt").
		WithArgs([]string{postA, postB, postC}).
		WillReturnRows(pgxmock.NewRows([]string{"post_id", "name"}).AddRow(postA, "go").AddRow(postA, "saas"))

	page, err := svc.GetFeed(context.Background(), "u1", "", 2)
	require.NoError(t, err)

	require.Len(t, page.Posts, 2)
	assert.Equal(t, []string{"go", "saas"}, page.Posts[0].Tags)
	assert.Equal(t, []string{}, page.Posts[1].Tags)
	assert.Equal(t, 2, page.Posts[0].LikeCount)
	assert.Equal(t, "ada", page.Posts[0].Author.Username)

	next, err := DecodeCursor(page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, postB, next.ID)
	assert.True(t, t2.Equal(next.CreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetExplore_LastPageHasNoCursor(t *testing.T) {
	mock := newMock(t)
	svc := NewFeedService(mock, fixedClock)

	cursor := EncodeCursor(Cursor{CreatedAt: fixedNow, ID: postA})
	mock.ExpectQuery("WHERE TRUE").
		WithArgs("", pgxmock.AnyArg(), pgxmock.AnyArg(), 21).
		WillReturnRows(pgxmock.NewRows(postCols).AddRow(postRowValues(postB, "u2", fixedNow.Add(-time.Minute))...))
	mock.ExpectQuery("FROM post_tags pt").
		WithArgs([]string{postB}).
		WillReturnRows(pgxmock.NewRows([]string{"post_id", "name"}))

	page, err := svc.GetExplore(context.Background(), "", cursor, 0)
	require.NoError(t, err)
	assert.Len(t, page.Posts, 1)
	assert.Empty(t, page.NextCursor)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserPosts_UnknownUser(t *testing.T) {
	mock := newMock(t)
	svc := NewFeedService(mock, fixedClock)

	mock.ExpectQuery("SELECT EXISTS").WithArgs("ghost").WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := svc.GetUserPosts(context.Background(), "ghost", "", "", 10)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrendingTags(t *testing.T) {
	mock := newMock(t)
	svc := NewFeedService(mock, fixedClock)

	mock.ExpectQuery("GROUP BY t.name").
		WithArgs(fixedNow.Add(-7*24*time.Hour), 10).
		WillReturnRows(pgxmock.NewRows([]string{"name", "uses"}).AddRow("go", 12).AddRow("ai", 7))

	tags, err := svc.TrendingTags(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "go", tags[0].Tag)
	assert.Equal(t, 12, tags[0].PostCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTagPosts_NormalizesTag(t *testing.T) {
	mock := newMock(t)
	svc := NewFeedService(mock, fixedClock)

	mock.ExpectQuery("WHERE t.name = ").
		WithArgs("", pgxmock.AnyArg(), pgxmock.AnyArg(), 21, "build-in-public").
		WillReturnRows(pgxmock.NewRows(postCols))

	page, err := svc.GetTagPosts(context.Background(), "#Build In Public", "", "", 0)
	require.NoError(t, err)
	assert.Empty(t, page.Posts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

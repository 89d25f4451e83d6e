package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const calendarBody = `{
  "data": {
    "user": {
      "contributionsCollection": {
        "contributionCalendar": {
          "totalContributions": 7,
          "weeks": [
            {"contributionDays": [
              {"date": "2026-10-11", "contributionCount": 0},
              {"date": "2026-10-12", "contributionCount": 3}
            ]},
            {"contributionDays": [
              {"date": "2026-10-13", "contributionCount": 4}
            ]}
          ]
        }
      }
    }
  }
}`

func newGraphQLServer(t *testing.T, status int, body string) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var req struct {
			Query     string            `json:"query"`
			Variables map[string]string `json:"variables"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "octocat", req.Variables["login"])
		assert.Contains(t, req.Query, "contributionCalendar")

		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestFetchContributions_Success(t *testing.T) {
	srv, calls := newGraphQLServer(t, http.StatusOK, calendarBody)
	client := NewClient("test-token", srv.URL)

	got, err := client.FetchContributions(context.Background(), "octocat")
	require.NoError(t, err)

	assert.Equal(t, 1, *calls)
	assert.Equal(t, 7, got.TotalContributions)
	assert.False(t, got.Synthetic)
	require.Len(t, got.Days, 3)
	assert.Equal(t, Day{Date: "2026-10-13", Count: 4}, got.Days[2])
	assert.Equal(t, 3, got.CountOn("2026-10-12"))
	assert.Equal(t, 2, got.CurrentStreak())
}

func TestFetchContributions_FailureClasses(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "non-200",
			status: http.StatusBadGateway,
			body:   "upstream down",
			check: func(t *testing.T, err error) {
				var statusErr *StatusError
				require.ErrorAs(t, err, &statusErr)
				assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
			},
		},
		{
			name:   "missing user",
			status: http.StatusOK,
			body:   `{"data":{"user":null},"errors":[{"type":"NOT_FOUND","message":"Could not resolve to a User"}]}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrUserNotFound)
			},
		},
		{
			name:   "null user without errors",
			status: http.StatusOK,
			body:   `{"data":{"user":null}}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrUserNotFound)
			},
		},
		{
			name:   "graphql errors",
			status: http.StatusOK,
			body:   `{"errors":[{"type":"RATE_LIMITED","message":"API rate limit exceeded"}]}`,
			check: func(t *testing.T, err error) {
				var gqlErr *GraphQLError
				require.ErrorAs(t, err, &gqlErr)
				assert.Equal(t, []string{"API rate limit exceeded"}, gqlErr.Messages)
			},
		},
		{
			name:   "not json",
			status: http.StatusOK,
			body:   `<html>`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMalformedResponse)
			},
		},
		{
			name:   "missing calendar",
			status: http.StatusOK,
			body:   `{"data":{"user":{"contributionsCollection":{}}}}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrMalformedResponse)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newGraphQLServer(t, tc.status, tc.body)
			_, err := NewClient("test-token", srv.URL).FetchContributions(context.Background(), "octocat")
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestFetchContributions_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient("test-token", url).FetchContributions(context.Background(), "octocat")
	assert.Error(t, err)
}

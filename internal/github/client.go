package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

const DefaultEndpoint = "https://api.github.com/graphql"

const contributionsQuery = `query($login: String!) {
  user(login: $login) {
    contributionsCollection {
      contributionCalendar {
        totalContributions
        weeks {
          contributionDays {
            date
            contributionCount
          }
        }
      }
    }
  }
}`

var (
	ErrUserNotFound      = errors.New("github user not found")
	ErrMalformedResponse = errors.New("malformed github response")
)

// StatusError is returned for any non-200 response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("github responded with status %d: %s", e.StatusCode, e.Body)
}

// GraphQLError carries the messages from a response's errors array.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "github graphql error: " + strings.Join(e.Messages, "; ")
}

type Client struct {
	httpClient *http.Client
	endpoint   string
	now        func() time.Time
}

// NewClient authenticates every request with token as a bearer credential.
// An empty token yields an unauthenticated client, which GitHub rejects; the
// cache then serves synthetic data.
func NewClient(token, endpoint string) *Client {
	hc := &http.Client{Timeout: 10 * time.Second}
	if token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		hc = oauth2.NewClient(context.Background(), src)
		hc.Timeout = 10 * time.Second
	}
	return NewClientWithHTTP(hc, endpoint)
}

func NewClientWithHTTP(hc *http.Client, endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{httpClient: hc, endpoint: endpoint, now: time.Now}
}

func (c *Client) FetchContributions(ctx context.Context, username string) (*Contributions, error) {
	payload, err := json.Marshal(map[string]any{
		"query":     contributionsQuery,
		"variables": map[string]string{"login": username},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode github query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build github request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call github: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read github response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}

	return parseContributions(username, body, c.now())
}

func parseContributions(username string, body []byte, fetchedAt time.Time) (*Contributions, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrMalformedResponse
	}

	if errs := gjson.GetBytes(body, "errors"); errs.IsArray() && len(errs.Array()) > 0 {
		var messages []string
		notFound := false
		for _, e := range errs.Array() {
			messages = append(messages, e.Get("message").String())
			if e.Get("type").String() == "NOT_FOUND" {
				notFound = true
			}
		}
		if notFound {
			return nil, ErrUserNotFound
		}
		return nil, &GraphQLError{Messages: messages}
	}

	user := gjson.GetBytes(body, "data.user")
	if !user.Exists() || user.Type == gjson.Null {
		return nil, ErrUserNotFound
	}

	calendar := user.Get("contributionsCollection.contributionCalendar")
	weeks := calendar.Get("weeks")
	total := calendar.Get("totalContributions")
	if !weeks.IsArray() || total.Type != gjson.Number {
		return nil, ErrMalformedResponse
	}

	out := &Contributions{
		Username:           username,
		TotalContributions: int(total.Int()),
		FetchedAt:          fetchedAt,
	}

	malformed := false
	weeks.ForEach(func(_, week gjson.Result) bool {
		week.Get("contributionDays").ForEach(func(_, day gjson.Result) bool {
			date := day.Get("date")
			count := day.Get("contributionCount")
			if date.Type != gjson.String || count.Type != gjson.Number {
				malformed = true
				return false
			}
			out.Days = append(out.Days, Day{Date: date.String(), Count: int(count.Int())})
			return true
		})
		return !malformed
	})
	if malformed {
		return nil, ErrMalformedResponse
	}

	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

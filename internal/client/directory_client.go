package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"golang.org/x/time/rate"

	"github.com/dappierto/ramp-dummy-app-sub000/internal/errors"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/logger"
	"github.com/dappierto/ramp-dummy-app-sub000/internal/policy"
)

// maxIDsPerRequest bounds the ids query parameter.
const maxIDsPerRequest = 100

// DirectoryConfig configures DirectoryHTTPClient.
type DirectoryConfig struct {
	BaseURL       string
	Timeout       time.Duration
	Attempts      uint
	RetryDelay    time.Duration
	RatePerSecond float64
}

// DirectoryHTTPClient reads people from the external directory API, which
// answers GET /people?ids=a,b with a JSON array of role-tagged people.
type DirectoryHTTPClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	attempts   uint
	retryDelay time.Duration
	log        *logger.Logger
}

// NewDirectoryHTTPClient creates a directory client.
func NewDirectoryHTTPClient(cfg DirectoryConfig, log *logger.Logger) *DirectoryHTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &DirectoryHTTPClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		attempts:   cfg.Attempts,
		retryDelay: cfg.RetryDelay,
		log:        log.WithComponent("directory_client"),
	}
}

// DirectoryPerson is one entry of the directory response.
type DirectoryPerson struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

// statusError is a non-2xx response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("directory returned status %d: %s", e.code, e.body)
}

func retryable(err error) bool {
	if !retry.IsRecoverable(err) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= http.StatusInternalServerError
	}
	return true
}

// LookupPeople fetches the given ids in batches. Ids the directory does not
// know are absent from the result. Any failed batch fails the whole lookup.
func (c *DirectoryHTTPClient) LookupPeople(ctx context.Context, ids []string) (map[string]policy.Person, error) {
	people := make(map[string]policy.Person, len(ids))
	for start := 0; start < len(ids); start += maxIDsPerRequest {
		end := min(start+maxIDsPerRequest, len(ids))

		batch, err := c.fetch(ctx, ids[start:end])
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeUnavailable, "directory lookup failed")
		}
		for _, p := range batch {
			people[p.ID] = policy.Person{
				ID:        p.ID,
				FirstName: p.FirstName,
				LastName:  p.LastName,
				Email:     p.Email,
			}
		}
	}
	return people, nil
}

func (c *DirectoryHTTPClient) fetch(ctx context.Context, ids []string) ([]DirectoryPerson, error) {
	endpoint := c.baseURL + "/people?" + url.Values{"ids": {strings.Join(ids, ",")}}.Encode()

	var people []DirectoryPerson
	err := retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			var err error
			people, err = c.get(ctx, endpoint)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			c.log.Warn().Err(err).Uint("attempt", n+1).Int("ids", len(ids)).Msg("Directory request failed, retrying")
		}),
		retry.LastErrorOnly(true),
	)
	return people, err
}

func (c *DirectoryHTTPClient) get(ctx context.Context, endpoint string) ([]DirectoryPerson, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	var people []DirectoryPerson
	if err := json.NewDecoder(resp.Body).Decode(&people); err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("decode directory response: %w", err))
	}
	return people, nil
}

package habbo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"habbo-sync/internal/models"
	"habbo-sync/internal/security"
)

const defaultUserAgent = "habbo-sync/1.0 (+fansite tracker)"

type Client struct {
	log        *slog.Logger
	httpClient *http.Client
	limiters   *security.LimiterStore

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker

	userAgent    string
	fetchTimeout time.Duration
	baseOverride string // test hook: replaces the hotel base URL when set
}

type ClientOptions struct {
	FetchTimeout time.Duration
	UserAgent    string
	// BaseURL overrides the hotel base URL (httptest servers).
	BaseURL string
}

func NewClient(log *slog.Logger, opts ClientOptions) *Client {
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	return &Client{
		log:        log,
		httpClient: NewHTTPClient(),
		// 2 req/s por hotel com burst pequeno; os hotéis banem IPs agressivos
		limiters:     security.NewLimiterStore(rate.Limit(2), 4, 10*time.Minute),
		breakers:     make(map[string]*CircuitBreaker),
		userAgent:    ua,
		fetchTimeout: timeout,
		baseOverride: opts.BaseURL,
	}
}

func (c *Client) breaker(domain string) *CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	cb, ok := c.breakers[domain]
	if !ok {
		cb = NewCircuitBreaker()
		c.breakers[domain] = cb
	}
	return cb
}

func (c *Client) base(domain string) string {
	if c.baseOverride != "" {
		return c.baseOverride
	}
	return baseURL(domain)
}

// upstream wire shapes
type apiUser struct {
	UniqueID       string `json:"uniqueId"`
	Name           string `json:"name"`
	Motto          string `json:"motto"`
	FigureString   string `json:"figureString"`
	Online         bool   `json:"online"`
	MemberSince    string `json:"memberSince"`
	ProfileVisible bool   `json:"profileVisible"`
}

type apiBadge struct {
	Code string `json:"code"`
}

type apiFriend struct {
	UniqueID string `json:"uniqueId"`
}

type apiPhoto struct {
	ID string `json:"id"`
}

// FetchProfile loads the full public profile for (name, hotel): the user
// lookup plus badges, friends and photos keyed by the returned stable id.
// All four upstream calls share one fetch budget; any sub-fetch failure
// fails the whole profile fetch.
func (c *Client) FetchProfile(ctx context.Context, habboName, hotel string) (*models.Profile, error) {
	if habboName == "" {
		return nil, fmt.Errorf("habbo: empty habbo name")
	}
	domain, err := NormalizeHotel(hotel)
	if err != nil {
		return nil, err
	}

	cb := c.breaker(domain)
	if !cb.Allow() {
		return nil, &TransientError{Op: "fetch_profile", Err: fmt.Errorf("circuit %s for hotel %s", cb.StateString(), domain)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	var user apiUser
	lookupURL := fmt.Sprintf("%s/api/public/users?name=%s", c.base(domain), url.QueryEscape(habboName))
	if err := c.getJSON(ctx, domain, "user_lookup", lookupURL, &user); err != nil {
		if IsTransient(err) {
			cb.RecordFailure()
		}
		return nil, err
	}

	// perfil fechado se comporta como inexistente: sem listas não há diff
	// confiável, e o tracking continua ativo para quando reabrir
	if !user.ProfileVisible {
		c.log.Debug("profile_not_visible", "habbo_name", habboName, "hotel", domain)
		return nil, ErrProfileNotFound
	}

	var badges []apiBadge
	badgesURL := fmt.Sprintf("%s/api/public/users/%s/badges", c.base(domain), url.PathEscape(user.UniqueID))
	if err := c.getJSON(ctx, domain, "badges", badgesURL, &badges); err != nil {
		if IsTransient(err) {
			cb.RecordFailure()
		}
		return nil, err
	}

	var friends []apiFriend
	friendsURL := fmt.Sprintf("%s/api/public/users/%s/friends", c.base(domain), url.PathEscape(user.UniqueID))
	if err := c.getJSON(ctx, domain, "friends", friendsURL, &friends); err != nil {
		if IsTransient(err) {
			cb.RecordFailure()
		}
		return nil, err
	}

	var photos []apiPhoto
	photosURL := fmt.Sprintf("%s/extradata/public/users/%s/photos", c.base(domain), url.PathEscape(user.UniqueID))
	if err := c.getJSON(ctx, domain, "photos", photosURL, &photos); err != nil {
		if IsTransient(err) {
			cb.RecordFailure()
		}
		return nil, err
	}

	cb.RecordSuccess()

	profile := &models.Profile{
		UniqueID:     user.UniqueID,
		Name:         user.Name,
		Motto:        user.Motto,
		FigureString: user.FigureString,
		Online:       user.Online,
		MemberSince:  user.MemberSince,
		BadgeCodes:   make([]string, 0, len(badges)),
		FriendIDs:    make([]string, 0, len(friends)),
		PhotoIDs:     make([]string, 0, len(photos)),
		FetchedAt:    time.Now().UTC(),
	}
	for _, b := range badges {
		if b.Code != "" {
			profile.BadgeCodes = append(profile.BadgeCodes, b.Code)
		}
	}
	for _, f := range friends {
		if f.UniqueID != "" {
			profile.FriendIDs = append(profile.FriendIDs, f.UniqueID)
		}
	}
	for _, p := range photos {
		if p.ID != "" {
			profile.PhotoIDs = append(profile.PhotoIDs, p.ID)
		}
	}

	c.log.Info("profile_fetched",
		"habbo_name", habboName,
		"hotel", domain,
		"unique_id", profile.UniqueID,
		"badges", len(profile.BadgeCodes),
		"friends", len(profile.FriendIDs),
		"photos", len(profile.PhotoIDs),
	)

	return profile, nil
}

// getJSON performs one paced GET with 429 retry, mapping status codes to
// the fetch error taxonomy.
func (c *Client) getJSON(ctx context.Context, domain, op, rawURL string, out any) error {
	var resp *http.Response
	var lastErr error
	maxRetries := 3

	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := c.limiters.Wait(ctx, domain); err != nil {
			return &TransientError{Op: op, Err: err}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return fmt.Errorf("habbo: build request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err = c.httpClient.Do(req)
		if err != nil {
			c.log.Warn("api_request_failed", "op", op, "hotel", domain, "error", err)
			lastErr = &TransientError{Op: op, Err: err}
			if ctx.Err() != nil {
				return lastErr
			}
			continue
		}

		// 429: respeitar Retry-After e tentar de novo
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := 1.0
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if parsed, parseErr := time.ParseDuration(ra + "s"); parseErr == nil {
					retryAfter = parsed.Seconds()
				}
			}
			retryAfter += 0.5
			c.log.Warn("rate_limited", "op", op, "hotel", domain, "retry_after", retryAfter, "attempt", attempt+1)
			resp.Body.Close()
			lastErr = &TransientError{Op: op, Status: http.StatusTooManyRequests}

			select {
			case <-time.After(time.Duration(retryAfter * float64(time.Second))):
			case <-ctx.Done():
				return &TransientError{Op: op, Err: ctx.Err()}
			}
			resp = nil
			continue
		}

		break
	}

	if resp == nil {
		if lastErr != nil {
			return lastErr
		}
		return &TransientError{Op: op, Err: fmt.Errorf("no response after retries")}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrProfileNotFound
	case resp.StatusCode >= 500:
		return &TransientError{Op: op, Status: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("habbo: unexpected status in %s: status=%d body=%s", op, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("habbo: decode %s response: %w", op, err)
	}
	return nil
}

package provider

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Credentials carries everything needed to talk to one OVH telephony account.
// Endpoint comes from process config; the rest from the settings row.
type Credentials struct {
	Endpoint       string
	BillingAccount string
	AppKey         string
	AppSecret      string
	ConsumerKey    string
}

// OVHClient implements Client against the OVH REST API with its
// application-signature scheme.
type OVHClient struct {
	http  *resty.Client
	creds Credentials
	log   *slog.Logger

	clock func() time.Time
}

func NewOVHClient(creds Credentials, log *slog.Logger) *OVHClient {
	if log == nil {
		log = slog.Default()
	}
	httpc := resty.New().
		SetBaseURL(strings.TrimRight(creds.Endpoint, "/")).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetHeader("Accept", "application/json")

	return &OVHClient{
		http:  httpc,
		creds: creds,
		log:   log,
		clock: time.Now,
	}
}

func (c *OVHClient) ListServices(ctx context.Context) ([]string, error) {
	path := fmt.Sprintf("/telephony/%s/service", url.PathEscape(c.creds.BillingAccount))
	var out []string
	if err := c.get(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return out, nil
}

func (c *OVHClient) ListConsumptions(ctx context.Context, service string, from, to *time.Time) ([]string, error) {
	path := fmt.Sprintf("/telephony/%s/service/%s/voiceConsumption",
		url.PathEscape(c.creds.BillingAccount), url.PathEscape(service))

	q := url.Values{}
	if from != nil {
		q.Set("creationDatetime.from", from.UTC().Format(time.RFC3339))
	}
	if to != nil {
		q.Set("creationDatetime.to", to.UTC().Format(time.RFC3339))
	}

	ids, err := c.listIDs(ctx, path, q)
	if err != nil && len(q) > 0 {
		// Some accounts reject window parameters; an unwindowed listing is
		// still correct because ingestion dedups on id.
		c.log.Debug("windowed listing failed, retrying unwindowed", "service", service, "err", err)
		ids, err = c.listIDs(ctx, path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("list consumptions for %s: %w", service, err)
	}
	return ids, nil
}

func (c *OVHClient) GetDetail(ctx context.Context, service, consumptionID string) (json.RawMessage, error) {
	path := fmt.Sprintf("/telephony/%s/service/%s/voiceConsumption/%s",
		url.PathEscape(c.creds.BillingAccount), url.PathEscape(service), url.PathEscape(consumptionID))

	var raw json.RawMessage
	if err := c.get(ctx, path, &raw); err != nil {
		return nil, fmt.Errorf("get consumption %s: %w", consumptionID, err)
	}
	return raw, nil
}

func (c *OVHClient) Test(ctx context.Context) error {
	if _, err := c.ListServices(ctx); err != nil {
		return err
	}
	return nil
}

// listIDs decodes a listing response, which OVH returns as a JSON array of
// numeric ids.
func (c *OVHClient) listIDs(ctx context.Context, path string, q url.Values) ([]string, error) {
	var raw json.RawMessage
	p := path
	if len(q) > 0 {
		p = path + "?" + q.Encode()
	}
	if err := c.get(ctx, p, &raw); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var items []any
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}

	out := make([]string, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case json.Number:
			out = append(out, v.String())
		case string:
			out = append(out, v)
		default:
			out = append(out, fmt.Sprintf("%v", v))
		}
	}
	return out, nil
}

// get executes a signed GET. pathWithQuery must start with "/".
func (c *OVHClient) get(ctx context.Context, pathWithQuery string, out any) error {
	fullURL := c.http.BaseURL + pathWithQuery
	ts := strconv.FormatInt(c.clock().UTC().Unix(), 10)

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Ovh-Application", c.creds.AppKey).
		SetHeader("X-Ovh-Consumer", c.creds.ConsumerKey).
		SetHeader("X-Ovh-Timestamp", ts).
		SetHeader("X-Ovh-Signature", c.sign("GET", fullURL, "", ts)).
		Get(pathWithQuery)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("provider returned %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// sign computes the OVH "$1$"-prefixed SHA-1 request signature.
func (c *OVHClient) sign(method, fullURL, body, timestamp string) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s+%s+%s+%s+%s+%s",
		c.creds.AppSecret,
		c.creds.ConsumerKey,
		method,
		fullURL,
		body,
		timestamp,
	)
	return "$1$" + fmt.Sprintf("%x", h.Sum(nil))
}

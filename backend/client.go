// Package backend talks to the interview service's HTTP endpoints: job
// search and the one-shot opening question.
package backend

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"interview/errors"
	"interview/job"
	"interview/log"
)

var ErrRequestFailed = errors.New("request failed")

const (
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 200 // runes of an error body kept in the message
)

// Opening is the interviewer's first question.
type Opening struct {
	Text     string `json:"text,omitempty"`
	AudioURL string `json:"audio_url,omitempty"`
}

func (o Opening) Empty() bool { return o.Text == "" && o.AudioURL == "" }

type searchResponse struct {
	Jobs []job.Job `json:"jobs"`
}

type startRequest struct {
	Job job.Job `json:"job"`
}

type Client struct {
	http    *resty.Client
	baseURL string
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		baseURL: baseURL,
	}
}

// SearchJobs lists postings matching keyword. No matches is an empty slice,
// not an error. Bodies are decoded as JSON whatever their Content-Type.
func (c *Client) SearchJobs(ctx context.Context, keyword string) ([]job.Job, error) {
	var out searchResponse
	resp, err := c.http.R().
		SetContext(ctx).
		EnableTrace().
		SetQueryParam("keyword", keyword).
		SetResult(&out).
		ForceContentType("application/json").
		Get("/jobs")
	if err := c.check(resp, err, "job search"); err != nil {
		return nil, err
	}
	if out.Jobs == nil {
		return []job.Job{}, nil
	}
	return out.Jobs, nil
}

// StartInterview sends the selected job and returns the opening question.
func (c *Client) StartInterview(ctx context.Context, j job.Job) (Opening, error) {
	var out Opening
	resp, err := c.http.R().
		SetContext(ctx).
		EnableTrace().
		SetBody(startRequest{Job: j}).
		SetResult(&out).
		ForceContentType("application/json").
		Post("/start_interview")
	if err := c.check(resp, err, "start interview"); err != nil {
		return Opening{}, err
	}
	return out, nil
}

// ResolveURL turns a relative audio reference into an absolute URL on the
// backend. Absolute references pass through.
func (c *Client) ResolveURL(ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func (c *Client) check(resp *resty.Response, err error, what string) error {
	if resp != nil && resp.Request != nil {
		logMetrics(resp)
	}
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "%s", what), ErrRequestFailed)
	}
	if resp.IsError() {
		body := strings.TrimSpace(resp.String())
		if r := []rune(body); len(r) > maxErrorBody {
			body = string(r[:maxErrorBody])
		}
		return errors.Mark(errors.Newf("%s: backend error %d: %s", what, resp.StatusCode(), body), ErrRequestFailed)
	}
	return nil
}

func logMetrics(resp *resty.Response) {
	ti := resp.Request.TraceInfo()
	path := resp.Request.URL
	if u, err := url.Parse(resp.Request.URL); err == nil {
		path = u.Path
	}
	log.Request(log.RequestMetrics{
		Method:     resp.Request.Method,
		Path:       path,
		Status:     resp.StatusCode(),
		DNSMs:      float64(ti.DNSLookup.Milliseconds()),
		ConnMs:     float64(ti.ConnTime.Milliseconds()),
		TLSMs:      float64(ti.TLSHandshake.Milliseconds()),
		ServerMs:   float64(ti.ServerTime.Milliseconds()),
		TotalMs:    float64(ti.TotalTime.Milliseconds()),
		ConnReused: ti.IsConnReused,
	})
}

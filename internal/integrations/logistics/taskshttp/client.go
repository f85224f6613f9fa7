package taskshttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/BearBump/TourSync/internal/integrations/logistics"
	"github.com/pkg/errors"
)

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:9000"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: timeout,
		},
	}
}

type tasksResp struct {
	Tasks      []json.RawMessage `json:"tasks"`
	Pagination struct {
		Page    int  `json:"page"`
		HasMore bool `json:"hasMore"`
	} `json:"pagination"`
}

func (c *Client) FetchTasks(ctx context.Context, q logistics.Query) (logistics.Page, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return logistics.Page{}, errors.Wrap(err, "parse base url")
	}
	u.Path = "/v1/tasks"

	v := u.Query()
	v.Set("from", q.From.UTC().Format(time.RFC3339))
	v.Set("to", q.To.UTC().Format(time.RFC3339))
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("size", strconv.Itoa(q.PageSize))
	u.RawQuery = v.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return logistics.Page{}, errors.Wrap(err, "new request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return logistics.Page{}, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return logistics.Page{}, fmt.Errorf("tasks api http %d", resp.StatusCode)
	}

	var r tasksResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return logistics.Page{}, errors.Wrap(err, "decode")
	}

	return logistics.Page{Tasks: r.Tasks, HasMore: r.Pagination.HasMore}, nil
}

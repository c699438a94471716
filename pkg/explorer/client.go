package explorer

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"silo-snapshots/internal/worker/config"
	"silo-snapshots/pkg/httpclient"

	"go.uber.org/zap"
)

// Client talks to an etherscan-compatible block explorer API. It is used
// to translate wall-clock snapshot schedules into block heights.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *httpclient.HTTPClient
	logger     *zap.Logger
}

func NewClient(cfg config.ExplorerConfig, logger *zap.Logger) *Client {
	httpCfg := httpclient.HTTPClientConfig{
		Timeout:    time.Duration(cfg.Timeout) * time.Second,
		RateLimit:  cfg.RateLimit,
		MaxRetries: 3,
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpclient.NewHTTPClient(httpCfg, logger),
		logger:     logger,
	}
}

// GetBlockByTimestamp returns the number of the last block mined at or
// before ts.
func (c *Client) GetBlockByTimestamp(ctx context.Context, ts int64) (uint64, error) {
	var err error
	var result apiResponse
	url := fmt.Sprintf("%s/api", c.baseURL)
	params := map[string]string{
		"module":    "block",
		"action":    "getblocknobytime",
		"timestamp": strconv.FormatInt(ts, 10),
		"closest":   "before",
		"apikey":    c.apiKey,
	}
	for range 5 {
		err = c.httpClient.Get(ctx, url, params, &result)
		if err == nil && result.Status == "1" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		return 0, fmt.Errorf("fetch block by timestamp failed, ts: %d, error: %v", ts, err)
	}
	if result.Status != "1" {
		return 0, fmt.Errorf("explorer api error, ts: %d, message: %s result: %s", ts, result.Message, result.Result)
	}

	block, err := strconv.ParseUint(result.Result, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("explorer api returned non-numeric block %q: %v", result.Result, err)
	}
	return block, nil
}

package chatclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// DirectoryClient fetches the conversation directory. It never returns an
// error: any transport, status, or decode failure degrades to an empty
// directory so the rest of the UI is never blocked on it. The empty state
// is deliberately indistinguishable from "no conversations yet".
type DirectoryClient struct {
	baseURL    string
	httpClient *http.Client
	credential func() string
	logger     *zap.Logger
}

func NewDirectoryClient(baseURL string, httpClient *http.Client, credential func() string, logger *zap.Logger) *DirectoryClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		credential: credential,
		logger:     logger,
	}
}

func (c *DirectoryClient) List(ctx context.Context) Directory {
	url := fmt.Sprintf("%s/api/chat/conversations", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.logger.Warn("build conversations request", zap.Error(err))
		return emptyDirectory()
	}
	if token := c.credential(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("fetch conversations", zap.Error(err))
		return emptyDirectory()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("fetch conversations", zap.Int("status", resp.StatusCode))
		return emptyDirectory()
	}

	var directory Directory
	if err := json.NewDecoder(resp.Body).Decode(&directory); err != nil {
		c.logger.Warn("decode conversations", zap.Error(err))
		return emptyDirectory()
	}

	if directory.AsRequester == nil {
		directory.AsRequester = []ChatUser{}
	}
	if directory.AsDonor == nil {
		directory.AsDonor = []ChatUser{}
	}

	return directory
}

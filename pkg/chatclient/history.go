package chatclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// HistoryClient loads the transcript for one room token. Failures
// soft-fail to an empty transcript, same policy as the directory: missing
// history must never stop the channel from opening.
type HistoryClient struct {
	baseURL    string
	httpClient *http.Client
	credential func() string
	logger     *zap.Logger
}

type historyRow struct {
	ID     int64 `json:"id"`
	Sender struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	} `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func NewHistoryClient(baseURL string, httpClient *http.Client, credential func() string, logger *zap.Logger) *HistoryClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		credential: credential,
		logger:     logger,
	}
}

// Load returns the transcript oldest to newest, as served. The credential
// rides in the query string, matching how the channel endpoint is
// addressed.
func (c *HistoryClient) Load(ctx context.Context, partnerToken string) []Message {
	if partnerToken == "" {
		return []Message{}
	}

	endpoint := fmt.Sprintf("%s/api/chat/messages/%s", c.baseURL, url.PathEscape(partnerToken))
	if token := c.credential(); token != "" {
		endpoint += "?token=" + url.QueryEscape(token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.logger.Warn("build history request", zap.Error(err))
		return []Message{}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("fetch history", zap.String("room", partnerToken), zap.Error(err))
		return []Message{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("fetch history", zap.String("room", partnerToken), zap.Int("status", resp.StatusCode))
		return []Message{}
	}

	var rows []historyRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		c.logger.Warn("decode history", zap.String("room", partnerToken), zap.Error(err))
		return []Message{}
	}

	messages := make([]Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, Message{
			SenderID:  row.Sender.ID,
			Username:  row.Sender.Username,
			Content:   row.Content,
			Timestamp: row.Timestamp,
		})
	}

	return messages
}

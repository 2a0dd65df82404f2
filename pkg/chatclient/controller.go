package chatclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// WindowState is the chat window's visibility state. Minimized is
// orthogonal and tracked separately.
type WindowState int

const (
	WindowHidden WindowState = iota
	WindowDirectory
	WindowConversation
)

const (
	defaultDedupWindow = 2 * time.Second
	defaultDialTimeout = 10 * time.Second
)

// Self is the local authenticated identity, supplied by the auth
// collaborator. The controller needs it to tell its own echoes apart from
// genuine inbound messages.
type Self struct {
	ID       int64
	Username string
}

type Options struct {
	// BaseURL is the HTTP origin of the chat service, e.g. "https://api.example.com".
	BaseURL string
	// WSBaseURL overrides the websocket origin; derived from BaseURL when empty.
	WSBaseURL  string
	HTTPClient *http.Client
	// Credential returns the current bearer token. May return "" when the
	// auth collaborator has none; requests are then rejected server-side.
	Credential func() string
	Self       Self
	// DedupWindow bounds how long a local send shadows an identical
	// inbound echo. Defaults to 2s.
	DedupWindow time.Duration
	DialTimeout time.Duration
	Logger      *zap.Logger
	// OnUpdate receives a state snapshot after every transition. Called
	// without internal locks held; safe to call back into the controller.
	OnUpdate func(Snapshot)
}

// Snapshot is an immutable view of controller state for rendering.
type Snapshot struct {
	Window           WindowState
	Minimized        bool
	Active           *ChatUser
	Directory        Directory
	Messages         []Message
	DirectoryLoading bool
	HistoryLoading   bool
	Channel          ChannelState
}

type sentRecord struct {
	content string
	at      time.Time
}

// Controller orchestrates directory, history, and channel for one user
// session. It is the exclusive owner of the message buffer and the
// channel handle; at most one channel exists at any time, and switching
// conversations always closes the old one before opening the new one.
//
// Collaborator components (donor lists, accepted-donor lists) start a
// conversation by calling StartConversation; there is no broadcast bus.
type Controller struct {
	directory   *DirectoryClient
	history     *HistoryClient
	wsBase      string
	credential  func() string
	self        Self
	dedupWindow time.Duration
	dialTimeout time.Duration
	logger      *zap.Logger
	onUpdate    func(Snapshot)

	mu            sync.Mutex
	window        WindowState
	minimized     bool
	active        *ChatUser
	dir           Directory
	messages      []Message
	early         []Message // pushes received before history resolved
	historyLoaded bool
	dirLoading    bool
	histLoading   bool
	epoch         uint64
	channel       *Channel
	recentSends   []sentRecord
}

func NewController(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	credential := opts.Credential
	if credential == nil {
		credential = func() string { return "" }
	}
	wsBase := opts.WSBaseURL
	if wsBase == "" {
		wsBase = deriveWSBase(opts.BaseURL)
	}
	dedupWindow := opts.DedupWindow
	if dedupWindow <= 0 {
		dedupWindow = defaultDedupWindow
	}
	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}

	return &Controller{
		directory:   NewDirectoryClient(opts.BaseURL, opts.HTTPClient, credential, logger),
		history:     NewHistoryClient(opts.BaseURL, opts.HTTPClient, credential, logger),
		wsBase:      wsBase,
		credential:  credential,
		self:        opts.Self,
		dedupWindow: dedupWindow,
		dialTimeout: dialTimeout,
		logger:      logger,
		onUpdate:    opts.OnUpdate,
		dir:         emptyDirectory(),
	}
}

// Open shows the directory. Every entry into the directory state triggers
// a fresh fetch; unread counts are a snapshot, not live.
func (c *Controller) Open() {
	c.mu.Lock()
	if c.window == WindowHidden {
		c.window = WindowDirectory
		c.minimized = false
		c.refetchDirectoryLocked()
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)
}

// Close tears down any open channel and resets to hidden.
func (c *Controller) Close() {
	c.mu.Lock()
	c.epoch++
	c.closeChannelLocked()
	c.window = WindowHidden
	c.minimized = false
	c.active = nil
	c.dir = emptyDirectory()
	c.resetBufferLocked()
	c.dirLoading = false
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)
}

func (c *Controller) ToggleMinimize() {
	c.mu.Lock()
	if c.window != WindowHidden {
		c.minimized = !c.minimized
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)
}

// StartConversation is the externally raised "start a conversation with
// X" signal. It activates the conversation from any state, discarding the
// previous conversation's buffer and closing its channel first.
func (c *Controller) StartConversation(partner ChatUser) {
	c.mu.Lock()
	c.activateLocked(partner)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)
}

// Select activates a conversation picked from the visible directory.
func (c *Controller) Select(partner ChatUser) {
	c.mu.Lock()
	if c.window != WindowDirectory {
		c.mu.Unlock()
		return
	}
	c.activateLocked(partner)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)
}

// Back leaves the active conversation: the channel closes, the buffer is
// discarded, and the directory is refetched.
func (c *Controller) Back() {
	c.mu.Lock()
	if c.window != WindowConversation {
		c.mu.Unlock()
		return
	}
	c.closeChannelLocked()
	c.active = nil
	c.resetBufferLocked()
	c.window = WindowDirectory
	c.refetchDirectoryLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)
}

// Send transmits the text through the active channel. Whitespace-only
// input and sends outside an OPEN channel are silent no-ops that leave
// the buffer untouched. A transmitted message is appended optimistically
// and recorded so the server's echo can be recognised and dropped.
func (c *Controller) Send(text string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}

	c.mu.Lock()
	if c.window != WindowConversation || c.channel == nil {
		c.mu.Unlock()
		return
	}
	if !c.channel.Send(trimmed) {
		c.mu.Unlock()
		return
	}

	now := time.Now()
	c.recentSends = append(c.recentSends, sentRecord{content: trimmed, at: now})
	c.appendLocked(Message{
		SenderID:  c.self.ID,
		Username:  c.self.Username,
		Content:   trimmed,
		Timestamp: now,
	})
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)
}

// Snapshot returns the current state for rendering.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) activateLocked(partner ChatUser) {
	c.epoch++
	epoch := c.epoch

	c.closeChannelLocked()

	p := partner
	c.active = &p
	c.window = WindowConversation
	c.minimized = false
	c.resetBufferLocked()
	c.dirLoading = false
	c.histLoading = true

	go c.fetchHistory(epoch, partner.UniqueID)
	c.openChannelLocked(epoch, partner.UniqueID)
}

func (c *Controller) refetchDirectoryLocked() {
	c.epoch++
	epoch := c.epoch
	c.dirLoading = true
	go c.fetchDirectory(epoch)
}

func (c *Controller) fetchDirectory(epoch uint64) {
	dir := c.directory.List(context.Background())

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	c.dir = dir
	c.dirLoading = false
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)
}

func (c *Controller) fetchHistory(epoch uint64, partnerToken string) {
	history := c.history.Load(context.Background(), partnerToken)

	c.mu.Lock()
	if epoch != c.epoch {
		// The user navigated elsewhere while this was in flight; a late
		// transcript must not land in another conversation's buffer.
		c.mu.Unlock()
		return
	}
	c.messages = append(history, c.early...)
	c.early = nil
	c.historyLoaded = true
	c.histLoading = false
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)
}

func (c *Controller) openChannelLocked(epoch uint64, partnerToken string) {
	endpoint := fmt.Sprintf("%s/ws/chat/%s", c.wsBase, url.PathEscape(partnerToken))
	if token := c.credential(); token != "" {
		endpoint += "?token=" + url.QueryEscape(token)
	}

	ch := newChannel(
		endpoint,
		c.dialTimeout,
		c.logger,
		func(frame Frame) { c.handleFrame(epoch, frame) },
		func(err error) { c.handleChannelClosed(epoch, err) },
	)
	c.channel = ch
	go ch.connect()
}

func (c *Controller) closeChannelLocked() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
}

func (c *Controller) handleFrame(epoch uint64, frame Frame) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}

	now := time.Now()
	if frame.SenderID == c.self.ID && c.consumeRecentSendLocked(frame.Message, now) {
		// Echo of our own just-sent message; already rendered.
		c.mu.Unlock()
		return
	}

	c.appendLocked(Message{
		SenderID:  frame.SenderID,
		Username:  frame.Username,
		Content:   frame.Message,
		Timestamp: parseFrameTime(frame.Timestamp, now),
	})
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)
}

func (c *Controller) handleChannelClosed(epoch uint64, err error) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	c.logger.Warn("chat channel closed", zap.Error(err))
	c.channel = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)
}

// appendLocked routes a message into the buffer, holding it aside while
// history is still loading so the transcript always precedes live pushes.
func (c *Controller) appendLocked(message Message) {
	if c.historyLoaded {
		c.messages = append(c.messages, message)
	} else {
		c.early = append(c.early, message)
	}
}

// consumeRecentSendLocked reports whether content matches a local send
// inside the dedup window, and spends the matching record so one send
// only ever shadows one echo.
func (c *Controller) consumeRecentSendLocked(content string, now time.Time) bool {
	kept := c.recentSends[:0]
	matched := false
	for _, record := range c.recentSends {
		if now.Sub(record.at) > c.dedupWindow {
			continue
		}
		if !matched && record.content == content {
			matched = true
			continue
		}
		kept = append(kept, record)
	}
	c.recentSends = kept
	return matched
}

func (c *Controller) resetBufferLocked() {
	c.messages = nil
	c.early = nil
	c.recentSends = nil
	c.historyLoaded = false
	c.histLoading = false
}

func (c *Controller) snapshotLocked() Snapshot {
	messages := make([]Message, 0, len(c.messages)+len(c.early))
	messages = append(messages, c.messages...)
	messages = append(messages, c.early...)

	var active *ChatUser
	if c.active != nil {
		copied := *c.active
		active = &copied
	}

	channelState := StateClosed
	if c.channel != nil {
		channelState = c.channel.State()
	}

	return Snapshot{
		Window:           c.window,
		Minimized:        c.minimized,
		Active:           active,
		Directory:        c.dir,
		Messages:         messages,
		DirectoryLoading: c.dirLoading,
		HistoryLoading:   c.histLoading,
		Channel:          channelState,
	}
}

func (c *Controller) emit(snap Snapshot) {
	if c.onUpdate != nil {
		c.onUpdate(snap)
	}
}

func deriveWSBase(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://")
	default:
		return baseURL
	}
}

func parseFrameTime(raw string, fallback time.Time) time.Time {
	if raw == "" {
		return fallback
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fallback
	}
	return parsed
}

package chatclient

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// fakeChatServer stands in for the chat service: directory and history
// endpoints plus a websocket endpoint per room token.
type fakeChatServer struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu          sync.Mutex
	open        int
	totalOpened int
	sentFrames  []string

	directoryStatus int
	directoryBody   string
	historyBodies   map[string]string
	historyDelays   map[string]time.Duration
	historyStatus   int
	pushOnOpen      map[string]Frame
	echoAs          *Self
	echoDelay       time.Duration
}

func newFakeChatServer(t *testing.T) *fakeChatServer {
	t.Helper()

	f := &fakeChatServer{
		upgrader:        websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		directoryStatus: http.StatusOK,
		directoryBody:   `{"as_requester":[],"as_donor":[]}`,
		historyStatus:   http.StatusOK,
		historyBodies:   map[string]string{},
		historyDelays:   map[string]time.Duration{},
		pushOnOpen:      map[string]Frame{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat/conversations", f.handleDirectory)
	mux.HandleFunc("/api/chat/messages/", f.handleHistory)
	mux.HandleFunc("/ws/chat/", f.handleWebSocket)

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeChatServer) handleDirectory(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	status, body := f.directoryStatus, f.directoryBody
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (f *fakeChatServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.URL.Path, "/api/chat/messages/")

	f.mu.Lock()
	status := f.historyStatus
	body, ok := f.historyBodies[token]
	delay := f.historyDelays[token]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if !ok {
		body = "[]"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (f *fakeChatServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.URL.Path, "/ws/chat/")

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	f.mu.Lock()
	f.open++
	f.totalOpened++
	push, hasPush := f.pushOnOpen[token]
	echo := f.echoAs
	echoDelay := f.echoDelay
	f.mu.Unlock()

	defer func() {
		_ = conn.Close()
		f.mu.Lock()
		f.open--
		f.mu.Unlock()
	}()

	if hasPush {
		_ = conn.WriteJSON(push)
	}

	for {
		var incoming struct {
			Message string `json:"message"`
		}
		if err := conn.ReadJSON(&incoming); err != nil {
			return
		}

		f.mu.Lock()
		f.sentFrames = append(f.sentFrames, incoming.Message)
		f.mu.Unlock()

		if echo != nil {
			if echoDelay > 0 {
				time.Sleep(echoDelay)
			}
			_ = conn.WriteJSON(Frame{SenderID: echo.ID, Username: echo.Username, Message: incoming.Message})
		}
	}
}

func (f *fakeChatServer) openConnections() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeChatServer) receivedFrames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sentFrames...)
}

func newTestController(f *fakeChatServer, adjust func(*Options)) *Controller {
	opts := Options{
		BaseURL:     f.srv.URL,
		Credential:  func() string { return "test-credential" },
		Self:        Self{ID: 1, Username: "me"},
		DialTimeout: 2 * time.Second,
		Logger:      zap.NewNop(),
	}
	if adjust != nil {
		adjust(&opts)
	}
	return NewController(opts)
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func containsContent(messages []Message, content string) bool {
	for _, message := range messages {
		if message.Content == content {
			return true
		}
	}
	return false
}

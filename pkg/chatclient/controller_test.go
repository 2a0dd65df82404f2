package chatclient

import (
	"testing"
	"time"
)

func TestOpenFetchesDirectoryWithIndependentPartitions(t *testing.T) {
	f := newFakeChatServer(t)
	// The same counterpart on both sides of a reciprocal relationship
	// stays listed twice, once per role.
	f.directoryBody = `{
		"as_requester": [{"id": 8, "username": "sam", "unique_id": "room-a", "blood_group": "O-", "last_message": "hi", "unread_count": 2}],
		"as_donor": [{"id": 8, "username": "sam", "unique_id": "room-b", "blood_group": "O-", "last_message": null, "unread_count": 0}]
	}`
	c := newTestController(f, nil)

	c.Open()

	waitFor(t, 2*time.Second, "directory fetch", func() bool {
		snap := c.Snapshot()
		return !snap.DirectoryLoading && len(snap.Directory.AsRequester) == 1
	})

	snap := c.Snapshot()
	if snap.Window != WindowDirectory {
		t.Fatalf("expected directory window, got %v", snap.Window)
	}
	if len(snap.Directory.AsRequester) != 1 || len(snap.Directory.AsDonor) != 1 {
		t.Fatalf("expected one entry per partition, got %+v", snap.Directory)
	}
	if snap.Directory.AsRequester[0].UniqueID == snap.Directory.AsDonor[0].UniqueID {
		t.Fatal("partitions should keep distinct room tokens for the same counterpart")
	}
	if snap.Directory.AsRequester[0].UnreadCount != 2 {
		t.Fatalf("expected unread count 2, got %d", snap.Directory.AsRequester[0].UnreadCount)
	}
}

func TestDirectoryFailureYieldsEmptyPartitions(t *testing.T) {
	f := newFakeChatServer(t)
	f.directoryStatus = 500
	c := newTestController(f, nil)

	c.Open()

	waitFor(t, 2*time.Second, "directory soft-fail", func() bool {
		return !c.Snapshot().DirectoryLoading
	})

	snap := c.Snapshot()
	if snap.Directory.AsRequester == nil || snap.Directory.AsDonor == nil {
		t.Fatal("partitions must be empty, not nil")
	}
	if len(snap.Directory.AsRequester) != 0 || len(snap.Directory.AsDonor) != 0 {
		t.Fatalf("expected empty partitions, got %+v", snap.Directory)
	}
}

func TestSelectLoadsHistoryBeforeChannelTraffic(t *testing.T) {
	f := newFakeChatServer(t)
	f.directoryBody = `{"as_requester": [{"id": 8, "username": "sam", "unique_id": "room-a", "last_message": null, "unread_count": 0}], "as_donor": []}`
	f.historyBodies["room-a"] = `[
		{"id": 1, "sender": {"id": 8, "username": "sam"}, "content": "need O- urgently", "timestamp": "2026-02-10T08:30:00Z"},
		{"id": 2, "sender": {"id": 1, "username": "me"}, "content": "on my way", "timestamp": "2026-02-10T08:31:00Z"}
	]`
	c := newTestController(f, nil)

	c.Open()
	waitFor(t, 2*time.Second, "directory fetch", func() bool {
		return len(c.Snapshot().Directory.AsRequester) == 1
	})

	c.Select(c.Snapshot().Directory.AsRequester[0])

	waitFor(t, 2*time.Second, "history load and channel open", func() bool {
		snap := c.Snapshot()
		return !snap.HistoryLoading && snap.Channel == StateOpen
	})

	snap := c.Snapshot()
	if snap.Window != WindowConversation {
		t.Fatalf("expected conversation window, got %v", snap.Window)
	}
	if len(snap.Messages) != 2 || snap.Messages[0].Content != "need O- urgently" {
		t.Fatalf("unexpected transcript: %+v", snap.Messages)
	}
}

func TestSendWhitespaceOnlyIsNoOp(t *testing.T) {
	f := newFakeChatServer(t)
	c := newTestController(f, nil)

	c.StartConversation(ChatUser{ID: 8, Username: "sam", UniqueID: "room-a"})
	waitFor(t, 2*time.Second, "channel open", func() bool {
		return c.Snapshot().Channel == StateOpen
	})

	c.Send("   ")
	time.Sleep(100 * time.Millisecond)

	if frames := f.receivedFrames(); len(frames) != 0 {
		t.Fatalf("whitespace send transmitted frames: %v", frames)
	}
	if messages := c.Snapshot().Messages; len(messages) != 0 {
		t.Fatalf("whitespace send mutated buffer: %+v", messages)
	}
}

func TestSendBeforeChannelOpensIsDropped(t *testing.T) {
	f := newFakeChatServer(t)
	f.historyDelays["room-a"] = 50 * time.Millisecond
	c := newTestController(f, func(o *Options) {
		// An unroutable websocket origin keeps the channel in CONNECTING
		// long enough to exercise the no-op path.
		o.DialTimeout = 300 * time.Millisecond
		o.WSBaseURL = "ws://127.0.0.1:1"
	})

	c.StartConversation(ChatUser{ID: 8, Username: "sam", UniqueID: "room-a"})
	c.Send("hello")

	time.Sleep(100 * time.Millisecond)
	if frames := f.receivedFrames(); len(frames) != 0 {
		t.Fatalf("send before open transmitted frames: %v", frames)
	}
	if messages := c.Snapshot().Messages; containsContent(messages, "hello") {
		t.Fatalf("send before open mutated buffer: %+v", messages)
	}
}

func TestOwnEchoInsideWindowIsDropped(t *testing.T) {
	f := newFakeChatServer(t)
	f.echoAs = &Self{ID: 1, Username: "me"}
	f.echoDelay = 50 * time.Millisecond
	c := newTestController(f, nil)

	c.StartConversation(ChatUser{ID: 8, Username: "sam", UniqueID: "room-a"})
	waitFor(t, 2*time.Second, "channel open", func() bool {
		return c.Snapshot().Channel == StateOpen && !c.Snapshot().HistoryLoading
	})

	c.Send("hi")

	waitFor(t, 2*time.Second, "frame delivery", func() bool {
		return len(f.receivedFrames()) == 1
	})
	time.Sleep(300 * time.Millisecond)

	messages := c.Snapshot().Messages
	count := 0
	for _, message := range messages {
		if message.Content == "hi" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one rendered copy of the message, got %d: %+v", count, messages)
	}
}

func TestOwnEchoOutsideWindowIsAppended(t *testing.T) {
	f := newFakeChatServer(t)
	f.echoAs = &Self{ID: 1, Username: "me"}
	f.echoDelay = 250 * time.Millisecond
	c := newTestController(f, func(o *Options) {
		o.DedupWindow = 50 * time.Millisecond
	})

	c.StartConversation(ChatUser{ID: 8, Username: "sam", UniqueID: "room-a"})
	waitFor(t, 2*time.Second, "channel open", func() bool {
		return c.Snapshot().Channel == StateOpen && !c.Snapshot().HistoryLoading
	})

	c.Send("hi")

	waitFor(t, 2*time.Second, "late echo append", func() bool {
		count := 0
		for _, message := range c.Snapshot().Messages {
			if message.Content == "hi" {
				count++
			}
		}
		return count == 2
	})
}

func TestSwitchingConversationsIsolatesBuffers(t *testing.T) {
	f := newFakeChatServer(t)
	f.pushOnOpen["room-a"] = Frame{SenderID: 99, Username: "alice", Message: "from-room-a"}
	c := newTestController(f, nil)

	c.StartConversation(ChatUser{ID: 99, Username: "alice", UniqueID: "room-a"})
	waitFor(t, 2*time.Second, "push into room a", func() bool {
		return containsContent(c.Snapshot().Messages, "from-room-a")
	})

	c.StartConversation(ChatUser{ID: 42, Username: "bob", UniqueID: "room-b"})
	waitFor(t, 2*time.Second, "room b channel open", func() bool {
		return c.Snapshot().Channel == StateOpen && !c.Snapshot().HistoryLoading
	})

	snap := c.Snapshot()
	if containsContent(snap.Messages, "from-room-a") {
		t.Fatalf("room a message leaked into room b buffer: %+v", snap.Messages)
	}
	if snap.Active == nil || snap.Active.UniqueID != "room-b" {
		t.Fatalf("expected room b active, got %+v", snap.Active)
	}
}

func TestAtMostOneChannelOpen(t *testing.T) {
	f := newFakeChatServer(t)
	c := newTestController(f, nil)

	c.StartConversation(ChatUser{ID: 11, Username: "a", UniqueID: "room-a"})
	c.StartConversation(ChatUser{ID: 12, Username: "b", UniqueID: "room-b"})
	c.StartConversation(ChatUser{ID: 13, Username: "c", UniqueID: "room-c"})

	waitFor(t, 2*time.Second, "final channel open", func() bool {
		return c.Snapshot().Channel == StateOpen
	})
	// Give superseded dials time to finish connecting and be torn down.
	time.Sleep(300 * time.Millisecond)

	if open := f.openConnections(); open != 1 {
		t.Fatalf("expected exactly one open connection, got %d", open)
	}
}

func TestStaleHistoryIsNotAppliedAfterSwitch(t *testing.T) {
	f := newFakeChatServer(t)
	f.historyBodies["room-a"] = `[{"id": 1, "sender": {"id": 99, "username": "alice"}, "content": "stale-room-a", "timestamp": "2026-02-10T08:30:00Z"}]`
	f.historyDelays["room-a"] = 300 * time.Millisecond
	c := newTestController(f, nil)

	c.StartConversation(ChatUser{ID: 99, Username: "alice", UniqueID: "room-a"})
	c.StartConversation(ChatUser{ID: 42, Username: "bob", UniqueID: "room-b"})

	waitFor(t, 2*time.Second, "room b ready", func() bool {
		return !c.Snapshot().HistoryLoading && c.Snapshot().Channel == StateOpen
	})
	// Let room a's delayed transcript arrive; it must be discarded.
	time.Sleep(500 * time.Millisecond)

	if containsContent(c.Snapshot().Messages, "stale-room-a") {
		t.Fatalf("stale history applied to the wrong conversation: %+v", c.Snapshot().Messages)
	}
}

func TestBackClosesChannelAndRefetchesDirectory(t *testing.T) {
	f := newFakeChatServer(t)
	f.directoryBody = `{"as_requester": [{"id": 8, "username": "sam", "unique_id": "room-a", "last_message": null, "unread_count": 0}], "as_donor": []}`
	c := newTestController(f, nil)

	c.Open()
	waitFor(t, 2*time.Second, "directory fetch", func() bool {
		return len(c.Snapshot().Directory.AsRequester) == 1
	})

	c.Select(c.Snapshot().Directory.AsRequester[0])
	waitFor(t, 2*time.Second, "channel open", func() bool {
		return c.Snapshot().Channel == StateOpen
	})

	c.Back()

	waitFor(t, 2*time.Second, "channel teardown", func() bool {
		return f.openConnections() == 0
	})

	snap := c.Snapshot()
	if snap.Window != WindowDirectory {
		t.Fatalf("expected directory window, got %v", snap.Window)
	}
	if len(snap.Messages) != 0 {
		t.Fatalf("expected cleared buffer, got %+v", snap.Messages)
	}
	waitFor(t, 2*time.Second, "directory refetch", func() bool {
		return !c.Snapshot().DirectoryLoading
	})
}

func TestCloseTearsDownToHidden(t *testing.T) {
	f := newFakeChatServer(t)
	c := newTestController(f, nil)

	c.StartConversation(ChatUser{ID: 8, Username: "sam", UniqueID: "room-a"})
	waitFor(t, 2*time.Second, "channel open", func() bool {
		return c.Snapshot().Channel == StateOpen
	})

	c.Close()

	waitFor(t, 2*time.Second, "connection teardown", func() bool {
		return f.openConnections() == 0
	})

	snap := c.Snapshot()
	if snap.Window != WindowHidden || snap.Active != nil || len(snap.Messages) != 0 {
		t.Fatalf("expected hidden reset state, got %+v", snap)
	}
}

func TestToggleMinimizeKeepsChannelAlive(t *testing.T) {
	f := newFakeChatServer(t)
	c := newTestController(f, nil)

	c.StartConversation(ChatUser{ID: 8, Username: "sam", UniqueID: "room-a"})
	waitFor(t, 2*time.Second, "channel open", func() bool {
		return c.Snapshot().Channel == StateOpen
	})

	c.ToggleMinimize()

	snap := c.Snapshot()
	if !snap.Minimized {
		t.Fatal("expected minimized window")
	}
	if f.openConnections() != 1 {
		t.Fatalf("minimize must not close the channel, open=%d", f.openConnections())
	}

	c.ToggleMinimize()
	if c.Snapshot().Minimized {
		t.Fatal("expected restored window")
	}
}

package mirror

import (
	"context"
	"fmt"
	"sync"
)

// fakeChannel records message traffic for assertions.
type fakeChannel struct {
	mu    sync.Mutex
	limit int
	next  int
	sent  map[string]string // messageID -> body
	order []string
	edits map[string]string // messageID -> latest body
}

func newFakeChannel(limit int) *fakeChannel {
	return &fakeChannel{
		limit: limit,
		sent:  make(map[string]string),
		edits: make(map[string]string),
	}
}

func (f *fakeChannel) Platform() string  { return "fake" }
func (f *fakeChannel) MessageLimit() int { return f.limit }

func (f *fakeChannel) SendMessage(_ context.Context, _, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := fmt.Sprintf("msg-%d", f.next)
	f.sent[id] = body
	f.order = append(f.order, id)
	return id, nil
}

func (f *fakeChannel) EditMessage(_ context.Context, _, messageID, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits[messageID] = body
	return nil
}

func (f *fakeChannel) DeleteMessage(context.Context, string, string) error { return nil }

func (f *fakeChannel) AddReaction(context.Context, string, string, string) error { return nil }

func (f *fakeChannel) RemoveReaction(context.Context, string, string, string) error { return nil }

// fakeFetcher serves fixed content for any URL.
type fakeFetcher struct {
	content string
	err     error
}

func (f *fakeFetcher) FetchRaw(context.Context, string) (string, error) {
	return f.content, f.err
}

// fakeRepos resolves every repository to a fixed id.
type fakeRepos struct {
	id int64
}

func (f *fakeRepos) LookupRepoID(context.Context, string, string) (int64, error) {
	return f.id, nil
}

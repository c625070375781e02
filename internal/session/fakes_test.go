package session_test

import (
	"context"

	"github.com/petasbytes/rye/internal/provider"
	"github.com/petasbytes/rye/memory"
)

// fakeProvider replays one scripted reply per Stream call.
type fakeProvider struct {
	replies   [][]string
	failAfter error // returned by Err once the scripted deltas run out
	openErr   error
	title     string
	titleErr  error

	calls       int
	histories   [][]memory.Message
	titleInputs []string
	closed      bool
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Stream(ctx context.Context, history []memory.Message) (provider.Stream, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.histories = append(f.histories, append([]memory.Message(nil), history...))
	var deltas []string
	if f.calls < len(f.replies) {
		deltas = f.replies[f.calls]
	}
	f.calls++
	return &fakeStream{p: f, deltas: deltas, i: -1}, nil
}

func (f *fakeProvider) Title(ctx context.Context, firstUser string) (string, error) {
	f.titleInputs = append(f.titleInputs, firstUser)
	return f.title, f.titleErr
}

type fakeStream struct {
	p      *fakeProvider
	deltas []string
	i      int
}

func (s *fakeStream) Next() bool {
	s.i++
	return s.i < len(s.deltas)
}

func (s *fakeStream) Current() string { return s.deltas[s.i] }

func (s *fakeStream) Err() error {
	if s.i >= len(s.deltas) {
		return s.p.failAfter
	}
	return nil
}

func (s *fakeStream) Close() error {
	s.p.closed = true
	return nil
}

// recorder is a Renderer that keeps every fragment.
type recorder struct {
	fragments []string
	err       error
	onRender  func(string)
}

func (r *recorder) Render(fragment string) error {
	r.fragments = append(r.fragments, fragment)
	if r.onRender != nil {
		r.onRender(fragment)
	}
	return r.err
}

// failingStore fails every write with err.
type failingStore struct {
	err error
}

func (s *failingStore) Create(memory.Message) (*memory.Conversation, error) { return nil, s.err }

func (s *failingStore) Append(*memory.Conversation, ...memory.Message) error { return s.err }

func (s *failingStore) RenameOnTitle(*memory.Conversation, string) error { return s.err }

// renameFailingStore saves through a real store but cannot rename.
type renameFailingStore struct {
	*memory.Store
	err error
}

func (s *renameFailingStore) RenameOnTitle(*memory.Conversation, string) error { return s.err }

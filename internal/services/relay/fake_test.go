package relay

import (
	"sync"

	"github.com/LeonardoBeccarini/rover_relay/internal/model/messages"
)

type fakeClient struct {
	id   string
	full bool

	mu  sync.Mutex
	got []messages.Envelope
}

func newFakeClient(id string) *fakeClient { return &fakeClient{id: id} }

func (f *fakeClient) ID() string { return f.id }

func (f *fakeClient) Send(env messages.Envelope) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	f.got = append(f.got, env)
	return true
}

// frames returns what the client received under event.
func (f *fakeClient) frames(event string) []messages.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []messages.Envelope
	for _, e := range f.got {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

type published struct {
	topic string
	v     any
}

type fakePublisher struct {
	err error

	mu   sync.Mutex
	sent []published
}

func (p *fakePublisher) PublishJSON(topic string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{topic: topic, v: v})
	return nil
}

type emitted struct {
	kind    messages.Kind
	payload any
}

type recorder struct{ got []emitted }

func (r *recorder) BroadcastToDashboards(kind messages.Kind, payload any) {
	r.got = append(r.got, emitted{kind: kind, payload: payload})
}

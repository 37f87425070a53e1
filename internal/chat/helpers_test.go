package chat

import (
	"context"
	"sync"
	"time"

	"github.com/RichardoC/palchat/internal/models"
)

// fakeAssistant records calls and answers deterministically.
type fakeAssistant struct {
	mu    sync.Mutex
	calls map[string]int

	// failTranslate makes Translate behave like a gateway that fell back.
	failTranslate bool
	// translateGate, when set, holds Translate until it is closed.
	translateGate chan struct{}
	// onSuggest runs inside SuggestReply before it answers.
	onSuggest func()
}

func newFakeAssistant() *fakeAssistant {
	return &fakeAssistant{calls: make(map[string]int)}
}

func (f *fakeAssistant) count(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeAssistant) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAssistant) GenerateCaption(ctx context.Context, image string, lang models.Language) string {
	f.count("caption")
	return "caption in " + lang.Name()
}

func (f *fakeAssistant) SuggestReply(ctx context.Context, contextText string, lang models.Language) string {
	f.count("reply")
	if f.onSuggest != nil {
		f.onSuggest()
	}
	return "re: " + contextText
}

func (f *fakeAssistant) Translate(ctx context.Context, text string, lang models.Language) string {
	f.count("translate")
	if f.translateGate != nil {
		<-f.translateGate
	}
	if f.failTranslate {
		return text
	}
	return "[" + string(lang) + "] " + text
}

// manualScheduler holds callbacks until the test fires them.
type manualScheduler struct {
	mu      sync.Mutex
	pending []func()
	delays  []time.Duration
}

func (m *manualScheduler) AfterFunc(d time.Duration, f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, f)
	m.delays = append(m.delays, d)
}

func (m *manualScheduler) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// FireAll runs every pending callback in scheduling order.
func (m *manualScheduler) FireAll() {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, f := range pending {
		f()
	}
}

func texts(c models.Conversation) []string {
	out := make([]string, 0, len(c.Messages))
	for _, m := range c.Messages {
		out = append(out, m.Text)
	}
	return out
}

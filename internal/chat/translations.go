package chat

import (
	"context"
	"sync"

	"github.com/RichardoC/palchat/internal/models"
	"go.uber.org/zap"
)

// Translations caches translated message text and tracks requests that are
// still running. A message is either untouched, in flight, or resolved, and
// only ever moves forward through those states.
type Translations struct {
	assistant Assistant
	logger    *zap.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
	resolved map[string]string
	wg       sync.WaitGroup
}

func NewTranslations(assistant Assistant, logger *zap.Logger) *Translations {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Translations{
		assistant: assistant,
		logger:    logger,
		inflight:  make(map[string]struct{}),
		resolved:  make(map[string]string),
	}
}

// Request starts translating text into lang unless messageID is already in
// flight or resolved. It reports whether a new request was started. The
// translation runs in the background and is not tied to ctx's cancellation.
func (t *Translations) Request(ctx context.Context, messageID, text string, lang models.Language) bool {
	t.mu.Lock()
	if _, ok := t.inflight[messageID]; ok {
		t.mu.Unlock()
		return false
	}
	if _, ok := t.resolved[messageID]; ok {
		t.mu.Unlock()
		return false
	}
	t.inflight[messageID] = struct{}{}
	t.wg.Add(1)
	t.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	go func() {
		defer t.wg.Done()
		translated := t.assistant.Translate(ctx, text, lang)

		t.mu.Lock()
		t.resolved[messageID] = translated
		delete(t.inflight, messageID)
		t.mu.Unlock()

		t.logger.Debug("translation resolved",
			zap.String("message_id", messageID),
			zap.String("language", string(lang)))
	}()
	return true
}

func (t *Translations) Translation(messageID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.resolved[messageID]
	return s, ok
}

func (t *Translations) IsTranslating(messageID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.inflight[messageID]
	return ok
}

// Wait blocks until every started translation has resolved.
func (t *Translations) Wait() {
	t.wg.Wait()
}

// TranslationStatus is a consistent snapshot of one message's translation.
type TranslationStatus struct {
	Text        string `json:"text,omitempty"`
	Resolved    bool   `json:"resolved"`
	Translating bool   `json:"translating"`
}

func (t *Translations) Status(messageID string) TranslationStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	text, resolved := t.resolved[messageID]
	_, translating := t.inflight[messageID]
	return TranslationStatus{Text: text, Resolved: resolved, Translating: translating}
}

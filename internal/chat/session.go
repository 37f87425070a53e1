package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/RichardoC/palchat/internal/metrics"
	"github.com/RichardoC/palchat/internal/models"
	"go.uber.org/zap"
)

// DefaultReplyDelay is how long the simulated participant "types".
const DefaultReplyDelay = 1500 * time.Millisecond

// Assistant is the generative AI gateway. Implementations never fail: on an
// underlying error each method returns its fallback value.
type Assistant interface {
	GenerateCaption(ctx context.Context, image string, lang models.Language) string
	SuggestReply(ctx context.Context, contextText string, lang models.Language) string
	Translate(ctx context.Context, text string, lang models.Language) string
}

type ViewState int

const (
	Idle ViewState = iota
	AwaitingReply
)

func (s ViewState) String() string {
	if s == AwaitingReply {
		return "awaiting_reply"
	}
	return "idle"
}

func (s ViewState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ViewState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = Idle
	case "awaiting_reply":
		*s = AwaitingReply
	default:
		return fmt.Errorf("unknown view state %q", text)
	}
	return nil
}

type SuggestionState int

const (
	SuggestionNone SuggestionState = iota
	SuggestionPending
	SuggestionReady
)

func (s SuggestionState) String() string {
	switch s {
	case SuggestionPending:
		return "pending"
	case SuggestionReady:
		return "ready"
	default:
		return "none"
	}
}

func (s SuggestionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SuggestionState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none":
		*s = SuggestionNone
	case "pending":
		*s = SuggestionPending
	case "ready":
		*s = SuggestionReady
	default:
		return fmt.Errorf("unknown suggestion state %q", text)
	}
	return nil
}

// Suggestion is the reply offered to the user for the active conversation.
type Suggestion struct {
	State SuggestionState `json:"state"`
	Text  string          `json:"text,omitempty"`
}

type Options struct {
	// SelfID identifies the current user as a message sender.
	SelfID string
	// ReplyDelay defaults to DefaultReplyDelay.
	ReplyDelay time.Duration
	// Scheduler defaults to time.AfterFunc.
	Scheduler Scheduler
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

// Session drives one user's chat view: the active conversation, sending,
// the delayed participant reply, reply suggestions and translations.
type Session struct {
	store        Store
	assistant    Assistant
	translations *Translations
	selfID       string
	replyDelay   time.Duration
	scheduler    Scheduler
	logger       *zap.Logger
	metrics      *metrics.Metrics

	mu         sync.Mutex
	active     string
	suggestion Suggestion
	// generation changes whenever the suggestion must be discarded, so a
	// suggestion fetched for an older view is dropped.
	generation uint64
	awaiting   map[string]int
	replies    sync.WaitGroup
}

func NewSession(store Store, assistant Assistant, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ReplyDelay <= 0 {
		opts.ReplyDelay = DefaultReplyDelay
	}
	if opts.Scheduler == nil {
		opts.Scheduler = timerScheduler{}
	}
	return &Session{
		store:        store,
		assistant:    assistant,
		translations: NewTranslations(assistant, opts.Logger),
		selfID:       opts.SelfID,
		replyDelay:   opts.ReplyDelay,
		scheduler:    opts.Scheduler,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		awaiting:     make(map[string]int),
	}
}

func (s *Session) SelfID() string { return s.selfID }

func (s *Session) Store() Store { return s.store }

func (s *Session) Translations() *Translations { return s.translations }

// Open makes conversationID the active conversation and drops any suggestion.
func (s *Session) Open(ctx context.Context, conversationID string) error {
	if _, err := s.store.Conversation(ctx, conversationID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = conversationID
	s.resetSuggestionLocked()
	return nil
}

// Close leaves the conversation view. Replies already scheduled still land.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = ""
	s.resetSuggestionLocked()
}

func (s *Session) Active() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.active != ""
}

// State reports whether the participant is still "typing" in a conversation.
func (s *Session) State(conversationID string) ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.awaiting[conversationID] > 0 {
		return AwaitingReply
	}
	return Idle
}

func (s *Session) Suggestion() Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suggestion
}

// SendMessage appends text from the current user to the active conversation
// and schedules the participant's reply after the reply delay. The reply
// goes to the conversation that was active at send time.
func (s *Session) SendMessage(ctx context.Context, text string, lang models.Language) (models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return models.Message{}, ErrEmptyMessage
	}
	conversationID, ok := s.Active()
	if !ok {
		return models.Message{}, ErrNoActiveConversation
	}

	conv, err := s.store.AppendMessage(ctx, conversationID, s.selfID, text)
	if err != nil {
		return models.Message{}, fmt.Errorf("append message: %w", err)
	}
	s.metrics.MessageAppended("self")
	sent, _ := conv.Last()

	s.mu.Lock()
	s.resetSuggestionLocked()
	s.awaiting[conversationID]++
	s.replies.Add(1)
	s.mu.Unlock()

	participantID := conv.Participant.ID
	replyCtx := context.WithoutCancel(ctx)
	s.scheduler.AfterFunc(s.replyDelay, func() {
		s.deliverReply(replyCtx, conversationID, participantID, text, lang)
	})

	s.logger.Debug("message sent",
		zap.String("conversation_id", conversationID),
		zap.String("message_id", sent.ID))
	return sent, nil
}

func (s *Session) deliverReply(ctx context.Context, conversationID, participantID, contextText string, lang models.Language) {
	defer s.replies.Done()
	defer func() {
		s.mu.Lock()
		s.awaiting[conversationID]--
		if s.awaiting[conversationID] <= 0 {
			delete(s.awaiting, conversationID)
		}
		s.mu.Unlock()
	}()

	reply := s.assistant.SuggestReply(ctx, contextText, lang)
	conv, err := s.store.AppendMessage(ctx, conversationID, participantID, reply)
	if errors.Is(err, ErrConversationNotFound) {
		s.logger.Debug("dropping reply for missing conversation",
			zap.String("conversation_id", conversationID))
		return
	}
	if err != nil {
		s.logger.Error("failed to append reply",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		return
	}
	s.metrics.MessageAppended("participant")
	if m, ok := conv.Last(); ok {
		s.logger.Debug("reply delivered",
			zap.String("conversation_id", conversationID),
			zap.String("message_id", m.ID))
	}
}

// FetchSuggestion asks for a reply suggestion when the last message in the
// active conversation came from the participant. Otherwise the current
// suggestion is returned unchanged.
func (s *Session) FetchSuggestion(ctx context.Context, lang models.Language) (Suggestion, error) {
	s.mu.Lock()
	conversationID, gen := s.active, s.generation
	s.mu.Unlock()
	if conversationID == "" {
		return Suggestion{}, ErrNoActiveConversation
	}

	conv, err := s.store.Conversation(ctx, conversationID)
	if err != nil {
		return Suggestion{}, err
	}
	last, ok := conv.Last()
	if !ok || last.SenderID == s.selfID {
		return s.Suggestion(), nil
	}

	s.mu.Lock()
	if s.generation != gen {
		defer s.mu.Unlock()
		return s.suggestion, nil
	}
	s.suggestion = Suggestion{State: SuggestionPending}
	s.mu.Unlock()

	text := s.assistant.SuggestReply(ctx, last.Text, lang)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == gen {
		s.suggestion = Suggestion{State: SuggestionReady, Text: text}
	}
	return s.suggestion, nil
}

// SendSuggestion sends the ready suggestion as if the user had typed it.
func (s *Session) SendSuggestion(ctx context.Context, lang models.Language) (models.Message, error) {
	sug := s.Suggestion()
	if sug.State != SuggestionReady {
		return models.Message{}, ErrNoSuggestion
	}
	return s.SendMessage(ctx, sug.Text, lang)
}

// RequestTranslation translates one message of a conversation into lang.
// It reports false when the message is already translated or in flight.
func (s *Session) RequestTranslation(ctx context.Context, conversationID, messageID string, lang models.Language) (bool, error) {
	conv, err := s.store.Conversation(ctx, conversationID)
	if err != nil {
		return false, err
	}
	for _, m := range conv.Messages {
		if m.ID == messageID {
			return s.translations.Request(ctx, m.ID, m.Text, lang), nil
		}
	}
	return false, fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
}

// Wait blocks until every scheduled reply and started translation is done.
func (s *Session) Wait() {
	s.replies.Wait()
	s.translations.Wait()
}

func (s *Session) resetSuggestionLocked() {
	s.suggestion = Suggestion{}
	s.generation++
}

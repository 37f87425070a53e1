package chat

import "errors"

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrEmptyMessage         = errors.New("message text is empty")
	ErrNoActiveConversation = errors.New("no active conversation")
	ErrNoSuggestion         = errors.New("no suggested reply is ready")
)

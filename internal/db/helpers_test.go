package db

import (
	"context"

	"github.com/RichardoC/palchat/internal/models"
)

type echoAssistant struct{}

func (echoAssistant) GenerateCaption(ctx context.Context, image string, lang models.Language) string {
	return "caption"
}

func (echoAssistant) SuggestReply(ctx context.Context, contextText string, lang models.Language) string {
	return "echo: " + contextText
}

func (echoAssistant) Translate(ctx context.Context, text string, lang models.Language) string {
	return text
}

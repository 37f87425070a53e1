package chat

import (
	"time"

	"github.com/RichardoC/palchat/internal/models"
)

// SeedConversations returns the conversations every process starts with.
// selfID is the current user's identifier.
func SeedConversations(selfID string, now time.Time) []models.Conversation {
	return []models.Conversation{
		{
			ID: "c1",
			Participant: models.Participant{
				ID:          "u1",
				Username:    "shakib_75",
				DisplayName: "Shakib",
				PhotoURL:    "https://picsum.photos/seed/shakib/100",
			},
			Messages: []models.Message{
				{SenderID: "u1", Text: "Hey bro? What's up?", CreatedAt: now.Add(-time.Hour)},
				{SenderID: selfID, Text: "I am good, how about you?", CreatedAt: now.Add(-50 * time.Minute)},
			},
		},
		{
			ID: "c2",
			Participant: models.Participant{
				ID:          "u2",
				Username:    "nabil_khan",
				DisplayName: "Nabil",
				PhotoURL:    "https://picsum.photos/seed/nabil/100",
			},
			LastMessage: "Let's catch up later!",
		},
	}
}

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		code    string
		want    Language
		name    string
		wantErr bool
	}{
		{code: "", want: English, name: "English"},
		{code: "en", want: English, name: "English"},
		{code: "bn", want: Bengali, name: "Bengali"},
		{code: "hi", want: Hindi, name: "Hindi"},
		{code: "fr", wantErr: true},
		{code: "EN", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, err := ParseLanguage(tt.code)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.name, got.Name())
		})
	}
}

func TestConversationCloneIsIndependent(t *testing.T) {
	c := Conversation{ID: "c1", Messages: []Message{{ID: "m1", Text: "hi"}}}
	cp := c.Clone()
	cp.Messages[0].Text = "changed"
	cp.Messages = append(cp.Messages, Message{ID: "m2"})

	assert.Equal(t, "hi", c.Messages[0].Text)
	assert.Len(t, c.Messages, 1)
}

func TestConversationLast(t *testing.T) {
	_, ok := Conversation{}.Last()
	assert.False(t, ok)

	last, ok := Conversation{Messages: []Message{{ID: "m1"}, {ID: "m2"}}}.Last()
	require.True(t, ok)
	assert.Equal(t, "m2", last.ID)
}

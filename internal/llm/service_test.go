package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/RichardoC/palchat/internal/metrics"
	"github.com/RichardoC/palchat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeModel answers every request with the same completion or error.
type fakeModel struct {
	mu       sync.Mutex
	answer   string
	err      error
	requests [][]llms.MessageContent
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, messages)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.answer}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func (f *fakeModel) lastText(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	msgs := f.requests[len(f.requests)-1]
	require.NotEmpty(t, msgs)
	for _, p := range msgs[0].Parts {
		if tc, ok := p.(llms.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no text part in request")
	return ""
}

func newService(m *fakeModel) *Service {
	return NewWithModel(m, time.Second, nil, metrics.New(nil))
}

var jpeg = base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8, 0xff, 0xe0})

func TestGenerateCaption(t *testing.T) {
	m := &fakeModel{answer: "  \"Golden hour vibes\"  "}
	s := newService(m)

	got := s.GenerateCaption(context.Background(), "data:image/jpeg;base64,"+jpeg, models.Hindi)
	assert.Equal(t, "Golden hour vibes", got)
	assert.Contains(t, m.lastText(t), "Hindi")

	var image llms.BinaryContent
	for _, p := range m.requests[0][0].Parts {
		if b, ok := p.(llms.BinaryContent); ok {
			image = b
		}
	}
	assert.Equal(t, "image/jpeg", image.MIMEType)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff, 0xe0}, image.Data)
}

func TestGenerateCaptionFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		model *fakeModel
		image string
		want  string
	}{
		{name: "model error", model: &fakeModel{err: errors.New("boom")}, image: jpeg, want: CaptionFallback},
		{name: "empty answer", model: &fakeModel{answer: "   "}, image: jpeg, want: EmptyCaptionFallback},
		{name: "bad base64", model: &fakeModel{answer: "nope"}, image: "data:image/jpeg;base64,!!!", want: CaptionFallback},
		{name: "no image", model: &fakeModel{answer: "nope"}, image: "", want: CaptionFallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newService(tt.model)
			assert.Equal(t, tt.want, s.GenerateCaption(context.Background(), tt.image, models.English))
		})
	}
}

func TestSuggestReply(t *testing.T) {
	m := &fakeModel{answer: "Sounds great!\n"}
	s := newService(m)

	got := s.SuggestReply(context.Background(), "Want to grab tea?", models.Bengali)
	assert.Equal(t, "Sounds great!", got)
	prompt := m.lastText(t)
	assert.Contains(t, prompt, "Bengali Unicode")
	assert.Contains(t, prompt, "Want to grab tea?")
}

func TestSuggestReplyFallback(t *testing.T) {
	tests := []struct {
		lang models.Language
		want string
	}{
		{models.English, "Okay"},
		{models.Bengali, "ঠিক আছে"},
		{models.Hindi, "ठीक है"},
	}
	for _, tt := range tests {
		t.Run(string(tt.lang), func(t *testing.T) {
			s := newService(&fakeModel{err: errors.New("unavailable")})
			assert.Equal(t, tt.want, s.SuggestReply(context.Background(), "hi", tt.lang))

			s = newService(&fakeModel{answer: ""})
			assert.Equal(t, tt.want, s.SuggestReply(context.Background(), "hi", tt.lang))
		})
	}
}

func TestTranslate(t *testing.T) {
	m := &fakeModel{answer: " নমস্কার "}
	s := newService(m)

	assert.Equal(t, "নমস্কার", s.Translate(context.Background(), "Hello", models.Bengali))
	prompt := m.lastText(t)
	assert.Contains(t, prompt, "into Bengali")
	assert.Contains(t, prompt, `"Hello"`)
}

func TestTranslateFallsBackToSource(t *testing.T) {
	s := newService(&fakeModel{err: context.DeadlineExceeded})
	assert.Equal(t, "Hello there", s.Translate(context.Background(), "Hello there", models.Hindi))

	s = newService(&fakeModel{answer: "  "})
	assert.Equal(t, "Hello there", s.Translate(context.Background(), "Hello there", models.Hindi))
}

func TestConcurrentCallsAreIndependent(t *testing.T) {
	good := newService(&fakeModel{answer: "ok"})
	bad := newService(&fakeModel{err: errors.New("down")})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.Equal(t, "ok", good.Translate(ctx, "x", models.English))
		}()
		go func() {
			defer wg.Done()
			assert.Equal(t, "x", bad.Translate(ctx, "x", models.English))
		}()
	}
	wg.Wait()
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "carrier-pigeon"}, nil, nil)
	require.Error(t, err)
}

func TestNewOpenAI(t *testing.T) {
	s, err := New(context.Background(), Config{
		Provider: ProviderOpenAI,
		BaseURL:  "http://localhost:11434/v1/",
		Token:    "fake",
		Model:    "llama3.1:8b",
	}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, s.timeout)
}

func TestStripDataURL(t *testing.T) {
	assert.Equal(t, "abc", StripDataURL("data:image/jpeg;base64,abc"))
	assert.Equal(t, "abc", StripDataURL("abc"))
	assert.Equal(t, "", StripDataURL("data:image/jpeg;base64"))
}

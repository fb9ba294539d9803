package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/methodslab/studychat/internal/chat"
	"github.com/methodslab/studychat/internal/llm"
	"github.com/methodslab/studychat/internal/prompt"
	"github.com/methodslab/studychat/internal/transcript"
)

type stubStore struct{}

func (s *stubStore) AppendMessage(ctx context.Context, userID, token string, msg transcript.Message) error {
	return nil
}

func (s *stubStore) SaveFullTranscript(ctx context.Context, userID, token string, history []transcript.Message) error {
	return nil
}

type stubState struct {
	histories map[string][]transcript.Message
}

func (s *stubState) History(ctx context.Context, token, part string) ([]transcript.Message, error) {
	return s.histories[token+"/"+part], nil
}

func (s *stubState) SaveHistory(ctx context.Context, token, part string, history []transcript.Message) error {
	s.histories[token+"/"+part] = append([]transcript.Message(nil), history...)
	return nil
}

type scriptedStream struct {
	chunks []string
	err    error
}

func (p *scriptedStream) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	return "", errors.New("not used")
}

func (p *scriptedStream) StreamChat(ctx context.Context, messages []llm.Message) (<-chan string, <-chan error) {
	chunks := make(chan string, len(p.chunks))
	errs := make(chan error, 1)
	for _, c := range p.chunks {
		chunks <- c
	}
	if p.err != nil {
		errs <- p.err
	}
	close(chunks)
	close(errs)
	return chunks, errs
}

func streamTestHandler(t *testing.T, prov llm.Provider) *Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	path := filepath.Join(t.TempDir(), "parts.json")
	content := `{"part1": "p1", "part2": "p2", "part3": "p3"}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write parts file: %v", err)
	}
	parts, err := prompt.Load(path)
	if err != nil {
		t.Fatalf("load parts: %v", err)
	}

	reg := llm.NewRegistry()
	reg.Register("fake", func(ctx context.Context, model string) (llm.Provider, error) {
		return prov, nil
	})

	store := &stubStore{}
	stores := map[string]chat.TranscriptStore{"part1": store, "part2": store, "part3": store}
	state := &stubState{histories: make(map[string][]transcript.Message)}

	return &Handler{
		Parts:  parts,
		Engine: chat.NewEngine(parts, reg, "fake", stores, state),
	}
}

func streamRequest(t *testing.T, h *Handler, part, message string) string {
	t.Helper()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "part", Value: part}}
	req := httptest.NewRequest(http.MethodPost, "/parts/"+part+"/messages/stream", strings.NewReader(`{"message":"`+message+`"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	h.SendMessageStream(c)
	return w.Body.String()
}

func TestSendMessageStream_DeliversChunksAndDone(t *testing.T) {
	h := streamTestHandler(t, &scriptedStream{chunks: []string{"Hi ", "there"}})

	body := streamRequest(t, h, "part2", "Hello")
	for _, want := range []string{`"delta":"Hi "`, `"delta":"there"`, "event: done"} {
		if !strings.Contains(body, want) {
			t.Fatalf("stream body missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "event: error") {
		t.Fatalf("clean stream must not report an error:\n%s", body)
	}
}

func TestSendMessageStream_FailedStreamReportsError(t *testing.T) {
	h := streamTestHandler(t, &scriptedStream{chunks: []string{"Hi "}, err: errors.New("stream interrupted")})

	// The engine closes all three channels when the turn ends, so the
	// handler's select can see the error and the close in either order.
	// Repeat to cover both.
	for i := 0; i < 50; i++ {
		body := streamRequest(t, h, "part2", "Hello")
		if !strings.Contains(body, "event: error") {
			t.Fatalf("failed stream must report an error:\n%s", body)
		}
		if strings.Contains(body, "event: done") {
			t.Fatalf("failed stream must not report done:\n%s", body)
		}
	}
}

func TestSendMessageStream_UnknownPart(t *testing.T) {
	h := streamTestHandler(t, &scriptedStream{chunks: []string{"Hi "}})

	body := streamRequest(t, h, "part9", "Hello")
	if !strings.Contains(body, "part not found") {
		t.Fatalf("unknown part must surface as a stream error:\n%s", body)
	}
	if strings.Contains(body, "event: done") {
		t.Fatalf("unknown part must not report done:\n%s", body)
	}
}

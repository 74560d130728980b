package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"texplicit_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(&config.Config{OpenAIAPIKey: "sk-test", OpenAIBaseURL: srv.URL, EmbeddingBatchSize: 2}, zap.NewNop())
}

func TestComplete(t *testing.T) {
	var got map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  hello  "}}]}`)
	})

	out, err := client.Complete(context.Background(), Request{
		Model:    "gpt-test",
		Messages: []Message{{Role: RoleSystem, Content: ChatSystemPrompt}, {Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
	assert.Equal(t, "gpt-test", got["model"])
	assert.Len(t, got["messages"], 2)
}

func TestStream(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"Hel", "lo"} {
			fmt.Fprintf(w, "data: {\"id\":\"1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", part)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var deltas []string
	out, err := client.Stream(context.Background(), Request{Model: "gpt-test"}, func(d string) { deltas = append(deltas, d) })
	require.NoError(t, err)
	assert.Equal(t, "Hello", out)
	assert.Equal(t, []string{"Hel", "lo"}, deltas)
}

func TestEmbedBatchesAndOrders(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		calls++
		var body struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		var data []string
		for i := len(body.Input) - 1; i >= 0; i-- {
			data = append(data, fmt.Sprintf(`{"object":"embedding","index":%d,"embedding":[%d]}`, i, len(body.Input[i])))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"object":"list","data":[%s]}`, strings.Join(data, ","))
	})

	vectors, err := client.Embed(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, [][]float32{{1}, {2}, {3}}, vectors)
}

func TestDisabledClient(t *testing.T) {
	client := New(&config.Config{}, zap.NewNop())
	_, err := client.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = client.Embed(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestSplitText(t *testing.T) {
	assert.Nil(t, SplitText("   ", 10, 2))
	assert.Equal(t, []string{"short"}, SplitText("short", 100, 10))

	text := "First sentence here. Second sentence here. Third one."
	chunks := SplitText(text, 25, 0)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "First sentence here.", chunks[0])
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 25)
	}

	overlapped := SplitText(strings.Repeat("x", 30), 10, 3)
	assert.Len(t, overlapped, 4)
}

func TestDecodeJSON(t *testing.T) {
	var list []string
	require.NoError(t, DecodeJSON("```json\n[\"a\", \"b\"]\n```", &list))
	assert.Equal(t, []string{"a", "b"}, list)

	var agent struct {
		Agent string `json:"agent"`
	}
	require.NoError(t, DecodeJSON(`Sure! {"agent": "Finance Agent"} hope it helps`, &agent))
	assert.Equal(t, "Finance Agent", agent.Agent)

	assert.Error(t, DecodeJSON("no json here", &agent))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "abc", Truncate("abc", 10))
}

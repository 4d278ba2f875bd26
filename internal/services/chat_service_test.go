package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/djrag/backend-go/internal/rag"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEmbedder 固定向量的假向量生成器
type testEmbedder struct{}

func (testEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0}
	}
	return vectors, nil
}

func (testEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (testEmbedder) Dimensions() int { return 2 }
func (testEmbedder) Ready() bool     { return true }

func newStubEngine(t *testing.T, store rag.VectorStore, chatURL string) *rag.Engine {
	t.Helper()

	llmConfig := openai.DefaultConfig("test-key")
	llmConfig.BaseURL = chatURL

	engine, err := rag.NewEngineWithComponents(testEmbedder{}, store, openai.NewClientWithConfig(llmConfig), rag.Options{})
	require.NoError(t, err)
	return engine
}

func newStubProvider(t *testing.T, store rag.VectorStore, chatURL string) *EngineProvider {
	t.Helper()
	engine := newStubEngine(t, store, chatURL)
	return NewEngineProviderWithFactory(func() (*rag.Engine, error) {
		return engine, nil
	})
}

// newAnswerServer OpenAI兼容的聊天假服务，记录请求
func newAnswerServer(t *testing.T, answer string, requests *[]openai.ChatCompletionRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if requests != nil {
			*requests = append(*requests, req)
		}
		json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: answer,
				}},
			},
		})
	}))
}

func expectSessionRow(mock sqlmock.Sqlmock, id string) {
	mock.ExpectQuery(`SELECT \* FROM "sessions" WHERE id = \$1`).
		WithArgs(id, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "file_name", "created_at"}).
			AddRow(id, "New Chat", nil, time.Now().UTC()))
}

func TestChatPersistsBothTurnsAfterGeneration(t *testing.T) {
	mock := newMockDB(t)

	var requests []openai.ChatCompletionRequest
	server := newAnswerServer(t, "it grew by 10%", &requests)
	defer server.Close()

	provider := newStubProvider(t, rag.NewMemoryVectorStore(), server.URL)
	sessions := NewSessionService(provider)
	service := NewChatService(provider, sessions)

	expectSessionRow(mock, "abc")

	// 历史窗口查询
	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT \* FROM "messages" WHERE session_id = \$1 ORDER BY created_at DESC`).
		WithArgs("abc", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "role", "content", "created_at"}).
			AddRow(2, "abc", "assistant", "earlier answer", now).
			AddRow(1, "abc", "user", "earlier question", now.Add(-time.Minute)))

	// 两条消息在同一事务内落库
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "messages"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectQuery(`INSERT INTO "messages"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))
	mock.ExpectCommit()

	answer, err := service.Chat(context.Background(), "abc", "what about revenue?")
	require.NoError(t, err)
	assert.Equal(t, "it grew by 10%", answer)
	assert.NoError(t, mock.ExpectationsWereMet())

	// 历史按先旧后新传给生成阶段，最后一条是当前问题
	require.Len(t, requests, 1)
	messages := requests[0].Messages
	require.Len(t, messages, 4)
	assert.Equal(t, "earlier question", messages[1].Content)
	assert.Equal(t, "earlier answer", messages[2].Content)
	assert.Equal(t, "what about revenue?", messages[3].Content)
}

func TestChatUnknownSessionWritesNothing(t *testing.T) {
	mock := newMockDB(t)

	server := newAnswerServer(t, "unused", nil)
	defer server.Close()

	provider := newStubProvider(t, rag.NewMemoryVectorStore(), server.URL)
	sessions := NewSessionService(provider)
	service := NewChatService(provider, sessions)

	mock.ExpectQuery(`SELECT \* FROM "sessions" WHERE id = \$1`).
		WithArgs("ghost", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "file_name", "created_at"}))

	_, err := service.Chat(context.Background(), "ghost", "hello?")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChatGenerationFailureWritesNothing(t *testing.T) {
	mock := newMockDB(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": {"message": "overloaded"}}`))
	}))
	defer server.Close()

	provider := newStubProvider(t, rag.NewMemoryVectorStore(), server.URL)
	sessions := NewSessionService(provider)
	service := NewChatService(provider, sessions)

	expectSessionRow(mock, "abc")
	mock.ExpectQuery(`SELECT \* FROM "messages" WHERE session_id = \$1 ORDER BY created_at DESC`).
		WithArgs("abc", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "role", "content", "created_at"}))

	// 生成失败时不应有任何INSERT
	_, err := service.Chat(context.Background(), "abc", "question")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadProcessesAndRenamesSession(t *testing.T) {
	mock := newMockDB(t)

	store := rag.NewMemoryVectorStore()
	provider := newStubProvider(t, store, "http://unused.invalid")
	sessions := NewSessionService(provider)
	service := NewChatService(provider, sessions)

	expectSessionRow(mock, "abc")
	// MarkUploaded内部先查会话再更新
	expectSessionRow(mock, "abc")
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "sessions" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := service.Upload(context.Background(), "abc", "people.csv", []byte("name,age\nAlice,30\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Chunks)
	assert.Equal(t, "people.csv", result.Title)
	assert.Equal(t, "people.csv", result.FileName)
	assert.NoError(t, mock.ExpectationsWereMet())

	// 分块已带会话标签入索引
	matches, err := store.Search(context.Background(), rag.SearchRequest{
		QueryEmbedding: []float32{1, 0},
		SessionID:      "abc",
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Contains(t, matches[0].Text, "name: Alice")
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	mock := newMockDB(t)

	provider := newStubProvider(t, rag.NewMemoryVectorStore(), "http://unused.invalid")
	sessions := NewSessionService(provider)
	service := NewChatService(provider, sessions)

	expectSessionRow(mock, "abc")

	_, err := service.Upload(context.Background(), "abc", "malware.exe", []byte("MZ"))
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
}

func TestExtensionAllowed(t *testing.T) {
	assert.True(t, ExtensionAllowed("report.pdf"))
	assert.True(t, ExtensionAllowed("REPORT.PDF"))
	assert.True(t, ExtensionAllowed("notes.docx"))
	assert.True(t, ExtensionAllowed("table.xlsx"))
	assert.True(t, ExtensionAllowed("data.csv"))
	assert.False(t, ExtensionAllowed("script.sh"))
	assert.False(t, ExtensionAllowed("noextension"))
}

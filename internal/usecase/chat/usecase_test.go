package chat

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/futig/docchat-backend/internal/chunker"
	"github.com/futig/docchat-backend/internal/config"
	"github.com/futig/docchat-backend/internal/entity"
	"github.com/futig/docchat-backend/internal/index"
	"github.com/futig/docchat-backend/internal/integration/embedding"
	"github.com/futig/docchat-backend/internal/integration/llm"
	"github.com/futig/docchat-backend/internal/pkg/extractor"
	"github.com/futig/docchat-backend/internal/pkg/formatter"
	"github.com/futig/docchat-backend/internal/pkg/validator"
	"github.com/futig/docchat-backend/internal/repository/memory"
	"github.com/futig/docchat-backend/internal/usecase/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingGenerator wraps the mock model and remembers every prompt.
type recordingGenerator struct {
	mu      sync.Mutex
	prompts []string
	next    Generator
	onCall  func()
}

func (g *recordingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()

	if g.onCall != nil {
		g.onCall()
	}
	return g.next.Generate(ctx, prompt)
}

func (g *recordingGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

type testEnv struct {
	chat      *ChatUsecase
	documents *document.DocumentUsecase
	sessions  *memory.SessionStore
	chunks    *memory.ChunkStore
	generator *recordingGenerator
}

type envOption func(*Config, *Embedder)

func withEmptyPolicy(policy string) envOption {
	return func(cfg *Config, _ *Embedder) { cfg.EmptyPolicy = policy }
}

func withQueryEmbedder(e Embedder) envOption {
	return func(_ *Config, emb *Embedder) { *emb = e }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	docs := memory.NewDocumentStore()
	chunks := memory.NewChunkStore()
	idx := index.New()
	ingestEmbedder := embedding.NewHashEmbedder(embedding.DefaultHashDimension, zap.NewNop())

	documents := document.NewUsecase(
		docs, chunks, memory.NewEmbeddingStore(), memory.NewFileStorage(),
		extractor.NewRegistry(),
		chunker.New(chunker.WithChunkSize(200), chunker.WithOverlap(20)),
		ingestEmbedder,
		idx,
		document.Config{Workers: 2, BatchSize: 8},
		zap.NewNop(),
	)

	cfg := Config{K: 3, HistoryWindow: 10, PreviewLength: 200, TitleLength: 50}
	var queryEmbedder Embedder = embedding.NewCachedEmbedder(ingestEmbedder, 0)
	for _, opt := range opts {
		opt(&cfg, &queryEmbedder)
	}

	env := &testEnv{
		documents: documents,
		sessions:  memory.NewSessionStore(50),
		chunks:    chunks,
		generator: &recordingGenerator{next: llm.NewMockConnector(zap.NewNop())},
	}
	env.chat = NewUsecase(
		env.sessions, chunks, docs,
		queryEmbedder,
		idx,
		env.generator,
		documents,
		validator.NewValidator(config.FileUploadConfig{MaxFileSize: 1 << 20, MaxFileCount: 4, MaxTotalSize: 4 << 20}),
		formatter.NewFactory(),
		cfg,
		zap.NewNop(),
	)
	return env
}

func (env *testEnv) upload(t *testing.T, name, content string) {
	t.Helper()
	_, _, err := env.documents.Upload(context.Background(), entity.UploadFile{
		Filename: name,
		Content:  []byte(content),
	})
	require.NoError(t, err)
}

func TestQuery_AnswersFromDocuments(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.upload(t, "notes.txt", "The sky is blue.")
	env.upload(t, "garden.txt", "Grass in the garden grows green in spring.")

	answer, err := env.chat.Query(ctx, entity.QueryRequest{Message: "What color is the sky?"})
	require.NoError(t, err)

	assert.Contains(t, answer.Response, "blue")
	require.NotEmpty(t, answer.Sources)
	assert.Equal(t, "notes.txt", answer.Sources[0].Filename)
	assert.Equal(t, "The sky is blue.", answer.Sources[0].Preview)
	assert.NotEmpty(t, answer.SessionID)

	session, err := env.chat.GetSession(ctx, answer.SessionID)
	require.NoError(t, err)
	require.Len(t, session.Messages, 2)
	assert.Equal(t, entity.MessageRoleUser, session.Messages[0].Role)
	assert.Equal(t, "What color is the sky?", session.Messages[0].Content)
	assert.Equal(t, entity.MessageRoleAssistant, session.Messages[1].Role)
	assert.Equal(t, answer.Sources, session.Messages[1].Sources)
	assert.Equal(t, "What color is the sky?", session.Title)
}

func TestQuery_NoDocuments(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.chat.Query(context.Background(), entity.QueryRequest{Message: "Hello"})

	assert.ErrorIs(t, err, entity.ErrNoDocumentsIndexed)
	assert.Zero(t, env.generator.calls(), "generation must not run without documents")

	sessions, err := env.chat.ListSessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sessions, "a failed query must not leave a session behind")
}

func TestQuery_EmptyMessage(t *testing.T) {
	env := newTestEnv(t)

	for _, msg := range []string{"", "   \n\t"} {
		_, err := env.chat.Query(context.Background(), entity.QueryRequest{Message: msg})
		assert.ErrorIs(t, err, entity.ErrEmptyMessage)
	}
}

func TestQuery_ContinuesSessionWithHistory(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.upload(t, "notes.txt", "The sky is blue.")

	first, err := env.chat.Query(ctx, entity.QueryRequest{Message: "What color is the sky?"})
	require.NoError(t, err)

	second, err := env.chat.Query(ctx, entity.QueryRequest{Message: "Are you sure?", SessionID: &first.SessionID})
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)

	prompts := env.generator.prompts
	require.Len(t, prompts, 2)
	assert.NotContains(t, prompts[0], "Chat history:")
	assert.Contains(t, prompts[1], "Chat history:\nuser: What color is the sky?\nassistant: ")
	assert.True(t, strings.HasSuffix(prompts[1], "Question: Are you sure?\nHelpful answer:"))

	session, err := env.chat.GetSession(ctx, first.SessionID)
	require.NoError(t, err)
	assert.Len(t, session.Messages, 4)
	assert.Equal(t, "What color is the sky?", session.Title, "only the first exchange renames the session")
}

func TestQuery_UnknownSessionIsCreated(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.upload(t, "notes.txt", "The sky is blue.")

	unknown := "does-not-exist"
	answer, err := env.chat.Query(ctx, entity.QueryRequest{Message: "Tell me about the sky please, in as much detail as you can", SessionID: &unknown})
	require.NoError(t, err)
	assert.NotEqual(t, unknown, answer.SessionID)

	session, err := env.chat.GetSession(ctx, answer.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "Tell me about the sky please, in as much detail as...", session.Title)
}

func TestQuery_KeepsCustomTitle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.upload(t, "notes.txt", "The sky is blue.")

	session, err := env.chat.NewSession(ctx, entity.NewSessionRequest{Title: "Weather"})
	require.NoError(t, err)

	_, err = env.chat.Query(ctx, entity.QueryRequest{Message: "What color is the sky?", SessionID: &session.ID})
	require.NoError(t, err)

	got, err := env.chat.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "Weather", got.Title)
}

func TestQuery_ModelMismatch(t *testing.T) {
	env := newTestEnv(t, withQueryEmbedder(embedding.NewHashEmbedder(32, zap.NewNop())))
	env.upload(t, "notes.txt", "The sky is blue.")

	_, err := env.chat.Query(context.Background(), entity.QueryRequest{Message: "What color is the sky?"})

	assert.ErrorIs(t, err, entity.ErrEmbeddingModelMismatch)
	assert.Zero(t, env.generator.calls())
}

func TestQuery_ClientGoneDiscardsAnswer(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t, "notes.txt", "The sky is blue.")

	ctx, cancel := context.WithCancel(context.Background())
	env.generator.onCall = cancel

	_, err := env.chat.Query(ctx, entity.QueryRequest{Message: "What color is the sky?"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, env.generator.calls())

	sessions, err := env.chat.ListSessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestQuery_DeletedDocumentIsNotCited(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.upload(t, "notes.txt", "The sky is blue.")
	env.upload(t, "garden.txt", "Grass in the garden grows green in spring.")

	require.NoError(t, env.documents.Delete(ctx, "notes.txt"))

	answer, err := env.chat.Query(ctx, entity.QueryRequest{Message: "What color is the sky?"})
	require.NoError(t, err)
	for _, s := range answer.Sources {
		assert.NotEqual(t, "notes.txt", s.Filename)
	}
	assert.NotContains(t, answer.Response, "blue")
}

func TestQuery_AllHitsVanished(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	doc, _, err := env.documents.Upload(ctx, entity.UploadFile{
		Filename: "notes.txt",
		Content:  []byte("The sky is blue."),
	})
	require.NoError(t, err)

	// The index still points at the chunks, the store no longer has them.
	require.NoError(t, env.chunks.DeleteByDocument(ctx, doc.ID))

	_, err = env.chat.Query(ctx, entity.QueryRequest{Message: "What color is the sky?"})
	assert.ErrorIs(t, err, entity.ErrNoDocumentsIndexed)
	assert.Zero(t, env.generator.calls())

	sessions, err := env.chat.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestNewSession_EmptySessionPolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("reject", func(t *testing.T) {
		env := newTestEnv(t)

		first, err := env.chat.NewSession(ctx, entity.NewSessionRequest{})
		require.NoError(t, err)
		assert.Equal(t, entity.DefaultSessionTitle, first.Title)

		_, err = env.chat.NewSession(ctx, entity.NewSessionRequest{Title: "Another"})
		assert.ErrorIs(t, err, entity.ErrDuplicateEmptySession)
	})

	t.Run("redirect", func(t *testing.T) {
		env := newTestEnv(t, withEmptyPolicy(config.EmptySessionPolicyRedirect))

		first, err := env.chat.NewSession(ctx, entity.NewSessionRequest{})
		require.NoError(t, err)

		second, err := env.chat.NewSession(ctx, entity.NewSessionRequest{})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("used session does not block a new one", func(t *testing.T) {
		env := newTestEnv(t)
		env.upload(t, "notes.txt", "The sky is blue.")

		first, err := env.chat.NewSession(ctx, entity.NewSessionRequest{})
		require.NoError(t, err)
		_, err = env.chat.Query(ctx, entity.QueryRequest{Message: "What color is the sky?", SessionID: &first.ID})
		require.NoError(t, err)

		second, err := env.chat.NewSession(ctx, entity.NewSessionRequest{})
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)
	})

	t.Run("concurrent requests open one session", func(t *testing.T) {
		env := newTestEnv(t)

		var wg sync.WaitGroup
		var mu sync.Mutex
		created := 0
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := env.chat.NewSession(ctx, entity.NewSessionRequest{}); err == nil {
					mu.Lock()
					created++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, created)
	})
}

func TestSessions_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, withEmptyPolicy(config.EmptySessionPolicyRedirect))
	env.upload(t, "notes.txt", "The sky is blue.")

	for i := 0; i < 3; i++ {
		_, err := env.chat.Query(ctx, entity.QueryRequest{Message: "What color is the sky?"})
		require.NoError(t, err)
	}

	sessions, err := env.chat.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 3)

	require.NoError(t, env.chat.DeleteSession(ctx, sessions[0].ID))
	assert.ErrorIs(t, env.chat.DeleteSession(ctx, sessions[0].ID), entity.ErrSessionNotFound)

	deleted, err := env.chat.ClearHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
}

func TestExportSession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.upload(t, "notes.txt", "The sky is blue.")

	answer, err := env.chat.Query(ctx, entity.QueryRequest{Message: "What color is the sky?"})
	require.NoError(t, err)

	file, err := env.chat.ExportSession(ctx, answer.SessionID, entity.FormatMarkdown)
	require.NoError(t, err)

	body := string(file.Data)
	assert.True(t, strings.HasPrefix(body, "# What color is the sky?\n"))
	assert.Contains(t, body, "## User")
	assert.Contains(t, body, "## Assistant")
	assert.Contains(t, body, "- notes.txt (score ")
	assert.Equal(t, "chat_"+answer.SessionID[:8]+".md", file.Filename)
	assert.Equal(t, "text/markdown; charset=utf-8", file.ContentType)

	_, err = env.chat.ExportSession(ctx, "missing", entity.FormatMarkdown)
	assert.ErrorIs(t, err, entity.ErrSessionNotFound)

	_, err = env.chat.ExportSession(ctx, answer.SessionID, entity.ExportFormat("odt"))
	assert.ErrorIs(t, err, entity.ErrInvalidFormat)
}

func TestStatusAndRefresh(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	status, err := env.chat.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Available)

	env.upload(t, "notes.txt", "The sky is blue.")

	status, err = env.chat.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Available)
	assert.Equal(t, 1, status.DocumentCount)
	assert.Equal(t, 1, status.ChunkCount)

	count, err := env.chat.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

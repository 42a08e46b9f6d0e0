package controller

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"ai-insights-be/internal/dto"
	"ai-insights-be/internal/pkg/logger"
	"ai-insights-be/internal/pkg/serverutils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatService struct {
	known uuid.UUID
	sent  *dto.SendChatRequest
}

func (f *fakeChatService) CreateSession(ctx context.Context, r *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error) {
	return &dto.CreateSessionResponse{Id: f.known, Title: "t"}, nil
}

func (f *fakeChatService) GetSession(ctx context.Context, id uuid.UUID) (*dto.GetSessionResponse, error) {
	if id != f.known {
		return nil, serverutils.NewNotFoundError("chat session not found")
	}
	return &dto.GetSessionResponse{Id: id}, nil
}

func (f *fakeChatService) GetChatHistory(ctx context.Context, id uuid.UUID) ([]*dto.GetChatHistoryResponse, error) {
	return []*dto.GetChatHistoryResponse{}, nil
}

func (f *fakeChatService) SendChat(ctx context.Context, r *dto.SendChatRequest) (*dto.SendChatResponse, error) {
	f.sent = r
	return &dto.SendChatResponse{ChatSessionId: r.ChatSessionId, Answer: "42"}, nil
}

func (f *fakeChatService) GetVersions(ctx context.Context, id uuid.UUID) ([]*dto.DatasetVersionResponse, error) {
	return []*dto.DatasetVersionResponse{{Version: 1}}, nil
}

func (f *fakeChatService) DeleteSession(ctx context.Context, id uuid.UUID) error { return nil }

func newTestApp(svc *fakeChatService) *fiber.App {
	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	NewChatController(svc, nil, logger.NewNop()).RegisterRoutes(app.Group("/api"))
	return app
}

func decode(t *testing.T, body io.Reader) map[string]interface{} {
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

func TestChatController_SendChat(t *testing.T) {
	svc := &fakeChatService{known: uuid.New()}
	app := newTestApp(svc)

	body := `{"chat_session_id":"` + svc.known.String() + `","chat":"What is the average revenue?"}`
	req := httptest.NewRequest("POST", "/api/chat/v1/send", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	out := decode(t, resp.Body)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "42", out["data"].(map[string]interface{})["answer"])
	require.NotNil(t, svc.sent)
	assert.Equal(t, "What is the average revenue?", svc.sent.Chat)
}

func TestChatController_SendChatValidates(t *testing.T) {
	app := newTestApp(&fakeChatService{})

	req := httptest.NewRequest("POST", "/api/chat/v1/send", strings.NewReader(`{"chat":""}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, false, decode(t, resp.Body)["success"])
}

func TestChatController_UnknownSessionIs404(t *testing.T) {
	app := newTestApp(&fakeChatService{known: uuid.New()})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/chat/v1/session/"+uuid.NewString(), nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/chat/v1/session/not-a-uuid", nil))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestChatController_SocketRequiresUpgrade(t *testing.T) {
	svc := &fakeChatService{known: uuid.New()}
	app := newTestApp(svc)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/chat/v1/ws/"+svc.known.String(), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/helpdesk-backend/internal/auth"
	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
	"github.com/lorrc/helpdesk-backend/internal/core/mocks"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
	"github.com/lorrc/helpdesk-backend/internal/realtime"
)

var handlerEpoch = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type testServer struct {
	router    stdhttp.Handler
	tokens    *auth.TokenManager
	bus       *realtime.Bus
	tickets   *mocks.MockTicketService
	chat      *mocks.MockChatService
	calls     *mocks.MockCallService
	speech    *mocks.MockSpeechService
	directory *mocks.MockDirectoryService
	reports   *mocks.MockReportService
	checks    map[string]HealthChecker
}

func newTestServer(t *testing.T, checks map[string]HealthChecker) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ts := &testServer{
		tokens:    auth.NewTokenManager("handler-test-secret", time.Hour),
		bus:       realtime.NewBus(16, logger),
		tickets:   mocks.NewMockTicketService(),
		chat:      mocks.NewMockChatService(),
		calls:     mocks.NewMockCallService(),
		speech:    mocks.NewMockSpeechService(),
		directory: mocks.NewMockDirectoryService(),
		reports:   mocks.NewMockReportService(),
		checks:    checks,
	}
	ts.router = NewRouter(RouterDeps{
		TicketService:      ts.tickets,
		ChatService:        ts.chat,
		CallService:        ts.calls,
		SpeechService:      ts.speech,
		DirectoryService:   ts.directory,
		ReportService:      ts.reports,
		Bus:                ts.bus,
		TokenManager:       ts.tokens,
		HealthChecks:       checks,
		Version:            "test",
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		FeedHeartbeat:      time.Hour,
		Logger:             logger,
	})
	return ts
}

func (ts *testServer) token(t *testing.T, identity *domain.Identity) string {
	t.Helper()
	token, err := ts.tokens.GenerateToken(identity.UserID, identity.Role)
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(t *testing.T, method, path string, body io.Reader, identity *domain.Identity) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if identity != nil {
		req.Header.Set("Authorization", "Bearer "+ts.token(t, identity))
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func sameCaller(identity *domain.Identity) interface{} {
	return mock.MatchedBy(func(got *domain.Identity) bool {
		return got != nil && got.UserID == identity.UserID && got.Role == identity.Role
	})
}

func sampleTicket(requester uuid.UUID) *domain.Ticket {
	return &domain.Ticket{
		ID:                 7,
		RequesterID:        requester,
		Description:        "The printer on floor two keeps jamming",
		Status:             domain.StatusOpen,
		Priority:           domain.PriorityHigh,
		Category:           domain.CategoryTechnical,
		RequiresTechnician: true,
		CreatedAt:          handlerEpoch,
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestTicketHandler_Create(t *testing.T) {
	caller := &domain.Identity{UserID: uuid.New(), Role: domain.RoleUser}

	t.Run("creates and expands the technician", func(t *testing.T) {
		ts := newTestServer(t, nil)
		techID := uuid.New()
		ticket := sampleTicket(caller.UserID)
		ticket.AssignedTo = &techID
		ticket.AssignedTechnician = &domain.UserInfo{ID: techID, FullName: "Tess Tech", Email: "tess@helpdesk.test"}

		ts.tickets.On("CreateTicket", mock.Anything, mock.MatchedBy(func(p ports.CreateTicketParams) bool {
			return p.Category == domain.CategoryTechnical &&
				p.Priority == domain.PriorityHigh &&
				p.Requester != nil && p.Requester.UserID == caller.UserID
		})).Return(ticket, nil)

		body := `{"description":"The printer on floor two keeps jamming","priority":"high","category":"technical"}`
		rec := ts.do(t, stdhttp.MethodPost, "/api/v1/tickets", strings.NewReader(body), caller)

		require.Equal(t, stdhttp.StatusCreated, rec.Code)
		var dto TicketDTO
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&dto))
		assert.Equal(t, int64(7), dto.ID)
		assert.Equal(t, "open", dto.Status)
		require.NotNil(t, dto.AssignedTechnician)
		assert.Equal(t, "Tess Tech", dto.AssignedTechnician.Name)
		assert.Equal(t, techID.String(), *dto.AssignedTo)
		ts.tickets.AssertExpectations(t)
	})

	t.Run("requires a token", func(t *testing.T) {
		ts := newTestServer(t, nil)
		rec := ts.do(t, stdhttp.MethodPost, "/api/v1/tickets", strings.NewReader(`{}`), nil)
		assert.Equal(t, stdhttp.StatusUnauthorized, rec.Code)
	})

	t.Run("short description is rejected before the service", func(t *testing.T) {
		ts := newTestServer(t, nil)
		rec := ts.do(t, stdhttp.MethodPost, "/api/v1/tickets", strings.NewReader(`{"description":"too short"}`), caller)

		require.Equal(t, stdhttp.StatusUnprocessableEntity, rec.Code)
		var resp ValidationErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Contains(t, resp.Fields, "description")
		ts.tickets.AssertNotCalled(t, "CreateTicket", mock.Anything, mock.Anything)
	})

	t.Run("unknown fields are a bad request", func(t *testing.T) {
		ts := newTestServer(t, nil)
		body := `{"description":"The printer on floor two keeps jamming","title":"x"}`
		rec := ts.do(t, stdhttp.MethodPost, "/api/v1/tickets", strings.NewReader(body), caller)
		assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
	})

	t.Run("no technician available is a conflict", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.tickets.On("CreateTicket", mock.Anything, mock.Anything).Return(nil, apperrors.NewAssignmentError(apperrors.ErrNoTechnicianAvailable))

		body := `{"description":"The printer on floor two keeps jamming","category":"technical"}`
		rec := ts.do(t, stdhttp.MethodPost, "/api/v1/tickets", strings.NewReader(body), caller)

		require.Equal(t, stdhttp.StatusConflict, rec.Code)
		assert.Equal(t, "NO_TECHNICIAN_AVAILABLE", decodeError(t, rec).Code)
	})

	t.Run("mismatched technician flag surfaces as bad request", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.tickets.On("CreateTicket", mock.Anything, mock.Anything).Return(nil, apperrors.ErrTechnicianMismatch)

		body := `{"description":"The printer on floor two keeps jamming","category":"general","requiresTechnician":true}`
		rec := ts.do(t, stdhttp.MethodPost, "/api/v1/tickets", strings.NewReader(body), caller)

		require.Equal(t, stdhttp.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)
	})
}

func TestTicketHandler_Listings(t *testing.T) {
	caller := &domain.Identity{UserID: uuid.New(), Role: domain.RoleTechnician}

	t.Run("asks for one extra row to detect more pages", func(t *testing.T) {
		ts := newTestServer(t, nil)
		tickets := []*domain.Ticket{sampleTicket(uuid.New()), sampleTicket(uuid.New()), sampleTicket(uuid.New())}
		ts.tickets.On("ListTechnicianTickets", mock.Anything, mock.MatchedBy(func(p ports.ListTicketsParams) bool {
			return p.Limit == 3 && p.Offset == 4 && p.Status != nil && *p.Status == domain.StatusInProgress
		})).Return(tickets, nil)

		rec := ts.do(t, stdhttp.MethodGet, "/api/v1/tickets/assigned?limit=2&offset=4&status=in-progress", nil, caller)

		require.Equal(t, stdhttp.StatusOK, rec.Code)
		var resp PaginatedResponse[TicketDTO]
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Len(t, resp.Data, 2)
		assert.True(t, resp.Pagination.HasMore)
		assert.Equal(t, 2, resp.Pagination.Limit)
	})

	t.Run("unknown status filter", func(t *testing.T) {
		ts := newTestServer(t, nil)
		rec := ts.do(t, stdhttp.MethodGet, "/api/v1/tickets?status=pending", nil, caller)
		assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
	})

	t.Run("all tickets is staff only", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.tickets.On("ListAllTickets", mock.Anything, mock.Anything).Return(nil, apperrors.ErrForbidden)

		rec := ts.do(t, stdhttp.MethodGet, "/api/v1/tickets/all", nil, caller)
		assert.Equal(t, stdhttp.StatusForbidden, rec.Code)
	})

	t.Run("counts and recent", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.tickets.On("GetTicketCounts", mock.Anything, sameCaller(caller)).
			Return(&domain.TicketCounts{Open: 2, InProgress: 1}, nil)
		ts.tickets.On("GetRecentTickets", mock.Anything, sameCaller(caller)).
			Return([]*domain.Ticket{sampleTicket(caller.UserID)}, nil)

		rec := ts.do(t, stdhttp.MethodGet, "/api/v1/tickets/counts", nil, caller)
		require.Equal(t, stdhttp.StatusOK, rec.Code)
		assert.JSONEq(t, `{"open":2,"inProgress":1,"resolved":0,"closed":0}`, rec.Body.String())

		rec = ts.do(t, stdhttp.MethodGet, "/api/v1/tickets/recent", nil, caller)
		require.Equal(t, stdhttp.StatusOK, rec.Code)
		var resp ListResponse[TicketDTO]
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, 1, resp.Count)
	})
}

func TestTicketHandler_Lifecycle(t *testing.T) {
	caller := &domain.Identity{UserID: uuid.New(), Role: domain.RoleAdmin}

	t.Run("hidden ticket is not found", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.tickets.On("GetTicket", mock.Anything, int64(7), sameCaller(caller)).Return(nil, apperrors.ErrTicketNotFound)

		rec := ts.do(t, stdhttp.MethodGet, "/api/v1/tickets/7", nil, caller)
		require.Equal(t, stdhttp.StatusNotFound, rec.Code)
		assert.Equal(t, "TICKET_NOT_FOUND", decodeError(t, rec).Code)
	})

	t.Run("non numeric id", func(t *testing.T) {
		ts := newTestServer(t, nil)
		rec := ts.do(t, stdhttp.MethodGet, "/api/v1/tickets/abc", nil, caller)
		assert.Equal(t, stdhttp.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("backward status change", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.tickets.On("UpdateStatus", mock.Anything, mock.MatchedBy(func(p ports.UpdateStatusParams) bool {
			return p.TicketID == 7 && p.Status == domain.StatusOpen
		})).Return(nil, apperrors.ErrInvalidStatusTransition)

		rec := ts.do(t, stdhttp.MethodPatch, "/api/v1/tickets/7/status", strings.NewReader(`{"status":"open"}`), caller)
		require.Equal(t, stdhttp.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_STATUS_TRANSITION", decodeError(t, rec).Code)
	})

	t.Run("reopen", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ticket := sampleTicket(uuid.New())
		ts.tickets.On("ReopenTicket", mock.Anything, int64(7), sameCaller(caller)).Return(ticket, nil)

		rec := ts.do(t, stdhttp.MethodPost, "/api/v1/tickets/7/reopen", nil, caller)
		assert.Equal(t, stdhttp.StatusOK, rec.Code)
	})

	t.Run("assign", func(t *testing.T) {
		ts := newTestServer(t, nil)
		techID := uuid.New()
		ticket := sampleTicket(uuid.New())
		ticket.AssignedTo = &techID
		ticket.Status = domain.StatusInProgress
		ts.tickets.On("AssignTicket", mock.Anything, mock.MatchedBy(func(p ports.AssignTicketParams) bool {
			return p.TicketID == 7 && p.TechnicianID == techID
		})).Return(ticket, nil)

		body := `{"technicianId":"` + techID.String() + `"}`
		rec := ts.do(t, stdhttp.MethodPatch, "/api/v1/tickets/7/assignee", strings.NewReader(body), caller)

		require.Equal(t, stdhttp.StatusOK, rec.Code)
		var dto TicketDTO
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&dto))
		assert.Equal(t, "in-progress", dto.Status)
	})

	t.Run("assign needs a uuid", func(t *testing.T) {
		ts := newTestServer(t, nil)
		rec := ts.do(t, stdhttp.MethodPatch, "/api/v1/tickets/7/assignee", strings.NewReader(`{"technicianId":"bob"}`), caller)
		assert.Equal(t, stdhttp.StatusUnprocessableEntity, rec.Code)
	})
}

func TestMessageHandler(t *testing.T) {
	caller := &domain.Identity{UserID: uuid.New(), Role: domain.RoleUser}
	saved := &domain.ChatMessage{
		ID:          11,
		TicketID:    7,
		Sender:      domain.SenderUser,
		Message:     "still jammed",
		MessageType: domain.MessageTypeText,
		CreatedAt:   handlerEpoch,
	}

	t.Run("json text message", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.chat.On("SendMessage", mock.Anything, mock.MatchedBy(func(p ports.SendMessageParams) bool {
			return p.TicketID == 7 && p.Message == "still jammed" && p.Audio == nil
		})).Return(saved, nil)

		rec := ts.do(t, stdhttp.MethodPost, "/api/v1/tickets/7/messages", strings.NewReader(`{"message":"still jammed"}`), caller)

		require.Equal(t, stdhttp.StatusCreated, rec.Code)
		var snap domain.MessageSnapshot
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
		assert.Equal(t, "11", snap.ID)
		assert.Equal(t, "user", snap.Sender)
	})

	t.Run("multipart voice message", func(t *testing.T) {
		ts := newTestServer(t, nil)
		voiceURL := "/media/voice-messages/1-note.webm"
		voice := &domain.ChatMessage{
			ID: 12, TicketID: 7, Sender: domain.SenderUser,
			MessageType: domain.MessageTypeVoice, VoiceURL: &voiceURL, CreatedAt: handlerEpoch,
		}
		var uploaded []byte
		ts.chat.On("SendMessage", mock.Anything, mock.MatchedBy(func(p ports.SendMessageParams) bool {
			return p.Audio != nil && p.AudioFilename == "note.webm"
		})).Run(func(args mock.Arguments) {
			params := args.Get(1).(ports.SendMessageParams)
			uploaded, _ = io.ReadAll(params.Audio)
		}).Return(voice, nil)

		var body bytes.Buffer
		form := multipart.NewWriter(&body)
		part, err := form.CreateFormFile("audio", "note.webm")
		require.NoError(t, err)
		_, err = part.Write([]byte("RIFF-audio"))
		require.NoError(t, err)
		require.NoError(t, form.Close())

		req := httptest.NewRequest(stdhttp.MethodPost, "/api/v1/tickets/7/messages", &body)
		req.Header.Set("Content-Type", form.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+ts.token(t, caller))
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)

		require.Equal(t, stdhttp.StatusCreated, rec.Code)
		var snap domain.MessageSnapshot
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
		assert.Equal(t, "voice", snap.MessageType)
		assert.Equal(t, "RIFF-audio", string(uploaded))
		require.NotNil(t, snap.VoiceURL)
		assert.Equal(t, voiceURL, *snap.VoiceURL)
	})

	t.Run("multipart without audio", func(t *testing.T) {
		ts := newTestServer(t, nil)

		var body bytes.Buffer
		form := multipart.NewWriter(&body)
		require.NoError(t, form.WriteField("message", "hello"))
		require.NoError(t, form.Close())

		req := httptest.NewRequest(stdhttp.MethodPost, "/api/v1/tickets/7/messages", &body)
		req.Header.Set("Content-Type", form.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+ts.token(t, caller))
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)

		assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
		ts.chat.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
	})

	t.Run("blob store failure", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.chat.On("SendMessage", mock.Anything, mock.Anything).
			Return(nil, apperrors.NewExternalServiceError("blob_store", errors.New("disk full")))

		rec := ts.do(t, stdhttp.MethodPost, "/api/v1/tickets/7/messages", strings.NewReader(`{"message":"hi"}`), caller)
		assert.Equal(t, stdhttp.StatusBadGateway, rec.Code)
	})

	t.Run("list in creation order", func(t *testing.T) {
		ts := newTestServer(t, nil)
		reply := *saved
		reply.ID = 12
		reply.Sender = domain.SenderAI
		ts.chat.On("GetChatMessages", mock.Anything, int64(7), sameCaller(caller)).
			Return([]*domain.ChatMessage{saved, &reply}, nil)

		rec := ts.do(t, stdhttp.MethodGet, "/api/v1/tickets/7/messages", nil, caller)

		require.Equal(t, stdhttp.StatusOK, rec.Code)
		var resp ListResponse[domain.MessageSnapshot]
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Len(t, resp.Data, 2)
		assert.Equal(t, "ai", resp.Data[1].Sender)
	})
}

func TestCallHandler(t *testing.T) {
	caller := &domain.Identity{UserID: uuid.New(), Role: domain.RoleUser}

	t.Run("defaults to audio", func(t *testing.T) {
		ts := newTestServer(t, nil)
		call := domain.NewCallSession(7, caller.UserID, domain.CallTypeAudio, handlerEpoch)
		ts.calls.On("InitiateCall", mock.Anything, mock.MatchedBy(func(p ports.InitiateCallParams) bool {
			return p.TicketID == 7 && p.Type == domain.CallTypeAudio
		})).Return(call, nil)

		rec := ts.do(t, stdhttp.MethodPost, "/api/v1/tickets/7/calls", nil, caller)

		require.Equal(t, stdhttp.StatusCreated, rec.Code)
		var snap domain.CallSnapshot
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
		assert.Equal(t, call.CallID, snap.CallID)
		assert.Equal(t, []string{caller.UserID.String(), domain.AdminParticipant}, snap.Participants)
	})

	t.Run("low priority requester is refused", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.calls.On("InitiateCall", mock.Anything, mock.Anything).Return(nil, apperrors.ErrCallNotPermitted)

		rec := ts.do(t, stdhttp.MethodPost, "/api/v1/tickets/7/calls", strings.NewReader(`{"type":"video"}`), caller)

		require.Equal(t, stdhttp.StatusForbidden, rec.Code)
		assert.Equal(t, "CALL_NOT_PERMITTED", decodeError(t, rec).Code)
	})

	t.Run("unknown call type", func(t *testing.T) {
		ts := newTestServer(t, nil)
		rec := ts.do(t, stdhttp.MethodPost, "/api/v1/tickets/7/calls", strings.NewReader(`{"type":"fax"}`), caller)
		assert.Equal(t, stdhttp.StatusUnprocessableEntity, rec.Code)
	})
}

func TestSpeechHandler(t *testing.T) {
	caller := &domain.Identity{UserID: uuid.New(), Role: domain.RoleUser}

	t.Run("returns the voice url", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.speech.On("ConvertTextToSpeech", mock.Anything, "hello", sameCaller(caller)).Return("/media/speech/1-a.mp3", nil)

		rec := ts.do(t, stdhttp.MethodPost, "/api/v1/speech", strings.NewReader(`{"text":"hello"}`), caller)

		require.Equal(t, stdhttp.StatusOK, rec.Code)
		assert.JSONEq(t, `{"voiceUrl":"/media/speech/1-a.mp3"}`, rec.Body.String())
	})

	t.Run("synthesis failure is a bad gateway", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.speech.On("ConvertTextToSpeech", mock.Anything, mock.Anything, mock.Anything).
			Return("", apperrors.NewExternalServiceError("text_to_speech", errors.New("timeout")))

		rec := ts.do(t, stdhttp.MethodPost, "/api/v1/speech", strings.NewReader(`{"text":"hello"}`), caller)

		require.Equal(t, stdhttp.StatusBadGateway, rec.Code)
		assert.Equal(t, "EXTERNAL_SERVICE_ERROR", decodeError(t, rec).Code)
	})
}

func TestDirectoryHandlers(t *testing.T) {
	admin := &domain.Identity{UserID: uuid.New(), Role: domain.RoleAdmin}

	t.Run("sync own profile", func(t *testing.T) {
		ts := newTestServer(t, nil)
		user := &domain.User{ID: admin.UserID, FullName: "Ada Admin", Email: "ada@helpdesk.test", Role: domain.RoleAdmin, CreatedAt: handlerEpoch}
		ts.directory.On("SyncSelf", mock.Anything, "Ada Admin", "ada@helpdesk.test", sameCaller(admin)).Return(user, nil)

		rec := ts.do(t, stdhttp.MethodPut, "/api/v1/me", strings.NewReader(`{"fullName":"Ada Admin","email":"ada@helpdesk.test"}`), admin)

		require.Equal(t, stdhttp.StatusOK, rec.Code)
		var dto UserDTO
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&dto))
		assert.Equal(t, "admin", dto.Role)
	})

	t.Run("admin upsert", func(t *testing.T) {
		ts := newTestServer(t, nil)
		techID := uuid.New()
		tech := &domain.User{ID: techID, FullName: "Tess", Email: "tess@helpdesk.test", Role: domain.RoleTechnician, CreatedAt: handlerEpoch}
		ts.directory.On("UpsertUser", mock.Anything, mock.MatchedBy(func(p ports.UpsertUserParams) bool {
			return p.UserID == techID && p.Role == domain.RoleTechnician
		})).Return(tech, nil)

		body := `{"fullName":"Tess","email":"tess@helpdesk.test","role":"technician"}`
		rec := ts.do(t, stdhttp.MethodPut, "/api/v1/admin/users/"+techID.String(), strings.NewReader(body), admin)
		assert.Equal(t, stdhttp.StatusOK, rec.Code)
	})

	t.Run("list forbidden for requesters", func(t *testing.T) {
		ts := newTestServer(t, nil)
		caller := &domain.Identity{UserID: uuid.New(), Role: domain.RoleUser}
		ts.directory.On("ListUsers", mock.Anything, mock.Anything, mock.Anything).Return(nil, apperrors.ErrForbidden)

		rec := ts.do(t, stdhttp.MethodGet, "/api/v1/admin/users?role=technician", nil, caller)
		assert.Equal(t, stdhttp.StatusForbidden, rec.Code)
	})
}

func TestReportHandlers(t *testing.T) {
	admin := &domain.Identity{UserID: uuid.New(), Role: domain.RoleAdmin}

	t.Run("dashboard totals", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.reports.On("Dashboard", mock.Anything, sameCaller(admin)).
			Return(&domain.DashboardTotals{Users: 5, Tickets: 11, OpenTickets: 4, ResolvedTickets: 6}, nil)

		rec := ts.do(t, stdhttp.MethodGet, "/api/v1/admin/dashboard", nil, admin)

		require.Equal(t, stdhttp.StatusOK, rec.Code)
		var resp DashboardResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, DashboardResponse{TotalUsers: 5, TotalTickets: 11, OpenTickets: 4, ResolvedTickets: 6}, resp)
	})

	t.Run("report for a month", func(t *testing.T) {
		ts := newTestServer(t, nil)
		techID := uuid.New()
		overview := &domain.AnalyticsOverview{
			Since:    handlerEpoch.AddDate(0, -1, 0),
			Until:    handlerEpoch,
			Status:   domain.TicketCounts{Open: 3, Resolved: 2},
			Priority: domain.PriorityCounts{High: 4, Low: 1},
			Volume: []domain.VolumePoint{
				{Day: time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC), Created: 2, Resolved: 1},
				{Day: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), Created: 3},
			},
			Workload:        []domain.WorkloadItem{{TechnicianID: techID, FullName: "Tess", Email: "tess@helpdesk.test", ActiveTickets: 3}},
			ResolutionHours: 5.5,
		}
		ts.reports.On("Report", mock.Anything, domain.PeriodMonth, sameCaller(admin)).Return(overview, nil)

		rec := ts.do(t, stdhttp.MethodGet, "/api/v1/admin/reports?period=month", nil, admin)

		require.Equal(t, stdhttp.StatusOK, rec.Code)
		var resp ReportResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "month", resp.Period)
		assert.Equal(t, "2026-04-01T12:00:00Z", resp.Since)
		assert.Contains(t, resp.TicketsByStatus, StatusCountDTO{Status: "open", Count: 3})
		assert.Contains(t, resp.TicketsByStatus, StatusCountDTO{Status: "in-progress", Count: 0})
		assert.Contains(t, resp.TicketsByPriority, PriorityCountDTO{Priority: "high", Count: 4})
		assert.Equal(t, []VolumePointDTO{
			{Date: "2026-04-30", Created: 2, Resolved: 1},
			{Date: "2026-05-01", Created: 3},
		}, resp.TicketsOverTime)
		require.Len(t, resp.Workload, 1)
		assert.Equal(t, techID.String(), resp.Workload[0].TechnicianID)
		assert.InDelta(t, 5.5, resp.ResolutionHours, 0.001)
	})

	t.Run("period defaults to a week", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.reports.On("Report", mock.Anything, domain.PeriodWeek, mock.Anything).
			Return(&domain.AnalyticsOverview{Since: handlerEpoch.AddDate(0, 0, -7), Until: handlerEpoch}, nil)

		rec := ts.do(t, stdhttp.MethodGet, "/api/v1/admin/reports", nil, admin)

		require.Equal(t, stdhttp.StatusOK, rec.Code)
		var resp ReportResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "week", resp.Period)
		assert.NotNil(t, resp.TicketsOverTime)
		assert.NotNil(t, resp.Workload)
	})

	t.Run("unknown period is rejected", func(t *testing.T) {
		ts := newTestServer(t, nil)
		verrs := apperrors.NewValidationErrors()
		verrs.Add("period", "Period must be one of: day, week, month, year")
		ts.reports.On("Report", mock.Anything, domain.ReportPeriod("decade"), mock.Anything).Return(nil, verrs)

		rec := ts.do(t, stdhttp.MethodGet, "/api/v1/admin/reports?period=decade", nil, admin)
		assert.Equal(t, stdhttp.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("requesters are forbidden", func(t *testing.T) {
		ts := newTestServer(t, nil)
		caller := &domain.Identity{UserID: uuid.New(), Role: domain.RoleUser}
		ts.reports.On("Dashboard", mock.Anything, mock.Anything).Return(nil, apperrors.ErrForbidden)

		rec := ts.do(t, stdhttp.MethodGet, "/api/v1/admin/dashboard", nil, caller)
		assert.Equal(t, stdhttp.StatusForbidden, rec.Code)
	})

	t.Run("anonymous callers never reach the service", func(t *testing.T) {
		ts := newTestServer(t, nil)

		rec := ts.do(t, stdhttp.MethodGet, "/api/v1/admin/reports", nil, nil)
		assert.Equal(t, stdhttp.StatusUnauthorized, rec.Code)
		ts.reports.AssertNotCalled(t, "Report", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestFeedHandler(t *testing.T) {
	caller := &domain.Identity{UserID: uuid.New(), Role: domain.RoleUser}

	t.Run("streams matching events", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.tickets.On("GetTicket", mock.Anything, int64(7), sameCaller(caller)).Return(sampleTicket(caller.UserID), nil)

		srv := httptest.NewServer(ts.router)
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		req, err := stdhttp.NewRequestWithContext(ctx, stdhttp.MethodGet,
			srv.URL+"/api/v1/tickets/7/feed?events=call&token="+ts.token(t, caller), nil)
		require.NoError(t, err)

		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, stdhttp.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

		require.Eventually(t, func() bool { return ts.bus.SubscriberCount(7) == 1 }, time.Second, 5*time.Millisecond)

		msg := &domain.ChatMessage{ID: 1, TicketID: 7, Sender: domain.SenderUser, Message: "hi", MessageType: domain.MessageTypeText, CreatedAt: handlerEpoch}
		call := domain.NewCallSession(7, caller.UserID, domain.CallTypeAudio, handlerEpoch)
		require.NoError(t, ts.bus.Broadcast(domain.NewMessageEvent(msg)))
		require.NoError(t, ts.bus.Broadcast(domain.NewCallEvent(call)))

		reader := bufio.NewReader(resp.Body)
		eventLine, err := reader.ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, "event: CALL_INITIATED\n", eventLine)

		dataLine, err := reader.ReadString('\n')
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(dataLine, "data: "))

		var envelope struct {
			Type     string              `json:"type"`
			TicketID int64               `json:"ticketId"`
			Payload  domain.CallSnapshot `json:"payload"`
		}
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(dataLine, "data: ")), &envelope))
		assert.Equal(t, int64(7), envelope.TicketID)
		assert.Equal(t, call.CallID, envelope.Payload.CallID)
	})

	t.Run("hidden ticket is refused before streaming", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.tickets.On("GetTicket", mock.Anything, int64(8), mock.Anything).Return(nil, apperrors.ErrTicketNotFound)

		req := httptest.NewRequest(stdhttp.MethodGet, "/api/v1/tickets/8/feed?token="+ts.token(t, caller), nil)
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)

		assert.Equal(t, stdhttp.StatusNotFound, rec.Code)
		assert.Equal(t, 0, ts.bus.TopicCount())
	})

	t.Run("unknown event kind", func(t *testing.T) {
		ts := newTestServer(t, nil)
		req := httptest.NewRequest(stdhttp.MethodGet, "/api/v1/tickets/7/feed?events=typing&token="+ts.token(t, caller), nil)
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)

		assert.Equal(t, stdhttp.StatusUnprocessableEntity, rec.Code)
	})
}

func TestHealthAndMetrics(t *testing.T) {
	t.Run("liveness ignores dependencies", func(t *testing.T) {
		ts := newTestServer(t, map[string]HealthChecker{
			"database": PingFunc(func(context.Context) error { return errors.New("down") }),
		})
		rec := ts.do(t, stdhttp.MethodGet, "/health/live", nil, nil)
		assert.Equal(t, stdhttp.StatusOK, rec.Code)
	})

	t.Run("readiness reports each dependency", func(t *testing.T) {
		ts := newTestServer(t, map[string]HealthChecker{
			"database": PingFunc(func(context.Context) error { return nil }),
			"redis":    PingFunc(func(context.Context) error { return errors.New("connection refused") }),
		})
		rec := ts.do(t, stdhttp.MethodGet, "/health/ready", nil, nil)

		require.Equal(t, stdhttp.StatusServiceUnavailable, rec.Code)
		var resp HealthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "healthy", resp.Checks["database"].Status)
		assert.Equal(t, "unhealthy", resp.Checks["redis"].Status)
	})

	t.Run("detailed health includes fan-out figures", func(t *testing.T) {
		ts := newTestServer(t, nil)
		sub := ts.bus.Subscribe(7)
		defer sub.Close()

		rec := ts.do(t, stdhttp.MethodGet, "/health", nil, nil)
		require.Equal(t, stdhttp.StatusOK, rec.Code)

		var resp struct {
			Status   string        `json:"status"`
			Realtime RealtimeStats `json:"realtime"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, 1, resp.Realtime.Topics)
	})

	t.Run("metrics endpoint", func(t *testing.T) {
		ts := newTestServer(t, nil)
		_ = ts.do(t, stdhttp.MethodGet, "/health/live", nil, nil)

		rec := ts.do(t, stdhttp.MethodGet, "/metrics", nil, nil)
		require.Equal(t, stdhttp.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "http_requests_total")
	})
}

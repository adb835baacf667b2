package mocks

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
	"github.com/stretchr/testify/mock"
)

// MockUserRepository is a mock implementation of ports.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{}
}

func (m *MockUserRepository) Upsert(ctx context.Context, user *domain.User) (*domain.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) ListByRole(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

// MockTicketRepository is a mock implementation of ports.TicketRepository
type MockTicketRepository struct {
	mock.Mock
}

func NewMockTicketRepository() *MockTicketRepository {
	return &MockTicketRepository{}
}

func (m *MockTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	args := m.Called(ctx, ticket)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) Update(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	args := m.Called(ctx, ticket)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) List(ctx context.Context, params ports.ListTicketsRepoParams) ([]*domain.Ticket, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Ticket), args.Error(1)
}

func (m *MockTicketRepository) CountByStatus(ctx context.Context, requesterID uuid.UUID) (domain.TicketCounts, error) {
	args := m.Called(ctx, requesterID)
	return args.Get(0).(domain.TicketCounts), args.Error(1)
}

func (m *MockTicketRepository) ActiveAssignmentCounts(ctx context.Context, technicianIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	args := m.Called(ctx, technicianIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]int64), args.Error(1)
}

func (m *MockTicketRepository) LockAssignments(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockMessageRepository is a mock implementation of ports.MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

func NewMockMessageRepository() *MockMessageRepository {
	return &MockMessageRepository{}
}

func (m *MockMessageRepository) Create(ctx context.Context, msg *domain.ChatMessage) (*domain.ChatMessage, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatMessage), args.Error(1)
}

func (m *MockMessageRepository) ListByTicket(ctx context.Context, ticketID int64) ([]*domain.ChatMessage, error) {
	args := m.Called(ctx, ticketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ChatMessage), args.Error(1)
}

// MockAnalyticsRepository is a mock implementation of ports.AnalyticsRepository
type MockAnalyticsRepository struct {
	mock.Mock
}

func NewMockAnalyticsRepository() *MockAnalyticsRepository {
	return &MockAnalyticsRepository{}
}

func (m *MockAnalyticsRepository) Totals(ctx context.Context) (domain.DashboardTotals, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.DashboardTotals), args.Error(1)
}

func (m *MockAnalyticsRepository) Overview(ctx context.Context, since, until time.Time) (*domain.AnalyticsOverview, error) {
	args := m.Called(ctx, since, until)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AnalyticsOverview), args.Error(1)
}

// MockLoadBalancer is a mock implementation of ports.LoadBalancer
type MockLoadBalancer struct {
	mock.Mock
}

func NewMockLoadBalancer() *MockLoadBalancer {
	return &MockLoadBalancer{}
}

func (m *MockLoadBalancer) PickTechnician(ctx context.Context) (*domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// MockNotifier is a mock implementation of ports.Notifier
type MockNotifier struct {
	mock.Mock
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Notify(ctx context.Context, job ports.NotificationJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// MockEventBroadcaster is a mock implementation of ports.EventBroadcaster
type MockEventBroadcaster struct {
	mock.Mock
}

func NewMockEventBroadcaster() *MockEventBroadcaster {
	return &MockEventBroadcaster{}
}

func (m *MockEventBroadcaster) Broadcast(event domain.Event) error {
	args := m.Called(event)
	return args.Error(0)
}

// MockAIResponder is a mock implementation of ports.AIResponder
type MockAIResponder struct {
	mock.Mock
}

func NewMockAIResponder() *MockAIResponder {
	return &MockAIResponder{}
}

func (m *MockAIResponder) GenerateReply(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func (m *MockAIResponder) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	args := m.Called(ctx, audio, filename)
	return args.String(0), args.Error(1)
}

func (m *MockAIResponder) Synthesize(ctx context.Context, text string) (string, error) {
	args := m.Called(ctx, text)
	return args.String(0), args.Error(1)
}

// MockBlobStore is a mock implementation of ports.BlobStore
type MockBlobStore struct {
	mock.Mock
}

func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{}
}

func (m *MockBlobStore) Put(ctx context.Context, data io.Reader, mimeType, filename string) (string, error) {
	args := m.Called(ctx, data, mimeType, filename)
	return args.String(0), args.Error(1)
}

func (m *MockBlobStore) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

// MockCallInitiator is a mock implementation of ports.CallInitiator
type MockCallInitiator struct {
	mock.Mock
}

func NewMockCallInitiator() *MockCallInitiator {
	return &MockCallInitiator{}
}

func (m *MockCallInitiator) Initiate(ctx context.Context, ticketID int64, requesterID uuid.UUID, callType domain.CallType) (*domain.CallSession, error) {
	args := m.Called(ctx, ticketID, requesterID, callType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CallSession), args.Error(1)
}

// MockTransactionManager runs the callback inline.
type MockTransactionManager struct {
	mock.Mock
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.Called(ctx)
	return fn(ctx)
}

// MockTicketService is a mock implementation of ports.TicketService
type MockTicketService struct {
	mock.Mock
}

func NewMockTicketService() *MockTicketService {
	return &MockTicketService{}
}

func (m *MockTicketService) CreateTicket(ctx context.Context, params ports.CreateTicketParams) (*domain.Ticket, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketService) GetTicket(ctx context.Context, ticketID int64, viewer *domain.Identity) (*domain.Ticket, error) {
	args := m.Called(ctx, ticketID, viewer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketService) UpdateStatus(ctx context.Context, params ports.UpdateStatusParams) (*domain.Ticket, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketService) ReopenTicket(ctx context.Context, ticketID int64, actor *domain.Identity) (*domain.Ticket, error) {
	args := m.Called(ctx, ticketID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketService) AssignTicket(ctx context.Context, params ports.AssignTicketParams) (*domain.Ticket, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketService) ListUserTickets(ctx context.Context, params ports.ListTicketsParams) ([]*domain.Ticket, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Ticket), args.Error(1)
}

func (m *MockTicketService) ListAllTickets(ctx context.Context, params ports.ListTicketsParams) ([]*domain.Ticket, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Ticket), args.Error(1)
}

func (m *MockTicketService) ListTechnicianTickets(ctx context.Context, params ports.ListTicketsParams) ([]*domain.Ticket, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Ticket), args.Error(1)
}

func (m *MockTicketService) GetTicketCounts(ctx context.Context, viewer *domain.Identity) (*domain.TicketCounts, error) {
	args := m.Called(ctx, viewer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TicketCounts), args.Error(1)
}

func (m *MockTicketService) GetRecentTickets(ctx context.Context, viewer *domain.Identity) ([]*domain.Ticket, error) {
	args := m.Called(ctx, viewer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Ticket), args.Error(1)
}

func (m *MockTicketService) Shutdown() {
	m.Called()
}

// MockChatService is a mock implementation of ports.ChatService
type MockChatService struct {
	mock.Mock
}

func NewMockChatService() *MockChatService {
	return &MockChatService{}
}

func (m *MockChatService) SendMessage(ctx context.Context, params ports.SendMessageParams) (*domain.ChatMessage, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatMessage), args.Error(1)
}

func (m *MockChatService) GetChatMessages(ctx context.Context, ticketID int64, viewer *domain.Identity) ([]*domain.ChatMessage, error) {
	args := m.Called(ctx, ticketID, viewer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ChatMessage), args.Error(1)
}

func (m *MockChatService) Shutdown() {
	m.Called()
}

// MockCallService is a mock implementation of ports.CallService
type MockCallService struct {
	MockCallInitiator
}

func NewMockCallService() *MockCallService {
	return &MockCallService{}
}

func (m *MockCallService) InitiateCall(ctx context.Context, params ports.InitiateCallParams) (*domain.CallSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CallSession), args.Error(1)
}

// MockSpeechService is a mock implementation of ports.SpeechService
type MockSpeechService struct {
	mock.Mock
}

func NewMockSpeechService() *MockSpeechService {
	return &MockSpeechService{}
}

func (m *MockSpeechService) ConvertTextToSpeech(ctx context.Context, text string, actor *domain.Identity) (string, error) {
	args := m.Called(ctx, text, actor)
	return args.String(0), args.Error(1)
}

// MockDirectoryService is a mock implementation of ports.DirectoryService
type MockDirectoryService struct {
	mock.Mock
}

func NewMockDirectoryService() *MockDirectoryService {
	return &MockDirectoryService{}
}

func (m *MockDirectoryService) SyncSelf(ctx context.Context, fullName, email string, actor *domain.Identity) (*domain.User, error) {
	args := m.Called(ctx, fullName, email, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockDirectoryService) GetSelf(ctx context.Context, actor *domain.Identity) (*domain.User, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockDirectoryService) UpsertUser(ctx context.Context, params ports.UpsertUserParams) (*domain.User, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockDirectoryService) ListUsers(ctx context.Context, role *domain.Role, actor *domain.Identity) ([]*domain.User, error) {
	args := m.Called(ctx, role, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

// MockReportService is a mock implementation of ports.ReportService
type MockReportService struct {
	mock.Mock
}

func NewMockReportService() *MockReportService {
	return &MockReportService{}
}

func (m *MockReportService) Dashboard(ctx context.Context, actor *domain.Identity) (*domain.DashboardTotals, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DashboardTotals), args.Error(1)
}

func (m *MockReportService) Report(ctx context.Context, period domain.ReportPeriod, actor *domain.Identity) (*domain.AnalyticsOverview, error) {
	args := m.Called(ctx, period, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AnalyticsOverview), args.Error(1)
}

package classinstance

import (
	"context"
	"testing"
	"time"

	"github.com/jilaboon/rafit-sub000/internal/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRepository is a mock implementation of Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, req CreateClassRequest) (*ClassInstance, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ClassInstance), args.Error(1)
}

func (m *MockRepository) GetByID(ctx context.Context, id int) (*ClassInstance, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ClassInstance), args.Error(1)
}

func (m *MockRepository) GetForUpdate(ctx context.Context, id int) (*ClassInstance, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ClassInstance), args.Error(1)
}

func (m *MockRepository) MarkCancelled(ctx context.Context, id int, at time.Time, reason string) error {
	return m.Called(ctx, id, at, reason).Error(0)
}

func (m *MockRepository) GetWithAvailability(ctx context.Context, id int) (*WithAvailability, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*WithAvailability), args.Error(1)
}

func (m *MockRepository) ListUpcoming(ctx context.Context, tenantID int, from time.Time) ([]ClassInstance, error) {
	args := m.Called(ctx, tenantID, from)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ClassInstance), args.Error(1)
}

func TestService_Create(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := NewService(mockRepo)

	start := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	req := CreateClassRequest{TenantID: 1, Title: "Spin", StartsAt: start, EndsAt: start.Add(time.Hour), Capacity: 12, WaitlistLimit: 5}
	expected := &ClassInstance{ID: 1, TenantID: 1, Title: "Spin", Capacity: 12}

	mockRepo.On("Create", mock.Anything, req).Return(expected, nil)

	result, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, expected, result)
	mockRepo.AssertExpectations(t)
}

func TestService_CreateRejectsBadWindow(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := NewService(mockRepo)

	start := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	_, err := svc.Create(context.Background(), CreateClassRequest{TenantID: 1, Title: "Spin", StartsAt: start, EndsAt: start, Capacity: 1})

	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestService_GetWithAvailabilityNotFound(t *testing.T) {
	mockRepo := new(MockRepository)
	svc := NewService(mockRepo)

	mockRepo.On("GetWithAvailability", mock.Anything, 99).Return(nil, ErrNotFound)

	_, err := svc.GetWithAvailability(context.Background(), 99)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

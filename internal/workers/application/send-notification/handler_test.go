// internal/workers/application/send-notification/handler_test.go
package sendnotification

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"trade-match-engine/internal/common/config"
	"trade-match-engine/internal/common/errors"
	"trade-match-engine/internal/common/logger"
	"trade-match-engine/internal/models"
	"trade-match-engine/internal/store/memory"
)

// ==========================
// Mock Deliverer Implementation
// ==========================

type MockDeliverer struct {
	mock.Mock
}

func (m *MockDeliverer) Deliver(ctx context.Context, note models.StatusNotification) (*models.DeliveryReport, error) {
	args := m.Called(ctx, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DeliveryReport), args.Error(1)
}

type appSource struct{ store *memory.Store }

func (a appSource) Get(ctx context.Context, id string) (*models.Application, error) {
	return a.store.GetApplication(ctx, id)
}

// ==========================
// Test Helper Functions
// ==========================

func createTestHandler(t *testing.T, cfg *Config, deliverer Deliverer) *Handler {
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.InsertApplication(ctx, &models.Application{
		ID: "a1", CandidateID: "c1", JobID: "j1", Status: models.ApplicationOffer, CreatedAt: time.Now(),
	}))
	require.NoError(t, store.InsertApplication(ctx, &models.Application{
		ID: "a2", CandidateID: "c2", JobID: "j1", Status: models.ApplicationRejected,
		RejectionReason: "needs 6G", CreatedAt: time.Now(),
	}))
	require.NoError(t, store.InsertApplication(ctx, &models.Application{
		ID: "a3", CandidateID: "c3", JobID: "j1", Status: models.ApplicationNew, CreatedAt: time.Now(),
	}))

	h := NewHandler(cfg, appSource{store}, deliverer, logger.NewTestLogger(t))
	h.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }
	return h
}

func sentReport(id string) *models.DeliveryReport {
	return &models.DeliveryReport{
		NotificationID: id,
		Status:         models.DeliverySent,
		Channels:       map[string]bool{models.ChannelEmail: true},
		SentAt:         "2026-05-01T12:00:00Z",
	}
}

// ==========================
// Execute Tests
// ==========================

func TestHandler_Execute_UsesStoredStatus(t *testing.T) {
	d := new(MockDeliverer)
	d.On("Deliver", mock.Anything, mock.MatchedBy(func(n models.StatusNotification) bool {
		return n.ID == "n-1" && n.CandidateID == "c1" && n.Status == models.ApplicationOffer && n.RejectionReason == ""
	})).Return(sentReport("n-1"), nil).Once()

	h := createTestHandler(t, DefaultConfig(), d)
	out, err := h.Execute(context.Background(), &Input{NotificationID: "n-1", ApplicationID: "a1"})
	require.NoError(t, err)

	assert.Equal(t, "n-1", out.NotificationID)
	assert.Equal(t, models.DeliverySent, out.Status)
	assert.Equal(t, map[string]bool{"email": true}, out.Channels)
	d.AssertExpectations(t)
}

func TestHandler_Execute_RejectionReason(t *testing.T) {
	tests := []struct {
		name       string
		input      Input
		wantReason string
	}{
		{"stored reason", Input{ApplicationID: "a2"}, "needs 6G"},
		{"override reason", Input{ApplicationID: "a2", RejectionReason: "position filled"}, "position filled"},
		{"reason ignored for other statuses", Input{ApplicationID: "a1", Status: models.ApplicationHired, RejectionReason: "x"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got models.StatusNotification
			d := new(MockDeliverer)
			d.On("Deliver", mock.Anything, mock.Anything).
				Run(func(args mock.Arguments) { got = args.Get(1).(models.StatusNotification) }).
				Return(sentReport("x"), nil)

			h := createTestHandler(t, DefaultConfig(), d)
			_, err := h.Execute(context.Background(), &tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantReason, got.RejectionReason)
			assert.NotEmpty(t, got.ID)
		})
	}
}

func TestHandler_Execute_NewStatusHasNoNotification(t *testing.T) {
	d := new(MockDeliverer)
	h := createTestHandler(t, DefaultConfig(), d)

	_, err := h.Execute(context.Background(), &Input{ApplicationID: "a3"})
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
	d.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything)
}

func TestHandler_Execute_ChannelFailure(t *testing.T) {
	failed := &models.DeliveryReport{
		NotificationID: "n-2",
		Status:         models.DeliveryFailed,
		Channels:       map[string]bool{models.ChannelEmail: true, models.ChannelSMS: false, models.ChannelTopic: false},
	}

	t.Run("completes with failed status by default", func(t *testing.T) {
		d := new(MockDeliverer)
		d.On("Deliver", mock.Anything, mock.Anything).Return(failed, nil)

		out, err := createTestHandler(t, DefaultConfig(), d).Execute(context.Background(), &Input{ApplicationID: "a1"})
		require.NoError(t, err)
		assert.Equal(t, models.DeliveryFailed, out.Status)
	})

	t.Run("fails the job when configured", func(t *testing.T) {
		d := new(MockDeliverer)
		d.On("Deliver", mock.Anything, mock.Anything).Return(failed, nil)
		cfg := DefaultConfig()
		cfg.FailOnChannelError = true

		_, err := createTestHandler(t, cfg, d).Execute(context.Background(), &Input{ApplicationID: "a1"})
		require.Error(t, err)
		stdErr := errors.AsStandard(err)
		assert.Equal(t, errors.ErrCodeNotificationFailed, stdErr.Code)
		assert.Contains(t, stdErr.Details, "channel: sms,topic")
		assert.True(t, stdErr.Retryable)
	})
}

func TestHandler_Execute_LookupErrors(t *testing.T) {
	d := new(MockDeliverer)
	d.On("Deliver", mock.Anything, mock.Anything).
		Return(nil, errors.NewDatabaseQueryFailedError("get contact", stderrors.New("conn reset")))
	h := createTestHandler(t, DefaultConfig(), d)

	_, err := h.Execute(context.Background(), &Input{ApplicationID: "missing"})
	assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))

	_, err = h.Execute(context.Background(), &Input{ApplicationID: "a1"})
	assert.Equal(t, errors.ErrCodeDatabaseQueryFailed, errors.CodeOf(err))
}

// ==========================
// Input Parsing Tests
// ==========================

func TestParseInput(t *testing.T) {
	tests := []struct {
		name      string
		variables map[string]interface{}
		wantErr   bool
	}{
		{"application only", map[string]interface{}{"applicationId": "a1"}, false},
		{"explicit status", map[string]interface{}{"applicationId": "a1", "status": "interview"}, false},
		{"status new", map[string]interface{}{"applicationId": "a1", "status": "new"}, true},
		{"missing application", map[string]interface{}{"status": "offer"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, _ := json.Marshal(tt.variables)
			_, err := parseInput(string(raw))
			if tt.wantErr {
				assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestConfig(t *testing.T) {
	cfg := FromWorkerConfig(config.WorkerConfig{Enabled: true, MaxJobsActive: 2})
	assert.Equal(t, 2, cfg.MaxJobsActive)
	assert.False(t, cfg.FailOnChannelError)
	assert.NoError(t, cfg.Validate())
}

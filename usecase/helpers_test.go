package usecase

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	domainGuest "github.com/staykit/staywap/domains/guest"
	domainHotel "github.com/staykit/staywap/domains/hotel"
	domainMessage "github.com/staykit/staywap/domains/message"
	domainNotification "github.com/staykit/staywap/domains/notification"
	"github.com/staykit/staywap/infrastructure/greenapi"
	"github.com/staykit/staywap/infrastructure/storage"
	"github.com/staykit/staywap/pkg/keylock"
	"github.com/staykit/staywap/pkg/metrics"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeScheduler records delayed jobs instead of running them, so tests can
// assert on retry scheduling and fire jobs by hand.
type scheduledJob struct {
	name  string
	delay time.Duration
	task  func()
}

type fakeScheduler struct {
	mu   sync.Mutex
	jobs []scheduledJob
}

func (s *fakeScheduler) Schedule(name string, delay time.Duration, task func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, scheduledJob{name: name, delay: delay, task: task})
	return nil
}

func (s *fakeScheduler) Every(name string, interval time.Duration, task func()) error {
	return s.Schedule(name, interval, task)
}

func (s *fakeScheduler) Shutdown() error { return nil }

func (s *fakeScheduler) scheduled() []scheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]scheduledJob, len(s.jobs))
	copy(out, s.jobs)
	return out
}

// fakeGateway is a scriptable stand-in for the Green API HTTP endpoint.
type fakeGateway struct {
	server *httptest.Server
	hits   int32
	fail   int32 // respond 500 while nonzero
}

func newFakeGateway() *fakeGateway {
	g := &fakeGateway{}
	g.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&g.hits, 1)
		if atomic.LoadInt32(&g.fail) != 0 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"idMessage":"abc123"}`))
	}))
	return g
}

func (g *fakeGateway) Hits() int32      { return atomic.LoadInt32(&g.hits) }
func (g *fakeGateway) SetFailing(v bool) {
	if v {
		atomic.StoreInt32(&g.fail, 1)
	} else {
		atomic.StoreInt32(&g.fail, 0)
	}
}

type fixture struct {
	db            *gorm.DB
	hotels        domainHotel.IHotelRepository
	guests        domainGuest.IGuestRepository
	conversations domainGuest.IConversationRepository
	messages      domainMessage.IMessageRepository
	queue         domainMessage.IQueueRepository
	notifications domainNotification.INotificationRepository

	gateway *fakeGateway
	pool    *greenapi.Pool
	sched   *fakeScheduler
	locker  *keylock.MemoryLocker
	monitor *metrics.Monitor

	send domainMessage.ISendUsecase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:usecase_test_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, storage.AutoMigrate(db))

	// Mirror the production sqlite setup: one connection, so concurrent
	// usecase calls contend on the keyed locks instead of sqlite's write lock.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	gateway := newFakeGateway()
	t.Cleanup(gateway.server.Close)

	f := &fixture{
		db:            db,
		hotels:        storage.NewHotelGormRepository(db),
		guests:        storage.NewGuestGormRepository(db),
		conversations: storage.NewConversationGormRepository(db),
		messages:      storage.NewMessageGormRepository(db),
		queue:         storage.NewQueueGormRepository(db),
		notifications: storage.NewNotificationGormRepository(db),
		gateway:       gateway,
		pool:          greenapi.NewPool(gateway.server.URL, metrics.New(32)),
		sched:         &fakeScheduler{},
		locker:        keylock.NewMemoryLocker(),
		monitor:       metrics.New(32),
	}
	t.Cleanup(f.pool.CloseAll)

	f.send = NewSendService(
		f.hotels, f.guests, f.conversations, f.messages, f.queue,
		f.pool, f.sched, f.locker, f.monitor, nil,
	)
	return f
}

// createHotel persists a hotel with test-friendly retry timings so failure
// paths finish in milliseconds.
func (f *fixture) createHotel(t *testing.T, id string) *domainHotel.Hotel {
	t.Helper()
	h := &domainHotel.Hotel{
		ID:           id,
		Name:         "Hotel " + id,
		InstanceID:   "instance-" + id,
		APIToken:     "token-" + id,
		WebhookToken: "webhook-" + id,
		Enabled:      true,
		Settings: domainHotel.Settings{
			RateLimit: domainHotel.RateLimitSettings{
				RequestsPerMinute: 600,
				RequestsPerSecond: 100,
				BurstLimit:        100,
			},
			Retry: domainHotel.RetrySettings{
				MaxRetries:      1,
				BaseDelayMs:     1,
				MaxDelayMs:      5,
				ExponentialBase: 2.0,
			},
		},
	}
	require.NoError(t, f.hotels.Create(context.Background(), h))
	return h
}

// fakeSender captures text sends without touching the gateway.
type fakeSender struct {
	mu       sync.Mutex
	texts    []domainMessage.SendTextRequest
	failNext bool
}

func (s *fakeSender) SendText(ctx context.Context, req domainMessage.SendTextRequest) (*domainMessage.SendResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		return nil, fmt.Errorf("sender unavailable")
	}
	s.texts = append(s.texts, req)
	return &domainMessage.SendResponse{Status: domainMessage.QueueSent}, nil
}

func (s *fakeSender) SendFile(ctx context.Context, req domainMessage.SendFileRequest) (*domainMessage.SendResponse, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *fakeSender) SendLocation(ctx context.Context, req domainMessage.SendLocationRequest) (*domainMessage.SendResponse, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *fakeSender) RetryFailed(ctx context.Context, queueID string) (*domainMessage.SendResponse, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *fakeSender) GetQueueItem(ctx context.Context, queueID string) (*domainMessage.QueueItem, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *fakeSender) DispatchDueScheduled(ctx context.Context) int { return 0 }

func (s *fakeSender) sentTexts() []domainMessage.SendTextRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domainMessage.SendTextRequest, len(s.texts))
	copy(out, s.texts)
	return out
}

// fakeResponder returns a canned reply or an error.
type fakeResponder struct {
	reply string
	err   error
	calls int32
}

func (r *fakeResponder) GenerateReply(ctx context.Context, systemPrompt, model, guestName, text string) (string, error) {
	atomic.AddInt32(&r.calls, 1)
	return r.reply, r.err
}

package membership

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	db "github.com/mayukomayuko7-bot/warakado-vision/internal/db"
	interf "github.com/mayukomayuko7-bot/warakado-vision/internal/interfaces"
	models "github.com/mayukomayuko7-bot/warakado-vision/internal/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// 12:00 по Токио
var testNow = time.Date(2025, 3, 10, 3, 0, 0, 0, time.UTC)

type fixedIDs struct {
	serial string
	key    string
	n      int
}

func (f *fixedIDs) SerialNumber() string { return f.serial }
func (f *fixedIDs) Key() string          { return f.key }
func (f *fixedIDs) RequestID() string {
	f.n++
	return fmt.Sprintf("req-%d", f.n)
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []models.AuditEntry
}

func (r *recordingAudit) Record(_ context.Context, entry models.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

type recordingNotifier struct {
	events []models.Event
}

func (r *recordingNotifier) Notify(_ context.Context, event models.Event) error {
	r.events = append(r.events, event)
	return nil
}

type fixture struct {
	dir      *db.MemoryDirectory
	cache    *db.CacheService
	clock    *testclock.Clock
	ids      *fixedIDs
	audit    *recordingAudit
	notifier *recordingNotifier
	ledger   *Ledger
	sessions *SessionManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		dir:      db.NewMemoryDirectory(),
		cache:    db.NewCacheService(db.NewMemoryBlobs(), "test"),
		clock:    testclock.NewClock(testNow),
		ids:      &fixedIDs{serial: "WK-1234", key: "ABC123"},
		audit:    &recordingAudit{},
		notifier: &recordingNotifier{},
	}
	f.ledger = f.newLedger(f.dir)
	f.sessions = NewSessionManager(f.ledger, f.cache, zap.NewNop())
	return f
}

func (f *fixture) newLedger(dir interf.Directory) *Ledger {
	return NewLedger(dir, f.cache, NewSession(), f.ids, f.clock, zap.NewNop(),
		WithAuditLog(f.audit),
		WithNotifier(f.notifier),
	)
}

func (f *fixture) register(t *testing.T, nickname string, email string) models.Member {
	t.Helper()
	m, err := f.ledger.Register(context.Background(), models.RegisterInfo{Nickname: nickname, Email: email})
	require.NoError(t, err)
	return m
}

func (f *fixture) remoteMember(t *testing.T, email string) models.Member {
	t.Helper()
	doc, err := f.dir.FindOne(context.Background(), models.CollMembers, models.Filter{"email": email})
	require.NoError(t, err)
	m, err := models.DecodeMember(doc)
	require.NoError(t, err)
	return m
}

func (f *fixture) localMember(t *testing.T, email string) models.Member {
	t.Helper()
	members, err := f.cache.Members(context.Background())
	require.NoError(t, err)
	for _, m := range members {
		if m.Email == email {
			return m
		}
	}
	t.Fatalf("member %s is not in the local cache", email)
	return models.Member{}
}

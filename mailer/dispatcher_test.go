package mailer

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"gopkg.in/gomail.v2"

	"mandir-backend/models"
	"mandir-backend/qr"
)

type fakeStore struct {
	mu          sync.Mutex
	attendees   map[int64]models.Attendee
	credentials map[int64]models.Credential
}

func newFakeStore(recs ...models.Attendee) *fakeStore {
	s := &fakeStore{
		attendees:   map[int64]models.Attendee{},
		credentials: map[int64]models.Credential{},
	}
	for _, rec := range recs {
		s.attendees[rec.ID] = rec
	}
	return s
}

func (s *fakeStore) Get(_ context.Context, id int64) (models.Attendee, models.ValidationStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.attendees[id]
	if !ok {
		return models.Attendee{}, models.ValidationStatus{}, models.ErrNotFound
	}
	return rec, models.ValidationStatus{AttendeeID: id}, nil
}

func (s *fakeStore) GetCredential(_ context.Context, id int64) (models.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.credentials[id]
	if !ok {
		return models.Credential{}, models.ErrNotFound
	}
	return cred, nil
}

func (s *fakeStore) MarkCredentialSent(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.credentials[id]
	if !ok {
		return models.ErrNotFound
	}
	cred.Sent = true
	s.credentials[id] = cred
	return nil
}

func (s *fakeStore) ListUnsent(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for id := range s.attendees {
		if cred, ok := s.credentials[id]; !ok || !cred.Sent {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// addCredential installs a real rendered credential, as the issuer would.
func (s *fakeStore) addCredential(t *testing.T, id int64) {
	t.Helper()
	png, err := qr.RenderPNG(id)
	require.NoError(t, err)
	s.credentials[id] = models.Credential{
		AttendeeID: id,
		DataURI:    "data:image/png;base64," + base64encode(png),
	}
}

func base64encode(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

type fakeIssuer struct {
	store *fakeStore
}

func (f *fakeIssuer) Issue(_ context.Context, id int64) (models.Credential, bool, error) {
	if _, ok := f.store.attendees[id]; !ok {
		return models.Credential{}, false, models.ErrNotFound
	}
	png, err := qr.RenderPNG(id)
	if err != nil {
		return models.Credential{}, false, err
	}
	cred := models.Credential{AttendeeID: id, DataURI: "data:image/png;base64," + base64encode(png)}
	f.store.credentials[id] = cred
	return cred, true, nil
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []*gomail.Message
	failFor map[string]bool // recipient address -> fail
}

func (f *fakeSender) DialAndSend(msgs ...*gomail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		to := m.GetHeader("To")
		if len(to) == 1 && f.failFor[to[0]] {
			return fmt.Errorf("smtp rejected %s", to[0])
		}
		f.sent = append(f.sent, m)
	}
	return nil
}

func newDispatcher(s *fakeStore, sender Sender, qrDir string) *Dispatcher {
	return NewDispatcher(s, &fakeIssuer{store: s}, sender, Config{
		From:     "events@example.org",
		QRDir:    qrDir,
		SendRate: rate.Inf, // no pacing in tests
	})
}

func attendee(id int64, email string) models.Attendee {
	return models.Attendee{ID: id, EmailAddress: email, FirstName: "A", LastName: "B"}
}

func TestSendOne_NotFound(t *testing.T) {
	d := newDispatcher(newFakeStore(), &fakeSender{}, t.TempDir())

	err := d.SendOne(context.Background(), 9)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSendOne_MarksSentAndCleansUp(t *testing.T) {
	fake := newFakeStore(attendee(1, "a@b.com"))
	fake.addCredential(t, 1)
	sender := &fakeSender{}
	dir := t.TempDir()
	d := newDispatcher(fake, sender, dir)

	require.NoError(t, d.SendOne(context.Background(), 1))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"a@b.com"}, sender.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"events@example.org"}, sender.sent[0].GetHeader("From"))

	assert.True(t, fake.credentials[1].Sent)

	// The transient artifact must be gone after confirmed delivery.
	_, err := os.Stat(filepath.Join(dir, "1.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestSendOne_IssuesWhenMissing(t *testing.T) {
	fake := newFakeStore(attendee(2, "c@d.com"))
	d := newDispatcher(fake, &fakeSender{}, t.TempDir())

	require.NoError(t, d.SendOne(context.Background(), 2))
	assert.True(t, fake.credentials[2].Sent)
}

func TestSendOne_DeliveryFailureLeavesUnsent(t *testing.T) {
	fake := newFakeStore(attendee(3, "x@y.com"))
	fake.addCredential(t, 3)
	sender := &fakeSender{failFor: map[string]bool{"x@y.com": true}}
	d := newDispatcher(fake, sender, t.TempDir())

	err := d.SendOne(context.Background(), 3)
	assert.ErrorIs(t, err, models.ErrDeliveryFailed)
	assert.False(t, fake.credentials[3].Sent)
}

func TestSendAllPending_PartialFailure(t *testing.T) {
	fake := newFakeStore(
		attendee(1, "one@e.com"),
		attendee(2, "two@e.com"),
		attendee(3, "three@e.com"),
	)
	sender := &fakeSender{failFor: map[string]bool{"two@e.com": true}}
	d := newDispatcher(fake, sender, t.TempDir())

	summary, err := d.SendAllPending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Sent)
	require.Len(t, summary.Failures, 1)
	assert.Contains(t, summary.Failures[2], "smtp rejected")
	assert.True(t, fake.credentials[1].Sent)
	assert.False(t, fake.credentials[2].Sent)
	assert.True(t, fake.credentials[3].Sent)
}

func TestSendAllPending_SkipsAlreadySent(t *testing.T) {
	fake := newFakeStore(attendee(1, "one@e.com"), attendee(2, "two@e.com"))
	sender := &fakeSender{}
	d := newDispatcher(fake, sender, t.TempDir())
	ctx := context.Background()

	_, err := d.SendAllPending(ctx)
	require.NoError(t, err)
	require.Len(t, sender.sent, 2)

	// A second batch run finds nothing left to send.
	summary, err := d.SendAllPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Sent)
	assert.Empty(t, summary.Failures)
	assert.Len(t, sender.sent, 2)
}

func TestReference(t *testing.T) {
	assert.Equal(t, "REG-000001", Reference(1))
	assert.Equal(t, "REG-123456", Reference(123456))
}

package qr

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mandir-backend/models"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

type fakeStore struct {
	mu          sync.Mutex
	attendees   map[int64]models.Attendee
	credentials map[int64]models.Credential
	creates     int
	failCreate  map[int64]bool
	// conflict simulates another issuer winning the insert between our
	// lookup and our create.
	conflict map[int64]models.Credential
}

func newFakeStore(ids ...int64) *fakeStore {
	s := &fakeStore{
		attendees:   map[int64]models.Attendee{},
		credentials: map[int64]models.Credential{},
		failCreate:  map[int64]bool{},
	}
	for _, id := range ids {
		s.attendees[id] = models.Attendee{ID: id}
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

func (s *fakeStore) CreateCredential(_ context.Context, id int64, dataURI string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate[id] {
		return false, fmt.Errorf("storage unavailable")
	}
	if winner, ok := s.conflict[id]; ok {
		s.credentials[id] = winner
		return false, nil
	}
	s.creates++
	if _, ok := s.credentials[id]; ok {
		return false, nil
	}
	s.credentials[id] = models.Credential{AttendeeID: id, DataURI: dataURI}
	return true, nil
}

func (s *fakeStore) ListWithoutCredential(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for id := range s.attendees {
		if _, ok := s.credentials[id]; !ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func TestIssue_NotFound(t *testing.T) {
	issuer := NewIssuer(newFakeStore())

	_, _, err := issuer.Issue(context.Background(), 1)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestIssue_EncodesAttendeeID(t *testing.T) {
	fake := newFakeStore(1)
	issuer := NewIssuer(fake)

	cred, created, err := issuer.Issue(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(1), cred.AttendeeID)

	png, err := DecodeDataURI(cred.DataURI)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic), "artifact should be a PNG")
}

func TestIssue_Idempotent(t *testing.T) {
	fake := newFakeStore(3)
	issuer := NewIssuer(fake)
	ctx := context.Background()

	first, created, err := issuer.Issue(ctx, 3)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := issuer.Issue(ctx, 3)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.DataURI, second.DataURI)
	assert.Equal(t, 1, fake.creates, "re-issuance must not re-render or re-persist")
}

func TestIssue_LostRaceReturnsStoredRow(t *testing.T) {
	fake := newFakeStore(4)
	winner := models.Credential{AttendeeID: 4, DataURI: "data:image/png;base64,QUJD"}
	fake.conflict = map[int64]models.Credential{4: winner}

	cred, created, err := NewIssuer(fake).Issue(context.Background(), 4)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, winner.DataURI, cred.DataURI)
}

func TestIssueAll_PartialFailure(t *testing.T) {
	fake := newFakeStore(1, 2, 3)
	fake.failCreate[2] = true
	issuer := NewIssuer(fake)

	summary, err := issuer.IssueAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Issued)
	require.Len(t, summary.Failures, 1)
	assert.Contains(t, summary.Failures[2], "storage unavailable")
}

func TestIssueAll_SkipsExisting(t *testing.T) {
	fake := newFakeStore(1, 2)
	issuer := NewIssuer(fake)
	ctx := context.Background()

	_, _, err := issuer.Issue(ctx, 1)
	require.NoError(t, err)
	creates := fake.creates

	summary, err := issuer.IssueAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Issued)
	assert.Equal(t, creates+1, fake.creates)
}

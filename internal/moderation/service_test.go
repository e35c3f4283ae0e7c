package moderation

import (
	"testing"
	"time"

	"anonrooms/backend/internal/models"
	"anonrooms/backend/internal/notices"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetMemberByID(memberID string) (*models.RoomMember, error) {
	args := m.Called(memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RoomMember), args.Error(1)
}

func (m *MockStore) SetMute(memberID string, muted bool, until *time.Time) error {
	args := m.Called(memberID, muted, until)
	return args.Error(0)
}

func (m *MockStore) KickMember(memberID, byMemberID string, at time.Time) (bool, error) {
	args := m.Called(memberID, byMemberID, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) DecrementParticipants(roomID string) error {
	args := m.Called(roomID)
	return args.Error(0)
}

func (m *MockStore) MarkKicked(roomID, userID string) error {
	args := m.Called(roomID, userID)
	return args.Error(0)
}

func (m *MockStore) PublishEvent(roomID string, ev models.RoomEvent) error {
	args := m.Called(roomID, ev)
	return args.Error(0)
}

type MockMessenger struct {
	mock.Mock
}

func (m *MockMessenger) System(roomID, content string) (*models.RoomMessage, error) {
	args := m.Called(roomID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RoomMessage), args.Error(1)
}

func admin(id, roomID string) *models.RoomMember {
	return &models.RoomMember{ID: id, RoomID: roomID, UserID: "u-" + id, Role: models.RoleAdmin, IsActive: true}
}

func member(id, roomID string) *models.RoomMember {
	return &models.RoomMember{ID: id, RoomID: roomID, UserID: "u-" + id, Role: models.RoleUser, IsActive: true, AnonymousID: "anon_" + id}
}

func TestMute_RequiresAdmin(t *testing.T) {
	store := new(MockStore)
	svc := NewService(store)

	store.On("GetMemberByID", "by").Return(member("by", "room1"), nil)

	err := svc.Mute("room1", "target", "by", nil)

	assert.ErrorIs(t, err, models.ErrUnauthorized)
	store.AssertNotCalled(t, "SetMute", mock.Anything, mock.Anything, mock.Anything)
}

func TestMute_TimedSetsDeadline(t *testing.T) {
	store := new(MockStore)
	svc := NewService(store)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	store.On("GetMemberByID", "by").Return(admin("by", "room1"), nil)
	store.On("GetMemberByID", "target").Return(member("target", "room1"), nil)
	want := base.Add(10 * time.Minute)
	store.On("SetMute", "target", true, &want).Return(nil)

	d := 10 * time.Minute
	err := svc.Mute("room1", "target", "by", &d)

	assert.NoError(t, err)
	store.AssertCalled(t, "SetMute", "target", true, &want)
}

func TestMute_WrongRoomAdmin(t *testing.T) {
	store := new(MockStore)
	svc := NewService(store)

	store.On("GetMemberByID", "by").Return(admin("by", "other-room"), nil)

	err := svc.Mute("room1", "target", "by", nil)

	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestCanSpeak_LazyMuteExpiry(t *testing.T) {
	store := new(MockStore)
	svc := NewService(store)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	until := base.Add(10 * time.Minute)
	muted := member("target", "room1")
	muted.IsMuted = true
	muted.MuteExpiresAt = &until
	store.On("GetMemberByID", "target").Return(muted, nil)

	// Before the deadline the member cannot speak.
	svc.now = func() time.Time { return base.Add(5 * time.Minute) }
	ok, deadline, err := svc.CanSpeak("target")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, &until, deadline)

	// After the deadline the mute reads as lifted with no Unmute call and
	// no write of any kind.
	svc.now = func() time.Time { return base.Add(11 * time.Minute) }
	ok, deadline, err = svc.CanSpeak("target")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, deadline)
	store.AssertNotCalled(t, "SetMute", mock.Anything, mock.Anything, mock.Anything)
}

func TestCanSpeak_PermanentMute(t *testing.T) {
	store := new(MockStore)
	svc := NewService(store)

	muted := member("target", "room1")
	muted.IsMuted = true
	store.On("GetMemberByID", "target").Return(muted, nil)

	ok, deadline, err := svc.CanSpeak("target")

	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, deadline, "permanent mute has no deadline")
}

func TestKick_TerminalAndAnonymous(t *testing.T) {
	store := new(MockStore)
	svc := NewService(store)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	target := member("target", "room1")
	store.On("GetMemberByID", "by").Return(admin("by", "room1"), nil)
	store.On("GetMemberByID", "target").Return(target, nil)
	store.On("KickMember", "target", "by", base).Return(true, nil)
	store.On("DecrementParticipants", "room1").Return(nil)
	store.On("MarkKicked", "room1", target.UserID).Return(nil)
	store.On("PublishEvent", "room1", mock.AnythingOfType("models.RoomEvent")).Return(nil)

	err := svc.Kick("room1", "target", "by")

	assert.NoError(t, err)
	store.AssertCalled(t, "KickMember", "target", "by", base)
	store.AssertCalled(t, "DecrementParticipants", "room1")

	// The broadcast names the target only by anonymous identity.
	ev := store.Calls[len(store.Calls)-1].Arguments.Get(1).(models.RoomEvent)
	assert.Equal(t, models.EventMemberKicked, ev.Type)
	assert.Equal(t, target.AnonymousID, ev.AnonymousID)
}

func TestKick_AnnouncesRemoval(t *testing.T) {
	store := new(MockStore)
	messenger := new(MockMessenger)
	svc := NewService(store)
	svc.AttachMessenger(messenger, notices.NewCatalog())

	target := member("target", "room1")
	store.On("GetMemberByID", "by").Return(admin("by", "room1"), nil)
	store.On("GetMemberByID", "target").Return(target, nil)
	store.On("KickMember", "target", "by", mock.AnythingOfType("time.Time")).Return(true, nil)
	store.On("DecrementParticipants", "room1").Return(nil)
	store.On("MarkKicked", "room1", target.UserID).Return(nil)
	store.On("PublishEvent", "room1", mock.AnythingOfType("models.RoomEvent")).Return(nil)
	messenger.On("System", "room1", mock.AnythingOfType("string")).Return(&models.RoomMessage{}, nil)

	err := svc.Kick("room1", "target", "by")

	assert.NoError(t, err)
	content := messenger.Calls[0].Arguments.String(1)
	assert.Contains(t, content, target.AnonymousID, "the announcement names the target by anonymous identity only")
}

func TestKick_SelfIsRejected(t *testing.T) {
	store := new(MockStore)
	svc := NewService(store)

	store.On("GetMemberByID", "by").Return(admin("by", "room1"), nil)

	err := svc.Kick("room1", "by", "by")

	assert.ErrorIs(t, err, models.ErrUnauthorized)
	store.AssertNotCalled(t, "KickMember", mock.Anything, mock.Anything, mock.Anything)
}

func TestKick_AlreadyKickedIsNoop(t *testing.T) {
	store := new(MockStore)
	svc := NewService(store)

	target := member("target", "room1")
	target.IsActive = false
	target.IsKicked = true
	store.On("GetMemberByID", "by").Return(admin("by", "room1"), nil)
	store.On("GetMemberByID", "target").Return(target, nil)
	store.On("KickMember", "target", "by", mock.AnythingOfType("time.Time")).Return(false, nil)

	err := svc.Kick("room1", "target", "by")

	assert.NoError(t, err)
	store.AssertNotCalled(t, "DecrementParticipants", mock.Anything)
	store.AssertNotCalled(t, "PublishEvent", mock.Anything, mock.Anything)
}

package rooms

import (
	"fmt"
	"testing"
	"time"

	"anonrooms/backend/internal/identity"
	"anonrooms/backend/internal/membership"
	"anonrooms/backend/internal/models"
	"anonrooms/backend/internal/notices"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory stand-in for the storage layer with the same
// conditional-update semantics the SQL statements have. It backs both the
// registry and the membership service so join scenarios exercise the full
// reserve-then-activate path.
type fakeStore struct {
	rooms     map[string]*models.Room
	members   map[string]*models.RoomMember // keyed by roomID|userID
	kickCache map[string]bool
	events    []models.RoomEvent
	nextID    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rooms:     make(map[string]*models.Room),
		members:   make(map[string]*models.RoomMember),
		kickCache: make(map[string]bool),
	}
}

func key(roomID, userID string) string { return roomID + "|" + userID }

func (f *fakeStore) CreateRoom(room *models.Room) error {
	if room.ID == "" {
		f.nextID++
		room.ID = fmt.Sprintf("room-%d", f.nextID)
	}
	f.rooms[room.ID] = room
	return nil
}

func (f *fakeStore) GetRoomByID(roomID string) (*models.Room, error) {
	room, ok := f.rooms[roomID]
	if !ok {
		return nil, models.ErrRoomNotFound
	}
	return room, nil
}

func (f *fakeStore) ListRooms(limit int, cursor string) ([]models.Room, string, error) {
	out := make([]models.Room, 0, len(f.rooms))
	for _, r := range f.rooms {
		out = append(out, *r)
	}
	return out, "", nil
}

func (f *fakeStore) FindMember(roomID, userID string) (*models.RoomMember, error) {
	m, ok := f.members[key(roomID, userID)]
	if !ok {
		return nil, models.ErrMemberNotFound
	}
	copied := *m
	return &copied, nil
}

func (f *fakeStore) GetMemberByID(memberID string) (*models.RoomMember, error) {
	for _, m := range f.members {
		if m.ID == memberID {
			copied := *m
			return &copied, nil
		}
	}
	return nil, models.ErrMemberNotFound
}

func (f *fakeStore) EnsureMember(member *models.RoomMember) error {
	k := key(member.RoomID, member.UserID)
	if _, exists := f.members[k]; exists {
		return nil
	}
	f.nextID++
	member.ID = fmt.Sprintf("member-%d", f.nextID)
	copied := *member
	f.members[k] = &copied
	return nil
}

func (f *fakeStore) ActivateMember(roomID, userID, anonID string, at time.Time) (bool, error) {
	m, ok := f.members[key(roomID, userID)]
	if !ok || m.IsKicked || m.IsActive {
		return false, nil
	}
	m.IsActive = true
	m.AnonymousID = anonID
	m.LastActiveAt = at
	return true, nil
}

func (f *fakeStore) DeactivateMember(memberID string) (bool, error) {
	for _, m := range f.members {
		if m.ID == memberID {
			if !m.IsActive {
				return false, nil
			}
			m.IsActive = false
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) TouchMember(memberID string, at time.Time) error {
	for _, m := range f.members {
		if m.ID == memberID {
			m.LastActiveAt = at
		}
	}
	return nil
}

func (f *fakeStore) SetNickname(memberID, nickname string) error {
	for _, m := range f.members {
		if m.ID == memberID {
			m.Nickname = nickname
		}
	}
	return nil
}

func (f *fakeStore) IncrementParticipantsBelowCap(roomID string) (bool, error) {
	room, ok := f.rooms[roomID]
	if !ok {
		return false, models.ErrRoomNotFound
	}
	if room.MaxParticipants != nil && room.ParticipantCount >= *room.MaxParticipants {
		return false, nil
	}
	room.ParticipantCount++
	return true, nil
}

func (f *fakeStore) DecrementParticipants(roomID string) error {
	if room, ok := f.rooms[roomID]; ok && room.ParticipantCount > 0 {
		room.ParticipantCount--
	}
	return nil
}

func (f *fakeStore) MarkKicked(roomID, userID string) error {
	f.kickCache[key(roomID, userID)] = true
	return nil
}

func (f *fakeStore) IsKickedCached(roomID, userID string) (bool, error) {
	return f.kickCache[key(roomID, userID)], nil
}

func (f *fakeStore) ListMembers(roomID string, includeInactive bool) ([]models.RoomMember, error) {
	var out []models.RoomMember
	for _, m := range f.members {
		if m.RoomID != roomID {
			continue
		}
		if !includeInactive && (!m.IsActive || m.IsKicked) {
			continue
		}
		out = append(out, *m)
	}
	return out, nil
}

func (f *fakeStore) PublishEvent(roomID string, ev models.RoomEvent) error {
	f.events = append(f.events, ev)
	return nil
}

// kick flips the terminal flag directly, standing in for the moderation path.
func (f *fakeStore) kick(roomID, userID string) {
	m := f.members[key(roomID, userID)]
	if m.IsActive {
		m.IsActive = false
		f.rooms[roomID].ParticipantCount--
	}
	m.IsKicked = true
}

func newRegistry(store *fakeStore) *Registry {
	members := membership.NewService(store, identity.NewIssuer(), nil, notices.NewCatalog())
	return NewRegistry(store, members)
}

func intPtr(v int) *int { return &v }

func durPtr(d time.Duration) *time.Duration { return &d }

func seedRoom(store *fakeStore, capacity *int) *models.Room {
	room := &models.Room{
		Name:               "late night",
		Category:           "general",
		RoomType:           models.RoomTypeOfficial,
		ResetIntervalHours: 24,
		NextResetAt:        time.Now().Add(24 * time.Hour),
		MaxParticipants:    capacity,
	}
	_ = store.CreateRoom(room)
	return room
}

func TestCreateRoom_Validation(t *testing.T) {
	reg := newRegistry(newFakeStore())

	cases := []struct {
		name string
		spec CreateSpec
	}{
		{"name too short", CreateSpec{Name: "ab", Category: "general", RoomType: models.RoomTypeOfficial, ResetIntervalHours: 24}},
		{"unknown category", CreateSpec{Name: "room", Category: "nonsense", RoomType: models.RoomTypeOfficial, ResetIntervalHours: 24}},
		{"bad reset interval", CreateSpec{Name: "room", Category: "general", RoomType: models.RoomTypeOfficial, ResetIntervalHours: 5}},
		{"bad capacity", CreateSpec{Name: "room", Category: "general", RoomType: models.RoomTypeOfficial, ResetIntervalHours: 24, MaxParticipants: intPtr(3)}},
		{"official with lifetime", CreateSpec{Name: "room", Category: "general", RoomType: models.RoomTypeOfficial, ResetIntervalHours: 24, Duration: durPtr(time.Hour)}},
		{"user room without lifetime", CreateSpec{Name: "room", Category: "general", RoomType: models.RoomTypeUser, ResetIntervalHours: 24, CreatedByUserID: "u1"}},
		{"user room bad lifetime", CreateSpec{Name: "room", Category: "general", RoomType: models.RoomTypeUser, ResetIntervalHours: 24, Duration: durPtr(2 * time.Hour), CreatedByUserID: "u1"}},
		{"user room without creator", CreateSpec{Name: "room", Category: "general", RoomType: models.RoomTypeUser, ResetIntervalHours: 24, Duration: durPtr(time.Hour)}},
		{"unknown room type", CreateSpec{Name: "room", Category: "general", RoomType: "secret", ResetIntervalHours: 24}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := reg.CreateRoom(tc.spec)
			assert.ErrorIs(t, err, models.ErrInvalidRoomSpec)
		})
	}
}

func TestCreateRoom_UserRoomGetsFounderAndLifetime(t *testing.T) {
	store := newFakeStore()
	reg := newRegistry(store)

	room, err := reg.CreateRoom(CreateSpec{
		Name:               "our corner",
		Category:           "random",
		RoomType:           models.RoomTypeUser,
		ResetIntervalHours: 24,
		MaxParticipants:    intPtr(10),
		Duration:           durPtr(24 * time.Hour),
		CreatedByUserID:    "creator",
	})

	require.NoError(t, err)
	require.NotNil(t, room.ExpiresAt)
	assert.Equal(t, 1, room.ParticipantCount)

	founder, err := store.FindMember(room.ID, "creator")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, founder.Role)
	assert.True(t, founder.IsActive)
}

// cappedStore refuses every seat reservation, standing in for a capacity
// configuration that cannot seat even the founder.
type cappedStore struct {
	*fakeStore
}

func (s *cappedStore) IncrementParticipantsBelowCap(roomID string) (bool, error) {
	return false, nil
}

func TestCreateRoom_FounderSeatMustBeReserved(t *testing.T) {
	store := newFakeStore()
	members := membership.NewService(store, identity.NewIssuer(), nil, notices.NewCatalog())
	reg := NewRegistry(&cappedStore{store}, members)

	_, err := reg.CreateRoom(CreateSpec{
		Name:               "our corner",
		Category:           "random",
		RoomType:           models.RoomTypeUser,
		ResetIntervalHours: 24,
		MaxParticipants:    intPtr(10),
		Duration:           durPtr(24 * time.Hour),
		CreatedByUserID:    "creator",
	})

	assert.ErrorIs(t, err, models.ErrRoomFull)
}

func TestCreateRoom_OfficialRoomNeverExpires(t *testing.T) {
	store := newFakeStore()
	reg := newRegistry(store)

	room, err := reg.CreateRoom(CreateSpec{
		Name:               "the commons",
		Category:           "general",
		RoomType:           models.RoomTypeOfficial,
		ResetIntervalHours: 12,
	})

	require.NoError(t, err)
	assert.Nil(t, room.ExpiresAt)
	assert.Equal(t, 0, room.ParticipantCount)
}

func TestJoinRoom_CapacityIsHard(t *testing.T) {
	store := newFakeStore()
	reg := newRegistry(store)
	room := seedRoom(store, intPtr(2))

	_, err := reg.JoinRoom(room.ID, "alice")
	require.NoError(t, err)
	_, err = reg.JoinRoom(room.ID, "bob")
	require.NoError(t, err)

	// Room is full.
	_, err = reg.JoinRoom(room.ID, "carol")
	assert.ErrorIs(t, err, models.ErrRoomFull)

	// A leave frees the seat and the next join takes it.
	require.NoError(t, reg.LeaveRoom(room.ID, "alice"))
	res, err := reg.JoinRoom(room.ID, "carol")
	require.NoError(t, err)
	assert.NotEmpty(t, res.AnonymousID)
	assert.Equal(t, 2, store.rooms[room.ID].ParticipantCount)
}

func TestJoinRoom_ActiveRejoinDoesNotCountTwice(t *testing.T) {
	store := newFakeStore()
	reg := newRegistry(store)
	room := seedRoom(store, intPtr(2))

	first, err := reg.JoinRoom(room.ID, "alice")
	require.NoError(t, err)
	again, err := reg.JoinRoom(room.ID, "alice")
	require.NoError(t, err)

	assert.Equal(t, first.MemberID, again.MemberID)
	assert.Equal(t, first.AnonymousID, again.AnonymousID, "repeat join keeps the identity")
	assert.Equal(t, 1, store.rooms[room.ID].ParticipantCount)

	// The idempotent rejoin works even when the room has since filled up.
	_, err = reg.JoinRoom(room.ID, "bob")
	require.NoError(t, err)
	_, err = reg.JoinRoom(room.ID, "alice")
	assert.NoError(t, err)
}

func TestJoinRoom_RejoinRotatesIdentity(t *testing.T) {
	store := newFakeStore()
	reg := newRegistry(store)
	room := seedRoom(store, nil)

	first, err := reg.JoinRoom(room.ID, "alice")
	require.NoError(t, err)
	require.NoError(t, reg.LeaveRoom(room.ID, "alice"))
	second, err := reg.JoinRoom(room.ID, "alice")
	require.NoError(t, err)

	assert.Equal(t, first.MemberID, second.MemberID, "one membership record per pair")
	assert.NotEqual(t, first.AnonymousID, second.AnonymousID, "identity rotates on rejoin")
}

func TestJoinRoom_KickedPairIsBannedForGood(t *testing.T) {
	store := newFakeStore()
	reg := newRegistry(store)
	room := seedRoom(store, intPtr(2))

	_, err := reg.JoinRoom(room.ID, "alice")
	require.NoError(t, err)
	store.kick(room.ID, "alice")

	_, err = reg.JoinRoom(room.ID, "alice")
	assert.ErrorIs(t, err, models.ErrPermanentlyBanned)
	assert.Equal(t, 0, store.rooms[room.ID].ParticipantCount, "a refused join reserves no seat")

	// The cache fast path refuses too.
	require.NoError(t, store.MarkKicked(room.ID, "alice"))
	_, err = reg.JoinRoom(room.ID, "alice")
	assert.ErrorIs(t, err, models.ErrPermanentlyBanned)
}

func TestJoinRoom_ExpiredRoom(t *testing.T) {
	store := newFakeStore()
	reg := newRegistry(store)
	room := seedRoom(store, nil)
	past := time.Now().Add(-time.Hour)
	room.ExpiresAt = &past

	_, err := reg.JoinRoom(room.ID, "alice")
	assert.ErrorIs(t, err, models.ErrRoomExpired)
}

func TestJoinRoom_UnknownRoom(t *testing.T) {
	reg := newRegistry(newFakeStore())

	_, err := reg.JoinRoom("nope", "alice")
	assert.ErrorIs(t, err, models.ErrRoomNotFound)
}

func TestLeaveRoom_Idempotent(t *testing.T) {
	store := newFakeStore()
	reg := newRegistry(store)
	room := seedRoom(store, intPtr(2))

	_, err := reg.JoinRoom(room.ID, "alice")
	require.NoError(t, err)

	require.NoError(t, reg.LeaveRoom(room.ID, "alice"))
	require.NoError(t, reg.LeaveRoom(room.ID, "alice"))
	require.NoError(t, reg.LeaveRoom(room.ID, "stranger"))
	assert.Equal(t, 0, store.rooms[room.ID].ParticipantCount)
}

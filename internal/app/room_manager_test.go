package app

import (
	"testing"
	"time"

	"github.com/dkeye/Voice/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestRoomTracker_JoinAndLeave(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry(time.Minute)
	aliceConn, bobConn := &fakeConn{}, &fakeConn{}
	alice, bob := ident("alice", domain.KindClient), ident("bob", domain.KindDoctor)
	reg.Register(alice, "ta", aliceConn)
	reg.Register(bob, "tb", bobConn)
	rooms := NewRoomTracker(reg)
	now := time.Now()

	// first member sees nobody
	others := rooms.Join(domain.NewMembership("r1", alice, "ta", now))
	req.Empty(others)

	// second member sees the first, and the first is told
	others = rooms.Join(domain.NewMembership("r1", bob, "tb", now.Add(time.Second)))
	req.Len(others, 1)
	req.Equal(alice.ID, others[0].IdentityID)
	req.Equal([]string{EvMemberJoined}, aliceConn.types())
	req.Equal("bob", aliceConn.last()["identityId"])
	req.Equal([]RoomInfo{{ID: "r1", MemberCount: 2}}, rooms.List())

	req.True(rooms.Leave("r1", bob.ID))
	req.False(rooms.Leave("r1", bob.ID))
	req.Equal(EvMemberLeft, aliceConn.last()["type"])

	req.True(rooms.Leave("r1", alice.ID))
	req.Empty(rooms.List())
}

func TestRoomTracker_LeaveAllOnlyForTransport(t *testing.T) {
	req := require.New(t)
	rooms := NewRoomTracker(nil)
	alice := ident("alice", domain.KindClient)
	now := time.Now()

	rooms.Join(domain.NewMembership("r1", alice, "t-old", now))
	rooms.Join(domain.NewMembership("r2", alice, "t-new", now))

	req.Equal(1, rooms.LeaveAll(alice.ID, "t-old"))
	req.Empty(rooms.Members("r1"))
	req.Len(rooms.Members("r2"), 1)
}

func TestRoomTracker_RejoinReplacesMembership(t *testing.T) {
	req := require.New(t)
	rooms := NewRoomTracker(nil)
	alice := ident("alice", domain.KindClient)
	now := time.Now()

	rooms.Join(domain.NewMembership("r1", alice, "t1", now))
	rooms.Join(domain.NewMembership("r1", alice, "t2", now))

	members := rooms.Members("r1")
	req.Len(members, 1)
	req.Equal(domain.TransportID("t2"), members[0].TransportID)
}

func TestRoomTracker_Evict(t *testing.T) {
	req := require.New(t)
	rooms := NewRoomTracker(nil)
	now := time.Now()
	rooms.Join(domain.NewMembership("r1", ident("alice", domain.KindClient), "ta", now))
	rooms.Join(domain.NewMembership("r1", ident("bob", domain.KindDoctor), "tb", now.Add(time.Millisecond)))

	evicted := rooms.Evict("r1")
	req.Len(evicted, 2)
	req.Equal(domain.UserID("alice"), evicted[0].IdentityID)
	req.Empty(rooms.List())
	req.Nil(rooms.Evict("r1"))
}

package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/franzhentze92/druma-chat/internal/identity"
	"github.com/franzhentze92/druma-chat/internal/models"
)

func TestResolveCreatesRoomOnce(t *testing.T) {
	env := newTestEnv(t)
	r := NewResolver(env.rooms, env.identity(false), env.msgs, zerolog.Nop())

	room1, err := r.Resolve(context.Background(), env.appID)
	if err != nil {
		t.Fatal(err)
	}
	room2, err := r.Resolve(context.Background(), env.appID)
	if err != nil {
		t.Fatal(err)
	}

	if room1.ID != room2.ID {
		t.Fatalf("expected the same room on reopen, got %s and %s", room1.ID, room2.ID)
	}
	if env.rooms.creates != 1 {
		t.Fatalf("expected exactly one create, got %d", env.rooms.creates)
	}
	if room1.AdopterID != env.adopter || room1.ShelterID != env.shelter {
		t.Fatal("room participants do not match the resolved identities")
	}
}

func TestResolveIdentityFailureIsFatal(t *testing.T) {
	env := newTestEnv(t)
	src := fakeIdentity{err: identity.ErrParticipantsUnresolved}
	r := NewResolver(env.rooms, src, env.msgs, zerolog.Nop())

	if _, err := r.Resolve(context.Background(), env.appID); !errors.Is(err, identity.ErrParticipantsUnresolved) {
		t.Fatalf("expected ErrParticipantsUnresolved, got %v", err)
	}
	if len(env.rooms.byApp) != 0 {
		t.Fatal("no room should be created when participants cannot be resolved")
	}
}

func TestResolveLosesCreationRace(t *testing.T) {
	env := newTestEnv(t)
	env.rooms.raceOnce = true
	r := NewResolver(env.rooms, env.identity(false), env.msgs, zerolog.Nop())

	room, err := r.Resolve(context.Background(), env.appID)
	if err != nil {
		t.Fatal(err)
	}
	if room == nil {
		t.Fatal("expected the winner's room after losing the race")
	}

	winner := env.rooms.byApp[env.appID]
	if room.ID != winner.ID {
		t.Fatal("re-fetch should return the concurrently created room")
	}
}

func TestResolveSeedsWelcomeForApprovedApplication(t *testing.T) {
	env := newTestEnv(t)
	r := NewResolver(env.rooms, env.identity(true), env.msgs, zerolog.Nop())

	room, err := r.Resolve(context.Background(), env.appID)
	if err != nil {
		t.Fatal(err)
	}

	history, _ := env.msgs.History(context.Background(), room.ID.String(), 10)
	if len(history) != 1 {
		t.Fatalf("expected one seeded message, got %d", len(history))
	}
	if history[0].Kind != models.KindSystem {
		t.Fatalf("expected a system message, got kind %q", history[0].Kind)
	}
	if history[0].SenderID != env.shelter.String() {
		t.Fatal("welcome message should be attributed to the approving shelter")
	}
}

func TestResolveNoWelcomeForPendingApplication(t *testing.T) {
	env := newTestEnv(t)
	r := NewResolver(env.rooms, env.identity(false), env.msgs, zerolog.Nop())

	room, err := r.Resolve(context.Background(), env.appID)
	if err != nil {
		t.Fatal(err)
	}

	history, _ := env.msgs.History(context.Background(), room.ID.String(), 10)
	if len(history) != 0 {
		t.Fatalf("expected empty thread for a pending application, got %d messages", len(history))
	}
}

// Package registry implements the Room Registry (spec §4.2): room creation
// with collision-free code generation, lookup, and grace-window reaping of
// abandoned or finished rooms. Grounded on the teacher's Hub
// (internal/v1/transport/hub.go), whose room map + pendingRoomCleanups
// timer map this generalizes from per-connection cleanup to the coordinator's
// host-absence/finished-retention policy (spec §3).
package registry

import (
	"crypto/rand"
	"log/slog"
	"sync"
	"time"

	"github.com/jeopardy-coordinator/roomserver/internal/v1/bus"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/game"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/metrics"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/roomactor"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/roomerr"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const codeLength = 4
const maxCodeAttempts = 20

// Registry owns every live room, keyed by its short join code.
type Registry struct {
	mu              sync.Mutex
	rooms           map[string]*roomactor.Room
	pendingCleanups map[string]*time.Timer

	sender      roomactor.Sender
	bus         *bus.Service
	persistence roomactor.Persistence
	timings     roomactor.Timings

	graceWindow    time.Duration
	finishedRetain time.Duration
}

// Deps bundles the Room Actor dependencies every room the registry creates
// is wired with.
type Deps struct {
	Sender         roomactor.Sender
	Bus            *bus.Service
	Persistence    roomactor.Persistence
	Timings        roomactor.Timings
	GraceWindow    time.Duration
	FinishedRetain time.Duration
}

// New constructs an empty Registry.
func New(deps Deps) *Registry {
	return &Registry{
		rooms:           make(map[string]*roomactor.Room),
		pendingCleanups: make(map[string]*time.Timer),
		sender:          deps.Sender,
		bus:             deps.Bus,
		persistence:     deps.Persistence,
		timings:         deps.Timings,
		graceWindow:     deps.GraceWindow,
		finishedRetain:  deps.FinishedRetain,
	}
}

// generateCode produces a random 4-character uppercase alphanumeric code
// (spec §4.2).
func generateCode() (string, error) {
	b := make([]byte, codeLength)
	idx := make([]byte, codeLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i, v := range b {
		idx[i] = codeAlphabet[int(v)%len(codeAlphabet)]
	}
	return string(idx), nil
}

// CreateOrJoinHost implements spec §4.2's create_or_join_host: if code is
// non-empty and already refers to a live room, the existing room is
// returned for the host to (re)join; otherwise a fresh room is created
// under a newly generated, collision-free code (or the given code, if the
// caller wants to choose one and it's free).
func (reg *Registry) CreateOrJoinHost(hostID, code string) (*roomactor.Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if code != "" {
		if r, ok := reg.rooms[code]; ok {
			reg.cancelCleanupLocked(code)
			return r, nil
		}
		return reg.createLocked(code, hostID), nil
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		candidate, err := generateCode()
		if err != nil {
			return nil, roomerr.Dependency("failed to generate room code", err)
		}
		if _, exists := reg.rooms[candidate]; !exists {
			return reg.createLocked(candidate, hostID), nil
		}
	}
	return nil, roomerr.Dependency("failed to allocate a free room code", nil)
}

func (reg *Registry) createLocked(code, hostID string) *roomactor.Room {
	r := roomactor.NewRoom(code, hostID, reg.sender, reg.bus, reg.persistence, reg.timings)
	reg.rooms[code] = r
	metrics.ActiveRooms.Inc()
	slog.Info("room created", "code", code, "hostId", hostID)
	return r
}

// Lookup returns the room for code, if any is currently live.
func (reg *Registry) Lookup(code string) (*roomactor.Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[code]
	return r, ok
}

// ScheduleReap arms the grace-window cleanup for code: once the window
// elapses, the room is evicted if it is empty, hostless or finished
// (spec §3). Call this whenever a connection that might have been the last
// one in a room goes away; CancelReap cancels it if someone comes back
// first.
func (reg *Registry) ScheduleReap(code string) {
	reg.scheduleCleanup(code, reg.graceWindow)
}

func (reg *Registry) scheduleCleanup(code string, delay time.Duration) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.cancelCleanupLocked(code)

	timer := time.AfterFunc(delay, func() {
		reg.reap(code)
	})
	reg.pendingCleanups[code] = timer
}

func (reg *Registry) reap(code string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	r, ok := reg.rooms[code]
	if !ok {
		delete(reg.pendingCleanups, code)
		return
	}

	if r.IsEmpty() || !r.HasHost() || r.StatusIs(game.StatusFinished) {
		r.Shutdown()
		delete(reg.rooms, code)
		delete(reg.pendingCleanups, code)
		metrics.ActiveRooms.Dec()
		metrics.RoomParticipants.DeleteLabelValues(code)
		slog.Info("room reaped after grace window", "code", code)
		return
	}

	delete(reg.pendingCleanups, code)
}

// CancelReap stops any pending grace-window eviction for code (spec §4.1
// reconnect binding: a returning host/player cancels the room's countdown).
func (reg *Registry) CancelReap(code string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.cancelCleanupLocked(code)
}

func (reg *Registry) cancelCleanupLocked(code string) {
	if timer, ok := reg.pendingCleanups[code]; ok {
		timer.Stop()
		delete(reg.pendingCleanups, code)
	}
}

// ReapFinished arms the finished-room retention window (spec §3: "or when
// status=finished and the room is inactive for that window") for every room
// that has just reached StatusFinished and has no cleanup already pending.
// Call this once per room whenever its status transitions to finished.
func (reg *Registry) ReapFinished(code string) {
	reg.mu.Lock()
	if _, pending := reg.pendingCleanups[code]; pending {
		reg.mu.Unlock()
		return
	}
	reg.mu.Unlock()
	reg.scheduleCleanup(code, reg.finishedRetain)
}

// Shutdown stops every pending cleanup timer and shuts down every live room
// (spec: graceful shutdown, mirrors the teacher's Hub.Shutdown).
func (reg *Registry) Shutdown() {
	reg.mu.Lock()
	for code, timer := range reg.pendingCleanups {
		timer.Stop()
		delete(reg.pendingCleanups, code)
	}
	rooms := make([]*roomactor.Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}
	reg.mu.Unlock()

	for _, r := range rooms {
		r.Shutdown()
	}
}

// Count returns the number of currently live rooms (for diagnostics/tests).
func (reg *Registry) Count() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

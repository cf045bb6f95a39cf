// Package hub runs the authoritative simulation. One goroutine owns
// the whole world (clients, players, spores) and serializes every
// mutation through its command queue, so no game state needs a lock.
package hub

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sort"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/udisondev/agargo/internal/command"
	"github.com/udisondev/agargo/internal/game"
	"github.com/udisondev/agargo/internal/metrics"
	"github.com/udisondev/agargo/internal/protocol"
)

const (
	// TickDuration is the simulation step; every tick ends with an
	// UpdatePlayerBatch broadcast.
	TickDuration = 50 * time.Millisecond

	// SpawnSporeDuration is the refill interval for consumed spores.
	SpawnSporeDuration = 2000 * time.Millisecond

	// MaxSporeCount caps the spore map; the world is prefilled to it.
	MaxSporeCount = 1000

	// rushMinRadius gates the rush boost.
	rushMinRadius = 20.0

	// rushMassCost is the fraction of mass paid for a rush.
	rushMassCost = 0.2
)

// Client is the hub-side record of one connection. Player stays nil
// between registration and Join.
type Client struct {
	ConnectionID string
	SocketAddr   string
	Agent        *command.Queue
	Player       *game.Player
}

// Hub owns the world. Everything below queue is private to the Run
// goroutine; other goroutines interact through Queue only.
type Hub struct {
	queue    *command.Queue
	clients  map[string]*Client
	spores   map[string]*game.Spore
	lastTick time.Time
	rng      *rand.Rand
	now      func() time.Time
}

// Option configures a Hub.
type Option func(*Hub)

// WithRand injects a seeded random source, for deterministic tests.
func WithRand(rng *rand.Rand) Option {
	return func(h *Hub) { h.rng = rng }
}

// WithClock injects a time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

// New creates a hub with an empty world.
func New(opts ...Option) *Hub {
	h := &Hub{
		queue:   command.NewQueue(),
		clients: make(map[string]*Client),
		spores:  make(map[string]*game.Spore),
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Queue returns the hub's inbound command queue.
func (h *Hub) Queue() *command.Queue {
	return h.queue
}

// Run prefills the world and enters the select loop over the tick
// timer, the spawn timer and the command queue. It returns when ctx is
// canceled; there is no other shutdown path.
func (h *Hub) Run(ctx context.Context) {
	for range MaxSporeCount {
		h.spawnSpore()
	}
	slog.Info("hub started", "spores", len(h.spores))

	tick := time.NewTicker(TickDuration)
	defer tick.Stop()
	spawn := time.NewTicker(SpawnSporeDuration)
	defer spawn.Stop()

	h.lastTick = h.now()

	for {
		select {
		case <-ctx.Done():
			slog.Info("hub stopped")
			return
		case <-tick.C:
			h.tick()
		case <-spawn.C:
			if len(h.spores) < MaxSporeCount {
				h.spawnSpore()
			}
		case cmd, ok := <-h.queue.C():
			if !ok {
				return
			}
			h.handleCommand(cmd)
		}
	}
}

// tick advances every joined player, rolls their passive mass drops,
// then broadcasts the player snapshot followed by any new spores.
func (h *Hub) tick() {
	now := h.now()
	delta := now.Sub(h.lastTick)
	h.lastTick = now

	var sporeFrames [][]byte
	for _, client := range h.clients {
		player := client.Player
		if player == nil {
			continue
		}
		player.Tick(now, delta)

		if h.rng.Float64() < player.Radius/(MaxSporeCount*4.0) {
			dropMass := game.RadiusToMass(min(15, 5+player.Radius/50))
			if mass, ok := player.TryDropMass(dropMass); ok {
				spore := h.insertSporeAt(player.X, player.Y, mass)
				sporeFrames = append(sporeFrames, protocol.Encode(updateSporePacket(spore)))
			}
		}
	}

	h.broadcast(protocol.UpdatePlayerBatch{Players: h.playerStates()})
	for _, frame := range sporeFrames {
		h.broadcastFrame(frame)
	}

	metrics.TickDuration.Observe(time.Since(now).Seconds())
	metrics.SporeCount.Set(float64(len(h.spores)))
}

func (h *Hub) handleCommand(cmd command.Command) {
	switch c := cmd.(type) {
	case command.RegisterClientAgent:
		h.registerClientAgent(c)
	case command.UnregisterClientAgent:
		h.unregisterClientAgent(c)
	case command.Join:
		h.join(c)
	case command.Chat:
		h.broadcast(protocol.Chat{ConnectionID: c.ConnectionID, Msg: c.Msg})
	case command.UpdateDirectionAngle:
		if client, ok := h.clients[c.ConnectionID]; ok && client.Player != nil {
			client.Player.DirectionAngle = c.DirectionAngle
		}
	case command.ConsumeSpore:
		h.consumeSpore(c)
	case command.ConsumePlayer:
		h.consumePlayer(c)
	case command.Rush:
		h.rush(c)
	default:
		slog.Warn("hub received unexpected command", "command", cmd)
		metrics.DroppedCommands.Inc()
	}
}

func (h *Hub) registerClientAgent(c command.RegisterClientAgent) {
	connectionID := gonanoid.Must()
	h.clients[connectionID] = &Client{
		ConnectionID: connectionID,
		SocketAddr:   c.SocketAddr,
		Agent:        c.Agent,
	}
	metrics.OpenConnections.Set(float64(len(h.clients)))
	slog.Info("client agent registered", "connection_id", connectionID, "addr", c.SocketAddr)

	c.Reply <- connectionID
}

func (h *Hub) unregisterClientAgent(c command.UnregisterClientAgent) {
	if _, ok := h.clients[c.ConnectionID]; !ok {
		return
	}
	delete(h.clients, c.ConnectionID)
	metrics.OpenConnections.Set(float64(len(h.clients)))
	metrics.JoinedPlayers.Set(float64(h.joinedCount()))
	slog.Info("client agent unregistered", "connection_id", c.ConnectionID)

	h.broadcast(protocol.Disconnect{ConnectionID: c.ConnectionID, Reason: "unregister"})
}

// join spawns a player for the target client, displacing any other
// session already joined with the same account.
func (h *Hub) join(c command.Join) {
	for _, other := range h.clients {
		if other.Player == nil || other.Player.DBID != c.PlayerDBID {
			continue
		}
		if other.ConnectionID == c.ConnectionID {
			continue
		}
		slog.Info("displacing previous session",
			"db_id", c.PlayerDBID, "old_connection_id", other.ConnectionID, "new_connection_id", c.ConnectionID)
		other.Agent.Push(command.DisconnectClient{})
	}

	client, ok := h.clients[c.ConnectionID]
	if !ok {
		slog.Error("join for unknown client", "connection_id", c.ConnectionID)
		metrics.DroppedCommands.Inc()
		return
	}

	player := game.NewRandomPlayer(h.rng, c.PlayerDBID, c.ConnectionID, c.Nickname, c.Color)
	client.Player = player
	metrics.JoinedPlayers.Set(float64(h.joinedCount()))
	slog.Info("player joined", "connection_id", c.ConnectionID, "nickname", c.Nickname)

	// Cold-start snapshot: the whole spore map, nearest spores first so
	// the client can render its surroundings before the rest streams in.
	batch := make([]*game.Spore, 0, len(h.spores))
	for _, spore := range h.spores {
		batch = append(batch, spore)
	}
	sort.Slice(batch, func(i, j int) bool {
		return sqDist(batch[i], player) < sqDist(batch[j], player)
	})
	client.Agent.Push(command.UpdateSporeBatch{Spores: batch})
}

func (h *Hub) consumeSpore(c command.ConsumeSpore) {
	client, ok := h.clients[c.ConnectionID]
	if !ok || client.Player == nil {
		metrics.DroppedCommands.Inc()
		return
	}
	spore, ok := h.spores[c.SporeID]
	if !ok {
		metrics.DroppedCommands.Inc()
		return
	}
	player := client.Player

	if !game.Close(player.X, player.Y, player.Radius, spore.X, spore.Y, spore.Radius) {
		slog.Warn("consume spore rejected, too far",
			"connection_id", c.ConnectionID, "spore_id", c.SporeID)
		metrics.DroppedCommands.Inc()
		return
	}

	player.IncreaseMass(game.RadiusToMass(spore.Radius))
	delete(h.spores, c.SporeID)

	h.broadcast(protocol.ConsumeSpore{ConnectionID: c.ConnectionID, SporeID: c.SporeID})

	currentScore := int64(game.RadiusToMass(player.Radius))
	client.Agent.Push(command.SyncPlayerBestScore{CurrentScore: currentScore})
}

// consumePlayer transfers the victim's mass to the eater and respawns
// the victim. Deliberately no dedicated broadcast: observers pick up
// the respawn from the next tick's UpdatePlayerBatch.
func (h *Hub) consumePlayer(c command.ConsumePlayer) {
	client, ok := h.clients[c.ConnectionID]
	if !ok || client.Player == nil {
		metrics.DroppedCommands.Inc()
		return
	}
	victimClient, ok := h.clients[c.VictimConnectionID]
	if !ok || victimClient.Player == nil {
		metrics.DroppedCommands.Inc()
		return
	}
	player, victim := client.Player, victimClient.Player

	if !game.Close(player.X, player.Y, player.Radius, victim.X, victim.Y, victim.Radius) {
		slog.Warn("consume player rejected, too far",
			"connection_id", c.ConnectionID, "victim_connection_id", c.VictimConnectionID)
		metrics.DroppedCommands.Inc()
		return
	}

	player.IncreaseMass(game.RadiusToMass(victim.Radius))
	victim.Respawn(h.rng)
}

// rush trades 20% of the player's mass for a temporary speed boost and
// leaves the paid mass behind as a spore.
func (h *Hub) rush(c command.Rush) {
	client, ok := h.clients[c.ConnectionID]
	if !ok || client.Player == nil {
		metrics.DroppedCommands.Inc()
		return
	}
	player := client.Player

	if player.Radius < rushMinRadius || player.Rushing() {
		return
	}

	dropMass := rushMassCost * game.RadiusToMass(player.Radius)
	mass, ok := player.TryDropMass(dropMass)
	if !ok {
		return
	}
	player.Rush(h.now())

	spore := h.insertSporeAt(player.X, player.Y, mass)
	h.broadcast(updateSporePacket(spore))
}

// spawnSpore inserts one random spore and announces it.
func (h *Hub) spawnSpore() {
	spore := game.NewRandomSpore(h.rng)
	h.spores[spore.ID] = spore
	metrics.SporeCount.Set(float64(len(h.spores)))
	h.broadcast(updateSporePacket(spore))
}

// insertSporeAt creates a spore of the given mass at a position,
// used for player mass drops.
func (h *Hub) insertSporeAt(x, y, mass float64) *game.Spore {
	spore := game.NewRandomSpore(h.rng)
	spore.X = x
	spore.Y = y
	spore.Radius = game.MassToRadius(mass)
	h.spores[spore.ID] = spore
	return spore
}

// broadcast encodes the packet once and fans the bytes out to every
// joined client's queue.
func (h *Hub) broadcast(p protocol.Packet) {
	h.broadcastFrame(protocol.Encode(p))
}

func (h *Hub) broadcastFrame(frame []byte) {
	for _, client := range h.clients {
		if client.Player == nil {
			continue
		}
		client.Agent.Push(command.SendBytes{Data: frame})
	}
	metrics.BroadcastPackets.Inc()
}

func (h *Hub) playerStates() []protocol.PlayerState {
	var states []protocol.PlayerState
	for _, client := range h.clients {
		if client.Player == nil {
			continue
		}
		states = append(states, playerState(client.Player))
	}
	return states
}

func (h *Hub) joinedCount() int {
	n := 0
	for _, client := range h.clients {
		if client.Player != nil {
			n++
		}
	}
	return n
}

func playerState(p *game.Player) protocol.PlayerState {
	return protocol.PlayerState{
		ConnectionID:   p.ConnectionID,
		Nickname:       p.Nickname,
		X:              p.X,
		Y:              p.Y,
		Radius:         p.Radius,
		DirectionAngle: p.DirectionAngle,
		Speed:          p.Speed,
		Color:          p.Color,
		Rushing:        p.Rushing(),
	}
}

func updateSporePacket(s *game.Spore) protocol.UpdateSpore {
	return protocol.UpdateSpore{ID: s.ID, X: s.X, Y: s.Y, Radius: s.Radius}
}

func sqDist(s *game.Spore, p *game.Player) float64 {
	dx := s.X - p.X
	dy := s.Y - p.Y
	return dx*dx + dy*dy
}

package hub

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/agargo/internal/command"
	"github.com/udisondev/agargo/internal/game"
	"github.com/udisondev/agargo/internal/protocol"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h := New(
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithClock(time.Now),
	)
	t.Cleanup(func() { h.queue.Close() })
	return h
}

// register wires a fake agent queue into the hub and returns the
// assigned connection id together with the queue the hub will push to.
func register(t *testing.T, h *Hub) (string, *command.Queue) {
	t.Helper()
	agent := command.NewQueue()
	t.Cleanup(func() { agent.Close() })

	reply := make(chan string, 1)
	h.registerClientAgent(command.RegisterClientAgent{
		SocketAddr: "127.0.0.1:50000",
		Agent:      agent,
		Reply:      reply,
	})
	return <-reply, agent
}

func recv(t *testing.T, q *command.Queue) command.Command {
	t.Helper()
	select {
	case cmd, ok := <-q.C():
		require.True(t, ok, "queue closed")
		return cmd
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for command")
		return nil
	}
}

// join spawns a player for the connection and swallows the post-join
// spore snapshot so later assertions see only what the test triggers.
func join(t *testing.T, h *Hub, connID string, agent *command.Queue, dbID int64) *game.Player {
	t.Helper()
	h.handleCommand(command.Join{ConnectionID: connID, PlayerDBID: dbID, Nickname: "tester", Color: 7})

	cmd := recv(t, agent)
	_, ok := cmd.(command.UpdateSporeBatch)
	require.True(t, ok, "expected spore snapshot after join, got %T", cmd)

	return h.clients[connID].Player
}

func recvPacket(t *testing.T, q *command.Queue) protocol.Packet {
	t.Helper()
	cmd := recv(t, q)
	sb, ok := cmd.(command.SendBytes)
	require.True(t, ok, "expected SendBytes, got %T", cmd)

	p, err := protocol.Decode(sb.Data)
	require.NoError(t, err)
	return p
}

func TestRegisterClientAgentAssignsID(t *testing.T) {
	h := newTestHub(t)

	id, _ := register(t, h)
	assert.Len(t, id, 21)
	require.Contains(t, h.clients, id)
	assert.Nil(t, h.clients[id].Player)

	other, _ := register(t, h)
	assert.NotEqual(t, id, other)
}

func TestJoinSpawnsPlayerInsideWorld(t *testing.T) {
	h := newTestHub(t)
	id, agent := register(t, h)

	player := join(t, h, id, agent, 42)
	require.NotNil(t, player)
	assert.Equal(t, int64(42), player.DBID)
	assert.Equal(t, id, player.ConnectionID)
	assert.InDelta(t, 0, player.X, game.WorldBound)
	assert.InDelta(t, 0, player.Y, game.WorldBound)
	assert.Equal(t, game.InitRadius, player.Radius)
}

func TestJoinSporeSnapshotNearestFirst(t *testing.T) {
	h := newTestHub(t)
	for range 50 {
		h.spawnSpore()
	}
	id, agent := register(t, h)
	h.handleCommand(command.Join{ConnectionID: id, PlayerDBID: 1, Nickname: "tester"})
	player := h.clients[id].Player

	cmd := recv(t, agent)
	batch, ok := cmd.(command.UpdateSporeBatch)
	require.True(t, ok)
	require.Len(t, batch.Spores, 50)
	for i := 1; i < len(batch.Spores); i++ {
		assert.LessOrEqual(t, sqDist(batch.Spores[i-1], player), sqDist(batch.Spores[i], player))
	}
}

func TestJoinDisplacesPreviousSession(t *testing.T) {
	h := newTestHub(t)
	oldID, oldAgent := register(t, h)
	join(t, h, oldID, oldAgent, 42)

	newID, newAgent := register(t, h)
	h.handleCommand(command.Join{ConnectionID: newID, PlayerDBID: 42, Nickname: "tester"})

	// The displaced session is told to disconnect before anything else.
	cmd := recv(t, oldAgent)
	for {
		if _, ok := cmd.(command.DisconnectClient); ok {
			break
		}
		cmd = recv(t, oldAgent)
	}

	cmd = recv(t, newAgent)
	_, ok := cmd.(command.UpdateSporeBatch)
	assert.True(t, ok)
	require.NotNil(t, h.clients[newID].Player)
}

func TestJoinSameConnectionDoesNotDisplaceItself(t *testing.T) {
	h := newTestHub(t)
	id, agent := register(t, h)
	join(t, h, id, agent, 42)

	h.handleCommand(command.Join{ConnectionID: id, PlayerDBID: 42, Nickname: "tester"})

	cmd := recv(t, agent)
	_, ok := cmd.(command.DisconnectClient)
	assert.False(t, ok, "rejoin must not disconnect the same connection")
}

func TestConsumeSporeWithinReach(t *testing.T) {
	h := newTestHub(t)
	id, agent := register(t, h)
	player := join(t, h, id, agent, 1)

	spore := &game.Spore{ID: "spore-1", X: player.X, Y: player.Y, Radius: 10}
	h.spores[spore.ID] = spore
	before := game.RadiusToMass(player.Radius)

	h.handleCommand(command.ConsumeSpore{ConnectionID: id, SporeID: spore.ID})

	assert.NotContains(t, h.spores, spore.ID)
	assert.InDelta(t, before+game.RadiusToMass(10), game.RadiusToMass(player.Radius), 1e-9)

	p := recvPacket(t, agent)
	consumed, ok := p.(protocol.ConsumeSpore)
	require.True(t, ok)
	assert.Equal(t, spore.ID, consumed.SporeID)
	assert.Equal(t, id, consumed.ConnectionID)

	cmd := recv(t, agent)
	sync, ok := cmd.(command.SyncPlayerBestScore)
	require.True(t, ok)
	assert.Equal(t, int64(game.RadiusToMass(player.Radius)), sync.CurrentScore)
}

func TestConsumeSporeTooFar(t *testing.T) {
	h := newTestHub(t)
	id, agent := register(t, h)
	player := join(t, h, id, agent, 1)

	spore := &game.Spore{ID: "spore-far", X: player.X + 500, Y: player.Y, Radius: 10}
	h.spores[spore.ID] = spore
	before := player.Radius

	h.handleCommand(command.ConsumeSpore{ConnectionID: id, SporeID: spore.ID})

	assert.Contains(t, h.spores, spore.ID)
	assert.Equal(t, before, player.Radius)
	select {
	case cmd := <-agent.C():
		t.Fatalf("unexpected command after rejected consume: %T", cmd)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConsumePlayerRespawnsVictim(t *testing.T) {
	h := newTestHub(t)
	eaterID, eaterAgent := register(t, h)
	eater := join(t, h, eaterID, eaterAgent, 1)
	victimID, victimAgent := register(t, h)
	victim := join(t, h, victimID, victimAgent, 2)

	victim.X, victim.Y = eater.X, eater.Y
	victim.Radius = 15
	eaterMass := game.RadiusToMass(eater.Radius)
	victimMass := game.RadiusToMass(victim.Radius)

	h.handleCommand(command.ConsumePlayer{ConnectionID: eaterID, VictimConnectionID: victimID})

	assert.InDelta(t, eaterMass+victimMass, game.RadiusToMass(eater.Radius), 1e-9)
	assert.Equal(t, game.InitRadius, victim.Radius)
	assert.Equal(t, int64(2), victim.DBID)
	assert.Equal(t, victimID, victim.ConnectionID)
}

func TestConsumePlayerTooFar(t *testing.T) {
	h := newTestHub(t)
	eaterID, eaterAgent := register(t, h)
	eater := join(t, h, eaterID, eaterAgent, 1)
	victimID, victimAgent := register(t, h)
	victim := join(t, h, victimID, victimAgent, 2)

	victim.X, victim.Y = eater.X+1000, eater.Y
	victim.Radius = 15
	before := eater.Radius

	h.handleCommand(command.ConsumePlayer{ConnectionID: eaterID, VictimConnectionID: victimID})

	assert.Equal(t, before, eater.Radius)
	assert.Equal(t, 15.0, victim.Radius) // victim untouched
}

func TestRushBoostsSpeedAndDropsMass(t *testing.T) {
	now := time.Now()
	h := New(
		WithRand(rand.New(rand.NewPCG(3, 4))),
		WithClock(func() time.Time { return now }),
	)
	defer h.queue.Close()
	id, agent := register(t, h)
	player := join(t, h, id, agent, 1)

	massBefore := game.RadiusToMass(player.Radius)
	h.handleCommand(command.Rush{ConnectionID: id})

	assert.True(t, player.Rushing())
	assert.Equal(t, game.RushSpeed, player.Speed)
	assert.InDelta(t, 0.8*massBefore, game.RadiusToMass(player.Radius), 1e-9)

	// The paid mass lands as a spore at the player's position.
	p := recvPacket(t, agent)
	spore, ok := p.(protocol.UpdateSpore)
	require.True(t, ok)
	assert.Equal(t, player.X, spore.X)
	assert.Equal(t, player.Y, spore.Y)
	assert.InDelta(t, 0.2*massBefore, game.RadiusToMass(spore.Radius), 1e-9)
}

func TestRushRefusedBelowMinRadius(t *testing.T) {
	h := newTestHub(t)
	id, agent := register(t, h)
	player := join(t, h, id, agent, 1)
	player.Radius = 15

	h.handleCommand(command.Rush{ConnectionID: id})

	assert.False(t, player.Rushing())
	assert.Equal(t, 15.0, player.Radius)
}

func TestRushRefusedWhileRushing(t *testing.T) {
	now := time.Now()
	h := New(
		WithRand(rand.New(rand.NewPCG(3, 4))),
		WithClock(func() time.Time { return now }),
	)
	defer h.queue.Close()
	id, agent := register(t, h)
	player := join(t, h, id, agent, 1)
	player.Radius = 40

	h.handleCommand(command.Rush{ConnectionID: id})
	radiusAfterFirst := player.Radius
	h.handleCommand(command.Rush{ConnectionID: id})

	assert.Equal(t, radiusAfterFirst, player.Radius)
}

func TestUpdateDirectionAngle(t *testing.T) {
	h := newTestHub(t)
	id, agent := register(t, h)
	player := join(t, h, id, agent, 1)

	h.handleCommand(command.UpdateDirectionAngle{ConnectionID: id, DirectionAngle: 1.25})
	assert.Equal(t, 1.25, player.DirectionAngle)

	// Unknown connections are ignored without panicking.
	h.handleCommand(command.UpdateDirectionAngle{ConnectionID: "ghost", DirectionAngle: 2})
}

func TestUnregisterBroadcastsDisconnect(t *testing.T) {
	h := newTestHub(t)
	leavingID, leavingAgent := register(t, h)
	join(t, h, leavingID, leavingAgent, 1)
	stayingID, stayingAgent := register(t, h)
	join(t, h, stayingID, stayingAgent, 2)

	h.handleCommand(command.UnregisterClientAgent{ConnectionID: leavingID})

	assert.NotContains(t, h.clients, leavingID)

	p := recvPacket(t, stayingAgent)
	disc, ok := p.(protocol.Disconnect)
	require.True(t, ok)
	assert.Equal(t, leavingID, disc.ConnectionID)
	assert.Equal(t, "unregister", disc.Reason)
}

func TestBroadcastSkipsUnjoinedClients(t *testing.T) {
	h := newTestHub(t)
	joinedID, joinedAgent := register(t, h)
	join(t, h, joinedID, joinedAgent, 1)
	_, freshAgent := register(t, h)

	h.handleCommand(command.Chat{ConnectionID: joinedID, Msg: "hello"})

	p := recvPacket(t, joinedAgent)
	chat, ok := p.(protocol.Chat)
	require.True(t, ok)
	assert.Equal(t, "hello", chat.Msg)

	select {
	case cmd := <-freshAgent.C():
		t.Fatalf("unjoined client received broadcast: %T", cmd)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTickBroadcastsPlayerBatch(t *testing.T) {
	now := time.Now()
	h := New(
		WithRand(rand.New(rand.NewPCG(5, 6))),
		WithClock(func() time.Time { return now }),
	)
	defer h.queue.Close()
	h.lastTick = now.Add(-TickDuration)

	id, agent := register(t, h)
	player := join(t, h, id, agent, 1)
	player.DirectionAngle = 0
	x := player.X

	h.tick()

	// 50ms at 150 units/s.
	assert.InDelta(t, x+game.InitSpeed*TickDuration.Seconds(), player.X, 1e-9)

	for {
		p := recvPacket(t, agent)
		batch, ok := p.(protocol.UpdatePlayerBatch)
		if !ok {
			continue // a passive mass drop may arrive after the batch
		}
		require.Len(t, batch.Players, 1)
		assert.Equal(t, id, batch.Players[0].ConnectionID)
		assert.Equal(t, player.X, batch.Players[0].X)
		return
	}
}

func TestSporeSpawnRespectsCap(t *testing.T) {
	h := newTestHub(t)
	for range MaxSporeCount {
		h.spawnSpore()
	}
	require.Len(t, h.spores, MaxSporeCount)

	// Run's spawn arm checks the cap before inserting.
	if len(h.spores) < MaxSporeCount {
		h.spawnSpore()
	}
	assert.Len(t, h.spores, MaxSporeCount)

	for id := range h.spores {
		delete(h.spores, id)
		break
	}
	if len(h.spores) < MaxSporeCount {
		h.spawnSpore()
	}
	assert.Len(t, h.spores, MaxSporeCount)
}

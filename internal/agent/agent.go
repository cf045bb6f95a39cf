// Package agent drives one WebSocket connection: it decodes client
// packets, runs the login and register flows against the database, and
// relays everything gameplay-related to the hub. World state never
// lives here; the agent only caches the logged-in account row.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/udisondev/agargo/internal/command"
	"github.com/udisondev/agargo/internal/db"
	"github.com/udisondev/agargo/internal/game"
	"github.com/udisondev/agargo/internal/protocol"
)

const (
	// maxUsernameLen bounds usernames at registration.
	maxUsernameLen = 16

	// leaderboardSize is how many rows a leaderboard request returns.
	leaderboardSize = 100

	// Post-join spore snapshots are streamed in small chunks with a
	// pause in between so the snapshot never starves tick broadcasts.
	sporeChunkSize  = 20
	sporeChunkPause = 20 * time.Millisecond
)

// loginFailedReason is deliberately the same for every login failure so
// usernames cannot be enumerated.
const loginFailedReason = "incorrect username or password"

var errDisplaced = errors.New("agent: displaced by another session")

// Agent is the per-connection actor. The hub talks to it exclusively
// through queue; the client talks to it through conn.
type Agent struct {
	hub        *command.Queue
	db         *db.DB
	bcryptCost int

	conn   *websocket.Conn
	queue  *command.Queue
	connID string

	// writeMu serializes conn writes between the write pump and the
	// spore snapshot goroutine.
	writeMu sync.Mutex

	// mu guards the session state below.
	mu     sync.Mutex
	player *db.Player
	joined bool
}

// Serve owns the connection until it dies: it registers with the hub,
// greets the client and runs the read and write pumps. It always
// unregisters and closes everything on the way out.
func Serve(ctx context.Context, conn *websocket.Conn, hub *command.Queue, database *db.DB, bcryptCost int) {
	a := &Agent{
		hub:        hub,
		db:         database,
		bcryptCost: bcryptCost,
		conn:       conn,
		queue:      command.NewQueue(),
	}

	reply := make(chan string, 1)
	registered := hub.Push(command.RegisterClientAgent{
		SocketAddr: conn.RemoteAddr().String(),
		Agent:      a.queue,
		Reply:      reply,
	})
	if !registered {
		conn.Close()
		a.queue.Close()
		return
	}
	select {
	case a.connID = <-reply:
	case <-ctx.Done():
		conn.Close()
		a.queue.Close()
		return
	}

	log := slog.With("connection_id", a.connID, "addr", conn.RemoteAddr().String())
	log.Info("client agent started")

	if err := a.writePacket(protocol.Hello{ConnectionID: a.connID}); err != nil {
		log.Warn("sending hello", "err", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.readPump(gctx) })
	g.Go(func() error { return a.writePump(gctx) })
	g.Go(func() error {
		// Unblocks the read pump when the other pump or the parent
		// context finishes first.
		<-gctx.Done()
		conn.Close()
		return nil
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Info("client agent closing", "reason", err)
	}

	hub.Push(command.UnregisterClientAgent{ConnectionID: a.connID})
	a.queue.Close()
	conn.Close()
	log.Info("client agent stopped")
}

// readPump decodes incoming frames and dispatches them until the
// connection fails.
func (a *Agent) readPump(ctx context.Context) error {
	for {
		messageType, data, err := a.conn.ReadMessage()
		if err != nil {
			return err
		}
		if messageType != websocket.BinaryMessage {
			slog.Warn("ignoring non-binary message", "connection_id", a.connID, "type", messageType)
			continue
		}

		packet, err := protocol.Decode(data)
		if err != nil {
			slog.Warn("dropping malformed packet", "connection_id", a.connID, "err", err)
			continue
		}
		if _, ok := packet.(protocol.Disconnect); ok {
			return errors.New("client requested disconnect")
		}
		a.handlePacket(ctx, packet)
	}
}

func (a *Agent) handlePacket(ctx context.Context, packet protocol.Packet) {
	switch p := packet.(type) {
	case protocol.Ping:
		if err := a.writePacket(protocol.Ping{}); err != nil {
			slog.Warn("echoing ping", "connection_id", a.connID, "err", err)
		}
	case protocol.Login:
		a.handleLogin(ctx, p)
	case protocol.Register:
		a.handleRegister(ctx, p)
	case protocol.Join:
		a.handleJoin()
	case protocol.Chat:
		a.pushIfJoined(command.Chat{ConnectionID: a.connID, Msg: p.Msg})
	case protocol.UpdateDirectionAngle:
		a.pushIfJoined(command.UpdateDirectionAngle{ConnectionID: a.connID, DirectionAngle: p.DirectionAngle})
	case protocol.ConsumeSpore:
		a.pushIfJoined(command.ConsumeSpore{ConnectionID: a.connID, SporeID: p.SporeID})
	case protocol.ConsumePlayer:
		a.pushIfJoined(command.ConsumePlayer{ConnectionID: a.connID, VictimConnectionID: p.VictimConnectionID})
	case protocol.Rush:
		a.pushIfJoined(command.Rush{ConnectionID: a.connID})
	case protocol.LeaderboardRequest:
		a.handleLeaderboard(ctx)
	default:
		slog.Warn("unexpected packet from client", "connection_id", a.connID, "opcode", packet.Opcode())
	}
}

// handleLogin verifies the credentials and caches the account row. All
// failure branches answer with the same vague reason.
func (a *Agent) handleLogin(ctx context.Context, p protocol.Login) {
	fail := func(err error) {
		slog.Warn("login failed", "connection_id", a.connID, "username", p.Username, "err", err)
		if werr := a.writePacket(protocol.LoginErr{Reason: loginFailedReason}); werr != nil {
			slog.Warn("sending login error", "connection_id", a.connID, "err", werr)
		}
	}

	auth, err := a.db.AuthByUsername(ctx, p.Username)
	if err != nil {
		fail(err)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(auth.Password), []byte(p.Password)); err != nil {
		fail(err)
		return
	}
	player, err := a.db.PlayerByAuthID(ctx, auth.ID)
	if err != nil {
		fail(err)
		return
	}

	a.mu.Lock()
	a.player = player
	a.mu.Unlock()

	slog.Info("login ok", "connection_id", a.connID, "username", p.Username)
	if err := a.writePacket(protocol.LoginOk{}); err != nil {
		slog.Warn("sending login ok", "connection_id", a.connID, "err", err)
	}
}

// handleRegister creates the account. Unlike login, the failure reasons
// are scoped: the client needs to know what to fix.
func (a *Agent) handleRegister(ctx context.Context, p protocol.Register) {
	fail := func(reason string) {
		if err := a.writePacket(protocol.RegisterErr{Reason: reason}); err != nil {
			slog.Warn("sending register error", "connection_id", a.connID, "err", err)
		}
	}

	if p.Username == "" || len(p.Username) > maxUsernameLen {
		fail("invalid username")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), a.bcryptCost)
	if err != nil {
		slog.Error("hashing password", "connection_id", a.connID, "err", err)
		fail("register failed")
		return
	}

	// Force the alpha byte so the avatar is always opaque.
	color := p.Color | 0xFF

	if _, err := a.db.Register(ctx, p.Username, string(hash), color); err != nil {
		if errors.Is(err, db.ErrUsernameTaken) {
			fail("username already exists")
			return
		}
		slog.Error("registering account", "connection_id", a.connID, "username", p.Username, "err", err)
		fail("register failed")
		return
	}

	slog.Info("register ok", "connection_id", a.connID, "username", p.Username)
	if err := a.writePacket(protocol.RegisterOk{}); err != nil {
		slog.Warn("sending register ok", "connection_id", a.connID, "err", err)
	}
}

// handleJoin forwards the spawn request once the session is logged in.
func (a *Agent) handleJoin() {
	a.mu.Lock()
	player := a.player
	if player != nil {
		a.joined = true
	}
	a.mu.Unlock()

	if player == nil {
		slog.Warn("join before login", "connection_id", a.connID)
		return
	}
	a.hub.Push(command.Join{
		ConnectionID: a.connID,
		PlayerDBID:   player.ID,
		Nickname:     player.Nickname,
		Color:        player.Color,
	})
}

func (a *Agent) handleLeaderboard(ctx context.Context) {
	top, err := a.db.TopPlayersByBestScore(ctx, leaderboardSize)
	if err != nil {
		slog.Error("querying leaderboard", "connection_id", a.connID, "err", err)
		return
	}
	entries := make([]protocol.LeaderboardEntry, 0, len(top))
	for i, p := range top {
		entries = append(entries, protocol.LeaderboardEntry{
			Rank:     uint64(i + 1),
			Nickname: p.Nickname,
			Score:    uint64(p.BestScore),
		})
	}
	if err := a.writePacket(protocol.LeaderboardResponse{Entries: entries}); err != nil {
		slog.Warn("sending leaderboard", "connection_id", a.connID, "err", err)
	}
}

// pushIfJoined drops gameplay packets from sessions without a player.
func (a *Agent) pushIfJoined(cmd command.Command) {
	a.mu.Lock()
	joined := a.joined
	a.mu.Unlock()
	if !joined {
		slog.Warn("gameplay packet before join", "connection_id", a.connID, "command", cmd)
		return
	}
	a.hub.Push(cmd)
}

// writePump delivers hub commands to the socket until the queue closes,
// the context ends or the hub displaces the session.
func (a *Agent) writePump(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd, ok := <-a.queue.C():
			if !ok {
				return nil
			}
			if err := a.handleHubCommand(ctx, cmd); err != nil {
				return err
			}
		}
	}
}

func (a *Agent) handleHubCommand(ctx context.Context, cmd command.Command) error {
	switch c := cmd.(type) {
	case command.SendPacket:
		return a.writePacket(c.Packet)
	case command.SendBytes:
		return a.writeFrame(c.Data)
	case command.UpdateSporeBatch:
		go a.streamSporeBatch(ctx, c.Spores)
		return nil
	case command.SyncPlayerBestScore:
		a.syncBestScore(ctx, c.CurrentScore)
		return nil
	case command.DisconnectClient:
		return errDisplaced
	default:
		slog.Warn("agent received unexpected command", "connection_id", a.connID, "command", cmd)
		return nil
	}
}

// streamSporeBatch trickles the post-join snapshot to the client in
// fixed-size chunks so the write pump stays responsive in between.
func (a *Agent) streamSporeBatch(ctx context.Context, spores []*game.Spore) {
	for start := 0; start < len(spores); start += sporeChunkSize {
		end := min(start+sporeChunkSize, len(spores))

		chunk := make([]protocol.UpdateSpore, 0, end-start)
		for _, s := range spores[start:end] {
			chunk = append(chunk, protocol.UpdateSpore{ID: s.ID, X: s.X, Y: s.Y, Radius: s.Radius})
		}
		if err := a.writePacket(protocol.UpdateSporeBatch{Spores: chunk}); err != nil {
			slog.Warn("streaming spore batch", "connection_id", a.connID, "err", err)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(sporeChunkPause):
		}
	}
}

// syncBestScore persists a new personal best. The cached row keeps the
// hot path off the database for scores that are not records.
func (a *Agent) syncBestScore(ctx context.Context, currentScore int64) {
	a.mu.Lock()
	player := a.player
	if player == nil || currentScore <= player.BestScore {
		a.mu.Unlock()
		return
	}
	player.BestScore = currentScore
	playerID := player.ID
	a.mu.Unlock()

	if err := a.db.UpdatePlayerBestScore(ctx, playerID, currentScore); err != nil {
		slog.Error("persisting best score", "connection_id", a.connID, "err", err)
	}
}

func (a *Agent) writePacket(p protocol.Packet) error {
	return a.writeFrame(protocol.Encode(p))
}

func (a *Agent) writeFrame(frame []byte) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return a.conn.WriteMessage(websocket.BinaryMessage, frame)
}

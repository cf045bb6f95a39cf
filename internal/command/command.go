// Package command defines the tagged message union exchanged between
// client agents and the hub, and the unbounded FIFO queues carrying it.
package command

import (
	"github.com/udisondev/agargo/internal/game"
	"github.com/udisondev/agargo/internal/protocol"
)

// Command is the closed union of in-process messages. Agents send the
// agent→hub variants to the hub's queue; the hub sends the hub→agent
// variants to a client's queue.
type Command interface {
	isCommand()
}

// RegisterClientAgent announces a fresh connection. The hub allocates a
// connection id and delivers it on Reply.
type RegisterClientAgent struct {
	SocketAddr string
	Agent      *Queue
	Reply      chan<- string
}

// UnregisterClientAgent removes the connection from the world.
type UnregisterClientAgent struct {
	ConnectionID string
}

// Join asks the hub to spawn a player for a logged-in session.
type Join struct {
	ConnectionID string
	PlayerDBID   int64
	Nickname     string
	Color        int32
}

// Chat is relayed by the hub to every joined client.
type Chat struct {
	ConnectionID string
	Msg          string
}

// UpdateDirectionAngle steers the sender's player.
type UpdateDirectionAngle struct {
	ConnectionID   string
	DirectionAngle float64
}

// ConsumeSpore claims that the sender's player ate a spore.
type ConsumeSpore struct {
	ConnectionID string
	SporeID      string
}

// ConsumePlayer claims that the sender's player ate another player.
type ConsumePlayer struct {
	ConnectionID       string
	VictimConnectionID string
}

// Rush requests a speed boost for the sender's player.
type Rush struct {
	ConnectionID string
}

// SendPacket asks the agent to encode and write one packet.
type SendPacket struct {
	Packet protocol.Packet
}

// SendBytes asks the agent to write pre-encoded frame bytes. Used by
// the hub so a broadcast is encoded once.
type SendBytes struct {
	Data []byte
}

// UpdateSporeBatch hands the agent the post-join world snapshot. The
// agent chunks and throttles delivery off the broadcast path.
type UpdateSporeBatch struct {
	Spores []*game.Spore
}

// SyncPlayerBestScore reports the player's current score so the agent
// can persist a new personal best.
type SyncPlayerBestScore struct {
	CurrentScore int64
}

// DisconnectClient tells the agent to close its WebSocket and exit.
type DisconnectClient struct{}

func (RegisterClientAgent) isCommand()   {}
func (UnregisterClientAgent) isCommand() {}
func (Join) isCommand()                  {}
func (Chat) isCommand()                  {}
func (UpdateDirectionAngle) isCommand()  {}
func (ConsumeSpore) isCommand()          {}
func (ConsumePlayer) isCommand()         {}
func (Rush) isCommand()                  {}
func (SendPacket) isCommand()            {}
func (SendBytes) isCommand()             {}
func (UpdateSporeBatch) isCommand()      {}
func (SyncPlayerBestScore) isCommand()   {}
func (DisconnectClient) isCommand()      {}

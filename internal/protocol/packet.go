// Package protocol implements the binary wire contract shared with the
// client. Every WebSocket binary frame carries exactly one packet:
//
//	uint16 total length (little-endian, including this header)
//	byte   opcode
//	...    payload fields, little-endian, strings as u16 length + UTF-8
//
// Encode and Decode are pure functions; the codec holds no session
// state. The layout must stay bit-exact with the client's decoder.
package protocol

// Packet opcodes.
const (
	OpHello                byte = 0x01
	OpPing                 byte = 0x02
	OpLogin                byte = 0x03
	OpLoginOk              byte = 0x04
	OpLoginErr             byte = 0x05
	OpRegister             byte = 0x06
	OpRegisterOk           byte = 0x07
	OpRegisterErr          byte = 0x08
	OpJoin                 byte = 0x09
	OpChat                 byte = 0x0A
	OpUpdatePlayer         byte = 0x0B
	OpUpdatePlayerBatch    byte = 0x0C
	OpUpdateSpore          byte = 0x0D
	OpUpdateSporeBatch     byte = 0x0E
	OpConsumeSpore         byte = 0x0F
	OpConsumePlayer        byte = 0x10
	OpRush                 byte = 0x11
	OpDisconnect           byte = 0x12
	OpLeaderboardRequest   byte = 0x13
	OpLeaderboardResponse  byte = 0x14
	OpUpdateDirectionAngle byte = 0x15
)

// Packet is the tagged union carried on the wire. The set of variants
// is closed; Decode never returns anything outside this package.
type Packet interface {
	Opcode() byte
}

// Hello is the first packet the server sends after the hub assigns a
// connection id.
type Hello struct {
	ConnectionID string
}

// Ping is echoed back verbatim at any session state.
type Ping struct{}

// Login carries plaintext credentials; transport security is the
// deployment's concern (wss).
type Login struct {
	Username string
	Password string
}

// LoginOk acknowledges a successful login.
type LoginOk struct{}

// LoginErr carries a deliberately vague reason so usernames cannot be
// enumerated.
type LoginErr struct {
	Reason string
}

// Register requests account creation. Color is 32-bit RGBA; the server
// forces the alpha byte opaque before persisting.
type Register struct {
	Username string
	Password string
	Color    int32
}

// RegisterOk acknowledges a successful registration.
type RegisterOk struct{}

// RegisterErr carries a scoped failure reason.
type RegisterErr struct {
	Reason string
}

// Join asks the hub to spawn a player for the logged-in session.
type Join struct{}

// Chat is broadcast to every joined client.
type Chat struct {
	ConnectionID string
	Msg          string
}

// PlayerState is the per-player body shared by UpdatePlayer and
// UpdatePlayerBatch.
type PlayerState struct {
	ConnectionID   string
	Nickname       string
	X              float64
	Y              float64
	Radius         float64
	DirectionAngle float64
	Speed          float64
	Color          int32
	Rushing        bool
}

// UpdatePlayer carries one player snapshot.
type UpdatePlayer struct {
	Player PlayerState
}

// UpdatePlayerBatch carries the tick snapshot of all joined players.
type UpdatePlayerBatch struct {
	Players []PlayerState
}

// UpdateSpore announces a new or replaced spore.
type UpdateSpore struct {
	ID     string
	X      float64
	Y      float64
	Radius float64
}

// UpdateSporeBatch carries a chunk of the world's spores, nearest
// first, during the post-join snapshot.
type UpdateSporeBatch struct {
	Spores []UpdateSpore
}

// ConsumeSpore is sent by the client as a consumption claim and
// broadcast by the server once the hub accepts it.
type ConsumeSpore struct {
	ConnectionID string
	SporeID      string
}

// ConsumePlayer claims consumption of another player. There is no
// explicit reply; the next tick batch reflects the victim's respawn.
type ConsumePlayer struct {
	ConnectionID       string
	VictimConnectionID string
}

// Rush requests a speed boost paid with 20% of the player's mass.
type Rush struct{}

// Disconnect tells clients a connection left the world.
type Disconnect struct {
	ConnectionID string
	Reason       string
}

// LeaderboardRequest asks for the best-score top list.
type LeaderboardRequest struct{}

// LeaderboardEntry is one row of the leaderboard.
type LeaderboardEntry struct {
	Rank     uint64
	Nickname string
	Score    uint64
}

// LeaderboardResponse carries the top list, best first.
type LeaderboardResponse struct {
	Entries []LeaderboardEntry
}

// UpdateDirectionAngle steers the player.
type UpdateDirectionAngle struct {
	DirectionAngle float64
}

func (Hello) Opcode() byte                { return OpHello }
func (Ping) Opcode() byte                 { return OpPing }
func (Login) Opcode() byte                { return OpLogin }
func (LoginOk) Opcode() byte              { return OpLoginOk }
func (LoginErr) Opcode() byte             { return OpLoginErr }
func (Register) Opcode() byte             { return OpRegister }
func (RegisterOk) Opcode() byte           { return OpRegisterOk }
func (RegisterErr) Opcode() byte          { return OpRegisterErr }
func (Join) Opcode() byte                 { return OpJoin }
func (Chat) Opcode() byte                 { return OpChat }
func (UpdatePlayer) Opcode() byte         { return OpUpdatePlayer }
func (UpdatePlayerBatch) Opcode() byte    { return OpUpdatePlayerBatch }
func (UpdateSpore) Opcode() byte          { return OpUpdateSpore }
func (UpdateSporeBatch) Opcode() byte     { return OpUpdateSporeBatch }
func (ConsumeSpore) Opcode() byte         { return OpConsumeSpore }
func (ConsumePlayer) Opcode() byte        { return OpConsumePlayer }
func (Rush) Opcode() byte                 { return OpRush }
func (Disconnect) Opcode() byte           { return OpDisconnect }
func (LeaderboardRequest) Opcode() byte   { return OpLeaderboardRequest }
func (LeaderboardResponse) Opcode() byte  { return OpLeaderboardResponse }
func (UpdateDirectionAngle) Opcode() byte { return OpUpdateDirectionAngle }

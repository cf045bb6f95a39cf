package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

const headerSize = 2

// DecodeError reports a malformed inbound frame. Agents log it and keep
// the connection open.
type DecodeError struct {
	msg string
}

func (e *DecodeError) Error() string {
	return "decode packet: " + e.msg
}

func decodeErrorf(format string, args ...any) *DecodeError {
	return &DecodeError{msg: fmt.Sprintf(format, args...)}
}

// Encode serializes one packet into a framed byte slice ready to be
// written as a single WebSocket binary message.
func Encode(p Packet) []byte {
	buf := make([]byte, headerSize, 64)
	buf = append(buf, p.Opcode())

	switch v := p.(type) {
	case Hello:
		buf = appendString(buf, v.ConnectionID)
	case Ping, LoginOk, RegisterOk, Join, Rush, LeaderboardRequest:
		// no payload
	case Login:
		buf = appendString(buf, v.Username)
		buf = appendString(buf, v.Password)
	case LoginErr:
		buf = appendString(buf, v.Reason)
	case Register:
		buf = appendString(buf, v.Username)
		buf = appendString(buf, v.Password)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(v.Color))
	case RegisterErr:
		buf = appendString(buf, v.Reason)
	case Chat:
		buf = appendString(buf, v.ConnectionID)
		buf = appendString(buf, v.Msg)
	case UpdatePlayer:
		buf = appendPlayerState(buf, v.Player)
	case UpdatePlayerBatch:
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(v.Players)))
		for _, ps := range v.Players {
			buf = appendPlayerState(buf, ps)
		}
	case UpdateSpore:
		buf = appendSpore(buf, v)
	case UpdateSporeBatch:
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(v.Spores)))
		for _, s := range v.Spores {
			buf = appendSpore(buf, s)
		}
	case ConsumeSpore:
		buf = appendString(buf, v.ConnectionID)
		buf = appendString(buf, v.SporeID)
	case ConsumePlayer:
		buf = appendString(buf, v.ConnectionID)
		buf = appendString(buf, v.VictimConnectionID)
	case Disconnect:
		buf = appendString(buf, v.ConnectionID)
		buf = appendString(buf, v.Reason)
	case LeaderboardResponse:
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(v.Entries)))
		for _, e := range v.Entries {
			buf = binary.LittleEndian.AppendUint64(buf, e.Rank)
			buf = appendString(buf, e.Nickname)
			buf = binary.LittleEndian.AppendUint64(buf, e.Score)
		}
	case UpdateDirectionAngle:
		buf = appendFloat64(buf, v.DirectionAngle)
	default:
		panic(fmt.Sprintf("protocol: encode of unregistered packet %T", p))
	}

	binary.LittleEndian.PutUint16(buf[:headerSize], uint16(len(buf)))
	return buf
}

// Decode parses one framed packet. It fails with *DecodeError on a
// short buffer, a length-header mismatch, an unknown opcode, or a
// truncated or oversized payload.
func Decode(data []byte) (Packet, error) {
	if len(data) < headerSize+1 {
		return nil, decodeErrorf("frame too short: %d bytes", len(data))
	}
	if total := int(binary.LittleEndian.Uint16(data[:headerSize])); total != len(data) {
		return nil, decodeErrorf("length header %d does not match frame size %d", total, len(data))
	}

	r := &reader{data: data, off: headerSize + 1}
	var p Packet
	var err error

	switch opcode := data[headerSize]; opcode {
	case OpHello:
		var v Hello
		v.ConnectionID, err = r.string()
		p = v
	case OpPing:
		p = Ping{}
	case OpLogin:
		var v Login
		v.Username, err = r.string()
		if err == nil {
			v.Password, err = r.string()
		}
		p = v
	case OpLoginOk:
		p = LoginOk{}
	case OpLoginErr:
		var v LoginErr
		v.Reason, err = r.string()
		p = v
	case OpRegister:
		var v Register
		v.Username, err = r.string()
		if err == nil {
			v.Password, err = r.string()
		}
		if err == nil {
			v.Color, err = r.int32()
		}
		p = v
	case OpRegisterOk:
		p = RegisterOk{}
	case OpRegisterErr:
		var v RegisterErr
		v.Reason, err = r.string()
		p = v
	case OpJoin:
		p = Join{}
	case OpChat:
		var v Chat
		v.ConnectionID, err = r.string()
		if err == nil {
			v.Msg, err = r.string()
		}
		p = v
	case OpUpdatePlayer:
		var v UpdatePlayer
		v.Player, err = r.playerState()
		p = v
	case OpUpdatePlayerBatch:
		var v UpdatePlayerBatch
		var n uint16
		n, err = r.uint16()
		for i := 0; err == nil && i < int(n); i++ {
			var ps PlayerState
			ps, err = r.playerState()
			v.Players = append(v.Players, ps)
		}
		p = v
	case OpUpdateSpore:
		var v UpdateSpore
		v, err = r.spore()
		p = v
	case OpUpdateSporeBatch:
		var v UpdateSporeBatch
		var n uint16
		n, err = r.uint16()
		for i := 0; err == nil && i < int(n); i++ {
			var s UpdateSpore
			s, err = r.spore()
			v.Spores = append(v.Spores, s)
		}
		p = v
	case OpConsumeSpore:
		var v ConsumeSpore
		v.ConnectionID, err = r.string()
		if err == nil {
			v.SporeID, err = r.string()
		}
		p = v
	case OpConsumePlayer:
		var v ConsumePlayer
		v.ConnectionID, err = r.string()
		if err == nil {
			v.VictimConnectionID, err = r.string()
		}
		p = v
	case OpRush:
		p = Rush{}
	case OpDisconnect:
		var v Disconnect
		v.ConnectionID, err = r.string()
		if err == nil {
			v.Reason, err = r.string()
		}
		p = v
	case OpLeaderboardRequest:
		p = LeaderboardRequest{}
	case OpLeaderboardResponse:
		var v LeaderboardResponse
		var n uint16
		n, err = r.uint16()
		for i := 0; err == nil && i < int(n); i++ {
			var e LeaderboardEntry
			e.Rank, err = r.uint64()
			if err == nil {
				e.Nickname, err = r.string()
			}
			if err == nil {
				e.Score, err = r.uint64()
			}
			v.Entries = append(v.Entries, e)
		}
		p = v
	case OpUpdateDirectionAngle:
		var v UpdateDirectionAngle
		v.DirectionAngle, err = r.float64()
		p = v
	default:
		return nil, decodeErrorf("unknown opcode 0x%02X", opcode)
	}

	if err != nil {
		return nil, err
	}
	if r.off != len(data) {
		return nil, decodeErrorf("%d trailing bytes after opcode 0x%02X", len(data)-r.off, data[headerSize])
	}
	return p, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

func appendFloat64(buf []byte, f float64) []byte {
	return binary.LittleEndian.AppendUint64(buf, math.Float64bits(f))
}

func appendPlayerState(buf []byte, ps PlayerState) []byte {
	buf = appendString(buf, ps.ConnectionID)
	buf = appendString(buf, ps.Nickname)
	buf = appendFloat64(buf, ps.X)
	buf = appendFloat64(buf, ps.Y)
	buf = appendFloat64(buf, ps.Radius)
	buf = appendFloat64(buf, ps.DirectionAngle)
	buf = appendFloat64(buf, ps.Speed)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(ps.Color))
	if ps.Rushing {
		return append(buf, 1)
	}
	return append(buf, 0)
}

func appendSpore(buf []byte, s UpdateSpore) []byte {
	buf = appendString(buf, s.ID)
	buf = appendFloat64(buf, s.X)
	buf = appendFloat64(buf, s.Y)
	return appendFloat64(buf, s.Radius)
}

type reader struct {
	data []byte
	off  int
}

func (r *reader) take(n int) ([]byte, error) {
	if r.off+n > len(r.data) {
		return nil, decodeErrorf("truncated payload: need %d bytes at offset %d, have %d", n, r.off, len(r.data)-r.off)
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) uint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) uint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) int32() (int32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (r *reader) float64() (float64, error) {
	bits, err := r.uint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

func (r *reader) string() (string, error) {
	n, err := r.uint16()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) bool() (bool, error) {
	b, err := r.take(1)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

func (r *reader) playerState() (PlayerState, error) {
	var ps PlayerState
	var err error
	if ps.ConnectionID, err = r.string(); err != nil {
		return ps, err
	}
	if ps.Nickname, err = r.string(); err != nil {
		return ps, err
	}
	for _, dst := range []*float64{&ps.X, &ps.Y, &ps.Radius, &ps.DirectionAngle, &ps.Speed} {
		if *dst, err = r.float64(); err != nil {
			return ps, err
		}
	}
	if ps.Color, err = r.int32(); err != nil {
		return ps, err
	}
	ps.Rushing, err = r.bool()
	return ps, err
}

func (r *reader) spore() (UpdateSpore, error) {
	var s UpdateSpore
	var err error
	if s.ID, err = r.string(); err != nil {
		return s, err
	}
	for _, dst := range []*float64{&s.X, &s.Y, &s.Radius} {
		if *dst, err = r.float64(); err != nil {
			return s, err
		}
	}
	return s, nil
}

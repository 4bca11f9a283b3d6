// handshake.go
//
// Wire layout for the four LLP handshake messages (C3). Same Marshal/
// Unmarshal-with-fixed-offsets idiom as the record header: a struct per
// message, a byte-exact size, and bounds checked before any field read.

package wire

import (
	"encoding/binary"

	"github.com/samber/oops"
)

// Handshake message type tags.
const (
	MsgClientHello  uint8 = 1
	MsgServerHello  uint8 = 2
	MsgClientVerify uint8 = 3
	MsgServerVerify uint8 = 4
)

// Message sizes, normative per §4.3.
const (
	ClientHelloSize  = 67
	ServerHelloSize  = 73
	ClientVerifySize = 33
	ServerVerifySize = 33
)

// ClientHello is the first handshake message: type(1)‖client_pub(32)‖
// client_random(32)‖profile_id(2 BE).
type ClientHello struct {
	ClientPub    [32]byte
	ClientRandom [32]byte
	ProfileID    uint16
}

func (m ClientHello) Marshal() []byte {
	buf := make([]byte, ClientHelloSize)
	buf[0] = MsgClientHello
	copy(buf[1:33], m.ClientPub[:])
	copy(buf[33:65], m.ClientRandom[:])
	binary.BigEndian.PutUint16(buf[65:67], m.ProfileID)
	return buf
}

func UnmarshalClientHello(data []byte) (ClientHello, error) {
	var m ClientHello
	if len(data) != ClientHelloSize {
		return m, oops.Code(errCode).Errorf("client hello: want %d bytes, got %d", ClientHelloSize, len(data))
	}
	if data[0] != MsgClientHello {
		return m, oops.Code(errCode).Errorf("client hello: unexpected message type %d", data[0])
	}
	copy(m.ClientPub[:], data[1:33])
	copy(m.ClientRandom[:], data[33:65])
	m.ProfileID = binary.BigEndian.Uint16(data[65:67])
	return m, nil
}

// ServerHello is the second handshake message: type(1)‖server_pub(32)‖
// server_random(32)‖session_id(8 BE).
type ServerHello struct {
	ServerPub    [32]byte
	ServerRandom [32]byte
	SessionID    uint64
}

func (m ServerHello) Marshal() []byte {
	buf := make([]byte, ServerHelloSize)
	buf[0] = MsgServerHello
	copy(buf[1:33], m.ServerPub[:])
	copy(buf[33:65], m.ServerRandom[:])
	binary.BigEndian.PutUint64(buf[65:73], m.SessionID)
	return buf
}

func UnmarshalServerHello(data []byte) (ServerHello, error) {
	var m ServerHello
	if len(data) != ServerHelloSize {
		return m, oops.Code(errCode).Errorf("server hello: want %d bytes, got %d", ServerHelloSize, len(data))
	}
	if data[0] != MsgServerHello {
		return m, oops.Code(errCode).Errorf("server hello: unexpected message type %d", data[0])
	}
	copy(m.ServerPub[:], data[1:33])
	copy(m.ServerRandom[:], data[33:65])
	m.SessionID = binary.BigEndian.Uint64(data[65:73])
	return m, nil
}

// ClientVerify and ServerVerify share a layout: type(1)‖hmac_tag(32).
type Verify struct {
	Tag [32]byte
}

func (m Verify) marshal(msgType uint8) []byte {
	buf := make([]byte, ClientVerifySize)
	buf[0] = msgType
	copy(buf[1:33], m.Tag[:])
	return buf
}

func (m Verify) MarshalClientVerify() []byte { return m.marshal(MsgClientVerify) }
func (m Verify) MarshalServerVerify() []byte { return m.marshal(MsgServerVerify) }

func unmarshalVerify(data []byte, wantType uint8) (Verify, error) {
	var m Verify
	if len(data) != ClientVerifySize {
		return m, oops.Code(errCode).Errorf("verify message: want %d bytes, got %d", ClientVerifySize, len(data))
	}
	if data[0] != wantType {
		return m, oops.Code(errCode).Errorf("verify message: unexpected message type %d", data[0])
	}
	copy(m.Tag[:], data[1:33])
	return m, nil
}

func UnmarshalClientVerify(data []byte) (Verify, error) {
	return unmarshalVerify(data, MsgClientVerify)
}

func UnmarshalServerVerify(data []byte) (Verify, error) {
	return unmarshalVerify(data, MsgServerVerify)
}

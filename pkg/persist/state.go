package persist

import (
	"fmt"
	"io"
)

const formatVersion uint8 = 1

var securityMagic = [4]byte{'S', 'E', 'C', 0}
var serverMagic = [4]byte{'S', 'R', 'V', 0}

// SecurityState is the persisted subset of one Security Object (/0/x)
// instance: enough to re-establish the DTLS/PSK context and know which
// server it bootstraps or registers against (spec §4.10).
type SecurityState struct {
	SSID            uint16
	ServerURI       string
	IsBootstrap     bool
	HasBootstrap    bool // this record came from a bootstrap exchange, not factory-provisioned
	PSKIdentity     []byte
	PSKKey          []byte
	NTPServer       string
	HasNTP          bool
}

// Save writes sec in this package's binary format: 4-byte magic, version,
// a feature-bit byte (bit0=HasBootstrap, bit1=HasNTP), then the fields
// (spec §4.10, §6's "SEC 0x01 has_security has_bootstrap" example header).
func (sec SecurityState) Save(w io.Writer) error {
	ww := NewWriter(w)
	ww.Magic(securityMagic)
	ww.Uint8(formatVersion)

	var features uint8
	if sec.HasBootstrap {
		features |= 1 << 0
	}
	if sec.HasNTP {
		features |= 1 << 1
	}
	ww.Uint8(features)

	ww.Uint16(sec.SSID)
	ww.String(sec.ServerURI)
	ww.Uint8(boolByte(sec.IsBootstrap))
	ww.Bytes(sec.PSKIdentity)
	ww.Bytes(sec.PSKKey)
	if sec.HasNTP {
		ww.String(sec.NTPServer)
	}
	return ww.Flush()
}

// LoadSecurityState restores a SecurityState, failing cleanly (without
// partial mutation of a caller-owned value) on a magic or version
// mismatch, per spec §4.10's "incompatible headers -> restore fails
// cleanly" rule.
func LoadSecurityState(r io.Reader) (SecurityState, error) {
	rr := NewReader(r)
	rr.Magic(securityMagic)
	version := rr.Uint8()
	if err := rr.Err(); err != nil {
		return SecurityState{}, err
	}
	if version > formatVersion {
		return SecurityState{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	features := rr.Uint8()
	var sec SecurityState
	sec.HasBootstrap = features&(1<<0) != 0
	sec.HasNTP = features&(1<<1) != 0

	sec.SSID = rr.Uint16()
	sec.ServerURI = rr.String()
	sec.IsBootstrap = rr.Uint8() != 0
	sec.PSKIdentity = rr.Bytes()
	sec.PSKKey = rr.Bytes()
	if sec.HasNTP {
		sec.NTPServer = rr.String()
	}
	if err := rr.Err(); err != nil {
		return SecurityState{}, err
	}
	return sec, nil
}

// ServerState is the persisted subset of one Server Object (/1/x)
// instance: lifetime and retry/mute configuration needed to resume
// registration without a fresh Bootstrap (spec §4.10).
type ServerState struct {
	SSID                  uint16
	LifetimeSeconds       uint32
	BootstrapOnRegFailure bool
	MuteSend              bool
}

func (srv ServerState) Save(w io.Writer) error {
	ww := NewWriter(w)
	ww.Magic(serverMagic)
	ww.Uint8(formatVersion)
	ww.Uint8(0) // no optional features defined yet for ServerState
	ww.Uint16(srv.SSID)
	ww.Uint32(srv.LifetimeSeconds)
	ww.Uint8(boolByte(srv.BootstrapOnRegFailure))
	ww.Uint8(boolByte(srv.MuteSend))
	return ww.Flush()
}

func LoadServerState(r io.Reader) (ServerState, error) {
	rr := NewReader(r)
	rr.Magic(serverMagic)
	version := rr.Uint8()
	if err := rr.Err(); err != nil {
		return ServerState{}, err
	}
	if version > formatVersion {
		return ServerState{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	_ = rr.Uint8() // features, reserved

	var srv ServerState
	srv.SSID = rr.Uint16()
	srv.LifetimeSeconds = rr.Uint32()
	srv.BootstrapOnRegFailure = rr.Uint8() != 0
	srv.MuteSend = rr.Uint8() != 0
	if err := rr.Err(); err != nil {
		return ServerState{}, err
	}
	return srv, nil
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

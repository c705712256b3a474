package device

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// TP-Link Kasa plugs speak a JSON protocol on port 9999, obfuscated
// with an autokey XOR cipher. TCP frames carry a 4-byte big-endian
// length prefix; UDP datagrams (discovery) do not.
const (
	kasaPort          = 9999
	defaultBroadcast  = "255.255.255.255"
	defaultKasaRWWait = 10 * time.Second

	cmdSysinfo    = `{"system":{"get_sysinfo":{}}}`
	cmdRealtime   = `{"emeter":{"get_realtime":{}}}`
	cmdRelayOn    = `{"system":{"set_relay_state":{"state":1}}}`
	kasaCipherKey = 171
)

// kasaEncrypt applies the autokey XOR obfuscation.
func kasaEncrypt(plain []byte) []byte {
	out := make([]byte, len(plain))
	key := byte(kasaCipherKey)
	for i, b := range plain {
		out[i] = b ^ key
		key = out[i]
	}
	return out
}

// kasaDecrypt reverses kasaEncrypt.
func kasaDecrypt(cipher []byte) []byte {
	out := make([]byte, len(cipher))
	key := byte(kasaCipherKey)
	for i, b := range cipher {
		out[i] = b ^ key
		key = b
	}
	return out
}

type kasaSysinfo struct {
	Alias      string `json:"alias"`
	Model      string `json:"model"`
	RelayState int    `json:"relay_state"`
	ErrCode    int    `json:"err_code"`
}

type kasaRealtime struct {
	// Newer hardware reports milliwatts, older hardware watts.
	PowerMW *float64 `json:"power_mw"`
	Power   *float64 `json:"power"`
	ErrCode int      `json:"err_code"`
}

func (r kasaRealtime) watts() (float64, error) {
	switch {
	case r.PowerMW != nil:
		return *r.PowerMW / 1000.0, nil
	case r.Power != nil:
		return *r.Power, nil
	default:
		return 0, fmt.Errorf("realtime reply carries no power field")
	}
}

type kasaReply struct {
	System struct {
		Sysinfo  *kasaSysinfo `json:"get_sysinfo"`
		SetRelay *struct {
			ErrCode int `json:"err_code"`
		} `json:"set_relay_state"`
	} `json:"system"`
	Emeter struct {
		Realtime *kasaRealtime `json:"get_realtime"`
	} `json:"emeter"`
}

// KasaPlug is a Device backed by one Kasa smart plug at a fixed address.
type KasaPlug struct {
	addr  string // host:port
	alias string
}

// NewKasaPlug returns a plug client for the given host (no port) and alias.
func NewKasaPlug(host, alias string) *KasaPlug {
	return &KasaPlug{
		addr:  net.JoinHostPort(host, fmt.Sprintf("%d", kasaPort)),
		alias: alias,
	}
}

func (p *KasaPlug) Alias() string { return p.alias }

// query sends one command over TCP and decodes the reply.
func (p *KasaPlug) query(ctx context.Context, cmd string) (*kasaReply, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", p.addr, err)
	}
	defer func() { _ = conn.Close() }()

	deadline := time.Now().Add(defaultKasaRWWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	payload := kasaEncrypt([]byte(cmd))
	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(payload)))
	copy(frame[4:], payload)
	if _, err := conn.Write(frame); err != nil {
		return nil, fmt.Errorf("write to %s: %w", p.addr, err)
	}

	var lenBuf [4]byte
	if _, err := readFull(conn, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("read reply header from %s: %w", p.addr, err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 || n > 1<<20 {
		return nil, fmt.Errorf("implausible reply length %d from %s", n, p.addr)
	}
	body := make([]byte, n)
	if _, err := readFull(conn, body); err != nil {
		return nil, fmt.Errorf("read reply body from %s: %w", p.addr, err)
	}

	var reply kasaReply
	if err := json.Unmarshal(kasaDecrypt(body), &reply); err != nil {
		return nil, fmt.Errorf("decode reply from %s: %w", p.addr, err)
	}
	return &reply, nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (p *KasaPlug) IsOn(ctx context.Context) (bool, error) {
	reply, err := p.query(ctx, cmdSysinfo)
	if err != nil {
		return false, err
	}
	info := reply.System.Sysinfo
	if info == nil {
		return false, fmt.Errorf("plug %s: sysinfo missing from reply", p.alias)
	}
	if info.ErrCode != 0 {
		return false, fmt.Errorf("plug %s: sysinfo err_code %d", p.alias, info.ErrCode)
	}
	return info.RelayState == 1, nil
}

func (p *KasaPlug) TurnOn(ctx context.Context) error {
	reply, err := p.query(ctx, cmdRelayOn)
	if err != nil {
		return err
	}
	if sr := reply.System.SetRelay; sr != nil && sr.ErrCode != 0 {
		return fmt.Errorf("plug %s: set_relay_state err_code %d", p.alias, sr.ErrCode)
	}
	return nil
}

func (p *KasaPlug) ReadPower(ctx context.Context) (float64, error) {
	reply, err := p.query(ctx, cmdRealtime)
	if err != nil {
		return 0, err
	}
	rt := reply.Emeter.Realtime
	if rt == nil {
		return 0, fmt.Errorf("plug %s: no emeter in reply (not a metering plug?)", p.alias)
	}
	if rt.ErrCode != 0 {
		return 0, fmt.Errorf("plug %s: get_realtime err_code %d", p.alias, rt.ErrCode)
	}
	w, err := rt.watts()
	if err != nil {
		return 0, fmt.Errorf("plug %s: %w", p.alias, err)
	}
	return w, nil
}

// KasaDiscoverer finds Kasa plugs via a UDP broadcast probe.
type KasaDiscoverer struct {
	// Broadcast is the discovery target address, default 255.255.255.255.
	Broadcast string
	// Wait is how long to collect replies, default 3s.
	Wait time.Duration
}

func NewKasaDiscoverer() *KasaDiscoverer {
	return &KasaDiscoverer{Broadcast: defaultBroadcast, Wait: 3 * time.Second}
}

// Discover broadcasts get_sysinfo and returns a Device per replying plug.
func (d *KasaDiscoverer) Discover(ctx context.Context) ([]Device, error) {
	target := d.Broadcast
	if target == "" {
		target = defaultBroadcast
	}
	wait := d.Wait
	if wait <= 0 {
		wait = 3 * time.Second
	}

	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, fmt.Errorf("open discovery socket: %w", err)
	}
	defer func() { _ = conn.Close() }()

	raddr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(target, fmt.Sprintf("%d", kasaPort)))
	if err != nil {
		return nil, fmt.Errorf("resolve broadcast %s: %w", target, err)
	}
	// Discovery datagrams are encrypted but not length-prefixed.
	if _, err := conn.WriteTo(kasaEncrypt([]byte(cmdSysinfo)), raddr); err != nil {
		return nil, fmt.Errorf("send discovery probe: %w", err)
	}

	deadline := time.Now().Add(wait)
	if cd, ok := ctx.Deadline(); ok && cd.Before(deadline) {
		deadline = cd
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	var (
		devices []Device
		seen    = map[string]bool{}
		buf     = make([]byte, 4096)
	)
	for {
		if err := ctx.Err(); err != nil {
			return devices, err
		}
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return devices, nil // collection window elapsed
			}
			return devices, fmt.Errorf("read discovery reply: %w", err)
		}
		var reply kasaReply
		if err := json.Unmarshal(kasaDecrypt(buf[:n]), &reply); err != nil {
			continue // not a Kasa reply, ignore
		}
		info := reply.System.Sysinfo
		if info == nil || info.Alias == "" {
			continue
		}
		host, _, err := net.SplitHostPort(addr.String())
		if err != nil || seen[host] {
			continue
		}
		seen[host] = true
		devices = append(devices, NewKasaPlug(host, info.Alias))
	}
}

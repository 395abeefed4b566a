package probe

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"nettopo/internal/inet"
	"nettopo/internal/iptable"
	"nettopo/internal/nterr"
)

// icmpTimestampRequest and icmpTimestampReply are the ICMP types used by
// ProbeTimestamp; golang.org/x/net/icmp has no built-in Timestamp body, so
// the 12-byte originate/receive/transmit payload is built by hand.
const (
	icmpTimestampRequest = 13
	icmpTimestampReply   = 14
)

var _ Prober = (*DefaultProber)(nil)

// DefaultProber implements Prober using gopacket for packet capture
// (grounded on the teacher's pkg/pcap.Reader / internal/engine/protocol
// parsing pattern) and golang.org/x/net/icmp for crafting ICMP requests.
// One DefaultProber is meant to be shared across a probing phase's worker
// pool; its methods are safe for concurrent use as long as each worker
// addresses a distinct target (the same one-writer-per-key discipline as
// internal/iptable.Table).
type DefaultProber struct {
	device  string
	timeout time.Duration
}

// NewDefaultProber creates a Prober that sends on and captures replies
// from device (e.g. "eth0"), waiting up to timeout for each reply.
func NewDefaultProber(device string, timeout time.Duration) *DefaultProber {
	return &DefaultProber{device: device, timeout: timeout}
}

func (p *DefaultProber) openCapture(filter string) (*pcap.Handle, error) {
	handle, err := pcap.OpenLive(p.device, 65536, true, p.timeout)
	if err != nil {
		return nil, &nterr.ProbePrimitiveUnavailable{Err: err}
	}
	if err := handle.SetBPFFilter(filter); err != nil {
		handle.Close()
		return nil, &nterr.ProbePrimitiveUnavailable{Err: err}
	}
	return handle, nil
}

func deadlineCtx(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}

// SampleIPID sends one ICMP echo request and reads the IP-ID of the echo
// reply off the wire.
func (p *DefaultProber) SampleIPID(ctx context.Context, target inet.Address) (uint16, error) {
	handle, err := p.openCapture(fmt.Sprintf("icmp and src host %s", target))
	if err != nil {
		return 0, err
	}
	defer handle.Close()

	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		return 0, &nterr.ProbePrimitiveUnavailable{Err: err}
	}
	defer conn.Close()

	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho, Code: 0,
		Body: &icmp.Echo{ID: int(target) & 0xffff, Seq: 1, Data: []byte("nettopo")},
	}
	wb, err := msg.Marshal(nil)
	if err != nil {
		return 0, err
	}
	if _, err := conn.WriteTo(wb, &net.IPAddr{IP: target.IP()}); err != nil {
		return 0, &nterr.ProbePrimitiveUnavailable{Err: err}
	}

	ctx, cancel := deadlineCtx(ctx, p.timeout)
	defer cancel()

	src := packetSource(handle)
	for {
		select {
		case <-ctx.Done():
			return 0, nterr.ProbeTimeout
		case packet, ok := <-src.Packets():
			if !ok {
				return 0, nterr.ProbeTimeout
			}
			ip4 := ipv4Layer(packet)
			if ip4 == nil {
				continue
			}
			return ip4.Id, nil
		}
	}
}

// ProbeUDPUnreachable sends a UDP datagram to a (presumably closed) port
// and reports the source address of an ICMP port-unreachable reply.
func (p *DefaultProber) ProbeUDPUnreachable(ctx context.Context, target inet.Address, port uint16) (inet.Address, bool, error) {
	filter := fmt.Sprintf("icmp and src host %s and icmp[0] == 3 and icmp[1] == 3", target)
	handle, err := p.openCapture(filter)
	if err != nil {
		return inet.Zero, false, err
	}
	defer handle.Close()

	conn, err := net.Dial("udp4", fmt.Sprintf("%s:%d", target, port))
	if err != nil {
		return inet.Zero, false, &nterr.ProbePrimitiveUnavailable{Err: err}
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("nettopo")); err != nil {
		return inet.Zero, false, &nterr.ProbePrimitiveUnavailable{Err: err}
	}

	ctx, cancel := deadlineCtx(ctx, p.timeout)
	defer cancel()

	src := packetSource(handle)
	select {
	case <-ctx.Done():
		return inet.Zero, false, nil
	case packet, ok := <-src.Packets():
		if !ok {
			return inet.Zero, false, nil
		}
		ip4 := ipv4Layer(packet)
		if ip4 == nil {
			return inet.Zero, false, nil
		}
		addr, ok := inet.FromIP(ip4.SrcIP)
		if !ok {
			return inet.Zero, false, nil
		}
		return addr, true, nil
	}
}

// ProbeTimestamp sends an ICMP timestamp request and reports whether the
// target replies, and whether its reply echoes the originate timestamp we
// sent.
func (p *DefaultProber) ProbeTimestamp(ctx context.Context, target inet.Address) (iptable.TimestampReply, error) {
	handle, err := p.openCapture(fmt.Sprintf("icmp and src host %s and icmp[0] == %d", target, icmpTimestampReply))
	if err != nil {
		return iptable.TimestampReply{}, err
	}
	defer handle.Close()

	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		return iptable.TimestampReply{}, &nterr.ProbePrimitiveUnavailable{Err: err}
	}
	defer conn.Close()

	originate := uint32(time.Now().UnixMilli() % (24 * 3600 * 1000))
	body := make([]byte, 12)
	binary.BigEndian.PutUint32(body[0:4], originate)

	msg := icmp.Message{
		Type: ipv4.ICMPType(icmpTimestampRequest), Code: 0,
		Body: &icmp.RawBody{Data: body},
	}
	wb, err := msg.Marshal(nil)
	if err != nil {
		return iptable.TimestampReply{}, err
	}
	if _, err := conn.WriteTo(wb, &net.IPAddr{IP: target.IP()}); err != nil {
		return iptable.TimestampReply{}, &nterr.ProbePrimitiveUnavailable{Err: err}
	}

	ctx, cancel := deadlineCtx(ctx, p.timeout)
	defer cancel()

	src := packetSource(handle)
	select {
	case <-ctx.Done():
		return iptable.TimestampReply{Responded: false}, nil
	case packet, ok := <-src.Packets():
		if !ok {
			return iptable.TimestampReply{Responded: false}, nil
		}
		icmpLayer := packet.Layer(layers.LayerTypeICMPv4)
		if icmpLayer == nil {
			return iptable.TimestampReply{Responded: true}, nil
		}
		payload := icmpLayer.LayerPayload()
		echoes := len(payload) >= 4 && binary.BigEndian.Uint32(payload[0:4]) == originate
		return iptable.TimestampReply{Responded: true, EchoesRequestTimestamp: echoes}, nil
	}
}

// ResolveHostname performs a reverse-DNS lookup.
func (p *DefaultProber) ResolveHostname(ctx context.Context, target inet.Address) (string, bool, error) {
	ctx, cancel := deadlineCtx(ctx, p.timeout)
	defer cancel()
	names, err := net.DefaultResolver.LookupAddr(ctx, target.String())
	if err != nil {
		return "", false, nil //nolint:nilerr // a lookup miss is not a probe failure
	}
	if len(names) == 0 {
		return "", false, nil
	}
	return names[0], true, nil
}

func packetSource(handle *pcap.Handle) *gopacket.PacketSource {
	return gopacket.NewPacketSource(handle, handle.LinkType())
}

func ipv4Layer(packet gopacket.Packet) *layers.IPv4 {
	l := packet.Layer(layers.LayerTypeIPv4)
	if l == nil {
		return nil
	}
	ip4, _ := l.(*layers.IPv4)
	return ip4
}

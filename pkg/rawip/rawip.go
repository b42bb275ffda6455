// Copyright (c) 2026 The Gnet Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package rawip builds and parses the IPv4 datagrams exchanged over a raw
// socket that has IP_HDRINCL enabled.
//
// With IP_HDRINCL the kernel sends whatever bytes it is handed, so the
// packet must start with a complete IPv4 header. Received datagrams always
// carry the IPv4 header, whether or not IP_HDRINCL is set.
package rawip

import (
	"fmt"
	"net"

	"github.com/valyala/bytebufferpool"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// DefaultTTL is the time-to-live NewHeader stamps on outgoing packets.
const DefaultTTL = 64

// ProtocolICMP is the IANA protocol number of ICMP for IPv4.
const ProtocolICMP = 1

// NewHeader returns an IPv4 header for a datagram from src to dst carrying
// the given IP protocol. A nil src lets the kernel fill in the source address.
func NewHeader(src, dst net.IP, protocol int) *ipv4.Header {
	return &ipv4.Header{
		Version:  ipv4.Version,
		Len:      ipv4.HeaderLen,
		TTL:      DefaultTTL,
		Protocol: protocol,
		Src:      src.To4(),
		Dst:      dst.To4(),
	}
}

// AppendPacket appends the wire form of h followed by payload to buf.
// TotalLen and the header checksum are computed from payload, whatever h holds.
func AppendPacket(buf *bytebufferpool.ByteBuffer, h *ipv4.Header, payload []byte) error {
	if h.Dst.To4() == nil {
		return fmt.Errorf("rawip: invalid destination %v", h.Dst)
	}
	hdr := *h
	if hdr.Len == 0 {
		hdr.Len = ipv4.HeaderLen + len(hdr.Options)
	}
	hdr.TotalLen = hdr.Len + len(payload)
	hdr.Checksum = 0
	b, err := hdr.Marshal()
	if err != nil {
		return err
	}
	cs := checksum(b)
	b[10], b[11] = byte(cs>>8), byte(cs)
	_, _ = buf.Write(b)
	_, _ = buf.Write(payload)
	return nil
}

// Marshal returns h followed by payload as one freshly allocated packet.
func Marshal(h *ipv4.Header, payload []byte) ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if err := AppendPacket(buf, h, payload); err != nil {
		return nil, err
	}
	return append([]byte(nil), buf.B...), nil
}

// Parse splits a datagram read from a raw socket into its IPv4 header and
// the payload behind it.
func Parse(b []byte) (*ipv4.Header, []byte, error) {
	h, err := ipv4.ParseHeader(b)
	if err != nil {
		return nil, nil, err
	}
	if h.Len > len(b) {
		return nil, nil, fmt.Errorf("rawip: header length %d exceeds packet size %d", h.Len, len(b))
	}
	return h, b[h.Len:], nil
}

// ICMPEcho returns an ICMP echo request with its checksum filled in.
func ICMPEcho(id, seq int, data []byte) ([]byte, error) {
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Body: &icmp.Echo{ID: id & 0xFFFF, Seq: seq & 0xFFFF, Data: data},
	}
	return msg.Marshal(nil)
}

// ParseICMP parses the payload of an ICMP datagram.
func ParseICMP(b []byte) (*icmp.Message, error) {
	return icmp.ParseMessage(ProtocolICMP, b)
}

// checksum is the RFC 1071 internet checksum.
func checksum(b []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(b); i += 2 {
		sum += uint32(b[i])<<8 | uint32(b[i+1])
	}
	if len(b)%2 == 1 {
		sum += uint32(b[len(b)-1]) << 8
	}
	for sum>>16 != 0 {
		sum = sum&0xFFFF + sum>>16
	}
	return ^uint16(sum)
}

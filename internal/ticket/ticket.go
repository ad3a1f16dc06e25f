// Package ticket implements the opaque, URL-safe share ticket handed from
// `share(ns, mode)` to a peer's `import(ticket)`. It encodes the namespace id, the issuing node's reachable
// addresses, and the requested capability into a small versioned binary
// struct, base64url-encoded — a Go-native analogue of
// `iroh_docs::DocTicket`, not a port of its wire format.
package ticket

import (
	"encoding/base64"
	"encoding/binary"
	"net"
	"strconv"

	"github.com/Aman-CERP/insightd/internal/apperrors"
	"github.com/Aman-CERP/insightd/internal/keyspace"
)

// Capability is the access level a ticket grants its importer.
type Capability uint8

const (
	// Read grants read-only replication of the collection.
	Read Capability = iota
	// Write grants read-write replication.
	Write
)

const currentVersion = 1

// Ticket is the decoded form of a share string: enough for a peer to
// locate the issuing node and begin replicating one namespace.
type Ticket struct {
	Namespace  keyspace.NamespaceID
	Addresses  []string // host:port, direct first then relayed
	Capability Capability
}

// Encode renders t as an opaque, URL-safe string.
func (t Ticket) Encode() string {
	buf := make([]byte, 0, 64+len(t.Addresses)*32)
	buf = append(buf, currentVersion, byte(t.Capability))
	buf = append(buf, t.Namespace[:]...)

	var countBuf [2]byte
	binary.BigEndian.PutUint16(countBuf[:], uint16(len(t.Addresses)))
	buf = append(buf, countBuf[:]...)

	for _, addr := range t.Addresses {
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(addr)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, addr...)
	}

	return base64.URLEncoding.EncodeToString(buf)
}

// Decode parses a share string produced by Encode.
func Decode(s string) (Ticket, error) {
	buf, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return Ticket{}, apperrors.New(apperrors.ErrCodeMalformedTicket, "ticket is not valid base64url", err)
	}
	if len(buf) < 2+32+2 {
		return Ticket{}, apperrors.New(apperrors.ErrCodeMalformedTicket, "ticket is too short", nil)
	}
	if buf[0] != currentVersion {
		return Ticket{}, apperrors.New(apperrors.ErrCodeMalformedTicket, "unsupported ticket version "+strconv.Itoa(int(buf[0])), nil)
	}

	t := Ticket{Capability: Capability(buf[1])}
	copy(t.Namespace[:], buf[2:34])

	offset := 34
	count := int(binary.BigEndian.Uint16(buf[offset : offset+2]))
	offset += 2

	t.Addresses = make([]string, 0, count)
	for i := 0; i < count; i++ {
		if offset+2 > len(buf) {
			return Ticket{}, apperrors.New(apperrors.ErrCodeMalformedTicket, "ticket address table truncated", nil)
		}
		n := int(binary.BigEndian.Uint16(buf[offset : offset+2]))
		offset += 2
		if offset+n > len(buf) {
			return Ticket{}, apperrors.New(apperrors.ErrCodeMalformedTicket, "ticket address truncated", nil)
		}
		t.Addresses = append(t.Addresses, string(buf[offset:offset+n]))
		offset += n
	}

	return t, nil
}

// validateAddress is used by callers assembling a ticket from local
// listener addresses, to fail fast on a malformed host:port before it is
// ever encoded and handed to a peer.
func validateAddress(addr string) error {
	_, _, err := net.SplitHostPort(addr)
	if err != nil {
		return apperrors.New(apperrors.ErrCodeMalformedTicket, "invalid address "+addr, err)
	}
	return nil
}

// New builds a Ticket for namespace ns with the given capability,
// validating every address in addrs.
func New(ns keyspace.NamespaceID, addrs []string, capability Capability) (Ticket, error) {
	for _, a := range addrs {
		if err := validateAddress(a); err != nil {
			return Ticket{}, err
		}
	}
	return Ticket{Namespace: ns, Addresses: addrs, Capability: capability}, nil
}

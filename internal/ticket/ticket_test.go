package ticket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/insightd/internal/keyspace"
)

func TestEncodeDecode_RoundTrips(t *testing.T) {
	ns, err := keyspace.NewNamespaceID()
	require.NoError(t, err)

	original, err := New(ns, []string{"192.168.1.10:4433", "relay.example.com:443"}, Write)
	require.NoError(t, err)

	encoded := original.Encode()
	decoded, err := Decode(encoded)

	require.NoError(t, err)
	assert.Equal(t, original.Namespace, decoded.Namespace)
	assert.Equal(t, original.Addresses, decoded.Addresses)
	assert.Equal(t, Write, decoded.Capability)
}

func TestEncode_IsURLSafe(t *testing.T) {
	ns, err := keyspace.NewNamespaceID()
	require.NoError(t, err)
	tk, err := New(ns, nil, Read)
	require.NoError(t, err)

	encoded := tk.Encode()

	for _, r := range encoded {
		assert.False(t, r == '+' || r == '/', "ticket must not contain standard base64 characters")
	}
}

func TestDecode_RejectsGarbage(t *testing.T) {
	_, err := Decode("not a ticket at all")
	assert.Error(t, err)
}

func TestDecode_RejectsTruncatedTicket(t *testing.T) {
	ns, err := keyspace.NewNamespaceID()
	require.NoError(t, err)
	tk, err := New(ns, []string{"10.0.0.1:9000"}, Read)
	require.NoError(t, err)

	full := tk.Encode()
	_, err = Decode(full[:len(full)/2])

	assert.Error(t, err)
}

func TestNew_RejectsMalformedAddress(t *testing.T) {
	ns, err := keyspace.NewNamespaceID()
	require.NoError(t, err)

	_, err = New(ns, []string{"not-a-host-port"}, Read)

	assert.Error(t, err)
}

func TestDecode_NoAddressesRoundTrips(t *testing.T) {
	ns, err := keyspace.NewNamespaceID()
	require.NoError(t, err)
	tk, err := New(ns, nil, Read)
	require.NoError(t, err)

	decoded, err := Decode(tk.Encode())

	require.NoError(t, err)
	assert.Empty(t, decoded.Addresses)
}

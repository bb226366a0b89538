package tlsrecord

import (
	"testing"

	"github.com/malbeclabs/networkd/internal/crypto"
	"github.com/stretchr/testify/require"
)

func TestTLSRecord_SealOpen_RoundTrip(t *testing.T) {
	t.Parallel()
	secret := make([]byte, crypto.SHA256Size)
	for i := range secret {
		secret[i] = byte(i)
	}
	write := NewDirection(crypto.AES128GCM(), secret)
	read := NewDirection(crypto.AES128GCM(), secret)

	record, err := write.Seal(ContentTypeApplicationData, []byte("hello tls 1.3"))
	require.NoError(t, err)

	var hdr [OuterHeaderSize]byte
	copy(hdr[:], record[:OuterHeaderSize])
	ct := record[OuterHeaderSize:]

	typ, plain, err := read.Open(hdr, ct)
	require.NoError(t, err)
	require.Equal(t, ContentTypeApplicationData, typ)
	require.Equal(t, []byte("hello tls 1.3"), plain)
}

func TestTLSRecord_NonceIncorporatesSequence(t *testing.T) {
	t.Parallel()
	secret := make([]byte, crypto.SHA256Size)
	d := NewDirection(crypto.ChaCha20Poly1305(), secret)

	n0 := append([]byte(nil), d.nonce()...)
	d.seq++
	n1 := d.nonce()
	require.NotEqual(t, n0, n1)
}

func TestTLSRecord_Open_RejectsTamperedRecord(t *testing.T) {
	t.Parallel()
	secret := make([]byte, crypto.SHA256Size)
	write := NewDirection(crypto.AES128GCM(), secret)
	read := NewDirection(crypto.AES128GCM(), secret)

	record, err := write.Seal(ContentTypeHandshake, []byte("ServerHello..."))
	require.NoError(t, err)
	record[len(record)-1] ^= 0x01

	var hdr [OuterHeaderSize]byte
	copy(hdr[:], record[:OuterHeaderSize])
	_, _, err = read.Open(hdr, record[OuterHeaderSize:])
	require.ErrorIs(t, err, ErrDecrypt)
}

func TestTLSRecord_Seal_AdvancesSequenceMonotonically(t *testing.T) {
	t.Parallel()
	secret := make([]byte, crypto.SHA256Size)
	write := NewDirection(crypto.AES128GCM(), secret)
	require.Equal(t, uint64(0), write.seq)
	_, err := write.Seal(ContentTypeApplicationData, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), write.seq)
	_, err = write.Seal(ContentTypeApplicationData, []byte("b"))
	require.NoError(t, err)
	require.Equal(t, uint64(2), write.seq)
}

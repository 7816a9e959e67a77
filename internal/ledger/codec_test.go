package ledger

import (
	"encoding/binary"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usexrp/agentwallet/internal/signer"
)

const (
	testSeed        = "snoPBrXtMeMyMHUVTgbuqAfg1SUTb"
	testDestination = "rrrrrrrrrrrrrrrrrrrrBZbvji"
)

func testPayment(t *testing.T) (*Payment, *signer.Keypair) {
	t.Helper()
	kp, err := signer.KeypairFromSeed(testSeed)
	require.NoError(t, err)
	dest, err := signer.DecodeAddress(testDestination)
	require.NoError(t, err)

	return &Payment{
		Account:            kp.AccountID(),
		Destination:        dest,
		Amount:             1_500_000,
		Fee:                12,
		Sequence:           5,
		LastLedgerSequence: 120,
	}, kp
}

func TestPaymentSerializeLayout(t *testing.T) {
	p, kp := testPayment(t)
	p.SigningPubKey = kp.PublicKey()

	blob := p.Serialize(false)

	assert.Equal(t, "120000", hex.EncodeToString(blob[0:3]))
	assert.Equal(t, "2200000000", hex.EncodeToString(blob[3:8]))
	assert.Equal(t, "2400000005", hex.EncodeToString(blob[8:13]))
	assert.Equal(t, "201b00000078", hex.EncodeToString(blob[13:19]))
	assert.Equal(t, "61400000000016e360", hex.EncodeToString(blob[19:28]))
	assert.Equal(t, "68400000000000000c", hex.EncodeToString(blob[28:37]))
	assert.Equal(t, byte(0x73), blob[37])
	assert.Equal(t, byte(33), blob[38])
	assert.Equal(t, kp.PublicKey(), blob[39:72])
	assert.Equal(t, []byte{0x81, 20}, blob[72:74])
	assert.Equal(t, []byte{0x83, 20}, blob[94:96])
	assert.Len(t, blob, 116)
}

func TestPaymentSign(t *testing.T) {
	p, kp := testPayment(t)

	signed, err := p.Sign(kp)
	require.NoError(t, err)

	message := append(append([]byte{}, signingPrefix...), p.Serialize(false)...)
	assert.True(t, kp.Verify(message, p.TxnSignature))
	assert.Equal(t, p.Serialize(true), signed.Blob)
	assert.Equal(t, TransactionHash(signed.Blob), signed.Hash)
	assert.Len(t, signed.Hash, 64)
	assert.Equal(t, strings.ToUpper(hex.EncodeToString(signed.Blob)), signed.BlobHex())

	// the signature sits between the public key and the account
	assert.Equal(t, byte(0x74), signed.Blob[72])
	assert.Equal(t, int(signed.Blob[73]), len(p.TxnSignature))
}

func TestPaymentSignRejectsBadAmounts(t *testing.T) {
	for _, amount := range []uint64{0, MaxDrops + 1} {
		p, kp := testPayment(t)
		p.Amount = amount
		_, err := p.Sign(kp)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}
}

func TestPaymentSignRejectsForeignAccount(t *testing.T) {
	p, kp := testPayment(t)
	p.Account = signer.AccountID{}
	_, err := p.Sign(kp)
	assert.Error(t, err)
}

func TestNativeAmountEncoding(t *testing.T) {
	p, _ := testPayment(t)
	p.Amount = MaxDrops
	blob := p.Serialize(false)
	v := binary.BigEndian.Uint64(blob[20:28])
	assert.Equal(t, nativeAmountFlag|MaxDrops, v)
}

// Blobs and hashes for fixed payments from the published test seeds.
func TestPaymentGoldenBlobs(t *testing.T) {
	testCases := []struct {
		name string
		seed string
		blob string
		hash string
	}{
		{
			name: "secp256k1 genesis",
			seed: "snoPBrXtMeMyMHUVTgbuqAfg1SUTb",
			blob: "12000022000000002400000001201B000000646140000000000F424068400000000000000C" +
				"73210330E7FC9D56BB25D6893BA3F317AE5BCF33B3291BD63DB32654A313222F7FD020" +
				"7446304402202F496BE93FBFF2B33FB87DA71C3088951A15EE1766FD377CE6BAFECF17DD54D8" +
				"02205C4C0571877ABFDFBCBFE6FAA545D90779785886C662B0C6B6C2299E413C4C61" +
				"8114B5F762798A53D543A014CAF8B297CFF8F2F937E8" +
				"8314F667B0CA50CC7709A220B0561B85E53A48461FA8",
			hash: "4103D18737107D9A29B4C2A0DE779891935AD0C96B173A7B44CCB96B61C86A11",
		},
		{
			name: "ed25519",
			seed: "sEdSKaCy2JT7JaM7v95H9SxkhP9wS2r",
			blob: "12000022000000002400000001201B000000646140000000000F424068400000000000000C" +
				"7321ED01FA53FA5A7E77798F882ECE20B1ABC00BB358A9E55A202D0D0676BD0CE37A63" +
				"74406FDAD6BC0D34BFCDC21CA4BFB36756B0DAC6D340D3BA8FD3430C1DD465CFC3A17D5C212B" +
				"63AE4816EA56BEBA81BCF5193B771BBC99C86889CF511C3BFF1DD207" +
				"8114D28B177E48D9A8D057E70F7E464B498367281B98" +
				"8314F667B0CA50CC7709A220B0561B85E53A48461FA8",
			hash: "572BB13F3772E275A649E0E542E07074D7CEEC9E5E07F6A4FDEDD29C226D288A",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			kp, err := signer.KeypairFromSeed(tc.seed)
			require.NoError(t, err)
			dest, err := signer.DecodeAddress("rPT1Sjq2YGrBMTttX4GZHjKu9dyfzbpAYe")
			require.NoError(t, err)

			p := &Payment{
				Account:            kp.AccountID(),
				Destination:        dest,
				Amount:             1_000_000,
				Fee:                12,
				Sequence:           1,
				LastLedgerSequence: 100,
			}
			signed, err := p.Sign(kp)
			require.NoError(t, err)

			assert.Equal(t, tc.blob, signed.BlobHex())
			assert.Equal(t, tc.hash, signed.Hash)
		})
	}
}

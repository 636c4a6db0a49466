package core

import (
	"crypto/ecdsa"
	"testing"
)

func TestP256SignVerify(t *testing.T) {
	priv, err := GenerateP256Key()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	msg := []byte("transfer 10 GAS")
	sig, err := SignP256(priv, msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !VerifyP256(&priv.PublicKey, msg, sig) {
		t.Fatalf("expected signature to verify")
	}
	if VerifyP256(&priv.PublicKey, []byte("tampered"), sig) {
		t.Fatalf("expected signature over different message to fail")
	}
}

func TestP256CompressedPointRoundTrip(t *testing.T) {
	priv, _ := GenerateP256Key()
	compressed := CompressP256PublicKey(&priv.PublicKey)
	if len(compressed) != 33 {
		t.Fatalf("expected 33-byte compressed point, got %d", len(compressed))
	}
	pub, err := DecompressP256PublicKey(compressed)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if pub.X.Cmp(priv.X) != 0 || pub.Y.Cmp(priv.Y) != 0 {
		t.Fatalf("decompressed point mismatch")
	}
}

func TestCanonicalMultiSigVerify(t *testing.T) {
	const n = 4
	keys := make([]*ecdsa.PublicKey, n)
	signers := make([]*ecdsa.PrivateKey, n)
	for i := 0; i < n; i++ {
		priv, err := GenerateP256Key()
		if err != nil {
			t.Fatalf("generate %d: %v", i, err)
		}
		keys[i] = &priv.PublicKey
		signers[i] = priv
	}

	msg := []byte("tx-hash")
	sigB, _ := SignP256(signers[1], msg)
	sigD, _ := SignP256(signers[3], msg)
	sigA, _ := SignP256(signers[0], msg)

	if !CanonicalMultiSigVerify(keys, 2, [][]byte{sigB, sigD}, msg) {
		t.Fatalf("expected [sigB, sigD] to verify in order")
	}
	if CanonicalMultiSigVerify(keys, 2, [][]byte{sigD, sigB}, msg) {
		t.Fatalf("expected [sigD, sigB] to fail: out of order")
	}
	if CanonicalMultiSigVerify(keys, 2, [][]byte{sigB, sigA}, msg) {
		t.Fatalf("expected [sigB, sigA] to fail: A already skipped")
	}
}

func TestBLSSignVerifyAndAggregate(t *testing.T) {
	sk1, pk1 := GenerateBLSKey()
	sk2, pk2 := GenerateBLSKey()
	msg := []byte("block-signing-data")

	sig1 := SignBLS(sk1, msg)
	sig2 := SignBLS(sk2, msg)
	if !VerifyBLS(pk1, msg, sig1) {
		t.Fatalf("expected sig1 to verify")
	}
	if !VerifyBLS(pk2, msg, sig2) {
		t.Fatalf("expected sig2 to verify")
	}

	agg, err := AggregateBLS([][]byte{sig1, sig2})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(agg) == 0 {
		t.Fatalf("expected non-empty aggregate signature")
	}
}

func TestPQSignVerify(t *testing.T) {
	pub, priv, err := GeneratePQKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	msg := []byte("post-quantum payload")
	sig, err := SignPQ(priv, msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	ok, err := VerifyPQ(pub, msg, sig)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected PQ signature to verify")
	}
}

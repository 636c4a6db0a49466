package core

// HD wallet implementation for the application-chain stack.
//
// Features
// --------
//   * secp256r1 (P-256) key-pairs, matching the System.Crypto.CheckSig
//     verification scheme wired in interops_crypto.go.
//   * Hierarchical Deterministic derivation (SLIP-0010-style HMAC-SHA512
//     chaining), reduced into the P-256 scalar field per child key.
//   * BIP-39 mnemonic utilities (12-/24-word human recovery phrases).
//   * Address derivation: Hash160 of a single-signature verification script
//     (PUSHDATA(pubkey) SYSCALL System.Crypto.CheckSig), the single-sig
//     template tx_verify.go's parseVerificationTemplate recognises.
//   * Transaction signing: builds the witness pair (invocation +
//     verification script) for tx.Signers / tx.Witnesses.
//
// Import hygiene: wallet depends only on crypto, vm script/opcode helpers
// and the bip39/logrus libraries; it does not import ledger, consensus or
// network to stay at the lowest tier.

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/hmac"
	crand "crypto/rand"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	log "github.com/sirupsen/logrus"
	bip39 "github.com/tyler-smith/go-bip39"
)

//---------------------------------------------------------------------
// Constants and helpers
//---------------------------------------------------------------------

const (
	hardenedOffset uint32 = 0x80000000

	masterHMACKey = "synnergy-core wallet seed" // SLIP-0010-style master-key string
)

func SetWalletLogger(l *log.Logger) { globalLogger = l }

var globalLogger = log.New()

//---------------------------------------------------------------------
// HDWallet structure
//---------------------------------------------------------------------

// HDWallet keeps master key material in-memory only.
// *NEVER* persist the private fields directly – use encrypted keystores instead.
//
// Derivation model: SLIP-0010 hardened children only, path m / account' / index'
// (change path omitted; wallets may overlay a change=1 hardened level if desired).
type HDWallet struct {
	seed        []byte
	masterKey   []byte
	masterChain []byte
	logger      *log.Logger
}

// Seed returns a copy of the wallet's master seed. Callers should securely wipe
// the returned slice after use.
func (w *HDWallet) Seed() []byte {
	out := make([]byte, len(w.seed))
	copy(out, w.seed)
	return out
}

//---------------------------------------------------------------------
// Wallet creation utilities
//---------------------------------------------------------------------

// NewRandomWallet generates entropyBits (128/256) of RNG entropy, returns wallet + mnemonic.
// The caller MUST wipe the mnemonic or store it securely.
func NewRandomWallet(entropyBits int) (*HDWallet, string, error) {
	if entropyBits != 128 && entropyBits != 256 {
		return nil, "", fmt.Errorf("unsupported entropy size %d", entropyBits)
	}

	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return nil, "", fmt.Errorf("entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, "", fmt.Errorf("mnemonic: %w", err)
	}
	seed := bip39.NewSeed(mnemonic, "")
	w, err := NewHDWalletFromSeed(seed, globalLogger)
	if err != nil {
		return nil, "", err
	}
	return w, mnemonic, nil
}

// WalletFromMnemonic imports an existing BIP-39 phrase.
func WalletFromMnemonic(mnemonic, passphrase string) (*HDWallet, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("invalid mnemonic checksum")
	}
	seed := bip39.NewSeed(mnemonic, passphrase)
	return NewHDWalletFromSeed(seed, globalLogger)
}

func NewHDWalletFromSeed(seed []byte, lg *log.Logger) (*HDWallet, error) {
	if len(seed) < 16 {
		return nil, errors.New("seed too short")
	}

	I := hmacSHA512([]byte(masterHMACKey), seed)

	w := &HDWallet{
		seed:        seed,
		masterKey:   I[:32],
		masterChain: I[32:],
		logger:      lg,
	}

	lg.Infof("wallet: master key initialised (%d bytes seed)", len(seed))
	return w, nil
}

//---------------------------------------------------------------------
// Derivation path helpers
//---------------------------------------------------------------------

// derivePrivate returns the key material & new chain-code for a (hardened) index.
func derivePrivate(parentKey, parentChain []byte, index uint32) (key, ccode []byte, err error) {
	if index < hardenedOffset {
		return nil, nil, errors.New("non-hardened derivation not supported")
	}
	data := make([]byte, 1+32+4)
	copy(data[1:], parentKey)
	binary.BigEndian.PutUint32(data[33:], index)

	I := hmacSHA512(parentChain, data)
	key = I[:32]
	ccode = I[32:]
	return key, ccode, nil
}

func hmacSHA512(key, data []byte) []byte {
	h := hmac.New(sha512.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// p256KeyFromScalar reduces a 32-byte derived key mod the P-256 group order
// and returns the resulting private key. A zero scalar (vanishingly
// unlikely) is rejected rather than silently producing the identity key.
func p256KeyFromScalar(k []byte) (*ecdsa.PrivateKey, error) {
	curve := elliptic.P256()
	d := new(big.Int).SetBytes(k)
	d.Mod(d, curve.Params().N)
	if d.Sign() == 0 {
		return nil, errors.New("wallet: derived scalar is zero, re-derive with a different index")
	}
	priv := new(ecdsa.PrivateKey)
	priv.Curve = curve
	priv.D = d
	priv.X, priv.Y = curve.ScalarBaseMult(d.Bytes())
	return priv, nil
}

// PrivateKey returns the (P-256) private key for derivation path m / account' / index'.
// account, index are hardened internally.
func (w *HDWallet) PrivateKey(account, index uint32) (*ecdsa.PrivateKey, error) {
	account |= hardenedOffset
	index |= hardenedOffset

	k1, c1, err := derivePrivate(w.masterKey, w.masterChain, account)
	if err != nil {
		return nil, err
	}
	k2, _, err := derivePrivate(k1, c1, index)
	if err != nil {
		return nil, err
	}
	return p256KeyFromScalar(k2)
}

//---------------------------------------------------------------------
// Address (verification script) helpers
//---------------------------------------------------------------------

// verificationScriptFor builds the single-signature verification script
// for pub: PUSHDATA1(compressed pubkey) SYSCALL(System.Crypto.CheckSig).
// Its Hash160 is the account's script hash, and tx_verify.go's
// parseVerificationTemplate recognises it as a single-sig template.
func verificationScriptFor(pub *ecdsa.PublicKey) []byte {
	compressed := CompressP256PublicKey(pub)
	script := make([]byte, 0, 2+len(compressed)+5)
	script = append(script, byte(PUSHDATA1), byte(len(compressed)))
	script = append(script, compressed...)
	script = append(script, encodeSyscallID("System.Crypto.CheckSig")...)
	return script
}

// encodeSyscallID renders a SYSCALL instruction for name (app_engine.go's
// InteropID scheme: little-endian 4-byte SHA-256 prefix).
func encodeSyscallID(name string) []byte {
	return append([]byte{byte(SYSCALL)}, InteropID(name)...)
}

// NewAddress derives account+index and returns the script hash of its
// single-signature verification script.
func (w *HDWallet) NewAddress(account, index uint32) (UInt160, error) {
	priv, err := w.PrivateKey(account, index)
	if err != nil {
		return UInt160{}, err
	}
	return Hash160(verificationScriptFor(&priv.PublicKey)), nil
}

//---------------------------------------------------------------------
// Transaction signing
//---------------------------------------------------------------------

// SignTx derives (account, index), signs tx's signing digest, and appends a
// matching Signer/Witness pair. Returns the signer's account.
func (w *HDWallet) SignTx(tx *Transaction, account, index uint32) (UInt160, error) {
	if tx == nil {
		return UInt160{}, errors.New("nil transaction")
	}
	priv, err := w.PrivateKey(account, index)
	if err != nil {
		return UInt160{}, err
	}
	verScript := verificationScriptFor(&priv.PublicKey)
	acct := Hash160(verScript)

	// The signer is part of the unsigned body, so it is added before hashing.
	tx.Signers = append(tx.Signers, Signer{Account: acct, Scopes: WitnessScopeCalledByEntry})
	hash, err := tx.Hash()
	if err != nil {
		tx.Signers = tx.Signers[:len(tx.Signers)-1]
		return UInt160{}, err
	}
	sig, err := SignP256(priv, append(encodeNetworkMagic(NetworkMagic), hash.Bytes()...))
	if err != nil {
		tx.Signers = tx.Signers[:len(tx.Signers)-1]
		return UInt160{}, err
	}
	invScript := make([]byte, 0, 2+len(sig))
	invScript = append(invScript, byte(PUSHDATA1), byte(len(sig)))
	invScript = append(invScript, sig...)

	tx.Witnesses = append(tx.Witnesses, Witness{InvocationScript: invScript, VerificationScript: verScript})

	w.logger.Printf("signed tx %s by %s (account %d idx %d)", hash.String(), acct.String(), account, index)
	return acct, nil
}

//---------------------------------------------------------------------
// Utility helpers
//---------------------------------------------------------------------

// RandomMnemonicEntropy produces cryptographically-secure random entropy of given bits.
func RandomMnemonicEntropy(bits int) ([]byte, error) {
	if bits%32 != 0 {
		return nil, errors.New("entropy bits must be multiple of 32")
	}
	b := make([]byte, bits/8)
	if _, err := crand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Wipe zeroes a byte slice in-place (best-effort – GC might still copy).
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

package core

import (
	"crypto/ecdsa"
	"errors"
)

// signDataFor returns the network-bound digest a witness's signature must
// cover for the engine's current script container (spec.md §4.G
// "sign-data = network-magic ∥ tx-hash"). A block header container is
// signed the same way, as network magic ∥ header hash; any other container
// is an error.
func (ae *ApplicationEngine) signDataFor() ([]byte, error) {
	switch c := ae.ScriptContainer.(type) {
	case *Transaction:
		hash, err := c.Hash()
		if err != nil {
			return nil, err
		}
		return append(encodeNetworkMagic(NetworkMagic), hash.Bytes()...), nil
	case *BlockHeader:
		hash, err := c.Hash()
		if err != nil {
			return nil, err
		}
		return append(encodeNetworkMagic(NetworkMagic), hash.Bytes()...), nil
	default:
		return nil, errors.New("vm: no script container to sign against")
	}
}

func init() {
	RegisterInterop(&InteropDescriptor{
		Name:          "System.Crypto.CheckSig",
		Price:         1 << 15,
		RequiredFlags: CallFlagNone,
		Handler: func(ae *ApplicationEngine) error {
			sigItem, err := ae.popItem()
			if err != nil {
				return err
			}
			pubItem, err := ae.popItem()
			if err != nil {
				return err
			}
			sig, err := ItemBytes(sigItem)
			if err != nil {
				return err
			}
			pubBytes, err := ItemBytes(pubItem)
			if err != nil {
				return err
			}
			pub, err := DecompressP256PublicKey(pubBytes)
			if err != nil {
				return ae.pushItem(BooleanItem{Value: false})
			}
			msg, err := ae.signDataFor()
			if err != nil {
				return err
			}
			return ae.pushItem(BooleanItem{Value: VerifyP256(pub, msg, sig)})
		},
	})

	RegisterInterop(&InteropDescriptor{
		Name:          "System.Crypto.CheckMultisig",
		Price:         1 << 16,
		RequiredFlags: CallFlagNone,
		Handler: func(ae *ApplicationEngine) error {
			sigsItem, err := ae.popItem()
			if err != nil {
				return err
			}
			sigsArr, ok := sigsItem.(*ArrayItem)
			if !ok {
				return errors.New("vm: CheckMultisig signatures must be an array")
			}
			pubsItem, err := ae.popItem()
			if err != nil {
				return err
			}
			pubsArr, ok := pubsItem.(*ArrayItem)
			if !ok {
				return errors.New("vm: CheckMultisig pubkeys must be an array")
			}

			pubkeys, err := decompressAll(pubsArr.Items)
			if err != nil {
				return ae.pushItem(BooleanItem{Value: false})
			}
			sigs, err := byteStrings(sigsArr.Items)
			if err != nil {
				return err
			}
			msg, err := ae.signDataFor()
			if err != nil {
				return err
			}
			return ae.pushItem(BooleanItem{Value: CanonicalMultiSigVerify(pubkeys, len(sigs), sigs, msg)})
		},
	})
}

func decompressAll(items []StackItem) ([]*ecdsa.PublicKey, error) {
	pubkeys := make([]*ecdsa.PublicKey, len(items))
	for i, item := range items {
		b, err := ItemBytes(item)
		if err != nil {
			return nil, err
		}
		pub, err := DecompressP256PublicKey(b)
		if err != nil {
			return nil, err
		}
		pubkeys[i] = pub
	}
	return pubkeys, nil
}

func byteStrings(items []StackItem) ([][]byte, error) {
	out := make([][]byte, len(items))
	for i, item := range items {
		b, err := ItemBytes(item)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

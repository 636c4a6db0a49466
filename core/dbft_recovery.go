package core

import "errors"

// AggregateCommitSignatures compacts the BLS companion signatures carried
// alongside each Commit into a single BLS aggregate. buildRecoveryMessageLocked
// does not call it: a RecoveryMessage carries every CommitCompact with its own
// individual signatures. The final block witness is assembled in
// checkCommitsLocked from the per-validator ECDSA Signature field, since
// CanonicalMultiSigVerify expects one ECDSA signature per validator slot,
// not a BLS aggregate.
func AggregateCommitSignatures(commits []CommitCompact) ([]byte, error) {
	var sigs [][]byte
	for _, c := range commits {
		if len(c.BLSSignature) > 0 {
			sigs = append(sigs, c.BLSSignature)
		}
	}
	if len(sigs) == 0 {
		return nil, errors.New("dbft: no BLS commit signatures to aggregate")
	}
	return AggregateBLS(sigs)
}

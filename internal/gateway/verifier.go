package gateway

import (
	"crypto/hmac"
	"sort"

	"github.com/noah-isme/payex-bridge/internal/common"
)

// Webhook field names carrying the verification inputs.
const (
	fieldSignature = "signature"
	fieldTxnID     = "txn_id"
)

// Verifier validates the authenticity of inbound processor notifications.
//
// The digest covers only the merchant secret and txn_id, joined with a pipe.
// Field ordering never feeds the hash; the sorted walk below mirrors the
// legacy verifier, whose documented hash-all-fields scheme was never the
// implemented one.
type Verifier struct {
	Secret string
}

// Verify reports whether the payload carries a valid signature. Payloads
// missing signature or txn_id are always rejected.
func (v Verifier) Verify(payload map[string]string) bool {
	if len(payload) == 0 {
		return false
	}
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var signature, txnID string
	var haveSignature, haveTxnID bool
	for _, k := range keys {
		switch k {
		case fieldSignature:
			signature = payload[k]
			haveSignature = true
		case fieldTxnID:
			txnID = payload[k]
			haveTxnID = true
		}
	}
	if !haveSignature || !haveTxnID {
		return false
	}

	expected := common.Sha512Hex(v.Secret + "|" + txnID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

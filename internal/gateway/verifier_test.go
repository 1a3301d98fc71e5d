package gateway

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/payex-bridge/internal/common"
)

func TestVerifierAcceptsValidSignature(t *testing.T) {
	v := Verifier{Secret: "sk_test_123"}
	payload := map[string]string{
		"txn_id":           "TXN-001",
		"reference_number": "1042",
		"auth_code":        "00",
		"signature":        common.Sha512Hex("sk_test_123|TXN-001"),
	}
	require.True(t, v.Verify(payload))
}

func TestVerifierRejectsTamperedSignature(t *testing.T) {
	v := Verifier{Secret: "sk_test_123"}
	payload := map[string]string{
		"txn_id":    "TXN-001",
		"signature": common.Sha512Hex("sk_test_123|TXN-999"),
	}
	require.False(t, v.Verify(payload))
}

func TestVerifierRejectsWrongSecret(t *testing.T) {
	v := Verifier{Secret: "sk_live_456"}
	payload := map[string]string{
		"txn_id":    "TXN-001",
		"signature": common.Sha512Hex("sk_test_123|TXN-001"),
	}
	require.False(t, v.Verify(payload))
}

func TestVerifierRejectsMissingFields(t *testing.T) {
	v := Verifier{Secret: "sk_test_123"}
	require.False(t, v.Verify(nil))
	require.False(t, v.Verify(map[string]string{"txn_id": "TXN-001"}))
	require.False(t, v.Verify(map[string]string{"signature": common.Sha512Hex("sk_test_123|TXN-001")}))
}

func TestVerifierIgnoresExtraFields(t *testing.T) {
	v := Verifier{Secret: "sk_test_123"}
	payload := map[string]string{
		"txn_id":    "TXN-001",
		"signature": common.Sha512Hex("sk_test_123|TXN-001"),
		"zz_extra":  "anything",
		"amount":    "15050",
	}
	require.True(t, v.Verify(payload))
}

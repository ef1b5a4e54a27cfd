package gateway

import (
	"strings"
	"testing"
	"time"

	"license-market/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter() *Adapter {
	a := NewAdapter(&config.Gateway{
		PayURL:       "https://sandbox.gateway.test/paymentv2/vpcpay.html",
		TerminalCode: "TESTTMN1",
		HashSecret:   "SUPERSECRETKEY",
	})
	a.Now = func() time.Time {
		return time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	}
	return a
}

func TestBuildRedirectReproducible(t *testing.T) {
	a := newTestAdapter()

	first := a.BuildRedirect(150000, "ORDER_abc", "txn-ref-1", "https://shop.test/api/payment/return", "203.0.113.9")
	second := a.BuildRedirect(150000, "ORDER_abc", "txn-ref-1", "https://shop.test/api/payment/return", "203.0.113.9")

	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(first, "https://sandbox.gateway.test/paymentv2/vpcpay.html?"))
	assert.Contains(t, first, FieldSecureHash+"=")
	assert.Contains(t, first, "vnp_Amount=15000000") // amount is sent in hundredths
	assert.Contains(t, first, "vnp_TxnRef=txn-ref-1")
	assert.Contains(t, first, "vnp_CreateDate=20240315103000")
}

func TestVerifyCallbackRoundTrip(t *testing.T) {
	a := newTestAdapter()

	params := map[string]string{
		FieldTxnRef:       "txn-ref-1",
		FieldResponseCode: "00",
		FieldGatewayTxnNo: "14226112",
		FieldBankCode:     "NCB",
		"vnp_Amount":      "15000000",
		"vnp_OrderInfo":   "ORDER_abc",
	}

	hashData, _ := canonicalize(params)
	params[FieldSecureHash] = strings.ToUpper(a.sign(hashData))

	assert.True(t, a.VerifyCallback(params))
}

func TestVerifyCallbackSignatureCaseInsensitive(t *testing.T) {
	a := newTestAdapter()

	params := map[string]string{
		FieldTxnRef:       "txn-ref-2",
		FieldResponseCode: "00",
	}
	hashData, _ := canonicalize(params)
	params[FieldSecureHash] = strings.ToLower(a.sign(hashData))

	assert.True(t, a.VerifyCallback(params))
}

func TestVerifyCallbackTampered(t *testing.T) {
	a := newTestAdapter()

	params := map[string]string{
		FieldTxnRef:       "txn-ref-1",
		FieldResponseCode: "00",
		"vnp_Amount":      "15000000",
	}
	hashData, _ := canonicalize(params)
	params[FieldSecureHash] = strings.ToUpper(a.sign(hashData))

	params["vnp_Amount"] = "100" // attacker rewrites the amount

	assert.False(t, a.VerifyCallback(params))
}

func TestVerifyCallbackMissingSignature(t *testing.T) {
	a := newTestAdapter()

	assert.False(t, a.VerifyCallback(map[string]string{
		FieldTxnRef:       "txn-ref-1",
		FieldResponseCode: "00",
	}))
}

func TestVerifyCallbackIgnoresHashTypeField(t *testing.T) {
	a := newTestAdapter()

	params := map[string]string{
		FieldTxnRef:       "txn-ref-1",
		FieldResponseCode: "00",
	}
	hashData, _ := canonicalize(params)
	params[FieldSecureHash] = strings.ToUpper(a.sign(hashData))
	params["vnp_SecureHashType"] = "HMACSHA512"

	assert.True(t, a.VerifyCallback(params))
}

func TestCanonicalizeSortsAndSkipsEmpty(t *testing.T) {
	hashData, query := canonicalize(map[string]string{
		"vnp_TxnRef":   "ref",
		"vnp_Amount":   "100",
		"vnp_BankCode": "",
	})

	require.Equal(t, "vnp_Amount=100&vnp_TxnRef=ref", hashData)
	require.Equal(t, "vnp_Amount=100&vnp_TxnRef=ref", query)
}

func TestErrorMessageFor(t *testing.T) {
	a := newTestAdapter()

	assert.Equal(t, "transaction successful", a.ErrorMessageFor("00"))
	assert.Equal(t, "customer cancelled the transaction", a.ErrorMessageFor("24"))
	assert.Contains(t, a.ErrorMessageFor("98"), "unknown error")
}

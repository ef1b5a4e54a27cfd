package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"license-market/internal/config"
)

// Field names of the gateway's signed-redirect protocol. The contract is
// fixed: parameters are sorted by name, the hash string is built from raw
// field names and URL-encoded values, and the signature is an HMAC-SHA512
// over that string.
const (
	fieldVersion   = "vnp_Version"
	fieldCommand   = "vnp_Command"
	fieldTmnCode   = "vnp_TmnCode"
	fieldAmount    = "vnp_Amount"
	fieldCurrency  = "vnp_CurrCode"
	fieldTxnRef    = "vnp_TxnRef"
	fieldOrderInfo = "vnp_OrderInfo"
	fieldOrderType = "vnp_OrderType"
	fieldLocale    = "vnp_Locale"
	fieldReturnURL = "vnp_ReturnUrl"
	fieldClientIP  = "vnp_IpAddr"
	fieldCreate    = "vnp_CreateDate"

	FieldSecureHash     = "vnp_SecureHash"
	fieldSecureHashType = "vnp_SecureHashType"

	FieldResponseCode = "vnp_ResponseCode"
	FieldTxnRef       = fieldTxnRef
	FieldOrderInfo    = fieldOrderInfo
	FieldGatewayTxnNo = "vnp_TransactionNo"
	FieldBankCode     = "vnp_BankCode"
	FieldBankTranNo   = "vnp_BankTranNo"
	FieldCardType     = "vnp_CardType"
	FieldPayDate      = "vnp_PayDate"

	// ResponseSuccess is the only response code the gateway sends for a
	// completed payment.
	ResponseSuccess = "00"

	createDateLayout = "20060102150405"
)

// Adapter builds outbound redirect URLs and verifies inbound callback
// signatures. It is stateless; Now is injectable so redirect URLs are
// reproducible in tests.
type Adapter struct {
	cfg *config.Gateway
	Now func() time.Time
}

func NewAdapter(cfg *config.Gateway) *Adapter {
	return &Adapter{cfg: cfg, Now: time.Now}
}

// BuildRedirect serializes the payment parameters, signs them and returns the
// full gateway URL the buyer must be redirected to.
func (a *Adapter) BuildRedirect(amount int64, orderInfo, txnRef, returnURL, clientIP string) string {
	params := map[string]string{
		fieldVersion:   "2.1.0",
		fieldCommand:   "pay",
		fieldTmnCode:   strings.TrimSpace(a.cfg.TerminalCode),
		fieldAmount:    strconv.FormatInt(amount*100, 10),
		fieldCurrency:  "VND",
		fieldTxnRef:    txnRef,
		fieldOrderInfo: orderInfo,
		fieldOrderType: "billpayment",
		fieldLocale:    "vn",
		fieldReturnURL: strings.TrimSpace(returnURL),
		fieldClientIP:  clientIP,
		fieldCreate:    a.Now().Format(createDateLayout),
	}

	hashData, query := canonicalize(params)
	signature := strings.ToUpper(a.sign(hashData))

	return a.cfg.PayURL + "?" + query + "&" + FieldSecureHash + "=" + signature
}

// VerifyCallback recomputes the signature over every callback field except
// the signature fields themselves and compares case-insensitively. Any
// missing or empty signature fails closed.
func (a *Adapter) VerifyCallback(params map[string]string) bool {
	received := params[FieldSecureHash]
	if received == "" {
		return false
	}

	cloned := make(map[string]string, len(params))
	for k, v := range params {
		if k == FieldSecureHash || k == fieldSecureHashType {
			continue
		}
		cloned[k] = v
	}

	hashData, _ := canonicalize(cloned)
	return strings.EqualFold(a.sign(hashData), received)
}

// ErrorMessageFor maps a gateway response code to a human description.
// Unknown codes are not a failure, they map to a generic message.
func (a *Adapter) ErrorMessageFor(code string) string {
	switch code {
	case "00":
		return "transaction successful"
	case "07":
		return "amount deducted, transaction flagged as suspicious"
	case "09":
		return "card or account not registered for internet banking"
	case "10":
		return "card or account verification failed more than 3 times"
	case "11":
		return "payment window expired"
	case "12":
		return "card or account is locked"
	case "13":
		return "wrong one-time password"
	case "24":
		return "customer cancelled the transaction"
	case "51":
		return "insufficient account balance"
	case "65":
		return "daily transaction limit exceeded"
	case "75":
		return "issuing bank under maintenance"
	case "79":
		return "wrong payment password entered too many times"
	default:
		return "unknown error (code: " + code + ")"
	}
}

// canonicalize sorts the fields by name and builds both the hash string
// (raw field name, encoded value) and the redirect query string (both
// encoded). Empty values are skipped in both.
func canonicalize(params map[string]string) (hashData, query string) {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var hashBuf, queryBuf strings.Builder
	for _, name := range names {
		value := params[name]
		if value == "" {
			continue
		}
		if hashBuf.Len() > 0 {
			hashBuf.WriteByte('&')
			queryBuf.WriteByte('&')
		}
		encoded := url.QueryEscape(value)
		hashBuf.WriteString(name)
		hashBuf.WriteByte('=')
		hashBuf.WriteString(encoded)

		queryBuf.WriteString(url.QueryEscape(name))
		queryBuf.WriteByte('=')
		queryBuf.WriteString(encoded)
	}
	return hashBuf.String(), queryBuf.String()
}

func (a *Adapter) sign(data string) string {
	mac := hmac.New(sha512.New, []byte(strings.TrimSpace(a.cfg.HashSecret)))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

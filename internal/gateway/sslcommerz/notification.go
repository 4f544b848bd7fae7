package sslcommerz

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"

	"github.com/Freeeeeet/marketplace/internal/gateway"
)

// Коды статусов IPN
const (
	StatusValid       = "VALID"
	StatusValidated   = "VALIDATED"
	StatusFailed      = "FAILED"
	StatusCancelled   = "CANCELLED"
	StatusUnattempted = "UNATTEMPTED"
	StatusExpired     = "EXPIRED"
)

// Classify maps a gateway status code onto an outcome. Unknown codes are unrecognized.
func Classify(status string) gateway.Outcome {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case StatusValid, StatusValidated:
		return gateway.OutcomeSuccess
	case StatusFailed, StatusCancelled, StatusUnattempted, StatusExpired:
		return gateway.OutcomeFailure
	default:
		return gateway.OutcomeUnrecognized
	}
}

// ParseNotification converts an IPN form into a Notification. A payload whose
// signature does not verify is downgraded to OutcomeUnrecognized.
func (c *Client) ParseNotification(form url.Values) gateway.Notification {
	raw := make(map[string]string, len(form))
	for key := range form {
		raw[key] = form.Get(key)
	}

	n := gateway.Notification{
		TransactionID: form.Get("tran_id"),
		Status:        form.Get("status"),
		ValidationID:  form.Get("val_id"),
		Raw:           raw,
	}
	n.Outcome = Classify(n.Status)

	if c.verifySignature && !c.VerifySignature(form) {
		n.Outcome = gateway.OutcomeUnrecognized
	}

	return n
}

// VerifySignature checks verify_sign: md5 over the fields named in verify_key
// plus md5(store_passwd), sorted by key and joined as k=v&k=v.
func (c *Client) VerifySignature(form url.Values) bool {
	sign := form.Get("verify_sign")
	keyList := form.Get("verify_key")
	if sign == "" || keyList == "" {
		return false
	}

	fields := map[string]string{
		"store_passwd": md5Hex(c.storePassword),
	}
	for _, key := range strings.Split(keyList, ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		fields[key] = form.Get(key)
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+"="+fields[key])
	}

	return strings.EqualFold(md5Hex(strings.Join(parts, "&")), sign)
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

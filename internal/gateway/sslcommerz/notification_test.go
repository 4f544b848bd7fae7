package sslcommerz

import (
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Freeeeeet/marketplace/internal/gateway"
)

func signedForm(password string, fields map[string]string) url.Values {
	form := url.Values{}
	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		form.Set(k, v)
		keys = append(keys, k)
	}
	sort.Strings(keys)
	form.Set("verify_key", strings.Join(keys, ","))

	signed := map[string]string{"store_passwd": md5Hex(password)}
	for k, v := range fields {
		signed[k] = v
	}
	all := make([]string, 0, len(signed))
	for k := range signed {
		all = append(all, k)
	}
	sort.Strings(all)
	parts := make([]string, 0, len(all))
	for _, k := range all {
		parts = append(parts, k+"="+signed[k])
	}
	form.Set("verify_sign", md5Hex(strings.Join(parts, "&")))
	return form
}

func TestClassify(t *testing.T) {
	tests := map[string]gateway.Outcome{
		"VALID":       gateway.OutcomeSuccess,
		"validated":   gateway.OutcomeSuccess,
		"FAILED":      gateway.OutcomeFailure,
		"CANCELLED":   gateway.OutcomeFailure,
		"UNATTEMPTED": gateway.OutcomeFailure,
		"EXPIRED":     gateway.OutcomeFailure,
		"PENDING":     gateway.OutcomeUnrecognized,
		"":            gateway.OutcomeUnrecognized,
		"RISKY":       gateway.OutcomeUnrecognized,
	}
	for status, want := range tests {
		assert.Equal(t, want, Classify(status), status)
	}
}

func TestParseNotificationVerified(t *testing.T) {
	client := NewClient(Config{StorePassword: "secret", VerifySignature: true})
	form := signedForm("secret", map[string]string{
		"tran_id": "tx-1",
		"status":  "VALID",
		"val_id":  "V1",
		"amount":  "5.00",
	})

	n := client.ParseNotification(form)
	assert.Equal(t, "tx-1", n.TransactionID)
	assert.Equal(t, "V1", n.ValidationID)
	assert.Equal(t, gateway.OutcomeSuccess, n.Outcome)
	assert.Equal(t, "5.00", n.Raw["amount"])
}

func TestParseNotificationBadSignatureIsUnrecognized(t *testing.T) {
	client := NewClient(Config{StorePassword: "secret", VerifySignature: true})
	form := signedForm("other-password", map[string]string{
		"tran_id": "tx-1",
		"status":  "FAILED",
	})

	n := client.ParseNotification(form)
	assert.Equal(t, gateway.OutcomeUnrecognized, n.Outcome)
}

func TestParseNotificationWithoutVerification(t *testing.T) {
	client := NewClient(Config{StorePassword: "secret"})
	form := url.Values{"tran_id": {"tx-9"}, "status": {"CANCELLED"}}

	n := client.ParseNotification(form)
	assert.Equal(t, gateway.OutcomeFailure, n.Outcome)
	assert.False(t, client.VerifySignature(form))
}

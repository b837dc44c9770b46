package payment

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const answerJSON = `{
	"orderStatus": "PAID",
	"orderDetails": {"orderId": "ord-42", "orderTotalAmount": 4999},
	"customer": {
		"email": "buyer@example.com",
		"billingDetails": {"firstName": "Ana", "lastName": "Quispe", "phoneNumber": "+51911111111"},
		"shippingDetails": {"address": "Av. Arequipa 1234", "city": "Lima", "country": "PE"}
	}
}`

func TestParseCallback_ObjectAnswer(t *testing.T) {
	body := []byte(`{"kr-answer": ` + answerJSON + `, "kr-hash": "abcd"}`)

	cb, err := ParseCallback(body)
	require.NoError(t, err)
	assert.Equal(t, "abcd", cb.Hash)

	signed, err := cb.SignedBytes()
	require.NoError(t, err)
	// Object form: the signature covers the raw JSON exactly as received,
	// whitespace included.
	assert.JSONEq(t, answerJSON, string(signed))

	a, err := cb.DecodeAnswer()
	require.NoError(t, err)
	assert.True(t, a.Paid())
	assert.Equal(t, "ord-42", a.MerchantOrderID())
	assert.Equal(t, int64(4999), a.OrderDetails.OrderTotalAmount.Int64())
	assert.Equal(t, "buyer@example.com", a.Customer.Email)
}

func TestParseCallback_Base64StringAnswer(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte(answerJSON))
	body, err := json.Marshal(map[string]string{
		"kr-answer": encoded,
		"kr-hash":   "abcd",
	})
	require.NoError(t, err)

	cb, err := ParseCallback(body)
	require.NoError(t, err)

	// String form: the signed bytes are the base64 text itself, not the
	// decoded JSON.
	signed, err := cb.SignedBytes()
	require.NoError(t, err)
	assert.Equal(t, encoded, string(signed))

	a, err := cb.DecodeAnswer()
	require.NoError(t, err)
	assert.True(t, a.Paid())
	assert.Equal(t, "ord-42", a.MerchantOrderID())
}

func TestParseCallback_SignedBytesAreReceivedBytes(t *testing.T) {
	// Key order and spacing differ from what a re-marshal would produce.
	raw := `{"orderDetails":{"orderTotalAmount":100,"orderId":"o1"},  "orderStatus":"PAID"}`
	body := []byte(`{"kr-hash":"x","kr-answer":` + raw + `}`)

	cb, err := ParseCallback(body)
	require.NoError(t, err)

	signed, err := cb.SignedBytes()
	require.NoError(t, err)
	assert.Equal(t, raw, string(signed))
}

func TestParseCallback_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `not json`},
		{"missing answer", `{"kr-hash":"abcd"}`},
		{"missing hash", `{"kr-answer":{"orderStatus":"PAID"}}`},
		{"empty body", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCallback([]byte(tt.body))
			require.ErrorIs(t, err, ErrMalformedCallback)
		})
	}
}

func TestDecodeAnswer_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		answer string
	}{
		{"bad base64", `"!!!not-base64!!!"`},
		{"base64 of non-json", `"` + base64.StdEncoding.EncodeToString([]byte("not json")) + `"`},
		{"array answer", `[1,2,3]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := &Callback{Answer: json.RawMessage(tt.answer), Hash: "x"}
			_, err := cb.DecodeAnswer()
			require.ErrorIs(t, err, ErrMalformedCallback)
		})
	}
}

func TestAnswer_MerchantOrderIDFallback(t *testing.T) {
	a := &Answer{OrderID: "top-level"}
	assert.Equal(t, "top-level", a.MerchantOrderID())

	a.OrderDetails.OrderID = "nested"
	assert.Equal(t, "nested", a.MerchantOrderID())
}

func TestAnswer_NotPaidStatuses(t *testing.T) {
	for _, status := range []string{"REFUSED", "UNPAID", "ABANDONED", ""} {
		a := &Answer{OrderStatus: status}
		assert.False(t, a.Paid(), "status %q", status)
	}
}

func TestMinorUnits_StringAndNumber(t *testing.T) {
	var d OrderDetails
	require.NoError(t, json.Unmarshal([]byte(`{"orderTotalAmount": 4999}`), &d))
	assert.Equal(t, int64(4999), d.OrderTotalAmount.Int64())

	require.NoError(t, json.Unmarshal([]byte(`{"orderTotalAmount": "4999"}`), &d))
	assert.Equal(t, int64(4999), d.OrderTotalAmount.Int64())

	require.Error(t, json.Unmarshal([]byte(`{"orderTotalAmount": "49.99"}`), &d))
}

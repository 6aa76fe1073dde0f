package mailbox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawEmail(from, subject, contentType, body string) []byte {
	msg := strings.Join([]string{
		"From: " + from,
		"To: shopper@example.com",
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: " + contentType,
		"",
		body,
	}, "\r\n")
	return []byte(msg)
}

func TestFromRawEmailParsesHTMLOrder(t *testing.T) {
	html := `<html><body>
<p>Thanks for your purchase! Order #ABC-12345</p>
<table>
  <tr><th>Item</th><th>Qty</th><th>Price</th></tr>
  <tr><td>USB-C Cable 2m</td><td>Qty: 2</td><td>$12.99</td></tr>
  <tr><td>Wireless Mouse</td><td>Qty: 1</td><td>$24.50</td></tr>
</table>
<p>Order Total: $37.49</p>
</body></html>`
	raw := rawEmail("Store <no-reply@amazon.com>", "Your order", `text/html; charset="utf-8"`, html)

	out, err := FromRawEmail(raw, "gmailIMAP")
	require.NoError(t, err)

	assert.True(t, out.EReceiptIsValid)
	assert.Equal(t, "ABC-12345", out.EReceiptOrderNumber)
	require.NotNil(t, out.Total)
	assert.InDelta(t, 37.49, out.Total.Value, 1e-9)
	assert.Equal(t, "amazon", out.MerchantGuess)
	assert.Equal(t, "Your order", out.EReceiptEmailSubject)
	assert.Equal(t, "gmailIMAP", out.EReceiptEmailProvider)
	assert.NotEmpty(t, out.EReceiptRawHTML)

	require.Len(t, out.Products, 2)
	assert.Equal(t, "USB-C Cable 2m", out.Products[0].Description.Value)
	assert.InDelta(t, 2, out.Products[0].Quantity.Value, 1e-9)
	assert.InDelta(t, 12.99, out.Products[0].TotalPrice.Value, 1e-9)
	assert.Equal(t, float64(-1), out.OCRConfidence)
}

func TestFromRawEmailPlainTextFallback(t *testing.T) {
	body := "Your order number: ZZ99887\nTotal: $5.00\nThanks!"
	raw := rawEmail("receipts@walmart.com", "Receipt", "text/plain; charset=utf-8", body)

	out, err := FromRawEmail(raw, "yahoo")
	require.NoError(t, err)
	assert.True(t, out.EReceiptIsValid)
	assert.Equal(t, "ZZ99887", out.EReceiptOrderNumber)
	require.NotNil(t, out.Total)
	assert.InDelta(t, 5.00, out.Total.Value, 1e-9)
	assert.Equal(t, "walmart", out.MerchantGuess)
	assert.Contains(t, out.CombinedRawText, "Thanks!")
}

func TestFromRawEmailNonOrderMailIsNotValid(t *testing.T) {
	raw := rawEmail("newsletter@example.com", "Weekly deals", "text/plain", "Nothing to see here.")

	out, err := FromRawEmail(raw, "gmailIMAP")
	require.NoError(t, err)
	assert.False(t, out.EReceiptIsValid)
	assert.Empty(t, out.EReceiptOrderNumber)
	assert.Nil(t, out.Total)
}

func TestFromRawEmailGarbage(t *testing.T) {
	_, err := FromRawEmail([]byte("\x00\x01 not mime at all"), "gmailIMAP")
	// enmime tolerates most malformed input; either outcome must be sane.
	if err != nil {
		assert.Contains(t, err.Error(), "parse_failure")
	}
}

func TestMerchantFromSender(t *testing.T) {
	assert.Equal(t, "target", merchantFromSender("Target <orders@target.com>"))
	assert.Equal(t, "costco", merchantFromSender("noreply@email.costco.com>"))
	assert.Equal(t, "", merchantFromSender("not-an-address"))
}

// Package mailbox turns raw e-mail messages into raw scan results and hosts
// the concrete mailbox engines in its subpackages.
package mailbox

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"

	"capture/internal"
	"capture/internal/engine"
)

var (
	orderNumberPattern = regexp.MustCompile(`(?i)order\s*(?:number|no\.?|#)?[:\s#]*([A-Z0-9][A-Z0-9\-]{4,})`)
	totalPattern       = regexp.MustCompile(`(?i)(?:order\s+)?total[:\s]*\$?\s*([\d,]+\.\d{2})`)
	moneyPattern       = regexp.MustCompile(`\$?\s*([\d,]+\.\d{2})`)
	qtyPattern         = regexp.MustCompile(`(?i)(?:qty|quantity)[:\s]*(\d+)`)
)

// FromRawEmail parses one MIME message into a raw scan result. Extraction is
// best-effort: a message with no recognizable order content still yields a
// result carrying the e-mail metadata, but only messages with an order number
// or a total are flagged as valid e-receipts.
func FromRawEmail(raw []byte, providerCode string) (*engine.ScanResults, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, internal.Errorf(internal.KindParseFailure, "read mime envelope: %v", err)
	}

	out := &engine.ScanResults{
		EReceiptEmailProvider: providerCode,
		EReceiptEmailSubject:  env.GetHeader("Subject"),
		EReceiptMerchantEmail: env.GetHeader("From"),
		OCRConfidence:         -1,
	}

	if merchant := merchantFromSender(env.GetHeader("From")); merchant != "" {
		out.MerchantGuess = merchant
	}

	textParts := []string{}
	if env.Text != "" {
		textParts = append(textParts, env.Text)
	}

	if env.HTML != "" {
		out.EReceiptRawHTML = env.HTML
		parseOrderHTML(env.HTML, out)
	}
	if out.EReceiptOrderNumber == "" || out.Total == nil {
		parseOrderText(env.Text, out)
	}

	for _, att := range env.Attachments {
		if strings.HasSuffix(strings.ToLower(att.FileName), ".pdf") {
			if text, err := pdfText(att.Content); err == nil && text != "" {
				textParts = append(textParts, text)
				parseOrderText(text, out)
			}
		}
	}

	if len(textParts) > 0 {
		out.CombinedRawText = strings.Join(textParts, "\n")
	}
	out.EReceiptIsValid = out.EReceiptOrderNumber != "" || out.Total != nil
	return out, nil
}

// parseOrderHTML pulls the order number, total, and product table rows out of
// an HTML order confirmation.
func parseOrderHTML(html string, out *engine.ScanResults) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return
	}

	text := doc.Text()
	if out.EReceiptOrderNumber == "" {
		if m := orderNumberPattern.FindStringSubmatch(text); m != nil {
			out.EReceiptOrderNumber = m[1]
		}
	}
	if out.Total == nil {
		if m := totalPattern.FindStringSubmatch(text); m != nil {
			if v, ok := parseMoney(m[1]); ok {
				out.Total = &engine.FloatField{Value: v}
			}
		}
	}

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return
		}
		rows.Each(func(_ int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, normalizeSpaces(cell.Text()))
			})
			product, ok := rowToProduct(cells)
			if ok {
				out.Products = append(out.Products, product)
			}
		})
	})
}

// rowToProduct accepts a table row that looks like an order line: a textual
// description plus a price cell.
func rowToProduct(cells []string) (engine.RawProduct, bool) {
	if len(cells) < 2 {
		return engine.RawProduct{}, false
	}

	var desc string
	var price *float64
	qty := 1.0
	for _, cell := range cells {
		if cell == "" {
			continue
		}
		if m := moneyPattern.FindStringSubmatch(cell); m != nil && len(cell) < 16 {
			if v, ok := parseMoney(m[1]); ok {
				price = &v
				continue
			}
		}
		if m := qtyPattern.FindStringSubmatch(cell); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil {
				qty = float64(v)
				continue
			}
		}
		if desc == "" && len(cell) >= 3 && !isHeaderWord(cell) {
			desc = cell
		}
	}

	if desc == "" || price == nil {
		return engine.RawProduct{}, false
	}
	return engine.RawProduct{
		Description: &engine.StringField{Value: desc},
		Quantity:    &engine.FloatField{Value: qty},
		TotalPrice:  &engine.FloatField{Value: *price},
	}, true
}

func parseOrderText(text string, out *engine.ScanResults) {
	if text == "" {
		return
	}
	if out.EReceiptOrderNumber == "" {
		if m := orderNumberPattern.FindStringSubmatch(text); m != nil {
			out.EReceiptOrderNumber = m[1]
		}
	}
	if out.Total == nil {
		if m := totalPattern.FindStringSubmatch(text); m != nil {
			if v, ok := parseMoney(m[1]); ok {
				out.Total = &engine.FloatField{Value: v}
			}
		}
	}
}

func pdfText(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// merchantFromSender guesses the merchant from the sender domain:
// "Orders <no-reply@amazon.com>" becomes "amazon".
func merchantFromSender(from string) string {
	at := strings.LastIndex(from, "@")
	if at < 0 {
		return ""
	}
	domain := from[at+1:]
	domain = strings.TrimRight(domain, "> \t")
	parts := strings.Split(domain, ".")
	if len(parts) < 2 {
		return ""
	}
	// Drop the TLD; keep the registrable label.
	return parts[len(parts)-2]
}

func parseMoney(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func isHeaderWord(cell string) bool {
	switch strings.ToLower(cell) {
	case "item", "items", "description", "product", "price", "total", "qty", "quantity", "amount", "subtotal":
		return true
	default:
		return false
	}
}

func normalizeSpaces(input string) string {
	return strings.Join(strings.Fields(input), " ")
}

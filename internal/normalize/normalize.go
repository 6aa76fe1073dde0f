// Package normalize flattens raw engine payloads into the canonical receipt
// schema. The mapping is pure and total: the same input always yields the same
// output, absent nested collections become empty ones, and confidence scores
// are carried over only when the engine supplied them.
package normalize

import (
	"github.com/shopspring/decimal"

	"capture/internal"
	"capture/internal/engine"
	"capture/internal/receipt"
)

// maxDepth caps recursive component receipts and product decomposition.
// Legitimate payloads stay in single digits; anything deeper is malformed.
const maxDepth = 32

// Receipt maps one raw scan result into the canonical schema. Errors are
// parse failures fatal to this item only.
func Receipt(raw *engine.ScanResults) (*receipt.Receipt, error) {
	if raw == nil {
		return nil, internal.NewError(internal.KindParseFailure, "nil scan result")
	}
	return mapReceipt(raw, 0)
}

func mapReceipt(raw *engine.ScanResults, depth int) (*receipt.Receipt, error) {
	if depth > maxDepth {
		return nil, internal.Errorf(internal.KindParseFailure, "component receipts nested deeper than %d", maxDepth)
	}

	out := &receipt.Receipt{
		ReceiptDate:     stringValue(raw.ReceiptDate),
		ReceiptTime:     stringValue(raw.ReceiptTime),
		ReceiptDateTime: copyInt64(raw.ReceiptDateTime),

		Total:    floatValue(raw.Total),
		Tip:      floatValue(raw.Tip),
		Subtotal: floatValue(raw.Subtotal),
		Taxes:    floatValue(raw.Taxes),

		StoreNumber:   stringValue(raw.StoreNumber),
		MerchantName:  stringValue(raw.MerchantName),
		StoreAddress:  stringValue(raw.StoreAddress),
		StoreCity:     stringValue(raw.StoreCity),
		ReceiptID:     optString(raw.ReceiptID),
		StoreState:    stringValue(raw.StoreState),
		StoreZip:      stringValue(raw.StoreZip),
		StorePhone:    stringValue(raw.StorePhone),
		CashierID:     stringValue(raw.CashierID),
		TransactionID: stringValue(raw.TransactionID),
		RegisterID:    stringValue(raw.RegisterID),

		TaxID:    stringValue(raw.TaxID),
		MallName: stringValue(raw.MallName),
		Last4CC:  stringValue(raw.Last4CC),

		OCRConfidence:   raw.OCRConfidence,
		FoundTopEdge:    copyBool(raw.FoundTopEdge),
		FoundBottomEdge: copyBool(raw.FoundBottomEdge),

		EReceiptOrderNumber:   optString(raw.EReceiptOrderNumber),
		EReceiptOrderStatus:   optString(raw.EReceiptOrderStatus),
		EReceiptRawHTML:       optString(raw.EReceiptRawHTML),
		EReceiptEmailProvider: optString(raw.EReceiptEmailProvider),
		EReceiptAuthenticated: copyBool(raw.EReceiptAuthenticated),
		EReceipt:              raw.EReceiptIsValid,

		LongTransactionID: stringValue(raw.LongTransactionID),
		SubtotalMatches:   copyBool(raw.SubtotalMatches),
		InstacartShopper:  copyBool(raw.InstacartShopper),

		Duplicate:           copyBool(raw.Duplicate),
		Fraudulent:          copyBool(raw.Fraudulent),
		DuplicateReceiptIDs: copyStrings(raw.DuplicateReceiptIDs),
		MerchantMatchGuess:  optString(raw.MerchantGuess),

		ProductsPendingLookup: raw.ProductsPendingLookup,

		EReceiptAdditionalFees: copyStringMap(raw.EReceiptAdditionalFees),

		PurchaseType:     optStringValue(raw.PurchaseType),
		Channel:          stringValue(raw.Channel),
		LoyaltyForBanner: copyBool(raw.LoyaltyForBanner),

		EReceiptFulfilledBy:   optString(raw.EReceiptFulfilledBy),
		EReceiptPOSSystem:     optString(raw.EReceiptPOSSystem),
		EReceiptSubMerchant:   optString(raw.EReceiptSubMerchant),
		EReceiptMerchantEmail: optString(raw.EReceiptMerchantEmail),
		EReceiptEmailSubject:  optString(raw.EReceiptEmailSubject),
		EReceiptShippingCosts: floatValue(raw.EReceiptShippingCosts),

		Barcode:            optString(raw.Barcode),
		CurrencyCode:       optString(raw.CurrencyCode),
		ClientMerchantName: optString(raw.ClientMerchantName),
		LoyaltyProgram:     copyBool(raw.LoyaltyProgram),
		MerchantSources:    copyInt64s(raw.MerchantSources),

		PaymentTerminalID:    stringValue(raw.PaymentTerminalID),
		PaymentTransactionID: stringValue(raw.PaymentTransactionID),
		CombinedRawText:      optStringValue(raw.CombinedRawText),
	}

	if raw.RetailerCode != 0 {
		out.RetailerID = &receipt.RetailerID{ID: raw.RetailerCode, BannerID: copyInt64(raw.BannerCode)}
	}

	var err error
	if out.Products, err = mapProducts(raw.Products, depth); err != nil {
		return nil, err
	}

	out.Coupons = make([]receipt.Coupon, 0, len(raw.Coupons))
	for _, c := range raw.Coupons {
		out.Coupons = append(out.Coupons, receipt.Coupon{
			Type:                c.Type,
			Amount:              floatValue(c.Amount),
			SKU:                 stringValue(c.SKU),
			Description:         stringValue(c.Description),
			RelatedProductIndex: c.RelatedProductIndex,
		})
	}

	out.PaymentMethods = make([]receipt.PaymentMethod, 0, len(raw.PaymentMethods))
	for _, m := range raw.PaymentMethods {
		out.PaymentMethods = append(out.PaymentMethods, receipt.PaymentMethod{
			PaymentMethod: stringValue(m.Method),
			CardType:      stringValue(m.CardType),
			CardIssuer:    stringValue(m.CardIssuer),
			Amount:        floatValue(m.Amount),
		})
	}

	out.Shipments = make([]receipt.Shipment, 0, len(raw.Shipments))
	for _, s := range raw.Shipments {
		products, perr := mapProducts(s.Products, depth)
		if perr != nil {
			return nil, perr
		}
		out.Shipments = append(out.Shipments, receipt.Shipment{
			Status:   optString(s.Status),
			Products: products,
		})
	}

	if out.QualifiedPromotions, err = mapPromotions(raw.QualifiedPromotions); err != nil {
		return nil, err
	}
	if out.UnqualifiedPromotions, err = mapPromotions(raw.UnqualifiedPromotions); err != nil {
		return nil, err
	}

	if out.QualifiedSurveys, err = mapSurveys(raw.QualifiedSurveys); err != nil {
		return nil, err
	}

	out.ComponentReceipts = make([]receipt.Receipt, 0, len(raw.EReceiptComponentEmails))
	for _, component := range raw.EReceiptComponentEmails {
		if component == nil {
			continue
		}
		mapped, cerr := mapReceipt(component, depth+1)
		if cerr != nil {
			return nil, cerr
		}
		out.ComponentReceipts = append(out.ComponentReceipts, *mapped)
	}

	return out, nil
}

func mapProducts(raws []engine.RawProduct, depth int) ([]receipt.Product, error) {
	if depth > maxDepth {
		return nil, internal.Errorf(internal.KindParseFailure, "products nested deeper than %d", maxDepth)
	}
	out := make([]receipt.Product, 0, len(raws))
	for _, p := range raws {
		mapped, err := mapProduct(p, depth)
		if err != nil {
			return nil, err
		}
		out = append(out, mapped)
	}
	return out, nil
}

func mapProduct(p engine.RawProduct, depth int) (receipt.Product, error) {
	out := receipt.Product{
		ProductNumber: stringValue(p.ProductNumber),
		Description:   stringValue(p.Description),
		Quantity:      floatValue(p.Quantity),
		UnitPrice:     floatValue(p.UnitPrice),
		UnitOfMeasure: stringValue(p.UnitOfMeasure),
		TotalPrice:    floatValue(p.TotalPrice),
		FullPrice:     floatValue(p.FullPrice),
		Line:          copyInt(p.Line),

		ProductName: optString(p.ProductName),
		Brand:       optString(p.Brand),
		Category:    optString(p.Category),
		Size:        optString(p.Size),

		RewardsGroup:           optString(p.RewardsGroup),
		CompetitorRewardsGroup: optString(p.CompetitorRewardsGroup),

		UPC:            optString(p.UPC),
		ImageURL:       optString(p.ImageURL),
		ShippingStatus: optString(p.ShippingStatus),

		PriceAfterCoupons: floatValue(p.PriceAfterCoupons),

		Voided:      copyBool(p.Voided),
		Probability: copyFloat(p.Probability),
		Sensitive:   copyBool(p.Sensitive),

		Added:           copyBool(p.Added),
		MatchedBrand:    optString(p.MatchedBrand),
		MatchedCategory: optString(p.MatchedCategory),

		ExtendedFields: copyStringMap(p.ExtendedFields),

		FuelType:           optString(p.FuelType),
		DescriptionPrefix:  stringValue(p.DescriptionPrefix),
		DescriptionPostfix: stringValue(p.DescriptionPostfix),
		SKUPrefix:          stringValue(p.SKUPrefix),
		SKUPostfix:         stringValue(p.SKUPostfix),

		Sector:        optString(p.Sector),
		Department:    optString(p.Department),
		MajorCategory: optString(p.MajorCategory),
		SubCategory:   optString(p.SubCategory),
		ItemType:      optString(p.ItemType),
	}

	out.AdditionalLines = make([]receipt.AdditionalLine, 0, len(p.AdditionalLines))
	for _, l := range p.AdditionalLines {
		out.AdditionalLines = append(out.AdditionalLines, receipt.AdditionalLine{
			Type:       stringValue(l.Type),
			Text:       stringValue(l.Text),
			LineNumber: l.LineNumber,
		})
	}

	out.Attributes = make([]map[string]string, 0, len(p.Attributes))
	for _, attr := range p.Attributes {
		out.Attributes = append(out.Attributes, copyStringMap(attr))
	}

	var err error
	if out.PossibleProducts, err = mapProducts(p.PossibleProducts, depth+1); err != nil {
		return receipt.Product{}, err
	}
	if out.SubProducts, err = mapProducts(p.SubProducts, depth+1); err != nil {
		return receipt.Product{}, err
	}

	return out, nil
}

func mapPromotions(raws []engine.RawPromotion) ([]receipt.Promotion, error) {
	out := make([]receipt.Promotion, 0, len(raws))
	for _, p := range raws {
		indexes, err := parseDecimals(p.RelatedProductIndexes)
		if err != nil {
			return nil, err
		}
		qualifications := make([][]decimal.Decimal, 0, len(p.Qualifications))
		for _, q := range p.Qualifications {
			parsed, qerr := parseDecimals(q)
			if qerr != nil {
				return nil, qerr
			}
			qualifications = append(qualifications, parsed)
		}
		out = append(out, receipt.Promotion{
			Slug:                  optString(p.Slug),
			Reward:                copyFloat(p.Reward),
			RewardCurrency:        optString(p.RewardCurrency),
			ErrorCode:             p.ErrorCode,
			ErrorMessage:          optString(p.ErrorMessage),
			RelatedProductIndexes: indexes,
			Qualifications:        qualifications,
		})
	}
	return out, nil
}

func mapSurveys(raws []engine.RawSurvey) ([]receipt.Survey, error) {
	out := make([]receipt.Survey, 0, len(raws))
	for _, s := range raws {
		questions := make([]receipt.SurveyQuestion, 0, len(s.Questions))
		for _, q := range s.Questions {
			answers := make([]receipt.SurveyAnswer, 0, len(q.Answers))
			for _, a := range q.Answers {
				answers = append(answers, receipt.SurveyAnswer{Text: optString(a.Text)})
			}
			question := receipt.SurveyQuestion{
				Text:            optString(q.Text),
				Type:            optString(q.Type),
				Answers:         answers,
				MultipleAnswers: q.MultipleAnswers,
			}
			if q.UserResponse != nil {
				selected, err := parseDecimals(q.UserResponse.AnswersSelected)
				if err != nil {
					return nil, err
				}
				question.UserResponse = &receipt.SurveyResponse{
					AnswersSelected: selected,
					FreeText:        optString(q.UserResponse.FreeText),
				}
			}
			questions = append(questions, question)
		}
		out = append(out, receipt.Survey{
			Slug:        optString(s.Slug),
			RewardValue: optString(s.RewardValue),
			StartDate:   optString(s.StartDate),
			EndDate:     optString(s.EndDate),
			Questions:   questions,
		})
	}
	return out, nil
}

func parseDecimals(values []string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, 0, len(values))
	for _, v := range values {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, internal.Errorf(internal.KindParseFailure, "invalid decimal %q", v)
		}
		out = append(out, d)
	}
	return out, nil
}

func stringValue(f *engine.StringField) *receipt.StringValue {
	if f == nil {
		return nil
	}
	return &receipt.StringValue{Value: f.Value, Confidence: copyFloat(f.Confidence)}
}

func floatValue(f *engine.FloatField) *receipt.FloatValue {
	if f == nil {
		return nil
	}
	return &receipt.FloatValue{Value: f.Value, Confidence: copyFloat(f.Confidence)}
}

// optStringValue wraps engine strings that belong to confidence-wrapped
// canonical fields but arrive without extraction metadata.
func optStringValue(v string) *receipt.StringValue {
	if v == "" {
		return nil
	}
	return receipt.String(v)
}

func optString(v string) *string {
	if v == "" {
		return nil
	}
	s := v
	return &s
}

func copyBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	b := *v
	return &b
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	f := *v
	return &f
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	i := *v
	return &i
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	i := *v
	return &i
}

func copyInt64s(v []int64) []int64 {
	out := make([]int64, len(v))
	copy(out, v)
	return out
}

func copyStrings(v []string) []string {
	out := make([]string, len(v))
	copy(out, v)
	return out
}

func copyStringMap(v map[string]string) map[string]string {
	out := make(map[string]string, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

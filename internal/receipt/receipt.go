package receipt

import "github.com/shopspring/decimal"

// RetailerID is the scan engine's numeric merchant identity.
type RetailerID struct {
	ID       int64  `json:"id"`
	BannerID *int64 `json:"bannerId,omitempty"`
}

// Receipt is the canonical aggregate. Scalar fields extracted by OCR carry a
// confidence wrapper; optional fields round-trip as absent, never as zero-value
// sentinels. Collections are always present, possibly empty.
type Receipt struct {
	ReceiptDate     *StringValue `json:"receiptDate,omitempty"`
	ReceiptTime     *StringValue `json:"receiptTime,omitempty"`
	ReceiptDateTime *int64       `json:"receiptDateTime,omitempty"`
	RetailerID      *RetailerID  `json:"retailerId,omitempty"`

	Products []Product `json:"products"`
	Coupons  []Coupon  `json:"coupons"`

	Total    *FloatValue `json:"total,omitempty"`
	Tip      *FloatValue `json:"tip,omitempty"`
	Subtotal *FloatValue `json:"subtotal,omitempty"`
	Taxes    *FloatValue `json:"taxes,omitempty"`

	StoreNumber   *StringValue `json:"storeNumber,omitempty"`
	MerchantName  *StringValue `json:"merchantName,omitempty"`
	StoreAddress  *StringValue `json:"storeAddress,omitempty"`
	StoreCity     *StringValue `json:"storeCity,omitempty"`
	ReceiptID     *string      `json:"receiptId,omitempty"`
	StoreState    *StringValue `json:"storeState,omitempty"`
	StoreZip      *StringValue `json:"storeZip,omitempty"`
	StorePhone    *StringValue `json:"storePhone,omitempty"`
	CashierID     *StringValue `json:"cashierId,omitempty"`
	TransactionID *StringValue `json:"transactionId,omitempty"`
	RegisterID    *StringValue `json:"registerId,omitempty"`

	PaymentMethods []PaymentMethod `json:"paymentMethods"`

	TaxID    *StringValue `json:"taxId,omitempty"`
	MallName *StringValue `json:"mallName,omitempty"`
	Last4CC  *StringValue `json:"last4cc,omitempty"`

	// OCRConfidence is the one required numeric: the schema defines it as
	// always present for optically scanned receipts (-1 when not applicable).
	OCRConfidence   float64 `json:"ocrConfidence"`
	FoundTopEdge    *bool   `json:"foundTopEdge,omitempty"`
	FoundBottomEdge *bool   `json:"foundBottomEdge,omitempty"`

	EReceiptOrderNumber   *string `json:"ereceiptOrderNumber,omitempty"`
	EReceiptOrderStatus   *string `json:"ereceiptOrderStatus,omitempty"`
	EReceiptRawHTML       *string `json:"ereceiptRawHtml,omitempty"`
	EReceiptEmailProvider *string `json:"ereceiptEmailProvider,omitempty"`
	EReceiptAuthenticated *bool   `json:"ereceiptAuthenticated,omitempty"`
	EReceipt              bool    `json:"ereceipt"`

	Shipments []Shipment `json:"shipments"`

	LongTransactionID *StringValue `json:"longTransactionId,omitempty"`
	SubtotalMatches   *bool        `json:"subtotalMatches,omitempty"`
	InstacartShopper  *bool        `json:"instacartShopper,omitempty"`

	// ComponentReceipts decomposes a multi-part e-mail receipt into
	// constituent sub-receipts of the same shape.
	ComponentReceipts []Receipt `json:"componentReceipts"`

	Duplicate           *bool    `json:"duplicate,omitempty"`
	Fraudulent          *bool    `json:"fraudulent,omitempty"`
	DuplicateReceiptIDs []string `json:"duplicateReceiptIds"`
	MerchantMatchGuess  *string  `json:"merchantMatchGuess,omitempty"`

	ProductsPendingLookup int `json:"productsPendingLookup"`

	QualifiedPromotions   []Promotion `json:"qualifiedPromotions"`
	UnqualifiedPromotions []Promotion `json:"unqualifiedPromotions"`

	EReceiptAdditionalFees map[string]string `json:"ereceiptAdditionalFees"`

	PurchaseType     *StringValue `json:"purchaseType,omitempty"`
	Channel          *StringValue `json:"channel,omitempty"`
	LoyaltyForBanner *bool        `json:"loyaltyForBanner,omitempty"`

	EReceiptFulfilledBy   *string     `json:"ereceiptFulfilledBy,omitempty"`
	EReceiptPOSSystem     *string     `json:"ereceiptPosSystem,omitempty"`
	EReceiptSubMerchant   *string     `json:"ereceiptSubMerchant,omitempty"`
	EReceiptMerchantEmail *string     `json:"ereceiptMerchantEmail,omitempty"`
	EReceiptEmailSubject  *string     `json:"ereceiptEmailSubject,omitempty"`
	EReceiptShippingCosts *FloatValue `json:"ereceiptShippingCosts,omitempty"`

	QualifiedSurveys []Survey `json:"qualifiedSurveys"`

	Barcode            *string `json:"barcode,omitempty"`
	CurrencyCode       *string `json:"currencyCode,omitempty"`
	ClientMerchantName *string `json:"clientMerchantName,omitempty"`
	LoyaltyProgram     *bool   `json:"loyaltyProgram,omitempty"`
	MerchantSources    []int64 `json:"merchantSources"`

	PaymentTerminalID    *StringValue `json:"paymentTerminalId,omitempty"`
	PaymentTransactionID *StringValue `json:"paymentTransactionId,omitempty"`
	CombinedRawText      *StringValue `json:"combinedRawText,omitempty"`
}

// Product carries scalar extraction fields, taxonomy fields, and the two
// recursive collections: ambiguous OCR candidates and bundle decomposition.
type Product struct {
	ProductNumber *StringValue `json:"productNumber,omitempty"`
	Description   *StringValue `json:"description,omitempty"`
	Quantity      *FloatValue  `json:"quantity,omitempty"`
	UnitPrice     *FloatValue  `json:"unitPrice,omitempty"`
	UnitOfMeasure *StringValue `json:"unitOfMeasure,omitempty"`
	TotalPrice    *FloatValue  `json:"totalPrice,omitempty"`
	FullPrice     *FloatValue  `json:"fullPrice,omitempty"`
	Line          *int         `json:"line,omitempty"`

	ProductName *string `json:"productName,omitempty"`
	Brand       *string `json:"brand,omitempty"`
	Category    *string `json:"category,omitempty"`
	Size        *string `json:"size,omitempty"`

	RewardsGroup           *string `json:"rewardsGroup,omitempty"`
	CompetitorRewardsGroup *string `json:"competitorRewardsGroup,omitempty"`

	UPC            *string `json:"upc,omitempty"`
	ImageURL       *string `json:"imageUrl,omitempty"`
	ShippingStatus *string `json:"shippingStatus,omitempty"`

	AdditionalLines   []AdditionalLine `json:"additionalLines"`
	PriceAfterCoupons *FloatValue      `json:"priceAfterCoupons,omitempty"`

	Voided      *bool    `json:"voided,omitempty"`
	Probability *float64 `json:"probability,omitempty"`
	Sensitive   *bool    `json:"sensitive,omitempty"`

	PossibleProducts []Product `json:"possibleProducts"`
	SubProducts      []Product `json:"subProducts"`

	Added           *bool   `json:"added,omitempty"`
	MatchedBrand    *string `json:"matchedBrand,omitempty"`
	MatchedCategory *string `json:"matchedCategory,omitempty"`

	ExtendedFields map[string]string `json:"extendedFields"`

	FuelType           *string      `json:"fuelType,omitempty"`
	DescriptionPrefix  *StringValue `json:"descriptionPrefix,omitempty"`
	DescriptionPostfix *StringValue `json:"descriptionPostfix,omitempty"`
	SKUPrefix          *StringValue `json:"skuPrefix,omitempty"`
	SKUPostfix         *StringValue `json:"skuPostfix,omitempty"`

	Attributes []map[string]string `json:"attributes"`

	Sector        *string `json:"sector,omitempty"`
	Department    *string `json:"department,omitempty"`
	MajorCategory *string `json:"majorCategory,omitempty"`
	SubCategory   *string `json:"subCategory,omitempty"`
	ItemType      *string `json:"itemType,omitempty"`
}

type AdditionalLine struct {
	Type       *StringValue `json:"type,omitempty"`
	Text       *StringValue `json:"text,omitempty"`
	LineNumber int          `json:"lineNumber"`
}

type Coupon struct {
	Type                string       `json:"type"`
	Amount              *FloatValue  `json:"amount,omitempty"`
	SKU                 *StringValue `json:"sku,omitempty"`
	Description         *StringValue `json:"description,omitempty"`
	RelatedProductIndex int          `json:"relatedProductIndex"`
}

type PaymentMethod struct {
	PaymentMethod *StringValue `json:"paymentMethod,omitempty"`
	CardType      *StringValue `json:"cardType,omitempty"`
	CardIssuer    *StringValue `json:"cardIssuer,omitempty"`
	Amount        *FloatValue  `json:"amount,omitempty"`
}

type Shipment struct {
	Status   *string   `json:"status,omitempty"`
	Products []Product `json:"products"`
}

// Promotion qualification indexes come from the engine as exact decimals;
// they are kept arbitrary-precision because a float64 round-trip can corrupt
// them.
type Promotion struct {
	Slug                  *string             `json:"slug,omitempty"`
	Reward                *float64            `json:"reward,omitempty"`
	RewardCurrency        *string             `json:"rewardCurrency,omitempty"`
	ErrorCode             int                 `json:"errorCode"`
	ErrorMessage          *string             `json:"errorMessage,omitempty"`
	RelatedProductIndexes []decimal.Decimal   `json:"relatedProductIndexes"`
	Qualifications        [][]decimal.Decimal `json:"qualifications"`
}

type Survey struct {
	Slug        *string          `json:"slug,omitempty"`
	RewardValue *string          `json:"rewardValue,omitempty"`
	StartDate   *string          `json:"startDate,omitempty"`
	EndDate     *string          `json:"endDate,omitempty"`
	Questions   []SurveyQuestion `json:"questions"`
}

type SurveyQuestion struct {
	Text            *string         `json:"text,omitempty"`
	Type            *string         `json:"type,omitempty"`
	Answers         []SurveyAnswer  `json:"answers"`
	MultipleAnswers bool            `json:"multipleAnswers"`
	UserResponse    *SurveyResponse `json:"userResponse,omitempty"`
}

type SurveyAnswer struct {
	Text *string `json:"text,omitempty"`
}

type SurveyResponse struct {
	AnswersSelected []decimal.Decimal `json:"answersSelected"`
	FreeText        *string           `json:"freeText,omitempty"`
}

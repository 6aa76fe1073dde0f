package engine

// Raw result payloads as emitted by the scan/linking/mailbox engines. Every
// retrieval source converges on ScanResults; the normalization engine flattens
// it into the canonical receipt schema. Precise decimal fields travel as
// strings so nothing is lost before normalization.

// StringField is a raw extracted string; Confidence is nil when the engine
// supplied none.
type StringField struct {
	Value      string
	Confidence *float64
}

// FloatField is a raw extracted number.
type FloatField struct {
	Value      float64
	Confidence *float64
}

type ScanResults struct {
	ReceiptDate     *StringField
	ReceiptTime     *StringField
	ReceiptDateTime *int64
	RetailerCode    int64
	BannerCode      *int64

	Products []RawProduct
	Coupons  []RawCoupon

	Total    *FloatField
	Tip      *FloatField
	Subtotal *FloatField
	Taxes    *FloatField

	StoreNumber   *StringField
	MerchantName  *StringField
	StoreAddress  *StringField
	StoreCity     *StringField
	ReceiptID     string
	StoreState    *StringField
	StoreZip      *StringField
	StorePhone    *StringField
	CashierID     *StringField
	TransactionID *StringField
	RegisterID    *StringField

	PaymentMethods []RawPaymentMethod

	TaxID    *StringField
	MallName *StringField
	Last4CC  *StringField

	OCRConfidence   float64
	FoundTopEdge    *bool
	FoundBottomEdge *bool

	EReceiptOrderNumber   string
	EReceiptOrderStatus   string
	EReceiptRawHTML       string
	EReceiptEmailProvider string
	EReceiptAuthenticated *bool
	EReceiptIsValid       bool

	Shipments []RawShipment

	LongTransactionID *StringField
	SubtotalMatches   *bool
	InstacartShopper  *bool

	EReceiptComponentEmails []*ScanResults

	Duplicate           *bool
	Fraudulent          *bool
	DuplicateReceiptIDs []string
	MerchantGuess       string

	ProductsPendingLookup int

	QualifiedPromotions   []RawPromotion
	UnqualifiedPromotions []RawPromotion

	EReceiptAdditionalFees map[string]string

	PurchaseType     string
	Channel          *StringField
	LoyaltyForBanner *bool

	EReceiptFulfilledBy   string
	EReceiptPOSSystem     string
	EReceiptSubMerchant   string
	EReceiptMerchantEmail string
	EReceiptEmailSubject  string
	EReceiptShippingCosts *FloatField

	QualifiedSurveys []RawSurvey

	Barcode            string
	CurrencyCode       string
	ClientMerchantName string
	LoyaltyProgram     *bool
	MerchantSources    []int64

	PaymentTerminalID    *StringField
	PaymentTransactionID *StringField
	CombinedRawText      string
}

type RawProduct struct {
	ProductNumber *StringField
	Description   *StringField
	Quantity      *FloatField
	UnitPrice     *FloatField
	UnitOfMeasure *StringField
	TotalPrice    *FloatField
	FullPrice     *FloatField
	Line          *int

	ProductName string
	Brand       string
	Category    string
	Size        string

	RewardsGroup           string
	CompetitorRewardsGroup string

	UPC            string
	ImageURL       string
	ShippingStatus string

	AdditionalLines   []RawAdditionalLine
	PriceAfterCoupons *FloatField

	Voided      *bool
	Probability *float64
	Sensitive   *bool

	PossibleProducts []RawProduct
	SubProducts      []RawProduct

	Added           *bool
	MatchedBrand    string
	MatchedCategory string

	ExtendedFields map[string]string

	FuelType           string
	DescriptionPrefix  *StringField
	DescriptionPostfix *StringField
	SKUPrefix          *StringField
	SKUPostfix         *StringField

	Attributes []map[string]string

	Sector        string
	Department    string
	MajorCategory string
	SubCategory   string
	ItemType      string
}

type RawAdditionalLine struct {
	Type       *StringField
	Text       *StringField
	LineNumber int
}

type RawCoupon struct {
	Type                string
	Amount              *FloatField
	SKU                 *StringField
	Description         *StringField
	RelatedProductIndex int
}

type RawPaymentMethod struct {
	Method     *StringField
	CardType   *StringField
	CardIssuer *StringField
	Amount     *FloatField
}

type RawShipment struct {
	Status   string
	Products []RawProduct
}

// RawPromotion index fields are exact decimal strings.
type RawPromotion struct {
	Slug                  string
	Reward                *float64
	RewardCurrency        string
	ErrorCode             int
	ErrorMessage          string
	RelatedProductIndexes []string
	Qualifications        [][]string
}

type RawSurvey struct {
	Slug        string
	RewardValue string
	StartDate   string
	EndDate     string
	Questions   []RawSurveyQuestion
}

type RawSurveyQuestion struct {
	Text            string
	Type            string
	Answers         []RawSurveyAnswer
	MultipleAnswers bool
	UserResponse    *RawSurveyResponse
}

type RawSurveyAnswer struct {
	Text string
}

type RawSurveyResponse struct {
	AnswersSelected []string
	FreeText        string
}

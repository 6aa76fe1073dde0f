// Package provider holds the closed enumerations for linkable sources and the
// codec tables translating them to and from raw engine identifiers.
package provider

import (
	"fmt"

	"capture/internal"
)

// Retailer is one value of the versioned retailer catalog.
type Retailer string

func (Retailer) Family() internal.Family { return internal.FamilyRetailer }
func (r Retailer) String() string        { return string(r) }

// Email is one of the supported mailbox providers.
type Email string

func (Email) Family() internal.Family { return internal.FamilyEmail }
func (e Email) String() string        { return string(e) }

const (
	RetailerAcmeMarkets      Retailer = "ACME_MARKETS"
	RetailerAlbertsons       Retailer = "ALBERTSONS"
	RetailerAmazon           Retailer = "AMAZON"
	RetailerAmazonBeta       Retailer = "AMAZON_BETA"
	RetailerAmazonCA         Retailer = "AMAZON_CA"
	RetailerAmazonUK         Retailer = "AMAZON_UK"
	RetailerBedBathAndBeyond Retailer = "BED_BATH_AND_BEYOND"
	RetailerBestBuy          Retailer = "BESTBUY"
	RetailerBJsWholesale     Retailer = "BJS_WHOLESALE"
	RetailerChewy            Retailer = "CHEWY"
	RetailerCostco           Retailer = "COSTCO"
	RetailerCVS              Retailer = "CVS"
	RetailerDicksSporting    Retailer = "DICKS_SPORTING_GOODS"
	RetailerDollarGeneral    Retailer = "DOLLAR_GENERAL"
	RetailerDollarTree       Retailer = "DOLLAR_TREE"
	RetailerDominosPizza     Retailer = "DOMINOS_PIZZA"
	RetailerDoorDash         Retailer = "DOOR_DASH"
	RetailerDrizly           Retailer = "DRIZLY"
	RetailerFamilyDollar     Retailer = "FAMILY_DOLLAR"
	RetailerFood4Less        Retailer = "FOOD_4_LESS"
	RetailerFoodLion         Retailer = "FOOD_LION"
	RetailerFredMeyer        Retailer = "FRED_MEYER"
	RetailerGap              Retailer = "GAP"
	RetailerGiantEagle       Retailer = "GIANT_EAGLE"
	RetailerGrubhub          Retailer = "GRUBHUB"
	RetailerHarrisTeeter     Retailer = "HARRIS_TEETER"
	RetailerHEB              Retailer = "HEB"
	RetailerHomeDepot        Retailer = "HOME_DEPOT"
	RetailerHyVee            Retailer = "HYVEE"
	RetailerInstacart        Retailer = "INSTACART"
	RetailerJewelOsco        Retailer = "JEWEL_OSCO"
	RetailerKohls            Retailer = "KOHLS"
	RetailerKroger           Retailer = "KROGER"
	RetailerLowes            Retailer = "LOWES"
	RetailerMacys            Retailer = "MACYS"
	RetailerMarshalls        Retailer = "MARSHALLS"
	RetailerMeijer           Retailer = "MEIJER"
	RetailerNike             Retailer = "NIKE"
	RetailerPostmates        Retailer = "POSTMATES"
	RetailerPublix           Retailer = "PUBLIX"
	RetailerRalphs           Retailer = "RALPHS"
	RetailerRiteAid          Retailer = "RITE_AID"
	RetailerSafeway          Retailer = "SAFEWAY"
	RetailerSamsClub         Retailer = "SAMS_CLUB"
	RetailerSeamless         Retailer = "SEAMLESS"
	RetailerSephora          Retailer = "SEPHORA"
	RetailerShipt            Retailer = "SHIPT"
	RetailerShopRite         Retailer = "SHOPRITE"
	RetailerSprouts          Retailer = "SPROUTS"
	RetailerStaples          Retailer = "STAPLES"
	RetailerStarbucks        Retailer = "STARBUCKS"
	RetailerTacoBell         Retailer = "TACO_BELL"
	RetailerTarget           Retailer = "TARGET"
	RetailerTJMaxx           Retailer = "TJ_MAXX"
	RetailerUberEats         Retailer = "UBER_EATS"
	RetailerUlta             Retailer = "ULTA"
	RetailerVons             Retailer = "VONS"
	RetailerWalgreens        Retailer = "WALGREENS"
	RetailerWalmart          Retailer = "WALMART"
	RetailerWalmartCA        Retailer = "WALMART_CA"
	RetailerWegmans          Retailer = "WEGMANS"
)

const (
	EmailGmail   Email = "GMAIL"
	EmailOutlook Email = "OUTLOOK"
	EmailYahoo   Email = "YAHOO"
	EmailAOL     Email = "AOL"
	EmailCustom  Email = "CUSTOM"
	EmailNone    Email = "NONE"
)

// retailerCodes maps each catalog value to its raw engine identifier. The map
// is the single source of truth; the decode direction is derived from it at
// init so the two directions cannot drift apart.
var retailerCodes = map[Retailer]string{
	RetailerAcmeMarkets:      "acmeMarkets",
	RetailerAlbertsons:       "albertsons",
	RetailerAmazon:           "amazon",
	RetailerAmazonBeta:       "amazonBeta",
	RetailerAmazonCA:         "amazonBetaCA",
	RetailerAmazonUK:         "amazonBetaUK",
	RetailerBedBathAndBeyond: "bedBath",
	RetailerBestBuy:          "bestBuy",
	RetailerBJsWholesale:     "bjs",
	RetailerChewy:            "chewy",
	RetailerCostco:           "costco",
	RetailerCVS:              "cvs",
	RetailerDicksSporting:    "dicksSportingGoods",
	RetailerDollarGeneral:    "dollarGeneral",
	RetailerDollarTree:       "dollarTree",
	RetailerDominosPizza:     "dominosPizza",
	RetailerDoorDash:         "doordash",
	RetailerDrizly:           "drizly",
	RetailerFamilyDollar:     "familyDollar",
	RetailerFood4Less:        "food4Less",
	RetailerFoodLion:         "foodLion",
	RetailerFredMeyer:        "fredMeyer",
	RetailerGap:              "gap",
	RetailerGiantEagle:       "giantEagle",
	RetailerGrubhub:          "grubhub",
	RetailerHarrisTeeter:     "harrisTeeter",
	RetailerHEB:              "heb",
	RetailerHomeDepot:        "homeDepot",
	RetailerHyVee:            "hyVee",
	RetailerInstacart:        "instacart",
	RetailerJewelOsco:        "jewelOsco",
	RetailerKohls:            "kohls",
	RetailerKroger:           "kroger",
	RetailerLowes:            "lowes",
	RetailerMacys:            "macys",
	RetailerMarshalls:        "marshalls",
	RetailerMeijer:           "meijer",
	RetailerNike:             "nike",
	RetailerPostmates:        "postmates",
	RetailerPublix:           "publix",
	RetailerRalphs:           "ralphs",
	RetailerRiteAid:          "riteAid",
	RetailerSafeway:          "safeway",
	RetailerSamsClub:         "samsClub",
	RetailerSeamless:         "seamless",
	RetailerSephora:          "sephora",
	RetailerShipt:            "shipt",
	RetailerShopRite:         "shoprite",
	RetailerSprouts:          "sprouts",
	RetailerStaples:          "staples",
	RetailerStarbucks:        "starbucks",
	RetailerTacoBell:         "tacoBell",
	RetailerTarget:           "target",
	RetailerTJMaxx:           "tjMaxx",
	RetailerUberEats:         "uberEats",
	RetailerUlta:             "ulta",
	RetailerVons:             "vons",
	RetailerWalgreens:        "walgreens",
	RetailerWalmart:          "walmart",
	RetailerWalmartCA:        "walmartCA",
	RetailerWegmans:          "wegmans",
}

var emailCodes = map[Email]string{
	EmailGmail:   "gmailIMAP",
	EmailOutlook: "outlook",
	EmailYahoo:   "yahoo",
	EmailAOL:     "aol",
	EmailCustom:  "customIMAP",
	EmailNone:    "none",
}

// emailAliases are alternate raw codes some engine versions emit; they decode
// to the same provider but are never produced by the encode direction.
var emailAliases = map[string]Email{
	"gmail":   EmailGmail,
	"yahooV2": EmailYahoo,
}

var (
	retailerByCode map[string]Retailer
	emailByCode    map[string]Email
)

func init() {
	var err error
	retailerByCode, err = invert(retailerCodes)
	if err != nil {
		panic("provider: retailer table: " + err.Error())
	}
	emailByCode, err = invert(emailCodes)
	if err != nil {
		panic("provider: email table: " + err.Error())
	}
	for code, p := range emailAliases {
		if _, clash := emailByCode[code]; clash {
			panic("provider: email alias clashes with primary code: " + code)
		}
		emailByCode[code] = p
	}
}

func invert[K comparable](codes map[K]string) (map[string]K, error) {
	out := make(map[string]K, len(codes))
	for k, code := range codes {
		if code == "" {
			return nil, fmt.Errorf("empty code for %v", k)
		}
		if dup, ok := out[code]; ok {
			return nil, fmt.Errorf("code %q mapped to both %v and %v", code, dup, k)
		}
		out[code] = k
	}
	return out, nil
}

// EncodeRetailer is total over the closed enumeration by construction.
func EncodeRetailer(r Retailer) (string, error) {
	code, ok := retailerCodes[r]
	if !ok {
		return "", internal.Errorf(internal.KindUnsupportedProvider, "unknown retailer %q", r)
	}
	return code, nil
}

// DecodeRetailer translates a raw engine code. Unknown codes yield an
// unsupported_provider error, never a default retailer.
func DecodeRetailer(code string) (Retailer, error) {
	r, ok := retailerByCode[code]
	if !ok {
		return "", internal.Errorf(internal.KindUnsupportedProvider, "unsupported retailer code %q", code)
	}
	return r, nil
}

func EncodeEmail(e Email) (string, error) {
	code, ok := emailCodes[e]
	if !ok {
		return "", internal.Errorf(internal.KindUnsupportedProvider, "unknown email provider %q", e)
	}
	return code, nil
}

func DecodeEmail(code string) (Email, error) {
	e, ok := emailByCode[code]
	if !ok {
		return "", internal.Errorf(internal.KindUnsupportedProvider, "unsupported email provider code %q", code)
	}
	return e, nil
}

// Retailers lists the catalog in unspecified order.
func Retailers() []Retailer {
	out := make([]Retailer, 0, len(retailerCodes))
	for r := range retailerCodes {
		out = append(out, r)
	}
	return out
}

func Emails() []Email {
	out := make([]Email, 0, len(emailCodes))
	for e := range emailCodes {
		out = append(out, e)
	}
	return out
}

// Parse resolves a canonical provider name (e.g. "WALMART", "GMAIL") from
// either family, for CLI and config surfaces.
func Parse(name string) (internal.Provider, error) {
	if _, ok := retailerCodes[Retailer(name)]; ok {
		return Retailer(name), nil
	}
	if _, ok := emailCodes[Email(name)]; ok {
		return Email(name), nil
	}
	return nil, internal.Errorf(internal.KindUnsupportedProvider, "unknown provider %q", name)
}

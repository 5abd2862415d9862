package mh10

// Control bytes used by ISO/IEC 15434 as field and record delimiters.
const (
	GS  = 0x1D // group separator
	RS  = 0x1E // record separator
	EOT = 0x04 // end of transmission
)

// Standard is the grammar the parser implements.
const Standard = "ISO/IEC 15434 (MH10.8.2) Format 06"

// diOrder lists the Data Identifiers found on Digi-Key pick labels,
// longest-first so a short DI never shadows a longer one ("30P" must win
// over "P", "12Z" over "Z").
var diOrder = []string{
	"30P", "12Z", "11Z", "11K", "10K", "10D",
	"1K", "1P", "1T", "9D", "4L", "Q", "K", "P", "E", "13Z", "20Z",
}

// diToField maps each DI to the canonical field name exposed to consumers.
var diToField = map[string]string{
	"P":   "customer_reference",
	"1P":  "mfr_part_number",
	"30P": "digikey_part_number",
	"K":   "purchase_order",
	"1K":  "sales_order",
	"10K": "invoice_number",
	"9D":  "date_code",
	"10D": "date_code", // alternate DI used by some suppliers
	"1T":  "lot_code",
	"11K": "packing_list_number",
	"4L":  "country_of_origin",
	"Q":   "quantity",
	"11Z": "label_type",
	"12Z": "internal_part_id",
	"13Z": "internal_unused",
	"20Z": "padding",
	"E":   "compliance",
}

// legacyAliases keeps old field names working for downstream consumers.
var legacyAliases = map[string]string{
	"manufacturer_part_number": "mfr_part_number",
}

// requiredDIs feeds the missing_required diagnostic. Purely informational,
// distinct from the acceptance policy below.
var requiredDIs = []string{"30P", "Q"}

// Policy is the acceptance gate applied by the decode worker: a payload is
// complete only when every required DI was matched and the payload is not
// the digits-only fallback.
type Policy struct {
	RequiredDIs []string
}

// DefaultPolicy requires the Digi-Key part number, quantity, and
// manufacturer part number.
func DefaultPolicy() Policy {
	return Policy{RequiredDIs: []string{"30P", "Q", "1P"}}
}

// Complete reports whether the payload satisfies the policy.
func (p Policy) Complete(payload Payload) bool {
	if payload.Inference != nil && payload.Inference.Inference == InferenceDigitsOnly {
		return false
	}
	if len(payload.ByDI) == 0 {
		if _, ok := payload.Fields["internal_part_id"]; ok {
			return false
		}
	}
	for _, di := range p.RequiredDIs {
		if _, ok := payload.ByDI[di]; !ok {
			return false
		}
	}
	return true
}

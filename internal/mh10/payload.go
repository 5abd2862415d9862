// Package mh10 parses the semi-structured payload carried by the DataMatrix
// symbol on Digi-Key part packaging: an ISO/IEC 15434 envelope wrapping
// MH10.8.2 Format 06 Data-Identifier-tagged fields.
//
// Parsing is total: malformed input never produces an error, only a payload
// with diagnostics attached. Ambiguity becomes data, not failure.
package mh10

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
)

// Payload is the structured result of parsing one raw symbol.
type Payload struct {
	Standard    string         `json:"standard"`
	Envelope    Envelope       `json:"envelope"`
	Fields      map[string]any `json:"fields"`
	ByDI        map[string]string `json:"by_di"`
	Inference   *Inference     `json:"inference,omitempty"`
	Diagnostics *Diagnostics   `json:"diagnostics,omitempty"`
	Raw         RawViews       `json:"raw"`
}

// Envelope records whether the 15434 header/trailer matched exactly.
type Envelope struct {
	Valid bool `json:"valid"`
}

// InferenceDigitsOnly marks a payload recovered by the digits-only fallback:
// some packages print the internal product id bare, without the MH10 envelope.
const InferenceDigitsOnly = "digits_only_internal_id"

// Inference describes a best-effort interpretation applied when no DI matched.
type Inference struct {
	Inference string `json:"inference"`
}

// Diagnostics surfaces everything the parser could not place cleanly.
type Diagnostics struct {
	UnknownGroups   []string    `json:"unknown_groups,omitempty"`
	Duplicates      []Duplicate `json:"duplicates,omitempty"`
	MissingRequired []string    `json:"missing_required,omitempty"`
}

// Duplicate records a DI that occurred more than once; the later value wins.
type Duplicate struct {
	DI       string `json:"di"`
	Previous string `json:"previous"`
	Kept     string `json:"kept"`
}

// RawViews keeps the original bytes plus printable renderings with the
// control bytes spelled out.
type RawViews struct {
	Bytes                    []byte `json:"bytes"`
	StringVisibleSeparators  string `json:"string_visible_separators"`
	PayloadVisibleSeparators string `json:"payload_visible_separators"`
}

var (
	envelopeHeader  = append([]byte("[)>"), RS, '0', '6', GS)
	envelopeTrailer = []byte{RS, EOT}

	twoLetterCountry = regexp.MustCompile(`^[A-Z]{2}$`)
)

// Parse decodes raw symbol bytes into a Payload. It never fails.
func Parse(raw []byte) Payload {
	norm := normalizeControls(raw)

	var body []byte
	envelopeValid := false
	if bytes.HasPrefix(norm, envelopeHeader) && bytes.HasSuffix(norm, envelopeTrailer) {
		envelopeValid = true
		body = norm[len(envelopeHeader) : len(norm)-len(envelopeTrailer)]
	} else {
		body = stripEnvelope(norm)
	}

	byDI := make(map[string]string)
	var unknown []string
	var duplicates []Duplicate

	for _, tok := range bytes.Split(body, []byte{GS}) {
		if len(tok) == 0 {
			continue
		}
		di := matchDI(tok)
		if di == "" {
			unknown = append(unknown, latin1(tok))
			continue
		}
		value := strings.TrimSpace(latin1(tok[len(di):]))
		if prev, ok := byDI[di]; ok {
			duplicates = append(duplicates, Duplicate{DI: di, Previous: prev, Kept: value})
		}
		byDI[di] = value // last-wins
	}

	fields := projectFields(byDI)

	// Digits-only payloads sometimes carry Digi-Key's internal product id
	// printed without the MH10.8.2 envelope.
	var inference *Inference
	bodyStr := strings.TrimSpace(latin1(body))
	if len(byDI) == 0 && isDigits(bodyStr) && len(bodyStr) >= 6 && len(bodyStr) <= 14 {
		fields["internal_part_id"] = bodyStr
		inference = &Inference{Inference: InferenceDigitsOnly}
	}

	var missing []string
	for _, di := range requiredDIs {
		if _, ok := byDI[di]; !ok {
			missing = append(missing, di)
		}
	}

	result := Payload{
		Standard:  Standard,
		Envelope:  Envelope{Valid: envelopeValid},
		Fields:    fields,
		ByDI:      byDI,
		Inference: inference,
		Raw: RawViews{
			Bytes:                    raw,
			StringVisibleSeparators:  visible(raw),
			PayloadVisibleSeparators: visible(body),
		},
	}
	if len(unknown) > 0 || len(duplicates) > 0 || len(missing) > 0 {
		result.Diagnostics = &Diagnostics{
			UnknownGroups:   unknown,
			Duplicates:      duplicates,
			MissingRequired: missing,
		}
	}
	return result
}

// ParseText parses a payload that arrived as text, e.g. pasted into the web
// UI; placeholder and hex escapes are handled by normalizeControls.
func ParseText(s string) Payload {
	return Parse(latin1Bytes(s))
}

// matchDI identifies the token's Data Identifier by longest known prefix.
func matchDI(tok []byte) string {
	for _, di := range diOrder {
		if len(tok) >= len(di) && string(tok[:len(di)]) == di {
			return di
		}
	}
	return ""
}

// projectFields maps matched DIs onto canonical field names and applies the
// per-field normalizations.
func projectFields(byDI map[string]string) map[string]any {
	fields := make(map[string]any)

	put := func(di string) {
		if v, ok := byDI[di]; ok {
			fields[diToField[di]] = v
		}
	}
	for di := range diToField {
		if di == "9D" || di == "10D" {
			continue // date code handled below
		}
		put(di)
	}

	// Date code prefers 9D over 10D; a differing 10D is kept on the side.
	if v, ok := byDI["9D"]; ok {
		fields["date_code"] = strings.TrimSpace(v)
	} else if v, ok := byDI["10D"]; ok {
		fields["date_code"] = strings.TrimSpace(v)
	}
	if v9, ok9 := byDI["9D"]; ok9 {
		if v10, ok10 := byDI["10D"]; ok10 && v9 != v10 {
			fields["date_code_sources"] = map[string]string{"10D": v10}
		}
	}

	if q, ok := fields["quantity"].(string); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(q)); err == nil {
			fields["quantity"] = n
		}
		// non-integer quantities stay as the original string
	}

	if coo, ok := fields["country_of_origin"].(string); ok {
		coo = strings.ToUpper(strings.TrimSpace(coo))
		fields["country_of_origin"] = coo
		if !twoLetterCountry.MatchString(coo) {
			fields["_warnings"] = []string{"country_of_origin not 2-letter code"}
		}
	}

	for legacy, canonical := range legacyAliases {
		if v, ok := fields[canonical]; ok {
			if _, exists := fields[legacy]; !exists {
				fields[legacy] = v
			}
		}
	}
	return fields
}

// normalizeControls maps textual placeholders like "<GS>" back to control
// bytes, decodes textual hex escapes like `\x1D`, and trims whitespace.
func normalizeControls(b []byte) []byte {
	b = bytes.ReplaceAll(b, []byte("<GS>"), []byte{GS})
	b = bytes.ReplaceAll(b, []byte("<RS>"), []byte{RS})
	b = bytes.ReplaceAll(b, []byte("<EOT>"), []byte{EOT})
	b = unescapeTextualHex(b)
	return bytes.TrimSpace(b)
}

func unescapeTextualHex(buf []byte) []byte {
	out := make([]byte, 0, len(buf))
	for i := 0; i < len(buf); {
		if i+3 < len(buf) && buf[i] == '\\' && (buf[i+1] == 'x' || buf[i+1] == 'X') &&
			isHexDigit(buf[i+2]) && isHexDigit(buf[i+3]) {
			n, _ := strconv.ParseUint(string(buf[i+2:i+4]), 16, 8)
			out = append(out, byte(n))
			i += 4
			continue
		}
		out = append(out, buf[i])
		i++
	}
	return out
}

// stripEnvelope is the best-effort path for bytes that failed the exact
// envelope match: drop trailing RS/EOT and a leading header fragment.
func stripEnvelope(b []byte) []byte {
	b = bytes.TrimRight(b, string([]byte{RS, EOT}))
	if bytes.HasPrefix(b, envelopeHeader) {
		b = b[len(envelopeHeader):]
	}
	return b
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// latin1 decodes bytes one-to-one into the first 256 code points, so no
// input byte is ever lost to a UTF-8 decoding error.
func latin1(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		sb.WriteRune(rune(c))
	}
	return sb.String()
}

// latin1Bytes is the inverse of latin1; code points above 255 degrade to '?'.
func latin1Bytes(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xFF {
			out = append(out, '?')
			continue
		}
		out = append(out, byte(r))
	}
	return out
}

// visible renders bytes with the control separators spelled out.
func visible(b []byte) string {
	s := latin1(b)
	s = strings.ReplaceAll(s, string(rune(GS)), "<GS>")
	s = strings.ReplaceAll(s, string(rune(RS)), "<RS>")
	s = strings.ReplaceAll(s, string(rune(EOT)), "<EOT>")
	return s
}

// Package transform turns mapped spreadsheet cells into entity drafts and
// infers missing draft fields.
package transform

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/joselpq/arqcashflow/internal/model"
	"github.com/joselpq/arqcashflow/internal/normalize"
)

// TransformValue converts a raw cell according to the column's transform
// kind. It returns nil for empty or unparseable input; nil is distinct from
// zero.
func TransformValue(raw string, fm model.FieldMapping) any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	switch fm.Transform {
	case model.TransformCurrency:
		if v := ParseCurrency(raw); v != nil {
			return *v
		}
		return nil
	case model.TransformNumber:
		if v := ParseNumber(raw); v != nil {
			return *v
		}
		return nil
	case model.TransformDate:
		if d := ParseDate(raw); d != nil {
			return *d
		}
		return nil
	case model.TransformStatus:
		if len(fm.EnumValues) > 0 {
			return MatchEnum(raw, fm.EnumValues)
		}
		return MatchVocabulary(raw)
	case model.TransformEnum:
		if len(fm.EnumValues) == 0 {
			return MatchVocabulary(raw)
		}
		return MatchEnum(raw, fm.EnumValues)
	default:
		return raw
	}
}

var currencySymbols = []string{"R$", "US$", "USD", "BRL", "EUR", "$", "€", "£"}

// ParseCurrency parses amounts in either grouping convention. The
// right-most separator decides: one or two digits after it make it the
// decimal point ("1.234,56"), three or more make it a thousands separator
// ("1,234"). Returns nil when no number can be read.
func ParseCurrency(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == ',', r == '.':
			b.WriteRune(r)
		case r == '-' || r == '−':
			if b.Len() == 0 || strings.HasSuffix(strings.TrimSpace(s), string(r)) {
				negative = true
			}
		}
	}
	digits := b.String()
	if !strings.ContainsAny(digits, "0123456789") {
		return nil
	}

	canonical := canonicalNumber(digits)
	d, err := decimal.NewFromString(canonical)
	if err != nil {
		return nil
	}
	if negative {
		d = d.Neg()
	}
	v := d.InexactFloat64()
	return &v
}

// canonicalNumber rewrites digits with ',' and '.' into a plain decimal string.
func canonicalNumber(s string) string {
	s = strings.Trim(s, ",.")
	i := strings.LastIndexAny(s, ",.")
	if i < 0 {
		return s
	}

	intPart, frac := s[:i], s[i+1:]
	intDigits := strings.NewReplacer(",", "", ".", "").Replace(intPart)

	switch {
	case len(frac) <= 2:
		return intDigits + "." + frac
	case intDigits == "" || intDigits == "0":
		// "0.125" is never thousands grouping.
		return "0." + frac
	default:
		return intDigits + frac
	}
}

// ParseNumber is ParseCurrency for plain numeric cells; text containing
// letters is rejected.
func ParseNumber(s string) *float64 {
	stripped := s
	for _, sym := range currencySymbols {
		stripped = strings.ReplaceAll(stripped, sym, "")
	}
	for _, r := range stripped {
		if unicode.IsLetter(r) {
			return nil
		}
	}
	return ParseCurrency(strings.TrimSuffix(strings.TrimSpace(s), "%"))
}

// FormatAmount renders a value in the canonical two-decimal form.
func FormatAmount(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// Round2 rounds a monetary value to cents.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

var (
	isoDate      = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})(?:[T ].*)?$`)
	dayMonthName = regexp.MustCompile(`^(\d{1,2})[\s./-]+([^\d\s./,-]{3,})\.?[\s./,-]+(\d{2,4})$`)
	monthNameDay = regexp.MustCompile(`^([^\d\s./,-]{3,})\.?[\s./-]+(\d{1,2}),?[\s./-]+(\d{2,4})$`)
	numericDate  = regexp.MustCompile(`^(\d{1,4})[./-](\d{1,2})[./-](\d{1,4})$`)
	serialNumber = regexp.MustCompile(`^\d{5}(?:\.\d+)?$`)
)

// monthNames maps the first three folded letters of English and Portuguese
// month names to month numbers.
var monthNames = map[string]time.Month{
	"jan": time.January, "feb": time.February, "fev": time.February,
	"mar": time.March, "apr": time.April, "abr": time.April,
	"may": time.May, "mai": time.May, "jun": time.June, "jul": time.July,
	"aug": time.August, "ago": time.August, "sep": time.September,
	"set": time.September, "oct": time.October, "out": time.October,
	"nov": time.November, "dec": time.December, "dez": time.December,
}

// ParseDate normalises ISO, day-month-name, numeric and Excel serial dates
// to YYYY-MM-DD. Numeric dates are read day-first unless the first token is
// a year; month-first is used only when day-first is impossible.
func ParseDate(s string) *model.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, " de ", " ")

	if m := isoDate.FindStringSubmatch(s); m != nil {
		return civil(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}

	// Drop a trailing time component: "23/10/2020 14:30".
	if i := strings.IndexByte(s, ' '); i > 0 && strings.Contains(s[i:], ":") {
		s = strings.TrimSpace(s[:i])
	}

	if m := dayMonthName.FindStringSubmatch(s); m != nil {
		if mon, ok := month(m[2]); ok {
			return civil(expandYear(m[3]), int(mon), atoi(m[1]))
		}
	}
	if m := monthNameDay.FindStringSubmatch(s); m != nil {
		if mon, ok := month(m[1]); ok {
			return civil(expandYear(m[3]), int(mon), atoi(m[2]))
		}
	}

	if m := numericDate.FindStringSubmatch(s); m != nil {
		a, b, c := m[1], m[2], m[3]
		if len(a) == 4 || atoi(a) > 31 {
			return civil(expandYear(a), atoi(b), atoi(c))
		}
		day, mon := atoi(a), atoi(b)
		if mon > 12 && day <= 12 {
			day, mon = mon, day
		}
		return civil(expandYear(c), mon, day)
	}

	if serialNumber.MatchString(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		t, err := excelize.ExcelDateToTime(f, false)
		if err != nil {
			return nil
		}
		d := model.NewDate(t)
		return &d
	}
	return nil
}

func month(name string) (time.Month, bool) {
	folded := normalize.Fold(name)
	if len(folded) < 3 {
		return 0, false
	}
	m, ok := monthNames[folded[:3]]
	return m, ok
}

// expandYear maps two-digit years below 30 to the 2000s, others to the 1900s.
func expandYear(s string) int {
	y := atoi(s)
	if len(s) <= 2 {
		if y < 30 {
			return 2000 + y
		}
		return 1900 + y
	}
	return y
}

// civil validates the calendar date, rejecting rollovers such as 31/02.
func civil(y, m, d int) *model.Date {
	if m < 1 || m > 12 || d < 1 || d > 31 || y < 1000 || y > 9999 {
		return nil
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || int(t.Month()) != m {
		return nil
	}
	out := model.NewDate(t)
	return &out
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

// vocabulary maps folded status phrases to canonical tokens.
var vocabulary = map[string]string{
	"pago": model.StatusPaid, "paga": model.StatusPaid, "pagos": model.StatusPaid,
	"paid": model.StatusPaid, "quitado": model.StatusPaid, "quitada": model.StatusPaid,
	"liquidado": model.StatusPaid,

	"recebido": model.StatusReceived, "recebida": model.StatusReceived,
	"received": model.StatusReceived, "creditado": model.StatusReceived,

	"pendente": model.StatusPending, "pending": model.StatusPending,
	"a pagar": model.StatusPending, "a receber": model.StatusPending,
	"em aberto": model.StatusPending, "aberto": model.StatusPending,
	"open": model.StatusPending, "unpaid": model.StatusPending,
	"aguardando": model.StatusPending, "previsto": model.StatusPending,
	"nao pago": model.StatusPending, "nao recebido": model.StatusPending,
	"not paid": model.StatusPending, "not received": model.StatusPending,

	"atrasado": model.StatusOverdue, "atrasada": model.StatusOverdue,
	"em atraso": model.StatusOverdue, "vencido": model.StatusOverdue,
	"vencida": model.StatusOverdue, "overdue": model.StatusOverdue,
	"late": model.StatusOverdue,

	"cancelado": model.StatusCancelled, "cancelada": model.StatusCancelled,
	"cancelled": model.StatusCancelled, "canceled": model.StatusCancelled,

	"ativo": model.StatusActive, "ativa": model.StatusActive,
	"active": model.StatusActive, "em andamento": model.StatusActive,
	"andamento": model.StatusActive, "in progress": model.StatusActive,
	"vigente": model.StatusActive,

	"concluido": model.StatusCompleted, "concluida": model.StatusCompleted,
	"finalizado": model.StatusCompleted, "finalizada": model.StatusCompleted,
	"completed": model.StatusCompleted, "complete": model.StatusCompleted,
	"encerrado": model.StatusCompleted, "done": model.StatusCompleted,

	"sim": Yes, "yes": Yes, "s": Yes, "y": Yes, "true": Yes, "x": Yes, "ok": Yes,
	"nao": No, "no": No, "n": No, "false": No,
}

// Boolean-like vocabulary tokens, resolved per entity type.
const (
	Yes = "yes"
	No  = "no"
)

// vocabularyBySize lists phrases longest first so "nao pago" beats "pago".
var vocabularyBySize = func() []string {
	keys := make([]string, 0, len(vocabulary))
	for k := range vocabulary {
		if len(k) >= 3 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// MatchVocabulary resolves a status-like cell by exact match, then
// case-insensitive match, then accent-insensitive substring match. Unmatched
// values fall through lower-cased.
func MatchVocabulary(raw string) string {
	raw = strings.TrimSpace(raw)
	if v, ok := vocabulary[raw]; ok {
		return v
	}
	lower := strings.ToLower(raw)
	if v, ok := vocabulary[lower]; ok {
		return v
	}
	folded := normalize.Fold(raw)
	if v, ok := vocabulary[folded]; ok {
		return v
	}
	for _, k := range vocabularyBySize {
		if containsWord(folded, k) {
			return vocabulary[k]
		}
	}
	return lower
}

// MatchEnum resolves raw against caller-supplied values with the same
// exact, case-insensitive, substring cascade.
func MatchEnum(raw string, values []string) string {
	raw = strings.TrimSpace(raw)
	for _, v := range values {
		if v == raw {
			return v
		}
	}
	for _, v := range values {
		if strings.EqualFold(v, raw) {
			return v
		}
	}
	folded := normalize.Fold(raw)
	for _, v := range values {
		fv := normalize.Fold(v)
		if fv != "" && (strings.Contains(folded, fv) || strings.Contains(fv, folded)) {
			return v
		}
	}
	return strings.ToLower(raw)
}

// containsWord reports whether phrase occurs in s on word boundaries.
func containsWord(s, phrase string) bool {
	for i := 0; ; {
		j := strings.Index(s[i:], phrase)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(phrase)
		if (start == 0 || !isWordByte(s[start-1])) && (end == len(s) || !isWordByte(s[end])) {
			return true
		}
		i = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

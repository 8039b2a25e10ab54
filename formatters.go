package scenes

import (
	"encoding/json"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"
	"time"
)

// Built-in formatter ids.
const (
	FormatRaw           = "raw"
	FormatRegex         = "regex"
	FormatGlob          = "glob"
	FormatPipe          = "pipe"
	FormatCSV           = "csv"
	FormatDistributed   = "distributed"
	FormatLucene        = "lucene"
	FormatJSON          = "json"
	FormatHTML          = "html"
	FormatPercentEncode = "percentencode"
	FormatURIEncode     = "uriencode"
	FormatSingleQuote   = "singlequote"
	FormatDoubleQuote   = "doublequote"
	FormatSQLString     = "sqlstring"
	FormatDate          = "date"
	FormatText          = "text"
	FormatQueryParam    = "queryparam"
	FormatJoin          = "join"
)

func builtinFormatters() map[string]FormatterFunc {
	return map[string]FormatterFunc{
		FormatRaw:           formatRaw,
		FormatRegex:         formatRegex,
		FormatGlob:          formatGlob,
		FormatPipe:          formatPipe,
		FormatCSV:           formatCSV,
		FormatDistributed:   formatDistributed,
		FormatLucene:        formatLucene,
		FormatJSON:          formatJSON,
		FormatHTML:          formatHTML,
		FormatPercentEncode: formatPercentEncode,
		FormatURIEncode:     formatURIEncode,
		FormatSingleQuote:   formatSingleQuote,
		FormatDoubleQuote:   formatDoubleQuote,
		FormatSQLString:     formatSQLString,
		FormatDate:          formatDate,
		FormatText:          formatText,
		FormatQueryParam:    formatQueryParam,
		FormatJoin:          formatJoin,
	}
}

func formatRaw(value any, _ []string, _ FormatVariable) string {
	if list, ok := value.([]string); ok {
		return strings.Join(list, ",")
	}
	return stringify(value)
}

func formatRegex(value any, _ []string, _ FormatVariable) string {
	list, ok := value.([]string)
	if !ok {
		return escapeRegex(stringify(value))
	}
	escaped := mapStrings(list, escapeRegex)
	if len(escaped) == 1 {
		return escaped[0]
	}
	return "(" + strings.Join(escaped, "|") + ")"
}

func formatGlob(value any, _ []string, _ FormatVariable) string {
	list, ok := value.([]string)
	if !ok {
		return stringify(value)
	}
	if len(list) == 1 {
		return list[0]
	}
	return "{" + strings.Join(list, ",") + "}"
}

func formatPipe(value any, _ []string, _ FormatVariable) string {
	if list, ok := value.([]string); ok {
		return strings.Join(list, "|")
	}
	return stringify(value)
}

func formatCSV(value any, _ []string, _ FormatVariable) string {
	if list, ok := value.([]string); ok {
		return strings.Join(list, ",")
	}
	return stringify(value)
}

func formatDistributed(value any, _ []string, variable FormatVariable) string {
	list, ok := value.([]string)
	if !ok {
		return stringify(value)
	}
	name := ""
	if variable != nil {
		name = variable.Name()
	}
	parts := make([]string, len(list))
	for i, v := range list {
		if i == 0 {
			parts[i] = v
		} else {
			parts[i] = name + "=" + v
		}
	}
	return strings.Join(parts, ",")
}

func formatLucene(value any, _ []string, _ FormatVariable) string {
	list, ok := value.([]string)
	if !ok {
		return escapeLucene(stringify(value))
	}
	if len(list) == 1 {
		return escapeLucene(list[0])
	}
	quoted := mapStrings(list, func(s string) string { return `"` + escapeLucene(s) + `"` })
	return "(" + strings.Join(quoted, " OR ") + ")"
}

func formatJSON(value any, _ []string, _ FormatVariable) string {
	out, err := json.Marshal(value)
	if err != nil {
		return stringify(value)
	}
	return string(out)
}

func formatHTML(value any, _ []string, _ FormatVariable) string {
	if list, ok := value.([]string); ok {
		return strings.Join(mapStrings(list, html.EscapeString), ", ")
	}
	return html.EscapeString(stringify(value))
}

func formatPercentEncode(value any, _ []string, _ FormatVariable) string {
	if list, ok := value.([]string); ok {
		return percentEncode("{"+strings.Join(list, ",")+"}", "")
	}
	return percentEncode(stringify(value), "")
}

func formatURIEncode(value any, _ []string, _ FormatVariable) string {
	if list, ok := value.([]string); ok {
		return percentEncode("{"+strings.Join(list, ",")+"}", uriReserved)
	}
	return percentEncode(stringify(value), uriReserved)
}

func formatSingleQuote(value any, _ []string, _ FormatVariable) string {
	quote := func(s string) string { return "'" + strings.ReplaceAll(s, "'", `\'`) + "'" }
	if list, ok := value.([]string); ok {
		return strings.Join(mapStrings(list, quote), ",")
	}
	return quote(stringify(value))
}

func formatDoubleQuote(value any, _ []string, _ FormatVariable) string {
	quote := func(s string) string { return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"` }
	if list, ok := value.([]string); ok {
		return strings.Join(mapStrings(list, quote), ",")
	}
	return quote(stringify(value))
}

func formatSQLString(value any, _ []string, _ FormatVariable) string {
	quote := func(s string) string { return "'" + strings.ReplaceAll(s, "'", "''") + "'" }
	if list, ok := value.([]string); ok {
		return strings.Join(mapStrings(list, quote), ",")
	}
	return quote(stringify(value))
}

func formatText(value any, _ []string, variable FormatVariable) string {
	if variable != nil {
		return variable.ValueText()
	}
	return formatRaw(value, nil, nil)
}

func formatQueryParam(value any, _ []string, variable FormatVariable) string {
	name := ""
	if variable != nil {
		name = variable.Name()
	}
	values, ok := value.([]string)
	if !ok {
		values = []string{stringify(value)}
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = "var-" + name + "=" + percentEncode(v, "")
	}
	return strings.Join(parts, "&")
}

func formatJoin(value any, args []string, _ FormatVariable) string {
	sep := ","
	if len(args) > 0 {
		sep = args[0]
	}
	if list, ok := value.([]string); ok {
		return strings.Join(list, sep)
	}
	return stringify(value)
}

// formatDate renders epoch milliseconds. Arguments: none or "iso" for an ISO
// timestamp, "ms", "seconds", or a pattern such as "YYYY-MM-DD", optionally
// introduced by "custom". Patterns containing ':' arrive split into several
// arguments and are joined back.
func formatDate(value any, args []string, _ FormatVariable) string {
	text := stringify(value)
	ms, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return text
	}
	t := time.UnixMilli(int64(ms)).UTC()

	arg := "iso"
	if len(args) > 0 {
		arg = args[0]
	}
	switch arg {
	case "ms":
		return strconv.FormatInt(int64(ms), 10)
	case "seconds":
		return strconv.FormatInt(int64(math.Round(ms/1000)), 10)
	case "iso":
		return t.Format("2006-01-02T15:04:05.000Z")
	case "custom":
		return formatMoment(t, strings.Join(args[1:], ":"))
	default:
		return formatMoment(t, strings.Join(args, ":"))
	}
}

var momentTokens = []string{
	"YYYY", "YY", "MMMM", "MMM", "MM", "M", "DDDD", "DD", "Do", "D", "dddd", "ddd",
	"HH", "H", "hh", "h", "mm", "m", "ss", "s", "SSS", "A", "a", "ZZ", "Z", "X", "x",
}

// formatMoment renders t with moment-style tokens. Text in square brackets is
// copied verbatim.
func formatMoment(t time.Time, pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); {
		if pattern[i] == '[' {
			if end := strings.IndexByte(pattern[i:], ']'); end > 0 {
				b.WriteString(pattern[i+1 : i+end])
				i += end + 1
				continue
			}
		}
		matched := false
		for _, tok := range momentTokens {
			if strings.HasPrefix(pattern[i:], tok) {
				b.WriteString(momentToken(t, tok))
				i += len(tok)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(pattern[i])
			i++
		}
	}
	return b.String()
}

func momentToken(t time.Time, tok string) string {
	hour12 := t.Hour() % 12
	if hour12 == 0 {
		hour12 = 12
	}
	switch tok {
	case "YYYY":
		return fmt.Sprintf("%04d", t.Year())
	case "YY":
		return fmt.Sprintf("%02d", t.Year()%100)
	case "MMMM":
		return t.Month().String()
	case "MMM":
		return t.Month().String()[:3]
	case "MM":
		return fmt.Sprintf("%02d", int(t.Month()))
	case "M":
		return strconv.Itoa(int(t.Month()))
	case "DDDD":
		return fmt.Sprintf("%03d", t.YearDay())
	case "DD":
		return fmt.Sprintf("%02d", t.Day())
	case "Do":
		return ordinal(t.Day())
	case "D":
		return strconv.Itoa(t.Day())
	case "dddd":
		return t.Weekday().String()
	case "ddd":
		return t.Weekday().String()[:3]
	case "HH":
		return fmt.Sprintf("%02d", t.Hour())
	case "H":
		return strconv.Itoa(t.Hour())
	case "hh":
		return fmt.Sprintf("%02d", hour12)
	case "h":
		return strconv.Itoa(hour12)
	case "mm":
		return fmt.Sprintf("%02d", t.Minute())
	case "m":
		return strconv.Itoa(t.Minute())
	case "ss":
		return fmt.Sprintf("%02d", t.Second())
	case "s":
		return strconv.Itoa(t.Second())
	case "SSS":
		return fmt.Sprintf("%03d", t.Nanosecond()/int(time.Millisecond))
	case "A":
		if t.Hour() < 12 {
			return "AM"
		}
		return "PM"
	case "a":
		if t.Hour() < 12 {
			return "am"
		}
		return "pm"
	case "ZZ":
		return t.Format("-0700")
	case "Z":
		return t.Format("-07:00")
	case "X":
		return strconv.FormatInt(t.Unix(), 10)
	case "x":
		return strconv.FormatInt(t.UnixMilli(), 10)
	}
	return tok
}

func ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return strconv.Itoa(n) + suffix
}

const regexSpecials = `\^$*+?.()|[]{}/`

func escapeRegex(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(regexSpecials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

const luceneSpecials = `!*+-=<>&|()[]{}^~?:\/"`

func escapeLucene(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(luceneSpecials, r) || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// uriReserved are the characters left intact by URI encoding on top of the
// unreserved set.
const uriReserved = ";,/?:@&=+$#"

// percentEncode escapes every byte outside A-Z a-z 0-9 - _ . ~ and keep.
func percentEncode(s, keep string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) || (keep != "" && strings.IndexByte(keep, c) >= 0) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.' || c == '~'
}

func mapStrings(list []string, fn func(string) string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = fn(s)
	}
	return out
}

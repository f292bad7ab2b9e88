// Package sqlparse is a reference, byte-accurate producer of the
// sqlast contract. The real SQL parser used in production is an
// external collaborator (see the sqlast package's documentation); this
// scanner exists to drive the rewrite engine end to end in tests and
// in the cmd/rewrite demo CLI, grounded in the regex-based extraction
// style of a dedicated sql-parsing helper but generalized to carry
// byte-exact spans and nested subqueries.
package sqlparse

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shardkit/proxy/pkg/sqlast"
)

const identPattern = "(?:`[^`]+`|[A-Za-z_][A-Za-z0-9_]*)"

var (
	tableRefRe = regexp.MustCompile(`(?i)\b(FROM|INTO|UPDATE)\s+(` + identPattern + `)(\s*\.\s*(` + identPattern + `))?`)
	whereRe    = regexp.MustCompile(`(?i)\bWHERE\b`)
	orderByRe  = regexp.MustCompile(`(?i)\bORDER\s+BY\b`)
	groupByRe  = regexp.MustCompile(`(?i)\bGROUP\s+BY\b`)
	selectRe   = regexp.MustCompile(`(?i)\bSELECT\b`)
	valuesRe   = regexp.MustCompile(`(?i)\bVALUES\b`)
	andRe      = regexp.MustCompile(`(?i)\bAND\b`)
	eqRe       = regexp.MustCompile(`^(` + identPattern + `)\s*=\s*(-?\d+(?:\.\d+)?)$`)
	aggRe      = regexp.MustCompile(`(?i)^(AVG|SUM|COUNT|MIN|MAX)\s*\(\s*(` + identPattern + `)\s*\)$`)
	ascDescRe  = regexp.MustCompile(`(?i)\s+(ASC|DESC)$`)
)

// Parse scans raw SQL text into a sqlast.Statement, assigning scope ids
// to the top-level statement (1) and to any parenthesized subqueries
// (2, 3, ... in document order).
func Parse(sql string) (*sqlast.Statement, error) {
	stmt := &sqlast.Statement{Scopes: map[int]*sqlast.Scope{}}
	stmt.Kind = detectKind(sql)
	next := 2
	parseScope(sql, 0, 1, stmt, &next)
	return stmt, nil
}

func detectKind(sql string) sqlast.StatementKind {
	trimmed := strings.TrimSpace(sql)
	upper := strings.ToUpper(trimmed)
	switch {
	case strings.HasPrefix(upper, "INSERT"):
		return sqlast.KindInsert
	case strings.HasPrefix(upper, "UPDATE"):
		return sqlast.KindUpdate
	case strings.HasPrefix(upper, "DELETE"):
		return sqlast.KindDelete
	default:
		return sqlast.KindSelect
	}
}

func parseScope(text string, base int, id int, stmt *sqlast.Statement, next *int) {
	subs := findTopLevelSubqueries(text)
	masked := []byte(text)
	for _, sp := range subs {
		for i := sp.Start; i < sp.End(); i++ {
			masked[i] = ' '
		}
	}
	maskedStr := string(masked)

	scope := stmt.Scope(id)
	extractTable(maskedStr, base, scope)
	extractFields(maskedStr, base, scope)
	extractWhere(maskedStr, base, scope)
	if stmt.Kind == sqlast.KindInsert {
		extractInsert(text, maskedStr, base, scope)
	}
	extractOrderGroup(maskedStr, base, scope)

	for _, sp := range subs {
		innerText := text[sp.Start+1 : sp.End()-1]
		innerBase := base + sp.Start + 1
		childID := *next
		*next++
		parseScope(innerText, innerBase, childID, stmt, next)
	}
}

// findTopLevelSubqueries finds "(" ... ")" spans whose content begins
// with SELECT, scanning outside backtick/quote literals.
func findTopLevelSubqueries(text string) []sqlast.Span {
	var spans []sqlast.Span
	n := len(text)
	i := 0
	for i < n {
		c := text[i]
		switch c {
		case '`':
			i = skipQuoted(text, i, '`')
		case '\'', '"':
			i = skipQuoted(text, i, c)
		case '(':
			j := i + 1
			for j < n && isSpace(text[j]) {
				j++
			}
			if hasFoldPrefix(text[j:], "select") {
				k := matchParen(text, i)
				spans = append(spans, sqlast.Span{Start: i, Length: k - i})
				i = k
				continue
			}
			i++
		default:
			i++
		}
	}
	return spans
}

func skipQuoted(text string, i int, quote byte) int {
	i++
	for i < len(text) {
		if text[i] == quote {
			return i + 1
		}
		i++
	}
	return i
}

// matchParen returns the index just past the ')' matching the '(' at
// position open.
func matchParen(text string, open int) int {
	depth := 0
	i := open
	n := len(text)
	for i < n {
		switch text[i] {
		case '`':
			i = skipQuoted(text, i, '`')
			continue
		case '\'', '"':
			i = skipQuoted(text, i, text[i])
			continue
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
		i++
	}
	return n
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func hasFoldPrefix(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	return strings.EqualFold(s[:len(prefix)], prefix)
}

func stripBacktick(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '`' && s[len(s)-1] == '`' {
		return s[1 : len(s)-1], true
	}
	return s, false
}

func extractTable(text string, base int, scope *sqlast.Scope) {
	m := tableRefRe.FindStringSubmatchIndex(text)
	if m == nil {
		return
	}
	// groups: 0,1 full; 2,3 keyword; 4,5 ident1; 6,7 optional ".ident2"; 8,9 ident2
	firstStart, firstEnd := m[4], m[5]
	var ref sqlast.TableRef
	if m[8] >= 0 {
		schema, schemaBT := stripBacktick(text[firstStart:firstEnd])
		name, nameBT := stripBacktick(text[m[8]:m[9]])
		ref = sqlast.TableRef{
			Span:           sqlast.Span{Start: base + firstStart, Length: m[9] - firstStart},
			Schema:         schema,
			SchemaBacktick: schemaBT,
			Name:           name,
			NameBacktick:   nameBT,
		}
	} else {
		name, nameBT := stripBacktick(text[firstStart:firstEnd])
		ref = sqlast.TableRef{
			Span:         sqlast.Span{Start: base + firstStart, Length: firstEnd - firstStart},
			Name:         name,
			NameBacktick: nameBT,
		}
	}
	scope.Tables = append(scope.Tables, ref)
}

func extractFields(text string, base int, scope *sqlast.Scope) {
	sel := selectRe.FindStringIndex(text)
	if sel == nil {
		return
	}
	start := sel[1]
	fromIdx := findKeywordAfter(text, start, "FROM")
	end := len(text)
	if fromIdx >= 0 {
		end = fromIdx
	}
	fieldsText := text[start:end]
	parts := splitTopLevel(fieldsText, ',')
	offset := start
	for _, part := range parts {
		trimmedStart := offset
		trimmed := strings.TrimLeft(part, " \t\n\r")
		trimmedStart += len(part) - len(trimmed)
		trimmed2 := strings.TrimRight(trimmed, " \t\n\r")
		if trimmed2 == "" {
			offset += len(part) + 1
			continue
		}
		fieldSpan := sqlast.Span{Start: base + trimmedStart, Length: len(trimmed2)}
		name, agg := classifyField(trimmed2)
		scope.Fields = append(scope.Fields, sqlast.Field{Span: fieldSpan, Name: name, Agg: agg})
		offset += len(part) + 1
	}
}

func classifyField(s string) (string, sqlast.AggFunc) {
	if m := aggRe.FindStringSubmatch(s); m != nil {
		name, _ := stripBacktick(m[2])
		switch strings.ToUpper(m[1]) {
		case "AVG":
			return name, sqlast.AggAvg
		case "SUM":
			return name, sqlast.AggSum
		case "COUNT":
			return name, sqlast.AggCount
		case "MIN":
			return name, sqlast.AggMin
		case "MAX":
			return name, sqlast.AggMax
		}
	}
	name, _ := stripBacktick(s)
	return name, sqlast.AggNone
}

func findKeywordAfter(text string, from int, keyword string) int {
	re := regexp.MustCompile(`(?i)\b` + keyword + `\b`)
	loc := re.FindStringIndex(text[from:])
	if loc == nil {
		return -1
	}
	return from + loc[0]
}

func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, s[last:])
	return parts
}

func extractWhere(text string, base int, scope *sqlast.Scope) {
	loc := whereRe.FindStringIndex(text)
	if loc == nil {
		return
	}
	start := loc[1]
	end := len(text)
	if o := orderByRe.FindStringIndex(text[start:]); o != nil && start+o[0] < end {
		end = start + o[0]
	}
	if g := groupByRe.FindStringIndex(text[start:]); g != nil && start+g[0] < end {
		end = start + g[0]
	}
	whereText := text[start:end]
	for _, loc := range splitByKeyword(whereText, andRe) {
		conjunct := strings.TrimSpace(whereText[loc[0]:loc[1]])
		if conjunct == "" {
			continue
		}
		m := eqRe.FindStringSubmatch(conjunct)
		if m == nil {
			continue
		}
		col, _ := stripBacktick(m[1])
		kind := sqlast.LiteralUnsigned
		lit := m[2]
		switch {
		case strings.Contains(lit, "."):
			kind = sqlast.LiteralFloat
		case strings.HasPrefix(lit, "-"):
			kind = sqlast.LiteralSigned
		}
		scope.Wheres = append(scope.Wheres, sqlast.WhereEq{Column: col, Kind: kind, Raw: lit})
	}
}

// splitByKeyword returns the [start,end) byte ranges of each segment
// of s split on occurrences of re (case-insensitive AND).
func splitByKeyword(s string, re *regexp.Regexp) [][2]int {
	locs := re.FindAllStringIndex(s, -1)
	var ranges [][2]int
	last := 0
	for _, loc := range locs {
		ranges = append(ranges, [2]int{last, loc[0]})
		last = loc[1]
	}
	ranges = append(ranges, [2]int{last, len(s)})
	return ranges
}

func extractInsert(orig, masked string, base int, scope *sqlast.Scope) {
	tblRe := regexp.MustCompile(`(?i)\bINTO\b\s+` + identPattern + `(\s*\.\s*` + identPattern + `)?\s*\(([^)]*)\)`)
	m := tblRe.FindStringSubmatchIndex(masked)
	if m != nil && m[4] >= 0 {
		colsText := masked[m[4]:m[5]]
		for _, c := range strings.Split(colsText, ",") {
			col, _ := stripBacktick(strings.TrimSpace(c))
			scope.InsertColumns = append(scope.InsertColumns, col)
		}
	}
	valuesLoc := valuesRe.FindStringIndex(masked)
	if valuesLoc == nil {
		return
	}
	i := valuesLoc[1]
	n := len(masked)
	for i < n {
		for i < n && isSpace(masked[i]) {
			i++
		}
		if i < n && masked[i] == ',' {
			i++
			continue
		}
		if i >= n || masked[i] != '(' {
			break
		}
		close := matchParen(masked, i)
		rowOrig := orig[i:close]
		inner := rowOrig[1 : len(rowOrig)-1]
		var vals []string
		for _, v := range splitTopLevel(inner, ',') {
			vals = append(vals, strings.TrimSpace(v))
		}
		scope.InsertRows = append(scope.InsertRows, sqlast.InsertRow{
			Span:   sqlast.Span{Start: base + i, Length: close - i},
			Values: vals,
		})
		i = close
	}
}

func extractOrderGroup(text string, base int, scope *sqlast.Scope) {
	if loc := orderByRe.FindStringIndex(text); loc != nil {
		end := len(text)
		start := loc[1]
		clause := text[start:end]
		for _, part := range splitTopLevel(clause, ',') {
			item := strings.TrimSpace(part)
			if item == "" {
				continue
			}
			desc := false
			if m := ascDescRe.FindStringIndex(item); m != nil {
				desc = strings.EqualFold(strings.TrimSpace(item[m[0]:]), "DESC")
				item = strings.TrimSpace(item[:m[0]])
			}
			name, _ := stripBacktick(item)
			scope.Orders = append(scope.Orders, sqlast.OrderItem{Name: name, Desc: desc})
		}
	}
	if loc := groupByRe.FindStringIndex(text); loc != nil {
		start := loc[1]
		end := len(text)
		if o := orderByRe.FindStringIndex(text[start:]); o != nil {
			end = start + o[0]
		}
		clause := text[start:end]
		for _, part := range splitTopLevel(clause, ',') {
			item := strings.TrimSpace(part)
			if item == "" {
				continue
			}
			name, _ := stripBacktick(item)
			scope.Groups = append(scope.Groups, sqlast.GroupItem{Name: name})
		}
	}
}

// MustParse is a test helper that panics on error.
func MustParse(sql string) *sqlast.Statement {
	stmt, err := Parse(sql)
	if err != nil {
		panic(fmt.Sprintf("sqlparse: %v", err))
	}
	return stmt
}

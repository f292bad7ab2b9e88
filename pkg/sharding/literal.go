package sharding

import "github.com/shardkit/proxy/pkg/sqlast"

// classifyLiteral infers the LiteralKind of a raw, unquoted literal
// text extracted from an INSERT row. WHERE-predicate literals carry
// their kind from the parser directly; INSERT values are plain
// comma-split text and need this classification step before they can
// reach Calc.
func classifyLiteral(raw string) sqlast.LiteralKind {
	if raw == "" {
		return sqlast.LiteralUnsigned
	}
	neg := raw[0] == '-'
	body := raw
	if neg {
		body = raw[1:]
	}
	dot := false
	for _, c := range body {
		if c == '.' {
			dot = true
			continue
		}
		if c < '0' || c > '9' {
			return sqlast.LiteralUnsigned
		}
	}
	if dot {
		return sqlast.LiteralFloat
	}
	if neg {
		return sqlast.LiteralSigned
	}
	return sqlast.LiteralUnsigned
}

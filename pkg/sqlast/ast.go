// Package sqlast defines the syntax-tree contract the rewrite engine
// consumes. The real SQL parser is an external collaborator; sqlparse
// provides one reference producer of this contract.
package sqlast

// Span is a byte range into the original SQL text.
type Span struct {
	Start  int
	Length int
}

// End returns the exclusive end offset of the span.
func (s Span) End() int {
	return s.Start + s.Length
}

// Text returns the substring of sql covered by the span.
func (s Span) Text(sql string) string {
	return sql[s.Start:s.End()]
}

// LiteralKind classifies how a WHERE-predicate or INSERT-row literal
// should be parsed before it reaches the Shard Index Calculator.
type LiteralKind int

const (
	LiteralUnsigned LiteralKind = iota
	LiteralSigned
	LiteralFloat
)

// AggFunc tags the aggregation wrapper, if any, around a projection
// field.
type AggFunc int

const (
	AggNone AggFunc = iota
	AggAvg
	AggSum
	AggCount
	AggMin
	AggMax
)

// TableRef is an occurrence of a qualified table name in the parsed
// statement.
type TableRef struct {
	Span           Span
	Schema         string // empty if unqualified
	SchemaBacktick bool
	Name           string // raw, without backticks
	NameBacktick   bool
}

// StrippedName returns the table name without backticks (Name is
// already stored unquoted).
func (t TableRef) StrippedName() string {
	return t.Name
}

// WhereEq is a binary equality predicate: column = literal.
type WhereEq struct {
	Column string
	Kind   LiteralKind
	Raw    string // literal text, unquoted
}

// Field is a single projection-list entry.
type Field struct {
	Span Span // span of the whole field expression, e.g. "AVG(price)"
	Name string
	Agg  AggFunc
}

// OrderItem is one ORDER BY column.
type OrderItem struct {
	Name string
	Desc bool
}

// GroupItem is one GROUP BY column.
type GroupItem struct {
	Name string
}

// InsertRow is one parenthesized VALUES tuple.
type InsertRow struct {
	Span   Span   // span of "(v1, v2, ...)" including parens
	Values []string
}

// Scope holds all metadata extracted for one nested query level. Scope
// id 1 is the top-level statement; subqueries receive successive ids
// in document order.
type Scope struct {
	ID            int
	Tables        []TableRef
	Fields        []Field
	Wheres        []WhereEq
	InsertColumns []string
	InsertRows    []InsertRow
	Orders        []OrderItem
	Groups        []GroupItem
}

// StatementKind classifies the top-level statement.
type StatementKind int

const (
	KindSelect StatementKind = iota
	KindInsert
	KindUpdate
	KindDelete
)

// Statement is the full parsed result: a statement kind plus a
// scope-id-keyed map of extracted metadata. All joins in the rewrite
// engine are keyed on scope id; no cross-scope aliasing is performed.
type Statement struct {
	Kind   StatementKind
	Scopes map[int]*Scope
}

// ScopeIDs returns the statement's scope ids in ascending order.
func (s *Statement) ScopeIDs() []int {
	ids := make([]int, 0, len(s.Scopes))
	for id := range s.Scopes {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	return ids
}

// Scope returns the scope for id, creating it if absent.
func (s *Statement) Scope(id int) *Scope {
	if s.Scopes == nil {
		s.Scopes = make(map[int]*Scope)
	}
	sc, ok := s.Scopes[id]
	if !ok {
		sc = &Scope{ID: id}
		s.Scopes[id] = sc
	}
	return sc
}

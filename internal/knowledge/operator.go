package knowledge

import "fmt"

// Operator selects the pgvector distance function for nearest-neighbor
// queries. The string values are the raw operator tokens understood by
// pgvector.
type Operator string

const (
	// OperatorInnerProduct is pgvector's negative inner product.
	// The raw distance is the NEGATED inner product (smaller is
	// closer), so the score must be sign-corrected before threshold
	// comparison and ordering.
	OperatorInnerProduct Operator = "<#>"

	// OperatorCosine is cosine distance (1 - cosine similarity).
	OperatorCosine Operator = "<=>"

	// OperatorL2 is Euclidean distance.
	OperatorL2 Operator = "<->"
)

// DefaultOperator is used when callers do not select one.
const DefaultOperator = OperatorInnerProduct

// Valid reports whether op is a known operator token.
func (op Operator) Valid() bool {
	switch op {
	case OperatorInnerProduct, OperatorCosine, OperatorL2:
		return true
	default:
		return false
	}
}

// similarityExpr returns the SQL expression converting the operator's
// raw distance over col into a similarity score where higher is closer.
// Thresholds and ORDER BY must always apply to this expression, never
// to the raw operator output.
//
// The operator token is interpolated from the validated enum above,
// never from caller input; the vector itself binds as a parameter.
func (op Operator) similarityExpr(col, param string) string {
	if op == OperatorInnerProduct {
		// <#> returns -<a,b>; negate to recover the inner product.
		return fmt.Sprintf("-(%s <#> %s)", col, param)
	}
	return fmt.Sprintf("1 - (%s %s %s)", col, op, param)
}

// InnerProductScore computes the sign-corrected inner product between
// two vectors client-side. This is the same formula the store's SQL
// ranking evaluates for OperatorInnerProduct; the Slack audit trail
// persists this recomputation, so the two must stay numerically
// consistent.
func InnerProductScore(a, b []float32) float64 {
	n := min(len(a), len(b))
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

package diagnostics

// Diagnostic codes reported by the verifier and the optimization
// passes (spec.md §7, §8). Code ranges mirror the category split a
// front-end's error catalogue would use:
//
// D001-D099: substrate invariant violations (verifier)
// D100-D199: pass-manager scheduling/analysis errors
// D200-D299: type-registry errors
const (
	// D001: a ∈ b.users iff b ∈ a.inputs failed for some pair.
	CodeBijectionViolation = "D001"
	// D002: a node's owning Region does not contain it in its node list.
	CodeRegionContainmentViolation = "D002"
	// D003: two distinct LIT nodes in the same Region carry equal TypedData.
	CodeDuplicateLiteral = "D003"
	// D004: a Region's first node is not an ENTRY sentinel.
	CodeMissingEntrySentinel = "D004"
	// D005: a BRANCH/JUMP/INVOKE target is not dominated per spec.md §4.2.
	CodeDominanceViolation = "D005"
	// D006: a region claims IsTerminated() but its RET disagrees with reachable control flow.
	CodeTerminationMismatch = "D006"

	// D101: a pass declared a required analysis that no registered analysis provides.
	CodeMissingAnalysis = "D101"
	// D102: RunToFixedPoint exceeded its iteration budget without converging.
	CodeFixedPointBudgetExceeded = "D102"

	// D201: a composite type's dense-index space is exhausted.
	CodeTypeSpaceExhausted = "D201"
)

// Severity classifies how serious a Diagnostic is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityNote    Severity = "note"
)

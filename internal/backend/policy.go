package backend

// Method names one read of the Database contract.
type Method string

const (
	MethodBasic      Method = "basic"
	MethodCodeByHash Method = "code_by_hash"
	MethodStorage    Method = "storage"
	MethodBlockHash  Method = "block_hash"
)

// Methods lists every Database read in contract order.
var Methods = []Method{MethodBasic, MethodCodeByHash, MethodStorage, MethodBlockHash}

// Absence is the outcome a read produces when the store has no row.
type Absence int

const (
	// AbsenceNone reports "not found" to the caller as a nil value.
	AbsenceNone Absence = iota
	// AbsenceDefault substitutes the zero value of the result.
	AbsenceDefault
	// AbsenceError fails the read with a lookup inconsistency.
	AbsenceError
)

func (a Absence) String() string {
	switch a {
	case AbsenceNone:
		return "none"
	case AbsenceDefault:
		return "default"
	case AbsenceError:
		return "error"
	default:
		return "unknown"
	}
}

var absencePolicy = map[Method]Absence{
	MethodBasic:      AbsenceNone,
	MethodCodeByHash: AbsenceDefault,
	MethodStorage:    AbsenceDefault,
	MethodBlockHash:  AbsenceError,
}

// PolicyFor returns the absence policy of method. Unknown methods report
// AbsenceError.
func PolicyFor(method Method) Absence {
	if a, ok := absencePolicy[method]; ok {
		return a
	}
	return AbsenceError
}

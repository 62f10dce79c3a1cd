package job

// Result summary modes.
const (
	ModeSimulated = "simulated"
	ModeCPUGemm   = "cpu_gemm"
)

// SimulateNote accompanies simulated results.
const SimulateNote = "Set simulate=false for tiny shapes to run CPU GEMM summary."

// Summary is the opaque result mapping attached to a DONE record. In
// simulated mode only Checksum, Mode, and Note are set; in cpu_gemm mode
// the statistical fields are present and Note is empty.
type Summary struct {
	Mean     *float64 `json:"mean,omitempty"`
	Var      *float64 `json:"var,omitempty"`
	L2       *float64 `json:"l2,omitempty"`
	Checksum string   `json:"checksum"`
	Mode     string   `json:"mode"`
	Note     string   `json:"note,omitempty"`
}

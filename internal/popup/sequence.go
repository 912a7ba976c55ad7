package popup

// Path names the trigger of an open sequence.
type Path string

const (
	PathPrimary   Path = "primary"
	PathSecondary Path = "secondary"
	PathAutoOpen  Path = "auto_open"
)

// Stage is the step an open sequence is at.
//
//	waiting -> resolving -> opening -> opened | blocked
//
// auto_open sequences skip resolving.
type Stage string

const (
	StageWaiting   Stage = "waiting"
	StageResolving Stage = "resolving"
	StageOpening   Stage = "opening"
	StageOpened    Stage = "opened"
	StageBlocked   Stage = "blocked"
)

// Done reports whether the stage is terminal.
func (s Stage) Done() bool {
	return s == StageOpened || s == StageBlocked
}

// Sequence is one automated open. Sequences are never cancelled: a popup
// dismissed while one is in flight does not stop the open.
type Sequence struct {
	ID           uint64 `json:"id"`
	Path         Path   `json:"path"`
	TokenAddress string `json:"tokenAddress"`
	Stage        Stage  `json:"stage"`
	URL          string `json:"url,omitempty"`
	Reason       string `json:"reason,omitempty"`
	StartedAt    int64  `json:"startedAt"` // Unix ms
}

const maxSequences = 50

package poller

type State int32

const (
	Idle State = iota
	Fetching
	Filtering
	Extracting
	Notifying
	Checkpointing
	Disabled
)

var stateNames = [...]string{
	Idle:          "idle",
	Fetching:      "fetching",
	Filtering:     "filtering",
	Extracting:    "extracting",
	Notifying:     "notifying",
	Checkpointing: "checkpointing",
	Disabled:      "disabled",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

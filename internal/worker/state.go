package worker

// State is where one poll cycle, or one entry within it, currently stands.
//
//	Idle -> BatchReceived -> Processing(i) -> Acked(i) | Abandoned(i) -> ... -> Idle
//
// An abandoned entry stays pending in the consumer group and comes back
// through Claim once it has been idle long enough.
type State string

const (
	StateIdle          State = "idle"
	StateBatchReceived State = "batch_received"
	StateProcessing    State = "processing"
	StateAcked         State = "acked"
	StateAbandoned     State = "abandoned"
)

// CycleResult reports one poll cycle. Entries maps stream ids to the final
// state each entry reached.
type CycleResult struct {
	Claimed int
	Read    int
	Entries map[string]State
	Pending int64
}

func (r CycleResult) count(s State) int {
	n := 0
	for _, st := range r.Entries {
		if st == s {
			n++
		}
	}
	return n
}

func (r CycleResult) Acked() int     { return r.count(StateAcked) }
func (r CycleResult) Abandoned() int { return r.count(StateAbandoned) }

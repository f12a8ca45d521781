package trace

import (
	"fmt"
	"io"
)

// Summary aggregates a trace into per-type and per-kind counts.
type Summary struct {
	RunID        string
	Negotiations map[string]int // type -> count
	Outcomes     map[string]int // "<kind>/<state>" -> count
}

// Summarize folds the trace down to counts.
func (st *SimulationTrace) Summarize() Summary {
	s := Summary{
		RunID:        st.RunID,
		Negotiations: make(map[string]int),
		Outcomes:     make(map[string]int),
	}
	for _, r := range st.Negotiations {
		s.Negotiations[r.Type]++
	}
	for _, r := range st.Protocols {
		s.Outcomes[r.Kind+"/"+r.State]++
	}
	return s
}

// Write renders the full trace in arrival order, one line per record.
func (st *SimulationTrace) Write(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "run %s\n", st.RunID); err != nil {
		return err
	}
	for _, r := range st.Negotiations {
		if _, err := fmt.Fprintf(w, "[%07d] %s %s requester=%s responder=%s\n",
			r.Clock, r.Node, r.Type, r.Requester, r.Responder); err != nil {
			return err
		}
	}
	for _, r := range st.Protocols {
		if _, err := fmt.Fprintf(w, "[%07d] %s %s %s -> %s\n",
			r.Clock, r.Node, r.Kind, r.Name, r.State); err != nil {
			return err
		}
	}
	return nil
}

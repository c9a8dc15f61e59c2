package applier

import "fmt"

type State int

const (
	StateInit State = iota
	StateLoggedIn
	StateOnJobPage
	StateUnavailable
	StateAlreadyApplied
	StateApplyClicked
	StateExternalRedirect
	StateReviewRequired
	StateDirectSend
	StateDone
)

var stateNames = map[State]string{
	StateInit:             "init",
	StateLoggedIn:         "logged_in",
	StateOnJobPage:        "on_job_page",
	StateUnavailable:      "unavailable",
	StateAlreadyApplied:   "already_applied",
	StateApplyClicked:     "apply_clicked",
	StateExternalRedirect: "external_redirect",
	StateReviewRequired:   "review_required",
	StateDirectSend:       "direct_send",
	StateDone:             "done",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// transitions lists the legal successors of each state. Any state may also
// fall through to StateDone with a followup result.
var transitions = map[State][]State{
	StateInit:             {StateLoggedIn},
	StateLoggedIn:         {StateOnJobPage},
	StateOnJobPage:        {StateUnavailable, StateAlreadyApplied, StateApplyClicked},
	StateApplyClicked:     {StateExternalRedirect, StateReviewRequired, StateDirectSend},
	StateReviewRequired:   {StateDirectSend},
	StateUnavailable:      {StateDone},
	StateAlreadyApplied:   {StateDone},
	StateExternalRedirect: {StateDone},
	StateDirectSend:       {StateDone},
}

func canTransition(from, to State) bool {
	if to == StateDone {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Result is the terminal outcome of one apply attempt.
type Result string

const (
	ResultApplied        Result = "applied"
	ResultAlreadyApplied Result = "already_applied"
	ResultExternal       Result = "external"
	ResultExpired        Result = "expired"
	ResultFollowup       Result = "followup"
)

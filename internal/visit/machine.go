package visit

// Action is a staff action that moves a visit to another status.
type Action string

const (
	ActionCall     Action = "call"
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
	ActionBill     Action = "bill"
	ActionHold     Action = "hold"
	ActionRequeue  Action = "requeue"
	ActionCancel   Action = "cancel"
)

var actionTargets = map[Action]Status{
	ActionCall:     StatusCalled,
	ActionStart:    StatusInProgress,
	ActionComplete: StatusCompleted,
	ActionBill:     StatusPaymentWait,
	ActionHold:     StatusOnHold,
	ActionRequeue:  StatusWaiting,
	ActionCancel:   StatusCanceled,
}

// Machine holds the allowed status transitions per family.
type Machine struct {
	transitions map[Family]map[Status][]Status
}

// NewMachine creates a machine with the hospital's transition table.
// INACTIVE is only reached through delete (soft deactivation), never through
// a status change.
func NewMachine() *Machine {
	return &Machine{
		transitions: map[Family]map[Status][]Status{
			FamilyReception: {
				StatusWaiting:     {StatusCalled, StatusInProgress, StatusOnHold, StatusCanceled},
				StatusCalled:      {StatusInProgress, StatusWaiting, StatusOnHold, StatusCanceled},
				StatusInProgress:  {StatusCompleted, StatusOnHold, StatusCanceled},
				StatusCompleted:   {StatusPaymentWait, StatusCanceled},
				StatusPaymentWait: {StatusCompleted, StatusCanceled},
				StatusOnHold:      {StatusWaiting, StatusCanceled},
				StatusCanceled:    {},
				StatusInactive:    {},
			},
			FamilyReservation: {
				StatusReserved:  {StatusCompleted, StatusCanceled},
				StatusCompleted: {},
				StatusCanceled:  {},
				StatusInactive:  {},
			},
		},
	}
}

// IsTerminal reports whether no transition leaves s.
func (m *Machine) IsTerminal(f Family, s Status) bool {
	next, ok := m.transitions[f][s]
	return !ok || len(next) == 0
}

// Allowed lists the statuses reachable from s.
func (m *Machine) Allowed(f Family, from Status) []Status {
	return append([]Status(nil), m.transitions[f][from]...)
}

// CanTransition checks if a status change is allowed.
func (m *Machine) CanTransition(f Family, from, to Status) bool {
	for _, s := range m.transitions[f][from] {
		if s == to {
			return true
		}
	}
	return false
}

// Next resolves the status an action leads to from the current status.
func (m *Machine) Next(f Family, from Status, a Action) (Status, bool) {
	to, ok := actionTargets[a]
	if !ok || !m.CanTransition(f, from, to) {
		return "", false
	}
	return to, true
}

// Actions lists the staff actions available from s, used to enable buttons.
func (m *Machine) Actions(f Family, from Status) []Action {
	order := []Action{ActionCall, ActionStart, ActionComplete, ActionBill, ActionHold, ActionRequeue, ActionCancel}
	var out []Action
	for _, a := range order {
		if _, ok := m.Next(f, from, a); ok {
			out = append(out, a)
		}
	}
	return out
}

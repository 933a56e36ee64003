// Package visit defines the status vocabularies of reception-like records and
// the transitions staff actions may perform on them.
package visit

// Status is the lifecycle state of a visit.
type Status string

const (
	StatusWaiting     Status = "WAITING"
	StatusCalled      Status = "CALLED"
	StatusInProgress  Status = "IN_PROGRESS"
	StatusCompleted   Status = "COMPLETED"
	StatusPaymentWait Status = "PAYMENT_WAIT"
	StatusOnHold      Status = "ON_HOLD"
	StatusCanceled    Status = "CANCELED"
	StatusInactive    Status = "INACTIVE"
	StatusReserved    Status = "RESERVED"
)

// Family selects a status vocabulary.
type Family string

const (
	// FamilyReception covers outpatient, emergency and inpatient receptions.
	FamilyReception Family = "reception"
	// FamilyReservation covers reservations.
	FamilyReservation Family = "reservation"
)

var vocabularies = map[Family][]Status{
	FamilyReception: {
		StatusWaiting,
		StatusCalled,
		StatusInProgress,
		StatusCompleted,
		StatusPaymentWait,
		StatusOnHold,
		StatusCanceled,
		StatusInactive,
	},
	FamilyReservation: {
		StatusReserved,
		StatusCompleted,
		StatusCanceled,
		StatusInactive,
	},
}

// Vocabulary lists the statuses of family in display order.
func Vocabulary(f Family) []Status {
	return append([]Status(nil), vocabularies[f]...)
}

// Valid reports whether s belongs to the vocabulary of f.
func Valid(f Family, s Status) bool {
	for _, v := range vocabularies[f] {
		if v == s {
			return true
		}
	}
	return false
}

// Labels are the Korean captions shown next to a status.
var Labels = map[Status]string{
	StatusWaiting:     "대기",
	StatusCalled:      "호출",
	StatusInProgress:  "진료중",
	StatusCompleted:   "완료",
	StatusPaymentWait: "수납대기",
	StatusOnHold:      "보류",
	StatusCanceled:    "취소",
	StatusInactive:    "비활성",
	StatusReserved:    "예약",
}

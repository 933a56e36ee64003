// Package mockbackend is an in-memory stand-in for the reception and admin
// backends. It speaks the same envelope, search and by-visit conventions so
// the client stack can run end to end without the real servers.
package mockbackend

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"hospops/internal/visit"
)

// Record is a wire record as the backend stores it.
type Record = map[string]any

// Collection describes one REST collection.
type Collection struct {
	Name    string
	IDField string
	// NoField receives a generated display number on create.
	NoField string
	// Family is set for collections with a status lifecycle; their delete
	// is a soft deactivation.
	Family visit.Family
	// Multi names the JSON part of multipart create and update.
	Multi   string
	ByVisit bool
	Backend string
}

func (c Collection) hasStatus() bool { return c.Family != "" }

// Collections served by the mock, keyed by URL segment.
var Collections = []Collection{
	{Name: "patients", IDField: "patientId", Backend: "reception"},
	{Name: "insurances", IDField: "insuranceId", Backend: "reception"},
	{Name: "consents", IDField: "consentId", Backend: "reception"},
	{Name: "receptions", IDField: "receptionId", NoField: "receptionNo", Family: visit.FamilyReception, Backend: "reception"},
	{Name: "reservations", IDField: "reservationId", NoField: "reservationNo", Family: visit.FamilyReservation, ByVisit: true, Backend: "reception"},
	{Name: "emergency-receptions", IDField: "receptionId", NoField: "receptionNo", Family: visit.FamilyReception, ByVisit: true, Backend: "reception"},
	{Name: "inpatient-receptions", IDField: "receptionId", NoField: "receptionNo", Family: visit.FamilyReception, ByVisit: true, Backend: "reception"},
	{Name: "departments", IDField: "departmentId", Backend: "admin"},
	{Name: "positions", IDField: "positionId", Backend: "admin"},
	{Name: "staff", IDField: "staffId", Multi: "staff", Backend: "admin"},
}

func initialStatus(f visit.Family) visit.Status {
	if f == visit.FamilyReservation {
		return visit.StatusReserved
	}
	return visit.StatusWaiting
}

// table is the rows of one collection in insertion order.
type table struct {
	col  Collection
	rows map[int64]Record
	ids  []int64
}

func newTable(col Collection) *table {
	return &table{col: col, rows: make(map[int64]Record)}
}

func (t *table) put(id int64, rec Record) {
	if _, ok := t.rows[id]; !ok {
		t.ids = append(t.ids, id)
	}
	rec[t.col.IDField] = id
	t.rows[id] = rec
}

func (t *table) remove(id int64) {
	delete(t.rows, id)
	for i, x := range t.ids {
		if x == id {
			t.ids = append(t.ids[:i], t.ids[i+1:]...)
			return
		}
	}
}

func (t *table) all() []Record {
	out := make([]Record, 0, len(t.ids))
	for _, id := range t.ids {
		out = append(out, clone(t.rows[id]))
	}
	return out
}

// matches reports whether rec has a field named like field whose text
// contains value. "name" matches departmentName, staffName and so on.
func matches(rec Record, field, value string) bool {
	field = strings.ToLower(field)
	value = strings.ToLower(value)
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lk := strings.ToLower(k)
		if lk != field && !strings.HasSuffix(lk, field) {
			continue
		}
		if strings.Contains(strings.ToLower(text(rec[k])), value) {
			return true
		}
	}
	return false
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func toInt64(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case float64:
		return int64(x)
	case json.Number:
		n, _ := x.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(x, 10, 64)
		return n
	}
	return 0
}

func clone(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

// toRecord converts any wire struct into a Record.
func toRecord(v any) (Record, error) {
	if rec, ok := v.(Record); ok {
		return clone(rec), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

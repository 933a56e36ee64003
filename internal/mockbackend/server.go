package mockbackend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"hospops/internal/models"
	"hospops/internal/visit"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Result  any    `json:"result"`
}

type statusBody struct {
	Status     string `json:"status"`
	ReasonCode string `json:"reasonCode,omitempty"`
	ReasonText string `json:"reasonText,omitempty"`
}

type failure struct {
	status  int
	message string
}

// Server is the mock backend. It is safe for concurrent use.
type Server struct {
	echo    *echo.Echo
	machine *visit.Machine
	logger  *zerolog.Logger
	actor   string

	mu       sync.Mutex
	nextID   int64
	tables   map[string]*table
	history  map[string]map[int64][]models.StatusHistory
	audit    map[string]map[int64][]models.AuditLog
	files    map[string][]byte
	calls    map[string]int
	failures []failure
}

// New builds a server with every collection registered and empty.
func New(logger *zerolog.Logger) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "mockbackend").Logger()

	s := &Server{
		echo:    echo.New(),
		machine: visit.NewMachine(),
		logger:  &l,
		actor:   uuid.NewString(),
		tables:  make(map[string]*table),
		history: make(map[string]map[int64][]models.StatusHistory),
		audit:   make(map[string]map[int64][]models.AuditLog),
		files:   make(map[string][]byte),
		calls:   make(map[string]int),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(s.observe)

	for _, col := range Collections {
		s.tables[col.Name] = newTable(col)
		s.history[col.Name] = make(map[int64][]models.StatusHistory)
		s.audit[col.Name] = make(map[int64][]models.AuditLog)
		s.RegisterRoutes(s.echo.Group("/api/"+col.Name), col)
	}
	s.echo.GET("/files/:name", s.handleFile)
	return s
}

// RegisterRoutes mounts the endpoints of col on g.
func (s *Server) RegisterRoutes(g *echo.Group, col Collection) {
	g.GET("", s.handleList(col))
	g.GET("/search", s.handleSearch(col))
	g.GET("/:id", s.handleGet(col))
	g.POST("", s.handleCreate(col))
	g.PUT("/:id", s.handleUpdate(col))
	g.DELETE("/:id", s.handleDelete(col))
	if col.hasStatus() {
		g.PATCH("/:id/status", s.handleStatus(col))
		g.GET("/:id/history", s.handleHistory(col))
		g.GET("/:id/audit-logs", s.handleAudit(col))
	}
	if col.ByVisit {
		g.GET("/visit/:visitId", s.handleVisitGet(col))
		g.PUT("/visit/:visitId", s.handleVisitPut(col))
		g.DELETE("/visit/:visitId", s.handleVisitDelete(col))
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("mock backend listening")
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Seed stores v, a wire struct or Record, in collection and returns its id.
// A zero id field is assigned like a create would.
func (s *Server) Seed(collection string, v any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[collection]
	if !ok {
		return 0, fmt.Errorf("unknown collection %q", collection)
	}
	rec, err := toRecord(v)
	if err != nil {
		return 0, err
	}
	id := toInt64(rec[t.col.IDField])
	if id == 0 {
		s.nextID++
		id = s.nextID
	} else if id > s.nextID {
		s.nextID = id
	}
	s.defaults(t.col, id, rec)
	t.put(id, rec)
	return id, nil
}

// Lookup returns a copy of a stored record.
func (s *Server) Lookup(collection string, id int64) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[collection]
	if !ok {
		return nil, false
	}
	rec, ok := t.rows[id]
	if !ok {
		return nil, false
	}
	return clone(rec), true
}

// History returns the status changes recorded for a record.
func (s *Server) History(collection string, id int64) []models.StatusHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.StatusHistory(nil), s.history[collection][id]...)
}

// FailNext makes the next request answer with a business failure envelope.
func (s *Server) FailNext(message string) {
	s.mu.Lock()
	s.failures = append(s.failures, failure{status: http.StatusOK, message: message})
	s.mu.Unlock()
}

// BreakNext makes the next request answer status with a plain text body.
func (s *Server) BreakNext(status int) {
	s.mu.Lock()
	s.failures = append(s.failures, failure{status: status})
	s.mu.Unlock()
}

// Calls counts the requests that matched route, e.g.
// "PATCH /api/reservations/:id/status".
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// TotalCalls counts every routed request.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.calls {
		n += v
	}
	return n
}

func (s *Server) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		route := c.Request().Method + " " + c.Path()

		s.mu.Lock()
		s.calls[route]++
		var inject *failure
		if len(s.failures) > 0 {
			f := s.failures[0]
			s.failures = s.failures[1:]
			inject = &f
		}
		s.mu.Unlock()

		var err error
		switch {
		case inject == nil:
			err = next(c)
		case inject.status == http.StatusOK:
			err = fail(c, http.StatusOK, inject.message)
		default:
			err = c.String(inject.status, "upstream unavailable")
		}

		s.logger.Debug().
			Str("route", route).
			Int("status", c.Response().Status).
			Dur("duration", time.Since(start)).
			Msg("request")
		return err
	}
}

func ok(c echo.Context, v any) error {
	return c.JSON(http.StatusOK, envelope{Success: true, Message: "OK", Result: v})
}

func fail(c echo.Context, status int, message string) error {
	return c.JSON(status, envelope{Success: false, Message: message})
}

func pathID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func (s *Server) handleList(col Collection) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return ok(c, s.decorateAll(col, s.tables[col.Name].all()))
	}
}

func (s *Server) handleSearch(col Collection) echo.HandlerFunc {
	return func(c echo.Context) error {
		field := firstOf(c.QueryParam("searchType"), c.QueryParam("condition"))
		value := firstOf(c.QueryParam("searchValue"), c.QueryParam("value"))
		if field == "" {
			return fail(c, http.StatusBadRequest, "검색 조건이 필요합니다.")
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		out := []Record{}
		for _, rec := range s.decorateAll(col, s.tables[col.Name].all()) {
			if matches(rec, field, value) {
				out = append(out, rec)
			}
		}
		return ok(c, out)
	}
}

func (s *Server) handleGet(col Collection) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, valid := pathID(c, "id")
		if !valid {
			return fail(c, http.StatusBadRequest, "잘못된 ID입니다.")
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		rec, found := s.tables[col.Name].rows[id]
		if !found {
			return fail(c, http.StatusNotFound, "존재하지 않는 데이터입니다.")
		}
		return ok(c, s.decorate(col, clone(rec)))
	}
}

func (s *Server) handleCreate(col Collection) echo.HandlerFunc {
	return func(c echo.Context) error {
		rec, err := s.payload(c, col)
		if err != nil {
			return fail(c, http.StatusBadRequest, err.Error())
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		s.nextID++
		id := s.nextID
		delete(rec, "status")
		s.defaults(col, id, rec)
		s.tables[col.Name].put(id, rec)
		s.appendAudit(col, id, "CREATE", "", "")
		return ok(c, s.decorate(col, clone(rec)))
	}
}

// handleUpdate merges the body into the stored record. Status is only
// changed through the status endpoint.
func (s *Server) handleUpdate(col Collection) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, valid := pathID(c, "id")
		if !valid {
			return fail(c, http.StatusBadRequest, "잘못된 ID입니다.")
		}
		patch, err := s.payload(c, col)
		if err != nil {
			return fail(c, http.StatusBadRequest, err.Error())
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		t := s.tables[col.Name]
		rec, found := t.rows[id]
		if !found {
			return fail(c, http.StatusNotFound, "존재하지 않는 데이터입니다.")
		}
		for k, v := range patch {
			if k == col.IDField || (col.hasStatus() && k == "status") {
				continue
			}
			rec[k] = v
		}
		s.appendAudit(col, id, "UPDATE", "", "")
		return ok(c, s.decorate(col, clone(rec)))
	}
}

// handleDelete deactivates records with a lifecycle and removes the rest.
func (s *Server) handleDelete(col Collection) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, valid := pathID(c, "id")
		if !valid {
			return fail(c, http.StatusBadRequest, "잘못된 ID입니다.")
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		t := s.tables[col.Name]
		rec, found := t.rows[id]
		if !found {
			return fail(c, http.StatusNotFound, "존재하지 않는 데이터입니다.")
		}
		if !col.hasStatus() {
			t.remove(id)
			return ok(c, nil)
		}
		from := visit.Status(text(rec["status"]))
		if from == visit.StatusInactive {
			return fail(c, http.StatusOK, "이미 비활성화된 데이터입니다.")
		}
		rec["status"] = string(visit.StatusInactive)
		s.appendHistory(col, id, from, visit.StatusInactive, "DELETED", "")
		s.appendAudit(col, id, "DELETE", "DELETED", "")
		return ok(c, nil)
	}
}

func (s *Server) handleStatus(col Collection) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, valid := pathID(c, "id")
		if !valid {
			return fail(c, http.StatusBadRequest, "잘못된 ID입니다.")
		}
		var body statusBody
		if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
			return fail(c, http.StatusBadRequest, "잘못된 요청 본문입니다.")
		}
		to := visit.Status(body.Status)
		if !visit.Valid(col.Family, to) {
			return fail(c, http.StatusBadRequest, "알 수 없는 상태입니다: "+body.Status)
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		rec, found := s.tables[col.Name].rows[id]
		if !found {
			return fail(c, http.StatusNotFound, "존재하지 않는 데이터입니다.")
		}
		from := visit.Status(text(rec["status"]))
		if !s.machine.CanTransition(col.Family, from, to) {
			return fail(c, http.StatusOK, fmt.Sprintf("허용되지 않는 상태 변경입니다: %s → %s", from, to))
		}
		rec["status"] = string(to)
		s.appendHistory(col, id, from, to, body.ReasonCode, body.ReasonText)
		s.appendAudit(col, id, "STATUS_CHANGE", body.ReasonCode, body.ReasonText)
		return ok(c, s.decorate(col, clone(rec)))
	}
}

func (s *Server) handleHistory(col Collection) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, valid := pathID(c, "id")
		if !valid {
			return fail(c, http.StatusBadRequest, "잘못된 ID입니다.")
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		out := append([]models.StatusHistory{}, s.history[col.Name][id]...)
		return ok(c, out)
	}
}

func (s *Server) handleAudit(col Collection) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, valid := pathID(c, "id")
		if !valid {
			return fail(c, http.StatusBadRequest, "잘못된 ID입니다.")
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		out := append([]models.AuditLog{}, s.audit[col.Name][id]...)
		return ok(c, out)
	}
}

// A specialization shares the id of the visit it is attached to.

func (s *Server) handleVisitGet(col Collection) echo.HandlerFunc {
	return func(c echo.Context) error {
		visitID, valid := pathID(c, "visitId")
		if !valid {
			return fail(c, http.StatusBadRequest, "잘못된 방문 ID입니다.")
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		rec, found := s.tables[col.Name].rows[visitID]
		if !found {
			return ok(c, nil)
		}
		return ok(c, s.decorate(col, clone(rec)))
	}
}

func (s *Server) handleVisitPut(col Collection) echo.HandlerFunc {
	return func(c echo.Context) error {
		visitID, valid := pathID(c, "visitId")
		if !valid {
			return fail(c, http.StatusBadRequest, "잘못된 방문 ID입니다.")
		}
		body, err := s.payload(c, col)
		if err != nil {
			return fail(c, http.StatusBadRequest, err.Error())
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		t := s.tables[col.Name]
		rec, found := t.rows[visitID]
		if !found {
			rec = Record{}
			if visitID > s.nextID {
				s.nextID = visitID
			}
		}
		for k, v := range body {
			if k == "status" && found {
				continue
			}
			rec[k] = v
		}
		s.defaults(col, visitID, rec)
		t.put(visitID, rec)
		action := "UPDATE"
		if !found {
			action = "CREATE"
		}
		s.appendAudit(col, visitID, action, "", "")
		return ok(c, s.decorate(col, clone(rec)))
	}
}

func (s *Server) handleVisitDelete(col Collection) echo.HandlerFunc {
	return func(c echo.Context) error {
		visitID, valid := pathID(c, "visitId")
		if !valid {
			return fail(c, http.StatusBadRequest, "잘못된 방문 ID입니다.")
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.tables[col.Name].remove(visitID)
		return ok(c, nil)
	}
}

func (s *Server) handleFile(c echo.Context) error {
	s.mu.Lock()
	data, found := s.files[c.Param("name")]
	s.mu.Unlock()
	if !found {
		return fail(c, http.StatusNotFound, "파일이 없습니다.")
	}
	return c.Blob(http.StatusOK, http.DetectContentType(data), data)
}

// payload reads a JSON body, or for multipart collections the JSON part and
// the optional "file" part.
func (s *Server) payload(c echo.Context, col Collection) (Record, error) {
	req := c.Request()
	if col.Multi != "" && strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		var rec Record
		if err := json.Unmarshal([]byte(c.FormValue(col.Multi)), &rec); err != nil {
			return nil, fmt.Errorf("%s 파트를 읽을 수 없습니다", col.Multi)
		}
		if fh, err := c.FormFile("file"); err == nil {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			defer f.Close()
			data, err := io.ReadAll(f)
			if err != nil {
				return nil, err
			}
			name := uuid.NewString() + "-" + fh.Filename
			s.mu.Lock()
			s.files[name] = data
			s.mu.Unlock()
			rec["photoUrl"] = "/files/" + name
		}
		return rec, nil
	}

	var rec Record
	if err := json.NewDecoder(req.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("잘못된 요청 본문입니다")
	}
	if rec == nil {
		rec = Record{}
	}
	return rec, nil
}

func (s *Server) defaults(col Collection, id int64, rec Record) {
	if col.NoField != "" && text(rec[col.NoField]) == "" {
		rec[col.NoField] = fmt.Sprintf("%s-%06d", strings.ToUpper(col.Name[:1]), id)
	}
	if col.hasStatus() {
		if text(rec["status"]) == "" {
			rec["status"] = string(initialStatus(col.Family))
		}
		return
	}
	if text(rec["isActive"]) == "" {
		rec["isActive"] = "Y"
	}
}

// decorate fills the joined, read-only fields the real backend computes.
func (s *Server) decorate(col Collection, rec Record) Record {
	switch col.Name {
	case "departments":
		id := toInt64(rec["departmentId"])
		n := 0
		for _, staff := range s.tables["staff"].rows {
			if toInt64(staff["departmentId"]) == id && text(staff["isActive"]) != "N" {
				n++
			}
		}
		rec["staffCount"] = n
	case "staff":
		if d, ok := s.tables["departments"].rows[toInt64(rec["departmentId"])]; ok {
			rec["departmentName"] = d["departmentName"]
		}
		if p, ok := s.tables["positions"].rows[toInt64(rec["positionId"])]; ok {
			rec["positionName"] = p["positionName"]
		}
	}
	if col.hasStatus() {
		if p, ok := s.tables["patients"].rows[toInt64(rec["patientId"])]; ok {
			rec["patientName"] = p["name"]
		}
		if d, ok := s.tables["departments"].rows[toInt64(rec["departmentId"])]; ok {
			rec["departmentName"] = d["departmentName"]
		}
	}
	return rec
}

func (s *Server) decorateAll(col Collection, recs []Record) []Record {
	for i := range recs {
		recs[i] = s.decorate(col, recs[i])
	}
	return recs
}

func (s *Server) appendHistory(col Collection, id int64, from, to visit.Status, code, reason string) {
	h := s.history[col.Name][id]
	s.history[col.Name][id] = append(h, models.StatusHistory{
		ID:         int64(len(h) + 1),
		VisitID:    id,
		FromStatus: from,
		ToStatus:   to,
		ChangedBy:  s.actor,
		ChangedAt:  time.Now(),
		ReasonCode: code,
		ReasonText: reason,
	})
}

func (s *Server) appendAudit(col Collection, id int64, action, code, reason string) {
	logs := s.audit[col.Name][id]
	s.audit[col.Name][id] = append(logs, models.AuditLog{
		ID:         int64(len(logs) + 1),
		VisitID:    id,
		Action:     action,
		ActorID:    s.actor,
		OccurredAt: time.Now(),
		ReasonCode: code,
		ReasonText: reason,
	})
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

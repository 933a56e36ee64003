// Package repository exposes one typed repository per backend entity. All of
// them are instances of the same generic engine: cached reads, guarded
// writes, field normalization at the boundary.
package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"hospops/internal/apiclient"
	"hospops/internal/apperr"
	"hospops/internal/cache"
	"hospops/internal/models"
)

// Entity is implemented by every domain model a repository serves.
type Entity interface {
	Key() int64
	Validate() error
}

// Codec converts between a domain model D and its backend shape W.
type Codec[D, W any] struct {
	ToDomain  func(W) (D, error)
	ToBackend func(D) W
}

// SearchParams names the query parameters of a backend's search endpoint.
type SearchParams struct {
	Key   string
	Value string
}

var (
	// AdminSearch is used by departments, positions and staff.
	AdminSearch = SearchParams{Key: "condition", Value: "value"}
	// ReceptionSearch is used by the reception backend.
	ReceptionSearch = SearchParams{Key: "searchType", Value: "searchValue"}
)

// Query is a single-field search.
type Query struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// Definition configures one entity.
type Definition[D Entity, W any] struct {
	Entity string
	Path   string
	Search SearchParams
	Codec  Codec[D, W]

	// MultipartPart, when set, sends create and update as a multipart form
	// with the record encoded as a JSON part of that name.
	MultipartPart string
	Attachment    func(D) *models.Upload
}

// Repository is the generic CRUD engine.
type Repository[D Entity, W any] struct {
	def    Definition[D, W]
	client *apiclient.Client
}

func New[D Entity, W any](client *apiclient.Client, def Definition[D, W]) *Repository[D, W] {
	return &Repository[D, W]{def: def, client: client}
}

func (r *Repository[D, W]) Entity() string            { return r.def.Entity }
func (r *Repository[D, W]) Client() *apiclient.Client { return r.client }

func (r *Repository[D, W]) itemPath(id int64, suffix ...string) string {
	parts := append([]string{r.def.Path, strconv.FormatInt(id, 10)}, suffix...)
	return strings.Join(parts, "/")
}

func (r *Repository[D, W]) request(op, method, path string) apiclient.Request {
	return apiclient.Request{Entity: r.def.Entity, Op: op, Method: method, Path: path}
}

// List returns every record. An empty slice with a nil error means there are
// no records; it is never used to signal a failure.
func (r *Repository[D, W]) List(ctx context.Context) ([]D, error) {
	req := r.request("list", http.MethodGet, r.def.Path)
	wires, err := apiclient.Read[[]W](ctx, r.client, req, cache.Key(r.def.Entity, "list"))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", r.def.Entity, err)
	}
	return r.toDomainAll(wires)
}

// Search filters by one field. A blank value lists everything.
func (r *Repository[D, W]) Search(ctx context.Context, q Query) ([]D, error) {
	if strings.TrimSpace(q.Field) == "" {
		return nil, apperr.Invalid("field", "search field is required")
	}
	value := strings.TrimSpace(q.Value)
	if value == "" {
		return r.List(ctx)
	}

	req := r.request("search", http.MethodGet, r.def.Path+"/search")
	req.Query = url.Values{
		r.def.Search.Key:   {q.Field},
		r.def.Search.Value: {value},
	}
	key := cache.Key(r.def.Entity, "search", q.Field, value)
	wires, err := apiclient.Read[[]W](ctx, r.client, req, key)
	if err != nil {
		return nil, fmt.Errorf("search %s by %s: %w", r.def.Entity, q.Field, err)
	}
	return r.toDomainAll(wires)
}

func (r *Repository[D, W]) Get(ctx context.Context, id int64) (D, error) {
	var zero D
	if id <= 0 {
		return zero, apperr.Invalid("id", "is required")
	}
	req := r.request("get", http.MethodGet, r.itemPath(id))
	key := cache.Key(r.def.Entity, "get", strconv.FormatInt(id, 10))
	w, err := apiclient.Read[W](ctx, r.client, req, key)
	if err != nil {
		return zero, fmt.Errorf("get %s %d: %w", r.def.Entity, id, err)
	}
	return r.toDomain(w)
}

func (r *Repository[D, W]) Create(ctx context.Context, d D) (D, error) {
	var zero D
	if err := d.Validate(); err != nil {
		return zero, err
	}
	req := r.withPayload(r.request("create", http.MethodPost, r.def.Path), d)
	w, err := apiclient.Write[W](ctx, r.client, req, r.def.Entity+":create")
	if err != nil {
		return zero, fmt.Errorf("create %s: %w", r.def.Entity, err)
	}
	return r.toDomain(w)
}

// Update replaces every field of the record. It is not a status transition.
func (r *Repository[D, W]) Update(ctx context.Context, id int64, d D) (D, error) {
	var zero D
	if id <= 0 {
		return zero, apperr.Invalid("id", "is required")
	}
	if err := d.Validate(); err != nil {
		return zero, err
	}
	req := r.withPayload(r.request("update", http.MethodPut, r.itemPath(id)), d)
	w, err := apiclient.Write[W](ctx, r.client, req, guardKey(r.def.Entity, "update", id))
	if err != nil {
		return zero, fmt.Errorf("update %s %d: %w", r.def.Entity, id, err)
	}
	return r.toDomain(w)
}

// Delete removes the record. Depending on the entity the backend either
// deletes it or deactivates it.
func (r *Repository[D, W]) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return apperr.Invalid("id", "is required")
	}
	req := r.request("delete", http.MethodDelete, r.itemPath(id))
	if _, err := apiclient.Write[json.RawMessage](ctx, r.client, req, guardKey(r.def.Entity, "delete", id)); err != nil {
		return fmt.Errorf("delete %s %d: %w", r.def.Entity, id, err)
	}
	return nil
}

func (r *Repository[D, W]) withPayload(req apiclient.Request, d D) apiclient.Request {
	wire := r.def.Codec.ToBackend(d)
	if r.def.MultipartPart == "" {
		req.Body = wire
		return req
	}
	mp := &apiclient.Multipart{Part: r.def.MultipartPart, Value: wire}
	if r.def.Attachment != nil {
		if up := r.def.Attachment(d); up != nil && len(up.Data) > 0 {
			mp.FileName = up.Name
			mp.File = bytes.NewReader(up.Data)
		}
	}
	req.Multipart = mp
	return req
}

func (r *Repository[D, W]) toDomain(w W) (D, error) {
	d, err := r.def.Codec.ToDomain(w)
	if err != nil {
		var zero D
		return zero, &apperr.TransportError{Message: "unreadable " + r.def.Entity + " record", Err: err}
	}
	return d, nil
}

func (r *Repository[D, W]) toDomainAll(wires []W) ([]D, error) {
	out := make([]D, 0, len(wires))
	for _, w := range wires {
		d, err := r.toDomain(w)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func guardKey(entity, op string, id int64) string {
	return entity + ":" + op + ":" + strconv.FormatInt(id, 10)
}

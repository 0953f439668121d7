// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package facade serves configured resources as a uniform REST API.

One set of generic handlers serves every resource; the per-resource
behavior (field allow-lists, filters, permits, formatting, scoping) is
data in a Resource configuration. Routes follow the pattern

	GET/POST   /api/{plural}
	GET/PUT/DELETE /api/{plural}/{id}

All responses are JSON envelopes carrying either data or an error, never
both. Internal failure detail is logged and never echoed to clients.
*/
package facade

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/kontor/core"
	"github.com/relabs-tech/kontor/core/access"
	"github.com/relabs-tech/kontor/core/logger"
	"github.com/relabs-tech/kontor/core/schema"
	"github.com/relabs-tech/kontor/facade/blob"
	"github.com/relabs-tech/kontor/store"
)

// Notifier receives change events after successful mutations
type Notifier interface {
	Notify(ctx context.Context, resource string, operation core.Operation, id int64, data map[string]any)
}

// Builder is the input to MustNew
type Builder struct {
	// Store provides the collections backing the resources. Required.
	Store store.Store
	// Router is the mux router the routes are added to. Required.
	Router *mux.Router
	// Resources are the resource configurations to serve. Required.
	Resources []Resource
	// AllowedOrigin is the single origin reflected in CORS headers.
	// Responses allow credentials, so a wildcard is invalid. Required.
	AllowedOrigin string
	// Validator optionally validates payloads against resource schemas
	Validator *schema.Validator
	// Notifier optionally receives change events
	Notifier Notifier
	// Blobs optionally stores the resources' binary fields
	Blobs blob.Driver
}

// Facade is a running set of resource routes
type Facade struct {
	store     store.Store
	origin    string
	validator *schema.Validator
	notifier  Notifier
	blobs     blob.Driver
}

// MustNew creates the facade and registers all routes. It panics on
// invalid configuration.
func MustNew(b *Builder) *Facade {
	if b.Store == nil {
		panic("store is missing")
	}
	if b.Router == nil {
		panic("router is missing")
	}
	if len(b.Resources) == 0 {
		panic("resources are missing")
	}
	if b.AllowedOrigin == "" || b.AllowedOrigin == "*" {
		panic("allowed origin must be a single concrete origin")
	}
	f := &Facade{
		store:     b.Store,
		origin:    b.AllowedOrigin,
		validator: b.Validator,
		notifier:  b.Notifier,
		blobs:     b.Blobs,
	}
	for _, rc := range b.Resources {
		if _, ok := b.Store.Collection(rc.Name); !ok {
			panic(fmt.Sprintf("store has no collection %s", rc.Name))
		}
		if rc.Image != nil && b.Blobs == nil {
			panic(fmt.Sprintf("resource %s has a binary field, but no blob driver is configured", rc.Name))
		}
		f.handleResourceRoutes(b.Router, rc)
	}
	return f
}

// Route returns the collection route of a resource name, e.g.
// "/api/client-companies" for "client_company".
func Route(resource string) string {
	return "/api/" + strings.ReplaceAll(core.Plural(resource), "_", "-")
}

func (f *Facade) handleResourceRoutes(router *mux.Router, rc Resource) {
	collectionRoute := Route(rc.Name)
	itemRoute := collectionRoute + "/{id:[0-9]+}"
	collectionMethods := []string{http.MethodOptions, http.MethodGet, http.MethodPost}
	itemMethods := []string{http.MethodOptions, http.MethodGet, http.MethodPut, http.MethodDelete}

	log := logger.Default()
	log.Debugln("create route:", collectionRoute)
	log.Debugln("create route:", itemRoute)

	router.Handle(collectionRoute, handlers.CompressHandler(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			addStandardHeaders(w, f.origin, collectionMethods)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			if r.Method == http.MethodPost {
				f.create(w, r, rc)
				return
			}
			f.list(w, r, rc)
		}))).Methods(collectionMethods...)

	router.Handle(itemRoute, handlers.CompressHandler(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			addStandardHeaders(w, f.origin, itemMethods)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			switch r.Method {
			case http.MethodPut:
				f.update(w, r, rc)
			case http.MethodDelete:
				f.delete(w, r, rc)
			default:
				f.read(w, r, rc)
			}
		}))).Methods(itemMethods...)
}

// authorize checks the caller against the resource's permits. It runs
// before anything else, including parameter validation.
func authorize(r *http.Request, operation core.Operation, rc Resource) (*access.Authorization, bool) {
	auth := access.AuthorizationFromContext(r.Context())
	return auth, auth.IsAuthorized(operation, rc.Permits)
}

func (f *Facade) collection(rc Resource) store.Collection {
	collection, _ := f.store.Collection(rc.Name)
	return collection
}

func (f *Facade) list(w http.ResponseWriter, r *http.Request, rc Resource) {
	ctx := r.Context()
	auth, ok := authorize(r, core.OperationList, rc)
	if !ok {
		writeError(w, http.StatusForbidden, errForbidden, "")
		return
	}
	p, err := parsePagination(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, errMalformedInput, err.Error())
		return
	}
	predicate := buildPredicate(rc, r.URL.Query())
	if rc.Scope != nil {
		predicate = append(predicate, rc.Scope(auth)...)
	}
	collection := f.collection(rc)
	records, err := collection.Search(ctx, predicate, p.Limit, p.Offset)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Errorf("Error 4111: cannot search %s", rc.Name)
		writeError(w, http.StatusInternalServerError, errInternal, "")
		return
	}
	total, err := collection.SearchCount(ctx, predicate)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Errorf("Error 4112: cannot count %s", rc.Name)
		writeError(w, http.StatusInternalServerError, errInternal, "")
		return
	}
	data := make([]any, 0, len(records))
	for _, record := range records {
		object, err := f.format(r, rc, record, false)
		if err != nil {
			logger.FromContext(ctx).WithError(err).Errorf("Error 4113: cannot format %s %d", rc.Name, record.ID())
			writeError(w, http.StatusInternalServerError, errInternal, "")
			return
		}
		data = append(data, object)
	}
	writeList(w, data, total, p)
}

func (f *Facade) create(w http.ResponseWriter, r *http.Request, rc Resource) {
	ctx := r.Context()
	auth, ok := authorize(r, core.OperationCreate, rc)
	if !ok {
		writeError(w, http.StatusForbidden, errForbidden, "")
		return
	}
	payload, body, err := decodeBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, errMalformedInput, err.Error())
		return
	}
	if err := f.validatePayload(rc, body); err != nil {
		writeError(w, http.StatusBadRequest, errMalformedInput, err.Error())
		return
	}
	image, err := extractImage(rc, payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, errMalformedInput, err.Error())
		return
	}
	fields, err := sanitize(rc, payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, errMalformedInput, err.Error())
		return
	}
	if err := checkRequired(rc, fields); err != nil {
		writeError(w, http.StatusBadRequest, errMalformedInput, err.Error())
		return
	}
	if !fieldsInScope(rc, auth, fields, true) {
		writeError(w, http.StatusForbidden, errForbidden, "")
		return
	}
	record, err := f.collection(rc).Create(ctx, fields)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Errorf("Error 4121: cannot create %s", rc.Name)
		writeError(w, http.StatusInternalServerError, errInternal, "")
		return
	}
	if image != nil {
		if err := f.blobs.Put(ctx, blobKey(rc, record.ID()), image); err != nil {
			logger.FromContext(ctx).WithError(err).Errorf("Error 4122: cannot store %s %d image", rc.Name, record.ID())
			writeError(w, http.StatusInternalServerError, errInternal, "")
			return
		}
	}
	object, err := f.format(r, rc, record, false)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Errorf("Error 4123: cannot format %s %d", rc.Name, record.ID())
		writeError(w, http.StatusInternalServerError, errInternal, "")
		return
	}
	f.notify(r, rc, core.OperationCreate, record.ID(), object)
	writeData(w, http.StatusCreated, object, fmt.Sprintf("%s created with id %d", rc.Name, record.ID()))
}

func (f *Facade) read(w http.ResponseWriter, r *http.Request, rc Resource) {
	ctx := r.Context()
	auth, ok := authorize(r, core.OperationRead, rc)
	if !ok {
		writeError(w, http.StatusForbidden, errForbidden, "")
		return
	}
	record, ok := f.resolve(w, r, rc)
	if !ok {
		return
	}
	if !recordInScope(ctx, rc, auth, record) {
		writeError(w, http.StatusForbidden, errForbidden, "")
		return
	}
	includeImage := rc.Image != nil && strings.EqualFold(r.URL.Query().Get(rc.Image.Parameter), "true")
	object, err := f.format(r, rc, record, includeImage)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Errorf("Error 4131: cannot format %s %d", rc.Name, record.ID())
		writeError(w, http.StatusInternalServerError, errInternal, "")
		return
	}
	writeData(w, http.StatusOK, object, "")
}

func (f *Facade) update(w http.ResponseWriter, r *http.Request, rc Resource) {
	ctx := r.Context()
	auth, ok := authorize(r, core.OperationUpdate, rc)
	if !ok {
		writeError(w, http.StatusForbidden, errForbidden, "")
		return
	}
	payload, body, err := decodeBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, errMalformedInput, err.Error())
		return
	}
	if err := f.validatePayload(rc, body); err != nil {
		writeError(w, http.StatusBadRequest, errMalformedInput, err.Error())
		return
	}
	image, err := extractImage(rc, payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, errMalformedInput, err.Error())
		return
	}
	fields, err := sanitize(rc, payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, errMalformedInput, err.Error())
		return
	}
	if len(fields) == 0 && image == nil {
		writeError(w, http.StatusBadRequest, errMalformedInput, "no valid fields to update")
		return
	}
	record, ok := f.resolve(w, r, rc)
	if !ok {
		return
	}
	if !recordInScope(ctx, rc, auth, record) || !fieldsInScope(rc, auth, fields, false) {
		writeError(w, http.StatusForbidden, errForbidden, "")
		return
	}
	if len(fields) > 0 {
		if err := record.Write(ctx, fields); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, errNotFound, "")
				return
			}
			logger.FromContext(ctx).WithError(err).Errorf("Error 4141: cannot update %s %d", rc.Name, record.ID())
			writeError(w, http.StatusInternalServerError, errInternal, "")
			return
		}
	}
	if image != nil {
		if err := f.blobs.Put(ctx, blobKey(rc, record.ID()), image); err != nil {
			logger.FromContext(ctx).WithError(err).Errorf("Error 4142: cannot store %s %d image", rc.Name, record.ID())
			writeError(w, http.StatusInternalServerError, errInternal, "")
			return
		}
	}
	object, err := f.format(r, rc, record, false)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Errorf("Error 4143: cannot format %s %d", rc.Name, record.ID())
		writeError(w, http.StatusInternalServerError, errInternal, "")
		return
	}
	f.notify(r, rc, core.OperationUpdate, record.ID(), object)
	writeData(w, http.StatusOK, object, fmt.Sprintf("%s %d updated", rc.Name, record.ID()))
}

func (f *Facade) delete(w http.ResponseWriter, r *http.Request, rc Resource) {
	ctx := r.Context()
	auth, ok := authorize(r, core.OperationDelete, rc)
	if !ok {
		writeError(w, http.StatusForbidden, errForbidden, "")
		return
	}
	record, ok := f.resolve(w, r, rc)
	if !ok {
		return
	}
	if !recordInScope(ctx, rc, auth, record) {
		writeError(w, http.StatusForbidden, errForbidden, "")
		return
	}
	name := ""
	if value, ok := record.Get("name"); ok {
		name, _ = value.(string)
	}
	if err := record.Delete(ctx); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, errNotFound, "")
			return
		}
		logger.FromContext(ctx).WithError(err).Errorf("Error 4151: cannot delete %s %d", rc.Name, record.ID())
		writeError(w, http.StatusInternalServerError, errInternal, "")
		return
	}
	if rc.Image != nil {
		prefix := fmt.Sprintf("/%s/%d/", rc.Name, record.ID())
		if err := f.blobs.DeleteAllWithPrefix(ctx, prefix); err != nil {
			logger.FromContext(ctx).WithError(err).Errorf("Error 4152: cannot delete %s %d blobs", rc.Name, record.ID())
		}
	}
	f.notify(r, rc, core.OperationDelete, record.ID(), nil)
	writeMessage(w, fmt.Sprintf("%s '%s' with id %d deleted", rc.Name, name, record.ID()))
}

// resolve loads the record addressed by the route, writing the 404
// envelope itself when the identity does not resolve.
func (f *Facade) resolve(w http.ResponseWriter, r *http.Request, rc Resource) (store.Record, bool) {
	ctx := r.Context()
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errMalformedInput, "invalid id")
		return nil, false
	}
	record, err := f.collection(rc).Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, errNotFound, "")
			return nil, false
		}
		logger.FromContext(ctx).WithError(err).Errorf("Error 4161: cannot read %s %d", rc.Name, id)
		writeError(w, http.StatusInternalServerError, errInternal, "")
		return nil, false
	}
	return record, true
}

func decodeBody(r *http.Request) (map[string]any, []byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot read request body")
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, nil, fmt.Errorf("invalid JSON")
	}
	return payload, body, nil
}

func (f *Facade) validatePayload(rc Resource, body []byte) error {
	if rc.Schema == "" || f.validator == nil || !f.validator.HasSchema(rc.Schema) {
		return nil
	}
	return f.validator.ValidateString(string(body), rc.Schema)
}

// extractImage pulls the binary field out of the payload before
// sanitization, so it never reaches the record store. The value must be a
// base64 string or null.
func extractImage(rc Resource, payload map[string]any) ([]byte, error) {
	if rc.Image == nil {
		return nil, nil
	}
	value, ok := payload[rc.Image.Name]
	if !ok {
		return nil, nil
	}
	delete(payload, rc.Image.Name)
	if value == nil {
		return nil, nil
	}
	encoded, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("field %s: not a base64 string", rc.Image.Name)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("field %s: not a base64 string", rc.Image.Name)
	}
	return data, nil
}

func blobKey(rc Resource, id int64) string {
	return fmt.Sprintf("/%s/%d/%s", rc.Name, id, rc.Image.Name)
}

// format projects a record into a response object: the identifier, the
// readable fields, then the resource formatter's reshaping. The binary
// field only appears when explicitly requested, and renders null when it
// is absent or unreadable.
func (f *Facade) format(r *http.Request, rc Resource, record store.Record, includeImage bool) (map[string]any, error) {
	ctx := r.Context()
	object := map[string]any{"id": record.ID()}
	for _, key := range rc.readable() {
		if rc.Image != nil && key == rc.Image.Name {
			continue
		}
		value, ok := record.Get(key)
		if !ok {
			value = nil
		}
		object[key] = value
	}
	if rc.Format != nil {
		if err := rc.Format(ctx, record, object); err != nil {
			return nil, err
		}
	}
	if rc.Image != nil && includeImage {
		data, err := f.blobs.Get(ctx, blobKey(rc, record.ID()))
		if err != nil || data == nil {
			if err != nil && !errors.Is(err, blob.ErrNotFound) {
				logger.FromContext(ctx).WithError(err).Warnf("Error 4171: cannot read %s %d image", rc.Name, record.ID())
			}
			object[rc.Image.Name] = nil
		} else {
			object[rc.Image.Name] = base64.StdEncoding.EncodeToString(data)
		}
	}
	return object, nil
}

func (f *Facade) notify(r *http.Request, rc Resource, operation core.Operation, id int64, data map[string]any) {
	if f.notifier == nil {
		return
	}
	f.notifier.Notify(r.Context(), rc.Name, operation, id, data)
}

// recordInScope checks a loaded record against the caller's scope
func recordInScope(ctx context.Context, rc Resource, auth *access.Authorization, record store.Record) bool {
	if rc.Scope == nil {
		return true
	}
	for _, condition := range rc.Scope(auth) {
		base, _ := condition.SplitPath()
		value, _ := record.Get(base)
		if condition.Operator == store.OpEquals && !equalValues(value, condition.Value) {
			return false
		}
	}
	return true
}

// fieldsInScope checks a mutation payload against the caller's scope.
// With defaulting, fields the scope pins but the payload omits are filled
// in, so a scoped create lands in the caller's own scope.
func fieldsInScope(rc Resource, auth *access.Authorization, fields store.Fields, defaulting bool) bool {
	if rc.Scope == nil {
		return true
	}
	for _, condition := range rc.Scope(auth) {
		base, related := condition.SplitPath()
		if related != "" || condition.Operator != store.OpEquals {
			continue
		}
		value, ok := fields[base]
		if !ok {
			if defaulting {
				fields[base] = condition.Value
			}
			continue
		}
		if !equalValues(value, condition.Value) {
			return false
		}
	}
	return true
}

func equalValues(a, b any) bool {
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			return fa == fb
		}
		return false
	}
	return a == b
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

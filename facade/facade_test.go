package facade_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/kontor/core"
	"github.com/relabs-tech/kontor/core/access"
	"github.com/relabs-tech/kontor/core/schema"
	"github.com/relabs-tech/kontor/erp"
	"github.com/relabs-tech/kontor/facade"
	"github.com/relabs-tech/kontor/facade/blob"
	"github.com/relabs-tech/kontor/store/inmem"
)

type recordedEvent struct {
	Resource  string
	Operation core.Operation
	ID        int64
}

type eventRecorder struct {
	events []recordedEvent
}

func (e *eventRecorder) Notify(ctx context.Context, resource string, operation core.Operation, id int64, data map[string]any) {
	e.events = append(e.events, recordedEvent{resource, operation, id})
}

type env struct {
	router *mux.Router
	store  *inmem.Store
	blobs  *blob.LocalFilesystem
	events *eventRecorder
}

func newEnv(t *testing.T) *env {
	st := inmem.New(erp.Collections()...)
	blobs, err := blob.NewLocalFilesystem(t.TempDir())
	require.NoError(t, err)
	validator, err := schema.NewValidator(erp.Schemas(), nil)
	require.NoError(t, err)
	router := mux.NewRouter()
	events := &eventRecorder{}
	facade.MustNew(&facade.Builder{
		Store:         st,
		Router:        router,
		Resources:     erp.Resources(),
		AllowedOrigin: "https://erp.example.com",
		Validator:     validator,
		Notifier:      events,
		Blobs:         blobs,
	})
	return &env{router: router, store: st, blobs: blobs, events: events}
}

var (
	adminAuth = &access.Authorization{Identity: "admin", Roles: []string{"admin"}}
	userAuth  = &access.Authorization{Identity: "user"}
	hrUser1   = &access.Authorization{Identity: "hr1", Roles: []string{erp.RoleHRUser}, CompanyID: 1}
	hrManager = &access.Authorization{Identity: "hrm", Roles: []string{erp.RoleHRUser, erp.RoleHRManager}, CompanyID: 1}
)

func (e *env) request(t *testing.T, auth *access.Authorization, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	r := httptest.NewRequest(method, target, reader)
	if auth != nil {
		r = r.WithContext(auth.ContextWithAuthorization(r.Context()))
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result), "body: %s", w.Body.String())
	return result
}

func data(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	object, ok := decode(t, w)["data"].(map[string]any)
	require.True(t, ok, "body: %s", w.Body.String())
	return object
}

func id(t *testing.T, w *httptest.ResponseRecorder) int64 {
	t.Helper()
	value, ok := data(t, w)["id"].(float64)
	require.True(t, ok)
	return int64(value)
}

func TestPreflight(t *testing.T) {
	e := newEnv(t)
	w := e.request(t, nil, http.MethodOptions, "/api/contacts", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, "https://erp.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "1; mode=block", w.Header().Get("X-XSS-Protection"))

	w = e.request(t, nil, http.MethodOptions, "/api/contacts/1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestAuthenticationRequired(t *testing.T) {
	e := newEnv(t)
	for _, route := range []string{"/api/contacts", "/api/products", "/api/companies", "/api/client-companies"} {
		w := e.request(t, nil, http.MethodGet, route, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, route)
		assert.Equal(t, "forbidden", decode(t, w)["error"])
	}
}

func TestContactCRUD(t *testing.T) {
	e := newEnv(t)

	w := e.request(t, userAuth, http.MethodPost, "/api/contacts", map[string]any{"name": "Acme"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	object := data(t, w)
	assert.Equal(t, "Acme", object["name"])
	assert.Contains(t, object, "email")
	assert.Nil(t, object["email"])
	assert.NotEmpty(t, decode(t, w)["message"])
	contactID := id(t, w)

	w = e.request(t, userAuth, http.MethodGet, "/api/contacts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	envelope := decode(t, w)
	assert.Equal(t, float64(1), envelope["count"])
	assert.Equal(t, float64(1), envelope["total"])

	w = e.request(t, userAuth, http.MethodGet, "/api/contacts/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Acme", data(t, w)["name"])

	w = e.request(t, userAuth, http.MethodPut, "/api/contacts/1", map[string]any{"email": "acme@example.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "acme@example.com", data(t, w)["email"])

	w = e.request(t, userAuth, http.MethodDelete, "/api/contacts/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	message, _ := decode(t, w)["message"].(string)
	assert.Contains(t, message, "Acme")
	assert.Contains(t, message, "1")

	w = e.request(t, userAuth, http.MethodGet, "/api/contacts/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = e.request(t, userAuth, http.MethodDelete, "/api/contacts/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, []recordedEvent{
		{"contact", core.OperationCreate, contactID},
		{"contact", core.OperationUpdate, contactID},
		{"contact", core.OperationDelete, contactID},
	}, e.events.events)
}

func TestCreateRequiresName(t *testing.T) {
	e := newEnv(t)
	w := e.request(t, userAuth, http.MethodPost, "/api/contacts", map[string]any{"email": "x@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["message"], "name")
}

func TestInvalidJSON(t *testing.T) {
	e := newEnv(t)
	r := httptest.NewRequest(http.MethodPost, "/api/contacts", bytes.NewReader([]byte("{not json")))
	r = r.WithContext(userAuth.ContextWithAuthorization(r.Context()))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "malformed input", decode(t, w)["error"])
}

func TestSchemaRejectsWrongTypes(t *testing.T) {
	e := newEnv(t)
	w := e.request(t, userAuth, http.MethodPost, "/api/contacts", map[string]any{"name": 42})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSanitizerDropsUnknownFields(t *testing.T) {
	e := newEnv(t)
	w := e.request(t, userAuth, http.MethodPost, "/api/contacts",
		map[string]any{"name": "Clean", "id": 999, "role": "superuser"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	object := data(t, w)
	assert.NotEqual(t, float64(999), object["id"])
	assert.NotContains(t, object, "role")
}

func TestUpdateWithNoValidFields(t *testing.T) {
	e := newEnv(t)
	w := e.request(t, userAuth, http.MethodPost, "/api/contacts", map[string]any{"name": "Acme"})
	require.Equal(t, http.StatusCreated, w.Code)

	for _, body := range []map[string]any{{}, {"unknown": "value"}} {
		w = e.request(t, userAuth, http.MethodPut, "/api/contacts/1", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decode(t, w)["message"], "no valid fields")
	}
	w = e.request(t, userAuth, http.MethodGet, "/api/contacts/1", nil)
	assert.Equal(t, "Acme", data(t, w)["name"])
}

func TestPagination(t *testing.T) {
	e := newEnv(t)
	for _, name := range []string{"alpha", "beta", "gamma", "delta", "epsilon"} {
		w := e.request(t, userAuth, http.MethodPost, "/api/products", map[string]any{"name": name})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := e.request(t, userAuth, http.MethodGet, "/api/products?limit=2&offset=3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	envelope := decode(t, w)
	assert.Equal(t, float64(2), envelope["count"])
	assert.Equal(t, float64(5), envelope["total"])
	assert.Equal(t, float64(3), envelope["offset"])
	assert.Equal(t, float64(2), envelope["limit"])

	// out-of-range values clamp, they do not fail
	w = e.request(t, userAuth, http.MethodGet, "/api/products?limit=500&offset=-5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	envelope = decode(t, w)
	assert.Equal(t, float64(100), envelope["limit"])
	assert.Equal(t, float64(0), envelope["offset"])

	for _, query := range []string{"limit=abc", "offset=1.5", "limit="} {
		w = e.request(t, userAuth, http.MethodGet, "/api/products?"+query, nil)
		if query == "limit=" {
			assert.Equal(t, http.StatusOK, w.Code, query)
			continue
		}
		assert.Equal(t, http.StatusBadRequest, w.Code, query)
		assert.Equal(t, "malformed input", decode(t, w)["error"])
	}
}

func TestForbiddenPrecedesBadPagination(t *testing.T) {
	e := newEnv(t)
	w := e.request(t, userAuth, http.MethodGet, "/api/employees?limit=abc", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestFilters(t *testing.T) {
	e := newEnv(t)
	w := e.request(t, userAuth, http.MethodPost, "/api/products", map[string]any{"name": "Office Chair", "active": true})
	require.Equal(t, http.StatusCreated, w.Code)
	w = e.request(t, userAuth, http.MethodPost, "/api/products", map[string]any{"name": "Standing Desk", "active": false})
	require.Equal(t, http.StatusCreated, w.Code)

	w = e.request(t, userAuth, http.MethodGet, "/api/products?name=CHAIR", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])

	w = e.request(t, userAuth, http.MethodGet, "/api/products?active=TRUE", nil)
	assert.Equal(t, float64(1), decode(t, w)["count"])
	w = e.request(t, userAuth, http.MethodGet, "/api/products?active=yes", nil)
	assert.Equal(t, float64(1), decode(t, w)["count"])

	// unknown parameters are ignored
	w = e.request(t, userAuth, http.MethodGet, "/api/products?sort=evil&name=desk", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])
}

func TestEmployeeRolesAndCompanyScope(t *testing.T) {
	e := newEnv(t)

	w := e.request(t, userAuth, http.MethodGet, "/api/employees", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.request(t, hrUser1, http.MethodPost, "/api/employees", map[string]any{"name": "Eve"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.request(t, hrManager, http.MethodPost, "/api/employees",
		map[string]any{"name": "Alice", "company_id": 1, "active": true})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	alice := id(t, w)
	w = e.request(t, hrManager, http.MethodPost, "/api/employees",
		map[string]any{"name": "Bob", "company_id": 2, "active": true})
	require.Equal(t, http.StatusCreated, w.Code)
	bob := id(t, w)

	// hr_user only sees their own company
	w = e.request(t, hrUser1, http.MethodGet, "/api/employees", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])
	assert.Equal(t, float64(1), decode(t, w)["total"])

	w = e.request(t, hrUser1, http.MethodGet, "/api/employees/"+itoa(alice), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = e.request(t, hrUser1, http.MethodGet, "/api/employees/"+itoa(bob), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// the manager crosses company boundaries
	w = e.request(t, hrManager, http.MethodGet, "/api/employees", nil)
	assert.Equal(t, float64(2), decode(t, w)["count"])
	w = e.request(t, hrManager, http.MethodGet, "/api/employees/"+itoa(bob), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEmployeeRelationsFormatted(t *testing.T) {
	e := newEnv(t)
	w := e.request(t, adminAuth, http.MethodPost, "/api/companies", map[string]any{"name": "Initech"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	companyID := id(t, w)

	w = e.request(t, hrManager, http.MethodPost, "/api/departments",
		map[string]any{"name": "Engineering", "company_id": companyID})
	require.Equal(t, http.StatusCreated, w.Code)
	departmentID := id(t, w)

	w = e.request(t, hrManager, http.MethodPost, "/api/employees",
		map[string]any{"name": "Alice", "company_id": companyID, "department_id": departmentID})
	require.Equal(t, http.StatusCreated, w.Code)
	object := data(t, w)

	department, ok := object["department"].(map[string]any)
	require.True(t, ok, w.Body.String())
	assert.Equal(t, "Engineering", department["name"])
	assert.Equal(t, float64(departmentID), department["id"])
	company, ok := object["company"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Initech", company["name"])
	assert.Nil(t, object["manager"])
	assert.NotContains(t, object, "department_id")
	assert.NotContains(t, object, "company_id")
	assert.NotContains(t, object, "manager_id")
}

func TestContactFlattensRelations(t *testing.T) {
	e := newEnv(t)
	w := e.request(t, adminAuth, http.MethodPost, "/api/companies", map[string]any{"name": "Initech"})
	require.Equal(t, http.StatusCreated, w.Code)
	companyID := id(t, w)

	w = e.request(t, userAuth, http.MethodPost, "/api/contacts",
		map[string]any{"name": "Peter", "company_id": companyID})
	require.Equal(t, http.StatusCreated, w.Code)
	object := data(t, w)
	assert.Equal(t, "Initech", object["company_name"])
	assert.Nil(t, object["country"])
	assert.NotContains(t, object, "company_id")
	assert.NotContains(t, object, "country_id")
}

func TestCompanyMutationsAreAdminOnly(t *testing.T) {
	e := newEnv(t)
	w := e.request(t, userAuth, http.MethodPost, "/api/companies", map[string]any{"name": "Initech"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.request(t, adminAuth, http.MethodPost, "/api/companies", map[string]any{"name": "Initech"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = e.request(t, userAuth, http.MethodGet, "/api/companies", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])

	w = e.request(t, userAuth, http.MethodDelete, "/api/companies/1", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestProductImage(t *testing.T) {
	e := newEnv(t)
	image := base64.StdEncoding.EncodeToString([]byte("picture bytes"))

	w := e.request(t, userAuth, http.MethodPost, "/api/products",
		map[string]any{"name": "Office Chair", "image": image})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	productID := id(t, w)
	assert.NotContains(t, data(t, w), "image")

	// the image is only rendered on request
	w = e.request(t, userAuth, http.MethodGet, "/api/products/"+itoa(productID), nil)
	assert.NotContains(t, data(t, w), "image")
	w = e.request(t, userAuth, http.MethodGet, "/api/products/"+itoa(productID)+"?include_image=true", nil)
	assert.Equal(t, image, data(t, w)["image"])

	// a product without an image renders null
	w = e.request(t, userAuth, http.MethodPost, "/api/products", map[string]any{"name": "Desk"})
	require.Equal(t, http.StatusCreated, w.Code)
	deskID := id(t, w)
	w = e.request(t, userAuth, http.MethodGet, "/api/products/"+itoa(deskID)+"?include_image=true", nil)
	object := data(t, w)
	assert.Contains(t, object, "image")
	assert.Nil(t, object["image"])

	// broken upload data is a client error
	w = e.request(t, userAuth, http.MethodPost, "/api/products",
		map[string]any{"name": "Lamp", "image": "#### not base64 ####"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// deletion removes the blob
	w = e.request(t, userAuth, http.MethodDelete, "/api/products/"+itoa(productID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, err := e.blobs.Get(context.Background(), "/product/"+itoa(productID)+"/image")
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

// failingBlobs stores uploads but cannot read them back
type failingBlobs struct {
	*blob.LocalFilesystem
}

func (f *failingBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("read timeout")
}

func TestProductImageUnreadable(t *testing.T) {
	st := inmem.New(erp.Collections()...)
	blobs, err := blob.NewLocalFilesystem(t.TempDir())
	require.NoError(t, err)
	router := mux.NewRouter()
	facade.MustNew(&facade.Builder{
		Store:         st,
		Router:        router,
		Resources:     erp.Resources(),
		AllowedOrigin: "https://erp.example.com",
		Blobs:         &failingBlobs{blobs},
	})
	e := &env{router: router, store: st}

	image := base64.StdEncoding.EncodeToString([]byte("picture bytes"))
	w := e.request(t, userAuth, http.MethodPost, "/api/products",
		map[string]any{"name": "Shelf", "image": image})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	productID := id(t, w)

	// a failing blob read degrades to null, not to an error
	w = e.request(t, userAuth, http.MethodGet, "/api/products/"+itoa(productID)+"?include_image=true", nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	object := data(t, w)
	assert.Contains(t, object, "image")
	assert.Nil(t, object["image"])
}

func TestImageParameterIsConfigurable(t *testing.T) {
	st := inmem.New(erp.Collections()...)
	blobs, err := blob.NewLocalFilesystem(t.TempDir())
	require.NoError(t, err)
	resources := erp.Resources()
	for i := range resources {
		if resources[i].Name == "product" {
			resources[i].Image = &facade.ImageField{Name: "image", Parameter: "with_picture"}
		}
	}
	router := mux.NewRouter()
	facade.MustNew(&facade.Builder{
		Store:         st,
		Router:        router,
		Resources:     resources,
		AllowedOrigin: "https://erp.example.com",
		Blobs:         blobs,
	})
	e := &env{router: router, store: st}

	image := base64.StdEncoding.EncodeToString([]byte("picture bytes"))
	w := e.request(t, userAuth, http.MethodPost, "/api/products",
		map[string]any{"name": "Whiteboard", "image": image})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	productID := id(t, w)

	w = e.request(t, userAuth, http.MethodGet, "/api/products/"+itoa(productID)+"?with_picture=true", nil)
	assert.Equal(t, image, data(t, w)["image"])

	// only the configured parameter triggers the image
	w = e.request(t, userAuth, http.MethodGet, "/api/products/"+itoa(productID)+"?include_image=true", nil)
	assert.NotContains(t, data(t, w), "image")
}

func TestWildcardOriginRefused(t *testing.T) {
	st := inmem.New(erp.Collections()...)
	blobs, err := blob.NewLocalFilesystem(t.TempDir())
	require.NoError(t, err)
	for _, origin := range []string{"", "*"} {
		assert.Panics(t, func() {
			facade.MustNew(&facade.Builder{
				Store:         st,
				Router:        mux.NewRouter(),
				Resources:     erp.Resources(),
				AllowedOrigin: origin,
				Blobs:         blobs,
			})
		}, "origin %q", origin)
	}
}

func TestClientCompanyContactPerson(t *testing.T) {
	e := newEnv(t)
	w := e.request(t, userAuth, http.MethodPost, "/api/contacts", map[string]any{"name": "Peter"})
	require.Equal(t, http.StatusCreated, w.Code)
	contactID := id(t, w)

	w = e.request(t, userAuth, http.MethodPost, "/api/client-companies",
		map[string]any{"name": "Globex", "contact_person_id": contactID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	object := data(t, w)
	person, ok := object["contact_person"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Peter", person["name"])
	assert.NotContains(t, object, "contact_person_id")
}

func itoa(id int64) string {
	return fmt.Sprintf("%d", id)
}

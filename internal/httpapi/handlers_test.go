package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"thepresent-be/internal/config"
	"thepresent-be/internal/errs"
	"thepresent-be/internal/media"
	"thepresent-be/internal/order"
	"thepresent-be/internal/product"
	"thepresent-be/internal/user"
)

// --- Mocks ---

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, in user.RegisterInput) (string, user.User, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.Get(1).(user.User), args.Error(2)
}

func (m *MockUserService) Login(ctx context.Context, email, password string) (string, user.User, error) {
	args := m.Called(ctx, email, password)
	return args.String(0), args.Get(1).(user.User), args.Error(2)
}

func (m *MockUserService) GetByID(ctx context.Context, id string) (user.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(user.User), args.Error(1)
}

type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) List(ctx context.Context) ([]product.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]product.Product), args.Error(1)
}

func (m *MockProductService) GetByID(ctx context.Context, id string) (product.Product, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(product.Product), args.Error(1)
}

func (m *MockProductService) Create(ctx context.Context, in product.CreateInput, files []product.Upload) (product.Product, error) {
	args := m.Called(ctx, in, files)
	return args.Get(0).(product.Product), args.Error(1)
}

func (m *MockProductService) Update(ctx context.Context, id string, in product.UpdateInput, files []product.Upload) (product.Product, *product.CleanupReport, error) {
	args := m.Called(ctx, id, in, files)
	var report *product.CleanupReport
	if args.Get(1) != nil {
		report = args.Get(1).(*product.CleanupReport)
	}
	return args.Get(0).(product.Product), report, args.Error(2)
}

func (m *MockProductService) Delete(ctx context.Context, id string) (*product.CleanupReport, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*product.CleanupReport), args.Error(1)
}

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) Create(ctx context.Context, userID string, items []order.NewItem) (order.Order, error) {
	args := m.Called(ctx, userID, items)
	return args.Get(0).(order.Order), args.Error(1)
}

func (m *MockOrderService) GetOrders(ctx context.Context, callerID string, isAdmin bool) ([]order.Order, error) {
	args := m.Called(ctx, callerID, isAdmin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderService) GetByID(ctx context.Context, id, callerID string, isAdmin bool) (order.Order, error) {
	args := m.Called(ctx, id, callerID, isAdmin)
	return args.Get(0).(order.Order), args.Error(1)
}

func (m *MockOrderService) UpdateStatus(ctx context.Context, id, status string) (order.Order, error) {
	args := m.Called(ctx, id, status)
	return args.Get(0).(order.Order), args.Error(1)
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Upload(ctx context.Context, r io.Reader, filename string) (media.Asset, error) {
	args := m.Called(ctx, r, filename)
	return args.Get(0).(media.Asset), args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, publicID string) error {
	args := m.Called(ctx, publicID)
	return args.Error(0)
}

// --- Harness ---

type fixture struct {
	server   *Server
	users    *MockUserService
	products *MockProductService
	orders   *MockOrderService
	store    *MockStore
	issuer   *user.TokenIssuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		users:    new(MockUserService),
		products: new(MockProductService),
		orders:   new(MockOrderService),
		store:    new(MockStore),
		issuer:   user.NewTokenIssuer("test-secret", time.Hour),
	}
	f.server = NewServer(&config.Config{}, f.users, f.products, f.orders, f.store, f.issuer)
	t.Cleanup(f.server.Close)
	return f
}

// tokenFor issues a token and primes the credential-store lookup the
// auth gate performs.
func (f *fixture) tokenFor(t *testing.T, u user.User) string {
	t.Helper()
	token, err := f.issuer.Generate(u)
	require.NoError(t, err)
	f.users.On("GetByID", mock.Anything, u.ID).Return(u, nil)
	return token
}

func (f *fixture) do(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.server.Engine().ServeHTTP(w, req)
	return w
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

var (
	alice = user.User{ID: "u-1", Name: "Alice", Email: "a@x.com", Role: user.RoleCustomer}
	bob   = user.User{ID: "u-2", Name: "Bob", Email: "b@x.com", Role: user.RoleCustomer}
	admin = user.User{ID: "adm-1", Name: "Root", Email: "root@x.com", Role: user.RoleAdmin}
)

// --- Auth ---

func TestRegister(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		f := newFixture(t)
		f.users.On("Register", mock.Anything, mock.MatchedBy(func(in user.RegisterInput) bool {
			return in.Email == "a@x.com" && in.Role == ""
		})).Return("tok", alice, nil)

		w := f.do(http.MethodPost, "/api/auth/register", "", jsonBody(t, gin.H{
			"name": "Alice", "email": "a@x.com", "password": "secret123",
		}), "application/json")

		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Token string      `json:"token"`
			User  userPayload `json:"user"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "tok", resp.Token)
		assert.Equal(t, "u-1", resp.User.ID)
	})

	t.Run("FieldValidation", func(t *testing.T) {
		f := newFixture(t)

		w := f.do(http.MethodPost, "/api/auth/register", "", jsonBody(t, gin.H{
			"name": "", "email": "not-an-email", "password": "abc", "role": "superuser",
		}), "application/json")

		require.Equal(t, http.StatusBadRequest, w.Code)
		var resp errorBody
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Contains(t, resp.Errors, "name")
		assert.Contains(t, resp.Errors, "email")
		assert.Contains(t, resp.Errors, "password")
		assert.Contains(t, resp.Errors, "role")
		f.users.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		f := newFixture(t)
		f.users.On("Register", mock.Anything, mock.Anything).
			Return("", user.User{}, errs.ValidationFields("Email already in use", map[string]string{
				"email": "Email already in use",
			}))

		w := f.do(http.MethodPost, "/api/auth/register", "", jsonBody(t, gin.H{
			"name": "Alice", "email": "a@x.com", "password": "secret123",
		}), "application/json")

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Email already in use")
	})
}

func TestLogin(t *testing.T) {
	t.Run("InvalidCredentials", func(t *testing.T) {
		f := newFixture(t)
		f.users.On("Login", mock.Anything, "a@x.com", "wrong").
			Return("", user.User{}, errs.Unauthenticated("Invalid credentials"))

		w := f.do(http.MethodPost, "/api/auth/login", "", jsonBody(t, gin.H{
			"email": "a@x.com", "password": "wrong",
		}), "application/json")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Success", func(t *testing.T) {
		f := newFixture(t)
		f.users.On("Login", mock.Anything, "a@x.com", "secret123").Return("tok", alice, nil)

		w := f.do(http.MethodPost, "/api/auth/login", "", jsonBody(t, gin.H{
			"email": "a@x.com", "password": "secret123",
		}), "application/json")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestMe(t *testing.T) {
	t.Run("Authenticated", func(t *testing.T) {
		f := newFixture(t)
		token := f.tokenFor(t, alice)

		w := f.do(http.MethodGet, "/api/auth/me", token, nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"a@x.com"`)
	})

	t.Run("MissingToken", func(t *testing.T) {
		f := newFixture(t)
		w := f.do(http.MethodGet, "/api/auth/me", "", nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("ExpiredToken", func(t *testing.T) {
		f := newFixture(t)
		expired, err := user.NewTokenIssuer("test-secret", -time.Minute).Generate(alice)
		require.NoError(t, err)

		w := f.do(http.MethodGet, "/api/auth/me", expired, nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("GarbageToken", func(t *testing.T) {
		f := newFixture(t)
		w := f.do(http.MethodGet, "/api/auth/me", "garbage", nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

// --- Products ---

func TestListProducts_PublicAndTolerantOfBadToken(t *testing.T) {
	f := newFixture(t)
	f.products.On("List", mock.Anything).Return([]product.Product{{ID: "p-1", Name: "Mug"}}, nil)

	// anonymous
	w := f.do(http.MethodGet, "/api/products", "", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	// allow-guest mode shrugs off an invalid credential
	w = f.do(http.MethodGet, "/api/products", "garbage", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateProduct(t *testing.T) {
	multipartBody := func(t *testing.T, fields map[string]string, fileNames ...string) (io.Reader, string) {
		t.Helper()
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		for k, v := range fields {
			require.NoError(t, mw.WriteField(k, v))
		}
		for _, name := range fileNames {
			h := make(map[string][]string)
			h["Content-Disposition"] = []string{`form-data; name="images"; filename="` + name + `"`}
			h["Content-Type"] = []string{"image/png"}
			part, err := mw.CreatePart(h)
			require.NoError(t, err)
			_, err = part.Write([]byte("png-bytes"))
			require.NoError(t, err)
		}
		require.NoError(t, mw.Close())
		return &buf, mw.FormDataContentType()
	}

	t.Run("RequiresAdmin", func(t *testing.T) {
		f := newFixture(t)
		token := f.tokenFor(t, alice)

		body, ct := multipartBody(t, map[string]string{"name": "Mug"})
		w := f.do(http.MethodPost, "/api/products", token, body, ct)
		assert.Equal(t, http.StatusForbidden, w.Code)
		f.products.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("AdminCreates", func(t *testing.T) {
		f := newFixture(t)
		token := f.tokenFor(t, admin)

		f.products.On("Create", mock.Anything, mock.MatchedBy(func(in product.CreateInput) bool {
			return in.Name == "Mug" && in.Price == 12.5 &&
				len(in.ImageURLs) == 1 && in.ImageURLs[0] == "https://cdn/old.png"
		}), mock.MatchedBy(func(files []product.Upload) bool {
			return len(files) == 1 && files[0].Filename == "a.png"
		})).Return(product.Product{ID: "p-1", Name: "Mug"}, nil)

		body, ct := multipartBody(t, map[string]string{
			"name": "Mug", "description": "Ceramic", "price": "12.5",
			"category": "kitchen", "imageUrls": "https://cdn/old.png",
		}, "a.png")

		w := f.do(http.MethodPost, "/api/products", token, body, ct)
		assert.Equal(t, http.StatusCreated, w.Code)
		f.products.AssertExpectations(t)
	})

	t.Run("BadPrice", func(t *testing.T) {
		f := newFixture(t)
		token := f.tokenFor(t, admin)

		body, ct := multipartBody(t, map[string]string{"name": "Mug", "price": "abc"})
		w := f.do(http.MethodPost, "/api/products", token, body, ct)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Valid price is required")
	})
}

func TestDeleteProduct(t *testing.T) {
	t.Run("DegradedCleanupStillSucceeds", func(t *testing.T) {
		f := newFixture(t)
		token := f.tokenFor(t, admin)

		f.products.On("Delete", mock.Anything, "p-1").Return(&product.CleanupReport{
			Attempted: 2,
			Failures:  []product.SideFailure{{Ref: "pres/a"}},
		}, nil)

		w := f.do(http.MethodDelete, "/api/products/p-1", token, nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Product deleted successfully")
		assert.Contains(t, w.Body.String(), "cleanup")
	})

	t.Run("NotFound", func(t *testing.T) {
		f := newFixture(t)
		token := f.tokenFor(t, admin)

		f.products.On("Delete", mock.Anything, "missing").
			Return(nil, errs.NotFound("Product not found"))

		w := f.do(http.MethodDelete, "/api/products/missing", token, nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

// --- Orders ---

func TestCreateOrder(t *testing.T) {
	t.Run("OwnerIsCallerNotBody", func(t *testing.T) {
		f := newFixture(t)
		token := f.tokenFor(t, alice)

		f.orders.On("Create", mock.Anything, "u-1", []order.NewItem{
			{ProductID: "p-1", Quantity: 2},
		}).Return(order.Order{ID: "o-1", UserID: "u-1"}, nil)

		// the body's user field must be ignored
		w := f.do(http.MethodPost, "/api/orders", token, jsonBody(t, gin.H{
			"user":  "someone-else",
			"items": []gin.H{{"product": "p-1", "quantity": 2}},
		}), "application/json")

		assert.Equal(t, http.StatusCreated, w.Code)
		f.orders.AssertExpectations(t)
	})

	t.Run("EmptyItems", func(t *testing.T) {
		f := newFixture(t)
		token := f.tokenFor(t, alice)

		f.orders.On("Create", mock.Anything, "u-1", []order.NewItem{}).
			Return(order.Order{}, errs.ValidationFields("Invalid order data", map[string]string{
				"items": "Order must contain at least one item",
			}))

		w := f.do(http.MethodPost, "/api/orders", token, jsonBody(t, gin.H{"items": []gin.H{}}), "application/json")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		f := newFixture(t)
		w := f.do(http.MethodPost, "/api/orders", "", jsonBody(t, gin.H{"items": []gin.H{}}), "application/json")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestOrderListing(t *testing.T) {
	t.Run("AllOrdersForbiddenForNonAdmin", func(t *testing.T) {
		f := newFixture(t)
		token := f.tokenFor(t, alice)

		w := f.do(http.MethodGet, "/api/orders/all", token, nil, "")
		assert.Equal(t, http.StatusForbidden, w.Code)
		// no partial data ever reaches a non-admin here
		f.orders.AssertNotCalled(t, "GetOrders", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("AllOrdersForAdmin", func(t *testing.T) {
		f := newFixture(t)
		token := f.tokenFor(t, admin)
		f.orders.On("GetOrders", mock.Anything, "adm-1", true).
			Return([]order.Order{{ID: "o-1"}, {ID: "o-2"}}, nil)

		w := f.do(http.MethodGet, "/api/orders/all", token, nil, "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("MyOrdersScopedToCaller", func(t *testing.T) {
		f := newFixture(t)
		token := f.tokenFor(t, bob)
		f.orders.On("GetOrders", mock.Anything, "u-2", false).Return([]order.Order{}, nil)

		w := f.do(http.MethodGet, "/api/orders/my-orders", token, nil, "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
	})
}

func TestGetOrder_ForbiddenForStranger(t *testing.T) {
	f := newFixture(t)
	token := f.tokenFor(t, bob)

	f.orders.On("GetByID", mock.Anything, "o-1", "u-2", false).
		Return(order.Order{}, errs.Forbidden("Not authorized to view this order"))

	w := f.do(http.MethodGet, "/api/orders/o-1", token, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUpdateOrderStatus(t *testing.T) {
	t.Run("NonAdminForbidden", func(t *testing.T) {
		f := newFixture(t)
		token := f.tokenFor(t, alice)

		w := f.do(http.MethodPatch, "/api/orders/o-1/status", token,
			jsonBody(t, gin.H{"status": "shipped"}), "application/json")
		assert.Equal(t, http.StatusForbidden, w.Code)
		f.orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("BogusStatus", func(t *testing.T) {
		f := newFixture(t)
		token := f.tokenFor(t, admin)

		f.orders.On("UpdateStatus", mock.Anything, "o-1", "bogus").
			Return(order.Order{}, errs.ValidationFields("Invalid status", map[string]string{
				"status": "Status must be one of: pending, processing, shipped, delivered, cancelled",
			}))

		w := f.do(http.MethodPatch, "/api/orders/o-1/status", token,
			jsonBody(t, gin.H{"status": "bogus"}), "application/json")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("AdminShips", func(t *testing.T) {
		f := newFixture(t)
		token := f.tokenFor(t, admin)

		f.orders.On("UpdateStatus", mock.Anything, "o-1", "shipped").
			Return(order.Order{ID: "o-1", Status: order.StatusShipped}, nil)

		w := f.do(http.MethodPatch, "/api/orders/o-1/status", token,
			jsonBody(t, gin.H{"status": "shipped"}), "application/json")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

// --- Upload ---

func TestUploadImage(t *testing.T) {
	t.Run("NoFile", func(t *testing.T) {
		f := newFixture(t)
		token := f.tokenFor(t, admin)

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.Close())

		w := f.do(http.MethodPost, "/api/upload/image", token, &buf, mw.FormDataContentType())
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "No file uploaded")
	})

	t.Run("UpstreamTimeout", func(t *testing.T) {
		f := newFixture(t)
		token := f.tokenFor(t, admin)

		f.store.On("Upload", mock.Anything, mock.Anything, "a.png").
			Return(media.Asset{}, errs.Upstream("media store upload failed", context.DeadlineExceeded, true))

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		h := map[string][]string{
			"Content-Disposition": {`form-data; name="file"; filename="a.png"`},
			"Content-Type":        {"image/png"},
		}
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte("png-bytes"))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		w := f.do(http.MethodPost, "/api/upload/image", token, &buf, mw.FormDataContentType())
		assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	})
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "The Present API")
}

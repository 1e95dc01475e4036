package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/libequip/loans/internal/db"
	"github.com/libequip/loans/internal/metrics"
	"github.com/libequip/loans/internal/repo"
	"github.com/libequip/loans/internal/reservation"
	"github.com/libequip/loans/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestHandler(t *testing.T) http.Handler {
	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = gormDB.AutoMigrate(&db.Equipment{}, &db.Book{}, &db.Schedule{}, &db.Loan{})
	require.NoError(t, err)

	database := &db.DB{DB: gormDB}
	log := logger.New("test", "error")

	equipmentRepo := repo.NewEquipmentRepository(database, log)
	bookRepo := repo.NewBookRepository(database, log)
	scheduleRepo := repo.NewScheduleRepository(database, log)
	loanRepo := repo.NewLoanRepository(database, log)

	reservations := reservation.NewService(
		database, equipmentRepo, bookRepo, scheduleRepo, loanRepo,
		nil, metrics.New(), log,
	)

	server := NewServer(reservations, equipmentRepo, bookRepo, nil, log)
	return server.Handler([]string{"*"})
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func createTestEquipment(t *testing.T, handler http.Handler, name string, quantity int32) uint {
	t.Helper()
	rec := doRequest(t, handler, http.MethodPost, "/equipments", map[string]interface{}{
		"name":     name,
		"type":     "general",
		"quantity": quantity,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	return uint(decodeBody(t, rec)["id"].(float64))
}

func TestScheduleEndpointsFlow(t *testing.T) {
	handler := setupTestHandler(t)

	equipmentID := createTestEquipment(t, handler, "Projector", 3)

	// Create
	rec := doRequest(t, handler, http.MethodPost, "/schedules", map[string]interface{}{
		"name":        "Science class",
		"quantity":    2,
		"startDate":   "2024-05-01T08:00:00Z",
		"returnDate":  "2024-05-03T18:00:00Z",
		"weekDay":     "wednesday",
		"equipmentId": equipmentID,
		"type":        "class",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody(t, rec)
	scheduleID := uint(created["id"].(float64))
	assert.Equal(t, false, created["returned"])

	// Inventory was decremented
	rec = doRequest(t, handler, http.MethodGet, fmt.Sprintf("/equipments/%d", equipmentID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["quantity"])

	// Read back
	rec = doRequest(t, handler, http.MethodGet, fmt.Sprintf("/schedules/%d", scheduleID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, handler, http.MethodGet, "/schedules", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Return
	rec = doRequest(t, handler, http.MethodPut, fmt.Sprintf("/schedules/%d", scheduleID), map[string]interface{}{
		"returned": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["returned"])

	rec = doRequest(t, handler, http.MethodGet, fmt.Sprintf("/equipments/%d", equipmentID), nil)
	assert.Equal(t, float64(3), decodeBody(t, rec)["quantity"])

	// Second return is an idempotency violation
	rec = doRequest(t, handler, http.MethodPut, fmt.Sprintf("/schedules/%d", scheduleID), map[string]interface{}{
		"returned": true,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Returned schedules can be deleted
	rec = doRequest(t, handler, http.MethodDelete, fmt.Sprintf("/schedules/%d", scheduleID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, handler, http.MethodGet, fmt.Sprintf("/schedules/%d", scheduleID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScheduleCreateStatusCodes(t *testing.T) {
	handler := setupTestHandler(t)
	equipmentID := createTestEquipment(t, handler, "Laptop", 2)

	base := map[string]interface{}{
		"name":        "Class",
		"quantity":    1,
		"startDate":   "2024-05-01T08:00:00Z",
		"returnDate":  "2024-05-02T08:00:00Z",
		"equipmentId": equipmentID,
	}

	// Non-positive quantity is a validation failure
	bad := map[string]interface{}{}
	for k, v := range base {
		bad[k] = v
	}
	bad["quantity"] = 0
	rec := doRequest(t, handler, http.MethodPost, "/schedules", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "quantity", decodeBody(t, rec)["field"])

	// Unknown equipment
	missing := map[string]interface{}{}
	for k, v := range base {
		missing[k] = v
	}
	missing["equipmentId"] = 999
	rec = doRequest(t, handler, http.MethodPost, "/schedules", missing)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Over capacity
	over := map[string]interface{}{}
	for k, v := range base {
		over[k] = v
	}
	over["quantity"] = 5
	rec = doRequest(t, handler, http.MethodPost, "/schedules", over)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Malformed body
	req := httptest.NewRequest(http.MethodPost, "/schedules", bytes.NewBufferString("{not json"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestScheduleImmutableFields(t *testing.T) {
	handler := setupTestHandler(t)
	equipmentID := createTestEquipment(t, handler, "Camera", 3)

	rec := doRequest(t, handler, http.MethodPost, "/schedules", map[string]interface{}{
		"name":        "Photo club",
		"quantity":    1,
		"startDate":   "2024-05-01T08:00:00Z",
		"returnDate":  "2024-05-02T08:00:00Z",
		"equipmentId": equipmentID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	scheduleID := uint(decodeBody(t, rec)["id"].(float64))

	// Quantity and equipment reference are frozen after creation
	rec = doRequest(t, handler, http.MethodPut, fmt.Sprintf("/schedules/%d", scheduleID), map[string]interface{}{
		"quantity": 2,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "quantity", decodeBody(t, rec)["field"])

	rec = doRequest(t, handler, http.MethodPut, fmt.Sprintf("/schedules/%d", scheduleID), map[string]interface{}{
		"equipmentId": 2,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// The one-way transition cannot be reversed
	rec = doRequest(t, handler, http.MethodPut, fmt.Sprintf("/schedules/%d", scheduleID), map[string]interface{}{
		"returned": false,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Plain field edits still work
	rec = doRequest(t, handler, http.MethodPut, fmt.Sprintf("/schedules/%d", scheduleID), map[string]interface{}{
		"name": "Film club",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Film club", decodeBody(t, rec)["name"])

	// Deleting while outstanding conflicts
	rec = doRequest(t, handler, http.MethodDelete, fmt.Sprintf("/schedules/%d", scheduleID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoanEndpoints(t *testing.T) {
	handler := setupTestHandler(t)

	rec := doRequest(t, handler, http.MethodPost, "/books", map[string]interface{}{
		"name":     "1984",
		"number":   1001,
		"gender":   "Dystopian",
		"author":   "George Orwell",
		"quantity": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	bookID := uint(decodeBody(t, rec)["id"].(float64))

	rec = doRequest(t, handler, http.MethodPost, "/loans", map[string]interface{}{
		"name":         "Maria",
		"seriesCourse": "9B",
		"startDate":    "2024-05-01T08:00:00Z",
		"returnDate":   "2024-05-15T18:00:00Z",
		"bookId":       bookID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	loanID := uint(decodeBody(t, rec)["id"].(float64))

	// The single copy is out; the next loan is rejected
	rec = doRequest(t, handler, http.MethodPost, "/loans", map[string]interface{}{
		"name":       "Carlos",
		"startDate":  "2024-05-01T08:00:00Z",
		"returnDate": "2024-05-15T18:00:00Z",
		"bookId":     bookID,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, handler, http.MethodPut, fmt.Sprintf("/loans/%d", loanID), map[string]interface{}{
		"returned": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, handler, http.MethodGet, fmt.Sprintf("/books/%d", bookID), nil)
	assert.Equal(t, float64(1), decodeBody(t, rec)["quantity"])
}

func TestEquipmentDeleteGuard(t *testing.T) {
	handler := setupTestHandler(t)
	equipmentID := createTestEquipment(t, handler, "Microscope", 2)

	rec := doRequest(t, handler, http.MethodPost, "/schedules", map[string]interface{}{
		"name":        "Lab class",
		"quantity":    1,
		"startDate":   "2024-05-01T08:00:00Z",
		"returnDate":  "2024-05-02T08:00:00Z",
		"equipmentId": equipmentID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	scheduleID := uint(decodeBody(t, rec)["id"].(float64))

	// Outstanding schedules block equipment deletion
	rec = doRequest(t, handler, http.MethodDelete, fmt.Sprintf("/equipments/%d", equipmentID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, handler, http.MethodPut, fmt.Sprintf("/schedules/%d", scheduleID), map[string]interface{}{
		"returned": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, handler, http.MethodDelete, fmt.Sprintf("/equipments/%d", equipmentID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEquipmentValidation(t *testing.T) {
	handler := setupTestHandler(t)

	rec := doRequest(t, handler, http.MethodPost, "/equipments", map[string]interface{}{
		"name":     "",
		"type":     "video",
		"quantity": 1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, handler, http.MethodPost, "/equipments", map[string]interface{}{
		"name":     "Projector",
		"type":     "video",
		"quantity": -1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, handler, http.MethodGet, "/equipments/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, handler, http.MethodGet, "/equipments/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

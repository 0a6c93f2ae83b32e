package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gymfix/internal/config"
	"gymfix/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"gymfix/internal/testutil"
)

// e2eEnv spins up the full HTTP stack on sqlite with Redis disabled.
type e2eEnv struct {
	t   *testing.T
	app *fiber.App
	srv *Server
	db  *gorm.DB
}

type e2eUser struct {
	ID    uint
	Token string
}

func newE2EEnv(t *testing.T) *e2eEnv {
	t.Helper()

	db := testutil.NewTestDB(t)
	cfg := &config.Config{
		JWTSecret: "e2e-test-secret",
		Env:       "test",
		UploadDir: t.TempDir(),
	}

	srv, err := NewServerWithDeps(cfg, db, nil)
	require.NoError(t, err)

	app := fiber.New()
	srv.SetupRoutes(app)

	return &e2eEnv{t: t, app: app, srv: srv, db: db}
}

func (e *e2eEnv) signup(username string) e2eUser {
	e.t.Helper()

	body := map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "Password123!",
	}
	status, resp := e.request(http.MethodPost, "/api/auth/signup", "", body)
	require.Equal(e.t, http.StatusCreated, status, "signup %s: %v", username, resp)

	token := resp["token"].(string)
	user := resp["user"].(map[string]interface{})
	return e2eUser{ID: uint(user["id"].(float64)), Token: token}
}

func (e *e2eEnv) makeAdmin(u e2eUser) {
	e.t.Helper()
	require.NoError(e.t, e.db.Model(&models.User{}).Where("id = ?", u.ID).
		Update("is_admin", true).Error)
}

// request sends a JSON request and decodes the JSON response into a map.
func (e *e2eEnv) request(method, path, token string, body interface{}) (int, map[string]interface{}) {
	e.t.Helper()

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reqBody = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reqBody)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(e.t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)

	decoded := map[string]interface{}{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(e.t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp.StatusCode, decoded
}

// requestList is like request but for endpoints returning a JSON array.
func (e *e2eEnv) requestList(method, path, token string) (int, []interface{}) {
	e.t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(e.t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)

	var decoded []interface{}
	if len(raw) > 0 && raw[0] == '[' {
		require.NoError(e.t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp.StatusCode, decoded
}

// e2eTenant is the usual cast for a ticket scenario: one factory, one gym,
// one registered machine.
type e2eTenant struct {
	admin        e2eUser
	factoryOwner e2eUser
	gymOwner     e2eUser
	gymEmployee  e2eUser
	factoryID    uint
	gymID        uint
	qrCode       string
}

func (e *e2eEnv) setupTenant(prefix string) e2eTenant {
	e.t.Helper()

	tn := e2eTenant{
		admin:        e.signup(prefix + "_admin"),
		factoryOwner: e.signup(prefix + "_fowner"),
		gymOwner:     e.signup(prefix + "_gowner"),
		gymEmployee:  e.signup(prefix + "_gstaff"),
		qrCode:       "EQ-" + strings.ToUpper(prefix[:1]) + "1001",
	}
	e.makeAdmin(tn.admin)

	status, resp := e.request(http.MethodPost, "/api/factories", tn.admin.Token, map[string]interface{}{
		"name":     "IronWorks Fitness Co",
		"owner_id": tn.factoryOwner.ID,
	})
	require.Equal(e.t, http.StatusCreated, status, "create factory: %v", resp)
	tn.factoryID = uint(resp["id"].(float64))

	status, resp = e.request(http.MethodPost, fmt.Sprintf("/api/factories/%d/gyms", tn.factoryID),
		tn.factoryOwner.Token, map[string]interface{}{
			"name":     "Downtown Strength",
			"address":  "14 Main St",
			"owner_id": tn.gymOwner.ID,
		})
	require.Equal(e.t, http.StatusCreated, status, "create gym: %v", resp)
	tn.gymID = uint(resp["id"].(float64))

	status, resp = e.request(http.MethodPost, "/api/equipment", tn.factoryOwner.Token, map[string]interface{}{
		"factory_id": tn.factoryID,
		"gym_id":     tn.gymID,
		"name":       "Treadmill T-900",
		"model":      "T-900",
		"qr_code":    tn.qrCode,
	})
	require.Equal(e.t, http.StatusCreated, status, "create equipment: %v", resp)

	status, resp = e.request(http.MethodPost, fmt.Sprintf("/api/gyms/%d/members", tn.gymID),
		tn.gymOwner.Token, map[string]interface{}{"user_id": tn.gymEmployee.ID})
	require.Equal(e.t, http.StatusCreated, status, "add gym member: %v", resp)

	return tn
}

func (e *e2eEnv) reportFault(tn e2eTenant) uint {
	e.t.Helper()

	status, resp := e.request(http.MethodPost, "/api/tickets", tn.gymEmployee.Token, map[string]interface{}{
		"qr_code":     tn.qrCode,
		"description": "Belt slips under load",
		"priority":    "high",
	})
	require.Equal(e.t, http.StatusCreated, status, "report fault: %v", resp)
	require.Equal(e.t, "open", resp["status"])
	return uint(resp["id"].(float64))
}

func TestGymFixFlowOverHTTP(t *testing.T) {
	e := newE2EEnv(t)
	tn := e.setupTenant("fix")

	status, resp := e.request(http.MethodGet, "/api/equipment/scan/"+tn.qrCode, tn.gymEmployee.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Treadmill T-900", resp["name"])

	ticketID := e.reportFault(tn)
	ticketPath := fmt.Sprintf("/api/tickets/%d", ticketID)

	// No token, no ticket
	status, _ = e.request(http.MethodGet, ticketPath, "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	// Factory staff cannot drive the gym-side edge
	status, _ = e.request(http.MethodPost, ticketPath+"/transition", tn.factoryOwner.Token,
		map[string]string{"status": "gym_fix_in_progress"})
	assert.Equal(t, http.StatusForbidden, status)

	status, resp = e.request(http.MethodPost, ticketPath+"/transition", tn.gymOwner.Token,
		map[string]string{"status": "gym_fix_in_progress"})
	require.Equal(t, http.StatusOK, status, "start gym fix: %v", resp)
	assert.Equal(t, "gym_fix_in_progress", resp["status"])

	status, resp = e.request(http.MethodPost, ticketPath+"/transition", tn.gymOwner.Token,
		map[string]string{"status": "resolved", "notes": "Re-tensioned the belt"})
	require.Equal(t, http.StatusOK, status, "resolve: %v", resp)
	assert.Equal(t, "resolved", resp["status"])

	// First confirmation leaves the ticket resolved
	status, resp = e.request(http.MethodPost, ticketPath+"/confirmations", tn.gymOwner.Token,
		map[string]string{"notes": "Runs clean", "photo_url": "/media/photos/ticket-confirmations/a.jpg"})
	require.Equal(t, http.StatusOK, status, "gym confirmation: %v", resp)
	assert.Equal(t, false, resp["closed"])

	// Same side twice is a conflict
	status, _ = e.request(http.MethodPost, ticketPath+"/confirmations", tn.gymEmployee.Token,
		map[string]string{"notes": "Also confirming", "photo_url": "/media/photos/ticket-confirmations/b.jpg"})
	assert.Equal(t, http.StatusConflict, status)

	// Second side closes
	status, resp = e.request(http.MethodPost, ticketPath+"/confirmations", tn.factoryOwner.Token,
		map[string]string{"notes": "Verified remotely", "photo_url": "/media/photos/ticket-confirmations/c.jpg"})
	require.Equal(t, http.StatusOK, status, "factory confirmation: %v", resp)
	assert.Equal(t, true, resp["closed"])
	ticket := resp["ticket"].(map[string]interface{})
	assert.Equal(t, "closed", ticket["status"])

	status, events := e.requestList(http.MethodGet, ticketPath+"/events", tn.gymEmployee.Token)
	require.Equal(t, http.StatusOK, status)
	assert.GreaterOrEqual(t, len(events), 5)

	// Closed is terminal
	status, _ = e.request(http.MethodPost, ticketPath+"/transition", tn.gymOwner.Token,
		map[string]string{"status": "gym_fix_in_progress"})
	assert.Equal(t, http.StatusConflict, status)

	// The factory side accumulated notifications along the way
	status, resp = e.request(http.MethodGet, "/api/notifications/unread-count", tn.factoryOwner.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Greater(t, resp["count"].(float64), float64(0))
}

func TestMemberAddByEmailOverHTTP(t *testing.T) {
	e := newE2EEnv(t)
	tn := e.setupTenant("mbr")
	hire := e.signup("mbr_hire")

	path := fmt.Sprintf("/api/gyms/%d/members", tn.gymID)
	status, resp := e.request(http.MethodPost, path, tn.gymOwner.Token,
		map[string]string{"email": "mbr_hire@example.com", "role": "employee"})
	require.Equal(t, http.StatusCreated, status, "add by email: %v", resp)
	assert.Equal(t, float64(hire.ID), resp["user_id"])
	assert.NotNil(t, resp["approved_at"])

	status, _ = e.request(http.MethodPost, path, tn.gymOwner.Token,
		map[string]string{"email": "mbr_hire@example.com", "role": "employee"})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = e.request(http.MethodPost, path, tn.gymOwner.Token,
		map[string]string{"email": "ghost@example.com", "role": "employee"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = e.request(http.MethodPost, path, tn.gymOwner.Token,
		map[string]string{"role": "employee"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, roster := e.requestList(http.MethodGet, path, tn.gymOwner.Token)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, roster)
	for _, row := range roster {
		member := row.(map[string]interface{})
		assert.Equal(t, false, member["online"], "nobody holds a websocket in this test")
	}

	// Repeating a search over an unchanged roster yields identical results
	status, first := e.requestList(http.MethodGet, "/api/users/search?q=mbr_", tn.gymOwner.Token)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, first)
	status, second := e.requestList(http.MethodGet, "/api/users/search?q=mbr_", tn.gymOwner.Token)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, first, second)
}

func TestTicketListPaginationOverHTTP(t *testing.T) {
	e := newE2EEnv(t)
	tn := e.setupTenant("page")

	for i := 0; i < 3; i++ {
		e.reportFault(tn)
	}

	listPath := fmt.Sprintf("/api/gyms/%d/tickets?page=1&limit=2", tn.gymID)
	status, resp := e.request(http.MethodGet, listPath, tn.gymOwner.Token, nil)
	require.Equal(t, http.StatusOK, status, "list page 1: %v", resp)
	assert.Equal(t, float64(3), resp["total"])
	assert.Equal(t, float64(1), resp["page"])
	assert.Equal(t, float64(2), resp["limit"])
	assert.Len(t, resp["items"], 2)
	assert.Equal(t, true, resp["has_more"])

	listPath = fmt.Sprintf("/api/gyms/%d/tickets?page=2&limit=2", tn.gymID)
	status, resp = e.request(http.MethodGet, listPath, tn.gymOwner.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, resp["items"], 1)
	assert.Equal(t, false, resp["has_more"])

	// Membership on either side of the tenancy surfaces the gym
	status, gyms := e.requestList(http.MethodGet, "/api/gyms/", tn.gymOwner.Token)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, gyms, 1)
	assert.Equal(t, float64(tn.gymID), gyms[0].(map[string]interface{})["id"])

	status, gyms = e.requestList(http.MethodGet, "/api/gyms/", tn.factoryOwner.Token)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, gyms, 1)
}

func TestVisitFlowOverHTTP(t *testing.T) {
	e := newE2EEnv(t)
	tn := e.setupTenant("visit")

	ticketID := e.reportFault(tn)
	ticketPath := fmt.Sprintf("/api/tickets/%d", ticketID)

	// Gym employees cannot request a visit
	status, _ := e.request(http.MethodPost, ticketPath+"/visit", tn.gymEmployee.Token, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, resp := e.request(http.MethodPost, ticketPath+"/visit", tn.gymOwner.Token, nil)
	require.Equal(t, http.StatusCreated, status, "request visit: %v", resp)
	assert.Equal(t, "pending", resp["outcome"])

	status, resp = e.request(http.MethodGet, ticketPath, tn.gymOwner.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "factory_visit_requested", resp["status"])

	// Rejection without a reason is invalid
	status, _ = e.request(http.MethodPost, ticketPath+"/visit/reject", tn.factoryOwner.Token,
		map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, resp = e.request(http.MethodPost, ticketPath+"/visit/reject", tn.factoryOwner.Token,
		map[string]string{"reason": "out of warranty"})
	require.Equal(t, http.StatusOK, status, "reject visit: %v", resp)
	assert.Equal(t, "rejected", resp["outcome"])
	assert.Equal(t, "out of warranty", resp["rejection_reason"])

	status, resp = e.request(http.MethodGet, ticketPath, tn.gymOwner.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "rejected", resp["status"])

	// Rejected is terminal
	status, _ = e.request(http.MethodPost, ticketPath+"/transition", tn.gymOwner.Token,
		map[string]string{"status": "gym_fix_in_progress"})
	assert.Equal(t, http.StatusConflict, status)
}

func TestApprovedVisitFlowOverHTTP(t *testing.T) {
	e := newE2EEnv(t)
	tn := e.setupTenant("appr")

	ticketID := e.reportFault(tn)
	ticketPath := fmt.Sprintf("/api/tickets/%d", ticketID)

	status, resp := e.request(http.MethodPost, ticketPath+"/visit", tn.factoryOwner.Token, nil)
	require.Equal(t, http.StatusCreated, status, "factory side may request too: %v", resp)

	status, resp = e.request(http.MethodPost, ticketPath+"/visit/approve", tn.factoryOwner.Token, nil)
	require.Equal(t, http.StatusOK, status, "approve visit: %v", resp)
	assert.Equal(t, "approved", resp["outcome"])

	status, resp = e.request(http.MethodGet, ticketPath+"/visit", tn.gymOwner.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "approved", resp["outcome"])

	// After the visit the factory resolves on site
	status, resp = e.request(http.MethodPost, ticketPath+"/transition", tn.factoryOwner.Token,
		map[string]string{"status": "resolved", "notes": "Replaced drive belt on site"})
	require.Equal(t, http.StatusOK, status, "resolve after visit: %v", resp)
	assert.Equal(t, "resolved", resp["status"])
}

func TestPhotoUploadOverHTTP(t *testing.T) {
	e := newE2EEnv(t)
	user := e.signup("photo_user")

	var imgBuf bytes.Buffer
	require.NoError(t, png.Encode(&imgBuf, image.NewRGBA(image.Rect(0, 0, 4, 4))))

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("photo", "evidence.png")
	require.NoError(t, err)
	_, err = part.Write(imgBuf.Bytes())
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("kind", "fault-reports"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/photos", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+user.Token)

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var uploaded struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&uploaded))
	require.NotEmpty(t, uploaded.URL)

	// Evidence is publicly fetchable by its content-addressed URL
	getReq := httptest.NewRequest(http.MethodGet, uploaded.URL, nil)
	getResp, err := e.app.Test(getReq, -1)
	require.NoError(t, err)
	defer func() { _ = getResp.Body.Close() }()
	assert.Equal(t, http.StatusOK, getResp.StatusCode)
}

func TestAuthRefreshAndHealth(t *testing.T) {
	e := newE2EEnv(t)
	user := e.signup("refresh_user")

	status, resp := e.request(http.MethodPost, "/api/auth/refresh", user.Token, nil)
	require.Equal(t, http.StatusOK, status, "refresh: %v", resp)
	assert.NotEmpty(t, resp["token"])

	status, resp = e.request(http.MethodGet, "/health/live", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "up", resp["status"])

	// Not ready without Redis, but the database check itself passes
	status, resp = e.request(http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, status)
	checks := resp["checks"].(map[string]interface{})
	assert.Equal(t, "healthy", checks["database"])
	assert.Equal(t, "unavailable", checks["redis"])
}

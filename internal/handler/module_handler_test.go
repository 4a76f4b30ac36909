package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/seevam/pathwaybuilder-sub002/internal/db"
)

func seedCurriculum(t *testing.T) []db.Module {
	t.Helper()
	if err := db.SeedDiscoveryCurriculum(db.DB); err != nil {
		t.Fatalf("failed to seed curriculum: %v", err)
	}
	var modules []db.Module
	if err := db.DB.Preload("Activities").Order("order_index ASC").Find(&modules).Error; err != nil {
		t.Fatalf("failed to load modules: %v", err)
	}
	return modules
}

func TestListModulesRequiresAuth(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/modules", nil)

	api.ListModules(c)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
}

func TestListModulesLockState(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	user := seedTestUser(t, 100)
	seedCurriculum(t)

	w := httptest.NewRecorder()
	c := authedContext(w, user.ID)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/modules", nil)

	api.ListModules(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	modules, ok := body["modules"].([]any)
	if !ok || len(modules) != 2 {
		t.Fatalf("expected 2 modules, got %v", body["modules"])
	}

	first := modules[0].(map[string]any)
	second := modules[1].(map[string]any)
	if first["unlocked"] != true {
		t.Fatal("expected first module unlocked")
	}
	if second["unlocked"] != false {
		t.Fatal("expected second module locked")
	}

	deliverable := first["deliverable"].(map[string]any)
	if deliverable["unlocked"] != false {
		t.Fatal("expected deliverable locked before completing activities")
	}
}

func TestCompleteActivityFlow(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	user := seedTestUser(t, 100)
	modules := seedCurriculum(t)
	activities := modules[0].Activities

	var lastBody map[string]any
	for _, activity := range activities {
		w := httptest.NewRecorder()
		c := authedContext(w, user.ID)
		c.Request = httptest.NewRequest(http.MethodPost,
			"/api/activities/"+strconv.Itoa(int(activity.ID))+"/complete",
			bytes.NewReader([]byte(`{"data":"{\"answer\":\"ok\"}"}`)))
		c.Request.Header.Set("Content-Type", "application/json")
		c.Params = gin.Params{gin.Param{Key: "id", Value: strconv.Itoa(int(activity.ID))}}

		api.CompleteActivity(c)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		lastBody = decodeBody(t, w)
	}

	if lastBody["module_progress"].(float64) != 100 {
		t.Fatalf("expected final progress 100, got %v", lastBody["module_progress"])
	}
	if lastBody["deliverable_unlocked"] != true {
		t.Fatal("expected deliverable unlocked after completing all activities")
	}
	if _, ok := lastBody["xp_award"]; !ok {
		t.Fatal("expected xp award on first completion")
	}
}

func TestCompleteActivityLockedModule(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	user := seedTestUser(t, 100)
	modules := seedCurriculum(t)
	lockedActivity := modules[1].Activities[0]

	w := httptest.NewRecorder()
	c := authedContext(w, user.ID)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/activities/1/complete", nil)
	c.Params = gin.Params{gin.Param{Key: "id", Value: strconv.Itoa(int(lockedActivity.ID))}}

	api.CompleteActivity(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for locked module, got %d", w.Code)
	}
}

func TestGetActivityCompletionNotFound(t *testing.T) {
	api, cleanup := setupTestDB(t)
	defer cleanup()

	user := seedTestUser(t, 100)
	modules := seedCurriculum(t)

	w := httptest.NewRecorder()
	c := authedContext(w, user.ID)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/activities/1/completion", nil)
	c.Params = gin.Params{gin.Param{Key: "id", Value: strconv.Itoa(int(modules[0].Activities[0].ID))}}

	api.GetActivityCompletion(c)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

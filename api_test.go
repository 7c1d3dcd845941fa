package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"loomio/database"
	"loomio/models"
	"loomio/routes"
	"loomio/utils"
)

type testEnv struct {
	db     *gorm.DB
	router http.Handler

	alice models.User // community admin after creating her community
	bob   models.User // plain member
	carol models.User // plain member
	root  models.User // platform admin

	community models.Community
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	setenvDefault("DB_NAME", "loomio_test")
	setenvDefault("JWT_SECRET", "test-secret")
	setenvDefault("ENV", "test")
	setenvDefault("DB_CONNECT_RETRIES", "1")

	db, err := database.Connect()
	if err != nil {
		t.Skipf("mysql not available: %v", err)
	}

	_ = db.Migrator().DropTable(
		&models.TaskAssignment{}, &models.Task{}, &models.Event{},
		&models.Notification{}, &models.Membership{}, &models.Community{},
		&models.RefreshToken{}, &models.Setting{}, &models.User{},
	)
	_ = db.Migrator().DropTable("revoked_tokens")
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	env := &testEnv{db: db, router: routes.InitRouter()}

	env.alice = seedUser(t, db, "Alice Admin", "alice@example.com", models.RoleMember)
	env.bob = seedUser(t, db, "Bob Member", "bob@example.com", models.RoleMember)
	env.carol = seedUser(t, db, "Carol Member", "carol@example.com", models.RoleMember)
	env.root = seedUser(t, db, "Root Admin", "root@example.com", models.RolePlatformAdmin)

	// Alice runs the community, Bob and Carol are members.
	env.community = models.Community{Name: "Garden Club", CommunityCode: "GARDEN42", CreatorID: env.alice.ID}
	if err := db.Create(&env.community).Error; err != nil {
		t.Fatalf("seed community: %v", err)
	}
	memberships := []models.Membership{
		{UserID: env.alice.ID, CommunityID: env.community.ID, Role: models.MembershipRoleAdmin},
		{UserID: env.bob.ID, CommunityID: env.community.ID, Role: models.MembershipRoleMember},
		{UserID: env.carol.ID, CommunityID: env.community.ID, Role: models.MembershipRoleMember},
	}
	for i := range memberships {
		if err := db.Create(&memberships[i]).Error; err != nil {
			t.Fatalf("seed membership: %v", err)
		}
	}

	return env
}

func setenvDefault(key, val string) {
	if os.Getenv(key) == "" {
		_ = os.Setenv(key, val)
	}
}

func seedUser(t *testing.T, db *gorm.DB, name, email, role string) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-pass-1"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := models.User{FullName: name, Email: email, Password: string(hash), Role: role, Status: "Active"}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return u
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func authFor(t *testing.T, u models.User) map[string]string {
	t.Helper()
	tok, err := utils.GenerateAccessToken(u.ID, u.Role)
	if err != nil {
		t.Fatalf("generate access token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + tok}
}

func createTask(t *testing.T, env *testEnv, body map[string]any) models.Task {
	t.Helper()
	if _, ok := body["community_id"]; !ok {
		body["community_id"] = env.community.ID
	}
	w := doRequest(t, env.router, http.MethodPost, "/v1/tasks", body, authFor(t, env.alice))
	if w.Code != http.StatusCreated {
		t.Fatalf("create task status=%d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Data models.Task `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal created task: %v", err)
	}
	return resp.Data
}

func userPoints(t *testing.T, db *gorm.DB, id uint) uint {
	t.Helper()
	var u models.User
	if err := db.First(&u, id).Error; err != nil {
		t.Fatalf("load user %d: %v", id, err)
	}
	return u.Points
}

func taskPath(taskID uint, suffix string) string {
	return fmt.Sprintf("/v1/tasks/%d%s", taskID, suffix)
}

func TestAuth_RegisterAndLogin(t *testing.T) {
	env := setupTestEnv(t)

	reg := map[string]any{
		"full_name":             "Dana New",
		"email":                 "dana@example.com",
		"password":              "secret-pass-1",
		"password_confirmation": "secret-pass-1",
	}
	w := doRequest(t, env.router, http.MethodPost, "/v1/register", reg, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("register status=%d body=%s", w.Code, w.Body.String())
	}

	login := map[string]any{"email": "dana@example.com", "password": "secret-pass-1"}
	w = doRequest(t, env.router, http.MethodPost, "/v1/login", login, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal login resp: %v", err)
	}
	if resp.Data.AccessToken == "" || resp.Data.RefreshToken == "" {
		t.Fatalf("expected tokens in login response: %s", w.Body.String())
	}

	// the access token works against a protected endpoint
	w = doRequest(t, env.router, http.MethodGet, "/v1/users/info", nil,
		map[string]string{"Authorization": "Bearer " + resp.Data.AccessToken})
	if w.Code != http.StatusOK {
		t.Fatalf("GET /v1/users/info status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestWorkflow_HappyPathAwardsPoints(t *testing.T) {
	env := setupTestEnv(t)

	task := createTask(t, env, map[string]any{
		"title":     "Water the seedlings",
		"task_type": "individual",
		"points":    10,
	})
	bobAuth := authFor(t, env.bob)
	aliceAuth := authFor(t, env.alice)

	w := doRequest(t, env.router, http.MethodPost, taskPath(task.ID, "/self-assign"), nil, bobAuth)
	if w.Code != http.StatusCreated {
		t.Fatalf("self-assign status=%d body=%s", w.Code, w.Body.String())
	}

	for _, status := range []string{"accepted", "in_progress"} {
		w = doRequest(t, env.router, http.MethodPut, taskPath(task.ID, "/status"),
			map[string]any{"status": status}, bobAuth)
		if w.Code != http.StatusOK {
			t.Fatalf("status -> %s: status=%d body=%s", status, w.Code, w.Body.String())
		}
	}

	w = doRequest(t, env.router, http.MethodPost, taskPath(task.ID, "/submit"),
		map[string]any{"submission_link": "https://example.com/proof"}, bobAuth)
	if w.Code != http.StatusOK {
		t.Fatalf("submit status=%d body=%s", w.Code, w.Body.String())
	}

	before := userPoints(t, env.db, env.bob.ID)
	w = doRequest(t, env.router, http.MethodPost, taskPath(task.ID, "/review"),
		map[string]any{"action": "approve"}, aliceAuth)
	if w.Code != http.StatusOK {
		t.Fatalf("review status=%d body=%s", w.Code, w.Body.String())
	}
	if got := userPoints(t, env.db, env.bob.ID); got != before+task.Points {
		t.Fatalf("expected %d points, got %d", before+task.Points, got)
	}

	var reloaded models.Task
	if err := env.db.First(&reloaded, task.ID).Error; err != nil {
		t.Fatalf("reload task: %v", err)
	}
	if reloaded.Status != models.TaskStatusCompleted {
		t.Fatalf("expected task completed, got %s", reloaded.Status)
	}
}

func TestWorkflow_DoubleApproveAwardsOnce(t *testing.T) {
	env := setupTestEnv(t)

	task := createTask(t, env, map[string]any{"title": "Fix the fence", "task_type": "individual"})
	bobAuth := authFor(t, env.bob)
	aliceAuth := authFor(t, env.alice)

	doRequest(t, env.router, http.MethodPost, taskPath(task.ID, "/self-assign"), nil, bobAuth)
	doRequest(t, env.router, http.MethodPut, taskPath(task.ID, "/status"), map[string]any{"status": "accepted"}, bobAuth)
	doRequest(t, env.router, http.MethodPost, taskPath(task.ID, "/submit"),
		map[string]any{"submission_link": "https://example.com/fence"}, bobAuth)

	w := doRequest(t, env.router, http.MethodPost, taskPath(task.ID, "/review"),
		map[string]any{"action": "approve"}, aliceAuth)
	if w.Code != http.StatusOK {
		t.Fatalf("first approve status=%d body=%s", w.Code, w.Body.String())
	}
	after := userPoints(t, env.db, env.bob.ID)

	// a second approval of the same completed assignment must be rejected and
	// must not touch the balance
	w = doRequest(t, env.router, http.MethodPost, taskPath(task.ID, "/review"),
		map[string]any{"action": "approve"}, aliceAuth)
	if w.Code != http.StatusConflict {
		t.Fatalf("second approve expected 409, got %d body=%s", w.Code, w.Body.String())
	}
	if got := userPoints(t, env.db, env.bob.ID); got != after {
		t.Fatalf("points changed on double approve: %d -> %d", after, got)
	}
}

func TestWorkflow_RejectAllowsResubmission(t *testing.T) {
	env := setupTestEnv(t)

	task := createTask(t, env, map[string]any{"title": "Paint the shed", "task_type": "individual"})
	bobAuth := authFor(t, env.bob)
	aliceAuth := authFor(t, env.alice)

	doRequest(t, env.router, http.MethodPost, taskPath(task.ID, "/self-assign"), nil, bobAuth)
	doRequest(t, env.router, http.MethodPut, taskPath(task.ID, "/status"), map[string]any{"status": "accepted"}, bobAuth)
	doRequest(t, env.router, http.MethodPost, taskPath(task.ID, "/submit"),
		map[string]any{"submission_link": "https://example.com/v1"}, bobAuth)

	w := doRequest(t, env.router, http.MethodPost, taskPath(task.ID, "/review"),
		map[string]any{"action": "reject", "review_notes": "wrong color"}, aliceAuth)
	if w.Code != http.StatusOK {
		t.Fatalf("reject status=%d body=%s", w.Code, w.Body.String())
	}
	if got := userPoints(t, env.db, env.bob.ID); got != 0 {
		t.Fatalf("reject must not award points, got %d", got)
	}

	// back in in_progress, a corrected submission can go through
	w = doRequest(t, env.router, http.MethodPost, taskPath(task.ID, "/submit"),
		map[string]any{"submission_link": "https://example.com/v2"}, bobAuth)
	if w.Code != http.StatusOK {
		t.Fatalf("resubmit status=%d body=%s", w.Code, w.Body.String())
	}
	w = doRequest(t, env.router, http.MethodPost, taskPath(task.ID, "/review"),
		map[string]any{"action": "approve"}, aliceAuth)
	if w.Code != http.StatusOK {
		t.Fatalf("approve after reject status=%d body=%s", w.Code, w.Body.String())
	}
	if got := userPoints(t, env.db, env.bob.ID); got != task.Points {
		t.Fatalf("expected %d points after approval, got %d", task.Points, got)
	}
}

func TestWorkflow_DeadlineBlocksSubmission(t *testing.T) {
	env := setupTestEnv(t)

	past := time.Now().Add(-time.Hour).Format(time.RFC3339)
	task := createTask(t, env, map[string]any{
		"title":     "Weed the beds",
		"task_type": "individual",
		"deadline":  past,
	})
	bobAuth := authFor(t, env.bob)

	doRequest(t, env.router, http.MethodPost, taskPath(task.ID, "/self-assign"), nil, bobAuth)
	doRequest(t, env.router, http.MethodPut, taskPath(task.ID, "/status"), map[string]any{"status": "accepted"}, bobAuth)

	w := doRequest(t, env.router, http.MethodPost, taskPath(task.ID, "/submit"),
		map[string]any{"submission_link": "https://example.com/late"}, bobAuth)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("late submit expected 400, got %d body=%s", w.Code, w.Body.String())
	}

	// the assignment state must be untouched
	var a models.TaskAssignment
	if err := env.db.Where("task_id = ? AND user_id = ?", task.ID, env.bob.ID).First(&a).Error; err != nil {
		t.Fatalf("load assignment: %v", err)
	}
	if a.Status != models.AssignmentStatusAccepted || a.SubmissionLink != nil {
		t.Fatalf("late submit mutated assignment: status=%s", a.Status)
	}
}

func TestWorkflow_CapacityEnforced(t *testing.T) {
	env := setupTestEnv(t)

	task := createTask(t, env, map[string]any{"title": "Solo errand", "task_type": "individual"})
	bobAuth := authFor(t, env.bob)
	carolAuth := authFor(t, env.carol)

	w := doRequest(t, env.router, http.MethodPost, taskPath(task.ID, "/self-assign"), nil, bobAuth)
	if w.Code != http.StatusCreated {
		t.Fatalf("first self-assign status=%d body=%s", w.Code, w.Body.String())
	}

	w = doRequest(t, env.router, http.MethodPost, taskPath(task.ID, "/self-assign"), nil, carolAuth)
	if w.Code != http.StatusConflict {
		t.Fatalf("over-capacity self-assign expected 409, got %d body=%s", w.Code, w.Body.String())
	}

	// re-assigning yourself is also a conflict
	w = doRequest(t, env.router, http.MethodPost, taskPath(task.ID, "/self-assign"), nil, bobAuth)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate self-assign expected 409, got %d body=%s", w.Code, w.Body.String())
	}

	// a revoked slot opens up for the next member
	w = doRequest(t, env.router, http.MethodDelete, taskPath(task.ID, "/revoke"), nil, bobAuth)
	if w.Code != http.StatusOK {
		t.Fatalf("revoke status=%d body=%s", w.Code, w.Body.String())
	}
	w = doRequest(t, env.router, http.MethodPost, taskPath(task.ID, "/self-assign"), nil, carolAuth)
	if w.Code != http.StatusCreated {
		t.Fatalf("self-assign after revoke status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestWorkflow_GroupAssignAndPerUserReview(t *testing.T) {
	env := setupTestEnv(t)

	task := createTask(t, env, map[string]any{
		"title":         "Build raised beds",
		"task_type":     "group",
		"max_assignees": 2,
	})
	aliceAuth := authFor(t, env.alice)
	bobAuth := authFor(t, env.bob)
	carolAuth := authFor(t, env.carol)

	w := doRequest(t, env.router, http.MethodPost, taskPath(task.ID, "/assign-users"),
		map[string]any{"user_ids": []uint{env.bob.ID, env.carol.ID}}, aliceAuth)
	if w.Code != http.StatusOK {
		t.Fatalf("assign-users status=%d body=%s", w.Code, w.Body.String())
	}

	// members cannot assign
	w = doRequest(t, env.router, http.MethodPost, taskPath(task.ID, "/assign-users"),
		map[string]any{"user_ids": []uint{env.bob.ID}}, bobAuth)
	if w.Code != http.StatusForbidden {
		t.Fatalf("member assign-users expected 403, got %d body=%s", w.Code, w.Body.String())
	}

	for _, auth := range []map[string]string{bobAuth, carolAuth} {
		doRequest(t, env.router, http.MethodPut, taskPath(task.ID, "/status"), map[string]any{"status": "accepted"}, auth)
		w = doRequest(t, env.router, http.MethodPost, taskPath(task.ID, "/submit"),
			map[string]any{"submission_link": "https://example.com/beds"}, auth)
		if w.Code != http.StatusOK {
			t.Fatalf("group submit status=%d body=%s", w.Code, w.Body.String())
		}
	}

	// approve only Bob's submission
	w = doRequest(t, env.router, http.MethodPost,
		taskPath(task.ID, fmt.Sprintf("/review/%d", env.bob.ID)),
		map[string]any{"action": "approve"}, aliceAuth)
	if w.Code != http.StatusOK {
		t.Fatalf("per-user review status=%d body=%s", w.Code, w.Body.String())
	}
	if got := userPoints(t, env.db, env.bob.ID); got != task.Points {
		t.Fatalf("bob expected %d points, got %d", task.Points, got)
	}
	if got := userPoints(t, env.db, env.carol.ID); got != 0 {
		t.Fatalf("carol must not have points yet, got %d", got)
	}

	// task stays open while Carol's submission is pending
	var reloaded models.Task
	if err := env.db.First(&reloaded, task.ID).Error; err != nil {
		t.Fatalf("reload task: %v", err)
	}
	if reloaded.Status != models.TaskStatusOpen {
		t.Fatalf("task closed early: %s", reloaded.Status)
	}
}

func TestWorkflow_RevokeForbiddenAfterSubmit(t *testing.T) {
	env := setupTestEnv(t)

	task := createTask(t, env, map[string]any{"title": "Compost run", "task_type": "individual"})
	bobAuth := authFor(t, env.bob)

	doRequest(t, env.router, http.MethodPost, taskPath(task.ID, "/self-assign"), nil, bobAuth)
	doRequest(t, env.router, http.MethodPut, taskPath(task.ID, "/status"), map[string]any{"status": "accepted"}, bobAuth)
	doRequest(t, env.router, http.MethodPost, taskPath(task.ID, "/submit"),
		map[string]any{"submission_link": "https://example.com/compost"}, bobAuth)

	w := doRequest(t, env.router, http.MethodDelete, taskPath(task.ID, "/revoke"), nil, bobAuth)
	if w.Code != http.StatusConflict {
		t.Fatalf("revoke after submit expected 409, got %d body=%s", w.Code, w.Body.String())
	}
}

func TestTask_DeleteCascadesAssignments(t *testing.T) {
	env := setupTestEnv(t)

	task := createTask(t, env, map[string]any{"title": "Old chore", "task_type": "individual"})
	bobAuth := authFor(t, env.bob)
	aliceAuth := authFor(t, env.alice)

	doRequest(t, env.router, http.MethodPost, taskPath(task.ID, "/self-assign"), nil, bobAuth)

	// plain members cannot delete
	w := doRequest(t, env.router, http.MethodDelete, taskPath(task.ID, "/delete"), nil, bobAuth)
	if w.Code != http.StatusForbidden {
		t.Fatalf("member delete expected 403, got %d body=%s", w.Code, w.Body.String())
	}

	w = doRequest(t, env.router, http.MethodDelete, taskPath(task.ID, "/delete"), nil, aliceAuth)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status=%d body=%s", w.Code, w.Body.String())
	}

	var taskCount, assignmentCount int64
	env.db.Model(&models.Task{}).Where("id = ?", task.ID).Count(&taskCount)
	env.db.Model(&models.TaskAssignment{}).Where("task_id = ?", task.ID).Count(&assignmentCount)
	if taskCount != 0 || assignmentCount != 0 {
		t.Fatalf("expected task and assignments gone, got %d tasks %d assignments", taskCount, assignmentCount)
	}
}

func TestCommunity_CreateJoinLeave(t *testing.T) {
	env := setupTestEnv(t)

	danaAuth := authFor(t, seedUser(t, env.db, "Dana Founder", "dana.f@example.com", models.RoleMember))
	erinAuth := authFor(t, seedUser(t, env.db, "Erin Joiner", "erin@example.com", models.RoleMember))

	w := doRequest(t, env.router, http.MethodPost, "/v1/communities",
		map[string]any{"name": "Book Circle", "description": "weekly reads"}, danaAuth)
	if w.Code != http.StatusCreated {
		t.Fatalf("create community status=%d body=%s", w.Code, w.Body.String())
	}
	var created struct {
		Data models.Community `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal community: %v", err)
	}
	if len(created.Data.CommunityCode) != 8 {
		t.Fatalf("expected 8-char join code, got %q", created.Data.CommunityCode)
	}

	w = doRequest(t, env.router, http.MethodPost, "/v1/communities/join",
		map[string]any{"community_code": created.Data.CommunityCode}, erinAuth)
	if w.Code != http.StatusOK {
		t.Fatalf("join status=%d body=%s", w.Code, w.Body.String())
	}

	// joining twice is a conflict
	w = doRequest(t, env.router, http.MethodPost, "/v1/communities/join",
		map[string]any{"community_code": created.Data.CommunityCode}, erinAuth)
	if w.Code != http.StatusConflict {
		t.Fatalf("double join expected 409, got %d body=%s", w.Code, w.Body.String())
	}

	// the sole admin cannot walk away
	w = doRequest(t, env.router, http.MethodDelete,
		fmt.Sprintf("/v1/communities/%d/leave", created.Data.ID), nil, danaAuth)
	if w.Code != http.StatusConflict {
		t.Fatalf("sole-admin leave expected 409, got %d body=%s", w.Code, w.Body.String())
	}

	w = doRequest(t, env.router, http.MethodDelete,
		fmt.Sprintf("/v1/communities/%d/leave", created.Data.ID), nil, erinAuth)
	if w.Code != http.StatusOK {
		t.Fatalf("member leave status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestAdmin_RoutesRequirePlatformAdmin(t *testing.T) {
	env := setupTestEnv(t)

	w := doRequest(t, env.router, http.MethodGet, "/v1/admin/dashboard", nil, authFor(t, env.bob))
	if w.Code != http.StatusForbidden {
		t.Fatalf("member on admin route expected 403, got %d body=%s", w.Code, w.Body.String())
	}

	w = doRequest(t, env.router, http.MethodGet, "/v1/admin/dashboard", nil, authFor(t, env.root))
	if w.Code != http.StatusOK {
		t.Fatalf("admin dashboard status=%d body=%s", w.Code, w.Body.String())
	}

	w = doRequest(t, env.router, http.MethodGet, "/v1/admin/users", nil, authFor(t, env.root))
	if w.Code != http.StatusOK {
		t.Fatalf("admin users status=%d body=%s", w.Code, w.Body.String())
	}
}

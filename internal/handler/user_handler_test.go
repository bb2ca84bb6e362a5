package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/geoprofile/internal/model"
	"github.com/suteetoe/geoprofile/internal/password"
	"github.com/suteetoe/geoprofile/internal/repository"
)

func signupBody(email, pw string) string {
	return `{
		"email": "` + email + `",
		"password": "` + pw + `",
		"first_name": "Sita",
		"last_name": "Rai",
		"country": "Nepal",
		"phone_number": 9,
		"date_of_birth": "1995-04-12",
		"home_address": {"type": "Point", "coordinates": [85.3, 27.7]},
		"office_address": {"type": "Point", "coordinates": [85.32, 27.71]}
	}`
}

func TestSignupStoresHashedPassword(t *testing.T) {
	env := newEnv(t)

	rec := env.do(http.MethodPost, "/api/user/signup/", signupBody("sita@Example.COM", testPassword), "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "sita@example.com", body["email"])
	assert.NotContains(t, body, "password")
	assert.NotContains(t, body, "is_superuser")

	stored, err := env.users.GetByEmail(context.Background(), "sita@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, testPassword, stored.Password)
	assert.True(t, password.Check(stored.Password, testPassword))
	assert.True(t, stored.IsActive)
	assert.False(t, stored.IsSuperuser)
}

func TestSignupWithoutAddresses(t *testing.T) {
	env := newEnv(t)

	body := `{"email":"a@x.com","password":"Str0ng!Pass","first_name":"A","last_name":"B",
		"country":"Nepal","phone_number":12,"date_of_birth":"1990-01-01"}`
	rec := env.do(http.MethodPost, "/api/user/signup/", body, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	stored, err := env.users.GetByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.True(t, password.Check(stored.Password, "Str0ng!Pass"))
	assert.Equal(t, model.GeoPoint{}, stored.HomeAddress)

	body = `{"email":"b@x.com","password":"Str0ng!Pass","country":"Nepal",
		"phone_number":123,"date_of_birth":"1990-01-01"}`
	rec = env.do(http.MethodPost, "/api/user/signup/", body, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "phone_number")
}

func TestSignupRejectsWeakPassword(t *testing.T) {
	env := newEnv(t)

	rec := env.do(http.MethodPost, "/api/signup/", signupBody("sita@example.com", "asdf"), "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["password"])

	_, err := env.users.GetByEmail(context.Background(), "sita@example.com")
	assert.Error(t, err)
}

func TestSignupRejectsOverlongPassword(t *testing.T) {
	env := newEnv(t)

	pw := "Xq7!" + strings.Repeat("kz9Lm#Vb2", 9)
	rec := env.do(http.MethodPost, "/api/user/signup/", signupBody("sita@example.com", pw), "")
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	var body map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["password"])

	_, err := env.users.GetByEmail(context.Background(), "sita@example.com")
	assert.Error(t, err)
}

func TestSignupDuplicateEmail(t *testing.T) {
	env := newEnv(t)
	env.seedUser(t, "sita@example.com", nil)

	rec := env.do(http.MethodPost, "/api/user/signup/", signupBody("sita@example.com", testPassword), "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already exists")
}

func TestSignupInvalidCountry(t *testing.T) {
	env := newEnv(t)

	body := `{"email":"a@example.com","password":"` + testPassword + `","country":"Atlantis",
		"phone_number":3,"date_of_birth":"1995-04-12",
		"home_address":{"type":"Point","coordinates":[85.3,27.7]},
		"office_address":{"type":"Point","coordinates":[85.3,27.7]}}`
	rec := env.do(http.MethodPost, "/api/user/signup/", body, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errs map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errs))
	assert.Contains(t, errs, "country")
}

func TestCreateRequiresAddPermission(t *testing.T) {
	env := newEnv(t)
	caller := env.seedUser(t, "caller@example.com", nil)

	rec := env.do(http.MethodPost, "/api/user/create/", signupBody("new@example.com", testPassword), env.token(t, caller))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Body.String())

	env.grant(caller, "authentication.add_user")
	body := `{"email":"new@example.com","password":"` + testPassword + `","country":"Nepal",
		"phone_number":3,"date_of_birth":"1995-04-12","is_staff":true,
		"home_address":{"type":"Point","coordinates":[85.3,27.7]},
		"office_address":{"type":"Point","coordinates":[85.3,27.7]}}`
	rec = env.do(http.MethodPost, "/api/user/create/", body, env.token(t, caller))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created, err := env.users.GetByEmail(context.Background(), "new@example.com")
	require.NoError(t, err)
	assert.True(t, created.IsStaff)
}

func TestCreateUnknownGroupStoresNothing(t *testing.T) {
	env := newEnv(t)
	caller := env.seedUser(t, "caller@example.com", nil)
	env.grant(caller, "authentication.add_user")
	env.users.accessErr = repository.ErrUnknownGroup

	body := `{"email":"new@example.com","password":"` + testPassword + `","country":"Nepal",
		"phone_number":3,"date_of_birth":"1995-04-12","groups":[999]}`
	rec := env.do(http.MethodPost, "/api/user/create/", body, env.token(t, caller))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errs map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errs))
	assert.Equal(t, []string{"Invalid pk - object does not exist."}, errs["groups"])

	_, err := env.users.GetByEmail(context.Background(), "new@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRetrieveViews(t *testing.T) {
	env := newEnv(t)
	owner := env.seedUser(t, "owner@example.com", nil)
	other := env.seedUser(t, "other@example.com", nil)
	admin := env.seedUser(t, "admin@example.com", func(u *model.User) { u.IsAdmin = true })

	rec := env.do(http.MethodGet, "/api/user/1/", "", env.token(t, owner))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"password"`)

	rec = env.do(http.MethodGet, "/api/user/1/", "", env.token(t, other))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Body.String())

	env.grant(admin, "authentication.view_user")
	rec = env.do(http.MethodGet, "/api/user/1/", "", env.token(t, admin))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"password"`)
	assert.Contains(t, rec.Body.String(), `"is_superuser"`)
}

func TestRetrieveMissingAccount(t *testing.T) {
	env := newEnv(t)
	owner := env.seedUser(t, "owner@example.com", nil)

	rec := env.do(http.MethodGet, "/api/user/99/", "", env.token(t, owner))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, MsgNotFound, rec.Body.String())
}

func TestRequiresAuthentication(t *testing.T) {
	env := newEnv(t)
	env.seedUser(t, "owner@example.com", nil)

	rec := env.do(http.MethodGet, "/api/user/1/", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPatchOwnAccount(t *testing.T) {
	env := newEnv(t)
	owner := env.seedUser(t, "owner@example.com", nil)

	rec := env.do(http.MethodPatch, "/api/user/1/", `{"first_name":"Gita","is_superuser":true}`, env.token(t, owner))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err := env.users.GetByID(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gita", stored.FirstName)
	assert.False(t, stored.IsSuperuser)
}

func TestPatchWeakPasswordKeepsCredential(t *testing.T) {
	env := newEnv(t)
	owner := env.seedUser(t, "owner@example.com", nil)
	before := owner.Password

	rec := env.do(http.MethodPatch, "/api/user/1/", `{"password":"asdf"}`, env.token(t, owner))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "password")

	stored, err := env.users.GetByID(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Equal(t, before, stored.Password)
}

func TestPatchUnknownPermissionKeepsAccount(t *testing.T) {
	env := newEnv(t)
	admin := env.seedUser(t, "admin@example.com", func(u *model.User) { u.IsAdmin = true })
	env.users.accessErr = repository.ErrUnknownPermission

	body := `{"first_name":"Gita","password":"Str0ng!Pass","user_permissions":[999]}`
	rec := env.do(http.MethodPatch, "/api/user/1/", body, env.token(t, admin))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "user_permissions")

	stored, err := env.users.GetByID(context.Background(), admin.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", stored.FirstName)
	assert.Equal(t, admin.Password, stored.Password)
}

func TestPatchEmailTaken(t *testing.T) {
	env := newEnv(t)
	owner := env.seedUser(t, "owner@example.com", nil)
	env.seedUser(t, "other@example.com", nil)

	rec := env.do(http.MethodPatch, "/api/user/1/", `{"email":"OTHER@example.com"}`, env.token(t, owner))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPutRequiresEveryField(t *testing.T) {
	env := newEnv(t)
	owner := env.seedUser(t, "owner@example.com", nil)

	rec := env.do(http.MethodPut, "/api/user/1/", `{"first_name":"Gita"}`, env.token(t, owner))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errs map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errs))
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "country")
}

func TestDeleteAccount(t *testing.T) {
	env := newEnv(t)
	owner := env.seedUser(t, "owner@example.com", nil)
	other := env.seedUser(t, "other@example.com", nil)

	rec := env.do(http.MethodDelete, "/api/user/1/", "", env.token(t, other))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Body.String())

	doc := &model.Document{UserID: owner.ID, DocumentType: model.DocumentNID, Path: "documents/id.png"}
	require.NoError(t, env.documents.Create(context.Background(), doc))

	rec = env.do(http.MethodDelete, "/api/user/1/", "", env.token(t, owner))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	exists, err := env.users.Exists(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Contains(t, env.files.deleted, "documents/id.png")
}

func TestFindNearby(t *testing.T) {
	env := newEnv(t)
	env.seedUser(t, "near@example.com", func(u *model.User) {
		u.HomeAddress = model.NewGeoPoint(27.7, 85.3)
	})
	env.seedUser(t, "far@example.com", func(u *model.User) {
		u.HomeAddress = model.NewGeoPoint(27.8, 85.3)
	})

	rec := env.do(http.MethodGet, "/api/user/find/?latitude=27.7&longitude=85.3", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var found []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
	require.Len(t, found, 1)
	assert.Equal(t, "near@example.com", found[0]["email"])
	assert.NotContains(t, found[0], "password")

	rec = env.do(http.MethodGet, "/api/user/find/", `{"latitude":27.8,"longitude":85.3}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
	require.Len(t, found, 1)
	assert.Equal(t, "far@example.com", found[0]["email"])
}

func TestFindRequiresCoordinates(t *testing.T) {
	env := newEnv(t)

	rec := env.do(http.MethodGet, "/api/user/find/?latitude=27.7", "", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errs map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errs))
	assert.Contains(t, errs, "longitude")
}

func TestListPagination(t *testing.T) {
	env := newEnv(t)
	env.seedUser(t, "a@example.com", nil)
	env.seedUser(t, "b@example.com", nil)
	env.seedUser(t, "c@example.com", nil)

	rec := env.do(http.MethodGet, "/api/user/list/?page_size=2", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Count    int64                    `json:"count"`
		Next     *string                  `json:"next"`
		Previous *string                  `json:"previous"`
		Results  []map[string]interface{} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.EqualValues(t, 3, page.Count)
	assert.Len(t, page.Results, 2)
	require.NotNil(t, page.Next)
	assert.Contains(t, *page.Next, "page=2")
	assert.Nil(t, page.Previous)

	rec = env.do(http.MethodGet, "/api/user/list/?page=5", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"Invalid page."}`, rec.Body.String())
}

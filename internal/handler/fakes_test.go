package handler

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/geoprofile/internal/blacklist"
	"github.com/suteetoe/geoprofile/internal/middleware"
	"github.com/suteetoe/geoprofile/internal/model"
	"github.com/suteetoe/geoprofile/internal/password"
	"github.com/suteetoe/geoprofile/internal/repository"
	"github.com/suteetoe/geoprofile/internal/serializer"
	"github.com/suteetoe/geoprofile/pkg/config"
	"github.com/suteetoe/geoprofile/pkg/jwtutil"
)

const testPassword = "correct-Horse-battery-9"

var (
	hashOnce   sync.Once
	hashedTest string
)

func testHash(t *testing.T) string {
	hashOnce.Do(func() {
		h, err := password.Hash(testPassword)
		require.NoError(t, err)
		hashedTest = h
	})
	return hashedTest
}

// fakeUsers is an in-memory UserRepository
type fakeUsers struct {
	mu     sync.Mutex
	nextID uint
	byID   map[uint]*model.User
	perms  map[uint][]string

	// accessErr is returned by the access assignment, before anything is stored
	accessErr error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[uint]*model.User{}, perms: map[uint][]string{}}
}

func (f *fakeUsers) Create(ctx context.Context, u *model.User) error {
	return f.CreateWithAccess(ctx, u, nil, nil)
}

func (f *fakeUsers) CreateWithAccess(_ context.Context, u *model.User, groupIDs, permissionIDs *[]uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if strings.EqualFold(existing.Email, u.Email) {
			return repository.ErrDuplicateEmail
		}
	}
	if err := f.assignAccess(u, groupIDs, permissionIDs); err != nil {
		return err
	}
	f.nextID++
	u.ID = f.nextID
	u.DateJoined = time.Now()
	cp := *u
	f.byID[u.ID] = &cp
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uint) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) EmailTaken(_ context.Context, email string, excludeID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, u := range f.byID {
		if id != excludeID && strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) Exists(_ context.Context, id uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byID[id]
	return ok, nil
}

func (f *fakeUsers) List(_ context.Context, offset, limit int) ([]model.User, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := f.sortedIDs()
	var out []model.User
	for i := offset; i < len(ids) && len(out) < limit; i++ {
		out = append(out, *f.byID[ids[i]])
	}
	return out, int64(len(ids)), nil
}

func (f *fakeUsers) Update(ctx context.Context, u *model.User) error {
	return f.UpdateWithAccess(ctx, u, nil, nil)
}

func (f *fakeUsers) UpdateWithAccess(_ context.Context, u *model.User, groupIDs, permissionIDs *[]uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[u.ID]; !ok {
		return repository.ErrNotFound
	}
	for id, existing := range f.byID {
		if id != u.ID && strings.EqualFold(existing.Email, u.Email) {
			return repository.ErrDuplicateEmail
		}
	}
	if err := f.assignAccess(u, groupIDs, permissionIDs); err != nil {
		return err
	}
	cp := *u
	f.byID[u.ID] = &cp
	return nil
}

func (f *fakeUsers) assignAccess(u *model.User, groupIDs, permissionIDs *[]uint) error {
	if groupIDs == nil && permissionIDs == nil {
		return nil
	}
	if f.accessErr != nil {
		return f.accessErr
	}
	if groupIDs != nil {
		u.Groups = nil
		for _, id := range *groupIDs {
			u.Groups = append(u.Groups, model.Group{ID: id})
		}
	}
	if permissionIDs != nil {
		u.UserPermissions = nil
		for _, id := range *permissionIDs {
			u.UserPermissions = append(u.UserPermissions, model.Permission{ID: id})
		}
	}
	return nil
}

func (f *fakeUsers) Delete(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

// FindNear uses the haversine distance as a stand-in for the geography distance
func (f *fakeUsers) FindNear(_ context.Context, p model.GeoPoint, meters float64) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.User
	for _, id := range f.sortedIDs() {
		u := f.byID[id]
		if haversine(p, u.HomeAddress) < meters {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeUsers) FindByBirthday(_ context.Context, month time.Month, days []int) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.User
	for _, id := range f.sortedIDs() {
		u := f.byID[id]
		if u.DateOfBirth.Month() != month {
			continue
		}
		for _, d := range days {
			if u.DateOfBirth.Day() == d {
				out = append(out, *u)
			}
		}
	}
	return out, nil
}

func (f *fakeUsers) PermissionNames(_ context.Context, id uint) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.perms[id], nil
}

func (f *fakeUsers) TouchLastLogin(_ context.Context, id uint, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		u.LastLogin = &at
	}
	return nil
}

func (f *fakeUsers) sortedIDs() []uint {
	ids := make([]uint, 0, len(f.byID))
	for id := range f.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func haversine(a, b model.GeoPoint) float64 {
	const earthRadius = 6371008.8
	rad := math.Pi / 180
	dLat := (b.Lat - a.Lat) * rad
	dLng := (b.Lng - a.Lng) * rad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*rad)*math.Cos(b.Lat*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadius * math.Asin(math.Sqrt(h))
}

// fakeOwned is an in-memory OwnedStore
type fakeOwned[T any] struct {
	mu    sync.Mutex
	next  uint
	recs  map[uint]T
	id    func(*T) *uint
	owner func(*T) uint
}

func newFakeOwned[T any](id func(*T) *uint, owner func(*T) uint) *fakeOwned[T] {
	return &fakeOwned[T]{recs: map[uint]T{}, id: id, owner: owner}
}

func (f *fakeOwned[T]) ListByUser(_ context.Context, userID uint) ([]T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []T
	for _, rec := range f.recs {
		rec := rec
		if f.owner(&rec) == userID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return *f.id(&out[i]) > *f.id(&out[j]) })
	return out, nil
}

func (f *fakeOwned[T]) Get(_ context.Context, id uint) (*T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rec, nil
}

func (f *fakeOwned[T]) Create(_ context.Context, rec *T) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	*f.id(rec) = f.next
	f.recs[f.next] = *rec
	return nil
}

func (f *fakeOwned[T]) Save(_ context.Context, rec *T) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := *f.id(rec)
	if _, ok := f.recs[id]; !ok {
		return repository.ErrNotFound
	}
	f.recs[id] = *rec
	return nil
}

func (f *fakeOwned[T]) Delete(_ context.Context, rec *T) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := *f.id(rec)
	if _, ok := f.recs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.recs, id)
	return nil
}

// fakeFiles is an in-memory Storage
type fakeFiles struct {
	mu      sync.Mutex
	n       int
	stored  map[string][]byte
	deleted []string
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{stored: map[string][]byte{}}
}

func (f *fakeFiles) Save(_ context.Context, dir string, fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()
	buf := &bytes.Buffer{}
	if _, err := buf.ReadFrom(src); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	name := dir + "/" + strconv.Itoa(f.n) + "-" + fh.Filename
	f.stored[name] = buf.Bytes()
	return name, nil
}

func (f *fakeFiles) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.stored[name]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeFiles) Delete(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.stored, name)
	f.deleted = append(f.deleted, name)
	return nil
}

// testEnv is an echo server wired to in-memory stores
type testEnv struct {
	e         *echo.Echo
	users     *fakeUsers
	interests *fakeOwned[model.AreaOfInterest]
	distances *fakeOwned[model.WorkDistance]
	documents *fakeOwned[model.Document]
	files     *fakeFiles
	jwt       *jwtutil.JWTUtil
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		users: newFakeUsers(),
		interests: newFakeOwned(
			func(r *model.AreaOfInterest) *uint { return &r.ID },
			(*model.AreaOfInterest).OwnerID),
		distances: newFakeOwned(
			func(r *model.WorkDistance) *uint { return &r.ID },
			(*model.WorkDistance).OwnerID),
		documents: newFakeOwned(
			func(r *model.Document) *uint { return &r.ID },
			(*model.Document).OwnerID),
		files: newFakeFiles(),
		jwt: jwtutil.NewJWTUtil(&config.JWTConfig{
			SigningKey: "test-key",
			AccessTTL:  5 * time.Minute,
			RefreshTTL: time.Hour,
		}),
	}

	passwords := password.NewValidator(8, 60)
	e := echo.New()
	e.Validator = serializer.NewValidator()
	RegisterRoutes(e, &Handlers{
		Users:         NewUserHandler(env.users, env.documents, env.files, passwords),
		Interests:     NewInterestHandler(env.interests, env.users),
		WorkDistances: NewWorkDistanceHandler(env.distances, env.users),
		Documents:     NewDocumentHandler(env.documents, env.users, env.files),
		Tokens:        NewTokenHandler(env.users, env.jwt, blacklist.NewMemoryStore()),
		Health:        NewHealthHandler(nil),
	}, middleware.AuthMiddleware(env.jwt, env.users))
	env.e = e
	return env
}

// seedUser stores an active account with testPassword; mutate adjusts it before saving
func (env *testEnv) seedUser(t *testing.T, email string, mutate func(u *model.User)) *model.User {
	t.Helper()
	u := &model.User{
		Email:       email,
		Password:    testHash(t),
		FirstName:   "A",
		LastName:    "B",
		Country:     "Nepal",
		PhoneNumber: 9,
		DateOfBirth: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		IsActive:    true,
	}
	if mutate != nil {
		mutate(u)
	}
	require.NoError(t, env.users.Create(context.Background(), u))
	return u
}

func (env *testEnv) grant(u *model.User, perms ...string) {
	env.users.mu.Lock()
	defer env.users.mu.Unlock()
	env.users.perms[u.ID] = append(env.users.perms[u.ID], perms...)
}

func (env *testEnv) token(t *testing.T, u *model.User) string {
	t.Helper()
	token, err := env.jwt.GenerateAccessToken(u.Email, u.ID)
	require.NoError(t, err)
	return token
}

func (env *testEnv) do(method, path, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) upload(t *testing.T, method, path, token string, fields map[string]string, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		part, err := w.CreateFormFile("document", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

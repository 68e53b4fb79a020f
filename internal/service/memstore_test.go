package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/yourusername/testprep-api/internal/domain/entity"
	apperrors "github.com/yourusername/testprep-api/internal/pkg/errors"
	"github.com/yourusername/testprep-api/internal/service/grader"
	"github.com/yourusername/testprep-api/internal/service/questiongen"
	"gorm.io/gorm"
)

// memStore is an in-memory session, result and user store with serialized transactions
// that roll back on error, standing in for postgres.
type memStore struct {
	txMu sync.Mutex // held for the whole transaction, like a row lock on the user
	mu   sync.Mutex

	sessions map[string]entity.TestSession
	results  map[uint]entity.TestResult
	users    map[uint]entity.User
	nextID   uint

	// failResultCreate makes the next result insert fail.
	failResultCreate error
	commits          int
}

func newMemStore() *memStore {
	return &memStore{
		sessions: map[string]entity.TestSession{},
		results:  map[uint]entity.TestResult{},
		users:    map[uint]entity.User{},
		nextID:   1,
	}
}

func (m *memStore) addUser(u entity.User) *entity.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == 0 {
		u.ID = m.nextID
		m.nextID++
	}
	if u.Level == 0 {
		u.Level = 1
	}
	m.users[u.ID] = copyUser(u)
	out := copyUser(u)
	return &out
}

func (m *memStore) user(id uint) entity.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyUser(m.users[id])
}

func (m *memStore) resultCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results)
}

func (m *memStore) sessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func copyUser(u entity.User) entity.User {
	u.Badges = append(entity.BadgeList(nil), u.Badges...)
	if u.Plan != nil {
		raw, _ := json.Marshal(u.Plan)
		plan := &entity.LearningPlan{}
		_ = json.Unmarshal(raw, plan)
		u.Plan = plan
	}
	return u
}

// Transactor

func (m *memStore) WithinTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	sessions := make(map[string]entity.TestSession, len(m.sessions))
	for k, v := range m.sessions {
		sessions[k] = v
	}
	results := make(map[uint]entity.TestResult, len(m.results))
	for k, v := range m.results {
		results[k] = v
	}
	users := make(map[uint]entity.User, len(m.users))
	for k, v := range m.users {
		users[k] = copyUser(v)
	}
	m.mu.Unlock()

	if err := fn(nil); err != nil {
		m.mu.Lock()
		m.sessions, m.results, m.users = sessions, results, users
		m.mu.Unlock()
		return err
	}
	m.mu.Lock()
	m.commits++
	m.mu.Unlock()
	return nil
}

// SessionRepository

type memSessionRepo struct{ *memStore }

func (r memSessionRepo) Create(ctx context.Context, session *entity.TestSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	r.sessions[session.ID] = *session
	return nil
}

func (r memSessionRepo) GetByID(ctx context.Context, id string) (*entity.TestSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &s, nil
}

func (r memSessionRepo) MarkCompleted(ctx context.Context, tx *gorm.DB, id string, ownerID uint, answers entity.AnswerMap) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.OwnerID != ownerID {
		return apperrors.ErrNotFound
	}
	if s.Completed {
		return apperrors.ErrAlreadyCompleted
	}
	s.Completed = true
	s.Answers = answers
	r.sessions[id] = s
	return nil
}

func (r memSessionRepo) Delete(ctx context.Context, tx *gorm.DB, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r memSessionRepo) DeleteStale(ctx context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.sessions {
		if s.CreatedAt.Before(olderThan) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

// ResultRepository

type memResultRepo struct{ *memStore }

func (r memResultRepo) Create(ctx context.Context, tx *gorm.DB, result *entity.TestResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failResultCreate != nil {
		err := r.failResultCreate
		r.failResultCreate = nil
		return err
	}
	for _, existing := range r.results {
		if existing.SessionID == result.SessionID {
			return apperrors.ErrAlreadyCompleted
		}
	}
	result.ID = r.nextID
	r.nextID++
	r.results[result.ID] = *result
	return nil
}

func (r memResultRepo) GetByID(ctx context.Context, id uint) (*entity.TestResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.results[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &res, nil
}

func (r memResultRepo) GetBySessionID(ctx context.Context, sessionID string) (*entity.TestResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.results {
		if res.SessionID == sessionID {
			out := res
			return &out, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r memResultRepo) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]entity.TestResult, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []entity.TestResult
	for _, res := range r.results {
		if res.UserID == userID {
			all = append(all, res)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].TakenAt.After(all[j].TakenAt) })
	total := int64(len(all))
	if offset >= len(all) {
		return []entity.TestResult{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

// UserRepository

type memUserRepo struct{ *memStore }

func (r memUserRepo) Create(ctx context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email || u.Username == user.Username {
			return apperrors.ErrConflict
		}
	}
	if err := user.BeforeSave(nil); err != nil {
		return err
	}
	user.ID = r.nextID
	r.nextID++
	r.users[user.ID] = copyUser(*user)
	return nil
}

func (r memUserRepo) GetByID(ctx context.Context, id uint) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	out := copyUser(u)
	return &out, nil
}

func (r memUserRepo) GetByIdentifier(ctx context.Context, identifier string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == identifier || u.Username == identifier {
			out := copyUser(u)
			return &out, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r memUserRepo) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email || u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (r memUserRepo) Update(ctx context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[user.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if err := user.BeforeSave(nil); err != nil {
		return err
	}
	stored.FullName = user.FullName
	stored.AvatarID = user.AvatarID
	stored.Password = user.Password
	stored.Goal = user.Goal
	stored.Plan = user.Plan
	stored.PlanProgress = user.PlanProgress
	r.users[user.ID] = copyUser(stored)
	return nil
}

func (r memUserRepo) LockByID(ctx context.Context, tx *gorm.DB, id uint) (*entity.User, error) {
	return r.GetByID(ctx, id)
}

func (r memUserRepo) SaveStats(ctx context.Context, tx *gorm.DB, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[user.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	stored.XP = user.XP
	stored.Level = user.Level
	stored.TestsTaken = user.TestsTaken
	stored.AverageScore = user.AverageScore
	stored.LastTestTaken = user.LastTestTaken
	stored.Badges = user.Badges
	r.users[user.ID] = copyUser(stored)
	return nil
}

func (r memUserRepo) SaveLogin(ctx context.Context, tx *gorm.DB, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[user.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	stored.LoginStreak = user.LoginStreak
	stored.LastLogin = user.LastLogin
	stored.Badges = user.Badges
	r.users[user.ID] = copyUser(stored)
	return nil
}

func (r memUserRepo) List(ctx context.Context, limit, offset int) ([]entity.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]entity.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, copyUser(u))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	total := int64(len(users))
	if offset >= len(users) {
		return []entity.User{}, total, nil
	}
	end := offset + limit
	if end > len(users) {
		end = len(users)
	}
	return users[offset:end], total, nil
}

func (r memUserRepo) GetLeaderboard(ctx context.Context, limit int) ([]entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users []entity.User
	for _, u := range r.users {
		if !u.IsAdmin {
			users = append(users, copyUser(u))
		}
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].XP == users[j].XP {
			return users[i].ID < users[j].ID
		}
		return users[i].XP > users[j].XP
	})
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

// memCache is an in-memory CacheRepository.
type memCache struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func newMemCache() *memCache {
	return &memCache{values: map[string]string{}}
}

func (c *memCache) Set(key string, value interface{}, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	raw, _ := json.Marshal(value)
	if s, ok := value.(string); ok {
		raw = []byte(s)
	}
	c.values[key] = string(raw)
	return nil
}

func (c *memCache) Get(key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	v, ok := c.values[key]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return v, nil
}

func (c *memCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	delete(c.values, key)
	return nil
}

func (c *memCache) SetJSON(key string, value interface{}, expiration time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Set(key, string(raw), expiration)
}

func (c *memCache) GetJSON(key string, dest interface{}) error {
	raw, err := c.Get(key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), dest)
}

func (c *memCache) SetNX(key string, value interface{}, expiration time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if _, ok := c.values[key]; ok {
		return false, nil
	}
	c.values[key] = value.(string)
	return true, nil
}

func (c *memCache) DeleteIfEquals(key, token string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if c.values[key] != token {
		return false, nil
	}
	delete(c.values, key)
	return true, nil
}

// MockGraderForSession implements grader.Grader.
type MockGraderForSession struct {
	mock.Mock
}

func (m *MockGraderForSession) Grade(ctx context.Context, req grader.GradeRequest) (*grader.Report, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*grader.Report), args.Error(1)
}

// MockGeneratorForSession implements questiongen.Generator.
type MockGeneratorForSession struct {
	mock.Mock
}

func (m *MockGeneratorForSession) Generate(ctx context.Context, req questiongen.Request) ([]entity.Question, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Question), args.Error(1)
}

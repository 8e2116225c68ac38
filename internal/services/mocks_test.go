package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/learnsy/backend/internal/models"
	"github.com/learnsy/backend/internal/storage"
	"github.com/learnsy/backend/internal/tasks"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func missing(entity string) error {
	return fmt.Errorf("%s not found: %w", entity, models.ErrNotFound)
}

var (
	student  = models.Actor{UserID: 10, Role: models.RoleStudent}
	student2 = models.Actor{UserID: 11, Role: models.RoleStudent}
	faculty  = models.Actor{UserID: 20, Role: models.RoleFaculty}
	faculty2 = models.Actor{UserID: 21, Role: models.RoleFaculty}
	admin    = models.Actor{UserID: 30, Role: models.RoleAdmin}
)

// mockUserRepository is an in-memory UserRepository
type mockUserRepository struct {
	mu        sync.Mutex
	users     map[int]*models.User
	nextID    int
	err       error
	existsErr error
}

func newMockUserRepository(users ...*models.User) *mockUserRepository {
	m := &mockUserRepository{users: make(map[int]*models.User), nextID: 100}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserRepository) Create(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return fmt.Errorf("email exists: %w", models.ErrDuplicate)
		}
	}
	m.nextID++
	user.ID = m.nextID
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, missing("user")
}

func (m *mockUserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, missing("user")
	}
	copied := *u
	return &copied, nil
}

func (m *mockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existsErr != nil {
		return false, m.existsErr
	}
	for _, u := range m.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// mockUserTokenRepository is an in-memory UserTokenRepository
type mockUserTokenRepository struct {
	mu        sync.Mutex
	tokens    map[string]int
	err       error
	updateErr error
}

func newMockUserTokenRepository() *mockUserTokenRepository {
	return &mockUserTokenRepository{tokens: make(map[string]int)}
}

func (m *mockUserTokenRepository) Create(ctx context.Context, userToken *models.UserToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.tokens[userToken.Token] = userToken.UserID
	return nil
}

func (m *mockUserTokenRepository) GetByToken(ctx context.Context, token string) (*models.UserToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	userID, ok := m.tokens[token]
	if !ok {
		return nil, missing("user token")
	}
	return &models.UserToken{UserID: userID, Token: token}, nil
}

func (m *mockUserTokenRepository) UpdateToken(ctx context.Context, oldToken, newToken string, userID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.tokens[oldToken]; !ok {
		return missing("user token")
	}
	delete(m.tokens, oldToken)
	m.tokens[newToken] = userID
	return nil
}

func (m *mockUserTokenRepository) DeleteByToken(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, token)
	return m.err
}

func (m *mockUserTokenRepository) has(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tokens[token]
	return ok
}

// mockTaskEnqueuer records queued tasks
type mockTaskEnqueuer struct {
	mu            sync.Mutex
	emails        []tasks.EmailPayload
	verifications []string
	delays        []time.Duration
	emailErr      error
	verifyErr     error
}

func (m *mockTaskEnqueuer) EnqueueEmail(ctx context.Context, p tasks.EmailPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.emailErr != nil {
		return m.emailErr
	}
	m.emails = append(m.emails, p)
	return nil
}

func (m *mockTaskEnqueuer) EnqueuePaymentVerification(ctx context.Context, paymentID string, delay time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.verifyErr != nil {
		return m.verifyErr
	}
	m.verifications = append(m.verifications, paymentID)
	m.delays = append(m.delays, delay)
	return nil
}

func (m *mockTaskEnqueuer) emailCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.emails)
}

func (m *mockTaskEnqueuer) lastEmail() tasks.EmailPayload {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.emails) == 0 {
		return tasks.EmailPayload{}
	}
	return m.emails[len(m.emails)-1]
}

// mockStorage is an in-memory Storage
type mockStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	openErr error
	deleted []string
}

func newMockStorage() *mockStorage {
	return &mockStorage{objects: make(map[string][]byte)}
}

func (m *mockStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (int64, error) {
	if m.putErr != nil {
		return 0, m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return int64(len(data)), nil
}

func (m *mockStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *mockStorage) deletedKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

// mockCourseRepository is an in-memory CourseRepository
type mockCourseRepository struct {
	courses        map[int]*models.Course
	nextID         int
	err            error
	lastFilter     models.CourseFilter
	replaceModules bool
	publishCalls   int
}

func newMockCourseRepository(courses ...*models.Course) *mockCourseRepository {
	m := &mockCourseRepository{courses: make(map[int]*models.Course), nextID: 1}
	for _, c := range courses {
		m.courses[c.ID] = c
		m.nextID = max(m.nextID, c.ID+1)
	}
	return m
}

func (m *mockCourseRepository) Create(ctx context.Context, course *models.Course) error {
	if m.err != nil {
		return m.err
	}
	course.ID = m.nextID
	m.nextID++
	for i := range course.Modules {
		course.Modules[i].ID = i + 1
		course.Modules[i].CourseID = course.ID
	}
	stored := *course
	m.courses[course.ID] = &stored
	return nil
}

func (m *mockCourseRepository) GetByID(ctx context.Context, id int) (*models.Course, error) {
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.courses[id]
	if !ok {
		return nil, missing("course")
	}
	copied := *c
	return &copied, nil
}

func (m *mockCourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	m.lastFilter = filter
	if m.err != nil {
		return nil, m.err
	}
	courses := make([]models.Course, 0)
	for _, c := range m.courses {
		if c.Published {
			courses = append(courses, *c)
		}
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID > courses[j].ID })
	return courses, nil
}

func (m *mockCourseRepository) ListByFaculty(ctx context.Context, facultyID int) ([]models.Course, error) {
	if m.err != nil {
		return nil, m.err
	}
	courses := make([]models.Course, 0)
	for _, c := range m.courses {
		if c.FacultyID == facultyID {
			courses = append(courses, *c)
		}
	}
	return courses, nil
}

func (m *mockCourseRepository) Update(ctx context.Context, course *models.Course, replaceModules bool) error {
	if m.err != nil {
		return m.err
	}
	m.replaceModules = replaceModules
	stored := *course
	m.courses[course.ID] = &stored
	return nil
}

func (m *mockCourseRepository) SetPublished(ctx context.Context, id int, published bool, updatedAt time.Time) error {
	if m.err != nil {
		return m.err
	}
	m.publishCalls++
	m.courses[id].Published = published
	m.courses[id].UpdatedAt = updatedAt
	return nil
}

func (m *mockCourseRepository) Delete(ctx context.Context, id int) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.courses[id]; !ok {
		return missing("course")
	}
	delete(m.courses, id)
	return nil
}

// mockMaterialRepository is an in-memory MaterialRepository that also lists storage keys
type mockMaterialRepository struct {
	materials []models.Material
	nextID    int
	err       error
}

func newMockMaterialRepository(materials ...models.Material) *mockMaterialRepository {
	m := &mockMaterialRepository{nextID: 1}
	for _, mat := range materials {
		m.materials = append(m.materials, mat)
		m.nextID = max(m.nextID, mat.ID+1)
	}
	return m
}

func (m *mockMaterialRepository) NextPosition(ctx context.Context, courseID int) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	next := 0
	for _, mat := range m.materials {
		if mat.CourseID == courseID && mat.Position >= next {
			next = mat.Position + 1
		}
	}
	return next, nil
}

func (m *mockMaterialRepository) Create(ctx context.Context, mat *models.Material) error {
	if m.err != nil {
		return m.err
	}
	mat.ID = m.nextID
	m.nextID++
	stored := *mat
	stored.URL = ""
	m.materials = append(m.materials, stored)
	return nil
}

func (m *mockMaterialRepository) GetByID(ctx context.Context, id int) (*models.Material, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, mat := range m.materials {
		if mat.ID == id {
			copied := mat
			return &copied, nil
		}
	}
	return nil, missing("material")
}

func (m *mockMaterialRepository) ListByCourse(ctx context.Context, courseID int) ([]models.Material, error) {
	if m.err != nil {
		return nil, m.err
	}
	materials := make([]models.Material, 0)
	for _, mat := range m.materials {
		if mat.CourseID == courseID {
			materials = append(materials, mat)
		}
	}
	sort.SliceStable(materials, func(i, j int) bool {
		if materials[i].Position != materials[j].Position {
			return materials[i].Position < materials[j].Position
		}
		return materials[i].ID < materials[j].ID
	})
	return materials, nil
}

func (m *mockMaterialRepository) Update(ctx context.Context, mat *models.Material) error {
	if m.err != nil {
		return m.err
	}
	for i := range m.materials {
		if m.materials[i].ID == mat.ID {
			m.materials[i].Title = mat.Title
			m.materials[i].Description = mat.Description
			m.materials[i].Position = mat.Position
		}
	}
	return nil
}

func (m *mockMaterialRepository) Delete(ctx context.Context, id int) error {
	if m.err != nil {
		return m.err
	}
	for i := range m.materials {
		if m.materials[i].ID == id {
			m.materials = append(m.materials[:i], m.materials[i+1:]...)
			return nil
		}
	}
	return missing("material")
}

func (m *mockMaterialRepository) CountByCourse(ctx context.Context, courseID int) (int, error) {
	materials, err := m.ListByCourse(ctx, courseID)
	return len(materials), err
}

func (m *mockMaterialRepository) ListStorageKeysByCourse(ctx context.Context, courseID int) ([]string, error) {
	materials, err := m.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0)
	for _, mat := range materials {
		if mat.StorageKey != "" {
			keys = append(keys, mat.StorageKey)
		}
	}
	return keys, nil
}

// mockEnrollmentRepository is an in-memory EnrollmentRepository
type mockEnrollmentRepository struct {
	enrollments []models.Enrollment
	nextID      int
	err         error
	updates     int
	// completions, when set, is cleared for the student and course on Delete
	completions *mockCompletionRepository
}

func newMockEnrollmentRepository(enrollments ...models.Enrollment) *mockEnrollmentRepository {
	m := &mockEnrollmentRepository{nextID: 1}
	for _, e := range enrollments {
		m.enrollments = append(m.enrollments, e)
		m.nextID = max(m.nextID, e.ID+1)
	}
	return m
}

func (m *mockEnrollmentRepository) Create(ctx context.Context, e *models.Enrollment) error {
	if m.err != nil {
		return m.err
	}
	for _, existing := range m.enrollments {
		if existing.StudentID == e.StudentID && existing.CourseID == e.CourseID {
			return fmt.Errorf("already enrolled: %w", models.ErrDuplicate)
		}
	}
	e.ID = m.nextID
	m.nextID++
	m.enrollments = append(m.enrollments, *e)
	return nil
}

func (m *mockEnrollmentRepository) GetByID(ctx context.Context, id int) (*models.Enrollment, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, e := range m.enrollments {
		if e.ID == id {
			copied := e
			return &copied, nil
		}
	}
	return nil, missing("enrollment")
}

func (m *mockEnrollmentRepository) GetByStudentAndCourse(ctx context.Context, studentID, courseID int) (*models.Enrollment, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID {
			copied := e
			return &copied, nil
		}
	}
	return nil, missing("enrollment")
}

func (m *mockEnrollmentRepository) ListByStudent(ctx context.Context, studentID int) ([]models.Enrollment, error) {
	if m.err != nil {
		return nil, m.err
	}
	result := make([]models.Enrollment, 0)
	for _, e := range m.enrollments {
		if e.StudentID == studentID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockEnrollmentRepository) ListByCourse(ctx context.Context, courseID int) ([]models.Enrollment, error) {
	if m.err != nil {
		return nil, m.err
	}
	result := make([]models.Enrollment, 0)
	for _, e := range m.enrollments {
		if e.CourseID == courseID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockEnrollmentRepository) UpdateProgress(ctx context.Context, id int, progress models.Progress, status models.EnrollmentStatus, updatedAt time.Time) error {
	if m.err != nil {
		return m.err
	}
	m.updates++
	for i := range m.enrollments {
		if m.enrollments[i].ID == id {
			m.enrollments[i].Progress = progress
			m.enrollments[i].Status = status
			m.enrollments[i].UpdatedAt = updatedAt
		}
	}
	return nil
}

func (m *mockEnrollmentRepository) Delete(ctx context.Context, e *models.Enrollment) error {
	if m.err != nil {
		return m.err
	}
	for i := range m.enrollments {
		if m.enrollments[i].ID == e.ID {
			m.enrollments = append(m.enrollments[:i], m.enrollments[i+1:]...)
			if m.completions != nil {
				delete(m.completions.done, [2]int{e.StudentID, e.CourseID})
			}
			return nil
		}
	}
	return missing("enrollment")
}

// mockCompletionRepository is an in-memory CompletionRepository keyed by (student, course)
type mockCompletionRepository struct {
	done map[[2]int][]int
	err  error
}

func newMockCompletionRepository() *mockCompletionRepository {
	return &mockCompletionRepository{done: make(map[[2]int][]int)}
}

func (m *mockCompletionRepository) Create(ctx context.Context, studentID, courseID, materialID int, completedAt time.Time) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	key := [2]int{studentID, courseID}
	for _, id := range m.done[key] {
		if id == materialID {
			return false, nil
		}
	}
	m.done[key] = append(m.done[key], materialID)
	return true, nil
}

func (m *mockCompletionRepository) ListMaterialIDs(ctx context.Context, studentID, courseID int) ([]int, error) {
	if m.err != nil {
		return nil, m.err
	}
	return append([]int{}, m.done[[2]int{studentID, courseID}]...), nil
}

func (m *mockCompletionRepository) CountByCourse(ctx context.Context, studentID, courseID int) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	return len(m.done[[2]int{studentID, courseID}]), nil
}

// mockSubscriptionRepository is an in-memory subscription store
type mockSubscriptionRepository struct {
	mu          sync.Mutex
	subs        map[int]*models.Subscription
	err         error
	expireCalls []time.Time
	expired     int64
}

func newMockSubscriptionRepository(subs ...*models.Subscription) *mockSubscriptionRepository {
	m := &mockSubscriptionRepository{subs: make(map[int]*models.Subscription)}
	for _, s := range subs {
		m.subs[s.StudentID] = s
	}
	return m
}

func (m *mockSubscriptionRepository) GetByStudent(ctx context.Context, studentID int) (*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.subs[studentID]
	if !ok {
		return nil, missing("subscription")
	}
	copied := *s
	return &copied, nil
}

func (m *mockSubscriptionRepository) Upsert(ctx context.Context, sub *models.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	stored := *sub
	m.subs[sub.StudentID] = &stored
	return nil
}

func (m *mockSubscriptionRepository) CreateFree(ctx context.Context, studentID int, startedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.subs[studentID]; !ok {
		m.subs[studentID] = models.FreeSubscription(studentID, startedAt)
	}
	return nil
}

func (m *mockSubscriptionRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireCalls = append(m.expireCalls, now)
	return m.expired, m.err
}

func (m *mockSubscriptionRepository) get(studentID int) (*models.Subscription, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[studentID]
	if !ok {
		return nil, false
	}
	copied := *s
	return &copied, true
}

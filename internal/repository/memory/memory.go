// Package memory keeps every repository in process memory. It backs the
// test suites and the memory database driver used for local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/domain"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/repository"
)

var (
	_ repository.UserRepository       = (*UserRepository)(nil)
	_ repository.CompanyRepository    = (*CompanyRepository)(nil)
	_ repository.SessionRepository    = (*SessionRepository)(nil)
	_ repository.InvitationRepository = (*InvitationRepository)(nil)
	_ repository.ClientRepository     = (*ClientRepository)(nil)
	_ repository.DealRepository       = (*DealRepository)(nil)
	_ repository.ProjectRepository    = (*ProjectRepository)(nil)
	_ repository.TaskRepository       = (*TaskRepository)(nil)
)

func missing(kind string, key interface{}) error {
	return fmt.Errorf("%s %v: %w", kind, key, repository.ErrNotFound)
}

func page[T any](items []T, limit, offset int) ([]T, int) {
	total := len(items)
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return items[offset:end], total
}

// users

type UserRepository struct {
	mu    sync.Mutex
	users map[uuid.UUID]domain.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: map[uuid.UUID]domain.User{}}
}

func (m *UserRepository) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return fmt.Errorf("user %s: %w", u.Email, repository.ErrConflict)
		}
		// mirrors the partial unique index on users(role)
		if u.Role == domain.RoleProductOwner && existing.Role == domain.RoleProductOwner {
			return fmt.Errorf("second product owner: %w", repository.ErrConflict)
		}
	}
	m.users[u.ID] = *u
	return nil
}

func (m *UserRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, missing("user", id)
	}
	return &u, nil
}

func (m *UserRepository) GetByEmail(_ context.Context, addr string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, addr) {
			return &u, nil
		}
	}
	return nil, missing("user", addr)
}

func (m *UserRepository) Update(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return missing("user", u.ID)
	}
	m.users[u.ID] = *u
	return nil
}

func (m *UserRepository) UpdateLastLogin(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return missing("user", id)
	}
	now := time.Now()
	u.LastLoginAt = &now
	m.users[id] = u
	return nil
}

func (m *UserRepository) IncrementFailedLogins(_ context.Context, id uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return 0, missing("user", id)
	}
	u.FailedLogins++
	m.users[id] = u
	return u.FailedLogins, nil
}

func (m *UserRepository) ResetFailedLogins(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return missing("user", id)
	}
	u.FailedLogins = 0
	u.LockedUntil = nil
	m.users[id] = u
	return nil
}

func (m *UserRepository) filter(keep func(domain.User) bool) []*domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.User
	for _, u := range m.users {
		if keep(u) {
			u := u
			out = append(out, &u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

func (m *UserRepository) ListStaff(_ context.Context, limit, offset int) ([]*domain.User, int, error) {
	items, total := page(m.filter(func(u domain.User) bool { return u.IsInternalStaff }), limit, offset)
	return items, total, nil
}

func (m *UserRepository) ListByCompany(_ context.Context, companyID uuid.UUID, limit, offset int) ([]*domain.User, int, error) {
	items, total := page(m.filter(func(u domain.User) bool {
		return u.CompanyID != nil && *u.CompanyID == companyID
	}), limit, offset)
	return items, total, nil
}

func (m *UserRepository) ListIDsByCompany(ctx context.Context, companyID uuid.UUID) ([]uuid.UUID, error) {
	users, _, _ := m.ListByCompany(ctx, companyID, 0, 0)
	ids := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

func (m *UserRepository) ExistsWithRole(_ context.Context, role domain.Role) (bool, error) {
	return len(m.filter(func(u domain.User) bool { return u.Role == role })) > 0, nil
}

// companies

type CompanyRepository struct {
	mu        sync.Mutex
	companies map[uuid.UUID]domain.Company
}

func NewCompanyRepository() *CompanyRepository {
	return &CompanyRepository{companies: map[uuid.UUID]domain.Company{}}
}

func (m *CompanyRepository) Create(_ context.Context, c *domain.Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.companies {
		if existing.Subdomain == c.Subdomain {
			return fmt.Errorf("company %s: %w", c.Subdomain, repository.ErrConflict)
		}
	}
	m.companies[c.ID] = *c
	return nil
}

func (m *CompanyRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.companies[id]
	if !ok {
		return nil, missing("company", id)
	}
	return &c, nil
}

func (m *CompanyRepository) GetBySubdomain(_ context.Context, subdomain string) (*domain.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.companies {
		if c.Subdomain == subdomain {
			return &c, nil
		}
	}
	return nil, missing("company", subdomain)
}

func (m *CompanyRepository) Update(_ context.Context, c *domain.Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.companies[c.ID]
	if !ok {
		return missing("company", c.ID)
	}
	existing.Name = c.Name
	existing.Status = c.Status
	existing.UpdatedAt = c.UpdatedAt
	m.companies[c.ID] = existing
	return nil
}

func (m *CompanyRepository) List(_ context.Context, limit, offset int) ([]*domain.Company, int, error) {
	m.mu.Lock()
	var all []*domain.Company
	for _, c := range m.companies {
		c := c
		all = append(all, &c)
	}
	m.mu.Unlock()
	sort.Slice(all, func(i, j int) bool { return all[i].Subdomain < all[j].Subdomain })
	items, total := page(all, limit, offset)
	return items, total, nil
}

// sessions

type SessionRepository struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]domain.Session
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: map[uuid.UUID]domain.Session{}}
}

func (m *SessionRepository) Create(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
	return nil
}

func (m *SessionRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, missing("session", id)
	}
	return &s, nil
}

func (m *SessionRepository) GetByToken(_ context.Context, tokenHash string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.RefreshTokenHash == tokenHash {
			return &s, nil
		}
	}
	return nil, missing("session", "token")
}

func (m *SessionRepository) GetByUserID(_ context.Context, userID uuid.UUID) ([]*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *SessionRepository) Update(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return missing("session", s.ID)
	}
	m.sessions[s.ID] = *s
	return nil
}

func (m *SessionRepository) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return missing("session", id)
	}
	delete(m.sessions, id)
	return nil
}

func (m *SessionRepository) DeleteByToken(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.RefreshTokenHash == tokenHash {
			delete(m.sessions, id)
			return nil
		}
	}
	return missing("session", "token")
}

func (m *SessionRepository) DeleteByUserID(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *SessionRepository) DeleteExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	now := time.Now()
	for id, s := range m.sessions {
		if s.ExpiresAt.Before(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// CountByUser reports how many sessions the user holds
func (m *SessionRepository) CountByUser(userID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if s.UserID == userID {
			n++
		}
	}
	return n
}

// invitations

type InvitationRepository struct {
	mu          sync.Mutex
	invitations map[uuid.UUID]domain.Invitation
}

func NewInvitationRepository() *InvitationRepository {
	return &InvitationRepository{invitations: map[uuid.UUID]domain.Invitation{}}
}

func (m *InvitationRepository) Create(_ context.Context, inv *domain.Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invitations[inv.ID] = *inv
	return nil
}

func (m *InvitationRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invitations[id]
	if !ok {
		return nil, missing("invitation", id)
	}
	return &inv, nil
}

func (m *InvitationRepository) GetByTokenHash(_ context.Context, tokenHash string) (*domain.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invitations {
		if inv.TokenHash == tokenHash {
			return &inv, nil
		}
	}
	return nil, missing("invitation", "token")
}

func (m *InvitationRepository) Update(_ context.Context, inv *domain.Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invitations[inv.ID]; !ok {
		return missing("invitation", inv.ID)
	}
	m.invitations[inv.ID] = *inv
	return nil
}

func (m *InvitationRepository) List(_ context.Context, filter repository.InvitationFilter, limit, offset int) ([]*domain.Invitation, int, error) {
	m.mu.Lock()
	var all []*domain.Invitation
	for _, inv := range m.invitations {
		if filter.Matches(&inv) {
			inv := inv
			all = append(all, &inv)
		}
	}
	m.mu.Unlock()
	sort.Slice(all, func(i, j int) bool { return all[i].Email < all[j].Email })
	items, total := page(all, limit, offset)
	return items, total, nil
}

// clients and deals

type ClientRepository struct {
	mu      sync.Mutex
	clients map[uuid.UUID]domain.Client
}

func NewClientRepository() *ClientRepository {
	return &ClientRepository{clients: map[uuid.UUID]domain.Client{}}
}

func (m *ClientRepository) Create(_ context.Context, c *domain.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[c.ID] = *c
	return nil
}

func (m *ClientRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return nil, missing("client", id)
	}
	return &c, nil
}

func (m *ClientRepository) Update(_ context.Context, c *domain.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[c.ID]; !ok {
		return missing("client", c.ID)
	}
	m.clients[c.ID] = *c
	return nil
}

func (m *ClientRepository) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[id]; !ok {
		return missing("client", id)
	}
	delete(m.clients, id)
	return nil
}

func (m *ClientRepository) List(_ context.Context, search string, limit, offset int) ([]*domain.Client, int, error) {
	m.mu.Lock()
	var all []*domain.Client
	for _, c := range m.clients {
		if search == "" || strings.Contains(strings.ToLower(c.Name), strings.ToLower(search)) {
			c := c
			all = append(all, &c)
		}
	}
	m.mu.Unlock()
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	items, total := page(all, limit, offset)
	return items, total, nil
}

type DealRepository struct {
	mu    sync.Mutex
	deals map[uuid.UUID]domain.Deal
}

func NewDealRepository() *DealRepository {
	return &DealRepository{deals: map[uuid.UUID]domain.Deal{}}
}

func (m *DealRepository) Create(_ context.Context, d *domain.Deal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deals[d.ID] = *d
	return nil
}

func (m *DealRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Deal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deals[id]
	if !ok {
		return nil, missing("deal", id)
	}
	return &d, nil
}

// Update leaves stage and position to Move, like the SQL store
func (m *DealRepository) Update(_ context.Context, d *domain.Deal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.deals[d.ID]
	if !ok {
		return missing("deal", d.ID)
	}
	cur.Title = d.Title
	cur.Value = d.Value
	cur.Currency = d.Currency
	cur.OwnerID = d.OwnerID
	cur.UpdatedAt = time.Now()
	m.deals[d.ID] = cur
	return nil
}

func (m *DealRepository) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.deals[id]; !ok {
		return missing("deal", id)
	}
	delete(m.deals, id)
	return nil
}

func stageIndex(s domain.DealStage) int {
	for i, stage := range domain.DealStages {
		if stage == s {
			return i
		}
	}
	return len(domain.DealStages)
}

func (m *DealRepository) sorted(keep func(domain.Deal) bool) []*domain.Deal {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Deal
	for _, d := range m.deals {
		if keep(d) {
			d := d
			out = append(out, &d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := stageIndex(out[i].Stage), stageIndex(out[j].Stage)
		if si != sj {
			return si < sj
		}
		return out[i].Position < out[j].Position
	})
	return out
}

func (m *DealRepository) ListAll(_ context.Context) ([]*domain.Deal, error) {
	return m.sorted(func(domain.Deal) bool { return true }), nil
}

func (m *DealRepository) ListByClient(_ context.Context, clientID uuid.UUID) ([]*domain.Deal, error) {
	return m.sorted(func(d domain.Deal) bool { return d.ClientID == clientID }), nil
}

func (m *DealRepository) Move(_ context.Context, id uuid.UUID, stage domain.DealStage, position int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.deals[id]
	if !ok {
		return missing("deal", id)
	}

	count := 0
	for did, d := range m.deals {
		if d.Stage == cur.Stage && d.Position > cur.Position {
			d.Position--
			m.deals[did] = d
		}
		if d.Stage == stage && did != id {
			count++
		}
	}
	if position < 0 || position > count {
		position = count
	}
	for did, d := range m.deals {
		if did != id && d.Stage == stage && d.Position >= position {
			d.Position++
			m.deals[did] = d
		}
	}

	now := time.Now()
	if stage.Closed() && !cur.Stage.Closed() {
		cur.ClosedAt = &now
	}
	if !stage.Closed() {
		cur.ClosedAt = nil
	}
	cur.Stage = stage
	cur.Position = position
	m.deals[id] = cur
	return nil
}

func (m *DealRepository) NextPosition(_ context.Context, stage domain.DealStage) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := 0
	for _, d := range m.deals {
		if d.Stage == stage && d.Position >= next {
			next = d.Position + 1
		}
	}
	return next, nil
}

// projects and tasks

type ProjectRepository struct {
	mu       sync.Mutex
	projects map[uuid.UUID]domain.Project
}

func NewProjectRepository() *ProjectRepository {
	return &ProjectRepository{projects: map[uuid.UUID]domain.Project{}}
}

func (m *ProjectRepository) Create(_ context.Context, p *domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = *p
	return nil
}

func (m *ProjectRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, missing("project", id)
	}
	return &p, nil
}

func (m *ProjectRepository) Update(_ context.Context, p *domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[p.ID]; !ok {
		return missing("project", p.ID)
	}
	m.projects[p.ID] = *p
	return nil
}

func (m *ProjectRepository) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return missing("project", id)
	}
	delete(m.projects, id)
	return nil
}

func (m *ProjectRepository) List(_ context.Context, companyID *uuid.UUID, limit, offset int) ([]*domain.Project, int, error) {
	m.mu.Lock()
	var all []*domain.Project
	for _, p := range m.projects {
		if companyID == nil || (p.CompanyID != nil && *p.CompanyID == *companyID) {
			p := p
			all = append(all, &p)
		}
	}
	m.mu.Unlock()
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	items, total := page(all, limit, offset)
	return items, total, nil
}

type TaskRepository struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]domain.Task
}

func NewTaskRepository() *TaskRepository {
	return &TaskRepository{tasks: map[uuid.UUID]domain.Task{}}
}

func (m *TaskRepository) Create(_ context.Context, t *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[t.ID] = *t
	return nil
}

func (m *TaskRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, missing("task", id)
	}
	return &t, nil
}

func (m *TaskRepository) Update(_ context.Context, t *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.ID]; !ok {
		return missing("task", t.ID)
	}
	m.tasks[t.ID] = *t
	return nil
}

func (m *TaskRepository) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return missing("task", id)
	}
	delete(m.tasks, id)
	return nil
}

func (m *TaskRepository) ListByProject(_ context.Context, projectID uuid.UUID) ([]*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Task
	for _, t := range m.tasks {
		if t.ProjectID == projectID {
			t := t
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

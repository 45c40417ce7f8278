package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/domain"
)

func TestCompanyProjectsAreIsolated(t *testing.T) {
	e := newTestEnv(t)
	acme := e.addCompany(t, "acme", domain.StatusActive)
	globex := e.addCompany(t, "globex", domain.StatusActive)
	acmeOwner := e.addCompanyUser(t, acme, "owner@acme.test", domain.RoleCompanyOwner)
	globexOwner := e.addCompanyUser(t, globex, "owner@globex.test", domain.RoleCompanyOwner)
	staff := e.addStaff(t, "pm@metatech.test", domain.RoleStaffManager)
	ctx := context.Background()

	p, err := e.projectSvc.CreateProject(ctx, actorOn(acmeOwner, e.tenant(acme)), CreateProjectRequest{Name: "Website"})
	require.NoError(t, err)
	assert.Equal(t, acme.ID, *p.CompanyID)
	assert.Equal(t, domain.ProjectStatusActive, p.Status)

	_, err = e.projectSvc.CreateProject(ctx, actorOn(acmeOwner, e.tenant(acme)), CreateProjectRequest{Name: "Spy", CompanyID: &globex.ID})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = e.projectSvc.GetProject(ctx, actorOn(globexOwner, e.tenant(globex)), p.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	list, total, err := e.projectSvc.ListProjects(ctx, actorOn(globexOwner, e.tenant(globex)), &acme.ID, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)

	// internal staff see everything and may narrow by company
	_, err = e.projectSvc.CreateProject(ctx, actorOn(staff, e.staffRoot()), CreateProjectRequest{Name: "Internal"})
	require.NoError(t, err)
	_, total, err = e.projectSvc.ListProjects(ctx, actorOn(staff, e.staffRoot()), nil, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	_, total, err = e.projectSvc.ListProjects(ctx, actorOn(staff, e.staffRoot()), &acme.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, err = e.projectSvc.CreateProject(ctx, actorOn(staff, e.staffRoot()), CreateProjectRequest{Name: "x", CompanyID: ptr(uuid.New())})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProjectUpdateAndDelete(t *testing.T) {
	e := newTestEnv(t)
	acme := e.addCompany(t, "acme", domain.StatusActive)
	owner := e.addCompanyUser(t, acme, "owner@acme.test", domain.RoleCompanyOwner)
	member := e.addCompanyUser(t, acme, "m@acme.test", domain.RoleCompanyMember)
	actor := actorOn(owner, e.tenant(acme))
	ctx := context.Background()

	p, err := e.projectSvc.CreateProject(ctx, actor, CreateProjectRequest{Name: "Website"})
	require.NoError(t, err)

	status := domain.ProjectStatusOnHold
	updated, err := e.projectSvc.UpdateProject(ctx, actor, p.ID, UpdateProjectRequest{Name: ptr("Site"), Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "Site", updated.Name)
	assert.Equal(t, domain.ProjectStatusOnHold, updated.Status)

	_, err = e.projectSvc.UpdateProject(ctx, actorOn(member, e.tenant(acme)), p.ID, UpdateProjectRequest{Name: ptr("x")})
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := e.projectSvc.GetProject(ctx, actorOn(member, e.tenant(acme)), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Site", got.Name)

	require.NoError(t, e.projectSvc.DeleteProject(ctx, actor, p.ID))
	_, err = e.projectSvc.GetProject(ctx, actor, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTaskAssigneesStayInCompany(t *testing.T) {
	e := newTestEnv(t)
	acme := e.addCompany(t, "acme", domain.StatusActive)
	globex := e.addCompany(t, "globex", domain.StatusActive)
	owner := e.addCompanyUser(t, acme, "owner@acme.test", domain.RoleCompanyOwner)
	member := e.addCompanyUser(t, acme, "m@acme.test", domain.RoleCompanyMember)
	outsider := e.addCompanyUser(t, globex, "owner@globex.test", domain.RoleCompanyOwner)
	staff := e.addStaff(t, "pm@metatech.test", domain.RoleStaffManager)
	suspended := e.addUser(t, &domain.User{Email: "s@acme.test", Role: domain.RoleCompanyMember, CompanyID: &acme.ID, Status: domain.StatusSuspended})
	actor := actorOn(owner, e.tenant(acme))
	ctx := context.Background()

	p, err := e.projectSvc.CreateProject(ctx, actor, CreateProjectRequest{Name: "Website"})
	require.NoError(t, err)

	task, err := e.projectSvc.CreateTask(ctx, actor, p.ID, CreateTaskRequest{Title: "Design", AssigneeID: &member.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusTodo, task.Status)

	_, err = e.projectSvc.CreateTask(ctx, actor, p.ID, CreateTaskRequest{Title: "Help", AssigneeID: &staff.ID})
	assert.NoError(t, err)

	for _, id := range []uuid.UUID{outsider.ID, suspended.ID, uuid.New()} {
		_, err = e.projectSvc.CreateTask(ctx, actor, p.ID, CreateTaskRequest{Title: "x", AssigneeID: &id})
		assert.ErrorIs(t, err, ErrInvalidAssignee)
	}

	tasks, err := e.projectSvc.ListTasks(ctx, actorOn(member, e.tenant(acme)), p.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	_, err = e.projectSvc.ListTasks(ctx, actorOn(outsider, e.tenant(globex)), p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemberMayOnlyMoveOwnTaskStatus(t *testing.T) {
	e := newTestEnv(t)
	acme := e.addCompany(t, "acme", domain.StatusActive)
	owner := e.addCompanyUser(t, acme, "owner@acme.test", domain.RoleCompanyOwner)
	member := e.addCompanyUser(t, acme, "m@acme.test", domain.RoleCompanyMember)
	other := e.addCompanyUser(t, acme, "o@acme.test", domain.RoleCompanyMember)
	ownerActor := actorOn(owner, e.tenant(acme))
	memberActor := actorOn(member, e.tenant(acme))
	ctx := context.Background()

	p, err := e.projectSvc.CreateProject(ctx, ownerActor, CreateProjectRequest{Name: "Website"})
	require.NoError(t, err)
	mine, err := e.projectSvc.CreateTask(ctx, ownerActor, p.ID, CreateTaskRequest{Title: "mine", AssigneeID: &member.ID})
	require.NoError(t, err)
	theirs, err := e.projectSvc.CreateTask(ctx, ownerActor, p.ID, CreateTaskRequest{Title: "theirs", AssigneeID: &other.ID})
	require.NoError(t, err)

	done := domain.TaskStatusDone
	updated, err := e.projectSvc.UpdateTask(ctx, memberActor, mine.ID, UpdateTaskRequest{Status: &done})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusDone, updated.Status)

	_, err = e.projectSvc.UpdateTask(ctx, memberActor, mine.ID, UpdateTaskRequest{Title: ptr("renamed")})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = e.projectSvc.UpdateTask(ctx, memberActor, theirs.ID, UpdateTaskRequest{Status: &done})
	assert.ErrorIs(t, err, ErrForbidden)

	assert.ErrorIs(t, e.projectSvc.DeleteTask(ctx, memberActor, mine.ID), ErrForbidden)

	// full edit with tasks:manage
	renamed, err := e.projectSvc.UpdateTask(ctx, ownerActor, theirs.ID, UpdateTaskRequest{Title: ptr("reassigned"), AssigneeID: &member.ID})
	require.NoError(t, err)
	assert.Equal(t, "reassigned", renamed.Title)
	assert.Equal(t, member.ID, *renamed.AssigneeID)

	require.NoError(t, e.projectSvc.DeleteTask(ctx, ownerActor, theirs.ID))
	assert.ErrorIs(t, e.projectSvc.DeleteTask(ctx, ownerActor, theirs.ID), ErrNotFound)
}

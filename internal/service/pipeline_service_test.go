package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/domain"
)

func newDeal(t *testing.T, e *testEnv, actor Actor, clientID uuid.UUID, title string, stage domain.DealStage) *domain.Deal {
	t.Helper()
	d, err := e.pipelineSvc.CreateDeal(context.Background(), actor, CreateDealRequest{
		ClientID: clientID,
		Title:    title,
		Value:    1000,
		Stage:    stage,
	})
	require.NoError(t, err)
	return d
}

func titles(deals []*domain.Deal) []string {
	out := make([]string, 0, len(deals))
	for _, d := range deals {
		out = append(out, d.Title)
	}
	return out
}

func TestClientLifecycle(t *testing.T) {
	e := newTestEnv(t)
	manager := e.addStaff(t, "sales@metatech.test", domain.RoleStaffManager)
	actor := actorOn(manager, e.staffRoot())
	ctx := context.Background()

	c, err := e.pipelineSvc.CreateClient(ctx, actor, ClientRequest{Name: " Initech ", Email: ptr("bill@initech.test")})
	require.NoError(t, err)
	assert.Equal(t, "Initech", c.Name)
	assert.Equal(t, manager.ID, *c.OwnerID)

	newDeal(t, e, actor, c.ID, "Licenses", "")

	detail, err := e.pipelineSvc.GetClient(ctx, actor, c.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Deals, 1)

	updated, err := e.pipelineSvc.UpdateClient(ctx, actor, c.ID, ClientRequest{Name: "Initech LLC"})
	require.NoError(t, err)
	assert.Equal(t, "Initech LLC", updated.Name)
	assert.Nil(t, updated.Email)

	list, total, err := e.pipelineSvc.ListClients(ctx, actor, "llc", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, c.ID, list[0].ID)

	require.NoError(t, e.pipelineSvc.DeleteClient(ctx, actor, c.ID))
	_, err = e.pipelineSvc.GetClient(ctx, actor, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, e.pipelineSvc.DeleteClient(ctx, actor, c.ID), ErrNotFound)
}

func TestPipelineIsInternalOnly(t *testing.T) {
	e := newTestEnv(t)
	member := e.addStaff(t, "member@metatech.test", domain.RoleStaffMember)
	acme := e.addCompany(t, "acme", domain.StatusActive)
	owner := e.addCompanyUser(t, acme, "owner@acme.test", domain.RoleCompanyOwner)
	ctx := context.Background()

	_, _, err := e.pipelineSvc.ListClients(ctx, actorOn(owner, e.tenant(acme)), "", 10, 0)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = e.pipelineSvc.Board(ctx, actorOn(owner, e.tenant(acme)))
	assert.ErrorIs(t, err, ErrForbidden)

	// members can look but not touch
	_, _, err = e.pipelineSvc.ListClients(ctx, actorOn(member, e.staffRoot()), "", 10, 0)
	assert.NoError(t, err)
	_, err = e.pipelineSvc.CreateClient(ctx, actorOn(member, e.staffRoot()), ClientRequest{Name: "x"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCreateDealDefaults(t *testing.T) {
	e := newTestEnv(t)
	manager := e.addStaff(t, "sales@metatech.test", domain.RoleStaffManager)
	actor := actorOn(manager, e.staffRoot())
	ctx := context.Background()
	c, err := e.pipelineSvc.CreateClient(ctx, actor, ClientRequest{Name: "Initech"})
	require.NoError(t, err)

	first := newDeal(t, e, actor, c.ID, "first", "")
	second := newDeal(t, e, actor, c.ID, "second", "")
	assert.Equal(t, domain.DealStageLead, first.Stage)
	assert.Equal(t, 0, first.Position)
	assert.Equal(t, 1, second.Position)
	assert.Equal(t, "USD", first.Currency)
	assert.Equal(t, manager.ID, *first.OwnerID)
	assert.Nil(t, first.ClosedAt)

	won := newDeal(t, e, actor, c.ID, "won", domain.DealStageWon)
	assert.NotNil(t, won.ClosedAt)

	eur, err := e.pipelineSvc.CreateDeal(ctx, actor, CreateDealRequest{ClientID: c.ID, Title: "eur", Currency: "eur"})
	require.NoError(t, err)
	assert.Equal(t, "EUR", eur.Currency)

	_, err = e.pipelineSvc.CreateDeal(ctx, actor, CreateDealRequest{ClientID: c.ID, Title: "x", Stage: "limbo"})
	assert.ErrorIs(t, err, ErrInvalidStage)

	_, err = e.pipelineSvc.CreateDeal(ctx, actor, CreateDealRequest{ClientID: uuid.New(), Title: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBoardHasEveryStage(t *testing.T) {
	e := newTestEnv(t)
	manager := e.addStaff(t, "sales@metatech.test", domain.RoleStaffManager)
	actor := actorOn(manager, e.staffRoot())
	c, err := e.pipelineSvc.CreateClient(context.Background(), actor, ClientRequest{Name: "Initech"})
	require.NoError(t, err)
	newDeal(t, e, actor, c.ID, "a", domain.DealStageLead)
	newDeal(t, e, actor, c.ID, "b", domain.DealStageLead)
	newDeal(t, e, actor, c.ID, "c", domain.DealStageProposal)

	board, err := e.pipelineSvc.Board(context.Background(), actor)
	require.NoError(t, err)
	require.Len(t, board, len(domain.DealStages))

	for i, col := range board {
		assert.Equal(t, domain.DealStages[i], col.Stage)
		assert.NotNil(t, col.Deals)
	}
	assert.Equal(t, []string{"a", "b"}, titles(board[0].Deals))
	assert.Equal(t, int64(2000), board[0].TotalValue)
	assert.Equal(t, 1, board[2].Count)
	assert.Equal(t, 0, board[4].Count)
}

func TestMoveDealReordersColumns(t *testing.T) {
	e := newTestEnv(t)
	manager := e.addStaff(t, "sales@metatech.test", domain.RoleStaffManager)
	actor := actorOn(manager, e.staffRoot())
	ctx := context.Background()
	c, err := e.pipelineSvc.CreateClient(ctx, actor, ClientRequest{Name: "Initech"})
	require.NoError(t, err)

	a := newDeal(t, e, actor, c.ID, "a", domain.DealStageLead)
	newDeal(t, e, actor, c.ID, "b", domain.DealStageLead)
	newDeal(t, e, actor, c.ID, "c", domain.DealStageLead)
	x := newDeal(t, e, actor, c.ID, "x", domain.DealStageQualified)

	moved, err := e.pipelineSvc.MoveDeal(ctx, actor, a.ID, MoveDealRequest{Stage: domain.DealStageQualified, Position: 0})
	require.NoError(t, err)
	assert.Equal(t, domain.DealStageQualified, moved.Stage)
	assert.Equal(t, 0, moved.Position)

	board, err := e.pipelineSvc.Board(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, titles(board[0].Deals))
	assert.Equal(t, []string{"a", "x"}, titles(board[1].Deals))

	// past the end appends
	moved, err = e.pipelineSvc.MoveDeal(ctx, actor, x.ID, MoveDealRequest{Stage: domain.DealStageLead, Position: 99})
	require.NoError(t, err)
	assert.Equal(t, 2, moved.Position)

	won, err := e.pipelineSvc.MoveDeal(ctx, actor, a.ID, MoveDealRequest{Stage: domain.DealStageWon})
	require.NoError(t, err)
	assert.NotNil(t, won.ClosedAt)

	reopened, err := e.pipelineSvc.MoveDeal(ctx, actor, a.ID, MoveDealRequest{Stage: domain.DealStageNegotiation})
	require.NoError(t, err)
	assert.Nil(t, reopened.ClosedAt)

	_, err = e.pipelineSvc.MoveDeal(ctx, actor, a.ID, MoveDealRequest{Stage: "limbo"})
	assert.ErrorIs(t, err, ErrInvalidStage)
	_, err = e.pipelineSvc.MoveDeal(ctx, actor, uuid.New(), MoveDealRequest{Stage: domain.DealStageLead})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateDealLeavesStage(t *testing.T) {
	e := newTestEnv(t)
	manager := e.addStaff(t, "sales@metatech.test", domain.RoleStaffManager)
	actor := actorOn(manager, e.staffRoot())
	ctx := context.Background()
	c, err := e.pipelineSvc.CreateClient(ctx, actor, ClientRequest{Name: "Initech"})
	require.NoError(t, err)
	d := newDeal(t, e, actor, c.ID, "a", domain.DealStageProposal)

	updated, err := e.pipelineSvc.UpdateDeal(ctx, actor, d.ID, UpdateDealRequest{Title: ptr("renamed"), Value: ptr(int64(42))})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
	assert.Equal(t, int64(42), updated.Value)
	assert.Equal(t, domain.DealStageProposal, updated.Stage)

	got, err := e.pipelineSvc.GetDeal(ctx, actor, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)

	require.NoError(t, e.pipelineSvc.DeleteDeal(ctx, actor, d.ID))
	_, err = e.pipelineSvc.GetDeal(ctx, actor, d.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListDealsFiltersByClient(t *testing.T) {
	e := newTestEnv(t)
	manager := e.addStaff(t, "sales@metatech.test", domain.RoleStaffManager)
	actor := actorOn(manager, e.staffRoot())
	ctx := context.Background()

	initech, err := e.pipelineSvc.CreateClient(ctx, actor, ClientRequest{Name: "Initech"})
	require.NoError(t, err)
	globex, err := e.pipelineSvc.CreateClient(ctx, actor, ClientRequest{Name: "Globex"})
	require.NoError(t, err)
	newDeal(t, e, actor, initech.ID, "licenses", "")
	newDeal(t, e, actor, globex.ID, "support", "")

	all, err := e.pipelineSvc.ListDeals(ctx, actor, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := e.pipelineSvc.ListDeals(ctx, actor, &globex.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"support"}, titles(one))
}

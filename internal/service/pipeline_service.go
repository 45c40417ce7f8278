package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/domain"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/policy"
	"github.com/otahir-21/MetatechCrmV1-sub001/internal/repository"
)

type ClientRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=255"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	CompanyName *string `json:"company_name,omitempty" validate:"omitempty,max=255"`
	Notes       *string `json:"notes,omitempty"`
}

// ClientDetail is a client together with its deals
type ClientDetail struct {
	*domain.Client
	Deals []*domain.Deal `json:"deals"`
}

type CreateDealRequest struct {
	ClientID uuid.UUID        `json:"client_id" validate:"required"`
	Title    string           `json:"title" validate:"required,min=1,max=255"`
	Value    int64            `json:"value" validate:"gte=0"`
	Currency string           `json:"currency" validate:"omitempty,len=3"`
	Stage    domain.DealStage `json:"stage,omitempty"`
	OwnerID  *uuid.UUID       `json:"owner_id,omitempty"`
}

type UpdateDealRequest struct {
	Title    *string    `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Value    *int64     `json:"value,omitempty" validate:"omitempty,gte=0"`
	Currency *string    `json:"currency,omitempty" validate:"omitempty,len=3"`
	OwnerID  *uuid.UUID `json:"owner_id,omitempty"`
}

type MoveDealRequest struct {
	Stage    domain.DealStage `json:"stage" validate:"required"`
	Position int              `json:"position" validate:"gte=0"`
}

// BoardColumn is one kanban column; the board always has every stage
type BoardColumn struct {
	Stage      domain.DealStage `json:"stage"`
	Deals      []*domain.Deal   `json:"deals"`
	Count      int              `json:"count"`
	TotalValue int64            `json:"total_value"`
}

// PipelineService manages clients and deals for the internal sales team
type PipelineService struct {
	clientRepo repository.ClientRepository
	dealRepo   repository.DealRepository
	guard      *Guard
	logger     *zap.Logger
}

func NewPipelineService(clientRepo repository.ClientRepository, dealRepo repository.DealRepository, guard *Guard, logger *zap.Logger) *PipelineService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PipelineService{clientRepo: clientRepo, dealRepo: dealRepo, guard: guard, logger: logger}
}

func (s *PipelineService) CreateClient(ctx context.Context, actor Actor, req ClientRequest) (*domain.Client, error) {
	if err := s.guard.Require(actor, policy.ClientsManage); err != nil {
		return nil, err
	}

	now := time.Now()
	owner := actor.User.ID
	c := &domain.Client{
		ID:        uuid.New(),
		OwnerID:   &owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyClient(c, req)
	if err := s.clientRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PipelineService) ListClients(ctx context.Context, actor Actor, search string, limit, offset int) ([]*domain.Client, int, error) {
	if err := s.guard.Require(actor, policy.ClientsView); err != nil {
		return nil, 0, err
	}
	return s.clientRepo.List(ctx, strings.TrimSpace(search), limit, offset)
}

func (s *PipelineService) GetClient(ctx context.Context, actor Actor, id uuid.UUID) (*ClientDetail, error) {
	if err := s.guard.Require(actor, policy.ClientsView); err != nil {
		return nil, err
	}
	c, err := s.clientRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}

	deals := []*domain.Deal{}
	if s.guard.Can(actor, policy.DealsView) {
		if deals, err = s.dealRepo.ListByClient(ctx, id); err != nil {
			return nil, err
		}
	}
	return &ClientDetail{Client: c, Deals: deals}, nil
}

func (s *PipelineService) UpdateClient(ctx context.Context, actor Actor, id uuid.UUID, req ClientRequest) (*domain.Client, error) {
	if err := s.guard.Require(actor, policy.ClientsManage); err != nil {
		return nil, err
	}
	c, err := s.clientRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}

	applyClient(c, req)
	c.UpdatedAt = time.Now()
	if err := s.clientRepo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PipelineService) DeleteClient(ctx context.Context, actor Actor, id uuid.UUID) error {
	if err := s.guard.Require(actor, policy.ClientsManage); err != nil {
		return err
	}
	return notFound(s.clientRepo.Delete(ctx, id))
}

func applyClient(c *domain.Client, req ClientRequest) {
	c.Name = strings.TrimSpace(req.Name)
	c.Email = req.Email
	c.Phone = req.Phone
	c.CompanyName = req.CompanyName
	c.Notes = req.Notes
}

func (s *PipelineService) CreateDeal(ctx context.Context, actor Actor, req CreateDealRequest) (*domain.Deal, error) {
	if err := s.guard.Require(actor, policy.DealsManage); err != nil {
		return nil, err
	}

	stage := req.Stage
	if stage == "" {
		stage = domain.DealStageLead
	}
	if !stage.Valid() {
		return nil, ErrInvalidStage
	}
	if _, err := s.clientRepo.GetByID(ctx, req.ClientID); err != nil {
		return nil, notFound(err)
	}

	position, err := s.dealRepo.NextPosition(ctx, stage)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	owner := req.OwnerID
	if owner == nil {
		id := actor.User.ID
		owner = &id
	}
	d := &domain.Deal{
		ID:        uuid.New(),
		ClientID:  req.ClientID,
		Title:     strings.TrimSpace(req.Title),
		Value:     req.Value,
		Currency:  currency(req.Currency),
		Stage:     stage,
		Position:  position,
		OwnerID:   owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if stage.Closed() {
		d.ClosedAt = &now
	}
	if err := s.dealRepo.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *PipelineService) GetDeal(ctx context.Context, actor Actor, id uuid.UUID) (*domain.Deal, error) {
	if err := s.guard.Require(actor, policy.DealsView); err != nil {
		return nil, err
	}
	d, err := s.dealRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return d, nil
}

// ListDeals returns every deal, or the deals of one client
func (s *PipelineService) ListDeals(ctx context.Context, actor Actor, clientID *uuid.UUID) ([]*domain.Deal, error) {
	if err := s.guard.Require(actor, policy.DealsView); err != nil {
		return nil, err
	}
	if clientID != nil {
		return s.dealRepo.ListByClient(ctx, *clientID)
	}
	return s.dealRepo.ListAll(ctx)
}

// UpdateDeal edits deal attributes; stage and position change through MoveDeal
func (s *PipelineService) UpdateDeal(ctx context.Context, actor Actor, id uuid.UUID, req UpdateDealRequest) (*domain.Deal, error) {
	if err := s.guard.Require(actor, policy.DealsManage); err != nil {
		return nil, err
	}
	d, err := s.dealRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}

	if req.Title != nil {
		d.Title = strings.TrimSpace(*req.Title)
	}
	if req.Value != nil {
		d.Value = *req.Value
	}
	if req.Currency != nil {
		d.Currency = currency(*req.Currency)
	}
	if req.OwnerID != nil {
		d.OwnerID = req.OwnerID
	}
	d.UpdatedAt = time.Now()

	if err := s.dealRepo.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *PipelineService) DeleteDeal(ctx context.Context, actor Actor, id uuid.UUID) error {
	if err := s.guard.Require(actor, policy.DealsManage); err != nil {
		return err
	}
	return notFound(s.dealRepo.Delete(ctx, id))
}

// Board groups every deal by stage in kanban order
func (s *PipelineService) Board(ctx context.Context, actor Actor) ([]BoardColumn, error) {
	if err := s.guard.Require(actor, policy.DealsView); err != nil {
		return nil, err
	}
	deals, err := s.dealRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	columns := make([]BoardColumn, len(domain.DealStages))
	index := make(map[domain.DealStage]int, len(domain.DealStages))
	for i, stage := range domain.DealStages {
		columns[i] = BoardColumn{Stage: stage, Deals: []*domain.Deal{}}
		index[stage] = i
	}
	for _, d := range deals {
		i, ok := index[d.Stage]
		if !ok {
			continue
		}
		columns[i].Deals = append(columns[i].Deals, d)
		columns[i].Count++
		columns[i].TotalValue += d.Value
	}
	return columns, nil
}

// MoveDeal places a deal at position within stage; positions past the end
// of the column append.
func (s *PipelineService) MoveDeal(ctx context.Context, actor Actor, id uuid.UUID, req MoveDealRequest) (*domain.Deal, error) {
	if err := s.guard.Require(actor, policy.DealsManage); err != nil {
		return nil, err
	}
	if !req.Stage.Valid() {
		return nil, ErrInvalidStage
	}
	position := req.Position
	if position < 0 {
		position = 0
	}

	if err := s.dealRepo.Move(ctx, id, req.Stage, position); err != nil {
		return nil, notFound(err)
	}
	d, err := s.dealRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}

	s.logger.Debug("deal moved",
		zap.String("deal_id", id.String()),
		zap.String("stage", string(req.Stage)),
		zap.Int("position", d.Position),
	)
	return d, nil
}

func currency(code string) string {
	if code == "" {
		return "USD"
	}
	return strings.ToUpper(code)
}

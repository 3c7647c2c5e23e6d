package service

import (
	"context"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/recurflow/internal/clock"
	historydomain "github.com/smallbiznis/recurflow/internal/history/domain"
	"github.com/smallbiznis/recurflow/pkg/db/option"
	"github.com/smallbiznis/recurflow/pkg/db/pagination"
	"github.com/smallbiznis/recurflow/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	clock clock.Clock
	notes repository.Repository[historydomain.HistoryNote]
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Notes repository.Repository[historydomain.HistoryNote]
}

func NewService(p ServiceParam) historydomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("history.service"),
		genID: p.GenID,
		clock: p.Clock,
		notes: p.Notes,
	}
}

func (s *Service) CreateHistoryNote(ctx context.Context, tx *gorm.DB, req historydomain.CreateNoteRequest) (*historydomain.HistoryNote, error) {
	note := &historydomain.HistoryNote{
		ID:        s.genID.Generate(),
		OrderID:   req.OrderID,
		AuthorID:  req.Actor.AuthorID(),
		Type:      req.Type,
		Status:    req.Status,
		Message:   req.Message,
		CreatedAt: s.clock.Now(),
	}

	store := s.notes
	if tx != nil {
		store = s.notes.WithTrx(tx)
	}
	if err := store.Create(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *Service) ListHistoryNotes(ctx context.Context, req historydomain.ListNotesRequest) (*historydomain.ListNotesResponse, error) {
	filter := &historydomain.HistoryNote{OrderID: req.OrderID}
	if req.Type != nil {
		filter.Type = *req.Type
	}

	notes, err := s.notes.Find(ctx, filter,
		option.WithSortBy("created_at desc"),
		option.ApplyPagination(req.Pagination),
	)
	if err != nil {
		return nil, err
	}

	size := req.PageSize
	if size <= 0 {
		size = 10
	}
	pageInfo := pagination.BuildCursorPageInfo(notes, int32(size), func(n *historydomain.HistoryNote) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{
			ID:        strconv.FormatInt(int64(n.ID), 10),
			CreatedAt: n.CreatedAt.Format("2006-01-02T15:04:05.999999999Z07:00"),
		})
		return token
	})

	if len(notes) > size {
		notes = notes[:size]
	}
	return &historydomain.ListNotesResponse{Data: notes, PageInfo: pageInfo}, nil
}

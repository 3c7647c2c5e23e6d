package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Product, error)
	ListByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Product, error)
}

var (
	ErrProductNotFound = errors.New("product_not_found")
)

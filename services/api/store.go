package api

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"

	"flowcheck/pkg/bus"
	gos3 "flowcheck/pkg/s3"
)

// Store holds external dependencies required by the API layer. S3 and Bus
// are optional; handlers that need them respond 424 when absent.
type Store struct {
	DB  *pgxpool.Pool
	ORM *gorm.DB
	S3  *gos3.Client
	Bus *bus.Bus
}

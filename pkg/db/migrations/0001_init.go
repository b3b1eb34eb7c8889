package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

type Contract struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey"`
	Name        string            `gorm:"type:text;not null"`
	Description string            `gorm:"type:text"`
	Data        datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt   time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

type FixturePack struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ContractID uuid.UUID      `gorm:"type:uuid;not null;index"`
	Fixtures   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt  time.Time      `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	Contract   Contract       `gorm:"foreignKey:ContractID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type AssertionPack struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ContractID uuid.UUID      `gorm:"type:uuid;not null;index"`
	Assertions datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt  time.Time      `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	Contract   Contract       `gorm:"foreignKey:ContractID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type Run struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ContractID *uuid.UUID     `gorm:"type:uuid;index"`
	Status     string         `gorm:"type:text;not null"`
	StartedAt  *time.Time     `gorm:"type:timestamptz"`
	FinishedAt *time.Time     `gorm:"type:timestamptz"`
	Results    datatypes.JSON `gorm:"type:jsonb"`
	ReportKey  string         `gorm:"type:text"`
	Note       string         `gorm:"type:text"`
	Contract   Contract       `gorm:"foreignKey:ContractID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

type RunEvent struct {
	ID        int64             `gorm:"type:bigserial;primaryKey"`
	RunID     uuid.UUID         `gorm:"type:uuid;not null;index"`
	Status    string            `gorm:"type:text;not null"`
	Details   datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

type Artifact struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey"`
	RunID     *uuid.UUID        `gorm:"type:uuid;index"`
	Kind      string            `gorm:"type:text;not null"`
	SHA256    string            `gorm:"type:text;not null"`
	URL       string            `gorm:"type:text;not null"`
	Meta      datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

type Token struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"type:text;not null"`
	Token     string    `gorm:"type:text;uniqueIndex;not null"`
	ExpiresAt time.Time `gorm:"type:timestamptz;not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

type Audit struct {
	ID      int64             `gorm:"type:bigserial;primaryKey"`
	Actor   string            `gorm:"type:text;not null"`
	Action  string            `gorm:"type:text;not null"`
	Obj     string            `gorm:"type:text"`
	Details datatypes.JSONMap `gorm:"type:jsonb"`
	At      time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

func (Audit) TableName() string { return "audit" }

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).AutoMigrate(
		&Contract{},
		&FixturePack{},
		&AssertionPack{},
		&Run{},
		&RunEvent{},
		&Artifact{},
		&Token{},
		&Audit{},
	); err != nil {
		return err
	}

	m := gormDB.WithContext(ctx).Migrator()
	if err := m.CreateConstraint(&FixturePack{}, "Contract"); err != nil {
		return err
	}
	if err := m.CreateConstraint(&AssertionPack{}, "Contract"); err != nil {
		return err
	}
	if err := m.CreateConstraint(&Run{}, "Contract"); err != nil {
		return err
	}

	return nil
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).Migrator().DropTable(
		&Audit{},
		&Token{},
		&Artifact{},
		&RunEvent{},
		&Run{},
		&AssertionPack{},
		&FixturePack{},
		&Contract{},
	); err != nil {
		return err
	}

	return nil
}

package inits

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/sarulabs/di/v2"

	"github.com/zekurio/hearth/internal/models"
	"github.com/zekurio/hearth/internal/services/database"
	"github.com/zekurio/hearth/internal/services/database/dberr"
	"github.com/zekurio/hearth/internal/services/database/sqldb"
	"github.com/zekurio/hearth/internal/util/static"
)

func InitDatabase(ctn di.Container) (database.Database, error) {
	cfg := ctn.Get(static.DiConfig).(models.Config)

	var (
		db  database.Database
		err error
	)

	switch cfg.Database.Driver {
	case "postgres":
		db, err = sqldb.InitPostgres(cfg.Postgres)
	case "sqlite":
		db, err = sqldb.InitSQLite(cfg.SQLite)
	default:
		return nil, fmt.Errorf("%w: %q", dberr.ErrUnknownDriver, cfg.Database.Driver)
	}
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "driver", cfg.Database.Driver)

	return db, nil
}

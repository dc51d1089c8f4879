package sqldb

import (
	"fmt"

	_ "github.com/lib/pq"

	"github.com/zekurio/hearth/internal/models"
)

func InitPostgres(c models.PostgresConfig) (*SQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.Username, c.Password, c.Database)
	return open("postgres", dsn, "postgres", nil)
}

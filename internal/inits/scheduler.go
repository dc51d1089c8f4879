package inits

import (
	"github.com/sarulabs/di/v2"

	"github.com/zekurio/hearth/internal/services/scheduler"
)

func InitScheduler(ctn di.Container) scheduler.Provider {
	return scheduler.New()
}

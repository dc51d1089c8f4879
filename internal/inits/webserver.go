package inits

import (
	"github.com/charmbracelet/log"
	"github.com/sarulabs/di/v2"

	"github.com/zekurio/hearth/internal/models"
	"github.com/zekurio/hearth/internal/services/autovoice"
	"github.com/zekurio/hearth/internal/services/webserver"
	"github.com/zekurio/hearth/internal/util/static"
)

// InitWebServer returns nil if the web server is disabled,
// otherwise the server is started in the background.
func InitWebServer(ctn di.Container) *webserver.WebServer {
	cfg := ctn.Get(static.DiConfig).(models.Config)
	if !cfg.WebServer.Enabled {
		return nil
	}

	ws := webserver.New(cfg.WebServer, ctn.Get(static.DiAutovoice).(autovoice.AutovoiceProvider))

	go func() {
		if err := ws.ListenAndServeBlocking(); err != nil {
			log.Fatal("Failed running web server", "err", err)
		}
	}()

	return ws
}

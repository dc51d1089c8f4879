package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
	"github.com/sarulabs/di/v2"
	"github.com/zekrotja/ken"

	"github.com/zekurio/hearth/internal/inits"
	"github.com/zekurio/hearth/internal/models"
	"github.com/zekurio/hearth/internal/services/config"
	"github.com/zekurio/hearth/internal/services/database"
	"github.com/zekurio/hearth/internal/services/permissions"
	"github.com/zekurio/hearth/internal/services/scheduler"
	"github.com/zekurio/hearth/internal/services/webserver"
	"github.com/zekurio/hearth/internal/util/embedded"
	"github.com/zekurio/hearth/internal/util/static"
)

var (
	flagConfigPath = flag.String("c", "config.toml", "Path to config file")
)

func main() {

	flag.Parse()

	if embedded.Release == "true" {
		log.SetLevel(log.InfoLevel)
	} else {
		log.SetLevel(log.DebugLevel)
	}

	diBuilder, err := di.NewBuilder()
	if err != nil {
		log.Fatal("Failed to create DI builder", "err", err)
	}

	// Config
	err = diBuilder.Add(di.Def{
		Name: static.DiConfig,
		Build: func(ctn di.Container) (interface{}, error) {
			return config.Parse(*flagConfigPath, "HEARTH_", models.DefaultConfig)
		},
	})
	if err != nil {
		log.Fatal("Config parsing failed", "err", err)
	}

	// Database
	err = diBuilder.Add(di.Def{
		Name: static.DiDatabase,
		Build: func(ctn di.Container) (interface{}, error) {
			return inits.InitDatabase(ctn)
		},
		Close: func(obj interface{}) error {
			log.Info("Shutting down database connection...")
			return obj.(database.Database).Close()
		},
	})
	if err != nil {
		log.Fatal("Database creation failed", "err", err)
	}

	// Permissions
	err = diBuilder.Add(di.Def{
		Name: static.DiPermissions,
		Build: func(ctn di.Container) (interface{}, error) {
			return permissions.InitPermissions(ctn), nil
		},
	})
	if err != nil {
		log.Fatal("Permissions creation failed", "err", err)
	}

	// Discord Session
	err = diBuilder.Add(di.Def{
		Name: static.DiDiscord,
		Build: func(ctn di.Container) (interface{}, error) {
			return inits.InitDiscord(ctn)
		},
		Close: func(obj interface{}) error {
			log.Info("Shutting down Discord session...")
			return obj.(*discordgo.Session).Close()
		},
	})
	if err != nil {
		log.Fatal("Discord creation failed", "err", err)
	}

	// Discord Client
	err = diBuilder.Add(di.Def{
		Name: static.DiDiscordClient,
		Build: func(ctn di.Container) (interface{}, error) {
			return inits.InitDiscordClient(ctn), nil
		},
	})
	if err != nil {
		log.Fatal("Discord client creation failed", "err", err)
	}

	// Ken
	err = diBuilder.Add(di.Def{
		Name: static.DiCommandHandler,
		Build: func(ctn di.Container) (interface{}, error) {
			return inits.InitKen(ctn)
		},
		Close: func(obj interface{}) error {
			return obj.(*ken.Ken).Unregister()
		},
	})
	if err != nil {
		log.Fatal("Command handler creation failed", "err", err)
	}

	// Autovoice
	err = diBuilder.Add(di.Def{
		Name: static.DiAutovoice,
		Build: func(ctn di.Container) (interface{}, error) {
			return inits.InitAutovoice(ctn), nil
		},
	})
	if err != nil {
		log.Fatal("Autovoice creation failed", "err", err)
	}

	// Scheduler
	err = diBuilder.Add(di.Def{
		Name: static.DiScheduler,
		Build: func(ctn di.Container) (interface{}, error) {
			return inits.InitScheduler(ctn), nil
		},
		Close: func(obj interface{}) error {
			log.Info("Stopping scheduler...")
			obj.(scheduler.Provider).Stop()
			return nil
		},
	})
	if err != nil {
		log.Fatal("Scheduler creation failed", "err", err)
	}

	// Web Server
	err = diBuilder.Add(di.Def{
		Name: static.DiWebserver,
		Build: func(ctn di.Container) (interface{}, error) {
			return inits.InitWebServer(ctn), nil
		},
		Close: func(obj interface{}) error {
			ws := obj.(*webserver.WebServer)
			if ws == nil {
				return nil
			}
			log.Info("Shutting down web server...")
			return ws.Close()
		},
	})
	if err != nil {
		log.Fatal("Web server creation failed", "err", err)
	}

	// Build dependency injection container
	ctn := diBuilder.Build()
	// Tear down dependency instances
	defer func(ctn di.Container) {
		err := ctn.DeleteWithSubContainers()
		if err != nil {
			log.Fatal("Failed to tear down dependency instances", "err", err)
		}
	}(ctn)

	// Fail early on invalid configuration or an unreachable database
	if _, err = ctn.SafeGet(static.DiConfig); err != nil {
		log.Fatal("Config parsing failed", "err", err)
	}
	if _, err = ctn.SafeGet(static.DiDatabase); err != nil {
		log.Fatal("Database initialization failed", "err", err)
	}

	inits.AddListeners(ctn)

	if _, err = ctn.SafeGet(static.DiCommandHandler); err != nil {
		log.Fatal("Command handler initialization failed", "err", err)
	}

	ctn.Get(static.DiWebserver)

	s := ctn.Get(static.DiDiscord).(*discordgo.Session)
	err = s.Open()
	if err != nil {
		log.Fatal("Failed to open Discord connection", "err", err)
	}

	// Block main go routine until one of the following
	// specified exit sys calls occure.
	log.Info("Started event loop. Stop with CTRL-C...")

	log.Info("Initialization finished")
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

}

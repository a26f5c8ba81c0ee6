package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/jengzang/roadsim-backend-go/internal/api"
	"github.com/jengzang/roadsim-backend-go/internal/config"
	"github.com/jengzang/roadsim-backend-go/internal/database"
	"github.com/jengzang/roadsim-backend-go/internal/repository"
	"github.com/jengzang/roadsim-backend-go/internal/service"
)

func main() {
	// 加载配置
	cfg := config.Load()
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.Warnf("[Server] unknown log level %q, keeping %s", cfg.LogLevel, log.GetLevel())
	}
	if err := cfg.Sim.Validate(); err != nil {
		log.Fatalf("Invalid simulation defaults: %v", err)
	}

	// 初始化数据库
	db, err := database.Open(database.Config{Path: cfg.DBPath})
	if err != nil {
		log.Fatal("Failed to initialize database: ", err)
	}
	defer db.Close()

	networks := service.NewNetworkService(repository.NewNetworkRepository(db))
	runs := service.NewRunService(repository.NewRunRepository(db), networks, cfg.Sim)
	jobs := service.NewJobService(repository.NewJobRepository(db), runs)
	if err := jobs.Recover(); err != nil {
		log.Fatal("Failed to recover jobs: ", err)
	}

	// 初始化路由
	router := api.SetupRouter(cfg, networks, runs, jobs)

	// 启动服务器
	log.Printf("Server starting on port %s", cfg.Port)
	if err := router.Run(cfg.Port); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"snowfight/server"
	"snowfight/tilemap"
)

// snowfight 入口：加载地图，启动 HTTP + WebSocket 服务与房间管理器
func main() {
	cfg, err := server.LoadConfig(".env")
	if err != nil {
		panic(err)
	}
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "server listen address, e.g. :5000")
	flag.StringVar(&cfg.MapPath, "map", cfg.MapPath, "path to the .tmx map")
	flag.StringVar(&cfg.StaticDir, "static", cfg.StaticDir, "directory served at /")
	flag.StringVar(&cfg.LogFile, "log", cfg.LogFile, "log file path")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flag.IntVar(&cfg.TickRate, "tick-rate", cfg.TickRate, "simulation ticks per second")
	flag.StringVar(&cfg.Codec, "codec", cfg.Codec, "wire codec: json or msgpack")
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	if err := server.InitLogger(cfg.LogFile, cfg.LogLevel); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	// 没有地图无法运行，启动时直接退出
	world, err := tilemap.Load(cfg.MapPath)
	if err != nil {
		server.Log.Fatalw("load map", "path", cfg.MapPath, "err", err)
	}
	rows, cols := world.Grid.Dimensions()
	server.Log.Infow("map loaded", "path", cfg.MapPath, "rows", rows, "cols", cols)
	// 被击中的玩家回到原点
	if world.Grid.SolidAt(0, 0) {
		server.Log.Warnw("origin cell is solid, hit players will be stuck", "path", cfg.MapPath)
	}

	rm, err := server.NewRoomManager(world, cfg)
	if err != nil {
		server.Log.Fatalw("room manager", "err", err)
	}
	// 先预创建一个默认房间，便于快速试跑
	_ = rm.GetOrCreateRoom(server.DefaultRoom)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", rm.HandleWS)
	mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))
	// 管理与监控接口
	mux.HandleFunc("/admin/config", rm.HandleAdminConfig)
	mux.HandleFunc("/metrics", rm.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		server.Log.Infof("snowfight listening on %s; open http://localhost%v/", cfg.Addr, cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			server.Log.Fatalf("listen: %v", err)
		}
	}()

	// 优雅退出（Ctrl+C）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	server.Log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		server.Log.Warnw("http shutdown", "err", err)
	}
	rm.Shutdown()
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"phantom_link/internal/config"
	"phantom_link/internal/cryptographic/eip712"
	handleRepo "phantom_link/internal/repository/handle"
	inboxRepo "phantom_link/internal/repository/inbox"
	"phantom_link/internal/repository/memory"
	"phantom_link/internal/service/ledger"
	redisSvc "phantom_link/internal/service/redis"
	"phantom_link/internal/service/relayer"
	"phantom_link/internal/service/server"
	"phantom_link/internal/utils/log"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := log.Init(cfg.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		handles relayer.HandleStore
		inbox   ledger.InboxStore
	)
	switch cfg.Server.Store {
	case "memory":
		log.Warn("using in-memory storage, everything is lost on exit")
		handles = memory.NewHandleRepo()
		inbox = memory.NewInboxRepo()
	default:
		mongoDBClient, err := initMongo(cfg.Server.MongoURI)
		if err != nil {
			log.Fatal("connect to mongo failed", zap.Error(err))
		}
		defer mongoDBClient.Disconnect(context.Background())

		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Server.RedisAddr,
			Password: cfg.Server.RedisPassword,
			DB:       cfg.Server.RedisDB,
		})
		rs := redisSvc.NewRedis(rdb)
		defer rs.Close()
		if err := rs.Ping(ctx); err != nil {
			log.Fatal("connect to redis failed", zap.Error(err))
		}

		handles = handleRepo.NewHandleRepo(mongoDBClient.Database(cfg.Server.MongoDatabase))
		inbox = inboxRepo.NewInboxRepo(rs)
	}

	domain := eip712.Domain{ChainID: cfg.Chain.ID, VerifyingContract: cfg.Chain.VerifyingContract}
	r, err := relayer.NewRelayer(handles, cfg.Server.MasterKey, cfg.Server.ProofSeed, domain, cfg.Chain.ContractAddress)
	if err != nil {
		log.Fatal("init relayer failed", zap.Error(err))
	}
	l := ledger.NewLedger(inbox, r, cfg.Chain.ContractAddress)

	log.Info("devnode starting",
		zap.String("contract", cfg.Chain.ContractAddress.Hex()),
		zap.Int64("chain_id", cfg.Chain.ID),
		zap.String("store", cfg.Server.Store))

	if err := server.NewHttpServer(l, r).Run(ctx, cfg.Server.ListenAddr); err != nil {
		log.Error("server stopped", zap.Error(err))
	}
	log.Info("devnode stopped")
}

func initMongo(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	return client, client.Ping(ctx, nil)
}

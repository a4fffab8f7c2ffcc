package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/screwyforcepush/daily-shit-list/api"
	"github.com/screwyforcepush/daily-shit-list/domain"
	"github.com/screwyforcepush/daily-shit-list/gateway"
	"github.com/screwyforcepush/daily-shit-list/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	var repo gateway.Repository
	var events gateway.EventSink
	switch strings.ToLower(os.Getenv("STORAGE_MODE")) {
	case "", "tables":
		connStr := os.Getenv("STORAGE_CONNECTION_STRING")
		tasksTable := os.Getenv("TASKS_TABLE")
		eventsQueue := os.Getenv("EVENTS_QUEUE")
		if connStr == "" || tasksTable == "" || eventsQueue == "" {
			log.Fatal("missing storage config")
		}
		store, err := storage.New(connStr, tasksTable, eventsQueue)
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		repo, events = store, store
	case "memory":
		mem := storage.NewMemory()
		repo, events = mem, mem
		log.Warn("using in-memory storage; state is lost on restart")
	default:
		log.Fatalf("invalid STORAGE_MODE: %q", os.Getenv("STORAGE_MODE"))
	}

	updatesChannel := "shitlist:updates"
	if v := os.Getenv("UPDATES_CHANNEL"); v != "" {
		updatesChannel = v
	}
	var rc *redis.Client
	if redisConn := os.Getenv("REDIS_CONNECTION_STRING"); redisConn != "" {
		rc = redis.NewClient(redisOptions(redisConn))
		ttl := 5 * time.Minute
		if v := os.Getenv("VIEW_CACHE_TTL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d < 0 {
				log.Fatalf("invalid VIEW_CACHE_TTL: %v", err)
			}
			ttl = d
		}
		repo = storage.NewCache(repo, rc, ttl, updatesChannel)
	}

	policy := sweepPolicyFromEnv()

	logger := log.New()
	gw := gateway.New(repo, events, policy, logger)

	var auth *api.Auth
	authDomain := os.Getenv("AUTH0_DOMAIN")
	audience := os.Getenv("AUTH0_AUDIENCE")
	if authDomain != "" && audience != "" {
		jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", authDomain)
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		auth = api.NewAuth(jwks, audience, "https://"+authDomain+"/")
	} else {
		auth = api.NewAuth(nil, "", "")
	}

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Source"},
	}))
	e.Use(api.GzipRequestMiddleware())

	broker := api.NewBroker()
	api.Register(e, gw, auth, broker, logger)

	if rc != nil {
		go api.SubscribeUpdates(context.Background(), rc, updatesChannel, broker, logger)
	}

	if spec := os.Getenv("SWEEP_SCHEDULE"); spec != "" {
		if policy.IdleAfter <= 0 {
			log.Fatal("SWEEP_SCHEDULE requires SWEEP_IDLE")
		}
		runner := cron.New()
		if _, err := gateway.ScheduleSweep(runner, spec, gw, logger); err != nil {
			log.Fatalf("invalid SWEEP_SCHEDULE: %v", err)
		}
		runner.Start()
	}

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}

func sweepPolicyFromEnv() gateway.SweepPolicy {
	var policy gateway.SweepPolicy
	if v := os.Getenv("SWEEP_IDLE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid SWEEP_IDLE: %v", err)
		}
		policy.IdleAfter = d
	}
	if v := os.Getenv("SWEEP_FROM"); v != "" {
		for _, raw := range strings.Split(v, ",") {
			status, err := domain.ParseStatus(raw)
			if err != nil {
				log.Fatalf("invalid SWEEP_FROM: %v", err)
			}
			policy.From = append(policy.From, status)
		}
	}
	if v := os.Getenv("SWEEP_TO"); v != "" {
		status, err := domain.ParseStatus(v)
		if err != nil {
			log.Fatalf("invalid SWEEP_TO: %v", err)
		}
		policy.To = status
	}
	policy.Reason = os.Getenv("SWEEP_REASON")
	return policy
}

// redisOptions accepts either a redis URL or the comma-separated
// host,password=...,ssl=true form some hosted providers hand out.
func redisOptions(conn string) *redis.Options {
	opts, err := redis.ParseURL(conn)
	if err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}

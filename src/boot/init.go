// Package boot wires the process: database, scheduler, the lifecycle engine
// with its transports, and the background consumers.
package boot

import (
	"context"
	"time"

	"tablebook/src/config"
	"tablebook/src/db"
	"tablebook/src/effects"
	"tablebook/src/lib"
	awslib "tablebook/src/lib/aws"
	"tablebook/src/lib/mailer"
	"tablebook/src/lifecycle"
	"tablebook/src/logger"
	"tablebook/src/models"
	"tablebook/src/notify"
	"tablebook/src/store"
	"tablebook/src/store/memory"
	"tablebook/src/utils"

	"gorm.io/gorm"
)

const eventCacheTTL = 10 * time.Minute

func InitDb() *gorm.DB {
	log := logger.Get()
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.User{},
		&models.Event{},
		&models.Table{},
		&models.Reservation{},
		&models.UserReservation{},
		&models.Refund{},
		&models.AppliedCharge{},
		&models.EffectTask{},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("error migration")
	}

	return db
}

func InitScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		logger.Get().Error().Err(err).Msg("scheduler unavailable, background jobs disabled")
		return
	}
	sched.Start()
	logger.Get().Info().Int("jobs", len(sched.Jobs())).Msg("scheduler started")
}

// InitEngine builds the lifecycle engine for the configured store driver. The
// returned worker is nil when the store cannot hold an effect queue.
func InitEngine(ctx context.Context) (*lifecycle.Engine, *effects.Worker) {
	log := logger.Get()
	engineCfg := config.GetEngineConfig()
	mailCfg := config.GetMailConfig()

	opts := []lifecycle.Option{
		lifecycle.WithLogger(log),
		lifecycle.WithConfig(engineCfg),
	}
	if rdb := lib.GetRedisClient(); rdb != nil {
		opts = append(opts, lifecycle.WithLocker(lib.NewRedisLocker(rdb, engineCfg.LockTTL)))
	}

	var repo store.Repository
	var worker *effects.Worker
	if config.StoreDriver() == "memory" {
		log.Warn().Msg("using in-memory reservation store")
		repo = memory.New()
	} else {
		gdb := InitDb()
		var storeOpts []store.Option
		if rdb := lib.GetRedisClient(); rdb != nil {
			storeOpts = append(storeOpts, store.WithEventStore(
				store.NewCachedEvents(store.New(gdb).Events(), rdb, eventCacheTTL, log),
			))
		}
		repo = store.New(gdb, storeOpts...)

		effectsCfg := config.GetEffectsConfig()
		effectStore := effects.NewGormStore(gdb)
		worker = effects.NewWorker(effectStore, effectsCfg, log)
		opts = append(opts, lifecycle.WithEffects(effects.NewQueue(effectStore, effectsCfg)))
	}

	dispatcher := notify.NewMailDispatcher(newSender(mailCfg), newAlerter(ctx, mailCfg), mailCfg, log)
	engine := lifecycle.NewEngine(repo, lib.NewStripeGateway(lib.GetStripeClient()), dispatcher, opts...)

	if worker != nil {
		for kind, fn := range engine.EffectHandlers() {
			worker.Register(kind, fn)
		}
		if _, err := worker.Start(); err != nil {
			log.Error().Err(err).Msg("could not schedule effects worker")
		}
	}
	return engine, worker
}

func newSender(cfg config.MailConfig) notify.Sender {
	log := logger.Get()
	switch cfg.Transport {
	case "queue":
		if utils.IsLocal() {
			return mailer.NewQueueSender(cfg.EmailQueue, mailer.KafkaProducer())
		}
		client, err := lib.AWSGetSQSClient()
		if err != nil {
			log.Error().Err(err).Msg("sqs unavailable, emails will only be logged")
			break
		}
		return mailer.NewQueueSender(cfg.EmailQueue, mailer.SQSProducer(client))
	case "ses":
		client, err := lib.AWSGetSESClient()
		if err != nil {
			log.Error().Err(err).Msg("ses unavailable, emails will only be logged")
			break
		}
		return awslib.NewSESSender(client)
	case "smtp":
		client, err := lib.GetSMTPClient()
		if err != nil {
			log.Error().Err(err).Msg("smtp unavailable, emails will only be logged")
			break
		}
		return lib.NewSMTPSender(client)
	}
	return notify.LogSender{Log: log}
}

// newAlerter fans check-in alerts out to SNS and FCM, whichever are configured.
func newAlerter(ctx context.Context, cfg config.MailConfig) notify.Alerter {
	log := logger.Get()
	var alerters notify.MultiAlerter
	if cfg.AlertTopic != "" {
		if client, err := lib.AWSGetSNSClient(); err != nil {
			log.Error().Err(err).Msg("sns unavailable for staff alerts")
		} else {
			alerters = append(alerters, awslib.NewSNSAlerter(client, cfg.AlertTopic))
		}
	}
	if cfg.FCMTopic != "" {
		if client, err := lib.GetFirebaseMessaging(ctx); err != nil {
			log.Error().Err(err).Msg("fcm unavailable for staff alerts")
		} else {
			alerters = append(alerters, lib.NewFCMAlerter(client, cfg.FCMTopic))
		}
	}
	switch len(alerters) {
	case 0:
		if utils.IsLocal() {
			return notify.LogAlerter{Log: log}
		}
		return nil
	case 1:
		return alerters[0]
	}
	return alerters
}

// InitBroker starts the email queue consumer when mail goes through a queue.
// It delivers with SMTP.
func InitBroker(ctx context.Context) {
	log := logger.Get()
	cfg := config.GetMailConfig()
	if cfg.Transport != "queue" {
		return
	}
	client, err := lib.GetSMTPClient()
	if err != nil {
		log.Error().Err(err).Msg("email consumer disabled")
		return
	}
	handler := mailer.EmailHandler(lib.NewSMTPSender(client))
	queue := utils.WithSuffix(cfg.EmailQueue)

	if utils.IsLocal() {
		if _, err := lib.KafkaCreateTopics(ctx, queue); err != nil {
			log.Warn().Err(err).Str("topic", queue).Msg("could not create topic")
		}
		if err := lib.KafkaConsumer(ctx, "emails", []string{queue}, handler); err != nil {
			log.Error().Err(err).Msg("kafka email consumer disabled")
		}
		return
	}
	sqsClient, err := lib.AWSGetSQSClient()
	if err != nil {
		log.Error().Err(err).Msg("email consumer disabled")
		return
	}
	awslib.NewSQSConsumer(sqsClient, queue, handler).Listen(ctx)
}

func Shutdown() {
	if sched, err := lib.GetScheduler(); err == nil {
		if err := sched.Shutdown(); err != nil {
			logger.Get().Error().Err(err).Msg("scheduler shutdown")
		}
	}
	lib.KafkaClose()
}

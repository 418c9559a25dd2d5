package lib

import (
	"time"

	"tablebook/src/logger"

	"github.com/go-co-op/gocron/v2"
)

var scheduler gocron.Scheduler

func NewScheduler(s gocron.Scheduler) {
	scheduler = s
}

func GetScheduler() (gocron.Scheduler, error) {
	if scheduler != nil {
		return scheduler, nil
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		logger.Get().Error().Err(err).Msg("error initializing scheduler")
		return nil, err
	}
	scheduler = sched
	return sched, nil
}

// CreateCronJob runs task every interval. Runs never overlap.
func CreateCronJob(name string, interval time.Duration, task any, args ...any) (string, error) {
	sched, err := GetScheduler()
	if err != nil {
		return "", err
	}
	j, err := sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task, args...),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", err
	}
	logger.Get().Info().Str("job", name).Str("id", j.ID().String()).Dur("interval", interval).Msg("scheduled job")
	return j.ID().String(), nil
}

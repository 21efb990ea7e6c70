package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/tkanos/gonfig"
)

const DefaultSchedule = "0 6 * * *"

// ServiceConfig only matters when the job runs as a daemon.
type ServiceConfig struct {
	Schedule         string `json:"SERVICE_SCHEDULE" env:"SERVICE_SCHEDULE"`
	HTTP_Addr        string `json:"SERVICE_HTTP_ADDR" env:"SERVICE_HTTP_ADDR"`
	Redis_URL        string `json:"SERVICE_REDIS_URL" env:"SERVICE_REDIS_URL"`
	Lock_TTL_Seconds int    `json:"SERVICE_LOCK_TTL_SECONDS" env:"SERVICE_LOCK_TTL_SECONDS"`
}

func LoadServiceConfig(dir, env string) (ServiceConfig, error) {
	var serviceConfig ServiceConfig

	err := gonfig.GetConf(fileName(dir, "service", env), &serviceConfig)
	if err != nil {
		return serviceConfig, errors.Wrap(err, "load service config")
	}
	if err := serviceConfig.Validate(); err != nil {
		return serviceConfig, err
	}
	return serviceConfig, nil
}

func (c *ServiceConfig) Validate() error {
	if c.Schedule == "" {
		c.Schedule = DefaultSchedule
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return errors.Wrapf(err, "invalid SERVICE_SCHEDULE %q", c.Schedule)
	}
	if c.HTTP_Addr == "" {
		c.HTTP_Addr = ":8089"
	}
	if c.Lock_TTL_Seconds <= 0 {
		c.Lock_TTL_Seconds = 900
	}
	return nil
}

func (c ServiceConfig) LockTTL() time.Duration {
	return time.Duration(c.Lock_TTL_Seconds) * time.Second
}

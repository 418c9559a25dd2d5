package db

import (
	"tablebook/src/config"
	"tablebook/src/logger"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var db *gorm.DB

func GetDb() *gorm.DB {
	if db != nil {
		return db
	}
	log := logger.Get()
	_db, err := gorm.Open(postgres.Open(config.GetDSN()), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		log.Error().Err(err).Msg("error connecting to database")
		panic(err)
	}
	sqlDB, err := _db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("error establishing connection to database")
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	db = _db
	return _db
}

func NewDB(newdb *gorm.DB) {
	db = newdb
}

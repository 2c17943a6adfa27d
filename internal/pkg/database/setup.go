package database

import (
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sivind/sivind-backend/app/models"
	"github.com/sivind/sivind-backend/internal/pkg/config"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

// SetupDatabase connects with retries and migrates the subscription schema.
func SetupDatabase(cfg config.Database, dev bool) (*gorm.DB, error) {
	gormCfg := &gorm.Config{}
	if !dev {
		gormCfg.Logger = gormlogger.Default.LogMode(gormlogger.Warn)
	}

	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(mysql.New(mysql.Config{
			DSN:                       cfg.DSN(),
			DefaultStringSize:         256,
			DisableDatetimePrecision:  true,
			DontSupportRenameIndex:    true,
			DontSupportRenameColumn:   true,
			SkipInitializeWithVersion: false,
		}), gormCfg)
		if err == nil {
			if err = db.AutoMigrate(&models.Subscription{}); err != nil {
				return nil, err
			}
			return db, nil
		}

		log.Printf("Failed to connect to database (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Printf("Retrying in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}

	return nil, err
}

package main

import (
	"fmt"
	"log"
	"os"

	"rulify/internal/config"
	"rulify/internal/models"

	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()

	cfg := config.Load()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
			cfg.Database.Host, cfg.Database.User, cfg.Database.Password,
			cfg.Database.Name, cfg.Database.Port, cfg.Database.SSLMode, cfg.Database.TimeZone)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("Starting database migration...")

	err = db.AutoMigrate(
		&models.AutomationRule{},
		&models.RuleExecution{},
		&models.ThresholdConfig{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	log.Println("Database migration completed successfully!")

	log.Println("Creating additional indexes...")

	// 评估路径按 (status, metric_type, scope_type) 查询活动规则
	db.Exec("CREATE INDEX IF NOT EXISTS idx_rules_status_metric_scope ON automation_rules(status, metric_type, scope_type)")

	// 阈值覆盖按精确键查询，取最新创建者
	db.Exec("CREATE INDEX IF NOT EXISTS idx_threshold_configs_key ON threshold_configs(entity_type, entity_id, metric_type, created_at)")

	// 执行历史按规则/实体过滤并按触发时间倒序分页
	db.Exec("CREATE INDEX IF NOT EXISTS idx_executions_rule_triggered ON rule_executions(rule_id, triggered_at)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_executions_entity_triggered ON rule_executions(entity_id, triggered_at)")

	// 报表扫描窗口内的非测试执行
	db.Exec("CREATE INDEX IF NOT EXISTS idx_executions_test_triggered ON rule_executions(is_test_run, triggered_at)")

	log.Println("Indexes created successfully!")
}

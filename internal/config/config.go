package config

import (
	"time"

	"github.com/spf13/viper"
)

// The service is expected to run in EKS with the DB connection variables
// set as environment variables on the pod. AWS config and the SQS queue
// URLs are handled the same way.

type Config struct {
	DBHost             string `mapstructure:"DB_HOST"`
	DBPort             string `mapstructure:"DB_PORT"`
	DBUser             string `mapstructure:"DB_USER"`
	DBPassword         string `mapstructure:"DB_PASSWORD"`
	DBName             string `mapstructure:"DB_NAME"`
	ServerPort         string `mapstructure:"SERVER_PORT"`
	AWSRegion          string `mapstructure:"AWS_REGION"`
	NotifySQSQueueURL  string `mapstructure:"NOTIFY_SQS_QUEUE_URL"`
	PayrollSQSQueueURL string `mapstructure:"PAYROLL_SQS_QUEUE_URL"`
	AWSEndpoint        string `mapstructure:"AWS_ENDPOINT"`
	PayrollAPIURL      string `mapstructure:"PAYROLL_API_URL"`
	SummarySender      string `mapstructure:"SUMMARY_SENDER"`
	IsLocalDev         bool   `mapstructure:"IS_LOCAL_DEV"`

	// Relay tuning. Deployment knobs, not protocol constants.
	FrameFreshness time.Duration `mapstructure:"FRAME_FRESHNESS"`
	PingInterval   time.Duration `mapstructure:"PING_INTERVAL"`
	ReadDeadline   time.Duration `mapstructure:"READ_DEADLINE"`
	SendBufferSize int           `mapstructure:"SEND_BUFFER_SIZE"`
	MaxFrameBytes  int64         `mapstructure:"MAX_FRAME_BYTES"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (config Config, err error) {
	viper.SetDefault("DB_HOST", "db")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "workwatch_db")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("AWS_REGION", "us-east-1") // Default region for AWS services
	viper.SetDefault("NOTIFY_SQS_QUEUE_URL", "http://localstack:4566/000000000000/notify-queue")
	viper.SetDefault("PAYROLL_SQS_QUEUE_URL", "http://localstack:4566/000000000000/payroll-queue")
	viper.SetDefault("AWS_ENDPOINT", "http://localstack:4566")
	viper.SetDefault("PAYROLL_API_URL", "http://localhost:8081/")
	viper.SetDefault("SUMMARY_SENDER", "no-reply@workwatch.example")
	viper.SetDefault("IS_LOCAL_DEV", false)
	viper.SetDefault("FRAME_FRESHNESS", "30s")
	viper.SetDefault("PING_INTERVAL", "30s")
	viper.SetDefault("READ_DEADLINE", "90s")
	viper.SetDefault("SEND_BUFFER_SIZE", 64)
	viper.SetDefault("MAX_FRAME_BYTES", 8<<20)

	// Read in environment variables that match the keys.
	viper.AutomaticEnv()

	err = viper.Unmarshal(&config)
	return
}

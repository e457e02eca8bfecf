package config

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env           string              `yaml:"env" env:"APP_ENV" env-default:"prod"` // local, dev или prod
	HTTPServer    HTTPServerConfig    `yaml:"http_server"`
	Database      DatabaseConfig      `yaml:"database"`
	JWT           JWTConfig           `yaml:"jwt"`
	Migrations    MigrationsConfig    `yaml:"migrations"`
	Payment       PaymentConfig       `yaml:"payment"`
	Checkout      CheckoutConfig      `yaml:"checkout"`
	Redis         RedisConfig         `yaml:"redis"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Account       AccountConfig       `yaml:"account"`
}

// HTTPServerConfig структура http сервера
type HTTPServerConfig struct {
	Address     string        `yaml:"address" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// DatabaseConfig структура по работе с БД
type DatabaseConfig struct {
	Host         string `yaml:"host" env-default:"localhost"`
	Port         int    `yaml:"port" env-default:"5432"`
	User         string `yaml:"user" env-required:"true"`
	Password     string `yaml:"-" env:"DB_PASSWORD" env-required:"true"`
	Name         string `yaml:"name" env-required:"true"`
	MaxOpenConns int    `yaml:"max_open_conns" env-default:"20"`
}

// JWTConfig настройка jwt
type JWTConfig struct {
	Secret   string `yaml:"-" env:"JWT_SECRET" env-required:"true"`
	TokenTTL int    `yaml:"token_ttl" env-default:"60"`
}

// AccountConfig — восстановление пароля. Ссылка в письме: reset_url?token=...
type AccountConfig struct {
	PasswordResetURL string        `yaml:"password_reset_url" env-default:"http://localhost:3000/sifre-yenile"`
	PasswordResetTTL time.Duration `yaml:"password_reset_ttl" env-default:"1h"`
}

type MigrationsConfig struct {
	Path string `yaml:"path" env-default:"./migrations"`
}

// PaymentConfig — платёжный шлюз. provider: sandbox (тестовые карты) или http (REST-шлюз)
type PaymentConfig struct {
	Provider     string        `yaml:"provider" env-default:"sandbox"`
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"api_key"`
	SecretKey    string        `yaml:"-" env:"PAYMENT_SECRET_KEY"`
	Currency     string        `yaml:"currency" env-default:"TRY"`
	Timeout      time.Duration `yaml:"timeout" env-default:"10s"`
	DeclineCards []string      `yaml:"decline_cards"`
}

// CheckoutConfig — параметры транзакции оформления заказа
type CheckoutConfig struct {
	LockTimeout    time.Duration `yaml:"lock_timeout" env-default:"5s"`
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl" env-default:"24h"`
}

// RedisConfig — хранилище ключей идемпотентности. Пустой address — хранение в памяти процесса
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env-default:"0"`
}

// NotificationsConfig — отправка писем через outbox. driver: log, smtp или kafka
type NotificationsConfig struct {
	Driver       string        `yaml:"driver" env-default:"log"`
	From         string        `yaml:"from" env-default:"noreply@toff.shop"`
	ShopInbox    string        `yaml:"shop_inbox"` // сюда приходят обращения из формы обратной связи
	PollInterval time.Duration `yaml:"poll_interval" env-default:"5s"`
	BatchSize    int           `yaml:"batch_size" env-default:"50"`
	MaxAttempts  int           `yaml:"max_attempts" env-default:"1"`
	ClaimTimeout time.Duration `yaml:"claim_timeout" env-default:"5m"`
	SMTP         SMTPConfig    `yaml:"smtp"`
	Kafka        KafkaConfig   `yaml:"kafka"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port" env-default:"587"`
	Username string `yaml:"username"`
	Password string `yaml:"-" env:"SMTP_PASSWORD"`
}

type KafkaConfig struct {
	Brokers string `yaml:"brokers"` // через запятую
	Topic   string `yaml:"topic" env-default:"shop.notifications"`
}

// MustLoad - если не загружаем - паникуем
func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		log.Fatal("CONFIG_PATH not exists")
	}
	return MustLoadByPath(configPath)
}

func fetchConfigPath() string {
	var path string

	flag.StringVar(&path, "config", "", "path to config file")
	flag.Parse()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	return path
}

func MustLoadByPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file not found: " + configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("can't read config file %s: %v", configPath, err)
	}

	return &cfg
}

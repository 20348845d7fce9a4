package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config.yaml"

type Config struct {
	Log Log `yaml:"log"`
	// IANA timezone used for every "now" computation
	Timezone  string    `yaml:"timezone" example:"America/Sao_Paulo" validate:"required,timezone"`
	Patient   Patient   `yaml:"patient"`
	Files     Files     `yaml:"files"`
	Storage   Storage   `yaml:"storage"`
	Messenger Messenger `yaml:"messenger"`
	HTTP      HTTP      `yaml:"http"`
	Reminders Reminders `yaml:"reminders"`
	Reports   Reports   `yaml:"reports"`
}

type Log struct {
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

type Patient struct {
	// Name used in reports and retry prompts
	Name string `yaml:"name" example:"Maria"`
	// Recipient of reminders: whatsapp:+5511999999999 for twilio, chat id for telegram
	To string `yaml:"to" example:"whatsapp:+5511999999999" validate:"required"`
}

type Files struct {
	// Medication schedule
	Medications string `yaml:"medications" example:"remedios.json" validate:"required"`
	// Ledger file for the json storage driver
	Ledger string `yaml:"ledger" example:"historico.json" validate:"required"`
}

type Storage struct {
	// Ledger storage driver
	Driver string `yaml:"driver" example:"json" validate:"required,oneof=json sqlite"`
	// SQLite database path, used by the sqlite driver
	SQLitePath string `yaml:"sqlite_path" example:"data/ledger.db" validate:"required_if=Driver sqlite"`
}

type Messenger struct {
	// Outbound transport
	Driver   string   `yaml:"driver" example:"twilio" validate:"required,oneof=twilio telegram log"`
	Twilio   Twilio   `yaml:"twilio"`
	Telegram Telegram `yaml:"telegram"`
}

type Twilio struct {
	// Account SID
	AccountSID string `yaml:"account_sid" example:"${TWILIO_ACCOUNT_SID}"`
	// Auth token, also used to validate webhook signatures
	AuthToken string `yaml:"auth_token" example:"${TWILIO_AUTH_TOKEN}"`
	// Sender number
	From string `yaml:"from" example:"whatsapp:+14155238886"`
	// Public webhook URL, required to validate signatures
	WebhookURL string `yaml:"webhook_url" example:"https://medremind.example.com/webhook"`
	// Reject webhook calls without a valid X-Twilio-Signature
	ValidateSignature bool `yaml:"validate_signature" example:"false"`
}

type Telegram struct {
	// Bot token
	Token string `yaml:"token" example:"${TELEGRAM_BOT_TOKEN}"`
	// Long polling timeout in seconds
	PollTimeout int `yaml:"poll_timeout" example:"30" validate:"min=0"`
}

type HTTP struct {
	// Listen address of the webhook server
	Addr string `yaml:"addr" example:":8080" validate:"required"`
}

type Reminders struct {
	// Time after the scheduled dose before the first retry
	Grace time.Duration `yaml:"grace" example:"5m" validate:"min=0"`
	// Attempts before a dose is marked missed
	MaxAttempts int `yaml:"max_attempts" example:"3" validate:"min=1"`
	// Cron expression of the retry sweeper
	SweepCron string `yaml:"sweep_cron" example:"5-59/10 * * * *" validate:"required"`
}

type Reports struct {
	// Cron expression of the daily report
	DailyCron string `yaml:"daily_cron" example:"5 22 * * *" validate:"required"`
	// Cron expression of the weekly summary
	WeeklyCron string `yaml:"weekly_cron" example:"10 22 * * 0" validate:"required"`
	// Cron expression of the morning briefing, empty disables it
	BriefingCron string `yaml:"briefing_cron" example:"0 7 * * *"`
}

func Load() (*Config, error) {
	return LoadFile(DefaultPath)
}

func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse expands ${VAR} references from the environment, applies defaults
// and validates the result.
func Parse(data []byte) (*Config, error) {
	var result Config

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &result); err != nil {
		return nil, oops.Errorf("failed to parse YAML config: %w", err)
	}

	result.applyDefaults()

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	if err := result.validateMessenger(); err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *Config) applyDefaults() {
	if c.Timezone == "" {
		c.Timezone = "America/Sao_Paulo"
	}
	if c.Patient.Name == "" {
		c.Patient.Name = "Paciente"
	}
	if c.Files.Medications == "" {
		c.Files.Medications = "remedios.json"
	}
	if c.Files.Ledger == "" {
		c.Files.Ledger = "historico.json"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "json"
	}
	if c.Messenger.Driver == "" {
		c.Messenger.Driver = "twilio"
	}
	if c.Messenger.Telegram.PollTimeout == 0 {
		c.Messenger.Telegram.PollTimeout = 30
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Reminders.Grace == 0 {
		c.Reminders.Grace = 5 * time.Minute
	}
	if c.Reminders.MaxAttempts == 0 {
		c.Reminders.MaxAttempts = 3
	}
	if c.Reminders.SweepCron == "" {
		c.Reminders.SweepCron = "5-59/10 * * * *"
	}
	if c.Reports.DailyCron == "" {
		c.Reports.DailyCron = "5 22 * * *"
	}
	if c.Reports.WeeklyCron == "" {
		c.Reports.WeeklyCron = "10 22 * * 0"
	}
}

func (c *Config) validateMessenger() error {
	switch c.Messenger.Driver {
	case "twilio":
		t := c.Messenger.Twilio
		if t.AccountSID == "" || t.AuthToken == "" || t.From == "" {
			return oops.Errorf("twilio messenger requires account_sid, auth_token and from")
		}
		if t.ValidateSignature && t.WebhookURL == "" {
			return oops.Errorf("twilio signature validation requires webhook_url")
		}
	case "telegram":
		if c.Messenger.Telegram.Token == "" {
			return oops.Errorf("telegram messenger requires token")
		}
	}

	return nil
}

// Location returns the configured timezone. Timezone is validated in Parse.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}

	return loc
}

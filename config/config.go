package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Booking    BookingConfig    `yaml:"booking"`
	Hub        HubConfig        `yaml:"hub"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port               int `yaml:"port"`
	BookingRatePerMin  int `yaml:"booking_rate_per_min"`
	WaitlistRatePerMin int `yaml:"waitlist_rate_per_min"`
	CacheTTLSeconds    int `yaml:"cache_ttl_seconds"`
}

// BookingConfig holds the reservation-domain constants. Slot capacity, the
// set of bookable time slots, and the deposit deadlines all vary per
// deployment, so none of them are hard-coded.
type BookingConfig struct {
	MaxPerSlot             int           `yaml:"max_per_slot"`
	TimeSlots              []string      `yaml:"time_slots"`
	Timezone               string        `yaml:"timezone"`
	ReminderOffsetHours    int           `yaml:"reminder_offset_hours"`
	EnforcementOffsetHours int           `yaml:"enforcement_offset_hours"`
	ReminderOffset         time.Duration `yaml:"-"`
	EnforcementOffset      time.Duration `yaml:"-"`
}

// HubConfig holds the WebSocket hub tuning knobs.
type HubConfig struct {
	MaxMessagesPerMinute int           `yaml:"max_messages_per_minute"`
	SendTimeoutSeconds   int           `yaml:"send_timeout_seconds"`
	SendBuffer           int           `yaml:"send_buffer"`
	SendTimeout          time.Duration `yaml:"-"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Booking.MaxPerSlot <= 0 {
		cfg.Booking.MaxPerSlot = 3
	}
	if len(cfg.Booking.TimeSlots) == 0 {
		cfg.Booking.TimeSlots = []string{"11:00 AM", "1:00 PM", "3:00 PM", "5:00 PM", "7:00 PM"}
	}
	if cfg.Booking.Timezone == "" {
		cfg.Booking.Timezone = "America/New_York"
	}
	if cfg.Booking.ReminderOffsetHours <= 0 {
		cfg.Booking.ReminderOffsetHours = 4
	}
	if cfg.Booking.EnforcementOffsetHours <= 0 {
		cfg.Booking.EnforcementOffsetHours = 6
	}
	cfg.Booking.ReminderOffset = time.Duration(cfg.Booking.ReminderOffsetHours) * time.Hour
	cfg.Booking.EnforcementOffset = time.Duration(cfg.Booking.EnforcementOffsetHours) * time.Hour

	if cfg.Hub.MaxMessagesPerMinute <= 0 {
		cfg.Hub.MaxMessagesPerMinute = 60
	}
	if cfg.Hub.SendTimeoutSeconds <= 0 {
		cfg.Hub.SendTimeoutSeconds = 5
	}
	if cfg.Hub.SendBuffer <= 0 {
		cfg.Hub.SendBuffer = 16
	}
	cfg.Hub.SendTimeout = time.Duration(cfg.Hub.SendTimeoutSeconds) * time.Second

	if cfg.Server.BookingRatePerMin <= 0 {
		cfg.Server.BookingRatePerMin = 10
	}
	if cfg.Server.WaitlistRatePerMin <= 0 {
		cfg.Server.WaitlistRatePerMin = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 5
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	return &cfg, nil
}

package health

import (
	"context"
	"time"
)

const pingTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Service encapsulates health-related checks.
type Service struct {
	DB Pinger
}

// NewService constructs a new health service. db may be nil when the
// in-memory repositories are in use.
func NewService(db Pinger) *Service {
	return &Service{DB: db}
}

// Status is the health payload.
type Status struct {
	OK       bool   `json:"ok"`
	Database string `json:"database"`
}

// Check reports whether the service can reach its database.
func (s *Service) Check(ctx context.Context) Status {
	if s == nil || s.DB == nil {
		return Status{OK: true, Database: "memory"}
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.DB.PingContext(ctx); err != nil {
		return Status{OK: false, Database: "unavailable"}
	}
	return Status{OK: true, Database: "ok"}
}

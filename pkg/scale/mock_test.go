package scale

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/kuncy7/toolid/pkg/models"
)

// MockConnection replays chunks and then reports timeouts until closed
type MockConnection struct {
	mu        sync.Mutex
	chunks    [][]byte
	readErr   error
	readCount int
	closed    bool
	closeHits int

	// readDelay emulates the serial read timeout when no data is left
	readDelay time.Duration
}

func (c *MockConnection) ReadChunk(buf []byte) (int, error) {
	c.mu.Lock()
	c.readCount++
	if c.closed {
		c.mu.Unlock()
		return 0, errors.New("read on closed connection")
	}
	if len(c.chunks) > 0 {
		chunk := c.chunks[0]
		c.chunks = c.chunks[1:]
		c.mu.Unlock()
		return copy(buf, chunk), nil
	}
	readErr := c.readErr
	c.mu.Unlock()

	if readErr != nil {
		return 0, readErr
	}

	time.Sleep(c.readDelay)
	return 0, nil
}

func (c *MockConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closeHits++
	return nil
}

func (c *MockConnection) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readCount
}

func (c *MockConnection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// MockOpener hands out connections produced by openFunc
type MockOpener struct {
	mu        sync.Mutex
	openFunc  func(cfg models.ScaleConfig) (Connection, error)
	openTimes []time.Time
}

func (o *MockOpener) Open(cfg models.ScaleConfig) (Connection, error) {
	o.mu.Lock()
	o.openTimes = append(o.openTimes, time.Now())
	openFunc := o.openFunc
	o.mu.Unlock()

	if openFunc != nil {
		return openFunc(cfg)
	}
	return nil, &TransportError{Op: "open", Port: cfg.Port, Err: io.ErrUnexpectedEOF}
}

func (o *MockOpener) Attempts() []time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	attempts := make([]time.Time, len(o.openTimes))
	copy(attempts, o.openTimes)
	return attempts
}

// MockSink stores readings in memory
type MockSink struct {
	mu       sync.Mutex
	readings []models.ScaleWeight
	failNext int
	nextID   int64
}

func (s *MockSink) RecordWeight(ctx context.Context, scaleID int64, weight float64) (*models.ScaleWeight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNext > 0 {
		s.failNext--
		return nil, errors.New("database is locked")
	}

	s.nextID++
	reading := models.ScaleWeight{
		ID:        s.nextID,
		ScaleID:   scaleID,
		Weight:    weight,
		CreatedAt: time.Now().UTC(),
	}
	s.readings = append(s.readings, reading)
	return &reading, nil
}

func (s *MockSink) Readings() []models.ScaleWeight {
	s.mu.Lock()
	defer s.mu.Unlock()
	readings := make([]models.ScaleWeight, len(s.readings))
	copy(readings, s.readings)
	return readings
}

// MockConfigStore keeps scale configurations in memory
type MockConfigStore struct {
	mu        sync.Mutex
	configs   []models.ScaleConfig
	loadErr   error
	loadCount int
}

func (s *MockConfigStore) LoadScaleConfigs(ctx context.Context) ([]models.ScaleConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadCount++
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	configs := make([]models.ScaleConfig, len(s.configs))
	copy(configs, s.configs)
	return configs, nil
}

func (s *MockConfigStore) CreateScaleConfig(ctx context.Context, cfg *models.ScaleConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg.ID = int64(len(s.configs) + 1)
	cfg.UpdatedAt = time.Now().UTC()
	s.configs = append(s.configs, *cfg)
	return nil
}

func (s *MockConfigStore) Add(cfg models.ScaleConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs = append(s.configs, cfg)
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func testScaleConfig(id int64) models.ScaleConfig {
	cfg := models.DefaultScaleConfig()
	cfg.ID = id
	return cfg
}

// waitFor polls cond until it holds or the timeout elapses
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bobarin/reze/internal/animate"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ChannelJobs        = "studio:jobs"
	jobKeyPrefix       = "studio:job:"
	DefaultSnapshotTTL = time.Hour
)

// Event is what subscribers of ChannelJobs receive.
type Event struct {
	Type        string           `json:"type"`
	Snapshot    animate.Snapshot `json:"snapshot"`
	PublishedAt time.Time        `json:"published_at"`
}

func newEvent(snap animate.Snapshot, now time.Time) Event {
	typ := "video." + string(snap.State)
	if snap.Closed {
		typ = "video.cancelled"
	}
	return Event{
		Type:        typ,
		Snapshot:    snap,
		PublishedAt: now,
	}
}

func jobKey(sessionID uuid.UUID) string {
	return jobKeyPrefix + sessionID.String()
}

// Publisher fans job snapshots out over Redis pub/sub and keeps the latest
// one per session so a reconnecting client can recover it.
type Publisher struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func New(redisURL string, log *zap.Logger) (*Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{client: client, ttl: DefaultSnapshotTTL, log: log.Named("events")}, nil
}

func (p *Publisher) Close() error {
	return p.client.Close()
}

// JobChanged implements animate.Observer. Failures are logged; the job never
// waits on Redis being healthy. The teardown snapshot overwrites the cached
// one, so a reconnecting client sees the cancellation instead of a stale
// polling state.
func (p *Publisher) JobChanged(ctx context.Context, snap animate.Snapshot) {
	if err := p.Publish(ctx, snap); err != nil {
		p.log.Warn("failed to publish job snapshot",
			zap.String("session_id", snap.SessionID.String()),
			zap.String("status", string(snap.State)),
			zap.Error(err),
		)
	}
}

func (p *Publisher) Publish(ctx context.Context, snap animate.Snapshot) error {
	data, err := json.Marshal(newEvent(snap, time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	latest, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, jobKey(snap.SessionID), latest, p.ttl)
		pipe.Publish(ctx, ChannelJobs, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}
	return nil
}

// LastSnapshot returns the most recent snapshot stored for a session, or nil
// if none is cached.
func (p *Publisher) LastSnapshot(ctx context.Context, sessionID uuid.UUID) (*animate.Snapshot, error) {
	raw, err := p.client.Get(ctx, jobKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap animate.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
)

const (
	permissionGranted = "granted"
	permissionDenied  = "denied"
)

// RedisPlatform stores one user's pending alarms in a redis hash keyed by
// alarm id. Delivery workers read the same keys.
//
//	<prefix>:<userID>:alarms      hash  id -> alarm JSON
//	<prefix>:<userID>:channels    hash  channel id -> channel JSON
//	<prefix>:<userID>:permission  string "granted" | "denied"
type RedisPlatform struct {
	client redis.Cmdable
	prefix string
	userID string
}

// NewRedisPlatform creates the platform for userID.
func NewRedisPlatform(client redis.Cmdable, prefix, userID string) *RedisPlatform {
	return &RedisPlatform{client: client, prefix: prefix, userID: userID}
}

func (p *RedisPlatform) key(suffix string) string {
	return p.prefix + ":" + p.userID + ":" + suffix
}

func (p *RedisPlatform) Supported() bool { return true }

// SetPermission records the OS permission reported by the user's device.
func (p *RedisPlatform) SetPermission(ctx context.Context, granted bool) error {
	value := permissionDenied
	if granted {
		value = permissionGranted
	}
	return p.client.Set(ctx, p.key("permission"), value, 0).Err()
}

func (p *RedisPlatform) CheckPermission(ctx context.Context) (bool, error) {
	value, err := p.client.Get(ctx, p.key("permission")).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read permission: %w", err)
	}
	return value == permissionGranted, nil
}

// RequestPermission cannot prompt from the server side; it returns what the
// device last reported.
func (p *RedisPlatform) RequestPermission(ctx context.Context) (bool, error) {
	return p.CheckPermission(ctx)
}

func (p *RedisPlatform) CreateChannel(ctx context.Context, ch Channel) error {
	data, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	return p.client.HSet(ctx, p.key("channels"), ch.ID, data).Err()
}

func (p *RedisPlatform) Schedule(ctx context.Context, alarms []Alarm) error {
	if len(alarms) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(alarms)*2)
	for _, a := range alarms {
		data, err := json.Marshal(a)
		if err != nil {
			return err
		}
		values = append(values, strconv.FormatInt(a.ID, 10), data)
	}
	if err := p.client.HSet(ctx, p.key("alarms"), values...).Err(); err != nil {
		return fmt.Errorf("schedule %d alarms: %w", len(alarms), err)
	}
	return nil
}

func (p *RedisPlatform) Cancel(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	fields := make([]string, 0, len(ids))
	for _, id := range ids {
		fields = append(fields, strconv.FormatInt(id, 10))
	}
	if err := p.client.HDel(ctx, p.key("alarms"), fields...).Err(); err != nil {
		return fmt.Errorf("cancel %d alarms: %w", len(ids), err)
	}
	return nil
}

func (p *RedisPlatform) Pending(ctx context.Context) ([]Alarm, error) {
	entries, err := p.client.HGetAll(ctx, p.key("alarms")).Result()
	if err != nil {
		return nil, fmt.Errorf("list alarms: %w", err)
	}
	out := make([]Alarm, 0, len(entries))
	for field, data := range entries {
		var a Alarm
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			// keep the id so a clear can still remove it
			id, perr := strconv.ParseInt(field, 10, 64)
			if perr != nil {
				continue
			}
			a = Alarm{ID: id}
		}
		out = append(out, a)
	}
	sortAlarms(out)
	return out, nil
}

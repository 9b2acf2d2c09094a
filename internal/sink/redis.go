package sink

import (
	"context"
	"fmt"
	"net/url"

	"github.com/redis/go-redis/v9"
)

// DefaultStream is the stream key used when a redis location has no
// stream query parameter.
const DefaultStream = "calltrace"

// Redis appends records to a Redis stream, one XADD per record.
type Redis struct {
	client   *redis.Client
	stream   string
	location string
}

// parseRedisLocation splits the stream parameter off a redis URL and
// returns client options for the rest.
func parseRedisLocation(location string) (*redis.Options, string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, "", fmt.Errorf("redis sink: %w", err)
	}

	q := u.Query()
	stream := q.Get("stream")
	if stream == "" {
		stream = DefaultStream
	}
	q.Del("stream")
	u.RawQuery = q.Encode()

	opts, err := redis.ParseURL(u.String())
	if err != nil {
		return nil, "", fmt.Errorf("redis sink: %w", err)
	}
	return opts, stream, nil
}

// OpenRedis connects to the server named by location
// (redis://[user:pass@]host:port[/db][?stream=key]).
func OpenRedis(location string) (*Redis, error) {
	opts, stream, err := parseRedisLocation(location)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis sink: failed to connect: %w", err)
	}

	return &Redis{client: client, stream: stream, location: location}, nil
}

// Location implements Sink.
func (r *Redis) Location() string {
	return r.location
}

// Stream returns the stream key.
func (r *Redis) Stream() string {
	return r.stream
}

// Append adds one stream entry holding the line and its indexing fields.
func (r *Redis) Append(ctx context.Context, entry Entry) error {
	if err := checkLine(entry.Line); err != nil {
		return fmt.Errorf("append record: %w", err)
	}

	err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]any{
			"line":          string(entry.Line),
			"function_name": entry.Record.FunctionName,
			"call_id":       entry.Record.CallID,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("append record to stream %s: %w", r.stream, err)
	}
	return nil
}

// ReadLines returns every entry of the stream in insertion order.
func (r *Redis) ReadLines(ctx context.Context) ([][]byte, error) {
	msgs, err := r.client.XRange(ctx, r.stream, "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("read stream %s: %w", r.stream, err)
	}

	lines := make([][]byte, 0, len(msgs))
	for _, msg := range msgs {
		line, ok := msg.Values["line"].(string)
		if !ok {
			return nil, fmt.Errorf("read stream %s: entry %s has no line field", r.stream, msg.ID)
		}
		lines = append(lines, []byte(line))
	}
	return lines, nil
}

// Close closes the client connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

package checker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	_ "github.com/lib/pq"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// DBPinger is the subset of *sql.DB used by the postgres check.
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// MongoPinger is the subset of the MongoDB client used by the mongo check.
type MongoPinger interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

// RedisPinger is the subset of the go-redis client used by the redis check.
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// NewHTTPCheck returns a check that issues GET target and expects the given
// status code, or any 2xx status when expectStatus is zero.
func NewHTTPCheck(client *resty.Client, target string, expectStatus int) Func {
	if client == nil {
		client = resty.New()
	}
	return func(ctx context.Context) error {
		resp, err := client.R().
			SetContext(ctx).
			SetDoNotParseResponse(true).
			Get(target)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		if body := resp.RawBody(); body != nil {
			_ = body.Close()
		}

		code := resp.StatusCode()
		if expectStatus != 0 {
			if code != expectStatus {
				return fmt.Errorf("unexpected status %d, want %d", code, expectStatus)
			}
			return nil
		}
		if code < http.StatusOK || code >= http.StatusMultipleChoices {
			return fmt.Errorf("unexpected status %d %s", code, http.StatusText(code))
		}
		return nil
	}
}

// NewTCPCheck returns a check that succeeds when address accepts a TCP
// connection.
func NewTCPCheck(address string) Func {
	return func(ctx context.Context) error {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", address)
		if err != nil {
			return fmt.Errorf("dial %s: %w", address, err)
		}
		return conn.Close()
	}
}

// NewRedisCheck returns a check that sends PING.
func NewRedisCheck(client RedisPinger) Func {
	return func(ctx context.Context) error {
		if client == nil {
			return errors.New("redis client is nil")
		}
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		return nil
	}
}

// NewPostgresCheck returns a check that pings the database.
func NewPostgresCheck(db DBPinger) Func {
	return func(ctx context.Context) error {
		if db == nil {
			return errors.New("db client is nil")
		}
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
		return nil
	}
}

// NewMongoCheck returns a check that pings MongoDB. A nil readPref means
// the primary.
func NewMongoCheck(client MongoPinger, readPref *readpref.ReadPref) Func {
	return func(ctx context.Context) error {
		if client == nil {
			return errors.New("mongo client is nil")
		}
		rp := readPref
		if rp == nil {
			rp = readpref.Primary()
		}
		if err := client.Ping(ctx, rp); err != nil {
			return fmt.Errorf("mongo ping failed: %w", err)
		}
		return nil
	}
}

// NewAMQPCheck returns a check that opens and closes a broker connection.
func NewAMQPCheck(url string) Func {
	return func(ctx context.Context) error {
		timeout := 5 * time.Second
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if timeout <= 0 {
			return context.DeadlineExceeded
		}

		type result struct {
			conn *amqp.Connection
			err  error
		}
		done := make(chan result, 1)
		go func() {
			conn, err := amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(timeout)})
			done <- result{conn, err}
		}()

		select {
		case <-ctx.Done():
			go func() {
				if r := <-done; r.conn != nil {
					_ = r.conn.Close()
				}
			}()
			return ctx.Err()
		case r := <-done:
			if r.err != nil {
				return fmt.Errorf("amqp dial failed: %w", r.err)
			}
			return r.conn.Close()
		}
	}
}

// NewGRPCCheck returns a check that calls the standard gRPC health service
// and expects SERVING for service.
func NewGRPCCheck(conn grpc.ClientConnInterface, service string) Func {
	return func(ctx context.Context) error {
		if conn == nil {
			return errors.New("grpc connection is nil")
		}
		resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		if err != nil {
			return fmt.Errorf("grpc health check failed: %w", err)
		}
		if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			return fmt.Errorf("grpc service %q is %s", service, resp.GetStatus())
		}
		return nil
	}
}

func newRedisClient(target string) (*redis.Client, error) {
	if hasScheme(target) {
		opts, err := redis.ParseURL(target)
		if err != nil {
			return nil, err
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: target}), nil
}

func newPostgresDB(dsn string) (*sql.DB, error) {
	return sql.Open("postgres", dsn)
}

func newMongoClient(uri string) (*mongo.Client, error) {
	return mongo.Connect(context.Background(), options.Client().ApplyURI(uri))
}

func newGRPCConn(target string) (*grpc.ClientConn, error) {
	return grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
}

func hasScheme(target string) bool {
	return strings.Contains(target, "://")
}

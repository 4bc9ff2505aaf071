package checker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/leslieo2/go-probe/internal/config"
	"github.com/leslieo2/go-probe/internal/constants"
)

// closerFunc adapts a function to io.Closer.
type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}

// BuildDefinitions turns the configured dependencies into check
// definitions. Clients are created lazily and connect on the first run.
// On error every client built so far is closed.
func BuildDefinitions(cfg config.ChecksConfig) ([]Definition, error) {
	defs := make([]Definition, 0, len(cfg.Dependencies))
	for _, dep := range cfg.Dependencies {
		def, err := buildDefinition(cfg.Resolved(dep))
		if err != nil {
			for _, d := range defs {
				if d.Closer != nil {
					_ = d.Closer.Close()
				}
			}
			return nil, fmt.Errorf("check %s: %w", dep.Name, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func buildDefinition(dep config.CheckConfig) (Definition, error) {
	def := Definition{
		Name:        dep.Name,
		Interval:    dep.Interval,
		Timeout:     dep.Timeout,
		Fingerprint: fmt.Sprintf("%+v", dep),
	}

	switch dep.Type {
	case constants.CheckTypeHTTP:
		client := resty.New().SetTimeout(dep.Timeout)
		def.Check = NewHTTPCheck(client, dep.Target, dep.ExpectStatus)

	case constants.CheckTypeTCP:
		def.Check = NewTCPCheck(dep.Target)

	case constants.CheckTypeRedis:
		client, err := newRedisClient(dep.Target)
		if err != nil {
			return Definition{}, fmt.Errorf("invalid redis target: %w", err)
		}
		def.Check = NewRedisCheck(client)
		def.Closer = client

	case constants.CheckTypePostgres:
		db, err := newPostgresDB(dep.Target)
		if err != nil {
			return Definition{}, fmt.Errorf("invalid postgres target: %w", err)
		}
		db.SetMaxOpenConns(1)
		def.Check = NewPostgresCheck(db)
		def.Closer = db

	case constants.CheckTypeMongo:
		client, err := newMongoClient(dep.Target)
		if err != nil {
			return Definition{}, fmt.Errorf("invalid mongo target: %w", err)
		}
		def.Check = NewMongoCheck(client, nil)
		def.Closer = closerFunc(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return client.Disconnect(ctx)
		})

	case constants.CheckTypeAMQP:
		def.Check = NewAMQPCheck(dep.Target)

	case constants.CheckTypeGRPC:
		conn, err := newGRPCConn(dep.Target)
		if err != nil {
			return Definition{}, fmt.Errorf("invalid grpc target: %w", err)
		}
		def.Check = NewGRPCCheck(conn, dep.Service)
		def.Closer = conn

	default:
		return Definition{}, errors.New("unsupported check type " + dep.Type)
	}

	return def, nil
}

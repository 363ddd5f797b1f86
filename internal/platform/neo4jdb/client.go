package neo4jdb

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/mindfold/mindfold-backend/internal/platform/logger"
)

type Client struct {
	Driver   neo4j.DriverWithContext
	Database string
	log      *logger.Logger
}

func NewFromEnv(log *logger.Logger) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("neo4jdb: logger required")
	}

	uri := strings.TrimSpace(os.Getenv("NEO4J_URI"))
	if uri == "" {
		return nil, nil
	}

	user := strings.TrimSpace(os.Getenv("NEO4J_USER"))
	if user == "" {
		user = "neo4j"
	}
	password := strings.TrimSpace(os.Getenv("NEO4J_PASSWORD"))
	database := strings.TrimSpace(os.Getenv("NEO4J_DATABASE"))

	timeoutSec := 10
	if v := strings.TrimSpace(os.Getenv("NEO4J_TIMEOUT_SECONDS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	maxPool := 50
	if v := strings.TrimSpace(os.Getenv("NEO4J_MAX_POOL_SIZE")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			maxPool = parsed
		}
	}

	auth := neo4j.BasicAuth(user, password, "")
	driver, err := neo4j.NewDriverWithContext(uri, auth, func(cfg *neo4j.Config) {
		cfg.MaxConnectionPoolSize = maxPool
		cfg.SocketConnectTimeout = time.Duration(timeoutSec) * time.Second
	})
	if err != nil {
		return nil, fmt.Errorf("neo4jdb: init driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4jdb: verify connectivity: %w", err)
	}

	return &Client{
		Driver:   driver,
		Database: database,
		log:      log.With("client", "Neo4jDB"),
	}, nil
}

// ExecuteRead runs one parameterized query in a fresh read session and
// returns the records as generic maps. A session never outlives the call.
func (c *Client) ExecuteRead(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	if c == nil || c.Driver == nil {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	session := c.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: c.Database,
	})
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([]map[string]any, 0, len(records))
		for _, rec := range records {
			rows = append(rows, rec.AsMap())
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	rows, _ := out.([]map[string]any)
	return rows, nil
}

// ExecuteWrite runs one or more parameterized statements in a single write
// transaction on a fresh session.
func (c *Client) ExecuteWrite(ctx context.Context, statements []Statement) error {
	if c == nil || c.Driver == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	session := c.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: c.Database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, st := range statements {
			if strings.TrimSpace(st.Cypher) == "" {
				continue
			}
			res, err := tx.Run(ctx, st.Cypher, st.Params)
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// ExecuteWriteReturning runs a single write statement and returns its records.
func (c *Client) ExecuteWriteReturning(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	if c == nil || c.Driver == nil {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	session := c.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: c.Database,
	})
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([]map[string]any, 0, len(records))
		for _, rec := range records {
			rows = append(rows, rec.AsMap())
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	rows, _ := out.([]map[string]any)
	return rows, nil
}

// EnsureSchema creates constraints and indexes, warning and continuing on
// failure (restricted users may not have schema privileges).
func (c *Client) EnsureSchema(ctx context.Context, statements []string) {
	if c == nil || c.Driver == nil {
		return
	}
	session := c.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: c.Database,
	})
	defer session.Close(ctx)
	for _, q := range statements {
		if res, err := session.Run(ctx, q, nil); err != nil {
			if c.log != nil {
				c.log.Warn("neo4j schema init failed (continuing)", "error", err)
			}
		} else {
			_, _ = res.Consume(ctx)
		}
	}
}

type Statement struct {
	Cypher string
	Params map[string]any
}

func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.Driver == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := c.Driver.Close(ctx)
	c.Driver = nil
	return err
}

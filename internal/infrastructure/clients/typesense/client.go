package typesense

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/kceleski/agent-healthproassist-sub000/pkg/config"
	"github.com/kceleski/agent-healthproassist-sub000/pkg/retry"
)

const (
	// DefaultCollection holds the bulk facility dataset.
	DefaultCollection = "care_facilities"
)

// Client represents a Typesense client bound to one facility collection
type Client struct {
	client     *typesense.Client
	collection string
}

// NewClient creates a new Typesense client with exponential backoff retry
func NewClient(cfg *config.TypesenseConfig) (*Client, error) {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	retryConfig := retry.DefaultConfig()
	err := retry.DoWithLog(
		context.Background(),
		retryConfig,
		"Typesense",
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := client.Health(ctx, 2*time.Second)
			return err
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).Msg("Typesense connection attempt failed")
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	log.Info().Str("url", cfg.URL).Msg("Successfully connected to Typesense")
	return NewFromTypesense(client, cfg.Collection), nil
}

// NewFromTypesense wraps an existing Typesense client. An empty collection uses DefaultCollection.
func NewFromTypesense(client *typesense.Client, collection string) *Client {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Client{client: client, collection: collection}
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// Collection returns the facility collection name
func (c *Client) Collection() string {
	return c.collection
}

// FacilitySchema describes the facility collection
func FacilitySchema(name string) *api.CollectionSchema {
	return &api.CollectionSchema{
		Name: name,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "name", Type: "string"},
			{Name: "facility_type", Type: "string", Facet: pointer.True()},
			{Name: "type_inferred", Type: "bool", Optional: pointer.True()},
			{Name: "location", Type: "geopoint"},
			{Name: "address", Type: "string", Optional: pointer.True()},
			{Name: "city", Type: "string", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "state", Type: "string", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "zip_code", Type: "string", Optional: pointer.True()},
			{Name: "phone", Type: "string", Optional: pointer.True()},
			{Name: "website", Type: "string", Optional: pointer.True()},
			{Name: "description", Type: "string", Optional: pointer.True()},
			{Name: "image_url", Type: "string", Optional: pointer.True()},
			{Name: "rating", Type: "float", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "review_count", Type: "int32", Optional: pointer.True()},
			{Name: "price_tier", Type: "int32", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "care_levels", Type: "string[]", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "insurance", Type: "string[]", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "medical_needs", Type: "string[]", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "amenities", Type: "string[]", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "available_now", Type: "bool", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "indexed_at", Type: "int64"},
		},
		DefaultSortingField: pointer.String("indexed_at"),
	}
}

// InitSchema ensures the facility collection exists
func (c *Client) InitSchema(ctx context.Context) error {
	collections, err := c.client.Collections().Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve collections: %w", err)
	}

	for _, col := range collections {
		if col.Name == c.collection {
			log.Debug().Str("collection", c.collection).Msg("Typesense collection already exists")
			return nil
		}
	}

	if _, err := c.client.Collections().Create(ctx, FacilitySchema(c.collection)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	log.Info().Str("collection", c.collection).Msg("Created Typesense collection")
	return nil
}
